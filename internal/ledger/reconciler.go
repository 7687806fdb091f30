// internal/ledger/reconciler.go
package ledger

import (
	"context"
	"time"

	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/memeswap/internal/blockchain"
	"github.com/rovshanmuradov/memeswap/internal/domain"
	"github.com/rovshanmuradov/memeswap/internal/storage"
)

const (
	reconcileBatch = 256 // лимит getSignatureStatuses
	// записи старше этого и не найденные в сети считаются неудачными
	DefaultDropAfter = 10 * time.Minute
)

// StatusSource reports on-chain status of signatures.
type StatusSource interface {
	GetSignatureStatuses(ctx context.Context, signatures ...solana.Signature) ([]blockchain.SignatureStatus, error)
}

// Reconciler periodically moves "submitted" swaps to "confirmed" or
// "failed" from on-chain status. It is off unless started.
type Reconciler struct {
	store     storage.SwapStore
	chain     StatusSource
	interval  time.Duration
	dropAfter time.Duration
	now       func() time.Time
	logger    *zap.Logger
}

func NewReconciler(store storage.SwapStore, chain StatusSource, interval, dropAfter time.Duration, logger *zap.Logger) *Reconciler {
	if dropAfter <= 0 {
		dropAfter = DefaultDropAfter
	}
	return &Reconciler{
		store:     store,
		chain:     chain,
		interval:  interval,
		dropAfter: dropAfter,
		now:       time.Now,
		logger:    logger.Named("reconciler"),
	}
}

// Run blocks until ctx is done.
func (r *Reconciler) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.logger.Info("reconciler started", zap.Duration("interval", r.interval))
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := r.ReconcileOnce(ctx); err != nil && ctx.Err() == nil {
				r.logger.Warn("reconcile pass failed", zap.Error(err))
			}
		}
	}
}

// ReconcileOnce processes one batch and returns how many records changed.
func (r *Reconciler) ReconcileOnce(ctx context.Context) (int, error) {
	pending, err := r.store.ListSwapsByStatus(ctx, domain.SwapSubmitted, reconcileBatch)
	if err != nil || len(pending) == 0 {
		return 0, err
	}

	sigs := make([]solana.Signature, 0, len(pending))
	recs := make([]domain.SwapRecord, 0, len(pending))
	for _, rec := range pending {
		sig, err := solana.SignatureFromBase58(rec.TxSignature)
		if err != nil {
			// мусорная подпись никогда не появится в сети
			r.update(ctx, rec.TxSignature, domain.SwapFailed)
			continue
		}
		sigs = append(sigs, sig)
		recs = append(recs, rec)
	}
	if len(sigs) == 0 {
		return 0, nil
	}

	statuses, err := r.chain.GetSignatureStatuses(ctx, sigs...)
	if err != nil {
		return 0, err
	}

	changed := 0
	now := r.now()
	for i, st := range statuses {
		if i >= len(recs) {
			break
		}
		var next domain.SwapStatus
		switch {
		case st.Failed:
			next = domain.SwapFailed
		case st.Confirmed:
			next = domain.SwapConfirmed
		case !st.Found && now.Sub(recs[i].CreatedAt) > r.dropAfter:
			next = domain.SwapFailed
		default:
			continue
		}
		if r.update(ctx, recs[i].TxSignature, next) {
			changed++
		}
	}
	return changed, nil
}

func (r *Reconciler) update(ctx context.Context, sig string, status domain.SwapStatus) bool {
	if err := r.store.UpdateSwapStatus(ctx, sig, status); err != nil {
		r.logger.Warn("failed to update swap status", zap.String("tx_signature", sig), zap.Error(err))
		return false
	}
	r.logger.Debug("swap status updated", zap.String("tx_signature", sig), zap.String("status", string(status)))
	return true
}

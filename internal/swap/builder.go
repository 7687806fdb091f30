// internal/swap/builder.go
package swap

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/memeswap/internal/domain"
	"github.com/rovshanmuradov/memeswap/internal/jupiter"
	"github.com/rovshanmuradov/memeswap/internal/utils/metrics"
)

// TxAPI converts an accepted quote into a serialized transaction.
type TxAPI interface {
	SwapTransaction(ctx context.Context, req jupiter.SwapRequest) (string, error)
}

// BuildRequest mirrors the buildSwap body. FeeAccount may also arrive
// embedded in QuoteResponse; an explicit value wins.
type BuildRequest struct {
	QuoteResponse    json.RawMessage `json:"quoteResponse"`
	UserPublicKey    string          `json:"userPublicKey"`
	WrapAndUnwrapSol *bool           `json:"wrapAndUnwrapSol,omitempty"`
	FeeAccount       string          `json:"feeAccount,omitempty"`
}

// Builder собирает неподписанную транзакцию свопа.
type Builder struct {
	api      TxAPI
	priority jupiter.PriorityFee
	metrics  *metrics.Collector
	logger   *zap.Logger
}

func NewBuilder(api TxAPI, priority jupiter.PriorityFee, m *metrics.Collector, logger *zap.Logger) *Builder {
	if priority.Validate() != nil {
		priority = jupiter.DefaultPriorityFee()
	}
	return &Builder{
		api:      api,
		priority: priority,
		metrics:  m,
		logger:   logger.Named("swap-builder"),
	}
}

// Build returns the base64 unsigned transaction. Failures are not retried.
func (b *Builder) Build(ctx context.Context, req BuildRequest) (string, error) {
	if len(req.QuoteResponse) == 0 || string(req.QuoteResponse) == "null" {
		return "", domain.Invalid("quoteResponse", "")
	}
	if req.UserPublicKey == "" {
		return "", domain.Invalid("userPublicKey", "")
	}
	if _, err := solana.PublicKeyFromBase58(req.UserPublicKey); err != nil {
		return "", domain.Invalid("userPublicKey", "not a valid address")
	}

	stripped, embedded, err := jupiter.SplitFeeAccount(req.QuoteResponse)
	if err != nil {
		return "", domain.Invalid("quoteResponse", err.Error())
	}
	feeAccount := req.FeeAccount
	if feeAccount == "" {
		feeAccount = embedded
	}

	wrap := true
	if req.WrapAndUnwrapSol != nil {
		wrap = *req.WrapAndUnwrapSol
	}

	start := time.Now()
	tx, err := b.api.SwapTransaction(ctx, jupiter.SwapRequest{
		QuoteResponse:    stripped,
		UserPublicKey:    req.UserPublicKey,
		WrapAndUnwrapSol: wrap,
		FeeAccount:       feeAccount,
		Priority:         b.priority,
	})
	b.metrics.RecordStage(metrics.StageBuild, time.Since(start), err)
	if err != nil {
		b.logger.Warn("build swap transaction failed",
			zap.String("user", req.UserPublicKey),
			zap.Error(err))
		return "", err
	}
	return tx, nil
}

// BuildQuote builds from a quote obtained in-process.
func (b *Builder) BuildQuote(ctx context.Context, q *domain.Quote, user solana.PublicKey) (string, error) {
	if q == nil || len(q.Raw) == 0 {
		return "", domain.ErrNoQuote
	}
	return b.Build(ctx, BuildRequest{
		QuoteResponse: q.Raw,
		UserPublicKey: user.String(),
		FeeAccount:    q.PlatformFeeAccount,
	})
}

// internal/swap/executor.go
package swap

import (
	"context"
	"encoding/base64"
	"fmt"
	"time"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/memeswap/internal/blockchain"
	"github.com/rovshanmuradov/memeswap/internal/domain"
	"github.com/rovshanmuradov/memeswap/internal/utils/metrics"
	"github.com/rovshanmuradov/memeswap/internal/wallet"
)

// Executor подписывает и отправляет транзакции, не дожидаясь подтверждения.
type Executor struct {
	broadcaster blockchain.Broadcaster
	metrics     *metrics.Collector
	logger      *zap.Logger
}

func NewExecutor(b blockchain.Broadcaster, m *metrics.Collector, logger *zap.Logger) *Executor {
	return &Executor{
		broadcaster: b,
		metrics:     m,
		logger:      logger.Named("swap-executor"),
	}
}

// CanSign reports whether w has any signing capability.
func CanSign(w wallet.Wallet) bool {
	switch w.(type) {
	case wallet.SignAndSender, wallet.Signer:
		return true
	}
	return false
}

// DecodeTransaction parses a base64 serialized transaction.
func DecodeTransaction(b64 string) (*solana.Transaction, error) {
	raw, err := base64.StdEncoding.DecodeString(b64)
	if err != nil {
		return nil, domain.Invalid("transaction", "not valid base64")
	}
	tx, err := solana.TransactionFromDecoder(bin.NewBinDecoder(raw))
	if err != nil {
		return nil, domain.Invalid("transaction", err.Error())
	}
	return tx, nil
}

// Execute signs the unsigned transaction with w and broadcasts it. A wallet
// that can sign and send itself is preferred; otherwise it signs and the
// executor broadcasts.
func (e *Executor) Execute(ctx context.Context, w wallet.Wallet, unsignedB64 string) (solana.Signature, error) {
	if !CanSign(w) {
		return solana.Signature{}, domain.ErrWalletCannotSign
	}

	tx, err := DecodeTransaction(unsignedB64)
	if err != nil {
		return solana.Signature{}, err
	}

	if sender, ok := w.(wallet.SignAndSender); ok {
		start := time.Now()
		sig, err := sender.SignAndSendTransaction(ctx, tx)
		e.metrics.RecordStage(metrics.StageBroadcast, time.Since(start), err)
		if err != nil {
			return solana.Signature{}, err
		}
		e.logger.Info("swap sent by wallet", zap.String("signature", sig.String()))
		return sig, nil
	}

	signer := w.(wallet.Signer)
	start := time.Now()
	err = signer.SignTransaction(ctx, tx)
	e.metrics.RecordStage(metrics.StageSign, time.Since(start), err)
	if err != nil {
		return solana.Signature{}, fmt.Errorf("sign transaction: %w", err)
	}

	raw, err := tx.MarshalBinary()
	if err != nil {
		return solana.Signature{}, fmt.Errorf("serialize transaction: %w", err)
	}
	return e.submit(ctx, raw)
}

// Broadcast submits an already signed base64 transaction.
func (e *Executor) Broadcast(ctx context.Context, signedB64 string) (solana.Signature, error) {
	if signedB64 == "" {
		return solana.Signature{}, domain.Invalid("signedTransaction", "")
	}
	raw, err := base64.StdEncoding.DecodeString(signedB64)
	if err != nil {
		return solana.Signature{}, domain.Invalid("signedTransaction", "not valid base64")
	}
	return e.submit(ctx, raw)
}

func (e *Executor) submit(ctx context.Context, raw []byte) (solana.Signature, error) {
	start := time.Now()
	sig, err := e.broadcaster.SubmitSignedTransaction(ctx, raw)
	e.metrics.RecordStage(metrics.StageBroadcast, time.Since(start), err)
	if err != nil {
		return solana.Signature{}, err
	}
	e.logger.Info("swap broadcast", zap.String("signature", sig.String()))
	return sig, nil
}

// internal/ledger/ledger.go
package ledger

import (
	"context"
	"errors"
	"strings"
	"unicode/utf8"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/memeswap/internal/domain"
	"github.com/rovshanmuradov/memeswap/internal/storage"
	"github.com/rovshanmuradov/memeswap/internal/utils/metrics"
)

const (
	DefaultHistoryLimit = 50
	MaxHistoryLimit     = 500
)

// Column widths of the swaps table (storage/models.Swap).
const (
	maxAddressLen   = 64
	maxSymbolLen    = 32
	maxSignatureLen = 100
)

func tooLong(s string, n int) bool {
	return utf8.RuneCountInString(s) > n
}

var bpsDivisor = decimal.NewFromInt(10_000)

// FeeFor returns amount × bps / 10000.
func FeeFor(amount decimal.Decimal, bps int) decimal.Decimal {
	return amount.Mul(decimal.NewFromInt(int64(bps))).Div(bpsDivisor)
}

// Service журнал свопов поверх хранилища.
type Service struct {
	store   storage.SwapStore
	feeBps  int
	metrics *metrics.Collector
	logger  *zap.Logger
}

func NewService(store storage.SwapStore, feeBps int, m *metrics.Collector, logger *zap.Logger) *Service {
	return &Service{
		store:   store,
		feeBps:  feeBps,
		metrics: m,
		logger:  logger.Named("ledger"),
	}
}

func validate(rec domain.SwapRecord) error {
	switch {
	case strings.TrimSpace(rec.WalletAddress) == "":
		return domain.Invalid("walletAddress", "")
	case strings.TrimSpace(rec.PaymentCurrency) == "":
		return domain.Invalid("paymentCurrency", "")
	case !rec.SwapAmount.IsPositive():
		return domain.Invalid("swapAmount", "must be greater than zero")
	case strings.TrimSpace(rec.TokenAddress) == "":
		return domain.Invalid("tokenAddress", "")
	case strings.TrimSpace(rec.TxSignature) == "":
		return domain.Invalid("txSignature", "")
	case rec.TokenAmount.IsNegative():
		return domain.Invalid("tokenAmount", "must not be negative")
	case rec.SwapType != "" && rec.SwapType != domain.SwapTypeBuy && rec.SwapType != domain.SwapTypeSell:
		return domain.Invalid("swapType", "must be buy or sell")
	case tooLong(rec.WalletAddress, maxAddressLen):
		return domain.Invalid("walletAddress", "too long")
	case tooLong(rec.PaymentCurrency, maxAddressLen):
		return domain.Invalid("paymentCurrency", "too long")
	case tooLong(rec.TokenAddress, maxAddressLen):
		return domain.Invalid("tokenAddress", "too long")
	case tooLong(rec.TokenSymbol, maxSymbolLen):
		return domain.Invalid("tokenSymbol", "at most 32 characters")
	case tooLong(rec.TxSignature, maxSignatureLen):
		return domain.Invalid("txSignature", "too long")
	}
	return nil
}

// RecordSwap validates and appends a swap. The fee is fixed at write time
// from the current rate; the status of a new record is always "submitted".
func (s *Service) RecordSwap(ctx context.Context, rec domain.SwapRecord) (*domain.SwapRecord, error) {
	if err := validate(rec); err != nil {
		return nil, err
	}

	if rec.SwapType == "" {
		rec.SwapType = domain.SwapTypeBuy
	}
	rec.FeeAmount = FeeFor(rec.SwapAmount, s.feeBps)
	rec.Status = domain.SwapSubmitted
	rec.ID = 0

	err := s.store.InsertSwap(ctx, &rec)
	s.metrics.RecordLedgerWrite(err)
	if err != nil {
		if !errors.Is(err, domain.ErrDuplicate) {
			s.logger.Error("failed to record swap",
				zap.String("tx_signature", rec.TxSignature),
				zap.String("wallet", rec.WalletAddress),
				zap.Error(err))
		}
		return nil, err
	}

	s.logger.Info("swap recorded",
		zap.Uint64("id", rec.ID),
		zap.String("tx_signature", rec.TxSignature),
		zap.String("fee", rec.FeeAmount.String()))
	return &rec, nil
}

// QueryHistory returns swaps newest first. Wallet "all" lists every wallet.
func (s *Service) QueryHistory(ctx context.Context, f domain.HistoryFilter) ([]domain.SwapRecord, error) {
	if f.WalletAddress == "" {
		return nil, domain.Invalid("wallet", "")
	}
	switch {
	case f.Limit <= 0:
		f.Limit = DefaultHistoryLimit
	case f.Limit > MaxHistoryLimit:
		f.Limit = MaxHistoryLimit
	}
	return s.store.ListSwaps(ctx, f)
}

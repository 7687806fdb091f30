// internal/quote/engine.go
package quote

import (
	"context"
	"sync"
	"time"

	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/memeswap/internal/domain"
	"github.com/rovshanmuradov/memeswap/internal/jupiter"
	"github.com/rovshanmuradov/memeswap/internal/utils/metrics"
)

const (
	DefaultSlippageBps    = 300
	DefaultPlatformFeeBps = 100
	maxSlippageBps        = 10_000
)

// Aggregator prices a swap route.
type Aggregator interface {
	Quote(ctx context.Context, req jupiter.QuoteRequest) (*domain.Quote, error)
}

// DecimalsResolver reads a mint's decimals from chain.
type DecimalsResolver interface {
	GetMintDecimals(ctx context.Context, mint solana.PublicKey) (uint8, error)
}

// Config for the engine. FeeAccounts maps an input mint to the account
// that collects the platform fee for it.
type Config struct {
	PlatformFeeBps     int
	DefaultSlippageBps int
	FeeAccounts        map[string]string
	Timeout            time.Duration
}

// Engine normalizes trade intents and fetches routed quotes.
type Engine struct {
	aggregator Aggregator
	resolver   DecimalsResolver
	cfg        Config

	decimals sync.Map // mint -> uint8

	metrics *metrics.Collector
	logger  *zap.Logger
}

func NewEngine(agg Aggregator, resolver DecimalsResolver, cfg Config, m *metrics.Collector, logger *zap.Logger) *Engine {
	if cfg.PlatformFeeBps <= 0 {
		cfg.PlatformFeeBps = DefaultPlatformFeeBps
	}
	if cfg.DefaultSlippageBps <= 0 {
		cfg.DefaultSlippageBps = DefaultSlippageBps
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	return &Engine{
		aggregator: agg,
		resolver:   resolver,
		cfg:        cfg,
		metrics:    m,
		logger:     logger.Named("quote-engine"),
	}
}

// FeeBps is the platform fee rate applied to quotes and ledger entries.
func (e *Engine) FeeBps() int { return e.cfg.PlatformFeeBps }

// DefaultSlippage applies when a request does not name one.
func (e *Engine) DefaultSlippage() int { return e.cfg.DefaultSlippageBps }

// Decimals возвращает количество знаков минта: 9 для SOL, 6 для USDC,
// для остальных читает из сети и кэширует. При ошибке 6.
func (e *Engine) Decimals(ctx context.Context, mint string) uint8 {
	switch mint {
	case domain.NativeMint:
		return domain.NativeDecimals
	case domain.USDCMint:
		return domain.USDCDecimals
	}
	if v, ok := e.decimals.Load(mint); ok {
		return v.(uint8)
	}
	if e.resolver == nil {
		return domain.DefaultDecimals
	}

	pk, err := solana.PublicKeyFromBase58(mint)
	if err != nil {
		return domain.DefaultDecimals
	}
	d, err := e.resolver.GetMintDecimals(ctx, pk)
	if err != nil {
		e.logger.Warn("mint decimals lookup failed, using default",
			zap.String("mint", mint), zap.Error(err))
		return domain.DefaultDecimals
	}
	e.decimals.Store(mint, d)
	return d
}

// ParamsFor converts a trade intent into exact aggregator parameters.
func (e *Engine) ParamsFor(ctx context.Context, intent domain.TradeIntent) (domain.QuoteParams, error) {
	if intent.Direction != domain.DirectionBuy && intent.Direction != domain.DirectionSell {
		return domain.QuoteParams{}, domain.Invalid("direction", "must be buy or sell")
	}
	if intent.PayMint == "" {
		return domain.QuoteParams{}, domain.Invalid("payMint", "")
	}
	if intent.TokenMint == "" {
		return domain.QuoteParams{}, domain.Invalid("tokenMint", "")
	}
	input, output := intent.Mints()

	amount, err := ToBaseUnits(intent.Amount, e.Decimals(ctx, input))
	if err != nil {
		return domain.QuoteParams{}, err
	}
	slippage := intent.SlippageBps
	if slippage == 0 {
		slippage = e.cfg.DefaultSlippageBps
	}
	return domain.QuoteParams{
		InputMint:   input,
		OutputMint:  output,
		Amount:      amount,
		SlippageBps: slippage,
	}, nil
}

func validateParams(p domain.QuoteParams) error {
	switch {
	case p.InputMint == "":
		return domain.Invalid("inputMint", "")
	case p.OutputMint == "":
		return domain.Invalid("outputMint", "")
	case p.InputMint == p.OutputMint:
		return domain.Invalid("outputMint", "must differ from inputMint")
	case p.Amount == 0:
		return domain.Invalid("amount", "must be greater than zero")
	case p.SlippageBps < 0 || p.SlippageBps > maxSlippageBps:
		return domain.Invalid("slippageBps", "must be between 0 and 10000")
	}
	return nil
}

// Request fetches a quote. A platform fee is requested only when the input
// mint has a configured collection account.
func (e *Engine) Request(ctx context.Context, p domain.QuoteParams) (*domain.Quote, error) {
	if err := validateParams(p); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, e.cfg.Timeout)
	defer cancel()

	req := jupiter.QuoteRequest{
		InputMint:   p.InputMint,
		OutputMint:  p.OutputMint,
		Amount:      p.Amount,
		SlippageBps: p.SlippageBps,
	}
	feeAccount, hasFee := e.cfg.FeeAccounts[p.InputMint]
	if hasFee && feeAccount != "" {
		req.PlatformFeeBps = e.cfg.PlatformFeeBps
	}

	start := time.Now()
	q, err := e.aggregator.Quote(ctx, req)
	e.metrics.RecordStage(metrics.StageQuote, time.Since(start), err)
	if err != nil {
		e.metrics.RecordQuote("error")
		return nil, err
	}
	if q == nil {
		e.metrics.RecordQuote("empty")
		return nil, domain.ErrNoQuote
	}
	if req.PlatformFeeBps > 0 {
		q.PlatformFeeAccount = feeAccount
	}
	q.Params = p
	e.metrics.RecordQuote("ok")
	return q, nil
}

// internal/swap/pipeline.go
package swap

import (
	"context"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/memeswap/internal/domain"
	"github.com/rovshanmuradov/memeswap/internal/quote"
	"github.com/rovshanmuradov/memeswap/internal/utils/metrics"
	"github.com/rovshanmuradov/memeswap/internal/wallet"
)

const persistTimeout = 10 * time.Second

// QuoteSource is the part of quote.Engine the pipeline needs.
type QuoteSource interface {
	ParamsFor(ctx context.Context, intent domain.TradeIntent) (domain.QuoteParams, error)
	Request(ctx context.Context, p domain.QuoteParams) (*domain.Quote, error)
	Decimals(ctx context.Context, mint string) uint8
}

// Recorder persists submitted swaps.
type Recorder interface {
	RecordSwap(ctx context.Context, rec domain.SwapRecord) (*domain.SwapRecord, error)
}

// Trade is a trade intent plus what the ledger needs to describe it.
type Trade struct {
	Intent      domain.TradeIntent
	TokenSymbol string
	TokenPrice  decimal.Decimal
}

// Result of a swap. LedgerErr is set when the trade went out but could not
// be written to history; the swap itself still succeeded.
type Result struct {
	Signature solana.Signature
	Quote     *domain.Quote
	Record    *domain.SwapRecord
	LedgerErr error
}

// Pipeline runs quote → build → sign → broadcast → persist strictly in order.
type Pipeline struct {
	quotes   QuoteSource
	builder  *Builder
	executor *Executor
	ledger   Recorder
	metrics  *metrics.Collector
	logger   *zap.Logger
}

func NewPipeline(q QuoteSource, b *Builder, e *Executor, l Recorder, m *metrics.Collector, logger *zap.Logger) *Pipeline {
	return &Pipeline{
		quotes:   q,
		builder:  b,
		executor: e,
		ledger:   l,
		metrics:  m,
		logger:   logger.Named("swap-pipeline"),
	}
}

// Run quotes the trade and executes it.
func (p *Pipeline) Run(ctx context.Context, w wallet.Wallet, t Trade) (*Result, error) {
	if !CanSign(w) {
		return nil, domain.ErrWalletCannotSign
	}
	params, err := p.quotes.ParamsFor(ctx, t.Intent)
	if err != nil {
		return nil, err
	}
	q, err := p.quotes.Request(ctx, params)
	if err != nil {
		return nil, err
	}
	return p.Execute(ctx, w, t, q)
}

// Execute runs an already accepted quote. The quote must have been priced
// for exactly the trade's current parameters.
func (p *Pipeline) Execute(ctx context.Context, w wallet.Wallet, t Trade, q *domain.Quote) (*Result, error) {
	if !CanSign(w) {
		return nil, domain.ErrWalletCannotSign
	}
	if q == nil {
		return nil, domain.ErrNoQuote
	}
	params, err := p.quotes.ParamsFor(ctx, t.Intent)
	if err != nil {
		return nil, err
	}
	if !q.Matches(params) {
		return nil, domain.ErrQuoteStale
	}

	logger := p.logger.With(
		zap.String("wallet", w.PublicKey().String()),
		zap.String("input_mint", params.InputMint),
		zap.String("output_mint", params.OutputMint),
	)

	unsigned, err := p.builder.BuildQuote(ctx, q, w.PublicKey())
	if err != nil {
		return nil, err
	}

	sig, err := p.executor.Execute(ctx, w, unsigned)
	if err != nil {
		logger.Error("swap failed", zap.Error(err))
		return nil, err
	}

	res := &Result{Signature: sig, Quote: q}

	rec, err := p.record(ctx, w, t, q, sig)
	if err != nil {
		// своп уже в сети, ошибка журнала не делает его неудачным
		logger.Error("swap sent but not recorded in history",
			zap.String("signature", sig.String()),
			zap.Error(err))
		res.LedgerErr = err
		return res, nil
	}
	res.Record = rec
	logger.Info("swap submitted", zap.String("signature", sig.String()), zap.Uint64("record_id", rec.ID))
	return res, nil
}

func (p *Pipeline) record(ctx context.Context, w wallet.Wallet, t Trade, q *domain.Quote, sig solana.Signature) (*domain.SwapRecord, error) {
	payDec := p.quotes.Decimals(ctx, t.Intent.PayMint)
	tokenDec := p.quotes.Decimals(ctx, t.Intent.TokenMint)

	payRaw, tokenRaw := q.InAmount, q.OutAmount
	swapType := domain.SwapTypeBuy
	if t.Intent.Direction == domain.DirectionSell {
		payRaw, tokenRaw = q.OutAmount, q.InAmount
		swapType = domain.SwapTypeSell
	}
	payAmount, err := quote.ParseBaseUnits(payRaw, payDec)
	if err != nil {
		return nil, err
	}
	tokenAmount, err := quote.ParseBaseUnits(tokenRaw, tokenDec)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), persistTimeout)
	defer cancel()

	start := time.Now()
	rec, err := p.ledger.RecordSwap(ctx, domain.SwapRecord{
		WalletAddress:    w.PublicKey().String(),
		PaymentCurrency:  domain.CurrencySymbol(t.Intent.PayMint),
		SwapAmount:       payAmount,
		TokenAddress:     t.Intent.TokenMint,
		TokenSymbol:      t.TokenSymbol,
		TokenAmount:      tokenAmount,
		TokenPriceAtSwap: t.TokenPrice,
		TxSignature:      sig.String(),
		SwapType:         swapType,
	})
	p.metrics.RecordStage(metrics.StagePersist, time.Since(start), err)
	return rec, err
}

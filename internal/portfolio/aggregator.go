// internal/portfolio/aggregator.go
package portfolio

import (
	"context"
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/rovshanmuradov/memeswap/internal/blockchain"
	"github.com/rovshanmuradov/memeswap/internal/domain"
	"github.com/rovshanmuradov/memeswap/internal/wallet"
)

// BalanceSource is the on-chain half of blockchain.Client.
type BalanceSource interface {
	GetBalance(ctx context.Context, owner solana.PublicKey) (uint64, error)
	GetTokenBalances(ctx context.Context, owner solana.PublicKey) (map[string]blockchain.TokenBalance, error)
}

// MarketSource returns snapshots keyed by TrackedToken.Key().
type MarketSource interface {
	Batch(ctx context.Context, tokens []domain.TrackedToken) map[string]domain.MarketSnapshot
}

type SolPricer interface {
	SolPrice(ctx context.Context, fallback float64) float64
}

type TokenLister interface {
	ListTokens(ctx context.Context, category domain.Category) ([]domain.TrackedToken, error)
}

// Aggregator собирает балансы кошелька и оценивает портфель.
type Aggregator struct {
	chain       BalanceSource
	tokens      TokenLister
	market      MarketSource
	sol         SolPricer
	solFallback float64
	logger      *zap.Logger
}

func NewAggregator(chain BalanceSource, tokens TokenLister, market MarketSource, sol SolPricer, solFallback float64, logger *zap.Logger) *Aggregator {
	return &Aggregator{
		chain:       chain,
		tokens:      tokens,
		market:      market,
		sol:         sol,
		solFallback: solFallback,
		logger:      logger.Named("portfolio"),
	}
}

// parseWallet: портфель только читает кошелёк, ключ ему не нужен.
func parseWallet(addr string) (wallet.WatchOnly, error) {
	if addr == "" {
		return wallet.WatchOnly{}, domain.Invalid("wallet", "")
	}
	pk, err := solana.PublicKeyFromBase58(addr)
	if err != nil {
		return wallet.WatchOnly{}, domain.Invalid("wallet", "not a valid solana address")
	}
	return wallet.WatchOnly(pk), nil
}

// GetAllBalances returns display-unit balances for SOL, USDC and every
// tracked Solana token, using one SOL call and one SPL call.
func (a *Aggregator) GetAllBalances(ctx context.Context, addr string) (map[string]decimal.Decimal, error) {
	w, err := parseWallet(addr)
	if err != nil {
		return nil, err
	}
	balances, _, err := a.loadBalances(ctx, w)
	return balances, err
}

// loadBalances also returns the tracked list it filtered against, so callers
// that need token metadata do not list the registry twice.
func (a *Aggregator) loadBalances(ctx context.Context, w wallet.Wallet) (map[string]decimal.Decimal, []domain.TrackedToken, error) {
	owner := w.PublicKey()

	var (
		lamports uint64
		spl      map[string]blockchain.TokenBalance
		tracked  []domain.TrackedToken
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		lamports, err = a.chain.GetBalance(gctx, owner)
		if err != nil {
			return fmt.Errorf("sol balance: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		spl, err = a.chain.GetTokenBalances(gctx, owner)
		if err != nil {
			return fmt.Errorf("token balances: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		tracked, err = a.tokens.ListTokens(gctx, "")
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	out := map[string]decimal.Decimal{
		domain.NativeMint: decimal.NewFromUint64(lamports).Shift(-domain.NativeDecimals),
		domain.USDCMint:   spl[domain.USDCMint].UI(),
	}
	for _, t := range tracked {
		if t.Chain != domain.ChainSolana && t.Chain != "" {
			continue
		}
		if _, done := out[t.Address]; done {
			continue
		}
		out[t.Address] = spl[t.Address].UI()
	}
	return out, tracked, nil
}

// GetBalance returns a single mint's balance. An empty mint or wSOL means native SOL.
func (a *Aggregator) GetBalance(ctx context.Context, addr, mint string) (decimal.Decimal, error) {
	w, err := parseWallet(addr)
	if err != nil {
		return decimal.Zero, err
	}
	owner := w.PublicKey()
	if mint == "" || mint == domain.NativeMint {
		lamports, err := a.chain.GetBalance(ctx, owner)
		if err != nil {
			return decimal.Zero, err
		}
		return decimal.NewFromUint64(lamports).Shift(-domain.NativeDecimals), nil
	}
	if _, err := solana.PublicKeyFromBase58(mint); err != nil {
		return decimal.Zero, domain.Invalid("mint", "not a valid solana address")
	}
	spl, err := a.chain.GetTokenBalances(ctx, owner)
	if err != nil {
		return decimal.Zero, err
	}
	return spl[mint].UI(), nil
}

// Portfolio fetches balances and prices and builds the valued holdings list.
func (a *Aggregator) Portfolio(ctx context.Context, addr string) (*domain.Portfolio, error) {
	w, err := parseWallet(addr)
	if err != nil {
		return nil, err
	}
	balances, tracked, err := a.loadBalances(ctx, w)
	if err != nil {
		return nil, err
	}

	// цены нужны только для того, что реально лежит в кошельке
	held := make([]domain.TrackedToken, 0)
	for _, t := range tracked {
		if b, ok := balances[t.Address]; ok && b.IsPositive() {
			held = append(held, t)
		}
	}

	var (
		snaps    map[string]domain.MarketSnapshot
		solPrice float64
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		snaps = a.market.Batch(gctx, held)
		return nil
	})
	g.Go(func() error {
		solPrice = a.sol.SolPrice(gctx, a.solFallback)
		return nil
	})
	_ = g.Wait()

	prices := make(map[string]domain.PriceInfo, len(held))
	for _, t := range held {
		snap, ok := snaps[t.Key()]
		if !ok || !snap.HasPrice() {
			continue
		}
		change := snap.Change24h
		prices[t.Address] = domain.PriceInfo{Price: snap.Price, Change24h: &change}
	}

	p := Build(Input{
		Wallet:   addr,
		Balances: balances,
		Tokens:   held,
		Prices:   prices,
		SolPrice: solPrice,
	})
	a.logger.Debug("portfolio built",
		zap.String("wallet", addr),
		zap.Int("holdings", len(p.Holdings)),
		zap.Float64("total_usd", p.TotalValue))
	return &p, nil
}

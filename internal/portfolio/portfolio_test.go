package portfolio

import (
	"context"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/memeswap/internal/blockchain"
	"github.com/rovshanmuradov/memeswap/internal/domain"
)

func ptr(v float64) *float64 { return &v }

func TestBuildKeepsReferenceAssetsAndDropsZeroBalances(t *testing.T) {
	p := Build(Input{
		Wallet:   "w",
		Balances: map[string]decimal.Decimal{"A": decimal.Zero},
		Tokens:   []domain.TrackedToken{{Address: "A", Symbol: "AAA", ATHPrice: 1}},
		Prices:   map[string]domain.PriceInfo{"A": {Price: 0.5}},
		SolPrice: 150,
	})

	require.Len(t, p.Holdings, 2)
	syms := []string{p.Holdings[0].Symbol, p.Holdings[1].Symbol}
	assert.ElementsMatch(t, []string{"SOL", "USDC"}, syms)
	assert.Zero(t, p.TotalValue)
	assert.Nil(t, p.Change24h)
	assert.Equal(t, 0.0, p.Multiplier)
}

func TestBuildValuesAndSorts(t *testing.T) {
	p := Build(Input{
		Balances: map[string]decimal.Decimal{
			domain.NativeMint: decimal.RequireFromString("2"),
			domain.USDCMint:   decimal.RequireFromString("50"),
			"A":               decimal.RequireFromString("1000"),
			"B":               decimal.RequireFromString("10"),
		},
		Tokens: []domain.TrackedToken{
			{Address: "A", Symbol: "AAA", ATHPrice: 2},
			{Address: "B", Symbol: "BBB"},
		},
		Prices: map[string]domain.PriceInfo{
			"A": {Price: 0.5, Change24h: ptr(10)},
			"B": {Price: 20, Change24h: ptr(-20)},
		},
		SolPrice: 100,
	})

	require.Len(t, p.Holdings, 4)
	assert.Equal(t, []string{"AAA", "SOL", "BBB", "USDC"}, []string{
		p.Holdings[0].Symbol, p.Holdings[1].Symbol, p.Holdings[2].Symbol, p.Holdings[3].Symbol,
	})

	a := p.Holdings[0]
	assert.Equal(t, 500.0, a.USDValue)
	assert.Equal(t, 2000.0, a.ATHValue)
	assert.Equal(t, 4.0, a.Multiplier)

	b := p.Holdings[2]
	assert.Zero(t, b.ATHValue)
	assert.Equal(t, 1.0, b.Multiplier)

	assert.Equal(t, 950.0, p.TotalValue)
	// ATH total falls back to usd value for holdings without ATH
	assert.Equal(t, 2000.0+200+200+50, p.TotalATHValue)
	require.NotNil(t, p.Change24h)
	// (10*500 - 20*200) / 700
	assert.InDelta(t, 1000.0/700.0, *p.Change24h, 1e-9)
}

type fakeChain struct {
	lamports uint64
	spl      map[string]blockchain.TokenBalance
	splCalls int
}

func (f *fakeChain) GetBalance(context.Context, solana.PublicKey) (uint64, error) {
	return f.lamports, nil
}

func (f *fakeChain) GetTokenBalances(context.Context, solana.PublicKey) (map[string]blockchain.TokenBalance, error) {
	f.splCalls++
	return f.spl, nil
}

type fakeTokens []domain.TrackedToken

func (f fakeTokens) ListTokens(context.Context, domain.Category) ([]domain.TrackedToken, error) {
	return f, nil
}

type fakeMarket struct {
	snaps map[string]domain.MarketSnapshot
	asked []domain.TrackedToken
}

func (f *fakeMarket) Batch(_ context.Context, tokens []domain.TrackedToken) map[string]domain.MarketSnapshot {
	f.asked = tokens
	return f.snaps
}

type fixedSol float64

func (s fixedSol) SolPrice(context.Context, float64) float64 { return float64(s) }

func TestAggregatorPortfolio(t *testing.T) {
	held := solana.NewWallet().PublicKey().String()
	empty := solana.NewWallet().PublicKey().String()
	noPrice := solana.NewWallet().PublicKey().String()

	chain := &fakeChain{
		lamports: 1_500_000_000,
		spl: map[string]blockchain.TokenBalance{
			held:    {Mint: held, Amount: 2_000_000, Decimals: 6},
			noPrice: {Mint: noPrice, Amount: 5, Decimals: 0},
		},
	}
	tokens := fakeTokens{
		{Address: held, Symbol: "HLD", Chain: domain.ChainSolana, ATHPrice: 10},
		{Address: empty, Symbol: "EMP", Chain: domain.ChainSolana},
		{Address: noPrice, Symbol: "NOP", Chain: domain.ChainSolana},
		{Address: "0x6982508145454Ce325dDbE47a25d4ec3d2311933", Symbol: "PEPE", Chain: domain.ChainEthereum},
	}
	market := &fakeMarket{snaps: map[string]domain.MarketSnapshot{
		tokens[0].Key(): {Price: 5, Change24h: 4},
	}}
	agg := NewAggregator(chain, tokens, market, fixedSol(100), 150, zap.NewNop())
	wallet := solana.NewWallet().PublicKey().String()

	balances, err := agg.GetAllBalances(context.Background(), wallet)
	require.NoError(t, err)
	assert.Equal(t, "1.5", balances[domain.NativeMint].String())
	assert.True(t, balances[domain.USDCMint].IsZero())
	assert.Equal(t, "2", balances[held].String())
	assert.True(t, balances[empty].IsZero())
	assert.NotContains(t, balances, tokens[3].Address)
	assert.Equal(t, 1, chain.splCalls)

	p, err := agg.Portfolio(context.Background(), wallet)
	require.NoError(t, err)
	assert.Len(t, market.asked, 2)

	bySymbol := map[string]domain.Holding{}
	for _, h := range p.Holdings {
		bySymbol[h.Symbol] = h
	}
	assert.Len(t, bySymbol, 4)
	assert.NotContains(t, bySymbol, "EMP")
	assert.Equal(t, 150.0, bySymbol["SOL"].USDValue)
	assert.Equal(t, 10.0, bySymbol["HLD"].USDValue)
	assert.Nil(t, bySymbol["NOP"].Change24h)
	require.NotNil(t, p.Change24h)
	assert.InDelta(t, 4.0, *p.Change24h, 1e-9)
}

func TestAggregatorRejectsBadWallet(t *testing.T) {
	agg := NewAggregator(&fakeChain{}, fakeTokens{}, &fakeMarket{}, fixedSol(1), 1, zap.NewNop())
	_, err := agg.GetAllBalances(context.Background(), "not a wallet")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
	_, err = agg.GetBalance(context.Background(), "", "")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestAggregatorSingleBalance(t *testing.T) {
	mint := solana.NewWallet().PublicKey().String()
	chain := &fakeChain{lamports: 10, spl: map[string]blockchain.TokenBalance{mint: {Amount: 1234, Decimals: 2}}}
	agg := NewAggregator(chain, fakeTokens{}, &fakeMarket{}, fixedSol(1), 1, zap.NewNop())
	wallet := solana.NewWallet().PublicKey().String()

	sol, err := agg.GetBalance(context.Background(), wallet, "")
	require.NoError(t, err)
	assert.Equal(t, "0.00000001", sol.String())

	tok, err := agg.GetBalance(context.Background(), wallet, mint)
	require.NoError(t, err)
	assert.Equal(t, "12.34", tok.String())
}

type countingTokens struct {
	fakeTokens
	calls int
}

func (c *countingTokens) ListTokens(ctx context.Context, cat domain.Category) ([]domain.TrackedToken, error) {
	c.calls++
	return c.fakeTokens.ListTokens(ctx, cat)
}

func TestAggregatorPortfolioListsTokensOnce(t *testing.T) {
	mint := solana.NewWallet().PublicKey().String()
	chain := &fakeChain{spl: map[string]blockchain.TokenBalance{mint: {Mint: mint, Amount: 7, Decimals: 0}}}
	tokens := &countingTokens{fakeTokens: fakeTokens{{Address: mint, Symbol: "ONE", Chain: domain.ChainSolana}}}
	agg := NewAggregator(chain, tokens, &fakeMarket{}, fixedSol(1), 1, zap.NewNop())

	p, err := agg.Portfolio(context.Background(), solana.NewWallet().PublicKey().String())
	require.NoError(t, err)
	assert.Equal(t, 1, tokens.calls)
	assert.Equal(t, 1, chain.splCalls)
	assert.NotEmpty(t, p.Holdings)
}

func TestParseWalletIsWatchOnly(t *testing.T) {
	pk := solana.NewWallet().PublicKey()
	w, err := parseWallet(pk.String())
	require.NoError(t, err)
	assert.Equal(t, pk, w.PublicKey())
}

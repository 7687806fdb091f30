package marketdata

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/memeswap/internal/domain"
)

func TestNumberCoercion(t *testing.T) {
	var p Pair
	raw := `{"pairAddress":"P1","priceUsd":"0.0000123","priceChange":{"h1":"abc","h24":-4.5},
		"volume":{"h24":"12.5"},"fdv":null}`
	require.NoError(t, json.Unmarshal([]byte(raw), &p))

	snap := p.Snapshot()
	assert.Equal(t, domain.MarketSnapshot{
		PairAddress: "P1",
		Price:       0.0000123,
		Change1h:    0,
		Change24h:   -4.5,
		Volume24h:   12.5,
		MarketCap:   0,
		Liquidity:   0,
	}, snap)
}

func TestNumberRejectsNaN(t *testing.T) {
	var n Number
	require.NoError(t, json.Unmarshal([]byte(`"NaN"`), &n))
	assert.Zero(t, float64(n))
	require.NoError(t, json.Unmarshal([]byte(`"+Inf"`), &n))
	assert.Zero(t, float64(n))
}

func TestMostLiquid(t *testing.T) {
	liq := func(v float64) *LiquidityInfo { return &LiquidityInfo{USD: Number(v)} }

	pairs := []Pair{
		{PairAddress: "a", Liquidity: liq(10)},
		{PairAddress: "b", Liquidity: liq(50)},
		{PairAddress: "c", Liquidity: liq(50)},
	}
	assert.Equal(t, "b", MostLiquid(pairs).PairAddress)

	noLiquidity := []Pair{{PairAddress: "x"}, {PairAddress: "y"}}
	assert.Equal(t, "x", MostLiquid(noLiquidity).PairAddress)

	assert.Nil(t, MostLiquid(nil))
}

func newTestDexScreener(t *testing.T, handler http.HandlerFunc) *DexScreener {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewDexScreener(srv.URL, 5*time.Second, nil, zap.NewNop())
}

func TestDexScreenerPairByAddress(t *testing.T) {
	ds := newTestDexScreener(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/latest/dex/pairs/solana/PAIR1", r.URL.Path)
		fmt.Fprint(w, `{"schemaVersion":"1.0.0","pair":{"pairAddress":"PAIR1","priceUsd":"1.5",
			"priceChange":{"h1":1,"h24":2},"volume":{"h24":300},"fdv":4000,"liquidity":{"usd":500}}}`)
	})

	pair, err := ds.PairByAddress(context.Background(), "solana", "PAIR1")
	require.NoError(t, err)
	require.NotNil(t, pair)

	assert.Equal(t, domain.MarketSnapshot{
		PairAddress: "PAIR1", Price: 1.5, Change1h: 1, Change24h: 2,
		Volume24h: 300, MarketCap: 4000, Liquidity: 500,
	}, pair.Snapshot())
}

func TestDexScreenerUnknownPair(t *testing.T) {
	ds := newTestDexScreener(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"schemaVersion":"1.0.0","pair":null,"pairs":null}`)
	})

	pair, err := ds.PairByAddress(context.Background(), "solana", "nope")
	require.NoError(t, err)
	assert.Nil(t, pair)
}

func TestDexScreenerErrorStatus(t *testing.T) {
	ds := newTestDexScreener(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		fmt.Fprint(w, "slow down")
	})

	_, err := ds.PairsByToken(context.Background(), "TOKEN")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "429")
	assert.Contains(t, err.Error(), "slow down")
}

func TestDexScreenerTokensBatch(t *testing.T) {
	ds := newTestDexScreener(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/tokens/v1/solana/A,B", r.URL.Path)
		fmt.Fprint(w, `[{"pairAddress":"p1","baseToken":{"address":"A"}},{"pairAddress":"p2","baseToken":{"address":"B"}}]`)
	})

	pairs, err := ds.TokensBatch(context.Background(), "solana", []string{"A", "B"})
	require.NoError(t, err)
	assert.Len(t, pairs, 2)

	_, err = ds.TokensBatch(context.Background(), "solana", make([]string, BatchLimit+1))
	assert.Error(t, err)
}

type fakeSource struct {
	mu           sync.Mutex
	pairs        map[string]Pair
	tokenPairs   map[string][]Pair
	pairBatches  [][]string
	tokenBatches [][]string
	singleCalls  int
	failChain    string
}

func newFakeSource() *fakeSource {
	return &fakeSource{pairs: map[string]Pair{}, tokenPairs: map[string][]Pair{}}
}

func (f *fakeSource) PairByAddress(_ context.Context, _ string, pairAddress string) (*Pair, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.singleCalls++
	p, ok := f.pairs[pairAddress]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (f *fakeSource) PairsByToken(_ context.Context, tokenAddress string) ([]Pair, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.singleCalls++
	return f.tokenPairs[tokenAddress], nil
}

func (f *fakeSource) PairsBatch(_ context.Context, chain string, addrs []string) ([]Pair, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pairBatches = append(f.pairBatches, append([]string(nil), addrs...))
	if chain == f.failChain {
		return nil, errors.New("provider down")
	}
	var out []Pair
	for _, a := range addrs {
		if p, ok := f.pairs[a]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

func (f *fakeSource) TokensBatch(_ context.Context, chain string, addrs []string) ([]Pair, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tokenBatches = append(f.tokenBatches, append([]string(nil), addrs...))
	if chain == f.failChain {
		return nil, errors.New("provider down")
	}
	var out []Pair
	for _, a := range addrs {
		out = append(out, f.tokenPairs[a]...)
	}
	return out, nil
}

func pairFor(token, pairAddr string, price, liquidity float64) Pair {
	return Pair{
		PairAddress: pairAddr,
		BaseToken:   TokenInfo{Address: token},
		PriceUSD:    Number(price),
		Liquidity:   &LiquidityInfo{USD: Number(liquidity)},
	}
}

func TestNormalizerFetchByToken(t *testing.T) {
	src := newFakeSource()
	src.tokenPairs["TOK"] = []Pair{
		pairFor("TOK", "small", 1, 10),
		pairFor("TOK", "big", 2, 1000),
	}
	n := NewNormalizer(src, NewMemoryCache(time.Minute), zap.NewNop())

	snap, err := n.Fetch(context.Background(), "TOK", false, domain.ChainSolana)
	require.NoError(t, err)
	require.NotNil(t, snap)
	assert.Equal(t, "big", snap.PairAddress)
	assert.Equal(t, 2.0, snap.Price)

	// второй вызов идет из кэша
	again, err := n.Fetch(context.Background(), "TOK", false, domain.ChainSolana)
	require.NoError(t, err)
	assert.Equal(t, snap, again)
	assert.Equal(t, 1, src.singleCalls)
}

func TestNormalizerIdempotent(t *testing.T) {
	src := newFakeSource()
	src.pairs["P"] = pairFor("TOK", "P", 0.5, 99)
	n := NewNormalizer(src, nil, zap.NewNop())
	tok := domain.TrackedToken{Address: "TOK", PairAddress: "P"}

	a, err := json.Marshal(n.GetMarketData(context.Background(), tok))
	require.NoError(t, err)
	b, err := json.Marshal(n.GetMarketData(context.Background(), tok))
	require.NoError(t, err)
	assert.Equal(t, a, b)
	assert.Equal(t, 2, src.singleCalls)
}

func TestNormalizerBatchChunking(t *testing.T) {
	src := newFakeSource()
	var tokens []domain.TrackedToken

	for i := 0; i < 65; i++ {
		addr := fmt.Sprintf("SolTok%02d", i)
		src.tokenPairs[addr] = []Pair{pairFor(addr, "pair-"+addr, float64(i+1), 100)}
		tokens = append(tokens, domain.TrackedToken{Address: addr, Chain: domain.ChainSolana})
	}
	for i := 0; i < 3; i++ {
		pa := fmt.Sprintf("PairAddr%d", i)
		src.pairs[pa] = pairFor(fmt.Sprintf("Paired%d", i), pa, 7, 1)
		tokens = append(tokens, domain.TrackedToken{Address: fmt.Sprintf("Paired%d", i), PairAddress: pa})
	}
	eth := "0xAbCdEf0000000000000000000000000000000001"
	src.tokenPairs[eth] = []Pair{pairFor(eth, "0xpair", 3, 5)}
	tokens = append(tokens, domain.TrackedToken{Address: eth, Chain: domain.ChainEthereum})

	n := NewNormalizer(src, nil, zap.NewNop())
	result := n.Batch(context.Background(), tokens)

	assert.Len(t, src.tokenBatches, 4) // 30 + 30 + 5 solana, 1 ethereum
	assert.Len(t, src.pairBatches, 1)
	for _, b := range append(src.tokenBatches, src.pairBatches...) {
		assert.LessOrEqual(t, len(b), BatchLimit)
	}

	assert.Len(t, result, len(tokens))
	for _, tok := range tokens {
		_, ok := result[tok.Key()]
		assert.True(t, ok, tok.Address)
	}
	assert.Equal(t, 3.0, result[strings.ToLower(eth)].Price)
	assert.Equal(t, 7.0, result["pairaddr1"].Price)
}

func TestNormalizerBatchChunkFailureIsLocal(t *testing.T) {
	src := newFakeSource()
	src.failChain = "ethereum"
	src.tokenPairs["SOLX"] = []Pair{pairFor("SOLX", "p", 1, 1)}

	n := NewNormalizer(src, nil, zap.NewNop())
	result := n.Batch(context.Background(), []domain.TrackedToken{
		{Address: "SOLX", Chain: domain.ChainSolana},
		{Address: "0x01", Chain: domain.ChainEthereum},
	})

	assert.Len(t, result, 1)
	assert.Contains(t, result, "solx")
}

func TestMemoryCacheExpiry(t *testing.T) {
	c := NewMemoryCache(time.Minute)
	now := time.Now()
	c.now = func() time.Time { return now }

	require.NoError(t, c.Set(context.Background(), "k", domain.MarketSnapshot{Price: 1}))
	_, ok := c.Get(context.Background(), "k")
	assert.True(t, ok)

	now = now.Add(2 * time.Minute)
	_, ok = c.Get(context.Background(), "k")
	assert.False(t, ok)
}

type staticTokens []domain.TrackedToken

func (s staticTokens) ListTokens(context.Context, domain.Category) ([]domain.TrackedToken, error) {
	return s, nil
}

func TestPollerLatestStartedWins(t *testing.T) {
	src := newFakeSource()
	src.tokenPairs["A"] = []Pair{pairFor("A", "pa", 1, 1)}
	p := NewPoller(staticTokens{{Address: "A"}}, NewNormalizer(src, nil, zap.NewNop()), time.Minute, time.Second, zap.NewNop())

	first, err := p.Refresh(context.Background())
	require.NoError(t, err)
	second, err := p.Refresh(context.Background())
	require.NoError(t, err)

	// an older refresh finishing late must not overwrite the newer one
	p.apply(first)
	assert.Equal(t, second.seq, p.Latest().seq)
	require.Len(t, p.Latest().Views, 1)
	assert.Equal(t, 1.0, p.Latest().Views[0].Market.Price)
}

func TestCoinGeckoSolPrice(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "solana", r.URL.Query().Get("ids"))
		fmt.Fprint(w, `{"solana":{"usd":172.35}}`)
	}))
	defer srv.Close()

	cg := NewCoinGecko(srv.URL, "", time.Second, nil, zap.NewNop())
	assert.Equal(t, 172.35, cg.SolPrice(context.Background(), 150))

	down := NewCoinGecko("http://127.0.0.1:1", "", 200*time.Millisecond, nil, zap.NewNop())
	assert.Equal(t, 150.0, down.SolPrice(context.Background(), 150))
}

// blockingTokens answers the first call at once and holds every later call
// until release is closed, ignoring ctx.
type blockingTokens struct {
	calls   atomic.Int32
	entered chan struct{}
	release chan struct{}
}

func (b *blockingTokens) ListTokens(context.Context, domain.Category) ([]domain.TrackedToken, error) {
	if b.calls.Add(1) > 1 {
		select {
		case b.entered <- struct{}{}:
		default:
		}
		<-b.release
	}
	return nil, nil
}

func TestPollerRunWaitsForInflightRefresh(t *testing.T) {
	lister := &blockingTokens{entered: make(chan struct{}, 1), release: make(chan struct{})}
	p := NewPoller(lister, NewNormalizer(newFakeSource(), nil, zap.NewNop()), 10*time.Millisecond, time.Second, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		p.Run(ctx)
		close(done)
	}()

	select {
	case <-lister.entered:
	case <-time.After(2 * time.Second):
		t.Fatal("tick refresh never started")
	}
	cancel()

	select {
	case <-done:
		t.Fatal("Run returned while a refresh was still running")
	case <-time.After(50 * time.Millisecond):
	}

	close(lister.release)
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after the refresh finished")
	}
}

func TestNormalizerBatchMatchesBaseTokenOnly(t *testing.T) {
	src := newFakeSource()
	shared := Pair{
		PairAddress: "bonk-usdc",
		BaseToken:   TokenInfo{Address: "BONK"},
		QuoteToken:  TokenInfo{Address: "USDC"},
		PriceUSD:    Number(0.00002),
		Liquidity:   &LiquidityInfo{USD: Number(5000)},
	}
	src.tokenPairs["BONK"] = []Pair{shared}
	src.tokenPairs["USDC"] = []Pair{shared}

	n := NewNormalizer(src, nil, zap.NewNop())
	result := n.Batch(context.Background(), []domain.TrackedToken{
		{Address: "BONK", Chain: domain.ChainSolana},
		{Address: "USDC", Chain: domain.ChainSolana},
	})

	require.Contains(t, result, "bonk")
	assert.Equal(t, 0.00002, result["bonk"].Price)
	// цена пары относится к BONK, для USDC снимка быть не должно
	assert.NotContains(t, result, "usdc")
}

func TestMemoryCacheSweepsOnlyPastThreshold(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache(time.Minute)
	now := time.Now()
	c.now = func() time.Time { return now }

	for i := 0; i < 10; i++ {
		require.NoError(t, c.Set(ctx, fmt.Sprintf("small-%d", i), domain.MarketSnapshot{Price: 1}))
	}
	now = now.Add(2 * time.Minute)
	require.NoError(t, c.Set(ctx, "fresh", domain.MarketSnapshot{Price: 2}))
	assert.Len(t, c.entries, 11, "below threshold expired entries stay until a sweep")

	for i := len(c.entries); i < minSweepSize; i++ {
		require.NoError(t, c.Set(ctx, fmt.Sprintf("fill-%d", i), domain.MarketSnapshot{Price: 1}))
	}
	now = now.Add(2 * time.Minute)
	require.NoError(t, c.Set(ctx, "last", domain.MarketSnapshot{Price: 3}))

	assert.Len(t, c.entries, 1)
	assert.Equal(t, minSweepSize, c.sweepAt)
	snap, ok := c.Get(ctx, "last")
	require.True(t, ok)
	assert.Equal(t, 3.0, snap.Price)
}

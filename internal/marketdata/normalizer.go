// internal/marketdata/normalizer.go
package marketdata

import (
	"context"
	"strings"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/rovshanmuradov/memeswap/internal/domain"
)

// Source is the raw market-data provider.
type Source interface {
	PairByAddress(ctx context.Context, chain, pairAddress string) (*Pair, error)
	PairsByToken(ctx context.Context, tokenAddress string) ([]Pair, error)
	PairsBatch(ctx context.Context, chain string, pairAddresses []string) ([]Pair, error)
	TokensBatch(ctx context.Context, chain string, tokenAddresses []string) ([]Pair, error)
}

const batchParallelism = 4

// Normalizer reduces provider data to domain.MarketSnapshot.
type Normalizer struct {
	source Source
	cache  Cache
	logger *zap.Logger
}

// NewNormalizer wires a source with an optional cache.
func NewNormalizer(source Source, cache Cache, logger *zap.Logger) *Normalizer {
	return &Normalizer{
		source: source,
		cache:  cache,
		logger: logger.Named("market-normalizer"),
	}
}

func cacheKey(chain domain.Chain, ref string) string {
	return string(chainOrDefault(chain)) + ":" + strings.ToLower(ref)
}

func chainOrDefault(c domain.Chain) domain.Chain {
	if c == "" {
		return domain.ChainSolana
	}
	return c
}

// Fetch looks up ref, a pair address when isPair is set and a bare token
// address otherwise. A nil snapshot with nil error means the provider has
// no market for ref.
func (n *Normalizer) Fetch(ctx context.Context, ref string, isPair bool, chain domain.Chain) (*domain.MarketSnapshot, error) {
	chain = chainOrDefault(chain)
	key := cacheKey(chain, ref)
	if snap, ok := n.cacheGet(ctx, key); ok {
		return snap, nil
	}

	var pair *Pair
	if isPair {
		p, err := n.source.PairByAddress(ctx, string(chain), ref)
		if err != nil {
			return nil, err
		}
		pair = p
	} else {
		pairs, err := n.source.PairsByToken(ctx, ref)
		if err != nil {
			return nil, err
		}
		pair = MostLiquid(pairs)
	}
	if pair == nil {
		return nil, nil
	}

	snap := pair.Snapshot()
	n.cacheSet(ctx, key, snap)
	return &snap, nil
}

// GetMarketData returns the token's snapshot, or nil when none is available.
// Provider failures are logged, never returned.
func (n *Normalizer) GetMarketData(ctx context.Context, t domain.TrackedToken) *domain.MarketSnapshot {
	ref, isPair := t.MarketRef()
	snap, err := n.Fetch(ctx, ref, isPair, t.Chain)
	if err != nil {
		n.logger.Warn("market data unavailable",
			zap.String("token", t.Address),
			zap.String("ref", ref),
			zap.Error(err))
		return nil
	}
	return snap
}

type batchGroup struct {
	chain  domain.Chain
	isPair bool
	refs   []string
}

// Batch fetches snapshots for tokens, grouped by chain and split into chunks
// of at most BatchLimit refs. The result is keyed by TrackedToken.Key().
// Tokens whose chunk failed or that the provider does not list are absent.
func (n *Normalizer) Batch(ctx context.Context, tokens []domain.TrackedToken) map[string]domain.MarketSnapshot {
	result := make(map[string]domain.MarketSnapshot, len(tokens))

	groups := make(map[string]*batchGroup)
	var order []string
	seen := make(map[string]bool)

	for _, t := range tokens {
		ref, isPair := t.MarketRef()
		chain := chainOrDefault(t.Chain)
		key := strings.ToLower(ref)

		if snap, ok := n.cacheGet(ctx, cacheKey(chain, ref)); ok {
			result[key] = *snap
			continue
		}

		dedup := cacheKey(chain, ref)
		if isPair {
			dedup += ":pair"
		}
		if seen[dedup] {
			continue
		}
		seen[dedup] = true

		gk := string(chain)
		if isPair {
			gk += "/pairs"
		} else {
			gk += "/tokens"
		}
		g, ok := groups[gk]
		if !ok {
			g = &batchGroup{chain: chain, isPair: isPair}
			groups[gk] = g
			order = append(order, gk)
		}
		g.refs = append(g.refs, ref)
	}

	var (
		mu sync.Mutex
		eg errgroup.Group
	)
	eg.SetLimit(batchParallelism)

	for _, gk := range order {
		g := groups[gk]
		for start := 0; start < len(g.refs); start += BatchLimit {
			end := min(start+BatchLimit, len(g.refs))
			chunk := g.refs[start:end]
			chain, isPair := g.chain, g.isPair

			eg.Go(func() error {
				snaps, err := n.fetchChunk(ctx, chain, isPair, chunk)
				if err != nil {
					n.logger.Warn("market batch chunk failed",
						zap.String("chain", string(chain)),
						zap.Bool("pairs", isPair),
						zap.Int("size", len(chunk)),
						zap.Error(err))
					return nil
				}

				mu.Lock()
				for k, s := range snaps {
					result[k] = s
				}
				mu.Unlock()

				for k, s := range snaps {
					n.cacheSet(ctx, cacheKey(chain, k), s)
				}
				return nil
			})
		}
	}
	_ = eg.Wait()

	return result
}

func (n *Normalizer) fetchChunk(ctx context.Context, chain domain.Chain, isPair bool, refs []string) (map[string]domain.MarketSnapshot, error) {
	wanted := make(map[string]bool, len(refs))
	for _, r := range refs {
		wanted[strings.ToLower(r)] = true
	}
	out := make(map[string]domain.MarketSnapshot, len(refs))

	if isPair {
		pairs, err := n.source.PairsBatch(ctx, string(chain), refs)
		if err != nil {
			return nil, err
		}
		for i := range pairs {
			k := strings.ToLower(pairs[i].PairAddress)
			if _, done := out[k]; wanted[k] && !done {
				out[k] = pairs[i].Snapshot()
			}
		}
		return out, nil
	}

	pairs, err := n.source.TokensBatch(ctx, string(chain), refs)
	if err != nil {
		return nil, err
	}

	// Пара относится только к своему base-токену: priceUsd у DexScreener
	// всегда цена base, для quote-стороны она неверна.
	byToken := make(map[string][]Pair)
	for _, p := range pairs {
		base := strings.ToLower(p.BaseToken.Address)
		if wanted[base] {
			byToken[base] = append(byToken[base], p)
		}
	}
	for k, ps := range byToken {
		if best := MostLiquid(ps); best != nil {
			out[k] = best.Snapshot()
		}
	}
	return out, nil
}

func (n *Normalizer) cacheGet(ctx context.Context, key string) (*domain.MarketSnapshot, bool) {
	if n.cache == nil {
		return nil, false
	}
	return n.cache.Get(ctx, key)
}

func (n *Normalizer) cacheSet(ctx context.Context, key string, snap domain.MarketSnapshot) {
	if n.cache == nil {
		return
	}
	if err := n.cache.Set(ctx, key, snap); err != nil {
		n.logger.Debug("market cache write failed", zap.String("key", key), zap.Error(err))
	}
}

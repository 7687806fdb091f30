// internal/portfolio/paper.go
package portfolio

import (
	"context"
	"errors"
	"math"
	"sync"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/rovshanmuradov/memeswap/internal/analytics"
	"github.com/rovshanmuradov/memeswap/internal/domain"
)

// PaperStore is storage.PaperStore.
type PaperStore interface {
	ListPaper(ctx context.Context, owner string) ([]domain.PaperHolding, error)
	PutPaper(ctx context.Context, owner string, h domain.PaperHolding) error
	RemovePaper(ctx context.Context, owner, token string) error
}

type TokenLookup interface {
	GetToken(ctx context.Context, address string) (*domain.TrackedToken, error)
}

// ширина owner_address в paper_holdings
const maxOwnerLen = 64

// Paper keeps per-owner paper portfolios and values them at ATH.
type Paper struct {
	store  PaperStore
	tokens TokenLookup
	market MarketSource
	logger *zap.Logger

	// сериализует read-modify-write при суммировании аллокаций
	mu sync.Mutex
}

func NewPaper(store PaperStore, tokens TokenLookup, market MarketSource, logger *zap.Logger) *Paper {
	return &Paper{store: store, tokens: tokens, market: market, logger: logger.Named("paper")}
}

func validOwner(owner string) error {
	if owner == "" {
		return domain.Invalid("wallet", "")
	}
	if utf8.RuneCountInString(owner) > maxOwnerLen {
		return domain.Invalid("wallet", "too long")
	}
	return nil
}

// Add allocates usd to a tracked token. Adding a token already held sums
// the allocations.
func (p *Paper) Add(ctx context.Context, owner, token string, usd float64) (*analytics.PaperTotals, error) {
	if err := validOwner(owner); err != nil {
		return nil, err
	}
	if !(usd > 0) || math.IsInf(usd, 0) {
		return nil, domain.Invalid("allocation", "must be greater than zero")
	}
	if _, err := p.tokens.GetToken(ctx, token); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.Invalid("tokenAddress", "not a tracked token")
		}
		return nil, err
	}

	p.mu.Lock()
	pp, err := p.load(ctx, owner)
	if err == nil {
		pp.Add(token, usd)
		err = p.store.PutPaper(ctx, owner, domain.PaperHolding{TokenAddress: token, Allocation: pp.Allocation(token)})
	}
	p.mu.Unlock()
	if err != nil {
		return nil, err
	}

	p.logger.Debug("paper allocation added",
		zap.String("owner", owner),
		zap.String("token", token),
		zap.Float64("usd", usd))
	return p.totals(ctx, pp)
}

// Remove drops a token. Removing a token that is not held is not an error.
func (p *Paper) Remove(ctx context.Context, owner, token string) (*analytics.PaperTotals, error) {
	if err := validOwner(owner); err != nil {
		return nil, err
	}
	if token == "" {
		return nil, domain.Invalid("tokenAddress", "")
	}

	p.mu.Lock()
	pp, err := p.load(ctx, owner)
	if err == nil && pp.Remove(token) {
		err = p.store.RemovePaper(ctx, owner, token)
	}
	p.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return p.totals(ctx, pp)
}

// Get values the owner's paper portfolio at current prices.
func (p *Paper) Get(ctx context.Context, owner string) (*analytics.PaperTotals, error) {
	if err := validOwner(owner); err != nil {
		return nil, err
	}
	pp, err := p.load(ctx, owner)
	if err != nil {
		return nil, err
	}
	return p.totals(ctx, pp)
}

func (p *Paper) load(ctx context.Context, owner string) (*analytics.PaperPortfolio, error) {
	holdings, err := p.store.ListPaper(ctx, owner)
	if err != nil {
		return nil, err
	}
	return &analytics.PaperPortfolio{Holdings: holdings}, nil
}

// totals prices the holdings in one batch. Tokens that left the registry
// stay in the list unpriced.
func (p *Paper) totals(ctx context.Context, pp *analytics.PaperPortfolio) (*analytics.PaperTotals, error) {
	tracked := make([]domain.TrackedToken, 0, len(pp.Holdings))
	for _, h := range pp.Holdings {
		t, err := p.tokens.GetToken(ctx, h.TokenAddress)
		if errors.Is(err, domain.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		tracked = append(tracked, *t)
	}

	snaps := p.market.Batch(ctx, tracked)
	prices := make(map[string]analytics.PaperPrice, len(tracked))
	for _, t := range tracked {
		px := analytics.PaperPrice{Symbol: t.Symbol, ATHPrice: t.ATHPrice}
		if snap, ok := snaps[t.Key()]; ok && snap.HasPrice() {
			px.Price = snap.Price
		}
		prices[t.Address] = px
	}

	out := pp.Totals(prices)
	return &out, nil
}

package portfolio

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/memeswap/internal/domain"
	"github.com/rovshanmuradov/memeswap/internal/storage/memory"
)

type tokenMap map[string]domain.TrackedToken

func (m tokenMap) GetToken(_ context.Context, address string) (*domain.TrackedToken, error) {
	t, ok := m[address]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &t, nil
}

func newPaper(t *testing.T) (*Paper, tokenMap, *fakeMarket) {
	t.Helper()
	tokens := tokenMap{
		"bonk": {Address: "bonk", Symbol: "BONK", Chain: domain.ChainSolana, ATHPrice: 0.00006},
		"wif":  {Address: "wif", Symbol: "WIF", Chain: domain.ChainSolana, ATHPrice: 4},
		"dead": {Address: "dead", Symbol: "DEAD", Chain: domain.ChainSolana, ATHPrice: 1},
	}
	market := &fakeMarket{snaps: map[string]domain.MarketSnapshot{
		tokens["bonk"].Key(): {Price: 0.00002},
		tokens["wif"].Key():  {Price: 2},
	}}
	return NewPaper(memory.New(), tokens, market, zap.NewNop()), tokens, market
}

func TestPaperAddSumsAllocations(t *testing.T) {
	p, _, _ := newPaper(t)
	ctx := context.Background()

	_, err := p.Add(ctx, "w", "bonk", 100)
	require.NoError(t, err)
	_, err = p.Add(ctx, "w", "wif", 50)
	require.NoError(t, err)
	got, err := p.Add(ctx, "w", "bonk", 20)
	require.NoError(t, err)

	require.Len(t, got.Holdings, 2)
	assert.Equal(t, "bonk", got.Holdings[0].TokenAddress)
	assert.InDelta(t, 120, got.Holdings[0].Allocation, 1e-9)
	assert.InDelta(t, 170, got.TotalAllocation, 1e-9)
	// 120×3 + 50×2
	assert.InDelta(t, 460, got.TotalATHReturn, 1e-6)

	// другой владелец не видит чужой портфель
	other, err := p.Get(ctx, "x")
	require.NoError(t, err)
	assert.Empty(t, other.Holdings)
}

func TestPaperUnpricedToken(t *testing.T) {
	p, _, _ := newPaper(t)
	ctx := context.Background()

	got, err := p.Add(ctx, "w", "dead", 40)
	require.NoError(t, err)
	require.Len(t, got.Holdings, 1)
	assert.False(t, got.Holdings[0].Priced)
	assert.Zero(t, got.Holdings[0].Price)
	assert.InDelta(t, 40, got.TotalAllocation, 1e-9)
	assert.Zero(t, got.TotalATHReturn)
}

func TestPaperRemove(t *testing.T) {
	p, tokens, _ := newPaper(t)
	ctx := context.Background()

	_, err := p.Add(ctx, "w", "bonk", 10)
	require.NoError(t, err)
	_, err = p.Add(ctx, "w", "wif", 10)
	require.NoError(t, err)

	got, err := p.Remove(ctx, "w", "bonk")
	require.NoError(t, err)
	require.Len(t, got.Holdings, 1)
	assert.Equal(t, "wif", got.Holdings[0].TokenAddress)

	_, err = p.Remove(ctx, "w", "bonk")
	require.NoError(t, err)

	// токен пропал из реестра: строка остаётся, но без цены
	delete(tokens, "wif")
	got, err = p.Get(ctx, "w")
	require.NoError(t, err)
	require.Len(t, got.Holdings, 1)
	assert.False(t, got.Holdings[0].Priced)
}

func TestPaperValidation(t *testing.T) {
	p, _, _ := newPaper(t)
	ctx := context.Background()

	tests := []struct {
		name  string
		owner string
		token string
		usd   float64
		field string
	}{
		{"no owner", "", "bonk", 1, "wallet"},
		{"long owner", strings.Repeat("w", 65), "bonk", 1, "wallet"},
		{"zero allocation", "w", "bonk", 0, "allocation"},
		{"negative allocation", "w", "bonk", -5, "allocation"},
		{"untracked token", "w", "nope", 1, "tokenAddress"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := p.Add(ctx, tt.owner, tt.token, tt.usd)
			require.ErrorIs(t, err, domain.ErrInvalidInput)
			var verr *domain.ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tt.field, verr.Field)
		})
	}

	_, err := p.Get(ctx, "")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
	_, err = p.Remove(ctx, "w", "")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

package tokens

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/memeswap/internal/domain"
	"github.com/rovshanmuradov/memeswap/internal/storage/memory"
)

const bonk = "DezXAZ8z7PnrnRJjz3wXBoRgixCa6xjnB7YaB1pPB263"

func TestValidateAddress(t *testing.T) {
	assert.NoError(t, ValidateAddress(domain.ChainSolana, bonk))
	assert.NoError(t, ValidateAddress(domain.ChainEthereum, "0x6982508145454Ce325dDbE47a25d4ec3d2311933"))
	assert.ErrorIs(t, ValidateAddress(domain.ChainSolana, "0x6982508145454Ce325dDbE47a25d4ec3d2311933"), domain.ErrInvalidInput)
	assert.ErrorIs(t, ValidateAddress(domain.ChainEthereum, bonk), domain.ErrInvalidInput)
	assert.ErrorIs(t, ValidateAddress("tron", bonk), domain.ErrInvalidInput)
}

func TestLoadSeedSkipsInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tokens.yaml")
	seed := `tokens:
  - address: ` + bonk + `
    name: Bonk
    symbol: BONK
    category: dogs
    chain: solana
    ath_price: 0.0000589
  - address: 0x6982508145454Ce325dDbE47a25d4ec3d2311933
    name: Pepe
    symbol: PEPE
    category: frogs
    chain: ethereum
  - address: not-an-address
    symbol: BAD
    category: cats
`
	require.NoError(t, os.WriteFile(path, []byte(seed), 0o600))

	r := NewRegistry(memory.New(), zap.NewNop())
	n, err := r.LoadSeed(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	all, err := r.ListTokens(context.Background(), "")
	require.NoError(t, err)
	assert.Len(t, all, 2)

	frogs, err := r.ListTokens(context.Background(), domain.CategoryFrogs)
	require.NoError(t, err)
	require.Len(t, frogs, 1)
	assert.Equal(t, "PEPE", frogs[0].Symbol)

	got, err := r.GetToken(context.Background(), bonk)
	require.NoError(t, err)
	assert.Equal(t, 0.0000589, got.ATHPrice)

	_, err = r.ListTokens(context.Background(), "whales")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestUpdateATH(t *testing.T) {
	r := NewRegistry(memory.New(), zap.NewNop())
	require.NoError(t, r.Register(context.Background(), domain.TrackedToken{Address: bonk, Symbol: "BONK"}))

	assert.ErrorIs(t, r.UpdateATH(context.Background(), bonk, -1), domain.ErrInvalidInput)
	assert.ErrorIs(t, r.UpdateATH(context.Background(), "missing", 1), domain.ErrNotFound)
	require.NoError(t, r.UpdateATH(context.Background(), bonk, 0.0001))

	got, err := r.GetToken(context.Background(), bonk)
	require.NoError(t, err)
	assert.Equal(t, 0.0001, got.ATHPrice)
	assert.Equal(t, domain.CategoryOthers, got.Category)
}

func TestWatchlist(t *testing.T) {
	store := memory.New()
	r := NewRegistry(store, zap.NewNop())
	require.NoError(t, r.Register(context.Background(), domain.TrackedToken{Address: bonk, Symbol: "BONK"}))
	w := NewWatchlist(store, r)
	ctx := context.Background()

	assert.ErrorIs(t, w.Add(ctx, "wallet", "unknown"), domain.ErrInvalidInput)
	require.NoError(t, w.Add(ctx, "wallet", bonk))

	list, err := w.List(ctx, "wallet")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "BONK", list[0].Symbol)

	require.NoError(t, w.Remove(ctx, "wallet", bonk))
	list, err = w.List(ctx, "wallet")
	require.NoError(t, err)
	assert.Empty(t, list)
}

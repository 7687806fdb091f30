package tokens

import (
	"context"
	"errors"

	"github.com/rovshanmuradov/memeswap/internal/domain"
	"github.com/rovshanmuradov/memeswap/internal/storage"
)

// Watchlist keeps per-wallet lists of followed tokens.
type Watchlist struct {
	store    storage.WatchlistStore
	registry *Registry
}

func NewWatchlist(store storage.WatchlistStore, registry *Registry) *Watchlist {
	return &Watchlist{store: store, registry: registry}
}

// Add follows a tracked token. Unknown tokens are rejected.
func (w *Watchlist) Add(ctx context.Context, wallet, token string) error {
	if wallet == "" {
		return domain.Invalid("wallet", "")
	}
	if _, err := w.registry.GetToken(ctx, token); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.Invalid("tokenAddress", "not a tracked token")
		}
		return err
	}
	return w.store.AddWatch(ctx, wallet, token)
}

func (w *Watchlist) Remove(ctx context.Context, wallet, token string) error {
	if wallet == "" {
		return domain.Invalid("wallet", "")
	}
	return w.store.RemoveWatch(ctx, wallet, token)
}

// List returns the wallet's followed tokens, skipping any no longer tracked.
func (w *Watchlist) List(ctx context.Context, wallet string) ([]domain.TrackedToken, error) {
	if wallet == "" {
		return nil, domain.Invalid("wallet", "")
	}
	addrs, err := w.store.ListWatch(ctx, wallet)
	if err != nil {
		return nil, err
	}
	out := make([]domain.TrackedToken, 0, len(addrs))
	for _, a := range addrs {
		t, err := w.registry.GetToken(ctx, a)
		if errors.Is(err, domain.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, *t)
	}
	return out, nil
}

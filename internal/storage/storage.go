// internal/storage/storage.go
package storage

import (
	"context"

	"github.com/rovshanmuradov/memeswap/internal/domain"
)

// TokenFilter selects tracked tokens. Empty fields are not applied.
type TokenFilter struct {
	Category domain.Category
	Chain    domain.Chain
}

// TokenStore хранит отслеживаемые токены.
type TokenStore interface {
	ListTokens(ctx context.Context, f TokenFilter) ([]domain.TrackedToken, error)
	// GetToken returns domain.ErrNotFound for unknown addresses.
	GetToken(ctx context.Context, address string) (*domain.TrackedToken, error)
	// UpsertToken creates or refreshes static facts. It never touches ath_price
	// of an existing row.
	UpsertToken(ctx context.Context, t domain.TrackedToken) error
	UpdateATH(ctx context.Context, address string, price float64) error
}

// SwapStore журнал свопов: только вставка, статус меняет лишь сверка.
type SwapStore interface {
	// InsertSwap fills ID and CreatedAt. A repeated tx signature yields domain.ErrDuplicate.
	InsertSwap(ctx context.Context, rec *domain.SwapRecord) error
	// ListSwaps returns newest first.
	ListSwaps(ctx context.Context, f domain.HistoryFilter) ([]domain.SwapRecord, error)
	ListSwapsByStatus(ctx context.Context, status domain.SwapStatus, limit int) ([]domain.SwapRecord, error)
	UpdateSwapStatus(ctx context.Context, txSignature string, status domain.SwapStatus) error
}

type WatchlistStore interface {
	AddWatch(ctx context.Context, wallet, token string) error
	RemoveWatch(ctx context.Context, wallet, token string) error
	ListWatch(ctx context.Context, wallet string) ([]string, error)
}

// PaperStore хранит бумажный портфель владельца, одна строка на токен.
type PaperStore interface {
	// ListPaper returns holdings in the order they were first added.
	ListPaper(ctx context.Context, owner string) ([]domain.PaperHolding, error)
	// PutPaper sets the allocation of h.TokenAddress, creating the row if needed.
	PutPaper(ctx context.Context, owner string, h domain.PaperHolding) error
	RemovePaper(ctx context.Context, owner, token string) error
}

// Storage определяет интерфейс для работы с хранилищем
type Storage interface {
	TokenStore
	SwapStore
	WatchlistStore
	PaperStore

	RunMigrations(ctx context.Context) error
	Close() error
}

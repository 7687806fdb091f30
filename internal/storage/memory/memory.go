// internal/storage/memory/memory.go
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rovshanmuradov/memeswap/internal/domain"
	"github.com/rovshanmuradov/memeswap/internal/storage"
)

// Storage is an in-memory storage.Storage for tests and local runs.
type Storage struct {
	mu      sync.RWMutex
	tokens  map[string]*domain.TrackedToken
	order   []string
	swaps   []domain.SwapRecord
	bySig   map[string]int
	watch   map[string][]string
	paper   map[string][]domain.PaperHolding
	nextID  uint64
	nowFunc func() time.Time
}

var _ storage.Storage = (*Storage)(nil)

func New() *Storage {
	return &Storage{
		tokens:  make(map[string]*domain.TrackedToken),
		bySig:   make(map[string]int),
		watch:   make(map[string][]string),
		paper:   make(map[string][]domain.PaperHolding),
		nowFunc: func() time.Time { return time.Now().UTC() },
	}
}

// WithClock overrides the creation timestamp source.
func (s *Storage) WithClock(now func() time.Time) *Storage {
	s.nowFunc = now
	return s
}

func (s *Storage) RunMigrations(context.Context) error { return nil }
func (s *Storage) Close() error                        { return nil }

func (s *Storage) ListTokens(_ context.Context, f storage.TokenFilter) ([]domain.TrackedToken, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.TrackedToken, 0, len(s.order))
	for _, addr := range s.order {
		t := s.tokens[addr]
		if f.Category != "" && t.Category != f.Category {
			continue
		}
		if f.Chain != "" && t.Chain != f.Chain {
			continue
		}
		out = append(out, *t)
	}
	return out, nil
}

func (s *Storage) GetToken(_ context.Context, address string) (*domain.TrackedToken, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.tokens[address]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *t
	return &cp, nil
}

func (s *Storage) UpsertToken(_ context.Context, t domain.TrackedToken) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.tokens[t.Address]; ok {
		t.ATHPrice = existing.ATHPrice
		*existing = t
		return nil
	}
	cp := t
	s.tokens[t.Address] = &cp
	s.order = append(s.order, t.Address)
	return nil
}

func (s *Storage) UpdateATH(_ context.Context, address string, price float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tokens[address]
	if !ok {
		return domain.ErrNotFound
	}
	t.ATHPrice = price
	return nil
}

func (s *Storage) InsertSwap(_ context.Context, rec *domain.SwapRecord) error {
	if rec == nil {
		return domain.ErrInvalidInput
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.bySig[rec.TxSignature]; exists {
		return fmt.Errorf("swap %s: %w", rec.TxSignature, domain.ErrDuplicate)
	}
	s.nextID++
	rec.ID = s.nextID
	rec.CreatedAt = s.nowFunc()

	s.bySig[rec.TxSignature] = len(s.swaps)
	s.swaps = append(s.swaps, *rec)
	return nil
}

func (s *Storage) ListSwaps(_ context.Context, f domain.HistoryFilter) ([]domain.SwapRecord, error) {
	s.mu.RLock()
	out := make([]domain.SwapRecord, 0)
	for _, r := range s.swaps {
		if f.WalletAddress != "" && f.WalletAddress != domain.WalletAll && r.WalletAddress != f.WalletAddress {
			continue
		}
		if f.TokenAddress != "" && r.TokenAddress != f.TokenAddress {
			continue
		}
		out = append(out, r)
	}
	s.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func (s *Storage) ListSwapsByStatus(_ context.Context, status domain.SwapStatus, limit int) ([]domain.SwapRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []domain.SwapRecord
	for _, r := range s.swaps {
		if r.Status != status {
			continue
		}
		out = append(out, r)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (s *Storage) UpdateSwapStatus(_ context.Context, txSignature string, status domain.SwapStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	i, ok := s.bySig[txSignature]
	if !ok {
		return domain.ErrNotFound
	}
	s.swaps[i].Status = status
	return nil
}

func (s *Storage) AddWatch(_ context.Context, wallet, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, t := range s.watch[wallet] {
		if t == token {
			return nil
		}
	}
	s.watch[wallet] = append(s.watch[wallet], token)
	return nil
}

func (s *Storage) RemoveWatch(_ context.Context, wallet, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	list := s.watch[wallet]
	for i, t := range list {
		if t == token {
			s.watch[wallet] = append(list[:i:i], list[i+1:]...)
			break
		}
	}
	return nil
}

func (s *Storage) ListWatch(_ context.Context, wallet string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string(nil), s.watch[wallet]...), nil
}

func (s *Storage) ListPaper(_ context.Context, owner string) ([]domain.PaperHolding, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]domain.PaperHolding(nil), s.paper[owner]...), nil
}

func (s *Storage) PutPaper(_ context.Context, owner string, h domain.PaperHolding) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	list := s.paper[owner]
	for i := range list {
		if list[i].TokenAddress == h.TokenAddress {
			list[i].Allocation = h.Allocation
			return nil
		}
	}
	s.paper[owner] = append(list, h)
	return nil
}

func (s *Storage) RemovePaper(_ context.Context, owner, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	list := s.paper[owner]
	for i := range list {
		if list[i].TokenAddress == token {
			s.paper[owner] = append(list[:i:i], list[i+1:]...)
			break
		}
	}
	return nil
}

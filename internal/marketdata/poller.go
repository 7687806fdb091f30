// internal/marketdata/poller.go
package marketdata

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/rovshanmuradov/memeswap/internal/analytics"
	"github.com/rovshanmuradov/memeswap/internal/domain"
)

// TokenLister supplies the tracked tokens to refresh.
type TokenLister interface {
	ListTokens(ctx context.Context, category domain.Category) ([]domain.TrackedToken, error)
}

// Board is the market view of every tracked token at one refresh.
type Board struct {
	Views     []analytics.TokenView `json:"tokens"`
	UpdatedAt time.Time             `json:"updatedAt"`

	seq uint64
}

// Poller refreshes the board on a timer. Refreshes may overlap; each one
// completes and the most recently started one wins.
type Poller struct {
	tokens     TokenLister
	normalizer *Normalizer
	interval   time.Duration
	timeout    time.Duration
	logger     *zap.Logger

	started atomic.Uint64
	mu      sync.RWMutex
	board   Board
}

func NewPoller(tokens TokenLister, normalizer *Normalizer, interval, timeout time.Duration, logger *zap.Logger) *Poller {
	if interval <= 0 {
		interval = time.Minute
	}
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Poller{
		tokens:     tokens,
		normalizer: normalizer,
		interval:   interval,
		timeout:    timeout,
		logger:     logger.Named("market-poller"),
	}
}

// Refresh builds a new board and applies it unless a later-started refresh
// has already been applied.
func (p *Poller) Refresh(ctx context.Context) (Board, error) {
	seq := p.started.Add(1)

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	tokens, err := p.tokens.ListTokens(ctx, "")
	if err != nil {
		return Board{}, fmt.Errorf("list tokens: %w", err)
	}

	snaps := p.normalizer.Batch(ctx, tokens)

	views := make([]analytics.TokenView, 0, len(tokens))
	for _, t := range tokens {
		var snap *domain.MarketSnapshot
		if s, ok := snaps[t.Key()]; ok {
			snap = &s
		}
		views = append(views, analytics.NewTokenView(t, snap))
	}

	board := Board{Views: views, UpdatedAt: time.Now().UTC(), seq: seq}
	p.apply(board)

	p.logger.Debug("board refreshed",
		zap.Uint64("seq", seq),
		zap.Int("tokens", len(tokens)),
		zap.Int("priced", len(snaps)))
	return board, nil
}

func (p *Poller) apply(b Board) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if b.seq < p.board.seq {
		return
	}
	p.board = b
}

// Latest returns the most recently applied board.
func (p *Poller) Latest() Board {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.board
}

// Run refreshes immediately and then on every tick until ctx is done. It
// returns after every refresh it started has finished.
func (p *Poller) Run(ctx context.Context) {
	p.logger.Info("Starting market poller", zap.Duration("interval", p.interval))

	var inflight sync.WaitGroup
	defer inflight.Wait()

	refresh := func() {
		if _, err := p.Refresh(ctx); err != nil {
			p.logger.Warn("board refresh failed", zap.Error(err))
		}
	}
	refresh()

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			p.logger.Debug("Market poller stopped")
			return
		case <-ticker.C:
			inflight.Add(1)
			go func() {
				defer inflight.Done()
				refresh()
			}()
		}
	}
}

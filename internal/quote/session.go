package quote

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/rovshanmuradov/memeswap/internal/domain"
)

// DefaultDebounce is how long the session waits after the last edit.
const DefaultDebounce = 500 * time.Millisecond

// State of a trade form's quote.
type State int

const (
	StateIdle State = iota
	StateDebouncing
	StateFetching
	StateQuoted
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateDebouncing:
		return "debouncing"
	case StateFetching:
		return "fetching"
	case StateQuoted:
		return "quoted"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Quoter is the part of Engine a session needs.
type Quoter interface {
	Request(ctx context.Context, p domain.QuoteParams) (*domain.Quote, error)
}

// Snapshot is a consistent view of a session.
type Snapshot struct {
	State      State
	Generation uint64
	Params     domain.QuoteParams
	Quote      *domain.Quote
	Err        error
}

// Session drives the debounced quote cycle of one trade form. Every edit
// bumps the generation; a response is applied only if its generation is
// still current, so late answers to superseded requests are dropped.
type Session struct {
	quoter   Quoter
	debounce time.Duration
	onChange func(Snapshot)
	logger   *zap.Logger

	mu     sync.Mutex
	gen    uint64
	state  State
	params domain.QuoteParams
	quote  *domain.Quote
	err    error
	timer  *time.Timer
	cancel context.CancelFunc
	closed bool
}

// SessionOption configures a Session.
type SessionOption func(*Session)

// WithDebounce overrides DefaultDebounce.
func WithDebounce(d time.Duration) SessionOption {
	return func(s *Session) { s.debounce = d }
}

// WithOnChange registers a callback run after every applied transition.
// It is called without the session lock held.
func WithOnChange(fn func(Snapshot)) SessionOption {
	return func(s *Session) { s.onChange = fn }
}

func NewSession(q Quoter, logger *zap.Logger, opts ...SessionOption) *Session {
	s := &Session{
		quoter:   q,
		debounce: DefaultDebounce,
		logger:   logger.Named("quote-session"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Update records new form parameters, discards whatever quote was pending
// or obtained and restarts the debounce window.
func (s *Session) Update(p domain.QuoteParams) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.stopLocked()
	s.gen++
	gen := s.gen
	s.params = p
	s.state = StateDebouncing
	s.quote = nil
	s.err = nil
	s.timer = time.AfterFunc(s.debounce, func() { s.fetch(gen) })
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.notify(snap)
}

func (s *Session) fetch(gen uint64) {
	s.mu.Lock()
	if gen != s.gen || s.closed {
		s.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.state = StateFetching
	params := s.params
	snap := s.snapshotLocked()
	s.mu.Unlock()
	s.notify(snap)

	q, err := s.quoter.Request(ctx, params)
	cancel()

	s.mu.Lock()
	if gen != s.gen || s.closed {
		s.mu.Unlock()
		s.logger.Debug("dropping stale quote response", zap.Uint64("generation", gen))
		return
	}
	s.cancel = nil
	if err != nil || q == nil {
		if err == nil {
			err = domain.ErrNoQuote
		}
		s.state = StateFailed
		s.err = err
	} else {
		s.state = StateQuoted
		s.quote = q
	}
	snap = s.snapshotLocked()
	s.mu.Unlock()

	s.notify(snap)
}

// Snapshot returns the current state.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// Accept hands the current quote to the caller exactly once. It fails with
// ErrQuoteStale when p no longer matches the quote and with ErrNoQuote when
// nothing is quoted.
func (s *Session) Accept(p domain.QuoteParams) (*domain.Quote, error) {
	s.mu.Lock()
	if s.state != StateQuoted || s.quote == nil {
		s.mu.Unlock()
		return nil, domain.ErrNoQuote
	}
	if !s.quote.Matches(p) {
		s.mu.Unlock()
		return nil, domain.ErrQuoteStale
	}
	q := s.quote
	s.quote = nil
	s.state = StateIdle
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.notify(snap)
	return q, nil
}

// Close stops pending timers and drops in-flight results.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopLocked()
	s.closed = true
	s.gen++
}

func (s *Session) stopLocked() {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
}

func (s *Session) snapshotLocked() Snapshot {
	return Snapshot{
		State:      s.state,
		Generation: s.gen,
		Params:     s.params,
		Quote:      s.quote,
		Err:        s.err,
	}
}

func (s *Session) notify(snap Snapshot) {
	if s.onChange != nil {
		s.onChange(snap)
	}
}

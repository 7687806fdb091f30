// internal/server/server.go
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/memeswap/internal/admin"
	"github.com/rovshanmuradov/memeswap/internal/analytics"
	"github.com/rovshanmuradov/memeswap/internal/domain"
	"github.com/rovshanmuradov/memeswap/internal/marketdata"
	"github.com/rovshanmuradov/memeswap/internal/swap"
)

type QuoteService interface {
	Request(ctx context.Context, p domain.QuoteParams) (*domain.Quote, error)
	DefaultSlippage() int
}

type SwapBuilder interface {
	Build(ctx context.Context, req swap.BuildRequest) (string, error)
}

type Broadcaster interface {
	Broadcast(ctx context.Context, signedB64 string) (solana.Signature, error)
}

type Ledger interface {
	RecordSwap(ctx context.Context, rec domain.SwapRecord) (*domain.SwapRecord, error)
	QueryHistory(ctx context.Context, f domain.HistoryFilter) ([]domain.SwapRecord, error)
}

type Balances interface {
	GetAllBalances(ctx context.Context, wallet string) (map[string]decimal.Decimal, error)
	GetBalance(ctx context.Context, wallet, mint string) (decimal.Decimal, error)
	Portfolio(ctx context.Context, wallet string) (*domain.Portfolio, error)
}

type Admin interface {
	UpdateATH(ctx context.Context, req admin.ATHUpdate) error
	VerifyWallet(p admin.Proof) error
}

type Tokens interface {
	ListTokens(ctx context.Context, category domain.Category) ([]domain.TrackedToken, error)
	GetToken(ctx context.Context, address string) (*domain.TrackedToken, error)
}

type Market interface {
	Fetch(ctx context.Context, ref string, isPair bool, chain domain.Chain) (*domain.MarketSnapshot, error)
	GetMarketData(ctx context.Context, t domain.TrackedToken) *domain.MarketSnapshot
}

type BoardSource interface {
	Latest() marketdata.Board
	Refresh(ctx context.Context) (marketdata.Board, error)
}

type Watchlist interface {
	Add(ctx context.Context, wallet, token string) error
	Remove(ctx context.Context, wallet, token string) error
	List(ctx context.Context, wallet string) ([]domain.TrackedToken, error)
}

type PriceHistory interface {
	Get(ctx context.Context, t domain.TrackedToken, kind marketdata.ChartKind, days marketdata.Days) *marketdata.PriceHistory
}

type PaperPortfolio interface {
	Get(ctx context.Context, owner string) (*analytics.PaperTotals, error)
	Add(ctx context.Context, owner, token string, usd float64) (*analytics.PaperTotals, error)
	Remove(ctx context.Context, owner, token string) (*analytics.PaperTotals, error)
}

// Deps aggregates the services behind the routes.
type Deps struct {
	Quotes    QuoteService
	Builder   SwapBuilder
	Executor  Broadcaster
	Ledger    Ledger
	Balances  Balances
	Admin     Admin
	Tokens    Tokens
	Market    Market
	History   PriceHistory
	Board     BoardSource
	Watchlist Watchlist
	Paper     PaperPortfolio
	Gatherer  prometheus.Gatherer
}

type Config struct {
	Addr           string
	CORSOrigins    []string
	RatePerMinute  int
	RequestTimeout time.Duration
}

// Server is the HTTP API of the swap backend.
type Server struct {
	deps       Deps
	cfg        Config
	httpServer *http.Server
	logger     *zap.Logger
}

func New(cfg Config, deps Deps, logger *zap.Logger) *Server {
	if cfg.RatePerMinute <= 0 {
		cfg.RatePerMinute = 600
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 15 * time.Second
	}
	if deps.Gatherer == nil {
		deps.Gatherer = prometheus.DefaultGatherer
	}
	s := &Server{deps: deps, cfg: cfg, logger: logger.Named("http")}
	s.httpServer = &http.Server{
		Addr:              cfg.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      cfg.RequestTimeout + 15*time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s
}

// Handler builds the route table wrapped in middleware.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/health", s.health)

	mux.HandleFunc("GET /api/quote", s.quote)
	mux.HandleFunc("POST /api/swap/build", s.buildSwap)
	mux.HandleFunc("POST /api/transactions/send", s.sendTransaction)
	mux.HandleFunc("GET /api/balance", s.balance)
	mux.HandleFunc("POST /api/swaps", s.recordSwap)
	mux.HandleFunc("GET /api/swaps", s.swapHistory)

	mux.HandleFunc("POST /api/admin/ath", s.updateATH)
	mux.HandleFunc("POST /api/admin/verify", s.verifyWallet)

	mux.HandleFunc("GET /api/market", s.market)
	mux.HandleFunc("GET /api/market/history", s.priceHistory)
	mux.HandleFunc("GET /api/tokens", s.listTokens)
	mux.HandleFunc("GET /api/tokens/{address}", s.getToken)
	mux.HandleFunc("GET /api/tokens/{address}/upside", s.upside)
	mux.HandleFunc("GET /api/board", s.board)
	mux.HandleFunc("GET /api/leaderboard", s.leaderboard)
	mux.HandleFunc("GET /api/categories", s.categories)

	mux.HandleFunc("GET /api/portfolio", s.portfolio)
	mux.HandleFunc("GET /api/watchlist", s.listWatch)
	mux.HandleFunc("POST /api/watchlist", s.addWatch)
	mux.HandleFunc("DELETE /api/watchlist", s.removeWatch)
	mux.HandleFunc("GET /api/paper-portfolio", s.paperPortfolio)
	mux.HandleFunc("POST /api/paper-portfolio", s.addPaper)
	mux.HandleFunc("DELETE /api/paper-portfolio", s.removePaper)

	mux.Handle("GET /metrics", promhttp.HandlerFor(s.deps.Gatherer, promhttp.HandlerOpts{}))

	limiter := newIPLimiter(s.cfg.RatePerMinute, s.cfg.RatePerMinute/10+1)
	return chain(mux,
		requestID,
		cors(s.cfg.CORSOrigins),
		logging(s.logger),
		recoverer(s.logger),
		limiter.middleware,
	)
}

// ctx bounds every upstream call made on behalf of r.
func (s *Server) ctx(r *http.Request) (context.Context, context.CancelFunc) {
	return context.WithTimeout(r.Context(), s.cfg.RequestTimeout)
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("HTTP server listening", zap.String("addr", s.cfg.Addr))
		errCh <- s.httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("listen: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	s.logger.Info("Shutting down HTTP server")
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// internal/app/app.go
package app

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/memeswap/internal/admin"
	"github.com/rovshanmuradov/memeswap/internal/blockchain/solbc"
	"github.com/rovshanmuradov/memeswap/internal/blockchain/solbc/rpc"
	"github.com/rovshanmuradov/memeswap/internal/config"
	"github.com/rovshanmuradov/memeswap/internal/jupiter"
	"github.com/rovshanmuradov/memeswap/internal/ledger"
	"github.com/rovshanmuradov/memeswap/internal/marketdata"
	"github.com/rovshanmuradov/memeswap/internal/portfolio"
	"github.com/rovshanmuradov/memeswap/internal/quote"
	"github.com/rovshanmuradov/memeswap/internal/server"
	"github.com/rovshanmuradov/memeswap/internal/storage"
	"github.com/rovshanmuradov/memeswap/internal/storage/memory"
	"github.com/rovshanmuradov/memeswap/internal/storage/postgres"
	"github.com/rovshanmuradov/memeswap/internal/swap"
	"github.com/rovshanmuradov/memeswap/internal/tokens"
	"github.com/rovshanmuradov/memeswap/internal/utils/metrics"
)

// App holds every long-lived component of the process.
type App struct {
	Config   *config.Config
	Registry *prometheus.Registry
	Metrics  *metrics.Collector

	Chain      *solbc.Client
	Store      storage.Storage
	Tokens     *tokens.Registry
	Watchlist  *tokens.Watchlist
	Normalizer *marketdata.Normalizer
	CoinGecko  *marketdata.CoinGecko
	History    *marketdata.History
	Poller     *marketdata.Poller
	Quotes     *quote.Engine
	Builder    *swap.Builder
	Executor   *swap.Executor
	Pipeline   *swap.Pipeline
	Ledger     *ledger.Service
	Reconciler *ledger.Reconciler
	Portfolio  *portfolio.Aggregator
	Paper      *portfolio.Paper
	Admin      *admin.Service

	shutdown *ShutdownHandler
	logger   *zap.Logger
}

// New builds the component graph from cfg. Storage is postgres when a DSN is
// configured and in-memory otherwise; the market cache is redis when an
// address is configured.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	a := &App{
		Config:   cfg,
		Registry: prometheus.NewRegistry(),
		shutdown: NewShutdownHandler(logger, 30*time.Second),
		logger:   logger,
	}
	a.Registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	a.Metrics = metrics.NewCollector(a.Registry)

	if err := a.initStorage(ctx); err != nil {
		a.Close(ctx)
		return nil, err
	}

	pool, err := rpc.NewClient(cfg.RPCList, cfg.RPCTimeout, a.Metrics, logger)
	if err != nil {
		a.Close(ctx)
		return nil, fmt.Errorf("rpc pool: %w", err)
	}
	a.Chain = solbc.NewClient(pool, cfg.BroadcastRetries, a.Metrics, logger)

	cache, err := a.initCache(ctx)
	if err != nil {
		a.Close(ctx)
		return nil, err
	}
	dex := marketdata.NewDexScreener(cfg.DexScreenerURL, cfg.RequestTimeout, a.Metrics, logger)
	a.Normalizer = marketdata.NewNormalizer(dex, cache, logger)
	a.CoinGecko = marketdata.NewCoinGecko(cfg.CoinGeckoURL, cfg.CoinGeckoAPIKey, cfg.RequestTimeout, a.Metrics, logger)
	gecko := marketdata.NewGeckoTerminal(cfg.GeckoTermURL, cfg.RequestTimeout, a.Metrics, logger)
	a.History = marketdata.NewHistory(a.CoinGecko, gecko, logger)

	a.Tokens = tokens.NewRegistry(a.Store, logger)
	if cfg.TokensFile != "" {
		if _, err := a.Tokens.LoadSeed(ctx, cfg.TokensFile); err != nil {
			a.Close(ctx)
			return nil, err
		}
	}
	a.Watchlist = tokens.NewWatchlist(a.Store, a.Tokens)
	a.Poller = marketdata.NewPoller(a.Tokens, a.Normalizer, cfg.PollInterval, cfg.RequestTimeout, logger)

	jup := jupiter.NewClient(cfg.JupiterURL, cfg.RequestTimeout, a.Metrics, logger)
	a.Quotes = quote.NewEngine(jup, a.Chain, quote.Config{
		PlatformFeeBps:     cfg.PlatformFeeBps,
		DefaultSlippageBps: cfg.DefaultSlippageBps,
		FeeAccounts:        cfg.FeeAccountMap(),
		Timeout:            cfg.RequestTimeout,
	}, a.Metrics, logger)

	priority := jupiter.PriorityFee{Level: jupiter.PriorityLevel(cfg.PriorityLevel), MaxLamports: cfg.PriorityMaxLamports}
	a.Builder = swap.NewBuilder(jup, priority, a.Metrics, logger)
	a.Executor = swap.NewExecutor(a.Chain, a.Metrics, logger)
	a.Ledger = ledger.NewService(a.Store, a.Quotes.FeeBps(), a.Metrics, logger)
	a.Pipeline = swap.NewPipeline(a.Quotes, a.Builder, a.Executor, a.Ledger, a.Metrics, logger)

	if cfg.ReconcileInterval > 0 {
		a.Reconciler = ledger.NewReconciler(a.Store, a.Chain, cfg.ReconcileInterval, cfg.ReconcileDropAfter, logger)
	}

	a.Portfolio = portfolio.NewAggregator(a.Chain, a.Tokens, a.Normalizer, a.CoinGecko, cfg.SolFallbackPrice, logger)
	a.Paper = portfolio.NewPaper(a.Store, a.Tokens, a.Normalizer, logger)

	auth, err := admin.NewAuthorizer(cfg.AdminWallet)
	if err != nil {
		a.Close(ctx)
		return nil, err
	}
	a.Admin = admin.NewService(auth, a.Tokens, logger)

	return a, nil
}

func (a *App) initStorage(ctx context.Context) error {
	if a.Config.PostgresURL == "" {
		a.logger.Warn("postgres_url not set, swap history is kept in memory only")
		a.Store = memory.New()
		return nil
	}
	store, err := postgres.NewStorage(a.Config.PostgresURL, a.logger)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	a.shutdown.Add("postgres", store)
	if err := store.RunMigrations(ctx); err != nil {
		return fmt.Errorf("migrations: %w", err)
	}
	a.Store = store
	return nil
}

func (a *App) initCache(ctx context.Context) (marketdata.Cache, error) {
	if a.Config.RedisAddr == "" {
		return marketdata.NewMemoryCache(a.Config.CacheTTL), nil
	}
	rc, err := marketdata.NewRedisCache(ctx, a.Config.RedisAddr, a.Config.RedisPassword, a.Config.RedisDB, a.Config.CacheTTL)
	if err != nil {
		return nil, fmt.Errorf("connect redis: %w", err)
	}
	a.shutdown.Add("redis", rc)
	return rc, nil
}

// ServerDeps exposes the components behind the HTTP routes.
func (a *App) ServerDeps() server.Deps {
	return server.Deps{
		Quotes:    a.Quotes,
		Builder:   a.Builder,
		Executor:  a.Executor,
		Ledger:    a.Ledger,
		Balances:  a.Portfolio,
		Admin:     a.Admin,
		Tokens:    a.Tokens,
		Market:    a.Normalizer,
		History:   a.History,
		Board:     a.Poller,
		Watchlist: a.Watchlist,
		Paper:     a.Paper,
		Gatherer:  a.Registry,
	}
}

// RunBackground starts the market poller and, when enabled, the ledger
// reconciler. Both stop with ctx; the returned wait blocks until they have.
func (a *App) RunBackground(ctx context.Context) (wait func()) {
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		a.Poller.Run(ctx)
	}()
	if a.Reconciler != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			a.Reconciler.Run(ctx)
		}()
	}
	return wg.Wait
}

func (a *App) Close(ctx context.Context) error {
	return a.shutdown.Shutdown(ctx)
}

// ====================================
// File: cmd/server/main.go
// ====================================
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/rovshanmuradov/memeswap/internal/app"
	"github.com/rovshanmuradov/memeswap/internal/config"
	"github.com/rovshanmuradov/memeswap/internal/logger"
	"github.com/rovshanmuradov/memeswap/internal/server"
)

func main() {
	configPath := flag.String("config", "", "path to config file (yaml/json)")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(&logger.Config{
		LogFile:     cfg.Log.File,
		MaxSize:     cfg.Log.MaxSize,
		MaxAge:      cfg.Log.MaxAge,
		MaxBackups:  cfg.Log.MaxBackups,
		Compress:    cfg.Log.Compress,
		Development: cfg.Log.Development,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	if err := run(cfg, log.WithComponent("memeswap-server")); err != nil {
		log.Error("memeswap server stopped with error", zap.Error(err))
		os.Exit(1)
	}
}

func run(cfg *config.Config, log *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info("Starting memeswap server", zap.String("addr", cfg.ListenAddr))

	a, err := app.New(ctx, cfg, log)
	if err != nil {
		return fmt.Errorf("init: %w", err)
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := a.Close(closeCtx); err != nil {
			log.Warn("shutdown finished with errors", zap.Error(err))
		}
	}()

	wait := a.RunBackground(ctx)
	defer wait()

	srv := server.New(server.Config{
		Addr:           cfg.ListenAddr,
		CORSOrigins:    cfg.CORSOrigins,
		RatePerMinute:  cfg.RatePerMinute,
		RequestTimeout: cfg.RequestTimeout,
	}, a.ServerDeps(), log)

	if err := srv.Run(ctx); err != nil {
		stop()
		return err
	}
	log.Info("Received shutdown signal")
	return nil
}

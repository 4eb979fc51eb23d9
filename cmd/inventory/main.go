// Package main wires together the metadata inventory service binary.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/urlmeta/inventory/internal/api"
	"github.com/urlmeta/inventory/internal/clock/system"
	"github.com/urlmeta/inventory/internal/config"
	collyfetcher "github.com/urlmeta/inventory/internal/fetcher/colly"
	"github.com/urlmeta/inventory/internal/logging"
	"github.com/urlmeta/inventory/internal/metrics"
	queuememory "github.com/urlmeta/inventory/internal/queue/memory"
	"github.com/urlmeta/inventory/internal/service"
	"github.com/urlmeta/inventory/internal/store/postgres"
	"github.com/urlmeta/inventory/internal/worker"
)

func main() {
	cfgPath := flag.String("config", "", "Path to config file")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config failed: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.New(cfg.Logging.Development, cfg.Logging.Level)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger init failed: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		if syncErr := logger.Sync(); syncErr != nil {
			fmt.Fprintf(os.Stderr, "logger sync failed: %v\n", syncErr)
		}
	}()
	zap.ReplaceGlobals(logger)

	metrics.Init()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	repo, err := postgres.New(ctx, postgres.Config{
		DSN:      cfg.DB.DSN,
		Table:    cfg.DB.Table,
		MaxConns: cfg.DB.MaxConns,
		MinConns: cfg.DB.MinConns,
	})
	if err != nil {
		logger.Fatal("postgres init failed", zap.Error(err))
	}
	defer repo.Close()

	fetcher := collyfetcher.New(collyfetcher.Config{
		UserAgent:    cfg.Fetch.UserAgent,
		Timeout:      cfg.FetchTimeout(),
		MaxRedirects: cfg.Fetch.MaxRedirects,
		MaxBodyBytes: cfg.Fetch.PageSourceMaxBytes,
	})

	collector := service.New(repo, fetcher, system.New(), logger.Named("service"))

	jobs := queuememory.New(cfg.Worker.QueueDepth)
	for i := 0; i < cfg.Worker.Concurrency; i++ {
		w := worker.New(jobs, collector, logger.Named("worker").With(zap.Int("index", i)))
		go w.Run(ctx)
	}

	apiServer := api.NewServer(collector, repo, jobs, cfg, logger.Named("api"))

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           apiServer.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("http server started", zap.Int("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", zap.Error(err))
	}
	jobs.Close()
}

// Command api serves the status/trigger HTTP surface: health probes,
// sync-run history from the ledger, and the sync trigger endpoint.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/trellisec/assetgraph/internal/api"
	apihandler "github.com/trellisec/assetgraph/internal/api/handler"
	"github.com/trellisec/assetgraph/internal/config"
	"github.com/trellisec/assetgraph/internal/graph"
	"github.com/trellisec/assetgraph/internal/queue"
	"github.com/trellisec/assetgraph/internal/store"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load config", slog.String("error", err.Error()))
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	deps := api.RouterDeps{}

	ledger, err := store.New(ctx, cfg.Database)
	if err != nil {
		logger.Error("failed to connect to database", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer ledger.Close()
	if err := ledger.EnsureSchema(ctx); err != nil {
		logger.Error("failed to ensure ledger schema", slog.String("error", err.Error()))
		os.Exit(1)
	}
	deps.Database = ledger
	deps.Ledger = ledger
	logger.Info("connected to database")

	// Neo4j (optional; readyz degrades without it)
	graphClient, err := graph.NewClient(cfg.Neo4j, logger)
	if err != nil {
		logger.Warn("neo4j client init failed", slog.String("error", err.Error()))
	} else {
		deps.Graph = apihandler.PingFunc(graphClient.Verify)
		defer graphClient.Close(ctx)
	}

	// Valkey (optional; trigger endpoint answers 503 without it)
	vkClient, err := queue.NewClient(cfg.Valkey)
	if err != nil {
		logger.Warn("valkey connection failed, sync trigger disabled", slog.String("error", err.Error()))
	} else {
		deps.Producer = queue.NewProducer(vkClient)
		defer vkClient.Close()
		logger.Info("connected to valkey")
	}

	router := api.NewRouter(logger, deps)
	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		logger.Info("api listening", slog.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", slog.String("error", err.Error()))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", slog.String("error", err.Error()))
	}
}

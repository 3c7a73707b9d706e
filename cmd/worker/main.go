// Command worker consumes sync jobs from the Valkey stream, runs them
// against Neo4j, and records outcomes in the Postgres ledger.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	awss3sdk "github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"

	"github.com/trellisec/assetgraph/internal/config"
	"github.com/trellisec/assetgraph/internal/graph"
	"github.com/trellisec/assetgraph/internal/intel"
	intelaws "github.com/trellisec/assetgraph/internal/intel/aws"
	"github.com/trellisec/assetgraph/internal/queue"
	"github.com/trellisec/assetgraph/internal/store"
	syncpkg "github.com/trellisec/assetgraph/internal/sync"
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
	logger.Info("connected to database")

	vkClient, err := queue.NewClient(cfg.Valkey)
	if err != nil {
		logger.Error("failed to connect to valkey", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer vkClient.Close()
	logger.Info("connected to valkey")

	graphClient, err := graph.NewClient(cfg.Neo4j, logger)
	if err != nil {
		logger.Error("failed to create neo4j client", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer graphClient.Close(ctx)
	if err := graphClient.Verify(ctx); err != nil {
		logger.Error("failed to connect to neo4j", slog.String("error", err.Error()))
		os.Exit(1)
	}
	logger.Info("connected to neo4j")

	sdkCfg, err := intelaws.NewSDKConfig(ctx, cfg.AWS)
	if err != nil {
		logger.Error("failed to load aws config", slog.String("error", err.Error()))
		os.Exit(1)
	}

	loader := graph.NewLoader(cfg.Sync.BatchSize, logger)
	engine := syncpkg.NewEngine(loader, logger)
	runner := intel.NewRunner(loader, engine, awss3sdk.NewFromConfig(sdkCfg), cfg.Sync, logger)

	hostname, _ := os.Hostname()
	consumerID := hostname + "-" + uuid.NewString()[:8]
	consumer := queue.NewConsumer(vkClient, consumerID, logger)
	if err := consumer.EnsureGroup(ctx); err != nil {
		logger.Error("failed to ensure consumer group", slog.String("error", err.Error()))
		os.Exit(1)
	}

	logger.Info("worker started", slog.String("consumer_id", consumerID))
	err = consumer.Consume(ctx, func(ctx context.Context, job queue.SyncJob) error {
		return handleJob(ctx, graphClient, runner, ledger, logger, job)
	})
	if err != nil && ctx.Err() == nil {
		logger.Error("consumer stopped", slog.String("error", err.Error()))
		os.Exit(1)
	}
	logger.Info("worker shut down")
}

func handleJob(ctx context.Context, graphClient *graph.Client, runner *intel.Runner, ledger *store.Store, logger *slog.Logger, job queue.SyncJob) error {
	logger.Info("sync job starting",
		slog.String("run_id", job.RunID.String()),
		slog.String("account_id", job.AccountID),
		slog.Any("modules", job.Modules))

	err := runner.Run(ctx, graphClient.Session, job.AccountID, job.Modules, job.UpdateTag,
		stageRecorder(ctx, ledger, logger, job.RunID))

	status := store.RunStatusSucceeded
	errText := ""
	if err != nil {
		status = store.RunStatusFailed
		errText = err.Error()
	}
	if job.RunID != uuid.Nil {
		if ferr := ledger.FinishRun(ctx, job.RunID, status, errText); ferr != nil {
			logger.Error("failed to record run outcome",
				slog.String("run_id", job.RunID.String()),
				slog.String("error", ferr.Error()))
		}
	}
	return err
}

// stageRecorder upserts each stage's outcome into the ledger as the stage
// finishes, so GET /v1/runs/{id} shows progress while a run is live. Ledger
// write failures are logged, never fatal to the sync.
func stageRecorder(ctx context.Context, ledger *store.Store, logger *slog.Logger, runID uuid.UUID) syncpkg.StageObserver {
	if runID == uuid.Nil {
		return nil
	}
	return func(stage string, duration time.Duration, err error) {
		rec := store.StageRecord{
			RunID:      runID,
			Stage:      stage,
			Status:     store.StageStatusSucceeded,
			DurationMS: duration.Milliseconds(),
		}
		if err != nil {
			rec.Status = store.StageStatusFailed
			msg := err.Error()
			rec.Error = &msg
		}
		if rerr := ledger.RecordStage(ctx, rec); rerr != nil {
			logger.Error("failed to record stage outcome",
				slog.String("run_id", runID.String()),
				slog.String("stage", stage),
				slog.String("error", rerr.Error()))
		}
	}
}

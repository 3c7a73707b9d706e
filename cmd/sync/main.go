// Command sync runs intel modules against Neo4j once and exits: the
// one-shot path for cron jobs and local runs, bypassing the queue.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	awss3sdk "github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/trellisec/assetgraph/internal/config"
	"github.com/trellisec/assetgraph/internal/graph"
	"github.com/trellisec/assetgraph/internal/intel"
	intelaws "github.com/trellisec/assetgraph/internal/intel/aws"
	syncpkg "github.com/trellisec/assetgraph/internal/sync"
)

func main() {
	accountFlag := flag.String("account", "", "AWS account id to sync (defaults to AWS_ACCOUNT_ID)")
	modulesFlag := flag.String("modules", "", "comma-separated intel modules (defaults to SYNC_MODULES)")
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load config", slog.String("error", err.Error()))
		os.Exit(1)
	}

	accountID := *accountFlag
	if accountID == "" {
		accountID = cfg.AWS.AccountID
	}
	if accountID == "" {
		logger.Error("no account id: pass -account or set AWS_ACCOUNT_ID")
		os.Exit(1)
	}

	modules := cfg.Sync.Modules
	if *modulesFlag != "" {
		modules = strings.Split(*modulesFlag, ",")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

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

	updateTag := syncpkg.UpdateTag()
	logger.Info("sync starting",
		slog.String("account_id", accountID),
		slog.Any("modules", modules),
		slog.Int64("update_tag", updateTag))

	if err := runner.Run(ctx, graphClient.Session, accountID, modules, updateTag, nil); err != nil {
		logger.Error("sync failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
	logger.Info("sync complete", slog.Int64("update_tag", updateTag))
}

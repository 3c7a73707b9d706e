// Package intel wires the per-service intel modules into runnable sync
// stages. Each module owns one resource type's get/transform/load/cleanup
// cycle; the runner sequences them for one account.
package intel

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/trellisec/assetgraph/internal/config"
	"github.com/trellisec/assetgraph/internal/graph"
	"github.com/trellisec/assetgraph/internal/graph/job"
	"github.com/trellisec/assetgraph/internal/intel/aws"
	awss3 "github.com/trellisec/assetgraph/internal/intel/aws/s3"
	syncpkg "github.com/trellisec/assetgraph/internal/sync"
)

// Runner executes intel modules for one account sync.
type Runner struct {
	loader           *graph.Loader
	engine           *syncpkg.Engine
	s3Client         awss3.BucketsAPI
	cleanupBatchSize int
	concurrency      int
	logger           *slog.Logger
}

func NewRunner(loader *graph.Loader, engine *syncpkg.Engine, s3Client awss3.BucketsAPI, cfg config.SyncConfig, logger *slog.Logger) *Runner {
	return &Runner{
		loader:           loader,
		engine:           engine,
		s3Client:         s3Client,
		cleanupBatchSize: cfg.CleanupBatchSize,
		concurrency:      cfg.Concurrency,
		logger:           logger,
	}
}

// Stages resolves module names to sync stages, in the given order.
func (r *Runner) Stages(modules []string) ([]syncpkg.Stage, error) {
	var stages []syncpkg.Stage
	for _, name := range modules {
		switch name {
		case "aws:s3":
			stages = append(stages, syncpkg.StageFunc{
				StageName: name,
				Fn: func(ctx context.Context, sess graph.Session, params syncpkg.Params) error {
					return awss3.Sync(ctx, sess, r.engine, r.s3Client, r.logger, params)
				},
			})
		default:
			return nil, fmt.Errorf("unknown intel module %q", name)
		}
	}
	return stages, nil
}

// Run syncs one account: upsert the tenant node, then run every selected
// module stage. Cleanup happens inside each stage, after that stage's
// ingestion, never before. Modules touch disjoint schemas, so with a
// concurrency bound above one the stages run in parallel, each on its own
// session from newSession. observe may be nil.
func (r *Runner) Run(ctx context.Context, newSession func(ctx context.Context) graph.Session, accountID string, modules []string, updateTag int64, observe syncpkg.StageObserver) error {
	stages, err := r.Stages(modules)
	if err != nil {
		return err
	}

	params := syncpkg.NewParams(updateTag)
	params["AWS_ID"] = accountID
	if r.cleanupBatchSize > 0 {
		params[job.ParamLimitSize] = r.cleanupBatchSize
	}

	sess := newSession(ctx)
	if err := aws.LoadAccount(ctx, sess, r.loader, accountID, params); err != nil {
		sess.Close(ctx)
		return fmt.Errorf("load account %s: %w", accountID, err)
	}

	syncer := syncpkg.NewSyncer(r.logger, stages...).Observe(observe)
	if r.concurrency > 1 && len(stages) > 1 {
		sess.Close(ctx)
		return syncer.RunConcurrent(ctx, newSession, params, r.concurrency)
	}
	defer sess.Close(ctx)
	return syncer.Run(ctx, sess, params)
}

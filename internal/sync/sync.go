// Package sync sequences graph sync work: generation tagging, ordered
// stages, and the node/match-link sync entry points. It owns no connection
// state; sessions and parameters arrive per call.
package sync

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"sync"
	"time"

	"github.com/trellisec/assetgraph/internal/graph"
)

// UpdateTag returns the generation marker for one sync run: current Unix
// seconds. Everything a run touches is stamped with it, and cleanup removes
// what the run did not touch.
func UpdateTag() int64 {
	return time.Now().Unix()
}

// Params is the scope parameter set shared by a run's statements
// (UPDATE_TAG, lastupdated, tenant ids).
type Params map[string]any

// Clone returns an independent copy so one stage cannot mutate another's
// parameters.
func (p Params) Clone() Params {
	return Params(maps.Clone(p))
}

// NewParams builds the baseline parameter set for a run: the update tag
// under both names the compiled statements use ($UPDATE_TAG in cleanup,
// $lastupdated in ingestion).
func NewParams(updateTag int64) Params {
	return Params{
		"UPDATE_TAG":  updateTag,
		"lastupdated": updateTag,
	}
}

// Stage is one unit of sync work, typically one resource type.
type Stage interface {
	Name() string
	Run(ctx context.Context, sess graph.Session, params Params) error
}

// StageFunc adapts a function to the Stage interface.
type StageFunc struct {
	StageName string
	Fn        func(ctx context.Context, sess graph.Session, params Params) error
}

func (s StageFunc) Name() string { return s.StageName }

func (s StageFunc) Run(ctx context.Context, sess graph.Session, params Params) error {
	return s.Fn(ctx, sess, params)
}

// StageObserver is notified after each stage finishes, successfully or not.
// Callers use it to record per-stage outcomes in the run ledger.
type StageObserver func(stage string, duration time.Duration, err error)

// Syncer runs stages in order against one session. A stage failure aborts
// the remaining stages; completed stages are not rolled back, which is safe
// because every statement they ran is idempotent.
type Syncer struct {
	stages   []Stage
	logger   *slog.Logger
	observer StageObserver
}

func NewSyncer(logger *slog.Logger, stages ...Stage) *Syncer {
	return &Syncer{stages: stages, logger: logger}
}

// Observe registers a stage observer. With RunConcurrent the observer must
// be safe for concurrent use.
func (s *Syncer) Observe(fn StageObserver) *Syncer {
	s.observer = fn
	return s
}

func (s *Syncer) notify(stage string, duration time.Duration, err error) {
	if s.observer != nil {
		s.observer(stage, duration, err)
	}
}

// Run executes every stage in declaration order.
func (s *Syncer) Run(ctx context.Context, sess graph.Session, params Params) error {
	for _, stage := range s.stages {
		if err := ctx.Err(); err != nil {
			return err
		}
		start := time.Now()
		if err := stage.Run(ctx, sess, params.Clone()); err != nil {
			s.notify(stage.Name(), time.Since(start), err)
			return fmt.Errorf("stage %s: %w", stage.Name(), err)
		}
		s.notify(stage.Name(), time.Since(start), nil)
		s.logger.Info("stage complete",
			slog.String("stage", stage.Name()),
			slog.Duration("duration", time.Since(start)))
	}
	return nil
}

// RunConcurrent executes stages for independent schemas in parallel, bounded
// by limit workers. Each stage gets its own session from newSession, since
// sessions are not safe for concurrent use. Ordering guarantees only hold
// within a stage, so only stages that touch disjoint schemas belong here.
func (s *Syncer) RunConcurrent(ctx context.Context, newSession func(ctx context.Context) graph.Session, params Params, limit int) error {
	if limit <= 0 {
		limit = 1
	}
	sem := make(chan struct{}, limit)

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		firstErr error
	)
	for _, stage := range s.stages {
		wg.Add(1)
		go func(stage Stage) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			mu.Lock()
			aborted := firstErr != nil
			mu.Unlock()
			if aborted || ctx.Err() != nil {
				return
			}

			sess := newSession(ctx)
			defer sess.Close(ctx)

			start := time.Now()
			if err := stage.Run(ctx, sess, params.Clone()); err != nil {
				s.notify(stage.Name(), time.Since(start), err)
				mu.Lock()
				if firstErr == nil {
					firstErr = fmt.Errorf("stage %s: %w", stage.Name(), err)
				}
				mu.Unlock()
				return
			}
			s.notify(stage.Name(), time.Since(start), nil)
			s.logger.Info("stage complete",
				slog.String("stage", stage.Name()),
				slog.Duration("duration", time.Since(start)))
		}(stage)
	}
	wg.Wait()

	if firstErr != nil {
		return firstErr
	}
	return ctx.Err()
}

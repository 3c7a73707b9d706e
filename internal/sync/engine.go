package sync

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/trellisec/assetgraph/internal/graph"
	"github.com/trellisec/assetgraph/internal/graph/job"
	"github.com/trellisec/assetgraph/internal/graph/model"
	"github.com/trellisec/assetgraph/internal/graph/querybuilder"
)

// FetchFunc supplies the rows for one schema's sync. Implementations call
// cloud APIs; the engine never does.
type FetchFunc func(ctx context.Context) ([]map[string]any, error)

// Engine drives the full sync cycle for one schema at a time: ensure
// indexes, fetch, load, then generational cleanup. It is stateless; every
// run's scope arrives in params.
type Engine struct {
	loader *graph.Loader
	logger *slog.Logger
}

func NewEngine(loader *graph.Loader, logger *slog.Logger) *Engine {
	return &Engine{loader: loader, logger: logger}
}

// RunNodeSync performs one full node-schema sync. Index creation is
// idempotent and safe to repeat; cleanup runs only after the load for this
// schema completed, so a fresh generation is never swept.
func (e *Engine) RunNodeSync(ctx context.Context, sess graph.Session, node model.NodeSchema, fetch FetchFunc, params Params) error {
	indexes, err := querybuilder.BuildCreateIndexQueries(node)
	if err != nil {
		return err
	}
	if err := e.loader.EnsureIndexes(ctx, sess, indexes); err != nil {
		return fmt.Errorf("sync %s: %w", node.Label, err)
	}

	rows, err := fetch(ctx)
	if err != nil {
		return fmt.Errorf("sync %s: fetch: %w", node.Label, err)
	}
	e.logger.Debug("fetched rows", slog.String("label", node.Label), slog.Int("rows", len(rows)))

	if err := e.loader.Load(ctx, sess, node, rows, params); err != nil {
		return fmt.Errorf("sync %s: %w", node.Label, err)
	}
	return e.RunCleanup(ctx, sess, node, params)
}

// RunMatchLinkSync performs one full match-link sync: endpoint indexes,
// relationship load, then scoped generational cleanup.
func (e *Engine) RunMatchLinkSync(ctx context.Context, sess graph.Session, link model.MatchLinkSchema, fetch FetchFunc, params Params) error {
	indexes, err := querybuilder.BuildCreateIndexQueriesForMatchLink(link)
	if err != nil {
		return err
	}
	if err := e.loader.EnsureIndexes(ctx, sess, indexes); err != nil {
		return fmt.Errorf("sync %s: %w", link.RelLabel, err)
	}

	rows, err := fetch(ctx)
	if err != nil {
		return fmt.Errorf("sync %s: fetch: %w", link.RelLabel, err)
	}

	if err := e.loader.LoadMatchLinks(ctx, sess, link, rows, params); err != nil {
		return fmt.Errorf("sync %s: %w", link.RelLabel, err)
	}

	label, id, tag, err := matchLinkScope(params)
	if err != nil {
		return fmt.Errorf("sync %s: %w", link.RelLabel, err)
	}
	cleanup, err := job.FromMatchLink(link, label, id, tag)
	if err != nil {
		return err
	}
	return cleanup.Run(ctx, sess, e.logger)
}

// RunCleanup sweeps the schema's stale generation. Callers invoke it
// directly when cleanup is deferred to the end of a multi-schema run.
func (e *Engine) RunCleanup(ctx context.Context, sess graph.Session, node model.NodeSchema, params Params) error {
	cleanup, err := job.FromNodeSchema(node, params)
	if err != nil {
		return err
	}
	return cleanup.Run(ctx, sess, e.logger)
}

func matchLinkScope(params Params) (label, id string, tag int64, err error) {
	label, _ = params[model.PropSubResourceLabel].(string)
	id, _ = params[model.PropSubResourceID].(string)
	switch v := params["UPDATE_TAG"].(type) {
	case int64:
		tag = v
	case int:
		tag = int64(v)
	}
	if label == "" || id == "" {
		return "", "", 0, fmt.Errorf("%w: $%s, $%s",
			graph.ErrMissingScopeParameter, model.PropSubResourceLabel, model.PropSubResourceID)
	}
	return label, id, tag, nil
}

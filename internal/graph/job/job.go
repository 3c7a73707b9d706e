// Package job runs compiled cleanup statement sequences against a graph
// session. A GraphJob owns nothing but its statements and parameters; all
// run state arrives per call, so jobs are safe to rebuild and rerun.
package job

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"

	"github.com/trellisec/assetgraph/internal/graph"
	"github.com/trellisec/assetgraph/internal/graph/cleanupbuilder"
	"github.com/trellisec/assetgraph/internal/graph/model"
)

// Parameter names every cleanup statement binds.
const (
	ParamUpdateTag = "UPDATE_TAG"
	ParamLimitSize = "LIMIT_SIZE"
)

const defaultLimitSize = 10000

// ErrMissingUpdateTag rejects a cleanup run without a usable generation
// marker. A zero tag would match every node and sweep the whole scope.
var ErrMissingUpdateTag = errors.New("cleanup requires a non-zero UPDATE_TAG")

// GraphJob is an ordered cleanup statement sequence bound to one parameter
// set. Statement N+1 never starts before statement N finishes.
type GraphJob struct {
	Name       string
	Statements []string
	Parameters map[string]any
}

// FromNodeSchema compiles the cleanup statements for a node schema and
// validates the parameter set: UPDATE_TAG is required and non-zero,
// LIMIT_SIZE defaults when absent, and every scope-bound matcher parameter
// must be supplied.
func FromNodeSchema(node model.NodeSchema, params map[string]any) (*GraphJob, error) {
	statements, err := cleanupbuilder.BuildCleanupQueries(node)
	if err != nil {
		return nil, err
	}
	bound, err := bindParameters(node.ScopeKeys(), params)
	if err != nil {
		return nil, fmt.Errorf("cleanup %s: %w", node.Label, err)
	}
	return &GraphJob{
		Name:       "cleanup:" + node.Label,
		Statements: statements,
		Parameters: bound,
	}, nil
}

// FromMatchLink compiles the match-link cleanup with an explicit scope
// triple. The scope stamp parameters are always set here, never taken from
// the caller's map, so a job can only sweep the scope it was built for.
func FromMatchLink(link model.MatchLinkSchema, subResourceLabel, subResourceID string, updateTag int64) (*GraphJob, error) {
	statements, err := cleanupbuilder.BuildCleanupQueriesForMatchLink(link)
	if err != nil {
		return nil, err
	}
	if updateTag == 0 {
		return nil, fmt.Errorf("cleanup %s: %w", link.RelLabel, ErrMissingUpdateTag)
	}
	if subResourceLabel == "" || subResourceID == "" {
		return nil, fmt.Errorf(
			"%w: cleanup %s requires a sub-resource label and id",
			model.ErrInvalidSchema, link.RelLabel,
		)
	}
	return &GraphJob{
		Name:       "cleanup:" + link.RelLabel,
		Statements: statements,
		Parameters: map[string]any{
			ParamUpdateTag:             updateTag,
			ParamLimitSize:             defaultLimitSize,
			model.PropSubResourceLabel: subResourceLabel,
			model.PropSubResourceID:    subResourceID,
		},
	}, nil
}

// Run executes the statements strictly in order. Deletes are batched by
// $LIMIT_SIZE, so each statement reruns until a pass deletes fewer entities
// than the batch limit.
func (j *GraphJob) Run(ctx context.Context, sess graph.Session, logger *slog.Logger) error {
	limit := limitSize(j.Parameters)

	totalDeleted := 0
	for i, stmt := range j.Statements {
		for {
			if err := ctx.Err(); err != nil {
				return err
			}
			res, err := sess.Run(ctx, stmt, j.Parameters)
			if err != nil {
				return fmt.Errorf("%s statement %d: %w", j.Name, i, err)
			}
			deleted := res.Deleted()
			totalDeleted += deleted
			logger.Debug("cleanup pass",
				slog.String("job", j.Name),
				slog.Int("statement", i),
				slog.Int("deleted", deleted))
			if deleted < limit {
				break
			}
		}
	}
	logger.Info("cleanup complete",
		slog.String("job", j.Name),
		slog.Int("statements", len(j.Statements)),
		slog.Int("deleted", totalDeleted))
	return nil
}

// bindParameters validates UPDATE_TAG, defaults LIMIT_SIZE, and checks every
// scope key the statements reference is present.
func bindParameters(scopeKeys []string, params map[string]any) (map[string]any, error) {
	tag, ok := params[ParamUpdateTag]
	if !ok || isZeroTag(tag) {
		return nil, ErrMissingUpdateTag
	}

	bound := maps.Clone(params)
	if bound == nil {
		bound = make(map[string]any)
	}
	if _, ok := bound[ParamLimitSize]; !ok {
		bound[ParamLimitSize] = defaultLimitSize
	}

	for _, key := range scopeKeys {
		// lastupdated is an ingestion-side parameter; cleanup statements
		// reference $UPDATE_TAG instead.
		if key == model.PropLastUpdated {
			continue
		}
		if _, ok := bound[key]; !ok {
			return nil, fmt.Errorf("%w: $%s", graph.ErrMissingScopeParameter, key)
		}
	}
	return bound, nil
}

func limitSize(params map[string]any) int {
	switch limit := params[ParamLimitSize].(type) {
	case int:
		return limit
	case int64:
		return int(limit)
	}
	return defaultLimitSize
}

func isZeroTag(v any) bool {
	switch tag := v.(type) {
	case int:
		return tag == 0
	case int64:
		return tag == 0
	case string:
		return tag == ""
	case nil:
		return true
	}
	return false
}

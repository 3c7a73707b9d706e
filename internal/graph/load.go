package graph

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/trellisec/assetgraph/internal/graph/model"
	"github.com/trellisec/assetgraph/internal/graph/querybuilder"
)

const defaultBatchSize = 500

const createIndexPrefix = "CREATE INDEX IF NOT EXISTS"

// ErrMissingScopeParameter marks a batch whose scope parameters do not
// cover every scope-bound ref of the schema being loaded. This is caller
// misconfiguration, so nothing executes.
var ErrMissingScopeParameter = errors.New("missing scope parameter")

// ErrNotAnIndexQuery marks an attempt to run a non-index statement through
// EnsureIndexes.
var ErrNotAnIndexQuery = errors.New("not an index creation query")

// Loader batches compiled statements into a session. It holds no session
// state itself, only sizing and logging.
type Loader struct {
	batchSize int
	logger    *slog.Logger
}

// NewLoader creates a Loader. batchSize <= 0 selects the default.
func NewLoader(batchSize int, logger *slog.Logger) *Loader {
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	return &Loader{batchSize: batchSize, logger: logger}
}

// Load compiles the node schema and upserts rows in batches, then brings
// the schema's conditional labels up to date. An empty row list is a no-op.
// Rows without a usable id are dropped and logged, never fatal.
func (l *Loader) Load(ctx context.Context, sess Session, node model.NodeSchema, rows []map[string]any, scope map[string]any) error {
	query, err := querybuilder.BuildIngestionQuery(node)
	if err != nil {
		return err
	}
	if err := checkScope(node.ScopeKeys(), scope); err != nil {
		return fmt.Errorf("load %s: %w", node.Label, err)
	}

	rows = l.dropRowsWithoutID(node, rows)
	if len(rows) == 0 {
		// Nothing to upsert means nothing to relabel either: an empty
		// batch executes zero statements.
		return nil
	}
	if err := l.runBatches(ctx, sess, node.Label, query, rows, scope); err != nil {
		return err
	}
	return l.applyConditionalLabels(ctx, sess, node, scope)
}

// LoadMatchLinks compiles the match-link schema and merges relationship
// rows in batches. The scope must carry the sub-resource stamp parameters.
func (l *Loader) LoadMatchLinks(ctx context.Context, sess Session, link model.MatchLinkSchema, rows []map[string]any, scope map[string]any) error {
	query, err := querybuilder.BuildMatchLinkQuery(link)
	if err != nil {
		return err
	}
	if err := checkScope(link.ScopeKeys(), scope); err != nil {
		return fmt.Errorf("load match links %s: %w", link.RelLabel, err)
	}
	return l.runBatches(ctx, sess, link.RelLabel, query, rows, scope)
}

// EnsureIndexes runs idempotent index statements. Every statement must be
// an index creation; anything else is rejected before any statement runs.
func (l *Loader) EnsureIndexes(ctx context.Context, sess Session, queries []string) error {
	for _, q := range queries {
		if !strings.HasPrefix(strings.TrimSpace(q), createIndexPrefix) {
			return fmt.Errorf("%w: %q", ErrNotAnIndexQuery, q)
		}
	}
	for _, q := range queries {
		if _, err := sess.Run(ctx, q, nil); err != nil {
			return fmt.Errorf("create index: %w", err)
		}
	}
	return nil
}

func (l *Loader) runBatches(ctx context.Context, sess Session, label, query string, rows []map[string]any, scope map[string]any) error {
	if len(rows) == 0 {
		return nil
	}
	for i := 0; i < len(rows); i += l.batchSize {
		end := min(i+l.batchSize, len(rows))

		params := map[string]any{"DictList": rows[i:end]}
		for k, v := range scope {
			params[k] = v
		}
		res, err := sess.Run(ctx, query, params)
		if err != nil {
			return fmt.Errorf("load %s batch %d: %w", label, i/l.batchSize, err)
		}
		l.logger.Debug("loaded batch",
			slog.String("label", label),
			slog.Int("batch", i/l.batchSize),
			slog.Int("rows", end-i),
			slog.Int("nodes_created", res.NodesCreated),
			slog.Int("relationships_created", res.RelationshipsCreated))
	}
	return nil
}

func (l *Loader) applyConditionalLabels(ctx context.Context, sess Session, node model.NodeSchema, scope map[string]any) error {
	pairs, err := querybuilder.BuildConditionalLabelQueries(node)
	if err != nil {
		return err
	}
	for _, pair := range pairs {
		if _, err := sess.Run(ctx, pair.Remove, scope); err != nil {
			return fmt.Errorf("remove conditional label %s: %w", pair.Label, err)
		}
		if _, err := sess.Run(ctx, pair.Set, scope); err != nil {
			return fmt.Errorf("set conditional label %s: %w", pair.Label, err)
		}
	}
	return nil
}

// dropRowsWithoutID filters out rows missing the id source field. The rest
// of the batch still loads.
func (l *Loader) dropRowsWithoutID(node model.NodeSchema, rows []map[string]any) []map[string]any {
	idField := node.IDRef().Name

	kept := rows[:0:0]
	dropped := 0
	for _, row := range rows {
		v, ok := row[idField]
		if !ok || v == nil || v == "" {
			dropped++
			continue
		}
		kept = append(kept, row)
	}
	if dropped > 0 {
		l.logger.Warn("dropped rows without id",
			slog.String("label", node.Label),
			slog.String("id_field", idField),
			slog.Int("dropped", dropped),
			slog.Int("kept", len(kept)))
	}
	return kept
}

func checkScope(required []string, scope map[string]any) error {
	var missing []string
	for _, key := range required {
		if _, ok := scope[key]; !ok {
			missing = append(missing, "$"+key)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s", ErrMissingScopeParameter, strings.Join(missing, ", "))
	}
	return nil
}

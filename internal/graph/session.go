package graph

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j/db"
)

// Result reports what one statement returned and changed. The delete
// counters drive the cleanup runner's batching loop.
type Result struct {
	Rows []map[string]any

	NodesCreated         int
	NodesDeleted         int
	RelationshipsCreated int
	RelationshipsDeleted int
	PropertiesSet        int
}

// Deleted is the total number of entities the statement removed.
func (r *Result) Deleted() int {
	return r.NodesDeleted + r.RelationshipsDeleted
}

// Session executes statements against the graph. The compilers never touch
// one; everything they produce runs through this interface, so tests swap
// in a recording fake.
type Session interface {
	Run(ctx context.Context, query string, params map[string]any) (*Result, error)
	Close(ctx context.Context) error
}

const entityNotFoundCode = "Neo.ClientError.Statement.EntityNotFound"

const maxEntityNotFoundRetries = 5

type driverSession struct {
	sess   neo4j.SessionWithContext
	logger *slog.Logger
}

// Run executes one statement in a managed write transaction. ExecuteWrite
// already retries transient failures; EntityNotFound is a client error the
// driver will not retry on its own, yet it shows up under concurrent
// delete-heavy syncs, so it gets its own backoff loop here.
func (s *driverSession) Run(ctx context.Context, query string, params map[string]any) (*Result, error) {
	var lastErr error
	for attempt := 1; attempt <= maxEntityNotFoundRetries; attempt++ {
		result, err := neo4j.ExecuteWrite(ctx, s.sess, func(tx neo4j.ManagedTransaction) (*Result, error) {
			res, err := tx.Run(ctx, query, params)
			if err != nil {
				return nil, err
			}
			records, err := res.Collect(ctx)
			if err != nil {
				return nil, err
			}
			summary, err := res.Consume(ctx)
			if err != nil {
				return nil, err
			}

			out := &Result{}
			for _, rec := range records {
				out.Rows = append(out.Rows, rec.AsMap())
			}
			counters := summary.Counters()
			out.NodesCreated = counters.NodesCreated()
			out.NodesDeleted = counters.NodesDeleted()
			out.RelationshipsCreated = counters.RelationshipsCreated()
			out.RelationshipsDeleted = counters.RelationshipsDeleted()
			out.PropertiesSet = counters.PropertiesSet()
			return out, nil
		})
		if err == nil {
			return result, nil
		}
		if !isEntityNotFound(err) || attempt == maxEntityNotFoundRetries {
			return nil, err
		}

		lastErr = err
		wait := time.Duration(attempt) * time.Second
		s.logger.Warn("entity not found, retrying statement",
			slog.Int("attempt", attempt),
			slog.Int("max_attempts", maxEntityNotFoundRetries),
			slog.Duration("wait", wait))
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(wait):
		}
	}
	return nil, lastErr
}

func (s *driverSession) Close(ctx context.Context) error {
	return s.sess.Close(ctx)
}

func isEntityNotFound(err error) bool {
	var neoErr *db.Neo4jError
	return errors.As(err, &neoErr) && neoErr.Code == entityNotFoundCode
}

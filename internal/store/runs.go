package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Run statuses.
const (
	RunStatusRunning   = "running"
	RunStatusSucceeded = "succeeded"
	RunStatusFailed    = "failed"
)

// Stage statuses. A stage row starts pending when its run is created and is
// upserted by the worker as the stage finishes.
const (
	StageStatusPending   = "pending"
	StageStatusSucceeded = "succeeded"
	StageStatusFailed    = "failed"
)

type SyncRun struct {
	ID         uuid.UUID  `json:"id"`
	AccountID  string     `json:"account_id"`
	Modules    []string   `json:"modules"`
	UpdateTag  int64      `json:"update_tag"`
	Status     string     `json:"status"`
	Error      *string    `json:"error,omitempty"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

type StageRecord struct {
	RunID      uuid.UUID `json:"run_id"`
	Stage      string    `json:"stage"`
	Status     string    `json:"status"`
	Error      *string   `json:"error,omitempty"`
	DurationMS int64     `json:"duration_ms"`
}

// CreateRun opens a ledger row for a new sync run and seeds one pending
// stage row per module, atomically: a run must never be visible without its
// stage skeleton.
func (s *Store) CreateRun(ctx context.Context, accountID string, modules []string, updateTag int64) (*SyncRun, error) {
	run := &SyncRun{
		ID:        uuid.New(),
		AccountID: accountID,
		Modules:   modules,
		UpdateTag: updateTag,
		Status:    RunStatusRunning,
		StartedAt: time.Now().UTC(),
	}
	err := s.WithTx(ctx, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			INSERT INTO sync_runs (id, account_id, modules, update_tag, status, started_at)
			VALUES ($1, $2, $3, $4, $5, $6)`,
			run.ID, run.AccountID, run.Modules, run.UpdateTag, run.Status, run.StartedAt)
		if err != nil {
			return err
		}
		for _, module := range modules {
			rec := StageRecord{RunID: run.ID, Stage: module, Status: StageStatusPending}
			if err := recordStage(ctx, tx, rec); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("create run: %w", err)
	}
	return run, nil
}

// FinishRun closes a run with its final status. errText is stored only for
// failed runs.
func (s *Store) FinishRun(ctx context.Context, id uuid.UUID, status string, errText string) error {
	var errVal *string
	if errText != "" {
		errVal = &errText
	}
	_, err := s.pool.Exec(ctx, `
		UPDATE sync_runs SET status = $2, error = $3, finished_at = now()
		WHERE id = $1`,
		id, status, errVal)
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	return nil
}

// RecordStage upserts the outcome of one stage within a run.
func (s *Store) RecordStage(ctx context.Context, rec StageRecord) error {
	return recordStage(ctx, s.pool, rec)
}

// execer covers the pool and a transaction; stage rows are written through
// both.
type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

func recordStage(ctx context.Context, db execer, rec StageRecord) error {
	_, err := db.Exec(ctx, `
		INSERT INTO sync_run_stages (run_id, stage, status, error, duration_ms)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (run_id, stage)
		DO UPDATE SET status = $3, error = $4, duration_ms = $5, recorded_at = now()`,
		rec.RunID, rec.Stage, rec.Status, rec.Error, rec.DurationMS)
	if err != nil {
		return fmt.Errorf("record stage %s: %w", rec.Stage, err)
	}
	return nil
}

// GetRun fetches one run by id.
func (s *Store) GetRun(ctx context.Context, id uuid.UUID) (*SyncRun, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, account_id, modules, update_tag, status, error, started_at, finished_at
		FROM sync_runs WHERE id = $1`, id)

	var run SyncRun
	err := row.Scan(&run.ID, &run.AccountID, &run.Modules, &run.UpdateTag,
		&run.Status, &run.Error, &run.StartedAt, &run.FinishedAt)
	if err != nil {
		return nil, fmt.Errorf("get run: %w", err)
	}
	return &run, nil
}

// ListRuns returns the most recent runs, newest first.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]SyncRun, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	rows, err := s.pool.Query(ctx, `
		SELECT id, account_id, modules, update_tag, status, error, started_at, finished_at
		FROM sync_runs ORDER BY started_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []SyncRun
	for rows.Next() {
		var run SyncRun
		if err := rows.Scan(&run.ID, &run.AccountID, &run.Modules, &run.UpdateTag,
			&run.Status, &run.Error, &run.StartedAt, &run.FinishedAt); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// ListStages returns the stage records for one run, in recording order.
func (s *Store) ListStages(ctx context.Context, runID uuid.UUID) ([]StageRecord, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT run_id, stage, status, error, duration_ms
		FROM sync_run_stages WHERE run_id = $1 ORDER BY recorded_at`, runID)
	if err != nil {
		return nil, fmt.Errorf("list stages: %w", err)
	}
	defer rows.Close()

	var recs []StageRecord
	for rows.Next() {
		var rec StageRecord
		if err := rows.Scan(&rec.RunID, &rec.Stage, &rec.Status, &rec.Error, &rec.DurationMS); err != nil {
			return nil, fmt.Errorf("scan stage: %w", err)
		}
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}

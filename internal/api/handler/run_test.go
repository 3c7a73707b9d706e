package handler

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/trellisec/assetgraph/internal/store"
)

type fakeRunLedger struct {
	runs map[uuid.UUID]*store.SyncRun
}

func (f *fakeRunLedger) GetRun(ctx context.Context, id uuid.UUID) (*store.SyncRun, error) {
	run, ok := f.runs[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return run, nil
}

func (f *fakeRunLedger) ListRuns(ctx context.Context, limit int) ([]store.SyncRun, error) {
	var runs []store.SyncRun
	for _, r := range f.runs {
		runs = append(runs, *r)
	}
	return runs, nil
}

func (f *fakeRunLedger) ListStages(ctx context.Context, runID uuid.UUID) ([]store.StageRecord, error) {
	return nil, nil
}

func runRouter(h *RunHandler) *chi.Mux {
	r := chi.NewRouter()
	r.Get("/v1/runs", h.List)
	r.Get("/v1/runs/{runID}", h.Get)
	return r
}

func TestRunGet(t *testing.T) {
	id := uuid.New()
	ledger := &fakeRunLedger{runs: map[uuid.UUID]*store.SyncRun{
		id: {ID: id, AccountID: "acct1", Status: store.RunStatusSucceeded},
	}}
	router := runRouter(NewRunHandler(testLogger(), ledger))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/runs/"+id.String(), nil))
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/runs/"+uuid.NewString(), nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("unknown run status = %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/runs/not-a-uuid", nil))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("invalid id status = %d", rec.Code)
	}
}

func TestReadyz(t *testing.T) {
	ok := PingFunc(func(ctx context.Context) error { return nil })
	down := PingFunc(func(ctx context.Context) error { return errors.New("unreachable") })

	rec := httptest.NewRecorder()
	NewHealthHandler(ok, ok).Readyz(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	NewHealthHandler(ok, down).Readyz(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status with graph down = %d", rec.Code)
	}
}

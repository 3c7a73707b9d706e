package handler

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/trellisec/assetgraph/internal/queue"
	"github.com/trellisec/assetgraph/internal/store"
)

type fakeLedger struct {
	created []store.SyncRun
}

func (f *fakeLedger) CreateRun(ctx context.Context, accountID string, modules []string, updateTag int64) (*store.SyncRun, error) {
	run := store.SyncRun{AccountID: accountID, Modules: modules, UpdateTag: updateTag}
	f.created = append(f.created, run)
	return &run, nil
}

type fakeProducer struct {
	jobs []queue.SyncJob
}

func (f *fakeProducer) Enqueue(ctx context.Context, job queue.SyncJob) (string, error) {
	f.jobs = append(f.jobs, job)
	return "1-0", nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestTrigger(t *testing.T) {
	ledger := &fakeLedger{}
	producer := &fakeProducer{}
	h := NewSyncHandler(testLogger(), ledger, producer)

	req := httptest.NewRequest(http.MethodPost, "/v1/sync",
		strings.NewReader(`{"account_id":"123456789012","modules":["aws:s3"]}`))
	rec := httptest.NewRecorder()
	h.Trigger(rec, req)

	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if len(producer.jobs) != 1 {
		t.Fatalf("expected 1 enqueued job, got %d", len(producer.jobs))
	}
	job := producer.jobs[0]
	if job.AccountID != "123456789012" || job.UpdateTag == 0 {
		t.Errorf("job = %+v", job)
	}
	if len(ledger.created) != 1 || ledger.created[0].UpdateTag != job.UpdateTag {
		t.Error("ledger row does not match the enqueued job")
	}

	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if _, ok := body["run_id"]; !ok {
		t.Errorf("response missing run_id: %v", body)
	}
}

func TestTrigger_Validation(t *testing.T) {
	tests := map[string]struct {
		body   string
		status int
	}{
		"bad json":       {body: `{`, status: http.StatusBadRequest},
		"no account":     {body: `{"modules":["aws:s3"]}`, status: http.StatusBadRequest},
		"unknown module": {body: `{"account_id":"1","modules":["aws:quantum"]}`, status: http.StatusBadRequest},
	}
	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			producer := &fakeProducer{}
			h := NewSyncHandler(testLogger(), &fakeLedger{}, producer)

			req := httptest.NewRequest(http.MethodPost, "/v1/sync", strings.NewReader(tc.body))
			rec := httptest.NewRecorder()
			h.Trigger(rec, req)

			if rec.Code != tc.status {
				t.Errorf("status = %d, want %d; body = %s", rec.Code, tc.status, rec.Body.String())
			}
			if len(producer.jobs) != 0 {
				t.Error("job enqueued despite validation failure")
			}
		})
	}
}

func TestTrigger_QueueUnavailable(t *testing.T) {
	h := NewSyncHandler(testLogger(), &fakeLedger{}, nil)

	req := httptest.NewRequest(http.MethodPost, "/v1/sync",
		strings.NewReader(`{"account_id":"1"}`))
	rec := httptest.NewRecorder()
	h.Trigger(rec, req)

	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", rec.Code)
	}
}

func TestTrigger_DefaultsModules(t *testing.T) {
	producer := &fakeProducer{}
	h := NewSyncHandler(testLogger(), &fakeLedger{}, producer)

	req := httptest.NewRequest(http.MethodPost, "/v1/sync",
		strings.NewReader(`{"account_id":"1"}`))
	rec := httptest.NewRecorder()
	h.Trigger(rec, req)

	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d", rec.Code)
	}
	if len(producer.jobs) != 1 || len(producer.jobs[0].Modules) == 0 {
		t.Errorf("expected default modules, got %+v", producer.jobs)
	}
}

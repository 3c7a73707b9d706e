package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/trellisec/assetgraph/internal/queue"
	"github.com/trellisec/assetgraph/internal/store"
	syncpkg "github.com/trellisec/assetgraph/internal/sync"
	"github.com/trellisec/assetgraph/pkg/apierr"
)

// knownModules lists the intel modules the trigger endpoint accepts.
var knownModules = map[string]bool{
	"aws:s3": true,
}

// Enqueuer pushes a sync job onto the worker queue.
type Enqueuer interface {
	Enqueue(ctx context.Context, job queue.SyncJob) (string, error)
}

// RunCreator opens ledger rows for triggered runs.
type RunCreator interface {
	CreateRun(ctx context.Context, accountID string, modules []string, updateTag int64) (*store.SyncRun, error)
}

type SyncHandler struct {
	logger   *slog.Logger
	ledger   RunCreator
	producer Enqueuer
}

func NewSyncHandler(logger *slog.Logger, ledger RunCreator, producer Enqueuer) *SyncHandler {
	return &SyncHandler{logger: logger, ledger: ledger, producer: producer}
}

type triggerRequest struct {
	AccountID string   `json:"account_id"`
	Modules   []string `json:"modules"`
}

// Trigger enqueues a sync job and answers 202 with the run id. The worker
// does the actual syncing; this endpoint only records intent.
func (h *SyncHandler) Trigger(w http.ResponseWriter, r *http.Request) {
	if h.producer == nil {
		writeAPIError(w, h.logger, apierr.QueueUnavailable())
		return
	}

	var req triggerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIError(w, h.logger, apierr.InvalidRequestBody())
		return
	}
	if req.AccountID == "" {
		writeAPIError(w, h.logger, apierr.AccountRequired())
		return
	}
	if len(req.Modules) == 0 {
		req.Modules = []string{"aws:s3"}
	}
	for _, m := range req.Modules {
		if !knownModules[m] {
			writeAPIError(w, h.logger, apierr.UnknownModule(m))
			return
		}
	}

	updateTag := syncpkg.UpdateTag()

	var runID uuid.UUID
	if h.ledger != nil {
		run, err := h.ledger.CreateRun(r.Context(), req.AccountID, req.Modules, updateTag)
		if err != nil {
			writeAPIError(w, h.logger, apierr.InternalError(err))
			return
		}
		runID = run.ID
	} else {
		runID = uuid.New()
	}

	job := queue.SyncJob{
		RunID:     runID,
		AccountID: req.AccountID,
		Modules:   req.Modules,
		UpdateTag: updateTag,
	}
	if _, err := h.producer.Enqueue(r.Context(), job); err != nil {
		writeAPIError(w, h.logger, apierr.EnqueueFailed(err))
		return
	}

	h.logger.Info("sync job enqueued",
		slog.String("run_id", runID.String()),
		slog.String("account_id", req.AccountID),
		slog.Any("modules", req.Modules))
	writeJSON(w, http.StatusAccepted, map[string]any{
		"run_id":     runID,
		"update_tag": updateTag,
	})
}

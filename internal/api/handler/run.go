package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/trellisec/assetgraph/internal/store"
	"github.com/trellisec/assetgraph/pkg/apierr"
)

// RunLedger is the slice of the store the run handlers need.
type RunLedger interface {
	GetRun(ctx context.Context, id uuid.UUID) (*store.SyncRun, error)
	ListRuns(ctx context.Context, limit int) ([]store.SyncRun, error)
	ListStages(ctx context.Context, runID uuid.UUID) ([]store.StageRecord, error)
}

type RunHandler struct {
	logger *slog.Logger
	ledger RunLedger
}

func NewRunHandler(logger *slog.Logger, ledger RunLedger) *RunHandler {
	return &RunHandler{logger: logger, ledger: ledger}
}

func (h *RunHandler) List(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	runs, err := h.ledger.ListRuns(r.Context(), limit)
	if err != nil {
		writeAPIError(w, h.logger, apierr.RunListFailed(err))
		return
	}
	if runs == nil {
		runs = []store.SyncRun{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"runs": runs})
}

func (h *RunHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "runID"))
	if err != nil {
		writeAPIError(w, h.logger, apierr.InvalidRunID())
		return
	}

	run, err := h.ledger.GetRun(r.Context(), id)
	if err != nil {
		if apierr.IsNotFound(err) {
			writeAPIError(w, h.logger, apierr.RunNotFound())
			return
		}
		writeAPIError(w, h.logger, apierr.InternalError(err))
		return
	}

	stages, err := h.ledger.ListStages(r.Context(), id)
	if err != nil {
		writeAPIError(w, h.logger, apierr.InternalError(err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"run": run, "stages": stages})
}

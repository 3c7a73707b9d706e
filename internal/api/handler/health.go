package handler

import (
	"context"
	"net/http"

	"github.com/trellisec/assetgraph/pkg/apierr"
)

// Pinger reports whether a backing service is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingFunc adapts a function to Pinger.
type PingFunc func(ctx context.Context) error

func (f PingFunc) Ping(ctx context.Context) error { return f(ctx) }

type HealthHandler struct {
	database Pinger
	graph    Pinger
}

func NewHealthHandler(database, graph Pinger) *HealthHandler {
	return &HealthHandler{database: database, graph: graph}
}

func (h *HealthHandler) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *HealthHandler) Readyz(w http.ResponseWriter, r *http.Request) {
	if h.database != nil {
		if err := h.database.Ping(r.Context()); err != nil {
			writeAPIError(w, nil, apierr.DatabaseNotReady())
			return
		}
	}
	if h.graph != nil {
		if err := h.graph.Ping(r.Context()); err != nil {
			writeAPIError(w, nil, apierr.GraphNotReady())
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Package api serves the operational surface: health probes, sync-run
// status from the ledger, and the sync trigger endpoint.
package api

import (
	"log/slog"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	apihandler "github.com/trellisec/assetgraph/internal/api/handler"
)

// RouterDeps holds the service dependencies; optional ones may be nil and
// their endpoints degrade (readyz skips the probe, trigger answers 503).
type RouterDeps struct {
	Database apihandler.Pinger
	Graph    apihandler.Pinger
	Ledger   interface {
		apihandler.RunLedger
		apihandler.RunCreator
	}
	Producer apihandler.Enqueuer
}

func NewRouter(logger *slog.Logger, deps RouterDeps) *chi.Mux {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(requestLogger(logger))
	r.Use(chimw.Recoverer)

	health := apihandler.NewHealthHandler(deps.Database, deps.Graph)
	r.Get("/healthz", health.Healthz)
	r.Get("/readyz", health.Readyz)

	r.Route("/v1", func(r chi.Router) {
		if deps.Ledger != nil {
			runs := apihandler.NewRunHandler(logger, deps.Ledger)
			r.Get("/runs", runs.List)
			r.Get("/runs/{runID}", runs.Get)
		}

		syncs := apihandler.NewSyncHandler(logger, deps.Ledger, deps.Producer)
		r.Post("/sync", syncs.Trigger)
	})

	return r
}

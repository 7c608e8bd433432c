// Package httptransport assembles the module handlers into one router. It is
// a thin layer: routing, shared middleware, health, and metrics only.
package httptransport

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	claimhandler "yeto/internal/claim/handler"
	contradictionhandler "yeto/internal/contradiction/handler"
	entityhandler "yeto/internal/entity/handler"
	"yeto/internal/platform/middleware"
	"yeto/internal/provenance"
)

// Handlers groups the module handlers the router mounts.
type Handlers struct {
	Entity        *entityhandler.Handler
	Claim         *claimhandler.Handler
	Contradiction *contradictionhandler.Handler
	Provenance    *provenance.Handler
}

// NewRouter wires all endpoints. Adjudication routes (review decisions,
// merges, contradiction transitions) sit behind reviewer authentication;
// resolution and read routes are open to ingestion and display collaborators.
func NewRouter(h Handlers, validator middleware.TokenValidator, logger *slog.Logger) http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(middleware.RequestMeta)

	r.Get("/healthz", handleHealth)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/v1", func(r chi.Router) {
		h.Entity.Register(r)
		h.Claim.Register(r)
		h.Contradiction.Register(r)
		h.Provenance.Register(r)

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireReviewer(validator, logger))
			h.Entity.RegisterReviewer(r)
			h.Contradiction.RegisterReviewer(r)
			h.Provenance.RegisterReviewer(r)
		})
	})

	return r
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}

package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/warelane/warelane/internal/fulfillment"
	"github.com/warelane/warelane/internal/policy"
	"github.com/warelane/warelane/internal/routing"
	"github.com/warelane/warelane/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger             *slog.Logger
	Config             *Config
	FulfillmentHandler *fulfillment.Handler
	PolicyHandler      *policy.Handler
	RoutingHandler     *routing.Handler
	JobHandler         *jobs.Handler
}

// NewRouter constructs the chi.Router with Warelane defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger: params.Logger,
		Config: params.Config,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/orders", params.FulfillmentHandler.MountRoutes)
	if params.PolicyHandler != nil {
		r.Route("/policy", params.PolicyHandler.MountRoutes)
	}
	if params.RoutingHandler != nil {
		r.Route("/routing", params.RoutingHandler.MountRoutes)
	}
	if params.JobHandler != nil {
		r.Route("/jobs", params.JobHandler.MountRoutes)
	}

	return r
}

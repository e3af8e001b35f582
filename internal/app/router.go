package app

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/inkpress/inkpress/internal/auth"
	"github.com/inkpress/inkpress/internal/blog"
	"github.com/inkpress/inkpress/internal/observability"
	"github.com/inkpress/inkpress/internal/platform/httpx"
	"github.com/inkpress/inkpress/internal/users"
	"github.com/inkpress/inkpress/jobs"
)

// HealthCheck reports whether a backing service is reachable.
type HealthCheck func(ctx context.Context) error

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger       *slog.Logger
	Config       *Config
	Gate         *auth.Gate
	AuthHandler  *auth.Handler
	UsersHandler *users.Handler
	BlogHandler  *blog.Handler
	JobsHandler  *jobs.Handler
	Metrics      *observability.Metrics
	HealthChecks map[string]HealthCheck
}

// NewRouter constructs the chi.Router with the API routes.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:  params.Logger,
		Config:  params.Config,
		Metrics: params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", healthHandler(params.HealthChecks))
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	var apiKeys []string
	if params.Config != nil {
		apiKeys = params.Config.APIKeys
	}
	r.Route("/v1", func(r chi.Router) {
		r.Use(APIKeyMiddleware(apiKeys))
		r.Route("/user", func(r chi.Router) {
			params.AuthHandler.MountRoutes(r)
			if params.UsersHandler != nil {
				r.Route("/management", func(r chi.Router) {
					r.Use(params.Gate.Middleware)
					params.UsersHandler.MountRoutes(r)
				})
			}
		})
		if params.BlogHandler != nil {
			r.Route("/blog", params.BlogHandler.MountRoutes)
		}
		if params.JobsHandler != nil {
			r.Route("/jobs", params.JobsHandler.MountRoutes)
		}
	})

	return r
}

func healthHandler(checks map[string]HealthCheck) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		report := make(map[string]string, len(checks))
		healthy := true
		for name, check := range checks {
			if err := check(ctx); err != nil {
				report[name] = err.Error()
				healthy = false
				continue
			}
			report[name] = "ok"
		}
		if !healthy {
			httpx.Fail(w, http.StatusServiceUnavailable, "unavailable", report)
			return
		}
		httpx.Success(w, http.StatusOK, "ok", report)
	}
}

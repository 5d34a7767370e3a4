package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/archvault/archvault/internal/artifacts"
	"github.com/archvault/archvault/internal/auth"
	"github.com/archvault/archvault/internal/authz"
	"github.com/archvault/archvault/internal/observability"
	"github.com/archvault/archvault/internal/profiles"
	"github.com/archvault/archvault/internal/shared"
	"github.com/archvault/archvault/internal/users"
	"github.com/archvault/archvault/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger           *slog.Logger
	Config           *Config
	SessionManager   *shared.SessionManager
	CSRFManager      *shared.CSRFManager
	Guard            authz.Middleware
	AuthHandler      *auth.Handler
	ProfileHandler   *profiles.Handler
	UsersHandler     *users.Handler
	ArtifactsHandler *artifacts.Handler
	JobsHandler      *jobs.Handler
	Pool             *pgxpool.Pool
	Metrics          *observability.Metrics
}

// NewRouter constructs the chi.Router with application defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:         params.Logger,
		Config:         params.Config,
		SessionManager: params.SessionManager,
		CSRFManager:    params.CSRFManager,
		Metrics:        params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	// Every request resolves its identity once; downstream guards and
	// handlers read it from context.
	r.Use(params.Guard.Resolve)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		shared.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if params.Pool != nil {
			if err := params.Pool.Ping(r.Context()); err != nil {
				params.Logger.Warn("readiness ping failed", slog.Any("error", err))
				shared.WriteError(w, http.StatusServiceUnavailable, err)
				return
			}
		}
		shared.WriteJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	})
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		shared.WriteJSON(w, http.StatusOK, map[string]string{"service": "archvault"})
	})

	r.Route("/auth", params.AuthHandler.MountRoutes)

	r.Group(func(r chi.Router) {
		r.Use(params.Guard.RequireUser)
		r.Route("/profile", params.ProfileHandler.MountRoutes)
		r.Route("/users", params.UsersHandler.MountRoutes)
		r.Route("/artifacts", params.ArtifactsHandler.MountRoutes)
		if params.JobsHandler != nil {
			r.Route("/jobs", params.JobsHandler.MountRoutes)
		}
	})

	return r
}

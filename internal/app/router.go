package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/assistente-financeiro/assistente-financeiro/internal/auth"
	"github.com/assistente-financeiro/assistente-financeiro/internal/finance"
	"github.com/assistente-financeiro/assistente-financeiro/internal/observability"
	"github.com/assistente-financeiro/assistente-financeiro/internal/platform/httpx"
	"github.com/assistente-financeiro/assistente-financeiro/internal/rbac"
	"github.com/assistente-financeiro/assistente-financeiro/internal/reports"
	"github.com/assistente-financeiro/assistente-financeiro/internal/users"
	"github.com/assistente-financeiro/assistente-financeiro/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger     *slog.Logger
	Config     *Config
	Services   *Services
	Metrics    *observability.Metrics
	JobHandler *jobs.Handler
}

// NewRouter constructs the chi.Router with the API defaults.
func NewRouter(params RouterParams) http.Handler {
	logger := params.Logger
	if logger == nil {
		logger = slog.Default()
	}
	svc := params.Services
	mwConfig := MiddlewareConfig{
		Logger:      logger,
		Config:      params.Config,
		Profiles:    svc.Profiles,
		CSRFManager: svc.CSRF,
		Restorer:    svc.Restorer,
		Metrics:     params.Metrics,
	}
	authz := rbac.Middleware{Checker: svc.Checker, Logger: logger}

	authHandler := auth.NewHandler(logger, svc.Auth, svc.CSRF)
	usersHandler := users.NewHandler(logger, svc.Users, authz, svc.Audit)
	financeHandler := finance.NewHandler(logger, svc.Finance, authz)
	reportsHandler := reports.NewHandler(logger, svc.Finance, svc.Reports, authz)
	permissionsHandler := rbac.NewPermissionsHandler(svc.Checker)

	r := chi.NewRouter()
	for _, mw := range MiddlewareStack(mwConfig) {
		r.Use(mw)
	}
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		httpx.RespondError(w, httpx.NewError(httpx.ErrNotFound, "route not found"))
	})

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		httpx.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}
	if params.JobHandler != nil {
		r.Route("/jobs", params.JobHandler.MountRoutes)
	}

	r.Route("/api", func(r chi.Router) {
		for _, mw := range SessionStack(mwConfig) {
			r.Use(mw)
		}

		// The change feed is long-lived and must not be cut by the request timeout.
		r.Get("/events", financeHandler.Events)

		r.Group(func(r chi.Router) {
			r.Use(requestTimeout(params.Config))
			r.Use(chimw.Compress(5))

			r.Route("/auth", authHandler.MountRoutes)
			r.Route("/users", usersHandler.MountRoutes)
			r.Route("/permissions", permissionsHandler.MountRoutes)
			r.Route("/reports", reportsHandler.MountRoutes)
			financeHandler.MountRoutes(r)
		})
	})
	return r
}

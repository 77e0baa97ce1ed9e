package app

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/unrolled/secure"

	"github.com/assistente-financeiro/assistente-financeiro/internal/auth"
	"github.com/assistente-financeiro/assistente-financeiro/internal/observability"
	"github.com/assistente-financeiro/assistente-financeiro/internal/platform/httpx"
	"github.com/assistente-financeiro/assistente-financeiro/internal/shared"
)

// MiddlewareConfig aggregates dependencies shared by the middleware stack.
type MiddlewareConfig struct {
	Logger      *slog.Logger
	Config      *Config
	Profiles    *shared.ProfileManager
	CSRFManager *shared.CSRFManager
	Restorer    *auth.Restorer
	Metrics     *observability.Metrics
}

// MiddlewareStack installs the middleware shared by every route.
func MiddlewareStack(cfg MiddlewareConfig) []func(http.Handler) http.Handler {
	secureMiddleware := secure.New(secure.Options{
		FrameDeny:             true,
		ContentTypeNosniff:    true,
		BrowserXssFilter:      true,
		ReferrerPolicy:        "strict-origin-when-cross-origin",
		PermissionsPolicy:     "camera=(), microphone=(), geolocation=()",
		ContentSecurityPolicy: "default-src 'none'; frame-ancestors 'none'",
		SSLRedirect:           cfg.Config.IsProduction(),
		SSLProxyHeaders:       map[string]string{"X-Forwarded-Proto": "https"},
		IsDevelopment:         !cfg.Config.IsProduction(),
	})

	middlewares := []func(http.Handler) http.Handler{
		middleware.RealIP,
		middleware.RequestID,
		middleware.Recoverer,
		tracing,
	}
	if cfg.Metrics != nil {
		middlewares = append(middlewares, cfg.Metrics.Middleware)
	}
	return append(middlewares,
		func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if err := secureMiddleware.Process(w, r); err != nil {
					cfg.Logger.Warn("secure headers blocked request", slog.Any("error", err))
					http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
					return
				}
				next.ServeHTTP(w, r)
			})
		},
		middleware.RequestLogger(&middleware.DefaultLogFormatter{Logger: slog.NewLogLogger(cfg.Logger.Handler(), slog.LevelInfo), NoColor: true}),
		httprate.Limit(120, time.Minute,
			httprate.WithKeyFuncs(httprate.KeyByIP),
			httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
				httpx.RespondError(w, httpx.ErrTooManyRequests)
			}),
		),
	)
}

// SessionStack resolves the browser profile, restores the signed-in user and enforces CSRF on
// unsafe methods. It runs on every /api route.
func SessionStack(cfg MiddlewareConfig) []func(http.Handler) http.Handler {
	profileMiddleware := func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			p := cfg.Profiles.Load(r)
			cfg.Profiles.Commit(w, p)
			if err := cfg.Profiles.Touch(ctx, p); err != nil {
				cfg.Logger.Warn("touch profile", slog.String("profile", p.ID), slog.Any("error", err))
			}
			next.ServeHTTP(w, r.WithContext(shared.ContextWithProfile(ctx, p)))
		})
	}

	csrfMiddleware := func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodGet || r.Method == http.MethodHead || r.Method == http.MethodOptions {
				next.ServeHTTP(w, r)
				return
			}
			p := shared.ProfileFromContext(r.Context())
			if err := cfg.CSRFManager.VerifyToken(r.Context(), p, r.Header.Get(shared.CSRFHeader)); err != nil {
				if httpx.IsClientError(err) {
					cfg.Logger.Warn("csrf validation failed", slog.String("path", r.URL.Path))
				} else {
					cfg.Logger.Error("csrf lookup", slog.Any("error", err))
				}
				httpx.RespondError(w, err)
				return
			}
			next.ServeHTTP(w, r)
		})
	}

	return []func(http.Handler) http.Handler{
		profileMiddleware,
		cfg.Restorer.Middleware(auth.CookieConfig{
			Secure: cfg.Config.IsProduction(),
			TTL:    cfg.Config.TokenTTL,
		}),
		csrfMiddleware,
	}
}

// requestTimeout bounds ordinary API requests. The event stream is mounted outside it.
func requestTimeout(cfg *Config) func(http.Handler) http.Handler {
	timeout := 30 * time.Second
	if cfg != nil && cfg.AppRequestTimeout > 0 {
		timeout = cfg.AppRequestTimeout
	}
	return middleware.Timeout(timeout)
}

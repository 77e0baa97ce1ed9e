package auth

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"
	"github.com/go-playground/validator/v10"

	"github.com/assistente-financeiro/assistente-financeiro/internal/platform/httpx"
	"github.com/assistente-financeiro/assistente-financeiro/internal/shared"
	"github.com/assistente-financeiro/assistente-financeiro/internal/users"
)

// Handler wires HTTP endpoints for authentication flows.
type Handler struct {
	logger      *slog.Logger
	service     *Service
	csrfManager *shared.CSRFManager
	validator   *validator.Validate
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, service *Service, csrf *shared.CSRFManager) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		logger:      logger,
		service:     service,
		csrfManager: csrf,
		validator:   shared.NewValidator(),
	}
}

// MountRoutes registers auth routes on provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	limiter := httprate.Limit(20, time.Minute,
		httprate.WithKeyFuncs(httprate.KeyByIP),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			httpx.RespondError(w, httpx.ErrTooManyRequests)
		}),
	)
	r.Get("/me", h.me)
	r.Post("/logout", h.logout)
	r.Group(func(r chi.Router) {
		r.Use(limiter)
		r.Post("/login", h.login)
		r.Post("/register", h.register)
	})
}

type sessionResponse struct {
	User      *users.User `json:"user"`
	CSRFToken string      `json:"csrfToken,omitempty"`
}

func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	var in LoginInput
	if !h.decode(w, r, &in) {
		return
	}
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	u, err := h.service.Login(r.Context(), sess, in)
	if err != nil {
		h.fail(w, "login", err)
		return
	}
	httpx.JSON(w, http.StatusOK, sessionResponse{User: &u, CSRFToken: h.csrfToken(r)})
}

func (h *Handler) register(w http.ResponseWriter, r *http.Request) {
	var in RegisterInput
	if !h.decode(w, r, &in) {
		return
	}
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	u, err := h.service.Register(r.Context(), sess, in)
	if err != nil {
		h.fail(w, "register", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, sessionResponse{User: &u, CSRFToken: h.csrfToken(r)})
}

func (h *Handler) logout(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	if err := h.service.Logout(r.Context(), sess); err != nil {
		h.fail(w, "logout", err)
		return
	}
	httpx.NoContent(w)
}

// me returns the signed-in user, or null for guests, together with the CSRF token of the
// profile so a fresh client can make its first unsafe request.
func (h *Handler) me(w http.ResponseWriter, r *http.Request) {
	httpx.JSON(w, http.StatusOK, sessionResponse{
		User:      users.UserFromContext(r.Context()),
		CSRFToken: h.csrfToken(r),
	})
}

func (h *Handler) csrfToken(r *http.Request) string {
	if h.csrfManager == nil {
		return ""
	}
	token, err := h.csrfManager.EnsureToken(r.Context(), shared.ProfileFromContext(r.Context()))
	if err != nil {
		h.logger.Warn("ensure csrf token", slog.Any("error", err))
		return ""
	}
	return token
}

func (h *Handler) session(w http.ResponseWriter, r *http.Request) (*Session, bool) {
	sess := SessionFromContext(r.Context())
	if sess == nil {
		h.logger.Error("session missing from request context")
		httpx.RespondError(w, errSessionUnavailable)
		return nil, false
	}
	return sess, true
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dest any) bool {
	if err := httpx.DecodeJSON(r, dest); err != nil {
		httpx.RespondError(w, err)
		return false
	}
	if err := shared.ValidateStruct(h.validator, dest); err != nil {
		httpx.RespondError(w, err)
		return false
	}
	return true
}

func (h *Handler) fail(w http.ResponseWriter, op string, err error) {
	if !httpx.IsClientError(err) {
		h.logger.Error(op+" failed", slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}

package users

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/assistente-financeiro/assistente-financeiro/internal/platform/httpx"
	"github.com/assistente-financeiro/assistente-financeiro/internal/shared"
)

// Handler manages user management endpoints.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	authz     shared.Authorizer
	audit     *shared.AuditLogger
	validator *validator.Validate
}

// NewHandler builds Handler instance. audit may be nil.
func NewHandler(logger *slog.Logger, service *Service, authz shared.Authorizer, audit *shared.AuditLogger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service, authz: authz, audit: audit, validator: shared.NewValidator()}
}

// MountRoutes registers user routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.With(h.authz.Require(shared.ResourceUsers, shared.ActionRead)).Get("/", h.listUsers)
	r.With(h.authz.Require(shared.ResourceUsers, shared.ActionCreate)).Post("/", h.createUser)
	r.With(h.authz.Require(shared.ResourceSettings, shared.ActionUpdate)).Put("/me/password", h.changePassword)
	r.With(h.authz.Require(shared.ResourceUsers, shared.ActionRead)).Get("/{id}", h.getUser)
	r.With(h.authz.Require(shared.ResourceUsers, shared.ActionUpdate)).Patch("/{id}", h.editUser)
	r.With(h.authz.Require(shared.ResourceUsers, shared.ActionUpdate)).Post("/{id}/active", h.toggleActive)
	r.With(h.authz.Require(shared.ResourceUsers, shared.ActionDelete)).Delete("/{id}", h.deleteUser)
}

func (h *Handler) listUsers(w http.ResponseWriter, r *http.Request) {
	list, err := h.service.ListUsers(r.Context())
	if err != nil {
		h.fail(w, "list users", err)
		return
	}
	httpx.JSON(w, http.StatusOK, list)
}

func (h *Handler) getUser(w http.ResponseWriter, r *http.Request) {
	u, err := h.service.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, "get user", err)
		return
	}
	httpx.JSON(w, http.StatusOK, u)
}

func (h *Handler) createUser(w http.ResponseWriter, r *http.Request) {
	var in CreateInput
	if err := httpx.DecodeJSON(r, &in); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := shared.ValidateStruct(h.validator, in); err != nil {
		httpx.RespondError(w, err)
		return
	}
	u, err := h.service.Create(r.Context(), in)
	if err != nil {
		h.fail(w, "create user", err)
		return
	}
	h.record(r, "create", u.ID, map[string]any{"role": u.Role})
	httpx.JSON(w, http.StatusCreated, u)
}

func (h *Handler) editUser(w http.ResponseWriter, r *http.Request) {
	var in EditInput
	if err := httpx.DecodeJSON(r, &in); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := shared.ValidateStruct(h.validator, in); err != nil {
		httpx.RespondError(w, err)
		return
	}
	actor := UserFromContext(r.Context())
	u, err := h.service.Edit(r.Context(), actor.ID, chi.URLParam(r, "id"), in)
	if err != nil {
		h.fail(w, "edit user", err)
		return
	}
	h.record(r, "update", u.ID, map[string]any{"role": u.Role})
	httpx.JSON(w, http.StatusOK, u)
}

func (h *Handler) toggleActive(w http.ResponseWriter, r *http.Request) {
	actor := UserFromContext(r.Context())
	u, err := h.service.ToggleActive(r.Context(), actor.ID, chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, "toggle user", err)
		return
	}
	h.record(r, "toggle_active", u.ID, map[string]any{"isActive": u.IsActive})
	httpx.JSON(w, http.StatusOK, u)
}

func (h *Handler) deleteUser(w http.ResponseWriter, r *http.Request) {
	actor := UserFromContext(r.Context())
	id := chi.URLParam(r, "id")
	if err := h.service.Delete(r.Context(), actor.ID, id); err != nil {
		h.fail(w, "delete user", err)
		return
	}
	h.record(r, "delete", id, nil)
	httpx.NoContent(w)
}

func (h *Handler) changePassword(w http.ResponseWriter, r *http.Request) {
	var in PasswordInput
	if err := httpx.DecodeJSON(r, &in); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := shared.ValidateStruct(h.validator, in); err != nil {
		httpx.RespondError(w, err)
		return
	}
	actor := UserFromContext(r.Context())
	if err := h.service.ChangePassword(r.Context(), actor.ID, in); err != nil {
		h.fail(w, "change password", err)
		return
	}
	h.record(r, "change_password", actor.ID, nil)
	httpx.NoContent(w)
}

func (h *Handler) record(r *http.Request, action, id string, meta map[string]any) {
	if h.audit == nil {
		return
	}
	var actorID string
	if actor := UserFromContext(r.Context()); actor != nil {
		actorID = actor.ID
	}
	if err := h.audit.Record(r.Context(), shared.AuditLog{
		ActorID:  actorID,
		Action:   action,
		Entity:   "user",
		EntityID: id,
		Meta:     meta,
	}); err != nil {
		h.logger.Warn("audit user change", slog.Any("error", err))
	}
}

func (h *Handler) fail(w http.ResponseWriter, op string, err error) {
	if !httpx.IsClientError(err) {
		h.logger.Error(op+" failed", slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}

package rbac

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/assistente-financeiro/assistente-financeiro/internal/platform/httpx"
	"github.com/assistente-financeiro/assistente-financeiro/internal/shared"
	"github.com/assistente-financeiro/assistente-financeiro/internal/users"
)

// PermissionsHandler exposes the caller's grants so clients can hide denied actions.
type PermissionsHandler struct {
	checker *Checker
}

// NewPermissionsHandler builds PermissionsHandler instance.
func NewPermissionsHandler(checker *Checker) *PermissionsHandler {
	if checker == nil {
		checker = defaultChecker
	}
	return &PermissionsHandler{checker: checker}
}

// MountRoutes registers permission routes.
func (h *PermissionsHandler) MountRoutes(r chi.Router) {
	r.Get("/", h.listPermissions)
}

type permissionsResponse struct {
	Role        users.Role          `json:"role"`
	Permissions map[string][]string `json:"permissions"`
}

func (h *PermissionsHandler) listPermissions(w http.ResponseWriter, r *http.Request) {
	user := users.UserFromContext(r.Context())
	if user == nil {
		httpx.RespondError(w, shared.ErrSessionExpired)
		return
	}
	httpx.JSON(w, http.StatusOK, permissionsResponse{Role: user.Role, Permissions: h.checker.Grants(user)})
}

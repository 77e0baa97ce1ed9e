package rbac

import (
	"log/slog"
	"net/http"

	"github.com/assistente-financeiro/assistente-financeiro/internal/platform/httpx"
	"github.com/assistente-financeiro/assistente-financeiro/internal/shared"
	"github.com/assistente-financeiro/assistente-financeiro/internal/users"
)

// Middleware wires RBAC authorization helpers for HTTP handlers.
type Middleware struct {
	Checker *Checker
	Logger  *slog.Logger
}

// Require lets the request through only when the signed-in user may perform action on
// resource. Guests receive 401 and denied users 403.
func (m Middleware) Require(resource, action string) func(http.Handler) http.Handler {
	checker := m.Checker
	if checker == nil {
		checker = defaultChecker
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user := users.UserFromContext(r.Context())
			if user == nil {
				httpx.RespondError(w, shared.ErrSessionExpired)
				return
			}
			if !checker.HasPermission(user, resource, action) {
				if m.Logger != nil {
					m.Logger.Info("permission denied",
						slog.String("role", string(user.Role)),
						slog.String("resource", resource),
						slog.String("action", action))
				}
				httpx.RespondError(w, shared.ErrForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

var _ shared.Authorizer = Middleware{}

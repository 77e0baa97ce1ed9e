package shared

import "github.com/assistente-financeiro/assistente-financeiro/internal/platform/httpx"

var (
	// ErrNotFound indicates resource not found.
	ErrNotFound = httpx.NewError(httpx.ErrNotFound, "not found")
	// ErrInvalidCredentials covers every login failure: unknown email, inactive account and wrong password.
	ErrInvalidCredentials = httpx.NewError(httpx.ErrUnauthorized, "invalid credentials")
	// ErrSessionExpired indicates a missing, invalid or expired token.
	ErrSessionExpired = httpx.NewError(httpx.ErrUnauthorized, "session expired")
	// ErrForbidden is returned when the permission table denies an action.
	ErrForbidden = httpx.NewError(httpx.ErrForbidden, "insufficient permission")
	// ErrEmailTaken indicates another account already uses the email.
	ErrEmailTaken = httpx.NewError(httpx.ErrDuplicate, "email already registered")
	// ErrSelfDelete prevents an administrator from deleting the account they are signed in with.
	ErrSelfDelete = httpx.NewError(httpx.ErrConflict, "cannot delete the signed-in account")
	// ErrSelfDeactivate prevents an administrator from deactivating their own account.
	ErrSelfDeactivate = httpx.NewError(httpx.ErrConflict, "cannot deactivate the signed-in account")
	// ErrSelfDemote prevents an administrator from removing their own admin role.
	ErrSelfDemote = httpx.NewError(httpx.ErrConflict, "cannot demote the signed-in account")
	// ErrLastAdmin prevents an update that would leave no active administrator.
	ErrLastAdmin = httpx.NewError(httpx.ErrConflict, "at least one active administrator is required")
	// ErrTooManyAttempts is returned while login attempts for an email are throttled.
	ErrTooManyAttempts = httpx.NewError(httpx.ErrTooManyRequests, "too many login attempts")
	// ErrCSRFTokenMissing occurs when CSRF token missing.
	ErrCSRFTokenMissing = httpx.NewError(httpx.ErrForbidden, "csrf token missing")
	// ErrCSRFTokenMismatch occurs when CSRF tokens do not match.
	ErrCSRFTokenMismatch = httpx.NewError(httpx.ErrForbidden, "csrf token mismatch")
)

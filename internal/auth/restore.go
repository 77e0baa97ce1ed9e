package auth

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/assistente-financeiro/assistente-financeiro/internal/security"
	"github.com/assistente-financeiro/assistente-financeiro/internal/shared"
	"github.com/assistente-financeiro/assistente-financeiro/internal/users"
)

// Restorer re-establishes the signed-in user from a session.
type Restorer struct {
	tokens *security.Tokens
	dir    *users.Directory
	logger *slog.Logger
}

// NewRestorer builds a Restorer.
func NewRestorer(tokens *security.Tokens, dir *users.Directory, logger *slog.Logger) *Restorer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Restorer{tokens: tokens, dir: dir, logger: logger}
}

// Restore verifies the stored token and reloads its subject from the directory. A missing,
// invalid or expired token, or a subject that no longer exists or is inactive, clears the
// session and yields nil. Running it twice gives the same result.
func (r *Restorer) Restore(ctx context.Context, sess *Session) (*users.User, error) {
	raw, ok, err := sess.ReadToken(ctx)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, sess.ClearCurrentUser(ctx)
	}
	claims, ok := r.tokens.Verify(raw)
	if !ok {
		return nil, sess.Clear(ctx)
	}
	u, err := r.dir.FindByID(ctx, claims.Subject)
	if errors.Is(err, shared.ErrNotFound) {
		return nil, sess.Clear(ctx)
	}
	if err != nil {
		return nil, err
	}
	if !u.IsActive {
		return nil, sess.Clear(ctx)
	}
	projected, err := sess.ReadCurrentUser(ctx)
	if err != nil {
		return nil, err
	}
	if projected == nil || !sameProjection(*projected, u) {
		if err := sess.PersistCurrentUser(ctx, u); err != nil {
			return nil, err
		}
	}
	return &u, nil
}

// sameProjection reports whether the stored projection still mirrors the directory record.
func sameProjection(a, b users.User) bool {
	if a.ID != b.ID || a.Name != b.Name || a.Email != b.Email || a.Role != b.Role ||
		a.IsActive != b.IsActive || a.Avatar != b.Avatar || !a.CreatedAt.Equal(b.CreatedAt) {
		return false
	}
	if a.LastLogin == nil || b.LastLogin == nil {
		return a.LastLogin == b.LastLogin
	}
	return a.LastLogin.Equal(*b.LastLogin)
}

// Middleware binds the token cookie and the profile of each request into a Session, restores
// the user and stores both in the request context. Backend failures leave the request
// unauthenticated without clearing anything.
func (r *Restorer) Middleware(cookies CookieConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			profile := shared.ProfileFromContext(req.Context())
			if profile == nil {
				next.ServeHTTP(w, req)
				return
			}
			sess := NewSession(cookies.Bind(w, req), profile.Store)
			ctx := ContextWithSession(req.Context(), sess)
			u, err := r.Restore(ctx, sess)
			if err != nil {
				r.logger.Error("restore session", slog.Any("error", err))
			}
			if u != nil {
				ctx = users.ContextWithUser(ctx, u)
			}
			next.ServeHTTP(w, req.WithContext(ctx))
		})
	}
}

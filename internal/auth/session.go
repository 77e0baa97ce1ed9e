package auth

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/assistente-financeiro/assistente-financeiro/internal/shared"
	"github.com/assistente-financeiro/assistente-financeiro/internal/storage"
	"github.com/assistente-financeiro/assistente-financeiro/internal/users"
)

// TokenKey names the token cookie and the storage slot used by non-browser clients.
const TokenKey = "auth_token"

var errSessionUnavailable = errors.New("auth: session unavailable")

// TokenStore holds the signed session token.
type TokenStore interface {
	ReadToken(ctx context.Context) (string, bool, error)
	PersistToken(ctx context.Context, token string) error
	ClearToken(ctx context.Context) error
}

// CookieConfig describes the token cookie.
type CookieConfig struct {
	Secure bool
	TTL    time.Duration
}

// Bind returns the token store of one request. Tokens written during the request are visible
// to later reads of the same request.
func (c CookieConfig) Bind(w http.ResponseWriter, r *http.Request) *CookieTokens {
	return &CookieTokens{w: w, r: r, cfg: c, now: time.Now}
}

// CookieTokens keeps the token in the auth_token cookie.
type CookieTokens struct {
	w   http.ResponseWriter
	r   *http.Request
	cfg CookieConfig

	now      func() time.Time
	override *string
}

func (c *CookieTokens) ReadToken(context.Context) (string, bool, error) {
	if c.override != nil {
		return *c.override, *c.override != "", nil
	}
	cookie, err := c.r.Cookie(TokenKey)
	if err != nil || cookie.Value == "" {
		return "", false, nil
	}
	return cookie.Value, true, nil
}

func (c *CookieTokens) PersistToken(_ context.Context, token string) error {
	http.SetCookie(c.w, &http.Cookie{
		Name:     TokenKey,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		Secure:   c.cfg.Secure,
		SameSite: http.SameSiteStrictMode,
		Expires:  c.now().Add(c.cfg.TTL),
		MaxAge:   int(c.cfg.TTL.Seconds()),
	})
	c.override = &token
	return nil
}

func (c *CookieTokens) ClearToken(context.Context) error {
	http.SetCookie(c.w, &http.Cookie{
		Name:     TokenKey,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		Secure:   c.cfg.Secure,
		SameSite: http.SameSiteStrictMode,
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
	})
	empty := ""
	c.override = &empty
	return nil
}

// StorageTokens keeps the token under TokenKey in a store.
type StorageTokens struct {
	Store storage.Store
}

func (s StorageTokens) ReadToken(ctx context.Context) (string, bool, error) {
	token, err := s.Store.Get(ctx, TokenKey)
	if errors.Is(err, storage.ErrNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return token, token != "", nil
}

func (s StorageTokens) PersistToken(ctx context.Context, token string) error {
	return s.Store.Set(ctx, TokenKey, token)
}

func (s StorageTokens) ClearToken(ctx context.Context) error {
	return s.Store.Delete(ctx, TokenKey)
}

// Session pairs the token store with the currentUser projection kept in the profile store.
type Session struct {
	tokens  TokenStore
	profile storage.Store
}

// NewSession builds a Session.
func NewSession(tokens TokenStore, profile storage.Store) *Session {
	return &Session{tokens: tokens, profile: profile}
}

// Profile returns the store holding the projection and the guest partition.
func (s *Session) Profile() storage.Store {
	return s.profile
}

func (s *Session) ReadToken(ctx context.Context) (string, bool, error) {
	return s.tokens.ReadToken(ctx)
}

func (s *Session) PersistToken(ctx context.Context, token string) error {
	return s.tokens.PersistToken(ctx, token)
}

func (s *Session) ClearToken(ctx context.Context) error {
	return s.tokens.ClearToken(ctx)
}

// ReadCurrentUser returns the projection, or nil when none is stored.
func (s *Session) ReadCurrentUser(ctx context.Context) (*users.User, error) {
	var u users.User
	ok, err := storage.LoadJSON(ctx, s.profile, shared.CurrentUserKey, &u)
	if err != nil || !ok {
		return nil, err
	}
	return &u, nil
}

// PersistCurrentUser stores the sanitized projection of u.
func (s *Session) PersistCurrentUser(ctx context.Context, u users.User) error {
	return storage.SaveJSON(ctx, s.profile, shared.CurrentUserKey, u)
}

func (s *Session) ClearCurrentUser(ctx context.Context) error {
	return s.profile.Delete(ctx, shared.CurrentUserKey)
}

// Clear removes both the token and the projection.
func (s *Session) Clear(ctx context.Context) error {
	return errors.Join(s.ClearToken(ctx), s.ClearCurrentUser(ctx))
}

type sessionKey struct{}

// ContextWithSession stores the session in the context.
func ContextWithSession(ctx context.Context, s *Session) context.Context {
	return context.WithValue(ctx, sessionKey{}, s)
}

// SessionFromContext extracts the session.
func SessionFromContext(ctx context.Context) *Session {
	s, _ := ctx.Value(sessionKey{}).(*Session)
	return s
}

package auth_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/assistente-financeiro/assistente-financeiro/internal/auth"
	"github.com/assistente-financeiro/assistente-financeiro/internal/shared"
	"github.com/assistente-financeiro/assistente-financeiro/internal/users"
)

type meResponse struct {
	User      *users.User `json:"user"`
	CSRFToken string      `json:"csrfToken"`
}

func newRouter(t *testing.T, e env) http.Handler {
	t.Helper()
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			p := e.profiles.Load(req)
			e.profiles.Commit(w, p)
			next.ServeHTTP(w, req.WithContext(shared.ContextWithProfile(req.Context(), p)))
		})
	})
	r.Use(e.restorer.Middleware(auth.CookieConfig{TTL: 7 * 24 * time.Hour}))
	r.Route("/api/auth", auth.NewHandler(nil, e.service, shared.NewCSRFManager("csrf")).MountRoutes)
	return r
}

type client struct {
	t       *testing.T
	handler http.Handler
	cookies map[string]*http.Cookie
}

func (c *client) do(method, path, body string) *httptest.ResponseRecorder {
	c.t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for _, ck := range c.cookies {
		req.AddCookie(ck)
	}
	rec := httptest.NewRecorder()
	c.handler.ServeHTTP(rec, req)
	for _, ck := range rec.Result().Cookies() {
		if ck.MaxAge < 0 {
			delete(c.cookies, ck.Name)
			continue
		}
		c.cookies[ck.Name] = ck
	}
	return rec
}

func TestLoginMeLogoutOverHTTP(t *testing.T) {
	e := newEnv(t, nil)
	c := &client{t: t, handler: newRouter(t, e), cookies: map[string]*http.Cookie{}}

	rec := c.do(http.MethodGet, "/api/auth/me", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var me meResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &me))
	require.Nil(t, me.User)
	require.NotEmpty(t, me.CSRFToken)

	rec = c.do(http.MethodPost, "/api/auth/login", `{"email":"`+users.DefaultAdminEmail+`","password":"`+adminPassword+`"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NotContains(t, rec.Body.String(), "password")
	token := c.cookies[auth.TokenKey]
	require.NotNil(t, token)
	require.True(t, token.HttpOnly)
	require.Equal(t, http.SameSiteStrictMode, token.SameSite)
	require.Equal(t, "/", token.Path)

	rec = c.do(http.MethodGet, "/api/auth/me", "")
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &me))
	require.NotNil(t, me.User)
	require.Equal(t, users.DefaultAdminID, me.User.ID)

	rec = c.do(http.MethodPost, "/api/auth/logout", "")
	require.Equal(t, http.StatusNoContent, rec.Code)
	require.Nil(t, c.cookies[auth.TokenKey])

	rec = c.do(http.MethodGet, "/api/auth/me", "")
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &me))
	require.Nil(t, me.User)
}

func TestLoginValidationOverHTTP(t *testing.T) {
	e := newEnv(t, nil)
	c := &client{t: t, handler: newRouter(t, e), cookies: map[string]*http.Cookie{}}

	rec := c.do(http.MethodPost, "/api/auth/login", `{"email":"not-an-email","password":"123"}`)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	var problem struct {
		Errors map[string]string `json:"errors"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &problem))
	require.Contains(t, problem.Errors, "email")
	require.Contains(t, problem.Errors, "password")

	rec = c.do(http.MethodPost, "/api/auth/login", `{"email":"nobody@example.com","password":"123456"}`)
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = c.do(http.MethodPost, "/api/auth/register", `{"name":"Fê","email":"fe@example.com","password":"weakpass","confirmPassword":"other"}`)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &problem))
	require.Contains(t, problem.Errors, "name")
	require.Contains(t, problem.Errors, "password")
	require.Contains(t, problem.Errors, "confirmPassword")

	rec = c.do(http.MethodPost, "/api/auth/register", `{"name":"Fernanda","email":"fe@example.com","password":"Str0ng!pw","confirmPassword":"Str0ng!pw"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	require.NotNil(t, c.cookies[auth.TokenKey])
}

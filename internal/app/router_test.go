package app_test

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/assistente-financeiro/assistente-financeiro/internal/app"
	"github.com/assistente-financeiro/assistente-financeiro/internal/auth"
	"github.com/assistente-financeiro/assistente-financeiro/internal/observability"
	"github.com/assistente-financeiro/assistente-financeiro/internal/partition"
	"github.com/assistente-financeiro/assistente-financeiro/internal/shared"
	"github.com/assistente-financeiro/assistente-financeiro/internal/storage"
	"github.com/assistente-financeiro/assistente-financeiro/internal/users"
	_ "github.com/assistente-financeiro/assistente-financeiro/testing"
)

const adminPassword = "Adm1n!pass"

type testApp struct {
	handler http.Handler
	root    storage.Store
}

func testConfig() *app.Config {
	return &app.Config{
		AppEnv:               "test",
		AppRequestTimeout:    5 * time.Second,
		JWTSecret:            "jwt-secret",
		CSRFSecret:           "csrf-secret",
		TokenTTL:             7 * 24 * time.Hour,
		BcryptCost:           4,
		LoginAttempts:        5,
		LoginWindow:          time.Minute,
		ProfileIdleTTL:       24 * time.Hour,
		DefaultAdminPassword: adminPassword,
		Currency:             "BRL",
		Locale:               "pt-BR",
		ReportCacheTTL:       time.Minute,
	}
}

func newTestApp(t *testing.T) testApp {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	cfg := testConfig()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	root := storage.NewMemory()
	svc, err := app.NewServices(cfg, logger, root, client)
	require.NoError(t, err)
	require.NoError(t, svc.Bootstrap(context.Background(), cfg, logger))

	return testApp{
		handler: app.NewRouter(app.RouterParams{
			Logger:   logger,
			Config:   cfg,
			Services: svc,
			Metrics:  observability.NewMetrics(),
		}),
		root: root,
	}
}

type client struct {
	t       *testing.T
	handler http.Handler
	cookies map[string]*http.Cookie
	csrf    string
}

func (a testApp) client(t *testing.T) *client {
	c := &client{t: t, handler: a.handler, cookies: map[string]*http.Cookie{}}
	rec := c.do(http.MethodGet, "/api/auth/me", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var me struct {
		CSRFToken string `json:"csrfToken"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &me))
	require.NotEmpty(t, me.CSRFToken)
	c.csrf = me.CSRFToken
	return c
}

func (c *client) do(method, path, body string) *httptest.ResponseRecorder {
	c.t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if c.csrf != "" {
		req.Header.Set(shared.CSRFHeader, c.csrf)
	}
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

func (c *client) login(email, password string) {
	c.t.Helper()
	rec := c.do(http.MethodPost, "/api/auth/login", `{"email":"`+email+`","password":"`+password+`"}`)
	require.Equal(c.t, http.StatusOK, rec.Code, rec.Body.String())
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func TestHealthAndMetrics(t *testing.T) {
	a := newTestApp(t)
	rec := httptest.NewRecorder()
	a.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	require.Empty(t, rec.Result().Cookies())

	rec = httptest.NewRecorder()
	a.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `assistente_http_requests_total{code="200",route="/healthz"} 1`)
}

func TestUnsafeRequestsNeedCSRFToken(t *testing.T) {
	a := newTestApp(t)
	c := a.client(t)
	token := c.csrf

	c.csrf = ""
	rec := c.do(http.MethodPost, "/api/auth/login", `{"email":"`+users.DefaultAdminEmail+`","password":"`+adminPassword+`"}`)
	require.Equal(t, http.StatusForbidden, rec.Code)

	c.csrf = "forged"
	rec = c.do(http.MethodPost, "/api/auth/login", `{"email":"`+users.DefaultAdminEmail+`","password":"`+adminPassword+`"}`)
	require.Equal(t, http.StatusForbidden, rec.Code)

	c.csrf = token
	c.login(users.DefaultAdminEmail, adminPassword)
	require.NotNil(t, c.cookies[auth.TokenKey])
	require.NotNil(t, c.cookies[shared.ProfileCookie])
}

func TestFinanceAndReportsFlow(t *testing.T) {
	a := newTestApp(t)
	c := a.client(t)

	rec := c.do(http.MethodGet, "/api/transactions", "")
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	c.login(users.DefaultAdminEmail, adminPassword)

	rec = c.do(http.MethodPost, "/api/transactions", `{"title":"Salário","amount":1000,"type":"income","categoryId":"7","date":"2024-05-05"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	rec = c.do(http.MethodPost, "/api/transactions", `{"title":"Mercado","amount":200,"type":"expense","categoryId":"1","date":"2024-05-06"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = c.do(http.MethodPost, "/api/transactions", `{"title":"Errado","amount":10,"type":"expense","categoryId":"7","date":"2024-05-06"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	list := decode[[]map[string]any](t, c.do(http.MethodGet, "/api/transactions", ""))
	require.Len(t, list, 2)
	require.Equal(t, "Mercado", list[0]["title"])
	require.Equal(t, users.DefaultAdminID, list[0]["userId"])

	dash := decode[map[string]any](t, c.do(http.MethodGet, "/api/reports/dashboard", ""))
	require.InDelta(t, 800.0, dash["balance"], 0.001)

	rec = c.do(http.MethodPost, "/api/transactions", `{"title":"Ônibus","amount":100,"type":"expense","categoryId":"2","date":"2024-05-07"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	dash = decode[map[string]any](t, c.do(http.MethodGet, "/api/reports/dashboard", ""))
	require.InDelta(t, 700.0, dash["balance"], 0.001)

	rec = c.do(http.MethodDelete, "/api/categories/1", "")
	require.Equal(t, http.StatusConflict, rec.Code)

	perms := decode[map[string]any](t, c.do(http.MethodGet, "/api/permissions", ""))
	require.Equal(t, "admin", perms["role"])

	_, err := a.root.Get(context.Background(), partition.Key(users.DefaultAdminID, partition.Transactions))
	require.NoError(t, err)

	rec = c.do(http.MethodPost, "/api/auth/logout", "")
	require.Equal(t, http.StatusNoContent, rec.Code)
	rec = c.do(http.MethodGet, "/api/reports/dashboard", "")
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	// data of a signed-out user survives for the next sign-in
	c.login(users.DefaultAdminEmail, adminPassword)
	list = decode[[]map[string]any](t, c.do(http.MethodGet, "/api/transactions", ""))
	require.Len(t, list, 3)
}

func TestUserRoleCannotManageUsers(t *testing.T) {
	a := newTestApp(t)
	c := a.client(t)
	rec := c.do(http.MethodPost, "/api/auth/register", `{"name":"Fernanda","email":"fe@example.com","password":"Str0ng!pw","confirmPassword":"Str0ng!pw"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = c.do(http.MethodGet, "/api/users", "")
	require.Equal(t, http.StatusOK, rec.Code)
	rec = c.do(http.MethodPost, "/api/users", `{"name":"Outra","email":"outra@example.com","password":"Str0ng!pw","role":"user"}`)
	require.Equal(t, http.StatusForbidden, rec.Code)
	rec = c.do(http.MethodDelete, "/api/users/"+users.DefaultAdminID, "")
	require.Equal(t, http.StatusForbidden, rec.Code)
}

func TestDeletingUserRemovesPartition(t *testing.T) {
	ctx := context.Background()
	a := newTestApp(t)

	admin := a.client(t)
	admin.login(users.DefaultAdminEmail, adminPassword)
	rec := admin.do(http.MethodPost, "/api/users", `{"name":"Bruno","email":"bruno@example.com","password":"Str0ng!pw","role":"user"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decode[users.User](t, rec)

	bruno := a.client(t)
	bruno.login("bruno@example.com", "Str0ng!pw")
	rec = bruno.do(http.MethodPost, "/api/goals", `{"description":"Reserva","monthlyTarget":100,"yearlyTarget":1200,"type":"savings","progress":0,"date":"2024-01-01"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	_, err := a.root.Get(ctx, partition.Key(created.ID, partition.Goals))
	require.NoError(t, err)

	rec = admin.do(http.MethodDelete, "/api/users/"+created.ID, "")
	require.Equal(t, http.StatusNoContent, rec.Code, rec.Body.String())

	keys, err := a.root.Keys(ctx, partition.Prefix(created.ID))
	require.NoError(t, err)
	require.Empty(t, keys)

	// the deleted user's session no longer restores
	rec = bruno.do(http.MethodGet, "/api/goals", "")
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestUnknownRouteIsProblemJSON(t *testing.T) {
	a := newTestApp(t)
	rec := httptest.NewRecorder()
	a.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/nope", nil))
	require.Equal(t, http.StatusNotFound, rec.Code)
	require.Contains(t, rec.Header().Get("Content-Type"), "json")
}

func TestEventsStreamPartitionChanges(t *testing.T) {
	a := newTestApp(t)
	c := a.client(t)
	c.login(users.DefaultAdminEmail, adminPassword)

	srv := httptest.NewServer(a.handler)
	t.Cleanup(srv.Close)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/api/events", nil)
	require.NoError(t, err)
	for _, ck := range c.cookies {
		req.AddCookie(ck)
	}
	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	rec := c.do(http.MethodPost, "/api/goals", `{"description":"Viagem","monthlyTarget":50,"yearlyTarget":600,"type":"savings","progress":0,"date":"2024-02-01"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	scanner := bufio.NewScanner(resp.Body)
	var event, data string
	for scanner.Scan() {
		line := scanner.Text()
		if v, ok := strings.CutPrefix(line, "event: "); ok {
			event = v
		}
		if v, ok := strings.CutPrefix(line, "data: "); ok && event == "collection" {
			data = v
			break
		}
	}
	require.Equal(t, "collection", event)
	require.JSONEq(t, `{"key":"`+partition.Goals+`","deleted":false}`, data)
}

func TestAdminCannotDemoteOwnAccount(t *testing.T) {
	a := newTestApp(t)
	c := a.client(t)
	c.login(users.DefaultAdminEmail, adminPassword)

	rec := c.do(http.MethodPatch, "/api/users/"+users.DefaultAdminID, `{"role":"user"}`)
	require.Equal(t, http.StatusConflict, rec.Code, rec.Body.String())

	perms := decode[map[string]any](t, c.do(http.MethodGet, "/api/permissions", ""))
	require.Equal(t, "admin", perms["role"])
}

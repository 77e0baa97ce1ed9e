package reports_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/assistente-financeiro/assistente-financeiro/internal/finance"
	"github.com/assistente-financeiro/assistente-financeiro/internal/partition"
	"github.com/assistente-financeiro/assistente-financeiro/internal/rbac"
	"github.com/assistente-financeiro/assistente-financeiro/internal/reports"
	"github.com/assistente-financeiro/assistente-financeiro/internal/storage"
	"github.com/assistente-financeiro/assistente-financeiro/internal/users"
	_ "github.com/assistente-financeiro/assistente-financeiro/testing"
)

type fixture struct {
	root    storage.Store
	stores  *finance.Service
	reports *reports.Service
	cache   *reports.Cache
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	cache := reports.NewCache(client, time.Minute)
	formatter, err := reports.NewFormatter("BRL", "pt-BR")
	require.NoError(t, err)
	svc := reports.NewService(cache, formatter, nil).
		WithClock(func() time.Time { return time.Date(2024, time.May, 20, 9, 0, 0, 0, time.UTC) })
	root := storage.NewMemory()
	return fixture{
		root:    root,
		stores:  finance.NewService(partition.NewResolver(root), svc),
		reports: svc,
		cache:   cache,
	}
}

func TestDashboardIsCachedUntilMutation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	store := f.stores.For(nil, "u1")

	_, err := store.AddTransaction(ctx, finance.Transaction{Title: "Mercado", Amount: 100, Type: finance.KindExpense, CategoryID: "1", Date: "2024-05-10"})
	require.NoError(t, err)

	d, err := f.reports.Dashboard(ctx, store)
	require.NoError(t, err)
	require.Equal(t, 100.0, d.Expenses)
	require.Equal(t, -100.0, d.Balance)
	require.Contains(t, d.Formatted["expenses"], "R$")

	// a write that bypasses the store is not seen until the next mutation
	require.NoError(t, f.root.Set(ctx, partition.Key("u1", partition.Transactions), "[]"))
	d, err = f.reports.Dashboard(ctx, store)
	require.NoError(t, err)
	require.Equal(t, 100.0, d.Expenses)

	_, err = store.AddTransaction(ctx, finance.Transaction{Title: "Salário", Amount: 50, Type: finance.KindIncome, CategoryID: "7", Date: "2024-05-11"})
	require.NoError(t, err)
	d, err = f.reports.Dashboard(ctx, store)
	require.NoError(t, err)
	require.Zero(t, d.Expenses)
	require.Equal(t, 50.0, d.Income)
}

func TestCacheVersionsArePerUser(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	k1, err := f.cache.BuildKey(ctx, "u1", "dashboard")
	require.NoError(t, err)
	require.Equal(t, "reports:u1:dashboard:1", k1)

	require.NoError(t, f.cache.Bump(ctx, "u1"))
	k1, err = f.cache.BuildKey(ctx, "u1", "dashboard")
	require.NoError(t, err)
	require.Equal(t, "reports:u1:dashboard:2", k1)

	k2, err := f.cache.BuildKey(ctx, "u2", "dashboard")
	require.NoError(t, err)
	require.Equal(t, "reports:u2:dashboard:1", k2)
}

func TestNilCacheComputesDirectly(t *testing.T) {
	ctx := context.Background()
	svc := reports.NewService(nil, nil, nil)
	stores := finance.NewService(partition.NewResolver(storage.NewMemory()), svc)
	store := stores.For(nil, "u1")
	_, err := store.AddInvestment(ctx, finance.Investment{Title: "CDB", Amount: 300, Date: time.Now().Format("2006-01-02"), CategoryID: "10"})
	require.NoError(t, err)

	o, err := svc.Investments(ctx, store)
	require.NoError(t, err)
	require.Equal(t, 300.0, o.TotalInvested)
	require.Equal(t, 300.0, o.MonthlyInvested)
	require.Nil(t, o.Formatted)
}

func TestGuestReportsAreNotCached(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	profile := storage.WithPrefix(storage.NewMemory(), "profile:p1:")
	store := f.stores.For(profile, partition.Guest)

	_, err := store.AddTransaction(ctx, finance.Transaction{Title: "Pão", Amount: 5, Type: finance.KindExpense, CategoryID: "1", Date: "2024-05-02"})
	require.NoError(t, err)
	d, err := f.reports.Dashboard(ctx, store)
	require.NoError(t, err)
	require.Equal(t, 5.0, d.Expenses)

	require.NoError(t, profile.Set(ctx, partition.Key(partition.Guest, partition.Transactions), "[]"))
	d, err = f.reports.Dashboard(ctx, store)
	require.NoError(t, err)
	require.Zero(t, d.Expenses)
}

func TestHandlerRoutes(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	store := f.stores.For(nil, "u1")
	_, err := store.AddTransaction(ctx, finance.Transaction{Title: "Aluguel", Amount: 1500, Type: finance.KindExpense, CategoryID: "4", Date: "2024-05-01"})
	require.NoError(t, err)

	h := reports.NewHandler(nil, f.stores, f.reports, rbac.Middleware{})
	r := chi.NewRouter()
	r.Route("/api/reports", h.MountRoutes)

	serve := func(path string, u *users.User) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		if u != nil {
			req = req.WithContext(users.ContextWithUser(req.Context(), u))
		}
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)
		return rec
	}
	user := &users.User{ID: "u1", Role: users.RoleUser, IsActive: true}

	require.Equal(t, http.StatusUnauthorized, serve("/api/reports/dashboard", nil).Code)

	rec := serve("/api/reports/budget?month=2024-05", user)
	require.Equal(t, http.StatusOK, rec.Code)
	var budget reports.BudgetReport
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &budget))
	require.Equal(t, "2024-05", budget.Month)
	require.Equal(t, 1500.0, budget.TotalSpent)

	rec = serve("/api/reports/period?start=2024-05-01&end=2024-05-31", user)
	require.Equal(t, http.StatusOK, rec.Code)
	var period reports.PeriodReport
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &period))
	require.Equal(t, 1500.0, period.Expenses)
	require.Equal(t, "Aluguel", period.ExpensesByCategory[0].Name)

	require.Equal(t, http.StatusUnprocessableEntity, serve("/api/reports/period?start=2024-05-31&end=2024-05-01", user).Code)
	require.Equal(t, http.StatusUnprocessableEntity, serve("/api/reports/budget?month=may", user).Code)

	rec = serve("/api/reports/transactions.csv?start=2024-05-01&end=2024-05-31", user)
	require.Equal(t, http.StatusOK, rec.Code)
	require.True(t, strings.HasPrefix(rec.Header().Get("Content-Type"), "text/csv"))
	require.Contains(t, rec.Body.String(), "Aluguel")
}

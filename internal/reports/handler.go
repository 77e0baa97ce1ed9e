package reports

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"

	"github.com/assistente-financeiro/assistente-financeiro/internal/finance"
	"github.com/assistente-financeiro/assistente-financeiro/internal/platform/httpx"
	"github.com/assistente-financeiro/assistente-financeiro/internal/shared"
	"github.com/assistente-financeiro/assistente-financeiro/internal/users"
)

// Handler serves the report endpoints of the signed-in user.
type Handler struct {
	logger  *slog.Logger
	stores  *finance.Service
	service *Service
	authz   shared.Authorizer
}

// NewHandler builds a Handler.
func NewHandler(logger *slog.Logger, stores *finance.Service, service *Service, authz shared.Authorizer) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, stores: stores, service: service, authz: authz}
}

// MountRoutes registers the report endpoints. Paths are relative to /api/reports.
func (h *Handler) MountRoutes(r chi.Router) {
	limiter := httprate.Limit(10, time.Minute,
		httprate.WithKeyFuncs(rateLimitKey),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			httpx.RespondError(w, httpx.ErrTooManyRequests)
		}),
	)
	r.Group(func(r chi.Router) {
		r.Use(h.authz.Require(shared.ResourceReports, shared.ActionRead))
		r.Get("/dashboard", h.dashboard)
		r.Get("/period", h.period)
		r.Get("/budget", h.budget)
		r.Get("/investments", h.investments)
		r.With(limiter).Get("/transactions.csv", h.exportCSV)
	})
}

func rateLimitKey(r *http.Request) (string, error) {
	if u := users.UserFromContext(r.Context()); u != nil {
		return "user:" + u.ID, nil
	}
	key, err := httprate.KeyByIP(r)
	if err != nil {
		return "", err
	}
	return "ip:" + key, nil
}

func (h *Handler) dashboard(w http.ResponseWriter, r *http.Request) {
	store, ok := h.store(w, r)
	if !ok {
		return
	}
	out, err := h.service.Dashboard(r.Context(), store)
	if err != nil {
		h.fail(w, "dashboard report", err)
		return
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) period(w http.ResponseWriter, r *http.Request) {
	p, err := h.periodFromQuery(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	store, ok := h.store(w, r)
	if !ok {
		return
	}
	out, err := h.service.Period(r.Context(), store, p)
	if err != nil {
		h.fail(w, "period report", err)
		return
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) budget(w http.ResponseWriter, r *http.Request) {
	month := h.service.CurrentMonth()
	if raw := r.URL.Query().Get("month"); raw != "" {
		t, err := time.Parse("2006-01", raw)
		if err != nil {
			httpx.RespondError(w, &httpx.ValidationError{Fields: map[string]string{"month": "must be YYYY-MM"}})
			return
		}
		month = shared.MonthPeriod(t)
	}
	store, ok := h.store(w, r)
	if !ok {
		return
	}
	out, err := h.service.Budget(r.Context(), store, month)
	if err != nil {
		h.fail(w, "budget report", err)
		return
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) investments(w http.ResponseWriter, r *http.Request) {
	store, ok := h.store(w, r)
	if !ok {
		return
	}
	out, err := h.service.Investments(r.Context(), store)
	if err != nil {
		h.fail(w, "investment report", err)
		return
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) exportCSV(w http.ResponseWriter, r *http.Request) {
	p, err := h.periodFromQuery(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	store, ok := h.store(w, r)
	if !ok {
		return
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="transacoes_`+p.Start.Format(shared.DateLayout)+`_`+p.End.Format(shared.DateLayout)+`.csv"`)
	if err := h.service.ExportTransactions(r.Context(), store, p, w); err != nil {
		h.logger.Error("transaction export failed", slog.Any("error", err))
	}
}

// periodFromQuery reads start and end, defaulting to the first day of the current month
// through today.
func (h *Handler) periodFromQuery(r *http.Request) (shared.Period, error) {
	q := r.URL.Query()
	start, end := q.Get("start"), q.Get("end")
	if start == "" {
		start = h.service.CurrentMonth().Start.Format(shared.DateLayout)
	}
	if end == "" {
		end = h.service.Today().Format(shared.DateLayout)
	}
	p, err := shared.NewPeriod(start, end)
	if err != nil {
		return shared.Period{}, &httpx.ValidationError{Fields: map[string]string{"period": err.Error()}}
	}
	return p, nil
}

func (h *Handler) store(w http.ResponseWriter, r *http.Request) (*finance.Store, bool) {
	store, ok := h.stores.FromContext(r.Context())
	if !ok {
		httpx.RespondError(w, shared.ErrSessionExpired)
		return nil, false
	}
	return store, true
}

func (h *Handler) fail(w http.ResponseWriter, op string, err error) {
	if !httpx.IsClientError(err) {
		h.logger.Error(op+" failed", slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}

package finance

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/assistente-financeiro/assistente-financeiro/internal/platform/httpx"
	"github.com/assistente-financeiro/assistente-financeiro/internal/shared"
)

// Handler serves the financial collections of the signed-in user.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	authz     shared.Authorizer
	validator *validator.Validate
}

// NewHandler builds a Handler.
func NewHandler(logger *slog.Logger, service *Service, authz shared.Authorizer) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service, authz: authz, validator: shared.NewValidator()}
}

// crud describes one collection exposed over HTTP.
type crud[T any] struct {
	resource string
	id       func(*T) *string
	list     func(*Store, context.Context) ([]T, error)
	add      func(*Store, context.Context, T) (T, error)
	edit     func(*Store, context.Context, T) (T, error)
	remove   func(*Store, context.Context, string) error
	filter   func(*http.Request, []T) ([]T, error)
}

// MountRoutes registers every financial route. Paths are relative to /api.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/transactions", func(r chi.Router) {
		mountCRUD(h, r, crud[Transaction]{
			resource: shared.ResourceTransactions,
			id:       func(t *Transaction) *string { return &t.ID },
			list:     (*Store).Transactions,
			add:      (*Store).AddTransaction,
			edit:     (*Store).EditTransaction,
			remove:   (*Store).DeleteTransaction,
			filter:   filterTransactions,
		})
	})
	r.Route("/categories", func(r chi.Router) {
		mountCRUD(h, r, crud[Category]{
			resource: shared.ResourceCategories,
			id:       func(c *Category) *string { return &c.ID },
			list:     (*Store).Categories,
			add:      (*Store).AddCategory,
			edit:     (*Store).EditCategory,
			remove:   (*Store).DeleteCategory,
		})
	})
	r.Route("/investments", func(r chi.Router) {
		mountCRUD(h, r, crud[Investment]{
			resource: shared.ResourceInvestments,
			id:       func(i *Investment) *string { return &i.ID },
			list:     (*Store).Investments,
			add:      (*Store).AddInvestment,
			edit:     (*Store).EditInvestment,
			remove:   (*Store).DeleteInvestment,
		})
	})
	r.Route("/goals", func(r chi.Router) {
		mountCRUD(h, r, crud[Goal]{
			resource: shared.ResourceGoals,
			id:       func(g *Goal) *string { return &g.ID },
			list:     (*Store).Goals,
			add:      (*Store).AddGoal,
			edit:     (*Store).EditGoal,
			remove:   (*Store).DeleteGoal,
		})
	})
	r.With(h.authz.Require(shared.ResourceBudget, shared.ActionRead)).Get("/budget", h.listBudget)
	r.With(h.authz.Require(shared.ResourceBudget, shared.ActionUpdate)).Put("/budget/{categoryId}", h.setBudget)
	r.With(h.authz.Require(shared.ResourceSettings, shared.ActionRead)).Get("/settings", h.getSettings)
	r.With(h.authz.Require(shared.ResourceSettings, shared.ActionUpdate)).Put("/settings", h.putSettings)
}

func mountCRUD[T any](h *Handler, r chi.Router, c crud[T]) {
	r.With(h.authz.Require(c.resource, shared.ActionRead)).Get("/", func(w http.ResponseWriter, r *http.Request) {
		store, ok := h.store(w, r)
		if !ok {
			return
		}
		items, err := c.list(store, r.Context())
		if err != nil {
			h.fail(w, "list "+c.resource, err)
			return
		}
		if c.filter != nil {
			if items, err = c.filter(r, items); err != nil {
				httpx.RespondError(w, err)
				return
			}
		}
		if p, paged := shared.PaginationFromRequest(r, len(items)); paged {
			w.Header().Set("X-Total-Count", strconv.Itoa(p.Total))
			w.Header().Set("X-Total-Pages", strconv.Itoa(p.TotalPages))
			items = shared.Paginate(items, p)
		}
		httpx.JSON(w, http.StatusOK, items)
	})
	r.With(h.authz.Require(c.resource, shared.ActionCreate)).Post("/", func(w http.ResponseWriter, r *http.Request) {
		var in T
		if !h.decode(w, r, &in) {
			return
		}
		store, ok := h.store(w, r)
		if !ok {
			return
		}
		out, err := c.add(store, r.Context(), in)
		if err != nil {
			h.fail(w, "add "+c.resource, err)
			return
		}
		httpx.JSON(w, http.StatusCreated, out)
	})
	r.With(h.authz.Require(c.resource, shared.ActionUpdate)).Put("/{id}", func(w http.ResponseWriter, r *http.Request) {
		var in T
		if !h.decode(w, r, &in) {
			return
		}
		*c.id(&in) = chi.URLParam(r, "id")
		store, ok := h.store(w, r)
		if !ok {
			return
		}
		out, err := c.edit(store, r.Context(), in)
		if err != nil {
			h.fail(w, "edit "+c.resource, err)
			return
		}
		httpx.JSON(w, http.StatusOK, out)
	})
	r.With(h.authz.Require(c.resource, shared.ActionDelete)).Delete("/{id}", func(w http.ResponseWriter, r *http.Request) {
		store, ok := h.store(w, r)
		if !ok {
			return
		}
		if err := c.remove(store, r.Context(), chi.URLParam(r, "id")); err != nil {
			h.fail(w, "delete "+c.resource, err)
			return
		}
		httpx.NoContent(w)
	})
}

func (h *Handler) listBudget(w http.ResponseWriter, r *http.Request) {
	store, ok := h.store(w, r)
	if !ok {
		return
	}
	settings, err := store.Budget(r.Context())
	if err != nil {
		h.fail(w, "list budget", err)
		return
	}
	httpx.JSON(w, http.StatusOK, settings)
}

func (h *Handler) setBudget(w http.ResponseWriter, r *http.Request) {
	var in BudgetInput
	if !h.decode(w, r, &in) {
		return
	}
	store, ok := h.store(w, r)
	if !ok {
		return
	}
	out, err := store.SetBudget(r.Context(), chi.URLParam(r, "categoryId"), in.Amount)
	if err != nil {
		h.fail(w, "set budget", err)
		return
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) getSettings(w http.ResponseWriter, r *http.Request) {
	store, ok := h.store(w, r)
	if !ok {
		return
	}
	out, err := store.Settings(r.Context())
	if err != nil {
		h.fail(w, "get settings", err)
		return
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) putSettings(w http.ResponseWriter, r *http.Request) {
	var in Settings
	if !h.decode(w, r, &in) {
		return
	}
	store, ok := h.store(w, r)
	if !ok {
		return
	}
	out, err := store.UpdateSettings(r.Context(), in)
	if err != nil {
		h.fail(w, "update settings", err)
		return
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) store(w http.ResponseWriter, r *http.Request) (*Store, bool) {
	store, ok := h.service.FromContext(r.Context())
	if !ok {
		httpx.RespondError(w, shared.ErrSessionExpired)
		return nil, false
	}
	return store, true
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dest any) bool {
	if err := httpx.DecodeJSON(r, dest); err != nil {
		httpx.RespondError(w, err)
		return false
	}
	if err := shared.ValidateStruct(h.validator, dest); err != nil {
		httpx.RespondError(w, err)
		return false
	}
	return true
}

func (h *Handler) fail(w http.ResponseWriter, op string, err error) {
	if !httpx.IsClientError(err) {
		h.logger.Error(op+" failed", slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}

func filterTransactions(r *http.Request, items []Transaction) ([]Transaction, error) {
	q := r.URL.Query()
	kind := Kind(q.Get("type"))
	category := q.Get("categoryId")
	from, to := q.Get("from"), q.Get("to")
	var period *shared.Period
	if from != "" || to != "" {
		if from == "" {
			from = "0001-01-01"
		}
		if to == "" {
			to = "9999-12-31"
		}
		p, err := shared.NewPeriod(from, to)
		if err != nil {
			return nil, &httpx.ValidationError{Fields: map[string]string{"from": err.Error()}}
		}
		period = &p
	}
	if kind == "" && category == "" && period == nil {
		return items, nil
	}
	out := make([]Transaction, 0, len(items))
	for _, t := range items {
		if kind != "" && t.Type != kind {
			continue
		}
		if category != "" && t.CategoryID != category {
			continue
		}
		if period != nil {
			d, err := shared.ParseDate(t.Date)
			if err != nil || !period.Contains(d) {
				continue
			}
		}
		out = append(out, t)
	}
	return out, nil
}

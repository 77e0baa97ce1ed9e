package reports

import (
	"context"
	"io"
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/assistente-financeiro/assistente-financeiro/internal/finance"
	"github.com/assistente-financeiro/assistente-financeiro/internal/partition"
	"github.com/assistente-financeiro/assistente-financeiro/internal/shared"
)

// Service computes reports over a financial store, caching them per user.
type Service struct {
	cache     *Cache
	formatter *Formatter
	logger    *slog.Logger
	group     singleflight.Group
	now       func() time.Time
}

var _ finance.Invalidator = (*Service)(nil)

// NewService wires the cache and formatter. Both may be nil.
func NewService(cache *Cache, formatter *Formatter, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{cache: cache, formatter: formatter, logger: logger, now: time.Now}
}

// WithClock overrides the clock used for the current month and year.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Invalidate drops every cached report of userID. Failures are only logged.
func (s *Service) Invalidate(ctx context.Context, userID string) {
	if userID == partition.Guest {
		return
	}
	if err := s.cache.Bump(ctx, userID); err != nil {
		s.logger.Warn("reports cache bump failed", slog.String("user_id", userID), slog.Any("error", err))
	}
}

// Dashboard totals every transaction of the store.
func (s *Service) Dashboard(ctx context.Context, store *finance.Store) (Dashboard, error) {
	d, err := cached(ctx, s, store, []string{"dashboard"}, func(ctx context.Context) (Dashboard, error) {
		txs, err := store.Transactions(ctx)
		if err != nil {
			return Dashboard{}, err
		}
		cats, err := store.Categories(ctx)
		if err != nil {
			return Dashboard{}, err
		}
		return BuildDashboard(txs, cats), nil
	})
	if err != nil {
		return Dashboard{}, err
	}
	d.Formatted = s.formatter.formatAll(map[string]float64{
		"income": d.Income, "expenses": d.Expenses, "investments": d.Investments, "balance": d.Balance,
	})
	return d, nil
}

// Period reports income, expenses and the expense breakdown of p.
func (s *Service) Period(ctx context.Context, store *finance.Store, p shared.Period) (PeriodReport, error) {
	r, err := cached(ctx, s, store, []string{"period", p.String()}, func(ctx context.Context) (PeriodReport, error) {
		txs, err := store.Transactions(ctx)
		if err != nil {
			return PeriodReport{}, err
		}
		cats, err := store.Categories(ctx)
		if err != nil {
			return PeriodReport{}, err
		}
		return BuildPeriod(txs, cats, p), nil
	})
	if err != nil {
		return PeriodReport{}, err
	}
	r.Formatted = s.formatter.formatAll(map[string]float64{
		"income": r.Income, "expenses": r.Expenses, "balance": r.Balance,
	})
	return r, nil
}

// Budget compares budgets with spending in the month containing month.Start.
func (s *Service) Budget(ctx context.Context, store *finance.Store, month shared.Period) (BudgetReport, error) {
	return cached(ctx, s, store, []string{"budget", month.String()}, func(ctx context.Context) (BudgetReport, error) {
		txs, err := store.Transactions(ctx)
		if err != nil {
			return BudgetReport{}, err
		}
		cats, err := store.Categories(ctx)
		if err != nil {
			return BudgetReport{}, err
		}
		settings, err := store.Budget(ctx)
		if err != nil {
			return BudgetReport{}, err
		}
		return BuildBudget(txs, cats, settings, month), nil
	})
}

// Investments reports invested amounts against the first investment goal.
func (s *Service) Investments(ctx context.Context, store *finance.Store) (InvestmentOverview, error) {
	now := s.now()
	o, err := cached(ctx, s, store, []string{"investments", now.Format("2006-01")}, func(ctx context.Context) (InvestmentOverview, error) {
		invs, err := store.Investments(ctx)
		if err != nil {
			return InvestmentOverview{}, err
		}
		goals, err := store.Goals(ctx)
		if err != nil {
			return InvestmentOverview{}, err
		}
		return BuildInvestments(invs, goals, now), nil
	})
	if err != nil {
		return InvestmentOverview{}, err
	}
	o.Formatted = s.formatter.formatAll(map[string]float64{
		"totalInvested": o.TotalInvested, "totalEarnings": o.TotalEarnings,
		"monthlyInvested": o.MonthlyInvested, "yearlyInvested": o.YearlyInvested,
	})
	return o, nil
}

// ExportTransactions writes the transactions of p as CSV.
func (s *Service) ExportTransactions(ctx context.Context, store *finance.Store, p shared.Period, w io.Writer) error {
	txs, err := store.Transactions(ctx)
	if err != nil {
		return err
	}
	cats, err := store.Categories(ctx)
	if err != nil {
		return err
	}
	return WriteTransactionsCSV(w, txs, cats, p)
}

// CurrentMonth returns the month containing the service clock.
func (s *Service) CurrentMonth() shared.Period {
	return shared.MonthPeriod(s.now())
}

// Today returns the calendar day of the service clock.
func (s *Service) Today() time.Time {
	t := s.now().UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// cached collapses concurrent computations of the same versioned key and stores the result.
// The guest partition lives in a browser profile and is never cached.
func cached[T any](ctx context.Context, s *Service, store *finance.Store, parts []string, build func(context.Context) (T, error)) (T, error) {
	var zero T
	if store.UserID() == partition.Guest {
		return build(ctx)
	}
	key, err := s.cache.BuildKey(ctx, store.UserID(), parts...)
	if err != nil {
		return zero, err
	}
	ch := s.group.DoChan(key, func() (any, error) {
		var out T
		err := s.cache.FetchJSON(ctx, key, &out, func(ctx context.Context) (any, error) {
			return build(ctx)
		})
		return out, err
	})
	select {
	case <-ctx.Done():
		return zero, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return zero, res.Err
		}
		return res.Val.(T), nil
	}
}

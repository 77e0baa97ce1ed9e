// Package reports derives dashboard, period, budget and investment aggregates from a user's
// financial collections.
package reports

import (
	"sort"
	"time"

	"github.com/assistente-financeiro/assistente-financeiro/internal/finance"
	"github.com/assistente-financeiro/assistente-financeiro/internal/shared"
)

// TopExpenseCategories bounds the expense breakdown shown on the dashboard.
const TopExpenseCategories = 5

// CategoryTotal is the amount spent on one category.
type CategoryTotal struct {
	CategoryID string  `json:"categoryId"`
	Name       string  `json:"name"`
	Color      string  `json:"color"`
	Amount     float64 `json:"amount"`
}

// Dashboard sums every transaction of the partition.
type Dashboard struct {
	Income      float64           `json:"income"`
	Expenses    float64           `json:"expenses"`
	Investments float64           `json:"investments"`
	Balance     float64           `json:"balance"`
	TopExpenses []CategoryTotal   `json:"topExpenses"`
	Formatted   map[string]string `json:"formatted,omitempty"`
}

// PeriodReport sums income and expense transactions dated inside a period.
type PeriodReport struct {
	Start              string            `json:"start"`
	End                string            `json:"end"`
	Income             float64           `json:"income"`
	Expenses           float64           `json:"expenses"`
	Balance            float64           `json:"balance"`
	ExpensesByCategory []CategoryTotal   `json:"expensesByCategory"`
	Formatted          map[string]string `json:"formatted,omitempty"`
}

// BudgetLine compares the budget of an expense category with what was spent in the month.
type BudgetLine struct {
	CategoryID string  `json:"categoryId"`
	Name       string  `json:"name"`
	Color      string  `json:"color"`
	Budget     float64 `json:"budget"`
	Spent      float64 `json:"spent"`
	Remaining  float64 `json:"remaining"`
	Percent    float64 `json:"percent"`
}

// BudgetReport is the budget vs actual table of one month.
type BudgetReport struct {
	Month       string       `json:"month"`
	TotalBudget float64      `json:"totalBudget"`
	TotalSpent  float64      `json:"totalSpent"`
	Lines       []BudgetLine `json:"lines"`
}

// InvestmentOverview tracks invested amounts against the first investment goal.
type InvestmentOverview struct {
	TotalInvested   float64           `json:"totalInvested"`
	TotalEarnings   float64           `json:"totalEarnings"`
	MonthlyInvested float64           `json:"monthlyInvested"`
	YearlyInvested  float64           `json:"yearlyInvested"`
	MonthlyTarget   float64           `json:"monthlyTarget"`
	YearlyTarget    float64           `json:"yearlyTarget"`
	MonthlyProgress float64           `json:"monthlyProgress"`
	YearlyProgress  float64           `json:"yearlyProgress"`
	Formatted       map[string]string `json:"formatted,omitempty"`
}

// BuildDashboard computes balance as income minus expenses minus investments.
func BuildDashboard(txs []finance.Transaction, cats []finance.Category) Dashboard {
	var d Dashboard
	for _, t := range txs {
		switch t.Type {
		case finance.KindIncome:
			d.Income += t.Amount
		case finance.KindExpense:
			d.Expenses += t.Amount
		case finance.KindInvestment:
			d.Investments += t.Amount
		}
	}
	d.Balance = d.Income - d.Expenses - d.Investments

	totals := make([]CategoryTotal, 0, len(cats))
	for _, c := range cats {
		if c.Type != finance.KindExpense {
			continue
		}
		total := CategoryTotal{CategoryID: c.ID, Name: c.Name, Color: c.Color}
		for _, t := range txs {
			if t.Type == finance.KindExpense && t.CategoryID == c.ID {
				total.Amount += t.Amount
			}
		}
		totals = append(totals, total)
	}
	sort.SliceStable(totals, func(i, j int) bool { return totals[i].Amount > totals[j].Amount })
	if len(totals) > TopExpenseCategories {
		totals = totals[:TopExpenseCategories]
	}
	d.TopExpenses = totals
	return d
}

// BuildPeriod computes balance as income minus expenses for transactions dated inside p.
// Expenses whose category no longer exists are counted in the totals but not in the breakdown.
func BuildPeriod(txs []finance.Transaction, cats []finance.Category, p shared.Period) PeriodReport {
	report := PeriodReport{
		Start:              p.Start.Format(shared.DateLayout),
		End:                p.End.Format(shared.DateLayout),
		ExpensesByCategory: []CategoryTotal{},
	}
	byID := indexCategories(cats)
	byCategory := map[string]int{}
	for _, t := range inPeriod(txs, p) {
		switch t.Type {
		case finance.KindIncome:
			report.Income += t.Amount
		case finance.KindExpense:
			report.Expenses += t.Amount
			c, ok := byID[t.CategoryID]
			if !ok {
				continue
			}
			idx, ok := byCategory[c.ID]
			if !ok {
				idx = len(report.ExpensesByCategory)
				byCategory[c.ID] = idx
				report.ExpensesByCategory = append(report.ExpensesByCategory, CategoryTotal{CategoryID: c.ID, Name: c.Name, Color: c.Color})
			}
			report.ExpensesByCategory[idx].Amount += t.Amount
		}
	}
	sort.SliceStable(report.ExpensesByCategory, func(i, j int) bool {
		return report.ExpensesByCategory[i].Amount > report.ExpensesByCategory[j].Amount
	})
	report.Balance = report.Income - report.Expenses
	return report
}

// BuildBudget compares every expense category with its spending in the month of p. A budget
// setting overrides the category's own budget.
func BuildBudget(txs []finance.Transaction, cats []finance.Category, settings []finance.BudgetSetting, month shared.Period) BudgetReport {
	overrides := make(map[string]float64, len(settings))
	for _, s := range settings {
		overrides[s.CategoryID] = s.Amount
	}
	spent := map[string]float64{}
	for _, t := range inPeriod(txs, month) {
		if t.Type == finance.KindExpense {
			spent[t.CategoryID] += t.Amount
		}
	}
	report := BudgetReport{Month: month.Start.Format("2006-01"), Lines: []BudgetLine{}}
	for _, c := range cats {
		if c.Type != finance.KindExpense {
			continue
		}
		line := BudgetLine{CategoryID: c.ID, Name: c.Name, Color: c.Color, Spent: spent[c.ID]}
		if amount, ok := overrides[c.ID]; ok {
			line.Budget = amount
		} else if c.Budget != nil {
			line.Budget = *c.Budget
		}
		line.Remaining = line.Budget - line.Spent
		line.Percent = percent(line.Spent, line.Budget)
		report.TotalBudget += line.Budget
		report.TotalSpent += line.Spent
		report.Lines = append(report.Lines, line)
	}
	return report
}

// BuildInvestments measures invested amounts in the month and year of now against the first
// investment goal. Progress is zero when the target is zero.
func BuildInvestments(invs []finance.Investment, goals []finance.Goal, now time.Time) InvestmentOverview {
	var o InvestmentOverview
	month := shared.MonthPeriod(now)
	year := shared.YearPeriod(now)
	for _, inv := range invs {
		o.TotalInvested += inv.Amount
		if inv.Earnings != nil {
			o.TotalEarnings += *inv.Earnings
		}
		d, err := shared.ParseDate(inv.Date)
		if err != nil {
			continue
		}
		if month.Contains(d) {
			o.MonthlyInvested += inv.Amount
		}
		if year.Contains(d) {
			o.YearlyInvested += inv.Amount
		}
	}
	for _, g := range goals {
		if g.Type == finance.GoalInvestment {
			o.MonthlyTarget = g.MonthlyTarget
			o.YearlyTarget = g.YearlyTarget
			break
		}
	}
	o.MonthlyProgress = percent(o.MonthlyInvested, o.MonthlyTarget)
	o.YearlyProgress = percent(o.YearlyInvested, o.YearlyTarget)
	return o
}

// TransactionsInPeriod returns the income and expense transactions dated inside p, newest first.
func TransactionsInPeriod(txs []finance.Transaction, p shared.Period) []finance.Transaction {
	out := make([]finance.Transaction, 0, len(txs))
	for _, t := range inPeriod(txs, p) {
		if t.Type != finance.KindInvestment {
			out = append(out, t)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Date > out[j].Date })
	return out
}

func inPeriod(txs []finance.Transaction, p shared.Period) []finance.Transaction {
	out := make([]finance.Transaction, 0, len(txs))
	for _, t := range txs {
		d, err := shared.ParseDate(t.Date)
		if err != nil || !p.Contains(d) {
			continue
		}
		out = append(out, t)
	}
	return out
}

func indexCategories(cats []finance.Category) map[string]finance.Category {
	out := make(map[string]finance.Category, len(cats))
	for _, c := range cats {
		out[c.ID] = c
	}
	return out
}

func percent(value, target float64) float64 {
	if target <= 0 {
		return 0
	}
	return value / target * 100
}

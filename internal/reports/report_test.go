package reports_test

import (
	"bytes"
	"encoding/csv"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/assistente-financeiro/assistente-financeiro/internal/finance"
	"github.com/assistente-financeiro/assistente-financeiro/internal/reports"
	"github.com/assistente-financeiro/assistente-financeiro/internal/shared"
)

func sampleTransactions() []finance.Transaction {
	return []finance.Transaction{
		{ID: "t1", Title: "Salário", Amount: 5000, Type: finance.KindIncome, CategoryID: "7", Date: "2024-05-05"},
		{ID: "t2", Title: "Mercado", Amount: 300, Type: finance.KindExpense, CategoryID: "1", Date: "2024-05-10"},
		{ID: "t3", Title: "Ônibus", Amount: 50, Type: finance.KindExpense, CategoryID: "2", Date: "2024-05-11"},
		{ID: "t4", Title: "Restaurante", Amount: 120, Type: finance.KindExpense, CategoryID: "1", Date: "2024-04-28"},
		{ID: "t5", Title: "Tesouro", Amount: 1000, Type: finance.KindInvestment, CategoryID: "10", Date: "2024-05-15"},
		{ID: "t6", Title: "Sumiu", Amount: 10, Type: finance.KindExpense, CategoryID: "gone", Date: "2024-05-12"},
	}
}

func TestBuildDashboard(t *testing.T) {
	d := reports.BuildDashboard(sampleTransactions(), finance.DefaultCategories())

	require.Equal(t, 5000.0, d.Income)
	require.Equal(t, 480.0, d.Expenses)
	require.Equal(t, 1000.0, d.Investments)
	require.Equal(t, 3520.0, d.Balance)
	require.Len(t, d.TopExpenses, reports.TopExpenseCategories)
	require.Equal(t, "1", d.TopExpenses[0].CategoryID)
	require.Equal(t, 420.0, d.TopExpenses[0].Amount)
	require.Equal(t, "2", d.TopExpenses[1].CategoryID)
}

func TestBuildPeriod(t *testing.T) {
	p, err := shared.NewPeriod("2024-05-01", "2024-05-31")
	require.NoError(t, err)

	r := reports.BuildPeriod(sampleTransactions(), finance.DefaultCategories(), p)

	require.Equal(t, "2024-05-01", r.Start)
	require.Equal(t, 5000.0, r.Income)
	require.Equal(t, 360.0, r.Expenses)
	require.Equal(t, 4640.0, r.Balance)
	require.Len(t, r.ExpensesByCategory, 2)
	require.Equal(t, "Alimentação", r.ExpensesByCategory[0].Name)
	require.Equal(t, 300.0, r.ExpensesByCategory[0].Amount)
	require.Equal(t, "Transporte", r.ExpensesByCategory[1].Name)
}

func TestBuildPeriodEmpty(t *testing.T) {
	p, err := shared.NewPeriod("2023-01-01", "2023-01-31")
	require.NoError(t, err)

	r := reports.BuildPeriod(sampleTransactions(), finance.DefaultCategories(), p)
	require.Zero(t, r.Income)
	require.Zero(t, r.Balance)
	require.NotNil(t, r.ExpensesByCategory)
	require.Empty(t, r.ExpensesByCategory)
}

func TestBuildBudgetUsesOverrides(t *testing.T) {
	month := shared.MonthPeriod(time.Date(2024, time.May, 20, 0, 0, 0, 0, time.UTC))
	overrides := []finance.BudgetSetting{{CategoryID: "2", Amount: 40}}

	r := reports.BuildBudget(sampleTransactions(), finance.DefaultCategories(), overrides, month)

	require.Equal(t, "2024-05", r.Month)
	require.Len(t, r.Lines, 6)
	food := r.Lines[0]
	require.Equal(t, 800.0, food.Budget)
	require.Equal(t, 300.0, food.Spent)
	require.Equal(t, 500.0, food.Remaining)
	require.InDelta(t, 37.5, food.Percent, 0.001)

	transport := r.Lines[1]
	require.Equal(t, 40.0, transport.Budget)
	require.Equal(t, 50.0, transport.Spent)
	require.Equal(t, -10.0, transport.Remaining)
	require.InDelta(t, 125.0, transport.Percent, 0.001)

	require.Equal(t, 350.0, r.TotalSpent)
	require.Equal(t, 800.0+40+300+1500+500+400, r.TotalBudget)
}

func TestBuildInvestments(t *testing.T) {
	now := time.Date(2024, time.May, 20, 12, 0, 0, 0, time.UTC)
	earnings := 25.0
	invs := []finance.Investment{
		{ID: "i1", Amount: 1000, Date: "2024-05-02", Earnings: &earnings},
		{ID: "i2", Amount: 500, Date: "2024-02-10"},
		{ID: "i3", Amount: 200, Date: "2023-12-31"},
	}
	goals := []finance.Goal{
		{ID: "g0", Type: finance.GoalSavings, MonthlyTarget: 1, YearlyTarget: 1},
		{ID: "g1", Type: finance.GoalInvestment, MonthlyTarget: 2000, YearlyTarget: 0},
	}

	o := reports.BuildInvestments(invs, goals, now)

	require.Equal(t, 1700.0, o.TotalInvested)
	require.Equal(t, 25.0, o.TotalEarnings)
	require.Equal(t, 1000.0, o.MonthlyInvested)
	require.Equal(t, 1500.0, o.YearlyInvested)
	require.Equal(t, 2000.0, o.MonthlyTarget)
	require.InDelta(t, 50.0, o.MonthlyProgress, 0.001)
	require.Zero(t, o.YearlyProgress)
}

func TestBuildInvestmentsWithoutGoal(t *testing.T) {
	o := reports.BuildInvestments([]finance.Investment{{Amount: 10, Date: "2024-05-01"}}, nil, time.Date(2024, time.May, 1, 0, 0, 0, 0, time.UTC))
	require.Zero(t, o.MonthlyProgress)
	require.Zero(t, o.YearlyProgress)
}

func TestWriteTransactionsCSV(t *testing.T) {
	p, err := shared.NewPeriod("2024-05-01", "2024-05-31")
	require.NoError(t, err)
	buf := &bytes.Buffer{}

	require.NoError(t, reports.WriteTransactionsCSV(buf, sampleTransactions(), finance.DefaultCategories(), p))

	records, err := csv.NewReader(bytes.NewReader(buf.Bytes())).ReadAll()
	require.NoError(t, err)
	require.Equal(t, []string{"Data", "Título", "Categoria", "Tipo", "Valor"}, records[0])
	// investments are excluded, newest first
	require.Equal(t, []string{"12/05/2024", "Sumiu", "", "Despesa", "10.00"}, records[1])
	require.Equal(t, []string{"05/05/2024", "Salário", "Salário", "Receita", "5000.00"}, records[4])
	require.Equal(t, []string{"", "", "", "Saldo Final", "4640.00"}, records[len(records)-1])
}

func TestFormatter(t *testing.T) {
	f, err := reports.NewFormatter("BRL", "pt-BR")
	require.NoError(t, err)
	require.Equal(t, "BRL", f.Currency())

	out := f.Format(1234.5)
	require.Contains(t, out, "R$")
	require.Contains(t, out, "1.234,50")

	_, err = reports.NewFormatter("nope", "pt-BR")
	require.Error(t, err)
}

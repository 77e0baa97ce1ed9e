package reports

import (
	"encoding/csv"
	"io"
	"strconv"

	"github.com/assistente-financeiro/assistente-financeiro/internal/finance"
	"github.com/assistente-financeiro/assistente-financeiro/internal/shared"
)

var transactionKindLabels = map[finance.Kind]string{
	finance.KindIncome:  "Receita",
	finance.KindExpense: "Despesa",
}

// WriteTransactionsCSV serialises the income and expense transactions of a period followed by
// their totals.
func WriteTransactionsCSV(w io.Writer, txs []finance.Transaction, cats []finance.Category, p shared.Period) error {
	writer := csv.NewWriter(w)
	byID := indexCategories(cats)
	rows := TransactionsInPeriod(txs, p)

	if err := writer.Write([]string{"Data", "Título", "Categoria", "Tipo", "Valor"}); err != nil {
		return err
	}
	var income, expenses float64
	for _, t := range rows {
		switch t.Type {
		case finance.KindIncome:
			income += t.Amount
		case finance.KindExpense:
			expenses += t.Amount
		}
		date := t.Date
		if d, err := shared.ParseDate(t.Date); err == nil {
			date = d.Format("02/01/2006")
		}
		record := []string{date, t.Title, byID[t.CategoryID].Name, transactionKindLabels[t.Type], formatFloat(t.Amount)}
		if err := writer.Write(record); err != nil {
			return err
		}
	}
	totals := [][]string{
		{},
		{"", "", "", "Total Receitas", formatFloat(income)},
		{"", "", "", "Total Despesas", formatFloat(expenses)},
		{"", "", "", "Saldo Final", formatFloat(income - expenses)},
	}
	for _, record := range totals {
		if err := writer.Write(record); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}

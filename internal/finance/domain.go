// Package finance stores the per-user financial collections: categories, transactions,
// investments, goals, budget settings and app settings.
package finance

import (
	"github.com/assistente-financeiro/assistente-financeiro/internal/platform/httpx"
)

// Kind classifies transactions and categories.
type Kind string

const (
	KindIncome     Kind = "income"
	KindExpense    Kind = "expense"
	KindInvestment Kind = "investment"
)

var (
	// ErrCategoryInUse is returned when deleting a category still referenced by records.
	ErrCategoryInUse = httpx.NewError(httpx.ErrConflict, "category is in use")
	// ErrUnknownCategory is returned when a record references a missing category.
	ErrUnknownCategory = httpx.NewError(httpx.ErrValidation, "category does not exist")
	// ErrCategoryKind is returned when a record references a category of another kind.
	ErrCategoryKind = httpx.NewError(httpx.ErrValidation, "category type does not match")
)

// Category groups transactions. Budget only applies to expense categories.
type Category struct {
	ID     string   `json:"id"`
	Name   string   `json:"name" validate:"required,max=60"`
	Color  string   `json:"color" validate:"required,hexcolor"`
	Budget *float64 `json:"budget,omitempty" validate:"omitempty,gte=0"`
	Type   Kind     `json:"type" validate:"required,oneof=income expense investment"`
}

// Transaction is a single income, expense or investment movement.
type Transaction struct {
	ID         string  `json:"id"`
	Title      string  `json:"title" validate:"required,max=120"`
	Amount     float64 `json:"amount" validate:"gt=0"`
	Type       Kind    `json:"type" validate:"required,oneof=income expense investment"`
	CategoryID string  `json:"categoryId" validate:"required"`
	Date       string  `json:"date" validate:"required,isodate"`
	UserID     string  `json:"userId"`
}

// Investment is a position bought on a date.
type Investment struct {
	ID           string   `json:"id"`
	Title        string   `json:"title" validate:"required,max=120"`
	Amount       float64  `json:"amount" validate:"gt=0"`
	Date         string   `json:"date" validate:"required,isodate"`
	CategoryID   string   `json:"categoryId" validate:"required"`
	CurrentValue *float64 `json:"currentValue,omitempty" validate:"omitempty,gte=0"`
	Earnings     *float64 `json:"earnings,omitempty"`
	LastUpdated  string   `json:"lastUpdated,omitempty" validate:"omitempty,isodate"`
	UserID       string   `json:"userId"`
}

// GoalType classifies goals.
type GoalType string

const (
	GoalInvestment GoalType = "investment"
	GoalSavings    GoalType = "savings"
	GoalExpense    GoalType = "expense"
)

// Goal is a monthly and yearly target.
type Goal struct {
	ID            string   `json:"id"`
	Date          string   `json:"date" validate:"required,isodate"`
	Description   string   `json:"description" validate:"required,max=200"`
	MonthlyTarget float64  `json:"monthlyTarget" validate:"gte=0"`
	YearlyTarget  float64  `json:"yearlyTarget" validate:"gte=0"`
	Type          GoalType `json:"type" validate:"required,oneof=investment savings expense"`
	Progress      float64  `json:"progress" validate:"gte=0"`
	IsCompleted   bool     `json:"isCompleted"`
	UserID        string   `json:"userId"`
}

// BudgetSetting overrides the monthly budget of one category.
type BudgetSetting struct {
	CategoryID string  `json:"categoryId"`
	Amount     float64 `json:"amount"`
	UserID     string  `json:"userId,omitempty"`
}

// BudgetInput is the body of a budget upsert.
type BudgetInput struct {
	Amount float64 `json:"amount" validate:"gte=0"`
}

// Settings holds per-user application preferences.
type Settings struct {
	Theme              string `json:"theme" validate:"required,oneof=light dark system"`
	Language           string `json:"language" validate:"required,bcp47_language_tag"`
	Currency           string `json:"currency" validate:"required,iso4217"`
	Notifications      bool   `json:"notifications"`
	EmailNotifications bool   `json:"emailNotifications"`
	UserID             string `json:"userId,omitempty"`
}

// DefaultSettings mirrors the product defaults.
func DefaultSettings() Settings {
	return Settings{Theme: "light", Language: "pt-BR", Currency: "BRL", Notifications: true}
}

func budget(v float64) *float64 { return &v }

// DefaultCategories seeds a partition that has never stored categories.
func DefaultCategories() []Category {
	return []Category{
		{ID: "1", Name: "Alimentação", Color: "#f87171", Budget: budget(800), Type: KindExpense},
		{ID: "2", Name: "Transporte", Color: "#60a5fa", Budget: budget(400), Type: KindExpense},
		{ID: "3", Name: "Lazer", Color: "#34d399", Budget: budget(300), Type: KindExpense},
		{ID: "4", Name: "Aluguel", Color: "#a78bfa", Budget: budget(1500), Type: KindExpense},
		{ID: "5", Name: "Utilidades", Color: "#fbbf24", Budget: budget(500), Type: KindExpense},
		{ID: "6", Name: "Compras", Color: "#f472b6", Budget: budget(400), Type: KindExpense},
		{ID: "7", Name: "Salário", Color: "#818cf8", Type: KindIncome},
		{ID: "8", Name: "Ações", Color: "#10b981", Type: KindInvestment},
		{ID: "9", Name: "Fundos", Color: "#6366f1", Type: KindInvestment},
		{ID: "10", Name: "Renda Fixa", Color: "#8b5cf6", Type: KindInvestment},
	}
}

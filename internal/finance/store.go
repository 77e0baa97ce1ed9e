package finance

import (
	"context"
	"errors"
	"fmt"

	"github.com/assistente-financeiro/assistente-financeiro/internal/partition"
	"github.com/assistente-financeiro/assistente-financeiro/internal/shared"
	"github.com/assistente-financeiro/assistente-financeiro/internal/storage"
)

// Invalidator is told about every mutation so derived aggregates can be recomputed.
type Invalidator interface {
	Invalidate(ctx context.Context, userID string)
}

// Store is the financial aggregate store of one partition.
type Store struct {
	userID       string
	store        storage.Store
	categories   *Collection[Category]
	transactions *Collection[Transaction]
	investments  *Collection[Investment]
	goals        *Collection[Goal]
	budget       *Collection[BudgetSetting]
	inval        Invalidator
}

// NewStore binds the collections of p.
func NewStore(p *partition.Partition, inval Invalidator) *Store {
	return &Store{
		userID:       p.UserID,
		store:        p.Store,
		categories:   NewCollection(p.Store, partition.Categories, func(c *Category) *string { return &c.ID }, WithDefaults(DefaultCategories)),
		transactions: NewCollection(p.Store, partition.Transactions, func(t *Transaction) *string { return &t.ID }, Prepend[Transaction]()),
		investments:  NewCollection(p.Store, partition.Investments, func(i *Investment) *string { return &i.ID }),
		goals:        NewCollection(p.Store, partition.Goals, func(g *Goal) *string { return &g.ID }),
		budget:       NewCollection(p.Store, partition.BudgetSettings, func(b *BudgetSetting) *string { return &b.CategoryID }),
		inval:        inval,
	}
}

// UserID returns the owner of the partition.
func (s *Store) UserID() string {
	return s.userID
}

func (s *Store) changed(ctx context.Context) {
	if s.inval != nil {
		s.inval.Invalidate(ctx, s.userID)
	}
}

// Transactions

func (s *Store) Transactions(ctx context.Context) ([]Transaction, error) {
	return s.transactions.List(ctx)
}

func (s *Store) AddTransaction(ctx context.Context, t Transaction) (Transaction, error) {
	unlock := lockAll(s.categories, s.transactions)
	defer unlock()
	if err := s.checkCategory(ctx, t.CategoryID, t.Type); err != nil {
		return Transaction{}, err
	}
	t.UserID = s.userID
	out, err := s.transactions.add(ctx, t)
	if err != nil {
		return Transaction{}, err
	}
	s.changed(ctx)
	return out, nil
}

func (s *Store) EditTransaction(ctx context.Context, t Transaction) (Transaction, error) {
	unlock := lockAll(s.categories, s.transactions)
	defer unlock()
	if err := s.checkCategory(ctx, t.CategoryID, t.Type); err != nil {
		return Transaction{}, err
	}
	t.UserID = s.userID
	out, err := s.transactions.edit(ctx, t)
	if err != nil {
		return Transaction{}, err
	}
	s.changed(ctx)
	return out, nil
}

func (s *Store) DeleteTransaction(ctx context.Context, id string) error {
	if err := s.transactions.Delete(ctx, id); err != nil {
		return err
	}
	s.changed(ctx)
	return nil
}

// Categories

func (s *Store) Categories(ctx context.Context) ([]Category, error) {
	return s.categories.List(ctx)
}

func (s *Store) AddCategory(ctx context.Context, c Category) (Category, error) {
	out, err := s.categories.Add(ctx, c)
	if err != nil {
		return Category{}, err
	}
	s.changed(ctx)
	return out, nil
}

// EditCategory replaces a category. Changing the type of a category that records reference is
// rejected with ErrCategoryInUse.
func (s *Store) EditCategory(ctx context.Context, c Category) (Category, error) {
	unlock := lockAll(s.categories, s.transactions, s.investments)
	defer unlock()
	current, err := s.categories.Get(ctx, c.ID)
	if err != nil {
		return Category{}, err
	}
	if current.Type != c.Type {
		used, err := s.categoryInUse(ctx, c.ID)
		if err != nil {
			return Category{}, err
		}
		if used {
			return Category{}, ErrCategoryInUse
		}
	}
	out, err := s.categories.edit(ctx, c)
	if err != nil {
		return Category{}, err
	}
	s.changed(ctx)
	return out, nil
}

// DeleteCategory removes a category nobody references, along with its budget override.
func (s *Store) DeleteCategory(ctx context.Context, id string) error {
	unlock := lockAll(s.categories, s.transactions, s.investments, s.budget)
	defer unlock()
	used, err := s.categoryInUse(ctx, id)
	if err != nil {
		return err
	}
	if used {
		return ErrCategoryInUse
	}
	if err := s.categories.del(ctx, id); err != nil {
		return err
	}
	if err := s.budget.del(ctx, id); err != nil && !errors.Is(err, shared.ErrNotFound) {
		return err
	}
	s.changed(ctx)
	return nil
}

// Investments

func (s *Store) Investments(ctx context.Context) ([]Investment, error) {
	return s.investments.List(ctx)
}

func (s *Store) AddInvestment(ctx context.Context, i Investment) (Investment, error) {
	unlock := lockAll(s.categories, s.investments)
	defer unlock()
	if err := s.checkCategory(ctx, i.CategoryID, KindInvestment); err != nil {
		return Investment{}, err
	}
	i.UserID = s.userID
	out, err := s.investments.add(ctx, i)
	if err != nil {
		return Investment{}, err
	}
	s.changed(ctx)
	return out, nil
}

func (s *Store) EditInvestment(ctx context.Context, i Investment) (Investment, error) {
	unlock := lockAll(s.categories, s.investments)
	defer unlock()
	if err := s.checkCategory(ctx, i.CategoryID, KindInvestment); err != nil {
		return Investment{}, err
	}
	i.UserID = s.userID
	out, err := s.investments.edit(ctx, i)
	if err != nil {
		return Investment{}, err
	}
	s.changed(ctx)
	return out, nil
}

func (s *Store) DeleteInvestment(ctx context.Context, id string) error {
	if err := s.investments.Delete(ctx, id); err != nil {
		return err
	}
	s.changed(ctx)
	return nil
}

// Goals

func (s *Store) Goals(ctx context.Context) ([]Goal, error) {
	return s.goals.List(ctx)
}

func (s *Store) AddGoal(ctx context.Context, g Goal) (Goal, error) {
	g.UserID = s.userID
	out, err := s.goals.Add(ctx, g)
	if err != nil {
		return Goal{}, err
	}
	s.changed(ctx)
	return out, nil
}

func (s *Store) EditGoal(ctx context.Context, g Goal) (Goal, error) {
	g.UserID = s.userID
	out, err := s.goals.Edit(ctx, g)
	if err != nil {
		return Goal{}, err
	}
	s.changed(ctx)
	return out, nil
}

func (s *Store) DeleteGoal(ctx context.Context, id string) error {
	if err := s.goals.Delete(ctx, id); err != nil {
		return err
	}
	s.changed(ctx)
	return nil
}

// Budget

// Budget returns the stored budget overrides.
func (s *Store) Budget(ctx context.Context) ([]BudgetSetting, error) {
	return s.budget.List(ctx)
}

// SetBudget creates or replaces the budget override of an existing category.
func (s *Store) SetBudget(ctx context.Context, categoryID string, amount float64) (BudgetSetting, error) {
	unlock := lockAll(s.categories, s.budget)
	defer unlock()
	if _, err := s.categories.Get(ctx, categoryID); err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return BudgetSetting{}, ErrUnknownCategory
		}
		return BudgetSetting{}, err
	}
	out, err := s.budget.upsert(ctx, BudgetSetting{CategoryID: categoryID, Amount: amount, UserID: s.userID})
	if err != nil {
		return BudgetSetting{}, err
	}
	s.changed(ctx)
	return out, nil
}

// Settings

// Settings returns the stored preferences or the defaults.
func (s *Store) Settings(ctx context.Context) (Settings, error) {
	out := DefaultSettings()
	if _, err := storage.LoadJSON(ctx, s.store, partition.Settings, &out); err != nil {
		return Settings{}, fmt.Errorf("finance: load settings: %w", err)
	}
	out.UserID = s.userID
	return out, nil
}

// UpdateSettings replaces the stored preferences.
func (s *Store) UpdateSettings(ctx context.Context, in Settings) (Settings, error) {
	in.UserID = s.userID
	if err := storage.SaveJSON(ctx, s.store, partition.Settings, in); err != nil {
		return Settings{}, fmt.Errorf("finance: save settings: %w", err)
	}
	return in, nil
}

func (s *Store) checkCategory(ctx context.Context, id string, kind Kind) error {
	c, err := s.categories.Get(ctx, id)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return ErrUnknownCategory
		}
		return err
	}
	if c.Type != kind {
		return ErrCategoryKind
	}
	return nil
}

func (s *Store) categoryInUse(ctx context.Context, id string) (bool, error) {
	txs, err := s.transactions.List(ctx)
	if err != nil {
		return false, err
	}
	for _, t := range txs {
		if t.CategoryID == id {
			return true, nil
		}
	}
	invs, err := s.investments.List(ctx)
	if err != nil {
		return false, err
	}
	for _, i := range invs {
		if i.CategoryID == id {
			return true, nil
		}
	}
	return false, nil
}

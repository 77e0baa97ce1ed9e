package finance

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/assistente-financeiro/assistente-financeiro/internal/shared"
	"github.com/assistente-financeiro/assistente-financeiro/internal/storage"
)

// Collection is a JSON array of records stored under one key. Every mutation rewrites the whole
// array; the last writer wins.
type Collection[T any] struct {
	store    storage.Store
	key      string
	idOf     func(*T) *string
	prepend  bool
	defaults func() []T
}

var collectionLocks shared.KeyLocks

// lockKey names the collection by its full key in the root store, so two profiles' guest
// partitions never share a lock.
func (c *Collection[T]) lockKey() string {
	namespace := ""
	if p, ok := c.store.(interface{ Namespace() string }); ok {
		namespace = p.Namespace()
	}
	return shared.CollectionLockKey(namespace, c.key)
}

func (c *Collection[T]) lock() func() {
	return collectionLocks.Lock(c.lockKey())
}

// locker is a collection whose lock can be taken on behalf of a multi-collection operation.
type locker interface {
	lock() func()
}

// lockAll takes the locks of cs in the given order and returns a function releasing them in
// reverse. Callers always pass collections in the order categories, transactions, investments,
// budget.
func lockAll(cs ...locker) func() {
	unlocks := make([]func(), 0, len(cs))
	for _, c := range cs {
		unlocks = append(unlocks, c.lock())
	}
	return func() {
		for i := len(unlocks) - 1; i >= 0; i-- {
			unlocks[i]()
		}
	}
}

// CollectionOption customizes a Collection.
type CollectionOption[T any] func(*Collection[T])

// Prepend makes Add insert new records first.
func Prepend[T any]() CollectionOption[T] {
	return func(c *Collection[T]) { c.prepend = true }
}

// WithDefaults supplies the records returned while the key has never been written.
func WithDefaults[T any](fn func() []T) CollectionOption[T] {
	return func(c *Collection[T]) { c.defaults = fn }
}

// NewCollection binds a collection to key in store. idOf returns a pointer to a record's id.
func NewCollection[T any](store storage.Store, key string, idOf func(*T) *string, opts ...CollectionOption[T]) *Collection[T] {
	c := &Collection[T]{store: store, key: key, idOf: idOf}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// List returns every record in stored order.
func (c *Collection[T]) List(ctx context.Context) ([]T, error) {
	var items []T
	found, err := storage.LoadJSON(ctx, c.store, c.key, &items)
	if err != nil {
		return nil, fmt.Errorf("finance: load %s: %w", c.key, err)
	}
	if !found && c.defaults != nil {
		return c.defaults(), nil
	}
	if items == nil {
		items = []T{}
	}
	return items, nil
}

// Get returns the record with id.
func (c *Collection[T]) Get(ctx context.Context, id string) (T, error) {
	var zero T
	items, err := c.List(ctx)
	if err != nil {
		return zero, err
	}
	for i := range items {
		if *c.idOf(&items[i]) == id {
			return items[i], nil
		}
	}
	return zero, shared.ErrNotFound
}

// Add assigns a fresh id to item and stores it.
func (c *Collection[T]) Add(ctx context.Context, item T) (T, error) {
	defer c.lock()()
	return c.add(ctx, item)
}

func (c *Collection[T]) add(ctx context.Context, item T) (T, error) {
	items, err := c.List(ctx)
	if err != nil {
		return item, err
	}
	*c.idOf(&item) = uuid.NewString()
	if c.prepend {
		items = append([]T{item}, items...)
	} else {
		items = append(items, item)
	}
	if err := c.save(ctx, items); err != nil {
		return item, err
	}
	return item, nil
}

// Edit replaces the record carrying item's id.
func (c *Collection[T]) Edit(ctx context.Context, item T) (T, error) {
	defer c.lock()()
	return c.edit(ctx, item)
}

func (c *Collection[T]) edit(ctx context.Context, item T) (T, error) {
	items, err := c.List(ctx)
	if err != nil {
		return item, err
	}
	id := *c.idOf(&item)
	for i := range items {
		if *c.idOf(&items[i]) == id {
			items[i] = item
			return item, c.save(ctx, items)
		}
	}
	return item, shared.ErrNotFound
}

// Delete removes the record with id.
func (c *Collection[T]) Delete(ctx context.Context, id string) error {
	defer c.lock()()
	return c.del(ctx, id)
}

func (c *Collection[T]) del(ctx context.Context, id string) error {
	items, err := c.List(ctx)
	if err != nil {
		return err
	}
	kept := make([]T, 0, len(items))
	for i := range items {
		if *c.idOf(&items[i]) != id {
			kept = append(kept, items[i])
		}
	}
	if len(kept) == len(items) {
		return shared.ErrNotFound
	}
	return c.save(ctx, kept)
}

// Upsert replaces the record with item's id or appends item when none exists. The id is kept.
func (c *Collection[T]) Upsert(ctx context.Context, item T) (T, error) {
	defer c.lock()()
	return c.upsert(ctx, item)
}

func (c *Collection[T]) upsert(ctx context.Context, item T) (T, error) {
	items, err := c.List(ctx)
	if err != nil {
		return item, err
	}
	id := *c.idOf(&item)
	for i := range items {
		if *c.idOf(&items[i]) == id {
			items[i] = item
			return item, c.save(ctx, items)
		}
	}
	return item, c.save(ctx, append(items, item))
}

// Replace overwrites the whole collection.
func (c *Collection[T]) Replace(ctx context.Context, items []T) error {
	defer c.lock()()
	return c.save(ctx, items)
}

func (c *Collection[T]) save(ctx context.Context, items []T) error {
	if items == nil {
		items = []T{}
	}
	if err := storage.SaveJSON(ctx, c.store, c.key, items); err != nil {
		return fmt.Errorf("finance: save %s: %w", c.key, err)
	}
	return nil
}

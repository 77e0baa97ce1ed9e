// Package partition namespaces financial collections by the owning user so that switching the
// signed-in user switches the visible data set.
package partition

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/assistente-financeiro/assistente-financeiro/internal/storage"
)

// Guest is the sentinel user id used while nobody is signed in.
const Guest = "guest"

// Collection names stored under a partition prefix.
const (
	Transactions   = "transactions"
	Categories     = "categories"
	Goals          = "goals"
	Investments    = "investments"
	BudgetSettings = "budgetSettings"
	Settings       = "settings"
)

// Collections lists every collection a partition may hold.
var Collections = []string{Transactions, Categories, Goals, Investments, BudgetSettings, Settings}

// Prefix returns the key prefix of userID's partition. An empty id is the guest.
func Prefix(userID string) string {
	if userID == "" {
		userID = Guest
	}
	return "user_" + userID + "_"
}

// Key returns the full storage key of a collection.
func Key(userID, collection string) string {
	return Prefix(userID) + collection
}

// Partition is the set of collections owned by one user.
type Partition struct {
	UserID string
	Store  *storage.Prefixed
}

// IsGuest reports whether the partition belongs to the guest sentinel.
func (p *Partition) IsGuest() bool {
	return p.UserID == Guest
}

// Resolver picks the store backing a partition.
type Resolver struct {
	root storage.Store
}

// NewResolver returns a resolver whose authenticated partitions live in root.
func NewResolver(root storage.Store) *Resolver {
	return &Resolver{root: root}
}

// For resolves the partition of userID. Authenticated partitions live in the installation-wide
// store so they survive sign-out; the guest partition lives in the browser profile store.
func (r *Resolver) For(profile storage.Store, userID string) *Partition {
	if userID == "" || userID == Guest {
		return &Partition{UserID: Guest, Store: storage.WithPrefix(profile, Prefix(Guest))}
	}
	return &Partition{UserID: userID, Store: storage.WithPrefix(r.root, Prefix(userID))}
}

// Remove deletes every collection of userID from the root store.
func (r *Resolver) Remove(ctx context.Context, userID string) error {
	if userID == "" || userID == Guest {
		return fmt.Errorf("partition: refusing to remove guest partition from root store")
	}
	return purge(ctx, r.root, Prefix(userID))
}

// Owners lists the user ids owning at least one collection in the root store.
func (r *Resolver) Owners(ctx context.Context) ([]string, error) {
	keys, err := r.root.Keys(ctx, "user_")
	if err != nil {
		return nil, fmt.Errorf("partition: list owners: %w", err)
	}
	seen := make(map[string]struct{})
	for _, k := range keys {
		if id, ok := ownerOf(k); ok && id != Guest {
			seen[id] = struct{}{}
		}
	}
	ids := make([]string, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

func ownerOf(key string) (string, bool) {
	rest, ok := strings.CutPrefix(key, "user_")
	if !ok {
		return "", false
	}
	for _, c := range Collections {
		if id, ok := strings.CutSuffix(rest, "_"+c); ok && id != "" {
			return id, true
		}
	}
	return "", false
}

// PurgeGuest removes only the guest partition keys from a profile store.
func PurgeGuest(ctx context.Context, profile storage.Store) error {
	return purge(ctx, profile, Prefix(Guest))
}

func purge(ctx context.Context, s storage.Store, prefix string) error {
	keys, err := s.Keys(ctx, prefix)
	if err != nil {
		return fmt.Errorf("partition: list %s: %w", prefix, err)
	}
	if len(keys) == 0 {
		return nil
	}
	if err := s.Delete(ctx, keys...); err != nil {
		return fmt.Errorf("partition: purge %s: %w", prefix, err)
	}
	return nil
}

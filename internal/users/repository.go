package users

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/assistente-financeiro/assistente-financeiro/internal/security"
	"github.com/assistente-financeiro/assistente-financeiro/internal/shared"
	"github.com/assistente-financeiro/assistente-financeiro/internal/storage"
)

// StorageKey holds the JSON array of accounts.
const StorageKey = "users"

// Directory is the user collection persisted under StorageKey. Each mutation reads, modifies
// and rewrites the whole array; concurrent writers in other processes win by writing last.
type Directory struct {
	store  storage.Store
	hasher *security.Hasher
	mu     sync.Mutex
	now    func() time.Time
}

// NewDirectory constructs a Directory over store.
func NewDirectory(store storage.Store, hasher *security.Hasher) *Directory {
	return &Directory{store: store, hasher: hasher, now: time.Now}
}

func (d *Directory) load(ctx context.Context) ([]Account, error) {
	var accounts []Account
	if _, err := storage.LoadJSON(ctx, d.store, StorageKey, &accounts); err != nil {
		return nil, fmt.Errorf("users: load: %w", err)
	}
	return accounts, nil
}

func (d *Directory) save(ctx context.Context, accounts []Account) error {
	if accounts == nil {
		accounts = []Account{}
	}
	if err := storage.SaveJSON(ctx, d.store, StorageKey, accounts); err != nil {
		return fmt.Errorf("users: save: %w", err)
	}
	return nil
}

// All returns every user without credentials.
func (d *Directory) All(ctx context.Context) ([]User, error) {
	accounts, err := d.load(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]User, len(accounts))
	for i, a := range accounts {
		out[i] = a.User
	}
	return out, nil
}

// FindByEmail looks a user up by exact email.
func (d *Directory) FindByEmail(ctx context.Context, email string) (User, error) {
	a, err := d.Credentials(ctx, email)
	if err != nil {
		return User{}, err
	}
	return a.User, nil
}

// FindByID looks a user up by id.
func (d *Directory) FindByID(ctx context.Context, id string) (User, error) {
	accounts, err := d.load(ctx)
	if err != nil {
		return User{}, err
	}
	for _, a := range accounts {
		if a.ID == id {
			return a.User, nil
		}
	}
	return User{}, shared.ErrNotFound
}

// Credentials returns the stored account including its password hash. Only credential checks
// may call it.
func (d *Directory) Credentials(ctx context.Context, email string) (Account, error) {
	accounts, err := d.load(ctx)
	if err != nil {
		return Account{}, err
	}
	for _, a := range accounts {
		if a.Email == email {
			return a, nil
		}
	}
	return Account{}, shared.ErrNotFound
}

// AddUnique appends an account unless another record already uses its email, in which case
// it returns shared.ErrEmailTaken. The check and the write happen under one lock.
func (d *Directory) AddUnique(ctx context.Context, a Account) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	accounts, err := d.load(ctx)
	if err != nil {
		return err
	}
	if emailTaken(accounts, a.Email, "") {
		return shared.ErrEmailTaken
	}
	return d.save(ctx, append(accounts, a))
}

// Update applies p to the user with the given id. Changing the email to one held by another
// record fails with shared.ErrEmailTaken.
func (d *Directory) Update(ctx context.Context, id string, p Patch) (User, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	accounts, err := d.load(ctx)
	if err != nil {
		return User{}, err
	}
	if p.Email != nil && emailTaken(accounts, *p.Email, id) {
		return User{}, shared.ErrEmailTaken
	}
	for i := range accounts {
		if accounts[i].ID != id {
			continue
		}
		before := accounts[i].User
		p.apply(&accounts[i].User)
		if isActiveAdmin(before) && !isActiveAdmin(accounts[i].User) && countActiveAdmins(accounts) == 0 {
			return User{}, shared.ErrLastAdmin
		}
		if err := d.save(ctx, accounts); err != nil {
			return User{}, err
		}
		return accounts[i].User, nil
	}
	return User{}, shared.ErrNotFound
}

func isActiveAdmin(u User) bool {
	return u.Role == RoleAdmin && u.IsActive
}

func countActiveAdmins(accounts []Account) int {
	n := 0
	for _, a := range accounts {
		if isActiveAdmin(a.User) {
			n++
		}
	}
	return n
}

func emailTaken(accounts []Account, email, ownerID string) bool {
	for _, a := range accounts {
		if a.Email == email && a.ID != ownerID {
			return true
		}
	}
	return false
}

// SetPasswordHash replaces the stored hash of a user.
func (d *Directory) SetPasswordHash(ctx context.Context, id, hash string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	accounts, err := d.load(ctx)
	if err != nil {
		return err
	}
	for i := range accounts {
		if accounts[i].ID == id {
			accounts[i].Password = hash
			return d.save(ctx, accounts)
		}
	}
	return shared.ErrNotFound
}

// Delete removes the user with the given id.
func (d *Directory) Delete(ctx context.Context, id string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	accounts, err := d.load(ctx)
	if err != nil {
		return err
	}
	kept := accounts[:0]
	found := false
	for _, a := range accounts {
		if a.ID == id {
			found = true
			continue
		}
		kept = append(kept, a)
	}
	if !found {
		return shared.ErrNotFound
	}
	return d.save(ctx, kept)
}

// EnsureDefaultAdmin creates the bootstrap administrator when the directory holds no records at
// all. It reports whether an account was created. A directory whose users are all inactive is
// left untouched.
func (d *Directory) EnsureDefaultAdmin(ctx context.Context, admin DefaultAdmin) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	accounts, err := d.load(ctx)
	if err != nil {
		return false, err
	}
	if len(accounts) > 0 {
		return false, nil
	}
	if admin.ID == "" {
		admin.ID = DefaultAdminID
	}
	if admin.Email == "" {
		admin.Email = DefaultAdminEmail
	}
	if admin.Name == "" {
		admin.Name = DefaultAdminName
	}
	hash, err := d.hasher.Hash(admin.Password)
	if err != nil {
		return false, err
	}
	account := Account{
		User: User{
			ID:        admin.ID,
			Name:      admin.Name,
			Email:     admin.Email,
			Role:      RoleAdmin,
			IsActive:  true,
			CreatedAt: d.now().UTC(),
		},
		Password: hash,
	}
	if err := d.save(ctx, []Account{account}); err != nil {
		return false, err
	}
	slog.Default().Info("created default administrator", slog.String("email", admin.Email))
	return true, nil
}

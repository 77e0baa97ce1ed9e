package users_test

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/assistente-financeiro/assistente-financeiro/internal/security"
	"github.com/assistente-financeiro/assistente-financeiro/internal/shared"
	"github.com/assistente-financeiro/assistente-financeiro/internal/storage"
	"github.com/assistente-financeiro/assistente-financeiro/internal/users"
)

func newService(t *testing.T) *users.Service {
	t.Helper()
	hasher := security.NewHasher(4)
	dir := users.NewDirectory(storage.NewMemory(), hasher)
	_, err := dir.EnsureDefaultAdmin(context.Background(), users.DefaultAdmin{Password: "admin123"})
	require.NoError(t, err)
	return users.NewService(dir, hasher)
}

func TestCreateRejectsDuplicateEmail(t *testing.T) {
	ctx := context.Background()
	svc := newService(t)

	u, err := svc.Create(ctx, users.CreateInput{Name: "Ana", Email: "ana@example.com", Password: "Str0ng!pw", Role: users.RoleUser})
	require.NoError(t, err)
	require.NotEmpty(t, u.ID)
	require.True(t, u.IsActive)

	_, err = svc.Create(ctx, users.CreateInput{Name: "Ana 2", Email: "ana@example.com", Password: "Str0ng!pw", Role: users.RoleUser})
	require.ErrorIs(t, err, shared.ErrEmailTaken)
}

func TestEditChecksEmailOwnership(t *testing.T) {
	ctx := context.Background()
	svc := newService(t)
	u, err := svc.Create(ctx, users.CreateInput{Name: "Ana", Email: "ana@example.com", Password: "Str0ng!pw", Role: users.RoleUser})
	require.NoError(t, err)

	same := "ana@example.com"
	_, err = svc.Edit(ctx, users.DefaultAdminID, u.ID, users.EditInput{Email: &same})
	require.NoError(t, err)

	taken := users.DefaultAdminEmail
	_, err = svc.Edit(ctx, users.DefaultAdminID, u.ID, users.EditInput{Email: &taken})
	require.ErrorIs(t, err, shared.ErrEmailTaken)

	role := users.RoleAdmin
	edited, err := svc.Edit(ctx, users.DefaultAdminID, u.ID, users.EditInput{Role: &role})
	require.NoError(t, err)
	require.Equal(t, users.RoleAdmin, edited.Role)
	require.Equal(t, "Ana", edited.Name)
}

func TestDeleteAndToggleProtectActor(t *testing.T) {
	ctx := context.Background()
	svc := newService(t)
	u, err := svc.Create(ctx, users.CreateInput{Name: "Ana", Email: "ana@example.com", Password: "Str0ng!pw", Role: users.RoleUser})
	require.NoError(t, err)

	require.ErrorIs(t, svc.Delete(ctx, users.DefaultAdminID, users.DefaultAdminID), shared.ErrSelfDelete)
	_, err = svc.ToggleActive(ctx, users.DefaultAdminID, users.DefaultAdminID)
	require.ErrorIs(t, err, shared.ErrSelfDeactivate)

	toggled, err := svc.ToggleActive(ctx, users.DefaultAdminID, u.ID)
	require.NoError(t, err)
	require.False(t, toggled.IsActive)

	require.NoError(t, svc.Delete(ctx, users.DefaultAdminID, u.ID))
	require.ErrorIs(t, svc.Delete(ctx, users.DefaultAdminID, u.ID), shared.ErrNotFound)
}

func TestChangePasswordRequiresCurrent(t *testing.T) {
	ctx := context.Background()
	svc := newService(t)

	err := svc.ChangePassword(ctx, users.DefaultAdminID, users.PasswordInput{CurrentPassword: "wrong", Password: "N3w!pass", ConfirmPassword: "N3w!pass"})
	require.ErrorIs(t, err, shared.ErrInvalidCredentials)

	require.NoError(t, svc.ChangePassword(ctx, users.DefaultAdminID, users.PasswordInput{CurrentPassword: "admin123", Password: "N3w!pass", ConfirmPassword: "N3w!pass"}))

	account, err := svc.Directory().Credentials(ctx, users.DefaultAdminEmail)
	require.NoError(t, err)
	require.True(t, security.NewHasher(4).Verify("N3w!pass", account.Password))
}

func TestStrongPasswordValidation(t *testing.T) {
	v := shared.NewValidator()
	err := shared.ValidateStruct(v, users.CreateInput{Name: "Ana", Email: "ana@example.com", Password: "weakpassword", Role: users.RoleUser})
	require.Error(t, err)
	require.NoError(t, shared.ValidateStruct(v, users.CreateInput{Name: "Ana", Email: "ana@example.com", Password: "Str0ng!pw", Role: users.RoleUser}))
}

func TestDeleteRunsHooks(t *testing.T) {
	ctx := context.Background()
	svc := newService(t)
	u, err := svc.Create(ctx, users.CreateInput{Name: "Ana", Email: "ana@example.com", Password: "Str0ng!pw", Role: users.RoleUser})
	require.NoError(t, err)

	var removed []string
	svc.OnDelete(func(_ context.Context, id string) error {
		removed = append(removed, id)
		return nil
	})

	require.ErrorIs(t, svc.Delete(ctx, users.DefaultAdminID, "missing"), shared.ErrNotFound)
	require.Empty(t, removed)
	require.NoError(t, svc.Delete(ctx, users.DefaultAdminID, u.ID))
	require.Equal(t, []string{u.ID}, removed)
}

func TestConcurrentCreateKeepsOneRecordPerEmail(t *testing.T) {
	ctx := context.Background()
	svc := newService(t)

	const workers = 8
	errs := make([]error, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.Create(ctx, users.CreateInput{Name: "Ana", Email: "ana@example.com", Password: "Str0ng!pw", Role: users.RoleUser})
		}(i)
	}
	wg.Wait()

	created := 0
	for _, err := range errs {
		if err == nil {
			created++
			continue
		}
		require.ErrorIs(t, err, shared.ErrEmailTaken)
	}
	require.Equal(t, 1, created)

	all, err := svc.ListUsers(ctx)
	require.NoError(t, err)
	matches := 0
	for _, u := range all {
		if u.Email == "ana@example.com" {
			matches++
		}
	}
	require.Equal(t, 1, matches)
}

func TestConcurrentEditCannotShareEmail(t *testing.T) {
	ctx := context.Background()
	svc := newService(t)
	a, err := svc.Create(ctx, users.CreateInput{Name: "Ana", Email: "ana@example.com", Password: "Str0ng!pw", Role: users.RoleUser})
	require.NoError(t, err)
	b, err := svc.Create(ctx, users.CreateInput{Name: "Bia", Email: "bia@example.com", Password: "Str0ng!pw", Role: users.RoleUser})
	require.NoError(t, err)

	target := "nova@example.com"
	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i, id := range []string{a.ID, b.ID} {
		wg.Add(1)
		go func(i int, id string) {
			defer wg.Done()
			_, errs[i] = svc.Edit(ctx, users.DefaultAdminID, id, users.EditInput{Email: &target})
		}(i, id)
	}
	wg.Wait()

	require.True(t, (errs[0] == nil) != (errs[1] == nil), "exactly one edit must win: %v", errs)
	for _, err := range errs {
		if err != nil {
			require.ErrorIs(t, err, shared.ErrEmailTaken)
		}
	}
}

func TestAdminCannotDemoteThemselves(t *testing.T) {
	ctx := context.Background()
	svc := newService(t)
	demote := users.RoleUser

	_, err := svc.Edit(ctx, users.DefaultAdminID, users.DefaultAdminID, users.EditInput{Role: &demote})
	require.ErrorIs(t, err, shared.ErrSelfDemote)

	// another admin cannot demote the last active one either
	other, err := svc.Create(ctx, users.CreateInput{Name: "Caio", Email: "caio@example.com", Password: "Str0ng!pw", Role: users.RoleAdmin})
	require.NoError(t, err)
	_, err = svc.ToggleActive(ctx, users.DefaultAdminID, other.ID)
	require.NoError(t, err)
	_, err = svc.Edit(ctx, other.ID, users.DefaultAdminID, users.EditInput{Role: &demote})
	require.ErrorIs(t, err, shared.ErrLastAdmin)

	// with a second active admin the demotion goes through
	_, err = svc.ToggleActive(ctx, users.DefaultAdminID, other.ID)
	require.NoError(t, err)
	demoted, err := svc.Edit(ctx, other.ID, users.DefaultAdminID, users.EditInput{Role: &demote})
	require.NoError(t, err)
	require.Equal(t, users.RoleUser, demoted.Role)

	stored, err := svc.Get(ctx, users.DefaultAdminID)
	require.NoError(t, err)
	require.Equal(t, users.RoleUser, stored.Role)
}

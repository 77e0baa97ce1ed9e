package users

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/assistente-financeiro/assistente-financeiro/internal/security"
	"github.com/assistente-financeiro/assistente-financeiro/internal/shared"
)

// CreateInput is an administrator-created account.
type CreateInput struct {
	Name     string `json:"name" validate:"required,min=3"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8,strongpassword"`
	Role     Role   `json:"role" validate:"required,oneof=admin user"`
	IsActive *bool  `json:"isActive"`
	Avatar   string `json:"avatar" validate:"omitempty,url"`
}

// EditInput changes profile fields. Omitted fields keep their value.
type EditInput struct {
	Name   *string `json:"name" validate:"omitempty,min=3"`
	Email  *string `json:"email" validate:"omitempty,email"`
	Role   *Role   `json:"role" validate:"omitempty,oneof=admin user"`
	Avatar *string `json:"avatar" validate:"omitempty,url"`
}

// PasswordInput changes the signed-in user's password.
type PasswordInput struct {
	CurrentPassword string `json:"currentPassword" validate:"required"`
	Password        string `json:"password" validate:"required,min=8,strongpassword"`
	ConfirmPassword string `json:"confirmPassword" validate:"required,eqfield=Password"`
}

// DeleteHook runs after an account is removed from the directory, typically to drop the data
// stored under the user's partition.
type DeleteHook func(ctx context.Context, userID string) error

// Service handles user management rules on top of the Directory.
type Service struct {
	dir      *Directory
	hasher   *security.Hasher
	now      func() time.Time
	onDelete []DeleteHook
}

// NewService builds Service instance.
func NewService(dir *Directory, hasher *security.Hasher) *Service {
	return &Service{dir: dir, hasher: hasher, now: time.Now}
}

// OnDelete registers hooks run by Delete.
func (s *Service) OnDelete(hooks ...DeleteHook) {
	s.onDelete = append(s.onDelete, hooks...)
}

// Directory exposes the underlying directory.
func (s *Service) Directory() *Directory {
	return s.dir
}

// ListUsers returns all users.
func (s *Service) ListUsers(ctx context.Context) ([]User, error) {
	return s.dir.All(ctx)
}

// Get returns one user.
func (s *Service) Get(ctx context.Context, id string) (User, error) {
	return s.dir.FindByID(ctx, id)
}

// Create adds an account. A taken email is rejected before hashing and again, atomically,
// when the record is written.
func (s *Service) Create(ctx context.Context, in CreateInput) (User, error) {
	email := strings.TrimSpace(in.Email)
	if err := s.ensureEmailFree(ctx, email); err != nil {
		return User{}, err
	}
	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return User{}, err
	}
	active := true
	if in.IsActive != nil {
		active = *in.IsActive
	}
	account := Account{
		User: User{
			ID:        uuid.NewString(),
			Name:      strings.TrimSpace(in.Name),
			Email:     email,
			Role:      in.Role,
			IsActive:  active,
			CreatedAt: s.now().UTC(),
			Avatar:    in.Avatar,
		},
		Password: hash,
	}
	if err := s.dir.AddUnique(ctx, account); err != nil {
		return User{}, err
	}
	return account.User, nil
}

// Edit updates profile fields of a user. Administrators cannot demote themselves, and the last
// active administrator cannot be demoted.
func (s *Service) Edit(ctx context.Context, actorID, id string, in EditInput) (User, error) {
	if actorID == id && in.Role != nil && *in.Role != RoleAdmin {
		current, err := s.dir.FindByID(ctx, id)
		if err != nil {
			return User{}, err
		}
		if current.Role == RoleAdmin {
			return User{}, shared.ErrSelfDemote
		}
	}
	patch := Patch{Role: in.Role, Avatar: in.Avatar}
	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		patch.Name = &name
	}
	if in.Email != nil {
		email := strings.TrimSpace(*in.Email)
		patch.Email = &email
	}
	return s.dir.Update(ctx, id, patch)
}

// ToggleActive flips the active flag of a user. Administrators cannot deactivate themselves.
func (s *Service) ToggleActive(ctx context.Context, actorID, id string) (User, error) {
	u, err := s.dir.FindByID(ctx, id)
	if err != nil {
		return User{}, err
	}
	if actorID == id && u.IsActive {
		return User{}, shared.ErrSelfDeactivate
	}
	active := !u.IsActive
	return s.dir.Update(ctx, id, Patch{IsActive: &active})
}

// Delete removes a user other than the actor, then runs the delete hooks. Hook failures are
// joined and returned after every hook has run; the account stays deleted.
func (s *Service) Delete(ctx context.Context, actorID, id string) error {
	if actorID == id {
		return shared.ErrSelfDelete
	}
	if err := s.dir.Delete(ctx, id); err != nil {
		return err
	}
	var errs []error
	for _, hook := range s.onDelete {
		if err := hook(ctx, id); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// ChangePassword replaces the password of userID after verifying the current one.
func (s *Service) ChangePassword(ctx context.Context, userID string, in PasswordInput) error {
	u, err := s.dir.FindByID(ctx, userID)
	if err != nil {
		return err
	}
	account, err := s.dir.Credentials(ctx, u.Email)
	if err != nil {
		return err
	}
	if !s.hasher.Verify(in.CurrentPassword, account.Password) {
		return shared.ErrInvalidCredentials
	}
	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return err
	}
	return s.dir.SetPasswordHash(ctx, userID, hash)
}

// ResetPassword sets a new password without checking the old one. Operator tooling only.
func (s *Service) ResetPassword(ctx context.Context, email, password string) error {
	u, err := s.dir.FindByEmail(ctx, email)
	if err != nil {
		return err
	}
	hash, err := s.hasher.Hash(password)
	if err != nil {
		return err
	}
	return s.dir.SetPasswordHash(ctx, u.ID, hash)
}

func (s *Service) ensureEmailFree(ctx context.Context, email string) error {
	_, err := s.dir.FindByEmail(ctx, email)
	if err == nil {
		return shared.ErrEmailTaken
	}
	if errors.Is(err, shared.ErrNotFound) {
		return nil
	}
	return err
}

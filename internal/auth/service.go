package auth

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/assistente-financeiro/assistente-financeiro/internal/partition"
	"github.com/assistente-financeiro/assistente-financeiro/internal/security"
	"github.com/assistente-financeiro/assistente-financeiro/internal/shared"
	"github.com/assistente-financeiro/assistente-financeiro/internal/users"
)

// LoginInput is the login form.
type LoginInput struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
}

// RegisterInput is the self-service registration form.
type RegisterInput struct {
	Name            string `json:"name" validate:"required,min=3"`
	Email           string `json:"email" validate:"required,email"`
	Password        string `json:"password" validate:"required,min=8,strongpassword"`
	ConfirmPassword string `json:"confirmPassword" validate:"required,eqfield=Password"`
}

// Service wraps authentication business rules.
type Service struct {
	users    *users.Service
	hasher   *security.Hasher
	tokens   *security.Tokens
	throttle *Throttle
	logger   *slog.Logger
	now      func() time.Time
}

// NewService constructs a new Service. throttle may be nil.
func NewService(userService *users.Service, hasher *security.Hasher, tokens *security.Tokens, throttle *Throttle, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{users: userService, hasher: hasher, tokens: tokens, throttle: throttle, logger: logger, now: time.Now}
}

// Tokens returns the token issuer.
func (s *Service) Tokens() *security.Tokens {
	return s.tokens
}

// Authenticate validates email/password credentials. Unknown email, inactive account and wrong
// password are indistinguishable to the caller.
func (s *Service) Authenticate(ctx context.Context, email, password string) (users.User, error) {
	email = strings.TrimSpace(email)
	if !s.throttle.Allow(email) {
		return users.User{}, shared.ErrTooManyAttempts
	}
	account, err := s.users.Directory().Credentials(ctx, email)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return users.User{}, shared.ErrInvalidCredentials
		}
		return users.User{}, err
	}
	if !account.IsActive {
		return users.User{}, shared.ErrInvalidCredentials
	}
	if !s.hasher.Verify(password, account.Password) {
		return users.User{}, shared.ErrInvalidCredentials
	}
	s.throttle.Reset(email)
	return account.User, nil
}

// Login authenticates, stamps lastLogin and opens the session.
func (s *Service) Login(ctx context.Context, sess *Session, in LoginInput) (users.User, error) {
	u, err := s.Authenticate(ctx, in.Email, in.Password)
	if err != nil {
		return users.User{}, err
	}
	now := s.now().UTC()
	u, err = s.users.Directory().Update(ctx, u.ID, users.Patch{LastLogin: &now})
	if err != nil {
		return users.User{}, err
	}
	if err := s.open(ctx, sess, u); err != nil {
		return users.User{}, err
	}
	s.logger.Info("user signed in", slog.String("user_id", u.ID))
	return u, nil
}

// Register creates an active account with the user role and opens its session.
func (s *Service) Register(ctx context.Context, sess *Session, in RegisterInput) (users.User, error) {
	u, err := s.users.Create(ctx, users.CreateInput{
		Name:     strings.TrimSpace(in.Name),
		Email:    in.Email,
		Password: in.Password,
		Role:     users.RoleUser,
	})
	if err != nil {
		return users.User{}, err
	}
	if err := s.open(ctx, sess, u); err != nil {
		return users.User{}, err
	}
	s.logger.Info("user registered", slog.String("user_id", u.ID))
	return u, nil
}

// Logout clears the session and removes the guest data of the profile. Data of signed-in
// users stays in place for their next visit.
func (s *Service) Logout(ctx context.Context, sess *Session) error {
	if err := sess.Clear(ctx); err != nil {
		return err
	}
	return partition.PurgeGuest(ctx, sess.Profile())
}

func (s *Service) open(ctx context.Context, sess *Session, u users.User) error {
	token, err := s.tokens.Issue(u.Identity())
	if err != nil {
		return err
	}
	if err := sess.PersistToken(ctx, token); err != nil {
		return err
	}
	return sess.PersistCurrentUser(ctx, u)
}

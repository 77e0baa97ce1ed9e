package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/assistente-financeiro/assistente-financeiro/internal/auth"
	"github.com/assistente-financeiro/assistente-financeiro/internal/finance"
	"github.com/assistente-financeiro/assistente-financeiro/internal/partition"
	"github.com/assistente-financeiro/assistente-financeiro/internal/rbac"
	"github.com/assistente-financeiro/assistente-financeiro/internal/reports"
	"github.com/assistente-financeiro/assistente-financeiro/internal/security"
	"github.com/assistente-financeiro/assistente-financeiro/internal/shared"
	"github.com/assistente-financeiro/assistente-financeiro/internal/storage"
	"github.com/assistente-financeiro/assistente-financeiro/internal/users"
)

// Services is the composed core shared by the API server, the worker and the CLI.
type Services struct {
	Root      storage.Store
	Profiles  *shared.ProfileManager
	CSRF      *shared.CSRFManager
	Audit     *shared.AuditLogger
	Hasher    *security.Hasher
	Tokens    *security.Tokens
	Directory *users.Directory
	Users     *users.Service
	Auth      *auth.Service
	Restorer  *auth.Restorer
	Checker   *rbac.Checker
	Resolver  *partition.Resolver
	Finance   *finance.Service
	Reports   *reports.Service
}

// NewServices wires the core over root. cache may be nil, in which case reports are computed on
// every request.
func NewServices(cfg *Config, logger *slog.Logger, root storage.Store, cache *redis.Client) (*Services, error) {
	if cfg == nil {
		return nil, fmt.Errorf("app: config required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	tokens, err := security.NewTokens(cfg.JWTSecret, cfg.TokenTTL)
	if err != nil {
		return nil, fmt.Errorf("app: token issuer: %w", err)
	}
	formatter, err := reports.NewFormatter(cfg.Currency, cfg.Locale)
	if err != nil {
		return nil, fmt.Errorf("app: currency formatter: %w", err)
	}

	hasher := security.NewHasher(cfg.BcryptCost)
	dir := users.NewDirectory(root, hasher)
	userService := users.NewService(dir, hasher)
	resolver := partition.NewResolver(root)
	reportService := reports.NewService(reports.NewCache(cache, cfg.ReportCacheTTL), formatter, logger)

	// A deleted account takes its financial partition and cached reports with it.
	userService.OnDelete(
		resolver.Remove,
		func(ctx context.Context, userID string) error {
			reportService.Invalidate(ctx, userID)
			return nil
		},
	)

	throttle := auth.NewThrottle(cfg.LoginWindow, cfg.LoginAttempts)
	return &Services{
		Root:      root,
		Profiles:  shared.NewProfileManager(root, cfg.ProfileIdleTTL, cfg.IsProduction()),
		CSRF:      shared.NewCSRFManager(cfg.CSRFSecret),
		Audit:     shared.NewAuditLogger(logger),
		Hasher:    hasher,
		Tokens:    tokens,
		Directory: dir,
		Users:     userService,
		Auth:      auth.NewService(userService, hasher, tokens, throttle, logger),
		Restorer:  auth.NewRestorer(tokens, dir, logger),
		Checker:   rbac.NewChecker(rbac.DefaultTable),
		Resolver:  resolver,
		Finance:   finance.NewService(resolver, reportService),
		Reports:   reportService,
	}, nil
}

// Bootstrap seeds the default administrator into an empty directory.
func (s *Services) Bootstrap(ctx context.Context, cfg *Config, logger *slog.Logger) error {
	created, err := s.Directory.EnsureDefaultAdmin(ctx, users.DefaultAdmin{Password: cfg.DefaultAdminPassword})
	if err != nil {
		return fmt.Errorf("app: ensure default admin: %w", err)
	}
	if created && logger != nil {
		logger.Warn("created default administrator, change its password",
			slog.String("email", users.DefaultAdminEmail))
	}
	return nil
}

package db

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"onboarding/internal/domain/auth"
	"onboarding/internal/domain/users"
	"onboarding/internal/platform/config"
)

// Seed makes sure the bootstrap HR account exists. It is a no-op when no
// admin email or password is configured, and never overwrites an existing user.
func Seed(ctx context.Context, directory *users.Service, cfg config.Config, logger *zap.Logger) error {
	email := strings.TrimSpace(cfg.SeedAdminEmail)
	if email == "" || strings.TrimSpace(cfg.SeedAdminPassword) == "" {
		return nil
	}
	_, err := directory.Create(ctx, users.CreateInput{
		Name:     cfg.SeedAdminName,
		Email:    email,
		Password: cfg.SeedAdminPassword,
		Role:     auth.RoleHR.String(),
		Status:   "completed",
	})
	switch {
	case err == nil:
		logger.Info("seeded admin user", zap.String("email", users.NormalizeEmail(email)))
		return nil
	case errors.Is(err, users.ErrDuplicateEmail):
		return nil
	default:
		return err
	}
}

package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
)

type Credentials struct {
	Principal
	PasswordHash string
}

type CredentialStore interface {
	// CredentialsByEmail returns ErrPrincipalNotFound when no record matches.
	CredentialsByEmail(ctx context.Context, email string) (Credentials, error)
	TouchLastLogin(ctx context.Context, userID string, at time.Time) error
}

type LoginResult struct {
	Token     string
	ExpiresAt time.Time
	Principal Principal
}

type Service struct {
	store  CredentialStore
	tokens *TokenIssuer
	logger *zap.Logger
	now    func() time.Time
}

func NewService(store CredentialStore, tokens *TokenIssuer, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{store: store, tokens: tokens, logger: logger, now: time.Now}
}

// Login never distinguishes an unknown email from a wrong password.
func (s *Service) Login(ctx context.Context, email, password string) (LoginResult, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return LoginResult{}, ErrInvalidCredentials
	}

	creds, err := s.store.CredentialsByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrPrincipalNotFound) {
			return LoginResult{}, ErrInvalidCredentials
		}
		return LoginResult{}, fmt.Errorf("load credentials: %w", err)
	}
	if err := CheckPassword(creds.PasswordHash, password); err != nil {
		return LoginResult{}, ErrInvalidCredentials
	}
	if !creds.IsActive {
		return LoginResult{}, ErrInvalidCredentials
	}

	token, expires, err := s.tokens.Issue(Subject{UserID: creds.ID, Email: creds.Email})
	if err != nil {
		return LoginResult{}, err
	}

	if err := s.store.TouchLastLogin(ctx, creds.ID, s.now().UTC()); err != nil {
		s.logger.Warn("update last_login failed", zap.String("user_id", creds.ID), zap.Error(err))
	}

	return LoginResult{Token: token, ExpiresAt: expires, Principal: creds.Principal}, nil
}

// Tokens exposes the issuer so transport can validate bearer tokens.
func (s *Service) Tokens() *TokenIssuer {
	return s.tokens
}

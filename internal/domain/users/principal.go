package users

import (
	"context"
	"errors"
	"time"

	"onboarding/internal/domain/auth"
)

// Principals adapts the directory to the lookups the auth package needs.
type Principals struct {
	store StoreAPI
}

func NewPrincipals(store StoreAPI) *Principals {
	return &Principals{store: store}
}

func (p *Principals) PrincipalByEmail(ctx context.Context, email string) (auth.Principal, error) {
	user, err := p.store.GetByEmail(ctx, NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return auth.Principal{}, auth.ErrPrincipalNotFound
		}
		return auth.Principal{}, err
	}
	return user.Principal(), nil
}

func (p *Principals) CredentialsByEmail(ctx context.Context, email string) (auth.Credentials, error) {
	user, err := p.store.GetByEmail(ctx, NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return auth.Credentials{}, auth.ErrPrincipalNotFound
		}
		return auth.Credentials{}, err
	}
	return auth.Credentials{Principal: user.Principal(), PasswordHash: user.PasswordHash}, nil
}

func (p *Principals) TouchLastLogin(ctx context.Context, userID string, at time.Time) error {
	return p.store.TouchLastLogin(ctx, userID, at)
}

func (u User) Principal() auth.Principal {
	return auth.Principal{
		ID:       u.ID,
		Email:    u.Email,
		Name:     u.Name,
		Role:     auth.ParseRole(string(u.Role)),
		IsActive: u.IsActive,
	}
}

package auth

import (
	"context"
	"errors"
	"fmt"
)

// Principal is the directory record of an authenticated caller.
type Principal struct {
	ID       string
	Email    string
	Name     string
	Role     Role
	IsActive bool
}

type PrincipalLookup interface {
	// PrincipalByEmail returns ErrPrincipalNotFound when no record matches.
	PrincipalByEmail(ctx context.Context, email string) (Principal, error)
}

type Guard struct {
	principals PrincipalLookup
}

func NewGuard(principals PrincipalLookup) *Guard {
	return &Guard{principals: principals}
}

// Authorize loads the caller by email and checks the role against allowed.
// It never mutates state.
func (g *Guard) Authorize(ctx context.Context, email string, allowed ...Role) (Principal, error) {
	if email == "" {
		return Principal{}, ErrUnauthenticated
	}
	principal, err := g.principals.PrincipalByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrPrincipalNotFound) {
			return Principal{}, ErrUnauthenticated
		}
		return Principal{}, fmt.Errorf("load caller: %w", err)
	}
	if !principal.IsActive {
		return Principal{}, ErrUnauthenticated
	}
	if !principal.Role.Allows(allowed...) {
		return principal, ErrForbidden
	}
	return principal, nil
}

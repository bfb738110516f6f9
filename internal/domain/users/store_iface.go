package users

import (
	"context"
	"time"
)

type StoreAPI interface {
	// Insert returns ErrDuplicateEmail when the email is taken.
	Insert(ctx context.Context, user User) (string, error)
	List(ctx context.Context, skip, limit int) ([]User, error)
	Count(ctx context.Context) (int64, error)
	ListActive(ctx context.Context) ([]User, error)
	// GetByID returns ErrInvalidID for malformed ids and ErrNotFound for misses.
	GetByID(ctx context.Context, id string) (User, error)
	GetByEmail(ctx context.Context, email string) (User, error)
	// Apply writes the non-nil fields of patch. ErrNotFound when id has no record.
	Apply(ctx context.Context, id string, patch Patch) error
	TouchLastLogin(ctx context.Context, id string, at time.Time) error
	Ping(ctx context.Context) error
}

package users

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"go.uber.org/zap"

	"onboarding/internal/domain/auth"
)

const minPasswordLength = 8

type Service struct {
	store  StoreAPI
	logger *zap.Logger
	now    func() time.Time
}

func NewService(store StoreAPI, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{store: store, logger: logger, now: time.Now}
}

// WithClock replaces the time source, for tests.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func validEmail(email string) bool {
	addr, err := mail.ParseAddress(email)
	return err == nil && addr.Address == email
}

// Create stores a new user with a hashed password and returns its id.
func (s *Service) Create(ctx context.Context, in CreateInput) (string, error) {
	name := SanitizeText(in.Name)
	email := NormalizeEmail(in.Email)
	switch {
	case name == "":
		return "", fmt.Errorf("%w: name is required", ErrInvalidInput)
	case !validEmail(email):
		return "", fmt.Errorf("%w: email is invalid", ErrInvalidInput)
	case len(in.Password) < minPasswordLength:
		return "", fmt.Errorf("%w: password must be at least %d characters", ErrInvalidInput, minPasswordLength)
	}
	role := auth.ParseRole(in.Role)
	if strings.TrimSpace(in.Role) == "" {
		role = auth.RoleEmployee
	}
	if role == auth.RoleUnknown {
		return "", ErrInvalidRole
	}

	if _, err := s.store.GetByEmail(ctx, email); err == nil {
		return "", ErrDuplicateEmail
	} else if !errors.Is(err, ErrNotFound) {
		return "", fmt.Errorf("check email: %w", err)
	}

	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}

	now := s.now().UTC()
	status := strings.TrimSpace(in.Status)
	if status == "" {
		status = StatusPending
	}
	active := true
	if in.IsActive != nil {
		active = *in.IsActive
	}
	user := User{
		Name:             name,
		Email:            email,
		EmployeeID:       strings.TrimSpace(in.EmployeeID),
		PasswordHash:     hash,
		Role:             role,
		IsActive:         active,
		Phone:            SanitizeText(in.Phone),
		EmergencyContact: SanitizeText(in.EmergencyContact),
		Address:          SanitizeText(in.Address),
		ManagerID:        strings.TrimSpace(in.ManagerID),
		Position:         SanitizeText(in.Position),
		Department:       SanitizeText(in.Department),
		EmploymentType:   SanitizeText(in.EmploymentType),
		StartDate:        strings.TrimSpace(in.StartDate),
		Status:           status,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	id, err := s.store.Insert(ctx, user)
	if err != nil {
		return "", err
	}
	s.logger.Info("user created", zap.String("user_id", id), zap.String("role", role.String()))
	return id, nil
}

// List pages over every user. Total ignores skip and limit.
func (s *Service) List(ctx context.Context, skip, limit int) (Page, error) {
	if skip < 0 {
		skip = 0
	}
	if limit <= 0 {
		limit = DefaultListLimit
	}
	if limit > MaxListLimit {
		limit = MaxListLimit
	}
	list, err := s.store.List(ctx, skip, limit)
	if err != nil {
		return Page{}, err
	}
	total, err := s.store.Count(ctx)
	if err != nil {
		return Page{}, err
	}
	if list == nil {
		list = []User{}
	}
	return Page{Users: list, Total: total, Skip: skip, Limit: limit}, nil
}

func (s *Service) GetByID(ctx context.Context, id string) (User, error) {
	return s.store.GetByID(ctx, strings.TrimSpace(id))
}

// ActiveByID resolves id to an active user; inactive users report ErrNotFound.
func (s *Service) ActiveByID(ctx context.Context, id string) (User, error) {
	user, err := s.GetByID(ctx, id)
	if err != nil {
		return User{}, err
	}
	if !user.IsActive {
		return User{}, ErrNotFound
	}
	return user, nil
}

func (s *Service) ListActive(ctx context.Context) ([]User, error) {
	list, err := s.store.ListActive(ctx)
	if err != nil {
		return nil, err
	}
	if list == nil {
		list = []User{}
	}
	return list, nil
}

func (s *Service) UpdateRole(ctx context.Context, id, rawRole string) (UpdateResult, error) {
	role := auth.ParseRole(rawRole)
	if role == auth.RoleUnknown {
		return Unchanged, ErrInvalidRole
	}
	current, err := s.GetByID(ctx, id)
	if err != nil {
		return Unchanged, err
	}
	if current.Role == role {
		return Unchanged, nil
	}
	if err := s.store.Apply(ctx, current.ID, Patch{Role: &role, UpdatedAt: s.now().UTC()}); err != nil {
		return Unchanged, err
	}
	s.logger.Info("user role updated", zap.String("user_id", current.ID), zap.String("role", role.String()))
	return Updated, nil
}

func (s *Service) Activate(ctx context.Context, id string) (UpdateResult, error) {
	return s.setActive(ctx, id, true)
}

// Deactivate flips isActive off. Records are never removed.
func (s *Service) Deactivate(ctx context.Context, id string) (UpdateResult, error) {
	return s.setActive(ctx, id, false)
}

func (s *Service) setActive(ctx context.Context, id string, active bool) (UpdateResult, error) {
	current, err := s.GetByID(ctx, id)
	if err != nil {
		return Unchanged, err
	}
	if current.IsActive == active {
		return Unchanged, nil
	}
	if err := s.store.Apply(ctx, current.ID, Patch{IsActive: &active, UpdatedAt: s.now().UTC()}); err != nil {
		return Unchanged, err
	}
	s.logger.Info("user active flag changed", zap.String("user_id", current.ID), zap.Bool("active", active))
	return Updated, nil
}

// UpdateProfile merges the provided fields and always refreshes updated_at.
func (s *Service) UpdateProfile(ctx context.Context, id string, changes Changes) (UpdateResult, error) {
	current, err := s.GetByID(ctx, id)
	if err != nil {
		return Unchanged, err
	}
	changes = normalizeChanges(changes)
	if changes.Name != nil && *changes.Name == "" {
		return Unchanged, fmt.Errorf("%w: name cannot be empty", ErrInvalidInput)
	}
	if changes.Email != nil {
		if !validEmail(*changes.Email) {
			return Unchanged, fmt.Errorf("%w: email is invalid", ErrInvalidInput)
		}
		if *changes.Email != current.Email {
			existing, err := s.store.GetByEmail(ctx, *changes.Email)
			if err == nil && existing.ID != current.ID {
				return Unchanged, ErrDuplicateEmail
			}
			if err != nil && !errors.Is(err, ErrNotFound) {
				return Unchanged, fmt.Errorf("check email: %w", err)
			}
		}
	}

	result := Unchanged
	if differs(current, changes) {
		result = Updated
	}
	if err := s.store.Apply(ctx, current.ID, Patch{Profile: changes, UpdatedAt: s.now().UTC()}); err != nil {
		return Unchanged, err
	}
	return result, nil
}

func normalizeChanges(c Changes) Changes {
	text := func(v *string) *string {
		if v == nil {
			return nil
		}
		out := SanitizeText(*v)
		return &out
	}
	trim := func(v *string) *string {
		if v == nil {
			return nil
		}
		out := strings.TrimSpace(*v)
		return &out
	}
	out := Changes{
		Name:             text(c.Name),
		EmployeeID:       trim(c.EmployeeID),
		Phone:            text(c.Phone),
		EmergencyContact: text(c.EmergencyContact),
		ManagerID:        trim(c.ManagerID),
		Address:          text(c.Address),
		Position:         text(c.Position),
		Department:       text(c.Department),
		EmploymentType:   text(c.EmploymentType),
		StartDate:        trim(c.StartDate),
	}
	if c.Email != nil {
		email := NormalizeEmail(*c.Email)
		out.Email = &email
	}
	return out
}

func differs(u User, c Changes) bool {
	pairs := []struct {
		next *string
		cur  string
	}{
		{c.Name, u.Name},
		{c.EmployeeID, u.EmployeeID},
		{c.Email, u.Email},
		{c.Phone, u.Phone},
		{c.EmergencyContact, u.EmergencyContact},
		{c.ManagerID, u.ManagerID},
		{c.Address, u.Address},
		{c.Position, u.Position},
		{c.Department, u.Department},
		{c.EmploymentType, u.EmploymentType},
		{c.StartDate, u.StartDate},
	}
	for _, p := range pairs {
		if p.next != nil && *p.next != p.cur {
			return true
		}
	}
	return false
}

// ApplyChanges returns u with the non-nil fields of c applied.
func ApplyChanges(u User, c Changes) User {
	set := func(dst *string, v *string) {
		if v != nil {
			*dst = *v
		}
	}
	set(&u.Name, c.Name)
	set(&u.EmployeeID, c.EmployeeID)
	set(&u.Email, c.Email)
	set(&u.Phone, c.Phone)
	set(&u.EmergencyContact, c.EmergencyContact)
	set(&u.ManagerID, c.ManagerID)
	set(&u.Address, c.Address)
	set(&u.Position, c.Position)
	set(&u.Department, c.Department)
	set(&u.EmploymentType, c.EmploymentType)
	set(&u.StartDate, c.StartDate)
	return u
}

func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type credentialMap struct {
	creds   map[string]Credentials
	touched map[string]time.Time
	touchFn func() error
}

func (m *credentialMap) CredentialsByEmail(_ context.Context, email string) (Credentials, error) {
	c, ok := m.creds[email]
	if !ok {
		return Credentials{}, ErrPrincipalNotFound
	}
	return c, nil
}

func (m *credentialMap) TouchLastLogin(_ context.Context, userID string, at time.Time) error {
	if m.touchFn != nil {
		if err := m.touchFn(); err != nil {
			return err
		}
	}
	m.touched[userID] = at
	return nil
}

func newCredentialMap(t *testing.T) *credentialMap {
	t.Helper()
	hash, err := HashPassword("secret-pass")
	require.NoError(t, err)
	return &credentialMap{
		creds: map[string]Credentials{
			"hr@example.com": {
				Principal:    Principal{ID: "u1", Email: "hr@example.com", Name: "Hana", Role: RoleHR, IsActive: true},
				PasswordHash: hash,
			},
			"gone@example.com": {
				Principal:    Principal{ID: "u2", Email: "gone@example.com", Role: RoleEmployee, IsActive: false},
				PasswordHash: hash,
			},
		},
		touched: map[string]time.Time{},
	}
}

func TestLoginSuccess(t *testing.T) {
	store := newCredentialMap(t)
	tokens := NewTokenIssuer(testSecret, 30*time.Minute)
	svc := NewService(store, tokens, nil)

	result, err := svc.Login(context.Background(), " HR@example.com ", "secret-pass")
	require.NoError(t, err)
	assert.Equal(t, "u1", result.Principal.ID)
	assert.NotEmpty(t, result.Token)
	assert.Contains(t, store.touched, "u1")

	subject, err := tokens.Validate(result.Token)
	require.NoError(t, err)
	assert.Equal(t, "hr@example.com", subject.Email)
}

func TestLoginFailuresAreIndistinguishable(t *testing.T) {
	svc := NewService(newCredentialMap(t), NewTokenIssuer(testSecret, time.Minute), nil)

	cases := map[string][2]string{
		"unknown email":  {"a@x.com", "secret"},
		"wrong password": {"hr@example.com", "nope"},
		"inactive user":  {"gone@example.com", "secret-pass"},
		"empty password": {"hr@example.com", ""},
	}
	for name, c := range cases {
		_, err := svc.Login(context.Background(), c[0], c[1])
		assert.ErrorIs(t, err, ErrInvalidCredentials, name)
	}
}

func TestLoginSurvivesLastLoginFailure(t *testing.T) {
	store := newCredentialMap(t)
	store.touchFn = func() error { return errors.New("write failed") }
	svc := NewService(store, NewTokenIssuer(testSecret, time.Minute), nil)

	result, err := svc.Login(context.Background(), "hr@example.com", "secret-pass")
	require.NoError(t, err)
	assert.NotEmpty(t, result.Token)
}

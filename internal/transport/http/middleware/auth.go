package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"onboarding/internal/domain/auth"
	"onboarding/internal/transport/http/api"
)

type ctxKey string

const (
	ctxKeySubject   ctxKey = "subject"
	ctxKeyPrincipal ctxKey = "principal"
)

type TokenValidator interface {
	Validate(raw string) (auth.Subject, error)
}

// Authenticate requires a valid bearer token. Anything else is rejected with
// 401 before the handler runs.
func Authenticate(tokens TokenValidator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw, ok := bearerToken(r.Header.Get("Authorization"))
			if !ok {
				unauthorized(w, r, "unauthorized", "authentication required")
				return
			}
			subject, err := tokens.Validate(raw)
			if err != nil {
				if errors.Is(err, auth.ErrTokenExpired) {
					unauthorized(w, r, "token_expired", "token has expired")
					return
				}
				unauthorized(w, r, "unauthorized", "invalid token")
				return
			}
			ctx := context.WithValue(r.Context(), ctxKeySubject, subject)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerToken(header string) (string, bool) {
	parts := strings.Fields(header)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return "", false
	}
	return parts[1], true
}

func unauthorized(w http.ResponseWriter, r *http.Request, code, message string) {
	w.Header().Set("WWW-Authenticate", `Bearer realm="onboarding"`)
	api.Fail(w, http.StatusUnauthorized, code, message, GetRequestID(r.Context()))
}

func GetSubject(ctx context.Context) (auth.Subject, bool) {
	subject, ok := ctx.Value(ctxKeySubject).(auth.Subject)
	return subject, ok
}

// GetPrincipal returns the caller record loaded by RequireRoles.
func GetPrincipal(ctx context.Context) (auth.Principal, bool) {
	principal, ok := ctx.Value(ctxKeyPrincipal).(auth.Principal)
	return principal, ok
}

// WithSubject is used by tests that bypass token parsing.
func WithSubject(ctx context.Context, subject auth.Subject) context.Context {
	return context.WithValue(ctx, ctxKeySubject, subject)
}

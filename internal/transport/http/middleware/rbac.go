package middleware

import (
	"context"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"onboarding/internal/domain/auth"
	"onboarding/internal/platform/requestctx"
	"onboarding/internal/transport/http/api"
)

type Authorizer interface {
	Authorize(ctx context.Context, email string, allowed ...auth.Role) (auth.Principal, error)
}

// RequireRoles resolves the token subject to an active directory record whose
// role is in roles. The record is stored for handlers via GetPrincipal.
func RequireRoles(guard Authorizer, roles ...auth.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			subject, ok := GetSubject(r.Context())
			if !ok {
				unauthorized(w, r, "unauthorized", "authentication required")
				return
			}

			principal, err := guard.Authorize(r.Context(), subject.Email, roles...)
			switch {
			case err == nil:
			case errors.Is(err, auth.ErrUnauthenticated):
				unauthorized(w, r, "unauthorized", "authentication required")
				return
			case errors.Is(err, auth.ErrForbidden):
				api.Fail(w, http.StatusForbidden, "forbidden", "insufficient permissions", GetRequestID(r.Context()))
				return
			default:
				requestctx.Logger(r.Context()).Error("authorize caller", zap.Error(err))
				api.Fail(w, http.StatusServiceUnavailable, "store_unavailable", "unable to verify caller", GetRequestID(r.Context()))
				return
			}
			// The email now belongs to a different record than the one the token was issued for.
			if principal.ID != subject.UserID {
				unauthorized(w, r, "unauthorized", "authentication required")
				return
			}

			ctx := context.WithValue(r.Context(), ctxKeyPrincipal, principal)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

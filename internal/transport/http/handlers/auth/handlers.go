package authhandler

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"onboarding/internal/domain/auth"
	"onboarding/internal/domain/users"
	"onboarding/internal/platform/metrics"
	"onboarding/internal/platform/requestctx"
	"onboarding/internal/transport/http/api"
	"onboarding/internal/transport/http/middleware"
	"onboarding/internal/transport/http/shared"
)

type Handler struct {
	Service   *auth.Service
	Directory *users.Service
	Guard     middleware.Authorizer
	Metrics   *metrics.Collector
}

func NewHandler(service *auth.Service, directory *users.Service, guard middleware.Authorizer, collector *metrics.Collector) *Handler {
	return &Handler{Service: service, Directory: directory, Guard: guard, Metrics: collector}
}

// RegisterRoutes mounts the authenticated auth routes; HandleLogin is mounted
// separately because it sits outside the bearer-token group.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.With(middleware.RequireRoles(h.Guard, auth.RoleEmployee, auth.RoleHR, auth.RoleManager)).Get("/auth/me", h.handleMe)
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type userSummary struct {
	ID    string    `json:"id"`
	Name  string    `json:"name"`
	Email string    `json:"email"`
	Role  auth.Role `json:"role"`
}

type loginResponse struct {
	Message     string      `json:"message"`
	AccessToken string      `json:"access_token"`
	TokenType   string      `json:"token_type"`
	ExpiresAt   time.Time   `json:"expires_at"`
	User        userSummary `json:"user"`
}

func (h *Handler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	var payload loginRequest
	if !shared.DecodeJSON(w, r, &payload, reqID) {
		return
	}
	v := shared.NewValidator()
	v.Struct(payload)
	if v.Reject(w, reqID) {
		return
	}

	result, err := h.Service.Login(r.Context(), payload.Email, payload.Password)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			h.Metrics.LoginFailed()
			api.Fail(w, http.StatusUnauthorized, "invalid_credentials", "invalid credentials", reqID)
			return
		}
		requestctx.Logger(r.Context()).Error("login failed", zap.Error(err))
		api.Fail(w, http.StatusServiceUnavailable, "store_unavailable", "unable to verify credentials", reqID)
		return
	}

	api.Success(w, loginResponse{
		Message:     "Login successful!",
		AccessToken: result.Token,
		TokenType:   "bearer",
		ExpiresAt:   result.ExpiresAt,
		User: userSummary{
			ID:    result.Principal.ID,
			Name:  result.Principal.Name,
			Email: result.Principal.Email,
			Role:  result.Principal.Role,
		},
	}, reqID)
}

func (h *Handler) handleMe(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	principal, ok := middleware.GetPrincipal(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", reqID)
		return
	}
	user, err := h.Directory.GetByID(r.Context(), principal.ID)
	if err != nil {
		if errors.Is(err, users.ErrNotFound) || errors.Is(err, users.ErrInvalidID) {
			api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", reqID)
			return
		}
		requestctx.Logger(r.Context()).Error("load current user", zap.Error(err))
		api.Fail(w, http.StatusInternalServerError, "internal_error", "internal server error", reqID)
		return
	}
	api.Success(w, map[string]any{"user": user}, reqID)
}

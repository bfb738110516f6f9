package usershandler

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"onboarding/internal/domain/auth"
	"onboarding/internal/domain/users"
	"onboarding/internal/platform/requestctx"
	"onboarding/internal/transport/http/api"
	"onboarding/internal/transport/http/middleware"
	"onboarding/internal/transport/http/shared"
)

type Handler struct {
	Service     *users.Service
	Guard       middleware.Authorizer
	Idempotency func(http.Handler) http.Handler
}

func NewHandler(service *users.Service, guard middleware.Authorizer, idempotency func(http.Handler) http.Handler) *Handler {
	if idempotency == nil {
		idempotency = func(next http.Handler) http.Handler { return next }
	}
	return &Handler{Service: service, Guard: guard, Idempotency: idempotency}
}

// RegisterRoutes expects r to already run middleware.Authenticate.
func (h *Handler) RegisterRoutes(r chi.Router) {
	staff := middleware.RequireRoles(h.Guard, auth.PrivilegedRoles...)
	r.Route("/users", func(r chi.Router) {
		r.Use(staff)
		r.With(h.Idempotency).Post("/create", h.handleCreate)
		r.Get("/list", h.handleList)
		r.Route("/{userID}", func(r chi.Router) {
			r.Get("/", h.handleGet)
			r.Put("/", h.handleUpdate)
			r.Delete("/", h.handleDeactivate)
			r.Put("/role", h.handleUpdateRole)
			r.Put("/activate", h.handleActivate)
		})
	})
}

type createRequest struct {
	Name             string `json:"name" validate:"required,max=200"`
	Email            string `json:"email" validate:"required,email"`
	Password         string `json:"password" validate:"required,min=8,max=72"`
	Role             string `json:"role"`
	EmployeeID       string `json:"employee_id" validate:"max=64"`
	Phone            string `json:"phone" validate:"max=64"`
	EmergencyContact string `json:"emergency_contact" validate:"max=200"`
	Address          string `json:"address" validate:"max=500"`
	ManagerID        string `json:"manager_id" validate:"max=64"`
	Position         string `json:"position" validate:"max=200"`
	Department       string `json:"department" validate:"max=200"`
	EmploymentType   string `json:"employment_type" validate:"max=64"`
	StartDate        string `json:"start_date"`
	Status           string `json:"status" validate:"omitempty,oneof=pending in-progress completed"`
	IsActive         *bool  `json:"isActive"`
}

type updateRequest struct {
	Name             *string `json:"name" validate:"omitempty,max=200"`
	EmployeeID       *string `json:"employee_id" validate:"omitempty,max=64"`
	Email            *string `json:"email" validate:"omitempty,email"`
	Phone            *string `json:"phone" validate:"omitempty,max=64"`
	EmergencyContact *string `json:"emergency_contact" validate:"omitempty,max=200"`
	ManagerID        *string `json:"manager_id" validate:"omitempty,max=64"`
	Address          *string `json:"address" validate:"omitempty,max=500"`
	Position         *string `json:"position" validate:"omitempty,max=200"`
	Department       *string `json:"department" validate:"omitempty,max=200"`
	EmploymentType   *string `json:"employment_type" validate:"omitempty,max=64"`
	StartDate        *string `json:"start_date"`
}

type roleRequest struct {
	Role string `json:"role" validate:"required"`
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	var payload createRequest
	if !shared.DecodeJSON(w, r, &payload, reqID) {
		return
	}
	v := shared.NewValidator()
	v.Struct(payload)
	startDate := normalizeStartDate(v, payload.StartDate)
	if v.Reject(w, reqID) {
		return
	}

	id, err := h.Service.Create(r.Context(), users.CreateInput{
		Name:             payload.Name,
		Email:            payload.Email,
		Password:         payload.Password,
		Role:             payload.Role,
		EmployeeID:       payload.EmployeeID,
		Phone:            payload.Phone,
		EmergencyContact: payload.EmergencyContact,
		Address:          payload.Address,
		ManagerID:        payload.ManagerID,
		Position:         payload.Position,
		Department:       payload.Department,
		EmploymentType:   payload.EmploymentType,
		StartDate:        startDate,
		Status:           payload.Status,
		IsActive:         payload.IsActive,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	api.Created(w, map[string]string{
		"message": "User " + strings.TrimSpace(payload.Name) + " created!",
		"userId":  id,
	}, reqID)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	v := shared.NewValidator()
	page := shared.ParsePagination(r, v, users.DefaultListLimit, users.MaxListLimit)
	if v.Reject(w, reqID) {
		return
	}
	result, err := h.Service.List(r.Context(), page.Skip, page.Limit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	api.Success(w, map[string]any{
		"users": result.Users,
		"total": result.Total,
		"skip":  result.Skip,
		"limit": result.Limit,
	}, reqID)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	user, err := h.Service.GetByID(r.Context(), chi.URLParam(r, "userID"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	api.Success(w, map[string]any{"user": user}, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	var payload updateRequest
	if !shared.DecodeJSON(w, r, &payload, reqID) {
		return
	}
	v := shared.NewValidator()
	v.Struct(payload)
	var startDate *string
	if payload.StartDate != nil {
		normalized := normalizeStartDate(v, *payload.StartDate)
		startDate = &normalized
	}
	if v.Reject(w, reqID) {
		return
	}

	result, err := h.Service.UpdateProfile(r.Context(), chi.URLParam(r, "userID"), users.Changes{
		Name:             payload.Name,
		EmployeeID:       payload.EmployeeID,
		Email:            payload.Email,
		Phone:            payload.Phone,
		EmergencyContact: payload.EmergencyContact,
		ManagerID:        payload.ManagerID,
		Address:          payload.Address,
		Position:         payload.Position,
		Department:       payload.Department,
		EmploymentType:   payload.EmploymentType,
		StartDate:        startDate,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeResult(w, r, result, "User data updated successfully!", "User data unchanged")
}

func (h *Handler) handleUpdateRole(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	var payload roleRequest
	if !shared.DecodeJSON(w, r, &payload, reqID) {
		return
	}
	v := shared.NewValidator()
	v.Struct(payload)
	if v.Reject(w, reqID) {
		return
	}
	result, err := h.Service.UpdateRole(r.Context(), chi.URLParam(r, "userID"), payload.Role)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeResult(w, r, result, "User role updated successfully!", "User role unchanged")
}

func (h *Handler) handleDeactivate(w http.ResponseWriter, r *http.Request) {
	result, err := h.Service.Deactivate(r.Context(), chi.URLParam(r, "userID"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeResult(w, r, result, "User deactivated successfully!", "User already inactive")
}

func (h *Handler) handleActivate(w http.ResponseWriter, r *http.Request) {
	result, err := h.Service.Activate(r.Context(), chi.URLParam(r, "userID"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeResult(w, r, result, "User activated successfully!", "User already active")
}

func normalizeStartDate(v *shared.Validator, raw string) string {
	normalized, err := shared.NormalizeDate(raw)
	if err != nil {
		v.Add("start_date", "must be a valid date in YYYY-MM-DD format")
		return ""
	}
	return normalized
}

func writeResult(w http.ResponseWriter, r *http.Request, result users.UpdateResult, updated, unchanged string) {
	message := unchanged
	if result.Changed() {
		message = updated
	}
	api.Success(w, map[string]any{"message": message, "changed": result.Changed()}, middleware.GetRequestID(r.Context()))
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	reqID := middleware.GetRequestID(r.Context())
	switch {
	case errors.Is(err, users.ErrInvalidInput):
		api.Fail(w, http.StatusBadRequest, "validation_error", err.Error(), reqID)
	case errors.Is(err, users.ErrInvalidRole):
		api.Fail(w, http.StatusBadRequest, "invalid_role", "role must be one of: "+strings.Join(auth.KnownRoles(), ", "), reqID)
	case errors.Is(err, users.ErrInvalidID):
		api.Fail(w, http.StatusBadRequest, "invalid_id", "invalid user id format", reqID)
	case errors.Is(err, users.ErrNotFound):
		api.Fail(w, http.StatusNotFound, "user_not_found", "user not found", reqID)
	case errors.Is(err, users.ErrDuplicateEmail):
		api.Fail(w, http.StatusConflict, "email_exists", "a user with this email already exists", reqID)
	default:
		requestctx.Logger(r.Context()).Error("users request failed", zap.Error(err))
		api.Fail(w, http.StatusInternalServerError, "internal_error", "internal server error", reqID)
	}
}

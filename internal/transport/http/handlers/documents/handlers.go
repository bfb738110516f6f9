package documentshandler

import (
	"errors"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"onboarding/internal/domain/auth"
	"onboarding/internal/domain/documents"
	"onboarding/internal/platform/metrics"
	"onboarding/internal/platform/requestctx"
	"onboarding/internal/transport/http/api"
	"onboarding/internal/transport/http/middleware"
	"onboarding/internal/transport/http/shared"
)

// multipart parts other than the file are kept in memory up to this size.
const maxFormMemory = 1 << 20

type Handler struct {
	Service        *documents.Service
	Guard          middleware.Authorizer
	Idempotency    func(http.Handler) http.Handler
	Metrics        *metrics.Collector
	MaxUploadBytes int64
}

func NewHandler(service *documents.Service, guard middleware.Authorizer, idempotency func(http.Handler) http.Handler, collector *metrics.Collector, maxUploadBytes int64) *Handler {
	if idempotency == nil {
		idempotency = func(next http.Handler) http.Handler { return next }
	}
	return &Handler{
		Service:        service,
		Guard:          guard,
		Idempotency:    idempotency,
		Metrics:        collector,
		MaxUploadBytes: maxUploadBytes,
	}
}

// RegisterRoutes expects r to already run middleware.Authenticate.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/documents", func(r chi.Router) {
		r.Use(middleware.RequireRoles(h.Guard, auth.PrivilegedRoles...))
		r.Get("/categories", h.handleCategories)
		r.Get("/users", h.handleActiveUsers)
		r.Get("/user/{userID}/categories", h.handleUserCategories)
		r.Get("/user/{userID}/category/{category}", h.handleByCategory)
		r.Get("/user/{userID}/checklist", h.handleChecklist)
		r.With(middleware.BodyLimit(h.MaxUploadBytes), h.Idempotency).Post("/upload", h.handleUpload)
		r.Get("/download/{documentID}", h.handleDownload)
	})
}

func (h *Handler) handleCategories(w http.ResponseWriter, r *http.Request) {
	api.Success(w, map[string]any{"categories": h.Service.ListCategories()}, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleActiveUsers(w http.ResponseWriter, r *http.Request) {
	list, err := h.Service.ActiveUsers(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	api.Success(w, map[string]any{"users": list}, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleUserCategories(w http.ResponseWriter, r *http.Request) {
	summary, err := h.Service.UserCategories(r.Context(), chi.URLParam(r, "userID"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	api.Success(w, summary, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleByCategory(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	category := chi.URLParam(r, "category")
	docs, err := h.Service.ListByCategory(r.Context(), userID, category)
	if err != nil {
		writeError(w, r, err)
		return
	}
	api.Success(w, map[string]any{
		"user_id":   userID,
		"category":  category,
		"documents": docs,
	}, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleChecklist(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	pdf, err := h.Service.Checklist(r.Context(), userID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": "checklist-" + userID + ".pdf"}))
	w.Header().Set("Content-Length", strconv.Itoa(len(pdf)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(pdf)
}

func (h *Handler) handleUpload(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	principal, ok := middleware.GetPrincipal(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", reqID)
		return
	}

	if err := r.ParseMultipartForm(maxFormMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			api.Fail(w, http.StatusRequestEntityTooLarge, "payload_too_large", "file exceeds the upload limit", reqID)
			return
		}
		api.Fail(w, http.StatusBadRequest, "validation_error", "expected a multipart/form-data body", reqID)
		return
	}
	defer func() {
		if r.MultipartForm != nil {
			_ = r.MultipartForm.RemoveAll()
		}
	}()

	employeeID := strings.TrimSpace(r.FormValue("employee_id"))
	if employeeID == "" {
		employeeID = strings.TrimSpace(r.FormValue("employeeId"))
	}
	category := strings.TrimSpace(r.FormValue("category"))

	v := shared.NewValidator()
	v.Required("employee_id", employeeID, "is required")
	v.Required("category", category, "is required")
	file, header, err := r.FormFile("file")
	if err != nil {
		v.Add("file", "is required")
	}
	if v.Reject(w, reqID) {
		return
	}
	defer file.Close()

	doc, err := h.Service.Upload(r.Context(), documents.UploadInput{
		EmployeeID: employeeID,
		Category:   category,
		FileName:   header.Filename,
		MimeType:   partContentType(header),
		Body:       file,
	}, principal)
	if err != nil {
		writeError(w, r, err)
		return
	}
	h.Metrics.Uploaded(doc.FileSize)
	api.Created(w, map[string]any{
		"message":  "Document uploaded successfully",
		"document": doc,
	}, reqID)
}

func partContentType(header *multipart.FileHeader) string {
	raw := header.Header.Get("Content-Type")
	if raw == "" {
		return ""
	}
	mediaType, params, err := mime.ParseMediaType(raw)
	if err != nil {
		return ""
	}
	return mime.FormatMediaType(mediaType, params)
}

func (h *Handler) handleDownload(w http.ResponseWriter, r *http.Request) {
	dl, err := h.Service.Download(r.Context(), chi.URLParam(r, "documentID"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	defer dl.Body.Close()

	disposition := mime.FormatMediaType("attachment", map[string]string{"filename": dl.FileName})
	if disposition == "" {
		disposition = `attachment; filename="` + documents.EscapeFileName(dl.FileName) + `"`
	}
	w.Header().Set("Content-Type", dl.MimeType)
	w.Header().Set("Content-Disposition", disposition)
	if dl.Size >= 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(dl.Size, 10))
	}
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, dl.Body); err != nil {
		requestctx.Logger(r.Context()).Warn("download interrupted", zap.Error(err))
		return
	}
	h.Metrics.Downloaded()
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	reqID := middleware.GetRequestID(r.Context())
	switch {
	case errors.Is(err, documents.ErrInvalidCategory):
		api.Fail(w, http.StatusBadRequest, "invalid_category", "invalid document category", reqID)
	case errors.Is(err, documents.ErrInvalidFileName):
		api.Fail(w, http.StatusBadRequest, "invalid_file_name", "invalid file name", reqID)
	case errors.Is(err, documents.ErrInvalidID):
		api.Fail(w, http.StatusBadRequest, "invalid_id", "invalid document id format", reqID)
	case errors.Is(err, documents.ErrUserNotFound):
		api.Fail(w, http.StatusNotFound, "user_not_found", "user not found", reqID)
	case errors.Is(err, documents.ErrDocumentNotFound):
		api.Fail(w, http.StatusNotFound, "document_not_found", "document not found", reqID)
	case errors.Is(err, documents.ErrFileMissing):
		api.Fail(w, http.StatusNotFound, "file_missing", "file not found on server", reqID)
	case errors.Is(err, documents.ErrDuplicateDocument):
		api.Fail(w, http.StatusConflict, "duplicate_document", "a document with this name already exists in the category", reqID)
	default:
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			api.Fail(w, http.StatusRequestEntityTooLarge, "payload_too_large", "file exceeds the upload limit", reqID)
			return
		}
		requestctx.Logger(r.Context()).Error("documents request failed", zap.Error(err))
		api.Fail(w, http.StatusInternalServerError, "internal_error", "internal server error", reqID)
	}
}

package documents

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"onboarding/internal/domain/auth"
	"onboarding/internal/domain/users"
	"onboarding/internal/platform/storage"
)

// Directory is the slice of the user directory the organizer depends on.
type Directory interface {
	ActiveByID(ctx context.Context, id string) (users.User, error)
	ListActive(ctx context.Context) ([]users.User, error)
}

type Service struct {
	store   StoreAPI
	users   Directory
	storage storage.Storage
	logger  *zap.Logger
	now     func() time.Time
}

func NewService(store StoreAPI, directory Directory, files storage.Storage, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{store: store, users: directory, storage: files, logger: logger, now: time.Now}
}

func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

func (s *Service) ListCategories() []CategoryInfo {
	return ListCategories()
}

func (s *Service) ActiveUsers(ctx context.Context) ([]users.User, error) {
	return s.users.ListActive(ctx)
}

func (s *Service) activeEmployee(ctx context.Context, employeeID string) (users.User, error) {
	user, err := s.users.ActiveByID(ctx, strings.TrimSpace(employeeID))
	if err != nil {
		if errors.Is(err, users.ErrNotFound) || errors.Is(err, users.ErrInvalidID) {
			return users.User{}, ErrUserNotFound
		}
		return users.User{}, fmt.Errorf("load employee: %w", err)
	}
	return user, nil
}

// ListByCategory validates the category before touching the directory.
func (s *Service) ListByCategory(ctx context.Context, employeeID, rawCategory string) ([]Document, error) {
	category, ok := ParseCategory(rawCategory)
	if !ok {
		return nil, ErrInvalidCategory
	}
	employee, err := s.activeEmployee(ctx, employeeID)
	if err != nil {
		return nil, err
	}
	docs, err := s.store.ListByOwner(ctx, employee.ID, category)
	if err != nil {
		return nil, err
	}
	if docs == nil {
		docs = []Document{}
	}
	return docs, nil
}

func (s *Service) UserCategories(ctx context.Context, employeeID string) (UserCategories, error) {
	employee, err := s.activeEmployee(ctx, employeeID)
	if err != nil {
		return UserCategories{}, err
	}
	docs, err := s.store.ListByOwner(ctx, employee.ID, "")
	if err != nil {
		return UserCategories{}, err
	}

	grouped := make(map[Category][]Document, len(allCategories))
	for _, doc := range docs {
		grouped[doc.Category] = append(grouped[doc.Category], doc)
	}
	out := UserCategories{UserID: employee.ID, UserName: employee.Name}
	for _, info := range ListCategories() {
		list := grouped[info.Category]
		if list == nil {
			list = []Document{}
		}
		out.Categories = append(out.Categories, CategoryDocuments{
			CategoryInfo:  info,
			DocumentCount: len(list),
			Documents:     list,
		})
	}
	return out, nil
}

// Upload writes the bytes first and the metadata second so a record never
// points at a file that was not written.
func (s *Service) Upload(ctx context.Context, in UploadInput, actor auth.Principal) (Document, error) {
	category, ok := ParseCategory(in.Category)
	if !ok {
		return Document{}, ErrInvalidCategory
	}
	employee, err := s.activeEmployee(ctx, in.EmployeeID)
	if err != nil {
		return Document{}, err
	}
	fileName, err := CleanFileName(in.FileName)
	if err != nil {
		return Document{}, err
	}
	if in.Body == nil {
		return Document{}, fmt.Errorf("upload body is required")
	}

	exists, err := s.store.Exists(ctx, employee.ID, category, fileName)
	if err != nil {
		return Document{}, fmt.Errorf("check existing document: %w", err)
	}
	if exists {
		return Document{}, ErrDuplicateDocument
	}

	mimeType := strings.TrimSpace(in.MimeType)
	if mimeType == "" {
		mimeType = DefaultMimeType
	}
	key := StorageKey(employee.ID, category, fileName)
	size, err := s.storage.Put(ctx, key, in.Body, mimeType)
	if err != nil {
		return Document{}, fmt.Errorf("store file: %w", err)
	}

	now := s.now().UTC()
	doc := Document{
		EmployeeID: employee.ID,
		Category:   category,
		FileName:   fileName,
		FilePath:   key,
		FileSize:   size,
		MimeType:   mimeType,
		UploadedBy: actor.Email,
		UploadedAt: now,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	id, err := s.store.Insert(ctx, doc)
	if err != nil {
		// A concurrent upload of the same name owns the file now; leave it.
		if !errors.Is(err, ErrDuplicateDocument) {
			if delErr := s.storage.Delete(context.WithoutCancel(ctx), key); delErr != nil {
				s.logger.Warn("orphan file cleanup failed", zap.String("key", key), zap.Error(delErr))
			}
		}
		return Document{}, err
	}
	doc.ID = id
	s.logger.Info("document uploaded",
		zap.String("document_id", id),
		zap.String("employee_id", employee.ID),
		zap.String("category", string(category)),
		zap.Int64("size", size),
	)
	return doc, nil
}

func (s *Service) Get(ctx context.Context, documentID string) (Document, error) {
	return s.store.GetByID(ctx, strings.TrimSpace(documentID))
}

// Download returns ErrFileMissing when the record exists but storage does not.
func (s *Service) Download(ctx context.Context, documentID string) (Download, error) {
	doc, err := s.Get(ctx, documentID)
	if err != nil {
		return Download{}, err
	}
	body, size, err := s.storage.Open(ctx, doc.FilePath)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			s.logger.Warn("document file missing", zap.String("document_id", doc.ID), zap.String("key", doc.FilePath))
			return Download{}, ErrFileMissing
		}
		return Download{}, fmt.Errorf("open file: %w", err)
	}
	return Download{Body: body, FileName: doc.FileName, MimeType: doc.MimeType, Size: size}, nil
}

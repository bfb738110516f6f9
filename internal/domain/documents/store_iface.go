package documents

import "context"

type StoreAPI interface {
	// Insert returns ErrDuplicateDocument when (employee, category, file name) exists.
	Insert(ctx context.Context, doc Document) (string, error)
	Exists(ctx context.Context, employeeID string, category Category, fileName string) (bool, error)
	// ListByOwner returns documents ordered by uploaded_at then id. An empty
	// category matches all categories.
	ListByOwner(ctx context.Context, employeeID string, category Category) ([]Document, error)
	// GetByID returns ErrInvalidID for malformed ids and ErrDocumentNotFound for misses.
	GetByID(ctx context.Context, id string) (Document, error)
}

package documents

import (
	"io"
	"time"
)

const DefaultMimeType = "application/octet-stream"

type Document struct {
	ID         string    `json:"id"`
	EmployeeID string    `json:"employee_id"`
	Category   Category  `json:"category"`
	FileName   string    `json:"file_name"`
	FilePath   string    `json:"file_path"`
	FileSize   int64     `json:"file_size"`
	MimeType   string    `json:"mime_type"`
	UploadedBy string    `json:"uploaded_by"`
	UploadedAt time.Time `json:"uploaded_at"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

type CategoryDocuments struct {
	CategoryInfo
	DocumentCount int        `json:"document_count"`
	Documents     []Document `json:"documents"`
}

type UserCategories struct {
	UserID     string              `json:"user_id"`
	UserName   string              `json:"user_name"`
	Categories []CategoryDocuments `json:"categories"`
}

type UploadInput struct {
	EmployeeID string
	Category   string
	FileName   string
	MimeType   string
	Body       io.Reader
}

type Download struct {
	Body     io.ReadCloser
	FileName string
	MimeType string
	Size     int64
}

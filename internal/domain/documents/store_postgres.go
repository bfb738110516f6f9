package documents

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const documentColumns = `id::text, employee_id, category, file_name, file_path, file_size, mime_type,
       uploaded_by, uploaded_at, created_at, updated_at`

type PostgresStore struct {
	DB *pgxpool.Pool
}

func NewPostgresStore(db *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{DB: db}
}

func scanDocument(row pgx.Row) (Document, error) {
	var d Document
	var category string
	if err := row.Scan(&d.ID, &d.EmployeeID, &category, &d.FileName, &d.FilePath, &d.FileSize, &d.MimeType,
		&d.UploadedBy, &d.UploadedAt, &d.CreatedAt, &d.UpdatedAt); err != nil {
		return Document{}, err
	}
	d.Category = Category(category)
	d.UploadedAt = d.UploadedAt.UTC()
	d.CreatedAt = d.CreatedAt.UTC()
	d.UpdatedAt = d.UpdatedAt.UTC()
	return d, nil
}

func (s *PostgresStore) Insert(ctx context.Context, doc Document) (string, error) {
	id := uuid.NewString()
	_, err := s.DB.Exec(ctx, `
    INSERT INTO documents (id, employee_id, category, file_name, file_path, file_size, mime_type,
                           uploaded_by, uploaded_at, created_at, updated_at)
    VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
  `, id, doc.EmployeeID, string(doc.Category), doc.FileName, doc.FilePath, doc.FileSize, doc.MimeType,
		doc.UploadedBy, doc.UploadedAt, doc.CreatedAt, doc.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return "", ErrDuplicateDocument
		}
		return "", fmt.Errorf("insert document: %w", err)
	}
	return id, nil
}

func (s *PostgresStore) Exists(ctx context.Context, employeeID string, category Category, fileName string) (bool, error) {
	var exists bool
	err := s.DB.QueryRow(ctx, `
    SELECT EXISTS (SELECT 1 FROM documents WHERE employee_id = $1 AND category = $2 AND file_name = $3)
  `, employeeID, string(category), fileName).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check document: %w", err)
	}
	return exists, nil
}

func (s *PostgresStore) ListByOwner(ctx context.Context, employeeID string, category Category) ([]Document, error) {
	rows, err := s.DB.Query(ctx, `
    SELECT `+documentColumns+`
    FROM documents
    WHERE employee_id = $1 AND ($2 = '' OR category = $2)
    ORDER BY uploaded_at, id
  `, employeeID, string(category))
	if err != nil {
		return nil, fmt.Errorf("query documents: %w", err)
	}
	defer rows.Close()

	var out []Document
	for rows.Next() {
		d, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (s *PostgresStore) GetByID(ctx context.Context, id string) (Document, error) {
	if _, err := uuid.Parse(id); err != nil {
		return Document{}, ErrInvalidID
	}
	d, err := scanDocument(s.DB.QueryRow(ctx, `SELECT `+documentColumns+` FROM documents WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Document{}, ErrDocumentNotFound
		}
		return Document{}, fmt.Errorf("get document: %w", err)
	}
	return d, nil
}

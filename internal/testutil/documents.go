package testutil

import (
	"context"
	"sort"
	"strconv"
	"sync"

	"onboarding/internal/domain/documents"
)

// DocumentStore is an in-memory documents.StoreAPI with "d<n>" ids.
type DocumentStore struct {
	mu        sync.Mutex
	nextID    int
	records   map[string]documents.Document
	InsertErr error
}

func NewDocumentStore() *DocumentStore {
	return &DocumentStore{records: map[string]documents.Document{}}
}

func validDocumentID(id string) bool {
	if len(id) < 2 || id[0] != 'd' {
		return false
	}
	_, err := strconv.Atoi(id[1:])
	return err == nil
}

func (s *DocumentStore) Insert(_ context.Context, doc documents.Document) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.InsertErr != nil {
		return "", s.InsertErr
	}
	for _, existing := range s.records {
		if existing.EmployeeID == doc.EmployeeID && existing.Category == doc.Category && existing.FileName == doc.FileName {
			return "", documents.ErrDuplicateDocument
		}
	}
	s.nextID++
	doc.ID = "d" + strconv.Itoa(s.nextID)
	s.records[doc.ID] = doc
	return doc.ID, nil
}

func (s *DocumentStore) Exists(_ context.Context, employeeID string, category documents.Category, fileName string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, d := range s.records {
		if d.EmployeeID == employeeID && d.Category == category && d.FileName == fileName {
			return true, nil
		}
	}
	return false, nil
}

func (s *DocumentStore) ListByOwner(_ context.Context, employeeID string, category documents.Category) ([]documents.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []documents.Document
	for _, d := range s.records {
		if d.EmployeeID != employeeID {
			continue
		}
		if category != "" && d.Category != category {
			continue
		}
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].UploadedAt.Equal(out[j].UploadedAt) {
			return out[i].UploadedAt.Before(out[j].UploadedAt)
		}
		a, _ := strconv.Atoi(out[i].ID[1:])
		b, _ := strconv.Atoi(out[j].ID[1:])
		return a < b
	})
	return out, nil
}

func (s *DocumentStore) GetByID(_ context.Context, id string) (documents.Document, error) {
	if !validDocumentID(id) {
		return documents.Document{}, documents.ErrInvalidID
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.records[id]
	if !ok {
		return documents.Document{}, documents.ErrDocumentNotFound
	}
	return d, nil
}

// Len reports how many records are stored.
func (s *DocumentStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}

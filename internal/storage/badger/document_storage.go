package badger

import (
	"context"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/timshannon/badgerhold/v4"

	"github.com/seekworks/autoapply/internal/interfaces"
	"github.com/seekworks/autoapply/internal/models"
)

// DocumentStorage implements vector document persistence for Badger
type DocumentStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewDocumentStorage creates a new DocumentStorage instance
func NewDocumentStorage(db *BadgerDB, logger arbor.ILogger) interfaces.DocumentStorage {
	return &DocumentStorage{
		db:     db,
		logger: logger,
	}
}

func (s *DocumentStorage) SaveDocuments(ctx context.Context, docs []*models.JobDocument) error {
	for _, doc := range docs {
		if doc.ID == "" {
			return fmt.Errorf("document ID is required")
		}
		if !doc.Type.Valid() {
			return fmt.Errorf("invalid document type: %s", doc.Type)
		}
		if doc.CreatedAt.IsZero() {
			doc.CreatedAt = time.Now()
		}
		if err := s.db.Store().Upsert(doc.ID, doc); err != nil {
			return fmt.Errorf("failed to save document %s: %w", doc.ID, err)
		}
	}
	return nil
}

func (s *DocumentStorage) GetDocumentsByJobID(ctx context.Context, jobID string) ([]*models.JobDocument, error) {
	var docs []models.JobDocument
	if err := s.db.Store().Find(&docs, badgerhold.Where("JobID").Eq(jobID)); err != nil {
		return nil, fmt.Errorf("failed to get documents for job: %w", err)
	}

	result := make([]*models.JobDocument, len(docs))
	for i := range docs {
		result[i] = &docs[i]
	}
	return result, nil
}

func (s *DocumentStorage) ListDocuments(ctx context.Context, limit int) ([]*models.JobDocument, error) {
	query := badgerhold.Where("ID").Ne("")
	if limit > 0 {
		query = query.Limit(limit)
	}

	var docs []models.JobDocument
	if err := s.db.Store().Find(&docs, query); err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}

	result := make([]*models.JobDocument, len(docs))
	for i := range docs {
		result[i] = &docs[i]
	}
	return result, nil
}

func (s *DocumentStorage) DeleteDocumentsForJob(ctx context.Context, jobID string) error {
	if err := s.db.Store().DeleteMatching(&models.JobDocument{}, badgerhold.Where("JobID").Eq(jobID)); err != nil {
		return fmt.Errorf("failed to delete documents for job: %w", err)
	}
	return nil
}

func (s *DocumentStorage) CountDocuments(ctx context.Context) (int, error) {
	var docs []models.JobDocument
	if err := s.db.Store().Find(&docs, badgerhold.Where("ID").Ne("")); err != nil {
		return 0, fmt.Errorf("failed to count documents: %w", err)
	}
	return len(docs), nil
}

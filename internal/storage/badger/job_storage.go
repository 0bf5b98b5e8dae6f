package badger

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/timshannon/badgerhold/v4"

	"github.com/seekworks/autoapply/internal/common"
	"github.com/seekworks/autoapply/internal/interfaces"
	"github.com/seekworks/autoapply/internal/models"
)

// JobStorage implements the JobStorage interface for Badger.
//
// Badger has no partial unique indexes, so fingerprint uniqueness is
// enforced here: the lookup-then-insert in InsertJobIfNew runs under mu,
// making the storage layer the serialization point for ingestion.
type JobStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
	mu     sync.Mutex
}

// NewJobStorage creates a new JobStorage instance
func NewJobStorage(db *BadgerDB, logger arbor.ILogger) interfaces.JobStorage {
	return &JobStorage{
		db:     db,
		logger: logger,
	}
}

func (s *JobStorage) InsertJobIfNew(ctx context.Context, raw *models.RawJob) (string, bool, error) {
	if raw == nil {
		return "", false, fmt.Errorf("raw job is required")
	}

	fingerprint := common.Fingerprint(raw.Title, raw.Company, raw.SalaryRaw, raw.Location)

	s.mu.Lock()
	defer s.mu.Unlock()

	// A hit on any row, including soft-deleted ones, means the posting is
	// already known: deleted jobs must not be re-ingested.
	var existing models.Job
	err := s.db.Store().FindOne(&existing, badgerhold.Where("Fingerprint").Eq(fingerprint))
	if err == nil {
		return existing.ID, false, nil
	}
	if err != badgerhold.ErrNotFound {
		return "", false, fmt.Errorf("fingerprint lookup failed: %w", err)
	}

	now := time.Now()
	job := &models.Job{
		ID:          common.NewJobID(),
		JobID:       raw.JobID,
		Fingerprint: fingerprint,
		Title:       raw.Title,
		Company:     raw.Company,
		Location:    raw.Location,
		SalaryRaw:   raw.SalaryRaw,
		URL:         raw.URL,
		Site:        raw.Site,
		Description: raw.Description,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.db.Store().Insert(job.ID, job); err != nil {
		return "", false, fmt.Errorf("failed to insert job: %w", err)
	}

	s.logger.Debug().
		Str("job_id", job.ID).
		Str("fingerprint", fingerprint).
		Str("title", job.Title).
		Msg("Inserted new job")

	return job.ID, true, nil
}

func (s *JobStorage) GetJob(ctx context.Context, jobID string) (*models.Job, error) {
	var job models.Job
	if err := s.db.Store().Get(jobID, &job); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil, interfaces.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get job: %w", err)
	}
	return &job, nil
}

func (s *JobStorage) GetJobByFingerprint(ctx context.Context, fingerprint string) (*models.Job, error) {
	var job models.Job
	err := s.db.Store().FindOne(&job, badgerhold.Where("Fingerprint").Eq(fingerprint))
	if err != nil {
		if err == badgerhold.ErrNotFound {
			return nil, interfaces.ErrNotFound
		}
		return nil, fmt.Errorf("fingerprint lookup failed: %w", err)
	}
	return &job, nil
}

func (s *JobStorage) ListUnprocessedJobs(ctx context.Context, limit int) ([]*models.Job, error) {
	query := badgerhold.Where("RAGProcessed").Eq(false).
		And("IsDeleted").Eq(false).
		SortBy("CreatedAt")
	if limit > 0 {
		query = query.Limit(limit)
	}

	var jobs []models.Job
	if err := s.db.Store().Find(&jobs, query); err != nil {
		return nil, fmt.Errorf("failed to list unprocessed jobs: %w", err)
	}

	result := make([]*models.Job, len(jobs))
	for i := range jobs {
		result[i] = &jobs[i]
	}
	return result, nil
}

func (s *JobStorage) ListProcessedJobs(ctx context.Context, limit int) ([]*models.Job, error) {
	query := badgerhold.Where("RAGProcessed").Eq(true).
		And("IsDeleted").Eq(false).
		SortBy("CreatedAt")
	if limit > 0 {
		query = query.Limit(limit)
	}

	var jobs []models.Job
	if err := s.db.Store().Find(&jobs, query); err != nil {
		return nil, fmt.Errorf("failed to list processed jobs: %w", err)
	}

	result := make([]*models.Job, len(jobs))
	for i := range jobs {
		result[i] = &jobs[i]
	}
	return result, nil
}

// MarkJobProcessed sets structured fields and the rag_processed flag.
// Idempotent: re-marking an already processed job overwrites its fields.
func (s *JobStorage) MarkJobProcessed(ctx context.Context, jobID string, fields *models.StructuredFields, docRefs []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var job models.Job
	if err := s.db.Store().Get(jobID, &job); err != nil {
		if err == badgerhold.ErrNotFound {
			return interfaces.ErrNotFound
		}
		return fmt.Errorf("failed to get job: %w", err)
	}

	if fields != nil {
		job.Responsibilities = fields.Responsibilities
		job.Requirements = fields.Requirements
		job.Skills = fields.Skills
		job.Education = fields.Education
		job.Experience = fields.Experience
		job.FallbackExtraction = fields.Fallback
	}
	job.DocRefs = docRefs
	job.RAGProcessed = true
	job.UpdatedAt = time.Now()

	if err := s.db.Store().Update(jobID, &job); err != nil {
		return fmt.Errorf("failed to mark job processed: %w", err)
	}
	return nil
}

// SoftDeleteJob marks the job deleted and cascades to dependent matches
// and vector documents. The row itself is never removed.
func (s *JobStorage) SoftDeleteJob(ctx context.Context, jobID string, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var job models.Job
	if err := s.db.Store().Get(jobID, &job); err != nil {
		if err == badgerhold.ErrNotFound {
			return interfaces.ErrNotFound
		}
		return fmt.Errorf("failed to get job: %w", err)
	}

	if job.IsDeleted {
		return nil
	}

	now := time.Now()
	job.IsDeleted = true
	job.DeletedAt = &now
	job.DeleteReason = reason
	job.UpdatedAt = now

	if err := s.db.Store().Update(jobID, &job); err != nil {
		return fmt.Errorf("failed to soft-delete job: %w", err)
	}

	// Cascade: dependent matches and documents must not reference a
	// deleted job
	if err := s.db.Store().DeleteMatching(&models.ResumeMatch{}, badgerhold.Where("JobID").Eq(jobID)); err != nil {
		return fmt.Errorf("failed to delete matches for job: %w", err)
	}
	if err := s.db.Store().DeleteMatching(&models.JobDocument{}, badgerhold.Where("JobID").Eq(jobID)); err != nil {
		return fmt.Errorf("failed to delete documents for job: %w", err)
	}

	s.logger.Info().
		Str("job_id", jobID).
		Str("reason", reason).
		Msg("Soft-deleted job")

	return nil
}

func (s *JobStorage) CountJobs(ctx context.Context) (int, error) {
	var jobs []models.Job
	if err := s.db.Store().Find(&jobs, badgerhold.Where("IsDeleted").Eq(false)); err != nil {
		return 0, fmt.Errorf("failed to count jobs: %w", err)
	}
	return len(jobs), nil
}

package interfaces

import (
	"context"
	"errors"

	"github.com/seekworks/autoapply/internal/models"
)

// Sentinel errors converted from data-layer failures into business signals
var (
	// ErrNotFound indicates the requested row does not exist
	ErrNotFound = errors.New("not found")
	// ErrAlreadyProcessed indicates a second MarkMatchProcessed call on the
	// same match. Enforces at-most-once submission.
	ErrAlreadyProcessed = errors.New("match already processed")
)

// JobStorage - interface for job row persistence
type JobStorage interface {
	// InsertJobIfNew inserts a job unless a live row with the same
	// fingerprint exists. A fingerprint collision is not an error: the
	// existing row ID is returned with wasNew=false.
	InsertJobIfNew(ctx context.Context, raw *models.RawJob) (jobID string, wasNew bool, err error)

	GetJob(ctx context.Context, jobID string) (*models.Job, error)
	GetJobByFingerprint(ctx context.Context, fingerprint string) (*models.Job, error)

	// ListUnprocessedJobs returns live jobs with rag_processed=false
	ListUnprocessedJobs(ctx context.Context, limit int) ([]*models.Job, error)

	// ListProcessedJobs returns live jobs with rag_processed=true
	ListProcessedJobs(ctx context.Context, limit int) ([]*models.Job, error)

	// MarkJobProcessed sets the structured fields and rag_processed=true.
	// Idempotent.
	MarkJobProcessed(ctx context.Context, jobID string, fields *models.StructuredFields, docRefs []string) error

	// SoftDeleteJob marks the job deleted and removes dependent matches
	SoftDeleteJob(ctx context.Context, jobID string, reason string) error

	CountJobs(ctx context.Context) (int, error)
}

// MatchStorage - interface for resume match persistence
type MatchStorage interface {
	SaveMatch(ctx context.Context, match *models.ResumeMatch) error
	GetMatch(ctx context.Context, matchID string) (*models.ResumeMatch, error)
	GetMatchByJobID(ctx context.Context, jobID string) (*models.ResumeMatch, error)

	// ListUnprocessedMatches returns matches with processed=false joined to
	// non-deleted jobs, filtered by an optional salary-score floor, ordered
	// by overall score descending.
	ListUnprocessedMatches(ctx context.Context, limit int, minSalaryScore float64) ([]*models.ResumeMatch, error)

	// MarkMatchProcessed flips processed false->true with an outcome.
	// Returns ErrAlreadyProcessed on a second call.
	MarkMatchProcessed(ctx context.Context, matchID string, outcome models.SubmissionStatus) error

	// DeleteMatchesForJob removes all matches referencing a job.
	// Called by the soft-delete cascade.
	DeleteMatchesForJob(ctx context.Context, jobID string) error

	CountMatches(ctx context.Context) (int, error)
}

// SubmissionStorage - interface for the append-only submission log
type SubmissionStorage interface {
	AppendSubmissionLog(ctx context.Context, log *models.SubmissionLog) error
	GetLogsForMatch(ctx context.Context, matchID string) ([]*models.SubmissionLog, error)

	// CountSubmissionsToday counts SUCCESS logs on the current calendar day,
	// for the daily quota gate.
	CountSubmissionsToday(ctx context.Context) (int, error)

	// ListTerminalLogs returns all logs with a terminal status, used by the
	// startup integrity repair scan.
	ListTerminalLogs(ctx context.Context) ([]*models.SubmissionLog, error)
}

// DocumentStorage - interface for vector document persistence
type DocumentStorage interface {
	SaveDocuments(ctx context.Context, docs []*models.JobDocument) error
	GetDocumentsByJobID(ctx context.Context, jobID string) ([]*models.JobDocument, error)
	ListDocuments(ctx context.Context, limit int) ([]*models.JobDocument, error)
	DeleteDocumentsForJob(ctx context.Context, jobID string) error
	CountDocuments(ctx context.Context) (int, error)
}

// StorageManager provides access to all storage interfaces
type StorageManager interface {
	JobStorage() JobStorage
	MatchStorage() MatchStorage
	SubmissionStorage() SubmissionStorage
	DocumentStorage() DocumentStorage

	// CompleteSubmission appends the terminal log and flips the match's
	// processed flag in one transaction, so a crash cannot leave a terminal
	// log beside an unprocessed match.
	CompleteSubmission(ctx context.Context, log *models.SubmissionLog) error

	Close() error
}

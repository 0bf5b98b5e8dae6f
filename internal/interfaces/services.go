package interfaces

import (
	"context"

	"github.com/seekworks/autoapply/internal/models"
)

// ExtractorService drives the browser across keywords and pages, inserting
// new job rows. Keywords are processed sequentially; the browser driver is
// never shared.
type ExtractorService interface {
	Run(ctx context.Context, site string, keywords []string) (*models.StageReport, error)

	// FailedJobs returns the diagnostic records accumulated during the last
	// Run, bounded per page by configuration.
	FailedJobs() []models.FailedJob
}

// ProcessorService turns unprocessed jobs into structured jobs plus vector
// documents.
type ProcessorService interface {
	Run(ctx context.Context) (*models.StageReport, error)
}

// MatcherService scores processed jobs against a resume profile and
// persists annotated matches.
type MatcherService interface {
	Run(ctx context.Context, resume *models.ResumeProfile) (*models.StageReport, error)

	// ScoreJob computes a single match without persisting it
	ScoreJob(ctx context.Context, job *models.Job, resume *models.ResumeProfile) (*models.ResumeMatch, error)
}

// GateStats records salary-gate outcomes for reporting
type GateStats struct {
	Evaluated     int     `json:"evaluated"`
	Rejected      int     `json:"rejected"`
	RejectionRate float64 `json:"rejection_rate"`
}

// DecisionEngine applies the salary gate, priority scoring and the daily
// quota.
type DecisionEngine interface {
	// Evaluate annotates a scored match with decision, priority and
	// should_submit. Called by the matcher before the match is persisted.
	Evaluate(match *models.ResumeMatch, job *models.Job, resume *models.ResumeProfile)

	// SelectSubmitReady returns up to k submit-ready matches in
	// priority-then-score order, honoring the daily quota and the adaptive
	// query multiplier.
	SelectSubmitReady(ctx context.Context, k int) ([]*models.ResumeMatch, error)

	GateStats() GateStats
}

// SubmitterService performs submissions for a batch of submit-ready
// matches, one at a time.
type SubmitterService interface {
	Run(ctx context.Context, matches []*models.ResumeMatch) (*models.StageReport, *models.SubmissionReport, error)
}

// SchedulerService runs the pipeline on a recurring schedule
type SchedulerService interface {
	Start() error
	Stop()
}

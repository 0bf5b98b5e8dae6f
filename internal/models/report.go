package models

import "time"

// StageName identifies one pipeline stage
type StageName string

const (
	StageExtract StageName = "extract"
	StageProcess StageName = "process"
	StageMatch   StageName = "match"
	StageDecide  StageName = "decide"
	StageSubmit  StageName = "submit"
)

// StageReport carries per-stage counters for the execution report
type StageReport struct {
	Stage     StageName     `json:"stage"`
	Attempted int           `json:"attempted"`
	Succeeded int           `json:"succeeded"`
	Failed    int           `json:"failed"`
	Skipped   int           `json:"skipped"` // Dedup hits for extract, gate rejections for decide
	Duration  time.Duration `json:"duration"`
	Error     string        `json:"error,omitempty"`
}

// SubmissionReport breaks down submission-stage outcomes
type SubmissionReport struct {
	Successful     int     `json:"successful"`
	Failed         int     `json:"failed"`
	AlreadyApplied int     `json:"already_applied"`
	Suspended      int     `json:"suspended"`
	Expired        int     `json:"expired"`
	ButtonNotFound int     `json:"button_not_found"`
	DryRun         int     `json:"dry_run"`
	SuccessRate    float64 `json:"success_rate"`
}

// ExecutionReport is returned to the caller after every pipeline run,
// including partial failures.
type ExecutionReport struct {
	Stages     []StageReport    `json:"stages"`
	Submission SubmissionReport `json:"submission"`

	TotalDuration time.Duration `json:"total_duration"`
	FirstError    string        `json:"first_error,omitempty"`

	// ExitCode: 0 all stages succeeded, 1 stage failures but ran to
	// completion, 2 fatal abort
	ExitCode int `json:"exit_code"`

	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
}

// StageFor returns the report entry for the named stage, if present
func (r *ExecutionReport) StageFor(name StageName) *StageReport {
	for i := range r.Stages {
		if r.Stages[i].Stage == name {
			return &r.Stages[i]
		}
	}
	return nil
}

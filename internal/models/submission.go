package models

import "time"

// SubmissionStatus classifies the outcome of one submission attempt.
// The detector assigns these in strict priority order: suspension beats
// expiry beats login beats applied beats button-not-found beats pending.
type SubmissionStatus string

const (
	StatusSuccess        SubmissionStatus = "SUCCESS"
	StatusAlreadyApplied SubmissionStatus = "ALREADY_APPLIED"
	StatusJobSuspended   SubmissionStatus = "JOB_SUSPENDED"
	StatusJobExpired     SubmissionStatus = "JOB_EXPIRED"
	StatusLoginRequired  SubmissionStatus = "LOGIN_REQUIRED"
	StatusButtonNotFound SubmissionStatus = "BUTTON_NOT_FOUND"
	StatusPageError      SubmissionStatus = "PAGE_ERROR"
	StatusClickFailed    SubmissionStatus = "CLICK_FAILED"
	StatusPending        SubmissionStatus = "PENDING"
	StatusDryRun         SubmissionStatus = "DRY_RUN"
)

// Terminal reports whether the status closes out the match. A terminal log
// row must coincide with the match's processed flag being set.
func (s SubmissionStatus) Terminal() bool {
	switch s {
	case StatusSuccess, StatusAlreadyApplied, StatusJobSuspended,
		StatusJobExpired, StatusButtonNotFound, StatusPageError,
		StatusClickFailed, StatusDryRun:
		return true
	}
	return false
}

// SubmissionLog is an append-only record of one submission attempt.
// Logs are never updated or deleted.
type SubmissionLog struct {
	ID      string `json:"id"`                        // log_{uuid}
	MatchID string `json:"match_id" badgerhold:"index"`
	JobID   string `json:"job_id"`

	Status SubmissionStatus `json:"status"`
	Reason string           `json:"reason,omitempty"`

	// Diagnostics captured in the one-shot detection pass
	PageTitle   string `json:"page_title,omitempty"`
	PageSnippet string `json:"page_snippet,omitempty"`
	ButtonText  string `json:"button_text,omitempty"`
	ButtonClass string `json:"button_class,omitempty"`

	DetectionMs int64 `json:"detection_ms"`

	CreatedAt time.Time `json:"created_at"`
}

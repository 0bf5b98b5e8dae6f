package models

import "time"

// Priority orders submit-ready matches
type Priority string

const (
	PriorityUrgent Priority = "urgent"
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

// Rank returns a sortable rank where urgent is highest
func (p Priority) Rank() int {
	switch p {
	case PriorityUrgent:
		return 4
	case PriorityHigh:
		return 3
	case PriorityMedium:
		return 2
	default:
		return 1
	}
}

// Decision is the submit/skip outcome of the decision engine
type Decision string

const (
	DecisionSubmit         Decision = "submit"
	DecisionSkip           Decision = "skip"
	DecisionRejectedByGate Decision = "rejected_by_gate"
)

// DimensionScores is the per-dimension breakdown of a match, each in [0,1]
type DimensionScores struct {
	Semantic   float64 `json:"semantic"`
	Skill      float64 `json:"skill"`
	Experience float64 `json:"experience"`
	Salary     float64 `json:"salary"`
	Industry   float64 `json:"industry"`
}

// ResumeMatch is a scored pairing of the candidate resume with a job.
// Created by the matcher and decision engine in one write; mutated only by
// the submitter, which flips Processed exactly once.
type ResumeMatch struct {
	ID    string `json:"id"`                       // match_{uuid}
	JobID string `json:"job_id" badgerhold:"index"` // References Job.ID

	OverallScore float64         `json:"overall_score"`
	Dimensions   DimensionScores `json:"dimensions"`

	// MatchedSkills holds the raw matched-skill list for explainability
	MatchedSkills []string `json:"matched_skills,omitempty"`

	Decision      Decision `json:"decision"`
	Priority      Priority `json:"priority"`
	PriorityScore float64  `json:"priority_score"`
	ShouldSubmit  bool     `json:"should_submit"`

	Processed   bool       `json:"processed" badgerhold:"index"`
	ProcessedAt *time.Time `json:"processed_at,omitempty"`
	Outcome     string     `json:"outcome,omitempty"` // Terminal SubmissionStatus string

	CreatedAt time.Time `json:"created_at"`
}

package models

import (
	"time"
)

// Job represents a discovered posting. Rows are never physically deleted;
// soft-delete is terminal and excludes the row from all live queries.
type Job struct {
	ID          string `json:"id"`     // job_{uuid}
	JobID       string `json:"job_id"` // Site-specific stable ID
	Fingerprint string `json:"fingerprint" badgerhold:"index"`

	Title     string `json:"title"`
	Company   string `json:"company"`
	Location  string `json:"location"`
	SalaryRaw string `json:"salary_raw"`
	URL       string `json:"url"`
	Site      string `json:"site"`

	Description string `json:"description"`

	// Structured fields set by the processor
	Responsibilities []string `json:"responsibilities,omitempty"`
	Requirements     []string `json:"requirements,omitempty"`
	Skills           []string `json:"skills,omitempty"`
	Education        string   `json:"education,omitempty"`
	Experience       string   `json:"experience,omitempty"`

	// Processing state
	RAGProcessed bool `json:"rag_processed" badgerhold:"index"`
	// FallbackExtraction marks jobs whose structured fields came from the
	// heuristic splitter rather than the model
	FallbackExtraction bool `json:"fallback_extraction,omitempty"`

	DocRefs []string `json:"doc_refs,omitempty"` // Vector document references

	IsDeleted    bool       `json:"is_deleted" badgerhold:"index"`
	DeletedAt    *time.Time `json:"deleted_at,omitempty"`
	DeleteReason string     `json:"delete_reason,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// StructuredFields is the typed output of structured extraction over the
// free-text description.
type StructuredFields struct {
	Responsibilities []string `json:"responsibilities"`
	Requirements     []string `json:"requirements"`
	Skills           []string `json:"skills"`
	Education        string   `json:"education"`
	Experience       string   `json:"experience"`
	Fallback         bool     `json:"fallback"` // True when the heuristic splitter produced these
}

// RawJob carries the fields visible on a listing card plus the detail page
// content, before a Job row exists for it.
type RawJob struct {
	JobID       string `json:"job_id"`
	Title       string `json:"title"`
	Company     string `json:"company"`
	Location    string `json:"location"`
	SalaryRaw   string `json:"salary_raw"`
	URL         string `json:"url"`
	Site        string `json:"site"`
	Description string `json:"description"`
}

// FailedJob is a diagnostic record for a listing card that could not be
// extracted. Bounded per page; never blocks the run.
type FailedJob struct {
	ID        string    `json:"id"`
	Site      string    `json:"site"`
	Keyword   string    `json:"keyword"`
	Page      int       `json:"page"`
	Reason    string    `json:"reason"`
	CreatedAt time.Time `json:"created_at"`
}

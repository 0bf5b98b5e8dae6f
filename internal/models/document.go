package models

import "time"

// DocumentType classifies the text units derived from one job posting
type DocumentType string

const (
	DocTypeOverview          DocumentType = "overview"
	DocTypeResponsibility    DocumentType = "responsibility"
	DocTypeRequirement       DocumentType = "requirement"
	DocTypeSkills            DocumentType = "skills"
	DocTypeBasicRequirements DocumentType = "basic_requirements"
)

// Valid reports whether t is one of the recognized document types
func (t DocumentType) Valid() bool {
	switch t {
	case DocTypeOverview, DocTypeResponsibility, DocTypeRequirement,
		DocTypeSkills, DocTypeBasicRequirements:
		return true
	}
	return false
}

// SearchStrategy selects how time weighting blends with similarity
type SearchStrategy string

const (
	StrategyHybrid     SearchStrategy = "hybrid"
	StrategyFreshFirst SearchStrategy = "fresh_first"
	StrategyBalanced   SearchStrategy = "balanced"
)

// JobDocument is a unit of text stored in the vector collection,
// derived from a Job. Typically 4-6 documents per job.
type JobDocument struct {
	ID      string       `json:"id"` // doc_{uuid}
	JobID   string       `json:"job_id" badgerhold:"index"`
	Type    DocumentType `json:"document_type"`
	Content string       `json:"content"`

	Embedding []float32 `json:"embedding,omitempty"`

	Site      string    `json:"site"`
	CreatedAt time.Time `json:"created_at"`
}

// ScoredDocument pairs a retrieved document with its normalized score in
// [0,1], where 1 is identical. Callers must not assume a distance metric.
type ScoredDocument struct {
	Document *JobDocument `json:"document"`
	Score    float64      `json:"score"`
}

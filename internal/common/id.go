package common

import (
	"github.com/google/uuid"
)

// NewJobID generates a unique job row ID with the "job_" prefix
func NewJobID() string {
	return "job_" + uuid.New().String()
}

// NewMatchID generates a unique match ID with the "match_" prefix
func NewMatchID() string {
	return "match_" + uuid.New().String()
}

// NewSubmissionLogID generates a unique submission log ID with the "log_" prefix
func NewSubmissionLogID() string {
	return "log_" + uuid.New().String()
}

// NewDocumentID generates a unique document ID with the "doc_" prefix
func NewDocumentID() string {
	return "doc_" + uuid.New().String()
}

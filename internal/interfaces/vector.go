package interfaces

import (
	"context"

	"github.com/seekworks/autoapply/internal/models"
)

// Embedder generates vector embeddings for text. The model internals are
// external to the pipeline.
type Embedder interface {
	GenerateEmbedding(ctx context.Context, text string) ([]float32, error)
	Dimension() int
	IsAvailable(ctx context.Context) bool
}

// SearchFilter restricts vector retrieval by document metadata
type SearchFilter struct {
	JobID        string              // Restrict to one job's document set
	Site         string              // Restrict to a source site
	DocumentType models.DocumentType // Restrict to one document type
	CreatedAfter int64               // Unix seconds; zero means unrestricted
}

// VectorStore wraps the external embedding store. All returned scores are
// normalized to [0,1] where 1 is identical; callers must not assume a
// particular distance metric.
type VectorStore interface {
	// UpsertDocuments persists documents with embeddings and metadata,
	// returning one doc ref per input in order.
	UpsertDocuments(ctx context.Context, docs []*models.JobDocument) ([]string, error)

	// SimilaritySearch is standard cosine retrieval
	SimilaritySearch(ctx context.Context, query string, k int, filter *SearchFilter) ([]models.ScoredDocument, error)

	// TimeAwareSearch blends similarity with a freshness weight computed
	// from document age, per the configured strategy.
	TimeAwareSearch(ctx context.Context, query string, k int, strategy models.SearchStrategy, filter *SearchFilter) ([]models.ScoredDocument, error)
}

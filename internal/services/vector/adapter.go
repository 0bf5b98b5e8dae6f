package vector

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/seekworks/autoapply/internal/common"
	"github.com/seekworks/autoapply/internal/interfaces"
	"github.com/seekworks/autoapply/internal/models"
)

// Adapter implements the VectorStore interface over the document store and
// an external embedder. Cosine similarity is computed here; scores are
// normalized to [0,1] before leaving this package.
type Adapter struct {
	documents interfaces.DocumentStorage
	embedder  interfaces.Embedder
	logger    arbor.ILogger

	// now is injectable for time-weight tests
	now func() time.Time
}

// NewAdapter creates a new vector store adapter
func NewAdapter(documents interfaces.DocumentStorage, embedder interfaces.Embedder, logger arbor.ILogger) *Adapter {
	return &Adapter{
		documents: documents,
		embedder:  embedder,
		logger:    logger,
		now:       time.Now,
	}
}

// UpsertDocuments embeds and persists documents, returning one doc ref per
// input in order. Documents that already carry an embedding are not
// re-embedded.
func (a *Adapter) UpsertDocuments(ctx context.Context, docs []*models.JobDocument) ([]string, error) {
	refs := make([]string, 0, len(docs))
	for _, doc := range docs {
		if doc.ID == "" {
			doc.ID = common.NewDocumentID()
		}
		if doc.CreatedAt.IsZero() {
			doc.CreatedAt = a.now()
		}
		if len(doc.Embedding) == 0 {
			embedding, err := a.embedder.GenerateEmbedding(ctx, doc.Content)
			if err != nil {
				return nil, fmt.Errorf("failed to embed document %s: %w", doc.ID, err)
			}
			doc.Embedding = embedding
		}
		refs = append(refs, doc.ID)
	}

	if err := a.documents.SaveDocuments(ctx, docs); err != nil {
		return nil, fmt.Errorf("failed to persist documents: %w", err)
	}

	a.logger.Debug().Int("count", len(docs)).Msg("Upserted vector documents")
	return refs, nil
}

// SimilaritySearch is standard cosine retrieval over the filtered
// candidate set.
func (a *Adapter) SimilaritySearch(ctx context.Context, query string, k int, filter *interfaces.SearchFilter) ([]models.ScoredDocument, error) {
	scored, err := a.scoreCandidates(ctx, query, filter)
	if err != nil {
		return nil, err
	}

	sort.Slice(scored, func(i, j int) bool {
		return scored[i].Score > scored[j].Score
	})
	return truncate(scored, k), nil
}

// TimeAwareSearch blends cosine similarity with a freshness weight.
//
// hybrid:      0.7*cosine + 0.3*time_weight, with a flat +0.2 bonus for
//              documents at most 7 days old, capped at 1.0.
// balanced:    0.5*cosine + 0.5*time_weight.
// fresh_first: cosine scores unchanged, sorted by recency within 0.1-wide
//              similarity tiers.
func (a *Adapter) TimeAwareSearch(ctx context.Context, query string, k int, strategy models.SearchStrategy, filter *interfaces.SearchFilter) ([]models.ScoredDocument, error) {
	scored, err := a.scoreCandidates(ctx, query, filter)
	if err != nil {
		return nil, err
	}

	now := a.now()
	switch strategy {
	case models.StrategyFreshFirst:
		sort.Slice(scored, func(i, j int) bool {
			ti := math.Floor(scored[i].Score*10) / 10
			tj := math.Floor(scored[j].Score*10) / 10
			if ti != tj {
				return ti > tj
			}
			return scored[i].Document.CreatedAt.After(scored[j].Document.CreatedAt)
		})
		return truncate(scored, k), nil

	case models.StrategyBalanced:
		for i := range scored {
			tw := TimeWeight(scored[i].Document.CreatedAt, now)
			scored[i].Score = clamp01(0.5*scored[i].Score + 0.5*tw)
		}

	case models.StrategyHybrid, "":
		for i := range scored {
			tw := TimeWeight(scored[i].Document.CreatedAt, now)
			score := 0.7*scored[i].Score + 0.3*tw
			if IsFresh(scored[i].Document.CreatedAt, now) {
				score += freshBonus
			}
			scored[i].Score = clamp01(score)
		}

	default:
		return nil, fmt.Errorf("unknown search strategy: %s", strategy)
	}

	sort.Slice(scored, func(i, j int) bool {
		return scored[i].Score > scored[j].Score
	})
	return truncate(scored, k), nil
}

// scoreCandidates embeds the query, loads the filtered candidate set and
// assigns normalized cosine scores.
func (a *Adapter) scoreCandidates(ctx context.Context, query string, filter *interfaces.SearchFilter) ([]models.ScoredDocument, error) {
	if query == "" {
		return nil, fmt.Errorf("query cannot be empty")
	}

	queryVec, err := a.embedder.GenerateEmbedding(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	candidates, err := a.loadCandidates(ctx, filter)
	if err != nil {
		return nil, err
	}

	scored := make([]models.ScoredDocument, 0, len(candidates))
	for _, doc := range candidates {
		if len(doc.Embedding) == 0 {
			continue
		}
		scored = append(scored, models.ScoredDocument{
			Document: doc,
			Score:    normalizedCosine(queryVec, doc.Embedding),
		})
	}
	return scored, nil
}

func (a *Adapter) loadCandidates(ctx context.Context, filter *interfaces.SearchFilter) ([]*models.JobDocument, error) {
	var docs []*models.JobDocument
	var err error

	if filter != nil && filter.JobID != "" {
		docs, err = a.documents.GetDocumentsByJobID(ctx, filter.JobID)
	} else {
		docs, err = a.documents.ListDocuments(ctx, 0)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load candidate documents: %w", err)
	}

	if filter == nil {
		return docs, nil
	}

	filtered := docs[:0]
	for _, doc := range docs {
		if filter.Site != "" && doc.Site != filter.Site {
			continue
		}
		if filter.DocumentType != "" && doc.Type != filter.DocumentType {
			continue
		}
		if filter.CreatedAfter > 0 && doc.CreatedAt.Unix() < filter.CreatedAfter {
			continue
		}
		filtered = append(filtered, doc)
	}
	return filtered, nil
}

// normalizedCosine maps cosine similarity from [-1,1] into [0,1]
func normalizedCosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}

	cos := dot / (math.Sqrt(normA) * math.Sqrt(normB))
	return clamp01((cos + 1) / 2)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func truncate(scored []models.ScoredDocument, k int) []models.ScoredDocument {
	if k > 0 && len(scored) > k {
		return scored[:k]
	}
	return scored
}

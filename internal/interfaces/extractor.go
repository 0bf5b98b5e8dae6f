package interfaces

import (
	"context"

	"github.com/seekworks/autoapply/internal/models"
)

// StructuredExtractor turns a raw job description into typed structured
// fields. Implementations may fail; callers fall back to heuristic
// splitting and mark the result accordingly.
type StructuredExtractor interface {
	Extract(ctx context.Context, rawText string) (*models.StructuredFields, error)
}

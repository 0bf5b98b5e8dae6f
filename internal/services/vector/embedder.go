package vector

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
	"unicode"

	"github.com/ternarybob/arbor"

	"github.com/seekworks/autoapply/internal/interfaces"
)

// OfflineEmbedder is a deterministic token-hashing embedder used when no
// external embedding model is configured. Tokens are hashed into a fixed
// number of buckets and the vector is L2-normalized, so cosine similarity
// degrades to token overlap. CJK text is tokenized per rune; Latin text per
// word.
type OfflineEmbedder struct {
	dimension int
	logger    arbor.ILogger
}

// NewOfflineEmbedder creates a deterministic hashing embedder
func NewOfflineEmbedder(dimension int, logger arbor.ILogger) interfaces.Embedder {
	if dimension <= 0 {
		dimension = 256
	}
	return &OfflineEmbedder{
		dimension: dimension,
		logger:    logger,
	}
}

func (e *OfflineEmbedder) GenerateEmbedding(ctx context.Context, text string) ([]float32, error) {
	vec := make([]float32, e.dimension)
	for _, token := range Tokenize(text) {
		h := fnv.New32a()
		h.Write([]byte(token))
		vec[int(h.Sum32())%e.dimension]++
	}

	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if norm > 0 {
		scale := float32(1 / math.Sqrt(norm))
		for i := range vec {
			vec[i] *= scale
		}
	}
	return vec, nil
}

func (e *OfflineEmbedder) Dimension() int {
	return e.dimension
}

func (e *OfflineEmbedder) IsAvailable(ctx context.Context) bool {
	return true
}

// Tokenize splits text into lowercase tokens: contiguous Latin/digit runs
// become word tokens, CJK characters become single-rune tokens.
func Tokenize(text string) []string {
	var tokens []string
	var word strings.Builder

	flush := func() {
		if word.Len() > 0 {
			tokens = append(tokens, strings.ToLower(word.String()))
			word.Reset()
		}
	}

	for _, r := range text {
		switch {
		case unicode.Is(unicode.Han, r):
			flush()
			tokens = append(tokens, string(r))
		case unicode.IsLetter(r) || unicode.IsDigit(r) || r == '+' || r == '#':
			word.WriteRune(r)
		default:
			flush()
		}
	}
	flush()

	return tokens
}

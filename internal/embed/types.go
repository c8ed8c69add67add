package embed

import (
	"context"
	"math"
	"time"
)

// Common embedding constants
const (
	// DefaultBatchSize is the default number of texts per embedding request
	DefaultBatchSize = 32

	// MaxBatchSize caps a single request to keep payloads bounded
	MaxBatchSize = 256

	// DefaultTimeout bounds one embedding request
	DefaultTimeout = 60 * time.Second

	// StaticDimensions is the vector size of the static embedder
	StaticDimensions = 256
)

// Embedder turns text into fixed-dimension vectors.
//
// Implementations make exactly one attempt per call. Callers that want
// retries wrap the call themselves (see errors.Retry).
type Embedder interface {
	// EmbedOne embeds a single text.
	EmbedOne(ctx context.Context, text string) ([]float32, error)

	// EmbedMany embeds texts, returning vectors in input order.
	EmbedMany(ctx context.Context, texts []string) ([][]float32, error)

	// Dimensions returns the vector size, or 0 when not yet known.
	Dimensions() int

	// ModelName identifies the model, recorded in the index manifest.
	ModelName() string

	// Close releases resources.
	Close() error
}

// Normalize scales v to unit length in place and returns it.
// Zero vectors are returned unchanged.
func Normalize(v []float32) []float32 {
	var sum float64
	for _, val := range v {
		sum += float64(val) * float64(val)
	}
	if sum == 0 {
		return v
	}
	norm := float32(math.Sqrt(sum))
	for i := range v {
		v[i] /= norm
	}
	return v
}

// toFloat32 converts API float64 vectors.
func toFloat32(v []float64) []float32 {
	out := make([]float32, len(v))
	for i, f := range v {
		out[i] = float32(f)
	}
	return out
}

package embed

import (
	"context"
	"math"
	"sync/atomic"
)

// vectorMagnitude computes the magnitude of a vector
func vectorMagnitude(v []float32) float64 {
	var sum float64
	for _, val := range v {
		sum += float64(val) * float64(val)
	}
	return math.Sqrt(sum)
}

// cosineSimilarity computes cosine similarity between two vectors
func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}
	var dot, magA, magB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		magA += float64(a[i]) * float64(a[i])
		magB += float64(b[i]) * float64(b[i])
	}
	if magA == 0 || magB == 0 {
		return 0
	}
	return dot / (math.Sqrt(magA) * math.Sqrt(magB))
}

// countingEmbedder is a test double that counts calls and texts.
type countingEmbedder struct {
	oneCalls  atomic.Int64
	manyCalls atomic.Int64
	texts     atomic.Int64
	inner     *StaticEmbedder
	err       error
}

func newCountingEmbedder() *countingEmbedder {
	return &countingEmbedder{inner: NewStaticEmbedderWithDims(16)}
}

func (m *countingEmbedder) EmbedOne(ctx context.Context, text string) ([]float32, error) {
	m.oneCalls.Add(1)
	m.texts.Add(1)
	if m.err != nil {
		return nil, m.err
	}
	return m.inner.EmbedOne(ctx, text)
}

func (m *countingEmbedder) EmbedMany(ctx context.Context, texts []string) ([][]float32, error) {
	m.manyCalls.Add(1)
	m.texts.Add(int64(len(texts)))
	if m.err != nil {
		return nil, m.err
	}
	return m.inner.EmbedMany(ctx, texts)
}

func (m *countingEmbedder) Dimensions() int   { return m.inner.Dimensions() }
func (m *countingEmbedder) ModelName() string { return "counting" }
func (m *countingEmbedder) Close() error      { return nil }

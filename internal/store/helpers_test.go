package store

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/docrag/internal/chunk"
	"github.com/Aman-CERP/docrag/internal/embed"
)

// testChunks returns n chunks spread over a few sources.
func testChunks(n int) []chunk.Chunk {
	topics := []string{"sky and weather", "refund policy", "shipping times", "password reset", "invoice totals"}
	chunks := make([]chunk.Chunk, n)
	for i := range chunks {
		src := fmt.Sprintf("doc-%d.txt", i%3)
		chunks[i] = chunk.Chunk{
			ID:       fmt.Sprintf("id-%d", i),
			SourceID: src,
			Document: i % 3,
			Position: i / 3,
			Text:     fmt.Sprintf("Chunk %d talks about %s.", i, topics[i%len(topics)]),
			Offset:   i * 10,
			Metadata: map[string]string{"source": src, "n": fmt.Sprint(i)},
		}
	}
	return chunks
}

func buildTestIndex(t *testing.T, n int) *Index {
	t.Helper()
	idx, err := Build(context.Background(), testChunks(n), embed.NewStaticEmbedderWithDims(32), BuildOptions{Workers: 2, BatchSize: 4})
	require.NoError(t, err)
	return idx
}

// scriptedEmbedder delegates to a static embedder but fails or stalls on
// texts containing a marker.
type scriptedEmbedder struct {
	inner    *embed.StaticEmbedder
	failOn   string
	stallOn  string
	dimsOn   string
	calls    atomic.Int64
	maxBatch atomic.Int64
}

func newScriptedEmbedder() *scriptedEmbedder {
	return &scriptedEmbedder{inner: embed.NewStaticEmbedderWithDims(16)}
}

func (s *scriptedEmbedder) EmbedOne(ctx context.Context, text string) ([]float32, error) {
	vecs, err := s.EmbedMany(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

func (s *scriptedEmbedder) EmbedMany(ctx context.Context, texts []string) ([][]float32, error) {
	s.calls.Add(1)
	if n := int64(len(texts)); n > s.maxBatch.Load() {
		s.maxBatch.Store(n)
	}
	for _, text := range texts {
		if s.failOn != "" && strings.Contains(text, s.failOn) {
			return nil, fmt.Errorf("service unavailable")
		}
		if s.stallOn != "" && strings.Contains(text, s.stallOn) {
			<-ctx.Done()
			return nil, ctx.Err()
		}
	}
	vecs, err := s.inner.EmbedMany(ctx, texts)
	if err != nil {
		return nil, err
	}
	for i, text := range texts {
		if s.dimsOn != "" && strings.Contains(text, s.dimsOn) {
			vecs[i] = vecs[i][:8]
		}
	}
	return vecs, nil
}

func (s *scriptedEmbedder) Dimensions() int   { return 16 }
func (s *scriptedEmbedder) ModelName() string { return "scripted" }
func (s *scriptedEmbedder) Close() error      { return nil }

package search

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/docrag/internal/chunk"
	"github.com/Aman-CERP/docrag/internal/embed"
	"github.com/Aman-CERP/docrag/internal/store"
)

// keywordEmbedder maps words to fixed axes so tests control similarity.
// "color" and "blue" share an axis. Every vector carries a small bias so no
// text embeds to zero.
type keywordEmbedder struct {
	dims  int
	fail  error
	calls atomic.Int64
}

var keywordAxes = map[string]int{
	"sky": 0, "blue": 1, "color": 1, "vast": 2,
	"refund": 3, "policy": 4, "shipping": 5, "password": 6,
}

const keywordDims = 8

func newKeywordEmbedder() *keywordEmbedder {
	return &keywordEmbedder{dims: keywordDims}
}

func (k *keywordEmbedder) EmbedOne(ctx context.Context, text string) ([]float32, error) {
	vecs, err := k.EmbedMany(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

func (k *keywordEmbedder) EmbedMany(ctx context.Context, texts []string) ([][]float32, error) {
	k.calls.Add(1)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if k.fail != nil {
		return nil, k.fail
	}
	out := make([][]float32, len(texts))
	for i, text := range texts {
		vec := make([]float32, k.dims)
		vec[k.dims-1] = 0.05
		for _, word := range strings.Fields(strings.ToLower(text)) {
			word = strings.Trim(word, ".,?!;:")
			if axis, ok := keywordAxes[word]; ok && axis < k.dims {
				vec[axis]++
			}
		}
		out[i] = embed.Normalize(vec)
	}
	return out, nil
}

func (k *keywordEmbedder) Dimensions() int   { return k.dims }
func (k *keywordEmbedder) ModelName() string { return "keyword" }
func (k *keywordEmbedder) Close() error      { return nil }

var errEmbedDown = errors.New("embedding service unavailable")

func textChunks(texts ...string) []chunk.Chunk {
	chunks := make([]chunk.Chunk, len(texts))
	for i, text := range texts {
		chunks[i] = chunk.Chunk{
			ID:       fmt.Sprintf("c-%d", i),
			SourceID: fmt.Sprintf("doc-%d.txt", i),
			Position: 0,
			Document: i,
			Text:     text,
		}
	}
	return chunks
}

func buildIndex(t *testing.T, chunks []chunk.Chunk, embedder embed.Embedder) *store.Index {
	t.Helper()
	idx, err := store.Build(context.Background(), chunks, embedder, store.BuildOptions{Workers: 2, BatchSize: 4})
	require.NoError(t, err)
	return idx
}

func ordinals(results []Result) []int {
	out := make([]int, len(results))
	for i, r := range results {
		out[i] = r.Ordinal
	}
	return out
}

package store

import (
	"context"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/docrag/internal/chunk"
	"github.com/Aman-CERP/docrag/internal/embed"
	derrors "github.com/Aman-CERP/docrag/internal/errors"
)

func TestBuild_EmptyChunks_ReturnsEmptyInput(t *testing.T) {
	_, err := Build(context.Background(), nil, embed.NewStaticEmbedder(), BuildOptions{})

	require.Error(t, err)
	assert.Equal(t, derrors.ErrCodeEmptyInput, derrors.GetCode(err))
	assert.Equal(t, derrors.StageBuild, derrors.GetStage(err))
}

func TestBuild_AssignsOrdinalsInChunkOrder(t *testing.T) {
	// Given: chunks embedded concurrently in small batches
	chunks := testChunks(23)
	embedder := embed.NewStaticEmbedderWithDims(32)

	// When: building
	idx, err := Build(context.Background(), chunks, embedder, BuildOptions{Workers: 4, BatchSize: 3})
	require.NoError(t, err)

	// Then: ordinal i holds chunk i and its own vector
	require.Equal(t, 23, idx.Size())
	assert.Equal(t, 32, idx.Dimensions())
	assert.Equal(t, MetricCosine, idx.Metric())
	assert.Equal(t, "static-32", idx.Model())
	for i, c := range chunks {
		assert.Equal(t, c, idx.Chunk(i))
		want, err := embedder.EmbedOne(context.Background(), c.Text)
		require.NoError(t, err)
		assert.InDeltaSlice(t, want, idx.Vector(i), 1e-6)
	}
}

func TestBuild_VectorsAreUnitLengthForCosine(t *testing.T) {
	idx := buildTestIndex(t, 10)

	for i := 0; i < idx.Size(); i++ {
		var sum float64
		for _, v := range idx.Vector(i) {
			sum += float64(v) * float64(v)
		}
		assert.InDelta(t, 1.0, math.Sqrt(sum), 1e-5)
	}
}

func TestBuild_RespectsBatchSize(t *testing.T) {
	embedder := newScriptedEmbedder()

	_, err := Build(context.Background(), testChunks(10), embedder, BuildOptions{Workers: 2, BatchSize: 4})

	require.NoError(t, err)
	assert.Equal(t, int64(3), embedder.calls.Load())
	assert.LessOrEqual(t, embedder.maxBatch.Load(), int64(4))
}

func TestBuild_ReportsProgress(t *testing.T) {
	var mu sync.Mutex
	var last, calls int

	_, err := Build(context.Background(), testChunks(9), embed.NewStaticEmbedder(), BuildOptions{
		Workers:   1,
		BatchSize: 4,
		Progress: func(done, total int) {
			mu.Lock()
			defer mu.Unlock()
			calls++
			last = done
			assert.Equal(t, 9, total)
		},
	})

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
	assert.Equal(t, 9, last)
}

func TestBuild_EmbeddingFailure_ReportsOffendingChunk(t *testing.T) {
	// Given: an embedder failing on chunk 7
	chunks := testChunks(12)
	embedder := newScriptedEmbedder()
	embedder.failOn = "Chunk 7 "

	// When: building one chunk per batch
	_, err := Build(context.Background(), chunks, embedder, BuildOptions{Workers: 1, BatchSize: 1})

	// Then: the build fails with the chunk's source and position
	require.Error(t, err)
	de, ok := derrors.As(err)
	require.True(t, ok)
	assert.Equal(t, derrors.ErrCodeEmbeddingService, de.Code)
	assert.Equal(t, chunks[7].SourceID, de.Details["source_id"])
	assert.Equal(t, "2", de.Details["position"])
	assert.Equal(t, derrors.StageBuild, de.Details["stage"])
	assert.True(t, de.Retryable)
}

func TestBuild_EmbeddingFailure_StopsDispatching(t *testing.T) {
	embedder := newScriptedEmbedder()
	embedder.failOn = "Chunk 0 "

	_, err := Build(context.Background(), testChunks(50), embedder, BuildOptions{Workers: 1, BatchSize: 1})

	require.Error(t, err)
	assert.Less(t, embedder.calls.Load(), int64(50))
}

func TestBuild_CallTimeout_IsEmbeddingServiceError(t *testing.T) {
	embedder := newScriptedEmbedder()
	embedder.stallOn = "Chunk 1 "

	_, err := Build(context.Background(), testChunks(4), embedder, BuildOptions{
		Workers: 2, BatchSize: 1, Timeout: 50 * time.Millisecond,
	})

	require.Error(t, err)
	assert.Equal(t, derrors.ErrCodeEmbeddingService, derrors.GetCode(err))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestBuild_DimensionMismatch_IsEmbeddingServiceError(t *testing.T) {
	embedder := newScriptedEmbedder()
	embedder.dimsOn = "Chunk 3 "

	_, err := Build(context.Background(), testChunks(6), embedder, BuildOptions{})

	require.Error(t, err)
	de, ok := derrors.As(err)
	require.True(t, ok)
	assert.Equal(t, derrors.ErrCodeEmbeddingService, de.Code)
	assert.Equal(t, "1", de.Details["position"])
}

func TestBuild_CancelledContext_ReturnsContextError(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Build(ctx, testChunks(5), embed.NewStaticEmbedder(), BuildOptions{})

	assert.ErrorIs(t, err, context.Canceled)
}

func TestBuild_UnknownMetric_IsInvalidInput(t *testing.T) {
	_, err := Build(context.Background(), testChunks(2), embed.NewStaticEmbedder(), BuildOptions{Metric: "dot"})

	assert.Equal(t, derrors.ErrCodeInvalidInput, derrors.GetCode(err))
}

func TestIndex_Neighbors_FindsExactMatch(t *testing.T) {
	// Given: an index and the vector of one of its entries
	idx := buildTestIndex(t, 30)
	query := idx.PrepareQuery(idx.Vector(17))

	// When: asking the graph for neighbours
	ords := idx.Neighbors(query, 5)

	// Then: the entry itself is among them with a perfect score
	require.NotEmpty(t, ords)
	assert.Contains(t, ords, 17)
	assert.InDelta(t, 1.0, idx.Score(query, 17), 1e-5)
}

func TestIndex_L2Metric_ScoresByDistance(t *testing.T) {
	chunks := []chunk.Chunk{{SourceID: "a", Text: "alpha"}, {SourceID: "b", Text: "beta"}}

	idx, err := Build(context.Background(), chunks, embed.NewStaticEmbedderWithDims(8), BuildOptions{Metric: MetricL2})
	require.NoError(t, err)

	q := idx.PrepareQuery(idx.Vector(0))
	assert.InDelta(t, 1.0, idx.Score(q, 0), 1e-9)
	assert.Less(t, idx.Score(q, 1), 1.0)
	assert.InDelta(t, idx.Similarity(0, 1), idx.Score(q, 1), 1e-9)
}

func TestIndex_ChunksAreCopies(t *testing.T) {
	// Given: an index built from chunks with metadata
	chunks := []chunk.Chunk{
		{SourceID: "orders.csv", Text: "alpha", Metadata: map[string]string{"row": "1"}},
		{SourceID: "orders.csv", Text: "beta", Metadata: map[string]string{"row": "2"}},
	}
	idx, err := Build(context.Background(), chunks, embed.NewStaticEmbedderWithDims(8), BuildOptions{})
	require.NoError(t, err)

	// When: the input, a returned chunk and the returned slice are edited
	chunks[0].Metadata["row"] = "9"
	chunks[1] = chunk.Chunk{}
	got := idx.Chunk(0)
	got.Metadata["row"] = "8"
	all := idx.Chunks()
	all[1].Text = "gamma"
	all[1].Metadata["row"] = "7"

	// Then: the index still holds what it was built with
	assert.Equal(t, "1", idx.Chunk(0).Metadata["row"])
	assert.Equal(t, "beta", idx.Chunk(1).Text)
	assert.Equal(t, "2", idx.Chunk(1).Metadata["row"])
}

func TestNewGraph_FixedLevelSeed(t *testing.T) {
	params := GraphParams{}.withDefaults()

	a := newGraph(MetricCosine, params)
	b := newGraph(MetricCosine, params)

	require.NotNil(t, a.Rng)
	for range 5 {
		assert.Equal(t, a.Rng.Int63(), b.Rng.Int63())
	}
}

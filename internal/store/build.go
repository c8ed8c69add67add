package store

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"strconv"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Aman-CERP/docrag/internal/chunk"
	"github.com/Aman-CERP/docrag/internal/embed"
	derrors "github.com/Aman-CERP/docrag/internal/errors"
)

// BuildOptions configures Build.
type BuildOptions struct {
	// Workers bounds concurrent embedding calls (default: min(NumCPU, 8)).
	Workers int
	// BatchSize is the number of texts per embedding call (default: 32).
	BatchSize int
	// Timeout bounds each embedding call (default: 60s).
	Timeout time.Duration
	// Metric is "cos" (default) or "l2".
	Metric string
	Graph  GraphParams
	// Progress is called after each batch with the number of chunks embedded so far.
	// It may be called from several goroutines at once.
	Progress func(done, total int)
	Logger   *slog.Logger
}

func (o BuildOptions) withDefaults() BuildOptions {
	if o.Workers <= 0 {
		o.Workers = min(runtime.NumCPU(), 8)
	}
	if o.BatchSize <= 0 {
		o.BatchSize = embed.DefaultBatchSize
	}
	if o.Timeout <= 0 {
		o.Timeout = embed.DefaultTimeout
	}
	if o.Metric == "" {
		o.Metric = MetricCosine
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	o.Graph = o.Graph.withDefaults()
	return o
}

// Build embeds every chunk and returns a new in-memory Index.
//
// Ordinals follow chunk order. Batches are embedded concurrently; the first
// failing batch cancels the rest and the build fails without retrying.
func Build(ctx context.Context, chunks []chunk.Chunk, embedder embed.Embedder, opts BuildOptions) (*Index, error) {
	if len(chunks) == 0 {
		return nil, derrors.New(derrors.ErrCodeEmptyInput, "no chunks to index", nil).
			WithStage(derrors.StageBuild)
	}
	if embedder == nil {
		return nil, derrors.InternalError("embedder is nil", nil).WithStage(derrors.StageBuild)
	}
	opts = opts.withDefaults()
	if opts.Metric != MetricCosine && opts.Metric != MetricL2 {
		return nil, derrors.New(derrors.ErrCodeInvalidInput,
			fmt.Sprintf("unsupported metric %q", opts.Metric), nil).WithStage(derrors.StageBuild)
	}

	start := time.Now()
	total := len(chunks)
	opts.Logger.Info("index_build_started",
		slog.Int("chunks", total),
		slog.Int("workers", opts.Workers),
		slog.Int("batch_size", opts.BatchSize),
		slog.String("model", embedder.ModelName()))

	vectors := make([][]float32, total)
	var done atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.Workers)

	for lo := 0; lo < total; lo += opts.BatchSize {
		hi := min(lo+opts.BatchSize, total)
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			return embedBatch(gctx, embedder, chunks, vectors, lo, hi, opts, &done, total)
		})
	}

	if err := g.Wait(); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		opts.Logger.Error("index_build_failed", slog.String("error", err.Error()))
		return nil, err
	}

	dims := len(vectors[0])
	for ord, vec := range vectors {
		if len(vec) != dims || dims == 0 {
			c := chunks[ord]
			return nil, derrors.New(derrors.ErrCodeEmbeddingService,
				fmt.Sprintf("embedding has %d dimensions, expected %d", len(vec), dims), nil).
				WithStage(derrors.StageBuild).
				WithDetail("source_id", c.SourceID).
				WithDetail("position", strconv.Itoa(c.Position))
		}
		if opts.Metric == MetricCosine {
			normalize(vec)
		}
	}

	idx := newIndex(chunks, vectors, opts.Metric, embedder.ModelName(), opts.Graph)

	opts.Logger.Info("index_build_completed",
		slog.Int("chunks", idx.Size()),
		slog.Int("dimensions", idx.Dimensions()),
		slog.Duration("elapsed", time.Since(start)))

	return idx, nil
}

// embedBatch embeds chunks[lo:hi] under its own timeout and stores copies
// of the vectors at the same ordinals.
func embedBatch(ctx context.Context, embedder embed.Embedder, chunks []chunk.Chunk, vectors [][]float32,
	lo, hi int, opts BuildOptions, done *atomic.Int64, total int) error {
	texts := make([]string, hi-lo)
	for i := range texts {
		texts[i] = chunks[lo+i].Text
	}

	callCtx, cancel := context.WithTimeout(ctx, opts.Timeout)
	defer cancel()

	vecs, err := embedder.EmbedMany(callCtx, texts)
	if err == nil && len(vecs) != len(texts) {
		err = fmt.Errorf("embedder returned %d vectors for %d texts", len(vecs), len(texts))
	}
	if err != nil {
		c := chunks[lo]
		opts.Logger.Warn("embedding_batch_failed",
			slog.String("source_id", c.SourceID),
			slog.Int("position", c.Position),
			slog.Int("batch_start", lo),
			slog.String("error", err.Error()))
		return derrors.New(derrors.ErrCodeEmbeddingService, "embedding failed", err).
			WithStage(derrors.StageBuild).
			WithDetail("source_id", c.SourceID).
			WithDetail("position", strconv.Itoa(c.Position))
	}

	for i, v := range vecs {
		cp := make([]float32, len(v))
		copy(cp, v)
		vectors[lo+i] = cp
	}

	n := done.Add(int64(len(texts)))
	if opts.Progress != nil {
		opts.Progress(int(n), total)
	}
	return nil
}

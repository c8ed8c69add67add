// Package index runs the offline half of the pipeline: find and load
// documents, split them, build the vector index and persist it, or open an
// existing snapshot.
package index

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/Aman-CERP/docrag/internal/chunk"
	"github.com/Aman-CERP/docrag/internal/config"
	"github.com/Aman-CERP/docrag/internal/document"
	"github.com/Aman-CERP/docrag/internal/embed"
	derrors "github.com/Aman-CERP/docrag/internal/errors"
	"github.com/Aman-CERP/docrag/internal/store"
	"github.com/Aman-CERP/docrag/internal/ui"
)

// RunnerResult contains the outcome of a rebuild.
type RunnerResult struct {
	// Index is the in-memory index that was persisted.
	Index *store.Index

	// Files is the number of supported files found.
	Files int

	// FailedFiles is the number of files skipped because they could not be parsed.
	FailedFiles int

	// Documents is the number of documents loaded.
	Documents int

	// Chunks is the number of chunks indexed.
	Chunks int

	// Duration is the total rebuild time.
	Duration time.Duration

	// Stages holds per-stage timings.
	Stages ui.StageTimings

	// Verified is set when the persisted snapshot was reloaded and compared.
	Verified bool
}

// RunnerDependencies contains the injected dependencies for Runner.
type RunnerDependencies struct {
	// Config is the loaded configuration (required).
	Config *config.Config

	// Embedder embeds chunks (required).
	Embedder embed.Embedder

	// Renderer displays progress. Nil discards progress.
	Renderer ui.Renderer

	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// Runner executes rebuild and open operations with progress reporting.
type Runner struct {
	config   *config.Config
	embedder embed.Embedder
	renderer ui.Renderer
	logger   *slog.Logger
}

// NewRunner creates a Runner with injected dependencies.
func NewRunner(deps RunnerDependencies) (*Runner, error) {
	if deps.Config == nil {
		return nil, derrors.InternalError("runner requires a config", nil)
	}
	if deps.Embedder == nil {
		return nil, derrors.InternalError("runner requires an embedder", nil)
	}
	if deps.Renderer == nil {
		deps.Renderer = ui.Discard
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	return &Runner{
		config:   deps.Config,
		embedder: deps.Embedder,
		renderer: deps.Renderer,
		logger:   deps.Logger,
	}, nil
}

// Rebuild finds, loads, splits, embeds and persists the configured document
// root, replacing the snapshot at the index location. The returned index is
// the one that was persisted and is ready for queries.
func (r *Runner) Rebuild(ctx context.Context) (*RunnerResult, error) {
	start := time.Now()
	root := r.config.Paths.DocumentRoot
	location := r.config.Paths.IndexLocation
	var timing ui.StageTimings

	// Stage 1: find and load
	loadStart := time.Now()
	r.renderer.UpdateProgress(ui.ProgressEvent{Stage: ui.StageFinding, Message: fmt.Sprintf("Searching %s...", root)})
	paths, err := document.Find(root)
	if err != nil {
		return nil, err
	}
	if len(paths) == 0 {
		return nil, derrors.New(derrors.ErrCodeEmptyInput,
			fmt.Sprintf("No documents found in %s. Add some .txt, .md, .pdf, or .csv files.", root), nil).
			WithStage(derrors.StageLoad).
			WithDetail("path", root)
	}
	r.logger.Info("index_scan_complete", slog.String("path", root), slog.Int("files", len(paths)))

	r.renderer.UpdateProgress(ui.ProgressEvent{Stage: ui.StageLoading, Total: len(paths), Message: "files"})
	docs, stats, err := document.NewLoader(r.logger).Load(ctx, paths)
	if err != nil {
		return nil, err
	}
	if stats.Failed > 0 {
		r.renderer.AddError(ui.ErrorEvent{
			Err:    fmt.Errorf("%d of %d files could not be read, see the log for details", stats.Failed, stats.Files),
			IsWarn: true,
		})
	}
	if len(docs) == 0 {
		return nil, derrors.New(derrors.ErrCodeDocumentLoad,
			fmt.Sprintf("No documents loaded from %s. Check file formats and permissions.", root), nil).
			WithStage(derrors.StageLoad).
			WithDetail("path", root).
			WithDetail("failed_files", fmt.Sprint(stats.Failed))
	}
	timing.Load = time.Since(loadStart)

	// Stage 2: split
	chunkStart := time.Now()
	r.renderer.UpdateProgress(ui.ProgressEvent{Stage: ui.StageChunking, Message: fmt.Sprintf("%d documents", len(docs))})
	splitter, err := chunk.NewSplitter(chunk.Options{
		ChunkSize:    r.config.Chunking.ChunkSize,
		ChunkOverlap: r.config.Chunking.ChunkOverlap,
	}, r.logger)
	if err != nil {
		return nil, err
	}
	chunks, err := splitter.Split(ctx, docs)
	if err != nil {
		if derrors.GetCode(err) == derrors.ErrCodeEmptyInput {
			return nil, derrors.New(derrors.ErrCodeEmptyInput,
				"No chunks created from documents. Check chunk size and input files.", err).
				WithStage(derrors.StageChunk).
				WithDetail("path", root)
		}
		return nil, err
	}
	timing.Chunk = time.Since(chunkStart)

	// Stage 3: embed and build the graph
	embedStart := time.Now()
	var reported atomic.Int64
	idx, err := store.Build(ctx, chunks, r.embedder, store.BuildOptions{
		Workers:   r.config.Index.Workers,
		BatchSize: r.config.Embeddings.BatchSize,
		Timeout:   r.config.Embeddings.Timeout,
		Metric:    r.config.Index.Metric,
		Graph: store.GraphParams{
			M:        r.config.Index.M,
			EfSearch: r.config.Index.EfSearch,
		},
		Progress: func(done, total int) {
			// Batches finish out of order; only report forward progress.
			for {
				prev := reported.Load()
				if int64(done) <= prev {
					return
				}
				if reported.CompareAndSwap(prev, int64(done)) {
					break
				}
			}
			r.renderer.UpdateProgress(ui.ProgressEvent{Stage: ui.StageEmbedding, Current: done, Total: total, Message: "chunks"})
		},
		Logger: r.logger,
	})
	if err != nil {
		return nil, err
	}
	timing.Embed = time.Since(embedStart)

	// Stage 4: persist
	persistStart := time.Now()
	r.renderer.UpdateProgress(ui.ProgressEvent{Stage: ui.StagePersisting, Message: location})
	if err := store.Persist(ctx, idx, location); err != nil {
		return nil, err
	}
	timing.Persist = time.Since(persistStart)

	result := &RunnerResult{
		Index:       idx,
		Files:       stats.Files,
		FailedFiles: stats.Failed,
		Documents:   len(docs),
		Chunks:      len(chunks),
		Stages:      timing,
	}

	if r.config.Index.Verify {
		check, err := Verify(ctx, idx, location, r.embedder)
		if err != nil {
			return nil, err
		}
		if !check.OK() {
			return nil, verifyError(location, check)
		}
		result.Verified = true
	}

	result.Duration = time.Since(start)
	r.renderer.Complete(ui.CompletionStats{
		Files:     result.Files,
		Documents: result.Documents,
		Chunks:    result.Chunks,
		Duration:  result.Duration,
		Warnings:  result.FailedFiles,
		Location:  location,
		Stages:    timing,
		Embedder:  ui.EmbedderInfo{Model: idx.Model(), Dimensions: idx.Dimensions()},
	})

	chunksPerSec := 0.0
	if timing.Embed.Seconds() > 0 {
		chunksPerSec = float64(len(chunks)) / timing.Embed.Seconds()
	}
	r.logger.Info("index_complete",
		slog.Int("files", result.Files),
		slog.Int("failed_files", result.FailedFiles),
		slog.Int("documents", result.Documents),
		slog.Int("chunks", result.Chunks),
		slog.Int64("duration_total_ms", result.Duration.Milliseconds()),
		slog.Int64("duration_load_ms", timing.Load.Milliseconds()),
		slog.Int64("duration_chunk_ms", timing.Chunk.Milliseconds()),
		slog.Int64("duration_embed_ms", timing.Embed.Milliseconds()),
		slog.Int64("duration_persist_ms", timing.Persist.Milliseconds()),
		slog.String("embedder_model", idx.Model()),
		slog.Int("embedder_dimensions", idx.Dimensions()),
		slog.Float64("chunks_per_sec", chunksPerSec),
		slog.Bool("verified", result.Verified),
		slog.String("location", location))

	return result, nil
}

// Open loads the snapshot at the configured index location. It never falls
// back to rebuilding. A configured embedding dimension is checked against
// the snapshot.
func (r *Runner) Open(ctx context.Context) (*store.Index, error) {
	location := r.config.Paths.IndexLocation
	r.renderer.UpdateProgress(ui.ProgressEvent{Stage: ui.StageLoadingIndex, Message: location})
	return store.Load(ctx, location, r.config.Embeddings.Dimensions)
}

// Prepare returns a ready index: rebuilt when rebuild is true, loaded
// otherwise.
func (r *Runner) Prepare(ctx context.Context, rebuild bool) (*store.Index, error) {
	if rebuild {
		result, err := r.Rebuild(ctx)
		if err != nil {
			return nil, err
		}
		return result.Index, nil
	}
	return r.Open(ctx)
}

package ui

import (
	"fmt"
	"io"
	"sync"
	"time"
)

// PlainRenderer writes one line per event (for CI and pipes).
type PlainRenderer struct {
	mu  sync.Mutex
	out io.Writer
}

// NewPlainRenderer creates a plain text renderer.
func NewPlainRenderer(cfg Config) *PlainRenderer {
	return &PlainRenderer{out: cfg.Output}
}

// UpdateProgress implements Renderer.
func (r *PlainRenderer) UpdateProgress(event ProgressEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()

	// Format: [STAGE] current/total - message
	if event.Total > 0 {
		_, _ = fmt.Fprintf(r.out, "[%s] %d/%d - %s\n", event.Stage.Icon(), event.Current, event.Total, event.Message)
	} else if event.Message != "" {
		_, _ = fmt.Fprintf(r.out, "[%s] %s\n", event.Stage.Icon(), event.Message)
	}
}

// AddError implements Renderer.
func (r *PlainRenderer) AddError(event ErrorEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	writeError(r.out, event)
}

// Complete implements Renderer.
func (r *PlainRenderer) Complete(stats CompletionStats) {
	r.mu.Lock()
	defer r.mu.Unlock()
	writeSummary(r.out, stats)
}

func writeError(out io.Writer, event ErrorEvent) {
	prefix := "ERROR"
	if event.IsWarn {
		prefix = "WARN"
	}
	if event.File != "" {
		_, _ = fmt.Fprintf(out, "%s: %s: %v\n", prefix, event.File, event.Err)
	} else {
		_, _ = fmt.Fprintf(out, "%s: %v\n", prefix, event.Err)
	}
}

func writeSummary(out io.Writer, stats CompletionStats) {
	_, _ = fmt.Fprintf(out, "Complete: %d files, %d documents, %d chunks indexed in %s",
		stats.Files, stats.Documents, stats.Chunks, stats.Duration.Round(100*time.Millisecond))
	if stats.Warnings > 0 {
		_, _ = fmt.Fprintf(out, " (%d warnings)", stats.Warnings)
	}
	_, _ = fmt.Fprintln(out)

	if stats.Stages.Embed > 0 {
		_, _ = fmt.Fprintln(out)
		_, _ = fmt.Fprintln(out, "Stage Breakdown:")
		_, _ = fmt.Fprintf(out, "  Load:    %s\n", stats.Stages.Load.Round(time.Millisecond))
		_, _ = fmt.Fprintf(out, "  Chunk:   %s\n", stats.Stages.Chunk.Round(time.Millisecond))
		if stats.Chunks > 0 {
			chunksPerSec := float64(stats.Chunks) / stats.Stages.Embed.Seconds()
			_, _ = fmt.Fprintf(out, "  Embed:   %s (%d chunks @ %.1f/sec)\n",
				stats.Stages.Embed.Round(time.Millisecond), stats.Chunks, chunksPerSec)
		}
		_, _ = fmt.Fprintf(out, "  Persist: %s\n", stats.Stages.Persist.Round(time.Millisecond))
	}

	if stats.Embedder.Model != "" {
		_, _ = fmt.Fprintln(out)
		_, _ = fmt.Fprintf(out, "Embedder: %s (%d dims)\n", stats.Embedder.Model, stats.Embedder.Dimensions)
	}
	if stats.Location != "" {
		_, _ = fmt.Fprintf(out, "Index:    %s\n", stats.Location)
	}
}

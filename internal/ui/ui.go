// Package ui renders pipeline progress on the terminal.
package ui

import (
	"io"
	"os"
	"time"

	"github.com/mattn/go-isatty"
)

// Stage represents a pipeline stage.
type Stage int

const (
	// StageFinding walks the document root.
	StageFinding Stage = iota
	// StageLoading parses files into documents.
	StageLoading
	// StageChunking splits documents into chunks.
	StageChunking
	// StageEmbedding embeds chunks and builds the graph.
	StageEmbedding
	// StagePersisting writes the snapshot.
	StagePersisting
	// StageLoadingIndex reads an existing snapshot.
	StageLoadingIndex
	// StageComplete indicates the run finished.
	StageComplete
)

// String returns the human-readable stage name.
func (s Stage) String() string {
	switch s {
	case StageFinding:
		return "Finding"
	case StageLoading:
		return "Loading"
	case StageChunking:
		return "Chunking"
	case StageEmbedding:
		return "Embedding"
	case StagePersisting:
		return "Persisting"
	case StageLoadingIndex:
		return "Opening"
	case StageComplete:
		return "Complete"
	default:
		return "Unknown"
	}
}

// Icon returns the short stage tag for plain text output.
func (s Stage) Icon() string {
	switch s {
	case StageFinding:
		return "FIND"
	case StageLoading:
		return "LOAD"
	case StageChunking:
		return "CHUNK"
	case StageEmbedding:
		return "EMBED"
	case StagePersisting:
		return "SAVE"
	case StageLoadingIndex:
		return "OPEN"
	case StageComplete:
		return "DONE"
	default:
		return "???"
	}
}

// ProgressEvent represents a progress update.
type ProgressEvent struct {
	Stage   Stage
	Current int
	Total   int
	Message string
}

// ErrorEvent represents a non-fatal problem during a run.
type ErrorEvent struct {
	File   string
	Err    error
	IsWarn bool
}

// StageTimings tracks duration for each stage.
type StageTimings struct {
	Load    time.Duration // find + parse
	Chunk   time.Duration
	Embed   time.Duration // embedding + graph build
	Persist time.Duration
}

// EmbedderInfo describes the embedding backend.
type EmbedderInfo struct {
	Model      string
	Dimensions int
}

// CompletionStats contains final run statistics.
type CompletionStats struct {
	Files     int
	Documents int
	Chunks    int
	Duration  time.Duration
	Warnings  int
	Location  string
	Stages    StageTimings
	Embedder  EmbedderInfo
}

// Renderer displays progress. Implementations are safe for concurrent use.
type Renderer interface {
	// UpdateProgress updates the progress display.
	UpdateProgress(event ProgressEvent)

	// AddError reports a non-fatal problem.
	AddError(event ErrorEvent)

	// Complete prints the run summary.
	Complete(stats CompletionStats)
}

// Config configures a renderer.
type Config struct {
	Output     io.Writer
	ForcePlain bool
	NoColor    bool
}

// ConfigOption is a function that modifies Config.
type ConfigOption func(*Config)

// WithForcePlain forces plain line-per-event output.
func WithForcePlain(force bool) ConfigOption {
	return func(c *Config) {
		c.ForcePlain = force
	}
}

// WithNoColor disables color output.
func WithNoColor(noColor bool) ConfigOption {
	return func(c *Config) {
		c.NoColor = noColor
	}
}

// NewConfig creates a Config with the given output and options.
func NewConfig(output io.Writer, opts ...ConfigOption) Config {
	cfg := Config{Output: output}
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

// NewRenderer returns a single-line live renderer for interactive terminals
// and a plain renderer for pipes, CI, or when plain output is forced.
func NewRenderer(cfg Config) Renderer {
	if cfg.ForcePlain || !IsTTY(cfg.Output) || DetectCI() {
		return NewPlainRenderer(cfg)
	}
	if DetectNoColor() {
		cfg.NoColor = true
	}
	return NewLineRenderer(cfg)
}

// Discard is a Renderer that drops every event.
var Discard Renderer = discard{}

type discard struct{}

func (discard) UpdateProgress(ProgressEvent) {}
func (discard) AddError(ErrorEvent)          {}
func (discard) Complete(CompletionStats)     {}

// IsTTY checks if output is a terminal.
func IsTTY(w io.Writer) bool {
	if w == nil {
		return false
	}
	if f, ok := w.(*os.File); ok {
		return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
	}
	return false
}

// DetectNoColor checks if the NO_COLOR environment variable is set.
func DetectNoColor() bool {
	_, exists := os.LookupEnv("NO_COLOR")
	return exists
}

// DetectCI checks if running in a CI environment.
func DetectCI() bool {
	ciVars := []string{"CI", "GITHUB_ACTIONS", "GITLAB_CI", "JENKINS_URL", "TRAVIS"}
	for _, v := range ciVars {
		if _, exists := os.LookupEnv(v); exists {
			return true
		}
	}
	return false
}

package ui

import (
	"bytes"
	"errors"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"github.com/stretchr/testify/assert"
)

func TestStage_NamesAndIcons(t *testing.T) {
	stages := []Stage{StageFinding, StageLoading, StageChunking, StageEmbedding, StagePersisting, StageLoadingIndex, StageComplete}
	seen := map[string]bool{}
	for _, s := range stages {
		assert.NotEqual(t, "Unknown", s.String())
		assert.NotEqual(t, "???", s.Icon())
		assert.False(t, seen[s.Icon()], "duplicate icon %s", s.Icon())
		seen[s.Icon()] = true
	}
	assert.Equal(t, "Unknown", Stage(99).String())
}

func TestNewRenderer_NonTTYIsPlain(t *testing.T) {
	// Given: a buffer, which is never a terminal
	buf := &bytes.Buffer{}

	// When: creating a renderer
	r := NewRenderer(NewConfig(buf))

	// Then: plain output is used
	_, ok := r.(*PlainRenderer)
	assert.True(t, ok)
	assert.False(t, IsTTY(buf))
	assert.False(t, IsTTY(nil))
}

func TestIsTTY_RegularFile(t *testing.T) {
	f, err := os.CreateTemp(t.TempDir(), "out")
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = f.Close() }()

	assert.False(t, IsTTY(f))
}

func TestDetectCI(t *testing.T) {
	t.Setenv("GITHUB_ACTIONS", "true")
	assert.True(t, DetectCI())
}

func TestPlainRenderer_Output(t *testing.T) {
	// Given: a plain renderer
	buf := &bytes.Buffer{}
	r := NewPlainRenderer(NewConfig(buf))

	// When: reporting progress, a warning and completion
	r.UpdateProgress(ProgressEvent{Stage: StageEmbedding, Current: 8, Total: 32, Message: "chunks"})
	r.UpdateProgress(ProgressEvent{Stage: StageFinding, Message: "Searching ./my_docs"})
	r.UpdateProgress(ProgressEvent{Stage: StageChunking})
	r.AddError(ErrorEvent{File: "bad.pdf", Err: errors.New("malformed"), IsWarn: true})
	r.Complete(CompletionStats{
		Files: 3, Documents: 5, Chunks: 40, Duration: 1500 * time.Millisecond, Warnings: 1,
		Location: "./index_store",
		Stages:   StageTimings{Embed: 2 * time.Second},
		Embedder: EmbedderInfo{Model: "nomic-embed-text", Dimensions: 768},
	})

	// Then: each event is one readable line without ANSI codes
	out := buf.String()
	assert.Contains(t, out, "[EMBED] 8/32 - chunks\n")
	assert.Contains(t, out, "[FIND] Searching ./my_docs\n")
	assert.NotContains(t, out, "[CHUNK]")
	assert.Contains(t, out, "WARN: bad.pdf: malformed\n")
	assert.Contains(t, out, "Complete: 3 files, 5 documents, 40 chunks indexed in 1.5s (1 warnings)")
	assert.Contains(t, out, "40 chunks @ 20.0/sec")
	assert.Contains(t, out, "Embedder: nomic-embed-text (768 dims)")
	assert.Contains(t, out, "Index:    ./index_store")
	assert.NotContains(t, out, "\033[")
}

func TestLineRenderer_RedrawsInPlace(t *testing.T) {
	buf := &bytes.Buffer{}
	r := NewLineRenderer(NewConfig(buf, WithNoColor(true)))

	r.UpdateProgress(ProgressEvent{Stage: StageEmbedding, Current: 12, Total: 24})
	r.UpdateProgress(ProgressEvent{Stage: StageEmbedding, Current: 24, Total: 24})
	r.AddError(ErrorEvent{Err: errors.New("slow batch"), IsWarn: true})
	r.Complete(CompletionStats{Chunks: 24})

	out := buf.String()
	assert.Equal(t, 2, strings.Count(out, "Embedding"))
	assert.Contains(t, out, "["+strings.Repeat("=", 12)+strings.Repeat(" ", 12)+"] 12/24")
	assert.Contains(t, out, "["+strings.Repeat("=", 24)+"] 24/24")
	assert.Contains(t, out, "\nWARN: slow batch\n")
	assert.Contains(t, out, "✓ Complete:")
	assert.NotContains(t, out, "\033[38;5;")
}

func TestLineRenderer_Color(t *testing.T) {
	// Given: a renderer whose terminal supports 256 colors
	buf := &bytes.Buffer{}
	term := lipgloss.NewRenderer(buf)
	term.SetColorProfile(termenv.ANSI256)
	r := NewLineRenderer(NewConfig(buf))
	r.styles = DefaultStyles(term)

	// When: reporting progress, a failure and completion
	r.UpdateProgress(ProgressEvent{Stage: StageLoading, Current: 1, Total: 2, Message: "a.md"})
	r.AddError(ErrorEvent{File: "b.pdf", Err: errors.New("malformed")})
	r.Complete(CompletionStats{Chunks: 2})

	// Then: each part carries its palette color
	out := buf.String()
	assert.Contains(t, out, "\033[38;5;"+ColorLimeDim+"m")
	assert.Contains(t, out, "\033[38;5;"+ColorRed+"mERROR: b.pdf: malformed")
	assert.Contains(t, out, ColorLime+"m✓")
	assert.Contains(t, out, "a.md")
}

func TestLineRenderer_NonTerminalOutputHasNoColor(t *testing.T) {
	// Given: color allowed but output that is not a terminal
	buf := &bytes.Buffer{}
	r := NewLineRenderer(NewConfig(buf))

	// When: reporting progress
	r.UpdateProgress(ProgressEvent{Stage: StageLoading, Message: "a.md"})

	// Then: lipgloss downgrades the styles to plain text
	assert.Contains(t, buf.String(), "Loading")
	assert.NotContains(t, buf.String(), "\033[38;5;")
}

func TestGetStyles(t *testing.T) {
	term := lipgloss.NewRenderer(&bytes.Buffer{})
	term.SetColorProfile(termenv.ANSI256)

	assert.Equal(t, "x", GetStyles(term, true).Error.Render("x"))
	assert.NotEqual(t, "x", GetStyles(term, false).Error.Render("x"))
}

func TestDiscard(t *testing.T) {
	Discard.UpdateProgress(ProgressEvent{})
	Discard.AddError(ErrorEvent{})
	Discard.Complete(CompletionStats{})
}

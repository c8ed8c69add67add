package ui

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"
)

const (
	clearLine = "\r\033[2K"
	barWidth  = 24
)

// LineRenderer redraws a single status line in place on a terminal.
type LineRenderer struct {
	mu     sync.Mutex
	out    io.Writer
	styles Styles
	active bool
}

// NewLineRenderer creates a live single-line renderer.
func NewLineRenderer(cfg Config) *LineRenderer {
	return &LineRenderer{
		out:    cfg.Output,
		styles: GetStyles(lipgloss.NewRenderer(cfg.Output), cfg.NoColor),
	}
}

// UpdateProgress implements Renderer.
func (r *LineRenderer) UpdateProgress(event ProgressEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var sb strings.Builder
	sb.WriteString(clearLine)
	sb.WriteString(r.styles.Stage.Render(fmt.Sprintf("%-10s", event.Stage.String())))
	if event.Total > 0 {
		sb.WriteByte(' ')
		sb.WriteString(r.styles.Progress.Render(bar(event.Current, event.Total)))
		sb.WriteByte(' ')
		sb.WriteString(r.styles.Label.Render(fmt.Sprintf("%d/%d", event.Current, event.Total)))
	}
	if event.Message != "" {
		sb.WriteByte(' ')
		sb.WriteString(event.Message)
	}
	_, _ = io.WriteString(r.out, sb.String())
	r.active = true
}

// AddError implements Renderer.
func (r *LineRenderer) AddError(event ErrorEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.breakLine()
	style := r.styles.Error
	if event.IsWarn {
		style = r.styles.Warning
	}
	var sb strings.Builder
	writeError(&sb, event)
	_, _ = io.WriteString(r.out, style.Render(strings.TrimSuffix(sb.String(), "\n"))+"\n")
}

// Complete implements Renderer.
func (r *LineRenderer) Complete(stats CompletionStats) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.active {
		_, _ = io.WriteString(r.out, clearLine)
		r.active = false
	}
	_, _ = io.WriteString(r.out, r.styles.Success.Render("✓")+" ")
	writeSummary(r.out, stats)
}

// breakLine ends the live line so the next write starts clean.
func (r *LineRenderer) breakLine() {
	if r.active {
		_, _ = io.WriteString(r.out, "\n")
		r.active = false
	}
}

func bar(current, total int) string {
	filled := 0
	if total > 0 {
		filled = min(barWidth, current*barWidth/total)
	}
	return "[" + strings.Repeat("=", filled) + strings.Repeat(" ", barWidth-filled) + "]"
}

// Package output provides consistent CLI output formatting.
package output

import (
	"fmt"
	"io"
	"strings"
)

// DefaultSnippetLength is the number of runes shown per search result.
const DefaultSnippetLength = 160

// Writer provides formatted output for CLI.
type Writer struct {
	out io.Writer
}

// New creates a new output Writer.
func New(out io.Writer) *Writer {
	return &Writer{out: out}
}

// Status prints a status message with an icon.
// Errors from writing are intentionally ignored for console output.
func (w *Writer) Status(icon, msg string) {
	if icon != "" {
		_, _ = fmt.Fprintf(w.out, "%s %s\n", icon, msg)
	} else {
		_, _ = fmt.Fprintf(w.out, "   %s\n", msg)
	}
}

// Statusf prints a formatted status message with an icon.
func (w *Writer) Statusf(icon, format string, args ...any) {
	w.Status(icon, fmt.Sprintf(format, args...))
}

// Success prints a success message with checkmark.
func (w *Writer) Success(msg string) {
	w.Status("✅", msg)
}

// Successf prints a formatted success message.
func (w *Writer) Successf(format string, args ...any) {
	w.Success(fmt.Sprintf(format, args...))
}

// Warning prints a warning message.
func (w *Writer) Warning(msg string) {
	w.Status("⚠️ ", msg)
}

// Warningf prints a formatted warning message.
func (w *Writer) Warningf(format string, args ...any) {
	w.Warning(fmt.Sprintf(format, args...))
}

// Error prints an error message.
func (w *Writer) Error(msg string) {
	w.Status("❌", msg)
}

// Code prints a block with indentation.
func (w *Writer) Code(content string) {
	_, _ = fmt.Fprintln(w.out)
	for _, line := range strings.Split(content, "\n") {
		_, _ = fmt.Fprintf(w.out, "  %s\n", line)
	}
	_, _ = fmt.Fprintln(w.out)
}

// Newline prints an empty line.
func (w *Writer) Newline() {
	_, _ = fmt.Fprintln(w.out)
}

// KeyValue prints an aligned "key: value" line.
func (w *Writer) KeyValue(key string, value any) {
	_, _ = fmt.Fprintf(w.out, "  %-12s %v\n", key+":", value)
}

// Result prints one ranked search hit with a single-line snippet.
func (w *Writer) Result(rank int, location string, score float64, text string) {
	_, _ = fmt.Fprintf(w.out, "%d. %s (score %.3f)\n", rank, location, score)
	_, _ = fmt.Fprintf(w.out, "   %s\n", Snippet(text, DefaultSnippetLength))
}

// Answer prints an answer followed by its sources.
func (w *Writer) Answer(text string, sources []string) {
	_, _ = fmt.Fprintln(w.out, text)
	if len(sources) == 0 {
		return
	}
	_, _ = fmt.Fprintln(w.out)
	_, _ = fmt.Fprintln(w.out, "Sources:")
	for _, s := range sources {
		_, _ = fmt.Fprintf(w.out, "  - %s\n", s)
	}
}

// Snippet collapses whitespace and cuts text to at most n runes, adding an
// ellipsis when cut.
func Snippet(text string, n int) string {
	flat := strings.Join(strings.Fields(text), " ")
	runes := []rune(flat)
	if n <= 0 || len(runes) <= n {
		return flat
	}
	if n == 1 {
		return "…"
	}
	return strings.TrimRight(string(runes[:n-1]), " ") + "…"
}

// Package document discovers and loads source files into Documents.
//
// Supported formats are plain text, Markdown, PDF (one Document per page) and
// CSV (one Document per row). A file that fails to load is logged and skipped.
package document

import (
	"path/filepath"
	"strings"
)

// Document is one loaded unit of source text.
// SourceID is stable across runs (the path as found under the document root).
type Document struct {
	SourceID string
	Content  string
	Metadata map[string]string
}

// Metadata keys set by the loaders.
const (
	MetaSource = "source"
	MetaPage   = "page"
	MetaRow    = "row"
	MetaFormat = "format"
)

// Format identifies how a file is parsed.
type Format string

const (
	FormatText     Format = "text"
	FormatMarkdown Format = "markdown"
	FormatPDF      Format = "pdf"
	FormatCSV      Format = "csv"
)

var extensions = map[string]Format{
	".txt":      FormatText,
	".md":       FormatMarkdown,
	".markdown": FormatMarkdown,
	".pdf":      FormatPDF,
	".csv":      FormatCSV,
}

// FormatOf returns the format for path and whether it is supported.
func FormatOf(path string) (Format, bool) {
	f, ok := extensions[strings.ToLower(filepath.Ext(path))]
	return f, ok
}

// SupportedExtensions lists the recognized file extensions.
func SupportedExtensions() []string {
	return []string{".txt", ".md", ".markdown", ".pdf", ".csv"}
}

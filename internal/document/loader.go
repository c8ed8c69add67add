package document

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"
)

// LoadStats summarizes one Load call.
type LoadStats struct {
	Files     int
	Loaded    int
	Failed    int
	Documents int
}

// Loader reads files into Documents.
type Loader struct {
	logger *slog.Logger
}

// NewLoader creates a Loader. A nil logger uses slog.Default().
func NewLoader(logger *slog.Logger) *Loader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Loader{logger: logger}
}

// Load reads paths in order. Per-file failures are logged at warn level and skipped;
// only context cancellation aborts the whole load.
func (l *Loader) Load(ctx context.Context, paths []string) ([]Document, LoadStats, error) {
	stats := LoadStats{Files: len(paths)}
	var docs []Document

	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return nil, stats, err
		}

		loaded, err := l.LoadFile(path)
		if err != nil {
			stats.Failed++
			l.logger.Warn("document_load_failed",
				slog.String("path", path),
				slog.String("error", err.Error()))
			continue
		}

		stats.Loaded++
		stats.Documents += len(loaded)
		docs = append(docs, loaded...)
		l.logger.Debug("document_loaded",
			slog.String("path", path),
			slog.Int("documents", len(loaded)))
	}

	return docs, stats, nil
}

// LoadFile reads a single file according to its extension.
func (l *Loader) LoadFile(path string) ([]Document, error) {
	format, ok := FormatOf(path)
	if !ok {
		return nil, fmt.Errorf("unsupported file type: %s", path)
	}

	switch format {
	case FormatPDF:
		return loadPDF(path)
	case FormatCSV:
		return loadCSV(path)
	default:
		return loadText(path, format)
	}
}

func baseMetadata(path string, format Format) map[string]string {
	return map[string]string{
		MetaSource: path,
		MetaFormat: string(format),
	}
}

func loadText(path string, format Format) ([]Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	if !utf8.Valid(data) {
		return nil, fmt.Errorf("%s is not valid UTF-8", path)
	}

	return []Document{{
		SourceID: path,
		Content:  string(data),
		Metadata: baseMetadata(path, format),
	}}, nil
}

// loadPDF emits one Document per page that has text.
// The pdf package panics on some malformed files, so panics become errors here.
func loadPDF(path string) (docs []Document, err error) {
	defer func() {
		if r := recover(); r != nil {
			docs = nil
			err = fmt.Errorf("parse pdf %s: %v", path, r)
		}
	}()

	f, rdr, err := pdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open pdf %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	fonts := make(map[string]*pdf.Font)
	for i := 1; i <= rdr.NumPage(); i++ {
		page := rdr.Page(i)
		if page.V.IsNull() {
			continue
		}
		for _, name := range page.Fonts() {
			if _, ok := fonts[name]; !ok {
				font := page.Font(name)
				fonts[name] = &font
			}
		}

		text, err := page.GetPlainText(fonts)
		if err != nil {
			return nil, fmt.Errorf("extract text from %s page %d: %w", path, i, err)
		}
		if strings.TrimSpace(text) == "" {
			continue
		}

		meta := baseMetadata(path, FormatPDF)
		meta[MetaPage] = strconv.Itoa(i)
		docs = append(docs, Document{SourceID: path, Content: text, Metadata: meta})
	}

	if len(docs) == 0 {
		return nil, fmt.Errorf("no extractable text in %s", path)
	}
	return docs, nil
}

// loadCSV emits one Document per data row as "header: value" lines.
func loadCSV(path string) ([]Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1

	header, err := r.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%s is empty", path)
		}
		return nil, fmt.Errorf("read header of %s: %w", path, err)
	}
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], "\ufeff")
	}

	var docs []Document
	for row := 0; ; row++ {
		record, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read row %d of %s: %w", row, path, err)
		}

		var sb strings.Builder
		for i, value := range record {
			name := fmt.Sprintf("column_%d", i)
			if i < len(header) && strings.TrimSpace(header[i]) != "" {
				name = strings.TrimSpace(header[i])
			}
			if i > 0 {
				sb.WriteByte('\n')
			}
			sb.WriteString(name)
			sb.WriteString(": ")
			sb.WriteString(value)
		}

		meta := baseMetadata(path, FormatCSV)
		meta[MetaRow] = strconv.Itoa(row)
		docs = append(docs, Document{SourceID: path, Content: sb.String(), Metadata: meta})
	}

	return docs, nil
}

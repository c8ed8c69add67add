package chunk

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"strings"
	"unicode"

	"github.com/Aman-CERP/docrag/internal/document"
	derrors "github.com/Aman-CERP/docrag/internal/errors"
)

// Options configures the splitter.
type Options struct {
	ChunkSize    int // maximum runes per chunk
	ChunkOverlap int // runes shared by consecutive chunks of one Document
}

// Splitter cuts Documents into overlapping chunks, preferring natural boundaries:
// paragraph break, then sentence end, then whitespace, then a hard cut.
type Splitter struct {
	options Options
	logger  *slog.Logger
}

// NewSplitter validates opts and returns a Splitter.
func NewSplitter(opts Options, logger *slog.Logger) (*Splitter, error) {
	if opts.ChunkSize <= 0 {
		return nil, derrors.New(derrors.ErrCodeInvalidInput,
			fmt.Sprintf("chunk size must be positive, got %d", opts.ChunkSize), nil).
			WithStage(derrors.StageChunk)
	}
	if opts.ChunkOverlap < 0 || opts.ChunkOverlap >= opts.ChunkSize {
		return nil, derrors.New(derrors.ErrCodeInvalidInput,
			fmt.Sprintf("chunk overlap must be in [0, %d), got %d", opts.ChunkSize, opts.ChunkOverlap), nil).
			WithStage(derrors.StageChunk)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Splitter{options: opts, logger: logger}, nil
}

// Split is a convenience wrapper around NewSplitter and Splitter.Split.
func Split(docs []document.Document, size, overlap int) ([]Chunk, error) {
	s, err := NewSplitter(Options{ChunkSize: size, ChunkOverlap: overlap}, nil)
	if err != nil {
		return nil, err
	}
	return s.Split(context.Background(), docs)
}

// Split returns the chunks of every Document in input order.
// Blank Documents are skipped; if nothing is left the result is an empty-input error.
func (s *Splitter) Split(ctx context.Context, docs []document.Document) ([]Chunk, error) {
	if len(docs) == 0 {
		return nil, derrors.New(derrors.ErrCodeEmptyInput, "no documents to chunk", nil).
			WithStage(derrors.StageChunk)
	}

	var chunks []Chunk
	for i, doc := range docs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if strings.TrimSpace(doc.Content) == "" {
			s.logger.Debug("document_skipped_blank", slog.String("source_id", doc.SourceID))
			continue
		}
		chunks = append(chunks, s.splitDocument(i, doc)...)
	}

	if len(chunks) == 0 {
		return nil, derrors.New(derrors.ErrCodeEmptyInput, "all documents are blank", nil).
			WithStage(derrors.StageChunk).
			WithDetail("documents", fmt.Sprint(len(docs)))
	}

	s.logger.Debug("documents_chunked",
		slog.Int("documents", len(docs)),
		slog.Int("chunks", len(chunks)))

	return chunks, nil
}

func (s *Splitter) splitDocument(docIndex int, doc document.Document) []Chunk {
	runes := []rune(doc.Content)
	size, overlap := s.options.ChunkSize, s.options.ChunkOverlap

	var chunks []Chunk
	emit := func(start, end, shared int) {
		position := len(chunks)
		chunks = append(chunks, Chunk{
			ID:                  chunkID(doc.SourceID, docIndex, position),
			SourceID:            doc.SourceID,
			Document:            docIndex,
			Position:            position,
			Text:                string(runes[start:end]),
			OverlapWithPrevious: shared,
			Offset:              start,
			Metadata:            maps.Clone(doc.Metadata),
		})
	}

	start, shared := 0, 0
	for {
		if len(runes)-start <= size {
			emit(start, len(runes), shared)
			return chunks
		}
		end := cutPoint(runes, start+overlap+1, start+size)
		emit(start, end, shared)
		start, shared = end-overlap, overlap
	}
}

// cutPoint returns an exclusive end in [minEnd, limit], preferring the latest
// paragraph break, then sentence end, then whitespace. minEnd > start+overlap
// guarantees the next window starts after the current one.
func cutPoint(runes []rune, minEnd, limit int) int {
	if end := lastBoundary(runes, minEnd, limit, isParagraphBreak); end > 0 {
		return end
	}
	if end := lastBoundary(runes, minEnd, limit, isSentenceEnd); end > 0 {
		return end
	}
	if end := lastBoundary(runes, minEnd, limit, isSpace); end > 0 {
		return end
	}
	return limit
}

// boundary reports whether a separator ends just before index end, i.e. runes[:end]
// finishes with it.
type boundary func(runes []rune, end int) bool

func lastBoundary(runes []rune, minEnd, limit int, at boundary) int {
	for end := limit; end >= minEnd; end-- {
		if at(runes, end) {
			return end
		}
	}
	return 0
}

func isParagraphBreak(runes []rune, end int) bool {
	return end >= 2 && runes[end-1] == '\n' && runes[end-2] == '\n'
}

func isSentenceEnd(runes []rune, end int) bool {
	if end < 2 || !unicode.IsSpace(runes[end-1]) {
		return false
	}
	switch runes[end-2] {
	case '.', '!', '?':
		return true
	}
	return false
}

func isSpace(runes []rune, end int) bool {
	return end >= 1 && unicode.IsSpace(runes[end-1])
}

// Reassemble rebuilds Document content from its chunks in position order.
func Reassemble(chunks []Chunk) string {
	var sb strings.Builder
	for _, c := range chunks {
		sb.WriteString(c.Novel())
	}
	return sb.String()
}

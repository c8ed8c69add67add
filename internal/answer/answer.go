// Package answer composes a grounded answer to a question from retrieved
// chunks using a text generation service.
package answer

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/Aman-CERP/docrag/internal/chunk"
	"github.com/Aman-CERP/docrag/internal/document"
	derrors "github.com/Aman-CERP/docrag/internal/errors"
	"github.com/Aman-CERP/docrag/internal/generate"
)

// DefaultMaxContextChars bounds the context section of the prompt.
const DefaultMaxContextChars = 12000

const promptTemplate = `Answer the following question based only on the provided context.
If the context does not contain the answer, say that you don't know.
Cite the source of every fact you use as [source: <id>].

Context:
%s

Question: %s`

const blockSeparator = "\n\n"

// Options configures a Synthesizer.
type Options struct {
	// MaxContextChars is the context budget in characters. Zero or less
	// means DefaultMaxContextChars.
	MaxContextChars int
	Logger          *slog.Logger
}

// Synthesizer turns a question and its retrieved chunks into an answer.
type Synthesizer struct {
	generator generate.Generator
	budget    int
	logger    *slog.Logger
}

// NewSynthesizer creates a Synthesizer backed by generator.
func NewSynthesizer(generator generate.Generator, opts Options) (*Synthesizer, error) {
	if generator == nil {
		return nil, derrors.InternalError("synthesizer requires a generator", nil)
	}
	if opts.MaxContextChars <= 0 {
		opts.MaxContextChars = DefaultMaxContextChars
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Synthesizer{generator: generator, budget: opts.MaxContextChars, logger: opts.Logger}, nil
}

// Compose asks the generator to answer question from chunks, which must be
// ordered most relevant first. The call makes one attempt.
func (s *Synthesizer) Compose(ctx context.Context, question string, chunks []chunk.Chunk) (string, error) {
	prompt, used, err := s.Prompt(question, chunks)
	if err != nil {
		return "", err
	}
	if used < len(chunks) {
		s.logger.Info("context_trimmed",
			slog.Int("chunks", len(chunks)),
			slog.Int("used", used),
			slog.Int("budget", s.budget))
	}

	start := time.Now()
	text, err := s.generator.Generate(ctx, prompt)
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		if _, ok := derrors.As(err); ok {
			return "", err
		}
		return "", derrors.New(derrors.ErrCodeGenerationService, "answer generation failed", err).
			WithStage(derrors.StageGenerate).
			WithDetail("model", s.generator.ModelName())
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return "", derrors.New(derrors.ErrCodeGenerationService, "generation service returned an empty answer", nil).
			WithStage(derrors.StageGenerate).
			WithDetail("model", s.generator.ModelName())
	}

	s.logger.Debug("answer_composed",
		slog.String("model", s.generator.ModelName()),
		slog.Int("context_chunks", used),
		slog.Int("prompt_chars", len([]rune(prompt))),
		slog.Duration("elapsed", time.Since(start)))

	return text, nil
}

// Prompt renders the generation prompt and reports how many chunks fit in
// the context budget.
func (s *Synthesizer) Prompt(question string, chunks []chunk.Chunk) (string, int, error) {
	if strings.TrimSpace(question) == "" {
		return "", 0, derrors.New(derrors.ErrCodeEmptyInput, "question is blank", nil).
			WithStage(derrors.StageCompose)
	}
	if len(chunks) == 0 {
		return "", 0, derrors.New(derrors.ErrCodeEmptyInput, "no context chunks to answer from", nil).
			WithStage(derrors.StageCompose)
	}

	blocks := fitBlocks(chunks, s.budget)
	return fmt.Sprintf(promptTemplate, strings.Join(blocks, blockSeparator), strings.TrimSpace(question)), len(blocks), nil
}

// fitBlocks renders context blocks, dropping from the end until they fit in
// budget characters. The first block always survives, truncated if needed.
func fitBlocks(chunks []chunk.Chunk, budget int) []string {
	blocks := make([]string, 0, len(chunks))
	total := 0
	for i, c := range chunks {
		block := Header(c) + "\n" + strings.TrimSpace(c.Text)
		size := len([]rune(block))
		if i > 0 {
			size += len(blockSeparator)
		}
		if total+size > budget {
			if i == 0 {
				blocks = append(blocks, truncate(block, budget))
			}
			break
		}
		blocks = append(blocks, block)
		total += size
	}
	return blocks
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}

// Header labels a context block with its source and location, e.g.
// "[source: manual.pdf, page 3]".
func Header(c chunk.Chunk) string {
	return "[source: " + Location(c) + "]"
}

// Location names where a chunk came from: "id", "id, page N" or "id, row N".
func Location(c chunk.Chunk) string {
	var sb strings.Builder
	sb.WriteString(c.SourceID)
	if page := c.Metadata[document.MetaPage]; page != "" {
		sb.WriteString(", page ")
		sb.WriteString(page)
	}
	if row := c.Metadata[document.MetaRow]; row != "" {
		sb.WriteString(", row ")
		sb.WriteString(row)
	}
	return sb.String()
}

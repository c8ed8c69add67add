package answer

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/docrag/internal/chunk"
	derrors "github.com/Aman-CERP/docrag/internal/errors"
)

// stubGenerator records prompts and returns a canned reply.
type stubGenerator struct {
	reply   string
	err     error
	prompts []string
}

func (g *stubGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	g.prompts = append(g.prompts, prompt)
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return g.reply, g.err
}

func (g *stubGenerator) ModelName() string { return "stub" }

func skyChunks() []chunk.Chunk {
	return []chunk.Chunk{
		{SourceID: "sky.txt", Text: "The sky is blue. "},
		{SourceID: "report.pdf", Text: "Rayleigh scattering.", Metadata: map[string]string{"page": "3"}},
		{SourceID: "data.csv", Text: "color: blue", Metadata: map[string]string{"row": "0"}},
	}
}

func TestCompose_BuildsGroundedPrompt(t *testing.T) {
	// Given: a synthesizer with a generous budget
	gen := &stubGenerator{reply: "  The sky is blue [source: sky.txt].\n"}
	s, err := NewSynthesizer(gen, Options{})
	require.NoError(t, err)

	// When: composing an answer
	text, err := s.Compose(context.Background(), "What color is the sky?", skyChunks())

	// Then: the answer is trimmed and the prompt carries every block in order
	require.NoError(t, err)
	assert.Equal(t, "The sky is blue [source: sky.txt].", text)
	require.Len(t, gen.prompts, 1)
	prompt := gen.prompts[0]
	assert.Contains(t, prompt, "based only on the provided context")
	assert.Contains(t, prompt, "Question: What color is the sky?")
	first := strings.Index(prompt, "[source: sky.txt]\nThe sky is blue.")
	second := strings.Index(prompt, "[source: report.pdf, page 3]\nRayleigh scattering.")
	third := strings.Index(prompt, "[source: data.csv, row 0]\ncolor: blue")
	require.True(t, first >= 0 && second >= 0 && third >= 0, prompt)
	assert.Less(t, first, second)
	assert.Less(t, second, third)
}

func TestPrompt_DropsLowestRelevanceChunksOverBudget(t *testing.T) {
	// Given: a budget that fits the first two blocks only
	chunks := skyChunks()
	budget := len("[source: sky.txt]\nThe sky is blue.") + 2 + len("[source: report.pdf, page 3]\nRayleigh scattering.")
	s, err := NewSynthesizer(&stubGenerator{}, Options{MaxContextChars: budget})
	require.NoError(t, err)

	// When: rendering the prompt
	prompt, used, err := s.Prompt("why?", chunks)

	// Then: the last chunk is dropped
	require.NoError(t, err)
	assert.Equal(t, 2, used)
	assert.Contains(t, prompt, "Rayleigh")
	assert.NotContains(t, prompt, "data.csv")
}

func TestPrompt_TruncatesFirstChunkWhenNothingFits(t *testing.T) {
	chunks := []chunk.Chunk{
		{SourceID: "long.txt", Text: strings.Repeat("word ", 100)},
		{SourceID: "other.txt", Text: "short"},
	}
	s, err := NewSynthesizer(&stubGenerator{}, Options{MaxContextChars: 40})
	require.NoError(t, err)

	prompt, used, err := s.Prompt("question", chunks)

	require.NoError(t, err)
	assert.Equal(t, 1, used)
	assert.Contains(t, prompt, "[source: long.txt]")
	assert.NotContains(t, prompt, "other.txt")
	section := prompt[strings.Index(prompt, "Context:\n")+len("Context:\n") : strings.Index(prompt, "\n\nQuestion:")]
	assert.Len(t, []rune(section), 40)
}

func TestCompose_EmptyInput(t *testing.T) {
	gen := &stubGenerator{reply: "unused"}
	s, err := NewSynthesizer(gen, Options{})
	require.NoError(t, err)

	tests := []struct {
		name     string
		question string
		chunks   []chunk.Chunk
	}{
		{"no chunks", "What color is the sky?", nil},
		{"blank question", " \n\t", skyChunks()},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.Compose(context.Background(), tt.question, tt.chunks)
			require.Error(t, err)
			assert.Equal(t, derrors.ErrCodeEmptyInput, derrors.GetCode(err))
			assert.Equal(t, derrors.StageCompose, derrors.GetStage(err))
		})
	}
	assert.Empty(t, gen.prompts, "generator must not be called")
}

func TestCompose_GeneratorFailure(t *testing.T) {
	cause := errors.New("connection refused")
	tests := []struct {
		name string
		gen  *stubGenerator
	}{
		{"plain error", &stubGenerator{err: cause}},
		{"blank answer", &stubGenerator{reply: "   "}},
		{"service error", &stubGenerator{err: derrors.New(derrors.ErrCodeGenerationService, "503", cause)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := NewSynthesizer(tt.gen, Options{})
			require.NoError(t, err)

			_, err = s.Compose(context.Background(), "q", skyChunks())

			require.Error(t, err)
			assert.Equal(t, derrors.ErrCodeGenerationService, derrors.GetCode(err))
			assert.True(t, derrors.IsRetryable(err))
			assert.Len(t, tt.gen.prompts, 1, "one attempt per call")
		})
	}
}

func TestCompose_CancelledContext(t *testing.T) {
	s, err := NewSynthesizer(&stubGenerator{reply: "x"}, Options{})
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = s.Compose(ctx, "q", skyChunks())

	assert.ErrorIs(t, err, context.Canceled)
}

func TestNewSynthesizer_RequiresGenerator(t *testing.T) {
	_, err := NewSynthesizer(nil, Options{})
	require.Error(t, err)
	assert.Equal(t, derrors.ErrCodeInternal, derrors.GetCode(err))
}

func TestHeader_Location(t *testing.T) {
	tests := []struct {
		name  string
		chunk chunk.Chunk
		want  string
	}{
		{name: "plain", chunk: chunk.Chunk{SourceID: "notes.txt"}, want: "notes.txt"},
		{name: "page", chunk: chunk.Chunk{SourceID: "manual.pdf", Metadata: map[string]string{"page": "3"}}, want: "manual.pdf, page 3"},
		{name: "row", chunk: chunk.Chunk{SourceID: "orders.csv", Metadata: map[string]string{"row": "12"}}, want: "orders.csv, row 12"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Location(tt.chunk))
			assert.Equal(t, "[source: "+tt.want+"]", Header(tt.chunk))
		})
	}
}

package rag

import (
	"context"
	"log/slog"
	"sync"

	"github.com/Aman-CERP/docrag/internal/answer"
	"github.com/Aman-CERP/docrag/internal/chunk"
	"github.com/Aman-CERP/docrag/internal/config"
	"github.com/Aman-CERP/docrag/internal/embed"
	derrors "github.com/Aman-CERP/docrag/internal/errors"
	"github.com/Aman-CERP/docrag/internal/generate"
	"github.com/Aman-CERP/docrag/internal/index"
	"github.com/Aman-CERP/docrag/internal/search"
	"github.com/Aman-CERP/docrag/internal/store"
	"github.com/Aman-CERP/docrag/internal/ui"
)

// Passage is one retrieved chunk with its relevance score.
type Passage struct {
	SourceID string
	Position int
	Ordinal  int
	Text     string
	Score    float64
	Metadata map[string]string
}

// Answer is a composed answer with the passages it was grounded on.
type Answer struct {
	Text     string
	Passages []Passage
}

// Stats summarizes a rebuild.
type Stats = index.RunnerResult

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithConfig sets the configuration. Defaults to config.NewConfig().
func WithConfig(cfg *config.Config) Option {
	return func(p *Pipeline) {
		p.config = cfg
	}
}

// WithEmbedder replaces the configured embedding provider.
func WithEmbedder(e embed.Embedder) Option {
	return func(p *Pipeline) {
		p.embedder = e
	}
}

// WithGenerator replaces the configured generation provider.
func WithGenerator(g generate.Generator) Option {
	return func(p *Pipeline) {
		p.generator = g
	}
}

// RetrievalOnly skips creating a generator. Ask and Compose then fail.
func RetrievalOnly() Option {
	return func(p *Pipeline) {
		p.retrievalOnly = true
	}
}

// WithRenderer reports rebuild progress.
func WithRenderer(r ui.Renderer) Option {
	return func(p *Pipeline) {
		p.renderer = r
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) {
		p.logger = logger
	}
}

// Pipeline owns one index and the components that build and query it.
type Pipeline struct {
	config    *config.Config
	embedder  embed.Embedder
	generator generate.Generator
	renderer  ui.Renderer
	logger    *slog.Logger

	retrievalOnly bool

	runner      *index.Runner
	retriever   *search.Retriever
	synthesizer *answer.Synthesizer
	strategy    search.Strategy

	mu  sync.RWMutex
	idx *store.Index
}

// New validates the configuration and creates a Pipeline. Providers are
// constructed from the config unless supplied as options; no network call
// is made here.
func New(opts ...Option) (*Pipeline, error) {
	p := &Pipeline{}
	for _, opt := range opts {
		opt(p)
	}
	if p.config == nil {
		p.config = config.NewConfig()
	}
	if p.logger == nil {
		p.logger = slog.Default()
	}
	if err := p.config.Validate(); err != nil {
		return nil, err
	}

	strategy, ok := search.ParseStrategy(p.config.Retrieval.Strategy)
	if !ok {
		return nil, derrors.ConfigError("unknown retrieval strategy "+p.config.Retrieval.Strategy, nil)
	}
	p.strategy = strategy

	var err error
	if p.embedder == nil {
		if p.embedder, err = embed.NewEmbedder(p.config.Embeddings); err != nil {
			return nil, err
		}
	}
	if p.generator == nil && !p.retrievalOnly {
		if p.generator, err = generate.NewGenerator(p.config.Generation); err != nil {
			return nil, err
		}
	}

	p.runner, err = index.NewRunner(index.RunnerDependencies{
		Config:   p.config,
		Embedder: p.embedder,
		Renderer: p.renderer,
		Logger:   p.logger,
	})
	if err != nil {
		return nil, err
	}

	p.retriever, err = search.NewRetriever(p.embedder,
		search.WithLambda(p.config.Retrieval.Lambda),
		search.WithFetchK(p.config.Retrieval.FetchK),
		search.WithApproximate(p.config.Retrieval.Approximate),
		search.WithExactThreshold(p.config.Retrieval.ExactThreshold),
		search.WithQueryTimeout(p.config.Embeddings.Timeout),
		search.WithQueryCache(p.config.Embeddings.CacheSize),
		search.WithLogger(p.logger))
	if err != nil {
		return nil, err
	}

	if p.generator != nil {
		p.synthesizer, err = answer.NewSynthesizer(p.generator, answer.Options{
			MaxContextChars: p.config.Generation.MaxContextChars,
			Logger:          p.logger,
		})
		if err != nil {
			return nil, err
		}
	}
	return p, nil
}

// Config returns the pipeline configuration.
func (p *Pipeline) Config() *config.Config {
	return p.config
}

// Rebuild indexes the document root, persists the snapshot and makes the
// new index current.
func (p *Pipeline) Rebuild(ctx context.Context) (*Stats, error) {
	result, err := p.runner.Rebuild(ctx)
	if err != nil {
		return nil, err
	}
	p.setIndex(result.Index)
	return result, nil
}

// Open loads the persisted snapshot and makes it current.
func (p *Pipeline) Open(ctx context.Context) error {
	idx, err := p.runner.Open(ctx)
	if err != nil {
		return err
	}
	p.setIndex(idx)
	return nil
}

// Prepare rebuilds or opens according to index.rebuild, unless an index is
// already current.
func (p *Pipeline) Prepare(ctx context.Context) error {
	if p.Index() != nil {
		return nil
	}
	if p.config.Index.Rebuild {
		_, err := p.Rebuild(ctx)
		return err
	}
	return p.Open(ctx)
}

// Index returns the current index, or nil before Rebuild or Open.
func (p *Pipeline) Index() *store.Index {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.idx
}

func (p *Pipeline) setIndex(idx *store.Index) {
	p.mu.Lock()
	p.idx = idx
	p.mu.Unlock()
}

// Retrieve returns the configured top-k passages for question using the
// configured strategy.
func (p *Pipeline) Retrieve(ctx context.Context, question string) ([]Passage, error) {
	return p.RetrieveWith(ctx, question, p.strategy, p.config.Retrieval.TopK)
}

// RetrieveWith is Retrieve with an explicit strategy and k.
func (p *Pipeline) RetrieveWith(ctx context.Context, question string, strategy search.Strategy, k int) ([]Passage, error) {
	results, err := p.retriever.Query(ctx, p.Index(), question, strategy, k)
	if err != nil {
		return nil, err
	}
	passages := make([]Passage, len(results))
	for i, r := range results {
		passages[i] = Passage{
			SourceID: r.Chunk.SourceID,
			Position: r.Chunk.Position,
			Ordinal:  r.Ordinal,
			Text:     r.Chunk.Text,
			Score:    r.Score,
			Metadata: r.Chunk.Metadata,
		}
	}
	return passages, nil
}

// Compose answers question from passages, most relevant first. It makes a
// single generation attempt.
func (p *Pipeline) Compose(ctx context.Context, question string, passages []Passage) (string, error) {
	if p.synthesizer == nil {
		return "", derrors.InternalError("pipeline was created without a generator", nil)
	}
	chunks := make([]chunk.Chunk, len(passages))
	for i, ps := range passages {
		chunks[i] = chunk.Chunk{SourceID: ps.SourceID, Position: ps.Position, Text: ps.Text, Metadata: ps.Metadata}
	}
	return p.synthesizer.Compose(ctx, question, chunks)
}

// Ask retrieves passages for question and composes an answer from them.
// The index must be current; call Prepare, Rebuild or Open first.
func (p *Pipeline) Ask(ctx context.Context, question string) (*Answer, error) {
	passages, err := p.Retrieve(ctx, question)
	if err != nil {
		return nil, err
	}
	text, err := p.Compose(ctx, question, passages)
	if err != nil {
		return nil, err
	}
	return &Answer{Text: text, Passages: passages}, nil
}

// Close releases the embedder.
func (p *Pipeline) Close() error {
	return p.embedder.Close()
}

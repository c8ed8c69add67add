package search

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/Aman-CERP/docrag/internal/embed"
	derrors "github.com/Aman-CERP/docrag/internal/errors"
	"github.com/Aman-CERP/docrag/internal/store"
)

// Retriever answers queries against an Index. It never modifies the index
// and is safe for concurrent use.
type Retriever struct {
	embedder       embed.Embedder
	lambda         float64
	fetchK         int
	exactThreshold int
	approximate    bool
	queryTimeout   time.Duration
	queryPrefix    string
	logger         *slog.Logger
}

// RetrieverOption configures a Retriever.
type RetrieverOption func(*Retriever)

// WithLambda sets the diversity trade-off in (0, 1]. 1 is pure relevance.
func WithLambda(lambda float64) RetrieverOption {
	return func(r *Retriever) {
		r.lambda = lambda
	}
}

// WithFetchK sets the candidate pool size for diversity.
func WithFetchK(n int) RetrieverOption {
	return func(r *Retriever) {
		if n > 0 {
			r.fetchK = n
		}
	}
}

// WithExactThreshold sets the index size up to which every entry is scored
// in approximate mode. It has no effect unless WithApproximate is enabled.
func WithExactThreshold(n int) RetrieverOption {
	return func(r *Retriever) {
		if n >= 0 {
			r.exactThreshold = n
		}
	}
}

// WithApproximate lets indexes larger than the exact threshold take their
// candidates from the HNSW graph. Results are then no longer guaranteed to
// be the exact top k, and indexes built separately from the same input may
// answer differently. Off by default.
func WithApproximate(enabled bool) RetrieverOption {
	return func(r *Retriever) {
		r.approximate = enabled
	}
}

// WithQueryTimeout bounds the question embedding call.
func WithQueryTimeout(d time.Duration) RetrieverOption {
	return func(r *Retriever) {
		if d > 0 {
			r.queryTimeout = d
		}
	}
}

// WithQueryPrefix prepends an instruction to questions before embedding,
// for models trained with asymmetric query/document prompts.
func WithQueryPrefix(prefix string) RetrieverOption {
	return func(r *Retriever) {
		r.queryPrefix = prefix
	}
}

// WithQueryCache wraps the embedder in an LRU cache of size entries.
func WithQueryCache(size int) RetrieverOption {
	return func(r *Retriever) {
		if _, ok := r.embedder.(*embed.CachedEmbedder); ok {
			return
		}
		r.embedder = embed.NewCachedEmbedder(r.embedder, size)
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) RetrieverOption {
	return func(r *Retriever) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// NewRetriever creates a retriever that embeds questions with embedder.
func NewRetriever(embedder embed.Embedder, opts ...RetrieverOption) (*Retriever, error) {
	if embedder == nil {
		return nil, derrors.InternalError("retriever requires an embedder", nil)
	}
	r := &Retriever{
		embedder:       embedder,
		lambda:         DefaultLambda,
		fetchK:         DefaultFetchK,
		exactThreshold: DefaultExactThreshold,
		queryTimeout:   DefaultQueryTimeout,
		logger:         slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.lambda <= 0 || r.lambda > 1 {
		return nil, derrors.ValidationError(fmt.Sprintf("lambda must be in (0, 1], got %v", r.lambda), nil)
	}
	return r, nil
}

// Query returns up to k results for question.
//
// Results hold min(k, idx.Size()) entries ordered by score descending, then
// ordinal ascending. Diversity changes which entries are returned, not how
// they are ordered.
func (r *Retriever) Query(ctx context.Context, idx *store.Index, question string, strategy Strategy, k int) ([]Result, error) {
	invalid := func(msg string) error {
		return derrors.New(derrors.ErrCodeInvalidInput, msg, nil).WithStage(derrors.StageQuery)
	}
	if k <= 0 {
		return nil, invalid(fmt.Sprintf("k must be positive, got %d", k))
	}
	if strategy != StrategySimilarity && strategy != StrategyDiversity {
		return nil, invalid(fmt.Sprintf("unknown strategy %q", strategy))
	}
	if strings.TrimSpace(question) == "" {
		return nil, invalid("question is blank")
	}
	if idx == nil || idx.Size() == 0 {
		return nil, derrors.New(derrors.ErrCodeEmptyIndex, "index has no entries", nil).
			WithStage(derrors.StageQuery)
	}

	start := time.Now()
	query, err := r.embedQuestion(ctx, idx, question)
	if err != nil {
		return nil, err
	}

	var results []Result
	switch strategy {
	case StrategySimilarity:
		top := r.topCandidates(idx, query, k)
		results = toResults(idx, top)
	case StrategyDiversity:
		pool := r.topCandidates(idx, query, max(r.fetchK, k))
		picked := selectMMR(idx, pool, k, r.lambda)
		sort.Slice(picked, func(i, j int) bool { return better(picked[i], picked[j]) })
		results = toResults(idx, picked)
	}

	r.logger.Debug("query_completed",
		slog.String("strategy", string(strategy)),
		slog.Int("k", k),
		slog.Int("results", len(results)),
		slog.Int("index_size", idx.Size()),
		slog.Duration("elapsed", time.Since(start)))

	return results, nil
}

// embedQuestion embeds the question under the query timeout and prepares it
// for scoring against idx.
func (r *Retriever) embedQuestion(ctx context.Context, idx *store.Index, question string) ([]float32, error) {
	qctx, cancel := context.WithTimeout(ctx, r.queryTimeout)
	defer cancel()

	vec, err := r.embedder.EmbedOne(qctx, r.queryPrefix+question)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, derrors.New(derrors.ErrCodeQueryEmbedding, "failed to embed question", err).
			WithStage(derrors.StageQuery).
			WithDetail("model", r.embedder.ModelName())
	}
	if len(vec) != idx.Dimensions() {
		return nil, derrors.New(derrors.ErrCodeDimensionMismatch,
			fmt.Sprintf("question embedding has %d dimensions, index has %d", len(vec), idx.Dimensions()), nil).
			WithStage(derrors.StageQuery).
			WithDetail("query_model", r.embedder.ModelName()).
			WithDetail("index_model", idx.Model()).
			WithSuggestion("The embedding model changed; rebuild the index with: docrag index")
	}
	return idx.PrepareQuery(vec), nil
}

// topCandidates returns the n most relevant entries by exact score.
// Every entry is scored unless approximate mode is on and the index is
// larger than the exact threshold. Then an oversampled set of HNSW
// candidates is rescored, falling back to a full scan if the graph
// returns too few.
func (r *Retriever) topCandidates(idx *store.Index, query []float32, n int) []candidate {
	n = min(n, idx.Size())

	var cands []candidate
	if r.approximate && idx.Size() > r.exactThreshold {
		want := min(max(n*graphOversample, idx.Params().EfSearch), idx.Size())
		ords := idx.Neighbors(query, want)
		if len(ords) >= n {
			cands = make([]candidate, 0, len(ords))
			for _, ord := range ords {
				cands = append(cands, candidate{ord: ord, score: idx.Score(query, ord)})
			}
		} else {
			r.logger.Debug("hnsw_candidates_short",
				slog.Int("wanted", n),
				slog.Int("got", len(ords)))
		}
	}
	if cands == nil {
		cands = make([]candidate, idx.Size())
		for ord := range cands {
			cands[ord] = candidate{ord: ord, score: idx.Score(query, ord)}
		}
	}

	sort.Slice(cands, func(i, j int) bool { return better(cands[i], cands[j]) })
	if len(cands) > n {
		cands = cands[:n]
	}
	return cands
}

func toResults(idx *store.Index, cands []candidate) []Result {
	results := make([]Result, len(cands))
	for i, c := range cands {
		results[i] = Result{Chunk: idx.Chunk(c.ord), Ordinal: c.ord, Score: c.score}
	}
	return results
}

// Sources returns the distinct source ids of results in first-seen order.
func Sources(results []Result) []string {
	seen := make(map[string]bool, len(results))
	var out []string
	for _, res := range results {
		if !seen[res.Chunk.SourceID] {
			seen[res.Chunk.SourceID] = true
			out = append(out, res.Chunk.SourceID)
		}
	}
	return out
}

// Describe renders a result as "source#position (score)".
func (r Result) Describe() string {
	return r.Chunk.SourceID + "#" + strconv.Itoa(r.Chunk.Position) + " (" + strconv.FormatFloat(r.Score, 'f', 3, 64) + ")"
}

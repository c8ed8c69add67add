package embed

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	derrors "github.com/Aman-CERP/docrag/internal/errors"
)

// OpenAI-compatible defaults point at Gemini's compatible endpoint.
const (
	DefaultOpenAIBaseURL   = "https://generativelanguage.googleapis.com/v1beta/openai/"
	DefaultOpenAIModel     = "text-embedding-004"
	DefaultOpenAIAPIKeyEnv = "GOOGLE_API_KEY"
)

// OpenAIConfig configures an embedder for any OpenAI-compatible endpoint.
type OpenAIConfig struct {
	BaseURL string
	APIKey  string
	Model   string

	// Dimensions requests a reduced vector size when the model supports it (0 = model default)
	Dimensions int

	BatchSize int
	Timeout   time.Duration

	// HTTPClient overrides the SDK's default client (tests)
	HTTPClient *http.Client
}

// OpenAIEmbedder calls the /embeddings endpoint through openai-go.
// SDK retries are disabled so each call is a single attempt.
type OpenAIEmbedder struct {
	client openai.Client
	config OpenAIConfig

	mu   sync.RWMutex
	dims int
}

var _ Embedder = (*OpenAIEmbedder)(nil)

// NewOpenAIEmbedder creates an embedder. An empty API key is an error.
func NewOpenAIEmbedder(cfg OpenAIConfig) (*OpenAIEmbedder, error) {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultOpenAIBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultOpenAIModel
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if cfg.BatchSize > MaxBatchSize {
		cfg.BatchSize = MaxBatchSize
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, derrors.ConfigError("embedding API key is not set", nil).
			WithDetail("base_url", cfg.BaseURL).
			WithSuggestion("Set the key in the environment or in .env (embeddings.api_key_env)")
	}

	opts := []option.RequestOption{
		option.WithBaseURL(cfg.BaseURL),
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(0),
	}
	if cfg.HTTPClient != nil {
		opts = append(opts, option.WithHTTPClient(cfg.HTTPClient))
	}

	return &OpenAIEmbedder{
		client: openai.NewClient(opts...),
		config: cfg,
		dims:   cfg.Dimensions,
	}, nil
}

// EmbedOne embeds a single text.
func (e *OpenAIEmbedder) EmbedOne(ctx context.Context, text string) ([]float32, error) {
	vecs, err := e.EmbedMany(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// EmbedMany embeds texts in BatchSize requests, preserving input order.
func (e *OpenAIEmbedder) EmbedMany(ctx context.Context, texts []string) ([][]float32, error) {
	results := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += e.config.BatchSize {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		end := min(start+e.config.BatchSize, len(texts))

		vecs, err := e.doEmbed(ctx, texts[start:end])
		if err != nil {
			return nil, err
		}
		results = append(results, vecs...)
	}
	return results, nil
}

func (e *OpenAIEmbedder) doEmbed(ctx context.Context, texts []string) ([][]float32, error) {
	reqCtx, cancel := context.WithTimeout(ctx, e.config.Timeout)
	defer cancel()

	params := openai.EmbeddingNewParams{
		Input: openai.EmbeddingNewParamsInputUnion{OfArrayOfStrings: texts},
		Model: openai.EmbeddingModel(e.config.Model),
	}
	if e.config.Dimensions > 0 {
		params.Dimensions = openai.Int(int64(e.config.Dimensions))
	}

	start := time.Now()
	resp, err := e.client.Embeddings.New(reqCtx, params)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, e.serviceError("embedding request failed", err)
	}
	if len(resp.Data) != len(texts) {
		return nil, e.serviceError(
			fmt.Sprintf("expected %d embeddings, got %d", len(texts), len(resp.Data)), nil)
	}

	// The API reports an index per item; order by it rather than trusting response order.
	data := resp.Data
	sort.SliceStable(data, func(i, j int) bool { return data[i].Index < data[j].Index })

	vecs := make([][]float32, len(data))
	for i, item := range data {
		if err := e.checkDims(len(item.Embedding)); err != nil {
			return nil, err
		}
		vecs[i] = Normalize(toFloat32(item.Embedding))
	}

	slog.Debug("openai_embed_done",
		slog.String("model", e.config.Model),
		slog.Int("texts", len(texts)),
		slog.Duration("elapsed", time.Since(start)))

	return vecs, nil
}

func (e *OpenAIEmbedder) checkDims(n int) error {
	if n == 0 {
		return e.serviceError("empty embedding returned", nil)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.dims == 0 {
		e.dims = n
		return nil
	}
	if e.dims != n {
		return derrors.New(derrors.ErrCodeDimensionMismatch,
			fmt.Sprintf("embedding has %d dimensions, expected %d", n, e.dims), nil).
			WithDetail("model", e.config.Model)
	}
	return nil
}

func (e *OpenAIEmbedder) serviceError(msg string, cause error) error {
	return derrors.New(derrors.ErrCodeEmbeddingService, msg, cause).
		WithDetail("provider", "openai").
		WithDetail("base_url", e.config.BaseURL)
}

// Dimensions returns the configured or learned vector size (0 before the first call).
func (e *OpenAIEmbedder) Dimensions() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.dims
}

// ModelName returns the model identifier.
func (e *OpenAIEmbedder) ModelName() string {
	return e.config.Model
}

// Close is a no-op; the SDK client holds no resources of its own.
func (e *OpenAIEmbedder) Close() error {
	return nil
}

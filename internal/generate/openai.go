package generate

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	derrors "github.com/Aman-CERP/docrag/internal/errors"
)

// OpenAI-compatible defaults point at Groq.
const (
	DefaultOpenAIBaseURL   = "https://api.groq.com/openai/v1"
	DefaultOpenAIModel     = "llama-3.3-70b-versatile"
	DefaultOpenAIAPIKeyEnv = "GROQ_API_KEY"
)

// OpenAIConfig configures a chat-completions generator.
type OpenAIConfig struct {
	BaseURL   string
	APIKey    string
	Model     string
	Timeout   time.Duration
	MaxTokens int

	// HTTPClient overrides the SDK's default client (tests)
	HTTPClient *http.Client
}

// OpenAIGenerator sends the prompt as a single user message to /chat/completions.
// SDK retries are disabled.
type OpenAIGenerator struct {
	client openai.Client
	config OpenAIConfig
}

var _ Generator = (*OpenAIGenerator)(nil)

// NewOpenAIGenerator creates a generator. An empty API key is an error.
func NewOpenAIGenerator(cfg OpenAIConfig) (*OpenAIGenerator, error) {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultOpenAIBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultOpenAIModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = DefaultMaxTokens
	}
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, derrors.ConfigError("generation API key is not set", nil).
			WithDetail("base_url", cfg.BaseURL).
			WithSuggestion("Set the key in the environment or in .env (generation.api_key_env)")
	}

	opts := []option.RequestOption{
		option.WithBaseURL(cfg.BaseURL),
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(0),
	}
	if cfg.HTTPClient != nil {
		opts = append(opts, option.WithHTTPClient(cfg.HTTPClient))
	}

	return &OpenAIGenerator{client: openai.NewClient(opts...), config: cfg}, nil
}

// Generate returns the first choice's trimmed content.
func (g *OpenAIGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	reqCtx, cancel := context.WithTimeout(ctx, g.config.Timeout)
	defer cancel()

	start := time.Now()
	resp, err := g.client.Chat.Completions.New(reqCtx, openai.ChatCompletionNewParams{
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(prompt),
		},
		Model:     openai.ChatModel(g.config.Model),
		MaxTokens: openai.Int(int64(g.config.MaxTokens)),
	})
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", g.serviceError("generation request failed", err)
	}
	if len(resp.Choices) == 0 {
		return "", g.serviceError("generation returned no choices", nil)
	}

	slog.Debug("openai_generate_done",
		slog.String("model", g.config.Model),
		slog.Int64("prompt_tokens", resp.Usage.PromptTokens),
		slog.Int64("completion_tokens", resp.Usage.CompletionTokens),
		slog.Duration("elapsed", time.Since(start)))

	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

func (g *OpenAIGenerator) serviceError(msg string, cause error) error {
	return derrors.New(derrors.ErrCodeGenerationService, msg, cause).
		WithDetail("provider", "openai").
		WithDetail("base_url", g.config.BaseURL).
		WithDetail("model", g.config.Model)
}

// ModelName returns the model identifier.
func (g *OpenAIGenerator) ModelName() string {
	return g.config.Model
}

package generate

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	derrors "github.com/Aman-CERP/docrag/internal/errors"
)

// Ollama defaults
const (
	DefaultOllamaHost  = "http://localhost:11434"
	DefaultOllamaModel = "llama3.2"
)

// OllamaConfig configures the Ollama generator.
type OllamaConfig struct {
	Host      string
	Model     string
	Timeout   time.Duration
	MaxTokens int

	// HTTPClient overrides the default client (tests)
	HTTPClient *http.Client
}

type ollamaGenerateRequest struct {
	Model   string         `json:"model"`
	Prompt  string         `json:"prompt"`
	Stream  bool           `json:"stream"`
	Options map[string]any `json:"options,omitempty"`
}

type ollamaGenerateResponse struct {
	Model           string `json:"model"`
	Response        string `json:"response"`
	Done            bool   `json:"done"`
	PromptEvalCount int    `json:"prompt_eval_count,omitempty"`
	EvalCount       int    `json:"eval_count,omitempty"`
}

// OllamaGenerator calls Ollama's non-streaming /api/generate endpoint.
type OllamaGenerator struct {
	client *http.Client
	config OllamaConfig
}

var _ Generator = (*OllamaGenerator)(nil)

// NewOllamaGenerator creates an Ollama generator.
func NewOllamaGenerator(cfg OllamaConfig) *OllamaGenerator {
	if cfg.Host == "" {
		cfg.Host = DefaultOllamaHost
	}
	cfg.Host = strings.TrimRight(cfg.Host, "/")
	if cfg.Model == "" {
		cfg.Model = DefaultOllamaModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = DefaultMaxTokens
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{}
	}
	return &OllamaGenerator{client: client, config: cfg}
}

// Generate sends prompt and returns the trimmed response.
func (g *OllamaGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	reqCtx, cancel := context.WithTimeout(ctx, g.config.Timeout)
	defer cancel()

	body, err := json.Marshal(ollamaGenerateRequest{
		Model:   g.config.Model,
		Prompt:  prompt,
		Stream:  false,
		Options: map[string]any{"num_predict": g.config.MaxTokens},
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, g.config.Host+"/api/generate", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := g.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", g.serviceError("generation request failed", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", g.serviceError(
			fmt.Sprintf("generation failed with status %d: %s", resp.StatusCode, strings.TrimSpace(string(respBody))), nil)
	}

	var result ollamaGenerateResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", g.serviceError("failed to decode generation response", err)
	}

	slog.Debug("ollama_generate_done",
		slog.String("model", g.config.Model),
		slog.Int("prompt_tokens", result.PromptEvalCount),
		slog.Int("completion_tokens", result.EvalCount),
		slog.Duration("elapsed", time.Since(start)))

	return strings.TrimSpace(result.Response), nil
}

func (g *OllamaGenerator) serviceError(msg string, cause error) error {
	return derrors.New(derrors.ErrCodeGenerationService, msg, cause).
		WithDetail("provider", "ollama").
		WithDetail("model", g.config.Model).
		WithSuggestion("Check that Ollama is running and the model is pulled: ollama pull " + g.config.Model)
}

// ModelName returns the model identifier.
func (g *OllamaGenerator) ModelName() string {
	return g.config.Model
}

package embed

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/Aman-CERP/docrag/internal/config"
	derrors "github.com/Aman-CERP/docrag/internal/errors"
)

// NewEmbedder creates the embedder selected by cfg.Provider.
// There is no fallback between providers: a misconfigured provider is an error.
func NewEmbedder(cfg config.EmbeddingsConfig) (Embedder, error) {
	provider := strings.ToLower(strings.TrimSpace(cfg.Provider))

	var (
		embedder Embedder
		err      error
	)
	switch provider {
	case "", config.ProviderOllama:
		embedder = NewOllamaEmbedder(OllamaConfig{
			Host:       cfg.OllamaHost,
			Model:      cfg.Model,
			Dimensions: cfg.Dimensions,
			BatchSize:  cfg.BatchSize,
			Timeout:    cfg.Timeout,
		})

	case config.ProviderOpenAI:
		keyEnv := cfg.APIKeyEnv
		if keyEnv == "" {
			keyEnv = DefaultOpenAIAPIKeyEnv
		}
		embedder, err = NewOpenAIEmbedder(OpenAIConfig{
			BaseURL:    cfg.BaseURL,
			APIKey:     os.Getenv(keyEnv),
			Model:      cfg.Model,
			Dimensions: cfg.Dimensions,
			BatchSize:  cfg.BatchSize,
			Timeout:    cfg.Timeout,
		})
		if err != nil {
			if de, ok := derrors.As(err); ok {
				de.WithDetail("api_key_env", keyEnv)
			}
			return nil, err
		}

	case config.ProviderStatic:
		embedder = NewStaticEmbedderWithDims(cfg.Dimensions)

	default:
		return nil, derrors.ConfigError(fmt.Sprintf("unknown embedding provider %q", cfg.Provider), nil).
			WithSuggestion("Use one of: ollama, openai, static")
	}

	slog.Debug("embedder_created",
		slog.String("provider", provider),
		slog.String("model", embedder.ModelName()),
		slog.Int("dimensions", embedder.Dimensions()))

	return embedder, nil
}

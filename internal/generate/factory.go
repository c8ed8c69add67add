package generate

import (
	"fmt"
	"os"
	"strings"

	"github.com/Aman-CERP/docrag/internal/config"
	derrors "github.com/Aman-CERP/docrag/internal/errors"
)

// NewGenerator creates the generator selected by cfg.Provider.
func NewGenerator(cfg config.GenerationConfig) (Generator, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Provider)) {
	case "", config.ProviderOllama:
		return NewOllamaGenerator(OllamaConfig{
			Host:      cfg.OllamaHost,
			Model:     cfg.Model,
			Timeout:   cfg.Timeout,
			MaxTokens: cfg.MaxTokens,
		}), nil

	case config.ProviderOpenAI:
		keyEnv := cfg.APIKeyEnv
		if keyEnv == "" {
			keyEnv = DefaultOpenAIAPIKeyEnv
		}
		g, err := NewOpenAIGenerator(OpenAIConfig{
			BaseURL:   cfg.BaseURL,
			APIKey:    os.Getenv(keyEnv),
			Model:     cfg.Model,
			Timeout:   cfg.Timeout,
			MaxTokens: cfg.MaxTokens,
		})
		if err != nil {
			if de, ok := derrors.As(err); ok {
				de.WithDetail("api_key_env", keyEnv)
			}
			return nil, err
		}
		return g, nil

	default:
		return nil, derrors.ConfigError(fmt.Sprintf("unknown generation provider %q", cfg.Provider), nil).
			WithSuggestion("Use one of: ollama, openai")
	}
}

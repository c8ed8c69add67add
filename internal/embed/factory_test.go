package embed

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/docrag/internal/config"
	derrors "github.com/Aman-CERP/docrag/internal/errors"
)

func TestNewEmbedder_SelectsProvider(t *testing.T) {
	t.Setenv("TEST_EMBED_KEY", "k")

	tests := []struct {
		name string
		cfg  config.EmbeddingsConfig
		want any
	}{
		{"default is ollama", config.EmbeddingsConfig{}, &OllamaEmbedder{}},
		{"ollama", config.EmbeddingsConfig{Provider: "ollama"}, &OllamaEmbedder{}},
		{"openai", config.EmbeddingsConfig{Provider: "OpenAI", APIKeyEnv: "TEST_EMBED_KEY"}, &OpenAIEmbedder{}},
		{"static", config.EmbeddingsConfig{Provider: "static", Dimensions: 64}, &StaticEmbedder{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, err := NewEmbedder(tt.cfg)
			require.NoError(t, err)
			assert.IsType(t, tt.want, e)
		})
	}
}

func TestNewEmbedder_StaticHonoursDimensions(t *testing.T) {
	e, err := NewEmbedder(config.EmbeddingsConfig{Provider: "static", Dimensions: 64})
	require.NoError(t, err)

	assert.Equal(t, 64, e.Dimensions())
}

func TestNewEmbedder_OllamaUsesConfiguredModel(t *testing.T) {
	e, err := NewEmbedder(config.EmbeddingsConfig{Provider: "ollama", Model: "mxbai-embed-large"})
	require.NoError(t, err)

	assert.Equal(t, "mxbai-embed-large", e.ModelName())
}

func TestNewEmbedder_OpenAIWithoutKey_ReportsEnvName(t *testing.T) {
	t.Setenv("MISSING_KEY_FOR_TEST", "")

	_, err := NewEmbedder(config.EmbeddingsConfig{Provider: "openai", APIKeyEnv: "MISSING_KEY_FOR_TEST"})

	require.Error(t, err)
	de, ok := derrors.As(err)
	require.True(t, ok)
	assert.Equal(t, "MISSING_KEY_FOR_TEST", de.Details["api_key_env"])
}

func TestNewEmbedder_UnknownProvider_IsConfigError(t *testing.T) {
	_, err := NewEmbedder(config.EmbeddingsConfig{Provider: "mlx"})

	require.Error(t, err)
	assert.Equal(t, derrors.ErrCodeConfigInvalid, derrors.GetCode(err))
}

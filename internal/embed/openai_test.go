package embed

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	derrors "github.com/Aman-CERP/docrag/internal/errors"
)

type embeddingsRequest struct {
	Input []string `json:"input"`
	Model string   `json:"model"`
}

// fakeOpenAI serves /embeddings and returns data items in reverse order
// so index-based reordering is exercised.
func fakeOpenAI(t *testing.T, calls *atomic.Int64, status int) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		if status != http.StatusOK {
			w.WriteHeader(status)
			_, _ = w.Write([]byte(`{"error":{"message":"boom","type":"server_error"}}`))
			return
		}

		var req embeddingsRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		data := make([]map[string]any, 0, len(req.Input))
		for i := len(req.Input) - 1; i >= 0; i-- {
			data = append(data, map[string]any{
				"object":    "embedding",
				"index":     i,
				"embedding": []float64{float64(len(req.Input[i])), 2},
			})
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"object": "list",
			"data":   data,
			"model":  req.Model,
			"usage":  map[string]any{"prompt_tokens": 1, "total_tokens": 1},
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestOpenAIEmbedder_EmbedMany_OrdersByIndex(t *testing.T) {
	// Given: an OpenAI-compatible server that answers out of order
	var calls atomic.Int64
	srv := fakeOpenAI(t, &calls, http.StatusOK)
	e, err := NewOpenAIEmbedder(OpenAIConfig{BaseURL: srv.URL + "/", APIKey: "test-key", Model: "m"})
	require.NoError(t, err)

	// When: three texts are embedded
	vecs, err := e.EmbedMany(context.Background(), []string{"a", "bbbbbbbb", "cccc"})

	// Then: vectors follow input order
	require.NoError(t, err)
	require.Len(t, vecs, 3)
	assert.Less(t, vecs[0][0], vecs[2][0])
	assert.Less(t, vecs[2][0], vecs[1][0])
	assert.Equal(t, 2, e.Dimensions())
	assert.Equal(t, "m", e.ModelName())
	assert.Equal(t, int64(1), calls.Load())
}

func TestOpenAIEmbedder_ServerError_SingleAttempt(t *testing.T) {
	// Given: a server returning 500
	var calls atomic.Int64
	srv := fakeOpenAI(t, &calls, http.StatusInternalServerError)
	e, err := NewOpenAIEmbedder(OpenAIConfig{BaseURL: srv.URL + "/", APIKey: "test-key"})
	require.NoError(t, err)

	// When: embedding
	_, err = e.EmbedOne(context.Background(), "q")

	// Then: SDK retries are off and the error is classified
	require.Error(t, err)
	assert.Equal(t, derrors.ErrCodeEmbeddingService, derrors.GetCode(err))
	assert.Equal(t, int64(1), calls.Load())
}

func TestOpenAIEmbedder_MissingKey_IsConfigError(t *testing.T) {
	_, err := NewOpenAIEmbedder(OpenAIConfig{})

	require.Error(t, err)
	assert.Equal(t, derrors.ErrCodeConfigInvalid, derrors.GetCode(err))
}

func TestOpenAIEmbedder_Defaults(t *testing.T) {
	e, err := NewOpenAIEmbedder(OpenAIConfig{APIKey: "k"})
	require.NoError(t, err)

	assert.Equal(t, DefaultOpenAIModel, e.ModelName())
	assert.Equal(t, DefaultBatchSize, e.config.BatchSize)
	assert.Equal(t, 0, e.Dimensions())
}

package cmd

import (
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSearchCmd_Text(t *testing.T) {
	// Given: a built index
	env := newCLIEnv(t)
	_, _, err := env.execute(t, "index", "--plain")
	require.NoError(t, err)

	// When: searching with no generation provider reachable
	t.Setenv("DOCRAG_LLM_PROVIDER", "openai")
	t.Setenv("OPENAI_API_KEY", "")
	t.Setenv("GROQ_API_KEY", "")
	stdout, _, err := env.execute(t, "search", "-k", "2", "--strategy", "similarity", "sky", "blue")

	// Then: ranked results are printed without contacting a generator
	require.NoError(t, err)
	assert.Contains(t, stdout, "1. ")
	assert.Contains(t, stdout, "2. ")
	assert.Contains(t, stdout, "(score ")
}

func TestSearchCmd_JSON(t *testing.T) {
	env := newCLIEnv(t)
	_, _, err := env.execute(t, "index", "--plain")
	require.NoError(t, err)

	stdout, _, err := env.execute(t, "search", "--format", "json", "-k", "3", "refunds")
	require.NoError(t, err)

	var got struct {
		Query    string         `json:"query"`
		Strategy string         `json:"strategy"`
		Results  []searchResult `json:"results"`
	}
	require.NoError(t, json.Unmarshal([]byte(stdout), &got))
	assert.Equal(t, "refunds", got.Query)
	assert.Equal(t, "diversity", got.Strategy)
	require.Len(t, got.Results, 3)

	seen := make(map[string]bool)
	for i, r := range got.Results {
		assert.Equal(t, i+1, r.Rank)
		assert.True(t, strings.HasPrefix(r.Source, env.docs+string(filepath.Separator)), r.Source)
		key := r.Source + "#" + r.Text
		assert.False(t, seen[key], "duplicate result %s", key)
		seen[key] = true
		if i > 0 {
			assert.GreaterOrEqual(t, got.Results[i-1].Score, r.Score)
		}
	}
}

func TestSearchCmd_RebuildFlag(t *testing.T) {
	env := newCLIEnv(t)

	stdout, stderr, err := env.execute(t, "search", "--rebuild", "sky")

	require.NoError(t, err)
	assert.Contains(t, stderr, "Complete:")
	assert.Contains(t, stdout, "1. ")
}

func TestSearchCmd_InvalidFormat(t *testing.T) {
	env := newCLIEnv(t)

	_, _, err := env.execute(t, "search", "--format", "xml", "sky")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown format")
}

func TestSearchCmd_BlankQuery(t *testing.T) {
	env := newCLIEnv(t)

	_, _, err := env.execute(t, "search", "--rebuild", "   ")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "ERR_401_INVALID_INPUT")
}

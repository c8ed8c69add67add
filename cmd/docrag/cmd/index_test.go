package cmd

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/docrag/internal/store"
)

func TestIndexCmd_BuildsSnapshot(t *testing.T) {
	// Given: a document folder
	env := newCLIEnv(t)

	// When: indexing with plain progress
	stdout, stderr, err := env.execute(t, "index", "--plain")

	// Then: a manifest is published and progress goes to stderr only
	require.NoError(t, err)
	assert.Empty(t, stdout)
	assert.Contains(t, stderr, "[FIND]")
	assert.Contains(t, stderr, "Complete: 3 files")

	m, err := store.ReadManifest(env.index)
	require.NoError(t, err)
	assert.Greater(t, m.Count, 0)
	assert.Equal(t, 3, m.Sources)
}

func TestIndexCmd_Verify(t *testing.T) {
	env := newCLIEnv(t)

	_, _, err := env.execute(t, "index", "--plain", "--verify")

	require.NoError(t, err)
}

func TestIndexCmd_EmptyFolder(t *testing.T) {
	// Given: a document folder with no supported files
	env := newCLIEnv(t)
	require.NoError(t, os.RemoveAll(env.docs))
	writeFile(t, filepath.Join(env.docs, "image.png"), "not a document")

	// When: indexing
	_, _, err := env.execute(t, "index", "--plain")

	// Then: the empty input is reported and nothing is published
	require.Error(t, err)
	assert.Contains(t, err.Error(), "No documents found")
	_, statErr := os.Stat(filepath.Join(env.index, store.ManifestFileName))
	assert.True(t, os.IsNotExist(statErr))
}

func TestIndexCmd_RejectsArgs(t *testing.T) {
	env := newCLIEnv(t)

	_, _, err := env.execute(t, "index", "extra")

	require.Error(t, err)
}

func TestIndexInfoCmd_HasJSONFlag(t *testing.T) {
	// Given: root command
	cmd := NewRootCmd()

	// When: finding index info command
	infoCmd, _, err := cmd.Find([]string{"index", "info"})
	require.NoError(t, err)

	// Then: should have --json flag
	flag := infoCmd.Flags().Lookup("json")
	require.NotNil(t, flag)
	assert.Equal(t, "false", flag.DefValue)
}

func TestIndexInfoCmd_NoIndex(t *testing.T) {
	env := newCLIEnv(t)

	_, _, err := env.execute(t, "index", "info")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "no index snapshot found")
}

func TestIndexInfoCmd_Human(t *testing.T) {
	// Given: a built index
	env := newCLIEnv(t)
	_, _, err := env.execute(t, "index", "--plain")
	require.NoError(t, err)

	// When: showing index info
	stdout, _, err := env.execute(t, "index", "info")

	// Then: the manifest fields are listed
	require.NoError(t, err)
	assert.Contains(t, stdout, "Index Information")
	assert.Contains(t, stdout, "Sources")
	assert.Contains(t, stdout, "static")
	assert.Contains(t, stdout, "cos")
}

func TestIndexInfoCmd_JSON(t *testing.T) {
	env := newCLIEnv(t)
	_, _, err := env.execute(t, "index", "--plain")
	require.NoError(t, err)

	stdout, _, err := env.execute(t, "index", "info", "--json")
	require.NoError(t, err)

	var info struct {
		Location string         `json:"location"`
		Manifest store.Manifest `json:"manifest"`
	}
	require.NoError(t, json.Unmarshal([]byte(stdout), &info))
	assert.Equal(t, env.index, info.Location)
	assert.Equal(t, 3, info.Manifest.Sources)
	assert.NotEmpty(t, info.Manifest.Generation)
}

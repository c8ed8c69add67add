package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// cliEnv isolates a CLI run: temp working, config and state directories,
// the static embedder, and seeded documents.
type cliEnv struct {
	docs  string
	index string
	state string
}

func newCLIEnv(t *testing.T) *cliEnv {
	t.Helper()
	base := t.TempDir()
	t.Chdir(base)
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(base, "config"))
	t.Setenv("XDG_STATE_HOME", filepath.Join(base, "state"))
	t.Setenv("DOCRAG_EMBED_PROVIDER", "static")
	t.Setenv("DOCRAG_CHUNK_SIZE", "60")
	t.Setenv("DOCRAG_CHUNK_OVERLAP", "10")
	t.Setenv("NO_COLOR", "1")

	env := &cliEnv{
		docs:  filepath.Join(base, "docs"),
		index: filepath.Join(base, "index"),
		state: filepath.Join(base, "state"),
	}
	writeFile(t, filepath.Join(env.docs, "sky.txt"), "The sky is blue. The sky is vast. Clouds drift across the sky on windy days.")
	writeFile(t, filepath.Join(env.docs, "guides", "refunds.md"), "# Refunds\n\nRefunds are issued within 14 days.\n\nContact support for help with refunds.")
	writeFile(t, filepath.Join(env.docs, "orders.csv"), "order,status\n1001,shipped\n1002,pending\n")
	return env
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

// execute runs the root command with args and returns stdout and stderr.
func (e *cliEnv) execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	opts := &rootOptions{}
	defer opts.teardown()

	cmd := newRootCmd(opts)
	stdout, stderr := new(bytes.Buffer), new(bytes.Buffer)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	cmd.SetArgs(append([]string{"--docs", e.docs, "--index", e.index}, args...))

	err := cmd.ExecuteContext(context.Background())
	return stdout.String(), stderr.String(), err
}

// fakeOllama serves /api/generate with a fixed response and records prompts.
func fakeOllama(t *testing.T, status int, response string) (*httptest.Server, *[]string) {
	t.Helper()
	var prompts []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Prompt string `json:"prompt"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)
		prompts = append(prompts, req.Prompt)
		if status != http.StatusOK {
			http.Error(w, "model not loaded", status)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"response": response, "done": true})
	}))
	t.Cleanup(srv.Close)
	t.Setenv("DOCRAG_OLLAMA_HOST", srv.URL)
	return srv, &prompts
}

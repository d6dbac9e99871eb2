package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"healthguard/internal/config"
	"healthguard/internal/store"
)

func TestJoinArgs(t *testing.T) {
	got := joinArgs([]string{"one", "two", "three"})
	if got != "one two three" {
		t.Fatalf("expected 'one two three', got '%s'", got)
	}
}

// fakeOpenAI answers every chat completion with reply.
func fakeOpenAI(t *testing.T, reply string) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		if r.URL.Path != "/chat/completions" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"id":    "cmpl-1",
			"model": "gpt-4o",
			"choices": []map[string]any{{
				"index":         0,
				"message":       map[string]string{"role": "assistant", "content": reply},
				"finish_reason": "stop",
			}},
		})
	}))
	t.Cleanup(srv.Close)
	return srv, &calls
}

// writeTestConfig stores a config rooted in a temp dir and returns its path.
func writeTestConfig(t *testing.T, baseURL string) string {
	t.Helper()
	dir := t.TempDir()
	cfg := config.DefaultConfig()
	cfg.LLM.Provider = config.ProviderOpenAI
	cfg.LLM.APIKey = "test-key"
	cfg.LLM.BaseURL = baseURL
	cfg.LLM.MaxRetries = 0
	cfg.Storage.DatabasePath = filepath.Join(dir, "data", "healthguard.db")
	cfg.Storage.TranscriptsDir = filepath.Join(dir, "data")
	cfg.Logging.LogsDir = filepath.Join(dir, "logs")
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, cfg.Save(path))
	return path
}

// execute runs the root command with args and stdin, returning stdout.
func execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	verbose, patientID, plain, forceInit = false, "", false, false

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetIn(strings.NewReader(stdin))
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func TestConfigInitAndShow(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	out, err := execute(t, "", "config", "init", "--config", path)
	require.NoError(t, err)
	assert.Contains(t, out, "Wrote default configuration")
	assert.FileExists(t, path)

	_, err = execute(t, "", "config", "init", "--config", path)
	require.Error(t, err)

	_, err = execute(t, "", "config", "init", "--config", path, "--force")
	require.NoError(t, err)

	cfg, err := config.Load(path)
	require.NoError(t, err)
	cfg.LLM.Provider = config.ProviderOpenAI
	cfg.LLM.APIKey = "sk-secret"
	require.NoError(t, cfg.Save(path))

	out, err = execute(t, "", "config", "show", "--config", path)
	require.NoError(t, err)
	assert.Contains(t, out, "max_steps: 8")
	assert.NotContains(t, out, "sk-secret")
	assert.Contains(t, out, "********")
}

func TestSeed(t *testing.T) {
	path := writeTestConfig(t, "http://127.0.0.1:0")

	out, err := execute(t, "", "seed", "--config", path, "--patient", "p1")
	require.NoError(t, err)
	assert.Contains(t, out, "Seeded sample medications")

	out, err = execute(t, "", "seed", "--config", path, "--patient", "p1")
	require.NoError(t, err)
	assert.Contains(t, out, "nothing seeded")
}

func TestAskHistoryClear(t *testing.T) {
	srv, calls := fakeOpenAI(t, "Thought: simple\nResponse: Take your pill at 8am.")
	path := writeTestConfig(t, srv.URL)

	out, err := execute(t, "", "history", "--config", path, "--patient", "p1", "--plain")
	require.NoError(t, err)
	assert.Equal(t, "No conversation history for patient p1.\n", out)

	out, err = execute(t, "", "ask", "--config", path, "--patient", "p1", "--plain", "when", "is", "my", "pill?")
	require.NoError(t, err)
	assert.Equal(t, "Take your pill at 8am.\n", out)
	assert.Equal(t, int32(1), calls.Load())

	out, err = execute(t, "", "history", "--config", path, "--patient", "p1", "--plain")
	require.NoError(t, err)
	assert.Contains(t, out, "when is my pill?")
	assert.Contains(t, out, "HealthGuard:")
	assert.Contains(t, out, "Take your pill at 8am.")

	out, err = execute(t, "", "clear", "--config", path, "--patient", "p1")
	require.NoError(t, err)
	assert.Equal(t, "Conversation history cleared for patient p1.\n", out)
	transcripts := store.NewTranscriptStore(filepath.Join(filepath.Dir(path), "data"))
	assert.NoFileExists(t, transcripts.Path("p1"))
}

func TestChatLoop(t *testing.T) {
	srv, _ := fakeOpenAI(t, "Response: Hello there.")
	path := writeTestConfig(t, srv.URL)

	out, err := execute(t, "hello\n\n/history\n/clear\n/history\n/exit\nnever read\n",
		"chat", "--config", path, "--patient", "p2", "--plain")
	require.NoError(t, err)

	assert.Contains(t, out, WelcomeMessage)
	assert.Contains(t, out, "Hello there.")
	assert.Contains(t, out, "Conversation history cleared.")
	assert.Contains(t, out, "No conversation history for patient p2.")
	assert.Contains(t, out, "Goodbye!")
	assert.Equal(t, 2, strings.Count(out, "Hello there."), "answer and /history")
	assert.NotContains(t, out, "never read")

	transcripts := store.NewTranscriptStore(filepath.Join(filepath.Dir(path), "data"))
	assert.NoFileExists(t, transcripts.Path("p2"))
}

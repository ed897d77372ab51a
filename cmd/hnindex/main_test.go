package main

import (
	"bytes"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/poiesic/hnindex"
	"github.com/poiesic/hnindex/config"
	"github.com/poiesic/hnindex/core"
	"github.com/poiesic/hnindex/ingestion"
	"github.com/poiesic/hnindex/search"
	"github.com/poiesic/hnindex/vectorindex"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "hnindex.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func runApp(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	app := newApp()
	app.Writer = &out
	app.ErrWriter = &out
	err := app.Run(append([]string{"hnindex"}, args...))
	return out.String(), err
}

func TestLogLevel(t *testing.T) {
	defer slog.SetDefault(slog.Default())

	t.Run("rejects unknown level", func(t *testing.T) {
		_, err := runApp(t, "--log-level", "verbose", "status")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid log level")
	})

	t.Run("accepts mixed case", func(t *testing.T) {
		_, err := runApp(t, "--log-level", "DEBUG")
		require.NoError(t, err)
		assert.True(t, slog.Default().Enabled(t.Context(), slog.LevelDebug))
	})
}

func TestRunFlagOverridesAreValidated(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{"max items", []string{"run", "--max-items", "0"}, "feed.max_items"},
		{"pool size", []string{"run", "--pool-size", "-1"}, "pipeline.pool_size"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfgPath := writeConfig(t, "ledger:\n  data_dir: "+t.TempDir()+"\n")
			_, err := runApp(t, append([]string{"--config", cfgPath}, tt.args...)...)
			require.ErrorIs(t, err, config.ErrInvalidConfig)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestSearchRequiresQuery(t *testing.T) {
	_, err := runApp(t, "search", "   ")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "query is required")
}

func TestStatusOnEmptyDataDir(t *testing.T) {
	cfgPath := writeConfig(t, strings.Join([]string{
		"ledger:",
		"  backend: sqlite",
		"  data_dir: " + t.TempDir(),
		"index:",
		"  name: test-index",
		"",
	}, "\n"))

	out, err := runApp(t, "--config", cfgPath, "status")
	require.NoError(t, err)
	assert.Contains(t, out, "Processed stories: 0")
	assert.Contains(t, out, "Ledger: sqlite")
	assert.Contains(t, out, "test-index")
	assert.Contains(t, out, "Last run: never")
}

func TestPrintSummary(t *testing.T) {
	started := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	summary := &ingestion.Summary{
		RunID:      "run-1",
		Candidates: 5,
		New:        3,
		Attempted:  2,
		Succeeded:  1,
		Vectors:    4,
		Skipped:    1,
		Failures: []ingestion.ItemResult{{
			ItemID:  102,
			Reached: ingestion.StageChunked,
			Err:     errors.New("embedder down"),
		}},
		Success:    true,
		StartedAt:  started,
		FinishedAt: started.Add(1500 * time.Millisecond),
	}

	var buf bytes.Buffer
	printSummary(&buf, summary)
	out := buf.String()
	assert.Contains(t, out, "Run run-1")
	assert.Contains(t, out, "candidates: 5, new: 3, skipped: 1")
	assert.Contains(t, out, "attempted: 2, succeeded: 1, failed: 1")
	assert.Contains(t, out, "vectors: 4, duration: 1.5s")
	assert.Contains(t, out, "item 102 failed at embed: embedder down")
	assert.NotContains(t, out, "cancelled")
}

func TestPrintResults(t *testing.T) {
	results := []*search.Result{{
		Hit: core.SearchHit{
			VectorID: "7-2",
			Metadata: core.VectorMetadata{
				ItemID:     7,
				Title:      "Show HN",
				URL:        "https://example.com/show",
				ChunkIndex: 2,
				Text:       strings.Repeat("a", 200),
			},
		},
		Score:    0.912,
		Verbatim: true,
	}}

	var buf bytes.Buffer
	printResults(&buf, results)
	out := buf.String()
	assert.Contains(t, out, "Found 1 hits")
	assert.Contains(t, out, "1: Show HN <https://example.com/show> chunk 2 [0.912] *")
	assert.Contains(t, out, strings.Repeat("a", 160)+"...")
}

func TestPrintStatus(t *testing.T) {
	started := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	status := &hnindex.Status{
		Processed: 12,
		LastRun: &core.RunRecord{
			RunID:      "abc",
			StartedAt:  started,
			FinishedAt: started.Add(2 * time.Second),
			Attempted:  3,
			Succeeded:  2,
			Vectors:    9,
			Success:    true,
		},
		Index:   vectorindex.Spec{Name: "hn-rag-v0", Dimension: 768, Metric: vectorindex.Cosine},
		Ledger:  config.BackendSQLite,
		Backend: config.BackendQdrant,
	}

	var buf bytes.Buffer
	printStatus(&buf, status)
	out := buf.String()
	assert.Contains(t, out, "Processed stories: 12")
	assert.Contains(t, out, "Index: qdrant hn-rag-v0 (768 dims, cosine)")
	assert.Contains(t, out, "Last run: abc (ok)")
	assert.Contains(t, out, "took 2s")
	assert.Contains(t, out, "attempted: 3, succeeded: 2, vectors: 9")
}

func TestPushMetrics(t *testing.T) {
	t.Run("disabled without url", func(t *testing.T) {
		require.NoError(t, pushMetrics(config.MetricsConfig{}, prometheus.NewRegistry()))
	})

	t.Run("pushes to the gateway", func(t *testing.T) {
		var path, method string
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			path, method = r.URL.Path, r.Method
			w.WriteHeader(http.StatusOK)
		}))
		defer srv.Close()

		reg := prometheus.NewRegistry()
		c := prometheus.NewCounter(prometheus.CounterOpts{Name: "hnindex_test_total", Help: "test"})
		reg.MustRegister(c)
		c.Inc()

		err := pushMetrics(config.MetricsConfig{PushURL: srv.URL, Job: "hnindex"}, reg)
		require.NoError(t, err)
		assert.Equal(t, http.MethodPut, method)
		assert.Equal(t, "/metrics/job/hnindex", path)
	})
}

func TestExcerpt(t *testing.T) {
	assert.Equal(t, "short", excerpt("short", 10))
	assert.Equal(t, "héllo...", excerpt("héllo world", 5))
}

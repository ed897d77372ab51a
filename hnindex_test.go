package hnindex

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/poiesic/hnindex/ai/mock"
	"github.com/poiesic/hnindex/config"
)

const testDimension = 16

// hnServer serves a top list, item records and article pages.
type hnServer struct {
	*httptest.Server
	top      []int
	items    map[int]map[string]any
	articles map[string]string
	fetches  atomic.Int32
}

func newHNServer(t *testing.T) *hnServer {
	t.Helper()
	s := &hnServer{
		items:    make(map[int]map[string]any),
		articles: make(map[string]string),
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/v0/topstories.json", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(s.top)
	})
	mux.HandleFunc("/v0/item/", func(w http.ResponseWriter, r *http.Request) {
		var id int
		_, err := fmt.Sscanf(strings.TrimPrefix(r.URL.Path, "/v0/item/"), "%d.json", &id)
		if err != nil {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		it, ok := s.items[id]
		if !ok {
			_, _ = w.Write([]byte("null"))
			return
		}
		_ = json.NewEncoder(w).Encode(it)
	})
	mux.HandleFunc("/articles/", func(w http.ResponseWriter, r *http.Request) {
		s.fetches.Add(1)
		body, ok := s.articles[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(body))
	})
	s.Server = httptest.NewServer(mux)
	t.Cleanup(s.Close)
	return s
}

func (s *hnServer) addStory(id int, title, body string) {
	path := fmt.Sprintf("/articles/%d", id)
	s.top = append(s.top, id)
	s.items[id] = map[string]any{
		"id": id, "type": "story", "by": "pg", "time": 1700000000,
		"title": title, "url": s.URL + path, "score": 42,
	}
	s.articles[path] = "<html><head><title>" + title + "</title></head><body><p>" + body + "</p></body></html>"
}

func testConfig(t *testing.T, srv *hnServer) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.Feed.BaseURL = srv.URL + "/v0"
	cfg.Feed.RateLimit = 0
	cfg.Ledger.DataDir = t.TempDir()
	cfg.Ledger.SQLitePath = ""
	cfg.Embedding.Dimension = testDimension
	cfg.Chunk.Size = 8
	cfg.Chunk.Overlap = 2
	return cfg
}

func openTest(t *testing.T, cfg *config.Config) *Indexer {
	t.Helper()
	provider := mock.NewMockProviderWithEmbedder(mock.NewMockEmbedderWithDimension(testDimension))
	ix, err := Open(context.Background(), cfg, WithProvider(provider))
	require.NoError(t, err)
	return ix
}

func words(n int, prefix string) string {
	parts := make([]string, n)
	for i := range parts {
		parts[i] = fmt.Sprintf("%s%d", prefix, i)
	}
	return strings.Join(parts, " ")
}

func TestOpenRejectsInvalidConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Feed.MaxItems = 0
	cfg.Ledger.DataDir = t.TempDir()

	_, err := Open(context.Background(), cfg, WithProvider(mock.NewMockProvider()))
	require.ErrorIs(t, err, config.ErrInvalidConfig)
}

func TestOpenRejectsDimensionMismatch(t *testing.T) {
	cfg := config.Default()
	cfg.Ledger.DataDir = t.TempDir()
	cfg.Embedding.Dimension = 768

	// Mock embeds with 384 dimensions by default
	_, err := Open(context.Background(), cfg, WithProvider(mock.NewMockProvider()))
	require.ErrorIs(t, err, config.ErrInvalidConfig)
	assert.Contains(t, err.Error(), "384")
}

func TestRunEndToEnd(t *testing.T) {
	for _, backend := range []string{config.BackendBadger, config.BackendSQLite} {
		t.Run(backend, func(t *testing.T) {
			srv := newHNServer(t)
			srv.addStory(101, "Go generics", words(20, "generic"))
			srv.addStory(102, "Rust traits", words(5, "trait"))
			srv.top = append(srv.top, 103) // absent upstream

			cfg := testConfig(t, srv)
			cfg.Ledger.Backend = backend
			ix := openTest(t, cfg)
			defer ix.Close()

			ctx := context.Background()
			summary, err := ix.Run(ctx)
			require.NoError(t, err)
			assert.True(t, summary.Success)
			assert.Equal(t, 3, summary.Candidates)
			assert.Equal(t, 2, summary.Attempted)
			assert.Equal(t, 2, summary.Succeeded)
			assert.Equal(t, 1, summary.Skipped)
			// 20 words in windows of 8 with stride 6: 0-7, 6-13, 12-19
			assert.Equal(t, 4, summary.Vectors)

			status, err := ix.Status(ctx)
			require.NoError(t, err)
			assert.Equal(t, 2, status.Processed)
			require.NotNil(t, status.LastRun)
			assert.Equal(t, summary.RunID, status.LastRun.RunID)
			assert.Equal(t, backend, status.Ledger)

			// Second run finds nothing new and fetches no articles
			fetched := srv.fetches.Load()
			again, err := ix.Run(ctx)
			require.NoError(t, err)
			assert.True(t, again.Success)
			assert.Equal(t, 0, again.Attempted)
			assert.Equal(t, fetched, srv.fetches.Load())
		})
	}
}

func TestLedgerSurvivesReopen(t *testing.T) {
	srv := newHNServer(t)
	srv.addStory(7, "Persisted", words(10, "word"))
	cfg := testConfig(t, srv)

	ix := openTest(t, cfg)
	summary, err := ix.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, summary.Succeeded)
	require.NoError(t, ix.Close())

	reopened := openTest(t, cfg)
	defer reopened.Close()
	status, err := reopened.Status(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, status.Processed)

	again, err := reopened.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, again.New)
}

func TestSearchAfterRun(t *testing.T) {
	srv := newHNServer(t)
	srv.addStory(1, "Databases", "postgres replication and write ahead logging explained")
	srv.addStory(2, "Gardening", "tomatoes need sun water and patience every summer")
	cfg := testConfig(t, srv)
	cfg.Chunk.Size = 64
	cfg.Chunk.Overlap = 0

	ix := openTest(t, cfg)
	defer ix.Close()

	ctx := context.Background()
	_, err := ix.Run(ctx)
	require.NoError(t, err)

	results, err := ix.Search(ctx, "tomatoes need sun water and patience every summer", 1)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "Gardening", results[0].Hit.Metadata.Title)
	assert.Equal(t, "2-0", results[0].Hit.VectorID)
}

func TestStatusBeforeFirstRun(t *testing.T) {
	srv := newHNServer(t)
	ix := openTest(t, testConfig(t, srv))
	defer ix.Close()

	status, err := ix.Status(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, status.Processed)
	assert.Nil(t, status.LastRun)
	assert.Equal(t, "hn-rag-v0", status.Index.Name)
	assert.Equal(t, testDimension, status.Index.Dimension)
}

func TestRunFeedUnavailable(t *testing.T) {
	srv := newHNServer(t)
	cfg := testConfig(t, srv)
	cfg.Feed.BaseURL = srv.URL + "/missing"

	ix := openTest(t, cfg)
	defer ix.Close()

	summary, err := ix.Run(context.Background())
	require.NoError(t, err)
	assert.True(t, summary.Aborted)
	assert.Equal(t, 0, summary.Attempted)
}

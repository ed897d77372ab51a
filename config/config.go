// Package config loads the hnindex configuration.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/poiesic/hnindex/feed"
	"github.com/poiesic/hnindex/vectorindex"
)

// Storage backends.
const (
	BackendBadger = "badger"
	BackendSQLite = "sqlite"
	BackendQdrant = "qdrant"
)

// ErrInvalidConfig is wrapped by every validation error.
var ErrInvalidConfig = errors.New("invalid configuration")

// Config is the complete runtime configuration. It is built once by Load and
// passed explicitly to every component.
type Config struct {
	Feed      FeedConfig      `koanf:"feed"`
	Extract   ExtractConfig   `koanf:"extract"`
	Chunk     ChunkConfig     `koanf:"chunk"`
	Embedding EmbeddingConfig `koanf:"embedding"`
	Index     IndexConfig     `koanf:"index"`
	Ledger    LedgerConfig    `koanf:"ledger"`
	Pipeline  PipelineConfig  `koanf:"pipeline"`
	Metrics   MetricsConfig   `koanf:"metrics"`
}

// FeedConfig configures the Hacker News client.
type FeedConfig struct {
	BaseURL   string        `koanf:"base_url"`
	List      string        `koanf:"list"` // top, new or best
	MaxItems  int           `koanf:"max_items"`
	RateLimit float64       `koanf:"rate_limit"` // Requests per second, 0 for unlimited
	Timeout   time.Duration `koanf:"timeout"`
}

// ExtractConfig configures article fetching.
type ExtractConfig struct {
	UserAgent string        `koanf:"user_agent"` // Empty rotates over browser agents
	Timeout   time.Duration `koanf:"timeout"`
	MaxBytes  int64         `koanf:"max_bytes"`
}

// ChunkConfig sets the word window.
type ChunkConfig struct {
	Size    int `koanf:"size"`
	Overlap int `koanf:"overlap"`
}

// EmbeddingConfig configures the OpenAI-compatible embedding endpoint.
type EmbeddingConfig struct {
	Host      string        `koanf:"host"`
	Model     string        `koanf:"model"`
	Token     string        `koanf:"token"`
	Dimension int           `koanf:"dimension"`
	BatchSize int           `koanf:"batch_size"`
	Timeout   time.Duration `koanf:"timeout"`
}

// IndexConfig configures the vector index.
type IndexConfig struct {
	Backend   string        `koanf:"backend"` // badger or qdrant
	Name      string        `koanf:"name"`
	Metric    string        `koanf:"metric"`
	BatchSize int           `koanf:"batch_size"`
	Timeout   time.Duration `koanf:"timeout"`
	Qdrant    QdrantConfig  `koanf:"qdrant"`
}

// QdrantConfig configures the Qdrant gRPC connection.
type QdrantConfig struct {
	Host   string `koanf:"host"`
	Port   int    `koanf:"port"`
	APIKey string `koanf:"api_key"`
	UseTLS bool   `koanf:"use_tls"`
}

// LedgerConfig configures where processed ids and run records live.
type LedgerConfig struct {
	Backend    string `koanf:"backend"`     // badger or sqlite
	DataDir    string `koanf:"data_dir"`    // Badger directory, always used for run records
	SQLitePath string `koanf:"sqlite_path"` // Defaults to DataDir/ledger.db
}

// PipelineConfig tunes the ingestion controller.
type PipelineConfig struct {
	PoolSize int `koanf:"pool_size"`
}

// MetricsConfig configures the Prometheus Pushgateway.
type MetricsConfig struct {
	PushURL string `koanf:"push_url"` // Empty disables pushing
	Job     string `koanf:"job"`
}

// Validate checks the configuration for values no component can work with.
func (c *Config) Validate() error {
	var errs []error
	check := func(ok bool, format string, args ...any) {
		if !ok {
			errs = append(errs, fmt.Errorf(format, args...))
		}
	}

	if _, err := feed.ParseList(c.Feed.List); err != nil {
		errs = append(errs, fmt.Errorf("feed.list: %w", err))
	}
	check(c.Feed.BaseURL != "", "feed.base_url is required")
	check(c.Feed.MaxItems > 0, "feed.max_items must be positive, got %d", c.Feed.MaxItems)
	check(c.Feed.RateLimit >= 0, "feed.rate_limit must not be negative, got %g", c.Feed.RateLimit)

	check(c.Extract.MaxBytes > 0, "extract.max_bytes must be positive, got %d", c.Extract.MaxBytes)

	check(c.Chunk.Size > 0, "chunk.size must be positive, got %d", c.Chunk.Size)
	check(c.Chunk.Overlap >= 0 && c.Chunk.Overlap < c.Chunk.Size,
		"chunk.overlap must be in [0, %d), got %d", c.Chunk.Size, c.Chunk.Overlap)

	check(c.Embedding.Host != "", "embedding.host is required")
	check(c.Embedding.Model != "", "embedding.model is required")
	check(c.Embedding.Dimension > 0, "embedding.dimension must be positive, got %d", c.Embedding.Dimension)
	check(c.Embedding.BatchSize > 0, "embedding.batch_size must be positive, got %d", c.Embedding.BatchSize)

	check(c.Index.Backend == BackendBadger || c.Index.Backend == BackendQdrant,
		"index.backend must be %q or %q, got %q", BackendBadger, BackendQdrant, c.Index.Backend)
	check(c.Index.Name != "", "index.name is required")
	if _, err := vectorindex.ParseMetric(c.Index.Metric); err != nil {
		errs = append(errs, fmt.Errorf("index.metric: %w", err))
	}
	check(c.Index.BatchSize > 0, "index.batch_size must be positive, got %d", c.Index.BatchSize)
	if c.Index.Backend == BackendQdrant {
		check(c.Index.Qdrant.Host != "", "index.qdrant.host is required")
		check(c.Index.Qdrant.Port > 0 && c.Index.Qdrant.Port <= 65535,
			"index.qdrant.port must be 1-65535, got %d", c.Index.Qdrant.Port)
	}

	check(c.Ledger.Backend == BackendBadger || c.Ledger.Backend == BackendSQLite,
		"ledger.backend must be %q or %q, got %q", BackendBadger, BackendSQLite, c.Ledger.Backend)
	check(c.Ledger.DataDir != "", "ledger.data_dir is required")

	check(c.Pipeline.PoolSize > 0, "pipeline.pool_size must be positive, got %d", c.Pipeline.PoolSize)

	if c.Metrics.PushURL != "" {
		u, err := url.Parse(c.Metrics.PushURL)
		check(err == nil && u.Scheme != "" && u.Host != "", "metrics.push_url is not an absolute url: %q", c.Metrics.PushURL)
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(errs...))
	}
	return nil
}

package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"

	"github.com/poiesic/hnindex/feed"
)

const (
	// EnvPrefix starts every environment override.
	EnvPrefix = "HNINDEX_"

	maxConfigFileSize = 1024 * 1024 // 1MB
)

// Load builds the configuration.
//
// Configuration precedence (highest to lowest):
//  1. Environment variables (HNINDEX_FEED_MAX_ITEMS, HNINDEX_INDEX_QDRANT_HOST, etc.)
//  2. YAML config file at path, skipped when path is empty
//  3. Hardcoded defaults
//
// Environment variables drop the prefix, lowercase, and split on the first
// underscore into section and field:
//
//	HNINDEX_FEED_MAX_ITEMS    -> feed.max_items
//	HNINDEX_EMBEDDING_MODEL   -> embedding.model
//	HNINDEX_INDEX_QDRANT_HOST -> index.qdrant.host
func Load(path string) (*Config, error) {
	var content []byte
	if path != "" {
		data, err := readConfigFile(path)
		if err != nil {
			return nil, err
		}
		content = data
	}
	return load(content)
}

func load(content []byte) (*Config, error) {
	k := koanf.New(".")

	if len(content) > 0 {
		if err := k.Load(rawbytes.Provider(content), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	cfg := Default()
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	applyDefaults(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// envKey maps HNINDEX_SECTION_FIELD_NAME onto section.field_name.
func envKey(key string) string {
	lower := strings.ToLower(strings.TrimPrefix(key, EnvPrefix))
	section, field, ok := strings.Cut(lower, "_")
	if !ok {
		return lower
	}
	// The only nested section
	if section == "index" {
		if rest, found := strings.CutPrefix(field, "qdrant_"); found {
			return "index.qdrant." + rest
		}
	}
	return section + "." + field
}

func readConfigFile(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	if info.Size() > maxConfigFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", info.Size(), maxConfigFileSize)
	}

	data, err := io.ReadAll(io.LimitReader(f, maxConfigFileSize))
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return data, nil
}

// Default returns the configuration used when nothing is overridden.
func Default() *Config {
	return &Config{
		Feed: FeedConfig{
			BaseURL:   feed.DefaultBaseURL,
			List:      string(feed.Top),
			MaxItems:  30,
			RateLimit: 10,
			Timeout:   10 * time.Second,
		},
		Extract: ExtractConfig{
			Timeout:  20 * time.Second,
			MaxBytes: 5 << 20,
		},
		Chunk: ChunkConfig{
			Size:    512,
			Overlap: 50,
		},
		Embedding: EmbeddingConfig{
			Host:      "http://localhost:11434/v1",
			Model:     "nomic-embed-text",
			Token:     "none",
			Dimension: 768,
			BatchSize: 32,
			Timeout:   60 * time.Second,
		},
		Index: IndexConfig{
			Backend:   BackendBadger,
			Name:      "hn-rag-v0",
			Metric:    "cosine",
			BatchSize: 100,
			Timeout:   30 * time.Second,
			Qdrant: QdrantConfig{
				Host: "localhost",
				Port: 6334,
			},
		},
		Ledger: LedgerConfig{
			Backend: BackendBadger,
			DataDir: defaultDataDir(),
		},
		Pipeline: PipelineConfig{
			PoolSize: 1,
		},
		Metrics: MetricsConfig{
			Job: "hnindex",
		},
	}
}

// applyDefaults fills values that depend on other settings.
func applyDefaults(cfg *Config) {
	cfg.Ledger.DataDir = expandHome(cfg.Ledger.DataDir)
	cfg.Ledger.SQLitePath = expandHome(cfg.Ledger.SQLitePath)
	if cfg.Ledger.SQLitePath == "" && cfg.Ledger.DataDir != "" {
		cfg.Ledger.SQLitePath = filepath.Join(cfg.Ledger.DataDir, "ledger.db")
	}
	if cfg.Metrics.Job == "" {
		cfg.Metrics.Job = "hnindex"
	}
}

func expandHome(path string) string {
	rest, ok := strings.CutPrefix(path, "~/")
	if !ok {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, rest)
}

func defaultDataDir() string {
	if dir, err := os.UserCacheDir(); err == nil {
		return filepath.Join(dir, "hnindex")
	}
	return ".hnindex"
}

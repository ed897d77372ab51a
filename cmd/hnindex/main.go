// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
	"github.com/urfave/cli/v2"

	"github.com/poiesic/hnindex"
	"github.com/poiesic/hnindex/config"
	"github.com/poiesic/hnindex/ingestion"
	"github.com/poiesic/hnindex/search"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "hnindex",
		Usage: "Index Hacker News stories into a vector database",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to a YAML config file; HNINDEX_* variables override it",
				EnvVars: []string{"HNINDEX_CONFIG"},
			},
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Set logging level (debug, info, warn, error)",
				Value:   "info",
			},
		},
		Before: setupLogger,
		Commands: []*cli.Command{
			{
				Name:   "run",
				Usage:  "Ingest new stories from the feed",
				Action: runCommand,
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "max-items",
						Usage: "Maximum new stories to ingest (overrides feed.max_items)",
					},
					&cli.IntFlag{
						Name:  "pool-size",
						Usage: "Stories processed concurrently (overrides pipeline.pool_size)",
					},
					&cli.BoolFlag{
						Name:  "no-progress",
						Usage: "Do not print progress to stderr",
					},
				},
			},
			{
				Name:      "search",
				Usage:     "Query the index",
				ArgsUsage: "<query>",
				Action:    searchCommand,
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:    "top-k",
						Aliases: []string{"k"},
						Usage:   "Number of results",
						Value:   search.DefaultTopK,
					},
					&cli.Float64Flag{
						Name:  "min-score",
						Usage: "Drop results scoring below this",
					},
				},
			},
			{
				Name:   "status",
				Usage:  "Show the processed-story count and the last run",
				Action: statusCommand,
			},
		},
	}
}

// loadConfig reads the config file and applies the command's flag overrides.
func loadConfig(c *cli.Context) (*config.Config, error) {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return nil, err
	}
	if c.IsSet("max-items") {
		cfg.Feed.MaxItems = c.Int("max-items")
	}
	if c.IsSet("pool-size") {
		cfg.Pipeline.PoolSize = c.Int("pool-size")
	}
	return cfg, cfg.Validate()
}

func runCommand(c *cli.Context) error {
	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	ix, err := hnindex.Open(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to open indexer: %w", err)
	}
	defer ix.Close()

	reg := prometheus.NewRegistry()
	opts := []ingestion.Option{ingestion.WithMetrics(reg)}
	if !c.Bool("no-progress") {
		opts = append(opts, ingestion.WithProgress(os.Stderr))
	}

	fmt.Fprintf(os.Stderr, "Feed: %s (%s)\n", cfg.Feed.BaseURL, cfg.Feed.List)
	fmt.Fprintf(os.Stderr, "Index: %s %s (%d dims)\n", cfg.Index.Backend, cfg.Index.Name, cfg.Embedding.Dimension)
	fmt.Fprintf(os.Stderr, "Ledger: %s\n", cfg.Ledger.Backend)
	fmt.Fprintln(os.Stderr)

	summary, runErr := ix.Run(ctx, opts...)
	if summary != nil {
		printSummary(c.App.Writer, summary)
	}
	if err := pushMetrics(cfg.Metrics, reg); err != nil {
		slog.Warn("failed to push metrics", "url", cfg.Metrics.PushURL, "err", err)
	}
	if runErr != nil {
		return fmt.Errorf("run failed: %w", runErr)
	}
	return nil
}

func searchCommand(c *cli.Context) error {
	query := strings.Join(c.Args().Slice(), " ")
	if strings.TrimSpace(query) == "" {
		return fmt.Errorf("search query is required")
	}

	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	ix, err := hnindex.Open(c.Context, cfg)
	if err != nil {
		return fmt.Errorf("failed to open indexer: %w", err)
	}
	defer ix.Close()

	searcher, err := ix.NewSearcher(search.WithMinScore(float32(c.Float64("min-score"))))
	if err != nil {
		return err
	}
	results, err := searcher.Search(c.Context, query, c.Int("top-k"))
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}
	printResults(c.App.Writer, results)
	return nil
}

func statusCommand(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	ix, err := hnindex.Open(c.Context, cfg)
	if err != nil {
		return fmt.Errorf("failed to open indexer: %w", err)
	}
	defer ix.Close()

	status, err := ix.Status(c.Context)
	if err != nil {
		return err
	}
	printStatus(c.App.Writer, status)
	return nil
}

// pushMetrics sends the run's collectors to a Pushgateway. A batch job has
// no scrape endpoint, so this is its only way out.
func pushMetrics(cfg config.MetricsConfig, gatherer prometheus.Gatherer) error {
	if cfg.PushURL == "" {
		return nil
	}
	return push.New(cfg.PushURL, cfg.Job).Gatherer(gatherer).Push()
}

func printSummary(w io.Writer, s *ingestion.Summary) {
	fmt.Fprintf(w, "Run %s\n", s.RunID)
	switch {
	case s.Cancelled:
		fmt.Fprintln(w, "  cancelled")
	case s.Aborted:
		fmt.Fprintln(w, "  feed unavailable or empty, nothing to do")
	}
	fmt.Fprintf(w, "  candidates: %d, new: %d, skipped: %d\n", s.Candidates, s.New, s.Skipped)
	fmt.Fprintf(w, "  attempted: %d, succeeded: %d, failed: %d\n", s.Attempted, s.Succeeded, len(s.Failures))
	fmt.Fprintf(w, "  vectors: %d, duration: %s\n", s.Vectors, s.Duration().Round(time.Millisecond))
	for _, f := range s.Failures {
		fmt.Fprintf(w, "  item %d failed at %s: %v\n", f.ItemID, f.FailedStep(), f.Err)
	}
}

func printResults(w io.Writer, results []*search.Result) {
	fmt.Fprintf(w, "Found %d hits\n", len(results))
	for i, r := range results {
		marker := ""
		if r.Verbatim {
			marker = " *"
		}
		fmt.Fprintf(w, "%d: %s <%s> chunk %d [%0.3f]%s\n", i+1, r.Hit.Metadata.Title, r.Hit.Metadata.URL,
			r.Hit.Metadata.ChunkIndex, r.Score, marker)
		fmt.Fprintf(w, "   %s\n", excerpt(r.Hit.Metadata.Text, 160))
	}
}

func printStatus(w io.Writer, s *hnindex.Status) {
	fmt.Fprintf(w, "Processed stories: %d\n", s.Processed)
	fmt.Fprintf(w, "Ledger: %s\n", s.Ledger)
	fmt.Fprintf(w, "Index: %s %s (%d dims, %s)\n", s.Backend, s.Index.Name, s.Index.Dimension, s.Index.Metric)
	if s.LastRun == nil {
		fmt.Fprintln(w, "Last run: never")
		return
	}
	run := s.LastRun
	result := "ok"
	if !run.Success {
		result = "failed"
	}
	fmt.Fprintf(w, "Last run: %s (%s) at %s, took %s\n", run.RunID, result,
		run.StartedAt.Local().Format(time.RFC3339), run.FinishedAt.Sub(run.StartedAt).Round(time.Millisecond))
	fmt.Fprintf(w, "  attempted: %d, succeeded: %d, vectors: %d\n", run.Attempted, run.Succeeded, run.Vectors)
}

func excerpt(text string, n int) string {
	r := []rune(text)
	if len(r) <= n {
		return text
	}
	return string(r[:n]) + "..."
}

func setupLogger(c *cli.Context) error {
	levelStr := strings.ToLower(c.String("log-level"))

	var level slog.Level
	switch levelStr {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		return fmt.Errorf("invalid log level %q: must be one of debug, info, warn, error", levelStr)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	return nil
}

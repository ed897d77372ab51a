package feed

import (
	"cmp"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/poiesic/hnindex/core"
)

const (
	// DefaultBaseURL is the public Hacker News Firebase API.
	DefaultBaseURL = "https://hacker-news.firebaseio.com/v0"

	// DefaultRequestsPerSecond spaces requests 100ms apart.
	DefaultRequestsPerSecond = 10

	DefaultTimeout = 10 * time.Second
)

var (
	// ErrTransport indicates the upstream API could not be reached or
	// returned something other than the expected JSON.
	ErrTransport = errors.New("feed transport error")

	// ErrUnknownList indicates a list name other than top, new or best.
	ErrUnknownList = errors.New("unknown story list")
)

// List names a ranked story list.
type List string

const (
	Top  List = "top"
	New  List = "new"
	Best List = "best"
)

// ParseList maps a configuration string onto a List.
func ParseList(s string) (List, error) {
	switch l := List(strings.ToLower(strings.TrimSpace(s))); l {
	case Top, New, Best:
		return l, nil
	case "":
		return Top, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownList, s)
	}
}

// Source lists candidate items and resolves their details.
type Source interface {
	ListTopItemIDs(ctx context.Context) ([]core.ID, error)
	FetchItem(ctx context.Context, id core.ID) (*core.Item, error)
}

// Client reads stories from the Hacker News API.
type Client struct {
	baseURL string
	list    List
	http    *http.Client
	timeout time.Duration
	limiter *rate.Limiter
	logger  *slog.Logger
}

var _ Source = (*Client)(nil)

// Option configures a Client.
type Option func(*Client)

// WithBaseURL points the client at another API root, mostly for tests.
func WithBaseURL(u string) Option {
	return func(c *Client) {
		c.baseURL = strings.TrimRight(u, "/")
	}
}

// WithList selects which ranked list ListTopItemIDs reads.
func WithList(l List) Option {
	return func(c *Client) {
		c.list = l
	}
}

// WithHTTPClient sets the client whose transport performs requests.
// The client itself is never modified.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) {
		c.http = h
	}
}

// WithTimeout sets the per-request timeout, regardless of where it appears
// relative to WithHTTPClient.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.timeout = d
	}
}

// WithRateLimit caps requests per second. A non-positive value disables limiting.
func WithRateLimit(perSecond float64) Option {
	return func(c *Client) {
		if perSecond <= 0 {
			c.limiter = rate.NewLimiter(rate.Inf, 0)
			return
		}
		c.limiter = rate.NewLimiter(rate.Limit(perSecond), 1)
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// NewClient creates a Client with the given options.
func NewClient(opts ...Option) *Client {
	c := &Client{
		baseURL: DefaultBaseURL,
		list:    Top,
		limiter: rate.NewLimiter(rate.Limit(DefaultRequestsPerSecond), 1),
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.http == nil {
		c.http = &http.Client{Timeout: cmp.Or(c.timeout, DefaultTimeout)}
	} else {
		// Copy so the timeout never leaks into a caller's shared client
		h := *c.http
		if c.timeout > 0 {
			h.Timeout = c.timeout
		}
		c.http = &h
	}
	c.logger = c.logger.With("component", "feed")
	return c
}

// ListTopItemIDs returns the ids of the configured ranked list in upstream order.
func (c *Client) ListTopItemIDs(ctx context.Context) ([]core.ID, error) {
	var ids []core.ID
	if err := c.getJSON(ctx, fmt.Sprintf("%s/%sstories.json", c.baseURL, c.list), &ids); err != nil {
		return nil, err
	}
	c.logger.Debug("listed stories", "list", c.list, "count", len(ids))
	return ids, nil
}

// item mirrors the subset of the upstream item record we read.
type item struct {
	ID      core.ID `json:"id"`
	Type    string  `json:"type"`
	By      string  `json:"by"`
	Time    int64   `json:"time"`
	Title   string  `json:"title"`
	URL     string  `json:"url"`
	Score   int     `json:"score"`
	Deleted bool    `json:"deleted"`
	Dead    bool    `json:"dead"`
}

// FetchItem returns the item's details, or nil with no error when the item
// is not an ingestible story: missing, deleted, dead, not a story, or
// without a fetchable URL.
func (c *Client) FetchItem(ctx context.Context, id core.ID) (*core.Item, error) {
	// The API answers unknown ids with a literal null
	var raw *item
	if err := c.getJSON(ctx, fmt.Sprintf("%s/item/%d.json", c.baseURL, id), &raw); err != nil {
		return nil, err
	}
	if raw == nil || raw.Deleted || raw.Dead || raw.Type != "story" {
		return nil, nil
	}
	if !core.IsFetchableURL(raw.URL) {
		return nil, nil
	}
	if raw.ID == 0 {
		raw.ID = id
	}

	it := &core.Item{
		ID:     raw.ID,
		Title:  raw.Title,
		URL:    raw.URL,
		Author: raw.By,
		Score:  raw.Score,
	}
	if raw.Time > 0 {
		it.PublishedAt = time.Unix(raw.Time, 0).UTC()
	}
	return it, nil
}

func (c *Client) getJSON(ctx context.Context, url string, dst any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("%w: %w", ErrTransport, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrTransport, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrTransport, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		// Drain so the connection can be reused
		_, _ = io.Copy(io.Discard, resp.Body)
		return fmt.Errorf("%w: GET %s: status %d", ErrTransport, url, resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		return fmt.Errorf("%w: decoding %s: %w", ErrTransport, url, err)
	}
	return nil
}

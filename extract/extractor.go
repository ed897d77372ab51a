package extract

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"mime"
	"net/http"
	"strings"
	"time"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

const (
	DefaultTimeout = 20 * time.Second

	// DefaultMaxBytes caps how much of a response body is read.
	DefaultMaxBytes = 5 << 20
)

// ErrExtraction indicates the page could not be fetched or yielded no text.
var ErrExtraction = errors.New("content extraction failed")

// DefaultUserAgents is rotated across requests when no fixed agent is set.
var DefaultUserAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36",
	"Mozilla/5.0 (X11; Linux x86_64; rv:125.0) Gecko/20100101 Firefox/125.0",
}

// Extractor turns a URL into the visible text of the page behind it.
type Extractor interface {
	Extract(ctx context.Context, url string) (string, error)
}

// HTTPExtractor fetches pages over HTTP and strips markup.
type HTTPExtractor struct {
	http       *http.Client
	timeout    time.Duration
	userAgents []string
	maxBytes   int64
	logger     *slog.Logger
}

var _ Extractor = (*HTTPExtractor)(nil)

// Option configures an HTTPExtractor.
type Option func(*HTTPExtractor)

// WithUserAgent pins the User-Agent header instead of rotating.
func WithUserAgent(ua string) Option {
	return func(e *HTTPExtractor) {
		if ua != "" {
			e.userAgents = []string{ua}
		}
	}
}

// WithTimeout bounds each fetch, including reading the body. It is applied
// to a copy of any client passed with WithHTTPClient, whatever the option order.
func WithTimeout(d time.Duration) Option {
	return func(e *HTTPExtractor) {
		e.timeout = d
	}
}

// WithMaxBytes caps the response size; larger pages fail extraction.
func WithMaxBytes(n int64) Option {
	return func(e *HTTPExtractor) {
		if n > 0 {
			e.maxBytes = n
		}
	}
}

// WithHTTPClient sets the client whose transport fetches pages.
// The client itself is never modified.
func WithHTTPClient(h *http.Client) Option {
	return func(e *HTTPExtractor) {
		e.http = h
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *HTTPExtractor) {
		e.logger = logger
	}
}

// New creates an HTTPExtractor.
func New(opts ...Option) *HTTPExtractor {
	e := &HTTPExtractor{
		userAgents: DefaultUserAgents,
		maxBytes:   DefaultMaxBytes,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.http = ownedClient(e.http, e.timeout)
	e.logger = e.logger.With("component", "extract")
	return e
}

// ownedClient returns a client with timeout applied that nothing outside the
// extractor shares. A zero timeout keeps base's own, or DefaultTimeout for a
// fresh client.
func ownedClient(base *http.Client, timeout time.Duration) *http.Client {
	if base == nil {
		return &http.Client{Timeout: cmp.Or(timeout, DefaultTimeout)}
	}
	c := *base
	if timeout > 0 {
		c.Timeout = timeout
	}
	return &c
}

// Extract fetches url and returns its whitespace-normalized visible text.
func (e *HTTPExtractor) Extract(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrExtraction, err)
	}
	req.Header.Set("User-Agent", e.userAgent())
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := e.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrExtraction, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("%w: GET %s: status %d", ErrExtraction, url, resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "" && !isHTML(ct) {
		return "", fmt.Errorf("%w: unsupported content type %q", ErrExtraction, ct)
	}

	body := io.LimitReader(resp.Body, e.maxBytes+1)
	counted := &countingReader{r: body}
	text, err := Text(counted)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrExtraction, err)
	}
	if counted.n > e.maxBytes {
		return "", fmt.Errorf("%w: body exceeds %d bytes", ErrExtraction, e.maxBytes)
	}
	if text == "" {
		return "", fmt.Errorf("%w: no text in %s", ErrExtraction, url)
	}

	e.logger.Debug("extracted page", "url", url, "bytes", counted.n, "chars", len(text))
	return text, nil
}

func (e *HTTPExtractor) userAgent() string {
	if len(e.userAgents) == 1 {
		return e.userAgents[0]
	}
	return e.userAgents[rand.IntN(len(e.userAgents))]
}

func isHTML(contentType string) bool {
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	return mt == "text/html" || mt == "application/xhtml+xml"
}

type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}

// skipped elements never contribute visible text.
var skipped = map[atom.Atom]bool{
	atom.Script:   true,
	atom.Style:    true,
	atom.Nav:      true,
	atom.Footer:   true,
	atom.Header:   true,
	atom.Noscript: true,
	atom.Svg:      true,
	atom.Head:     true,
	atom.Template: true,
}

// Text parses an HTML document and returns the text outside skipped
// subtrees, with runs of whitespace collapsed to single spaces. The tree
// builder closes elements whose end tags the page leaves out, so an
// unterminated <head> does not swallow the body.
func Text(r io.Reader) (string, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return "", err
	}
	var b strings.Builder
	collectText(&b, doc)
	return strings.Join(strings.Fields(b.String()), " "), nil
}

func collectText(b *strings.Builder, n *html.Node) {
	switch n.Type {
	case html.ElementNode:
		if skipped[n.DataAtom] {
			return
		}
	case html.TextNode:
		b.WriteString(n.Data)
		b.WriteByte(' ')
		return
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		collectText(b, c)
	}
}

// Package wordpress talks to the WordPress REST API (wp-json/wp/v2).
package wordpress

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/fairyhunter13/ai-content-publisher/internal/domain"
	obsctx "github.com/fairyhunter13/ai-content-publisher/internal/observability"
)

const apiPrefix = "/wp-json/wp/v2"

// userAgents are rotated on outgoing requests; some hosts block obvious API clients.
var userAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 14_4) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.4 Safari/605.1.15",
	"Mozilla/5.0 (X11; Linux x86_64; rv:125.0) Gecko/20100101 Firefox/125.0",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:125.0) Gecko/20100101 Firefox/125.0",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36 Edg/124.0.0.0",
}

// RandomUserAgent returns one browser User-Agent from the pool.
func RandomUserAgent() string { return userAgents[rand.IntN(len(userAgents))] }

// HTTPError is returned for non-2xx responses.
type HTTPError struct {
	Status int
	Body   string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("wordpress: status %d: %s", e.Status, e.Body)
}

// StatusCode returns the HTTP status.
func (e *HTTPError) StatusCode() int { return e.Status }

// PostInput is the writable subset of a post.
type PostInput struct {
	Title         string  `json:"title,omitempty"`
	Content       string  `json:"content,omitempty"`
	Status        string  `json:"status,omitempty"`
	Categories    []int64 `json:"categories,omitempty"`
	FeaturedMedia int64   `json:"featured_media,omitempty"`
}

// Post is the subset of a post response the service reads.
type Post struct {
	ID     int64  `json:"id"`
	Link   string `json:"link"`
	Status string `json:"status"`
	Title  struct {
		Rendered string `json:"rendered"`
	} `json:"title"`
}

// Media is an uploaded attachment.
type Media struct {
	ID        int64  `json:"id"`
	SourceURL string `json:"source_url"`
}

// RequestOption adjusts an outgoing request.
type RequestOption func(*http.Request)

// WithHeader sets a header on the request.
func WithHeader(key, value string) RequestOption {
	return func(r *http.Request) { r.Header.Set(key, value) }
}

// Client is stateless with respect to sites; credentials come with each call.
type Client struct {
	hc *http.Client
}

// New returns a client with an otelhttp transport. Per-call deadlines come from ctx.
func New() *Client {
	transport := otelhttp.NewTransport(http.DefaultTransport,
		otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
			return fmt.Sprintf("WordPress %s %s", r.Method, r.URL.Host)
		}),
	)
	return &Client{hc: &http.Client{Transport: transport, Timeout: 2 * time.Minute}}
}

// NewWithHTTPClient is used by tests and custom transports.
func NewWithHTTPClient(hc *http.Client) *Client { return &Client{hc: hc} }

// CreatePost creates a post.
func (c *Client) CreatePost(ctx context.Context, site domain.Site, in PostInput, opts ...RequestOption) (Post, error) {
	var out Post
	if err := c.doJSON(ctx, site, http.MethodPost, "/posts", in, &out, opts...); err != nil {
		return Post{}, fmt.Errorf("op=wordpress.CreatePost: %w", err)
	}
	return out, nil
}

// UpdatePost updates post id.
func (c *Client) UpdatePost(ctx context.Context, site domain.Site, id int64, in PostInput, opts ...RequestOption) (Post, error) {
	var out Post
	if err := c.doJSON(ctx, site, http.MethodPost, "/posts/"+strconv.FormatInt(id, 10), in, &out, opts...); err != nil {
		return Post{}, fmt.Errorf("op=wordpress.UpdatePost: %w", err)
	}
	return out, nil
}

// GetPost fetches post id in edit context so drafts are visible.
func (c *Client) GetPost(ctx context.Context, site domain.Site, id int64) (Post, error) {
	var out Post
	if err := c.doJSON(ctx, site, http.MethodGet, "/posts/"+strconv.FormatInt(id, 10)+"?context=edit", nil, &out); err != nil {
		return Post{}, fmt.Errorf("op=wordpress.GetPost: %w", err)
	}
	return out, nil
}

// UploadMedia uploads a binary attachment.
func (c *Client) UploadMedia(ctx context.Context, site domain.Site, filename, mimeType string, data []byte) (Media, error) {
	req, err := c.newRequest(ctx, site, http.MethodPost, "/media", bytes.NewReader(data))
	if err != nil {
		return Media{}, fmt.Errorf("op=wordpress.UploadMedia: %w", err)
	}
	req.Header.Set("Content-Type", mimeType)
	req.Header.Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, strings.ReplaceAll(filename, `"`, "")))
	var out Media
	if err := c.do(req, &out); err != nil {
		return Media{}, fmt.Errorf("op=wordpress.UploadMedia: %w", err)
	}
	return out, nil
}

func (c *Client) doJSON(ctx context.Context, site domain.Site, method, path string, in, out any, opts ...RequestOption) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(b)
	}
	req, err := c.newRequest(ctx, site, method, path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json; charset=utf-8")
	}
	for _, o := range opts {
		o(req)
	}
	return c.do(req, out)
}

func (c *Client) newRequest(ctx context.Context, site domain.Site, method, path string, body io.Reader) (*http.Request, error) {
	endpoint := strings.TrimRight(site.BaseURL, "/") + apiPrefix + path
	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return nil, err
	}
	req.SetBasicAuth(site.Username, site.AppPassword)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", RandomUserAgent())
	return req, nil
}

func (c *Client) do(req *http.Request, out any) error {
	start := time.Now()
	resp, err := c.hc.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	b, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return err
	}
	obsctx.LoggerFromContext(req.Context()).Debug("wordpress call",
		slog.String("method", req.Method),
		slog.String("host", req.URL.Host),
		slog.String("path", req.URL.Path),
		slog.Int("status", resp.StatusCode),
		slog.Duration("elapsed", time.Since(start)))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet := string(b)
		if len(snippet) > 512 {
			snippet = snippet[:512]
		}
		return &HTTPError{Status: resp.StatusCode, Body: snippet}
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(b, out); err != nil {
		// WAF challenge pages come back as 200 HTML
		return &HTTPError{Status: resp.StatusCode, Body: "unexpected non-JSON response"}
	}
	return nil
}

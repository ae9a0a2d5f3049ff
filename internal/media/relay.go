// Package media copies images embedded in generated HTML into the CMS media library.
package media

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
	"golang.org/x/sync/errgroup"

	"github.com/fairyhunter13/ai-content-publisher/internal/adapter/cms/wordpress"
	"github.com/fairyhunter13/ai-content-publisher/internal/adapter/observability"
	"github.com/fairyhunter13/ai-content-publisher/internal/config"
	"github.com/fairyhunter13/ai-content-publisher/internal/domain"
	obsctx "github.com/fairyhunter13/ai-content-publisher/internal/observability"
	"github.com/fairyhunter13/ai-content-publisher/pkg/timex"
)

const fetchConcurrency = 4

// Uploader stores a binary attachment on the target site.
type Uploader interface {
	UploadMedia(ctx context.Context, site domain.Site, filename, mimeType string, data []byte) (wordpress.Media, error)
}

// Relayed is the rewritten body plus the featured image, when one was uploaded.
type Relayed struct {
	HTML            string
	FeaturedMediaID *int64
	Uploaded        int
	Failed          int
}

// Relay moves images into the CMS.
type Relay struct {
	uploader        Uploader
	hc              *http.Client
	retry           config.RetryConfig
	uploadDelay     time.Duration
	downloadTimeout time.Duration
}

// Option configures a Relay.
type Option func(*Relay)

// WithHTTPClient sets the client used to download remote images.
func WithHTTPClient(hc *http.Client) Option { return func(r *Relay) { r.hc = hc } }

// WithRetry sets the download backoff.
func WithRetry(rc config.RetryConfig) Option { return func(r *Relay) { r.retry = rc } }

// WithUploadDelay sets the pause between consecutive uploads.
func WithUploadDelay(d time.Duration) Option { return func(r *Relay) { r.uploadDelay = d } }

// WithDownloadTimeout bounds a single download attempt.
func WithDownloadTimeout(d time.Duration) Option { return func(r *Relay) { r.downloadTimeout = d } }

// NewRelay builds a relay with production defaults.
func NewRelay(up Uploader, opts ...Option) *Relay {
	r := &Relay{
		uploader: up,
		hc: &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport,
			otelhttp.WithSpanNameFormatter(func(_ string, req *http.Request) string {
				return "Image GET " + req.URL.Host
			}))},
		retry:           config.RetryConfig{MaxRetries: 3, InitialDelay: 500 * time.Millisecond, MaxDelay: 5 * time.Second, Multiplier: 2},
		uploadDelay:     500 * time.Millisecond,
		downloadTimeout: 20 * time.Second,
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// RelayImages uploads every <img> in document order. The first uploaded image
// becomes the featured image and its tag is dropped; later ones point at the
// hosted copy. Images that fail to fetch or upload are left untouched.
func (r *Relay) RelayImages(ctx context.Context, body string, site domain.Site, contentID string) (Relayed, error) {
	ctx, span := otel.Tracer("media.relay").Start(ctx, "media.RelayImages")
	defer span.End()

	if !strings.Contains(strings.ToLower(body), "<img") {
		return Relayed{HTML: body}, nil
	}
	ctxNode := &html.Node{Type: html.ElementNode, Data: "body", DataAtom: atom.Body}
	nodes, err := html.ParseFragment(strings.NewReader(body), ctxNode)
	if err != nil {
		return Relayed{}, fmt.Errorf("op=media.RelayImages: parse: %w", err)
	}
	root := &html.Node{Type: html.ElementNode, Data: "div", DataAtom: atom.Div}
	for _, n := range nodes {
		root.AppendChild(n)
	}

	lg := obsctx.LoggerFromContext(ctx).With(slog.String("content_id", contentID), slog.String("site_id", site.ID))
	imgs := collectImages(root)
	fetches := r.prefetch(ctx, imgs)

	var out Relayed
	attempted := 0
	for i, img := range imgs {
		src := attr(img, "src")
		if src == "" {
			continue
		}
		fetched, err := fetches[i].img, fetches[i].err
		if err != nil {
			out.Failed++
			observability.ObserveMediaUpload(sourceLabel(src), "fetch_failed")
			lg.Warn("image fetch failed, skipping", slog.Int("index", i), slog.String("src", shortSrc(src)), slog.Any("error", err))
			continue
		}
		if attempted > 0 {
			if err := timex.Sleep(ctx, r.uploadDelay); err != nil {
				return Relayed{}, fmt.Errorf("op=media.RelayImages: %w", err)
			}
		}
		attempted++
		filename := fmt.Sprintf("%s-%d%s", contentID, attempted, extensionFor(fetched.mimeType))
		media, err := r.uploader.UploadMedia(ctx, site, filename, fetched.mimeType, fetched.data)
		if err != nil {
			out.Failed++
			observability.ObserveMediaUpload(fetched.source, "upload_failed")
			lg.Warn("image upload failed, skipping", slog.Int("index", i), slog.String("filename", filename), slog.Any("error", err))
			continue
		}
		out.Uploaded++
		observability.ObserveMediaUpload(fetched.source, "ok")

		if out.FeaturedMediaID == nil {
			id := media.ID
			out.FeaturedMediaID = &id
			removeImage(img)
			continue
		}
		setAttr(img, "src", media.SourceURL)
		removeAttr(img, "srcset")
		removeAttr(img, "sizes")
	}

	var b strings.Builder
	for c := root.FirstChild; c != nil; c = c.NextSibling {
		if err := html.Render(&b, c); err != nil {
			return Relayed{}, fmt.Errorf("op=media.RelayImages: render: %w", err)
		}
	}
	out.HTML = b.String()
	span.SetAttributes(attribute.Int("media.uploaded", out.Uploaded), attribute.Int("media.failed", out.Failed))
	lg.Info("images relayed", slog.Int("uploaded", out.Uploaded), slog.Int("failed", out.Failed))
	return out, nil
}

type fetchResult struct {
	img image
	err error
}

// prefetch downloads every image concurrently; uploads stay sequential.
func (r *Relay) prefetch(ctx context.Context, imgs []*html.Node) []fetchResult {
	results := make([]fetchResult, len(imgs))
	var g errgroup.Group
	g.SetLimit(fetchConcurrency)
	for i, img := range imgs {
		src := attr(img, "src")
		if src == "" {
			continue
		}
		g.Go(func() error {
			results[i].img, results[i].err = r.fetch(ctx, src)
			return nil
		})
	}
	_ = g.Wait()
	return results
}

func (r *Relay) fetch(ctx context.Context, src string) (image, error) {
	lower := strings.ToLower(src)
	switch {
	case strings.HasPrefix(lower, "data:"):
		return decodeDataURL(src)
	case strings.HasPrefix(lower, "http://"), strings.HasPrefix(lower, "https://"):
		return r.download(ctx, src)
	default:
		return image{}, errUnsupportedSource
	}
}

func collectImages(root *html.Node) []*html.Node {
	var imgs []*html.Node
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.DataAtom == atom.Img {
			imgs = append(imgs, n)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)
	return imgs
}

// removeImage drops the tag and every <a>, <figure> or <p> wrapper left
// empty by it, innermost first.
func removeImage(img *html.Node) {
	parent := img.Parent
	if parent == nil {
		return
	}
	parent.RemoveChild(img)
	for n := parent; n.Parent != nil && isWrapper(n) && isBlank(n); {
		up := n.Parent
		up.RemoveChild(n)
		n = up
	}
}

func isWrapper(n *html.Node) bool {
	if n.Type != html.ElementNode {
		return false
	}
	switch n.DataAtom {
	case atom.A, atom.Figure, atom.P:
		return true
	}
	return false
}

func isBlank(n *html.Node) bool {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type != html.TextNode || strings.TrimSpace(c.Data) != "" {
			return false
		}
	}
	return true
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return strings.TrimSpace(a.Val)
		}
	}
	return ""
}

func setAttr(n *html.Node, key, val string) {
	for i := range n.Attr {
		if n.Attr[i].Key == key {
			n.Attr[i].Val = val
			return
		}
	}
	n.Attr = append(n.Attr, html.Attribute{Key: key, Val: val})
}

func removeAttr(n *html.Node, key string) {
	kept := n.Attr[:0]
	for _, a := range n.Attr {
		if a.Key != key {
			kept = append(kept, a)
		}
	}
	n.Attr = kept
}

func sourceLabel(src string) string {
	if strings.HasPrefix(strings.ToLower(src), "data:") {
		return "data"
	}
	return "remote"
}

// shortSrc keeps data URLs out of the logs.
func shortSrc(src string) string {
	if len(src) > 80 {
		return src[:80] + "..."
	}
	return src
}

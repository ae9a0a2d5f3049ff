package publish

import (
	"context"
	"fmt"
	"math/rand/v2"
	"net/url"
	"strings"
	"time"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/fairyhunter13/ai-content-publisher/internal/adapter/cms/wordpress"
	"github.com/fairyhunter13/ai-content-publisher/internal/config"
	"github.com/fairyhunter13/ai-content-publisher/internal/domain"
	"github.com/fairyhunter13/ai-content-publisher/pkg/textx"
	"github.com/fairyhunter13/ai-content-publisher/pkg/timex"
)

// CMS is the slice of the WordPress client the cascade needs.
type CMS interface {
	CreatePost(ctx context.Context, site domain.Site, in wordpress.PostInput, opts ...wordpress.RequestOption) (wordpress.Post, error)
	UpdatePost(ctx context.Context, site domain.Site, id int64, in wordpress.PostInput, opts ...wordpress.RequestOption) (wordpress.Post, error)
	GetPost(ctx context.Context, site domain.Site, id int64) (wordpress.Post, error)
}

// Payload is what gets published.
type Payload struct {
	Title         string
	Content       string
	Status        string
	Categories    []int64
	FeaturedMedia int64
}

func (p Payload) input() wordpress.PostInput {
	return wordpress.PostInput{
		Title:         p.Title,
		Content:       p.Content,
		Status:        p.Status,
		Categories:    p.Categories,
		FeaturedMedia: p.FeaturedMedia,
	}
}

// Outcome is what a successful strategy produced.
type Outcome struct {
	Post     wordpress.Post
	Degraded bool
}

// Strategy is one way of shaping the publish request.
type Strategy interface {
	Name() string
	Publish(ctx context.Context, cms CMS, p Payload, site domain.Site) (Outcome, error)
}

// DefaultStrategies returns Full, Chunked, Delayed and Truncated in that order.
func DefaultStrategies(t config.PublishTimeouts) []Strategy {
	return []Strategy{
		Full{Timeout: t.Full},
		Chunked{Timeout: t.Chunked, Settle: t.Settle},
		Delayed{Timeout: t.Delayed, Min: t.DelayMin, Max: t.DelayMax},
		Truncated{Timeout: t.Truncated, Chars: t.TruncateChars},
	}
}

// Full sends the complete payload once with a browser User-Agent and the site as Referer.
type Full struct {
	Timeout time.Duration
}

func (Full) Name() string { return "full" }

func (s Full) Publish(ctx context.Context, cms CMS, p Payload, site domain.Site) (Outcome, error) {
	cctx, cancel := withTimeout(ctx, s.Timeout)
	defer cancel()
	post, err := cms.CreatePost(cctx, site, p.input(), browserHeaders(site)...)
	if err != nil {
		return Outcome{}, err
	}
	return Outcome{Post: post}, nil
}

// Chunked creates a bare draft first and then fills it in with a second call.
// A draft left behind by a failed update is not removed.
type Chunked struct {
	Timeout time.Duration
	Settle  time.Duration
}

func (Chunked) Name() string { return "chunked" }

func (s Chunked) Publish(ctx context.Context, cms CMS, p Payload, site domain.Site) (Outcome, error) {
	cctx, cancel := withTimeout(ctx, s.Timeout)
	post, err := cms.CreatePost(cctx, site, wordpress.PostInput{Title: p.Title, Status: "draft"}, browserHeaders(site)...)
	cancel()
	if err != nil {
		return Outcome{}, err
	}
	if err := timex.Sleep(ctx, s.Settle); err != nil {
		return Outcome{}, err
	}
	uctx, ucancel := withTimeout(ctx, s.Timeout)
	defer ucancel()
	updated, err := cms.UpdatePost(uctx, site, post.ID, p.input(), browserHeaders(site)...)
	if err != nil {
		return Outcome{}, fmt.Errorf("update of draft %d: %w", post.ID, err)
	}
	return Outcome{Post: updated}, nil
}

// Delayed waits a random interval and retries the full payload with spoofed forwarding headers.
type Delayed struct {
	Timeout  time.Duration
	Min, Max time.Duration
}

func (Delayed) Name() string { return "delayed" }

func (s Delayed) Publish(ctx context.Context, cms CMS, p Payload, site domain.Site) (Outcome, error) {
	if err := timex.Sleep(ctx, timex.Jitter(s.Min, s.Max)); err != nil {
		return Outcome{}, err
	}
	ip := randomIP()
	opts := append(browserHeaders(site),
		wordpress.WithHeader("X-Forwarded-For", ip),
		wordpress.WithHeader("X-Real-IP", ip),
		wordpress.WithHeader("X-Originating-IP", ip),
	)
	cctx, cancel := withTimeout(ctx, s.Timeout)
	defer cancel()
	post, err := cms.CreatePost(cctx, site, p.input(), opts...)
	if err != nil {
		return Outcome{}, err
	}
	return Outcome{Post: post}, nil
}

// Truncated sends a shortened body; success is reported as degraded.
type Truncated struct {
	Timeout time.Duration
	Chars   int
}

func (Truncated) Name() string { return "truncated" }

func (s Truncated) Publish(ctx context.Context, cms CMS, p Payload, site domain.Site) (Outcome, error) {
	short, err := TruncateHTML(p.Content, s.Chars)
	if err != nil {
		return Outcome{}, err
	}
	p.Content = short
	cctx, cancel := withTimeout(ctx, s.Timeout)
	defer cancel()
	post, err := cms.CreatePost(cctx, site, p.input(), browserHeaders(site)...)
	if err != nil {
		return Outcome{}, err
	}
	return Outcome{Post: post, Degraded: true}, nil
}

func browserHeaders(site domain.Site) []wordpress.RequestOption {
	opts := []wordpress.RequestOption{wordpress.WithHeader("User-Agent", wordpress.RandomUserAgent())}
	if u, err := url.Parse(site.BaseURL); err == nil && u.Host != "" {
		origin := u.Scheme + "://" + u.Host
		opts = append(opts, wordpress.WithHeader("Referer", origin+"/"), wordpress.WithHeader("Origin", origin))
	}
	return opts
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}

func randomIP() string {
	return fmt.Sprintf("%d.%d.%d.%d", 11+rand.IntN(212), rand.IntN(256), rand.IntN(256), 1+rand.IntN(254))
}

// truncatedMarkupFactor caps the rendered body at this many bytes per
// kept character; markup beyond that is dropped for plain paragraphs.
const truncatedMarkupFactor = 4

// TruncateHTML keeps at most limit characters of text, cutting on a word
// boundary and dropping every node after the cut. Scripts, styles, embeds and
// inline data: images are removed, and the rendered output never exceeds
// limit*truncatedMarkupFactor bytes. Markup stays balanced.
func TruncateHTML(src string, limit int) (string, error) {
	if limit <= 0 || len(src) <= limit {
		return src, nil
	}
	body := &html.Node{Type: html.ElementNode, Data: "body", DataAtom: atom.Body}
	nodes, err := html.ParseFragment(strings.NewReader(src), body)
	if err != nil {
		return "", fmt.Errorf("parse html: %w", err)
	}
	root := &html.Node{Type: html.ElementNode, Data: "div", DataAtom: atom.Div}
	for _, n := range nodes {
		root.AppendChild(n)
	}

	remaining := limit
	done := false
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		for c := n.FirstChild; c != nil; {
			next := c.NextSibling
			switch {
			case done, isHeavyNode(c):
				n.RemoveChild(c)
			case c.Type == html.TextNode:
				size := len([]rune(c.Data))
				switch {
				case remaining <= 0:
					done = true
					n.RemoveChild(c)
				case size > remaining:
					c.Data = textx.TruncateWords(c.Data, remaining)
					done = true
				default:
					remaining -= size
				}
			default:
				walk(c)
			}
			c = next
		}
	}
	walk(root)

	var b strings.Builder
	for c := root.FirstChild; c != nil; c = c.NextSibling {
		if err := html.Render(&b, c); err != nil {
			return "", fmt.Errorf("render html: %w", err)
		}
	}
	if out := b.String(); len(out) <= limit*truncatedMarkupFactor {
		return out, nil
	}
	return plainParagraphs(root, limit*truncatedMarkupFactor), nil
}

func isHeavyNode(n *html.Node) bool {
	if n.Type != html.ElementNode {
		return n.Type == html.CommentNode
	}
	switch n.DataAtom {
	case atom.Script, atom.Style, atom.Iframe, atom.Object, atom.Embed, atom.Svg, atom.Video, atom.Audio, atom.Noscript:
		return true
	case atom.Img, atom.Source:
		return strings.HasPrefix(strings.ToLower(strings.TrimSpace(attrOf(n, "src"))), "data:")
	}
	return false
}

func attrOf(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

// plainParagraphs renders the block texts of root as escaped <p> elements,
// stopping before maxBytes.
func plainParagraphs(root *html.Node, maxBytes int) string {
	var blocks []string
	var cur strings.Builder
	flush := func() {
		if t := strings.Join(strings.Fields(cur.String()), " "); t != "" {
			blocks = append(blocks, t)
		}
		cur.Reset()
	}
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			switch {
			case c.Type == html.TextNode:
				cur.WriteString(c.Data)
				cur.WriteByte(' ')
			case c.Type == html.ElementNode && isBlock(c.DataAtom):
				flush()
				walk(c)
				flush()
			default:
				walk(c)
			}
		}
	}
	walk(root)
	flush()

	var b strings.Builder
	for _, t := range blocks {
		p := "<p>" + html.EscapeString(t) + "</p>"
		if b.Len()+len(p) > maxBytes {
			break
		}
		b.WriteString(p)
	}
	return b.String()
}

func isBlock(a atom.Atom) bool {
	switch a {
	case atom.P, atom.Div, atom.H1, atom.H2, atom.H3, atom.H4, atom.H5, atom.H6,
		atom.Li, atom.Blockquote, atom.Pre, atom.Table, atom.Tr, atom.Section, atom.Article, atom.Figure:
		return true
	}
	return false
}

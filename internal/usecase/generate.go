// Package usecase contains application business logic services.
package usecase

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/fairyhunter13/ai-content-publisher/internal/adapter/ai"
	"github.com/fairyhunter13/ai-content-publisher/internal/domain"
	"github.com/fairyhunter13/ai-content-publisher/internal/generation"
	obsctx "github.com/fairyhunter13/ai-content-publisher/internal/observability"
	"github.com/fairyhunter13/ai-content-publisher/internal/prompt"
	"github.com/fairyhunter13/ai-content-publisher/pkg/textx"
)

// Generator is satisfied by *generation.Client.
type Generator interface {
	Generate(ctx context.Context, owner, prompt, modelID string) (generation.Result, error)
}

// PromptBuilder is satisfied by *prompt.Catalog.
type PromptBuilder interface {
	Build(req prompt.Request) (string, error)
}

// GenerateInput is one article request.
type GenerateInput struct {
	Owner       string
	ContentType domain.ContentType
	Topic       string
	Model       string
	Language    string
	Tone        string
	Words       int
	Keywords    []string
	Extra       string
}

// GenerateService turns a topic into a stored HTML article.
type GenerateService struct {
	Articles  domain.ArticleRepository
	Generator Generator
	Prompts   PromptBuilder
}

// NewGenerateService constructs a GenerateService with its dependencies.
func NewGenerateService(a domain.ArticleRepository, g Generator, p PromptBuilder) GenerateService {
	return GenerateService{Articles: a, Generator: g, Prompts: p}
}

var markdown = goldmark.New(goldmark.WithExtensions(extension.GFM))

// Generate builds the prompt, runs the rotating client, converts the answer to
// HTML and persists it.
func (s GenerateService) Generate(ctx domain.Context, in GenerateInput) (domain.Article, error) {
	if strings.TrimSpace(in.Owner) == "" {
		return domain.Article{}, fmt.Errorf("%w: owner required", domain.ErrInvalidArgument)
	}
	if in.ContentType == "" {
		in.ContentType = domain.ContentArticle
	}
	p, err := s.Prompts.Build(prompt.Request{
		ContentType: in.ContentType,
		Topic:       in.Topic,
		Language:    in.Language,
		Tone:        in.Tone,
		Words:       in.Words,
		Keywords:    in.Keywords,
		Extra:       in.Extra,
	})
	if err != nil {
		return domain.Article{}, err
	}
	res, err := s.Generator.Generate(ctx, in.Owner, p, in.Model)
	if err != nil {
		return domain.Article{}, err
	}

	text := ai.CleanContent(res.Text)
	if ai.IsRefusal(text) {
		return domain.Article{}, fmt.Errorf("%w: model declined the request", domain.ErrUpstream)
	}
	body, err := toHTML(text)
	if err != nil {
		return domain.Article{}, fmt.Errorf("op=usecase.Generate: %w", err)
	}
	title, body, err := extractTitle(body)
	if err != nil {
		return domain.Article{}, fmt.Errorf("op=usecase.Generate: %w", err)
	}
	if title == "" {
		title = textx.TruncateWords(strings.TrimSpace(in.Topic), 120)
	}

	now := time.Now().UTC()
	a := domain.Article{
		Owner:       in.Owner,
		ContentType: in.ContentType,
		Topic:       strings.TrimSpace(in.Topic),
		Title:       title,
		Content:     body,
		Model:       res.Model,
		Status:      domain.ArticleGenerated,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	id, err := s.Articles.Create(ctx, a)
	if err != nil {
		return domain.Article{}, err
	}
	a.ID = id
	obsctx.LoggerFromContext(ctx).Info("article generated",
		slog.String("article_id", id),
		slog.String("content_type", string(in.ContentType)),
		slog.String("model", res.Model),
		slog.Int("attempts", res.Attempts))
	return a, nil
}

func toHTML(text string) (string, error) {
	if ai.LooksLikeHTML(text) {
		return text, nil
	}
	var buf bytes.Buffer
	if err := markdown.Convert([]byte(text), &buf); err != nil {
		return "", err
	}
	return strings.TrimSpace(buf.String()), nil
}

// extractTitle pulls the first <h1> out of body and returns its text.
func extractTitle(body string) (string, string, error) {
	ctxNode := &html.Node{Type: html.ElementNode, Data: "body", DataAtom: atom.Body}
	nodes, err := html.ParseFragment(strings.NewReader(body), ctxNode)
	if err != nil {
		return "", "", err
	}
	var title string
	var b strings.Builder
	for _, n := range nodes {
		if title == "" && n.Type == html.ElementNode && n.DataAtom == atom.H1 {
			title = strings.TrimSpace(textContent(n))
			if title != "" {
				continue
			}
		}
		if err := html.Render(&b, n); err != nil {
			return "", "", err
		}
	}
	if title == "" {
		return "", body, nil
	}
	return title, strings.TrimSpace(b.String()), nil
}

func textContent(n *html.Node) string {
	if n.Type == html.TextNode {
		return n.Data
	}
	var b strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		b.WriteString(textContent(c))
	}
	return b.String()
}

// ReadinessCheck represents a single readiness check result used by handlers.
type ReadinessCheck struct {
	Name    string `json:"name"`
	OK      bool   `json:"ok"`
	Details string `json:"details,omitempty"`
}

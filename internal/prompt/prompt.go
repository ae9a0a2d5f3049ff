// Package prompt renders generation prompts from embedded content presets.
package prompt

import (
	_ "embed"
	"fmt"
	"sort"
	"strings"
	"sync"
	"text/template"

	"gopkg.in/yaml.v3"

	"github.com/fairyhunter13/ai-content-publisher/internal/domain"
)

//go:embed presets.yaml
var presetsYAML []byte

// Preset describes one content type.
type Preset struct {
	Title    string `yaml:"title"`
	Format   string `yaml:"format"`
	MinWords int    `yaml:"min_words"`
	MaxWords int    `yaml:"max_words"`
	Template string `yaml:"template"`

	tpl *template.Template
}

type defaults struct {
	Language string `yaml:"language"`
	Tone     string `yaml:"tone"`
	Words    int    `yaml:"words"`
}

type file struct {
	Defaults defaults          `yaml:"defaults"`
	Presets  map[string]Preset `yaml:"presets"`
}

// Request carries the user's inputs for one prompt.
type Request struct {
	ContentType domain.ContentType
	Topic       string
	Language    string
	Tone        string
	Words       int
	Keywords    []string
	Extra       string
}

// Catalog holds the parsed presets.
type Catalog struct {
	defaults defaults
	presets  map[domain.ContentType]Preset
}

var (
	defaultOnce    sync.Once
	defaultCatalog *Catalog
	defaultErr     error
)

// Default returns the catalog built from the embedded presets.
func Default() (*Catalog, error) {
	defaultOnce.Do(func() {
		defaultCatalog, defaultErr = Parse(presetsYAML)
	})
	return defaultCatalog, defaultErr
}

// Parse builds a catalog from YAML.
func Parse(raw []byte) (*Catalog, error) {
	var f file
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("op=prompt.Parse: %w", err)
	}
	if len(f.Presets) == 0 {
		return nil, fmt.Errorf("op=prompt.Parse: no presets defined")
	}
	c := &Catalog{defaults: f.Defaults, presets: make(map[domain.ContentType]Preset, len(f.Presets))}
	funcs := template.FuncMap{"join": strings.Join}
	for name, p := range f.Presets {
		tpl, err := template.New(name).Funcs(funcs).Option("missingkey=error").Parse(p.Template)
		if err != nil {
			return nil, fmt.Errorf("op=prompt.Parse: preset %s: %w", name, err)
		}
		p.tpl = tpl
		c.presets[domain.ContentType(name)] = p
	}
	return c, nil
}

// Preset returns the preset for ct.
func (c *Catalog) Preset(ct domain.ContentType) (Preset, bool) {
	p, ok := c.presets[ct]
	return p, ok
}

// ContentTypes lists the known content types in sorted order.
func (c *Catalog) ContentTypes() []domain.ContentType {
	out := make([]domain.ContentType, 0, len(c.presets))
	for ct := range c.presets {
		out = append(out, ct)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Build renders the prompt for req. Defaults fill empty fields and the word
// count is clamped to the preset bounds.
func (c *Catalog) Build(req Request) (string, error) {
	topic := strings.TrimSpace(req.Topic)
	if topic == "" {
		return "", fmt.Errorf("%w: topic is required", domain.ErrInvalidArgument)
	}
	if req.ContentType == "" {
		req.ContentType = domain.ContentArticle
	}
	p, ok := c.presets[req.ContentType]
	if !ok {
		return "", fmt.Errorf("%w: unknown content type %q", domain.ErrInvalidArgument, req.ContentType)
	}
	req.Topic = topic
	if req.Language == "" {
		req.Language = c.defaults.Language
	}
	if req.Tone == "" {
		req.Tone = c.defaults.Tone
	}
	if req.Words <= 0 {
		req.Words = c.defaults.Words
	}
	if p.MinWords > 0 && req.Words < p.MinWords {
		req.Words = p.MinWords
	}
	if p.MaxWords > 0 && req.Words > p.MaxWords {
		req.Words = p.MaxWords
	}

	var b strings.Builder
	if err := p.tpl.Execute(&b, req); err != nil {
		return "", fmt.Errorf("op=prompt.Build: %w", err)
	}
	return strings.TrimSpace(b.String()), nil
}

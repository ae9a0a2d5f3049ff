package domain

import (
	"context"
	"errors"
	"time"
)

// Error taxonomy (sentinels)
var (
	ErrInvalidArgument = errors.New("invalid argument")
	ErrNotFound        = errors.New("not found")
	ErrConflict        = errors.New("conflict")
	ErrRateLimited     = errors.New("rate limited")
	// ErrQuotaExceeded is returned when every credential of an owner is exhausted
	// or the attempt budget ran out on quota failures.
	ErrQuotaExceeded     = errors.New("daily usage limit reached, try again later or use a paid key")
	ErrPublishBlocked    = errors.New("publish blocked")
	ErrPublishUnverified = errors.New("publish unverified")
	ErrUpstream          = errors.New("upstream error")
	ErrUpstreamTimeout   = errors.New("upstream timeout")
	ErrInternal          = errors.New("internal error")
)

// Services that hold rotating credentials.
const (
	ServiceGemini = "gemini"
	ServiceOpenAI = "openai"
)

// Credential is an API key owned by a user for one generation service.
// Secret is plaintext in memory; repositories seal it at rest.
type Credential struct {
	ID        string
	Owner     string
	Service   string
	Secret    string
	IsDefault bool
	CreatedAt time.Time
}

// Masked returns a log-safe representation of the secret.
func (c Credential) Masked() string { return MaskSecret(c.Secret) }

// MaskSecret keeps only the last four characters of a secret.
func MaskSecret(s string) string {
	if len(s) <= 4 {
		return "****"
	}
	return "****" + s[len(s)-4:]
}

// ContentType enumerates generated content kinds.
type ContentType string

const (
	ContentArticle ContentType = "article"
	ContentRecipe  ContentType = "recipe"
	ContentDream   ContentType = "dream"
)

// ArticleStatus tracks an article through generation and publishing.
type ArticleStatus string

const (
	ArticleGenerated ArticleStatus = "generated"
	ArticlePublished ArticleStatus = "published"
	ArticleWarning   ArticleStatus = "warning"
	ArticleFailed    ArticleStatus = "failed"
)

// Article is a generated piece of content, optionally published to a site.
type Article struct {
	ID           string
	Owner        string
	ContentType  ContentType
	Topic        string
	Title        string
	Content      string // HTML
	Model        string
	Status       ArticleStatus
	SiteID       *string
	RemoteID     *int64
	RemoteLink   string
	PublishError string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Site is a WordPress-shaped CMS target and its application password.
type Site struct {
	ID            string
	Owner         string
	Name          string
	BaseURL       string
	Username      string
	AppPassword   string
	DefaultStatus string
	CategoryIDs   []int64
	CreatedAt     time.Time
}

// UsageRecord accounts successful generation calls.
type UsageRecord struct {
	Owner     string
	Service   string
	Requests  int
	Tokens    int
	CreatedAt time.Time
}

// BatchKind selects what a batch does per item.
type BatchKind string

const (
	BatchGenerate BatchKind = "generate"
	BatchPublish  BatchKind = "publish"
)

// BatchStatus tracks batch progress.
type BatchStatus string

const (
	BatchQueued    BatchStatus = "queued"
	BatchRunning   BatchStatus = "running"
	BatchCompleted BatchStatus = "completed"
)

// BatchItem is one unit of a batch. Generate batches fill Topic, publish batches ArticleID.
type BatchItem struct {
	Topic     string `json:"topic,omitempty"`
	ArticleID string `json:"article_id,omitempty"`
}

// BatchItemResult reports the outcome of one item.
type BatchItemResult struct {
	Item      BatchItem `json:"item"`
	OK        bool      `json:"ok"`
	ArticleID string    `json:"article_id,omitempty"`
	Status    string    `json:"status,omitempty"`
	Error     string    `json:"error,omitempty"`
}

// BatchReport aggregates per-item results; partial success is expected.
type BatchReport struct {
	Succeeded int               `json:"succeeded"`
	Failed    int               `json:"failed"`
	Items     []BatchItemResult `json:"items"`
}

// Add appends r and updates the counters.
func (b *BatchReport) Add(r BatchItemResult) {
	b.Items = append(b.Items, r)
	if r.OK {
		b.Succeeded++
	} else {
		b.Failed++
	}
}

// Batch is a bulk generate or publish request.
type Batch struct {
	ID          string
	Owner       string
	Kind        BatchKind
	Status      BatchStatus
	ContentType ContentType
	Model       string
	SiteID      string
	Items       []BatchItem
	Report      BatchReport
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Repositories (ports)

type CredentialRepository interface {
	Create(ctx Context, c Credential) (string, error)
	ListByOwnerService(ctx Context, owner, service string) ([]Credential, error)
}

type ArticleRepository interface {
	Create(ctx Context, a Article) (string, error)
	Get(ctx Context, owner, id string) (Article, error)
	UpdatePublishState(ctx Context, a Article) error
}

type SiteRepository interface {
	Create(ctx Context, s Site) (string, error)
	Get(ctx Context, owner, id string) (Site, error)
}

type UsageRepository interface {
	Record(ctx Context, u UsageRecord) error
	SumSince(ctx Context, owner, service string, since time.Time) (UsageRecord, error)
}

type BatchRepository interface {
	Create(ctx Context, b Batch) (string, error)
	Get(ctx Context, owner, id string) (Batch, error)
	UpdateStatus(ctx Context, id string, status BatchStatus, report *BatchReport) error
}

// BatchQueue (port)

type BatchQueue interface {
	EnqueueBatch(ctx Context, task BatchTask) error
}

// BatchTask is the queued payload for a batch.
type BatchTask struct {
	BatchID string `json:"batch_id"`
	Owner   string `json:"owner"`
}

// Context aliases the std context so ports read compactly.
type Context = context.Context

package httpserver

import (
	"context"
	"errors"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/fairyhunter13/ai-content-publisher/internal/domain"
	obsctx "github.com/fairyhunter13/ai-content-publisher/internal/observability"
	"github.com/fairyhunter13/ai-content-publisher/internal/usecase"
)

// ArticleGenerator is satisfied by usecase.GenerateService.
type ArticleGenerator interface {
	Generate(ctx domain.Context, in usecase.GenerateInput) (domain.Article, error)
}

// ArticlePublisher is satisfied by usecase.PublishService.
type ArticlePublisher interface {
	Publish(ctx domain.Context, owner, articleID, siteID string, st usecase.PublishSettings) (usecase.PublishReport, error)
}

// BatchSubmitter is satisfied by usecase.BatchService.
type BatchSubmitter interface {
	Submit(ctx domain.Context, in usecase.BatchInput) (domain.Batch, error)
	Get(ctx domain.Context, owner, id string) (domain.Batch, error)
}

// QuotaReporter is satisfied by usecase.QuotaService.
type QuotaReporter interface {
	Report(ctx domain.Context, owner, service string) (usecase.QuotaReport, error)
}

// Server aggregates handler dependencies.
type Server struct {
	Generator   ArticleGenerator
	Publisher   ArticlePublisher
	Batches     BatchSubmitter
	Quota       QuotaReporter
	Credentials domain.CredentialRepository
	Sites       domain.SiteRepository
	// Checks are run by /readyz, keyed by dependency name.
	Checks map[string]func(ctx context.Context) error
}

type generateRequest struct {
	ContentType string   `json:"content_type" validate:"omitempty,oneof=article recipe dream"`
	Topic       string   `json:"topic" validate:"required,max=300"`
	Model       string   `json:"model" validate:"omitempty,max=64"`
	Language    string   `json:"language" validate:"omitempty,max=32"`
	Tone        string   `json:"tone" validate:"omitempty,max=32"`
	Words       int      `json:"words" validate:"omitempty,min=100,max=5000"`
	Keywords    []string `json:"keywords" validate:"max=20,dive,max=64"`
	Extra       string   `json:"extra" validate:"omitempty,max=2000"`
}

type publishRequest struct {
	SiteID     string  `json:"site_id" validate:"required,max=64"`
	Status     string  `json:"status" validate:"omitempty,oneof=publish draft pending private"`
	Categories []int64 `json:"categories" validate:"max=20,dive,gt=0"`
	SkipImages bool    `json:"skip_images"`
}

type batchRequest struct {
	Kind        string   `json:"kind" validate:"required,oneof=generate publish"`
	ContentType string   `json:"content_type" validate:"omitempty,oneof=article recipe dream"`
	Model       string   `json:"model" validate:"omitempty,max=64"`
	SiteID      string   `json:"site_id" validate:"required_if=Kind publish,max=64"`
	Topics      []string `json:"topics" validate:"max=100,dive,max=300"`
	ArticleIDs  []string `json:"article_ids" validate:"max=100,dive,max=64"`
}

type credentialRequest struct {
	Service   string `json:"service" validate:"required,oneof=gemini openai"`
	Secret    string `json:"secret" validate:"required,min=8,max=512"`
	IsDefault bool   `json:"is_default"`
}

type siteRequest struct {
	Name          string  `json:"name" validate:"required,max=100"`
	BaseURL       string  `json:"base_url" validate:"required,http_url"`
	Username      string  `json:"username" validate:"required,max=100"`
	AppPassword   string  `json:"app_password" validate:"required,max=256"`
	DefaultStatus string  `json:"default_status" validate:"omitempty,oneof=publish draft pending private"`
	CategoryIDs   []int64 `json:"category_ids" validate:"max=20,dive,gt=0"`
}

type articleResponse struct {
	ID           string    `json:"id"`
	ContentType  string    `json:"content_type"`
	Topic        string    `json:"topic"`
	Title        string    `json:"title"`
	Content      string    `json:"content"`
	Model        string    `json:"model"`
	Status       string    `json:"status"`
	SiteID       *string   `json:"site_id,omitempty"`
	RemoteID     *int64    `json:"remote_id,omitempty"`
	RemoteLink   string    `json:"remote_link,omitempty"`
	PublishError string    `json:"publish_error,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func toArticleResponse(a domain.Article) articleResponse {
	return articleResponse{
		ID: a.ID, ContentType: string(a.ContentType), Topic: a.Topic, Title: a.Title, Content: a.Content,
		Model: a.Model, Status: string(a.Status), SiteID: a.SiteID, RemoteID: a.RemoteID,
		RemoteLink: a.RemoteLink, PublishError: a.PublishError, CreatedAt: a.CreatedAt, UpdatedAt: a.UpdatedAt,
	}
}

type batchResponse struct {
	ID          string             `json:"id"`
	Kind        string             `json:"kind"`
	Status      string             `json:"status"`
	ContentType string             `json:"content_type,omitempty"`
	Model       string             `json:"model,omitempty"`
	SiteID      string             `json:"site_id,omitempty"`
	Items       []domain.BatchItem `json:"items"`
	Report      domain.BatchReport `json:"report"`
	CreatedAt   time.Time          `json:"created_at"`
	UpdatedAt   time.Time          `json:"updated_at"`
}

func toBatchResponse(b domain.Batch) batchResponse {
	return batchResponse{
		ID: b.ID, Kind: string(b.Kind), Status: string(b.Status), ContentType: string(b.ContentType),
		Model: b.Model, SiteID: b.SiteID, Items: b.Items, Report: b.Report, CreatedAt: b.CreatedAt, UpdatedAt: b.UpdatedAt,
	}
}

func ownerOf(r *http.Request) string { return obsctx.OwnerFromContext(r.Context()) }

// GenerateHandler creates one article from a topic.
func (s *Server) GenerateHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req generateRequest
		if details, err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, err, details)
			return
		}
		a, err := s.Generator.Generate(r.Context(), usecase.GenerateInput{
			Owner:       ownerOf(r),
			ContentType: domain.ContentType(req.ContentType),
			Topic:       req.Topic,
			Model:       req.Model,
			Language:    req.Language,
			Tone:        req.Tone,
			Words:       req.Words,
			Keywords:    req.Keywords,
			Extra:       req.Extra,
		})
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		writeJSON(w, http.StatusCreated, toArticleResponse(a))
	}
}

// PublishHandler sends a stored article to a site. An unverified publish is
// reported with 200 and a message since the post most likely exists.
func (s *Server) PublishHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req publishRequest
		if details, err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, err, details)
			return
		}
		rep, err := s.Publisher.Publish(r.Context(), ownerOf(r), chi.URLParam(r, "id"), req.SiteID, usecase.PublishSettings{
			Status:     req.Status,
			Categories: req.Categories,
			SkipImages: req.SkipImages,
		})
		switch {
		case err == nil:
			writeJSON(w, http.StatusOK, rep)
		case errors.Is(err, domain.ErrPublishUnverified):
			if rep.Message == "" {
				rep.Message = domain.UserMessage(err)
			}
			writeJSON(w, http.StatusOK, rep)
		case errors.Is(err, domain.ErrPublishBlocked):
			writeError(w, r, err, rep)
		default:
			writeError(w, r, err, nil)
		}
	}
}

// SubmitBatchHandler stores a batch. Queued batches answer 202, batches run
// inline answer 200 with the report.
func (s *Server) SubmitBatchHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req batchRequest
		if details, err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, err, details)
			return
		}
		b, err := s.Batches.Submit(r.Context(), usecase.BatchInput{
			Owner:       ownerOf(r),
			Kind:        domain.BatchKind(req.Kind),
			ContentType: domain.ContentType(req.ContentType),
			Model:       req.Model,
			SiteID:      req.SiteID,
			Topics:      SanitizeTopics(req.Topics),
			ArticleIDs:  req.ArticleIDs,
		})
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		status := http.StatusOK
		if b.Status != domain.BatchCompleted {
			status = http.StatusAccepted
			w.Header().Set("Location", "/v1/batches/"+b.ID)
		}
		writeJSON(w, status, toBatchResponse(b))
	}
}

// GetBatchHandler returns a batch and its report so far.
func (s *Server) GetBatchHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		b, err := s.Batches.Get(r.Context(), ownerOf(r), chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		writeJSON(w, http.StatusOK, toBatchResponse(b))
	}
}

// QuotaHandler reports credential availability for one service.
func (s *Server) QuotaHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rep, err := s.Quota.Report(r.Context(), ownerOf(r), chi.URLParam(r, "service"))
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		writeJSON(w, http.StatusOK, rep)
	}
}

// CreateCredentialHandler stores an API key. The secret is never echoed back.
func (s *Server) CreateCredentialHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req credentialRequest
		if details, err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, err, details)
			return
		}
		c := domain.Credential{Owner: ownerOf(r), Service: req.Service, Secret: strings.TrimSpace(req.Secret), IsDefault: req.IsDefault}
		id, err := s.Credentials.Create(r.Context(), c)
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{
			"id": id, "service": c.Service, "is_default": c.IsDefault, "secret": c.Masked(),
		})
	}
}

// CreateSiteHandler registers a WordPress site.
func (s *Server) CreateSiteHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req siteRequest
		if details, err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, err, details)
			return
		}
		site := domain.Site{
			Owner:         ownerOf(r),
			Name:          req.Name,
			BaseURL:       strings.TrimRight(req.BaseURL, "/"),
			Username:      req.Username,
			AppPassword:   req.AppPassword,
			DefaultStatus: req.DefaultStatus,
			CategoryIDs:   req.CategoryIDs,
		}
		id, err := s.Sites.Create(r.Context(), site)
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{
			"id": id, "name": site.Name, "base_url": site.BaseURL, "username": site.Username,
			"default_status": site.DefaultStatus, "category_ids": site.CategoryIDs,
		})
	}
}

// ReadyzHandler checks every configured dependency.
func (s *Server) ReadyzHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		names := make([]string, 0, len(s.Checks))
		for name := range s.Checks {
			names = append(names, name)
		}
		sort.Strings(names)

		checks := make([]usecase.ReadinessCheck, 0, len(names))
		ok := true
		for _, name := range names {
			c := usecase.ReadinessCheck{Name: name, OK: true}
			if err := s.Checks[name](ctx); err != nil {
				c.OK, c.Details, ok = false, err.Error(), false
			}
			checks = append(checks, c)
		}
		st := http.StatusOK
		if !ok {
			st = http.StatusServiceUnavailable
		}
		writeJSON(w, st, map[string]any{"checks": checks})
	}
}

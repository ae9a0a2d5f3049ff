package postgres

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/fairyhunter13/ai-content-publisher/internal/domain"
)

// ArticleRepo persists generated articles and their publish state.
type ArticleRepo struct{ Pool PgxPool }

// NewArticleRepo constructs an ArticleRepo with the given pool.
func NewArticleRepo(p PgxPool) *ArticleRepo { return &ArticleRepo{Pool: p} }

// Create inserts a new article and returns its id.
func (r *ArticleRepo) Create(ctx domain.Context, a domain.Article) (string, error) {
	ctx, span := otel.Tracer("repo.articles").Start(ctx, "articles.Create")
	defer span.End()
	span.SetAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation", "INSERT"),
		attribute.String("db.sql.table", "articles"),
	)
	id := a.ID
	if id == "" {
		id = uuid.New().String()
	}
	now := time.Now().UTC()
	q := `INSERT INTO articles (id, owner, content_type, topic, title, content, model, status, created_at, updated_at) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`
	_, err := r.Pool.Exec(ctx, q, id, a.Owner, string(a.ContentType), a.Topic, a.Title, a.Content, a.Model, string(a.Status), now, now)
	if err != nil {
		return "", fmt.Errorf("op=article.create: %w", err)
	}
	return id, nil
}

// Get loads an article owned by owner.
func (r *ArticleRepo) Get(ctx domain.Context, owner, id string) (domain.Article, error) {
	ctx, span := otel.Tracer("repo.articles").Start(ctx, "articles.Get")
	defer span.End()
	q := `SELECT id, owner, content_type, topic, title, content, model, status, site_id, remote_id, remote_link, publish_error, created_at, updated_at FROM articles WHERE id=$1 AND owner=$2`
	var a domain.Article
	var contentType, status string
	err := r.Pool.QueryRow(ctx, q, id, owner).Scan(&a.ID, &a.Owner, &contentType, &a.Topic, &a.Title, &a.Content, &a.Model, &status,
		&a.SiteID, &a.RemoteID, &a.RemoteLink, &a.PublishError, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Article{}, fmt.Errorf("op=article.get: %w", domain.ErrNotFound)
		}
		return domain.Article{}, fmt.Errorf("op=article.get: %w", err)
	}
	a.ContentType = domain.ContentType(contentType)
	a.Status = domain.ArticleStatus(status)
	return a, nil
}

// UpdatePublishState stores the outcome of a publish attempt.
func (r *ArticleRepo) UpdatePublishState(ctx domain.Context, a domain.Article) error {
	ctx, span := otel.Tracer("repo.articles").Start(ctx, "articles.UpdatePublishState")
	defer span.End()
	q := `UPDATE articles SET status=$3, site_id=$4, remote_id=$5, remote_link=$6, publish_error=$7, updated_at=$8 WHERE id=$1 AND owner=$2`
	tag, err := r.Pool.Exec(ctx, q, a.ID, a.Owner, string(a.Status), a.SiteID, a.RemoteID, a.RemoteLink, a.PublishError, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("op=article.update_publish_state: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("op=article.update_publish_state: %w", domain.ErrNotFound)
	}
	return nil
}

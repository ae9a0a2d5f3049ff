package postgres

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.opentelemetry.io/otel"

	"github.com/fairyhunter13/ai-content-publisher/internal/domain"
)

// SiteRepo stores publish targets; application passwords are sealed.
type SiteRepo struct {
	Pool   PgxPool
	Sealer SecretSealer
}

// NewSiteRepo constructs a SiteRepo.
func NewSiteRepo(p PgxPool, s SecretSealer) *SiteRepo { return &SiteRepo{Pool: p, Sealer: s} }

// Create inserts a site and returns its id.
func (r *SiteRepo) Create(ctx domain.Context, s domain.Site) (string, error) {
	ctx, span := otel.Tracer("repo.sites").Start(ctx, "sites.Create")
	defer span.End()
	if s.Owner == "" || s.BaseURL == "" {
		return "", fmt.Errorf("op=site.create: %w: owner and base url required", domain.ErrInvalidArgument)
	}
	id := s.ID
	if id == "" {
		id = uuid.New().String()
	}
	sealed, err := seal(r.Sealer, s.AppPassword)
	if err != nil {
		return "", fmt.Errorf("op=site.create: %w", err)
	}
	status := s.DefaultStatus
	if status == "" {
		status = "publish"
	}
	cats := s.CategoryIDs
	if cats == nil {
		cats = []int64{}
	}
	q := `INSERT INTO sites (id, owner, name, base_url, username, app_password_sealed, default_status, category_ids, created_at) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`
	if _, err := r.Pool.Exec(ctx, q, id, s.Owner, s.Name, s.BaseURL, s.Username, sealed, status, cats, time.Now().UTC()); err != nil {
		return "", fmt.Errorf("op=site.create: %w", err)
	}
	return id, nil
}

// Get loads a site owned by owner.
func (r *SiteRepo) Get(ctx domain.Context, owner, id string) (domain.Site, error) {
	ctx, span := otel.Tracer("repo.sites").Start(ctx, "sites.Get")
	defer span.End()
	q := `SELECT id, owner, name, base_url, username, app_password_sealed, default_status, category_ids, created_at FROM sites WHERE id=$1 AND owner=$2`
	var s domain.Site
	var sealed string
	err := r.Pool.QueryRow(ctx, q, id, owner).Scan(&s.ID, &s.Owner, &s.Name, &s.BaseURL, &s.Username, &sealed, &s.DefaultStatus, &s.CategoryIDs, &s.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Site{}, fmt.Errorf("op=site.get: %w", domain.ErrNotFound)
		}
		return domain.Site{}, fmt.Errorf("op=site.get: %w", err)
	}
	if s.AppPassword, err = open(r.Sealer, sealed); err != nil {
		return domain.Site{}, fmt.Errorf("op=site.get: %w", err)
	}
	return s, nil
}

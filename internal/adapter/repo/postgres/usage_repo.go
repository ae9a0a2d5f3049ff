package postgres

import (
	"fmt"
	"time"

	"go.opentelemetry.io/otel"

	"github.com/fairyhunter13/ai-content-publisher/internal/domain"
)

// UsageRepo meters successful generation calls.
type UsageRepo struct{ Pool PgxPool }

// NewUsageRepo constructs a UsageRepo with the given pool.
func NewUsageRepo(p PgxPool) *UsageRepo { return &UsageRepo{Pool: p} }

// Record appends one usage row.
func (r *UsageRepo) Record(ctx domain.Context, u domain.UsageRecord) error {
	ctx, span := otel.Tracer("repo.usage").Start(ctx, "usage.Record")
	defer span.End()
	at := u.CreatedAt
	if at.IsZero() {
		at = time.Now().UTC()
	}
	q := `INSERT INTO usage_records (owner, service, requests, tokens, created_at) VALUES ($1,$2,$3,$4,$5)`
	if _, err := r.Pool.Exec(ctx, q, u.Owner, u.Service, u.Requests, u.Tokens, at); err != nil {
		return fmt.Errorf("op=usage.record: %w", err)
	}
	return nil
}

// SumSince totals requests and tokens for owner and service since the given time.
func (r *UsageRepo) SumSince(ctx domain.Context, owner, service string, since time.Time) (domain.UsageRecord, error) {
	ctx, span := otel.Tracer("repo.usage").Start(ctx, "usage.SumSince")
	defer span.End()
	q := `SELECT COALESCE(SUM(requests),0), COALESCE(SUM(tokens),0) FROM usage_records WHERE owner=$1 AND service=$2 AND created_at >= $3`
	out := domain.UsageRecord{Owner: owner, Service: service, CreatedAt: since}
	var requests, tokens int64
	if err := r.Pool.QueryRow(ctx, q, owner, service, since).Scan(&requests, &tokens); err != nil {
		return domain.UsageRecord{}, fmt.Errorf("op=usage.sum_since: %w", err)
	}
	out.Requests, out.Tokens = int(requests), int(tokens)
	return out, nil
}

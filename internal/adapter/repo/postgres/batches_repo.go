package postgres

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.opentelemetry.io/otel"

	"github.com/fairyhunter13/ai-content-publisher/internal/domain"
)

// BatchRepo stores bulk requests; items and report are JSONB.
type BatchRepo struct{ Pool PgxPool }

// NewBatchRepo constructs a BatchRepo with the given pool.
func NewBatchRepo(p PgxPool) *BatchRepo { return &BatchRepo{Pool: p} }

// Create inserts a batch and returns its id.
func (r *BatchRepo) Create(ctx domain.Context, b domain.Batch) (string, error) {
	ctx, span := otel.Tracer("repo.batches").Start(ctx, "batches.Create")
	defer span.End()
	id := b.ID
	if id == "" {
		id = uuid.New().String()
	}
	items, err := json.Marshal(b.Items)
	if err != nil {
		return "", fmt.Errorf("op=batch.create: %w", err)
	}
	report, err := json.Marshal(b.Report)
	if err != nil {
		return "", fmt.Errorf("op=batch.create: %w", err)
	}
	now := time.Now().UTC()
	q := `INSERT INTO batches (id, owner, kind, status, content_type, model, site_id, items, report, created_at, updated_at) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`
	_, err = r.Pool.Exec(ctx, q, id, b.Owner, string(b.Kind), string(b.Status), string(b.ContentType), b.Model, b.SiteID, items, report, now, now)
	if err != nil {
		return "", fmt.Errorf("op=batch.create: %w", err)
	}
	return id, nil
}

const batchColumns = `id, owner, kind, status, content_type, model, site_id, items, report, created_at, updated_at`

// Get loads a batch owned by owner.
func (r *BatchRepo) Get(ctx domain.Context, owner, id string) (domain.Batch, error) {
	ctx, span := otel.Tracer("repo.batches").Start(ctx, "batches.Get")
	defer span.End()
	b, err := scanBatch(r.Pool.QueryRow(ctx, `SELECT `+batchColumns+` FROM batches WHERE id=$1 AND owner=$2`, id, owner))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Batch{}, fmt.Errorf("op=batch.get: %w", domain.ErrNotFound)
		}
		return domain.Batch{}, fmt.Errorf("op=batch.get: %w", err)
	}
	return b, nil
}

// ListStale returns unfinished batches not touched since before, oldest first.
func (r *BatchRepo) ListStale(ctx domain.Context, before time.Time, limit int) ([]domain.Batch, error) {
	ctx, span := otel.Tracer("repo.batches").Start(ctx, "batches.ListStale")
	defer span.End()
	q := `SELECT ` + batchColumns + ` FROM batches WHERE status IN ('queued','running') AND updated_at < $1 ORDER BY updated_at LIMIT $2`
	rows, err := r.Pool.Query(ctx, q, before, limit)
	if err != nil {
		return nil, fmt.Errorf("op=batch.list_stale: %w", err)
	}
	defer rows.Close()
	var out []domain.Batch
	for rows.Next() {
		b, err := scanBatch(rows)
		if err != nil {
			return nil, fmt.Errorf("op=batch.list_stale: %w", err)
		}
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("op=batch.list_stale: %w", err)
	}
	return out, nil
}

func scanBatch(row pgx.Row) (domain.Batch, error) {
	var b domain.Batch
	var kind, status, contentType string
	var items, report []byte
	if err := row.Scan(&b.ID, &b.Owner, &kind, &status, &contentType, &b.Model, &b.SiteID, &items, &report, &b.CreatedAt, &b.UpdatedAt); err != nil {
		return domain.Batch{}, err
	}
	b.Kind, b.Status, b.ContentType = domain.BatchKind(kind), domain.BatchStatus(status), domain.ContentType(contentType)
	if err := json.Unmarshal(items, &b.Items); err != nil {
		return domain.Batch{}, fmt.Errorf("items: %w", err)
	}
	if len(report) > 0 {
		if err := json.Unmarshal(report, &b.Report); err != nil {
			return domain.Batch{}, fmt.Errorf("report: %w", err)
		}
	}
	return b, nil
}

// UpdateStatus sets the status and, when report is non-nil, the report.
func (r *BatchRepo) UpdateStatus(ctx domain.Context, id string, status domain.BatchStatus, report *domain.BatchReport) error {
	ctx, span := otel.Tracer("repo.batches").Start(ctx, "batches.UpdateStatus")
	defer span.End()
	var err error
	if report == nil {
		_, err = r.Pool.Exec(ctx, `UPDATE batches SET status=$2, updated_at=$3 WHERE id=$1`, id, string(status), time.Now().UTC())
	} else {
		var raw []byte
		if raw, err = json.Marshal(report); err != nil {
			return fmt.Errorf("op=batch.update_status: %w", err)
		}
		_, err = r.Pool.Exec(ctx, `UPDATE batches SET status=$2, report=$3, updated_at=$4 WHERE id=$1`, id, string(status), raw, time.Now().UTC())
	}
	if err != nil {
		return fmt.Errorf("op=batch.update_status: %w", err)
	}
	return nil
}

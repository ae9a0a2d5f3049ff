package postgres

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/fairyhunter13/ai-content-publisher/internal/domain"
)

// CredentialRepo stores provider API keys sealed at rest.
type CredentialRepo struct {
	Pool   PgxPool
	Sealer SecretSealer
}

// NewCredentialRepo constructs a CredentialRepo. A nil sealer stores secrets as given.
func NewCredentialRepo(p PgxPool, s SecretSealer) *CredentialRepo {
	return &CredentialRepo{Pool: p, Sealer: s}
}

// Create stores a credential and returns its id.
func (r *CredentialRepo) Create(ctx domain.Context, c domain.Credential) (string, error) {
	ctx, span := otel.Tracer("repo.credentials").Start(ctx, "credentials.Create")
	defer span.End()
	span.SetAttributes(attribute.String("db.system", "postgresql"), attribute.String("db.sql.table", "credentials"))
	if c.Owner == "" || c.Service == "" || c.Secret == "" {
		return "", fmt.Errorf("op=credential.create: %w: owner, service and secret required", domain.ErrInvalidArgument)
	}
	id := c.ID
	if id == "" {
		id = uuid.New().String()
	}
	sealed, err := seal(r.Sealer, c.Secret)
	if err != nil {
		return "", fmt.Errorf("op=credential.create: %w", err)
	}
	q := `INSERT INTO credentials (id, owner, service, secret_sealed, is_default, created_at) VALUES ($1,$2,$3,$4,$5,$6)`
	if _, err := r.Pool.Exec(ctx, q, id, c.Owner, c.Service, sealed, c.IsDefault, time.Now().UTC()); err != nil {
		return "", fmt.Errorf("op=credential.create: %w", err)
	}
	return id, nil
}

// ListByOwnerService returns the owner's credentials for service in creation order.
func (r *CredentialRepo) ListByOwnerService(ctx domain.Context, owner, service string) ([]domain.Credential, error) {
	ctx, span := otel.Tracer("repo.credentials").Start(ctx, "credentials.ListByOwnerService")
	defer span.End()
	q := `SELECT id, owner, service, secret_sealed, is_default, created_at FROM credentials WHERE owner=$1 AND service=$2 ORDER BY created_at, id`
	rows, err := r.Pool.Query(ctx, q, owner, service)
	if err != nil {
		return nil, fmt.Errorf("op=credential.list: %w", err)
	}
	defer rows.Close()
	var out []domain.Credential
	for rows.Next() {
		var c domain.Credential
		var sealed string
		if err := rows.Scan(&c.ID, &c.Owner, &c.Service, &sealed, &c.IsDefault, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("op=credential.list: %w", err)
		}
		if c.Secret, err = open(r.Sealer, sealed); err != nil {
			return nil, fmt.Errorf("op=credential.list: credential %s: %w", c.ID, err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("op=credential.list: %w", err)
	}
	span.SetAttributes(attribute.Int("credentials.count", len(out)))
	return out, nil
}

package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/fairyhunter13/ai-content-publisher/internal/adapter/ai/gemini"
	"github.com/fairyhunter13/ai-content-publisher/internal/adapter/ai/openai"
	"github.com/fairyhunter13/ai-content-publisher/internal/adapter/ai/stub"
	"github.com/fairyhunter13/ai-content-publisher/internal/adapter/cms/wordpress"
	"github.com/fairyhunter13/ai-content-publisher/internal/adapter/repo/postgres"
	"github.com/fairyhunter13/ai-content-publisher/internal/config"
	"github.com/fairyhunter13/ai-content-publisher/internal/domain"
	"github.com/fairyhunter13/ai-content-publisher/internal/generation"
	"github.com/fairyhunter13/ai-content-publisher/internal/keyring"
	"github.com/fairyhunter13/ai-content-publisher/internal/media"
	"github.com/fairyhunter13/ai-content-publisher/internal/prompt"
	"github.com/fairyhunter13/ai-content-publisher/internal/publish"
	"github.com/fairyhunter13/ai-content-publisher/internal/usecase"
	"github.com/fairyhunter13/ai-content-publisher/pkg/secretx"
)

// Container holds the process-wide dependencies shared by the server, the
// worker and the CLI.
type Container struct {
	Pool  *pgxpool.Pool
	Redis redis.UniversalClient

	Articles    *postgres.ArticleRepo
	Batches     *postgres.BatchRepo
	Credentials *postgres.CredentialRepo
	Sites       *postgres.SiteRepo
	Usage       *postgres.UsageRepo

	Selector   *keyring.Selector
	Generation *generation.Client

	GenerateSvc usecase.GenerateService
	PublishSvc  usecase.PublishService
	QuotaSvc    usecase.QuotaService
}

// Build connects to Postgres (and Redis when configured), applies the schema
// and wires the use cases.
func Build(ctx context.Context, cfg config.Config) (*Container, error) {
	pool, err := postgres.NewPool(ctx, cfg.DBURL)
	if err != nil {
		return nil, fmt.Errorf("op=app.Build: db connect: %w", err)
	}
	if err := postgres.Migrate(ctx, pool); err != nil {
		pool.Close()
		return nil, fmt.Errorf("op=app.Build: %w", err)
	}

	var sealer postgres.SecretSealer
	if cfg.SecretsKey != "" {
		s, err := secretx.NewSealer(cfg.SecretsKey)
		if err != nil {
			pool.Close()
			return nil, fmt.Errorf("op=app.Build: %w", err)
		}
		sealer = s
	} else {
		slog.Warn("SECRETS_KEY not set; credentials are stored unsealed")
	}

	c := &Container{
		Pool:        pool,
		Articles:    postgres.NewArticleRepo(pool),
		Batches:     postgres.NewBatchRepo(pool),
		Credentials: postgres.NewCredentialRepo(pool, sealer),
		Sites:       postgres.NewSiteRepo(pool, sealer),
		Usage:       postgres.NewUsageRepo(pool),
	}

	policy := cfg.GetGenerationPolicy()
	var registry keyring.QuotaRegistry
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			pool.Close()
			return nil, fmt.Errorf("op=app.Build: redis url: %w", err)
		}
		c.Redis = redis.NewClient(opts)
		registry = keyring.NewRedisRegistry(c.Redis, policy.ExhaustionTTL)
	} else {
		registry = keyring.NewMemoryRegistry(keyring.WithTTL(policy.ExhaustionTTL))
	}
	c.Selector = keyring.NewSelector(c.Credentials, registry)

	c.Generation = generation.New(c.Selector, invokers(cfg),
		generation.WithMaxAttempts(policy.MaxAttempts),
		generation.WithAttemptTimeout(policy.AttemptTimeout),
		generation.WithUsageRecorder(c.Usage),
	)

	catalog, err := prompt.Default()
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("op=app.Build: %w", err)
	}

	wp := wordpress.New()
	relay := media.NewRelay(wp,
		media.WithRetry(cfg.GetRetryConfig()),
		media.WithUploadDelay(cfg.MediaUploadDelay),
		media.WithDownloadTimeout(cfg.MediaDownloadTimeout),
	)
	cascade := publish.NewCascade(wp, publish.DefaultStrategies(cfg.GetPublishTimeouts())...)

	c.GenerateSvc = usecase.NewGenerateService(c.Articles, c.Generation, catalog)
	c.PublishSvc = usecase.NewPublishService(c.Articles, c.Sites, relay, cascade)
	c.QuotaSvc = usecase.NewQuotaService(c.Selector, c.Usage)
	return c, nil
}

// BatchService wires batch processing onto queue; a nil queue runs batches inline.
func (c *Container) BatchService(cfg config.Config, queue domain.BatchQueue) usecase.BatchService {
	policy := cfg.GetGenerationPolicy()
	return usecase.NewBatchService(c.Batches, queue, c.GenerateSvc, c.PublishSvc, policy.BulkMinGap, policy.BulkMaxGap)
}

// Close releases pooled connections.
func (c *Container) Close() {
	if c.Redis != nil {
		if err := c.Redis.Close(); err != nil {
			slog.Error("failed to close redis client", slog.Any("error", err))
		}
	}
	c.Pool.Close()
}

func invokers(cfg config.Config) map[string]generation.Invoker {
	if cfg.UseStubAI {
		s := stub.New()
		return map[string]generation.Invoker{"gemini": s, "openai": s}
	}
	hc := &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)}
	return map[string]generation.Invoker{
		"gemini": gemini.New(cfg.GeminiBaseURL, hc),
		"openai": openai.New(cfg.OpenAIBaseURL, hc),
	}
}

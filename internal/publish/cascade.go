package publish

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/fairyhunter13/ai-content-publisher/internal/adapter/observability"
	"github.com/fairyhunter13/ai-content-publisher/internal/domain"
	obsctx "github.com/fairyhunter13/ai-content-publisher/internal/observability"
)

const verifyTimeout = 15 * time.Second

// Cascade runs strategies in order; the first success wins.
type Cascade struct {
	cms        CMS
	strategies []Strategy
}

// NewCascade builds a cascade over strategies in the given order.
func NewCascade(cms CMS, strategies ...Strategy) *Cascade {
	return &Cascade{cms: cms, strategies: strategies}
}

// Publish tries every strategy in order regardless of the failure type. A
// success is verified by reading the post back; a failed read yields a warning.
func (c *Cascade) Publish(ctx context.Context, p Payload, site domain.Site) Result {
	ctx, span := otel.Tracer("publish.cascade").Start(ctx, "publish.Cascade")
	defer span.End()
	span.SetAttributes(attribute.String("cms.site", site.ID))

	lg := obsctx.LoggerFromContext(ctx).With(slog.String("site_id", site.ID))
	var lastErr error
	for _, s := range c.strategies {
		out, err := s.Publish(ctx, c.cms, p, site)
		if err != nil {
			lastErr = err
			observability.ObservePublishAttempt(s.Name(), "fail")
			kind, status := ClassifyFailure(err)
			lg.Warn("publish strategy failed",
				slog.String("strategy", s.Name()),
				slog.String("kind", string(kind)),
				slog.Int("status", status),
				slog.Any("error", err))
			if ctx.Err() != nil {
				break
			}
			continue
		}
		observability.ObservePublishAttempt(s.Name(), "ok")
		res := Result{Status: StatusSuccess, RemoteID: out.Post.ID, Link: out.Post.Link, Strategy: s.Name()}
		if out.Degraded {
			res.Status = StatusDegraded
		}
		c.verify(ctx, site, &res)
		span.SetAttributes(attribute.String("publish.strategy", s.Name()), attribute.String("publish.status", string(res.Status)))
		lg.Info("published", slog.String("strategy", s.Name()), slog.String("status", string(res.Status)), slog.Int64("remote_id", res.RemoteID))
		observability.ObservePublishResult(string(res.Status), "")
		return res
	}

	kind, status := ClassifyFailure(lastErr)
	if lastErr == nil {
		kind = KindUnknown
		lastErr = fmt.Errorf("no publish strategies configured")
	}
	span.RecordError(lastErr)
	observability.ObservePublishResult(string(StatusError), string(kind))
	lg.Error("all publish strategies failed", slog.String("kind", string(kind)), slog.Int("status", status))
	return Result{Status: StatusError, ErrorKind: kind, HTTPStatus: status, Detail: lastErr.Error()}
}

func (c *Cascade) verify(ctx context.Context, site domain.Site, res *Result) {
	vctx, cancel := context.WithTimeout(ctx, verifyTimeout)
	defer cancel()
	post, err := c.cms.GetPost(vctx, site, res.RemoteID)
	if err != nil {
		res.Status = StatusWarning
		res.Detail = "verification failed: " + err.Error()
		return
	}
	if res.Link == "" {
		res.Link = post.Link
	}
}

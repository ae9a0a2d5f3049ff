package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/fairyhunter13/ai-content-publisher/internal/adapter/observability"
	"github.com/fairyhunter13/ai-content-publisher/internal/domain"
	obsctx "github.com/fairyhunter13/ai-content-publisher/internal/observability"
	"github.com/fairyhunter13/ai-content-publisher/pkg/timex"
)

// MaxBatchItems bounds a single batch.
const MaxBatchItems = 100

// ArticleGenerator is satisfied by GenerateService.
type ArticleGenerator interface {
	Generate(ctx domain.Context, in GenerateInput) (domain.Article, error)
}

// ArticlePublisher is satisfied by PublishService.
type ArticlePublisher interface {
	Publish(ctx domain.Context, owner, articleID, siteID string, st PublishSettings) (PublishReport, error)
}

// BatchInput describes a bulk request.
type BatchInput struct {
	Owner       string
	Kind        domain.BatchKind
	ContentType domain.ContentType
	Model       string
	SiteID      string
	Topics      []string
	ArticleIDs  []string
}

// BatchService runs bulk generate and publish requests one item at a time.
type BatchService struct {
	Batches   domain.BatchRepository
	Queue     domain.BatchQueue
	Generator ArticleGenerator
	Publisher ArticlePublisher
	MinGap    time.Duration
	MaxGap    time.Duration
}

// NewBatchService constructs a BatchService. A nil queue runs batches inline.
func NewBatchService(b domain.BatchRepository, q domain.BatchQueue, g ArticleGenerator, p ArticlePublisher, minGap, maxGap time.Duration) BatchService {
	return BatchService{Batches: b, Queue: q, Generator: g, Publisher: p, MinGap: minGap, MaxGap: maxGap}
}

// Submit stores the batch and either enqueues it or runs it before returning.
func (s BatchService) Submit(ctx domain.Context, in BatchInput) (domain.Batch, error) {
	b, err := newBatch(in)
	if err != nil {
		return domain.Batch{}, err
	}
	id, err := s.Batches.Create(ctx, b)
	if err != nil {
		return domain.Batch{}, err
	}
	b.ID = id

	if s.Queue == nil {
		return s.RunBatch(ctx, in.Owner, id)
	}
	if err := s.Queue.EnqueueBatch(ctx, domain.BatchTask{BatchID: id, Owner: in.Owner}); err != nil {
		report := failAll(b.Items, "enqueue failed")
		if uerr := s.Batches.UpdateStatus(context.WithoutCancel(ctx), id, domain.BatchCompleted, &report); uerr != nil {
			obsctx.LoggerFromContext(ctx).Error("failed to mark unqueued batch as failed",
				slog.String("batch_id", id), slog.Any("error", uerr))
		}
		return domain.Batch{}, fmt.Errorf("op=usecase.Submit: %w", err)
	}
	observability.EnqueueBatch(string(b.Kind))
	return b, nil
}

func newBatch(in BatchInput) (domain.Batch, error) {
	if strings.TrimSpace(in.Owner) == "" {
		return domain.Batch{}, fmt.Errorf("%w: owner required", domain.ErrInvalidArgument)
	}
	var items []domain.BatchItem
	switch in.Kind {
	case domain.BatchGenerate:
		for _, t := range in.Topics {
			if t = strings.TrimSpace(t); t != "" {
				items = append(items, domain.BatchItem{Topic: t})
			}
		}
	case domain.BatchPublish:
		if in.SiteID == "" {
			return domain.Batch{}, fmt.Errorf("%w: site_id required for publish batches", domain.ErrInvalidArgument)
		}
		for _, id := range in.ArticleIDs {
			if id = strings.TrimSpace(id); id != "" {
				items = append(items, domain.BatchItem{ArticleID: id})
			}
		}
	default:
		return domain.Batch{}, fmt.Errorf("%w: unknown batch kind %q", domain.ErrInvalidArgument, in.Kind)
	}
	if len(items) == 0 {
		return domain.Batch{}, fmt.Errorf("%w: batch has no items", domain.ErrInvalidArgument)
	}
	if len(items) > MaxBatchItems {
		return domain.Batch{}, fmt.Errorf("%w: at most %d items per batch", domain.ErrInvalidArgument, MaxBatchItems)
	}
	now := time.Now().UTC()
	return domain.Batch{
		Owner:       in.Owner,
		Kind:        in.Kind,
		Status:      domain.BatchQueued,
		ContentType: in.ContentType,
		Model:       in.Model,
		SiteID:      in.SiteID,
		Items:       items,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

// RunBatch processes every item and stores the report. Item failures are
// counted, never fatal. A completed batch is returned as is so redelivered
// tasks do nothing.
func (s BatchService) RunBatch(ctx domain.Context, owner, id string) (domain.Batch, error) {
	b, err := s.Batches.Get(ctx, owner, id)
	if err != nil {
		return domain.Batch{}, err
	}
	if b.Status == domain.BatchCompleted {
		return b, nil
	}
	lg := obsctx.LoggerFromContext(ctx).With(slog.String("batch_id", id), slog.String("kind", string(b.Kind)))
	if err := s.Batches.UpdateStatus(ctx, id, domain.BatchRunning, nil); err != nil {
		return domain.Batch{}, err
	}
	observability.StartBatch(string(b.Kind))
	defer observability.CompleteBatch(string(b.Kind))

	report := domain.BatchReport{Items: make([]domain.BatchItemResult, 0, len(b.Items))}
	for i, item := range b.Items {
		if ctx.Err() != nil {
			report.Add(domain.BatchItemResult{Item: item, Error: ctx.Err().Error()})
			continue
		}
		if i > 0 && b.Kind == domain.BatchGenerate {
			if err := timex.Sleep(ctx, timex.Jitter(s.MinGap, s.MaxGap)); err != nil {
				report.Add(domain.BatchItemResult{Item: item, Error: err.Error()})
				continue
			}
		}
		res := s.runItem(ctx, b, item)
		if !res.OK {
			lg.Warn("batch item failed", slog.Int("index", i), slog.String("error", res.Error))
		}
		report.Add(res)
		if i < len(b.Items)-1 {
			// progress write doubles as a heartbeat for the stuck-batch sweeper
			if err := s.Batches.UpdateStatus(ctx, id, domain.BatchRunning, &report); err != nil {
				lg.Warn("failed to record batch progress", slog.Int("index", i), slog.Any("error", err))
			}
		}
	}

	// the report must land even when the caller gave up
	if err := s.Batches.UpdateStatus(context.WithoutCancel(ctx), id, domain.BatchCompleted, &report); err != nil {
		return domain.Batch{}, err
	}
	lg.Info("batch completed", slog.Int("succeeded", report.Succeeded), slog.Int("failed", report.Failed))
	b.Status = domain.BatchCompleted
	b.Report = report
	b.UpdatedAt = time.Now().UTC()
	return b, nil
}

func (s BatchService) runItem(ctx domain.Context, b domain.Batch, item domain.BatchItem) domain.BatchItemResult {
	switch b.Kind {
	case domain.BatchGenerate:
		a, err := s.Generator.Generate(ctx, GenerateInput{Owner: b.Owner, ContentType: b.ContentType, Topic: item.Topic, Model: b.Model})
		if err != nil {
			return domain.BatchItemResult{Item: item, Error: domain.UserMessage(err)}
		}
		return domain.BatchItemResult{Item: item, OK: true, ArticleID: a.ID, Status: string(a.Status)}
	default:
		rep, err := s.Publisher.Publish(ctx, b.Owner, item.ArticleID, b.SiteID, PublishSettings{})
		status := string(rep.Result.Status)
		switch {
		case err == nil:
			return domain.BatchItemResult{Item: item, OK: true, ArticleID: item.ArticleID, Status: status}
		case errors.Is(err, domain.ErrPublishUnverified):
			// the post most likely exists; surface it as a flagged success
			return domain.BatchItemResult{Item: item, OK: true, ArticleID: item.ArticleID, Status: status, Error: domain.UserMessage(err)}
		default:
			msg := domain.UserMessage(err)
			if rep.Message != "" {
				msg = rep.Message
			}
			return domain.BatchItemResult{Item: item, ArticleID: item.ArticleID, Status: status, Error: msg}
		}
	}
}

func failAll(items []domain.BatchItem, reason string) domain.BatchReport {
	var r domain.BatchReport
	for _, it := range items {
		r.Add(domain.BatchItemResult{Item: it, Error: reason})
	}
	return r
}

// Get returns one of the owner's batches.
func (s BatchService) Get(ctx domain.Context, owner, id string) (domain.Batch, error) {
	return s.Batches.Get(ctx, owner, id)
}

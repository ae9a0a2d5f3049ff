package app

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/fairyhunter13/ai-content-publisher/internal/domain"
)

// StaleBatchStore is satisfied by the postgres batch repository.
type StaleBatchStore interface {
	ListStale(ctx domain.Context, before time.Time, limit int) ([]domain.Batch, error)
	UpdateStatus(ctx domain.Context, id string, status domain.BatchStatus, report *domain.BatchReport) error
}

// StuckBatchSweeper recovers batches whose runner died. With a queue the
// batch is enqueued again; without one every item is failed so callers stop
// waiting on it.
type StuckBatchSweeper struct {
	batches  StaleBatchStore
	queue    domain.BatchQueue
	maxAge   time.Duration
	interval time.Duration
}

// NewStuckBatchSweeper returns nil when batches is nil. queue may be nil.
func NewStuckBatchSweeper(batches StaleBatchStore, queue domain.BatchQueue, maxAge, interval time.Duration) *StuckBatchSweeper {
	if batches == nil {
		return nil
	}
	if maxAge <= 0 {
		maxAge = 2 * time.Hour
	}
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	return &StuckBatchSweeper{batches: batches, queue: queue, maxAge: maxAge, interval: interval}
}

// Run sweeps once immediately and then every interval until ctx is done.
func (s *StuckBatchSweeper) Run(ctx context.Context) {
	if s == nil {
		return
	}
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.sweepOnce(ctx)
	for {
		select {
		case <-ctx.Done():
			slog.Info("stuck batch sweeper stopping")
			return
		case <-ticker.C:
			s.sweepOnce(ctx)
		}
	}
}

const sweepPageSize = 100

func (s *StuckBatchSweeper) sweepOnce(ctx context.Context) (recovered int) {
	ctx, span := otel.Tracer("batches.sweeper").Start(ctx, "StuckBatchSweeper.sweepOnce")
	defer span.End()

	cutoff := time.Now().UTC().Add(-s.maxAge)
	stale, err := s.batches.ListStale(ctx, cutoff, sweepPageSize)
	if err != nil {
		span.RecordError(err)
		slog.Error("stuck batch sweep failed to list batches", slog.Any("error", err))
		return 0
	}
	for _, b := range stale {
		lg := slog.With(slog.String("batch_id", b.ID), slog.String("status", string(b.Status)))
		if err := s.recover(ctx, b); err != nil {
			span.RecordError(err)
			lg.Error("stuck batch recovery failed", slog.Any("error", err))
			continue
		}
		lg.Warn("stuck batch recovered", slog.Bool("requeued", s.queue != nil))
		recovered++
	}
	span.SetAttributes(
		attribute.Int("batches.stale", len(stale)),
		attribute.Int("batches.recovered", recovered),
	)
	return recovered
}

func (s *StuckBatchSweeper) recover(ctx context.Context, b domain.Batch) error {
	if s.queue != nil {
		// bump updated_at so the next sweep leaves it alone while it waits in the queue
		if err := s.batches.UpdateStatus(ctx, b.ID, domain.BatchQueued, nil); err != nil {
			return err
		}
		return s.queue.EnqueueBatch(ctx, domain.BatchTask{BatchID: b.ID, Owner: b.Owner})
	}
	var report domain.BatchReport
	for _, it := range b.Items {
		report.Add(domain.BatchItemResult{Item: it, ArticleID: it.ArticleID, Error: "batch interrupted"})
	}
	return s.batches.UpdateStatus(ctx, b.ID, domain.BatchCompleted, &report)
}

package redpanda

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/twmb/franz-go/pkg/kgo"

	"github.com/fairyhunter13/ai-content-publisher/internal/config"
	"github.com/fairyhunter13/ai-content-publisher/internal/domain"
	obsctx "github.com/fairyhunter13/ai-content-publisher/internal/observability"
)

// BatchRunner runs a stored batch to completion. usecase.BatchService satisfies it.
type BatchRunner interface {
	RunBatch(ctx domain.Context, owner, id string) (domain.Batch, error)
}

// groupClient is the part of *kgo.Client the consumer needs.
type groupClient interface {
	PollFetches(ctx context.Context) kgo.Fetches
	CommitRecords(ctx context.Context, rs ...*kgo.Record) error
	ProduceSync(ctx context.Context, rs ...*kgo.Record) kgo.ProduceResults
	Close()
}

// Consumer reads batch tasks from a consumer group and runs them one by one.
// Offsets are committed after a task is handled, including tasks that were
// sent to the dead letter topic.
type Consumer struct {
	client   groupClient
	runner   BatchRunner
	retry    config.RetryConfig
	dlqTopic string
}

// NewConsumer joins groupID on TopicBatches.
func NewConsumer(brokers []string, groupID string, runner BatchRunner, retry config.RetryConfig) (*Consumer, error) {
	if len(brokers) == 0 {
		return nil, fmt.Errorf("op=redpanda.NewConsumer: no seed brokers provided")
	}
	if groupID == "" {
		return nil, fmt.Errorf("op=redpanda.NewConsumer: missing required group ID")
	}
	slog.Info("creating redpanda consumer", slog.Any("brokers", brokers), slog.String("group_id", groupID))

	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.ConsumerGroup(groupID),
		kgo.ConsumeTopics(TopicBatches),
		kgo.DisableAutoCommit(),
		kgo.FetchIsolationLevel(kgo.ReadCommitted()),
		kgo.RequireStableFetchOffsets(),
		kgo.FetchMaxWait(500*time.Millisecond),
		kgo.DialTimeout(30*time.Second),
		kgo.SessionTimeout(30*time.Second),
		// a batch may run for minutes between polls
		kgo.RebalanceTimeout(10*time.Minute),
		kgo.WithHooks(tracingHooks()...),
	)
	if err != nil {
		return nil, fmt.Errorf("op=redpanda.NewConsumer: %w", err)
	}
	return newConsumer(client, runner, retry), nil
}

func newConsumer(c groupClient, runner BatchRunner, retry config.RetryConfig) *Consumer {
	return &Consumer{client: c, runner: runner, retry: retry, dlqTopic: TopicBatchesDLQ}
}

// Run polls until ctx is cancelled or the client is closed.
func (c *Consumer) Run(ctx context.Context) error {
	slog.Info("redpanda consumer started", slog.String("topic", TopicBatches))
	for {
		fetches := c.client.PollFetches(ctx)
		if fetches.IsClientClosed() || ctx.Err() != nil {
			slog.Info("redpanda consumer stopping")
			return nil
		}
		fetches.EachError(func(topic string, partition int32, err error) {
			slog.Error("fetch error", slog.String("topic", topic), slog.Int("partition", int(partition)), slog.Any("error", err))
		})
		fetches.EachRecord(func(r *kgo.Record) {
			c.handle(ctx, r)
			commitCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
			defer cancel()
			if err := c.client.CommitRecords(commitCtx, r); err != nil {
				slog.Error("commit failed", slog.String("topic", r.Topic), slog.Int64("offset", r.Offset), slog.Any("error", err))
			}
		})
	}
}

func (c *Consumer) handle(ctx context.Context, r *kgo.Record) {
	var task domain.BatchTask
	if err := json.Unmarshal(r.Value, &task); err != nil || task.BatchID == "" {
		if err == nil {
			err = errors.New("missing batch id")
		}
		slog.Error("undecodable batch task", slog.Int64("offset", r.Offset), slog.Any("error", err))
		c.deadLetter(ctx, r, err)
		return
	}

	ctx = obsctx.ContextWithRequestID(ctx, headerValue(r, headerRequestID))
	ctx = obsctx.ContextWithOwner(ctx, task.Owner)
	lg := obsctx.LoggerFromContext(ctx).With(slog.String("batch_id", task.BatchID))

	op := func() error {
		_, err := c.runner.RunBatch(ctx, task.Owner, task.BatchID)
		if errors.Is(err, domain.ErrNotFound) || errors.Is(err, domain.ErrInvalidArgument) {
			return backoff.Permanent(err)
		}
		return err
	}
	notify := func(err error, wait time.Duration) {
		lg.Warn("batch run failed, retrying", slog.Any("error", err), slog.Duration("wait", wait))
	}
	if err := backoff.RetryNotify(op, backoff.WithContext(c.retry.BackOff(), ctx), notify); err != nil {
		lg.Error("batch run failed", slog.Any("error", err))
		c.deadLetter(ctx, r, err)
		return
	}
	lg.Info("batch task handled")
}

func (c *Consumer) deadLetter(ctx context.Context, r *kgo.Record, cause error) {
	rec := &kgo.Record{
		Topic:   c.dlqTopic,
		Key:     r.Key,
		Value:   r.Value,
		Headers: append(append([]kgo.RecordHeader(nil), r.Headers...), kgo.RecordHeader{Key: headerError, Value: []byte(cause.Error())}),
	}
	if err := c.client.ProduceSync(context.WithoutCancel(ctx), rec).FirstErr(); err != nil {
		slog.Error("dead letter produce failed", slog.String("topic", c.dlqTopic), slog.Any("error", err))
	}
}

// Close leaves the group and closes the client.
func (c *Consumer) Close() {
	if c.client != nil {
		c.client.Close()
	}
}

func headerValue(r *kgo.Record, key string) string {
	for _, h := range r.Headers {
		if h.Key == key {
			return string(h.Value)
		}
	}
	return ""
}

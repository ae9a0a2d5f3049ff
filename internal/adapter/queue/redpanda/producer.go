// Package redpanda carries batch tasks over Redpanda/Kafka.
//
// The producer writes one record per batch inside a transaction and the
// consumer commits offsets only after the batch report has been stored, so a
// crashed worker redelivers the batch instead of dropping it.
package redpanda

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/twmb/franz-go/pkg/kgo"
	"github.com/twmb/franz-go/plugin/kotel"
	"go.opentelemetry.io/otel"

	"github.com/fairyhunter13/ai-content-publisher/internal/domain"
	obsctx "github.com/fairyhunter13/ai-content-publisher/internal/observability"
)

const (
	// TopicBatches is the topic batch tasks are written to.
	TopicBatches = "content-batches"
	// TopicBatchesDLQ receives tasks whose run kept failing.
	TopicBatchesDLQ = "content-batches-dlq"

	headerOwner     = "owner"
	headerRequestID = "request_id"
	headerError     = "error"
)

// txClient is the part of *kgo.Client the producer needs.
type txClient interface {
	BeginTransaction() error
	ProduceSync(ctx context.Context, rs ...*kgo.Record) kgo.ProduceResults
	EndTransaction(ctx context.Context, commit kgo.TransactionEndTry) error
	Ping(ctx context.Context) error
	Close()
}

// Producer enqueues batch tasks and implements domain.BatchQueue.
type Producer struct {
	client txClient
	topic  string
	// serializes transactions; a kgo client runs one at a time
	txLock chan struct{}
}

// NewProducer constructs a transactional Producer for TopicBatches.
func NewProducer(brokers []string, transactionalID string) (*Producer, error) {
	if len(brokers) == 0 {
		return nil, fmt.Errorf("op=redpanda.NewProducer: no seed brokers provided")
	}
	if transactionalID == "" {
		transactionalID = "ai-content-publisher-producer"
	}
	slog.Info("creating redpanda producer", slog.Any("brokers", brokers), slog.String("transactional_id", transactionalID))

	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.TransactionalID(transactionalID),
		kgo.RequestRetries(10),
		kgo.ProducerBatchMaxBytes(1000000),
		kgo.WithHooks(tracingHooks()...),
	)
	if err != nil {
		return nil, fmt.Errorf("op=redpanda.NewProducer: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	for _, t := range []string{TopicBatches, TopicBatchesDLQ} {
		if err := createTopicIfNotExists(ctx, client, t, 3, 1); err != nil {
			slog.Warn("failed to create topic, it may already exist", slog.String("topic", t), slog.Any("error", err))
		}
	}
	return newProducer(client, TopicBatches), nil
}

func newProducer(c txClient, topic string) *Producer {
	return &Producer{client: c, topic: topic, txLock: make(chan struct{}, 1)}
}

// EnqueueBatch writes the task keyed by batch id so redeliveries of the same
// batch stay on one partition.
func (p *Producer) EnqueueBatch(ctx domain.Context, task domain.BatchTask) error {
	lg := obsctx.LoggerFromContext(ctx).With(slog.String("batch_id", task.BatchID), slog.String("topic", p.topic))
	if task.BatchID == "" {
		return fmt.Errorf("op=redpanda.EnqueueBatch: %w: batch id required", domain.ErrInvalidArgument)
	}
	body, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("op=redpanda.EnqueueBatch: marshal: %w", err)
	}
	rec := &kgo.Record{
		Topic: p.topic,
		Key:   []byte(task.BatchID),
		Value: body,
		Headers: []kgo.RecordHeader{
			{Key: headerOwner, Value: []byte(task.Owner)},
		},
	}
	if rid := obsctx.RequestIDFromContext(ctx); rid != "" {
		rec.Headers = append(rec.Headers, kgo.RecordHeader{Key: headerRequestID, Value: []byte(rid)})
	}

	if err := p.produceInTx(ctx, rec); err != nil {
		lg.Error("enqueue batch failed", slog.Any("error", err))
		return fmt.Errorf("op=redpanda.EnqueueBatch: %w", err)
	}
	lg.Info("batch enqueued")
	return nil
}

func (p *Producer) produceInTx(ctx context.Context, recs ...*kgo.Record) error {
	select {
	case p.txLock <- struct{}{}:
		defer func() { <-p.txLock }()
	case <-ctx.Done():
		return ctx.Err()
	}

	if err := p.client.BeginTransaction(); err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	if err := p.client.ProduceSync(ctx, recs...).FirstErr(); err != nil {
		if abortErr := p.client.EndTransaction(context.WithoutCancel(ctx), kgo.TryAbort); abortErr != nil {
			slog.Error("failed to abort transaction", slog.Any("error", abortErr))
		}
		return fmt.Errorf("produce: %w", err)
	}
	if err := p.client.EndTransaction(ctx, kgo.TryCommit); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// Ping checks that at least one broker answers.
func (p *Producer) Ping(ctx context.Context) error {
	return p.client.Ping(ctx)
}

// Close flushes and closes the underlying client.
func (p *Producer) Close() {
	if p.client != nil {
		p.client.Close()
	}
}

func tracingHooks() []kgo.Hook {
	tracer := kotel.NewTracer(kotel.TracerProvider(otel.GetTracerProvider()))
	return kotel.NewKotel(kotel.WithTracer(tracer)).Hooks()
}

package redpanda

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twmb/franz-go/pkg/kerr"
	"github.com/twmb/franz-go/pkg/kgo"
	"github.com/twmb/franz-go/pkg/kmsg"

	"github.com/fairyhunter13/ai-content-publisher/internal/config"
	"github.com/fairyhunter13/ai-content-publisher/internal/domain"
	obsctx "github.com/fairyhunter13/ai-content-publisher/internal/observability"
)

type fakeTx struct {
	mu        sync.Mutex
	produced  []*kgo.Record
	ends      []kgo.TransactionEndTry
	beginErr  error
	produceEr error
	closed    bool
}

func (f *fakeTx) BeginTransaction() error { return f.beginErr }

func (f *fakeTx) ProduceSync(_ context.Context, rs ...*kgo.Record) kgo.ProduceResults {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out kgo.ProduceResults
	for _, r := range rs {
		if f.produceEr == nil {
			f.produced = append(f.produced, r)
		}
		out = append(out, kgo.ProduceResult{Record: r, Err: f.produceEr})
	}
	return out
}

func (f *fakeTx) EndTransaction(_ context.Context, commit kgo.TransactionEndTry) error {
	f.ends = append(f.ends, commit)
	return nil
}

func (f *fakeTx) Ping(context.Context) error { return nil }

func (f *fakeTx) Close() { f.closed = true }

func TestProducer_EnqueueBatch(t *testing.T) {
	fc := &fakeTx{}
	p := newProducer(fc, TopicBatches)
	ctx := obsctx.ContextWithRequestID(context.Background(), "req-1")

	require.NoError(t, p.EnqueueBatch(ctx, domain.BatchTask{BatchID: "b1", Owner: "alice"}))

	require.Len(t, fc.produced, 1)
	rec := fc.produced[0]
	assert.Equal(t, TopicBatches, rec.Topic)
	assert.Equal(t, "b1", string(rec.Key))
	assert.Equal(t, "alice", headerValue(rec, headerOwner))
	assert.Equal(t, "req-1", headerValue(rec, headerRequestID))
	var task domain.BatchTask
	require.NoError(t, json.Unmarshal(rec.Value, &task))
	assert.Equal(t, domain.BatchTask{BatchID: "b1", Owner: "alice"}, task)
	assert.Equal(t, []kgo.TransactionEndTry{kgo.TryCommit}, fc.ends)

	require.NoError(t, p.Ping(context.Background()))
	p.Close()
	assert.True(t, fc.closed)
}

func TestProducer_EnqueueBatch_Errors(t *testing.T) {
	t.Run("missing id", func(t *testing.T) {
		p := newProducer(&fakeTx{}, TopicBatches)
		err := p.EnqueueBatch(context.Background(), domain.BatchTask{Owner: "alice"})
		assert.ErrorIs(t, err, domain.ErrInvalidArgument)
	})
	t.Run("produce failure aborts", func(t *testing.T) {
		fc := &fakeTx{produceEr: errors.New("broker down")}
		p := newProducer(fc, TopicBatches)
		err := p.EnqueueBatch(context.Background(), domain.BatchTask{BatchID: "b1"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "broker down")
		assert.Equal(t, []kgo.TransactionEndTry{kgo.TryAbort}, fc.ends)
	})
	t.Run("begin failure", func(t *testing.T) {
		fc := &fakeTx{beginErr: errors.New("fenced")}
		p := newProducer(fc, TopicBatches)
		err := p.EnqueueBatch(context.Background(), domain.BatchTask{BatchID: "b1"})
		require.Error(t, err)
		assert.Empty(t, fc.ends)
	})
	t.Run("cancelled while waiting for lock", func(t *testing.T) {
		p := newProducer(&fakeTx{}, TopicBatches)
		p.txLock <- struct{}{}
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		err := p.EnqueueBatch(ctx, domain.BatchTask{BatchID: "b1"})
		assert.ErrorIs(t, err, context.Canceled)
	})
}

type fakeGroup struct {
	mu        sync.Mutex
	fetches   []kgo.Fetches
	committed []*kgo.Record
	produced  []*kgo.Record
	drained   chan struct{}
}

func newFakeGroup(recs ...*kgo.Record) *fakeGroup {
	return &fakeGroup{
		fetches: []kgo.Fetches{{{Topics: []kgo.FetchTopic{{Topic: TopicBatches, Partitions: []kgo.FetchPartition{{Records: recs}}}}}}},
		drained: make(chan struct{}),
	}
}

func (f *fakeGroup) PollFetches(ctx context.Context) kgo.Fetches {
	f.mu.Lock()
	if len(f.fetches) > 0 {
		next := f.fetches[0]
		f.fetches = f.fetches[1:]
		f.mu.Unlock()
		return next
	}
	f.mu.Unlock()
	select {
	case <-f.drained:
	default:
		close(f.drained)
	}
	<-ctx.Done()
	return nil
}

func (f *fakeGroup) CommitRecords(_ context.Context, rs ...*kgo.Record) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.committed = append(f.committed, rs...)
	return nil
}

func (f *fakeGroup) ProduceSync(_ context.Context, rs ...*kgo.Record) kgo.ProduceResults {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.produced = append(f.produced, rs...)
	var out kgo.ProduceResults
	for _, r := range rs {
		out = append(out, kgo.ProduceResult{Record: r})
	}
	return out
}

func (f *fakeGroup) Close() {}

type runCall struct{ owner, id, requestID string }

type fakeRunner struct {
	mu    sync.Mutex
	calls []runCall
	errs  []error
}

func (r *fakeRunner) RunBatch(ctx domain.Context, owner, id string) (domain.Batch, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, runCall{owner: owner, id: id, requestID: obsctx.RequestIDFromContext(ctx)})
	if len(r.errs) > 0 {
		err := r.errs[0]
		r.errs = r.errs[1:]
		return domain.Batch{}, err
	}
	return domain.Batch{ID: id, Owner: owner, Status: domain.BatchCompleted}, nil
}

func taskRecord(t *testing.T, task domain.BatchTask, offset int64) *kgo.Record {
	t.Helper()
	body, err := json.Marshal(task)
	require.NoError(t, err)
	return &kgo.Record{
		Topic:   TopicBatches,
		Key:     []byte(task.BatchID),
		Value:   body,
		Offset:  offset,
		Headers: []kgo.RecordHeader{{Key: headerRequestID, Value: []byte("req-" + task.BatchID)}},
	}
}

func testRetry() config.RetryConfig {
	return config.Config{AppEnv: "test", RetryMaxRetries: 2}.GetRetryConfig()
}

func runUntilDrained(t *testing.T, c *Consumer, g *fakeGroup) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Run(ctx) }()
	select {
	case <-g.drained:
	case <-time.After(5 * time.Second):
		t.Fatal("consumer did not drain fetches")
	}
	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("consumer did not stop")
	}
}

func TestConsumer_RunsAndCommits(t *testing.T) {
	r1 := taskRecord(t, domain.BatchTask{BatchID: "b1", Owner: "alice"}, 0)
	r2 := taskRecord(t, domain.BatchTask{BatchID: "b2", Owner: "bob"}, 1)
	g := newFakeGroup(r1, r2)
	runner := &fakeRunner{}
	c := newConsumer(g, runner, testRetry())

	runUntilDrained(t, c, g)

	assert.Equal(t, []runCall{{"alice", "b1", "req-b1"}, {"bob", "b2", "req-b2"}}, runner.calls)
	assert.Equal(t, []*kgo.Record{r1, r2}, g.committed)
	assert.Empty(t, g.produced)
}

func TestConsumer_RetriesTransientFailure(t *testing.T) {
	rec := taskRecord(t, domain.BatchTask{BatchID: "b1", Owner: "alice"}, 0)
	g := newFakeGroup(rec)
	runner := &fakeRunner{errs: []error{errors.New("db hiccup")}}
	c := newConsumer(g, runner, testRetry())

	runUntilDrained(t, c, g)

	assert.Len(t, runner.calls, 2)
	assert.Equal(t, []*kgo.Record{rec}, g.committed)
	assert.Empty(t, g.produced)
}

func TestConsumer_DeadLetters(t *testing.T) {
	t.Run("missing batch is not retried", func(t *testing.T) {
		rec := taskRecord(t, domain.BatchTask{BatchID: "gone", Owner: "alice"}, 0)
		g := newFakeGroup(rec)
		runner := &fakeRunner{errs: []error{domain.ErrNotFound}}
		c := newConsumer(g, runner, testRetry())

		runUntilDrained(t, c, g)

		assert.Len(t, runner.calls, 1)
		require.Len(t, g.produced, 1)
		assert.Equal(t, TopicBatchesDLQ, g.produced[0].Topic)
		assert.Contains(t, headerValue(g.produced[0], headerError), "not found")
		assert.Equal(t, []*kgo.Record{rec}, g.committed)
	})
	t.Run("retries exhausted", func(t *testing.T) {
		rec := taskRecord(t, domain.BatchTask{BatchID: "b1", Owner: "alice"}, 0)
		g := newFakeGroup(rec)
		boom := errors.New("still down")
		runner := &fakeRunner{errs: []error{boom, boom, boom, boom}}
		c := newConsumer(g, runner, testRetry())

		runUntilDrained(t, c, g)

		assert.Len(t, runner.calls, 3)
		require.Len(t, g.produced, 1)
		assert.Equal(t, "still down", headerValue(g.produced[0], headerError))
	})
	t.Run("undecodable payload", func(t *testing.T) {
		rec := &kgo.Record{Topic: TopicBatches, Value: []byte("{not json")}
		g := newFakeGroup(rec)
		runner := &fakeRunner{}
		c := newConsumer(g, runner, testRetry())

		runUntilDrained(t, c, g)

		assert.Empty(t, runner.calls)
		require.Len(t, g.produced, 1)
		assert.Equal(t, []byte("{not json"), g.produced[0].Value)
		assert.Equal(t, []*kgo.Record{rec}, g.committed)
	})
}

type fakeRequester struct {
	code int16
	err  error
	req  *kmsg.CreateTopicsRequest
}

func (f *fakeRequester) Request(_ context.Context, req kmsg.Request) (kmsg.Response, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.req = req.(*kmsg.CreateTopicsRequest)
	resp := kmsg.NewCreateTopicsResponse()
	tr := kmsg.NewCreateTopicsResponseTopic()
	tr.Topic = f.req.Topics[0].Topic
	tr.ErrorCode = f.code
	resp.Topics = append(resp.Topics, tr)
	return &resp, nil
}

func TestCreateTopicIfNotExists(t *testing.T) {
	ctx := context.Background()

	fr := &fakeRequester{}
	require.NoError(t, createTopicIfNotExists(ctx, fr, "t1", 3, 1))
	assert.Equal(t, "t1", fr.req.Topics[0].Topic)
	assert.EqualValues(t, 3, fr.req.Topics[0].NumPartitions)

	require.NoError(t, createTopicIfNotExists(ctx, &fakeRequester{code: kerr.TopicAlreadyExists.Code}, "t1", 1, 1))

	err := createTopicIfNotExists(ctx, &fakeRequester{code: kerr.TopicAuthorizationFailed.Code}, "t1", 1, 1)
	assert.ErrorIs(t, err, kerr.TopicAuthorizationFailed)

	assert.Error(t, createTopicIfNotExists(ctx, &fakeRequester{err: errors.New("dial")}, "t1", 1, 1))
	assert.Error(t, createTopicIfNotExists(ctx, fr, "", 1, 1))
	assert.Error(t, createTopicIfNotExists(ctx, fr, "t1", 0, 1))
	assert.Error(t, createTopicIfNotExists(ctx, fr, "t1", 1, 0))
}

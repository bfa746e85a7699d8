package queue

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"fillScope/internal/model"
)

// setupTestBroker starts a Redis container and returns a broker connected to it.
func setupTestBroker(t *testing.T) *Broker {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping redis container test in short mode")
	}

	ctx := context.Background()
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections").WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	require.NoError(t, err, "failed to start redis container")
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	})

	endpoint, err := container.Endpoint(ctx, "")
	require.NoError(t, err)

	broker, err := New(ctx, Config{Addr: endpoint, Retention: time.Minute})
	require.NoError(t, err)
	t.Cleanup(func() { _ = broker.Close() })
	return broker
}

func TestBrokerPublishDeduplicates(t *testing.T) {
	b := setupTestBroker(t)
	ctx := context.Background()

	payload := json.RawMessage(`{"eventId": "e1"}`)
	require.NoError(t, b.Publish(ctx, "q", "create-fill", payload, Options{JobID: "create-fill-e1"}))
	require.NoError(t, b.Publish(ctx, "q", "create-fill", payload, Options{JobID: "create-fill-e1"}))

	counts, err := b.Counts(ctx, "q")
	require.NoError(t, err)
	assert.Equal(t, int64(1), counts.Waiting)

	job, err := b.claim(ctx, "q", time.Second, time.Minute)
	require.NoError(t, err)
	require.NotNil(t, job)
	assert.Equal(t, "create-fill-e1", job.ID)
	assert.Equal(t, string(payload), string(job.Data))
	require.NoError(t, b.complete(ctx, job))

	require.NoError(t, b.Publish(ctx, "q", "create-fill", payload, Options{JobID: "create-fill-e1"}))
	counts, err = b.Counts(ctx, "q")
	require.NoError(t, err)
	assert.Equal(t, Counts{}, counts)
}

func TestBrokerDelayedPromotion(t *testing.T) {
	b := setupTestBroker(t)
	ctx := context.Background()

	require.NoError(t, b.Publish(ctx, "q", "n", json.RawMessage(`{}`), Options{Delay: 200 * time.Millisecond}))

	n, err := b.promoteDue(ctx, "q", 10)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	time.Sleep(300 * time.Millisecond)
	n, err = b.promoteDue(ctx, "q", 10)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	counts, err := b.Counts(ctx, "q")
	require.NoError(t, err)
	assert.Equal(t, int64(1), counts.Waiting)
	assert.Equal(t, int64(0), counts.Delayed)
}

func TestWorkerRetriesAndQuarantines(t *testing.T) {
	b := setupTestBroker(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var (
		mu       sync.Mutex
		attempts = map[string]int{}
		done     = make(chan struct{}, 4)
	)
	count := func(job Job) int {
		mu.Lock()
		defer mu.Unlock()
		attempts[job.ID]++
		return attempts[job.ID]
	}

	w := b.NewWorker("q", WorkerOptions{
		Concurrency:     2,
		Backoff:         10 * time.Millisecond,
		MaxAttempts:     3,
		PollTimeout:     100 * time.Millisecond,
		PromoteInterval: 10 * time.Millisecond,
		RateLimit:       100,
	}, nil)
	w.Handle("flaky", HandlerFunc(func(_ context.Context, job Job) error {
		if count(job) < 2 {
			return errors.New("transient")
		}
		done <- struct{}{}
		return nil
	}))
	w.Handle("broken", HandlerFunc(func(_ context.Context, job Job) error {
		count(job)
		done <- struct{}{}
		return model.ErrUnsupportedAsset
	}))
	w.Handle("hopeless", HandlerFunc(func(_ context.Context, job Job) error {
		if count(job) == 3 {
			done <- struct{}{}
		}
		return errors.New("still down")
	}))

	require.NoError(t, b.Publish(ctx, "q", "flaky", json.RawMessage(`{}`), Options{JobID: "flaky"}))
	require.NoError(t, b.Publish(ctx, "q", "broken", json.RawMessage(`{}`), Options{JobID: "broken"}))
	require.NoError(t, b.Publish(ctx, "q", "hopeless", json.RawMessage(`{}`), Options{JobID: "hopeless"}))
	require.NoError(t, b.Publish(ctx, "q", "unknown", json.RawMessage(`{}`), Options{JobID: "unknown"}))

	errCh := make(chan error, 1)
	go func() { errCh <- w.Run(ctx) }()

	for i := 0; i < 3; i++ {
		select {
		case <-done:
		case <-time.After(10 * time.Second):
			t.Fatal("timed out waiting for jobs")
		}
	}

	require.Eventually(t, func() bool {
		failed, err := b.Failed(ctx, "q")
		return err == nil && len(failed) == 3
	}, 5*time.Second, 20*time.Millisecond)

	cancel()
	require.NoError(t, <-errCh)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 2, attempts["flaky"])
	assert.Equal(t, 1, attempts["broken"])
	assert.Equal(t, 3, attempts["hopeless"])

	failed, err := b.Failed(context.Background(), "q")
	require.NoError(t, err)
	byID := map[string]FailedJob{}
	for _, f := range failed {
		byID[f.ID] = f
	}
	assert.Contains(t, byID["broken"].Error, "unsupported asset")
	assert.Contains(t, byID["unknown"].Error, "unknown job")
	assert.Equal(t, 3, byID["hopeless"].Attempts)
}

func TestWorkerRecoversJobAfterCrash(t *testing.T) {
	b := setupTestBroker(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	payload := json.RawMessage(`{"eventId": "x"}`)
	require.NoError(t, b.Publish(ctx, "q", "create-fill", payload, Options{JobID: "create-fill-x"}))

	// The first consumer dies holding the job.
	abandoned, err := b.claim(ctx, "q", time.Second, 50*time.Millisecond)
	require.NoError(t, err)
	require.NotNil(t, abandoned)

	require.NoError(t, b.Publish(ctx, "q", "create-fill", payload, Options{JobID: "create-fill-x"}))
	counts, err := b.Counts(ctx, "q")
	require.NoError(t, err)
	assert.Equal(t, Counts{Active: 1}, counts)

	handled := make(chan Job, 1)
	w := b.NewWorker("q", WorkerOptions{
		PollTimeout:     100 * time.Millisecond,
		PromoteInterval: 10 * time.Millisecond,
		LeaseTimeout:    time.Second,
	}, nil)
	w.Handle("create-fill", HandlerFunc(func(_ context.Context, job Job) error {
		handled <- job
		return nil
	}))

	errCh := make(chan error, 1)
	go func() { errCh <- w.Run(ctx) }()

	select {
	case job := <-handled:
		assert.Equal(t, "create-fill-x", job.ID)
		assert.Equal(t, string(payload), string(job.Data))
		assert.Equal(t, 1, job.Attempts)
	case <-time.After(10 * time.Second):
		t.Fatal("stalled job was never redelivered")
	}

	require.Eventually(t, func() bool {
		counts, err := b.Counts(ctx, "q")
		return err == nil && counts == Counts{}
	}, 5*time.Second, 20*time.Millisecond)

	cancel()
	require.NoError(t, <-errCh)

	assert.ErrorIs(t, b.complete(context.Background(), abandoned), errLeaseLost)
}

func TestBrokerLostLeaseCannotSettle(t *testing.T) {
	b := setupTestBroker(t)
	ctx := context.Background()

	require.NoError(t, b.Publish(ctx, "q", "n", json.RawMessage(`{}`), Options{JobID: "slow"}))
	slow, err := b.claim(ctx, "q", time.Second, time.Millisecond)
	require.NoError(t, err)
	require.NotNil(t, slow)
	time.Sleep(20 * time.Millisecond)

	requeued, parked, err := b.reapExpired(ctx, "q", 10, 5, time.Minute)
	require.NoError(t, err)
	assert.Equal(t, 1, requeued)
	assert.Zero(t, parked)

	held, err := b.renew(ctx, slow, time.Minute)
	require.NoError(t, err)
	assert.False(t, held)
	assert.ErrorIs(t, b.retry(ctx, slow, time.Minute), errLeaseLost)
	assert.ErrorIs(t, b.fail(ctx, slow, errors.New("late")), errLeaseLost)

	again, err := b.claim(ctx, "q", time.Second, time.Minute)
	require.NoError(t, err)
	require.NotNil(t, again)
	assert.Equal(t, "slow", again.ID)
	assert.Equal(t, 1, again.Attempts)

	held, err = b.renew(ctx, again, time.Minute)
	require.NoError(t, err)
	assert.True(t, held)
	require.NoError(t, b.complete(ctx, again))

	counts, err := b.Counts(ctx, "q")
	require.NoError(t, err)
	assert.Equal(t, Counts{}, counts)
	failed, err := b.Failed(ctx, "q")
	require.NoError(t, err)
	assert.Empty(t, failed)
}

func TestBrokerReapParksExhaustedJob(t *testing.T) {
	b := setupTestBroker(t)
	ctx := context.Background()

	require.NoError(t, b.Publish(ctx, "q", "crasher", json.RawMessage(`{"n":1}`), Options{JobID: "crasher"}))
	_, err := b.claim(ctx, "q", time.Second, time.Millisecond)
	require.NoError(t, err)
	time.Sleep(20 * time.Millisecond)

	requeued, parked, err := b.reapExpired(ctx, "q", 10, 1, time.Minute)
	require.NoError(t, err)
	assert.Zero(t, requeued)
	assert.Equal(t, 1, parked)

	failed, err := b.Failed(ctx, "q")
	require.NoError(t, err)
	require.Len(t, failed, 1)
	assert.Equal(t, "crasher", failed[0].ID)
	assert.Equal(t, "crasher", failed[0].Name)
	assert.Equal(t, `{"n":1}`, failed[0].Data)
	assert.Equal(t, 1, failed[0].Attempts)
	assert.Contains(t, failed[0].Error, "lease expired")
	assert.False(t, failed[0].FailedAt.IsZero())

	counts, err := b.Counts(ctx, "q")
	require.NoError(t, err)
	assert.Equal(t, Counts{Failed: 1}, counts)

	require.NoError(t, b.Publish(ctx, "q", "crasher", json.RawMessage(`{"n":1}`), Options{JobID: "crasher"}))
	counts, err = b.Counts(ctx, "q")
	require.NoError(t, err)
	assert.Equal(t, Counts{Failed: 1}, counts)
}

func TestBrokerReapAdoptsUnleasedActiveJob(t *testing.T) {
	b := setupTestBroker(t)
	ctx := context.Background()

	require.NoError(t, b.Publish(ctx, "q", "n", json.RawMessage(`{}`), Options{JobID: "orphan"}))
	k := b.keys("q")
	// A claim that moved the id but never recorded a lease.
	require.NoError(t, b.rdb.LMove(ctx, k.wait(), k.active(), "RIGHT", "LEFT").Err())

	requeued, parked, err := b.reapExpired(ctx, "q", 10, 5, 10*time.Millisecond)
	require.NoError(t, err)
	assert.Zero(t, requeued+parked)

	time.Sleep(30 * time.Millisecond)
	requeued, _, err = b.reapExpired(ctx, "q", 10, 5, 10*time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, 1, requeued)

	counts, err := b.Counts(ctx, "q")
	require.NoError(t, err)
	assert.Equal(t, Counts{Waiting: 1}, counts)
}

func TestRateLimiterWindow(t *testing.T) {
	b := setupTestBroker(t)
	ctx := context.Background()

	rl := b.newRateLimiter("limited", 2, time.Minute)
	for i := 0; i < 2; i++ {
		ok, err := rl.allow(ctx)
		require.NoError(t, err)
		assert.True(t, ok)
	}
	ok, err := rl.allow(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	ttl, err := b.rdb.PTTL(ctx, b.keys("limited").rateLimit()).Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, time.Duration(0))
}

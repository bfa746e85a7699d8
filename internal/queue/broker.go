package queue

import (
	"context"
	"crypto/tls"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

//go:embed scripts/publish.lua
var publishLua string

//go:embed scripts/promote.lua
var promoteLua string

//go:embed scripts/claim.lua
var claimLua string

//go:embed scripts/renew.lua
var renewLua string

//go:embed scripts/reap.lua
var reapLua string

const (
	defaultPrefix    = "fillscope"
	defaultRetention = 24 * time.Hour
)

// Config holds connection parameters for the broker.
type Config struct {
	Addr       string
	Password   string
	DB         int
	PoolSize   int
	MaxRetries int
	TLSEnabled bool

	// Prefix namespaces every key. Defaults to "fillscope".
	Prefix string
	// Retention is how long a completed job id keeps deduplicating publications.
	Retention time.Duration
}

// Broker publishes jobs and serves them to workers.
type Broker struct {
	rdb       *redis.Client
	prefix    string
	retention time.Duration

	publish   *redis.Script
	promote   *redis.Script
	claimJob  *redis.Script
	renewJob  *redis.Script
	reapStale *redis.Script
}

// New connects to Redis, pings it and returns a Broker.
func New(ctx context.Context, cfg Config) (*Broker, error) {
	opts := &redis.Options{
		Addr:       cfg.Addr,
		Password:   cfg.Password,
		DB:         cfg.DB,
		PoolSize:   cfg.PoolSize,
		MaxRetries: cfg.MaxRetries,
	}
	if cfg.TLSEnabled {
		opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}

	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis: ping: %w", err)
	}
	return NewWithClient(rdb, cfg.Prefix, cfg.Retention), nil
}

// NewWithClient wraps an existing client.
func NewWithClient(rdb *redis.Client, prefix string, retention time.Duration) *Broker {
	if prefix == "" {
		prefix = defaultPrefix
	}
	if retention <= 0 {
		retention = defaultRetention
	}
	return &Broker{
		rdb:       rdb,
		prefix:    prefix,
		retention: retention,
		publish:   redis.NewScript(publishLua),
		promote:   redis.NewScript(promoteLua),
		claimJob:  redis.NewScript(claimLua),
		renewJob:  redis.NewScript(renewLua),
		reapStale: redis.NewScript(reapLua),
	}
}

// Close closes the Redis connection.
func (b *Broker) Close() error {
	return b.rdb.Close()
}

type queueKeys struct {
	base string
}

func (b *Broker) keys(queue string) queueKeys {
	return queueKeys{base: b.prefix + ":queue:" + queue}
}

func (k queueKeys) job(id string) string       { return k.base + ":job:" + id }
func (k queueKeys) completed(id string) string { return k.base + ":completed:" + id }
func (k queueKeys) wait() string               { return k.base + ":wait" }
func (k queueKeys) active() string             { return k.base + ":active" }
func (k queueKeys) delayed() string            { return k.base + ":delayed" }
func (k queueKeys) leases() string             { return k.base + ":leases" }
func (k queueKeys) failed() string             { return k.base + ":failed" }
func (k queueKeys) rateLimit() string          { return k.base + ":ratelimit" }

// Publish enqueues a job. A publication whose JobID is pending, recently completed or failed
// is silently dropped.
func (b *Broker) Publish(ctx context.Context, queue, name string, data json.RawMessage, opts Options) error {
	id := opts.JobID
	if id == "" {
		id = uuid.NewString()
	}

	now := time.Now()
	var due int64
	if opts.Delay > 0 {
		due = now.Add(opts.Delay).UnixMilli()
	}

	k := b.keys(queue)
	err := b.publish.Run(ctx, b.rdb,
		[]string{k.job(id), k.wait(), k.delayed(), k.completed(id), k.failed()},
		id, name, []byte(data), due, now.UnixMilli(),
	).Err()
	if err != nil {
		return fmt.Errorf("redis: publish %s/%s: %w", queue, name, err)
	}
	return nil
}

// promoteDue moves up to limit delayed jobs whose due time has passed onto the wait list.
func (b *Broker) promoteDue(ctx context.Context, queue string, limit int) (int, error) {
	k := b.keys(queue)
	n, err := b.promote.Run(ctx, b.rdb, []string{k.delayed(), k.wait()}, time.Now().UnixMilli(), limit).Int()
	if err != nil {
		return 0, fmt.Errorf("redis: promote %s: %w", queue, err)
	}
	return n, nil
}

var (
	// errNoJob means the claimed id had no job record.
	errNoJob = errors.New("job record missing")
	// errLeaseLost means the job was reaped and possibly redelivered while its handler ran.
	errLeaseLost = errors.New("lease lost")
)

// claim blocks up to timeout for the next job, moves it to the active list and leases it
// for lease. It returns (nil, nil) when nothing arrived.
func (b *Broker) claim(ctx context.Context, queue string, timeout, lease time.Duration) (*Job, error) {
	k := b.keys(queue)
	id, err := b.rdb.BLMove(ctx, k.wait(), k.active(), "RIGHT", "LEFT", timeout).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("redis: claim %s: %w", queue, err)
	}

	job, err := b.acquire(ctx, queue, id, lease)
	if errors.Is(err, errNoJob) {
		_ = b.rdb.LRem(ctx, k.active(), 1, id).Err()
		return nil, err
	}
	if err != nil {
		if rqErr := b.requeue(ctx, queue, id); rqErr != nil {
			return nil, errors.Join(err, rqErr)
		}
		return nil, err
	}
	return job, nil
}

// acquire stamps a fresh lease token on the job record and loads it.
func (b *Broker) acquire(ctx context.Context, queue, id string, lease time.Duration) (*Job, error) {
	k := b.keys(queue)
	token := uuid.NewString()
	now := time.Now()

	values, err := b.claimJob.Run(ctx, b.rdb, []string{k.job(id), k.leases()},
		id, token, now.Add(lease).UnixMilli(), now.UnixMilli(),
	).StringSlice()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("%w: %s", errNoJob, id)
	}
	if err != nil {
		return nil, fmt.Errorf("redis: load job %s: %w", id, err)
	}

	fields := make(map[string]string, len(values)/2)
	for i := 0; i+1 < len(values); i += 2 {
		fields[values[i]] = values[i+1]
	}
	attempts, _ := strconv.Atoi(fields["attempts"])
	publishedMs, _ := strconv.ParseInt(fields["published_at"], 10, 64)
	return &Job{
		ID:          id,
		Queue:       queue,
		Name:        fields["name"],
		Data:        json.RawMessage(fields["data"]),
		Attempts:    attempts,
		PublishedAt: time.UnixMilli(publishedMs).UTC(),
		leaseToken:  token,
	}, nil
}

// requeue puts an id whose claim failed back at the head of the wait list.
func (b *Broker) requeue(ctx context.Context, queue, id string) error {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()

	k := b.keys(queue)
	_, err := b.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.ZRem(ctx, k.leases(), id)
		pipe.LRem(ctx, k.active(), 1, id)
		pipe.RPush(ctx, k.wait(), id)
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis: requeue %s: %w", id, err)
	}
	return nil
}

// renew extends the job's lease. It reports false once the lease belongs to someone else.
func (b *Broker) renew(ctx context.Context, job *Job, lease time.Duration) (bool, error) {
	k := b.keys(job.Queue)
	held, err := b.renewJob.Run(ctx, b.rdb, []string{k.job(job.ID), k.leases()},
		job.ID, job.leaseToken, time.Now().Add(lease).UnixMilli(),
	).Int()
	if err != nil {
		return false, fmt.Errorf("redis: renew %s: %w", job.ID, err)
	}
	return held == 1, nil
}

// reapExpired returns active jobs whose lease ran out to the wait list, counting the lost
// run as an attempt. Jobs that reach maxAttempts this way are parked as failed.
func (b *Broker) reapExpired(ctx context.Context, queue string, limit, maxAttempts int, lease time.Duration) (requeued, parked int, err error) {
	k := b.keys(queue)
	now := time.Now()
	counts, err := b.reapStale.Run(ctx, b.rdb,
		[]string{k.leases(), k.active(), k.wait(), k.failed()},
		now.UnixMilli(), limit, k.job(""), maxAttempts, now.UTC().Format(time.RFC3339Nano), lease.Milliseconds(),
	).Int64Slice()
	if err != nil {
		return 0, 0, fmt.Errorf("redis: reap %s: %w", queue, err)
	}
	if len(counts) != 2 {
		return 0, 0, fmt.Errorf("redis: reap %s: unexpected reply %v", queue, counts)
	}
	return int(counts[0]), int(counts[1]), nil
}

// settle applies fn atomically while the job still carries the lease token it was claimed
// with. A job reaped in the meantime is left to whoever holds it now.
func (b *Broker) settle(ctx context.Context, job *Job, op string, fn func(pipe redis.Pipeliner)) error {
	k := b.keys(job.Queue)
	err := b.rdb.Watch(ctx, func(tx *redis.Tx) error {
		token, err := tx.HGet(ctx, k.job(job.ID), "token").Result()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		if token != job.leaseToken {
			return errLeaseLost
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.ZRem(ctx, k.leases(), job.ID)
			pipe.LRem(ctx, k.active(), 1, job.ID)
			fn(pipe)
			return nil
		})
		return err
	}, k.job(job.ID))
	if errors.Is(err, redis.TxFailedErr) {
		err = errLeaseLost
	}
	if err != nil {
		return fmt.Errorf("redis: %s %s: %w", op, job.ID, err)
	}
	return nil
}

// complete removes the job and keeps its id deduplicating for the retention window.
func (b *Broker) complete(ctx context.Context, job *Job) error {
	k := b.keys(job.Queue)
	return b.settle(ctx, job, "complete", func(pipe redis.Pipeliner) {
		pipe.Del(ctx, k.job(job.ID))
		pipe.Set(ctx, k.completed(job.ID), 1, b.retention)
	})
}

// retry schedules another attempt after delay.
func (b *Broker) retry(ctx context.Context, job *Job, delay time.Duration) error {
	k := b.keys(job.Queue)
	due := time.Now().Add(delay).UnixMilli()
	return b.settle(ctx, job, "retry", func(pipe redis.Pipeliner) {
		pipe.HIncrBy(ctx, k.job(job.ID), "attempts", 1)
		pipe.HDel(ctx, k.job(job.ID), "token", "claimed_at")
		pipe.ZAdd(ctx, k.delayed(), redis.Z{Score: float64(due), Member: job.ID})
	})
}

// FailedJob is a job parked in the failed hash.
type FailedJob struct {
	ID       string    `json:"id"`
	Name     string    `json:"name"`
	Data     string    `json:"data"`
	Attempts int       `json:"attempts"`
	Error    string    `json:"error"`
	FailedAt time.Time `json:"failedAt"`
}

// fail parks the job in the queue's failed hash.
func (b *Broker) fail(ctx context.Context, job *Job, cause error) error {
	k := b.keys(job.Queue)
	record, err := json.Marshal(FailedJob{
		ID:       job.ID,
		Name:     job.Name,
		Data:     string(job.Data),
		Attempts: job.Attempts + 1,
		Error:    cause.Error(),
		FailedAt: time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("marshal failed job %s: %w", job.ID, err)
	}

	return b.settle(ctx, job, "fail", func(pipe redis.Pipeliner) {
		pipe.Del(ctx, k.job(job.ID))
		pipe.HSet(ctx, k.failed(), job.ID, record)
	})
}

// Failed lists jobs parked in the failed hash of queue.
func (b *Broker) Failed(ctx context.Context, queue string) ([]FailedJob, error) {
	values, err := b.rdb.HVals(ctx, b.keys(queue).failed()).Result()
	if err != nil {
		return nil, fmt.Errorf("redis: list failed %s: %w", queue, err)
	}

	out := make([]FailedJob, 0, len(values))
	for _, v := range values {
		var job FailedJob
		if err := json.Unmarshal([]byte(v), &job); err != nil {
			return nil, fmt.Errorf("decode failed job: %w", err)
		}
		out = append(out, job)
	}
	return out, nil
}

// Counts is a snapshot of a queue's job states.
type Counts struct {
	Waiting int64
	Delayed int64
	Active  int64
	Failed  int64
}

// Counts reports the number of waiting, delayed, active and failed jobs of queue.
func (b *Broker) Counts(ctx context.Context, queue string) (Counts, error) {
	k := b.keys(queue)
	var waiting, delayed, active, failed *redis.IntCmd
	_, err := b.rdb.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		waiting = pipe.LLen(ctx, k.wait())
		delayed = pipe.ZCard(ctx, k.delayed())
		active = pipe.LLen(ctx, k.active())
		failed = pipe.HLen(ctx, k.failed())
		return nil
	})
	if err != nil {
		return Counts{}, fmt.Errorf("redis: counts %s: %w", queue, err)
	}
	return Counts{
		Waiting: waiting.Val(),
		Delayed: delayed.Val(),
		Active:  active.Val(),
		Failed:  failed.Val(),
	}, nil
}

var _ Publisher = (*Broker)(nil)

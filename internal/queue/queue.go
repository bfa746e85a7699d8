// Package queue is a persistent, Redis-backed job broker with delayed jobs, broker-level
// deduplication by job id, rate-limited workers and exponential backoff.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// ErrUnknownJob is returned for a job whose name has no registered handler.
var ErrUnknownJob = errors.New("unknown job")

// Options control a single publication.
type Options struct {
	// Delay postpones the job. Zero makes it immediately available.
	Delay time.Duration
	// JobID deduplicates publication. Empty means a random id.
	JobID string
}

// Job is one unit of work pulled from a queue. Data holds the published bytes unchanged.
type Job struct {
	ID          string
	Queue       string
	Name        string
	Data        json.RawMessage
	Attempts    int
	PublishedAt time.Time

	leaseToken string
}

// Decode unmarshals the job payload into v.
func (j Job) Decode(v any) error {
	if err := json.Unmarshal(j.Data, v); err != nil {
		return fmt.Errorf("decode %s payload: %w", j.Name, err)
	}
	return nil
}

// Publisher enqueues jobs.
type Publisher interface {
	Publish(ctx context.Context, queue, name string, data json.RawMessage, opts Options) error
}

// PublishJSON marshals payload and publishes it.
func PublishJSON(ctx context.Context, p Publisher, queue, name string, payload any, opts Options) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s payload: %w", name, err)
	}
	return p.Publish(ctx, queue, name, data, opts)
}

// Handler processes one job. Returning an error fails the attempt.
type Handler interface {
	Handle(ctx context.Context, job Job) error
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, job Job) error

func (f HandlerFunc) Handle(ctx context.Context, job Job) error {
	return f(ctx, job)
}

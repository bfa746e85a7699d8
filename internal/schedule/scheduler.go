// Package schedule discovers unscheduled Events in batches and publishes the jobs that process them.
package schedule

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"fillScope/internal/model"
	"fillScope/internal/queue"
	"fillScope/internal/storage"
)

// DefaultBatchSize bounds how many Events one scheduler run picks up.
const DefaultBatchSize = 500

// Scheduler publishes one downstream job per unscheduled Event, then flags the batch.
type Scheduler struct {
	events    storage.EventStore
	publisher queue.Publisher
	batchSize int
	logger    *zap.Logger
}

func NewScheduler(events storage.EventStore, publisher queue.Publisher, batchSize int, logger *zap.Logger) *Scheduler {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{events: events, publisher: publisher, batchSize: batchSize, logger: logger}
}

// ScheduleFillCreation publishes create-fill for a batch of Fill-producing Events. It returns
// the number of Events flagged.
func (s *Scheduler) ScheduleFillCreation(ctx context.Context) (int, error) {
	events, err := s.events.UnscheduledEvents(ctx, storage.FlagFillCreation, model.FillEventTypes(), s.batchSize)
	if err != nil {
		return 0, fmt.Errorf("load unscheduled events: %w", err)
	}

	ids := make([]uuid.UUID, 0, len(events))
	for _, event := range events {
		id := event.ID.String()
		payload := model.CreateFillJob{EventID: id}
		opts := queue.Options{JobID: model.JobID(model.JobCreateFill, id)}
		if err := queue.PublishJSON(ctx, s.publisher, model.QueueFillProcessing, model.JobCreateFill, payload, opts); err != nil {
			return s.flagPublished(ctx, storage.FlagFillCreation, ids, err)
		}
		ids = append(ids, event.ID)
	}
	return s.flagPublished(ctx, storage.FlagFillCreation, ids, nil)
}

// ScheduleTransactionFetch publishes one fetch-transaction job per distinct transaction hash in a
// batch of Events of any type.
func (s *Scheduler) ScheduleTransactionFetch(ctx context.Context) (int, error) {
	events, err := s.events.UnscheduledEvents(ctx, storage.FlagTransactionFetch, model.AllEventTypes(), s.batchSize)
	if err != nil {
		return 0, fmt.Errorf("load unscheduled events: %w", err)
	}

	published := make(map[string]bool)
	ids := make([]uuid.UUID, 0, len(events))
	for _, event := range events {
		hash := event.TransactionHash
		if !published[hash] {
			payload := model.FetchTransactionJob{TransactionHash: hash}
			opts := queue.Options{JobID: model.JobID(model.JobFetchTransaction, hash)}
			if err := queue.PublishJSON(ctx, s.publisher, model.QueueTransactionProcessing, model.JobFetchTransaction, payload, opts); err != nil {
				return s.flagPublished(ctx, storage.FlagTransactionFetch, ids, err)
			}
			published[hash] = true
		}
		ids = append(ids, event.ID)
	}
	return s.flagPublished(ctx, storage.FlagTransactionFetch, ids, nil)
}

// flagPublished marks the Events whose job made it to the broker. A publish error is returned
// after flagging so the next run resumes with the rest.
func (s *Scheduler) flagPublished(ctx context.Context, flag storage.SchedulerFlag, ids []uuid.UUID, publishErr error) (int, error) {
	if len(ids) > 0 {
		if err := s.events.MarkScheduled(ctx, flag, ids); err != nil {
			return 0, fmt.Errorf("mark %s: %w", flag, err)
		}
		s.logger.Info("events scheduled", zap.String("flag", string(flag)), zap.Int("count", len(ids)))
	}
	if publishErr != nil {
		return len(ids), fmt.Errorf("publish: %w", publishErr)
	}
	return len(ids), nil
}

package search

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"fillScope/internal/model"
	"fillScope/internal/queue"
	"fillScope/internal/storage"
)

// Sink accepts bulk document writes. *BulkSink satisfies it.
type Sink interface {
	Index(ctx context.Context, docs []Document) error
}

// Indexer handles the index-fill, index-traded-tokens and index-trader-fills jobs.
type Indexer struct {
	fills   storage.FillStore
	sink    Sink
	indices Indices
	logger  *zap.Logger
}

func NewIndexer(fills storage.FillStore, sink Sink, indices Indices, logger *zap.Logger) *Indexer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Indexer{fills: fills, sink: sink, indices: indices, logger: logger}
}

// JobNames lists the job names Handle accepts.
func JobNames() []string {
	return []string{model.JobIndexFill, model.JobIndexTradedTokens, model.JobIndexTraderFills}
}

func (ix *Indexer) Handle(ctx context.Context, job queue.Job) error {
	var build func(model.Fill) []Document
	switch job.Name {
	case model.JobIndexFill:
		build = ix.indices.FillDocuments
	case model.JobIndexTradedTokens:
		build = ix.indices.TradedTokenDocuments
	case model.JobIndexTraderFills:
		build = ix.indices.TraderFillDocuments
	default:
		return fmt.Errorf("%w: %s", queue.ErrUnknownJob, job.Name)
	}

	var payload model.FillJob
	if err := job.Decode(&payload); err != nil {
		return fmt.Errorf("%w: %v", model.ErrMalformedID, err)
	}
	fill, err := ix.fills.GetFill(ctx, payload.FillID)
	if err != nil {
		return fmt.Errorf("load fill %s: %w", payload.FillID, err)
	}

	docs := build(fill)
	if err := ix.sink.Index(ctx, docs); err != nil {
		return fmt.Errorf("%s %s: %w", job.Name, payload.FillID, err)
	}
	ix.logger.Debug("fill indexed",
		zap.String("job", job.Name),
		zap.String("fill_id", payload.FillID.String()),
		zap.Int("documents", len(docs)),
	)
	return nil
}

package ingest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"

	"fillScope/internal/model"
	"fillScope/internal/storage"
)

// LogSource is the chain access the runner needs. *chain.Client satisfies it.
type LogSource interface {
	LatestBlockNumber(ctx context.Context) (uint64, error)
	FilterLogs(ctx context.Context, fromBlock, toBlock uint64, addresses []common.Address, topic0 []common.Hash) ([]types.Log, error)
}

// RunConfig holds runtime settings for ingestion.
type RunConfig struct {
	FromBlock uint64
	// ToBlock of zero follows the chain head at start.
	ToBlock uint64
	// Addresses restricts logs to these emitters. Empty accepts any emitter.
	Addresses []common.Address
	// Topic0 restricts logs to these event signatures. Empty uses every decodable event.
	Topic0       []common.Hash
	BatchSize    uint64
	MaxRetries   int
	RetryBackoff time.Duration
}

// Runner streams logs in block batches, decodes them and writes Events to a sink.
type Runner struct {
	cfg        RunConfig
	source     LogSource
	decoder    *Decoder
	sink       storage.EventSink
	checkpoint Checkpointer
	logger     *zap.Logger
	retry      retryPolicy
	seen       map[string]struct{}
}

// NewRunner builds a Runner. checkpoint may be nil.
func NewRunner(cfg RunConfig, source LogSource, decoder *Decoder, sink storage.EventSink, checkpoint Checkpointer, logger *zap.Logger) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{
		cfg:        cfg,
		source:     source,
		decoder:    decoder,
		sink:       sink,
		checkpoint: checkpoint,
		logger:     logger,
		retry:      newRetryPolicy(cfg.MaxRetries, cfg.RetryBackoff, logger),
		seen:       make(map[string]struct{}),
	}
}

// Run ingests the configured range, resuming after the checkpoint when there is one.
func (r *Runner) Run(ctx context.Context) error {
	if r.source == nil {
		return fmt.Errorf("log source is nil")
	}
	if r.sink == nil {
		return fmt.Errorf("event sink is nil")
	}
	if r.decoder == nil {
		return fmt.Errorf("decoder is nil")
	}
	if r.cfg.BatchSize == 0 {
		return fmt.Errorf("batch size must be greater than zero")
	}

	topics := r.cfg.Topic0
	if len(topics) == 0 {
		topics = r.decoder.Topics()
	}

	from := r.cfg.FromBlock
	to := r.cfg.ToBlock
	if to == 0 {
		latest, err := r.source.LatestBlockNumber(ctx)
		if err != nil {
			return fmt.Errorf("get latest block: %w", err)
		}
		to = latest
	}

	if r.checkpoint != nil {
		last, ok, err := r.checkpoint.Load(ctx)
		if err != nil {
			return err
		}
		if ok && last >= from {
			from = last + 1
			r.logger.Info("resume from checkpoint", zap.Uint64("last_processed", last), zap.Uint64("from", from))
		}
	}

	if from > to {
		r.logger.Info("nothing to sync", zap.Uint64("from", from), zap.Uint64("to", to))
		return nil
	}

	ranges, err := SplitRange(from, to, r.cfg.BatchSize)
	if err != nil {
		return err
	}

	for _, blockRange := range ranges {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		r.logger.Info("fetch logs", zap.Uint64("from", blockRange.From), zap.Uint64("to", blockRange.To))

		logs, err := r.filterLogsWithRetry(ctx, blockRange.From, blockRange.To, topics)
		if err != nil {
			return fmt.Errorf("filter logs: %w", err)
		}

		events := make([]model.Event, 0, len(logs))
		for _, log := range logs {
			if r.isDuplicate(log) {
				continue
			}
			event, err := r.decodeWithRetry(ctx, log)
			if err != nil {
				return fmt.Errorf("decode log %s:%d: %w", log.TxHash.Hex(), log.Index, err)
			}
			if event != nil {
				events = append(events, *event)
			}
		}

		written, err := r.sink.PutEventBatch(ctx, events)
		if err != nil {
			return fmt.Errorf("store events: %w", err)
		}

		if r.checkpoint != nil {
			if err := r.checkpoint.Save(ctx, blockRange.To); err != nil {
				return err
			}
		}

		r.logger.Info("batch complete",
			zap.Int("logs", len(logs)),
			zap.Int("events", len(events)),
			zap.Int("written", written),
			zap.Uint64("from", blockRange.From),
			zap.Uint64("to", blockRange.To),
		)
	}

	return nil
}

func (r *Runner) filterLogsWithRetry(ctx context.Context, fromBlock, toBlock uint64, topics []common.Hash) ([]types.Log, error) {
	var logs []types.Log
	err := r.retry.do(ctx, "filter logs", []zap.Field{zap.Uint64("from", fromBlock), zap.Uint64("to", toBlock)}, func(ctx context.Context) error {
		var err error
		logs, err = r.source.FilterLogs(ctx, fromBlock, toBlock, r.cfg.Addresses, topics)
		return err
	})
	return logs, err
}

// decodeWithRetry retries failed pool metadata lookups. Undecodable logs are logged and skipped.
func (r *Runner) decodeWithRetry(ctx context.Context, log types.Log) (*model.Event, error) {
	fields := []zap.Field{zap.String("tx_hash", log.TxHash.Hex()), zap.Uint("log_index", log.Index)}
	var event *model.Event
	err := r.retry.do(ctx, "decode log", fields, func(ctx context.Context) error {
		var err error
		event, err = r.decoder.Decode(ctx, log)
		return err
	})
	if errors.Is(err, ErrUndecodable) {
		r.logger.Warn("skipping undecodable log", append(fields, zap.Error(err))...)
		return nil, nil
	}
	return event, err
}

func (r *Runner) isDuplicate(log types.Log) bool {
	id := fmt.Sprintf("%d:%s:%d", log.BlockNumber, log.TxHash.Hex(), log.Index)
	if _, ok := r.seen[id]; ok {
		return true
	}
	r.seen[id] = struct{}{}
	return false
}

package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"fillScope/internal/chain"
	"fillScope/internal/config"
	"fillScope/internal/ingest"
	"fillScope/internal/storage"
	"fillScope/internal/storage/postgres"
)

func runIngest(cmd *cobra.Command, _ []string) error {
	cfg, err := config.LoadIngest(configFile(cmd), cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	if cfg.RPCURL == "" {
		return fmt.Errorf("rpc url is required")
	}

	addresses, err := ingest.ParseAddresses(cfg.Addresses)
	if err != nil {
		return err
	}
	ctx, stop := signalContext()
	defer stop()

	chainClient, err := chain.NewClient(ctx, cfg.RPCURL, cfg.RPCTimeout)
	if err != nil {
		return fmt.Errorf("connect rpc: %w", err)
	}
	defer chainClient.Close()

	var (
		sink       storage.EventSink
		checkpoint ingest.Checkpointer
	)
	switch cfg.Sink {
	case config.SinkPostgres:
		store, err := postgres.NewStore(ctx, cfg.PGDSN)
		if err != nil {
			return fmt.Errorf("connect postgres: %w", err)
		}
		defer store.Close()
		sink = store
		if cfg.CheckpointEnabled && cfg.Checkpoint == "" {
			checkpoint = ingest.NewStoreCheckpoint(store, cfg.CheckpointName)
		}
	case config.SinkJSONL:
		if cfg.Out == "" {
			return fmt.Errorf("output path is required")
		}
		sink = storage.NewJsonlSink(cfg.Out)
	default:
		return fmt.Errorf("unknown sink %q", cfg.Sink)
	}
	if cfg.CheckpointEnabled && checkpoint == nil {
		if cfg.Checkpoint == "" {
			return fmt.Errorf("checkpoint path is required for the %s sink", cfg.Sink)
		}
		checkpoint = ingest.NewFileCheckpoint(cfg.Checkpoint)
	}

	decoder, err := ingest.NewDecoder(ingest.NewPoolResolver(chainClient, nil))
	if err != nil {
		return err
	}
	topic0, err := decoder.ResolveTopics(cfg.Topic0)
	if err != nil {
		return err
	}

	runner := ingest.NewRunner(ingest.RunConfig{
		FromBlock:    cfg.FromBlock,
		ToBlock:      cfg.ToBlock,
		Addresses:    addresses,
		Topic0:       topic0,
		BatchSize:    cfg.BatchSize,
		MaxRetries:   cfg.MaxRetries,
		RetryBackoff: cfg.RetryBackoff,
	}, chainClient, decoder, sink, checkpoint, logger)

	logger.Info("ingest start",
		zap.String("rpc", cfg.RPCURL),
		zap.Uint64("from", cfg.FromBlock),
		zap.Uint64("to", cfg.ToBlock),
		zap.Int("addresses", len(addresses)),
		zap.Int("topic0", len(topic0)),
		zap.Uint64("batch_size", cfg.BatchSize),
		zap.String("sink", cfg.Sink),
		zap.String("pg_dsn", redactDSN(cfg.PGDSN)),
		zap.Bool("checkpoint_enabled", cfg.CheckpointEnabled),
	)

	return runner.Run(ctx)
}

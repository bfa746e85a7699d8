package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"fillScope/internal/address"
	"fillScope/internal/assetdata"
	"fillScope/internal/chain"
	"fillScope/internal/config"
	"fillScope/internal/fill"
	"fillScope/internal/model"
	"fillScope/internal/normalize"
	"fillScope/internal/queue"
	"fillScope/internal/search"
	"fillScope/internal/storage/postgres"
	"fillScope/internal/token"
	"fillScope/internal/txfetch"
)

func runWork(cmd *cobra.Command, _ []string) error {
	cfg, err := config.LoadWork(configFile(cmd), cmd.Flags())
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

	ctx, stop := signalContext()
	defer stop()

	chainClient, err := chain.NewClient(ctx, cfg.RPCURL, cfg.RPCTimeout)
	if err != nil {
		return fmt.Errorf("connect rpc: %w", err)
	}
	defer chainClient.Close()

	store, err := postgres.NewStore(ctx, cfg.PGDSN)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer store.Close()

	broker, err := queue.New(ctx, brokerConfig(cfg.Redis))
	if err != nil {
		return fmt.Errorf("connect redis: %w", err)
	}
	defer broker.Close()

	handlers, err := newHandlers(cfg, chainClient, store, broker, logger)
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, q := range cfg.Queues {
		worker := broker.NewWorker(q.Name, queue.WorkerOptions{
			Concurrency:  q.Concurrency,
			RateLimit:    q.RateLimit,
			RateWindow:   cfg.RateWindow,
			MaxAttempts:  cfg.MaxAttempts,
			Backoff:      cfg.Backoff,
			MaxBackoff:   cfg.MaxBackoff,
			LeaseTimeout: cfg.LeaseTimeout,
		}, logger)
		for name, h := range handlers[q.Name] {
			worker.Handle(name, h)
		}

		logger.Info("worker start",
			zap.String("queue", q.Name),
			zap.Int("concurrency", q.Concurrency),
			zap.Int("rate_limit", q.RateLimit),
		)
		g.Go(func() error {
			return worker.Run(gctx)
		})
	}

	if err := g.Wait(); err != nil && ctx.Err() == nil {
		return err
	}
	logger.Info("workers stopped")
	return nil
}

// newHandlers builds the job handlers of every served queue, keyed by queue then job name.
func newHandlers(cfg config.WorkConfig, chainClient *chain.Client, store *postgres.Store, broker *queue.Broker, logger *zap.Logger) (map[string]map[string]queue.Handler, error) {
	codec, err := assetdata.NewCodec()
	if err != nil {
		return nil, err
	}

	dispatcher := fill.NewDispatcher(fill.Deps{
		Store:      store,
		Blocks:     chainClient,
		Tokens:     token.NewProvisioner(store, broker, logger),
		Publisher:  broker,
		Normalizer: normalize.New(codec),
		Logger:     logger,
	})

	handlers := map[string]map[string]queue.Handler{
		model.QueueFillProcessing: {
			model.JobCreateFill: dispatcher,
		},
		model.QueueTransactionProcessing: {
			model.JobFetchTransaction: txfetch.NewFetcher(chainClient, store, logger),
		},
		model.QueueTokenProcessing: {
			model.JobFetchTokenMetadata: token.NewMetadataFetcher(chainClient, store, logger),
		},
		model.QueueAddressProcessing: {
			model.JobResolveAddressType: address.NewResolver(chainClient, store, logger),
		},
	}

	if servesQueue(cfg, model.QueueIndexing) {
		sink, err := search.NewBulkSink(search.Config{
			URLs:     cfg.ESURLs,
			Username: cfg.ESUsername,
			Password: cfg.ESPassword,
		}, logger)
		if err != nil {
			return nil, err
		}
		indexer := search.NewIndexer(store, sink, search.DefaultIndices(), logger)
		handlers[model.QueueIndexing] = make(map[string]queue.Handler)
		for _, name := range search.JobNames() {
			handlers[model.QueueIndexing][name] = indexer
		}
	}

	return handlers, nil
}

func servesQueue(cfg config.WorkConfig, name string) bool {
	for _, q := range cfg.Queues {
		if q.Name == name {
			return true
		}
	}
	return false
}

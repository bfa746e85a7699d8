package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"fillScope/internal/config"
	"fillScope/internal/queue"
	"fillScope/internal/schedule"
	"fillScope/internal/storage/postgres"
)

func runSchedule(cmd *cobra.Command, _ []string) error {
	cfg, err := config.LoadSchedule(configFile(cmd), cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx, stop := signalContext()
	defer stop()

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

	scheduler := schedule.NewScheduler(store, broker, cfg.BatchSize, logger)
	runner := schedule.NewRunner(logger, ctx)
	if _, err := runner.AddBatch("fill-creation", cfg.FillSchedule, scheduler.ScheduleFillCreation); err != nil {
		return err
	}
	if _, err := runner.AddBatch("transaction-fetch", cfg.TransactionSchedule, scheduler.ScheduleTransactionFetch); err != nil {
		return err
	}

	logger.Info("schedulers start",
		zap.String("fill_schedule", cfg.FillSchedule),
		zap.String("transaction_schedule", cfg.TransactionSchedule),
		zap.Int("batch_size", cfg.BatchSize),
	)
	runner.Start()
	<-ctx.Done()
	runner.Stop()
	logger.Info("schedulers stopped")
	return nil
}

func brokerConfig(cfg config.RedisConfig) queue.Config {
	return queue.Config{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
		Prefix:   cfg.Prefix,
	}
}

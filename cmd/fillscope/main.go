package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func main() {
	root := &cobra.Command{
		Use:          "fillscope",
		Short:        "0x exchange fill pipeline",
		SilenceUsage: true,
	}

	root.PersistentFlags().String("config", "", "config file path")
	root.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")

	ingestCmd := &cobra.Command{
		Use:   "ingest",
		Short: "Ingest exchange logs into events",
		RunE:  runIngest,
	}

	ingestCmd.Flags().String("rpc", "", "Ethereum RPC URL")
	ingestCmd.Flags().Duration("rpc-timeout", 10*time.Second, "per-call RPC timeout")
	ingestCmd.Flags().Uint64("from", 0, "start block (inclusive)")
	ingestCmd.Flags().Uint64("to", 0, "end block (inclusive), 0 means latest")
	ingestCmd.Flags().StringSlice("address", nil, "emitter addresses (comma-separated), empty accepts any")
	ingestCmd.Flags().StringSlice("topic0", nil, "topic0 hashes or event types (comma-separated), empty means every decodable event")
	ingestCmd.Flags().Uint64("batch-size", 2000, "blocks per batch")
	ingestCmd.Flags().String("sink", "postgres", "event sink (postgres, jsonl)")
	ingestCmd.Flags().String("pg-dsn", "", "Postgres DSN")
	ingestCmd.Flags().String("out", "./data/events.jsonl", "output JSONL path for the jsonl sink")
	ingestCmd.Flags().String("checkpoint", "", "checkpoint file path, empty stores it in Postgres")
	ingestCmd.Flags().String("checkpoint-name", "ingest", "checkpoint name in Postgres")
	ingestCmd.Flags().Bool("checkpoint-enabled", true, "enable checkpointing")
	ingestCmd.Flags().Int("max-retries", 5, "maximum retry attempts")
	ingestCmd.Flags().Duration("retry-backoff", 500*time.Millisecond, "initial retry backoff")

	root.AddCommand(ingestCmd)

	scheduleCmd := &cobra.Command{
		Use:   "schedule",
		Short: "Run the batch schedulers",
		RunE:  runSchedule,
	}

	scheduleCmd.Flags().String("pg-dsn", "", "Postgres DSN")
	addRedisFlags(scheduleCmd)
	scheduleCmd.Flags().Int("batch-size", 500, "events per scheduler run")
	scheduleCmd.Flags().String("fill-schedule", "@every 10s", "cron spec of the fill-creation scheduler")
	scheduleCmd.Flags().String("transaction-schedule", "@every 10s", "cron spec of the transaction-fetch scheduler")

	root.AddCommand(scheduleCmd)

	workCmd := &cobra.Command{
		Use:   "work",
		Short: "Run queue workers",
		RunE:  runWork,
	}

	workCmd.Flags().String("rpc", "", "Ethereum RPC URL")
	workCmd.Flags().Duration("rpc-timeout", 10*time.Second, "per-call RPC timeout")
	workCmd.Flags().String("pg-dsn", "", "Postgres DSN")
	addRedisFlags(workCmd)
	workCmd.Flags().StringSlice("es-url", []string{"http://localhost:9200"}, "Elasticsearch URLs")
	workCmd.Flags().String("es-username", "", "Elasticsearch username")
	workCmd.Flags().String("es-password", "", "Elasticsearch password")
	workCmd.Flags().StringSlice("queues", nil, "queues to serve (comma-separated), empty serves all")
	workCmd.Flags().Int("concurrency", 4, "jobs in flight per queue")
	workCmd.Flags().StringSlice("queue-concurrency", nil, "per-queue concurrency (queue=n, comma-separated)")
	workCmd.Flags().Int("rate-limit", 0, "jobs per rate window per queue, 0 disables")
	workCmd.Flags().StringSlice("queue-rate-limit", nil, "per-queue rate limit (queue=n, comma-separated)")
	workCmd.Flags().Duration("rate-window", time.Second, "rate limit window")
	workCmd.Flags().Int("max-attempts", 25, "attempts before a job is failed")
	workCmd.Flags().Duration("backoff", time.Second, "initial retry backoff")
	workCmd.Flags().Duration("max-backoff", time.Hour, "retry backoff ceiling")
	workCmd.Flags().Duration("lease-timeout", 30*time.Second, "how long a claimed job may go without a heartbeat before it is redelivered")

	root.AddCommand(workCmd)

	migrateCmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations",
		RunE:  runMigrate,
	}

	migrateCmd.Flags().String("pg-dsn", "", "Postgres DSN")

	root.AddCommand(migrateCmd)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func addRedisFlags(cmd *cobra.Command) {
	cmd.Flags().String("redis-addr", "localhost:6379", "Redis address")
	cmd.Flags().String("redis-password", "", "Redis password")
	cmd.Flags().Int("redis-db", 0, "Redis database")
	cmd.Flags().String("redis-prefix", "fillscope", "Redis key prefix")
}

func configFile(cmd *cobra.Command) string {
	cfgFile, _ := cmd.Flags().GetString("config")
	return cfgFile
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func newLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevel()
	if err := cfg.Level.UnmarshalText([]byte(level)); err != nil {
		return nil, err
	}

	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	return cfg.Build()
}

func redactDSN(dsn string) string {
	if dsn == "" {
		return dsn
	}
	return "***"
}

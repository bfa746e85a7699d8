package config

import (
	"time"

	"github.com/spf13/pflag"
)

// Sink kinds for the ingest command.
const (
	SinkPostgres = "postgres"
	SinkJSONL    = "jsonl"
)

// IngestConfig holds configuration for the ingest command.
type IngestConfig struct {
	RPCURL            string
	RPCTimeout        time.Duration
	FromBlock         uint64
	ToBlock           uint64
	Addresses         []string
	Topic0            []string
	BatchSize         uint64
	Sink              string
	PGDSN             string
	Out               string
	Checkpoint        string
	CheckpointName    string
	CheckpointEnabled bool
	MaxRetries        int
	RetryBackoff      time.Duration
	LogLevel          string
}

// LoadIngest merges config file, environment variables, and flags into IngestConfig.
func LoadIngest(cfgFile string, flags *pflag.FlagSet) (IngestConfig, error) {
	v, err := load(cfgFile, flags, map[string]interface{}{
		"rpc-timeout":        10 * time.Second,
		"batch-size":         uint64(2000),
		"sink":               SinkPostgres,
		"out":                "./data/events.jsonl",
		"checkpoint-name":    "ingest",
		"checkpoint-enabled": true,
		"max-retries":        5,
		"retry-backoff":      500 * time.Millisecond,
	})
	if err != nil {
		return IngestConfig{}, err
	}

	return IngestConfig{
		RPCURL:            v.GetString("rpc"),
		RPCTimeout:        durationOr(v, "rpc-timeout", 10*time.Second),
		FromBlock:         v.GetUint64("from"),
		ToBlock:           v.GetUint64("to"),
		Addresses:         getStringSlice(v, "address"),
		Topic0:            getStringSlice(v, "topic0"),
		BatchSize:         v.GetUint64("batch-size"),
		Sink:              v.GetString("sink"),
		PGDSN:             v.GetString("pg-dsn"),
		Out:               v.GetString("out"),
		Checkpoint:        v.GetString("checkpoint"),
		CheckpointName:    v.GetString("checkpoint-name"),
		CheckpointEnabled: v.GetBool("checkpoint-enabled"),
		MaxRetries:        v.GetInt("max-retries"),
		RetryBackoff:      v.GetDuration("retry-backoff"),
		LogLevel:          v.GetString("log-level"),
	}, nil
}

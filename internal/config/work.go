package config

import (
	"fmt"
	"time"

	"github.com/spf13/pflag"

	"fillScope/internal/model"
)

// QueueConfig is the worker tuning of one queue.
type QueueConfig struct {
	Name        string
	Concurrency int
	RateLimit   int
}

// WorkConfig holds configuration for the work command.
type WorkConfig struct {
	RPCURL       string
	RPCTimeout   time.Duration
	PGDSN        string
	Redis        RedisConfig
	ESURLs       []string
	ESUsername   string
	ESPassword   string
	Queues       []QueueConfig
	RateWindow   time.Duration
	MaxAttempts  int
	Backoff      time.Duration
	MaxBackoff   time.Duration
	LeaseTimeout time.Duration
	LogLevel     string
}

// WorkerQueues are the queues this repo serves. Pricing jobs are left to the price converter.
func WorkerQueues() []string {
	return []string{
		model.QueueFillProcessing,
		model.QueueTransactionProcessing,
		model.QueueTokenProcessing,
		model.QueueAddressProcessing,
		model.QueueIndexing,
	}
}

// LoadWork merges config file, environment variables, and flags into WorkConfig.
// queue-concurrency and queue-rate-limit override concurrency and rate-limit per queue.
func LoadWork(cfgFile string, flags *pflag.FlagSet) (WorkConfig, error) {
	v, err := load(cfgFile, flags, redisDefaults(map[string]interface{}{
		"rpc-timeout":   10 * time.Second,
		"es-url":        []string{"http://localhost:9200"},
		"concurrency":   4,
		"rate-limit":    0,
		"rate-window":   time.Second,
		"max-attempts":  25,
		"backoff":       time.Second,
		"max-backoff":   time.Hour,
		"lease-timeout": 30 * time.Second,
	}))
	if err != nil {
		return WorkConfig{}, err
	}

	concurrency, err := getIntMap(v, "queue-concurrency")
	if err != nil {
		return WorkConfig{}, err
	}
	rateLimits, err := getIntMap(v, "queue-rate-limit")
	if err != nil {
		return WorkConfig{}, err
	}

	names := getStringSlice(v, "queues")
	if len(names) == 0 {
		names = WorkerQueues()
	}
	known := make(map[string]bool)
	for _, name := range WorkerQueues() {
		known[name] = true
	}

	queues := make([]QueueConfig, 0, len(names))
	for _, name := range names {
		if !known[name] {
			return WorkConfig{}, fmt.Errorf("unknown queue %q", name)
		}
		q := QueueConfig{
			Name:        name,
			Concurrency: v.GetInt("concurrency"),
			RateLimit:   v.GetInt("rate-limit"),
		}
		if n, ok := concurrency[name]; ok {
			q.Concurrency = n
		}
		if n, ok := rateLimits[name]; ok {
			q.RateLimit = n
		}
		queues = append(queues, q)
	}

	return WorkConfig{
		RPCURL:       v.GetString("rpc"),
		RPCTimeout:   durationOr(v, "rpc-timeout", 10*time.Second),
		PGDSN:        v.GetString("pg-dsn"),
		Redis:        redisConfig(v),
		ESURLs:       getStringSlice(v, "es-url"),
		ESUsername:   v.GetString("es-username"),
		ESPassword:   v.GetString("es-password"),
		Queues:       queues,
		RateWindow:   v.GetDuration("rate-window"),
		MaxAttempts:  v.GetInt("max-attempts"),
		Backoff:      v.GetDuration("backoff"),
		MaxBackoff:   v.GetDuration("max-backoff"),
		LeaseTimeout: durationOr(v, "lease-timeout", 30*time.Second),
		LogLevel:     v.GetString("log-level"),
	}, nil
}

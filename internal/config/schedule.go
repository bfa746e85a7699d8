package config

import (
	"github.com/spf13/pflag"
)

// ScheduleConfig holds configuration for the schedule command.
type ScheduleConfig struct {
	PGDSN               string
	Redis               RedisConfig
	BatchSize           int
	FillSchedule        string
	TransactionSchedule string
	LogLevel            string
}

// LoadSchedule merges config file, environment variables, and flags into ScheduleConfig.
func LoadSchedule(cfgFile string, flags *pflag.FlagSet) (ScheduleConfig, error) {
	v, err := load(cfgFile, flags, redisDefaults(map[string]interface{}{
		"batch-size":           500,
		"fill-schedule":        "@every 10s",
		"transaction-schedule": "@every 10s",
	}))
	if err != nil {
		return ScheduleConfig{}, err
	}

	return ScheduleConfig{
		PGDSN:               v.GetString("pg-dsn"),
		Redis:               redisConfig(v),
		BatchSize:           v.GetInt("batch-size"),
		FillSchedule:        v.GetString("fill-schedule"),
		TransactionSchedule: v.GetString("transaction-schedule"),
		LogLevel:            v.GetString("log-level"),
	}, nil
}

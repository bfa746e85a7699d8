// Package config loads command settings from flags, FILLSCOPE_* environment variables and an
// optional config file.
package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const envPrefix = "FILLSCOPE"

// RedisConfig addresses the job broker.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	Prefix   string
}

// load layers explicitly set flags over FILLSCOPE_* env, the config file and defaults.
func load(cfgFile string, flags *pflag.FlagSet, defaults map[string]interface{}) (*viper.Viper, error) {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetDefault("log-level", "info")
	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return nil, fmt.Errorf("bind flags: %w", err)
		}
	}

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}
	return v, nil
}

func redisDefaults(defaults map[string]interface{}) map[string]interface{} {
	defaults["redis-addr"] = "localhost:6379"
	defaults["redis-db"] = 0
	defaults["redis-prefix"] = "fillscope"
	return defaults
}

func redisConfig(v *viper.Viper) RedisConfig {
	return RedisConfig{
		Addr:     v.GetString("redis-addr"),
		Password: v.GetString("redis-password"),
		DB:       v.GetInt("redis-db"),
		Prefix:   v.GetString("redis-prefix"),
	}
}

// MigrateConfig holds configuration for the migrate command.
type MigrateConfig struct {
	PGDSN    string
	LogLevel string
}

// LoadMigrate merges config file, environment variables, and flags into MigrateConfig.
func LoadMigrate(cfgFile string, flags *pflag.FlagSet) (MigrateConfig, error) {
	v, err := load(cfgFile, flags, map[string]interface{}{})
	if err != nil {
		return MigrateConfig{}, err
	}
	return MigrateConfig{
		PGDSN:    v.GetString("pg-dsn"),
		LogLevel: v.GetString("log-level"),
	}, nil
}

func getStringSlice(v *viper.Viper, key string) []string {
	if !v.IsSet(key) {
		return nil
	}

	val := v.Get(key)
	switch typed := val.(type) {
	case []string:
		return cleanStrings(typed)
	case string:
		return splitAndClean(typed)
	case []interface{}:
		items := make([]string, 0, len(typed))
		for _, item := range typed {
			items = append(items, fmt.Sprintf("%v", item))
		}
		return cleanStrings(items)
	default:
		return nil
	}
}

func splitAndClean(input string) []string {
	if input == "" {
		return nil
	}
	parts := strings.Split(input, ",")
	return cleanStrings(parts)
}

func cleanStrings(items []string) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		out = append(out, item)
	}
	return out
}

// getIntMap reads "key=n" pairs from a comma-separated string, a string slice or a config file map.
func getIntMap(v *viper.Viper, key string) (map[string]int, error) {
	out := make(map[string]int)
	if !v.IsSet(key) {
		return out, nil
	}

	raw := make(map[string]string)
	switch typed := v.Get(key).(type) {
	case map[string]interface{}:
		for k, val := range typed {
			raw[k] = fmt.Sprintf("%v", val)
		}
	case []string:
		parseStringMap(raw, typed)
	case []interface{}:
		items := make([]string, 0, len(typed))
		for _, item := range typed {
			items = append(items, fmt.Sprintf("%v", item))
		}
		parseStringMap(raw, items)
	case string:
		parseStringMap(raw, strings.Split(typed, ","))
	}

	for k, val := range raw {
		n, err := strconv.Atoi(val)
		if err != nil {
			return nil, fmt.Errorf("%s: invalid value for %s: %q", key, k, val)
		}
		out[k] = n
	}
	return out, nil
}

func parseStringMap(out map[string]string, pairs []string) {
	for _, pair := range pairs {
		parts := strings.SplitN(pair, "=", 2)
		if len(parts) != 2 {
			continue
		}
		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])
		if key == "" || value == "" {
			continue
		}
		out[key] = value
	}
}

// durationOr returns the duration at key, or fallback when it is unset or not positive.
func durationOr(v *viper.Viper, key string, fallback time.Duration) time.Duration {
	if d := v.GetDuration(key); d > 0 {
		return d
	}
	return fallback
}

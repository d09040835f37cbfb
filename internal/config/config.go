package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Server   ServerConfig
	Feeds    FeedsConfig
	Fetch    FetchConfig
	Cache    CacheConfig
	Fallback FallbackConfig
}

type ServerConfig struct {
	Port           int
	HandlerTimeout time.Duration
	LogLevel       slog.Level
}

type FeedsConfig struct {
	File         string
	TTL          time.Duration
	StreamLimit  int
	WarmInterval time.Duration
}

type FetchConfig struct {
	Timeout         time.Duration
	MaxParallel     int
	UserAgent       string
	RetryMax        int
	RetryBaseDelay  time.Duration
	RetryMultiplier float64
}

type CacheConfig struct {
	EdgeEnabled bool
	EdgeTTL     time.Duration
	EdgeSize    int
	DatasetTTL  time.Duration
}

type FallbackConfig struct {
	Backend              string
	DSN                  string
	TTL                  time.Duration
	FirestoreProject     string
	FirestoreCredentials string
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	level, err := parseLevel(GetEnv("LOG_LEVEL", "info").(string))
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Server: ServerConfig{
			Port:           GetEnv("PORT", 8080).(int),
			HandlerTimeout: GetEnv("HANDLER_TIMEOUT", 30*time.Second).(time.Duration),
			LogLevel:       level,
		},
		Feeds: FeedsConfig{
			File:         GetEnv("FEEDS_FILE", "").(string),
			TTL:          GetEnv("FEED_TTL", 5*time.Minute).(time.Duration),
			StreamLimit:  GetEnv("STREAM_LIMIT", 400).(int),
			WarmInterval: GetEnv("WARM_INTERVAL", time.Duration(0)).(time.Duration),
		},
		Fetch: FetchConfig{
			Timeout:         GetEnv("FETCH_TIMEOUT", 8*time.Second).(time.Duration),
			MaxParallel:     GetEnv("FETCH_MAX_PARALLEL", 16).(int),
			UserAgent:       GetEnv("FETCH_USER_AGENT", "").(string),
			RetryMax:        GetEnv("RETRY_MAX", 1).(int),
			RetryBaseDelay:  GetEnv("RETRY_BASE_DELAY", 500*time.Millisecond).(time.Duration),
			RetryMultiplier: GetEnv("RETRY_MULTIPLIER", 2.0).(float64),
		},
		Cache: CacheConfig{
			EdgeEnabled: GetEnv("EDGE_CACHE_ENABLED", true).(bool),
			EdgeTTL:     GetEnv("EDGE_CACHE_TTL", 30*time.Second).(time.Duration),
			EdgeSize:    GetEnv("EDGE_CACHE_SIZE", 256).(int),
			DatasetTTL:  GetEnv("DATASET_TTL", 10*time.Minute).(time.Duration),
		},
		Fallback: FallbackConfig{
			Backend:              strings.ToLower(GetEnv("FALLBACK_BACKEND", "memory").(string)),
			DSN:                  GetEnv("FALLBACK_DSN", "").(string),
			TTL:                  GetEnv("FALLBACK_TTL", 7*24*time.Hour).(time.Duration),
			FirestoreProject:     GetEnv("FIRESTORE_PROJECT", "").(string),
			FirestoreCredentials: GetEnv("FIRESTORE_CREDENTIALS", "").(string),
		},
	}

	if cfg.Fetch.RetryMultiplier < 1 {
		return nil, fmt.Errorf("invalid RETRY_MULTIPLIER: must be >= 1")
	}
	if cfg.Fetch.RetryMax < 0 {
		return nil, fmt.Errorf("invalid RETRY_MAX: must not be negative")
	}
	if cfg.Feeds.StreamLimit <= 0 {
		return nil, fmt.Errorf("invalid STREAM_LIMIT: must be positive")
	}
	switch cfg.Fallback.Backend {
	case "memory", "sqlite", "postgres", "firestore":
	default:
		return nil, fmt.Errorf("invalid FALLBACK_BACKEND %q", cfg.Fallback.Backend)
	}

	return cfg, nil
}

func parseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("invalid LOG_LEVEL %q", s)
	}
	return level, nil
}

func GetEnv(key string, defaultValue any) any {
	value, exists := os.LookupEnv(key)
	if !exists {
		return defaultValue
	}

	switch def := defaultValue.(type) {
	case string:
		return value
	case int:
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
		return def
	case float64:
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
		return def
	case bool:
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
		return def
	case time.Duration:
		if durationValue, err := time.ParseDuration(value); err == nil {
			return durationValue
		}
		return def
	default:
		panic(fmt.Sprintf("unsupported type %T", defaultValue))
	}
}

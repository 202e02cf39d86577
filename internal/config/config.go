package config

import (
	"fmt"
	"slices"
	"time"

	pkgconfig "github.com/utafrali/marketsearch/pkg/config"
	"github.com/utafrali/marketsearch/pkg/database"
)

// Search engine backends.
const (
	EngineMeilisearch   = "meilisearch"
	EngineElasticsearch = "elasticsearch"
	EngineMemory        = "memory"
)

// Config holds all configuration for the search service.
type Config struct {
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat   string `env:"LOG_FORMAT" envDefault:"json"`

	// HTTP server
	HTTPPort          int           `env:"SEARCH_HTTP_PORT" envDefault:"8010"`
	RequestTimeout    time.Duration `env:"HTTP_REQUEST_TIMEOUT" envDefault:"30s"`
	SearchCacheMaxAge int           `env:"SEARCH_CACHE_MAX_AGE" envDefault:"30"`

	// Search engine selection (meilisearch, elasticsearch or memory)
	SearchEngine string `env:"SEARCH_ENGINE" envDefault:"meilisearch"`

	// Meilisearch
	MeilisearchHost          string `env:"MEILISEARCH_HOST" envDefault:"http://localhost:7700"`
	MeilisearchAPIKey        string `env:"MEILISEARCH_API_KEY" envDefault:""`
	MeilisearchEnsureIndices bool   `env:"MEILISEARCH_ENSURE_INDICES" envDefault:"true"`

	// Elasticsearch
	ElasticsearchURL           string `env:"ELASTICSEARCH_URL" envDefault:"http://localhost:9200"`
	ElasticsearchEnsureIndices bool   `env:"ELASTICSEARCH_ENSURE_INDICES" envDefault:"false"`

	// Index names
	IndexProducts  string `env:"INDEX_PRODUCTS" envDefault:"products"`
	IndexSuppliers string `env:"INDEX_SUPPLIERS" envDefault:"suppliers"`

	// In-memory engine seed file (JSON)
	MemorySeedPath string `env:"MEMORY_SEED_PATH" envDefault:""`

	// Outbound engine client
	EngineHTTPTimeout time.Duration `env:"ENGINE_HTTP_TIMEOUT" envDefault:"5s"`
	EngineMaxRetries  int           `env:"ENGINE_MAX_RETRIES" envDefault:"2"`

	// PostgreSQL source directory. An empty host disables source lookups and
	// every source resolves to the fallback title.
	PostgresHost string `env:"POSTGRES_HOST" envDefault:""`
	PostgresPort int    `env:"POSTGRES_PORT" envDefault:"5432"`
	PostgresUser string `env:"POSTGRES_USER" envDefault:"marketsearch"`
	PostgresPass string `env:"POSTGRES_PASSWORD" envDefault:"marketsearch_secret"`
	PostgresDB   string `env:"POSTGRES_DB" envDefault:"marketsearch"`
	PostgresSSL  string `env:"POSTGRES_SSL_MODE" envDefault:"disable"`

	// Database pool
	DBMaxConns            int32 `env:"DB_MAX_CONNS" envDefault:"10"`
	DBMinConns            int32 `env:"DB_MIN_CONNS" envDefault:"2"`
	DBMaxConnLifetimeMins int   `env:"DB_MAX_CONN_LIFETIME_MINUTES" envDefault:"60"`
	DBMaxConnIdleTimeMins int   `env:"DB_MAX_CONN_IDLE_TIME_MINUTES" envDefault:"30"`

	// Slow query logging
	SlowQueryThresholdMs int `env:"LOG_SLOW_QUERY_MS" envDefault:"200"`

	// Redis mode preferences. An empty host keeps preferences in process.
	RedisHost    string        `env:"REDIS_HOST" envDefault:""`
	RedisPort    int           `env:"REDIS_PORT" envDefault:"6379"`
	RedisPass    string        `env:"REDIS_PASSWORD" envDefault:""`
	RedisDB      int           `env:"REDIS_DB" envDefault:"0"`
	ModeStoreTTL time.Duration `env:"MODE_PREFERENCE_TTL" envDefault:"720h"`

	// Kafka diagnostics. No brokers means diagnostics are only logged.
	KafkaBrokers     []string `env:"KAFKA_BROKERS" envSeparator:","`
	DiagnosticsTopic string   `env:"DIAGNOSTICS_TOPIC" envDefault:""`
	KafkaCompression string   `env:"KAFKA_COMPRESSION" envDefault:"snappy"`

	// Search sessions
	Debounce      time.Duration `env:"SEARCH_DEBOUNCE" envDefault:"300ms"`
	QueryTimeout  time.Duration `env:"SEARCH_QUERY_TIMEOUT" envDefault:"10s"`
	SessionTTL    time.Duration `env:"SESSION_IDLE_TTL" envDefault:"30m"`
	SweepInterval time.Duration `env:"SESSION_SWEEP_INTERVAL" envDefault:"1m"`
	SSEHeartbeat  time.Duration `env:"SSE_HEARTBEAT" envDefault:"15s"`

	// OpenTelemetry
	OTELEnabled    bool    `env:"OTEL_ENABLED" envDefault:"false"`
	OTELEndpoint   string  `env:"OTEL_EXPORTER_OTLP_ENDPOINT" envDefault:"localhost:4318"`
	OTELSampleRate float64 `env:"OTEL_SAMPLE_RATE" envDefault:"1.0"`

	// Per-client rate limit on one-shot searches and session creation.
	// A zero RPS disables it.
	RateLimitRPS   float64 `env:"RATE_LIMIT_RPS" envDefault:"20"`
	RateLimitBurst int     `env:"RATE_LIMIT_BURST" envDefault:"40"`

	// CORS
	CORSAllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" envDefault:"*" envSeparator:","`

	// Pprof debug endpoints (IP allowlist in CIDR notation)
	PprofAllowedCIDRs []string `env:"PPROF_ALLOWED_CIDRS" envDefault:"10.0.0.0/8,172.16.0.0/12,192.168.0.0/16,127.0.0.0/8,::1/128" envSeparator:","`
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := pkgconfig.Load("search", cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// PostgresEnabled reports whether a source directory is configured.
func (c *Config) PostgresEnabled() bool { return c.PostgresHost != "" }

// Postgres returns the pool settings for the source directory.
func (c *Config) Postgres(appName string) database.PostgresConfig {
	return database.PostgresConfig{
		Host:            c.PostgresHost,
		Port:            c.PostgresPort,
		User:            c.PostgresUser,
		Password:        c.PostgresPass,
		DBName:          c.PostgresDB,
		SSLMode:         c.PostgresSSL,
		AppName:         appName,
		MaxConns:        c.DBMaxConns,
		MinConns:        c.DBMinConns,
		MaxConnLifetime: time.Duration(c.DBMaxConnLifetimeMins) * time.Minute,
		MaxConnIdleTime: time.Duration(c.DBMaxConnIdleTimeMins) * time.Minute,
	}
}

// RedisEnabled reports whether mode preferences are persisted.
func (c *Config) RedisEnabled() bool { return c.RedisHost != "" }

// KafkaEnabled reports whether diagnostics are published.
func (c *Config) KafkaEnabled() bool { return len(c.KafkaBrokers) > 0 }

// Validate checks configuration invariants.
func (c *Config) Validate() error {
	if c.HTTPPort < 1 || c.HTTPPort > 65535 {
		return fmt.Errorf("invalid HTTP port: %d", c.HTTPPort)
	}
	if c.LogFormat != "json" && c.LogFormat != "text" {
		return fmt.Errorf("LOG_FORMAT must be json or text, got %q", c.LogFormat)
	}
	engines := []string{EngineMeilisearch, EngineElasticsearch, EngineMemory}
	if !slices.Contains(engines, c.SearchEngine) {
		return fmt.Errorf("SEARCH_ENGINE must be one of %v, got %q", engines, c.SearchEngine)
	}
	if c.SearchEngine == EngineMeilisearch && c.MeilisearchHost == "" {
		return fmt.Errorf("MEILISEARCH_HOST is required for the meilisearch engine")
	}
	if c.SearchEngine == EngineElasticsearch && c.ElasticsearchURL == "" {
		return fmt.Errorf("ELASTICSEARCH_URL is required for the elasticsearch engine")
	}
	if c.IndexProducts == "" || c.IndexSuppliers == "" {
		return fmt.Errorf("INDEX_PRODUCTS and INDEX_SUPPLIERS must not be empty")
	}
	if c.PostgresEnabled() && c.PostgresUser == "" {
		return fmt.Errorf("POSTGRES_USER is required")
	}
	if c.RedisEnabled() && (c.RedisPort < 1 || c.RedisPort > 65535) {
		return fmt.Errorf("invalid Redis port: %d", c.RedisPort)
	}
	for name, d := range map[string]time.Duration{
		"SEARCH_DEBOUNCE":      c.Debounce,
		"SEARCH_QUERY_TIMEOUT": c.QueryTimeout,
		"SESSION_IDLE_TTL":     c.SessionTTL,
		"HTTP_REQUEST_TIMEOUT": c.RequestTimeout,
	} {
		if d <= 0 {
			return fmt.Errorf("%s must be positive, got %s", name, d)
		}
	}
	if c.RateLimitRPS < 0 || (c.RateLimitRPS > 0 && c.RateLimitBurst < 1) {
		return fmt.Errorf("invalid rate limit: %g rps, burst %d", c.RateLimitRPS, c.RateLimitBurst)
	}
	if c.OTELSampleRate < 0 || c.OTELSampleRate > 1.0 {
		return fmt.Errorf("OTEL_SAMPLE_RATE must be between 0.0 and 1.0, got %f", c.OTELSampleRate)
	}
	return nil
}

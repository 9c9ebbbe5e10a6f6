// Package config loads and validates crawler configuration via Viper.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. KWCRAWLER_CRAWLER_CONCURRENCY.
const EnvPrefix = "KWCRAWLER"

// Checkpoint backends.
const (
	CheckpointFile  = "file"
	CheckpointRedis = "redis"
	CheckpointGCS   = "gcs"
)

// Sink backends.
const (
	SinkCSV      = "csv"
	SinkPostgres = "postgres"
	SinkSQLite   = "sqlite"
	SinkKafka    = "kafka"
	SinkPubSub   = "pubsub"
	SinkMemory   = "memory"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Logging    LoggingConfig    `mapstructure:"logging"`
	Crawler    CrawlerConfig    `mapstructure:"crawler"`
	Generate   GenerateConfig   `mapstructure:"generate"`
	Filter     FilterConfig     `mapstructure:"filter"`
	Fetcher    FetcherConfig    `mapstructure:"fetcher"`
	Checkpoint CheckpointConfig `mapstructure:"checkpoint"`
	Sink       SinkConfig       `mapstructure:"sink"`
	Server     ServerConfig     `mapstructure:"server"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool   `mapstructure:"development"`
	Level       string `mapstructure:"level"`
}

// CrawlerConfig governs the frontier, budget, and dispatcher.
type CrawlerConfig struct {
	Seeds               []string      `mapstructure:"seeds"`
	SeedsFile           string        `mapstructure:"seeds_file"`
	Concurrency         int           `mapstructure:"concurrency"`
	MaxWords            int           `mapstructure:"max_words"`
	CheckpointInterval  time.Duration `mapstructure:"checkpoint_interval"`
	ResultCategories    []string      `mapstructure:"result_categories"`
	MaxPagesPerCategory int           `mapstructure:"max_pages_per_category"`
	FetchTimeout        time.Duration `mapstructure:"fetch_timeout"`
	InterBatchDelay     time.Duration `mapstructure:"inter_batch_delay"`
	FetchRPS            float64       `mapstructure:"fetch_rps"`
	FetchBurst          int           `mapstructure:"fetch_burst"`
}

// GenerateConfig controls keyword generation from the seed list.
type GenerateConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Suffix  string `mapstructure:"suffix"`
	WithWWW bool   `mapstructure:"with_www"`
}

// FilterConfig holds the classifier content filters.
type FilterConfig struct {
	DomainSuffixes   []string `mapstructure:"domain_suffixes"`
	BannedSubstrings []string `mapstructure:"banned_substrings"`
	BlockedDomains   []string `mapstructure:"blocked_domains"`
}

// FetcherConfig configures the search-engine page fetcher.
type FetcherConfig struct {
	URLTemplate   string `mapstructure:"url_template"`
	UserAgent     string `mapstructure:"user_agent"`
	PageSize      int    `mapstructure:"page_size"`
	RespectRobots bool   `mapstructure:"respect_robots"`
}

// CheckpointConfig selects and configures checkpoint storage.
type CheckpointConfig struct {
	Backend string      `mapstructure:"backend"`
	Dir     string      `mapstructure:"dir"`
	Redis   RedisConfig `mapstructure:"redis"`
	GCS     GCSConfig   `mapstructure:"gcs"`
}

// RedisConfig holds Redis connection settings.
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Prefix   string `mapstructure:"prefix"`
}

// GCSConfig holds bucket settings.
type GCSConfig struct {
	Bucket string `mapstructure:"bucket"`
	Prefix string `mapstructure:"prefix"`
}

// SinkConfig lists the result sinks to fan out to.
type SinkConfig struct {
	Backends []string       `mapstructure:"backends"`
	CSV      CSVConfig      `mapstructure:"csv"`
	Postgres PostgresConfig `mapstructure:"postgres"`
	SQLite   SQLiteConfig   `mapstructure:"sqlite"`
	Kafka    KafkaConfig    `mapstructure:"kafka"`
	PubSub   PubSubConfig   `mapstructure:"pubsub"`
}

// CSVConfig configures the CSV export.
type CSVConfig struct {
	Path string `mapstructure:"path"`
}

// PostgresConfig configures the Postgres sink.
type PostgresConfig struct {
	DSN   string `mapstructure:"dsn"`
	Table string `mapstructure:"table"`
	// MaxConns and MaxConnLifetime override the pgxpool defaults when positive.
	MaxConns        int32         `mapstructure:"max_conns"`
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime"`
}

// SQLiteConfig configures the SQLite sink.
type SQLiteConfig struct {
	Path string `mapstructure:"path"`
}

// KafkaConfig configures the Kafka sink.
type KafkaConfig struct {
	Brokers []string `mapstructure:"brokers"`
	Topic   string   `mapstructure:"topic"`
}

// PubSubConfig holds metadata for publish-subscribe notifications.
type PubSubConfig struct {
	ProjectID string `mapstructure:"project_id"`
	Topic     string `mapstructure:"topic"`
}

// ServerConfig controls the optional status server.
type ServerConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Addr    string `mapstructure:"addr"`
}

// ConfigError reports an invalid configuration value. It is fatal at startup.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid config %s: %s", e.Field, e.Reason)
}

func invalid(field, format string, args ...any) error {
	return &ConfigError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// IsConfigError reports whether err is, or wraps, a *ConfigError.
func IsConfigError(err error) bool {
	var cfgErr *ConfigError
	return errors.As(err, &cfgErr)
}

// Load builds a Config from an optional file plus environment overrides.
func Load(path string) (Config, error) {
	return LoadWith(viper.New(), path)
}

// LoadWith is Load on a caller-provided Viper instance, so CLI flags bound to
// v take part in resolution.
func LoadWith(v *viper.Viper, path string) (Config, error) {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	cfg.normalize()

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("logging.development", true)
	v.SetDefault("logging.level", "")
	v.SetDefault("crawler.seeds", []string{})
	v.SetDefault("crawler.seeds_file", "")
	v.SetDefault("crawler.concurrency", 4)
	v.SetDefault("crawler.max_words", 1000)
	v.SetDefault("crawler.checkpoint_interval", "30s")
	v.SetDefault("crawler.result_categories", []string{"txt"})
	v.SetDefault("crawler.max_pages_per_category", 2)
	v.SetDefault("crawler.fetch_timeout", "15s")
	v.SetDefault("crawler.inter_batch_delay", "2s")
	v.SetDefault("crawler.fetch_rps", 0)
	v.SetDefault("crawler.fetch_burst", 1)
	v.SetDefault("generate.enabled", true)
	v.SetDefault("generate.suffix", ".com.bd")
	v.SetDefault("generate.with_www", true)
	v.SetDefault("filter.domain_suffixes", []string{".com.bd"})
	v.SetDefault("filter.banned_substrings", []string{"google."})
	v.SetDefault("filter.blocked_domains", []string{})
	v.SetDefault("fetcher.url_template",
		"https://www.google.com/search?q={keyword}+filetype:{category}&start={offset}")
	v.SetDefault("fetcher.user_agent",
		"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) "+
			"Chrome/114.0.0.0 Safari/537.36")
	v.SetDefault("fetcher.page_size", 10)
	v.SetDefault("fetcher.respect_robots", false)
	v.SetDefault("checkpoint.backend", CheckpointFile)
	v.SetDefault("checkpoint.dir", "data/checkpoint")
	v.SetDefault("checkpoint.redis.addr", "localhost:6379")
	v.SetDefault("checkpoint.redis.db", 0)
	v.SetDefault("checkpoint.redis.prefix", "kwcrawler:")
	v.SetDefault("checkpoint.gcs.prefix", "checkpoint")
	v.SetDefault("sink.backends", []string{SinkCSV})
	v.SetDefault("sink.csv.path", "data/results.csv")
	v.SetDefault("sink.postgres.table", "keyword_results")
	v.SetDefault("sink.postgres.max_conns", 0)
	v.SetDefault("sink.postgres.max_conn_lifetime", "0s")
	v.SetDefault("sink.sqlite.path", "data/results.db")
	v.SetDefault("server.enabled", false)
	v.SetDefault("server.addr", ":9090")
}

func (c *Config) normalize() {
	c.Crawler.ResultCategories = trimAll(c.Crawler.ResultCategories)
	c.Crawler.Seeds = trimAll(c.Crawler.Seeds)
	c.Checkpoint.Backend = strings.ToLower(strings.TrimSpace(c.Checkpoint.Backend))
	backends := trimAll(c.Sink.Backends)
	for i := range backends {
		backends[i] = strings.ToLower(backends[i])
	}
	c.Sink.Backends = backends
}

// Validate enforces required values and reasonable limits. Every failure is a *ConfigError.
func (c Config) Validate() error {
	if c.Crawler.Concurrency < 1 {
		return invalid("crawler.concurrency", "must be >= 1, got %d", c.Crawler.Concurrency)
	}
	if c.Crawler.MaxWords < 1 {
		return invalid("crawler.max_words", "must be >= 1, got %d", c.Crawler.MaxWords)
	}
	if c.Crawler.CheckpointInterval <= 0 {
		return invalid("crawler.checkpoint_interval", "must be > 0")
	}
	if len(c.Crawler.ResultCategories) == 0 {
		return invalid("crawler.result_categories", "at least one category is required")
	}
	if c.Crawler.MaxPagesPerCategory < 1 {
		return invalid("crawler.max_pages_per_category", "must be >= 1, got %d", c.Crawler.MaxPagesPerCategory)
	}
	if c.Crawler.FetchTimeout <= 0 {
		return invalid("crawler.fetch_timeout", "must be > 0")
	}
	if c.Crawler.InterBatchDelay < 0 {
		return invalid("crawler.inter_batch_delay", "must be >= 0")
	}
	if c.Crawler.FetchRPS < 0 {
		return invalid("crawler.fetch_rps", "must be >= 0")
	}
	if !strings.Contains(c.Fetcher.URLTemplate, "{keyword}") {
		return invalid("fetcher.url_template", "must contain {keyword}")
	}
	if c.Fetcher.PageSize < 1 {
		return invalid("fetcher.page_size", "must be >= 1, got %d", c.Fetcher.PageSize)
	}
	if err := c.Checkpoint.validate(); err != nil {
		return err
	}
	return c.Sink.validate()
}

func (c CheckpointConfig) validate() error {
	switch c.Backend {
	case CheckpointFile:
		if strings.TrimSpace(c.Dir) == "" {
			return invalid("checkpoint.dir", "required for the file backend")
		}
	case CheckpointRedis:
		if strings.TrimSpace(c.Redis.Addr) == "" {
			return invalid("checkpoint.redis.addr", "required for the redis backend")
		}
	case CheckpointGCS:
		if strings.TrimSpace(c.GCS.Bucket) == "" {
			return invalid("checkpoint.gcs.bucket", "required for the gcs backend")
		}
	default:
		return invalid("checkpoint.backend", "unknown backend %q", c.Backend)
	}
	return nil
}

func (s SinkConfig) validate() error {
	if len(s.Backends) == 0 {
		return invalid("sink.backends", "at least one sink is required")
	}
	for _, backend := range s.Backends {
		switch backend {
		case SinkCSV:
			if s.CSV.Path == "" {
				return invalid("sink.csv.path", "required for the csv sink")
			}
		case SinkPostgres:
			if s.Postgres.DSN == "" {
				return invalid("sink.postgres.dsn", "required for the postgres sink")
			}
			if s.Postgres.MaxConns < 0 {
				return invalid("sink.postgres.max_conns", "must be >= 0, got %d", s.Postgres.MaxConns)
			}
			if s.Postgres.MaxConnLifetime < 0 {
				return invalid("sink.postgres.max_conn_lifetime", "must be >= 0, got %s", s.Postgres.MaxConnLifetime)
			}
		case SinkSQLite:
			if s.SQLite.Path == "" {
				return invalid("sink.sqlite.path", "required for the sqlite sink")
			}
		case SinkKafka:
			if len(s.Kafka.Brokers) == 0 || s.Kafka.Topic == "" {
				return invalid("sink.kafka", "brokers and topic are required for the kafka sink")
			}
		case SinkPubSub:
			if s.PubSub.ProjectID == "" || s.PubSub.Topic == "" {
				return invalid("sink.pubsub", "project_id and topic are required for the pubsub sink")
			}
		case SinkMemory:
		default:
			return invalid("sink.backends", "unknown sink %q", backend)
		}
	}
	return nil
}

func trimAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

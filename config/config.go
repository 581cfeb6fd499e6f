// Package config loads service settings from the environment (optionally
// seeded from a .env file) and feed subscriptions from YAML.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/adrg/xdg"
	"github.com/joho/godotenv"
)

const appName = "newsdesk"

// Defaults.
const (
	DefaultAddr             = ":8080"
	DefaultCacheBackend     = "sqlite"
	DefaultCacheTTL         = 7 * 24 * time.Hour
	DefaultSearchMaxResults = 5
	DefaultExternalTimeout  = 10 * time.Second
	DefaultRefreshSchedule  = "*/15 * * * *"
	DefaultSweepSchedule    = "@daily"
	DefaultRequestTopic     = "newsdesk-research-requests"
	DefaultNotifyTopic      = "newsdesk-research-complete"
	DefaultGroupID          = "newsdesk-consumer-group"
	DefaultS3Prefix         = "summaries/"
	DefaultGlobalInterval   = time.Minute
	DefaultPerItemInterval  = time.Hour
)

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type LLMConfig struct {
	Provider string
	APIKey   string
	Model    string
	BaseURL  string
}

type KafkaConfig struct {
	Brokers      []string
	RequestTopic string
	NotifyTopic  string
	GroupID      string
}

// Enabled reports whether brokers are configured.
func (k KafkaConfig) Enabled() bool { return len(k.Brokers) > 0 }

type S3Config struct {
	Bucket       string
	Region       string
	Profile      string
	Prefix       string
	UsePathStyle bool
}

// Enabled reports whether a bucket is configured.
func (s S3Config) Enabled() bool { return s.Bucket != "" }

// NotifyConfig holds the two throttling intervals for completion
// notifications. Zero disables the corresponding limit.
type NotifyConfig struct {
	GlobalInterval  time.Duration
	PerItemInterval time.Duration
}

type Config struct {
	Addr              string
	DataDir           string
	SubscriptionsPath string

	CacheBackend string
	CacheTTL     time.Duration
	Redis        RedisConfig

	LLM              LLMConfig
	SearchEndpoint   string
	SearchMaxResults int
	ExternalTimeout  time.Duration

	RefreshSchedule string
	SweepSchedule   string

	Kafka  KafkaConfig
	S3     S3Config
	Notify NotifyConfig
}

// CachePath is the SQLite cache file inside DataDir.
func (c *Config) CachePath() string {
	return filepath.Join(c.DataDir, "cache.db")
}

// Load reads a .env file if one exists, then builds the configuration from
// the environment.
func Load(envFiles ...string) (*Config, error) {
	if err := godotenv.Load(envFiles...); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to load env file: %w", err)
	}
	return FromEnv()
}

// FromEnv builds the configuration from environment variables alone.
func FromEnv() (*Config, error) {
	cfg := &Config{
		Addr:              getEnvOrDefault("NEWSDESK_ADDR", ""),
		DataDir:           getEnvOrDefault("NEWSDESK_DATA_DIR", ""),
		SubscriptionsPath: getEnvOrDefault("NEWSDESK_SUBSCRIPTIONS", ""),
		CacheBackend:      strings.ToLower(getEnvOrDefault("NEWSDESK_CACHE_BACKEND", "")),
		Redis: RedisConfig{
			Addr:     getEnvOrDefault("REDIS_ADDR", "localhost:6379"),
			Password: os.Getenv("REDIS_PASSWORD"),
		},
		LLM: LLMConfig{
			Provider: strings.ToLower(getEnvOrDefault("LLM_PROVIDER", "")),
			Model:    os.Getenv("LLM_MODEL"),
			BaseURL:  os.Getenv("OPENAI_BASE_URL"),
		},
		SearchEndpoint:  os.Getenv("SEARCH_ENDPOINT"),
		RefreshSchedule: getEnvOrDefault("REFRESH_SCHEDULE", DefaultRefreshSchedule),
		SweepSchedule:   getEnvOrDefault("SWEEP_SCHEDULE", DefaultSweepSchedule),
		Kafka: KafkaConfig{
			Brokers:      splitList(os.Getenv("KAFKA_BOOTSTRAP_SERVERS")),
			RequestTopic: getEnvOrDefault("KAFKA_REQUEST_TOPIC", DefaultRequestTopic),
			NotifyTopic:  getEnvOrDefault("KAFKA_NOTIFY_TOPIC", DefaultNotifyTopic),
			GroupID:      getEnvOrDefault("KAFKA_GROUP_ID", DefaultGroupID),
		},
		S3: S3Config{
			Bucket:  os.Getenv("S3_BUCKET"),
			Region:  os.Getenv("S3_REGION"),
			Profile: os.Getenv("S3_PROFILE"),
			Prefix:  getEnvOrDefault("S3_PREFIX", DefaultS3Prefix),
		},
	}

	var err error
	if cfg.Redis.DB, err = getEnvInt("REDIS_DB", 0); err != nil {
		return nil, err
	}
	if cfg.SearchMaxResults, err = getEnvInt("SEARCH_MAX_RESULTS", 0); err != nil {
		return nil, err
	}
	if cfg.CacheTTL, err = getEnvDuration("NEWSDESK_CACHE_TTL", 0); err != nil {
		return nil, err
	}
	if cfg.ExternalTimeout, err = getEnvDuration("EXTERNAL_TIMEOUT", 0); err != nil {
		return nil, err
	}
	if cfg.S3.UsePathStyle, err = getEnvBool("S3_USE_PATH_STYLE", false); err != nil {
		return nil, err
	}
	if cfg.Notify.GlobalInterval, err = getEnvDuration("NOTIFY_GLOBAL_INTERVAL", DefaultGlobalInterval); err != nil {
		return nil, err
	}
	if cfg.Notify.PerItemInterval, err = getEnvDuration("NOTIFY_PER_ITEM_INTERVAL", DefaultPerItemInterval); err != nil {
		return nil, err
	}

	applyDefaults(cfg)
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Addr == "" {
		cfg.Addr = DefaultAddr
	}
	if cfg.DataDir == "" {
		cfg.DataDir = filepath.Join(xdg.DataHome, appName)
	}
	if cfg.SubscriptionsPath == "" {
		cfg.SubscriptionsPath = DefaultSubscriptionsPath()
	}
	if cfg.CacheBackend == "" {
		cfg.CacheBackend = DefaultCacheBackend
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = DefaultCacheTTL
	}
	if cfg.SearchMaxResults <= 0 {
		cfg.SearchMaxResults = DefaultSearchMaxResults
	}
	if cfg.ExternalTimeout <= 0 {
		cfg.ExternalTimeout = DefaultExternalTimeout
	}
	if cfg.LLM.Provider == "" {
		cfg.LLM.Provider = "cohere"
		if os.Getenv("COHERE_API_KEY") == "" && os.Getenv("OPENAI_API_KEY") != "" {
			cfg.LLM.Provider = "openai"
		}
	}
	if cfg.LLM.APIKey == "" {
		switch cfg.LLM.Provider {
		case "openai":
			cfg.LLM.APIKey = os.Getenv("OPENAI_API_KEY")
		default:
			cfg.LLM.APIKey = os.Getenv("COHERE_API_KEY")
		}
	}
}

func (c *Config) validate() error {
	switch c.CacheBackend {
	case "sqlite", "redis", "memory":
	default:
		return fmt.Errorf("NEWSDESK_CACHE_BACKEND: unknown backend %q", c.CacheBackend)
	}
	if c.Notify.GlobalInterval < 0 || c.Notify.PerItemInterval < 0 {
		return fmt.Errorf("notification intervals cannot be negative")
	}
	return nil
}

// DefaultSubscriptionsPath is the subscriptions file in the user's config
// directory.
func DefaultSubscriptionsPath() string {
	return filepath.Join(xdg.ConfigHome, appName, "subscriptions.yaml")
}

func getEnvOrDefault(key, defaultVal string) string {
	if val := strings.TrimSpace(os.Getenv(key)); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) (int, error) {
	val := strings.TrimSpace(os.Getenv(key))
	if val == "" {
		return defaultVal, nil
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}

func getEnvBool(key string, defaultVal bool) (bool, error) {
	val := strings.TrimSpace(os.Getenv(key))
	if val == "" {
		return defaultVal, nil
	}
	b, err := strconv.ParseBool(val)
	if err != nil {
		return false, fmt.Errorf("%s: %w", key, err)
	}
	return b, nil
}

func getEnvDuration(key string, defaultVal time.Duration) (time.Duration, error) {
	val := strings.TrimSpace(os.Getenv(key))
	if val == "" {
		return defaultVal, nil
	}
	d, err := ParseDuration(val)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}

// ParseDuration accepts time.ParseDuration syntax plus whole days ("7d").
func ParseDuration(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if days, ok := strings.CutSuffix(s, "d"); ok {
		n, err := strconv.Atoi(days)
		if err != nil {
			return 0, fmt.Errorf("invalid duration %q", s)
		}
		return time.Duration(n) * 24 * time.Hour, nil
	}
	return time.ParseDuration(s)
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

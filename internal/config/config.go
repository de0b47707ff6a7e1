package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"
)

// Config represents runtime configuration derived from environment variables.
type Config struct {
	Server    ServerConfig
	Logging   LoggingConfig
	Database  DatabaseConfig
	Scheduler SchedulerConfig
	OpenAI    OpenAIConfig
	WordPress WordPressConfig
	Images    ImagesConfig
	Twitter   TwitterConfig
	Auth      AuthConfig
}

// ServerConfig holds HTTP server runtime parameters.
type ServerConfig struct {
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

// LoggingConfig represents structured logging configuration.
type LoggingConfig struct {
	Level  slog.Level
	Format string
}

// DatabaseConfig holds connection pool parameters.
type DatabaseConfig struct {
	URL                string
	MaxConnections     int
	MaxIdleConnections int
	ConnMaxLifetime    time.Duration
	ConnectTimeout     time.Duration
}

// SchedulerConfig controls the automation control loop.
type SchedulerConfig struct {
	TickInterval    time.Duration // how often due rules are evaluated
	CleanupInterval time.Duration // failure-count cooldown and topic archival
	ReportInterval  time.Duration // read-only execution report
	Workers         int           // bounded concurrency for rule invocations
	QueueSize       int           // pending invocations beyond running workers
	StageTimeout    time.Duration // per-stage collaborator timeout
}

// OpenAIConfig holds the API settings for the generation collaborators.
type OpenAIConfig struct {
	APIKey string
	Model  string
}

// WordPressConfig holds REST API credentials for publishing. BaseURL points at
// the site root; the application password flow is used for auth.
type WordPressConfig struct {
	BaseURL     string
	Username    string
	AppPassword string
}

// ImagesConfig holds the stock image provider settings.
type ImagesConfig struct {
	PexelsAPIKey string
}

// TwitterConfig holds OAuth 1.0a credentials for social promotion.
type TwitterConfig struct {
	APIKey            string
	APISecret         string
	AccessToken       string
	AccessTokenSecret string
}

// Enabled reports whether all credentials required for posting are present.
func (c TwitterConfig) Enabled() bool {
	return c.APIKey != "" && c.APISecret != "" && c.AccessToken != "" && c.AccessTokenSecret != ""
}

// AuthConfig holds JWT signing parameters for the management API. Logins are
// verified against AdminPasswordHash; the plaintext AdminPassword is only a
// development convenience that main hashes at startup when no hash is set.
type AuthConfig struct {
	JWTSecret         string
	TokenDuration     time.Duration
	AdminUsername     string
	AdminPassword     string
	AdminPasswordHash string
}

const (
	defaultPort            = "8080"
	defaultReadTimeout     = 30 * time.Second
	defaultWriteTimeout    = 30 * time.Second
	defaultShutdownTimeout = 5 * time.Second

	defaultLogFormat = "json"

	defaultTickInterval    = 15 * time.Minute
	defaultCleanupInterval = 1 * time.Hour
	defaultReportInterval  = 24 * time.Hour
	defaultWorkers         = 3
	defaultQueueSize       = 16
	defaultStageTimeout    = 5 * time.Minute

	defaultOpenAIModel = "gpt-4o-mini"
)

// Load reads configuration from environment variables, applying defaults when
// values are not provided.
func Load() (Config, error) {
	cfg := Config{
		Server: ServerConfig{
			Port:            getEnv("PORT", getEnv("SERVER_PORT", defaultPort)),
			ReadTimeout:     defaultReadTimeout,
			WriteTimeout:    defaultWriteTimeout,
			ShutdownTimeout: defaultShutdownTimeout,
		},
		Logging: LoggingConfig{
			Level:  slog.LevelInfo,
			Format: defaultLogFormat,
		},
		Database: DatabaseConfig{
			URL:                os.Getenv("DATABASE_URL"),
			MaxConnections:     25,
			MaxIdleConnections: 5,
			ConnMaxLifetime:    5 * time.Minute,
			ConnectTimeout:     10 * time.Second,
		},
		Scheduler: SchedulerConfig{
			TickInterval:    defaultTickInterval,
			CleanupInterval: defaultCleanupInterval,
			ReportInterval:  defaultReportInterval,
			Workers:         defaultWorkers,
			QueueSize:       defaultQueueSize,
			StageTimeout:    defaultStageTimeout,
		},
		OpenAI: OpenAIConfig{
			APIKey: os.Getenv("OPENAI_API_KEY"),
			Model:  getEnv("OPENAI_MODEL", defaultOpenAIModel),
		},
		WordPress: WordPressConfig{
			BaseURL:     os.Getenv("WORDPRESS_BASE_URL"),
			Username:    os.Getenv("WORDPRESS_USERNAME"),
			AppPassword: os.Getenv("WORDPRESS_APP_PASSWORD"),
		},
		Images: ImagesConfig{
			PexelsAPIKey: os.Getenv("PEXELS_API_KEY"),
		},
		Twitter: TwitterConfig{
			APIKey:            os.Getenv("TWITTER_API_KEY"),
			APISecret:         os.Getenv("TWITTER_API_SECRET"),
			AccessToken:       os.Getenv("TWITTER_ACCESS_TOKEN"),
			AccessTokenSecret: os.Getenv("TWITTER_ACCESS_TOKEN_SECRET"),
		},
		Auth: AuthConfig{
			JWTSecret:         os.Getenv("JWT_SECRET"),
			TokenDuration:     24 * time.Hour,
			AdminUsername:     getEnv("ADMIN_USERNAME", "admin"),
			AdminPassword:     os.Getenv("ADMIN_PASSWORD"),
			AdminPasswordHash: os.Getenv("ADMIN_PASSWORD_HASH"),
		},
	}

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		level, err := parseLogLevel(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid LOG_LEVEL: %w", err)
		}
		cfg.Logging.Level = level
	}

	if v := os.Getenv("LOG_FORMAT"); v != "" {
		switch v {
		case "json", "text":
			cfg.Logging.Format = v
		default:
			return Config{}, fmt.Errorf("invalid LOG_FORMAT: must be 'json' or 'text'")
		}
	}

	if v := os.Getenv("SCHEDULER_TICK_MINUTES"); v != "" {
		d, err := parseMinutes(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid SCHEDULER_TICK_MINUTES: %w", err)
		}
		cfg.Scheduler.TickInterval = d
	}

	if v := os.Getenv("SCHEDULER_WORKERS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return Config{}, fmt.Errorf("invalid SCHEDULER_WORKERS: must be a positive integer")
		}
		cfg.Scheduler.Workers = n
	}

	if v := os.Getenv("SCHEDULER_STAGE_TIMEOUT_SECONDS"); v != "" {
		d, err := parseSeconds(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid SCHEDULER_STAGE_TIMEOUT_SECONDS: %w", err)
		}
		cfg.Scheduler.StageTimeout = d
	}

	if v := os.Getenv("SERVER_SHUTDOWN_TIMEOUT_SECONDS"); v != "" {
		d, err := parseSeconds(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid SERVER_SHUTDOWN_TIMEOUT_SECONDS: %w", err)
		}
		cfg.Server.ShutdownTimeout = d
	}

	return cfg, nil
}

func parseSeconds(raw string) (time.Duration, error) {
	seconds, err := strconv.Atoi(raw)
	if err != nil || seconds < 0 {
		return 0, fmt.Errorf("must be a non-negative integer")
	}
	return time.Duration(seconds) * time.Second, nil
}

func parseMinutes(raw string) (time.Duration, error) {
	minutes, err := strconv.Atoi(raw)
	if err != nil || minutes < 1 {
		return 0, fmt.Errorf("must be a positive integer")
	}
	return time.Duration(minutes) * time.Minute, nil
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func parseLogLevel(raw string) (slog.Level, error) {
	switch raw {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("must be one of debug, info, warn, error")
	}
}

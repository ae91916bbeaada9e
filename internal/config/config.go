package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const defaultJWTSecret = "dev-secret"

// Config aggregates runtime configuration for the ledger service.
type Config struct {
	App          AppConfig
	Postgres     PostgresConfig
	Redis        RedisConfig
	Logger       LoggerConfig
	Auth         AuthConfig
	RateLimit    RateLimitConfig
	Notification NotificationConfig
}

// AppConfig controls server level behavior.
type AppConfig struct {
	Name                  string
	Env                   string
	Host                  string
	Port                  string
	Version               string
	RequestTimeoutSeconds int
}

// PostgresConfig holds pool settings. An empty DSN selects the in-memory ledger.
type PostgresConfig struct {
	DSN                string
	MaxConns           int32
	MinConns           int32
	RunMigrations      bool
	ConnMaxIdleSec     int32
	ConnMaxLifeSec     int32
	StatementTimeoutMS int
}

// RedisConfig holds Redis connection values.
type RedisConfig struct {
	Addr               string
	Password           string
	DB                 int
	DialTimeoutSeconds int
}

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level  string
	Format string
}

// AuthConfig defines authentication parameters.
type AuthConfig struct {
	JWTSecret               string
	AccessTokenTTLMinutes   int
	PasswordResetTTLMinutes int
	BcryptCost              int
}

// RateLimitBackend selects where limiter state lives.
type RateLimitBackend string

const (
	RateLimitMemory RateLimitBackend = "memory"
	RateLimitRedis  RateLimitBackend = "redis"
)

// RateLimitConfig bounds repeated password reset requests per utorid.
type RateLimitConfig struct {
	Backend            RateLimitBackend
	ResetWindowSeconds int
}

// NotificationConfig holds stub notification endpoints and the delivery queue shape.
type NotificationConfig struct {
	EmailFrom  string
	WebhookURL string
	QueueSize  int
	Workers    int
}

// Load reads configuration from the environment (and a .env file when present).
// Malformed values are reported together rather than silently replaced.
func Load() (*Config, error) {
	_ = godotenv.Load()

	e := &env{}
	cfg := &Config{
		App: AppConfig{
			Name:                  e.getString("APP_NAME", "points-ledger"),
			Env:                   e.getString("APP_ENV", "development"),
			Host:                  e.getString("APP_HOST", "0.0.0.0"),
			Port:                  e.getString("APP_PORT", "8080"),
			Version:               e.getString("APP_VERSION", "dev"),
			RequestTimeoutSeconds: e.getInt("HTTP_REQUEST_TIMEOUT_SECONDS", 30),
		},
		Postgres: PostgresConfig{
			DSN:                os.Getenv("POSTGRES_DSN"),
			MaxConns:           int32(e.getInt("POSTGRES_MAX_CONNS", 10)),
			MinConns:           int32(e.getInt("POSTGRES_MIN_CONNS", 2)),
			RunMigrations:      e.getBool("POSTGRES_RUN_MIGRATIONS", true),
			ConnMaxIdleSec:     int32(e.getInt("POSTGRES_CONN_MAX_IDLE_SECONDS", 30)),
			ConnMaxLifeSec:     int32(e.getInt("POSTGRES_CONN_MAX_LIFE_SECONDS", 300)),
			StatementTimeoutMS: e.getInt("POSTGRES_STATEMENT_TIMEOUT_MS", 5000),
		},
		Redis: RedisConfig{
			Addr:               e.getString("REDIS_ADDR", "127.0.0.1:6379"),
			Password:           os.Getenv("REDIS_PASSWORD"),
			DB:                 e.getInt("REDIS_DB", 0),
			DialTimeoutSeconds: e.getInt("REDIS_DIAL_TIMEOUT_SECONDS", 5),
		},
		Logger: LoggerConfig{
			Level:  e.getString("LOG_LEVEL", "info"),
			Format: e.getString("LOG_FORMAT", "json"),
		},
		Auth: AuthConfig{
			JWTSecret:               e.getString("AUTH_JWT_SECRET", defaultJWTSecret),
			AccessTokenTTLMinutes:   e.getInt("AUTH_ACCESS_TOKEN_TTL_MINUTES", 60),
			PasswordResetTTLMinutes: e.getInt("AUTH_PASSWORD_RESET_TTL_MINUTES", 7*24*60),
			BcryptCost:              e.getInt("AUTH_BCRYPT_COST", 10),
		},
		RateLimit: RateLimitConfig{
			Backend:            RateLimitBackend(strings.ToLower(e.getString("RATE_LIMIT_BACKEND", string(RateLimitMemory)))),
			ResetWindowSeconds: e.getInt("RATE_LIMIT_RESET_WINDOW_SECONDS", 60),
		},
		Notification: NotificationConfig{
			EmailFrom:  e.getString("NOTIFY_EMAIL_FROM", "noreply@example.com"),
			WebhookURL: e.getString("NOTIFY_WEBHOOK_URL", ""),
			QueueSize:  e.getInt("NOTIFY_QUEUE_SIZE", 256),
			Workers:    e.getInt("NOTIFY_WORKERS", 1),
		},
	}

	if err := errors.Join(append(e.errs, cfg.Validate())...); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks cross-field constraints that parsing alone cannot.
func (c *Config) Validate() error {
	var errs []error
	switch c.RateLimit.Backend {
	case RateLimitMemory, RateLimitRedis:
	default:
		errs = append(errs, fmt.Errorf("invalid RATE_LIMIT_BACKEND: %q", c.RateLimit.Backend))
	}
	if c.Auth.BcryptCost < 4 || c.Auth.BcryptCost > 31 {
		errs = append(errs, fmt.Errorf("AUTH_BCRYPT_COST must be between 4 and 31, got %d", c.Auth.BcryptCost))
	}
	if c.Auth.PasswordResetTTLMinutes <= 0 {
		errs = append(errs, errors.New("AUTH_PASSWORD_RESET_TTL_MINUTES must be positive"))
	}
	if c.App.Env == "production" && c.Auth.JWTSecret == defaultJWTSecret {
		errs = append(errs, errors.New("AUTH_JWT_SECRET must be set in production"))
	}
	if c.Notification.Workers < 1 {
		errs = append(errs, errors.New("NOTIFY_WORKERS must be at least 1"))
	}
	return errors.Join(errs...)
}

// Addr returns the HTTP bind address.
func (a AppConfig) Addr() string {
	return fmt.Sprintf("%s:%s", a.Host, a.Port)
}

// RequestTimeout returns the configured request timeout duration.
func (a AppConfig) RequestTimeout() time.Duration {
	return seconds(a.RequestTimeoutSeconds)
}

// ResetWindow returns the minimum spacing between reset requests for one utorid.
func (r RateLimitConfig) ResetWindow() time.Duration {
	return seconds(r.ResetWindowSeconds)
}

// DialTimeout returns the Redis connect timeout.
func (r RedisConfig) DialTimeout() time.Duration {
	return seconds(r.DialTimeoutSeconds)
}

func seconds(n int) time.Duration {
	if n <= 0 {
		return 0
	}
	return time.Duration(n) * time.Second
}

// env reads typed variables and remembers every value it could not parse.
type env struct {
	errs []error
}

func (e *env) getString(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func (e *env) getInt(key string, fallback int) int {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("invalid %s: %w", key, err))
		return fallback
	}
	return parsed
}

func (e *env) getBool(key string, fallback bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(val)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("invalid %s: %w", key, err))
		return fallback
	}
	return parsed
}

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// EnvProduction is the APP_ENV value that enables production safeguards.
const EnvProduction = "production"

type Config struct {
	ServerPort int    `env:"SERVER_PORT" envDefault:"8080"`
	AppEnv     string `env:"APP_ENV" envDefault:"development"`
	// Debug exposes internal error details in API responses.
	Debug bool `env:"DEBUG" envDefault:"false"`

	Auth      AuthConfig
	RateLimit RateLimitConfig
	Database  DatabaseConfig
	Events    EventsConfig
	Log       LogConfig
}

type AuthConfig struct {
	SecretKey      string `env:"SECRET_KEY"`
	JWTExpiryHours int    `env:"JWT_EXPIRY_HOURS" envDefault:"24"`
}

type RateLimitConfig struct {
	Enabled       bool `env:"RATELIMIT_ENABLED" envDefault:"true"`
	LoginAttempts int  `env:"RATELIMIT_LOGIN_ATTEMPTS" envDefault:"5"`
	// LoginWindowSeconds is the sliding window size in seconds.
	LoginWindowSeconds int           `env:"RATELIMIT_LOGIN_WINDOW" envDefault:"300"`
	CleanupInterval    time.Duration `env:"RATELIMIT_CLEANUP_INTERVAL" envDefault:"1m"`
}

type DatabaseConfig struct {
	Host     string `env:"DB_HOST" envDefault:"localhost"`
	Port     int    `env:"DB_PORT" envDefault:"5432"`
	User     string `env:"DB_USER" envDefault:"marathon"`
	Password string `env:"DB_PASSWORD" envDefault:"password"`
	DBName   string `env:"DB_NAME" envDefault:"marathon_db"`
	UseSSL   bool   `env:"DB_USE_SSL" envDefault:"false"`
	PoolSize int    `env:"DB_POOL_SIZE" envDefault:"30"`
	// PoolTimeoutSeconds bounds connection attempts and the startup ping.
	PoolTimeoutSeconds int `env:"DB_POOL_TIMEOUT" envDefault:"30"`
	MaxRetries         int `env:"DB_MAX_RETRIES" envDefault:"3"`
}

type EventsConfig struct {
	// Backend selects where realtime events go: log, rabbitmq, pubsub or redis.
	Backend   string `env:"EVENTS_BACKEND" envDefault:"log"`
	QueueSize int    `env:"EVENTS_QUEUE_SIZE" envDefault:"256"`
	// TaskTimeout bounds each best-effort background task.
	TaskTimeout time.Duration `env:"EVENTS_TASK_TIMEOUT" envDefault:"5s"`
	RabbitMQ    RabbitMQConfig
	PubSub      PubSubConfig
	Redis       RedisConfig
}

type RabbitMQConfig struct {
	URL             string `env:"RABBITMQ_URL"`
	QueueDurable    bool   `env:"RABBITMQ_QUEUE_DURABLE" envDefault:"true"`
	QueueAutoDelete bool   `env:"RABBITMQ_QUEUE_AUTO_DELETE" envDefault:"false"`
	PrefetchCount   int    `env:"RABBITMQ_PREFETCH_COUNT" envDefault:"0"`
}

type PubSubConfig struct {
	ProjectID          string `env:"PUBSUB_PROJECT_ID"`
	CredentialsFile    string `env:"PUBSUB_CREDENTIALS_FILE"`
	SubscriptionSuffix string `env:"PUBSUB_SUBSCRIPTION_SUFFIX" envDefault:"-sub"`
}

type RedisConfig struct {
	URL string `env:"REDIS_URL"`
}

type LogConfig struct {
	Format string `env:"LOG_FORMAT" envDefault:"json"`
	Level  string `env:"LOG_LEVEL" envDefault:"info"`
}

// LoadConfig reads configuration from the environment. A .env file in the
// working directory is loaded first when ENV=dev.
func LoadConfig() (Config, error) {
	if os.Getenv("ENV") == "dev" {
		_ = godotenv.Load()
	}

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects settings that cannot work at runtime.
func (c Config) Validate() error {
	if c.ServerPort < 0 || c.ServerPort > 65535 {
		return fmt.Errorf("invalid SERVER_PORT %d", c.ServerPort)
	}
	if c.Auth.JWTExpiryHours <= 0 {
		return fmt.Errorf("JWT_EXPIRY_HOURS must be positive, got %d", c.Auth.JWTExpiryHours)
	}
	if c.RateLimit.Enabled {
		if c.RateLimit.LoginAttempts <= 0 {
			return fmt.Errorf("RATELIMIT_LOGIN_ATTEMPTS must be positive, got %d", c.RateLimit.LoginAttempts)
		}
		if c.RateLimit.LoginWindowSeconds <= 0 {
			return fmt.Errorf("RATELIMIT_LOGIN_WINDOW must be positive, got %d", c.RateLimit.LoginWindowSeconds)
		}
	}
	switch strings.ToLower(c.Events.Backend) {
	case "", "log", "rabbitmq", "pubsub", "redis":
	default:
		return fmt.Errorf("unknown EVENTS_BACKEND %q", c.Events.Backend)
	}
	return nil
}

// IsProduction reports whether production safeguards apply.
func (c Config) IsProduction() bool {
	return strings.EqualFold(c.AppEnv, EnvProduction)
}

// TokenTTL returns the session token lifetime.
func (a AuthConfig) TokenTTL() time.Duration {
	return time.Duration(a.JWTExpiryHours) * time.Hour
}

// Window returns the sliding window size.
func (r RateLimitConfig) Window() time.Duration {
	return time.Duration(r.LoginWindowSeconds) * time.Second
}

// PoolTimeout returns the connection timeout.
func (d DatabaseConfig) PoolTimeout() time.Duration {
	return time.Duration(d.PoolTimeoutSeconds) * time.Second
}

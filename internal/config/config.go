// Package config loads the service configuration from an optional YAML file
// and environment variables.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// DefaultJWTSecret is only acceptable in the dev environment.
const DefaultJWTSecret = "dev-secret-change-me"

type Config struct {
	Env       string
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Auth      AuthConfig
	Matching  MatchingConfig
	Messaging MessagingConfig
	Signaling SignalingConfig
	Notify    NotifyConfig
	RateLimit RateLimitConfig `mapstructure:"ratelimit"`
	WebRTC    WebRTCConfig    `mapstructure:"webrtc"`
	Telegram  TelegramConfig
	Log       LogConfig
}

type ServerConfig struct {
	Host string
	Port int
}

// Addr returns the listen address for the HTTP server.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

type DatabaseConfig struct {
	Driver          string // postgres, sqlite
	DSN             string
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

type RedisConfig struct {
	Address  string
	Password string
	DB       int
}

// Enabled reports whether a Redis address was configured.
func (r RedisConfig) Enabled() bool {
	return r.Address != ""
}

type AuthConfig struct {
	JWTSecret string        `mapstructure:"jwt_secret"`
	Issuer    string
	TokenTTL  time.Duration `mapstructure:"token_ttl"`
}

type MatchingConfig struct {
	// Lock is "local" (single instance) or "redis" (shared across instances).
	Lock          string
	LockTTL       time.Duration `mapstructure:"lock_ttl"`
	WaitingTTL    time.Duration `mapstructure:"waiting_ttl"`
	SweepInterval time.Duration `mapstructure:"sweep_interval"`
}

type MessagingConfig struct {
	MaxLength int `mapstructure:"max_length"`
}

type SignalingConfig struct {
	// Store is "db" or "redis".
	Store           string
	TTL             time.Duration `mapstructure:"ttl"`
	MaxPerRecipient int64         `mapstructure:"max_per_recipient"`
}

type NotifyConfig struct {
	// Driver is one of none, local, redis, postgres.
	Driver string
}

type RateLimitConfig struct {
	RPS   float64
	Burst int
}

type WebRTCConfig struct {
	ICEServers []ICEServerConfig `mapstructure:"ice_servers"`
}

type ICEServerConfig struct {
	URLs       []string `mapstructure:"urls"`
	Username   string   `mapstructure:"username"`
	Credential string   `mapstructure:"credential"`
}

type TelegramConfig struct {
	Token string
}

type LogConfig struct {
	Level  string
	Pretty bool
}

// Load reads config.yaml from the working directory or ./config and applies
// environment overrides on top of the defaults.
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)
	bindEnv(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("env", "dev")
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("database.driver", "postgres")
	v.SetDefault("database.dsn", "host=localhost user=user password=password dbname=chatroulette port=5432 sslmode=disable")
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.max_open_conns", 20)
	v.SetDefault("database.conn_max_lifetime", "1h")
	v.SetDefault("redis.address", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("auth.jwt_secret", DefaultJWTSecret)
	v.SetDefault("auth.issuer", "chatroulette-service")
	v.SetDefault("auth.token_ttl", "72h")
	v.SetDefault("matching.lock", "local")
	v.SetDefault("matching.lock_ttl", "5s")
	v.SetDefault("matching.waiting_ttl", "0s")
	v.SetDefault("matching.sweep_interval", "1m")
	v.SetDefault("messaging.max_length", 4096)
	v.SetDefault("signaling.store", "db")
	v.SetDefault("signaling.ttl", "2h")
	v.SetDefault("signaling.max_per_recipient", 0)
	v.SetDefault("notify.driver", "local")
	v.SetDefault("ratelimit.rps", 20)
	v.SetDefault("ratelimit.burst", 40)
	v.SetDefault("telegram.token", "")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", false)
}

func bindEnv(v *viper.Viper) {
	_ = v.BindEnv("env", "APP_ENV")
	_ = v.BindEnv("server.port", "PORT")
	_ = v.BindEnv("database.driver", "DB_DRIVER")
	_ = v.BindEnv("database.dsn", "DATABASE_DSN")
	_ = v.BindEnv("redis.address", "REDIS_ADDRESS")
	_ = v.BindEnv("redis.password", "REDIS_PASSWORD")
	_ = v.BindEnv("auth.jwt_secret", "JWT_SECRET")
	_ = v.BindEnv("telegram.token", "TELEGRAM_BOT_TOKEN")
	_ = v.BindEnv("log.level", "LOG_LEVEL")
}

// Validate rejects configurations the server cannot start with.
func Validate(cfg *Config) error {
	if cfg.Server.Port <= 0 {
		return errors.New("server.port must be positive")
	}
	switch cfg.Database.Driver {
	case "postgres", "sqlite":
	default:
		return fmt.Errorf("unsupported database driver: %q", cfg.Database.Driver)
	}
	if cfg.Database.DSN == "" {
		return errors.New("database.dsn is required")
	}
	if cfg.Env != "dev" && cfg.Auth.JWTSecret == DefaultJWTSecret {
		return fmt.Errorf("auth.jwt_secret must be changed in %s", cfg.Env)
	}
	if cfg.Auth.JWTSecret == "" {
		return errors.New("auth.jwt_secret is required")
	}

	needsRedis := false
	switch cfg.Matching.Lock {
	case "local":
	case "redis":
		needsRedis = true
	default:
		return fmt.Errorf("unsupported matching.lock: %q", cfg.Matching.Lock)
	}
	switch cfg.Signaling.Store {
	case "db":
	case "redis":
		needsRedis = true
	default:
		return fmt.Errorf("unsupported signaling.store: %q", cfg.Signaling.Store)
	}
	switch cfg.Notify.Driver {
	case "none", "local":
	case "redis":
		needsRedis = true
	case "postgres":
		if cfg.Database.Driver != "postgres" {
			return errors.New("notify.driver postgres requires database.driver postgres")
		}
	default:
		return fmt.Errorf("unsupported notify.driver: %q", cfg.Notify.Driver)
	}
	if needsRedis && !cfg.Redis.Enabled() {
		return errors.New("redis.address is required by the configured lock, signal store or notifier")
	}
	if cfg.Messaging.MaxLength <= 0 {
		return errors.New("messaging.max_length must be positive")
	}
	if cfg.Signaling.MaxPerRecipient < 0 {
		return errors.New("signaling.max_per_recipient must not be negative")
	}
	return nil
}

package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// Server captures process-level configuration. Values come from the environment.
type Server struct {
	Addr        string `env:"USERS_API_ADDR" envDefault:":8080"`
	Environment string `env:"ENVIRONMENT"    envDefault:"development"`
	LogLevel    string `env:"LOG_LEVEL"      envDefault:"info"`

	Auth     AuthConfig
	Audit    AuditConfig
	Hub      HubConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Kafka    KafkaConfig
}

// AuthConfig configures token signing and the session cookies.
type AuthConfig struct {
	SigningKey        string        `env:"JWT_SIGNING_KEY,required"`
	RefreshSigningKey string        `env:"JWT_REFRESH_SIGNING_KEY"`
	Issuer            string        `env:"JWT_ISSUER"        envDefault:"users-api"`
	AccessTokenTTL    time.Duration `env:"ACCESS_TOKEN_TTL"  envDefault:"15m"`
	RefreshTokenTTL   time.Duration `env:"REFRESH_TOKEN_TTL" envDefault:"168h"`
	SecureCookies     bool          `env:"COOKIE_SECURE"     envDefault:"true"`
}

// AuditConfig configures the durable audit log.
type AuditConfig struct {
	LogPath string `env:"AUDIT_LOG_PATH" envDefault:"logs/audit.log"`
}

// HubConfig sizes the notification hub queues.
type HubConfig struct {
	SubscriberBuffer int    `env:"HUB_SUBSCRIBER_BUFFER" envDefault:"16"`
	MailboxSize      int    `env:"HUB_MAILBOX_SIZE"      envDefault:"256"`
	RelayChannel     string `env:"HUB_RELAY_CHANNEL"     envDefault:"users-api:notifications"`
}

// DatabaseConfig enables the Postgres stores when URL is set.
type DatabaseConfig struct {
	URL             string        `env:"DATABASE_URL"`
	MaxOpenConns    int           `env:"DATABASE_MAX_OPEN_CONNS"    envDefault:"25"`
	MaxIdleConns    int           `env:"DATABASE_MAX_IDLE_CONNS"    envDefault:"5"`
	ConnMaxLifetime time.Duration `env:"DATABASE_CONN_MAX_LIFETIME" envDefault:"5m"`
}

// RedisConfig enables the cross-instance notification relay when URL is set.
type RedisConfig struct {
	URL          string        `env:"REDIS_URL"`
	PoolSize     int           `env:"REDIS_POOL_SIZE"      envDefault:"10"`
	MinIdleConns int           `env:"REDIS_MIN_IDLE_CONNS" envDefault:"2"`
	DialTimeout  time.Duration `env:"REDIS_DIAL_TIMEOUT"   envDefault:"5s"`
	ReadTimeout  time.Duration `env:"REDIS_READ_TIMEOUT"   envDefault:"3s"`
	WriteTimeout time.Duration `env:"REDIS_WRITE_TIMEOUT"  envDefault:"3s"`
}

// KafkaConfig enables the audit event stream when Brokers is set.
type KafkaConfig struct {
	Brokers    string `env:"KAFKA_BROKERS"`
	AuditTopic string `env:"KAFKA_AUDIT_TOPIC" envDefault:"users-api.audit"`
}

// BrokerList splits the comma-separated broker string.
func (k KafkaConfig) BrokerList() []string {
	var out []string
	for _, b := range strings.Split(k.Brokers, ",") {
		if b = strings.TrimSpace(b); b != "" {
			out = append(out, b)
		}
	}
	return out
}

// IsProduction reports whether the process runs in production mode.
func (s Server) IsProduction() bool {
	return s.Environment == "production"
}

// RefreshKey returns the refresh signing key, falling back to the access key.
func (a AuthConfig) RefreshKey() string {
	if a.RefreshSigningKey != "" {
		return a.RefreshSigningKey
	}
	return a.SigningKey
}

// FromEnv builds a Server config from environment variables.
// A missing JWT_SIGNING_KEY is an error so the process refuses to start.
func FromEnv() (Server, error) {
	var cfg Server
	if err := env.Parse(&cfg); err != nil {
		return Server{}, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return Server{}, err
	}
	return cfg, nil
}

func (s Server) validate() error {
	var errs []error
	if strings.TrimSpace(s.Auth.SigningKey) == "" {
		errs = append(errs, errors.New("JWT_SIGNING_KEY must not be blank"))
	}
	if s.Auth.AccessTokenTTL <= 0 {
		errs = append(errs, errors.New("ACCESS_TOKEN_TTL must be positive"))
	}
	if s.Auth.RefreshTokenTTL <= s.Auth.AccessTokenTTL {
		errs = append(errs, errors.New("REFRESH_TOKEN_TTL must exceed ACCESS_TOKEN_TTL"))
	}
	if s.Hub.SubscriberBuffer < 1 || s.Hub.MailboxSize < 1 {
		errs = append(errs, errors.New("hub queue sizes must be positive"))
	}
	if s.IsProduction() && !s.Auth.SecureCookies {
		errs = append(errs, errors.New("COOKIE_SECURE cannot be disabled in production"))
	}
	return errors.Join(errs...)
}

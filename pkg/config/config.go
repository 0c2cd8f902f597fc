package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const (
	// EnvPrefix is passed to envconfig; variable names carry the full prefix.
	EnvPrefix = ""

	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

type Config struct {
	App          AppConfig
	Service      ServiceConfig
	DB           DBConfig
	Redis        RedisConfig
	JWT          JWTConfig
	Settlement   SettlementConfig
	Cron         CronConfig
	FeatureFlags FeatureFlagsConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	if err := cfg.Settlement.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"GATHERZ_APP_ENV" required:"true"`
	Port         string `envconfig:"GATHERZ_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"GATHERZ_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"GATHERZ_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"GATHERZ_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"GATHERZ_DB_DSN"`
	Driver string `envconfig:"GATHERZ_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"GATHERZ_DB_HOST"`
	LegacyPort     int    `envconfig:"GATHERZ_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"GATHERZ_DB_USER"`
	LegacyPassword string `envconfig:"GATHERZ_DB_PASSWORD"`
	LegacyName     string `envconfig:"GATHERZ_DB_NAME"`
	LegacySSLMode  string `envconfig:"GATHERZ_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"GATHERZ_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"GATHERZ_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"GATHERZ_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"GATHERZ_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

func (d *DBConfig) ensureDSN() error {
	if d.DSN != "" {
		return nil
	}
	if d.LegacyHost == "" || d.LegacyUser == "" || d.LegacyName == "" {
		return fmt.Errorf("either GATHERZ_DB_DSN or GATHERZ_DB_HOST/USER/NAME must be set")
	}
	d.DSN = fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		url.QueryEscape(d.LegacyUser),
		url.QueryEscape(d.LegacyPassword),
		d.LegacyHost,
		d.LegacyPort,
		d.LegacyName,
		d.LegacySSLMode,
	)
	return nil
}

type RedisConfig struct {
	URL          string        `envconfig:"GATHERZ_REDIS_URL" required:"true"`
	Address      string        `envconfig:"GATHERZ_REDIS_ADDR"`
	Password     string        `envconfig:"GATHERZ_REDIS_PASSWORD"`
	DB           int           `envconfig:"GATHERZ_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"GATHERZ_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"GATHERZ_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"GATHERZ_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"GATHERZ_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"GATHERZ_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"GATHERZ_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"GATHERZ_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"GATHERZ_JWT_EXPIRATION_MINUTES" required:"true"`
}

// SettlementConfig drives payout computation when an event finishes.
type SettlementConfig struct {
	// CommissionBps is the platform commission in basis points (1/100th of
	// a percent) withheld from organizer payouts.
	CommissionBps int `envconfig:"GATHERZ_SETTLEMENT_COMMISSION_BPS" default:"500"`
	// MaxTransitionRetries bounds transparent retries after an optimistic
	// concurrency conflict before surfacing the error to the caller.
	MaxTransitionRetries int `envconfig:"GATHERZ_MAX_TRANSITION_RETRIES" default:"3"`
}

func (s SettlementConfig) validate() error {
	if s.CommissionBps < 0 || s.CommissionBps > 10000 {
		return fmt.Errorf("GATHERZ_SETTLEMENT_COMMISSION_BPS must be between 0 and 10000")
	}
	if s.MaxTransitionRetries < 1 {
		return fmt.Errorf("GATHERZ_MAX_TRANSITION_RETRIES must be at least 1")
	}
	return nil
}

type CronConfig struct {
	Interval time.Duration `envconfig:"GATHERZ_CRON_INTERVAL" default:"1h"`
	LockTTL  time.Duration `envconfig:"GATHERZ_CRON_LOCK_TTL" default:"55m"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"GATHERZ_FEATURE_AUTO_MIGRATE" default:"false"`
}

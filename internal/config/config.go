package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

type Config struct {
	Environment string `toml:"environment"`
	Host        string `toml:"host"`
	Port        int    `toml:"port"`
	// logging
	LogLevel      string `toml:"log_level"`
	LogsPath      string `toml:"logs_path"`
	LogToStdout   bool   `toml:"log_to_stdout"`
	LogFormatJSON bool   `toml:"log_format_json"`
	SentryEnabled bool   `toml:"sentry_enabled"`
	// metrics
	PrometheusMetricsHost string `toml:"prometheus_metrics_host"`
	PrometheusMetricsPort string `toml:"prometheus_metrics_port"`
	// postgres
	PostgresHost    string `toml:"postgres_host"`
	PostgresPort    string `toml:"postgres_port"`
	PostgresDBName  string `toml:"postgres_db_name"`
	PostgresUser    string `toml:"postgres_user"`
	PostgresMigrate bool   `toml:"postgres_migrate"`
	// redis
	RedisHost string `toml:"redis_host"`
	RedisPort string `toml:"redis_port"`
	// auth
	SessionTTL                 string   `toml:"session_ttl"`
	JWTIssuer                  string   `toml:"jwt_issuer"`
	SecureCookies              bool     `toml:"secure_cookies"`
	AuthRateLimitAllowedPerMin int      `toml:"auth_rate_limit_allowed_per_min"`
	AllowedOrigins             []string `toml:"allowed_origins"`
	// emails
	FrontendURL string `toml:"frontend_url"`
	AppName     string `toml:"app_name"`
	SMTPHost    string `toml:"smtp_host"`
	SMTPPort    int    `toml:"smtp_port"`
	SMTPUser    string `toml:"smtp_user"`
	EmailFrom   string `toml:"email_from"`
	// kafka
	KafkaBrokers       []string `toml:"kafka_brokers"`
	KafkaWorkoutsTopic string   `toml:"kafka_workouts_topic"`
	// jobs
	JobsEnabled      bool   `toml:"jobs_enabled"`
	DailyResetAt     string `toml:"daily_reset_at"`
	ReminderInterval string `toml:"reminder_interval"`
}

type Toml struct {
	Development *Config
	Production  *Config
}

func (t *Toml) Get(env string) (*Config, error) {
	var cfg *Config
	switch strings.ToLower(env) {
	case "dev", "development":
		cfg = t.Development
	case "prod", "production":
		cfg = t.Production
	default:
		return nil, fmt.Errorf("unknown env: %s", env)
	}
	if cfg == nil {
		return nil, fmt.Errorf("no config section for env: %s", env)
	}
	return cfg, nil
}

// Load reads the TOML file at path and returns the section for the given env,
// with defaults applied to the values left empty.
func Load(env, path string) (*Config, error) {
	var t Toml
	if _, err := toml.DecodeFile(path, &t); err != nil {
		return nil, fmt.Errorf("decode toml config [%s]: %w", path, err)
	}

	cfg, err := t.Get(env)
	if err != nil {
		return nil, err
	}
	if cfg.Environment == "" {
		cfg.Environment = strings.ToLower(env)
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Host == "" {
		c.Host = "localhost"
	}
	if c.Port == 0 {
		c.Port = 5000
	}
	if c.PostgresPort == "" {
		c.PostgresPort = "5432"
	}
	if c.PostgresUser == "" {
		c.PostgresUser = "postgres"
	}
	if c.RedisPort == "" {
		c.RedisPort = "6379"
	}
	if c.SessionTTL == "" {
		c.SessionTTL = "24h"
	}
	if c.JWTIssuer == "" {
		c.JWTIssuer = "fittrack"
	}
	if c.AuthRateLimitAllowedPerMin == 0 {
		c.AuthRateLimitAllowedPerMin = 15
	}
	if c.AppName == "" {
		c.AppName = "FitTrack"
	}
	if c.KafkaWorkoutsTopic == "" {
		c.KafkaWorkoutsTopic = "fittrack.workouts"
	}
	if c.DailyResetAt == "" {
		c.DailyResetAt = "00:00"
	}
	if c.ReminderInterval == "" {
		c.ReminderInterval = "1h"
	}
}

func (c *Config) Validate() error {
	if c.PostgresHost == "" || c.PostgresDBName == "" {
		return errors.New("postgres host and db name must be set")
	}
	if c.RedisHost == "" {
		return errors.New("redis host must be set")
	}
	if _, err := c.SessionTTLDuration(); err != nil {
		return err
	}
	if _, err := c.ReminderIntervalDuration(); err != nil {
		return err
	}
	if _, _, err := c.DailyResetClock(); err != nil {
		return err
	}
	return nil
}

func (c *Config) SessionTTLDuration() (time.Duration, error) {
	ttl, err := time.ParseDuration(c.SessionTTL)
	if err != nil {
		return 0, fmt.Errorf("parse session ttl: %w", err)
	}
	if ttl <= 0 {
		return 0, errors.New("session ttl must be positive")
	}
	return ttl, nil
}

func (c *Config) ReminderIntervalDuration() (time.Duration, error) {
	interval, err := time.ParseDuration(c.ReminderInterval)
	if err != nil {
		return 0, fmt.Errorf("parse reminder interval: %w", err)
	}
	if interval < time.Minute {
		return 0, errors.New("reminder interval must be at least one minute")
	}
	return interval, nil
}

// DailyResetClock parses DailyResetAt (HH:MM) into hour and minute.
func (c *Config) DailyResetClock() (hour, minute int, err error) {
	t, err := time.Parse("15:04", c.DailyResetAt)
	if err != nil {
		return 0, 0, fmt.Errorf("parse daily reset time [%s]: %w", c.DailyResetAt, err)
	}
	return t.Hour(), t.Minute(), nil
}

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	// HTTP server
	Server ServerConfig `mapstructure:"server"`

	// PostgreSQL
	Postgres PostgresConfig `mapstructure:"postgres"`

	// Redis
	Redis RedisConfig `mapstructure:"redis"`

	// NATS
	NATS NATSConfig `mapstructure:"nats"`

	// Prometheus
	Prometheus PrometheusConfig `mapstructure:"prometheus"`

	// Code spaces & leases
	Codes CodesConfig `mapstructure:"codes"`
}

type ServerConfig struct {
	Addr          string `mapstructure:"addr"`
	Domain        string `mapstructure:"domain"`
	SessionSecret string `mapstructure:"session_secret"`
}

type PostgresConfig struct {
	Host     string `mapstructure:"host"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Database string `mapstructure:"database"`
	Port     int    `mapstructure:"port"`
	SSLMode  string `mapstructure:"sslmode"`
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type NATSConfig struct {
	Host        string `mapstructure:"host"`
	Port        int    `mapstructure:"port"`
	User        string `mapstructure:"user"`
	Password    string `mapstructure:"password"`
	MonitorPort int    `mapstructure:"monitor_port"`
}

type PrometheusConfig struct {
	Port           int    `mapstructure:"port"`
	Retention      string `mapstructure:"retention"`
	ScrapeInterval string `mapstructure:"scrape_interval"`
	Target         string `mapstructure:"target"`
}

// CodesConfig holds the lease policy knobs. The allocation algorithms are
// fixed; only the TTLs and the janitor cadence are product policy.
type CodesConfig struct {
	UltraTTL          time.Duration `mapstructure:"ultra_ttl"`
	DigitTTL          time.Duration `mapstructure:"digit_ttl"`
	UsernameRetention time.Duration `mapstructure:"username_retention"`
	JanitorInterval   time.Duration `mapstructure:"janitor_interval"`
}

const (
	DefaultUltraTTL          = 30 * time.Minute
	DefaultDigitTTL          = 2 * time.Hour
	DefaultUsernameRetention = 30 * 24 * time.Hour
	DefaultJanitorInterval   = 5 * time.Minute
)

func Load() (*Config, error) {
	// Load local .env for development (ignored when missing).
	if err := godotenv.Load(".env"); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}

	v := viper.New()

	// Search for config/config.yaml (plus root for overrides).
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	// Allow environment variables to override YAML entries.
	v.SetEnvPrefix("")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// Preserve legacy env variable names.
	bindEnvVars(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyDefaults(&cfg)

	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = ":8080"
	}
	if cfg.Codes.UltraTTL <= 0 {
		cfg.Codes.UltraTTL = DefaultUltraTTL
	}
	if cfg.Codes.DigitTTL <= 0 {
		cfg.Codes.DigitTTL = DefaultDigitTTL
	}
	if cfg.Codes.UsernameRetention <= 0 {
		cfg.Codes.UsernameRetention = DefaultUsernameRetention
	}
	if cfg.Codes.JanitorInterval <= 0 {
		cfg.Codes.JanitorInterval = DefaultJanitorInterval
	}
}

func bindEnvVars(v *viper.Viper) {
	// Server
	v.BindEnv("server.addr", "SERVER_ADDR")
	v.BindEnv("server.domain", "SERVER_DOMAIN")
	v.BindEnv("server.session_secret", "SESSION_SECRET")

	// PostgreSQL
	v.BindEnv("postgres.host", "PG_HOST")
	v.BindEnv("postgres.user", "PG_USER")
	v.BindEnv("postgres.password", "PG_PASSWORD")
	v.BindEnv("postgres.database", "PG_DB")
	v.BindEnv("postgres.port", "PG_PORT")
	v.BindEnv("postgres.sslmode", "PG_SSLMODE")

	// Redis
	v.BindEnv("redis.host", "REDIS_HOST")
	v.BindEnv("redis.port", "REDIS_PORT")
	v.BindEnv("redis.password", "REDIS_PASSWORD")
	v.BindEnv("redis.db", "REDIS_DB")

	// NATS
	v.BindEnv("nats.host", "NATS_HOST")
	v.BindEnv("nats.port", "NATS_PORT")
	v.BindEnv("nats.user", "NATS_USER")
	v.BindEnv("nats.password", "NATS_PASSWORD")
	v.BindEnv("nats.monitor_port", "NATS_MONITOR_PORT")

	// Prometheus
	v.BindEnv("prometheus.port", "PROM_PORT")
	v.BindEnv("prometheus.retention", "PROM_RETENTION")
	v.BindEnv("prometheus.scrape_interval", "PROM_SCRAPE_INTERVAL")
	v.BindEnv("prometheus.target", "PROM_TARGET")

	// Code spaces
	v.BindEnv("codes.ultra_ttl", "CODES_ULTRA_TTL")
	v.BindEnv("codes.digit_ttl", "CODES_DIGIT_TTL")
	v.BindEnv("codes.username_retention", "CODES_USERNAME_RETENTION")
	v.BindEnv("codes.janitor_interval", "CODES_JANITOR_INTERVAL")
}

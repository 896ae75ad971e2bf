package config

import (
	"fmt"
	"os"
	"time"
	_ "time/tzdata"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

type Config struct {
	DBDriver string `yaml:"db_driver" env:"DB_DRIVER" env-default:"postgres"`
	DBSource string `yaml:"db_source" env:"DB_SOURCE" env-required:"true"`
	Port     string `yaml:"port" env:"SERVER_PORT" env-default:"8080"`
	Env      string `yaml:"environment" env:"ENVIRONMENT" env-default:"development"`
	LogLevel string `yaml:"log_level" env:"LOG_LEVEL" env-default:"info"`
	// Timezone is the IANA zone sales are dated in. Due dates and receipts follow it.
	Timezone string `yaml:"timezone" env:"TIMEZONE" env-default:"America/Sao_Paulo"`

	// APIToken is the shared secret required on /api routes. Empty disables auth.
	APIToken    string   `yaml:"api_token" env:"API_TOKEN"`
	CORSOrigins []string `yaml:"cors_allowed_origins" env:"CORS_ALLOWED_ORIGINS" env-default:"*" env-separator:","`

	NotifyWebhookURL  string        `yaml:"notify_webhook_url" env:"NOTIFY_WEBHOOK_URL"`
	NotifyTimeout     time.Duration `yaml:"notify_timeout" env:"NOTIFY_TIMEOUT" env-default:"10s"`
	NotifyCountryCode string        `yaml:"notify_country_code" env:"NOTIFY_COUNTRY_CODE" env-default:"55"`
}

// Load reads configuration from an optional .env file, an optional CONFIG_FILE
// (yaml, json, toml or edn) and the process environment, in that order of
// increasing precedence.
func Load() (*Config, error) {
	// A missing .env is normal outside local development.
	_ = godotenv.Load()

	cfg := &Config{}
	var err error
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		err = cleanenv.ReadConfig(path, cfg)
	} else {
		err = cleanenv.ReadEnv(cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("couldn't read configuration: %w", err)
	}

	switch cfg.DBDriver {
	case DriverPostgres, DriverSQLite:
	default:
		return nil, fmt.Errorf("unsupported DB_DRIVER %q (want %s or %s)", cfg.DBDriver, DriverPostgres, DriverSQLite)
	}
	if _, err := cfg.Location(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Location resolves Timezone.
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid TIMEZONE %q: %w", c.Timezone, err)
	}
	return loc, nil
}

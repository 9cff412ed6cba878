package config

import (
	"fmt"
	"strings"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	DatabaseURL string `envconfig:"DATABASE_URL" required:"true"`
	Port        string `envconfig:"PORT" default:"8080"`
	Host        string `envconfig:"HOST" default:"localhost"`
	Env         string `envconfig:"APP_ENV" default:"development"`
	AuthKey     string `envconfig:"AUTH_KEY" required:"true"`
	UploadDir   string `envconfig:"UPLOAD_DIR" default:"uploads"`
	DefaultRoom string `envconfig:"DEFAULT_ROOM" default:"general"`
	HistoryCap  int    `envconfig:"HISTORY_CAP" default:"500"`
}

// Load reads .env (if present) and resolves the configuration from the
// environment. Missing DATABASE_URL or AUTH_KEY is a hard failure: the
// server cannot run without a user store or a signing key.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}
	if err := envconfig.Process("", cfg); err != nil {
		return nil, fmt.Errorf("failed to process environment: %w", err)
	}

	return cfg, nil
}

func (c *Config) Addr() string {
	return c.Host + ":" + c.Port
}

// MaskedDatabaseURL hides credentials for log output.
func (c *Config) MaskedDatabaseURL() string {
	parts := strings.Split(c.DatabaseURL, "@")
	if len(parts) < 2 {
		return "invalid-dsn-format"
	}
	return "postgres://****:****@" + parts[1]
}

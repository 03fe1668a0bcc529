// Package config reads service settings from the environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/caarlos0/env/v6"
	"github.com/joho/godotenv"
)

// Config holds every setting of the service.
type Config struct {
	Port           int           `env:"PORT" envDefault:"8080"`
	DatabaseURL    string        `env:"DATABASE_URL"`
	CategoriesFile string        `env:"CATEGORIES_FILE" envDefault:"categories.yaml"`
	ReloadSchedule string        `env:"CATEGORIES_RELOAD_SCHEDULE"`
	MaxUploadMB    int           `env:"MAX_UPLOAD_MB" envDefault:"10"`
	ParseTimeout   time.Duration `env:"PARSE_TIMEOUT" envDefault:"30s"`
	OCR            bool          `env:"OCR_ENABLED"`
	LogLevel       string        `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat      string        `env:"LOG_FORMAT" envDefault:"json"`
	StaticDir      string        `env:"STATIC_DIR"`
}

// Load reads the optional dotenv files, then the environment. Variables
// already set in the environment win over dotenv values.
func Load(dotenvFiles ...string) (*Config, error) {
	if len(dotenvFiles) == 0 {
		dotenvFiles = []string{".env"}
	}
	for _, f := range dotenvFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("loading %s: %w", f, err)
		}
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parsing environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks value ranges env tags cannot express.
func (c *Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid PORT %d", c.Port)
	}
	if c.MaxUploadMB <= 0 {
		return fmt.Errorf("MAX_UPLOAD_MB must be positive, got %d", c.MaxUploadMB)
	}
	if c.ParseTimeout <= 0 {
		return fmt.Errorf("PARSE_TIMEOUT must be positive, got %s", c.ParseTimeout)
	}
	return nil
}

// Addr is the listen address for the HTTP server.
func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}

// MaxUploadBytes is the upload limit in bytes.
func (c *Config) MaxUploadBytes() int64 {
	return int64(c.MaxUploadMB) << 20
}

package config

import (
	"fmt"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// Config holds all service configuration loaded from environment variables.
type Config struct {
	Port           string        `env:"PORT" env-default:"8080"`
	DBDriver       string        `env:"DB_DRIVER" env-default:"postgres"`
	PostgresDSN    string        `env:"POSTGRES_DSN" env-default:""`
	PGMaxConns     int32         `env:"PG_MAX_CONNS" env-default:"10"`
	SQLitePath     string        `env:"SQLITE_PATH" env-default:"./users.db"`
	HealthTimeout  time.Duration `env:"HEALTH_TIMEOUT" env-default:"5s"`
	RunDiagnostics bool          `env:"RUN_DIAGNOSTICS" env-default:"true"`
	CORSOrigins    []string      `env:"CORS_ORIGINS" env-separator:"," env-default:"http://localhost:3000,http://localhost:5173"`
	ReadTimeout    time.Duration `env:"HTTP_READ_TIMEOUT" env-default:"15s"`
	WriteTimeout   time.Duration `env:"HTTP_WRITE_TIMEOUT" env-default:"15s"`
}

func Load() (*Config, error) {
	var cfg Config
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("read env: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	switch c.DBDriver {
	case DriverPostgres:
		if c.PostgresDSN == "" {
			return fmt.Errorf("POSTGRES_DSN is required when DB_DRIVER=%s", DriverPostgres)
		}
	case DriverSQLite:
		if c.SQLitePath == "" {
			return fmt.Errorf("SQLITE_PATH is required when DB_DRIVER=%s", DriverSQLite)
		}
	default:
		return fmt.Errorf("DB_DRIVER must be %s or %s, got %q", DriverPostgres, DriverSQLite, c.DBDriver)
	}
	if c.HealthTimeout <= 0 {
		return fmt.Errorf("HEALTH_TIMEOUT must be positive, got %s", c.HealthTimeout)
	}
	return nil
}

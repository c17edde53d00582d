package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port       string
	DBDriver   string // sqlite|postgres
	DBDSN      string
	Location   *time.Location
	LogLevel   string
	LogFormat  string // text|json
	Env        string // dev|prod
	SessionTTL time.Duration
	SentryDSN  string
	Metrics    bool
}

// Load reads CHOREPOINTS_* variables, after loading a .env file from the
// working directory if there is one. Variables already set in the
// environment win over the file.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	tz := getenv("CHOREPOINTS_TZ", "UTC")
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("CHOREPOINTS_TZ: %w", err)
	}

	ttl, err := time.ParseDuration(getenv("CHOREPOINTS_SESSION_TTL", "720h"))
	if err != nil {
		return nil, fmt.Errorf("CHOREPOINTS_SESSION_TTL: %w", err)
	}
	if ttl <= 0 {
		return nil, fmt.Errorf("CHOREPOINTS_SESSION_TTL must be positive")
	}

	metrics, err := strconv.ParseBool(getenv("CHOREPOINTS_METRICS", "true"))
	if err != nil {
		return nil, fmt.Errorf("CHOREPOINTS_METRICS: %w", err)
	}

	driver := strings.ToLower(getenv("CHOREPOINTS_DB_DRIVER", "sqlite"))
	dsn := os.Getenv("CHOREPOINTS_DB_DSN")
	switch driver {
	case "sqlite":
		if dsn == "" {
			dsn = "chorepoints.db"
		}
	case "postgres":
		if dsn == "" {
			return nil, fmt.Errorf("CHOREPOINTS_DB_DSN is required for postgres")
		}
	default:
		return nil, fmt.Errorf("CHOREPOINTS_DB_DRIVER: unsupported driver %q", driver)
	}

	return &Config{
		Port:       getenv("CHOREPOINTS_PORT", "8080"),
		DBDriver:   driver,
		DBDSN:      dsn,
		Location:   loc,
		LogLevel:   getenv("CHOREPOINTS_LOG_LEVEL", "info"),
		LogFormat:  getenv("CHOREPOINTS_LOG_FORMAT", "text"),
		Env:        getenv("CHOREPOINTS_ENV", "dev"),
		SessionTTL: ttl,
		SentryDSN:  os.Getenv("CHOREPOINTS_SENTRY_DSN"),
		Metrics:    metrics,
	}, nil
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds service configuration.
type Config struct {
	DatabaseURL   string
	ServerAddr    string
	SweepInterval time.Duration
	BidAttempts   int
	MigrationsDir string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	NATSURL string
}

// Load reads configuration from environment.
func Load() (*Config, error) {
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		user := getenv("POSTGRES_USER", "bidware")
		pass := getenv("POSTGRES_PASSWORD", "bidware_pass")
		db := getenv("POSTGRES_DB", "bidware")
		host := getenv("POSTGRES_HOST", "localhost")
		port := getenv("POSTGRES_PORT", "5432")
		sslmode := getenv("DATABASE_SSLMODE", "disable")
		dsn = fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s", user, pass, host, port, db, sslmode)
	}

	return &Config{
		DatabaseURL:   dsn,
		ServerAddr:    getenv("SERVER_ADDR", "0.0.0.0:8080"),
		SweepInterval: parseDuration(getenv("SWEEP_INTERVAL", "30s"), 30*time.Second),
		BidAttempts:   parseInt(getenv("BID_MAX_ATTEMPTS", "3"), 3),
		MigrationsDir: getenv("MIGRATIONS_DIR", "internal/migrations"),
		RedisAddr:     getenv("REDIS_ADDR", ""),
		RedisPassword: getenv("REDIS_PASSWORD", ""),
		RedisDB:       parseInt(getenv("REDIS_DB", "0"), 0),
		NATSURL:       getenv("NATS_URL", ""),
	}, nil
}

func getenv(key, def string) string {
	val := os.Getenv(key)
	if val == "" {
		return def
	}
	return val
}

func parseDuration(val string, def time.Duration) time.Duration {
	if val == "" {
		return def
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return def
	}
	return d
}

func parseInt(val string, def int) int {
	if val == "" {
		return def
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return def
	}
	return n
}

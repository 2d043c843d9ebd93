// pkg/config/config.go
package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Env      string
	HTTPAddr string

	// Symmetric key for tenant credential encryption at rest. Changing it
	// invalidates every stored ciphertext; there is no rotation scheme.
	EncryptionKey string

	// Upstream HCM API
	UpstreamTimeout time.Duration

	// Redis & Postgres
	RedisURL    string
	DatabaseURL string

	// Dashboard stats cache (only used when redis is configured)
	StatsCacheTTL time.Duration
}

func Load() Config {
	_ = godotenv.Load()
	cfg := Config{
		Env:             env("PORTAL_ENV", "dev"),
		HTTPAddr:        env("PORTAL_HTTP_ADDR", ":5000"),
		EncryptionKey:   env("ENCRYPTION_KEY", ""),
		UpstreamTimeout: envDur("UPSTREAM_TIMEOUT_SEC", 30) * time.Second,
		RedisURL:        env("REDIS_URL", ""),
		DatabaseURL:     env("DATABASE_URL", ""),
		StatsCacheTTL:   envDur("STATS_CACHE_TTL_SEC", 15) * time.Second,
	}
	if cfg.DatabaseURL == "" {
		log.Println("[WARN] DATABASE_URL not set; using in-memory tenant store for dev")
	}
	if cfg.EncryptionKey == "" {
		log.Println("[WARN] ENCRYPTION_KEY not set; stored credentials will use an empty key")
	}
	return cfg
}

func env(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
func envDur(k string, def int) time.Duration {
	if v := os.Getenv(k); v != "" {
		i, _ := strconv.Atoi(v)
		return time.Duration(i)
	}
	return time.Duration(def)
}

package config

import (
	"os"
	"time"
)

// Server captures process-level configuration.
type Server struct {
	Addr          string
	RedisURL      string
	DatabaseURL   string
	JWTSigningKey string
	TokenTTL      time.Duration
	IdleTimeout   time.Duration
	WarnBefore    time.Duration
}

// FromEnv builds a Server config from environment variables so main stays lean.
func FromEnv() Server {
	addr := os.Getenv("PASSAGE_ADDR")
	if addr == "" {
		addr = ":8080"
	}

	jwtSigningKey := os.Getenv("JWT_SIGNING_KEY")
	if jwtSigningKey == "" {
		// Use a default for development - should be overridden in production
		jwtSigningKey = "dev-secret-key-change-in-production"
	}

	return Server{
		Addr:          addr,
		RedisURL:      os.Getenv("PASSAGE_REDIS_URL"),
		DatabaseURL:   os.Getenv("PASSAGE_DATABASE_URL"),
		JWTSigningKey: jwtSigningKey,
		TokenTTL:      durationFromEnv("PASSAGE_TOKEN_TTL", 12*time.Hour),
		IdleTimeout:   durationFromEnv("PASSAGE_IDLE_TIMEOUT", 10*time.Minute),
		WarnBefore:    durationFromEnv("PASSAGE_IDLE_WARN_BEFORE", time.Minute),
	}
}

func durationFromEnv(key string, fallback time.Duration) time.Duration {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

package config

import (
	"os"
	"strconv"
	"time"
)

// Config captures server-level configuration. Values come from the
// environment so main stays lean and deployments stay twelve-factor.
type Config struct {
	Addr          string
	DatabaseURL   string
	JWTSigningKey string
	TokenTTL      time.Duration

	// AdminBootstrapToken authorizes registering public_admin and
	// platform_admin accounts. Empty disables administrative registration.
	AdminBootstrapToken string

	// MatchThreshold is the scorer confidence at or above which a candidate
	// pair becomes a pending match.
	MatchThreshold float64

	// AuthRateLimit caps login and registration attempts per client IP per
	// minute.
	AuthRateLimit int

	Redis Redis
}

// Redis holds the optional unread-counter cache configuration. An empty URL
// disables Redis and the notification service falls back to store counts.
type Redis struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// FromEnv builds a Config from environment variables.
func FromEnv() Config {
	addr := os.Getenv("FINDMYID_ADDR")
	if addr == "" {
		addr = ":8080"
	}

	jwtSigningKey := os.Getenv("JWT_SIGNING_KEY")
	if jwtSigningKey == "" {
		// Development default - must be overridden in production.
		jwtSigningKey = "dev-secret-key-change-in-production"
	}

	tokenTTL := 24 * time.Hour
	if raw := os.Getenv("JWT_TOKEN_TTL"); raw != "" {
		if parsed, err := time.ParseDuration(raw); err == nil && parsed > 0 {
			tokenTTL = parsed
		}
	}

	authRateLimit := 10
	if raw := os.Getenv("AUTH_RATE_LIMIT"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			authRateLimit = parsed
		}
	}

	threshold := 0.5
	if raw := os.Getenv("MATCH_THRESHOLD"); raw != "" {
		if parsed, err := strconv.ParseFloat(raw, 64); err == nil && parsed > 0 && parsed <= 1 {
			threshold = parsed
		}
	}

	return Config{
		Addr:                addr,
		DatabaseURL:         os.Getenv("DATABASE_URL"),
		JWTSigningKey:       jwtSigningKey,
		TokenTTL:            tokenTTL,
		AdminBootstrapToken: os.Getenv("ADMIN_BOOTSTRAP_TOKEN"),
		MatchThreshold:      threshold,
		AuthRateLimit:       authRateLimit,
		Redis: Redis{
			URL:          os.Getenv("REDIS_URL"),
			PoolSize:     10,
			MinIdleConns: 2,
			DialTimeout:  5 * time.Second,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
		},
	}
}

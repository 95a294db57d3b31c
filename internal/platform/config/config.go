package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config is the full process configuration, built from environment variables
// so main stays lean.
type Config struct {
	Server     Server
	Postgres   Postgres
	Redis      Redis
	Kafka      Kafka
	Auth       Auth
	Compliance Compliance
}

// Server captures HTTP server level configuration.
type Server struct {
	Addr string
	// RateLimitPerMinute caps requests per client IP per minute. Zero
	// disables the limiter.
	RateLimitPerMinute int
}

// Postgres holds the connection string; empty means in-memory stores.
type Postgres struct {
	DSN string
}

// Redis holds the recompute-lock backend; empty means the in-process lock.
type Redis struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// Kafka holds the audit outbox publisher target; empty brokers disable it.
type Kafka struct {
	Brokers []string
	Topic   string
}

// Auth holds the JWT verification key for the actor-extraction middleware.
type Auth struct {
	JWTSigningKey string
}

// Compliance carries the engine's policy constants. Defaults match the
// shipped policy; env overrides exist for staging experiments, not for
// weakening the override ceiling in production.
type Compliance struct {
	// OverrideMaxHours is the ceiling on admin override duration.
	OverrideMaxHours int
	// ReminderOffsetsDays are the day-counts before expiry at which
	// reminders fire.
	ReminderOffsetsDays []int
	// AdminAlertThresholdDays is the offset at or below which org admins are
	// alerted in addition to the clinician.
	AdminAlertThresholdDays int
	// RecomputeConcurrency bounds sweep fan-out across clinicians.
	RecomputeConcurrency int
}

// FromEnv builds the configuration from environment variables.
func FromEnv() Config {
	return Config{
		Server: Server{
			Addr:               envOr("CREDREADY_ADDR", ":8080"),
			RateLimitPerMinute: envIntOr("CREDREADY_RATE_LIMIT_PER_MINUTE", 300),
		},
		Postgres: Postgres{
			DSN: os.Getenv("CREDREADY_POSTGRES_DSN"),
		},
		Redis: Redis{
			URL:          os.Getenv("CREDREADY_REDIS_URL"),
			PoolSize:     envIntOr("CREDREADY_REDIS_POOL_SIZE", 10),
			MinIdleConns: envIntOr("CREDREADY_REDIS_MIN_IDLE", 2),
			DialTimeout:  5 * time.Second,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
		},
		Kafka: Kafka{
			Brokers: splitNonEmpty(os.Getenv("CREDREADY_KAFKA_BROKERS")),
			Topic:   envOr("CREDREADY_KAFKA_AUDIT_TOPIC", "credready.audit"),
		},
		Auth: Auth{
			JWTSigningKey: envOr("CREDREADY_JWT_SIGNING_KEY", "dev-secret-key-change-in-production"),
		},
		Compliance: complianceFromEnv(),
	}
}

// DefaultCompliance returns the shipped policy constants.
func DefaultCompliance() Compliance {
	return Compliance{
		OverrideMaxHours:        72,
		ReminderOffsetsDays:     []int{30, 14, 7, 1, 0},
		AdminAlertThresholdDays: 7,
		RecomputeConcurrency:    8,
	}
}

func complianceFromEnv() Compliance {
	c := DefaultCompliance()
	c.OverrideMaxHours = envIntOr("CREDREADY_OVERRIDE_MAX_HOURS", c.OverrideMaxHours)
	c.AdminAlertThresholdDays = envIntOr("CREDREADY_ADMIN_ALERT_THRESHOLD_DAYS", c.AdminAlertThresholdDays)
	c.RecomputeConcurrency = envIntOr("CREDREADY_RECOMPUTE_CONCURRENCY", c.RecomputeConcurrency)
	if offsets := envInts(os.Getenv("CREDREADY_REMINDER_OFFSETS_DAYS")); len(offsets) > 0 {
		c.ReminderOffsetsDays = offsets
	}
	return c
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envIntOr(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envInts(raw string) []int {
	var out []int
	for _, p := range splitNonEmpty(raw) {
		n, err := strconv.Atoi(p)
		if err != nil {
			return nil
		}
		out = append(out, n)
	}
	return out
}

func splitNonEmpty(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

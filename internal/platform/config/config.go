package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config captures process-level configuration shared by the careflow
// binaries. Values come from the environment so main stays lean.
type Config struct {
	Addr          string
	AnalyticsAddr string
	Environment   string

	// Credential authority.
	JWTSigningKey string
	TokenIssuer   string
	TokenTTL      time.Duration

	// Storage. Empty DatabaseURL selects the in-memory stores, which is
	// only acceptable for local development.
	DatabaseURL string
	RedisURL    string

	// Messaging.
	KafkaBrokers string
	KafkaGroupID string
	EventTopic   string

	// Billing dependency.
	BillingURL     string
	BillingTimeout time.Duration

	// Publish handoff must never hold a request for long.
	PublishTimeout time.Duration

	// Outbox retry worker.
	OutboxPollInterval time.Duration
	OutboxBatchSize    int

	// Optional development seed user.
	SeedUserEmail    string
	SeedUserPassword string
}

// FromEnv builds a Config from environment variables. Validation of the
// values a given binary depends on happens in ValidateServer /
// ValidateAnalytics so each process can fail fast on what it actually needs.
func FromEnv() Config {
	return Config{
		Addr:               envOr("CAREFLOW_ADDR", ":8080"),
		AnalyticsAddr:      envOr("ANALYTICS_ADDR", ":8081"),
		Environment:        envOr("ENVIRONMENT", "development"),
		JWTSigningKey:      os.Getenv("JWT_SIGNING_KEY"),
		TokenIssuer:        envOr("TOKEN_ISSUER", "careflow"),
		TokenTTL:           durationOr("TOKEN_TTL", 15*time.Minute),
		DatabaseURL:        os.Getenv("DATABASE_URL"),
		RedisURL:           os.Getenv("REDIS_URL"),
		KafkaBrokers:       os.Getenv("KAFKA_BROKERS"),
		KafkaGroupID:       envOr("KAFKA_GROUP_ID", "careflow-analytics"),
		EventTopic:         envOr("EVENT_TOPIC", "patient.events"),
		BillingURL:         os.Getenv("BILLING_URL"),
		BillingTimeout:     durationOr("BILLING_TIMEOUT", 3*time.Second),
		PublishTimeout:     durationOr("PUBLISH_TIMEOUT", 2*time.Second),
		OutboxPollInterval: durationOr("OUTBOX_POLL_INTERVAL", 5*time.Second),
		OutboxBatchSize:    intOr("OUTBOX_BATCH_SIZE", 50),
		SeedUserEmail:      os.Getenv("SEED_USER_EMAIL"),
		SeedUserPassword:   os.Getenv("SEED_USER_PASSWORD"),
	}
}

// ValidateServer checks the values the patient service cannot run without.
// Token correctness depends on the signing key, so there is no default.
func (c Config) ValidateServer() error {
	if c.JWTSigningKey == "" {
		return fmt.Errorf("JWT_SIGNING_KEY is required")
	}
	if c.BillingURL == "" {
		return fmt.Errorf("BILLING_URL is required")
	}
	return nil
}

// ValidateAnalytics checks the values the analytics consumer cannot run without.
func (c Config) ValidateAnalytics() error {
	if c.KafkaBrokers == "" {
		return fmt.Errorf("KAFKA_BROKERS is required")
	}
	if c.KafkaGroupID == "" {
		return fmt.Errorf("KAFKA_GROUP_ID is required")
	}
	return nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func durationOr(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func intOr(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return fallback
}

// Package config loads and validates application configuration from environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all application configuration.
type Config struct {
	// Server settings.
	Port                int
	ReadTimeout         time.Duration
	WriteTimeout        time.Duration
	ShutdownTimeout     time.Duration
	MaxRequestBodyBytes int64

	// Session token settings.
	SessionPrivateKeyPath string // Path to Ed25519 private key PEM file.
	SessionPublicKeyPath  string // Path to Ed25519 public key PEM file.
	SessionExpiration     time.Duration

	// Ledger settings.
	BlockThreshold int
	LedgerDBPath   string // sqlite archive for sealed blocks; empty disables archiving.

	// Webhook settings. Partner ID and secret seed one sequencing partner at
	// startup; empty disables the seed.
	WebhookQueueSize     int
	WebhookPartnerID     string
	WebhookPartnerSecret string

	// Upload settings.
	UploadSecret  string
	UploadBaseURL string

	// Rate limiting.
	RateLimitRPS   float64
	RateLimitBurst int

	// Cache settings.
	CacheTTL time.Duration

	// OTEL settings.
	OTELEndpoint string
	ServiceName  string
	OTELInsecure bool

	// Operational settings.
	LogLevel string
}

// Load reads configuration from environment variables with sensible defaults.
func Load() (Config, error) {
	cfg := Config{
		Port:                  envInt("GENOMELAB_PORT", 8080),
		ReadTimeout:           envDuration("GENOMELAB_READ_TIMEOUT", 30*time.Second),
		WriteTimeout:          envDuration("GENOMELAB_WRITE_TIMEOUT", 30*time.Second),
		ShutdownTimeout:       envDuration("GENOMELAB_SHUTDOWN_TIMEOUT", 10*time.Second),
		MaxRequestBodyBytes:   int64(envInt("GENOMELAB_MAX_REQUEST_BODY_BYTES", 8*1024*1024)),
		SessionPrivateKeyPath: envStr("GENOMELAB_SESSION_PRIVATE_KEY", ""),
		SessionPublicKeyPath:  envStr("GENOMELAB_SESSION_PUBLIC_KEY", ""),
		SessionExpiration:     envDuration("GENOMELAB_SESSION_EXPIRATION", 24*time.Hour),
		BlockThreshold:        envInt("GENOMELAB_BLOCK_THRESHOLD", 10),
		LedgerDBPath:          envStr("GENOMELAB_LEDGER_DB", ""),
		WebhookQueueSize:      envInt("GENOMELAB_WEBHOOK_QUEUE_SIZE", 256),
		WebhookPartnerID:      envStr("GENOMELAB_WEBHOOK_PARTNER_ID", ""),
		WebhookPartnerSecret:  envStr("GENOMELAB_WEBHOOK_PARTNER_SECRET", ""),
		UploadSecret:          envStr("GENOMELAB_UPLOAD_SECRET", ""),
		UploadBaseURL:         envStr("GENOMELAB_UPLOAD_BASE_URL", "https://uploads.genomelab.local"),
		RateLimitRPS:          envFloat("GENOMELAB_RATE_LIMIT_RPS", 20),
		RateLimitBurst:        envInt("GENOMELAB_RATE_LIMIT_BURST", 40),
		CacheTTL:              envDuration("GENOMELAB_CACHE_TTL", 5*time.Minute),
		OTELEndpoint:          envStr("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
		ServiceName:           envStr("OTEL_SERVICE_NAME", "genomelab"),
		OTELInsecure:          envBool("OTEL_EXPORTER_OTLP_INSECURE", false),
		LogLevel:              envStr("GENOMELAB_LOG_LEVEL", "info"),
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks that configuration values are usable.
func (c Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("config: GENOMELAB_PORT must be a valid port, got %d", c.Port)
	}
	if c.BlockThreshold <= 0 {
		return fmt.Errorf("config: GENOMELAB_BLOCK_THRESHOLD must be positive")
	}
	if c.WebhookQueueSize <= 0 {
		return fmt.Errorf("config: GENOMELAB_WEBHOOK_QUEUE_SIZE must be positive")
	}
	if c.MaxRequestBodyBytes <= 0 {
		return fmt.Errorf("config: GENOMELAB_MAX_REQUEST_BODY_BYTES must be positive")
	}
	if c.RateLimitRPS <= 0 || c.RateLimitBurst <= 0 {
		return fmt.Errorf("config: rate limit rps and burst must be positive")
	}
	return nil
}

func envStr(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envInt(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return defaultVal
}

func envFloat(key string, defaultVal float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return defaultVal
}

func envBool(key string, defaultVal bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return defaultVal
}

func envDuration(key string, defaultVal time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return defaultVal
}

package config

import (
	"encoding/hex"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/viper"
)

type Config struct {
	Port                  string        `mapstructure:"PORT"`
	Env                   string        `mapstructure:"ENV"`
	AuthMode              string        `mapstructure:"AUTH_MODE"`
	DatabaseURL           string        `mapstructure:"DATABASE_URL"`
	DBMaxConns            int32         `mapstructure:"DB_MAX_CONNS"`
	DBMinConns            int32         `mapstructure:"DB_MIN_CONNS"`
	DBSchema              string        `mapstructure:"DB_SCHEMA"`
	MigrationsDir         string        `mapstructure:"MIGRATIONS_DIR"`
	DefaultOrganizationID string        `mapstructure:"DEFAULT_ORGANIZATION_ID"`
	AuthIssuer            string        `mapstructure:"AUTH_ISSUER"`
	AuthJWKSURL           string        `mapstructure:"AUTH_JWKS_URL"`
	AuthAudience          string        `mapstructure:"AUTH_AUDIENCE"`
	AuthSigningKey        string        `mapstructure:"AUTH_SIGNING_KEY"`
	CORSOrigins           []string      `mapstructure:"CORS_ORIGINS"`
	HIPAAEncryptionKey    string        `mapstructure:"HIPAA_ENCRYPTION_KEY"`
	RateLimitRPS          float64       `mapstructure:"RATE_LIMIT_RPS"`
	RateLimitBurst        int           `mapstructure:"RATE_LIMIT_BURST"`
	RequestTimeout        time.Duration `mapstructure:"REQUEST_TIMEOUT"`
	RedisURL              string        `mapstructure:"REDIS_URL"`
	DraftTTL              time.Duration `mapstructure:"DRAFT_TTL"`
	RabbitMQURL           string        `mapstructure:"RABBITMQ_URL"`
	EventsExchange        string        `mapstructure:"EVENTS_EXCHANGE"`
	LogLevel              string        `mapstructure:"LOG_LEVEL"`
	LogFile               string        `mapstructure:"LOG_FILE"`
	LogFileMaxSizeMB      int           `mapstructure:"LOG_FILE_MAX_SIZE_MB"`
	LogFileMaxBackups     int           `mapstructure:"LOG_FILE_MAX_BACKUPS"`
	LogFileMaxAgeDays     int           `mapstructure:"LOG_FILE_MAX_AGE_DAYS"`
	TLSEnabled            bool          `mapstructure:"TLS_ENABLED"`
	TLSCertFile           string        `mapstructure:"TLS_CERT_FILE"`
	TLSKeyFile            string        `mapstructure:"TLS_KEY_FILE"`
}

var envKeys = []string{
	"PORT", "ENV", "AUTH_MODE", "DATABASE_URL", "DB_MAX_CONNS", "DB_MIN_CONNS", "DB_SCHEMA",
	"MIGRATIONS_DIR", "DEFAULT_ORGANIZATION_ID", "AUTH_ISSUER", "AUTH_JWKS_URL", "AUTH_AUDIENCE",
	"AUTH_SIGNING_KEY", "CORS_ORIGINS", "HIPAA_ENCRYPTION_KEY", "RATE_LIMIT_RPS", "RATE_LIMIT_BURST",
	"REQUEST_TIMEOUT", "REDIS_URL", "DRAFT_TTL", "RABBITMQ_URL", "EVENTS_EXCHANGE", "LOG_LEVEL",
	"LOG_FILE", "LOG_FILE_MAX_SIZE_MB", "LOG_FILE_MAX_BACKUPS", "LOG_FILE_MAX_AGE_DAYS",
	"TLS_ENABLED", "TLS_CERT_FILE", "TLS_KEY_FILE",
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("PORT", "8000")
	v.SetDefault("ENV", "development")
	v.SetDefault("AUTH_MODE", "") // "" -> inferred from ENV
	v.SetDefault("DB_MAX_CONNS", 20)
	v.SetDefault("DB_MIN_CONNS", 5)
	v.SetDefault("DB_SCHEMA", "intake")
	v.SetDefault("MIGRATIONS_DIR", "./migrations")
	v.SetDefault("CORS_ORIGINS", "http://localhost:3000")
	v.SetDefault("RATE_LIMIT_RPS", 50)
	v.SetDefault("RATE_LIMIT_BURST", 100)
	v.SetDefault("REQUEST_TIMEOUT", "30s")
	v.SetDefault("DRAFT_TTL", "24h")
	v.SetDefault("EVENTS_EXCHANGE", "intake.events")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FILE_MAX_SIZE_MB", 100)
	v.SetDefault("LOG_FILE_MAX_BACKUPS", 5)
	v.SetDefault("LOG_FILE_MAX_AGE_DAYS", 30)

	// Bind env vars explicitly so Unmarshal picks them up
	for _, key := range envKeys {
		_ = v.BindEnv(key)
	}

	// Try reading .env file, but don't fail if missing
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if cfg.CORSOrigins == nil {
		origins := v.GetString("CORS_ORIGINS")
		if origins != "" {
			cfg.CORSOrigins = strings.Split(origins, ",")
		}
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	if cfg.IsDev() {
		log.Println("WARNING: ============================================================")
		log.Println("WARNING: Server is running in DEVELOPMENT mode (ENV=development).")
		log.Println("WARNING: development auth is active, every request gets admin access.")
		log.Println("WARNING: Do NOT use this configuration in production.")
		log.Println("WARNING: ============================================================")
	}

	return cfg, nil
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// IsProduction returns true when the server is configured for production mode.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// ResolvedAuthMode returns the effective auth mode. If AUTH_MODE is explicitly
// set, it is returned. Otherwise ENV=development maps to "development" and
// everything else to "jwt".
func (c *Config) ResolvedAuthMode() string {
	if c.AuthMode != "" {
		return c.AuthMode
	}
	if c.IsDev() {
		return "development"
	}
	return "jwt"
}

// DefaultOrganization parses DEFAULT_ORGANIZATION_ID. It returns uuid.Nil when
// the value is unset.
func (c *Config) DefaultOrganization() uuid.UUID {
	id, err := uuid.Parse(c.DefaultOrganizationID)
	if err != nil {
		return uuid.Nil
	}
	return id
}

// Validate checks that the configuration is safe to run. JWT mode needs either
// an issuer (JWKS discovery) or a shared signing key. In production
// HIPAA_ENCRYPTION_KEY is required and must be a 64-character hex string.
func (c *Config) Validate() error {
	mode := c.ResolvedAuthMode()
	if mode != "development" && mode != "jwt" {
		return fmt.Errorf("AUTH_MODE must be \"development\" or \"jwt\", got %q", mode)
	}
	if mode == "jwt" && c.AuthIssuer == "" && c.AuthJWKSURL == "" && c.AuthSigningKey == "" {
		return fmt.Errorf(
			"AUTH_ISSUER, AUTH_JWKS_URL or AUTH_SIGNING_KEY must be set when AUTH_MODE is \"jwt\" (current ENV=%q)", c.Env)
	}
	if mode == "development" && c.IsProduction() {
		return fmt.Errorf("AUTH_MODE=development is not allowed when ENV=production")
	}

	if c.DefaultOrganizationID != "" {
		if _, err := uuid.Parse(c.DefaultOrganizationID); err != nil {
			return fmt.Errorf("DEFAULT_ORGANIZATION_ID is not a valid UUID: %w", err)
		}
	}

	if c.IsProduction() && c.HIPAAEncryptionKey == "" {
		return fmt.Errorf("HIPAA_ENCRYPTION_KEY is required in production")
	}
	if c.HIPAAEncryptionKey != "" {
		keyBytes, err := hex.DecodeString(c.HIPAAEncryptionKey)
		if err != nil {
			return fmt.Errorf("HIPAA_ENCRYPTION_KEY is not valid hex: %w", err)
		}
		if len(keyBytes) != 32 {
			return fmt.Errorf("HIPAA_ENCRYPTION_KEY must be 32 bytes (64 hex chars), got %d bytes", len(keyBytes))
		}
	}

	if c.TLSEnabled {
		if c.TLSCertFile == "" {
			return fmt.Errorf("TLS_CERT_FILE is required when TLS_ENABLED is true")
		}
		if c.TLSKeyFile == "" {
			return fmt.Errorf("TLS_KEY_FILE is required when TLS_ENABLED is true")
		}
	}

	return nil
}

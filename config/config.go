package config

import (
	"encoding/base64"
	"fmt"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
)

// Config holds all application configuration, loaded once at startup.
type Config struct {
	Env      string `env:"APP_ENV" envDefault:"development"`
	Port     string `env:"PORT" envDefault:"8080"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	// Master catalog database (tenant records, users, memberships).
	DBHost     string `env:"DB_HOST" envDefault:"db"`
	DBPort     string `env:"DB_PORT" envDefault:"5432"`
	DBUser     string `env:"DB_USER,required"`
	DBPassword string `env:"DB_PASSWORD,required"`
	DBName     string `env:"DB_NAME,required"`

	// Demo tenant database used in local development and for the demo
	// sentinel. No registry lookup is ever made for it.
	DemoDatabaseURL string `env:"DEMO_DATABASE_URL" envDefault:""`
	DemoDatabaseKey string `env:"DEMO_DATABASE_KEY" envDefault:""`

	// The apex domain tenants hang off of (e.g. acme.<PlatformDomain>).
	PlatformDomain string `env:"PLATFORM_DOMAIN" envDefault:"mandanten.app"`
	// Internal hosting suffix that, like localhost, resolves to demo.
	InternalHostSuffix string `env:"INTERNAL_HOST_SUFFIX" envDefault:".internal.mandanten.app"`

	JWTSecret     string        `env:"JWT_SECRET_KEY,required"`
	TokenTTL      time.Duration `env:"TOKEN_TTL" envDefault:"24h"`
	TempTokenTTL  time.Duration `env:"TEMP_TOKEN_TTL" envDefault:"10m"`
	CredentialKey string        `env:"CREDENTIAL_KEY,required"` // base64, 32 bytes

	RedisAddr     string `env:"REDIS_ADDR" envDefault:""`
	RedisPassword string `env:"REDIS_PASSWORD" envDefault:""`

	// Tokens minted before the tenant id format change carry LegacyTenantID;
	// they are accepted for exactly LegacyCanonicalTenantID. Empty disables.
	LegacyTenantID          string `env:"LEGACY_TENANT_ID" envDefault:""`
	LegacyCanonicalTenantID string `env:"LEGACY_TENANT_CANONICAL_ID" envDefault:""`

	PoolCacheTTL       time.Duration `env:"POOL_CACHE_TTL" envDefault:"30m"`
	PoolMaxConns       int           `env:"POOL_MAX_CONNS" envDefault:"5"`
	PoolConnectTimeout time.Duration `env:"POOL_CONNECT_TIMEOUT" envDefault:"10s"`
	PoolAcquireTimeout time.Duration `env:"POOL_ACQUIRE_TIMEOUT" envDefault:"5s"`

	ResolveTimeout time.Duration `env:"RESOLVE_TIMEOUT" envDefault:"5s"`

	AuthRateLimitMax    int           `env:"AUTH_RATE_LIMIT_MAX" envDefault:"10"`
	AuthRateLimitWindow time.Duration `env:"AUTH_RATE_LIMIT_WINDOW" envDefault:"60s"`

	GlobalRateLimitMax    int           `env:"RATE_LIMIT_MAX" envDefault:"60"`
	GlobalRateLimitWindow time.Duration `env:"RATE_LIMIT_WINDOW" envDefault:"60s"`

	BodyLimitBytes int    `env:"BODY_LIMIT_BYTES" envDefault:"4194304"`
	AllowedOrigins string `env:"ALLOWED_ORIGINS" envDefault:"*"`
}

// Load reads configuration from environment variables. A .env file is
// honored for local development only.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	key, err := base64.StdEncoding.DecodeString(cfg.CredentialKey)
	if err != nil {
		return nil, fmt.Errorf("CREDENTIAL_KEY is not valid base64: %w", err)
	}
	if len(key) != 32 {
		return nil, fmt.Errorf("CREDENTIAL_KEY must decode to 32 bytes, got %d", len(key))
	}

	return cfg, nil
}

// IsDevelopment reports whether the process runs in local/dev mode.
// Demo fallback on registry failure is allowed only in this mode.
func (c *Config) IsDevelopment() bool {
	return c.Env == "development" || c.Env == "local"
}

// CredentialKeyBytes returns the decoded cipher key. Load has already
// validated it, so decode errors cannot occur here.
func (c *Config) CredentialKeyBytes() []byte {
	key, _ := base64.StdEncoding.DecodeString(c.CredentialKey)
	return key
}

// MasterDSN builds the DSN for the master catalog database.
func (c *Config) MasterDSN() string {
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=disable",
		c.DBHost, c.DBUser, c.DBPassword, c.DBName, c.DBPort)
}

package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/mcygoogle/demo-for-google-identity/internal/domain"
	"go.uber.org/zap"
)

// Client store backends
const (
	ClientStoreMemory   = "memory"
	ClientStorePostgres = "postgres"
)

// Config holds the application configuration
type Config struct {
	// Server configuration
	ServerPort  int
	Environment string

	// Token service configuration
	AccessTokenValidity time.Duration
	TokenSweepInterval  time.Duration
	TokenKeyBits        int

	// Authorization code configuration
	AuthCodeTTL time.Duration

	// Storage configuration
	ClientStore    string
	ClientSeedFile string
	RedisURL       string

	// Database configuration
	DBHost     string
	DBPort     int
	DBUser     string
	DBPassword string
	DBName     string

	// HTTP session and admin API configuration
	SessionAuthKey       string
	SessionEncryptionKey string
	AdminJWTSecret       string

	// Token endpoint rate limiting
	RateLimitRPS   float64
	RateLimitBurst int
}

// TokenServiceConfig holds the recognised token service options
type TokenServiceConfig struct {
	AccessTokenValidity time.Duration
	SweepInterval       time.Duration
	KeyBits             int
}

// DefaultTokenServiceConfig returns 10 minute tokens, an hourly sweep and a 256-bit key
func DefaultTokenServiceConfig() TokenServiceConfig {
	return TokenServiceConfig{
		AccessTokenValidity: domain.DefaultAccessTokenValidity,
		SweepInterval:       domain.DefaultTokenSweepInterval,
		KeyBits:             domain.DefaultTokenKeyBits,
	}
}

// NewConfig creates a new configuration with default values
func NewConfig() *Config {
	return &Config{
		ServerPort:  8080,
		Environment: "production",

		AccessTokenValidity: domain.DefaultAccessTokenValidity,
		TokenSweepInterval:  domain.DefaultTokenSweepInterval,
		TokenKeyBits:        domain.DefaultTokenKeyBits,

		AuthCodeTTL: 10 * time.Minute,

		ClientStore: ClientStoreMemory,

		DBHost: "localhost",
		DBPort: 5432,
		DBUser: "owner",
		DBName: "identity",

		RateLimitRPS:   10,
		RateLimitBurst: 20,
	}
}

// TokenServiceConfig projects the token service options out of the configuration
func (c *Config) TokenServiceConfig() TokenServiceConfig {
	return TokenServiceConfig{
		AccessTokenValidity: c.AccessTokenValidity,
		SweepInterval:       c.TokenSweepInterval,
		KeyBits:             c.TokenKeyBits,
	}
}

// LoadConfig loads configuration from environment variables
func LoadConfig(logger *zap.Logger) (*Config, error) {
	// Load .env from project root
	if err := godotenv.Load(); err != nil {
		logger.Debug("No .env file loaded", zap.Error(err))
	}

	cfg := NewConfig()
	var err error

	if cfg.ServerPort, err = getEnvInt("PORT", cfg.ServerPort); err != nil {
		return nil, err
	}
	if cfg.DBPort, err = getEnvInt("DB_PORT", cfg.DBPort); err != nil {
		return nil, err
	}
	if cfg.TokenKeyBits, err = getEnvInt("TOKEN_KEY_BITS", cfg.TokenKeyBits); err != nil {
		return nil, err
	}
	if cfg.RateLimitBurst, err = getEnvInt("RATE_LIMIT_BURST", cfg.RateLimitBurst); err != nil {
		return nil, err
	}
	if cfg.AccessTokenValidity, err = getEnvDuration("ACCESS_TOKEN_VALIDITY", cfg.AccessTokenValidity); err != nil {
		return nil, err
	}
	if cfg.TokenSweepInterval, err = getEnvDuration("TOKEN_SWEEP_INTERVAL", cfg.TokenSweepInterval); err != nil {
		return nil, err
	}
	if cfg.AuthCodeTTL, err = getEnvDuration("AUTH_CODE_TTL", cfg.AuthCodeTTL); err != nil {
		return nil, err
	}
	if cfg.RateLimitRPS, err = getEnvFloat("RATE_LIMIT_RPS", cfg.RateLimitRPS); err != nil {
		return nil, err
	}

	cfg.Environment = getEnv("ENVIRONMENT", cfg.Environment)
	cfg.ClientStore = getEnv("CLIENT_STORE", cfg.ClientStore)
	cfg.ClientSeedFile = getEnv("CLIENT_SEED_FILE", "")
	cfg.RedisURL = getEnv("REDIS_URL", "")
	cfg.DBHost = getEnv("DB_HOST", cfg.DBHost)
	cfg.DBUser = getEnv("DB_USER", cfg.DBUser)
	cfg.DBPassword = getEnv("DB_PASSWORD", "")
	cfg.DBName = getEnv("DB_NAME", cfg.DBName)
	cfg.SessionAuthKey = getEnv("SESSION_AUTH_KEY", "")
	cfg.SessionEncryptionKey = getEnv("SESSION_ENCRYPTION_KEY", "")
	cfg.AdminJWTSecret = getEnv("ADMIN_JWT_SECRET", "")

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger.Info("Configuration loaded",
		zap.Int("port", cfg.ServerPort),
		zap.String("client_store", cfg.ClientStore),
		zap.Bool("redis_code_store", cfg.RedisURL != ""),
		zap.Duration("access_token_validity", cfg.AccessTokenValidity),
		zap.Duration("token_sweep_interval", cfg.TokenSweepInterval),
		zap.Int("token_key_bits", cfg.TokenKeyBits))

	return cfg, nil
}

// Validate checks option values that would otherwise fail at startup
func (c *Config) Validate() error {
	switch c.TokenKeyBits {
	case 128, 192, 256:
	default:
		return fmt.Errorf("TOKEN_KEY_BITS must be 128, 192 or 256, got %d", c.TokenKeyBits)
	}
	if c.AccessTokenValidity <= 0 {
		return fmt.Errorf("ACCESS_TOKEN_VALIDITY must be positive, got %s", c.AccessTokenValidity)
	}
	if c.TokenSweepInterval <= 0 {
		return fmt.Errorf("TOKEN_SWEEP_INTERVAL must be positive, got %s", c.TokenSweepInterval)
	}
	switch c.ClientStore {
	case ClientStoreMemory, ClientStorePostgres:
	default:
		return fmt.Errorf("CLIENT_STORE must be %q or %q, got %q", ClientStoreMemory, ClientStorePostgres, c.ClientStore)
	}
	return nil
}

// getEnv gets an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

// getEnvInt gets an environment variable as an integer or returns a default value
func getEnvInt(key string, defaultValue int) (int, error) {
	value, exists := os.LookupEnv(key)
	if !exists {
		return defaultValue, nil
	}
	intValue, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return intValue, nil
}

// getEnvFloat gets an environment variable as a float or returns a default value
func getEnvFloat(key string, defaultValue float64) (float64, error) {
	value, exists := os.LookupEnv(key)
	if !exists {
		return defaultValue, nil
	}
	floatValue, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return floatValue, nil
}

// getEnvDuration gets an environment variable as a duration or returns a default value
func getEnvDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	value, exists := os.LookupEnv(key)
	if !exists {
		return defaultValue, nil
	}
	duration, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return duration, nil
}

// DatabaseURL returns the Postgres connection URL used by pgx and migrate
func (c *Config) DatabaseURL() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.DBUser, c.DBPassword),
		Host:     fmt.Sprintf("%s:%d", c.DBHost, c.DBPort),
		Path:     "/" + c.DBName,
		RawQuery: "sslmode=disable",
	}
	return u.String()
}

package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application
type Config struct {
	AppMode  string
	Port     string
	Database DatabaseConfig
	JWT      JWTConfig
	Billing  BillingConfig
	Webhook  WebhookConfig
}

// DatabaseConfig holds database connection and pool tuning
type DatabaseConfig struct {
	Host            string
	Port            string
	User            string
	Password        string
	DBName          string
	MaxIdleConns    int
	MaxOpenConns    int
	ConnMaxLifeMins int
}

// JWTConfig holds token validation configuration. Tokens are minted by the
// identity platform; this service only verifies them.
type JWTConfig struct {
	Secret          string
	AccessTokenMins int
}

// BillingConfig holds billing cycle configuration
type BillingConfig struct {
	GraceDays int
}

// WebhookConfig holds payment gateway and transition webhook configuration
type WebhookConfig struct {
	// KeyHash is the bcrypt hash of the key the payment gateway presents
	// on inbound payment webhooks. Empty disables the check (dev only).
	KeyHash string
	// NotifyURL receives outbound membership/ledger transition events.
	// Empty disables outbound notifications.
	NotifyURL string
}

// Global config instance
var AppConfig *Config

// Load reads configuration from .env file and environment variables
func Load() (*Config, error) {
	// Load .env file (ignore error if file doesn't exist in production)
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: .env file not found, using environment variables")
	}

	appMode := strings.TrimSpace(getEnv("APP_MODE", "dev"))
	if appMode != "dev" && appMode != "prod" {
		return nil, fmt.Errorf("invalid APP_MODE: '%s' (must be 'dev' or 'prod')", appMode)
	}

	config := &Config{
		AppMode:  appMode,
		Port:     getEnv("PORT", "3000"),
		Database: loadDatabaseConfig(appMode),
		JWT:      loadJWTConfig(appMode),
		Billing:  loadBillingConfig(),
		Webhook:  loadWebhookConfig(appMode),
	}

	AppConfig = config

	log.Printf("✅ Configuration loaded successfully [MODE: %s]", appMode)
	return config, nil
}

// loadDatabaseConfig loads database config based on mode
func loadDatabaseConfig(mode string) DatabaseConfig {
	prefix := "DEV_"
	if mode == "prod" {
		prefix = "PROD_"
	}

	return DatabaseConfig{
		Host:            getEnv(prefix+"DB_HOST", "localhost"),
		Port:            getEnv(prefix+"DB_PORT", "3306"),
		User:            getEnv(prefix+"DB_USER", "root"),
		Password:        getEnv(prefix+"DB_PASS", ""),
		DBName:          getEnv(prefix+"DB_NAME", "splitsub"),
		MaxIdleConns:    getEnvInt("DB_MAX_IDLE_CONNS", 5),
		MaxOpenConns:    getEnvInt("DB_MAX_OPEN_CONNS", 50),
		ConnMaxLifeMins: getEnvInt("DB_CONN_MAX_LIFE_MINUTES", 30),
	}
}

// loadJWTConfig loads JWT config based on mode
func loadJWTConfig(mode string) JWTConfig {
	prefix := "DEV_"
	if mode == "prod" {
		prefix = "PROD_"
	}

	accessMins, _ := strconv.Atoi(getEnv("ACCESS_TOKEN_MINUTES", "15"))

	return JWTConfig{
		Secret:          getEnv(prefix+"JWT_SECRET", "default_secret"),
		AccessTokenMins: accessMins,
	}
}

// loadBillingConfig loads billing cycle config
func loadBillingConfig() BillingConfig {
	graceDays, err := strconv.Atoi(getEnv("BILLING_GRACE_DAYS", "3"))
	if err != nil || graceDays < 0 {
		graceDays = 3
	}
	return BillingConfig{GraceDays: graceDays}
}

// loadWebhookConfig loads webhook config based on mode
func loadWebhookConfig(mode string) WebhookConfig {
	prefix := "DEV_"
	if mode == "prod" {
		prefix = "PROD_"
	}

	return WebhookConfig{
		KeyHash:   getEnv(prefix+"WEBHOOK_KEY_HASH", ""),
		NotifyURL: getEnv(prefix+"NOTIFY_WEBHOOK_URL", ""),
	}
}

// getEnv gets environment variable with default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt gets an integer environment variable; non-positive or
// unparseable values fall back to the default
func getEnvInt(key string, defaultValue int) int {
	n, err := strconv.Atoi(getEnv(key, ""))
	if err != nil || n <= 0 {
		return defaultValue
	}
	return n
}

// IsDev returns true if running in development mode
func (c *Config) IsDev() bool {
	return c.AppMode == "dev"
}

// IsProd returns true if running in production mode
func (c *Config) IsProd() bool {
	return c.AppMode == "prod"
}

// GetAllowedOrigins returns allowed origins for CORS
func (c *Config) GetAllowedOrigins() string {
	origins := getEnv("ALLOWED_ORIGINS", "")
	if origins == "" {
		if c.IsDev() {
			return "*"
		}
		return "https://splitsub.app"
	}
	return origins
}

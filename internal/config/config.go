package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

var ErrEmptyEnvironmentVariable = errors.New("empty environment variable")

// Config holds all application configuration
type Config struct {
	Database   DatabaseConfig
	Auth       AuthConfig
	Vendor     VendorConfig
	Services   ServicesConfig
	Reconciler ReconcilerConfig
	Server     ServerConfig
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	Host     string
	Username string
	Password string
	Name     string
}

// AuthConfig holds authentication-related configuration
type AuthConfig struct {
	JWTSecret            string
	OperatorPasswordHash string
}

// VendorConfig holds voice vendor (Retell) configuration
type VendorConfig struct {
	APIKey        string
	AgentID       string
	FromNumber    string
	WebhookSecret string
}

// ServicesConfig holds external service API keys and configuration
type ServicesConfig struct {
	OpenAIAPIKey     string
	ResendAPIKey     string
	AlertEmailFrom   string
	AlertEmailTo     string
	TwilioAccountSID string
	TwilioAuthToken  string
	WebAppURI        string
}

// ReconcilerConfig holds extraction worker pool configuration
type ReconcilerConfig struct {
	Workers int // Number of workers processing extraction jobs
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port int
}

// Load reads and validates all required environment variables
func Load() (*Config, error) {
	// Load env.local in non-production environments
	if os.Getenv("GO_ENV") != "production" {
		if err := godotenv.Load("env.local"); err != nil {
			return nil, fmt.Errorf("failed to load env.local: %w", err)
		}
	}

	cfg := &Config{}

	// Database configuration
	var err error
	if cfg.Database.Host, err = requireEnv("DB_HOST"); err != nil {
		return nil, err
	}
	if cfg.Database.Username, err = requireEnv("DB_USERNAME"); err != nil {
		return nil, err
	}
	if cfg.Database.Password, err = requireEnv("DB_PASSWORD"); err != nil {
		return nil, err
	}
	if cfg.Database.Name, err = requireEnv("DB_NAME"); err != nil {
		return nil, err
	}

	// Auth configuration
	if cfg.Auth.JWTSecret, err = requireEnv("JWT_SECRET"); err != nil {
		return nil, err
	}
	if cfg.Auth.OperatorPasswordHash, err = requireEnv("OPERATOR_PASSWORD_HASH"); err != nil {
		return nil, err
	}

	// Vendor configuration
	if cfg.Vendor.APIKey, err = requireEnv("RETELL_API_KEY"); err != nil {
		return nil, err
	}
	if cfg.Vendor.AgentID, err = requireEnv("RETELL_AGENT_ID"); err != nil {
		return nil, err
	}
	if cfg.Vendor.WebhookSecret, err = requireEnv("RETELL_WEBHOOK_SECRET"); err != nil {
		return nil, err
	}
	cfg.Vendor.FromNumber = getEnvWithDefault("RETELL_FROM_NUMBER", "")

	// Services configuration
	if cfg.Services.OpenAIAPIKey, err = requireEnv("OPENAI_API_KEY"); err != nil {
		return nil, err
	}
	if cfg.Services.WebAppURI, err = requireEnv("WEBAPP_URI"); err != nil {
		return nil, err
	}
	cfg.Services.ResendAPIKey = getEnvWithDefault("RESEND_API_KEY", "")
	cfg.Services.AlertEmailFrom = getEnvWithDefault("ALERT_EMAIL_FROM", "")
	cfg.Services.AlertEmailTo = getEnvWithDefault("ALERT_EMAIL_TO", "")
	cfg.Services.TwilioAccountSID = getEnvWithDefault("TWILIO_ACCOUNT_SID", "")
	cfg.Services.TwilioAuthToken = getEnvWithDefault("TWILIO_AUTH_TOKEN", "")

	// Reconciler configuration
	reconcilerWorkers := getEnvWithDefault("RECONCILER_WORKERS", "4")
	cfg.Reconciler.Workers, err = strconv.Atoi(reconcilerWorkers)
	if err != nil {
		return nil, fmt.Errorf("failed to parse RECONCILER_WORKERS: %w", err)
	}

	// Server configuration
	serverPort, err := requireEnv("SERVER_PORT")
	if err != nil {
		return nil, err
	}
	cfg.Server.Port, err = strconv.Atoi(serverPort)
	if err != nil {
		return nil, fmt.Errorf("failed to parse SERVER_PORT: %w", err)
	}

	return cfg, nil
}

// ConnectionString returns a PostgreSQL connection string
func (c *DatabaseConfig) ConnectionString() string {
	return fmt.Sprintf("postgres://%s:%s@%s/%s",
		c.Username, c.Password, c.Host, c.Name)
}

// requireEnv retrieves an environment variable or returns an error if empty
func requireEnv(key string) (string, error) {
	value := os.Getenv(key)
	if value == "" {
		return "", fmt.Errorf("%s is not set: %w", key, ErrEmptyEnvironmentVariable)
	}
	return value, nil
}

// getEnvWithDefault retrieves an environment variable or returns a default value
func getEnvWithDefault(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

// Package config loads server configuration from environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration for the server.
type Config struct {
	// Server settings
	Port        int
	CORSOrigins []string

	// Logging
	LogLevel  string
	LogFormat string // "json" or "console"

	// GitHub OAuth (login gate)
	GitHubClientID     string
	GitHubClientSecret string
	GitHubAllowedOrg   string
	GitHubAllowedTeam  string

	// Object storage (platform storage service)
	StorageAPIURL   string
	StorageAPIToken string

	// Bucket mount settings for the sandbox instance
	BucketName            string
	BucketS3Endpoint      string
	BucketAccountID       string
	BucketAccessKeyID     string
	BucketSecretAccessKey string

	// Sandbox platform API
	SandboxAPIURL   string
	SandboxAPIToken string

	// Terminal settings
	TerminalPort        int
	TerminalSettleDelay time.Duration

	// DevAuthBypass skips authentication for localhost requests so the UI
	// can be developed without the OAuth gate.
	DevAuthBypass bool
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{}

	cfg.Port = getEnvInt("PORT", 8080)
	cfg.CORSOrigins = getEnvList("CORS_ORIGINS", []string{"http://localhost:3000"})

	cfg.LogLevel = getEnv("LOG_LEVEL", "info")
	cfg.LogFormat = getEnv("LOG_FORMAT", "console")

	cfg.GitHubClientID = getEnv("GITHUB_CLIENT_ID", "")
	cfg.GitHubClientSecret = getEnv("GITHUB_CLIENT_SECRET", "")
	cfg.GitHubAllowedOrg = getEnv("GITHUB_ALLOWED_ORG", "")
	cfg.GitHubAllowedTeam = getEnv("GITHUB_ALLOWED_TEAM", "")

	cfg.StorageAPIURL = getEnv("STORAGE_API_URL", "")
	cfg.StorageAPIToken = getEnv("STORAGE_API_TOKEN", "")

	cfg.BucketName = getEnv("BUCKET_NAME", "")
	cfg.BucketS3Endpoint = getEnv("BUCKET_S3_ENDPOINT", "")
	cfg.BucketAccountID = getEnv("BUCKET_ACCOUNT_ID", "")
	cfg.BucketAccessKeyID = getEnv("BUCKET_ACCESS_KEY_ID", "")
	cfg.BucketSecretAccessKey = getEnv("BUCKET_SECRET_ACCESS_KEY", "")

	cfg.SandboxAPIURL = getEnv("SANDBOX_API_URL", "")
	cfg.SandboxAPIToken = getEnv("SANDBOX_API_TOKEN", "")

	cfg.TerminalPort = getEnvInt("TERMINAL_PORT", 9000)
	cfg.TerminalSettleDelay = getEnvDuration("TERMINAL_SETTLE_DELAY", 1200*time.Millisecond)

	cfg.DevAuthBypass = getEnvBool("DEV_AUTH_BYPASS", false)

	if cfg.Port <= 0 || cfg.Port > 65535 {
		return nil, fmt.Errorf("PORT out of range: %d", cfg.Port)
	}

	return cfg, nil
}

// MountEndpoint derives the S3-compatible endpoint for the bucket mount,
// either from the explicit endpoint or from the account identifier. Empty
// when neither is configured.
func (c *Config) MountEndpoint() string {
	if endpoint := strings.TrimSpace(c.BucketS3Endpoint); endpoint != "" {
		return endpoint
	}
	if account := strings.TrimSpace(c.BucketAccountID); account != "" {
		return fmt.Sprintf("https://%s.r2.cloudflarestorage.com", account)
	}
	return ""
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvList(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		return strings.Split(value, ",")
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

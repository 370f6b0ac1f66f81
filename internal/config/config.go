package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
)

// Config holds application configuration
type Config struct {
	Port                 int
	Database             DatabaseConfig
	Discord              DiscordConfig
	MediaWiki            MediaWikiConfig
	JWTSecret            string
	VerificationBaseURL  string
	CallbackURL          string
	PurgeIntervalMinutes int
	GrantIntervalMinutes int
	TokenExpiryHours     int
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	DSN          string
	MaxOpenConns int
	MaxIdleConns int
}

// DiscordConfig holds Discord bot configuration
type DiscordConfig struct {
	Token            string
	Prefix           string
	WikiAuthorRoleID string
	AllowedRoleIDs   []string
}

// MediaWikiConfig holds MediaWiki OAuth1 consumer configuration
type MediaWikiConfig struct {
	BaseURL        string
	APIURL         string
	ConsumerKey    string
	ConsumerSecret string
}

// Load loads configuration from environment variables
func Load() *Config {
	cfg := &Config{
		Port: getEnvInt("PORT", 8080),
		Database: DatabaseConfig{
			DSN:          getEnv("DATABASE_URL", ""),
			MaxOpenConns: getEnvInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns: getEnvInt("DB_MAX_IDLE_CONNS", 5),
		},
		Discord: DiscordConfig{
			Token:            getEnv("DISCORD_TOKEN", ""),
			Prefix:           getEnv("DISCORD_PREFIX", "$w"),
			WikiAuthorRoleID: getEnv("WIKI_AUTHOR_ROLE_ID", ""),
			AllowedRoleIDs:   splitAndTrim(getEnv("ALLOWED_ROLE_IDS", ""), ","),
		},
		MediaWiki: MediaWikiConfig{
			BaseURL:        strings.TrimRight(getEnv("MW_BASE_URL", ""), "/"),
			APIURL:         getEnv("MW_API_URL", ""),
			ConsumerKey:    getEnv("MW_CONSUMER_KEY", ""),
			ConsumerSecret: getEnv("MW_CONSUMER_SECRET", ""),
		},
		JWTSecret:            getEnv("JWT_SECRET", ""),
		VerificationBaseURL:  strings.TrimRight(getEnv("VERIFICATION_BASE_URL", ""), "/"),
		CallbackURL:          getEnv("CALLBACK_URL", ""),
		PurgeIntervalMinutes: getEnvInt("PURGE_INTERVAL_MINUTES", 30),
		GrantIntervalMinutes: getEnvInt("ROLE_GRANT_INTERVAL_MINUTES", 5),
		TokenExpiryHours:     getEnvInt("TOKEN_EXPIRY_HOURS", 3),
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Configuration validation failed: %v", err)
	}

	return cfg
}

// Validate validates the configuration
func (c *Config) Validate() error {
	required := []struct {
		name  string
		value string
	}{
		{"DISCORD_TOKEN", c.Discord.Token},
		{"DATABASE_URL", c.Database.DSN},
		{"VERIFICATION_BASE_URL", c.VerificationBaseURL},
		{"CALLBACK_URL", c.CallbackURL},
		{"JWT_SECRET", c.JWTSecret},
		{"MW_BASE_URL", c.MediaWiki.BaseURL},
		{"MW_API_URL", c.MediaWiki.APIURL},
		{"MW_CONSUMER_KEY", c.MediaWiki.ConsumerKey},
		{"MW_CONSUMER_SECRET", c.MediaWiki.ConsumerSecret},
	}

	var missing []string
	for _, v := range required {
		if v.value == "" {
			missing = append(missing, v.name)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required environment variables: %s", strings.Join(missing, ", "))
	}

	if len(c.JWTSecret) < 16 {
		return fmt.Errorf("JWT_SECRET must be at least 16 characters long")
	}

	if c.PurgeIntervalMinutes <= 0 || c.GrantIntervalMinutes <= 0 {
		return fmt.Errorf("job intervals must be positive")
	}
	if c.TokenExpiryHours <= 0 {
		return fmt.Errorf("TOKEN_EXPIRY_HOURS must be positive")
	}

	return nil
}

func splitAndTrim(s, sep string) []string {
	parts := []string{}
	for _, part := range strings.Split(s, sep) {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			parts = append(parts, trimmed)
		}
	}
	return parts
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return fallback
}

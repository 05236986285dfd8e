package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	Database DatabaseConfig
	Server   ServerConfig
	Auth     AuthConfig
	Storage  StorageConfig
	Telegram TelegramConfig
	Jobs     JobsConfig
	Log      LogConfig
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	Driver   string // postgres or sqlite
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
	URL      string // overrides the discrete fields when set
	Path     string // sqlite file path
}

// ServerConfig holds server settings
type ServerConfig struct {
	Port           string
	AllowedOrigins []string
}

// AuthConfig holds identity provider token settings
type AuthConfig struct {
	JWTSecret     string
	Issuer        string
	AdminUserIDs  []string
	WebhookSecret string
}

// StorageConfig holds S3-compatible bucket settings
type StorageConfig struct {
	Endpoint        string
	Region          string
	Bucket          string
	AccessKeyID     string
	SecretAccessKey string
	PublicBaseURL   string
}

// Enabled reports whether a bucket is configured
func (s StorageConfig) Enabled() bool {
	return s.Bucket != "" && s.AccessKeyID != ""
}

// TelegramConfig holds the lead alert bot settings
type TelegramConfig struct {
	BotToken    string
	AdminChatID int64
}

// Enabled reports whether lead alerts should be sent
func (t TelegramConfig) Enabled() bool {
	return t.BotToken != "" && t.AdminChatID != 0
}

// JobsConfig holds background job settings
type JobsConfig struct {
	RedeliveryInterval time.Duration
	RedeliveryMinAge   time.Duration
}

// LogConfig holds logger settings
type LogConfig struct {
	Level  string
	Format string
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// Try to load .env file (ignore error if it doesn't exist)
	_ = godotenv.Load()

	chatID, err := strconv.ParseInt(getEnv("TELEGRAM_ADMIN_CHAT_ID", "0"), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid TELEGRAM_ADMIN_CHAT_ID: %w", err)
	}

	redeliveryInterval, err := time.ParseDuration(getEnv("REDELIVERY_INTERVAL", "5m"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDELIVERY_INTERVAL: %w", err)
	}

	redeliveryMinAge, err := time.ParseDuration(getEnv("REDELIVERY_MIN_AGE", "2m"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDELIVERY_MIN_AGE: %w", err)
	}

	config := &Config{
		Database: databaseFromEnv(),
		Server: ServerConfig{
			Port:           getEnv("SERVER_PORT", "8080"),
			AllowedOrigins: splitList(getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:3000")),
		},
		Auth: AuthConfig{
			JWTSecret:     getEnv("AUTH_JWT_SECRET", ""),
			Issuer:        getEnv("AUTH_ISSUER", ""),
			AdminUserIDs:  splitList(getEnv("ADMIN_USER_IDS", "")),
			WebhookSecret: getEnv("IDENTITY_WEBHOOK_SECRET", ""),
		},
		Storage: StorageConfig{
			Endpoint:        getEnv("STORAGE_ENDPOINT", ""),
			Region:          getEnv("STORAGE_REGION", "auto"),
			Bucket:          getEnv("STORAGE_BUCKET", ""),
			AccessKeyID:     getEnv("STORAGE_ACCESS_KEY_ID", ""),
			SecretAccessKey: getEnv("STORAGE_SECRET_ACCESS_KEY", ""),
			PublicBaseURL:   getEnv("STORAGE_PUBLIC_BASE_URL", ""),
		},
		Telegram: TelegramConfig{
			BotToken:    getEnv("TELEGRAM_BOT_TOKEN", ""),
			AdminChatID: chatID,
		},
		Jobs: JobsConfig{
			RedeliveryInterval: redeliveryInterval,
			RedeliveryMinAge:   redeliveryMinAge,
		},
		Log: logFromEnv(),
	}

	// Validate required fields
	if config.Auth.JWTSecret == "" {
		return nil, fmt.Errorf("AUTH_JWT_SECRET is required")
	}

	if err := config.Database.validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// LoadDatabase loads only the database and log settings. Used by tools such as
// the migration runner that never verify identity tokens.
func LoadDatabase() (*Config, error) {
	_ = godotenv.Load()

	config := &Config{
		Database: databaseFromEnv(),
		Log:      logFromEnv(),
	}
	if err := config.Database.validate(); err != nil {
		return nil, err
	}
	return config, nil
}

func databaseFromEnv() DatabaseConfig {
	return DatabaseConfig{
		Driver:   getEnv("DB_DRIVER", "postgres"),
		Host:     getEnv("DB_HOST", "localhost"),
		Port:     getEnv("DB_PORT", "5432"),
		User:     getEnv("DB_USER", "postgres"),
		Password: getEnv("DB_PASSWORD", ""),
		DBName:   getEnv("DB_NAME", "affiliate_platform"),
		SSLMode:  getEnv("DB_SSLMODE", "disable"),
		URL:      getEnv("DATABASE_URL", ""),
		Path:     getEnv("DB_PATH", "affiliate.db"),
	}
}

func logFromEnv() LogConfig {
	return LogConfig{
		Level:  getEnv("LOG_LEVEL", "info"),
		Format: getEnv("LOG_FORMAT", "text"),
	}
}

func (d DatabaseConfig) validate() error {
	if d.Driver != "postgres" && d.Driver != "sqlite" {
		return fmt.Errorf("unsupported DB_DRIVER %q", d.Driver)
	}
	return nil
}

// GetDSN returns the PostgreSQL connection string
func (c *Config) GetDSN() string {
	if c.Database.URL != "" {
		return c.Database.URL
	}
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Database.Host,
		c.Database.Port,
		c.Database.User,
		c.Database.Password,
		c.Database.DBName,
		c.Database.SSLMode,
	)
}

// getEnv gets an environment variable with a fallback default value
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

type Config struct {
	AppEnv                 string
	LogLevel               slog.Level
	LogDir                 string
	ApiServicePort         string
	CORSAllowedOrigins     []string
	PostgreSQLHost         string `validate:"required"`
	PostgreSQLPort         int64  `validate:"gt=0"`
	PostgreSQLUser         string `validate:"required"`
	PostgreSQLPassword     string
	PostgreSQLDatabase     string `validate:"required"`
	AccessTokenSecret      string `validate:"required,min=16"`
	RefreshTokenSecret     string `validate:"required,min=16"`
	AccessTokenExpiration  int64  `validate:"gt=0"` // seconds
	RefreshTokenExpiration int64  `validate:"gt=0"` // seconds
	RedisHost              string `validate:"required"`
	RedisPort              int64  `validate:"gt=0"`
	RedisPassword          string
	RedisDatabase          int64 `validate:"gte=0"`
	DBTimeout              int64 `validate:"gt=0"` // seconds, per ledger call
	RedisTimeout           int64 `validate:"gt=0"` // milliseconds, per revocation store call
	TokenSweepInterval     int64 `validate:"gt=0"` // seconds
}

func LoadConfig() *Config {
	return &Config{
		AppEnv:                 getEnv("APP_ENV", "development"),                          // Default development
		LogLevel:               getLogLevel(),                                             // Default INFO
		LogDir:                 getEnv("LOG_DIR", ""),                                     // Default stdout only
		ApiServicePort:         getEnv("API_SERVICE_PORT", "8080"),                        // Default 8080
		CORSAllowedOrigins:     getEnvAsSlice("CORS_ALLOWED_ORIGINS", []string{"*"}),      // Default any origin
		PostgreSQLHost:         getEnv("POSTGRESQL_HOST", "db"),                           // Default db
		PostgreSQLPort:         getEnvAsInt64("POSTGRESQL_PORT", 5432),                    // Default 5432
		PostgreSQLUser:         getEnv("POSTGRESQL_USER", "tokenguard_user"),              // Default user
		PostgreSQLPassword:     getEnv("POSTGRESQL_PASSWORD", "tokenguard_password"),      // Default password
		PostgreSQLDatabase:     getEnv("POSTGRESQL_DATABASE", "tokenguard_db"),            // Default database name
		AccessTokenSecret:      getEnv("ACCESS_TOKEN_SECRET", "tokenguard_access_secret"), // Default access secret
		RefreshTokenSecret:     getEnv("REFRESH_TOKEN_SECRET", "tokenguard_refresh_secret"),
		AccessTokenExpiration:  getEnvAsInt64("ACCESS_TOKEN_EXPIRATION", 1800),    // Default 30 minutes
		RefreshTokenExpiration: getEnvAsInt64("REFRESH_TOKEN_EXPIRATION", 604800), // Default 7 days
		RedisHost:              getEnv("REDIS_HOST", "redis"),                     // Default redis
		RedisPort:              getEnvAsInt64("REDIS_PORT", 6379),                 // Default 6379
		RedisPassword:          getEnv("REDIS_PASSWORD", ""),                      // Default empty
		RedisDatabase:          getEnvAsInt64("REDIS_DATABASE", 0),                // Default 0
		DBTimeout:              getEnvAsInt64("DB_TIMEOUT", 5),                    // Default 5 seconds
		RedisTimeout:           getEnvAsInt64("REDIS_TIMEOUT", 500),               // Default 500 ms
		TokenSweepInterval:     getEnvAsInt64("TOKEN_SWEEP_INTERVAL", 3600),       // Default 1 hour
	}
}

// Validate checks the loaded values before any client is constructed.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if c.AccessTokenSecret == c.RefreshTokenSecret {
		return ErrSharedTokenSecret
	}
	return nil
}

// AccessTokenTTL returns the access token lifetime.
func (c *Config) AccessTokenTTL() time.Duration {
	return time.Duration(c.AccessTokenExpiration) * time.Second
}

// RefreshTokenTTL returns the refresh token lifetime.
func (c *Config) RefreshTokenTTL() time.Duration {
	return time.Duration(c.RefreshTokenExpiration) * time.Second
}

func (c *Config) DBQueryTimeout() time.Duration {
	return time.Duration(c.DBTimeout) * time.Second
}

func (c *Config) RedisCallTimeout() time.Duration {
	return time.Duration(c.RedisTimeout) * time.Millisecond
}

func (c *Config) SweepInterval() time.Duration {
	return time.Duration(c.TokenSweepInterval) * time.Second
}

// ErrSharedTokenSecret is returned when access and refresh tokens would be signed with the same key
var ErrSharedTokenSecret = errors.New("access and refresh token secrets must differ")

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvAsInt64(key string, fallback int64) int64 {
	if valueStr, exists := os.LookupEnv(key); exists {
		if value, err := strconv.ParseInt(valueStr, 10, 64); err == nil {
			return value
		}
	}
	return fallback
}

func getEnvAsSlice(key string, fallback []string) []string {
	valueStr, exists := os.LookupEnv(key)
	if !exists {
		return fallback
	}

	var values []string
	for _, value := range strings.Split(valueStr, ",") {
		if value = strings.TrimSpace(value); value != "" {
			values = append(values, value)
		}
	}
	return values
}

func getLogLevel() slog.Level {
	levelStr := getEnv("LOG_LEVEL", "INFO")

	switch strings.ToUpper(levelStr) {
	case "DEBUG":
		return slog.LevelDebug
	case "INFO":
		return slog.LevelInfo
	case "WARN":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

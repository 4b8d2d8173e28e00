// Package config handles loading application configuration from environment
// variables. All config is centralized here so no other package reads env
// vars directly. Sensible defaults are provided for development.
package config

import (
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
)

// DefaultAdminPassword is the fallback admin secret used when
// ADMIN_PASSWORD is unset. It is rejected in production.
const DefaultAdminPassword = "NEXUS_ADMIN"

// Config holds all application configuration. Populated from environment
// variables at startup. Passed to other packages via dependency injection.
type Config struct {
	// Env is the runtime environment: "development" or "production".
	Env string

	// Port is the HTTP listen port (default: 8080).
	Port int

	// BaseURL is the public-facing URL used in outgoing mail.
	BaseURL string

	// ReadTimeout bounds reading a whole request, uploads included.
	ReadTimeout time.Duration

	// WriteTimeout bounds writing a response. It must outlast AI_TIMEOUT;
	// zero disables it.
	WriteTimeout time.Duration

	// LogLevel controls log verbosity: "debug", "info", "warn", "error".
	LogLevel string

	// StaticDir is the built frontend served for non-API paths. Empty
	// disables static serving.
	StaticDir string

	// CORSOrigins lists origins allowed to call the API. "*" allows any.
	CORSOrigins []string

	// TrustedProxies lists peers (CIDRs or bare IPs) whose forwarding
	// headers are believed when resolving the client IP.
	TrustedProxies []string

	// KVBackend selects the key-value store: "redis" or "mariadb".
	KVBackend string

	// Database holds MariaDB connection settings.
	Database DatabaseConfig

	// Redis holds Redis connection settings.
	Redis RedisConfig

	// Auth holds authentication-related settings.
	Auth AuthConfig

	// Admin holds the shared-secret admin gate settings.
	Admin AdminConfig

	// AI holds generative provider settings.
	AI AIConfig

	// Storage holds object storage settings.
	Storage StorageConfig
}

// DatabaseConfig holds MariaDB connection parameters. Individual fields
// (Host, User, Password, Name) are read from separate env vars so
// container orchestrators can manage each independently.
// If DATABASE_URL is set, it takes precedence over the individual fields.
type DatabaseConfig struct {
	// Host is the MariaDB address in host:port format (default: "localhost:3306").
	// If no port is specified, 3306 is appended automatically.
	Host string

	User     string
	Password string
	Name     string

	// dsnOverride is set when DATABASE_URL is provided, bypassing individual fields.
	dsnOverride string

	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration

	// MigrationsPath is a directory of golang-migrate SQL files. Empty uses
	// the migrations embedded in the binary.
	MigrationsPath string
}

// DSN returns the go-sql-driver/mysql connection string. If DATABASE_URL was
// set, it is returned as-is. Otherwise the DSN is built from the individual
// fields using the driver's Config.FormatDSN() to safely handle special
// characters in passwords.
func (d DatabaseConfig) DSN() string {
	if d.dsnOverride != "" {
		return d.dsnOverride
	}
	cfg := mysql.NewConfig()
	cfg.User = d.User
	cfg.Passwd = d.Password
	cfg.Net = "tcp"
	cfg.Addr = ensurePort(d.Host, "3306")
	cfg.DBName = d.Name
	cfg.ParseTime = true
	return cfg.FormatDSN()
}

// ensurePort appends the default port if the host string doesn't include one.
func ensurePort(host, defaultPort string) string {
	_, _, err := net.SplitHostPort(host)
	if err != nil {
		return net.JoinHostPort(host, defaultPort)
	}
	return host
}

// RedisConfig holds Redis connection parameters.
type RedisConfig struct {
	// URL is the Redis connection URL (e.g., "redis://localhost:6379").
	URL string
}

// AuthConfig holds user authentication settings.
type AuthConfig struct {
	// SecretKey keys the at-rest encryption of stored secrets and signs
	// admin tokens.
	SecretKey string

	// SessionTTL is how long a bearer session stays valid.
	SessionTTL time.Duration

	// InitialCredits is the balance granted to newly registered users.
	InitialCredits int
}

// AdminConfig holds the admin gate settings.
type AdminConfig struct {
	Password string

	// TokenTTL is the lifetime of tokens issued by /api/verify-auth.
	TokenTTL time.Duration
}

// AIConfig holds settings for the generative completion provider.
type AIConfig struct {
	// APIKey is the fallback key used when the system config has none.
	APIKey string

	Model       string
	Temperature float64

	// Timeout bounds a single provider call.
	Timeout time.Duration
}

// StorageConfig holds object storage settings.
type StorageConfig struct {
	// Backend is "s3", "gcs" or "none".
	Backend string

	S3Bucket          string
	S3Region          string
	S3Endpoint        string
	S3AccessKeyID     string
	S3SecretAccessKey string

	GCSBucket string

	// MaxUploadSize is the maximum request body accepted by upload routes.
	MaxUploadSize int64
}

// Load reads configuration from environment variables with sensible defaults.
// Returns an error if required variables are missing.
func Load() (*Config, error) {
	cfg := &Config{
		Env:         getEnv("ENV", "development"),
		Port:        getEnvInt("PORT", 8080),
		BaseURL:     getEnv("BASE_URL", "http://localhost:8080"),
		LogLevel:    getEnv("LOG_LEVEL", "debug"),
		StaticDir:   getEnv("STATIC_DIR", ""),

		ReadTimeout:  getEnvDuration("SERVER_READ_TIMEOUT", 5*time.Minute),
		WriteTimeout: getEnvDuration("SERVER_WRITE_TIMEOUT", 10*time.Minute),
		CORSOrigins: getEnvList("CORS_ALLOWED_ORIGINS", []string{"*"}),
		KVBackend:   strings.ToLower(getEnv("KV_BACKEND", "redis")),

		TrustedProxies: getEnvList("TRUSTED_PROXIES", []string{
			"127.0.0.0/8", "10.0.0.0/8", "172.16.0.0/12", "192.168.0.0/16", "fd00::/8",
		}),

		Database: DatabaseConfig{
			Host:            getEnv("DB_HOST", "localhost:3306"),
			User:            getEnv("DB_USER", "nexus"),
			Password:        getEnv("DB_PASSWORD", "nexus"),
			Name:            getEnv("DB_NAME", "nexus"),
			dsnOverride:     getEnv("DATABASE_URL", ""),
			MaxOpenConns:    getEnvInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    getEnvInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: getEnvDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute),
			MigrationsPath:  getEnv("MIGRATIONS_PATH", ""),
		},

		Redis: RedisConfig{
			URL: getEnv("REDIS_URL", "redis://localhost:6379"),
		},

		Auth: AuthConfig{
			SecretKey:      getEnv("SECRET_KEY", ""),
			SessionTTL:     getEnvDuration("SESSION_TTL", 7*24*time.Hour),
			InitialCredits: getEnvInt("AUTH_INITIAL_CREDITS", 5),
		},

		Admin: AdminConfig{
			Password: strings.TrimSpace(getEnv("ADMIN_PASSWORD", DefaultAdminPassword)),
			TokenTTL: getEnvDuration("ADMIN_TOKEN_TTL", 12*time.Hour),
		},

		AI: AIConfig{
			APIKey:      getEnv("GEMINI_API_KEY", ""),
			Model:       getEnv("GEMINI_MODEL", "gemini-2.5-flash"),
			Temperature: getEnvFloat("AI_TEMPERATURE", 0.4),
			Timeout:     getEnvDuration("AI_TIMEOUT", 90*time.Second),
		},

		Storage: StorageConfig{
			Backend:           strings.ToLower(getEnv("STORAGE_BACKEND", "none")),
			S3Bucket:          getEnv("S3_BUCKET", ""),
			S3Region:          getEnv("S3_REGION", "auto"),
			S3Endpoint:        getEnv("S3_ENDPOINT", ""),
			S3AccessKeyID:     getEnv("S3_ACCESS_KEY_ID", ""),
			S3SecretAccessKey: getEnv("S3_SECRET_ACCESS_KEY", ""),
			GCSBucket:         getEnv("GCS_BUCKET", ""),
			MaxUploadSize:     getEnvInt64("MAX_UPLOAD_SIZE", 100*1024*1024), // 100MB
		},
	}

	if cfg.KVBackend != "redis" && cfg.KVBackend != "mariadb" {
		return nil, fmt.Errorf("KV_BACKEND must be \"redis\" or \"mariadb\", got %q", cfg.KVBackend)
	}

	if cfg.WriteTimeout > 0 && cfg.WriteTimeout <= cfg.AI.Timeout {
		return nil, fmt.Errorf("SERVER_WRITE_TIMEOUT (%s) must exceed AI_TIMEOUT (%s)", cfg.WriteTimeout, cfg.AI.Timeout)
	}

	switch cfg.Storage.Backend {
	case "none":
	case "s3":
		if cfg.Storage.S3Bucket == "" {
			return nil, fmt.Errorf("S3_BUCKET is required when STORAGE_BACKEND=s3")
		}
	case "gcs":
		if cfg.Storage.GCSBucket == "" {
			return nil, fmt.Errorf("GCS_BUCKET is required when STORAGE_BACKEND=gcs")
		}
	default:
		return nil, fmt.Errorf("STORAGE_BACKEND must be \"s3\", \"gcs\" or \"none\", got %q", cfg.Storage.Backend)
	}

	// Validate required fields in production. Case-insensitive check catches
	// common variants like "Production", "prod", etc.
	if cfg.IsProduction() {
		if cfg.Auth.SecretKey == "" {
			return nil, fmt.Errorf("SECRET_KEY is required in production")
		}
		if len(cfg.Auth.SecretKey) < 32 {
			return nil, fmt.Errorf("SECRET_KEY must be at least 32 characters in production")
		}
		if cfg.Admin.Password == "" || cfg.Admin.Password == DefaultAdminPassword {
			return nil, fmt.Errorf("ADMIN_PASSWORD must be set to a non-default value in production")
		}
	}

	// Provide a dev-only default secret so local dev works without .env.
	if cfg.Auth.SecretKey == "" {
		cfg.Auth.SecretKey = "dev-secret-key-do-not-use-in-production!!"
	}
	if cfg.Admin.Password == "" {
		cfg.Admin.Password = DefaultAdminPassword
	}

	return cfg, nil
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	env := strings.ToLower(c.Env)
	return env == "development" || env == "dev"
}

// IsProduction returns true if running in production mode.
func (c *Config) IsProduction() bool {
	env := strings.ToLower(c.Env)
	return env == "production" || env == "prod"
}

// --- Helper functions for reading environment variables ---

// getEnv reads a string env var or returns the default.
func getEnv(key, defaultVal string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	return defaultVal
}

// getEnvInt reads an integer env var or returns the default.
func getEnvInt(key string, defaultVal int) int {
	if val, ok := os.LookupEnv(key); ok {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

// getEnvInt64 reads an int64 env var or returns the default.
func getEnvInt64(key string, defaultVal int64) int64 {
	if val, ok := os.LookupEnv(key); ok {
		if i, err := strconv.ParseInt(val, 10, 64); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvFloat(key string, defaultVal float64) float64 {
	if val, ok := os.LookupEnv(key); ok {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			return f
		}
	}
	return defaultVal
}

// getEnvDuration reads a duration env var (e.g., "168h") or returns the default.
func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	if val, ok := os.LookupEnv(key); ok {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return defaultVal
}

// getEnvList reads a comma-separated env var, dropping empty entries.
func getEnvList(key string, defaultVal []string) []string {
	val, ok := os.LookupEnv(key)
	if !ok {
		return defaultVal
	}
	var out []string
	for _, part := range strings.Split(val, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return defaultVal
	}
	return out
}

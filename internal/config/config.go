package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"
)

// Config holds all configuration for the application
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	JWT       JWTConfig
	RateLimit RateLimitConfig
	Storage   StorageConfig
	Worker    WorkerConfig
	Redis     RedisConfig
	SMTP      SMTPConfig
	Google    GoogleConfig
	Admin     AdminConfig
}

type ServerConfig struct {
	Host      string
	Port      int
	PublicURL string
	ClientURL string
	// IPRateLimit is the coarse per-IP requests/second applied before authentication.
	IPRateLimit float64
}

type DatabaseConfig struct {
	Driver   string // postgres or memory
	Host     string
	Port     int
	User     string
	Password string
	Name     string
	SSLMode  string
}

type JWTConfig struct {
	Secret        string
	RefreshSecret string
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
}

type RateLimitConfig struct {
	Max    int
	Window time.Duration
	Store  string // memory or redis
}

type StorageConfig struct {
	Provider  string // local, s3, r2
	ExportTTL time.Duration
	S3        S3Config
}

type S3Config struct {
	BucketName string `env:"S3_BUCKET_NAME"`
	Endpoint   string `env:"S3_ENDPOINT"`
	Region     string `env:"S3_REGION"`
	AccessKey  string `env:"S3_ACCESS_KEY"`
	SecretKey  string `env:"S3_SECRET_KEY"`
}

// Enabled reports whether enough S3 settings are present to build a client.
func (c S3Config) Enabled() bool {
	return c.BucketName != "" && c.AccessKey != "" && c.SecretKey != ""
}

type WorkerConfig struct {
	Enabled     bool
	Concurrency int
}

type RedisConfig struct {
	Addr     string
	Password string
	Username string
	DB       int
}

type SMTPConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	From     string
}

type GoogleConfig struct {
	UserInfoURL string
}

// AdminConfig describes the bootstrap administrator created on first start.
type AdminConfig struct {
	Email     string
	Password  string
	FirstName string
	LastName  string
}

var (
	config *Config
	once   sync.Once
)

// GetConfig returns the process-wide config, loading it on first use.
func GetConfig() *Config {
	once.Do(func() {
		config, _ = Load()
	})
	return config
}

func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Host:        getEnv("SERVER_HOST", "localhost"),
			Port:        getEnvAsInt("SERVER_PORT", 8080),
			PublicURL:   getEnv("PUBLIC_URL", "http://localhost:8080"),
			ClientURL:   getEnv("CLIENT_URL", "http://localhost:3000"),
			IPRateLimit: getEnvAsFloat("IP_RATE_LIMIT", 20),
		},
		Database: DatabaseConfig{
			Driver:   strings.ToLower(getEnv("DB_DRIVER", "postgres")),
			Host:     getEnv("POSTGRES_HOST", "localhost"),
			Port:     getEnvAsInt("POSTGRES_PORT", 5432),
			User:     getEnv("POSTGRES_USER", "postgres"),
			Password: getEnv("POSTGRES_PASSWORD", ""),
			Name:     getEnv("POSTGRES_DB", "mdmc"),
			SSLMode:  getEnv("POSTGRES_SSLMODE", "disable"),
		},
		JWT: JWTConfig{
			Secret:        getEnv("JWT_SECRET", ""),
			RefreshSecret: getEnv("JWT_REFRESH_SECRET", ""),
			AccessTTL:     getEnvAsDuration("JWT_ACCESS_TTL", 15*time.Minute),
			RefreshTTL:    getEnvAsDuration("JWT_REFRESH_TTL", 7*24*time.Hour),
		},
		RateLimit: RateLimitConfig{
			Max:    getEnvAsInt("RATE_LIMIT_MAX", 100),
			Window: getEnvAsDuration("RATE_LIMIT_WINDOW", 15*time.Minute),
			Store:  strings.ToLower(getEnv("RATE_LIMIT_STORE", "memory")),
		},
		Storage: StorageConfig{
			Provider:  getEnv("STORAGE_PROVIDER", "s3"),
			ExportTTL: getEnvAsDuration("EXPORT_URL_TTL", time.Hour),
			S3: S3Config{
				BucketName: getEnv("S3_BUCKET_NAME", ""),
				Endpoint:   getEnv("S3_ENDPOINT", ""),
				Region:     getEnv("S3_REGION", "us-east-1"),
				AccessKey:  getEnv("S3_ACCESS_KEY", ""),
				SecretKey:  getEnv("S3_SECRET_KEY", ""),
			},
		},
		Worker: WorkerConfig{
			Enabled:     getEnvAsBool("WORKER_ENABLED", false),
			Concurrency: getEnvAsInt("WORKER_CONCURRENCY", 10),
		},
		Redis: RedisConfig{
			Addr:     fmt.Sprintf("%s:%d", getEnv("REDIS_HOST", "localhost"), getEnvAsInt("REDIS_PORT", 6379)),
			Password: getEnv("REDIS_PASSWORD", ""),
			Username: getEnv("REDIS_USERNAME", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
		},
		SMTP: SMTPConfig{
			Host:     getEnv("SMTP_HOST", ""),
			Port:     getEnvAsInt("SMTP_PORT", 587),
			User:     getEnv("SMTP_USER", ""),
			Password: getEnv("SMTP_PASSWORD", ""),
			From:     getEnv("SMTP_FROM", "MDMC CRM <no-reply@mdmc.local>"),
		},
		Google: GoogleConfig{
			UserInfoURL: getEnv("GOOGLE_USERINFO_URL", "https://www.googleapis.com/oauth2/v3/userinfo"),
		},
		Admin: AdminConfig{
			Email:     getEnv("ADMIN_EMAIL", ""),
			Password:  getEnv("ADMIN_PASSWORD", ""),
			FirstName: getEnv("ADMIN_FIRST_NAME", "Admin"),
			LastName:  getEnv("ADMIN_LAST_NAME", "MDMC"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects configurations the server cannot run with.
func (c *Config) Validate() error {
	if c.JWT.Secret == "" || c.JWT.RefreshSecret == "" {
		return fmt.Errorf("JWT_SECRET and JWT_REFRESH_SECRET must both be set")
	}
	if c.JWT.Secret == c.JWT.RefreshSecret {
		return fmt.Errorf("JWT_SECRET and JWT_REFRESH_SECRET must differ")
	}
	if c.RateLimit.Max <= 0 || c.RateLimit.Window <= 0 {
		return fmt.Errorf("rate limit must have a positive max and window")
	}
	switch c.Database.Driver {
	case "postgres", "memory":
	default:
		return fmt.Errorf("unsupported DB_DRIVER %q", c.Database.Driver)
	}
	switch c.RateLimit.Store {
	case "memory", "redis":
	default:
		return fmt.Errorf("unsupported RATE_LIMIT_STORE %q", c.RateLimit.Store)
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value, exists := os.LookupEnv(key); exists {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value, exists := os.LookupEnv(key); exists {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value, exists := os.LookupEnv(key); exists {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value, exists := os.LookupEnv(key); exists {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func (c *Config) Save(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0600)
}

package config

import "time"

func LoadTestConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:        "localhost",
			Port:        8081,
			ClientURL:   "http://localhost:3000",
			IPRateLimit: 1000,
		},
		Database: DatabaseConfig{
			Driver:   "memory",
			Host:     "localhost",
			Port:     5432,
			Name:     "mdmc_test",
			User:     "test_user",
			Password: "test_password",
		},
		JWT: JWTConfig{
			Secret:        "test-access-secret",
			RefreshSecret: "test-refresh-secret",
			AccessTTL:     15 * time.Minute,
			RefreshTTL:    7 * 24 * time.Hour,
		},
		RateLimit: RateLimitConfig{
			Max:    100,
			Window: 15 * time.Minute,
			Store:  "memory",
		},
		Storage: StorageConfig{
			ExportTTL: time.Hour,
		},
		Redis: RedisConfig{
			Addr:     "localhost:6379",
			Password: "",
			DB:       0,
		},
	}
}

package config

import (
	"os"
	"strconv"
)

// Config holds all application configuration
type Config struct {
	// Server configuration
	Port string

	// Primary database (store of record for content versions)
	DBType            string // mysql, postgres, sqlite, sqlserver
	DBHost            string
	DBPort            string
	DBDatabase        string
	DBUser            string
	DBPassword        string
	DBConnectionLimit int

	// Local fallback cache (embedded sqlite file)
	CachePath          string
	CacheMaxValueBytes int

	// Optional cross-instance event bridge
	RedisAddr     string
	RedisPassword string

	// Admin authorization
	AdminToken string

	// Identity of this server instance on the sync bus
	InstanceName string
}

// Load loads configuration from environment variables.
//
// Database settings are deliberately not validated here: a missing or wrong
// database configuration must surface as remote-store failures at runtime,
// which the cache fallback absorbs, rather than preventing startup.
func Load() (*Config, error) {
	cfg := &Config{
		Port:               getEnv("PORT", "3000"),
		DBType:             getEnv("DB_TYPE", "mysql"),
		DBHost:             getEnv("DB_HOST", "localhost"),
		DBPort:             getEnv("DB_PORT", "3306"),
		DBDatabase:         getEnv("DB_DATABASE", ""),
		DBUser:             getEnv("DB_USER", ""),
		DBPassword:         getEnv("DB_PASSWORD", ""),
		DBConnectionLimit:  getEnvAsInt("DB_CONNECTION_LIMIT", 5),
		CachePath:          getEnv("CACHE_PATH", "sitesync-cache.db"),
		CacheMaxValueBytes: getEnvAsInt("CACHE_MAX_VALUE_BYTES", 100*1024),
		RedisAddr:          getEnv("REDIS_ADDR", ""),
		RedisPassword:      getEnv("REDIS_PASSWORD", ""),
		AdminToken:         getEnv("ADMIN_TOKEN", ""),
		InstanceName:       getEnv("INSTANCE_NAME", ""),
	}

	return cfg, nil
}

// getEnv gets an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt gets an environment variable as an integer or returns a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

package main

import (
	"os"

	"github.com/joho/godotenv"
)

// Config holds the environment-backed settings.
type Config struct {
	Port string

	// DBDSN is the Postgres DSN. Required.
	DBDSN string

	// DBAutoMigrate controls schema migration on boot (default true).
	DBAutoMigrate bool

	JWTSecret string

	// LogLevel is a zap level string ("debug", "info", ...).
	LogLevel string
}

// LoadConfig reads configuration from the environment. A local .env file
// is loaded first without overriding variables that are already set.
func LoadConfig() Config {
	_ = godotenv.Load()
	return Config{
		Port:          getEnv("PORT", "8081"),
		DBDSN:         os.Getenv("DB_DSN"),
		DBAutoMigrate: getEnvBool("DB_AUTO_MIGRATE", true),
		JWTSecret:     getEnv("JWT_SECRET", "dev-insecure-secret-change"),
		LogLevel:      getEnv("LOG_LEVEL", "info"),
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	switch os.Getenv(key) {
	case "true", "1", "yes":
		return true
	case "false", "0", "no":
		return false
	}
	return fallback
}

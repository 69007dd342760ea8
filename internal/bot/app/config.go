package app

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	DatabaseFile string // Path to the SQLite database file (default: ./staffbot.db)

	ProfileURLPrefix string // Required prefix of submitted profile-page URLs (default: https://github.com/)
	MinProfileURLLen int    // Minimum accepted profile URL length (default: 20)

	TeamRolePrefix string // Role-name prefix marking team roles for nickname formatting (default: "Team ")
	NickTemplate   string // Default nickname template for set_nick

	RoleCallsPerSecond float64 // Rate limit for platform role grant/revoke calls (default: 5)

	Env                 string        // Environment (dev, staging, prod) (default: dev)
	LogLevel            string        // Log level (debug, info, warn, error) (default: info)
	LogFormat           string        // Log format (json, text) (default: json)
	Port                int           // Sidecar HTTP port for probes and metrics (default: 8080)
	ShutdownGracePeriod time.Duration // Graceful shutdown timeout (default: 10s)
}

func LoadConfig() Config {
	return Config{
		DatabaseFile:        getEnvOrDefault("STAFFBOT_DATABASE_FILE", "staffbot.db"),
		ProfileURLPrefix:    getEnvOrDefault("STAFFBOT_PROFILE_URL_PREFIX", "https://github.com/"),
		MinProfileURLLen:    getEnvIntOrDefault("STAFFBOT_MIN_PROFILE_URL_LEN", 20),
		TeamRolePrefix:      getEnvOrDefault("STAFFBOT_TEAM_ROLE_PREFIX", "Team "),
		NickTemplate:        getEnvOrDefault("STAFFBOT_NICK_TEMPLATE", "[{team}]{last_name} {first_name}_{group_short_name}"),
		RoleCallsPerSecond:  getEnvFloatOrDefault("STAFFBOT_ROLE_CALLS_PER_SECOND", 5),
		Env:                 getEnvOrDefault("ENV", "dev"),
		LogLevel:            getEnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:           getEnvOrDefault("LOG_FORMAT", "json"),
		Port:                getEnvIntOrDefault("PORT", 8080),
		ShutdownGracePeriod: getEnvDurationOrDefault("SHUTDOWN_GRACE_PERIOD", 10*time.Second),
	}
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	if intValue, err := strconv.Atoi(value); err == nil {
		return intValue
	}

	return defaultValue
}

func getEnvFloatOrDefault(key string, defaultValue float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	if floatValue, err := strconv.ParseFloat(value, 64); err == nil && floatValue > 0 {
		return floatValue
	}

	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	if duration, err := time.ParseDuration(value); err == nil {
		return duration
	}

	return defaultValue
}

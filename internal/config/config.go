package config

import (
	"os"
	"strconv"
	"time"
)

// Fixed tuning constants that are not environment-configurable; these mirror
// the original implementation's compile-time constants.
const (
	ExpireTimeout   = 10 * time.Second
	JanitorInterval = 3 * time.Second
	WaitTimeout     = 200 * time.Millisecond
	SyncTimeout     = 50 * time.Millisecond
	SyncCooldown    = 100 * time.Millisecond
	APIVersion      = 2
)

type Config struct {
	Environment   string `env:"ENVIRONMENT"`
	Port          string `env:"PORT"`
	LogLevel      string `env:"LOG_LEVEL"`
	Password      string `env:"PASSWORD,secret"`
	RoomLimit     int    `env:"ROOM_LIMIT"`
	LobbyLifetime time.Duration
	GameLifetime  time.Duration
}

// Load reads configuration from the environment, falling back to the same
// defaults as the original server.
func Load() *Config {
	return &Config{
		Environment:   getEnv("ENVIRONMENT", "development"),
		Port:          getEnv("PORT", "7468"),
		LogLevel:      getEnv("LOG_LEVEL", "info"),
		Password:      getEnv("PASSWORD", ""),
		RoomLimit:     getEnvAsInt("ROOM_LIMIT", 100),
		LobbyLifetime: time.Duration(getEnvAsInt("LOBBY_LIFETIME", 10)) * time.Minute,
		GameLifetime:  time.Duration(getEnvAsInt("GAME_LIFETIME", 20)) * time.Minute,
	}
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

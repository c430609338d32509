package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	DefaultInterval time.Duration
	DefaultWorkers  int

	DBHost     string
	DBPort     int
	DBUser     string
	DBPassword string
	DBName     string

	AssetDir    string
	ControlAddr string
	YTAPIKey    string
}

// Load reads configuration from the environment, after loading a .env file
// when one is present.
func Load() Config {
	_ = godotenv.Load()

	return Config{
		DefaultInterval: parseDurationEnv("GOVCOMMS_INTERVAL", 3*time.Minute),
		DefaultWorkers:  parseIntEnv("GOVCOMMS_WORKERS", 3),
		DBHost:          getenv("DB_HOST", "localhost"),
		DBPort:          parseIntEnv("DB_PORT", 5432),
		DBUser:          getenv("DB_USER", "postgres"),
		DBPassword:      getenv("DB_PASSWORD", "changeme"),
		DBName:          getenv("DB_NAME", "govcomms"),
		AssetDir:        getenv("GOVCOMMS_ASSET_DIR", "assets"),
		ControlAddr:     getenv("CONTROL_ADDR", "127.0.0.1:8090"),
		YTAPIKey:        os.Getenv("YT_API_KEY"),
	}
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func parseIntEnv(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func parseDurationEnv(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

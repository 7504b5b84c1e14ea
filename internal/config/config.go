package config

import (
	"log"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Hub deployment modes. A local hub trusts the host network boundary and
// skips bearer auth on mutating routes; a remote hub requires it. The mode
// is a static configuration choice, never negotiated at runtime.
const (
	ModeLocal  = "local"
	ModeRemote = "remote"
)

type Config struct {
	HubMode          string
	HTTPPort         string
	DatabaseURL      string
	LogLevel         string
	ConnectionKeys   string
	DemoMode         bool
	DownloadsEnabled bool
}

var AppConfig Config

func LoadConfig() {
	err := godotenv.Load() // Load .env file if it exists
	if err != nil {
		log.Println("No .env file found, relying on environment variables")
	}

	AppConfig = Config{
		HubMode:          getEnv("HUB_MODE", ModeLocal),
		HTTPPort:         getEnv("HTTP_PORT", "5001"),
		DatabaseURL:      getEnv("DATABASE_URL", "hub.db"),
		LogLevel:         getEnv("LOG_LEVEL", "INFO"),
		ConnectionKeys:   getEnv("HUB_API_KEYS", ""),
		DemoMode:         getEnvAsBool("HUB_DEMO_MODE", false),
		DownloadsEnabled: getEnvAsBool("COMMUNITY_HUB_BUNDLE_DOWNLOADS_ENABLED", false),
	}

	if AppConfig.HubMode != ModeLocal && AppConfig.HubMode != ModeRemote {
		log.Fatalf("HUB_MODE must be %q or %q, got %q", ModeLocal, ModeRemote, AppConfig.HubMode)
	}
	if AppConfig.HubMode == ModeRemote && AppConfig.ConnectionKeys == "" && !AppConfig.DemoMode {
		log.Fatal("HUB_API_KEYS is required when HUB_MODE=remote")
	}
}

func getEnv(key string, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

package config

import (
	"os"
	"path/filepath"

	"github.com/c2h5oh/datasize"
	"github.com/joho/godotenv"
)

type Config struct {
	Home            string
	CatalogDir      string
	ImagePrefix     string
	BuildLogPath    string
	BuildLogMaxSize datasize.ByteSize
	Hosts           string
	LogLevel        string
	LogFormat       string
	OtelEndpoint    string
}

// Load loads configuration from environment variables
// Automatically loads .env file if present
func Load() *Config {
	// Try to load .env file (fail silently if not present)
	_ = godotenv.Load()

	userHome, _ := os.UserHomeDir()
	home := getEnv("BAY_HOME", filepath.Join(userHome, ".bay"))

	cfg := &Config{
		Home:            home,
		CatalogDir:      getEnv("BAY_CATALOG_DIR", filepath.Join(home, "containers")),
		ImagePrefix:     getEnv("BAY_IMAGE_PREFIX", "localdev/"),
		BuildLogPath:    getEnv("BAY_BUILD_LOG_PATH", filepath.Join(os.TempDir(), "bay-build.log")),
		BuildLogMaxSize: getSize("BAY_BUILD_LOG_MAX_SIZE", 50*datasize.MB),
		Hosts:           getEnv("BAY_HOSTS", ""),
		LogLevel:        getEnv("LOG_LEVEL", "info"),
		LogFormat:       getEnv("LOG_FORMAT", "text"),
		OtelEndpoint:    getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
	}

	return cfg
}

// ProfilesDir holds the profile definitions
func (c *Config) ProfilesDir() string {
	return filepath.Join(c.Home, "profiles")
}

// UserProfilePath records the selected profile
func (c *Config) UserProfilePath() string {
	return filepath.Join(c.Home, "user", "profile.yaml")
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getSize(key string, defaultValue datasize.ByteSize) datasize.ByteSize {
	var size datasize.ByteSize
	if err := size.UnmarshalText([]byte(os.Getenv(key))); err != nil || size == 0 {
		return defaultValue
	}
	return size
}

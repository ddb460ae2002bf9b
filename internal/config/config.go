package config

import (
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the emissions server
type Config struct {
	// Auth
	AuthToken string

	// Reference data
	DataDir            string
	EmissionsPath      string
	WeightsPath        string
	EmissionsURL       string
	WeightsURL         string
	MetadataPath       string
	LockFile           string
	DisableRemoteCheck bool

	// Recipe resolver
	SpoonacularAPIKey  string
	SpoonacularBaseURL string // empty selects the resolver's default endpoint
	RecipeTimeout      time.Duration
	RecipeMaxRetries   int
	MockResolver       bool

	// Server
	Port        string
	Environment string
}

// Load reads configuration from the environment, after merging in a .env
// file from the working directory when present
func Load() *Config {
	return LoadWithEnvFile(".env")
}

// LoadWithEnvFile is Load with an explicit .env path. Variables already set in
// the process environment take precedence over the file.
func LoadWithEnvFile(envFile string) *Config {
	if envFile != "" {
		// A missing file is fine; the environment alone is a valid configuration.
		_ = godotenv.Load(envFile)
	}

	dataDir := getEnv("DATA_DIR", "./data")

	return &Config{
		AuthToken:          getEnv("AUTH_TOKEN", "super-secret-token"),
		DataDir:            dataDir,
		EmissionsPath:      getEnv("EMISSIONS_PATH", filepath.Join(dataDir, "food_footprints.json")),
		WeightsPath:        getEnv("WEIGHTS_PATH", filepath.Join(dataDir, "food_weights.json")),
		EmissionsURL:       os.Getenv("EMISSIONS_URL"),
		WeightsURL:         os.Getenv("WEIGHTS_URL"),
		MetadataPath:       getEnv("METADATA_PATH", filepath.Join(dataDir, "metadata.json")),
		LockFile:           getEnv("LOCK_FILE", filepath.Join(dataDir, "refresh.lock")),
		DisableRemoteCheck: getEnvBool("DISABLE_REMOTE_CHECK", false),
		SpoonacularAPIKey:  os.Getenv("SPOONACULAR_API_KEY"),
		SpoonacularBaseURL: os.Getenv("SPOONACULAR_BASE_URL"),
		RecipeTimeout:      getEnvDuration("RECIPE_TIMEOUT", 10*time.Second),
		RecipeMaxRetries:   getEnvInt("RECIPE_MAX_RETRIES", 2),
		MockResolver:       getEnvBool("RECIPE_RESOLVER_MOCK", false),
		Port:               getEnv("PORT", "8080"),
		Environment:        getEnv("ENV", "production"),
	}
}

// IsDevelopment reports whether ENV is set to development
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil && parsed > 0 {
			return parsed
		}
	}
	return defaultValue
}

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var envVarsToClean = []string{
	"AUTH_TOKEN", "DATA_DIR", "EMISSIONS_PATH", "WEIGHTS_PATH", "EMISSIONS_URL",
	"WEIGHTS_URL", "METADATA_PATH", "LOCK_FILE", "DISABLE_REMOTE_CHECK",
	"SPOONACULAR_API_KEY", "SPOONACULAR_BASE_URL", "RECIPE_TIMEOUT",
	"RECIPE_MAX_RETRIES", "RECIPE_RESOLVER_MOCK", "PORT", "ENV",
}

// clearEnv unsets every config variable for the duration of the test
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range envVarsToClean {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}
}

func TestLoad(t *testing.T) {
	tests := []struct {
		name     string
		envVars  map[string]string
		expected *Config
	}{
		{
			name:    "default values",
			envVars: map[string]string{},
			expected: &Config{
				AuthToken:          "super-secret-token",
				DataDir:            "./data",
				EmissionsPath:      "data/food_footprints.json", // filepath.Join result
				WeightsPath:        "data/food_weights.json",
				MetadataPath:       "data/metadata.json",
				LockFile:           "data/refresh.lock",
				SpoonacularBaseURL: "",
				RecipeTimeout:      10 * time.Second,
				RecipeMaxRetries:   2,
				Port:               "8080",
				Environment:        "production",
			},
		},
		{
			name: "custom values",
			envVars: map[string]string{
				"AUTH_TOKEN":           "custom-token",
				"DATA_DIR":             "/custom/data",
				"WEIGHTS_PATH":         "/etc/weights.yaml",
				"EMISSIONS_URL":        "https://example.com/footprints.json",
				"DISABLE_REMOTE_CHECK": "true",
				"SPOONACULAR_API_KEY":  "key-123",
				"RECIPE_TIMEOUT":       "3s",
				"RECIPE_MAX_RETRIES":   "0",
				"RECIPE_RESOLVER_MOCK": "1",
				"PORT":                 "3000",
				"ENV":                  "development",
			},
			expected: &Config{
				AuthToken:          "custom-token",
				DataDir:            "/custom/data",
				EmissionsPath:      "/custom/data/food_footprints.json",
				WeightsPath:        "/etc/weights.yaml",
				EmissionsURL:       "https://example.com/footprints.json",
				MetadataPath:       "/custom/data/metadata.json",
				LockFile:           "/custom/data/refresh.lock",
				DisableRemoteCheck: true,
				SpoonacularAPIKey:  "key-123",
				SpoonacularBaseURL: "",
				RecipeTimeout:      3 * time.Second,
				RecipeMaxRetries:   0,
				MockResolver:       true,
				Port:               "3000",
				Environment:        "development",
			},
		},
		{
			name: "invalid values fall back to defaults",
			envVars: map[string]string{
				"RECIPE_TIMEOUT":       "soon",
				"RECIPE_MAX_RETRIES":   "many",
				"DISABLE_REMOTE_CHECK": "perhaps",
			},
			expected: &Config{
				AuthToken:          "super-secret-token",
				DataDir:            "./data",
				EmissionsPath:      "data/food_footprints.json",
				WeightsPath:        "data/food_weights.json",
				MetadataPath:       "data/metadata.json",
				LockFile:           "data/refresh.lock",
				SpoonacularBaseURL: "",
				RecipeTimeout:      10 * time.Second,
				RecipeMaxRetries:   2,
				Port:               "8080",
				Environment:        "production",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			for key, value := range tt.envVars {
				t.Setenv(key, value)
			}

			// No .env file, so only the process environment applies
			cfg := LoadWithEnvFile("")
			assert.Equal(t, tt.expected, cfg)
		})
	}
}

func TestLoadWithEnvFile(t *testing.T) {
	t.Run("with .env file", func(t *testing.T) {
		clearEnv(t)
		envFile := filepath.Join(t.TempDir(), ".env")
		content := `# Test .env file
AUTH_TOKEN=test-token-from-env
PORT=9999
SPOONACULAR_API_KEY="quoted key"
`
		require.NoError(t, os.WriteFile(envFile, []byte(content), 0644))

		// Process environment wins over the file
		t.Setenv("PORT", "7000")

		cfg := LoadWithEnvFile(envFile)
		assert.Equal(t, "test-token-from-env", cfg.AuthToken)
		assert.Equal(t, "7000", cfg.Port)
		assert.Equal(t, "quoted key", cfg.SpoonacularAPIKey)

		os.Unsetenv("AUTH_TOKEN")
		os.Unsetenv("SPOONACULAR_API_KEY")
	})

	t.Run("without .env file", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("AUTH_TOKEN", "cli-token")

		cfg := LoadWithEnvFile(filepath.Join(t.TempDir(), "missing.env"))
		assert.Equal(t, "cli-token", cfg.AuthToken)
		assert.Equal(t, "8080", cfg.Port)
	})
}

func TestIsDevelopment(t *testing.T) {
	tests := []struct {
		name        string
		environment string
		expected    bool
	}{
		{"production mode", "production", false},
		{"development mode", "development", true},
		{"empty environment", "", false},
		{"other environment", "staging", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{Environment: tt.environment}
			assert.Equal(t, tt.expected, cfg.IsDevelopment())
		})
	}
}

package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

var v *viper.Viper

// Initialize sets up the viper configuration singleton
// Should be called once at application startup
func Initialize() error {
	v = viper.New()

	// Set config file name and type
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	// Add config search paths (in order of precedence)
	// 1. Walk up from CWD to find project .warden/ directory
	//    This allows commands to work from subdirectories
	cwd, err := os.Getwd()
	if err == nil {
		// Walk up parent directories to find .warden/config.yaml
		for dir := cwd; dir != filepath.Dir(dir); dir = filepath.Dir(dir) {
			wardenDir := filepath.Join(dir, ".warden")
			configPath := filepath.Join(wardenDir, "config.yaml")
			if _, err := os.Stat(configPath); err == nil {
				v.AddConfigPath(wardenDir)
				break
			}
			// Also check if .warden directory exists (even without config.yaml)
			if info, err := os.Stat(wardenDir); err == nil && info.IsDir() {
				v.AddConfigPath(wardenDir)
				break
			}
		}

		v.AddConfigPath(filepath.Join(cwd, ".warden"))
	}

	// 2. User config directory (~/.config/warden/)
	if configDir, err := os.UserConfigDir(); err == nil {
		v.AddConfigPath(filepath.Join(configDir, "warden"))
	}

	// 3. Home directory (~/.warden/)
	if homeDir, err := os.UserHomeDir(); err == nil {
		v.AddConfigPath(filepath.Join(homeDir, ".warden"))
	}

	// Automatic environment variable binding
	// Environment variables take precedence over config file
	// E.g., WARDEN_JSON, WARDEN_ACTOR, WARDEN_COST_LIMIT
	v.SetEnvPrefix("WARDEN")

	// Replace hyphens and dots with underscores for env var mapping
	// This allows WARDEN_COST_LIMIT to map to "cost-limit" config key
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	// Set defaults for all flags
	v.SetDefault("json", false)
	v.SetDefault("actor", "")
	v.SetDefault("db", "")
	v.SetDefault("backend", "file")
	v.SetDefault("state-dir", "")
	v.SetDefault("repo", "")

	// Rate limiting defaults: 5000 GitHub requests per hour with a burst
	// allowance, and a $10 AI spend ceiling per run. github-refill (tokens
	// per second) overrides the hourly github-limit when set above zero.
	v.SetDefault("github-limit", 5000)
	v.SetDefault("github-refill", 0.0)
	v.SetDefault("github-burst", 100)
	v.SetDefault("cost-limit", 10.0)

	v.SetDefault("grace-minutes", 5)
	v.SetDefault("log-file", "")
	v.SetDefault("model", "")

	// API key is bound without the WARDEN_ prefix for compatibility with
	// the SDK's own convention.
	_ = v.BindEnv("anthropic-api-key", "ANTHROPIC_API_KEY")

	// Read config file if it exists (don't error if not found)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return fmt.Errorf("error reading config file: %w", err)
		}
	}

	return nil
}

// GetString retrieves a string configuration value
func GetString(key string) string {
	if v == nil {
		return ""
	}
	return v.GetString(key)
}

// GetBool retrieves a boolean configuration value
func GetBool(key string) bool {
	if v == nil {
		return false
	}
	return v.GetBool(key)
}

// GetInt retrieves an integer configuration value
func GetInt(key string) int {
	if v == nil {
		return 0
	}
	return v.GetInt(key)
}

// GetFloat64 retrieves a float configuration value
func GetFloat64(key string) float64 {
	if v == nil {
		return 0
	}
	return v.GetFloat64(key)
}

// Set sets a configuration value
func Set(key string, value interface{}) {
	if v != nil {
		v.Set(key, value)
	}
}

// AllSettings returns all configuration settings as a map
func AllSettings() map[string]interface{} {
	if v == nil {
		return map[string]interface{}{}
	}
	return v.AllSettings()
}

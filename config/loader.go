package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// LoadConfig loads configuration from a .env file (if present) and environment variables
func LoadConfig() *Config {
	// A missing .env is the normal case
	_ = godotenv.Load()

	config := DefaultConfig()
	applyEnv(config)
	return config
}

// LoadConfigFile loads a YAML configuration file over the defaults, then applies
// .env and environment overrides
func LoadConfigFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	_ = godotenv.Load()
	applyEnv(config)
	return config, nil
}

func applyEnv(config *Config) {
	// Load API configuration
	if token := os.Getenv("CONVERTAPI_TOKEN"); token != "" {
		config.API.Token = token
	}
	if baseURI := os.Getenv("CONVERTAPI_BASE_URI"); baseURI != "" {
		config.API.BaseURI = baseURI
	}
	if credsPath := os.Getenv("CONVERTAPI_CREDENTIALS_PATH"); credsPath != "" {
		config.API.CredentialsPath = credsPath
	}

	// Load HTTP client configuration
	envInt("MAX_IDLE_CONNS", &config.HTTPClient.MaxIdleConns)
	envInt("MAX_IDLE_CONNS_PER_HOST", &config.HTTPClient.MaxIdleConnsPerHost)
	envInt("IDLE_CONN_TIMEOUT_SECONDS", &config.HTTPClient.IdleConnTimeoutSeconds)
	envInt("REQUEST_TIMEOUT_SECONDS", &config.HTTPClient.RequestTimeoutSeconds)
	envInt("DOWNLOAD_TIMEOUT_SECONDS", &config.HTTPClient.DownloadTimeoutSeconds)
	envInt("UPLOAD_TIMEOUT_SECONDS", &config.HTTPClient.UploadTimeoutSeconds)
	envInt("CONVERSION_TIMEOUT_DELTA_SECONDS", &config.HTTPClient.ConversionTimeoutDeltaSeconds)
	envInt("MAX_RETRIES", &config.HTTPClient.MaxRetries)
	envInt("CIRCUIT_BREAKER_FAILURES", &config.HTTPClient.BreakerFailures)
	envInt("CIRCUIT_BREAKER_RESET_SECONDS", &config.HTTPClient.BreakerResetSeconds)
	if rps := os.Getenv("REQUESTS_PER_SECOND"); rps != "" {
		if val, err := strconv.ParseFloat(rps, 64); err == nil && val >= 0 {
			config.HTTPClient.RequestsPerSecond = val
		}
	}

	// Load logging configuration
	if debugMode := os.Getenv("DEBUG"); debugMode != "" {
		config.Logging.IsDebugMode = strings.ToLower(debugMode) == "true"
	}
}

func envInt(key string, dst *int) {
	if raw := os.Getenv(key); raw != "" {
		if val, err := strconv.Atoi(raw); err == nil {
			*dst = val
		}
	}
}

package config

import (
	"net/http"
	"time"
)

// DefaultBaseURI is the public ConvertAPI endpoint
const DefaultBaseURI = "https://v2.convertapi.com"

// APIConfig holds service-related configuration
type APIConfig struct {
	BaseURI         string `yaml:"base_uri"`
	Token           string `yaml:"token"`
	CredentialsPath string `yaml:"credentials_path"`
}

// HTTPClientConfig holds HTTP client configuration
type HTTPClientConfig struct {
	MaxIdleConns                  int     `yaml:"max_idle_conns"`
	MaxIdleConnsPerHost           int     `yaml:"max_idle_conns_per_host"`
	IdleConnTimeoutSeconds        int     `yaml:"idle_conn_timeout_seconds"`
	RequestTimeoutSeconds         int     `yaml:"request_timeout_seconds"`
	DownloadTimeoutSeconds        int     `yaml:"download_timeout_seconds"`
	UploadTimeoutSeconds          int     `yaml:"upload_timeout_seconds"`
	ConversionTimeoutDeltaSeconds int     `yaml:"conversion_timeout_delta_seconds"`
	RequestsPerSecond             float64 `yaml:"requests_per_second"` // 0 disables throttling
	MaxRetries                    int     `yaml:"max_retries"`         // GET and DELETE only
	BreakerFailures               int     `yaml:"breaker_failures"`    // 0 disables the circuit breaker
	BreakerResetSeconds           int     `yaml:"breaker_reset_seconds"`
}

// LoggingConfig holds logging-related configuration
type LoggingConfig struct {
	IsDebugMode bool `yaml:"debug"`
}

// Config holds all configuration for the SDK and the CLI
type Config struct {
	API        APIConfig        `yaml:"api"`
	HTTPClient HTTPClientConfig `yaml:"http_client"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		API: APIConfig{
			BaseURI: DefaultBaseURI,
		},
		HTTPClient: HTTPClientConfig{
			MaxIdleConns:                  50,
			MaxIdleConnsPerHost:           50,
			IdleConnTimeoutSeconds:        180,
			RequestTimeoutSeconds:         180,
			DownloadTimeoutSeconds:        300,
			UploadTimeoutSeconds:          1200,
			ConversionTimeoutDeltaSeconds: 10,
			MaxRetries:                    2,
			BreakerResetSeconds:           30,
		},
		Logging: LoggingConfig{
			IsDebugMode: false,
		},
	}
}

// RequestTimeout is the network timeout used for conversions without a timeout parameter
func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.HTTPClient.RequestTimeoutSeconds) * time.Second
}

// DownloadTimeout covers result downloads, schema documents and account lookups
func (c *Config) DownloadTimeout() time.Duration {
	return time.Duration(c.HTTPClient.DownloadTimeoutSeconds) * time.Second
}

// UploadTimeout covers a single file upload
func (c *Config) UploadTimeout() time.Duration {
	return time.Duration(c.HTTPClient.UploadTimeoutSeconds) * time.Second
}

// ConversionTimeoutDelta is added to a caller supplied conversion timeout so the
// local deadline never fires before the service gives up on its own
func (c *Config) ConversionTimeoutDelta() time.Duration {
	return time.Duration(c.HTTPClient.ConversionTimeoutDeltaSeconds) * time.Second
}

// BreakerReset is how long an open circuit rejects requests before probing again
func (c *Config) BreakerReset() time.Duration {
	return time.Duration(c.HTTPClient.BreakerResetSeconds) * time.Second
}

// SharedHTTPClient creates an HTTP client with the configured pool settings.
// The client carries no overall timeout; deadlines are set per request.
func (c *Config) SharedHTTPClient() *http.Client {
	transport := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		MaxIdleConns:        c.HTTPClient.MaxIdleConns,
		MaxIdleConnsPerHost: c.HTTPClient.MaxIdleConnsPerHost,
		IdleConnTimeout:     time.Duration(c.HTTPClient.IdleConnTimeoutSeconds) * time.Second,
	}

	return &http.Client{
		Transport: transport,
	}
}

// Package auth resolves the ConvertAPI token and stores it on disk
package auth

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/gofrs/flock"
	"golang.org/x/oauth2"

	"github.com/sunbankio/convertapi-go/config"
)

// ErrNoToken is returned when neither configuration nor the credentials file carries a token
var ErrNoToken = errors.New("no API token configured")

// Credentials represents the structure of the credentials.json file
type Credentials struct {
	Token   string `json:"token"`
	BaseURI string `json:"base_uri,omitempty"`
}

// DefaultCredentialsPath returns ~/.convertapi/credentials.json
func DefaultCredentialsPath() string {
	homeDir, _ := os.UserHomeDir()
	return filepath.Join(homeDir, ".convertapi", "credentials.json")
}

// CredentialsPath returns the configured credentials path or the default one
func CredentialsPath(cfg *config.Config) string {
	if cfg != nil && cfg.API.CredentialsPath != "" {
		return cfg.API.CredentialsPath
	}
	return DefaultCredentialsPath()
}

// SaveCredentials writes credentials to path, holding a lock file while doing so
func SaveCredentials(path string, creds Credentials) error {
	if strings.TrimSpace(creds.Token) == "" {
		return ErrNoToken
	}
	lockPath := path + ".lock"

	// Create the directory if it doesn't exist
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("failed to create credentials directory: %w", err)
	}

	fileLock := flock.New(lockPath)
	locked, err := fileLock.TryLock()
	if err != nil {
		return fmt.Errorf("failed to acquire file lock: %w", err)
	}
	if !locked {
		return fmt.Errorf("failed to acquire file lock, another process is holding it")
	}
	defer fileLock.Unlock()

	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("failed to create credentials file: %w", err)
	}
	defer file.Close()

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(creds); err != nil {
		return fmt.Errorf("failed to encode credentials: %w", err)
	}

	return nil
}

// LoadCredentials reads credentials from path under a shared lock
func LoadCredentials(path string) (Credentials, error) {
	fileLock := flock.New(path + ".lock")
	if err := fileLock.RLock(); err == nil {
		defer fileLock.Unlock()
	}

	file, err := os.Open(path)
	if err != nil {
		return Credentials{}, fmt.Errorf("failed to open credentials file: %w", err)
	}
	defer file.Close()

	var creds Credentials
	if err := json.NewDecoder(file).Decode(&creds); err != nil {
		return Credentials{}, fmt.Errorf("failed to decode credentials file: %w", err)
	}

	return creds, nil
}

// ResolveTokenAndBaseURI picks the token from configuration first and falls back
// to the stored credentials. The base URI is normalised to carry a scheme and no
// trailing slash.
func ResolveTokenAndBaseURI(cfg *config.Config) (string, string, error) {
	token := strings.TrimSpace(cfg.API.Token)
	baseURI := strings.TrimSpace(cfg.API.BaseURI)

	if token == "" {
		creds, err := LoadCredentials(CredentialsPath(cfg))
		if err != nil {
			return "", "", fmt.Errorf("%w: set CONVERTAPI_TOKEN or run `convertapi login` (%v)", ErrNoToken, err)
		}
		token = strings.TrimSpace(creds.Token)
		if creds.BaseURI != "" && (baseURI == "" || baseURI == config.DefaultBaseURI) {
			baseURI = creds.BaseURI
		}
	}
	if token == "" {
		return "", "", ErrNoToken
	}

	return token, NormalizeBaseURI(baseURI), nil
}

// NormalizeBaseURI adds https:// when the scheme is missing and strips trailing slashes
func NormalizeBaseURI(baseURI string) string {
	if baseURI == "" {
		baseURI = config.DefaultBaseURI
	}
	if !strings.HasPrefix(baseURI, "http://") && !strings.HasPrefix(baseURI, "https://") {
		baseURI = "https://" + baseURI
	}
	return strings.TrimRight(baseURI, "/")
}

// BearerToken wraps an API token so it can stamp the Authorization header of a request
func BearerToken(token string) *oauth2.Token {
	return &oauth2.Token{
		AccessToken: token,
		TokenType:   "Bearer",
	}
}

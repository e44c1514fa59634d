// Package config loads the filter service configuration.
package config

import (
	"encoding/base64"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/solatis/smsfilter/internal/types"
)

// EnvPrefix prefixes every environment variable the service reads.
const EnvPrefix = "SMSF"

// ServiceConfig holds the settings of the filter service and CLI.
type ServiceConfig struct {
	Host           string
	Port           int
	MetricsAddr    string
	MaxConnections int
	RequestTimeout time.Duration

	// DataDir holds the default SQLite database. DatabaseURL, when set,
	// takes precedence.
	DataDir     string
	DatabaseURL string

	MaxImportSize  int64
	ArchiveBlocked bool

	LogLevel  string
	LogFormat string
}

// DefaultServiceConfig returns configuration with default values.
func DefaultServiceConfig() *ServiceConfig {
	return &ServiceConfig{
		Host:           "127.0.0.1",
		Port:           50061,
		MetricsAddr:    "127.0.0.1:9161",
		MaxConnections: 256,
		RequestTimeout: 10 * time.Second,
		DataDir:        "./data",
		MaxImportSize:  types.MaxDocumentSize,
		ArchiveBlocked: true,
		LogLevel:       "info",
		LogFormat:      "json",
	}
}

// Addr returns the gRPC listen address.
func (c *ServiceConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// HMACSecrets reads API key secrets from SMSF_HMAC_SECRET and the numbered
// rotation variables SMSF_HMAC_SECRET_1, SMSF_HMAC_SECRET_2, ... The scan
// stops at the first missing number. Returns secret_id -> secret.
func HMACSecrets() (map[string][]byte, error) {
	secrets := make(map[string][]byte)

	add := func(key string) (bool, error) {
		val := os.Getenv(key)
		if val == "" {
			return false, nil
		}
		secretID, secret, err := ParseHMACSecretWithID(val)
		if err != nil {
			return false, fmt.Errorf("%s: %w", key, err)
		}
		if _, exists := secrets[secretID]; exists {
			return false, fmt.Errorf("%s: duplicate secret_id %q", key, secretID)
		}
		secrets[secretID] = secret
		return true, nil
	}

	if _, err := add(EnvPrefix + "_HMAC_SECRET"); err != nil {
		return nil, err
	}
	for i := 1; ; i++ {
		ok, err := add(fmt.Sprintf("%s_HMAC_SECRET_%d", EnvPrefix, i))
		if err != nil {
			return nil, err
		}
		if !ok {
			break
		}
	}

	return secrets, nil
}

// ParseHMACSecretWithID parses "<secret_id>:<base64 secret>". The secret
// ID is 32 lower-case hex characters and the secret at least 32 bytes.
func ParseHMACSecretWithID(envValue string) (secretID string, secret []byte, err error) {
	parts := strings.SplitN(strings.TrimSpace(envValue), ":", 2)
	if len(parts) != 2 {
		return "", nil, fmt.Errorf("format must be <secret_id>:<base64_secret>")
	}

	secretID = parts[0]
	if len(secretID) != 32 {
		return "", nil, fmt.Errorf("secret_id must be 32 hex chars")
	}
	for _, c := range secretID {
		if !((c >= '0' && c <= '9') || (c >= 'a' && c <= 'f')) {
			return "", nil, fmt.Errorf("secret_id must be hex chars only")
		}
	}

	secret, err = base64.StdEncoding.DecodeString(parts[1])
	if err != nil {
		return "", nil, fmt.Errorf("invalid base64 encoding: %w", err)
	}
	if len(secret) < 32 {
		return "", nil, fmt.Errorf("secret must be at least 32 bytes, got %d", len(secret))
	}

	return secretID, secret, nil
}

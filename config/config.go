package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
)

// ErrConfiguration is returned when a mandatory environment variable is missing
var ErrConfiguration = errors.New("missing mandatory configuration")

// Environment variable names
const (
	EnvTenantID           = "TENANT_OCID"
	EnvUserID             = "USER_OCID"
	EnvFingerprint        = "PUBLIC_KEY_FINGERPRINT"
	EnvPrivateKeyLocation = "PRIVATE_KEY_LOCATION"
	EnvPassphrase         = "PASSPHRASE"
	EnvLogLevel           = "LOG_LEVEL"
)

// LookupFunc matches os.LookupEnv
type LookupFunc func(key string) (string, bool)

// Config holds all configuration for the application
type Config struct {
	Credentials CredentialsConfig
	LogLevel    string
}

// CredentialsConfig holds the raw signing credentials read from the environment
type CredentialsConfig struct {
	TenantID           string
	UserID             string
	Fingerprint        string
	PrivateKeyLocation string
	// Passphrase is empty when the key is not encrypted
	Passphrase string
}

// LoadConfig loads configuration from the process environment
func LoadConfig() *Config {
	return LoadConfigFrom(os.LookupEnv)
}

// LoadConfigFrom loads configuration using the given lookup with defaults
func LoadConfigFrom(lookup LookupFunc) *Config {
	if lookup == nil {
		lookup = os.LookupEnv
	}
	return &Config{
		Credentials: CredentialsConfig{
			TenantID:           getEnv(lookup, EnvTenantID, ""),
			UserID:             getEnv(lookup, EnvUserID, ""),
			Fingerprint:        getEnv(lookup, EnvFingerprint, ""),
			PrivateKeyLocation: getEnv(lookup, EnvPrivateKeyLocation, ""),
			Passphrase:         getEnv(lookup, EnvPassphrase, ""),
		},
		LogLevel: strings.ToLower(getEnv(lookup, EnvLogLevel, "info")),
	}
}

// Validate checks that every mandatory credential is present and non-empty
func (c CredentialsConfig) Validate() error {
	var missing []string
	for _, v := range []struct {
		name  string
		value string
	}{
		{EnvTenantID, c.TenantID},
		{EnvUserID, c.UserID},
		{EnvFingerprint, c.Fingerprint},
		{EnvPrivateKeyLocation, c.PrivateKeyLocation},
	} {
		if strings.TrimSpace(v.value) == "" {
			missing = append(missing, v.name)
		}
	}
	if len(missing) == 0 {
		return nil
	}

	return errors.Join(ErrConfiguration, fmt.Errorf(
		"please ensure you have set the mandatory environment variables - %s, %s, %s, %s (missing: %s)",
		EnvTenantID, EnvUserID, EnvFingerprint, EnvPrivateKeyLocation, strings.Join(missing, ", "),
	))
}

// Helper functions to get environment variables with defaults
func getEnv(lookup LookupFunc, key, defaultValue string) string {
	if value, exists := lookup(key); exists {
		return value
	}
	return defaultValue
}

// Package authtest provides fixtures for tests that need a signing identity
// backed by a real private key.
package authtest

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"os"
	"path/filepath"
	"testing"

	"fn_invoke/config"
)

// KeyBits is the RSA key size used by the fixtures.
const KeyBits = 2048

// WriteKey generates an RSA key, writes it PEM-encoded to a file under
// t.TempDir and returns the path. A non-empty passphrase encrypts the block.
func WriteKey(t *testing.T, passphrase string) string {
	t.Helper()

	key, err := rsa.GenerateKey(rand.Reader, KeyBits)
	if err != nil {
		t.Fatalf("generating key: %v", err)
	}

	block := &pem.Block{
		Type:  "RSA PRIVATE KEY",
		Bytes: x509.MarshalPKCS1PrivateKey(key),
	}
	if passphrase != "" {
		//nolint:staticcheck // legacy PEM encryption is what the SDK parses
		block, err = x509.EncryptPEMBlock(rand.Reader, block.Type, block.Bytes, []byte(passphrase), x509.PEMCipherAES256)
		if err != nil {
			t.Fatalf("encrypting key: %v", err)
		}
	}

	path := filepath.Join(t.TempDir(), "oci_api_key.pem")
	if err := os.WriteFile(path, pem.EncodeToMemory(block), 0600); err != nil {
		t.Fatalf("writing key: %v", err)
	}

	return path
}

// Credentials returns a complete credentials config pointing at keyPath.
func Credentials(keyPath string) config.CredentialsConfig {
	return config.CredentialsConfig{
		TenantID:           "ocid1.tenancy.oc1..aaaaaaaatenancy",
		UserID:             "ocid1.user.oc1..aaaaaaaauser",
		Fingerprint:        "20:3b:97:13:55:1c:5b:0d:d3:37:d8:50:4e:c5:3a:34",
		PrivateKeyLocation: keyPath,
	}
}

// Env returns the environment variables matching Credentials(keyPath).
func Env(keyPath string) map[string]string {
	c := Credentials(keyPath)
	return map[string]string{
		config.EnvTenantID:           c.TenantID,
		config.EnvUserID:             c.UserID,
		config.EnvFingerprint:        c.Fingerprint,
		config.EnvPrivateKeyLocation: c.PrivateKeyLocation,
	}
}

// Lookup returns a config.LookupFunc backed by env.
func Lookup(env map[string]string) config.LookupFunc {
	return func(key string) (string, bool) {
		v, ok := env[key]
		return v, ok
	}
}

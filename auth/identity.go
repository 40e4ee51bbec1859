// Package auth resolves the request-signing identity used to call the
// functions invoke API.
//
// A SigningIdentity satisfies common.ConfigurationProvider, so it can be
// handed directly to any oci-go-sdk client. The private key is read lazily:
// resolving an identity never touches the filesystem, and a missing or
// unreadable key only surfaces once a request is about to be signed.
package auth

import (
	"context"
	"crypto/rsa"
	"errors"
	"fmt"
	"github.com/oracle/oci-go-sdk/v65/common"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"io"
	"os"
	"sync"

	"fn_invoke/config"
	"fn_invoke/models"
	"fn_invoke/utils"
)

// Region is the fixed region every identity is bound to.
const Region = common.RegionPHX

// MaxKeyFileSize caps how much of a private key file is read.
const MaxKeyFileSize int64 = 64 << 10

var (
	// ErrKeyAccess means the private key could not be opened, read or parsed.
	ErrKeyAccess = errors.New("private key is not accessible")

	// ErrNilKeySource is returned when an identity is built without a key source.
	ErrNilKeySource = errors.New("private key source is nil")
)

// KeySource opens the private key. It is called at most once per identity.
type KeySource func() (io.ReadCloser, error)

// FileKeySource returns a KeySource that opens path when invoked.
func FileKeySource(path string) KeySource {
	return func() (io.ReadCloser, error) {
		return os.Open(path)
	}
}

// SigningIdentity holds the credentials used to sign requests. It is
// immutable after construction apart from the cached key.
type SigningIdentity struct {
	tenantID    string
	userID      string
	fingerprint string
	keyLocation string
	passphrase  *string
	region      common.Region
	keySource   KeySource
	logger      *zerolog.Logger

	once   sync.Once
	key    *rsa.PrivateKey
	keyErr error
}

// Ensure SigningIdentity always satisfies the SDK provider interface at compile time.
var _ common.ConfigurationProvider = (*SigningIdentity)(nil)

// Resolve validates the credentials and builds a SigningIdentity backed by
// the key file at cfg.PrivateKeyLocation. The file is not opened here.
// The identity logs through the logger carried by ctx.
func Resolve(ctx context.Context, cfg config.CredentialsConfig) (*SigningIdentity, error) {
	return NewSigningIdentity(ctx, cfg, FileKeySource(cfg.PrivateKeyLocation))
}

// NewSigningIdentity builds an identity that reads its key from source.
func NewSigningIdentity(ctx context.Context, cfg config.CredentialsConfig, source KeySource) (*SigningIdentity, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if source == nil {
		return nil, ErrNilKeySource
	}

	id := &SigningIdentity{
		tenantID:    cfg.TenantID,
		userID:      cfg.UserID,
		fingerprint: cfg.Fingerprint,
		keyLocation: cfg.PrivateKeyLocation,
		region:      Region,
		keySource:   source,
		logger:      log.Ctx(ctx),
	}
	if cfg.Passphrase != "" {
		p := cfg.Passphrase
		id.passphrase = &p
	}

	id.logger.Debug().
		Str("tenancy", utils.Redact(id.tenantID)).
		Str("user", utils.Redact(id.userID)).
		Str("fingerprint", id.fingerprint).
		Str("region", string(id.region)).
		Msg("Signing identity resolved")

	return id, nil
}

// TenancyOCID returns the tenancy the identity signs for.
func (s *SigningIdentity) TenancyOCID() (string, error) {
	return s.tenantID, nil
}

// UserOCID returns the calling user.
func (s *SigningIdentity) UserOCID() (string, error) {
	return s.userID, nil
}

// KeyFingerprint returns the fingerprint of the uploaded public key.
func (s *SigningIdentity) KeyFingerprint() (string, error) {
	return s.fingerprint, nil
}

// Region returns the fixed region.
func (s *SigningIdentity) Region() (string, error) {
	return string(s.region), nil
}

// KeyID returns the key identifier used in the signature header.
func (s *SigningIdentity) KeyID() (string, error) {
	return fmt.Sprintf("%s/%s/%s", s.tenantID, s.userID, s.fingerprint), nil
}

// AuthType reports user-principal authentication.
func (s *SigningIdentity) AuthType() (common.AuthConfig, error) {
	return common.AuthConfig{AuthType: common.UserPrincipal}, nil
}

// PrivateRSAKey opens the key source on first use and caches the parsed key,
// or the failure, for every later call.
func (s *SigningIdentity) PrivateRSAKey() (*rsa.PrivateKey, error) {
	s.once.Do(func() {
		s.key, s.keyErr = s.loadKey()
		if s.keyErr != nil {
			s.logger.Debug().
				Str("key_file", s.keyLocation).
				Err(s.keyErr).
				Msg("Failed to load private key")
		}
	})
	return s.key, s.keyErr
}

func (s *SigningIdentity) loadKey() (*rsa.PrivateKey, error) {
	rc, err := s.keySource()
	if err != nil {
		return nil, errors.Join(ErrKeyAccess, err)
	}
	defer rc.Close()

	pem, err := utils.ReadLimited(rc, MaxKeyFileSize)
	if err != nil {
		return nil, errors.Join(ErrKeyAccess, err)
	}

	key, err := common.PrivateKeyFromBytes(pem, s.passphrase)
	if err != nil {
		return nil, errors.Join(ErrKeyAccess, err)
	}

	return key, nil
}

// Summary returns a redacted description of the identity. It attempts to
// load the key so the summary can report whether signing would succeed.
func (s *SigningIdentity) Summary() models.IdentitySummary {
	summary := models.IdentitySummary{
		Tenancy:     utils.Redact(s.tenantID),
		User:        utils.Redact(s.userID),
		Fingerprint: s.fingerprint,
		KeyFile:     s.keyLocation,
		Passphrase:  s.passphrase != nil,
		Region:      string(s.region),
	}

	if _, err := s.PrivateRSAKey(); err != nil {
		summary.KeyError = err.Error()
	} else {
		summary.KeyLoaded = true
	}

	return summary
}

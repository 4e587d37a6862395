package jwt

import (
	"crypto/ed25519"
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// SigningMethod names a supported signature algorithm.
type SigningMethod string

const (
	// MethodEd25519 signs with EdDSA over Ed25519.
	MethodEd25519 SigningMethod = "ed25519"
	// MethodHS256 signs with HMAC-SHA256.
	MethodHS256 SigningMethod = "hs256"
)

// SignerConfig configures token minting for development tooling and load tests.
type SignerConfig struct {
	TTL           time.Duration
	SigningMethod SigningMethod
	PrivateKey    []byte
	Issuer        string
	Audience      string
	KeyID         string
}

// TokenClaims is the payload layout the backend issues.
type TokenClaims struct {
	UID string `json:"uid"`
	RID string `json:"rid"`
	jwt.RegisteredClaims
}

// Signer mints tokens carrying uid/rid/exp.
type Signer struct {
	config SignerConfig
	key    interface{}
}

// NewSigner validates cfg and prepares the signing key.
func NewSigner(cfg SignerConfig) (*Signer, error) {
	if cfg.TTL <= 0 {
		return nil, errors.New("invalid TTL configuration")
	}
	cfg.KeyID = strings.TrimSpace(cfg.KeyID)

	var key interface{}
	switch cfg.SigningMethod {
	case MethodHS256:
		if len(cfg.PrivateKey) == 0 {
			return nil, errors.New("hs256 requires private key")
		}
		key = cfg.PrivateKey
	case MethodEd25519:
		edKey, err := parseEdPrivateKey(cfg.PrivateKey)
		if err != nil {
			return nil, err
		}
		key = edKey
	default:
		return nil, errors.New("unsupported signing method")
	}

	return &Signer{config: cfg, key: key}, nil
}

// Sign mints a token for uid/rid that expires after the configured TTL.
func (s *Signer) Sign(uid, rid string) (string, error) {
	return s.SignWithExpiry(uid, rid, time.Now().Add(s.config.TTL))
}

// SignWithExpiry mints a token with an explicit expiry, which may lie in the past.
func (s *Signer) SignWithExpiry(uid, rid string, expiresAt time.Time) (string, error) {
	claims := TokenClaims{
		UID: uid,
		RID: rid,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			Issuer:    s.config.Issuer,
		},
	}
	if s.config.Audience != "" {
		claims.Audience = jwt.ClaimStrings{s.config.Audience}
	}

	token := jwt.NewWithClaims(s.method(), claims)
	if s.config.KeyID != "" {
		token.Header["kid"] = s.config.KeyID
	}

	return token.SignedString(s.key)
}

func (s *Signer) method() jwt.SigningMethod {
	if s.config.SigningMethod == MethodHS256 {
		return jwt.SigningMethodHS256
	}
	return jwt.SigningMethodEdDSA
}

func parseEdPrivateKey(key []byte) (ed25519.PrivateKey, error) {
	if len(key) == ed25519.PrivateKeySize {
		return ed25519.PrivateKey(key), nil
	}
	parsed, err := jwt.ParseEdPrivateKeyFromPEM(key)
	if err != nil {
		return nil, errors.New("invalid ed25519 private key")
	}
	edKey, ok := parsed.(ed25519.PrivateKey)
	if !ok {
		return nil, errors.New("invalid ed25519 private key type")
	}
	return edKey, nil
}

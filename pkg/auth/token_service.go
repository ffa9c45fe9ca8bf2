// Package auth issues and validates the RS256 bearer tokens used by the
// REST and gRPC APIs.
package auth

import (
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Common errors for token operations.
var (
	ErrInvalidToken       = errors.New("invalid token")
	ErrExpiredToken       = errors.New("token has expired")
	ErrTokenSigningFailed = errors.New("failed to sign token")
	ErrKeyNotConfigured   = errors.New("JWT key path not configured")
	ErrInvalidKeyFormat   = errors.New("invalid key format")
)

// DefaultExpiry is the token lifetime when the config leaves it zero.
const DefaultExpiry = 24 * time.Hour

// Config holds the token service settings. When a path is empty the
// JWT_PRIVATE_KEY_PATH / JWT_PUBLIC_KEY_PATH environment variables are
// consulted instead.
type Config struct {
	PrivateKeyPath string
	PublicKeyPath  string
	Expiry         time.Duration
}

// Claims is the token payload: subject is the user ID.
type Claims struct {
	jwt.RegisteredClaims
}

// UserID returns the subject claim.
func (c *Claims) UserID() string {
	return c.Subject
}

// TokenService signs and validates RS256 tokens. Keys are loaded once at
// construction; a service built without a private key can still validate.
type TokenService struct {
	privateKey *rsa.PrivateKey
	publicKey  *rsa.PublicKey
	expiry     time.Duration
}

// NewTokenService loads the configured key pair and returns a ready
// service.
func NewTokenService(config Config) (*TokenService, error) {
	if config.PrivateKeyPath == "" {
		config.PrivateKeyPath = os.Getenv("JWT_PRIVATE_KEY_PATH")
	}
	if config.PublicKeyPath == "" {
		config.PublicKeyPath = os.Getenv("JWT_PUBLIC_KEY_PATH")
	}
	if config.Expiry <= 0 {
		config.Expiry = DefaultExpiry
	}

	service := &TokenService{expiry: config.Expiry}

	if config.PrivateKeyPath != "" {
		key, err := loadPrivateKey(config.PrivateKeyPath)
		if err != nil {
			return nil, err
		}
		service.privateKey = key
		service.publicKey = &key.PublicKey
	}

	if config.PublicKeyPath != "" {
		key, err := loadPublicKey(config.PublicKeyPath)
		if err != nil {
			return nil, err
		}
		service.publicKey = key
	}

	if service.privateKey == nil && service.publicKey == nil {
		return nil, ErrKeyNotConfigured
	}

	return service, nil
}

// Generate signs a token for the given user ID. Claims carry sub, iat and
// exp only.
func (s *TokenService) Generate(userID string) (string, time.Time, error) {
	if s.privateKey == nil {
		return "", time.Time{}, ErrKeyNotConfigured
	}

	now := time.Now()
	expiresAt := now.Add(s.expiry)
	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	signed, err := token.SignedString(s.privateKey)
	if err != nil {
		return "", time.Time{}, ErrTokenSigningFailed
	}
	return signed, expiresAt, nil
}

// Validate parses a token, verifies the RS256 signature and enforces
// expiry.
func (s *TokenService) Validate(tokenString string) (*Claims, error) {
	if s.publicKey == nil {
		return nil, ErrKeyNotConfigured
	}

	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodRSA); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.publicKey, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// Expiry returns the configured token lifetime.
func (s *TokenService) Expiry() time.Duration {
	return s.expiry
}

// loadPrivateKey reads a PEM encoded RSA private key in PKCS#8 or PKCS#1
// form.
func loadPrivateKey(path string) (*rsa.PrivateKey, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read private key %s: %w", path, err)
	}

	block, _ := pem.Decode(data)
	if block == nil {
		return nil, fmt.Errorf("%w: no PEM block in %s", ErrInvalidKeyFormat, path)
	}

	if key, err := x509.ParsePKCS8PrivateKey(block.Bytes); err == nil {
		rsaKey, ok := key.(*rsa.PrivateKey)
		if !ok {
			return nil, fmt.Errorf("%w: %s is not an RSA key", ErrInvalidKeyFormat, path)
		}
		return rsaKey, nil
	}

	key, err := x509.ParsePKCS1PrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidKeyFormat, path, err)
	}
	return key, nil
}

// loadPublicKey reads a PEM encoded RSA public key in PKIX or PKCS#1 form.
func loadPublicKey(path string) (*rsa.PublicKey, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read public key %s: %w", path, err)
	}

	block, _ := pem.Decode(data)
	if block == nil {
		return nil, fmt.Errorf("%w: no PEM block in %s", ErrInvalidKeyFormat, path)
	}

	if key, err := x509.ParsePKIXPublicKey(block.Bytes); err == nil {
		rsaKey, ok := key.(*rsa.PublicKey)
		if !ok {
			return nil, fmt.Errorf("%w: %s is not an RSA key", ErrInvalidKeyFormat, path)
		}
		return rsaKey, nil
	}

	key, err := x509.ParsePKCS1PublicKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidKeyFormat, path, err)
	}
	return key, nil
}

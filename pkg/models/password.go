package models

import (
	"errors"

	"golang.org/x/crypto/bcrypt"
)

// Password length limits enforced at creation time.
const (
	MinPasswordLength = 8
	MaxPasswordLength = 128

	// DefaultBcryptCost balances hashing strength against login latency.
	DefaultBcryptCost = 10
)

var (
	// ErrHashFailed indicates the password could not be hashed.
	ErrHashFailed = errors.New("failed to hash password")

	// ErrVerificationFailed indicates the stored hash is malformed.
	ErrVerificationFailed = errors.New("failed to verify password")

	// ErrNotImplemented indicates the stored hash uses an algorithm this
	// build cannot verify.
	ErrNotImplemented = errors.New("password algorithm not implemented")
)

// PasswordAlgorithm identifies the hashing scheme of a stored credential.
type PasswordAlgorithm string

const (
	AlgorithmBcrypt PasswordAlgorithm = "bcrypt"
	AlgorithmArgon2 PasswordAlgorithm = "argon2"
	AlgorithmPBKDF2 PasswordAlgorithm = "pbkdf2"
)

// PasswordHash stores a hashed credential together with its algorithm.
// Salt stays empty for algorithms that embed the salt in the hash string,
// as bcrypt does.
type PasswordHash struct {
	Hash      string            `json:"hash" msgpack:"hash"`
	Algorithm PasswordAlgorithm `json:"algorithm" msgpack:"algorithm"`
	Salt      []byte            `json:"salt,omitempty" msgpack:"salt"`
}

// NewBcryptHash hashes password with bcrypt at the default cost.
func NewBcryptHash(password string) (PasswordHash, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), DefaultBcryptCost)
	if err != nil {
		return PasswordHash{}, ErrHashFailed
	}
	return PasswordHash{
		Hash:      string(hash),
		Algorithm: AlgorithmBcrypt,
	}, nil
}

// Verify reports whether password matches the stored hash. Only bcrypt is
// currently supported; other algorithms return ErrNotImplemented.
func (p PasswordHash) Verify(password string) (bool, error) {
	switch p.Algorithm {
	case AlgorithmBcrypt:
		err := bcrypt.CompareHashAndPassword([]byte(p.Hash), []byte(password))
		if err == nil {
			return true, nil
		}
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return false, nil
		}
		return false, ErrVerificationFailed
	default:
		return false, ErrNotImplemented
	}
}

// String returns the raw hash string.
func (p PasswordHash) String() string {
	return p.Hash
}

// MFAMethod identifies a second-factor mechanism enrolled for a user.
type MFAMethod string

const (
	MFATotp     MFAMethod = "totp"
	MFASms      MFAMethod = "sms"
	MFAFido2    MFAMethod = "fido2"
	MFAEmailOtp MFAMethod = "email_otp"
)

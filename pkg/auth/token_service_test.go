package auth

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

// writeTestKeyPair generates a small RSA key and writes PKCS#8 private and
// PKIX public PEM files.
func writeTestKeyPair(t *testing.T) (privPath, pubPath string) {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("GenerateKey failed: %v", err)
	}

	dir := t.TempDir()
	privPath = filepath.Join(dir, "jwt_private.pem")
	pubPath = filepath.Join(dir, "jwt_public.pem")

	privDER, err := x509.MarshalPKCS8PrivateKey(key)
	if err != nil {
		t.Fatalf("MarshalPKCS8PrivateKey failed: %v", err)
	}
	privPEM := pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: privDER})
	if err := os.WriteFile(privPath, privPEM, 0o600); err != nil {
		t.Fatalf("write private key: %v", err)
	}

	pubDER, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	if err != nil {
		t.Fatalf("MarshalPKIXPublicKey failed: %v", err)
	}
	pubPEM := pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: pubDER})
	if err := os.WriteFile(pubPath, pubPEM, 0o600); err != nil {
		t.Fatalf("write public key: %v", err)
	}

	return privPath, pubPath
}

func TestGenerateAndValidate(t *testing.T) {
	privPath, pubPath := writeTestKeyPair(t)
	service, err := NewTokenService(Config{PrivateKeyPath: privPath, PublicKeyPath: pubPath})
	if err != nil {
		t.Fatalf("NewTokenService failed: %v", err)
	}

	token, expiresAt, err := service.Generate("user-42")
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if until := time.Until(expiresAt); until < 23*time.Hour || until > 25*time.Hour {
		t.Errorf("expiry %v not near the 24h default", until)
	}

	claims, err := service.Validate(token)
	if err != nil {
		t.Fatalf("Validate failed: %v", err)
	}
	if claims.UserID() != "user-42" {
		t.Errorf("UserID = %s, want user-42", claims.UserID())
	}
}

func TestValidateRejectsGarbage(t *testing.T) {
	privPath, pubPath := writeTestKeyPair(t)
	service, err := NewTokenService(Config{PrivateKeyPath: privPath, PublicKeyPath: pubPath})
	if err != nil {
		t.Fatalf("NewTokenService failed: %v", err)
	}

	if _, err := service.Validate("not.a.token"); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("err = %v, want ErrInvalidToken", err)
	}
}

func TestValidateRejectsExpired(t *testing.T) {
	privPath, pubPath := writeTestKeyPair(t)
	service, err := NewTokenService(Config{
		PrivateKeyPath: privPath,
		PublicKeyPath:  pubPath,
		Expiry:         time.Millisecond,
	})
	if err != nil {
		t.Fatalf("NewTokenService failed: %v", err)
	}

	token, _, err := service.Generate("user-42")
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	time.Sleep(50 * time.Millisecond)

	if _, err := service.Validate(token); !errors.Is(err, ErrExpiredToken) {
		t.Errorf("err = %v, want ErrExpiredToken", err)
	}
}

func TestValidateRejectsForeignKey(t *testing.T) {
	privA, _ := writeTestKeyPair(t)
	_, pubB := writeTestKeyPair(t)

	signer, err := NewTokenService(Config{PrivateKeyPath: privA})
	if err != nil {
		t.Fatalf("NewTokenService failed: %v", err)
	}
	verifier, err := NewTokenService(Config{PublicKeyPath: pubB})
	if err != nil {
		t.Fatalf("NewTokenService failed: %v", err)
	}

	token, _, err := signer.Generate("user-42")
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if _, err := verifier.Validate(token); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("err = %v, want ErrInvalidToken", err)
	}
}

func TestKeyNotConfigured(t *testing.T) {
	t.Setenv("JWT_PRIVATE_KEY_PATH", "")
	t.Setenv("JWT_PUBLIC_KEY_PATH", "")

	if _, err := NewTokenService(Config{}); !errors.Is(err, ErrKeyNotConfigured) {
		t.Errorf("err = %v, want ErrKeyNotConfigured", err)
	}
}

func TestEnvKeyPaths(t *testing.T) {
	privPath, pubPath := writeTestKeyPair(t)
	t.Setenv("JWT_PRIVATE_KEY_PATH", privPath)
	t.Setenv("JWT_PUBLIC_KEY_PATH", pubPath)

	service, err := NewTokenService(Config{})
	if err != nil {
		t.Fatalf("NewTokenService failed: %v", err)
	}
	token, _, err := service.Generate("user-7")
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	claims, err := service.Validate(token)
	if err != nil || claims.UserID() != "user-7" {
		t.Errorf("Validate = %v, %v", claims, err)
	}
}

func TestValidateWithoutPrivateKey(t *testing.T) {
	privPath, pubPath := writeTestKeyPair(t)
	signer, err := NewTokenService(Config{PrivateKeyPath: privPath})
	if err != nil {
		t.Fatalf("NewTokenService failed: %v", err)
	}
	verifier, err := NewTokenService(Config{PublicKeyPath: pubPath})
	if err != nil {
		t.Fatalf("NewTokenService failed: %v", err)
	}

	token, _, err := signer.Generate("user-9")
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if _, err := verifier.Validate(token); err != nil {
		t.Errorf("Validate failed: %v", err)
	}

	if _, _, err := verifier.Generate("user-9"); !errors.Is(err, ErrKeyNotConfigured) {
		t.Errorf("Generate err = %v, want ErrKeyNotConfigured", err)
	}
}

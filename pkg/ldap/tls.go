package ldap

import (
	"crypto/tls"
	"fmt"
)

// LoadServerTLS builds a server-side TLS config from a PEM certificate
// chain and private key. Client certificates are not requested.
func LoadServerTLS(certPath, keyPath string) (*tls.Config, error) {
	cert, err := tls.LoadX509KeyPair(certPath, keyPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load TLS key pair: %w", err)
	}
	return &tls.Config{
		Certificates: []tls.Certificate{cert},
		MinVersion:   tls.VersionTLS12,
	}, nil
}

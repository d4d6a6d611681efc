package client

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"os"

	"github.com/otherjamesbrown/meetchat/config"
)

// LoadClientTLSConfig creates a tls.Config for the gRPC client.
// Returns nil if TLS is not enabled in the configuration. The client
// certificate is optional; when both cert and key are set the connection uses mTLS.
func LoadClientTLSConfig(cfg *config.TLSConfig) (*tls.Config, error) {
	if !cfg.Enabled {
		return nil, nil
	}

	cfg.ResolvePaths()

	tlsConfig := &tls.Config{
		MinVersion:         tls.VersionTLS12,
		InsecureSkipVerify: cfg.SkipVerify,
	}

	if cfg.ClientCert != "" && cfg.ClientKey != "" {
		cert, err := tls.LoadX509KeyPair(cfg.ClientCert, cfg.ClientKey)
		if err != nil {
			return nil, fmt.Errorf("load client cert: %w", err)
		}
		tlsConfig.Certificates = []tls.Certificate{cert}
	}

	// Load CA certificate for server verification (unless SkipVerify is set).
	if cfg.CACert != "" && !cfg.SkipVerify {
		caCert, err := os.ReadFile(cfg.CACert)
		if err != nil {
			return nil, fmt.Errorf("read CA cert: %w", err)
		}

		caPool := x509.NewCertPool()
		if !caPool.AppendCertsFromPEM(caCert) {
			return nil, fmt.Errorf("parse CA cert: invalid PEM")
		}

		tlsConfig.RootCAs = caPool
	}

	return tlsConfig, nil
}

// CheckCertsExist verifies all configured certificate files are present.
// This is useful for providing clear error messages before attempting to connect.
func CheckCertsExist(cfg *config.TLSConfig) error {
	cfg.ResolvePaths()

	files := []struct {
		name string
		path string
	}{
		{"CA certificate", cfg.CACert},
		{"Client certificate", cfg.ClientCert},
		{"Client key", cfg.ClientKey},
	}

	for _, f := range files {
		if f.path == "" {
			continue
		}
		if _, err := os.Stat(f.path); os.IsNotExist(err) {
			return fmt.Errorf("%s not found: %s", f.name, f.path)
		}
	}

	return nil
}

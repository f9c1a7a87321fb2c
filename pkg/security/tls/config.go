package tls

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"os"

	"mercator-hq/archivist/pkg/config"
)

// ServerConfig builds the crypto/tls configuration of the API listener.
// It returns nil when TLS is disabled. The certificate is served through a
// CertificateReloader started on ctx, so renewed files are picked up without
// a restart.
func ServerConfig(ctx context.Context, cfg *config.TLSConfig) (*tls.Config, error) {
	if cfg == nil || !cfg.Enabled {
		return nil, nil
	}
	if cfg.CertFile == "" {
		return nil, fmt.Errorf("cert_file is required when TLS is enabled")
	}
	if cfg.KeyFile == "" {
		return nil, fmt.Errorf("key_file is required when TLS is enabled")
	}

	reloader := NewCertificateReloader(cfg.CertFile, cfg.KeyFile, cfg.ReloadInterval)
	if err := reloader.Start(ctx); err != nil {
		return nil, fmt.Errorf("failed to load certificate: %w", err)
	}

	// #nosec G402 - MinVersion is 1.2 or 1.3
	tlsConfig := &tls.Config{
		GetCertificate: reloader.GetCertificateFunc(),
		MinVersion:     parseTLSVersion(cfg.MinVersion),
	}

	if cfg.ClientCAFile != "" {
		pool, err := loadCAPool(cfg.ClientCAFile)
		if err != nil {
			return nil, err
		}
		tlsConfig.ClientCAs = pool
		tlsConfig.ClientAuth = parseClientAuthType(cfg.ClientAuth)
	}

	return tlsConfig, nil
}

func loadCAPool(path string) (*x509.CertPool, error) {
	pem, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read client CA: %w", err)
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(pem) {
		return nil, fmt.Errorf("failed to parse client CA certificate")
	}
	return pool, nil
}

// parseTLSVersion maps "1.2" and "1.3" to tls constants. Anything else is 1.3.
func parseTLSVersion(v string) uint16 {
	if v == "1.2" {
		return tls.VersionTLS12
	}
	return tls.VersionTLS13
}

// parseClientAuthType maps require, request and verify_if_given. The default
// requires and verifies a client certificate.
func parseClientAuthType(s string) tls.ClientAuthType {
	switch s {
	case "request":
		return tls.RequestClientCert
	case "verify_if_given":
		return tls.VerifyClientCertIfGiven
	default:
		return tls.RequireAndVerifyClientCert
	}
}

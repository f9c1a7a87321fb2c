package tls

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"math/big"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"mercator-hq/archivist/pkg/config"
)

// writeCert writes a self-signed pair valid in [notBefore, notAfter] and
// returns the file paths.
func writeCert(t *testing.T, dir, cn string, notBefore, notAfter time.Time) (certFile, keyFile string) {
	t.Helper()
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatal(err)
	}
	tmpl := &x509.Certificate{
		SerialNumber:          big.NewInt(time.Now().UnixNano()),
		Subject:               pkix.Name{CommonName: cn},
		NotBefore:             notBefore,
		NotAfter:              notAfter,
		KeyUsage:              x509.KeyUsageDigitalSignature | x509.KeyUsageCertSign,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		BasicConstraintsValid: true,
		IsCA:                  true,
		DNSNames:              []string{"localhost"},
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	if err != nil {
		t.Fatal(err)
	}
	keyDER, err := x509.MarshalECPrivateKey(key)
	if err != nil {
		t.Fatal(err)
	}

	certFile = filepath.Join(dir, cn+".crt")
	keyFile = filepath.Join(dir, cn+".key")
	if err := os.WriteFile(certFile, pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der}), 0o600); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(keyFile, pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: keyDER}), 0o600); err != nil {
		t.Fatal(err)
	}
	return certFile, keyFile
}

func leafCN(t *testing.T, cert *tls.Certificate) string {
	t.Helper()
	leaf, err := x509.ParseCertificate(cert.Certificate[0])
	if err != nil {
		t.Fatal(err)
	}
	return leaf.Subject.CommonName
}

func TestServerConfig(t *testing.T) {
	dir := t.TempDir()
	now := time.Now()
	certFile, keyFile := writeCert(t, dir, "api", now.Add(-time.Hour), now.Add(90*24*time.Hour))
	expiredCert, expiredKey := writeCert(t, dir, "old", now.Add(-48*time.Hour), now.Add(-24*time.Hour))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	tests := []struct {
		name    string
		cfg     *config.TLSConfig
		wantNil bool
		wantErr string
		check   func(t *testing.T, c *tls.Config)
	}{
		{name: "nil config", cfg: nil, wantNil: true},
		{name: "disabled", cfg: &config.TLSConfig{Enabled: false, CertFile: certFile}, wantNil: true},
		{name: "missing cert", cfg: &config.TLSConfig{Enabled: true, KeyFile: keyFile}, wantErr: "cert_file"},
		{name: "missing key", cfg: &config.TLSConfig{Enabled: true, CertFile: certFile}, wantErr: "key_file"},
		{name: "expired", cfg: &config.TLSConfig{Enabled: true, CertFile: expiredCert, KeyFile: expiredKey}, wantErr: "expired"},
		{
			name: "tls 1.2 floor",
			cfg:  &config.TLSConfig{Enabled: true, CertFile: certFile, KeyFile: keyFile, MinVersion: "1.2"},
			check: func(t *testing.T, c *tls.Config) {
				if c.MinVersion != tls.VersionTLS12 {
					t.Errorf("MinVersion = %x, want TLS 1.2", c.MinVersion)
				}
				if c.ClientCAs != nil {
					t.Error("ClientCAs should be nil without client_ca_file")
				}
			},
		},
		{
			name: "client CA",
			cfg:  &config.TLSConfig{Enabled: true, CertFile: certFile, KeyFile: keyFile, ClientCAFile: certFile, ClientAuth: "verify_if_given"},
			check: func(t *testing.T, c *tls.Config) {
				if c.MinVersion != tls.VersionTLS13 {
					t.Errorf("MinVersion = %x, want TLS 1.3", c.MinVersion)
				}
				if c.ClientCAs == nil || c.ClientAuth != tls.VerifyClientCertIfGiven {
					t.Errorf("client auth = %v, want VerifyClientCertIfGiven with CA pool", c.ClientAuth)
				}
				cert, err := c.GetCertificate(&tls.ClientHelloInfo{})
				if err != nil || leafCN(t, cert) != "api" {
					t.Errorf("GetCertificate() = %v, %v", cert, err)
				}
			},
		},
		{name: "bad client CA", cfg: &config.TLSConfig{Enabled: true, CertFile: certFile, KeyFile: keyFile, ClientCAFile: keyFile}, wantErr: "client CA"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ServerConfig(ctx, tt.cfg)
			if tt.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
					t.Fatalf("ServerConfig() error = %v, want containing %q", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("ServerConfig() error = %v", err)
			}
			if (got == nil) != tt.wantNil {
				t.Fatalf("ServerConfig() = %v, wantNil %v", got, tt.wantNil)
			}
			if tt.check != nil {
				tt.check(t, got)
			}
		})
	}
}

func TestParseClientAuthType(t *testing.T) {
	tests := []struct {
		in   string
		want tls.ClientAuthType
	}{
		{"", tls.RequireAndVerifyClientCert},
		{"require", tls.RequireAndVerifyClientCert},
		{"request", tls.RequestClientCert},
		{"verify_if_given", tls.VerifyClientCertIfGiven},
	}
	for _, tt := range tests {
		if got := parseClientAuthType(tt.in); got != tt.want {
			t.Errorf("parseClientAuthType(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestCheckCertificateExpiration(t *testing.T) {
	now := time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)
	tests := []struct {
		name        string
		notAfter    time.Time
		wantDays    int
		wantWarning bool
	}{
		{"far", now.AddDate(0, 0, 90), 90, false},
		{"soon", now.AddDate(0, 0, 10), 10, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			days, warning := CheckCertificateExpiration(&x509.Certificate{NotAfter: tt.notAfter}, now)
			if days != tt.wantDays || (warning != "") != tt.wantWarning {
				t.Errorf("CheckCertificateExpiration() = %d, %q", days, warning)
			}
		})
	}

	cert := &x509.Certificate{NotBefore: now.Add(time.Hour), NotAfter: now.AddDate(1, 0, 0)}
	if err := ValidateX509Certificate(cert, now); err == nil || !strings.Contains(err.Error(), "not yet valid") {
		t.Errorf("ValidateX509Certificate() error = %v, want not yet valid", err)
	}
}

func TestCertificateReloader_Reload(t *testing.T) {
	dir := t.TempDir()
	now := time.Now()
	certFile, keyFile := writeCert(t, dir, "first", now.Add(-time.Hour), now.Add(24*time.Hour*60))

	r := NewCertificateReloader(certFile, keyFile, 10*time.Millisecond)
	if r.GetCertificate() != nil {
		t.Fatal("GetCertificate() before Start should be nil")
	}
	if _, err := r.GetCertificateFunc()(nil); err == nil {
		t.Error("GetCertificateFunc() before Start should fail")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := r.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if cn := leafCN(t, r.GetCertificate()); cn != "first" {
		t.Fatalf("initial CN = %q, want first", cn)
	}

	// Replace the pair in place with a newer modification time.
	second, secondKey := writeCert(t, t.TempDir(), "second", now.Add(-time.Hour), now.Add(24*time.Hour*60))
	for src, dst := range map[string]string{second: certFile, secondKey: keyFile} {
		data, err := os.ReadFile(src)
		if err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(dst, data, 0o600); err != nil {
			t.Fatal(err)
		}
		future := time.Now().Add(time.Minute)
		if err := os.Chtimes(dst, future, future); err != nil {
			t.Fatal(err)
		}
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if leafCN(t, r.GetCertificate()) == "second" {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Errorf("certificate was not reloaded, CN = %q", leafCN(t, r.GetCertificate()))
}

// Package tls wires certificate management for the public site: either
// manually provisioned certificate files or automatic issuance through Let's
// Encrypt. Disabled entirely by default; the terminal works the same either
// way.
package tls

import (
	"crypto/tls"
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/folioterm/folioterm/pkg/configuration"
	"github.com/folioterm/folioterm/pkg/logger"

	"golang.org/x/crypto/acme/autocert"
)

// Config holds the [TLS] section of the configuration file.
type Config struct {
	Enabled            bool
	EnableLetsEncrypt  bool
	Domain             string
	LetsEncryptEmail   string
	CertCacheDir       string
	ForceHTTPSRedirect bool
	CertFile           string
	KeyFile            string
	HTTPSAddr          string
}

// Manager owns the TLS configuration handed to the HTTP server.
type Manager struct {
	config      Config
	autocertMgr *autocert.Manager
	tlsConfig   *tls.Config
}

// NewManager reads the [TLS] configuration section and prepares certificate
// handling. With TLS disabled the manager is inert.
func NewManager() (*Manager, error) {
	cfg := Config{
		Enabled:            configuration.GetBool("TLS", "enable_tls", false),
		EnableLetsEncrypt:  configuration.GetBool("TLS", "enable_letsencrypt", false),
		Domain:             configuration.GetString("TLS", "domain", ""),
		LetsEncryptEmail:   configuration.GetString("TLS", "letsencrypt_email", ""),
		CertCacheDir:       configuration.GetString("TLS", "cert_cache_dir", "./certs"),
		ForceHTTPSRedirect: configuration.GetBool("TLS", "force_https_redirect", false),
		CertFile:           configuration.GetString("TLS", "cert_file", "./certs/server.crt"),
		KeyFile:            configuration.GetString("TLS", "key_file", "./certs/server.key"),
		HTTPSAddr:          configuration.GetString("TLS", "https_addr", ":8443"),
	}

	m := &Manager{config: cfg}
	if !cfg.Enabled {
		return m, nil
	}

	if cfg.EnableLetsEncrypt {
		if err := m.initLetsEncrypt(); err != nil {
			return nil, err
		}
		return m, nil
	}
	if err := m.initManual(); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *Manager) initLetsEncrypt() error {
	if strings.TrimSpace(m.config.Domain) == "" {
		return fmt.Errorf("domain is required when Let's Encrypt is enabled")
	}
	if strings.TrimSpace(m.config.LetsEncryptEmail) == "" {
		return fmt.Errorf("letsencrypt_email is required when Let's Encrypt is enabled")
	}
	if err := os.MkdirAll(m.config.CertCacheDir, 0700); err != nil {
		return fmt.Errorf("creating certificate cache directory: %w", err)
	}

	m.autocertMgr = &autocert.Manager{
		Cache:      autocert.DirCache(m.config.CertCacheDir),
		Prompt:     autocert.AcceptTOS,
		Email:      m.config.LetsEncryptEmail,
		HostPolicy: autocert.HostWhitelist(m.config.Domain, "www."+m.config.Domain),
	}
	m.tlsConfig = &tls.Config{
		GetCertificate: m.getCertificate,
		NextProtos:     []string{"h2", "http/1.1"},
		MinVersion:     tls.VersionTLS12,
	}

	logger.Info(logger.AreaSecurity, "Let's Encrypt enabled for %s", m.config.Domain)
	return nil
}

// getCertificate wraps the autocert lookup so handshakes without SNI fall
// back to the configured domain instead of failing outright.
func (m *Manager) getCertificate(hello *tls.ClientHelloInfo) (*tls.Certificate, error) {
	serverName := hello.ServerName
	if serverName == "" {
		logger.SecurityWarn("TLS handshake without SNI from %s", hello.Conn.RemoteAddr())
		serverName = m.config.Domain
	}
	if serverName != m.config.Domain && serverName != "www."+m.config.Domain {
		logger.SecurityWarn("TLS request for unauthorized domain %q from %s", serverName, hello.Conn.RemoteAddr())
		return nil, fmt.Errorf("unauthorized domain: %s", serverName)
	}

	cert, err := m.autocertMgr.GetCertificate(hello)
	if err != nil {
		logger.SecurityWarn("no certificate for %s: %v", serverName, err)
		return nil, fmt.Errorf("certificate error for %s: %w", serverName, err)
	}
	return cert, nil
}

func (m *Manager) initManual() error {
	if _, err := os.Stat(m.config.CertFile); os.IsNotExist(err) {
		return fmt.Errorf("certificate file not found: %s", m.config.CertFile)
	}
	if _, err := os.Stat(m.config.KeyFile); os.IsNotExist(err) {
		return fmt.Errorf("key file not found: %s", m.config.KeyFile)
	}
	m.tlsConfig = &tls.Config{
		MinVersion: tls.VersionTLS12,
		NextProtos: []string{"h2", "http/1.1"},
	}
	logger.Info(logger.AreaSecurity, "manual TLS configured (%s)", m.config.CertFile)
	return nil
}

// Enabled reports whether the server should listen on TLS at all.
func (m *Manager) Enabled() bool {
	return m.config.Enabled
}

// TLSConfig returns the prepared TLS configuration, nil when disabled.
func (m *Manager) TLSConfig() *tls.Config {
	if !m.config.Enabled {
		return nil
	}
	return m.tlsConfig
}

// CertFiles returns the manual certificate pair. Empty strings in Let's
// Encrypt mode, where the autocert callback supplies certificates instead.
func (m *Manager) CertFiles() (string, string) {
	if m.config.EnableLetsEncrypt {
		return "", ""
	}
	return m.config.CertFile, m.config.KeyFile
}

// HTTPSAddr returns the TLS listen address.
func (m *Manager) HTTPSAddr() string {
	return m.config.HTTPSAddr
}

// NeedsHTTPServer reports whether a plain HTTP listener is still required,
// either for ACME HTTP-01 challenges or for the HTTPS redirect.
func (m *Manager) NeedsHTTPServer() bool {
	return m.config.Enabled && (m.config.EnableLetsEncrypt || m.config.ForceHTTPSRedirect)
}

// HTTPHandler wraps the plain-HTTP side: ACME challenges are answered, and
// everything else is redirected to HTTPS when the redirect is enabled.
// Without either concern the fallback handler is returned untouched.
func (m *Manager) HTTPHandler(fallback http.Handler) http.Handler {
	handler := fallback
	if m.config.ForceHTTPSRedirect {
		handler = m.redirectHandler()
	}
	if m.autocertMgr != nil {
		return m.autocertMgr.HTTPHandler(handler)
	}
	return handler
}

func (m *Manager) redirectHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		host := r.Host
		if idx := strings.Index(host, ":"); idx >= 0 {
			host = host[:idx]
		}
		target := "https://" + host
		if port := httpsPort(m.config.HTTPSAddr); port != "" && port != "443" {
			target += ":" + port
		}
		target += r.RequestURI
		http.Redirect(w, r, target, http.StatusMovedPermanently)
	})
}

// httpsPort extracts the port from a listen address like ":8443".
func httpsPort(addr string) string {
	if idx := strings.LastIndex(addr, ":"); idx >= 0 {
		return addr[idx+1:]
	}
	return ""
}

// Package server runs the HTTP front door: plain HTTP, HTTPS with
// certificate files, or HTTPS with Let's Encrypt certificates.
package server

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"strings"
	"time"

	"golang.org/x/crypto/acme/autocert"

	"github.com/antibyte/cpcrun/pkg/configuration"
	"github.com/antibyte/cpcrun/pkg/logger"
)

const shutdownTimeout = 5 * time.Second

// TLSConfig holds the [TLS] settings.
type TLSConfig struct {
	EnableTLS          bool
	EnableLetsEncrypt  bool
	Domain             string
	LetsEncryptEmail   string
	CertCacheDir       string
	ForceHTTPSRedirect bool
	CertFile           string
	KeyFile            string
	HTTPPort           string
	HTTPSPort          string
}

// TLSConfigFromConfig reads [TLS]; the HTTP port defaults to [Server] port.
func TLSConfigFromConfig() TLSConfig {
	return TLSConfig{
		EnableTLS:          configuration.GetBool("TLS", "enable_tls", false),
		EnableLetsEncrypt:  configuration.GetBool("TLS", "enable_letsencrypt", false),
		Domain:             configuration.GetString("TLS", "domain", ""),
		LetsEncryptEmail:   configuration.GetString("TLS", "letsencrypt_email", ""),
		CertCacheDir:       configuration.GetString("TLS", "cert_cache_dir", "./certs"),
		ForceHTTPSRedirect: configuration.GetBool("TLS", "force_https_redirect", false),
		CertFile:           configuration.GetString("TLS", "cert_file", "./certs/server.crt"),
		KeyFile:            configuration.GetString("TLS", "key_file", "./certs/server.key"),
		HTTPPort:           configuration.GetString("Server", "port", "8080"),
		HTTPSPort:          configuration.GetString("TLS", "https_port", "8443"),
	}
}

func (c TLSConfig) validate() error {
	if !c.EnableTLS {
		return nil
	}
	if c.EnableLetsEncrypt {
		if strings.TrimSpace(c.Domain) == "" {
			return errors.New("domain is required when Let's Encrypt is enabled")
		}
		if strings.TrimSpace(c.LetsEncryptEmail) == "" {
			return errors.New("letsencrypt_email is required when Let's Encrypt is enabled")
		}
		return nil
	}
	for _, f := range []string{c.CertFile, c.KeyFile} {
		if _, err := os.Stat(f); err != nil {
			return fmt.Errorf("certificate file: %w", err)
		}
	}
	return nil
}

// Server serves handler according to its TLS settings.
type Server struct {
	cfg         TLSConfig
	handler     http.Handler
	autocertMgr *autocert.Manager
}

// New validates cfg and prepares Let's Encrypt if enabled.
func New(cfg TLSConfig, handler http.Handler) (*Server, error) {
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("TLS configuration validation failed: %w", err)
	}
	s := &Server{cfg: cfg, handler: handler}
	if cfg.EnableTLS && cfg.EnableLetsEncrypt {
		if err := os.MkdirAll(cfg.CertCacheDir, 0700); err != nil {
			return nil, fmt.Errorf("failed to create certificate cache directory: %w", err)
		}
		s.autocertMgr = &autocert.Manager{
			Cache:      autocert.DirCache(cfg.CertCacheDir),
			Prompt:     autocert.AcceptTOS,
			Email:      cfg.LetsEncryptEmail,
			HostPolicy: autocert.HostWhitelist(cfg.Domain, "www."+cfg.Domain),
		}
	}
	return s, nil
}

// tlsConfig returns the certificate source for Let's Encrypt, or nil for
// certificate files.
func (s *Server) tlsConfig() *tls.Config {
	if s.autocertMgr == nil {
		return nil
	}
	cfg := s.autocertMgr.TLSConfig()
	cfg.MinVersion = tls.VersionTLS12
	return cfg
}

// redirectHandler sends plain HTTP requests to the HTTPS port.
func (s *Server) redirectHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		host := r.Host
		if h, _, err := net.SplitHostPort(host); err == nil {
			host = h
		}
		if s.cfg.HTTPSPort != "443" {
			host = net.JoinHostPort(host, s.cfg.HTTPSPort)
		} else if strings.Contains(host, ":") {
			host = "[" + host + "]"
		}
		http.Redirect(w, r, "https://"+host+r.URL.RequestURI(), http.StatusMovedPermanently)
	})
}

// plainHandler is what the HTTP port serves.
func (s *Server) plainHandler() http.Handler {
	if !s.cfg.EnableTLS {
		return s.handler
	}
	var fallback http.Handler
	if s.cfg.ForceHTTPSRedirect {
		fallback = s.redirectHandler()
	}
	if s.autocertMgr != nil {
		// Let's Encrypt challenges, alles andere wird umgeleitet
		return s.autocertMgr.HTTPHandler(fallback)
	}
	return fallback
}

// Serve runs until ctx is cancelled or a listener fails.
func (s *Server) Serve(ctx context.Context) error {
	var servers []*http.Server
	errc := make(chan error, 2)

	if h := s.plainHandler(); h != nil {
		srv := &http.Server{Addr: ":" + s.cfg.HTTPPort, Handler: h}
		servers = append(servers, srv)
		go func() {
			logger.Info(logger.AreaGeneral, "Starting HTTP server on port %s", s.cfg.HTTPPort)
			errc <- srv.ListenAndServe()
		}()
	}
	if s.cfg.EnableTLS {
		srv := &http.Server{Addr: ":" + s.cfg.HTTPSPort, Handler: s.handler, TLSConfig: s.tlsConfig()}
		servers = append(servers, srv)
		go func() {
			logger.Info(logger.AreaGeneral, "Starting HTTPS server on port %s", s.cfg.HTTPSPort)
			if srv.TLSConfig != nil {
				errc <- srv.ListenAndServeTLS("", "")
			} else {
				errc <- srv.ListenAndServeTLS(s.cfg.CertFile, s.cfg.KeyFile)
			}
		}()
	}

	var err error
	select {
	case <-ctx.Done():
	case err = <-errc:
		logger.Error(logger.AreaGeneral, "server stopped: %v", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	for _, srv := range servers {
		if shutdownErr := srv.Shutdown(shutdownCtx); shutdownErr != nil {
			logger.Warn(logger.AreaGeneral, "shutdown %s: %v", srv.Addr, shutdownErr)
		}
	}
	if errors.Is(err, http.ErrServerClosed) {
		err = nil
	}
	return err
}

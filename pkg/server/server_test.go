package server

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     TLSConfig
		wantErr bool
	}{
		{"disabled", TLSConfig{}, false},
		{"letsencrypt without domain", TLSConfig{EnableTLS: true, EnableLetsEncrypt: true, LetsEncryptEmail: "a@b.c"}, true},
		{"letsencrypt without email", TLSConfig{EnableTLS: true, EnableLetsEncrypt: true, Domain: "b.c"}, true},
		{"letsencrypt", TLSConfig{EnableTLS: true, EnableLetsEncrypt: true, Domain: "b.c", LetsEncryptEmail: "a@b.c"}, false},
		{"missing certificate", TLSConfig{EnableTLS: true, CertFile: "/nonexistent.crt", KeyFile: "/nonexistent.key"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.cfg.validate(); (err != nil) != tt.wantErr {
				t.Errorf("validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestRedirectHandler(t *testing.T) {
	tests := []struct {
		name   string
		port   string
		target string
		host   string
		want   string
	}{
		{"absolute form", "8443", "http://example.org:8080/ws?x=1", "", "https://example.org:8443/ws?x=1"},
		{"absolute form default port", "443", "http://example.org:8080/ws?x=1", "", "https://example.org/ws?x=1"},
		{"origin form", "8443", "/ws?x=1", "example.org:8080", "https://example.org:8443/ws?x=1"},
		{"host without port", "443", "/", "example.org", "https://example.org/"},
		{"ipv6 host", "8443", "/ws", "[::1]:8080", "https://[::1]:8443/ws"},
		{"ipv6 host default port", "443", "/ws", "[::1]:8080", "https://[::1]/ws"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := &Server{cfg: TLSConfig{EnableTLS: true, ForceHTTPSRedirect: true, HTTPSPort: tt.port}}
			w := httptest.NewRecorder()
			r := httptest.NewRequest(http.MethodGet, tt.target, nil)
			if tt.host != "" {
				r.Host = tt.host
			}
			s.plainHandler().ServeHTTP(w, r)

			if w.Code != http.StatusMovedPermanently || w.Header().Get("Location") != tt.want {
				t.Errorf("status %d, location %q, want %q", w.Code, w.Header().Get("Location"), tt.want)
			}
		})
	}
}

func TestPlainHandler(t *testing.T) {
	app := http.NotFoundHandler()
	s, err := New(TLSConfig{}, app)
	if err != nil {
		t.Fatal(err)
	}
	if s.plainHandler() == nil {
		t.Error("plainHandler() = nil without TLS")
	}

	s = &Server{cfg: TLSConfig{EnableTLS: true}, handler: app}
	if s.plainHandler() != nil {
		t.Error("plainHandler() != nil for TLS without redirect")
	}
}

func TestServeStopsOnCancel(t *testing.T) {
	s, err := New(TLSConfig{HTTPPort: "0"}, http.NotFoundHandler())
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Serve(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Serve() error = %v", err)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("Serve() did not return after cancel")
	}
}

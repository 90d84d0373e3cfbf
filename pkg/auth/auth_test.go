package auth

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/antibyte/cpcrun/pkg/configuration"
)

// withPassword installs a configuration whose access password is password.
func withPassword(t *testing.T, password string) {
	t.Helper()
	hash, err := HashPassword(password)
	if err != nil {
		t.Fatalf("HashPassword() error = %v", err)
	}
	configuration.Use(configuration.New())
	configuration.SetString("Auth", "access_password_hash", hash)
	t.Cleanup(func() { configuration.Use(nil) })
}

func TestTokenRoundTrip(t *testing.T) {
	token, err := GenerateToken("client-123")
	if err != nil {
		t.Fatalf("GenerateToken() error = %v", err)
	}
	claims, err := ValidateToken(token)
	if err != nil {
		t.Fatalf("ValidateToken() error = %v", err)
	}
	if claims.ClientID != "client-123" {
		t.Errorf("ClientID = %q, want client-123", claims.ClientID)
	}
}

func TestInvalidTokens(t *testing.T) {
	t.Setenv("JWT_SECRET_KEY", "")
	sign := func(claims SessionClaims, secret string) string {
		s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
		if err != nil {
			t.Fatal(err)
		}
		return s
	}
	now := time.Now()
	valid := jwt.RegisteredClaims{
		ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
		Issuer:    issuer,
	}
	expired := valid
	expired.ExpiresAt = jwt.NewNumericDate(now.Add(-time.Hour))
	foreign := valid
	foreign.Issuer = "someone-else"
	noExpiry := valid
	noExpiry.ExpiresAt = nil

	tests := []struct {
		name  string
		token string
	}{
		{"empty", ""},
		{"garbage", "invalid.token.here"},
		{"incomplete", "eyJ0eXAiOiJKV1QiLCJhbGciOiJIUzI1NiJ9"},
		{"expired", sign(SessionClaims{ClientID: "c", RegisteredClaims: expired}, defaultJWTSecret)},
		{"other issuer", sign(SessionClaims{ClientID: "c", RegisteredClaims: foreign}, defaultJWTSecret)},
		{"no expiry", sign(SessionClaims{ClientID: "c", RegisteredClaims: noExpiry}, defaultJWTSecret)},
		{"wrong secret", sign(SessionClaims{ClientID: "c", RegisteredClaims: valid}, "other")},
		{"no client", sign(SessionClaims{RegisteredClaims: valid}, defaultJWTSecret)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ValidateToken(tt.token); !errors.Is(err, ErrInvalidToken) {
				t.Errorf("ValidateToken() error = %v, want %v", err, ErrInvalidToken)
			}
		})
	}
}

func TestExtractTokenFromRequest(t *testing.T) {
	tests := []struct {
		name    string
		prepare func(r *http.Request)
		target  string
		want    string
		wantErr bool
	}{
		{"bearer", func(r *http.Request) { r.Header.Set("Authorization", "Bearer abc") }, "/ws", "abc", false},
		{"bad header", func(r *http.Request) { r.Header.Set("Authorization", "Basic abc") }, "/ws", "", true},
		{"cookie", func(r *http.Request) { r.AddCookie(&http.Cookie{Name: tokenCookie, Value: "def"}) }, "/ws", "def", false},
		{"query", func(r *http.Request) {}, "/ws?token=ghi", "ghi", false},
		{"none", func(r *http.Request) {}, "/ws", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.target, nil)
			tt.prepare(req)
			got, err := ExtractTokenFromRequest(req)
			if (err != nil) != tt.wantErr || got != tt.want {
				t.Errorf("ExtractTokenFromRequest() = %q, %v; want %q, error %v", got, err, tt.want, tt.wantErr)
			}
		})
	}
}

func createSession(t *testing.T, body string, token string) (*httptest.ResponseRecorder, SessionResponse) {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/session", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	HandleCreateSession(w, req)

	var resp SessionResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Failed to parse response %q: %v", w.Body.String(), err)
	}
	return w, resp
}

func TestCreateSession(t *testing.T) {
	w, resp := createSession(t, "{}", "")
	if w.Code != http.StatusOK || !resp.Success {
		t.Fatalf("status %d, response %+v", w.Code, resp)
	}
	claims, err := ValidateToken(resp.Token)
	if err != nil {
		t.Fatalf("issued token invalid: %v", err)
	}
	if claims.ClientID != resp.ClientID || resp.ClientID == "" {
		t.Errorf("token client %q, response client %q", claims.ClientID, resp.ClientID)
	}

	// an existing token keeps the client id
	_, again := createSession(t, "", resp.Token)
	if again.ClientID != resp.ClientID {
		t.Errorf("renewed client id = %q, want %q", again.ClientID, resp.ClientID)
	}
}

func TestCreateSessionPassword(t *testing.T) {
	withPassword(t, "secret")
	if !PasswordRequired() {
		t.Fatal("PasswordRequired() = false with a configured hash")
	}

	w, _ := createSession(t, `{"password":"wrong"}`, "")
	if w.Code != http.StatusUnauthorized {
		t.Errorf("wrong password: status %d, want %d", w.Code, http.StatusUnauthorized)
	}
	w, resp := createSession(t, `{"password":"secret"}`, "")
	if w.Code != http.StatusOK || !resp.Success {
		t.Errorf("right password: status %d, response %+v", w.Code, resp)
	}
}

func TestCreateSessionRejectsGet(t *testing.T) {
	w := httptest.NewRecorder()
	HandleCreateSession(w, httptest.NewRequest(http.MethodGet, "/api/session", nil))
	if w.Code != http.StatusMethodNotAllowed {
		t.Errorf("status %d, want %d", w.Code, http.StatusMethodNotAllowed)
	}
}

func TestRequireToken(t *testing.T) {
	var seen string
	h := RequireToken(func(w http.ResponseWriter, r *http.Request) {
		seen = ClientIDFromContext(r.Context())
	})

	w := httptest.NewRecorder()
	h(w, httptest.NewRequest(http.MethodGet, "/ws", nil))
	if w.Code != http.StatusUnauthorized {
		t.Errorf("without token: status %d, want %d", w.Code, http.StatusUnauthorized)
	}

	token, err := GenerateToken("abc")
	if err != nil {
		t.Fatal(err)
	}
	w = httptest.NewRecorder()
	h(w, httptest.NewRequest(http.MethodGet, fmt.Sprintf("/ws?token=%s", token), nil))
	if w.Code != http.StatusOK || seen != "abc" {
		t.Errorf("with token: status %d, client %q", w.Code, seen)
	}
}

func TestLogoutClearsCookie(t *testing.T) {
	w := httptest.NewRecorder()
	HandleLogout(w, httptest.NewRequest(http.MethodPost, "/api/logout", nil))

	for _, c := range w.Result().Cookies() {
		if c.Name == tokenCookie && c.MaxAge < 0 {
			return
		}
	}
	t.Error("Logout should clear the session cookie")
}

func TestGetClientIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "192.0.2.1:1234"
	if got := GetClientIP(req); got != "192.0.2.1" {
		t.Errorf("GetClientIP() = %q", got)
	}
	req.Header.Set("X-Forwarded-For", "203.0.113.5, 10.0.0.1")
	if got := GetClientIP(req); got != "203.0.113.5" {
		t.Errorf("GetClientIP() with proxy = %q", got)
	}
}

func BenchmarkTokenValidation(b *testing.B) {
	token, err := GenerateToken("benchmark-client")
	if err != nil {
		b.Fatalf("Failed to generate token: %v", err)
	}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := ValidateToken(token); err != nil {
			b.Fatalf("Failed to validate token: %v", err)
		}
	}
}

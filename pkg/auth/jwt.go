package auth

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/antibyte/cpcrun/pkg/configuration"
	"github.com/antibyte/cpcrun/pkg/logger"
)

const (
	// Default values - actual values are loaded from configuration
	defaultJWTSecret       = "fallback_secret_change_in_production"
	defaultTokenExpiration = 24
	issuer                 = "cpcrun"
	tokenCookie            = "session_token"
)

var (
	ErrNoToken      = errors.New("no token found in request")
	ErrInvalidToken = errors.New("invalid token")
)

// getJWTSecret retrieves the JWT secret from environment variable or configuration
func getJWTSecret() string {
	if envSecret := os.Getenv("JWT_SECRET_KEY"); envSecret != "" {
		return envSecret
	}
	secret := configuration.GetString("JWT", "secret_key", "")
	if secret == "" {
		logger.AuthWarn("Using fallback JWT secret - set JWT_SECRET_KEY environment variable for production!")
		return defaultJWTSecret
	}
	return secret
}

func getTokenExpiration() time.Duration {
	hours := configuration.GetInt("JWT", "token_expiration_hours", defaultTokenExpiration)
	return time.Duration(hours) * time.Hour
}

// SessionClaims identifies a client. The client id also owns the
// programs in the library.
type SessionClaims struct {
	ClientID string `json:"cid"`
	jwt.RegisteredClaims
}

// GenerateToken signs a token for clientID.
func GenerateToken(clientID string) (string, error) {
	now := time.Now()
	claims := SessionClaims{
		ClientID: clientID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(getTokenExpiration())),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			Issuer:    issuer,
			Subject:   clientID,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signedToken, err := token.SignedString([]byte(getJWTSecret()))
	if err != nil {
		return "", fmt.Errorf("token konnte nicht signiert werden: %w", err)
	}
	logger.AuthDebug("Token generiert für Client %s", clientID)
	return signedToken, nil
}

// ValidateToken checks signature, issuer and expiry of tokenString.
func ValidateToken(tokenString string) (*SessionClaims, error) {
	token, err := jwt.ParseWithClaims(
		tokenString,
		&SessionClaims{},
		func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing algorithm: %v", token.Header["alg"])
			}
			return []byte(getJWTSecret()), nil
		},
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(*SessionClaims)
	if !ok || !token.Valid || claims.ClientID == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// ExtractTokenFromRequest extracts the JWT token from the HTTP request.
// The token can be passed in the Authorization header (Bearer Token), as a
// cookie or as the token query parameter; browsers cannot set headers on
// websocket requests.
func ExtractTokenFromRequest(r *http.Request) (string, error) {
	if authHeader := r.Header.Get("Authorization"); authHeader != "" {
		parts := strings.Split(authHeader, " ")
		if len(parts) == 2 && parts[0] == "Bearer" {
			return parts[1], nil
		}
		return "", fmt.Errorf("invalid authorization header format")
	}

	if cookie, err := r.Cookie(tokenCookie); err == nil {
		return cookie.Value, nil
	}

	if token := r.URL.Query().Get("token"); token != "" {
		return token, nil
	}
	return "", ErrNoToken
}

// RequireToken ist ein Middleware für HTTP-Handler, die einen gültigen Token erfordert
func RequireToken(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tokenString, err := ExtractTokenFromRequest(r)
		if err != nil {
			logger.AuthWarn("Kein Token im Request gefunden: %v", err)
			http.Error(w, "Unbefugt: Token fehlt", http.StatusUnauthorized)
			return
		}

		claims, err := ValidateToken(tokenString)
		if err != nil {
			logger.AuthWarn("Ungültiger Token: %v", err)
			http.Error(w, "Unbefugt: Ungültiger Token", http.StatusUnauthorized)
			return
		}

		next(w, r.WithContext(AddClaimsToContext(r.Context(), claims)))
	}
}

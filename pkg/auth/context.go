package auth

import (
	"context"
)

type contextKey string

const claimsKey contextKey = "jwt_claims"

// AddClaimsToContext fügt JWT-Claims zum Kontext hinzu
func AddClaimsToContext(ctx context.Context, claims *SessionClaims) context.Context {
	return context.WithValue(ctx, claimsKey, claims)
}

// GetClaimsFromContext extrahiert die JWT-Claims aus dem Kontext
func GetClaimsFromContext(ctx context.Context) (*SessionClaims, bool) {
	claims, ok := ctx.Value(claimsKey).(*SessionClaims)
	return claims, ok && claims != nil
}

// ClientIDFromContext returns the client id of the token, or "" without one.
func ClientIDFromContext(ctx context.Context) string {
	if claims, ok := GetClaimsFromContext(ctx); ok {
		return claims.ClientID
	}
	return ""
}

package auth

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/antibyte/cpcrun/pkg/logger"
)

// SessionRequest definiert die Struktur für Session-Anfragen
type SessionRequest struct {
	Password string `json:"password,omitempty"`
}

// SessionResponse definiert die Struktur für Session-Antworten
type SessionResponse struct {
	Success  bool   `json:"success"`
	ClientID string `json:"clientId,omitempty"`
	Token    string `json:"token,omitempty"`
	Message  string `json:"message"`
}

func setCORSHeaders(w http.ResponseWriter, methods string) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", methods)
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
	w.Header().Set("Content-Type", "application/json")
}

// HandleCreateSession issues a token for a new client id. An existing
// valid token keeps its client id, so the program library survives a
// reload of the page.
func HandleCreateSession(w http.ResponseWriter, r *http.Request) {
	setCORSHeaders(w, "POST, OPTIONS")
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusOK)
		return
	}
	if r.Method != http.MethodPost {
		logger.AuthWarn("Invalid method for session creation: %s", r.Method)
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req SessionRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			logger.AuthWarn("Invalid JSON in session request: %v", err)
			respondWithError(w, "Invalid request format", http.StatusBadRequest)
			return
		}
	}

	clientIP := GetClientIP(r)
	if err := CheckAccessPassword(req.Password); err != nil {
		logger.AuthWarn("Wrong access password from %s", clientIP)
		respondWithError(w, "Wrong password", http.StatusUnauthorized)
		return
	}

	clientID := ""
	if tokenString, err := ExtractTokenFromRequest(r); err == nil {
		if claims, err := ValidateToken(tokenString); err == nil {
			clientID = claims.ClientID
		}
	}
	if clientID == "" {
		clientID = uuid.New().String()
	}

	token, err := GenerateToken(clientID)
	if err != nil {
		logger.AuthError("Failed to generate token for %s: %v", clientID, err)
		respondWithError(w, "Failed to generate token", http.StatusInternalServerError)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     tokenCookie,
		Value:    token,
		Path:     "/",
		MaxAge:   int(getTokenExpiration().Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	logger.AuthInfo("Session token issued for client %s (IP: %s)", clientID, clientIP)
	json.NewEncoder(w).Encode(SessionResponse{
		Success:  true,
		ClientID: clientID,
		Token:    token,
		Message:  "Session created successfully",
	})
}

// HandleLogout löscht das JWT-Token Cookie
func HandleLogout(w http.ResponseWriter, r *http.Request) {
	setCORSHeaders(w, "POST, OPTIONS")
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusOK)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     tokenCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1, // Sofort löschen
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	json.NewEncoder(w).Encode(SessionResponse{Success: true, Message: "Logout successful"})
}

// GetClientIP extracts the client IP address from the request
func GetClientIP(r *http.Request) string {
	// Check X-Forwarded-For header first (for load balancers/proxies)
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		return strings.TrimSpace(strings.Split(forwarded, ",")[0])
	}
	if realIP := r.Header.Get("X-Real-IP"); realIP != "" {
		return realIP
	}
	// Fall back to RemoteAddr
	if i := strings.LastIndex(r.RemoteAddr, ":"); i > 0 {
		return r.RemoteAddr[:i]
	}
	return r.RemoteAddr
}

// respondWithError sendet eine Fehlerantwort als JSON
func respondWithError(w http.ResponseWriter, message string, statusCode int) {
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(SessionResponse{Success: false, Message: message})
}

// Package auth issues and validates the JWT session tokens handed out by a
// successful terminal login, and adapts the user store to the interpreter's
// credential-verification interface.
package auth

import (
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/folioterm/folioterm/pkg/configuration"
	"github.com/folioterm/folioterm/pkg/logger"

	"github.com/golang-jwt/jwt/v5"
)

const defaultJWTSecret = "fallback_secret_change_in_production"

// getJWTSecret retrieves the signing secret from the environment or the
// configuration file.
func getJWTSecret() string {
	if envSecret := os.Getenv("JWT_SECRET_KEY"); envSecret != "" {
		return envSecret
	}
	secret := configuration.GetString("JWT", "secret_key", defaultJWTSecret)
	if secret == defaultJWTSecret || secret == "ENVIRONMENT_VARIABLE_NOT_SET_FALLBACK" {
		logger.AuthWarn("Using fallback JWT secret - set JWT_SECRET_KEY environment variable for production!")
	}
	return secret
}

func getTokenExpiration() time.Duration {
	hours := configuration.GetInt("JWT", "token_expiration_hours", 24)
	return time.Duration(hours) * time.Hour
}

func getIssuer() string {
	return configuration.GetString("JWT", "issuer", "folioterm")
}

// UserClaims are the claims carried by a logged-in user's token.
type UserClaims struct {
	SessionID string `json:"sid"`
	Username  string `json:"username"`
	IsAdmin   bool   `json:"is_admin,omitempty"`
	jwt.RegisteredClaims
}

// GenerateUserToken creates a signed HS256 token for a logged-in user.
func GenerateUserToken(sessionID, username string, isAdmin bool) (string, error) {
	secretKey := getJWTSecret()
	now := time.Now()

	claims := UserClaims{
		SessionID: sessionID,
		Username:  username,
		IsAdmin:   isAdmin,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(getTokenExpiration())),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			Issuer:    getIssuer(),
			Subject:   username,
			ID:        sessionID,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signedToken, err := token.SignedString([]byte(secretKey))
	if err != nil {
		return "", fmt.Errorf("token could not be signed: %v", err)
	}

	logger.AuthInfo("User token generated for session ID: %s, username: %s", sessionID, username)
	return signedToken, nil
}

// ValidateUserToken parses and validates a user token.
func ValidateUserToken(tokenString string) (*UserClaims, error) {
	secretKey := getJWTSecret()

	token, err := jwt.ParseWithClaims(
		tokenString,
		&UserClaims{},
		func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing algorithm: %v", token.Header["alg"])
			}
			return []byte(secretKey), nil
		},
	)
	if err != nil {
		return nil, fmt.Errorf("token parsing failed: %v", err)
	}
	if !token.Valid {
		return nil, fmt.Errorf("invalid token")
	}

	claims, ok := token.Claims.(*UserClaims)
	if !ok {
		return nil, fmt.Errorf("could not extract token claims")
	}
	if claims.ExpiresAt.Time.Before(time.Now()) {
		return nil, fmt.Errorf("token has expired")
	}
	return claims, nil
}

// ExtractTokenFromRequest pulls the JWT out of an HTTP request, accepting the
// Authorization header (Bearer), a cookie, or a query parameter.
func ExtractTokenFromRequest(r *http.Request) (string, error) {
	authHeader := r.Header.Get("Authorization")
	if authHeader != "" { // Format: "Bearer <token>"
		parts := strings.Split(authHeader, " ")
		if len(parts) == 2 && parts[0] == "Bearer" {
			return parts[1], nil
		}
		return "", fmt.Errorf("invalid authorization header format")
	}

	cookie, err := r.Cookie("session_token")
	if err == nil {
		return cookie.Value, nil
	}

	token := r.URL.Query().Get("token")
	if token != "" {
		return token, nil
	}

	return "", fmt.Errorf("no token found in request")
}

package security

import (
	"errors"
	"time"

	"proconnect/internal/platform/config"

	"github.com/go-chi/jwtauth/v5"
	"github.com/golang-jwt/jwt/v5"
)

var TokenAuth *jwtauth.JWTAuth

func InitJWT() {
	TokenAuth = jwtauth.New("HS256", config.AppConfig.JWTKey, nil)
}

// InitJWTWithSecret is used by tests that do not load the full config.
func InitJWTWithSecret(secret []byte, exp time.Duration) {
	TokenAuth = jwtauth.New("HS256", secret, nil)
	tokenExp = exp
}

var tokenExp time.Duration

func expiry() time.Duration {
	if tokenExp > 0 {
		return tokenExp
	}
	if config.AppConfig != nil && config.AppConfig.JWTExp > 0 {
		return config.AppConfig.JWTExp
	}
	return 72 * time.Hour
}

func GenerateToken(userID, role string) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"user_id": userID,
		"role":    role,
		"exp":     now.Add(expiry()).Unix(),
		"iat":     now.Unix(),
	}
	_, tokenString, err := TokenAuth.Encode(claims)
	return tokenString, err
}

// GetUserIDFromClaims reads the user_id claim as set by GenerateToken.
func GetUserIDFromClaims(claims map[string]interface{}) (string, error) {
	id, ok := claims["user_id"].(string)
	if !ok || id == "" {
		return "", errors.New("user_id claim is missing or not a string")
	}
	return id, nil
}

func GetUserRoleFromClaims(claims map[string]interface{}) (string, error) {
	role, ok := claims["role"].(string)
	if !ok {
		return "", errors.New("role claim is missing or not a string")
	}
	return role, nil
}

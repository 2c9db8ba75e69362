package utils

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const formPurpose = "cafe-form"

// NewFormNonce returns a random value that ties a form token to one browser.
func NewFormNonce() string {
	return uuid.NewString()
}

// GenerateFormToken signs a short-lived token that is embedded in HTML forms
// and checked on submit. The same nonce must come back in a cookie.
func GenerateFormToken(secretKey, nonce string, ttl time.Duration) (string, error) {
	if nonce == "" {
		return "", errors.New("form nonce is empty")
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"purpose": formPurpose,
		"nonce":   nonce,
		"exp":     time.Now().Add(ttl).Unix(),
	})
	return token.SignedString([]byte(secretKey))
}

// ValidateFormToken checks signature, expiry and purpose, and that the token
// was issued for nonce.
func ValidateFormToken(secretKey, tokenString, nonce string) error {
	if tokenString == "" {
		return errors.New("missing form token")
	}
	if nonce == "" {
		return errors.New("missing form nonce")
	}
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(secretKey), nil
	}, jwt.WithExpirationRequired())
	if err != nil {
		return fmt.Errorf("error parsing form token: %w", err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return errors.New("invalid form token")
	}
	if purpose, _ := claims["purpose"].(string); purpose != formPurpose {
		return errors.New("form token has wrong purpose")
	}
	claimed, _ := claims["nonce"].(string)
	if subtle.ConstantTimeCompare([]byte(claimed), []byte(nonce)) != 1 {
		return errors.New("form token does not match this browser")
	}
	return nil
}

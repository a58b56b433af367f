package auth

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
)

// CookieName is the session cookie set by the demo login.
const CookieName = "SESSION_ID"

var ErrInvalidToken = errors.New("invalid token")

// NewSessionID returns 32 random bytes, base64url encoded.
func NewSessionID() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate session id: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// SignSession produces the cookie value <sessionID>.<signature>.
func SignSession(secret []byte, sessionID string) string {
	return sessionID + "." + sign(secret, sessionID)
}

// ParseSession verifies a cookie value and returns the session id inside it.
func ParseSession(secret []byte, value string) (string, error) {
	sessionID, signature, ok := strings.Cut(value, ".")
	if !ok || sessionID == "" || signature == "" || strings.Contains(signature, ".") {
		return "", ErrInvalidToken
	}

	expected := sign(secret, sessionID)
	if !hmac.Equal([]byte(signature), []byte(expected)) {
		return "", ErrInvalidToken
	}
	return sessionID, nil
}

func sign(secret []byte, payload string) string {
	sum := hmac.New(sha256.New, secret)
	_, _ = sum.Write([]byte(payload))
	return base64.RawURLEncoding.EncodeToString(sum.Sum(nil))
}

func HashToken(value string) string {
	sum := sha256.Sum256([]byte(value))
	return fmt.Sprintf("%x", sum)
}

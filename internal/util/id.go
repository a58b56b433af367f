package util

import (
	"strings"

	"github.com/google/uuid"
)

// NewID returns a random lowercase UUID string.
func NewID() string {
	return uuid.NewString()
}

// IsUUID reports whether value is a canonical hyphenated UUID.
func IsUUID(value string) bool {
	if len(value) != 36 {
		return false
	}
	_, err := uuid.Parse(value)
	return err == nil
}

// NormalizeOptional trims value and maps blank strings to nil.
func NormalizeOptional(value *string) *string {
	if value == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

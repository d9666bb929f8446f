// Package shared holds small cross-cutting helpers used by more than one
// handler package.
package shared

import (
	"crypto/subtle"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// SecretMatches compares a caller-supplied secret against the configured one.
// A configured value starting with a bcrypt prefix is treated as a hash;
// anything else is compared in constant time.
func SecretMatches(configured, candidate string) bool {
	if configured == "" {
		return false
	}
	if strings.HasPrefix(configured, "$2a$") || strings.HasPrefix(configured, "$2b$") || strings.HasPrefix(configured, "$2y$") {
		return bcrypt.CompareHashAndPassword([]byte(configured), []byte(candidate)) == nil
	}
	return subtle.ConstantTimeCompare([]byte(configured), []byte(candidate)) == 1
}

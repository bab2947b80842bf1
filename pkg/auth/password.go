// Package auth guards the operator endpoints with a bcrypt-hashed
// admin key.
package auth

import (
	"crypto/subtle"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// HashAdminKey hashes a plaintext admin key for storage in config.
func HashAdminKey(key string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(key), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash admin key: %w", err)
	}
	return string(hash), nil
}

// CheckAdminKey validates a presented key against the stored bcrypt
// hash. A plaintext stored value (no bcrypt prefix) is compared in
// constant time, for dev setups.
func CheckAdminKey(presented, stored string) bool {
	if presented == "" || stored == "" {
		return false
	}
	if len(stored) > 4 && stored[0] == '$' {
		return bcrypt.CompareHashAndPassword([]byte(stored), []byte(presented)) == nil
	}
	return subtle.ConstantTimeCompare([]byte(presented), []byte(stored)) == 1
}

// Package secret hashes and checks client secrets
package secret

import (
	"errors"
	"strings"

	"github.com/mcygoogle/demo-for-google-identity/internal/domain"
	"golang.org/x/crypto/bcrypt"
)

// Hash hashes a client secret using bcrypt
func Hash(secret string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}

// Check checks if a client secret matches its hash
func Check(secret, hash string) error {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(secret))
	if err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return domain.ErrInvalidClientSecret
		}
		return err
	}
	return nil
}

// IsHashed reports whether value already looks like a bcrypt hash
func IsHashed(value string) bool {
	if !strings.HasPrefix(value, "$2") {
		return false
	}
	_, err := bcrypt.Cost([]byte(value))
	return err == nil
}

package utils

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

const (
	MinPasswordLength = 6
	// MaxPasswordLength is the bcrypt input limit in bytes.
	MaxPasswordLength = 72
)

var (
	ErrPasswordTooShort = fmt.Errorf("password must be at least %d characters", MinPasswordLength)
	ErrPasswordTooLong  = fmt.Errorf("password must be at most %d bytes", MaxPasswordLength)
)

// HashedPassword is a bcrypt digest. Plaintext never leaves NewHashedPassword.
type HashedPassword string

// NewHashedPassword hashes plain after enforcing the length bounds.
func NewHashedPassword(plain string) (HashedPassword, error) {
	if len(plain) < MinPasswordLength {
		return "", ErrPasswordTooShort
	}
	if len(plain) > MaxPasswordLength {
		return "", ErrPasswordTooLong
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(plain), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return HashedPassword(hash), nil
}

// Matches reports whether plain hashes to h.
func (h HashedPassword) Matches(plain string) bool {
	if h == "" {
		return false
	}
	err := bcrypt.CompareHashAndPassword([]byte(h), []byte(plain))
	return err == nil
}

// IsPasswordRejected reports whether err came from the length checks, i.e. the
// caller supplied an unusable password rather than hashing failing.
func IsPasswordRejected(err error) bool {
	return errors.Is(err, ErrPasswordTooShort) || errors.Is(err, ErrPasswordTooLong)
}

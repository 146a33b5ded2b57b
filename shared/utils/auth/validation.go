package utils

import (
	"errors"
	"net/mail"
	"regexp"
	"strings"
	"unicode/utf8"
)

var phoneRegex = regexp.MustCompile(`^\+?[0-9][0-9\s\-()]{6,18}$`)

// NormalizeEmail lower-cases and trims an address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func ValidateEmail(email string) error {
	email = strings.TrimSpace(email)
	if email == "" {
		return errors.New("email is required")
	}

	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return errors.New("invalid email format")
	}

	return nil
}

func ValidatePhone(phone string) error {
	if phone == "" {
		return nil
	}

	if !phoneRegex.MatchString(phone) {
		return errors.New("invalid phone number format")
	}

	return nil
}

// ValidateMaxLength counts runes so Cyrillic input is measured in characters.
func ValidateMaxLength(field, fieldName string, max int) error {
	if utf8.RuneCountInString(strings.TrimSpace(field)) > max {
		return errors.New(fieldName + " is too long")
	}
	return nil
}

package services

import (
	"errors"
	"fmt"
)

// MinPasswordLength is the shortest password accepted anywhere a password
// is set.
const MinPasswordLength = 8

var (
	// ErrInvalidToken covers reset tokens that are missing, expired or
	// already redeemed. Callers cannot tell these cases apart.
	ErrInvalidToken = errors.New("invalid or expired reset token")

	ErrPasswordMismatch = errors.New("passwords do not match")
	ErrWeakPassword     = fmt.Errorf("password must be at least %d characters", MinPasswordLength)

	// ErrInvalidCredentials is returned for unknown users, wrong passwords
	// and inactive accounts alike.
	ErrInvalidCredentials = errors.New("invalid credentials")
)

// ValidationError reports malformed input on a single field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return e.Field + ": " + e.Message
}

func invalid(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}

// IsValidation reports whether err is a ValidationError or one of the
// password policy errors.
func IsValidation(err error) bool {
	var verr *ValidationError
	return errors.As(err, &verr) ||
		errors.Is(err, ErrPasswordMismatch) ||
		errors.Is(err, ErrWeakPassword)
}

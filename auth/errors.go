package auth

import (
	"errors"
	"fmt"
)

var (
	ErrValidation            = errors.New("validation failed")
	ErrDuplicateEmail        = errors.New("email already registered")
	ErrNotFound              = errors.New("account not found")
	ErrInvalidCredentials    = errors.New("invalid email or password")
	ErrEmailNotVerified      = errors.New("email not verified")
	ErrAlreadyVerified       = errors.New("email already verified")
	ErrInvalidOrExpiredToken = errors.New("invalid or expired verification token")
)

// validationError wraps ErrValidation with a reason a client can act on.
func validationError(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

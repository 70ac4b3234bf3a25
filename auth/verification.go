package auth

import (
	"crypto/subtle"
	"errors"
	"time"
)

type VerificationState int

const (
	Unverified VerificationState = iota
	PendingVerification
	Expired
	Verified
)

var errTokenPending = errors.New("verification token already pending")

func (s VerificationState) String() string {
	switch s {
	case Unverified:
		return "unverified"
	case PendingVerification:
		return "pending_verification"
	case Expired:
		return "expired"
	case Verified:
		return "verified"
	}
	return "unknown"
}

// VerificationState derives the account's position in the verification
// lifecycle at the given instant. Expiry is only ever evaluated here.
func (a *Account) VerificationState(now time.Time) VerificationState {
	switch {
	case a.IsEmailVerified:
		return Verified
	case a.VerificationToken == "" || a.VerificationExpiresAt == nil:
		return Unverified
	case a.VerificationExpiresAt.After(now):
		return PendingVerification
	default:
		return Expired
	}
}

// Issue gives an Unverified or Expired account a fresh token.
func (a *Account) Issue(gen TokenGenerator, now time.Time) (string, error) {
	switch a.VerificationState(now) {
	case Verified:
		return "", ErrAlreadyVerified
	case PendingVerification:
		return "", errTokenPending
	}
	return a.setToken(gen)
}

// Resend replaces whatever token the account holds with a new one,
// from any state other than Verified.
func (a *Account) Resend(gen TokenGenerator, now time.Time) (string, error) {
	if a.VerificationState(now) == Verified {
		return "", ErrAlreadyVerified
	}
	return a.setToken(gen)
}

// Consume verifies the account if token is the pending, unexpired token.
// On failure the account is left untouched.
func (a *Account) Consume(token string, now time.Time) error {
	if token == "" || a.VerificationState(now) != PendingVerification {
		return ErrInvalidOrExpiredToken
	}
	if subtle.ConstantTimeCompare([]byte(token), []byte(a.VerificationToken)) != 1 {
		return ErrInvalidOrExpiredToken
	}
	a.markVerified()
	return nil
}

// AutoVerify marks the account verified without a token round trip.
func (a *Account) AutoVerify() {
	a.markVerified()
}

func (a *Account) setToken(gen TokenGenerator) (string, error) {
	token, expiresAt, err := gen.Generate()
	if err != nil {
		return "", err
	}
	a.VerificationToken = token
	a.VerificationExpiresAt = &expiresAt
	return token, nil
}

func (a *Account) markVerified() {
	a.IsEmailVerified = true
	a.VerificationToken = ""
	a.VerificationExpiresAt = nil
}

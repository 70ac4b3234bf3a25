package auth

import (
	"context"
	"time"
)

type Service interface {
	RegisterAccount(ctx context.Context, r registerAccountRequest) (ID, error)
	VerifyEmail(ctx context.Context, token string) (Summary, error)
	ValidateCredentials(ctx context.Context, r validateCredentialsRequest) (Summary, error)
	ResendVerification(ctx context.Context, r resendVerificationRequest) error
}

// Notifier delivers account emails. Its failures never fail a request.
type Notifier interface {
	SendWelcome(ctx context.Context, email, fullName string) error
	SendVerification(ctx context.Context, email, fullName, link string) error
}

// Repository persists accounts. Lookups that match nothing return ErrNotFound.
type Repository interface {
	FindByID(ctx context.Context, id ID) (*Account, error)
	FindByEmail(ctx context.Context, email string) (*Account, error)

	// FindByValidToken matches only a token whose expiry is after now, so
	// unknown and expired tokens look the same to callers.
	FindByValidToken(ctx context.Context, token string, now time.Time) (*Account, error)

	// ConsumeToken verifies the account holding a valid token and clears
	// the token in the same store operation, so concurrent callers cannot
	// both consume it. It returns the updated account, or ErrNotFound.
	ConsumeToken(ctx context.Context, token string, now time.Time) (*Account, error)

	// Create fails with ErrDuplicateEmail when the email is taken. The
	// check is part of the insert itself.
	Create(ctx context.Context, acc *Account) error
	Save(ctx context.Context, acc *Account) error
}

// Pinger reports whether the backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

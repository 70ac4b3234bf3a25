package auth

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

type service struct {
	accounts Repository
	hasher   PasswordHasher
	tokens   TokenGenerator
	notifier Notifier

	policy             Policy
	verifyEmailBaseURL string
	now                func() time.Time
	log                zerolog.Logger

	dummyOnce sync.Once
	dummyHash string
}

type Config struct {
	Policy Policy

	// VerifyEmailBaseURL is prepended to the token in verification emails,
	// e.g. https://app.example.com/verify-email?token=
	VerifyEmailBaseURL string

	Logger zerolog.Logger

	// Now defaults to time.Now.
	Now func() time.Time
}

func NewService(accounts Repository, hasher PasswordHasher, tokens TokenGenerator, notifier Notifier, cfg Config) Service {
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &service{
		accounts:           accounts,
		hasher:             hasher,
		tokens:             tokens,
		notifier:           notifier,
		policy:             cfg.Policy,
		verifyEmailBaseURL: cfg.VerifyEmailBaseURL,
		now:                now,
		log:                cfg.Logger,
	}
}

func (svc *service) RegisterAccount(ctx context.Context, r registerAccountRequest) (ID, error) {
	if err := validateRequest(r); err != nil {
		return "", err
	}

	acc, err := NewAccount(r.FullName, r.Email, r.Role)
	if err != nil {
		return "", err
	}

	hash, err := svc.hasher.Hash(r.Password)
	if err != nil {
		return "", err
	}
	acc.PasswordHash = hash
	acc.ID = NewID()

	var token string
	switch svc.policy {
	case PolicyAutoVerified:
		acc.AutoVerify()
	default:
		if token, err = acc.Issue(svc.tokens, svc.now()); err != nil {
			return "", err
		}
	}

	if err := svc.accounts.Create(ctx, acc); err != nil {
		if errors.Is(err, ErrDuplicateEmail) {
			return "", ErrDuplicateEmail
		}
		return "", fmt.Errorf("error saving account: %w", err)
	}

	svc.log.Info().Str("account_id", string(acc.ID)).Str("policy", svc.policy.String()).Msg("account registered")

	if svc.policy == PolicyAutoVerified {
		svc.sendWelcome(ctx, acc)
	} else {
		svc.sendVerification(ctx, acc, token)
	}

	return acc.ID, nil
}

func (svc *service) VerifyEmail(ctx context.Context, token string) (Summary, error) {
	if token == "" {
		return Summary{}, validationError("verification token is required")
	}

	acc, err := svc.accounts.ConsumeToken(ctx, token, svc.now())
	if errors.Is(err, ErrNotFound) {
		return Summary{}, ErrInvalidOrExpiredToken
	}
	if err != nil {
		return Summary{}, fmt.Errorf("error consuming verification token: %w", err)
	}

	svc.log.Info().Str("account_id", string(acc.ID)).Msg("email verified")
	svc.sendWelcome(ctx, acc)

	return acc.Summary(), nil
}

func (svc *service) ValidateCredentials(ctx context.Context, r validateCredentialsRequest) (Summary, error) {
	if err := validateRequest(r); err != nil {
		return Summary{}, err
	}

	acc, err := svc.accounts.FindByEmail(ctx, r.Email)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return Summary{}, fmt.Errorf("error finding account: %w", err)
	}

	if acc == nil {
		// burn the same bcrypt work as a real comparison
		svc.hasher.Verify(r.Password, svc.placeholderHash())
		loginAttemptsTotal.WithLabelValues("invalid_credentials").Inc()
		return Summary{}, ErrInvalidCredentials
	}

	if !svc.hasher.Verify(r.Password, acc.PasswordHash) {
		loginAttemptsTotal.WithLabelValues("invalid_credentials").Inc()
		return Summary{}, ErrInvalidCredentials
	}

	if svc.policy == PolicyGated && !acc.IsEmailVerified {
		loginAttemptsTotal.WithLabelValues("email_not_verified").Inc()
		return Summary{}, ErrEmailNotVerified
	}

	loginAttemptsTotal.WithLabelValues("success").Inc()
	return acc.Summary(), nil
}

func (svc *service) ResendVerification(ctx context.Context, r resendVerificationRequest) error {
	if err := validateRequest(r); err != nil {
		return err
	}

	acc, err := svc.accounts.FindByEmail(ctx, r.Email)
	if errors.Is(err, ErrNotFound) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("error finding account: %w", err)
	}

	if svc.policy == PolicyAutoVerified {
		svc.sendWelcome(ctx, acc)
		return nil
	}

	token, err := acc.Resend(svc.tokens, svc.now())
	if err != nil {
		return err
	}

	if err := svc.accounts.Save(ctx, acc); err != nil {
		return fmt.Errorf("error saving account: %w", err)
	}

	svc.log.Info().Str("account_id", string(acc.ID)).Str("token", tokenPrefix(token)).Msg("verification token reissued")
	svc.sendVerification(ctx, acc, token)
	return nil
}

func (svc *service) sendWelcome(ctx context.Context, acc *Account) {
	err := svc.notifier.SendWelcome(ctx, acc.Email, acc.FullName)
	svc.recordNotification("welcome", acc, err)
}

func (svc *service) sendVerification(ctx context.Context, acc *Account, token string) {
	err := svc.notifier.SendVerification(ctx, acc.Email, acc.FullName, svc.verifyEmailBaseURL+token)
	svc.recordNotification("verification", acc, err)
}

func (svc *service) recordNotification(kind string, acc *Account, err error) {
	if err != nil {
		notificationsTotal.WithLabelValues(kind, "failed").Inc()
		svc.log.Error().Err(err).
			Str("account_id", string(acc.ID)).
			Str("kind", kind).
			Msg("error sending account email")
		return
	}
	notificationsTotal.WithLabelValues(kind, "sent").Inc()
}

// fallbackPlaceholderHash is a well-formed cost 10 bcrypt hash that no
// password is expected to match.
const fallbackPlaceholderHash = "$2a$10$N9qo8uLOickgx2ZMRZoMyeIjZAgcfl7p92ldGxad68LJZdL17lhWy"

// placeholderHash is compared against when the email is unknown so both
// login failure paths cost the same.
func (svc *service) placeholderHash() string {
	svc.dummyOnce.Do(func() {
		h, err := svc.hasher.Hash(string(NewID()))
		if err != nil {
			svc.log.Warn().Err(err).Msg("error hashing login placeholder, using fallback")
			h = fallbackPlaceholderHash
		}
		svc.dummyHash = h
	})
	return svc.dummyHash
}

func tokenPrefix(token string) string {
	if len(token) <= 8 {
		return token
	}
	return token[:8] + "…"
}

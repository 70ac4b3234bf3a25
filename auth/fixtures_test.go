package auth

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"
)

const testVerifyURL = "http://localhost:8090/verify-email?token="

type sentEmail struct {
	email, fullName, link string
}

type notifierSpy struct {
	mu            sync.Mutex
	welcomes      []sentEmail
	verifications []sentEmail
	err           error
}

func (n *notifierSpy) SendWelcome(_ context.Context, email, fullName string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.welcomes = append(n.welcomes, sentEmail{email: email, fullName: fullName})
	return n.err
}

func (n *notifierSpy) SendVerification(_ context.Context, email, fullName, link string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.verifications = append(n.verifications, sentEmail{email: email, fullName: fullName, link: link})
	return n.err
}

func (n *notifierSpy) welcomeCount() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.welcomes)
}

func (n *notifierSpy) verificationCount() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.verifications)
}

// lastToken returns the token from the most recent verification link.
func (n *notifierSpy) lastToken() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.verifications) == 0 {
		return ""
	}
	return strings.TrimPrefix(n.verifications[len(n.verifications)-1].link, testVerifyURL)
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, time.March, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestTokenGenerator(clock *fakeClock) *RandomTokenGenerator {
	return &RandomTokenGenerator{ttl: DefaultTokenTTL, now: clock.Now}
}

func newTestService(policy Policy, notifier Notifier, clock *fakeClock) (Service, *InMemoryRepository) {
	accounts := NewAccountRepository()
	accounts.now = clock.Now

	svc := NewService(
		accounts,
		NewBcryptHasher(bcrypt.MinCost),
		newTestTokenGenerator(clock),
		notifier,
		Config{
			Policy:             policy,
			VerifyEmailBaseURL: testVerifyURL,
			Logger:             zerolog.Nop(),
			Now:                clock.Now,
		},
	)
	return svc, accounts
}

func janeRequest() registerAccountRequest {
	return registerAccountRequest{FullName: "Jane Doe", Email: "jane@x.com", Password: "secret123", Role: "player"}
}

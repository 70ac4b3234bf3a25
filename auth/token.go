package auth

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"
)

const (
	TokenBytes      = 32 // 64 hex characters
	DefaultTokenTTL = 24 * time.Hour
)

// TokenGenerator issues opaque verification tokens and their expiry.
type TokenGenerator interface {
	Generate() (token string, expiresAt time.Time, err error)
}

type RandomTokenGenerator struct {
	ttl time.Duration
	now func() time.Time
}

func NewTokenGenerator(ttl time.Duration) *RandomTokenGenerator {
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	return &RandomTokenGenerator{ttl: ttl, now: time.Now}
}

func (g *RandomTokenGenerator) Generate() (string, time.Time, error) {
	b := make([]byte, TokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", time.Time{}, fmt.Errorf("error generating token: %w", err)
	}
	return hex.EncodeToString(b), g.now().UTC().Add(g.ttl), nil
}

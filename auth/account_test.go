package auth

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNewAccount(t *testing.T) {
	jane := &Account{FullName: "Jane Doe", Email: "jane@x.com", Role: "player"}
	longName := strings.Repeat("a", 51)

	tests := []struct {
		fullName, email, role string
		wantErr               error
		wantAcc               *Account
	}{
		{wantErr: ErrValidation},
		{fullName: "J", email: "jane@x.com", role: "player", wantErr: ErrValidation},
		{fullName: longName, email: "jane@x.com", role: "player", wantErr: ErrValidation},
		{fullName: "   ", email: "jane@x.com", role: "player", wantErr: ErrValidation},
		{fullName: "Jane Doe", role: "player", wantErr: ErrValidation},
		{fullName: "Jane Doe", email: "jane@x.com", wantErr: ErrValidation},
		{fullName: "Jane Doe", email: "jane@x.com", role: " ", wantErr: ErrValidation},
		{fullName: "Jane Doe", email: "jane@x.com", role: "player", wantAcc: jane},
		{fullName: "  Jane Doe ", email: "jane@x.com", role: "player", wantAcc: jane},
	}

	for _, tt := range tests {
		acc, err := NewAccount(tt.fullName, tt.email, tt.role)
		if tt.wantErr != nil {
			assert.ErrorIs(t, err, tt.wantErr)
		} else {
			assert.NoError(t, err)
		}
		assert.Equal(t, tt.wantAcc, acc)
	}
}

func TestNewAccount_NameLengthCountsCharacters(t *testing.T) {
	// 50 two-byte runes is 100 bytes but still a valid name
	acc, err := NewAccount(strings.Repeat("é", 50), "e@x.com", "player")

	assert.NoError(t, err)
	assert.NotNil(t, acc)
}

func TestAccount_SummaryOmitsCredentials(t *testing.T) {
	expires := time.Now().Add(time.Hour)
	acc := &Account{
		ID:                    NewID(),
		FullName:              "Jane Doe",
		Email:                 "jane@x.com",
		Role:                  "player",
		PasswordHash:          "hash",
		VerificationToken:     "token",
		VerificationExpiresAt: &expires,
	}

	assert.Equal(t, Summary{ID: acc.ID, FullName: "Jane Doe", Email: "jane@x.com", Role: "player"}, acc.Summary())
}

func TestAccount_CloneDoesNotShareExpiry(t *testing.T) {
	expires := time.Now()
	acc := &Account{VerificationToken: "t", VerificationExpiresAt: &expires}

	c := acc.clone()
	*c.VerificationExpiresAt = expires.Add(time.Hour)

	assert.Equal(t, expires, *acc.VerificationExpiresAt)
}

func TestNewID(t *testing.T) {
	id := NewID()

	assert.True(t, isValidID(string(id)))
	assert.NotEqual(t, id, NewID())
	assert.False(t, isValidID("not-an-id"))
}

package auth

import (
	"strings"
	"time"
	"unicode/utf8"

	"github.com/rs/xid"
)

const (
	minFullNameLen = 2
	maxFullNameLen = 50
)

type ID string

// Account is a registered user together with its credentials and
// email verification state. VerificationToken and VerificationExpiresAt
// are always set or cleared together.
type Account struct {
	ID                    ID
	FullName              string
	Email                 string
	Role                  string
	PasswordHash          string
	IsEmailVerified       bool
	VerificationToken     string
	VerificationExpiresAt *time.Time
	CreatedAt             time.Time
	UpdatedAt             time.Time
}

// Summary is the part of an Account that is safe to hand to clients.
type Summary struct {
	ID              ID     `json:"id"`
	FullName        string `json:"fullName"`
	Email           string `json:"email"`
	Role            string `json:"role"`
	IsEmailVerified bool   `json:"isEmailVerified"`
}

//NewAccount validates the profile fields and returns an Account without
// credentials or an ID
func NewAccount(fullName, email, role string) (*Account, error) {
	name := strings.TrimSpace(fullName)
	if name == "" {
		return nil, validationError("fullName is required")
	}
	if n := utf8.RuneCountInString(name); n < minFullNameLen || n > maxFullNameLen {
		return nil, validationError("fullName must be between %d and %d characters", minFullNameLen, maxFullNameLen)
	}

	if email == "" {
		return nil, validationError("email is required")
	}

	if strings.TrimSpace(role) == "" {
		return nil, validationError("role is required")
	}

	return &Account{FullName: name, Email: email, Role: role}, nil
}

func (a *Account) Summary() Summary {
	return Summary{
		ID:              a.ID,
		FullName:        a.FullName,
		Email:           a.Email,
		Role:            a.Role,
		IsEmailVerified: a.IsEmailVerified,
	}
}

// clone returns a deep copy so stored records never alias caller data.
func (a *Account) clone() *Account {
	c := *a
	if a.VerificationExpiresAt != nil {
		t := *a.VerificationExpiresAt
		c.VerificationExpiresAt = &t
	}
	return &c
}

func NewID() ID {
	return ID(xid.New().String())
}

func isValidID(id string) bool {
	if _, err := xid.FromString(id); err != nil {
		return false
	}
	return true
}

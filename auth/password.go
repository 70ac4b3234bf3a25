package auth

import (
	"crypto/sha256"
	"encoding/base64"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

const (
	DefaultBcryptCost = 10

	// bcrypt ignores everything after the 72nd byte and newer versions of
	// x/crypto reject such input outright.
	bcryptMaxInput = 72
)

// PasswordHasher turns plaintext passwords into one-way salted hashes.
type PasswordHasher interface {
	Hash(password string) (string, error)

	// Verify reports whether password matches hash. A malformed hash
	// never matches.
	Verify(password, hash string) bool
}

type BcryptHasher struct {
	cost int
}

func NewBcryptHasher(cost int) *BcryptHasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = DefaultBcryptCost
	}
	return &BcryptHasher{cost: cost}
}

func (h *BcryptHasher) Hash(password string) (string, error) {
	return hashPassword(password, h.cost)
}

func (h *BcryptHasher) Verify(password, hash string) bool {
	return hashMatchesPassword(hash, password)
}

func hashPassword(password string, cost int) (string, error) {
	hash, err := bcrypt.GenerateFromPassword(bcryptInput(password), cost)
	if err != nil {
		return "", fmt.Errorf("error hashing password: %w", err)
	}
	return string(hash), nil
}

func hashMatchesPassword(hash, password string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), bcryptInput(password))
	return err == nil
}

// bcryptInput pre-hashes passwords that bcrypt cannot take whole, so long
// passwords keep all of their entropy.
func bcryptInput(password string) []byte {
	if len(password) <= bcryptMaxInput {
		return []byte(password)
	}
	sum := sha256.Sum256([]byte(password))
	return []byte(base64.StdEncoding.EncodeToString(sum[:]))
}

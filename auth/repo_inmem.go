package auth

import (
	"context"
	"sync"
	"time"
)

// InMemoryRepository keeps accounts in process memory. It is safe for
// concurrent use and enforces email uniqueness under its write lock.
type InMemoryRepository struct {
	mu       sync.RWMutex
	accounts map[ID]*Account
	byEmail  map[string]ID
	now      func() time.Time
}

func NewAccountRepository() *InMemoryRepository {
	return &InMemoryRepository{
		accounts: map[ID]*Account{},
		byEmail:  map[string]ID{},
		now:      time.Now,
	}
}

func (repo *InMemoryRepository) Create(_ context.Context, acc *Account) error {
	repo.mu.Lock()
	defer repo.mu.Unlock()

	if _, ok := repo.byEmail[acc.Email]; ok {
		return ErrDuplicateEmail
	}

	now := repo.now().UTC()
	acc.CreatedAt = now
	acc.UpdatedAt = now

	repo.accounts[acc.ID] = acc.clone()
	repo.byEmail[acc.Email] = acc.ID
	return nil
}

func (repo *InMemoryRepository) Save(_ context.Context, acc *Account) error {
	repo.mu.Lock()
	defer repo.mu.Unlock()

	if _, ok := repo.accounts[acc.ID]; !ok {
		return ErrNotFound
	}

	acc.UpdatedAt = repo.now().UTC()
	repo.accounts[acc.ID] = acc.clone()
	return nil
}

func (repo *InMemoryRepository) FindByID(_ context.Context, id ID) (*Account, error) {
	if !isValidID(string(id)) {
		return nil, ErrNotFound
	}

	repo.mu.RLock()
	defer repo.mu.RUnlock()

	if acc, ok := repo.accounts[id]; ok {
		return acc.clone(), nil
	}
	return nil, ErrNotFound
}

func (repo *InMemoryRepository) FindByEmail(_ context.Context, email string) (*Account, error) {
	repo.mu.RLock()
	defer repo.mu.RUnlock()

	if id, ok := repo.byEmail[email]; ok {
		return repo.accounts[id].clone(), nil
	}
	return nil, ErrNotFound
}

func (repo *InMemoryRepository) FindByValidToken(_ context.Context, token string, now time.Time) (*Account, error) {
	repo.mu.RLock()
	defer repo.mu.RUnlock()

	if acc := repo.findByValidToken(token, now); acc != nil {
		return acc.clone(), nil
	}
	return nil, ErrNotFound
}

func (repo *InMemoryRepository) ConsumeToken(_ context.Context, token string, now time.Time) (*Account, error) {
	repo.mu.Lock()
	defer repo.mu.Unlock()

	stored := repo.findByValidToken(token, now)
	if stored == nil {
		return nil, ErrNotFound
	}

	acc := stored.clone()
	if err := acc.Consume(token, now); err != nil {
		return nil, ErrNotFound
	}
	acc.UpdatedAt = repo.now().UTC()
	repo.accounts[acc.ID] = acc
	return acc.clone(), nil
}

// findByValidToken must be called with repo.mu held.
func (repo *InMemoryRepository) findByValidToken(token string, now time.Time) *Account {
	if token == "" {
		return nil
	}
	for _, acc := range repo.accounts {
		if acc.VerificationToken != token || acc.VerificationExpiresAt == nil {
			continue
		}
		if acc.VerificationExpiresAt.After(now) {
			return acc
		}
	}
	return nil
}

func (repo *InMemoryRepository) Ping(context.Context) error {
	return nil
}

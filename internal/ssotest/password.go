package ssotest

import (
	"sync"

	"golang.org/x/crypto/bcrypt"
)

// accounts keeps bcrypt hashes of the provider's known identities.
type accounts struct {
	mu     sync.RWMutex
	cost   int
	hashes map[string]string
}

func newAccounts(cost int) *accounts {
	if cost < bcrypt.MinCost {
		cost = bcrypt.MinCost
	}
	return &accounts{cost: cost, hashes: make(map[string]string)}
}

// add hashes a plaintext password with the configured cost.
func (a *accounts) add(email, password string) error {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), a.cost)
	if err != nil {
		return err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.hashes[email] = string(hashed)
	return nil
}

// verify reports whether password matches the stored hash for email.
func (a *accounts) verify(email, password string) bool {
	a.mu.RLock()
	hashed, ok := a.hashes[email]
	a.mu.RUnlock()
	if !ok {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hashed), []byte(password)) == nil
}

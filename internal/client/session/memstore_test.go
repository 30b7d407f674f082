package session

import (
	"context"
	"errors"
	"sync"
)

// ErrStoreFailure is returned by a MemoryStore told to fail.
var ErrStoreFailure = errors.New("session store failure")

// MemoryStore is a Store kept in memory for tests. In failure mode every call returns ErrStoreFailure.
type MemoryStore struct {
	mu     sync.Mutex
	token  string
	user   *UserSnapshot
	fail   bool
	clears int
}

// NewMemoryStore returns a store holding token and user, or an empty one when user is nil.
func NewMemoryStore(token string, user *UserSnapshot) *MemoryStore {
	m := &MemoryStore{}
	if user != nil {
		u := *user
		m.token, m.user = token, &u
	}

	return m
}

// Load implements Store.
func (m *MemoryStore) Load(_ context.Context) (string, *UserSnapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.fail {
		return "", nil, ErrStoreFailure
	}

	if m.user == nil {
		return m.token, nil, nil
	}

	u := *m.user

	return m.token, &u, nil
}

// Save implements Store.
func (m *MemoryStore) Save(_ context.Context, token string, user UserSnapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.fail {
		return ErrStoreFailure
	}

	m.token, m.user = token, &user

	return nil
}

// Clear implements Store.
func (m *MemoryStore) Clear(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.fail {
		return ErrStoreFailure
	}

	m.token, m.user = "", nil
	m.clears++

	return nil
}

// Empty reports whether nothing is persisted.
func (m *MemoryStore) Empty() bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.token == "" && m.user == nil
}

// Clears returns how often Clear succeeded.
func (m *MemoryStore) Clears() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.clears
}

// SetFail toggles failure mode.
func (m *MemoryStore) SetFail(fail bool) {
	m.mu.Lock()
	m.fail = fail
	m.mu.Unlock()
}

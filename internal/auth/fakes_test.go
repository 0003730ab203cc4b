package auth

import (
	"context"
	"sync"
)

// memUserStore is an in-memory UserStore keyed by lowercase email.
type memUserStore struct {
	mu    sync.Mutex
	users map[string]*User
}

func newMemUserStore() *memUserStore {
	return &memUserStore{users: make(map[string]*User)}
}

func (m *memUserStore) FindByEmail(_ context.Context, email string) (*User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	user, ok := m.users[email]
	if !ok {
		return nil, ErrNotFound
	}
	clone := *user
	return &clone, nil
}

func (m *memUserStore) Save(_ context.Context, user *User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	clone := *user
	m.users[user.Email] = &clone
	return nil
}

// memRevocations is an in-memory RevocationStore.
type memRevocations struct {
	mu     sync.Mutex
	tokens map[string]bool
}

func newMemRevocations() *memRevocations {
	return &memRevocations{tokens: make(map[string]bool)}
}

func (m *memRevocations) IsRevoked(_ context.Context, token string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.tokens[token], nil
}

func (m *memRevocations) Revoke(_ context.Context, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tokens[token] = true
	return nil
}

type auditEntry struct {
	severity Severity
	source   string
	message  string
}

// recordSink captures audit records for assertions.
type recordSink struct {
	mu      sync.Mutex
	entries []auditEntry
}

func (r *recordSink) Record(_ context.Context, severity Severity, source, message string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, auditEntry{severity: severity, source: source, message: message})
}

func (r *recordSink) all() []auditEntry {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]auditEntry, len(r.entries))
	copy(out, r.entries)
	return out
}

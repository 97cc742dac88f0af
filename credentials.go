package apiflow

import "sync"

// CredentialStore is the persisted client-side store holding the bearer
// token and the signed-in user record. An empty token means signed out.
type CredentialStore interface {
	Token() (string, error)
	SetToken(token string) error
	ClearToken() error
	ClearUser() error
}

// MemoryCredentialStore keeps credentials in process memory.
type MemoryCredentialStore struct {
	mu    sync.RWMutex
	token string
	user  string
}

// NewMemoryCredentialStore returns a store seeded with token.
func NewMemoryCredentialStore(token string) *MemoryCredentialStore {
	return &MemoryCredentialStore{token: token}
}

// Token implements CredentialStore.
func (s *MemoryCredentialStore) Token() (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token, nil
}

// SetToken implements CredentialStore.
func (s *MemoryCredentialStore) SetToken(token string) error {
	s.mu.Lock()
	s.token = token
	s.mu.Unlock()
	return nil
}

// ClearToken implements CredentialStore.
func (s *MemoryCredentialStore) ClearToken() error {
	return s.SetToken("")
}

// User returns the stored user record.
func (s *MemoryCredentialStore) User() (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.user, nil
}

// SetUser stores the user record, typically the JSON profile returned at sign-in.
func (s *MemoryCredentialStore) SetUser(user string) error {
	s.mu.Lock()
	s.user = user
	s.mu.Unlock()
	return nil
}

// ClearUser implements CredentialStore.
func (s *MemoryCredentialStore) ClearUser() error {
	return s.SetUser("")
}

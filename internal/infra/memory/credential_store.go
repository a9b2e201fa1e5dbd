package memory

import (
	"context"
	"sync"

	"github.com/Syxd09/code-byte-sub000/internal/domain"
)

// CredentialStore is an in-memory implementation of session.CredentialStore,
// useful for tests and single-shot runs.
type CredentialStore struct {
	mu       sync.RWMutex
	cred     domain.SessionCredential
	identity domain.ParticipantIdentity
	present  bool
}

func NewCredentialStore() *CredentialStore {
	return &CredentialStore{}
}

func (s *CredentialStore) Load(_ context.Context) (domain.SessionCredential, domain.ParticipantIdentity, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cred, s.identity, s.present, nil
}

func (s *CredentialStore) Save(_ context.Context, cred domain.SessionCredential, identity domain.ParticipantIdentity) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cred = cred
	s.identity = identity
	s.present = true
	return nil
}

func (s *CredentialStore) Purge(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cred = domain.SessionCredential{}
	s.identity = domain.ParticipantIdentity{}
	s.present = false
	return nil
}

package file

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/Syxd09/code-byte-sub000/internal/domain"
)

// CredentialStore persists the session credential and identity snapshot as a
// JSON file under a well-known path, so a restarted process can rejoin the
// same game. This is the client-side equivalent of surviving a page reload.
type CredentialStore struct {
	path string
	mu   sync.Mutex
}

type record struct {
	Credential domain.SessionCredential   `json:"credential"`
	Identity   domain.ParticipantIdentity `json:"identity"`
}

// NewCredentialStore stores state at path; parent directories are created on
// first save.
func NewCredentialStore(path string) *CredentialStore {
	return &CredentialStore{path: path}
}

// DefaultPath places the session file under the user config directory.
func DefaultPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		dir = "."
	}
	return filepath.Join(dir, "code-byte", "session.json")
}

func (s *CredentialStore) Load(_ context.Context) (domain.SessionCredential, domain.ParticipantIdentity, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return domain.SessionCredential{}, domain.ParticipantIdentity{}, false, nil
	}
	if err != nil {
		return domain.SessionCredential{}, domain.ParticipantIdentity{}, false, fmt.Errorf("read session file: %w", err)
	}

	var rec record
	if err := json.Unmarshal(data, &rec); err != nil {
		// A corrupt file is treated as absent rather than wedging startup.
		return domain.SessionCredential{}, domain.ParticipantIdentity{}, false, nil
	}
	if !rec.Credential.Valid() {
		return domain.SessionCredential{}, domain.ParticipantIdentity{}, false, nil
	}
	return rec.Credential, rec.Identity, true, nil
}

func (s *CredentialStore) Save(_ context.Context, cred domain.SessionCredential, identity domain.ParticipantIdentity) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("create session dir: %w", err)
	}
	data, err := json.MarshalIndent(record{Credential: cred, Identity: identity}, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}

	// Write-then-rename keeps the file whole if the process dies mid-write.
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("write session file: %w", err)
	}
	return os.Rename(tmp, s.path)
}

func (s *CredentialStore) Purge(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := os.Remove(s.path)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove session file: %w", err)
	}
	return nil
}

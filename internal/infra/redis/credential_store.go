package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Syxd09/code-byte-sub000/internal/domain"
)

// CredentialStore keeps the session credential in Redis, letting a fleet of
// headless runners share one participant session across processes. Keys are
// TTL'd so abandoned sessions age out on their own.
type CredentialStore struct {
	client *redis.Client
	key    string
	ttl    time.Duration
}

// NewCredentialStore scopes the store to one runner identity; runnerID keys
// the stored session.
func NewCredentialStore(client *redis.Client, runnerID string, ttl time.Duration) *CredentialStore {
	return &CredentialStore{
		client: client,
		key:    "participant:session:" + runnerID,
		ttl:    ttl,
	}
}

type record struct {
	Credential domain.SessionCredential   `json:"credential"`
	Identity   domain.ParticipantIdentity `json:"identity"`
}

func (s *CredentialStore) Load(ctx context.Context) (domain.SessionCredential, domain.ParticipantIdentity, bool, error) {
	data, err := s.client.Get(ctx, s.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.SessionCredential{}, domain.ParticipantIdentity{}, false, nil
	}
	if err != nil {
		return domain.SessionCredential{}, domain.ParticipantIdentity{}, false, fmt.Errorf("load session: %w", err)
	}

	var rec record
	if err := json.Unmarshal(data, &rec); err != nil {
		return domain.SessionCredential{}, domain.ParticipantIdentity{}, false, nil
	}
	if !rec.Credential.Valid() {
		return domain.SessionCredential{}, domain.ParticipantIdentity{}, false, nil
	}
	return rec.Credential, rec.Identity, true, nil
}

func (s *CredentialStore) Save(ctx context.Context, cred domain.SessionCredential, identity domain.ParticipantIdentity) error {
	data, err := json.Marshal(record{Credential: cred, Identity: identity})
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}
	if err := s.client.Set(ctx, s.key, data, s.ttl).Err(); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

func (s *CredentialStore) Purge(ctx context.Context) error {
	if err := s.client.Del(ctx, s.key).Err(); err != nil {
		return fmt.Errorf("purge session: %w", err)
	}
	return nil
}

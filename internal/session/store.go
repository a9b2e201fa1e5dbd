package session

import (
	"context"

	"github.com/Syxd09/code-byte-sub000/internal/domain"
)

// CredentialStore is the durable local record of the session credential and
// the participant-identity snapshot. It survives process restarts and is the
// sole source of truth for "am I already in this game".
//
// Mutation policy: written by join, purged by rejoin failure (credential
// rejected) or explicit exit, never touched by transient errors.
type CredentialStore interface {
	Load(ctx context.Context) (domain.SessionCredential, domain.ParticipantIdentity, bool, error)
	Save(ctx context.Context, cred domain.SessionCredential, identity domain.ParticipantIdentity) error
	Purge(ctx context.Context) error
}

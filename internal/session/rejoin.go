package session

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"

	"github.com/Syxd09/code-byte-sub000/internal/domain"
)

// RejoinAPI is the transport slice the rejoin protocol needs.
type RejoinAPI interface {
	Rejoin(ctx context.Context, cred domain.SessionCredential) (domain.RejoinSnapshot, error)
}

// Rejoiner re-establishes authoritative state after a reload or reconnect.
// Concurrent calls for the same credential collapse into one network call,
// so a reconnect storm performs a single resume request.
type Rejoiner struct {
	api   RejoinAPI
	store CredentialStore
	sf    singleflight.Group
}

// NewRejoiner wires the rejoin protocol to its collaborators.
func NewRejoiner(api RejoinAPI, store CredentialStore) *Rejoiner {
	return &Rejoiner{api: api, store: store}
}

// Resume calls the authoritative resume operation. A rejected credential
// purges the store and surfaces domain.ErrCredentialRejected: the caller
// must go through the join flow from scratch. Transient failures leave the
// stored credential untouched and are retryable.
func (r *Rejoiner) Resume(ctx context.Context, cred domain.SessionCredential) (domain.RejoinSnapshot, error) {
	if !cred.Valid() {
		return domain.RejoinSnapshot{}, domain.ErrCredentialRejected
	}

	v, err, _ := r.sf.Do(cred.SessionToken, func() (any, error) {
		snap, err := r.api.Rejoin(ctx, cred)
		if err != nil {
			if errors.Is(err, domain.ErrCredentialRejected) {
				log.Info().Str("game_code", cred.GameCode).Msg("credential rejected, purging stored session")
				if purgeErr := r.store.Purge(ctx); purgeErr != nil {
					log.Warn().Err(purgeErr).Msg("failed to purge rejected credential")
				}
				return nil, domain.ErrCredentialRejected
			}
			return nil, fmt.Errorf("rejoin: %w", err)
		}
		return snap, nil
	})
	if err != nil {
		return domain.RejoinSnapshot{}, err
	}
	return v.(domain.RejoinSnapshot), nil
}

package service

import (
	"context"
	"errors"

	"github.com/aussiebroadwan/gatekeeper/internal/gateway/domain"
	"github.com/aussiebroadwan/gatekeeper/internal/gateway/store"
)

// ErrIdentityNotFound reports that no identity exists for a principal name.
var ErrIdentityNotFound = errors.New("service: identity not found")

// IdentityService resolves principal names to full identity records. The
// backing store may block on I/O, so every lookup is context-bound; callers
// run on their own goroutine and are never parked on a shared loop.
type IdentityService struct {
	Store store.Store
}

// Resolve maps a principal name to its identity record.
func (s *IdentityService) Resolve(ctx context.Context, username string) (domain.Identity, error) {
	identity, err := s.Store.Identities().GetIdentityByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.Identity{}, ErrIdentityNotFound
		}
		return domain.Identity{}, err
	}
	return identity, nil
}

// GetByID returns an identity by its id.
func (s *IdentityService) GetByID(ctx context.Context, id string) (domain.Identity, error) {
	identity, err := s.Store.Identities().GetIdentityByID(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.Identity{}, ErrIdentityNotFound
		}
		return domain.Identity{}, err
	}
	return identity, nil
}

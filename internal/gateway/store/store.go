package store

import (
	"context"
	"errors"

	"github.com/aussiebroadwan/gatekeeper/internal/gateway/domain"
)

var (
	ErrNotFound      = errors.New("store: not found")
	ErrAlreadyExists = errors.New("store: already exists")
)

// Store is the root data access interface. Concrete drivers (sqlite for now)
// implement this.
type Store interface {
	Identities() Identities

	ApplyMigrations() error

	// Close releases any underlying resources.
	Close() error

	// Ping verifies the database connection is still alive.
	Ping(ctx context.Context) error
}

// Identities is the identity repository backing the resolver.
type Identities interface {
	// GetIdentityByUsername returns the identity for a principal name.
	// Returns ErrNotFound if no matching identity exists.
	GetIdentityByUsername(ctx context.Context, username string) (domain.Identity, error)

	// GetIdentityByID returns an identity by id.
	GetIdentityByID(ctx context.Context, id string) (domain.Identity, error)

	// CreateIdentity stores a new identity. Returns ErrAlreadyExists when
	// the username is taken.
	CreateIdentity(ctx context.Context, identity domain.Identity) error

	// SetEnabled flips the enabled flag for an identity.
	SetEnabled(ctx context.Context, id string, enabled bool) error
}

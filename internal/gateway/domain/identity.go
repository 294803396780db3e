package domain

import (
	"slices"
	"time"
)

// Identity is the full record behind a token subject: credentials plus the
// authorities that drive authorization decisions. Owned by the identity
// store; request handling only ever holds a transient reference.
type Identity struct {
	ID           string
	Username     string
	PasswordHash string   // argon2id encoded
	Authorities  []string // e.g. "user", "admin"
	Enabled      bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// HasAuthority reports whether the identity carries the given authority.
func (i Identity) HasAuthority(authority string) bool {
	return slices.Contains(i.Authorities, authority)
}

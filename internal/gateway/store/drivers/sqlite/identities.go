package sqlite

import (
	"context"
	"database/sql"
	"strings"

	"github.com/aussiebroadwan/gatekeeper/internal/gateway/domain"
)

type identitiesRepo struct {
	db *sql.DB
}

const identityColumns = `id, username, password_hash, authorities, enabled, created_at, updated_at`

func (r *identitiesRepo) GetIdentityByUsername(ctx context.Context, username string) (domain.Identity, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+identityColumns+` FROM identities WHERE username = ?`, username)
	return scanIdentity(row)
}

func (r *identitiesRepo) GetIdentityByID(ctx context.Context, id string) (domain.Identity, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+identityColumns+` FROM identities WHERE id = ?`, id)
	return scanIdentity(row)
}

func (r *identitiesRepo) CreateIdentity(ctx context.Context, identity domain.Identity) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO identities (id, username, password_hash, authorities, enabled)
		 VALUES (?, ?, ?, ?, ?)`,
		identity.ID,
		identity.Username,
		identity.PasswordHash,
		strings.Join(identity.Authorities, " "),
		identity.Enabled,
	)
	return mapConstraint(err)
}

func (r *identitiesRepo) SetEnabled(ctx context.Context, id string, enabled bool) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE identities SET enabled = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		enabled, id)
	return err
}

func scanIdentity(row *sql.Row) (domain.Identity, error) {
	var identity domain.Identity
	var authorities string

	err := row.Scan(
		&identity.ID,
		&identity.Username,
		&identity.PasswordHash,
		&authorities,
		&identity.Enabled,
		&identity.CreatedAt,
		&identity.UpdatedAt,
	)
	if err != nil {
		return domain.Identity{}, mapNotFound(err)
	}

	if authorities = strings.TrimSpace(authorities); authorities != "" {
		identity.Authorities = strings.Fields(authorities)
	}
	return identity, nil
}

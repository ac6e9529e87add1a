package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/transono/voicememo/internal/domain/model/profile"
	"github.com/transono/voicememo/internal/domain/repository"
)

// ProfileRepositoryImpl implements repository.ProfileRepository with SQLite.
// The table holds at most one row.
type ProfileRepositoryImpl struct {
	db *sql.DB
}

// NewProfileRepository creates a new SQLite-based profile repository
func NewProfileRepository(db *sql.DB) *ProfileRepositoryImpl {
	return &ProfileRepositoryImpl{db: db}
}

// Save replaces the stored profile
func (r *ProfileRepositoryImpl) Save(ctx context.Context, p *profile.Profile) error {
	query := `
		INSERT INTO profile (id, username, email, updated_at)
		VALUES (1, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			username = excluded.username,
			email = excluded.email,
			updated_at = excluded.updated_at
	`
	_, err := r.db.ExecContext(ctx, query, p.Username(), p.Email(), p.UpdatedAt().UTC())
	if err != nil {
		return fmt.Errorf("save profile failed: %w", err)
	}
	return nil
}

// Load returns the stored profile, or repository.ErrNoProfile
func (r *ProfileRepositoryImpl) Load(ctx context.Context) (*profile.Profile, error) {
	var username, email string
	var updatedAt time.Time

	err := r.db.QueryRowContext(ctx,
		"SELECT username, email, updated_at FROM profile WHERE id = 1").
		Scan(&username, &email, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repository.ErrNoProfile
	}
	if err != nil {
		return nil, fmt.Errorf("load profile failed: %w", err)
	}
	return profile.ReconstructProfile(username, email, updatedAt.UTC()), nil
}

// Clear removes the stored profile
func (r *ProfileRepositoryImpl) Clear(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, "DELETE FROM profile WHERE id = 1"); err != nil {
		return fmt.Errorf("clear profile failed: %w", err)
	}
	return nil
}

package sqlite

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/transono/voicememo/internal/domain/model/profile"
	"github.com/transono/voicememo/internal/domain/repository"
)

func newProfileRepo(t *testing.T) *ProfileRepositoryImpl {
	t.Helper()
	db, err := Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, NewMigrator(db).Migrate())
	return NewProfileRepository(db)
}

func TestProfileRepository_RoundTrip(t *testing.T) {
	repo := newProfileRepo(t)
	ctx := context.Background()

	_, err := repo.Load(ctx)
	assert.ErrorIs(t, err, repository.ErrNoProfile)

	require.NoError(t, repo.Save(ctx, profile.NewProfile("ada", "ada@example.com")))

	p, err := repo.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, "ada", p.Username())
	assert.Equal(t, "ada@example.com", p.Email())
	assert.False(t, p.UpdatedAt().IsZero())
}

func TestProfileRepository_SaveReplaces(t *testing.T) {
	repo := newProfileRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.Save(ctx, profile.NewProfile("ada", "ada@example.com")))
	require.NoError(t, repo.Save(ctx, profile.NewProfile("grace", "grace@example.com")))

	p, err := repo.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, "grace", p.Username())
}

func TestProfileRepository_Clear(t *testing.T) {
	repo := newProfileRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.Save(ctx, profile.NewProfile("ada", "ada@example.com")))
	require.NoError(t, repo.Clear(ctx))

	_, err := repo.Load(ctx)
	assert.ErrorIs(t, err, repository.ErrNoProfile)

	// clearing an empty store is fine
	require.NoError(t, repo.Clear(ctx))
}

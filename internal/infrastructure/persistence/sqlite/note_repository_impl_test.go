package sqlite

import (
	"context"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/transono/voicememo/internal/domain/model/note"
	"github.com/transono/voicememo/internal/domain/repository"
	"github.com/transono/voicememo/internal/infrastructure/transaction"
)

func setupTestDB(t *testing.T) *NoteRepositoryImpl {
	t.Helper()

	db, err := Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	require.NoError(t, NewMigrator(db).Migrate())
	return NewNoteRepository(db)
}

func newTestNote(t *testing.T, title string) *note.Note {
	t.Helper()
	n, err := note.NewNote("work", title, title+".wav", 120, time.Now())
	require.NoError(t, err)
	return n
}

func TestNoteRepository_CreateRoundTrip(t *testing.T) {
	repo := setupTestDB(t)
	ctx := context.Background()

	recorded := time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC)
	n, err := note.NewNote("work", "standup notes", "standup.wav", 95, recorded)
	require.NoError(t, err)
	loc := note.NewLocation(48.8566, 2.3522)
	n.SetLocation(&loc)

	saved, err := repo.Create(ctx, n)
	require.NoError(t, err)

	got, err := repo.FindByLocalID(ctx, n.LocalID())
	require.NoError(t, err)

	assert.Equal(t, n.LocalID(), got.LocalID())
	assert.True(t, got.ServerID().IsZero())
	assert.Equal(t, "work", got.FolderID())
	assert.Equal(t, "standup notes", got.Title())
	assert.Equal(t, "standup.wav", got.AudioPath())
	assert.Equal(t, 95, got.Duration())
	assert.True(t, got.CreatedAt().Equal(recorded))
	require.NotNil(t, got.Location())
	assert.InDelta(t, 48.8566, got.Location().Latitude(), 1e-9)
	assert.InDelta(t, 2.3522, got.Location().Longitude(), 1e-9)
	assert.False(t, got.Location().IsResolved())

	// Create returns the read-back record
	assert.Equal(t, got.LocalID(), saved.LocalID())
	assert.Equal(t, got.Title(), saved.Title())
}

func TestNoteRepository_CreateDuplicateLocalID(t *testing.T) {
	repo := setupTestDB(t)
	ctx := context.Background()

	n := newTestNote(t, "first")
	_, err := repo.Create(ctx, n)
	require.NoError(t, err)

	_, err = repo.Create(ctx, n)
	require.Error(t, err)
	var storageErr *note.StorageError
	assert.ErrorAs(t, err, &storageErr)
}

func TestNoteRepository_UpsertInsertsThenUpdates(t *testing.T) {
	repo := setupTestDB(t)
	ctx := context.Background()

	n := newTestNote(t, "draft")

	// Absent: insert
	saved, err := repo.Upsert(ctx, n)
	require.NoError(t, err)
	assert.Equal(t, "draft", saved.Title())

	// Present: overwrite in place, same identity
	require.NoError(t, saved.Rename("final"))
	saved.SetTranscription("hello world")
	updated, err := repo.Upsert(ctx, saved)
	require.NoError(t, err)
	assert.Equal(t, n.LocalID(), updated.LocalID())
	assert.Equal(t, "final", updated.Title())
	assert.Equal(t, "hello world", updated.Transcription())

	count, err := repo.Count(ctx, note.Query{})
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestNoteRepository_ServerIDUniqueness(t *testing.T) {
	repo := setupTestDB(t)
	ctx := context.Background()

	a := newTestNote(t, "a")
	require.NoError(t, a.AttachServerID("101"))
	_, err := repo.Create(ctx, a)
	require.NoError(t, err)

	b := newTestNote(t, "b")
	require.NoError(t, b.AttachServerID("101"))
	_, err = repo.Create(ctx, b)
	require.Error(t, err, "second note with same server id must violate the unique index")

	got, err := repo.FindByServerID(ctx, "101")
	require.NoError(t, err)
	assert.Equal(t, a.LocalID(), got.LocalID())
}

func TestNoteRepository_FindByServerID_NotFound(t *testing.T) {
	repo := setupTestDB(t)

	_, err := repo.FindByServerID(context.Background(), "999")
	assert.ErrorIs(t, err, note.ErrNotFound)
}

func TestNoteRepository_FetchFolderFilter(t *testing.T) {
	repo := setupTestDB(t)
	ctx := context.Background()

	work := newTestNote(t, "meeting")
	_, err := repo.Create(ctx, work)
	require.NoError(t, err)

	personal, err := note.NewNote("personal", "groceries", "g.wav", 10, time.Now())
	require.NoError(t, err)
	_, err = repo.Create(ctx, personal)
	require.NoError(t, err)

	folder := "work"
	got, err := repo.Fetch(ctx, repository.FetchOptions{Query: note.Query{FolderID: &folder}})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "meeting", got[0].Title())

	// No folder filter returns the full set
	all, err := repo.Fetch(ctx, repository.FetchOptions{})
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestNoteRepository_FetchSearchTitleOrTranscription(t *testing.T) {
	repo := setupTestDB(t)
	ctx := context.Background()

	byTitle := newTestNote(t, "Alpha review")
	_, err := repo.Create(ctx, byTitle)
	require.NoError(t, err)

	byTranscription := newTestNote(t, "untitled")
	byTranscription.SetTranscription("we discussed alpha milestones")
	_, err = repo.Create(ctx, byTranscription)
	require.NoError(t, err)

	neither := newTestNote(t, "beta planning")
	_, err = repo.Create(ctx, neither)
	require.NoError(t, err)

	got, err := repo.Fetch(ctx, repository.FetchOptions{Query: note.Query{Search: "ALPHA"}})
	require.NoError(t, err)
	assert.Len(t, got, 2, "search matches title or transcription, case-insensitively")
}

func TestNoteRepository_FetchSearchCaseFoldIsASCIIOnly(t *testing.T) {
	repo := setupTestDB(t)
	ctx := context.Background()

	n := newTestNote(t, "Ångström measurements")
	_, err := repo.Create(ctx, n)
	require.NoError(t, err)

	got, err := repo.Fetch(ctx, repository.FetchOptions{Query: note.Query{Search: "MEASURE"}})
	require.NoError(t, err)
	assert.Len(t, got, 1, "ASCII case differences fold in SQL")

	got, err = repo.Fetch(ctx, repository.FetchOptions{Query: note.Query{Search: "ngström"}})
	require.NoError(t, err)
	assert.Len(t, got, 1, "non-ASCII text matches with the stored casing")

	// SQLite LIKE does not fold non-ASCII case; the in-memory Query does
	got, err = repo.Fetch(ctx, repository.FetchOptions{Query: note.Query{Search: "ÅNGSTRÖM"}})
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.True(t, note.Query{Search: "ÅNGSTRÖM"}.Matches(n))
}

func TestNoteRepository_FetchLocationPredicates(t *testing.T) {
	repo := setupTestDB(t)
	ctx := context.Background()

	located := newTestNote(t, "with place")
	loc := note.ReconstructLocation(59.33, 18.06, "Stockholm", "Drottninggatan")
	located.SetLocation(&loc)
	_, err := repo.Create(ctx, located)
	require.NoError(t, err)

	bare := newTestNote(t, "nowhere")
	_, err = repo.Create(ctx, bare)
	require.NoError(t, err)

	yes := true
	got, err := repo.Fetch(ctx, repository.FetchOptions{Query: note.Query{HasLocation: &yes}})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "with place", got[0].Title())

	no := false
	got, err = repo.Fetch(ctx, repository.FetchOptions{Query: note.Query{HasLocation: &no}})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "nowhere", got[0].Title())

	got, err = repo.Fetch(ctx, repository.FetchOptions{Query: note.Query{CityName: "stockholm"}})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "with place", got[0].Title())

	got, err = repo.Fetch(ctx, repository.FetchOptions{Query: note.Query{StreetName: "drottning"}})
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestNoteRepository_FetchDefaultSortNewestFirst(t *testing.T) {
	repo := setupTestDB(t)
	ctx := context.Background()

	older, err := note.NewNote("work", "older", "1.wav", 5, time.Now().Add(-time.Hour))
	require.NoError(t, err)
	_, err = repo.Create(ctx, older)
	require.NoError(t, err)

	newer, err := note.NewNote("work", "newer", "2.wav", 5, time.Now())
	require.NoError(t, err)
	_, err = repo.Create(ctx, newer)
	require.NoError(t, err)

	got, err := repo.Fetch(ctx, repository.FetchOptions{})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "newer", got[0].Title())
	assert.Equal(t, "older", got[1].Title())
}

func TestNoteRepository_FetchLimitOffset(t *testing.T) {
	repo := setupTestDB(t)
	ctx := context.Background()

	base := time.Now().Add(-time.Hour)
	for i := 0; i < 5; i++ {
		n, err := note.NewNote("work", "memo", "m.wav", 5, base.Add(time.Duration(i)*time.Minute))
		require.NoError(t, err)
		_, err = repo.Create(ctx, n)
		require.NoError(t, err)
	}

	page, err := repo.Fetch(ctx, repository.FetchOptions{Limit: 2, Offset: 2})
	require.NoError(t, err)
	assert.Len(t, page, 2)

	// Limit 0 means unbounded
	all, err := repo.Fetch(ctx, repository.FetchOptions{})
	require.NoError(t, err)
	assert.Len(t, all, 5)
}

func TestNoteRepository_DeleteAndDeleteAll(t *testing.T) {
	repo := setupTestDB(t)
	ctx := context.Background()

	a := newTestNote(t, "a")
	_, err := repo.Create(ctx, a)
	require.NoError(t, err)

	b := newTestNote(t, "b")
	_, err = repo.Create(ctx, b)
	require.NoError(t, err)

	c, err := note.NewNote("personal", "c", "c.wav", 5, time.Now())
	require.NoError(t, err)
	_, err = repo.Create(ctx, c)
	require.NoError(t, err)

	require.NoError(t, repo.Delete(ctx, a.LocalID()))
	_, err = repo.FindByLocalID(ctx, a.LocalID())
	assert.ErrorIs(t, err, note.ErrNotFound)

	// Scoped bulk delete leaves other folders alone
	folder := "work"
	require.NoError(t, repo.DeleteAll(ctx, &folder))
	count, err := repo.Count(ctx, note.Query{})
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	// Unscoped bulk delete empties the store
	require.NoError(t, repo.DeleteAll(ctx, nil))
	count, err = repo.Count(ctx, note.Query{})
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}

func TestNoteRepository_SubscribeReceivesExactDiffs(t *testing.T) {
	repo := setupTestDB(t)
	ctx := context.Background()

	ch, cancel := repo.Subscribe()
	defer cancel()

	n := newTestNote(t, "observed")
	_, err := repo.Create(ctx, n)
	require.NoError(t, err)

	cs := <-ch
	assert.Equal(t, []note.LocalID{n.LocalID()}, cs.Inserted)
	assert.Empty(t, cs.Updated)
	assert.Empty(t, cs.Deleted)

	_, err = repo.Upsert(ctx, n)
	require.NoError(t, err)
	cs = <-ch
	assert.Equal(t, []note.LocalID{n.LocalID()}, cs.Updated)

	require.NoError(t, repo.Delete(ctx, n.LocalID()))
	cs = <-ch
	assert.Equal(t, []note.LocalID{n.LocalID()}, cs.Deleted)
}

func TestNoteRepository_SubscribeCancelClosesChannel(t *testing.T) {
	repo := setupTestDB(t)

	ch, cancel := repo.Subscribe()
	cancel()

	_, open := <-ch
	assert.False(t, open)

	// Cancel twice is safe
	cancel()
}

func TestNoteRepository_TransactionPublishesOneMergedDiff(t *testing.T) {
	db, err := Open(":memory:")
	require.NoError(t, err)
	defer db.Close()
	require.NoError(t, NewMigrator(db).Migrate())

	repo := NewNoteRepository(db)
	txManager := transaction.NewSQLiteTransactionManager(db)
	txManager.SetCommitListener(repo)

	ch, cancel := repo.Subscribe()
	defer cancel()

	ctx := context.Background()
	a := newTestNote(t, "a")
	b := newTestNote(t, "b")

	err = txManager.InTransaction(ctx, func(txCtx context.Context) error {
		if _, err := repo.Upsert(txCtx, a); err != nil {
			return err
		}
		if _, err := repo.Upsert(txCtx, b); err != nil {
			return err
		}
		return nil
	})
	require.NoError(t, err)

	cs := <-ch
	assert.Len(t, cs.Inserted, 2, "one merged diff for the whole transaction")

	select {
	case extra := <-ch:
		t.Fatalf("unexpected second diff: %+v", extra)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestNoteRepository_TransactionRollbackPublishesNothing(t *testing.T) {
	db, err := Open(":memory:")
	require.NoError(t, err)
	defer db.Close()
	require.NoError(t, NewMigrator(db).Migrate())

	repo := NewNoteRepository(db)
	txManager := transaction.NewSQLiteTransactionManager(db)
	txManager.SetCommitListener(repo)

	ch, cancel := repo.Subscribe()
	defer cancel()

	ctx := context.Background()
	a := newTestNote(t, "a")

	boom := assert.AnError
	err = txManager.InTransaction(ctx, func(txCtx context.Context) error {
		if _, err := repo.Upsert(txCtx, a); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	_, err = repo.FindByLocalID(ctx, a.LocalID())
	assert.ErrorIs(t, err, note.ErrNotFound)

	select {
	case cs := <-ch:
		t.Fatalf("rolled-back transaction emitted diff: %+v", cs)
	case <-time.After(50 * time.Millisecond):
	}
}

package sync

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/transono/voicememo/internal/application/port/output"
	"github.com/transono/voicememo/internal/domain/model/note"
	"github.com/transono/voicememo/internal/domain/repository"
	"github.com/transono/voicememo/internal/infrastructure/persistence/sqlite"
	"github.com/transono/voicememo/internal/infrastructure/transaction"
)

type fakeGateway struct {
	mu       sync.Mutex
	pages    map[int]*output.RecordsPage
	fetchErr error

	uploadResult *output.RemoteRecord
	uploadErr    error

	fetches []output.FetchRecordsRequest
	uploads []output.UploadRecordRequest
}

func (g *fakeGateway) FetchRecords(ctx context.Context, req output.FetchRecordsRequest) (*output.RecordsPage, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.fetches = append(g.fetches, req)
	if g.fetchErr != nil {
		return nil, g.fetchErr
	}
	page, ok := g.pages[req.Page]
	if !ok {
		return &output.RecordsPage{Page: req.Page, TotalPages: len(g.pages)}, nil
	}
	return page, nil
}

func (g *fakeGateway) UploadRecord(ctx context.Context, req output.UploadRecordRequest) (*output.RemoteRecord, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.uploads = append(g.uploads, req)
	if g.uploadErr != nil {
		return nil, g.uploadErr
	}
	return g.uploadResult, nil
}

func (g *fakeGateway) DownloadAudio(ctx context.Context, recordID int64) (string, error) {
	return "", errors.New("not implemented")
}

func (g *fakeGateway) DownloadTranscriptPDF(ctx context.Context, recordID int64) (string, error) {
	return "", errors.New("not implemented")
}

func (g *fakeGateway) fetchCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.fetches)
}

func (g *fakeGateway) uploadCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.uploads)
}

type fakeNotifier struct {
	mu       sync.Mutex
	messages []string
}

func (n *fakeNotifier) Notify(severity output.Severity, message string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.messages = append(n.messages, message)
}

func (n *fakeNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.messages)
}

// passthroughStorage resolves every reference to itself
type passthroughStorage struct{}

func (passthroughStorage) Save(ctx context.Context, name string, content []byte) (*output.AudioBlobMetadata, error) {
	return nil, nil
}
func (passthroughStorage) Load(ctx context.Context, name string) ([]byte, error) { return nil, nil }
func (passthroughStorage) Resolve(ctx context.Context, name string) (string, error) {
	return name, nil
}
func (passthroughStorage) Remove(ctx context.Context, name string) error { return nil }

func newTestEngine(t *testing.T, gateway *fakeGateway) (*Engine, repository.NoteRepository, *fakeNotifier) {
	t.Helper()

	db, err := sqlite.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, sqlite.NewMigrator(db).Migrate())

	repo := sqlite.NewNoteRepository(db)
	txm := transaction.NewSQLiteTransactionManager(db)
	txm.SetCommitListener(repo)

	notifier := &fakeNotifier{}
	engine := NewEngine(repo, gateway, passthroughStorage{}, txm, notifier, 20)
	return engine, repo, notifier
}

func remoteRecord(id int64, title string, created time.Time) output.RemoteRecord {
	return output.RemoteRecord{
		ID:        id,
		Title:     &title,
		CreatedAt: &created,
	}
}

func pageOfTwo() *output.RecordsPage {
	return &output.RecordsPage{
		Items: []output.RemoteRecord{
			remoteRecord(101, "first memo", time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)),
			remoteRecord(102, "second memo", time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)),
		},
		TotalPages:    3,
		TotalElements: 41,
	}
}

func TestEngine_RefreshReconcilesPageZero(t *testing.T) {
	gateway := &fakeGateway{pages: map[int]*output.RecordsPage{0: pageOfTwo()}}
	engine, repo, _ := newTestEngine(t, gateway)
	ctx := context.Background()

	require.NoError(t, engine.Refresh(ctx, Filter{}))

	assert.False(t, engine.IsSyncing())
	current, total := engine.Cursor()
	assert.Equal(t, 0, current)
	assert.Equal(t, 3, total)

	notes, err := repo.Fetch(ctx, repository.FetchOptions{})
	require.NoError(t, err)
	require.Len(t, notes, 2)

	// default sort is newest first
	assert.Equal(t, note.ServerID("101"), notes[0].ServerID())
	assert.Equal(t, "first memo", notes[0].Title())
	assert.Equal(t, note.ServerID("102"), notes[1].ServerID())

	// fetch carried the expected paging parameters
	require.Len(t, gateway.fetches, 1)
	assert.Equal(t, 0, gateway.fetches[0].Page)
	assert.Equal(t, 20, gateway.fetches[0].PageSize)
}

func TestEngine_RefreshIsIdempotent(t *testing.T) {
	gateway := &fakeGateway{pages: map[int]*output.RecordsPage{0: pageOfTwo()}}
	engine, repo, _ := newTestEngine(t, gateway)
	ctx := context.Background()

	require.NoError(t, engine.Refresh(ctx, Filter{}))

	byServer, err := repo.FindByServerID(ctx, note.ServerID("101"))
	require.NoError(t, err)
	firstLocalID := byServer.LocalID()

	require.NoError(t, engine.Refresh(ctx, Filter{}))

	count, err := repo.Count(ctx, note.Query{})
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	// the same localId stays bound to the same serverId
	byServer, err = repo.FindByServerID(ctx, note.ServerID("101"))
	require.NoError(t, err)
	assert.Equal(t, firstLocalID, byServer.LocalID())
}

func TestEngine_RefreshFailureClearsFlagAndWritesNothing(t *testing.T) {
	gateway := &fakeGateway{fetchErr: &output.NetworkError{StatusCode: 502, Body: "bad gateway"}}
	engine, repo, _ := newTestEngine(t, gateway)
	ctx := context.Background()

	err := engine.Refresh(ctx, Filter{})
	var netErr *output.NetworkError
	require.ErrorAs(t, err, &netErr)

	assert.False(t, engine.IsSyncing())
	count, err := repo.Count(ctx, note.Query{})
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestEngine_RefreshPreservesPendingLocalFields(t *testing.T) {
	created := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)
	lat, lon := 59.3293, 18.0686

	page := pageOfTwo()
	page.Items[0].Latitude = &lat
	page.Items[0].Longitude = &lon

	gateway := &fakeGateway{pages: map[int]*output.RecordsPage{0: page}}
	engine, repo, _ := newTestEngine(t, gateway)
	ctx := context.Background()

	// the note is already known locally, with geocoder-resolved place names
	loc := note.ReconstructLocation(lat, lon, "Stockholm", "Drottninggatan")
	existing := note.ReconstructNote(
		note.NewLocalID(), note.ServerID("101"), "", "first memo",
		"local transcription", "local.wav", created, created, 95, &loc)
	_, err := repo.Upsert(ctx, existing)
	require.NoError(t, err)

	require.NoError(t, engine.Refresh(ctx, Filter{}))

	merged, err := repo.FindByServerID(ctx, note.ServerID("101"))
	require.NoError(t, err)
	assert.Equal(t, existing.LocalID(), merged.LocalID())
	assert.Equal(t, "local transcription", merged.Transcription())
	assert.Equal(t, "local.wav", merged.AudioPath())
	require.NotNil(t, merged.Location())
	assert.Equal(t, "Stockholm", merged.Location().CityName())
	assert.Equal(t, "Drottninggatan", merged.Location().StreetName())
}

func TestEngine_LoadMoreGating(t *testing.T) {
	gateway := &fakeGateway{pages: map[int]*output.RecordsPage{
		0: pageOfTwo(),
		1: {
			Items: []output.RemoteRecord{
				remoteRecord(103, "third memo", time.Date(2026, 3, 14, 8, 0, 0, 0, time.UTC)),
			},
			TotalPages: 3,
		},
	}}
	engine, repo, _ := newTestEngine(t, gateway)
	ctx := context.Background()

	require.NoError(t, engine.Refresh(ctx, Filter{}))
	require.Equal(t, 1, gateway.fetchCount())

	notes, err := repo.Fetch(ctx, repository.FetchOptions{})
	require.NoError(t, err)
	require.Len(t, notes, 2)
	first, last := notes[0], notes[1]

	// scrolling past a middle item fetches nothing
	require.NoError(t, engine.LoadMoreIfNeeded(ctx, first))
	assert.Equal(t, 1, gateway.fetchCount())

	// the true end of the list advances the cursor
	require.NoError(t, engine.LoadMoreIfNeeded(ctx, last))
	assert.Equal(t, 2, gateway.fetchCount())
	current, total := engine.Cursor()
	assert.Equal(t, 1, current)
	assert.Equal(t, 3, total)
	assert.Equal(t, 1, gateway.fetches[1].Page)

	count, err := repo.Count(ctx, note.Query{})
	require.NoError(t, err)
	assert.Equal(t, 3, count)
}

func TestEngine_LoadMoreStopsAtLastPage(t *testing.T) {
	page := pageOfTwo()
	page.TotalPages = 1
	gateway := &fakeGateway{pages: map[int]*output.RecordsPage{0: page}}
	engine, repo, _ := newTestEngine(t, gateway)
	ctx := context.Background()

	require.NoError(t, engine.Refresh(ctx, Filter{}))

	notes, err := repo.Fetch(ctx, repository.FetchOptions{})
	require.NoError(t, err)
	require.NoError(t, engine.LoadMoreIfNeeded(ctx, notes[len(notes)-1]))

	// only the refresh fetch happened
	assert.Equal(t, 1, gateway.fetchCount())
}

func TestEngine_LoadMoreNilNote(t *testing.T) {
	gateway := &fakeGateway{pages: map[int]*output.RecordsPage{0: pageOfTwo()}}
	engine, _, _ := newTestEngine(t, gateway)
	ctx := context.Background()

	require.NoError(t, engine.Refresh(ctx, Filter{}))
	require.NoError(t, engine.LoadMoreIfNeeded(ctx, nil))
	assert.Equal(t, 1, gateway.fetchCount())
}

func TestEngine_RefreshPassesFilterToGateway(t *testing.T) {
	folder := "4"
	gateway := &fakeGateway{pages: map[int]*output.RecordsPage{}}
	engine, _, _ := newTestEngine(t, gateway)

	require.NoError(t, engine.Refresh(context.Background(), Filter{Search: "meeting", FolderID: &folder}))

	require.Len(t, gateway.fetches, 1)
	assert.Equal(t, "meeting", gateway.fetches[0].Search)
	require.NotNil(t, gateway.fetches[0].FolderID)
	assert.Equal(t, int64(4), *gateway.fetches[0].FolderID)
}

func TestEngine_UploadBackfillsServerID(t *testing.T) {
	gateway := &fakeGateway{uploadResult: &output.RemoteRecord{ID: 314}}
	engine, repo, notifier := newTestEngine(t, gateway)
	ctx := context.Background()

	n, err := note.NewNote("work", "morning memo", "memo.wav", 42, time.Now())
	require.NoError(t, err)
	saved, err := repo.Create(ctx, n)
	require.NoError(t, err)

	engine.UploadNote(saved)
	engine.WaitForUploads()

	uploaded, err := repo.FindByLocalID(ctx, saved.LocalID())
	require.NoError(t, err)
	assert.Equal(t, note.ServerID("314"), uploaded.ServerID())
	assert.Equal(t, saved.LocalID(), uploaded.LocalID())
	assert.Zero(t, notifier.count())

	require.Len(t, gateway.uploads, 1)
	assert.Equal(t, "morning memo", gateway.uploads[0].Name)
	assert.Equal(t, "memo.wav", gateway.uploads[0].FilePath)
	assert.Equal(t, "work", gateway.uploads[0].Category)
}

func TestEngine_UploadFailureNotifiesAndStaysLocal(t *testing.T) {
	gateway := &fakeGateway{uploadErr: &output.NetworkError{StatusCode: 500, Body: "boom"}}
	engine, repo, notifier := newTestEngine(t, gateway)
	ctx := context.Background()

	n, err := note.NewNote("work", "morning memo", "memo.wav", 42, time.Now())
	require.NoError(t, err)
	saved, err := repo.Create(ctx, n)
	require.NoError(t, err)

	engine.UploadNote(saved)
	engine.WaitForUploads()

	assert.Equal(t, 1, notifier.count())
	stillLocal, err := repo.FindByLocalID(ctx, saved.LocalID())
	require.NoError(t, err)
	assert.True(t, stillLocal.IsLocalOnly())

	// no retry happens on its own
	assert.Equal(t, 1, gateway.uploadCount())
}

func TestEngine_UploadSkipsAlreadyUploadedNote(t *testing.T) {
	gateway := &fakeGateway{}
	engine, repo, _ := newTestEngine(t, gateway)
	ctx := context.Background()

	created := time.Now().UTC()
	n := note.ReconstructNote(
		note.NewLocalID(), note.ServerID("200"), "", "synced memo",
		"", "memo.wav", created, created, 10, nil)
	_, err := repo.Upsert(ctx, n)
	require.NoError(t, err)

	engine.UploadNote(n)
	engine.WaitForUploads()

	assert.Zero(t, gateway.uploadCount())
}

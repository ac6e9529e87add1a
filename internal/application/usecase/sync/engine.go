// Package sync reconciles the local Note store with the remote record
// service, one page at a time.
package sync

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/transono/voicememo/internal/app"
	"github.com/transono/voicememo/internal/application/port/output"
	"github.com/transono/voicememo/internal/domain/model/note"
	"github.com/transono/voicememo/internal/domain/repository"
)

// defaultCategory labels uploads that carry no folder
const defaultCategory = "Recordings"

// Filter narrows which remote records a sync session covers. It maps
// directly onto the records listing parameters.
type Filter struct {
	Search   string
	FolderID *string
}

func (f Filter) query() note.Query {
	return note.Query{FolderID: f.FolderID, Search: f.Search}
}

func (f Filter) remoteFolderID() *int64 {
	if f.FolderID == nil {
		return nil
	}
	id, err := strconv.ParseInt(*f.FolderID, 10, 64)
	if err != nil {
		return nil
	}
	return &id
}

// Engine drives paginated fetch-and-reconcile plus fire-and-forget upload.
//
// One Engine owns one cursor. Refresh restarts the cursor at page zero;
// LoadMoreIfNeeded advances it only when the caller proves it reached the end
// of the current view. Reconciliation of a page is all-or-nothing.
type Engine struct {
	notes    repository.NoteRepository
	gateway  output.RecordsGateway
	storage  output.AudioStorage
	tx       output.TransactionManager
	notifier output.Notifier
	pageSize int

	syncing atomic.Bool

	mu          sync.Mutex
	currentPage int
	totalPages  int
	filter      Filter

	uploads sync.WaitGroup
}

func NewEngine(
	notes repository.NoteRepository,
	gateway output.RecordsGateway,
	storage output.AudioStorage,
	tx output.TransactionManager,
	notifier output.Notifier,
	pageSize int,
) *Engine {
	return &Engine{
		notes:    notes,
		gateway:  gateway,
		storage:  storage,
		tx:       tx,
		notifier: notifier,
		pageSize: pageSize,
	}
}

// IsSyncing reports whether a refresh or page load is in flight
func (e *Engine) IsSyncing() bool {
	return e.syncing.Load()
}

// Cursor returns the current page position and the server's page count
func (e *Engine) Cursor() (currentPage, totalPages int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.currentPage, e.totalPages
}

// Refresh restarts the sync session: the cursor resets to page zero, page
// zero is fetched and reconciled, and the server's page count is recorded.
// The syncing flag is cleared on every exit path.
func (e *Engine) Refresh(ctx context.Context, filter Filter) error {
	if !e.syncing.CompareAndSwap(false, true) {
		app.GetLogger().Debug("refresh skipped, sync already in flight")
		return nil
	}
	defer e.syncing.Store(false)

	e.mu.Lock()
	e.filter = filter
	e.currentPage = 0
	e.totalPages = 1
	e.mu.Unlock()

	page, err := e.fetchAndReconcile(ctx, filter, 0)
	if err != nil {
		return err
	}

	e.mu.Lock()
	e.totalPages = page.TotalPages
	e.mu.Unlock()

	app.GetLogger().Info("refreshed page 0: %d records, %d pages total",
		len(page.Items), page.TotalPages)
	return nil
}

// LoadMoreIfNeeded fetches the next page, but only when triggering is the
// last Note of the currently filtered view, more pages remain, and no sync is
// already in flight. Scroll events anywhere else are no-ops.
func (e *Engine) LoadMoreIfNeeded(ctx context.Context, triggering *note.Note) error {
	if triggering == nil || e.syncing.Load() {
		return nil
	}

	e.mu.Lock()
	next := e.currentPage + 1
	totalPages := e.totalPages
	filter := e.filter
	e.mu.Unlock()

	if next >= totalPages {
		return nil
	}

	last, err := e.lastOfCurrentView(ctx, filter)
	if err != nil {
		return err
	}
	if last == nil || last.LocalID() != triggering.LocalID() {
		return nil
	}

	if !e.syncing.CompareAndSwap(false, true) {
		return nil
	}
	defer e.syncing.Store(false)

	page, err := e.fetchAndReconcile(ctx, filter, next)
	if err != nil {
		return err
	}

	e.mu.Lock()
	e.currentPage = next
	e.totalPages = page.TotalPages
	e.mu.Unlock()

	app.GetLogger().Info("loaded page %d: %d records", next, len(page.Items))
	return nil
}

// UploadNote sends a local-only Note to the record service without blocking
// the caller. On success the returned server identity is backfilled onto the
// Note; on failure a notification is raised and the Note stays local-only.
// There is no automatic retry.
func (e *Engine) UploadNote(n *note.Note) {
	if !n.IsLocalOnly() {
		app.GetLogger().Debug("note %s already uploaded as %s", n.LocalID(), n.ServerID())
		return
	}

	localID := n.LocalID()
	e.uploads.Add(1)
	go func() {
		defer e.uploads.Done()

		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		defer cancel()

		if err := e.upload(ctx, localID); err != nil {
			app.GetLogger().Warn("upload of note %s failed: %v", localID, err)
			e.notifier.Notify(output.SeverityWarning, "Recording upload failed; it stays on this device.")
		}
	}()
}

// WaitForUploads blocks until every in-flight upload has finished
func (e *Engine) WaitForUploads() {
	e.uploads.Wait()
}

func (e *Engine) upload(ctx context.Context, localID note.LocalID) error {
	n, err := e.notes.FindByLocalID(ctx, localID)
	if err != nil {
		return fmt.Errorf("load note for upload: %w", err)
	}

	filePath, err := e.storage.Resolve(ctx, n.AudioPath())
	if err != nil {
		return err
	}

	category := defaultCategory
	if n.FolderID() != "" {
		category = n.FolderID()
	}
	place := ""
	if loc := n.Location(); loc != nil {
		place = loc.CityName()
	}

	record, err := e.gateway.UploadRecord(ctx, output.UploadRecordRequest{
		FilePath: filePath,
		Name:     n.Title(),
		Datetime: n.CreatedAt(),
		Category: category,
		Place:    place,
	})
	if err != nil {
		return err
	}

	// re-read before the backfill so a concurrent edit is not clobbered
	current, err := e.notes.FindByLocalID(ctx, localID)
	if err != nil {
		return fmt.Errorf("reload note after upload: %w", err)
	}
	if err := current.AttachServerID(note.ServerID(strconv.FormatInt(record.ID, 10))); err != nil {
		return err
	}
	if _, err := e.notes.Upsert(ctx, current); err != nil {
		return fmt.Errorf("backfill server id: %w", err)
	}

	app.GetLogger().Info("note %s uploaded as record %d", localID, record.ID)
	return nil
}

func (e *Engine) fetchAndReconcile(ctx context.Context, filter Filter, pageNum int) (*output.RecordsPage, error) {
	page, err := e.gateway.FetchRecords(ctx, output.FetchRecordsRequest{
		Search:   filter.Search,
		FolderID: filter.remoteFolderID(),
		Page:     pageNum,
		PageSize: e.pageSize,
	})
	if err != nil {
		return nil, err
	}

	if err := e.reconcilePage(ctx, page.Items); err != nil {
		return nil, err
	}
	return page, nil
}

// reconcilePage applies one page of remote records inside one transaction.
// Records already known by server identity keep their LocalID and any local
// fields the server does not carry; unknown records mint a fresh LocalID.
func (e *Engine) reconcilePage(ctx context.Context, records []output.RemoteRecord) error {
	return e.tx.InTransaction(ctx, func(txCtx context.Context) error {
		for _, record := range records {
			merged, err := e.mergeRecord(txCtx, record)
			if err != nil {
				return err
			}
			if _, err := e.notes.Upsert(txCtx, merged); err != nil {
				return fmt.Errorf("reconcile record %d: %w", record.ID, err)
			}
		}
		return nil
	})
}

func (e *Engine) mergeRecord(ctx context.Context, record output.RemoteRecord) (*note.Note, error) {
	serverID := note.ServerID(strconv.FormatInt(record.ID, 10))

	existing, err := e.notes.FindByServerID(ctx, serverID)
	if err != nil && !errors.Is(err, note.ErrNotFound) {
		return nil, err
	}

	localID := note.NewLocalID()
	var local *note.Note
	if existing != nil {
		localID = existing.LocalID()
		local = existing
	}

	return note.ReconstructNote(
		localID,
		serverID,
		mergeFolder(record.FolderID, local),
		mergeTitle(record.Title, local),
		mergeString(record.Description, localTranscription(local)),
		mergeString(record.AudioURL, localAudioPath(local)),
		mergeTime(record.CreatedAt, record.Datetime, localCreatedAt(local)),
		mergeTime(record.UpdatedAt, record.Datetime, time.Now().UTC()),
		mergeDuration(record.Duration, local),
		mergeLocation(record.Latitude, record.Longitude, local),
	), nil
}

// merge helpers: the remote value wins when present, otherwise the local
// value survives the reconciliation

func mergeFolder(remote *int64, local *note.Note) string {
	if remote != nil {
		return strconv.FormatInt(*remote, 10)
	}
	if local != nil {
		return local.FolderID()
	}
	return ""
}

func mergeTitle(remote *string, local *note.Note) string {
	if remote != nil && *remote != "" {
		return *remote
	}
	if local != nil {
		return local.Title()
	}
	return "Untitled"
}

func mergeString(remote *string, local string) string {
	if remote != nil && *remote != "" {
		return *remote
	}
	return local
}

func mergeTime(primary, secondary *time.Time, fallback time.Time) time.Time {
	if primary != nil {
		return primary.UTC()
	}
	if secondary != nil {
		return secondary.UTC()
	}
	return fallback
}

func mergeDuration(remote *int64, local *note.Note) int {
	if remote != nil {
		return int(*remote)
	}
	if local != nil {
		return local.Duration()
	}
	return note.DurationUnknown
}

// mergeLocation keeps locally resolved place names: the server only carries
// coordinates, so names filled in by the geocoder must survive a re-sync
func mergeLocation(lat, lon *float64, local *note.Note) *note.Location {
	if lat == nil || lon == nil {
		if local != nil {
			return local.Location()
		}
		return nil
	}

	if local != nil {
		if loc := local.Location(); loc != nil && loc.Latitude() == *lat && loc.Longitude() == *lon {
			return loc
		}
	}
	loc := note.NewLocation(*lat, *lon)
	return &loc
}

func localTranscription(n *note.Note) string {
	if n == nil {
		return ""
	}
	return n.Transcription()
}

func localAudioPath(n *note.Note) string {
	if n == nil {
		return ""
	}
	return n.AudioPath()
}

func localCreatedAt(n *note.Note) time.Time {
	if n == nil {
		return time.Now().UTC()
	}
	return n.CreatedAt()
}

// lastOfCurrentView returns the final Note of the filtered view under the
// default sort, fetched as the first row of the inverted sort
func (e *Engine) lastOfCurrentView(ctx context.Context, filter Filter) (*note.Note, error) {
	notes, err := e.notes.Fetch(ctx, repository.FetchOptions{
		Query: filter.query(),
		Sort:  []repository.SortOrder{{Field: repository.SortByCreatedAt, Ascending: true}},
		Limit: 1,
	})
	if err != nil {
		return nil, err
	}
	if len(notes) == 0 {
		return nil, nil
	}
	return notes[0], nil
}

package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/transono/voicememo/internal/app"
	"github.com/transono/voicememo/internal/domain/model/note"
	"github.com/transono/voicememo/internal/domain/repository"
	"github.com/transono/voicememo/internal/infrastructure/transaction"
)

const noteColumns = `local_id, server_id, folder_id, title, transcription, audio_path,
       created_at, updated_at, duration, latitude, longitude, city_name, street_name`

// subscriberBuffer bounds how far a change listener may fall behind before
// diffs are dropped for it
const subscriberBuffer = 32

// NoteRepositoryImpl implements repository.NoteRepository with SQLite.
//
// Writes are serialized through writeMu so a Create/Upsert/Delete executes,
// reads back and publishes its change diff as one atomic step. Writes that
// run inside a managed transaction hand their diffs to the transaction's
// collector instead; the transaction manager publishes the merged diff after
// commit via TxCommitted.
type NoteRepositoryImpl struct {
	db      *sql.DB
	writeMu sync.Mutex

	subMu   sync.Mutex
	subs    map[int]chan repository.ChangeSet
	nextSub int
}

// NewNoteRepository creates a new SQLite-based Note repository
func NewNoteRepository(db *sql.DB) *NoteRepositoryImpl {
	return &NoteRepositoryImpl{
		db:   db,
		subs: make(map[int]chan repository.ChangeSet),
	}
}

// getDB returns the appropriate database executor from context
func (r *NoteRepositoryImpl) getDB(ctx context.Context) dbExecutor {
	if tx, ok := transaction.GetTxFromContext(ctx); ok {
		return tx
	}
	return r.db
}

// Create inserts a new record and returns the durably read-back Note
func (r *NoteRepositoryImpl) Create(ctx context.Context, n *note.Note) (*note.Note, error) {
	r.writeMu.Lock()
	defer r.writeMu.Unlock()

	query := `
		INSERT INTO notes (` + noteColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	db := r.getDB(ctx)
	if _, err := db.ExecContext(ctx, query, noteArgs(n)...); err != nil {
		return nil, note.NewStorageError("create", err)
	}

	saved, err := r.findByLocalID(ctx, db, n.LocalID())
	if err != nil {
		return nil, note.NewStorageError("create read-back", err)
	}

	r.report(ctx, repository.ChangeSet{Inserted: []note.LocalID{n.LocalID()}})
	return saved, nil
}

// Upsert overwrites the record with the same LocalID in place, or inserts it
func (r *NoteRepositoryImpl) Upsert(ctx context.Context, n *note.Note) (*note.Note, error) {
	r.writeMu.Lock()
	defer r.writeMu.Unlock()

	db := r.getDB(ctx)

	var exists int
	err := db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM notes WHERE local_id = ?", n.LocalID().String()).Scan(&exists)
	if err != nil {
		return nil, note.NewStorageError("upsert lookup", err)
	}

	var cs repository.ChangeSet
	if exists > 0 {
		query := `
			UPDATE notes
			SET server_id = ?, folder_id = ?, title = ?, transcription = ?,
			    audio_path = ?, created_at = ?, updated_at = ?, duration = ?,
			    latitude = ?, longitude = ?, city_name = ?, street_name = ?
			WHERE local_id = ?
		`
		args := append(noteArgs(n)[1:], n.LocalID().String())
		if _, err := db.ExecContext(ctx, query, args...); err != nil {
			return nil, note.NewStorageError("upsert update", err)
		}
		cs = repository.ChangeSet{Updated: []note.LocalID{n.LocalID()}}
	} else {
		query := `
			INSERT INTO notes (` + noteColumns + `)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`
		if _, err := db.ExecContext(ctx, query, noteArgs(n)...); err != nil {
			return nil, note.NewStorageError("upsert insert", err)
		}
		cs = repository.ChangeSet{Inserted: []note.LocalID{n.LocalID()}}
	}

	saved, err := r.findByLocalID(ctx, db, n.LocalID())
	if err != nil {
		return nil, note.NewStorageError("upsert read-back", err)
	}

	r.report(ctx, cs)
	return saved, nil
}

// Fetch returns Notes matching the options
func (r *NoteRepositoryImpl) Fetch(ctx context.Context, opts repository.FetchOptions) ([]*note.Note, error) {
	where, args := buildWhere(opts.Query)

	sort := opts.Sort
	if len(sort) == 0 {
		sort = repository.DefaultSort()
	}

	query := "SELECT " + noteColumns + " FROM notes" + where + orderByClause(sort)
	if opts.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", opts.Limit)
		if opts.Offset > 0 {
			query += fmt.Sprintf(" OFFSET %d", opts.Offset)
		}
	} else if opts.Offset > 0 {
		query += fmt.Sprintf(" LIMIT -1 OFFSET %d", opts.Offset)
	}

	db := r.getDB(ctx)
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, note.NewStorageError("fetch", err)
	}
	defer rows.Close()

	return scanNotes(rows)
}

// FindByLocalID returns the Note with the given local identity
func (r *NoteRepositoryImpl) FindByLocalID(ctx context.Context, id note.LocalID) (*note.Note, error) {
	return r.findByLocalID(ctx, r.getDB(ctx), id)
}

// FindByServerID returns the Note bound to the given remote identity
func (r *NoteRepositoryImpl) FindByServerID(ctx context.Context, id note.ServerID) (*note.Note, error) {
	db := r.getDB(ctx)
	row := db.QueryRowContext(ctx,
		"SELECT "+noteColumns+" FROM notes WHERE server_id = ?", id.String())
	return scanNote(row)
}

// Count returns the number of Notes matching the query
func (r *NoteRepositoryImpl) Count(ctx context.Context, q note.Query) (int, error) {
	where, args := buildWhere(q)

	var count int
	db := r.getDB(ctx)
	err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM notes"+where, args...).Scan(&count)
	if err != nil {
		return 0, note.NewStorageError("count", err)
	}
	return count, nil
}

// Delete removes one Note by local identity. Deleting a missing Note is a
// no-op and emits no diff.
func (r *NoteRepositoryImpl) Delete(ctx context.Context, id note.LocalID) error {
	r.writeMu.Lock()
	defer r.writeMu.Unlock()

	db := r.getDB(ctx)
	result, err := db.ExecContext(ctx, "DELETE FROM notes WHERE local_id = ?", id.String())
	if err != nil {
		return note.NewStorageError("delete", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return note.NewStorageError("delete", err)
	}
	if affected > 0 {
		r.report(ctx, repository.ChangeSet{Deleted: []note.LocalID{id}})
	}
	return nil
}

// DeleteAll removes every Note, or only those in folderID when non-nil
func (r *NoteRepositoryImpl) DeleteAll(ctx context.Context, folderID *string) error {
	r.writeMu.Lock()
	defer r.writeMu.Unlock()

	db := r.getDB(ctx)

	// Collect the doomed identifiers first so the diff is exact
	idQuery := "SELECT local_id FROM notes"
	var args []interface{}
	if folderID != nil {
		idQuery += " WHERE folder_id = ?"
		args = append(args, *folderID)
	}

	rows, err := db.QueryContext(ctx, idQuery, args...)
	if err != nil {
		return note.NewStorageError("delete all", err)
	}
	var doomed []note.LocalID
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return note.NewStorageError("delete all", err)
		}
		doomed = append(doomed, note.LocalID(id))
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return note.NewStorageError("delete all", err)
	}
	if len(doomed) == 0 {
		return nil
	}

	delQuery := "DELETE FROM notes"
	if folderID != nil {
		delQuery += " WHERE folder_id = ?"
	}
	if _, err := db.ExecContext(ctx, delQuery, args...); err != nil {
		return note.NewStorageError("delete all", err)
	}

	r.report(ctx, repository.ChangeSet{Deleted: doomed})
	return nil
}

// Subscribe registers a change listener
func (r *NoteRepositoryImpl) Subscribe() (<-chan repository.ChangeSet, func()) {
	r.subMu.Lock()
	defer r.subMu.Unlock()

	id := r.nextSub
	r.nextSub++
	ch := make(chan repository.ChangeSet, subscriberBuffer)
	r.subs[id] = ch

	cancel := func() {
		r.subMu.Lock()
		defer r.subMu.Unlock()
		if sub, ok := r.subs[id]; ok {
			delete(r.subs, id)
			close(sub)
		}
	}
	return ch, cancel
}

// TxCommitted publishes the merged diff of a committed transaction.
// Implements transaction.CommitListener.
func (r *NoteRepositoryImpl) TxCommitted(cs repository.ChangeSet) {
	r.publish(cs)
}

// report routes a write's diff: inside a managed transaction it is collected
// for publication after commit, otherwise it is published immediately
func (r *NoteRepositoryImpl) report(ctx context.Context, cs repository.ChangeSet) {
	if collector, ok := transaction.GetCollectorFromContext(ctx); ok {
		collector.Add(cs)
		return
	}
	r.publish(cs)
}

func (r *NoteRepositoryImpl) publish(cs repository.ChangeSet) {
	r.subMu.Lock()
	defer r.subMu.Unlock()

	for _, ch := range r.subs {
		select {
		case ch <- cs:
		default:
			app.GetLogger().Warn("note change subscriber too slow, dropping diff")
		}
	}
}

func (r *NoteRepositoryImpl) findByLocalID(ctx context.Context, db dbExecutor, id note.LocalID) (*note.Note, error) {
	row := db.QueryRowContext(ctx,
		"SELECT "+noteColumns+" FROM notes WHERE local_id = ?", id.String())
	return scanNote(row)
}

// noteArgs flattens a Note into the column order of noteColumns
func noteArgs(n *note.Note) []interface{} {
	var serverID interface{}
	if !n.ServerID().IsZero() {
		serverID = n.ServerID().String()
	}

	var latitude, longitude interface{}
	cityName, streetName := "", ""
	if loc := n.Location(); loc != nil {
		latitude = loc.Latitude()
		longitude = loc.Longitude()
		cityName = loc.CityName()
		streetName = loc.StreetName()
	}

	return []interface{}{
		n.LocalID().String(), serverID, n.FolderID(), n.Title(), n.Transcription(),
		n.AudioPath(), n.CreatedAt().UTC(), n.UpdatedAt().UTC(), n.Duration(),
		latitude, longitude, cityName, streetName,
	}
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanNoteFields(row rowScanner) (*note.Note, error) {
	var (
		localID, folderID, title, transcription, audioPath string
		serverID                                           sql.NullString
		createdAt, updatedAt                               time.Time
		duration                                           int
		latitude, longitude                                sql.NullFloat64
		cityName, streetName                               string
	)

	err := row.Scan(
		&localID, &serverID, &folderID, &title, &transcription, &audioPath,
		&createdAt, &updatedAt, &duration, &latitude, &longitude,
		&cityName, &streetName,
	)
	if err != nil {
		return nil, err
	}

	var loc *note.Location
	if latitude.Valid && longitude.Valid {
		l := note.ReconstructLocation(latitude.Float64, longitude.Float64, cityName, streetName)
		loc = &l
	}

	return note.ReconstructNote(
		note.LocalID(localID),
		note.ServerID(serverID.String),
		folderID, title, transcription, audioPath,
		createdAt.UTC(), updatedAt.UTC(), duration, loc,
	), nil
}

func scanNote(row *sql.Row) (*note.Note, error) {
	n, err := scanNoteFields(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, note.ErrNotFound
	}
	if err != nil {
		return nil, note.NewStorageError("scan note", err)
	}
	return n, nil
}

func scanNotes(rows *sql.Rows) ([]*note.Note, error) {
	var notes []*note.Note
	for rows.Next() {
		n, err := scanNoteFields(rows)
		if err != nil {
			return nil, note.NewStorageError("scan note", err)
		}
		notes = append(notes, n)
	}
	if err := rows.Err(); err != nil {
		return nil, note.NewStorageError("scan notes", err)
	}
	return notes, nil
}

// buildWhere translates a Query into a WHERE clause. The search and place
// predicates use LIKE with a normalized needle. SQLite's LIKE folds case for
// ASCII only, so non-ASCII text matches case-sensitively here while
// note.Query.Matches folds the full range; callers needing exact agreement
// on non-ASCII input re-check fetched rows with Matches.
func buildWhere(q note.Query) (string, []interface{}) {
	var conds []string
	var args []interface{}

	if q.FolderID != nil {
		conds = append(conds, "folder_id = ?")
		args = append(args, *q.FolderID)
	}
	if q.ServerID != nil {
		conds = append(conds, "server_id = ?")
		args = append(args, q.ServerID.String())
	}
	if q.HasLocation != nil {
		if *q.HasLocation {
			conds = append(conds, "latitude IS NOT NULL AND longitude IS NOT NULL")
		} else {
			conds = append(conds, "(latitude IS NULL OR longitude IS NULL)")
		}
	}
	if q.CityName != "" {
		conds = append(conds, "city_name LIKE ? ESCAPE '\\'")
		args = append(args, likePattern(q.CityName))
	}
	if q.StreetName != "" {
		conds = append(conds, "street_name LIKE ? ESCAPE '\\'")
		args = append(args, likePattern(q.StreetName))
	}
	if q.Search != "" {
		conds = append(conds, "(title LIKE ? ESCAPE '\\' OR transcription LIKE ? ESCAPE '\\')")
		p := likePattern(q.Search)
		args = append(args, p, p)
	}

	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func likePattern(term string) string {
	escaped := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(note.NormalizeTerm(term))
	return "%" + escaped + "%"
}

func orderByClause(sort []repository.SortOrder) string {
	var parts []string
	for _, s := range sort {
		dir := "DESC"
		if s.Ascending {
			dir = "ASC"
		}
		switch s.Field {
		case repository.SortByCreatedAt, repository.SortByUpdatedAt, repository.SortByTitle:
			parts = append(parts, string(s.Field)+" "+dir)
		}
	}
	if len(parts) == 0 {
		return ""
	}
	return " ORDER BY " + strings.Join(parts, ", ")
}

package repository

import (
	"context"

	"github.com/transono/voicememo/internal/domain/model/note"
)

// SortField selects the column a fetch is ordered by
type SortField string

const (
	SortByCreatedAt SortField = "created_at"
	SortByUpdatedAt SortField = "updated_at"
	SortByTitle     SortField = "title"
)

// SortOrder is a single ordering instruction
type SortOrder struct {
	Field     SortField
	Ascending bool
}

// FetchOptions controls a Note fetch. The zero value means: no filter,
// createdAt descending, unbounded.
type FetchOptions struct {
	Query  note.Query
	Sort   []SortOrder
	Limit  int // 0 means unbounded
	Offset int
}

// DefaultSort is createdAt descending, newest memo first
func DefaultSort() []SortOrder {
	return []SortOrder{{Field: SortByCreatedAt, Ascending: false}}
}

// ChangeSet is the exact diff emitted after one atomic write: which local
// identifiers were inserted, updated and deleted. Consumers apply it
// incrementally instead of reloading.
type ChangeSet struct {
	Inserted []note.LocalID
	Updated  []note.LocalID
	Deleted  []note.LocalID
}

// IsEmpty reports whether the write changed nothing
func (c ChangeSet) IsEmpty() bool {
	return len(c.Inserted) == 0 && len(c.Updated) == 0 && len(c.Deleted) == 0
}

// NoteRepository is the durable store of Notes.
//
// All writes go through a single logical writer: concurrent Create/Upsert/
// Delete calls never interleave partial mutations, and every write publishes
// one ChangeSet to subscribers after it commits.
type NoteRepository interface {
	// Create inserts a new record and returns the durably read-back Note.
	// Fails with a StorageError on constraint violation.
	Create(ctx context.Context, n *note.Note) (*note.Note, error)

	// Upsert overwrites the record with the same LocalID in place, or
	// inserts it if absent. Returns the read-back Note.
	Upsert(ctx context.Context, n *note.Note) (*note.Note, error)

	// Fetch returns Notes matching the options. Default sort is createdAt
	// descending; Limit 0 means unbounded.
	Fetch(ctx context.Context, opts FetchOptions) ([]*note.Note, error)

	// FindByLocalID returns the Note with the given local identity,
	// or note.ErrNotFound
	FindByLocalID(ctx context.Context, id note.LocalID) (*note.Note, error)

	// FindByServerID returns the Note bound to the given remote identity,
	// or note.ErrNotFound
	FindByServerID(ctx context.Context, id note.ServerID) (*note.Note, error)

	// Count returns the number of Notes matching the query
	Count(ctx context.Context, q note.Query) (int, error)

	// Delete removes one Note by local identity
	Delete(ctx context.Context, id note.LocalID) error

	// DeleteAll removes every Note, or only those in folderID when non-nil
	DeleteAll(ctx context.Context, folderID *string) error

	// Subscribe registers a change listener. The returned cancel function
	// must be called to release the subscription; after it returns the
	// channel is closed and no further diffs are delivered.
	Subscribe() (<-chan ChangeSet, func())
}

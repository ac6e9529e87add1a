package transaction

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	"github.com/transono/voicememo/internal/domain/model/note"
	"github.com/transono/voicememo/internal/domain/repository"
)

// CommitListener receives the merged change diff of a committed transaction
type CommitListener interface {
	TxCommitted(cs repository.ChangeSet)
}

// SQLiteTransactionManager manages SQLite transactions.
//
// Repository writes that run inside a transaction do not publish their change
// diffs directly; they add them to a collector carried in the transaction
// context. On commit the manager merges the collected diffs and hands the
// result to the listener, so observers never see changes from a transaction
// that later rolled back.
type SQLiteTransactionManager struct {
	db       *sql.DB
	listener CommitListener
}

// NewSQLiteTransactionManager creates a new SQLite transaction manager
func NewSQLiteTransactionManager(db *sql.DB) *SQLiteTransactionManager {
	return &SQLiteTransactionManager{db: db}
}

// SetCommitListener registers the listener notified after each commit
func (m *SQLiteTransactionManager) SetCommitListener(l CommitListener) {
	m.listener = l
}

// InTransaction executes a function within a transaction
func (m *SQLiteTransactionManager) InTransaction(ctx context.Context, fn func(txCtx context.Context) error) error {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction failed: %w", err)
	}

	collector := &ChangeCollector{}
	txCtx := context.WithValue(ctx, txKey{}, tx)
	txCtx = context.WithValue(txCtx, collectorKey{}, collector)

	if err := fn(txCtx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("rollback failed: %v (original error: %w)", rbErr, err)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit failed: %w", err)
	}

	if m.listener != nil {
		if merged := collector.Merged(); !merged.IsEmpty() {
			m.listener.TxCommitted(merged)
		}
	}
	return nil
}

// txKey is used as a key for storing transaction in context
type txKey struct{}

// collectorKey is used as a key for storing the change collector in context
type collectorKey struct{}

// GetTxFromContext retrieves a transaction from context
// This is a helper function for repositories to use
func GetTxFromContext(ctx context.Context) (*sql.Tx, bool) {
	tx, ok := ctx.Value(txKey{}).(*sql.Tx)
	return tx, ok
}

// GetCollectorFromContext retrieves the change collector from context
func GetCollectorFromContext(ctx context.Context) (*ChangeCollector, bool) {
	c, ok := ctx.Value(collectorKey{}).(*ChangeCollector)
	return c, ok
}

// ChangeCollector accumulates change diffs produced inside one transaction
type ChangeCollector struct {
	mu   sync.Mutex
	sets []repository.ChangeSet
}

// Add records one write's diff
func (c *ChangeCollector) Add(cs repository.ChangeSet) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sets = append(c.sets, cs)
}

// Merged flattens the recorded diffs into a single ChangeSet. An identifier
// inserted and later updated in the same transaction is reported as inserted
// only.
func (c *ChangeCollector) Merged() repository.ChangeSet {
	c.mu.Lock()
	defer c.mu.Unlock()

	inserted := map[string]bool{}
	updated := map[string]bool{}
	deleted := map[string]bool{}

	for _, cs := range c.sets {
		for _, id := range cs.Inserted {
			inserted[id.String()] = true
		}
		for _, id := range cs.Updated {
			if !inserted[id.String()] {
				updated[id.String()] = true
			}
		}
		for _, id := range cs.Deleted {
			delete(inserted, id.String())
			delete(updated, id.String())
			deleted[id.String()] = true
		}
	}

	var merged repository.ChangeSet
	for id := range inserted {
		merged.Inserted = append(merged.Inserted, note.LocalID(id))
	}
	for id := range updated {
		merged.Updated = append(merged.Updated, note.LocalID(id))
	}
	for id := range deleted {
		merged.Deleted = append(merged.Deleted, note.LocalID(id))
	}
	return merged
}

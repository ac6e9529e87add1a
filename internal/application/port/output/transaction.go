package output

import (
	"context"
)

// TransactionManager scopes multi-statement store work to one transaction.
// Page reconciliation runs through it so a half-fetched page is never visible.
type TransactionManager interface {
	// InTransaction executes fn within a transaction. If fn returns an
	// error the transaction is rolled back and the error is returned.
	InTransaction(ctx context.Context, fn func(txCtx context.Context) error) error
}

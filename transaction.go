package gormasync

import (
	"context"

	"gorm.io/gorm"
)

// Transaction is Run with transaction demarcation layered inside the
// dispatched unit: begin on the checked-out connection, invoke fn, commit if
// it succeeded, roll back if it failed or panicked. Begin, the statements,
// and commit or rollback all execute on the same connection within the one
// unit - never split across dispatch boundaries. Nested transactions are
// GORM's concern (savepoints), not this package's.
func (d *Dispatcher) Transaction(ctx context.Context, fn func(tx *gorm.DB) error) error {
	_, err := TransactionResult(ctx, d, func(tx *gorm.DB) (struct{}, error) {
		return struct{}{}, fn(tx)
	})
	return err
}

// TransactionResult is Transaction for operations that produce a value.
func TransactionResult[R any](ctx context.Context, d *Dispatcher, fn func(tx *gorm.DB) (R, error)) (R, error) {
	v, err := d.dispatch(ctx, func(conn *gorm.DB) (any, error) {
		var out R
		err := conn.Transaction(func(tx *gorm.DB) error {
			var opErr error
			out, opErr = fn(tx)
			return opErr
		})
		return out, err
	})
	var zero R
	if err != nil {
		return zero, err
	}
	return v.(R), nil
}

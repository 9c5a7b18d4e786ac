package gormasync

import (
	"context"

	"gorm.io/gorm"
)

// Query is a detached query value: a function that composes clauses - and
// for Execute, the finishing statement - onto the live session it is applied
// to. This is GORM's scope idiom; a Query captures everything it needs and
// is consumed by exactly one dispatched operation.
type Query func(tx *gorm.DB) *gorm.DB

func (q Query) apply(tx *gorm.DB) *gorm.DB {
	if q == nil {
		return tx
	}
	return q(tx)
}

// Execute dispatches a query that modifies rows (insert, update, delete) and
// returns the number of rows affected. The Query must include its finishing
// statement:
//
//	n, err := gormasync.Execute(ctx, d, func(tx *gorm.DB) *gorm.DB {
//	    return tx.Where("expired = ?", true).Delete(&Session{})
//	})
func Execute(ctx context.Context, d *Dispatcher, q Query) (int64, error) {
	return RunResult(ctx, d, func(conn *gorm.DB) (int64, error) {
		res := q.apply(conn)
		return res.RowsAffected, res.Error
	})
}

// Load dispatches a query and returns every matching row. No rows is a
// successful empty slice, not an error.
func Load[T any](ctx context.Context, d *Dispatcher, q Query) ([]T, error) {
	return RunResult(ctx, d, func(conn *gorm.DB) ([]T, error) {
		var out []T
		err := q.apply(conn).Find(&out).Error
		return out, err
	})
}

// GetResult dispatches a query and returns one matching row without imposing
// an ordering. A query matching no row fails with an operation-origin
// not-found error; pair with Optional to treat that as an absent value.
func GetResult[T any](ctx context.Context, d *Dispatcher, q Query) (T, error) {
	return RunResult(ctx, d, func(conn *gorm.DB) (T, error) {
		var out T
		err := q.apply(conn).Take(&out).Error
		return out, err
	})
}

// GetResults is Load under the name matching GetResult.
func GetResults[T any](ctx context.Context, d *Dispatcher, q Query) ([]T, error) {
	return Load[T](ctx, d, q)
}

// First dispatches a query limited to one row in primary-key order. Like
// GetResult, no match is an operation-origin not-found error.
func First[T any](ctx context.Context, d *Dispatcher, q Query) (T, error) {
	return RunResult(ctx, d, func(conn *gorm.DB) (T, error) {
		var out T
		err := q.apply(conn).First(&out).Error
		return out, err
	})
}

// SaveChanges persists record and returns the freshly refetched row, both
// within one dispatched unit on one connection. The refetch is by primary
// key, so database-computed columns come back populated.
func SaveChanges[T any](ctx context.Context, d *Dispatcher, record *T) (T, error) {
	return RunResult(ctx, d, func(conn *gorm.DB) (T, error) {
		var zero T
		if err := conn.Save(record).Error; err != nil {
			return zero, err
		}
		// A dest whose primary key is set queries by that key.
		fresh := *record
		if err := conn.First(&fresh).Error; err != nil {
			return zero, err
		}
		return fresh, nil
	})
}

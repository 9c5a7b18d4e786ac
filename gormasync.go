// Package gormasync dispatches blocking GORM work so it never stalls the
// goroutines that are waiting on it.
//
// A Dispatcher wraps a shared *gorm.DB handle. Every operation checks one
// connection out of the underlying database/sql pool, pins a GORM session to
// it, runs the supplied closure against that session, and returns the
// connection to the pool when the closure's scope ends - success, failure, or
// panic. Failures are split into exactly two origins: CheckoutError when the
// pool could not produce a connection, and OperationError when the query
// itself failed.
//
// Basic usage:
//
//	db, _ := gorm.Open(sqlite.Open("app.db"), &gorm.Config{})
//	d := gormasync.New(db)
//	defer d.Close()
//
//	// Run arbitrary work against a checked-out connection.
//	err := d.Run(ctx, func(conn *gorm.DB) error {
//	    return conn.Create(&user).Error
//	})
//
//	// Fluent operations consume a detached query value.
//	n, err := gormasync.Execute(ctx, d, func(tx *gorm.DB) *gorm.DB {
//	    return tx.Where("done = ?", true).Delete(&Task{})
//	})
//
//	// "No row matched" as an empty option instead of an error.
//	user, err := gormasync.Optional(gormasync.GetResult[User](ctx, d, byEmail(addr)))
//
// The dispatch strategy is fixed when the Dispatcher is built: the default
// off-thread strategy hands each unit of work to a dedicated set of worker
// goroutines and suspends the caller until it completes, while
// WithInPlaceDispatch runs the unit synchronously on the calling goroutine.
// See New for the trade-offs.
package gormasync

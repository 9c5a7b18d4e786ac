package gormasync

import (
	"context"
	"log/slog"
	"sync/atomic"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Dispatcher routes blocking database work through a connection checked out
// of the pool behind a shared *gorm.DB handle. The handle may be shared by
// any number of dispatchers and callers; the pool synchronizes itself.
//
// The dispatch strategy is chosen once, at construction. The default
// off-thread strategy submits each unit (checkout plus operation) to a
// dedicated set of worker goroutines and suspends the caller until it
// completes; closures must then be self-contained, because a unit whose
// caller gave up waiting keeps running. WithInPlaceDispatch instead executes
// the unit synchronously on the calling goroutine.
type Dispatcher struct {
	db       *gorm.DB
	strategy strategy
	config   Config
	logger   *slog.Logger
	id       string

	dispatched       atomic.Int64
	succeeded        atomic.Int64
	failed           atomic.Int64
	checkoutFailures atomic.Int64
	inFlight         atomic.Int64
}

// New creates a Dispatcher over db. The zero option set uses the off-thread
// strategy with DefaultWorkers workers and DefaultCheckoutTimeout.
func New(db *gorm.DB, opts ...Option) *Dispatcher {
	config := Config{
		Workers:         DefaultWorkers,
		CheckoutTimeout: DefaultCheckoutTimeout,
		Logger:          slog.Default(),
	}
	for _, opt := range opts {
		opt.Apply(&config)
	}
	if config.QueueDepth == 0 {
		config.QueueDepth = config.Workers
	}

	d := &Dispatcher{
		db:     db,
		config: config,
		id:     uuid.New().String(),
	}
	d.logger = config.Logger.With("dispatcher", d.id[:8])

	if config.InPlace {
		d.strategy = inPlace{}
	} else {
		d.strategy = newOffThread(config.Workers, config.QueueDepth, d.logger)
	}
	return d
}

// Close stops the off-thread workers. In-flight units finish; queued units
// fail with ErrDispatcherClosed, as do later dispatch calls. Close must not
// be called concurrently with dispatch operations still being issued.
func (d *Dispatcher) Close() {
	d.strategy.close()
}

// Run checks a connection out of the pool, executes fn against a session
// pinned to it, and returns the connection when fn's scope ends - on every
// exit path. A pool failure surfaces as a CheckoutError and fn is never
// invoked; a failure returned by fn surfaces as an OperationError.
func (d *Dispatcher) Run(ctx context.Context, fn func(conn *gorm.DB) error) error {
	_, err := RunResult(ctx, d, func(conn *gorm.DB) (struct{}, error) {
		return struct{}{}, fn(conn)
	})
	return err
}

// RunResult is Run for operations that produce a value.
func RunResult[R any](ctx context.Context, d *Dispatcher, fn func(conn *gorm.DB) (R, error)) (R, error) {
	v, err := d.dispatch(ctx, func(conn *gorm.DB) (any, error) {
		return fn(conn)
	})
	var zero R
	if err != nil {
		return zero, err
	}
	return v.(R), nil
}

// BatchExecute runs a raw SQL batch against a checked-out connection through
// the same dispatch path as Run.
func (d *Dispatcher) BatchExecute(ctx context.Context, query string) error {
	return d.Run(ctx, func(conn *gorm.DB) error {
		return conn.Exec(query).Error
	})
}

// dispatch hands checkout-plus-operation to the strategy as one unit and
// keeps the counters.
func (d *Dispatcher) dispatch(ctx context.Context, fn func(conn *gorm.DB) (any, error)) (any, error) {
	d.dispatched.Add(1)

	// The unit must complete and release its connection even if the caller
	// stops waiting, so it runs under a detached context. Only the checkout
	// step is bounded, by the configured timeout.
	execCtx := context.WithoutCancel(ctx)

	v, err := d.strategy.dispatch(ctx, func() (any, error) {
		d.inFlight.Add(1)
		defer d.inFlight.Add(-1)

		var out any
		err := d.withConn(execCtx, func(conn *gorm.DB) error {
			var opErr error
			out, opErr = fn(conn)
			return opErr
		})
		return out, err
	})

	switch {
	case err == nil:
		d.succeeded.Add(1)
	case IsCheckout(err):
		d.checkoutFailures.Add(1)
		d.failed.Add(1)
		d.logger.Debug("connection checkout failed", "error", err)
	default:
		d.failed.Add(1)
	}
	return v, err
}

// withConn checks one connection out of the pool, pins a fresh GORM session
// to it, runs fn against the session, and returns the connection to the pool
// when fn's scope ends regardless of how it ends.
func (d *Dispatcher) withConn(ctx context.Context, fn func(conn *gorm.DB) error) error {
	sqlDB, err := d.db.DB()
	if err != nil {
		return checkout(err)
	}

	acquireCtx := ctx
	if d.config.CheckoutTimeout > 0 {
		var cancel context.CancelFunc
		acquireCtx, cancel = context.WithTimeout(ctx, d.config.CheckoutTimeout)
		defer cancel()
	}
	conn, err := sqlDB.Conn(acquireCtx)
	if err != nil {
		return checkout(err)
	}
	defer conn.Close()

	// Pin a session to the checked-out connection. *sql.Conn satisfies
	// gorm.ConnPool, so every statement on the session - transactions
	// included - hits this one connection.
	sess := d.db.Session(&gorm.Session{Context: ctx, NewDB: true})
	sess.Statement.ConnPool = conn

	if err := fn(sess); err != nil {
		return operation(err)
	}
	return nil
}

// Stats is a point-in-time snapshot of dispatcher counters.
type Stats struct {
	Dispatched       int64
	Succeeded        int64
	Failed           int64
	CheckoutFailures int64
	InFlight         int64
}

// Stats returns current counter values.
func (d *Dispatcher) Stats() Stats {
	return Stats{
		Dispatched:       d.dispatched.Load(),
		Succeeded:        d.succeeded.Load(),
		Failed:           d.failed.Load(),
		CheckoutFailures: d.checkoutFailures.Load(),
		InFlight:         d.inFlight.Load(),
	}
}

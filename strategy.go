package gormasync

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
)

// strategy decides where a dispatched unit executes relative to the calling
// goroutine. It is fixed when the Dispatcher is built, never per call.
type strategy interface {
	dispatch(ctx context.Context, run func() (any, error)) (any, error)
	close()
}

// unit is one self-contained piece of blocking work: connection checkout
// plus the operation against the checked-out connection.
type unit struct {
	run  func() (any, error)
	done chan outcome
}

type outcome struct {
	val      any
	err      error
	panicVal any
	stack    []byte
}

// execute runs the unit, capturing a panic instead of unwinding the worker.
func (u *unit) execute() (out outcome) {
	defer func() {
		if r := recover(); r != nil {
			out.panicVal = r
			out.stack = debug.Stack()
		}
	}()
	out.val, out.err = u.run()
	return out
}

// offThread hands units to a fixed set of dedicated worker goroutines and
// suspends the caller until the unit completes. Units must be self-contained:
// they may outlive the dispatching call when its context is cancelled.
type offThread struct {
	tasks  chan *unit
	quit   chan struct{}
	wg     sync.WaitGroup
	once   sync.Once
	logger *slog.Logger
}

func newOffThread(workers, depth int, logger *slog.Logger) *offThread {
	s := &offThread{
		tasks:  make(chan *unit, depth),
		quit:   make(chan struct{}),
		logger: logger,
	}
	for i := 0; i < workers; i++ {
		s.wg.Add(1)
		go s.workerLoop()
	}
	return s
}

func (s *offThread) workerLoop() {
	defer s.wg.Done()
	for {
		select {
		case u := <-s.tasks:
			u.done <- u.execute()
		case <-s.quit:
			return
		}
	}
}

func (s *offThread) dispatch(ctx context.Context, run func() (any, error)) (any, error) {
	u := &unit{run: run, done: make(chan outcome, 1)}

	// Checked first so a closed dispatcher rejects the unit even when the
	// task buffer could still accept it.
	select {
	case <-s.quit:
		return nil, ErrDispatcherClosed
	default:
	}

	select {
	case s.tasks <- u:
	case <-s.quit:
		return nil, ErrDispatcherClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	select {
	case out := <-u.done:
		if out.panicVal != nil {
			// A panic in a dispatched unit is a programming error, not a
			// domain condition. Log it with the worker stack, then re-raise
			// in the caller.
			s.logger.Error("dispatched operation panicked",
				"panic", out.panicVal,
				"stack", string(out.stack),
			)
			panic(fmt.Sprintf("gormasync: dispatched operation panicked: %v", out.panicVal))
		}
		return out.val, out.err
	case <-ctx.Done():
		// The submitted unit keeps running and releases its connection on
		// its own; only the wait is abandoned.
		return nil, ctx.Err()
	}
}

func (s *offThread) close() {
	s.once.Do(func() {
		close(s.quit)
		s.wg.Wait()
		// Fail units that were queued but never picked up so their callers
		// do not wait forever.
		for {
			select {
			case u := <-s.tasks:
				u.done <- outcome{err: ErrDispatcherClosed}
			default:
				return
			}
		}
	})
}

// inPlace executes the unit synchronously on the calling goroutine. The Go
// runtime provisions replacement OS threads for ones parked in blocking
// calls, so no explicit scheduler notification is needed. There is no
// suspension point and no mid-flight cancellation: once invoked, the unit
// runs to completion. Panics propagate to the caller unaltered.
type inPlace struct{}

func (inPlace) dispatch(_ context.Context, run func() (any, error)) (any, error) {
	return run()
}

func (inPlace) close() {}

package gormasync

import (
	"log/slog"
	"time"
)

// Limits for dispatcher configuration.
const (
	MaxWorkers    = 1024
	MaxQueueDepth = 4096
)

// Default configuration values.
var (
	DefaultWorkers = 8
	// DefaultCheckoutTimeout bounds how long a dispatched unit waits for a
	// connection from the pool before failing with a CheckoutError.
	DefaultCheckoutTimeout = 30 * time.Second
)

// Option configures a Dispatcher.
type Option interface {
	Apply(*Config)
}

type optionFunc func(*Config)

func (f optionFunc) Apply(c *Config) { f(c) }

// Config holds dispatcher configuration.
type Config struct {
	Workers         int
	QueueDepth      int
	InPlace         bool
	CheckoutTimeout time.Duration
	Logger          *slog.Logger
}

// Workers sets the number of dedicated worker goroutines used by the
// off-thread strategy. Ignored under WithInPlaceDispatch.
func Workers(n int) Option {
	return optionFunc(func(c *Config) {
		c.Workers = clamp(n, 1, MaxWorkers)
	})
}

// QueueDepth sets how many submitted units may wait for a worker before
// dispatch blocks. Ignored under WithInPlaceDispatch.
func QueueDepth(n int) Option {
	return optionFunc(func(c *Config) {
		c.QueueDepth = clamp(n, 0, MaxQueueDepth)
	})
}

// WithInPlaceDispatch selects the in-place strategy: units execute
// synchronously on the calling goroutine instead of being handed to a worker.
// The call returns only once the blocking work is done and offers no
// mid-flight cancellation, but closures may freely capture the caller's
// frame since no goroutine boundary is crossed.
func WithInPlaceDispatch() Option {
	return optionFunc(func(c *Config) {
		c.InPlace = true
	})
}

// WithCheckoutTimeout overrides DefaultCheckoutTimeout. Zero or negative
// disables the bound and checkout waits as long as the pool makes it wait.
func WithCheckoutTimeout(d time.Duration) Option {
	return optionFunc(func(c *Config) {
		c.CheckoutTimeout = d
	})
}

// WithLogger sets the logger used by the dispatcher.
func WithLogger(l *slog.Logger) Option {
	return optionFunc(func(c *Config) {
		if l != nil {
			c.Logger = l
		}
	})
}

func clamp(n, lo, hi int) int {
	if n < lo {
		return lo
	}
	if n > hi {
		return hi
	}
	return n
}

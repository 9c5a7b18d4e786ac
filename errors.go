package gormasync

import (
	"errors"
	"fmt"

	"gorm.io/gorm"
)

// ErrDispatcherClosed is returned by dispatch operations after Close.
var ErrDispatcherClosed = errors.New("gormasync: dispatcher closed")

// CheckoutError indicates the connection pool could not produce a connection:
// the pool is exhausted, misconfigured, or acquisition timed out. The
// dispatched operation was never invoked.
type CheckoutError struct {
	Err error
}

func (e *CheckoutError) Error() string {
	return fmt.Sprintf("gormasync: checkout: %v", e.Err)
}

func (e *CheckoutError) Unwrap() error {
	return e.Err
}

// OperationError indicates the dispatched operation itself failed after a
// connection was successfully checked out.
type OperationError struct {
	Err error
}

func (e *OperationError) Error() string {
	return fmt.Sprintf("gormasync: operation: %v", e.Err)
}

func (e *OperationError) Unwrap() error {
	return e.Err
}

// checkout tags err with checkout origin. Already-tagged errors pass through
// so every surfaced failure carries exactly one origin.
func checkout(err error) error {
	if isTagged(err) {
		return err
	}
	return &CheckoutError{Err: err}
}

// operation tags err with operation origin, with the same pass-through rule.
func operation(err error) error {
	if isTagged(err) {
		return err
	}
	return &OperationError{Err: err}
}

func isTagged(err error) bool {
	var ce *CheckoutError
	var oe *OperationError
	return errors.As(err, &ce) || errors.As(err, &oe)
}

// IsCheckout reports whether err originated from connection checkout.
func IsCheckout(err error) bool {
	var ce *CheckoutError
	return errors.As(err, &ce)
}

// IsOperation reports whether err originated from the dispatched operation.
func IsOperation(err error) bool {
	var oe *OperationError
	return errors.As(err, &oe)
}

// IsNotFound reports whether err is an operation failure caused by a query
// that matched no row.
func IsNotFound(err error) bool {
	return IsOperation(err) && errors.Is(err, gorm.ErrRecordNotFound)
}

// Optional converts a "no row matched" operation failure into an absent
// value. Success becomes (&v, nil), operation-origin not-found becomes
// (nil, nil), and every other error - checkout errors included - propagates
// unchanged.
func Optional[T any](v T, err error) (*T, error) {
	if err == nil {
		return &v, nil
	}
	if IsNotFound(err) {
		return nil, nil
	}
	return nil, err
}

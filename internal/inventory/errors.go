package inventory

import (
	"errors"
	"fmt"

	"github.com/fekuna/omnipos-inventory-service/internal/model"
)

var (
	ErrInvalidReason     = errors.New("invalid movement reason")
	ErrInvalidQuantity   = errors.New("invalid quantity")
	ErrInvalidOwner      = model.ErrInvalidOwner
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrInvalidRelease    = errors.New("release exceeds reserved quantity")
	ErrNotFound          = errors.New("inventory record not found")
	ErrLockTimeout       = errors.New("timed out waiting for inventory lock")
	ErrStorageFailure    = errors.New("inventory storage failure")
)

// StockError carries the operation and owner a ledger failure belongs to.
// The underlying sentinel is reachable through errors.Is.
type StockError struct {
	Op        string
	Owner     model.OwnerRef
	Requested int64
	Available int64
	Err       error
}

func (e *StockError) Error() string {
	msg := fmt.Sprintf("inventory %s %s: %v", e.Op, e.Owner, e.Err)
	switch {
	case errors.Is(e.Err, ErrInsufficientStock):
		msg += fmt.Sprintf(" (requested %d, available %d)", e.Requested, e.Available)
	case errors.Is(e.Err, ErrInvalidRelease):
		msg += fmt.Sprintf(" (requested %d, reserved %d)", e.Requested, e.Available)
	}
	return msg
}

func (e *StockError) Unwrap() error {
	return e.Err
}

// IsRetryable reports whether err came from contention or storage rather
// than from the request itself.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrLockTimeout) || errors.Is(err, ErrStorageFailure)
}

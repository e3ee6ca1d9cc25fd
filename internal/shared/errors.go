package shared

import "errors"

var (
	// ErrValidation indicates rejected input, checked before any transaction opens.
	ErrValidation = errors.New("validation failed")
	// ErrNotFound indicates a referenced record is absent.
	ErrNotFound = errors.New("not found")
	// ErrConflict indicates an optimistic transaction lost a race.
	ErrConflict = errors.New("transaction conflict")
	// ErrTransactionFailed indicates the conflict retry bound was exhausted.
	ErrTransactionFailed = errors.New("transaction failed")
	// ErrPermission indicates the actor lacks the required role.
	ErrPermission = errors.New("permission denied")
	// ErrInsufficientStock indicates a decrement larger than the current count.
	ErrInsufficientStock = errors.New("insufficient stock")
)

package domain

import (
	"errors"
	"fmt"
)

// Error taxonomy shared by every service. Service packages declare their own
// sentinels wrapping one of these so callers can match either the specific
// error or its category with errors.Is.
var (
	ErrNotFound           = errors.New("not found")
	ErrInvalidInput       = errors.New("invalid input")
	ErrNoEligibleContacts = errors.New("no eligible contacts")
	ErrQuotaExceeded      = errors.New("daily quota exceeded")
	ErrProvider           = errors.New("mail provider error")
)

// StorageError wraps a persistence failure with the operation that failed.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage: %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// InvalidInputf builds an error in the ErrInvalidInput category.
func InvalidInputf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}

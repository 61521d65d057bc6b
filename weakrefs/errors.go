package weakrefs

import (
	"errors"
	"fmt"
)

// ErrInvalidArgument is the single error kind for parameter-contract
// violations. Liveness and reclamation outcomes are never surfaced as
// errors; Deref signals an absent target with the heap.Nil sentinel.
var ErrInvalidArgument = errors.New("invalid argument")

// ErrRegistryClosed is returned by operations on a FinalizationRegistry
// after Close.
var ErrRegistryClosed = errors.New("finalization registry is closed")

// invalidArgumentf wraps ErrInvalidArgument with a formatted detail.
func invalidArgumentf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidArgument, fmt.Sprintf(format, args...))
}

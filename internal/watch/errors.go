package watch

import (
	"errors"
	"fmt"
)

// Sentinel errors.
var (
	// ErrSetup matches every *SetupError.
	ErrSetup = errors.New("watch setup failed")
	// ErrDelivery matches every *DeliveryError.
	ErrDelivery = errors.New("notification delivery failed")
	// ErrClosed is returned when establishing a watch on a closed Manager.
	ErrClosed = errors.New("watch manager closed")
	// ErrUnknownWatch is returned by Unwatch for an id that is not active.
	ErrUnknownWatch = errors.New("unknown watch")
	// ErrNotDirectory is returned when a directory watch targets a file.
	ErrNotDirectory = errors.New("not a directory")
	// ErrNotFile is returned when a file watch targets a directory.
	ErrNotFile = errors.New("is a directory")
	// ErrUnsupportedBackend is returned for a backend not available here.
	ErrUnsupportedBackend = errors.New("unsupported watch backend")
)

// SetupError reports that a backend could not be bound to a target. The
// underlying OS error is kept and reachable through errors.Unwrap.
type SetupError struct {
	Root    string
	Backend string
	Err     error
}

func (e *SetupError) Error() string {
	return fmt.Sprintf("watch %s (%s): %v", e.Root, e.Backend, e.Err)
}

func (e *SetupError) Unwrap() error { return e.Err }

// Is reports ErrSetup as a match.
func (e *SetupError) Is(target error) bool { return target == ErrSetup }

// DeliveryError reports that the publisher rejected a notification. It is
// logged by the delivery goroutine and never returned to callers.
type DeliveryError struct {
	Channel string
	Err     error
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("deliver on %q: %v", e.Channel, e.Err)
}

func (e *DeliveryError) Unwrap() error { return e.Err }

// Is reports ErrDelivery as a match.
func (e *DeliveryError) Is(target error) bool { return target == ErrDelivery }

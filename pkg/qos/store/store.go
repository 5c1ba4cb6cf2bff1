// Package store persists per-volume QoS limits and provides the exclusive
// locks that serialize configuration changes.
package store

import (
	"context"
	"errors"

	"github.com/vnykmshr/volqos/pkg/volume"
)

// Store persists the QoS limits of volumes.
type Store interface {
	// Get returns the stored limits. It returns an error wrapping
	// errors.ErrNotFound if nothing is stored for the volume.
	Get(ctx context.Context, name string) (volume.Limits, error)

	// Set stores limits for the volume, replacing any previous value.
	Set(ctx context.Context, name string, limits volume.Limits) error

	// Delete removes the volume's limits. Deleting a missing volume is not an error.
	Delete(ctx context.Context, name string) error
}

// Lock is a held exclusive lock.
type Lock interface {
	// Close releases the lock.
	Close() error
}

// Locker hands out exclusive per-volume locks.
type Locker interface {
	// TryAcquire takes the lock for the volume without waiting. It returns
	// an error wrapping errors.ErrLocked if another owner holds it.
	TryAcquire(ctx context.Context, name string) (Lock, error)
}

// StoreError wraps a failure of the backing database.
type StoreError struct {
	Backend   string
	Operation string
	Err       error
}

func (e *StoreError) Error() string {
	return e.Backend + " error in " + e.Operation + ": " + e.Err.Error()
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

// IsStoreError reports whether err came from a backing database.
func IsStoreError(err error) bool {
	var serr *StoreError
	return errors.As(err, &serr)
}

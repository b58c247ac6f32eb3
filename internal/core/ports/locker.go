package ports

import "context"

// Locker guards builds across processes.
//
//go:generate mockgen -source=locker.go -destination=mocks/mock_locker.go -package=mocks
type Locker interface {
	// Lock blocks until the lock is held, the timeout expires or ctx is done.
	// The returned function releases the lock.
	Lock(ctx context.Context) (func() error, error)
}

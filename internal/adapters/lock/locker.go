// Package lock implements the cross-process build lock on top of an
// advisory file lock.
package lock

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"time"

	"github.com/gofrs/flock"
	"go.trai.ch/assetbuilder/internal/core/domain"
	"go.trai.ch/assetbuilder/internal/core/ports"
	"go.trai.ch/zerr"
)

// FileLocker implements ports.Locker with a flock on a lock file.
// File locks are held per process, so goroutines of the same process are
// serialized by sem before the file lock is attempted.
type FileLocker struct {
	sem        chan struct{}
	file       *flock.Flock
	timeout    time.Duration
	retryDelay time.Duration
}

var _ ports.Locker = (*FileLocker)(nil)

// Option configures a FileLocker.
type Option func(*FileLocker)

// WithRetryDelay sets how often the file lock is polled.
func WithRetryDelay(d time.Duration) Option {
	return func(l *FileLocker) {
		if d > 0 {
			l.retryDelay = d
		}
	}
}

// NewFileLocker creates a locker for the lock file at path. A timeout of
// zero or less uses domain.DefaultLockTimeout.
func NewFileLocker(path string, timeout time.Duration, opts ...Option) *FileLocker {
	if timeout <= 0 {
		timeout = domain.DefaultLockTimeout
	}
	l := &FileLocker{
		sem:        make(chan struct{}, 1),
		file:       flock.New(filepath.Clean(path)),
		timeout:    timeout,
		retryDelay: domain.DefaultLockRetryDelay,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Path returns the lock file location.
func (l *FileLocker) Path() string {
	return l.file.Path()
}

// Lock acquires the build lock, waiting at most the configured timeout.
func (l *FileLocker) Lock(ctx context.Context) (func() error, error) {
	ctx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()

	select {
	case l.sem <- struct{}{}:
	case <-ctx.Done():
		return nil, l.waitError(ctx.Err())
	}

	locked, err := l.file.TryLockContext(ctx, l.retryDelay)
	if err != nil || !locked {
		<-l.sem
		if err == nil {
			err = ctx.Err()
		}
		return nil, l.waitError(err)
	}

	var once sync.Once
	var unlockErr error
	return func() error {
		once.Do(func() {
			defer func() { <-l.sem }()
			if err := l.file.Unlock(); err != nil {
				unlockErr = zerr.With(zerr.Wrap(domain.ErrLockFailed, err.Error()), "path", l.file.Path())
			}
		})
		return unlockErr
	}, nil
}

func (l *FileLocker) waitError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		err = zerr.With(zerr.Wrap(domain.ErrLockTimeout, "build lock busy"), "timeout", l.timeout.String())
	} else {
		err = zerr.Wrap(domain.ErrLockFailed, err.Error())
	}
	return zerr.With(err, "path", l.file.Path())
}

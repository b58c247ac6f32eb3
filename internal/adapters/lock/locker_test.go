package lock_test

import (
	"context"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/assetbuilder/internal/adapters/lock"
	"go.trai.ch/assetbuilder/internal/core/domain"
)

func TestFileLocker_LockUnlock(t *testing.T) {
	path := filepath.Join(t.TempDir(), domain.LockFileName)
	l := lock.NewFileLocker(path, time.Second, lock.WithRetryDelay(5*time.Millisecond))

	unlock, err := l.Lock(context.Background())
	require.NoError(t, err)
	require.NoError(t, unlock())
	require.NoError(t, unlock(), "unlock is idempotent")

	unlock, err = l.Lock(context.Background())
	require.NoError(t, err)
	require.NoError(t, unlock())
	assert.Equal(t, path, l.Path())
}

func TestFileLocker_TimeoutAcrossHandles(t *testing.T) {
	path := filepath.Join(t.TempDir(), domain.LockFileName)
	holder := lock.NewFileLocker(path, time.Second)
	waiter := lock.NewFileLocker(path, 100*time.Millisecond, lock.WithRetryDelay(5*time.Millisecond))

	unlock, err := holder.Lock(context.Background())
	require.NoError(t, err)
	defer func() { _ = unlock() }()

	_, err = waiter.Lock(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrLockTimeout)
}

func TestFileLocker_TimeoutInProcess(t *testing.T) {
	path := filepath.Join(t.TempDir(), domain.LockFileName)
	l := lock.NewFileLocker(path, 50*time.Millisecond)

	unlock, err := l.Lock(context.Background())
	require.NoError(t, err)

	_, err = l.Lock(context.Background())
	require.ErrorIs(t, err, domain.ErrLockTimeout)

	require.NoError(t, unlock())
	unlock, err = l.Lock(context.Background())
	require.NoError(t, err)
	require.NoError(t, unlock())
}

func TestFileLocker_Canceled(t *testing.T) {
	path := filepath.Join(t.TempDir(), domain.LockFileName)
	l := lock.NewFileLocker(path, time.Second)

	unlock, err := l.Lock(context.Background())
	require.NoError(t, err)
	defer func() { _ = unlock() }()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = l.Lock(ctx)
	require.ErrorIs(t, err, domain.ErrLockFailed)
	assert.NotErrorIs(t, err, domain.ErrLockTimeout)
}

func TestFileLocker_SerializesGoroutines(t *testing.T) {
	path := filepath.Join(t.TempDir(), domain.LockFileName)
	l := lock.NewFileLocker(path, 5*time.Second, lock.WithRetryDelay(time.Millisecond))

	var active, maxActive atomic.Int32
	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock, err := l.Lock(context.Background())
			if !assert.NoError(t, err) {
				return
			}
			n := active.Add(1)
			for {
				m := maxActive.Load()
				if n <= m || maxActive.CompareAndSwap(m, n) {
					break
				}
			}
			time.Sleep(time.Millisecond)
			active.Add(-1)
			assert.NoError(t, unlock())
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), maxActive.Load())
}

func TestNewFileLocker_DefaultTimeout(t *testing.T) {
	l := lock.NewFileLocker(filepath.Join(t.TempDir(), "x.lock"), 0)
	unlock, err := l.Lock(context.Background())
	require.NoError(t, err)
	require.NoError(t, unlock())
}

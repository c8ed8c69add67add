package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
)

// LockFileName is the advisory writer lock inside an index location.
const LockFileName = ".lock"

// lockRetryDelay is the polling interval while waiting for the writer lock.
const lockRetryDelay = 50 * time.Millisecond

// writerLock is a cross-process exclusive lock serializing writers of one
// index location. Readers never take it.
type writerLock struct {
	path   string
	flock  *flock.Flock
	locked bool
}

func newWriterLock(location string) *writerLock {
	path := filepath.Join(location, LockFileName)
	return &writerLock{path: path, flock: flock.New(path)}
}

// Lock waits for the lock until ctx is done.
func (l *writerLock) Lock(ctx context.Context) error {
	if err := os.MkdirAll(filepath.Dir(l.path), 0755); err != nil {
		return fmt.Errorf("failed to create lock directory: %w", err)
	}

	acquired, err := l.flock.TryLockContext(ctx, lockRetryDelay)
	if err != nil {
		return fmt.Errorf("failed to acquire lock %s: %w", l.path, err)
	}
	if !acquired {
		return fmt.Errorf("lock %s is held by another writer", l.path)
	}
	l.locked = true
	return nil
}

// Unlock releases the lock. Safe to call when not locked.
func (l *writerLock) Unlock() error {
	if !l.locked {
		return nil
	}
	l.locked = false
	if err := l.flock.Unlock(); err != nil {
		return fmt.Errorf("failed to release lock: %w", err)
	}
	return nil
}

package store

import (
	"path/filepath"

	"github.com/gofrs/flock"

	"github.com/auditgraph/vet/internal/audit"
)

// StoreLock guards a store directory for the lifetime of a command,
// analogous to golang-dep's lock file but backed by gofrs/flock rather than
// a hand-rolled PID file, per spec §5's "single OS-level advisory lock over
// the store root, held for the command's lifetime".
type StoreLock struct {
	fl *flock.Flock
}

// Acquire takes an exclusive, non-blocking lock over root's lock file. It
// returns a *audit.LockError if another process already holds it.
func Acquire(root string) (*StoreLock, error) {
	path := filepath.Join(root, ".vet-lock")
	fl := flock.New(path)

	ok, err := fl.TryLock()
	if err != nil {
		return nil, &audit.LockError{Path: path, Err: err}
	}
	if !ok {
		return nil, &audit.LockError{Path: path, Err: errAlreadyLocked}
	}
	return &StoreLock{fl: fl}, nil
}

var errAlreadyLocked = lockHeldError{}

type lockHeldError struct{}

func (lockHeldError) Error() string { return "store is locked by another process" }

// Release drops the lock. Safe to call once; a second call is a no-op.
func (l *StoreLock) Release() error {
	if l == nil || l.fl == nil {
		return nil
	}
	return l.fl.Unlock()
}

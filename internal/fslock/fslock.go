package fslock

import (
	"context"
	"fmt"
	"os"
	"time"
)

// Lock is a filesystem-presence mutex: the lock is held exactly while
// its marker file exists, which makes a holder visible to every process
// sharing the directory and leaves a crashed holder's marker behind for
// an operator to see. Acquisition uses O_EXCL creation, so two pollers
// observing a free lock cannot both win.
type Lock struct {
	path     string
	interval time.Duration
}

// New returns a lock backed by the marker file at path. interval is the
// polling cadence while the lock is held by someone else.
func New(path string, interval time.Duration) *Lock {
	return &Lock{path: path, interval: interval}
}

func (l *Lock) Path() string { return l.path }

// Held reports whether the marker currently exists. The answer may be
// stale by the time the caller acts on it; use TryAcquire to take the
// lock.
func (l *Lock) Held() (bool, error) {
	_, err := os.Stat(l.path)
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, err
}

// TryAcquire attempts to create the marker atomically. It returns false
// without error when the lock is held by someone else.
func (l *Lock) TryAcquire() (bool, error) {
	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
	if err != nil {
		if os.IsExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("create lock %s: %w", l.path, err)
	}
	f.Close()
	return true, nil
}

// Acquire blocks until the marker is created by this caller or ctx
// expires. There is no fairness: the first poller to observe a free
// lock wins.
func (l *Lock) Acquire(ctx context.Context) error {
	for {
		ok, err := l.TryAcquire()
		if err != nil {
			return err
		}
		if ok {
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("waiting for lock %s: %w", l.path, ctx.Err())
		case <-time.After(l.interval):
		}
	}
}

// Release removes the marker. Callers must release on every exit path
// of the protected section; a missing marker is not an error so a
// double release stays harmless.
func (l *Lock) Release() error {
	if err := os.Remove(l.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("release lock %s: %w", l.path, err)
	}
	return nil
}

package fslock

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func newTestLock(t *testing.T) *Lock {
	t.Helper()
	return New(filepath.Join(t.TempDir(), "region.lockfile"), 5*time.Millisecond)
}

func TestTryAcquireIsExclusive(t *testing.T) {
	lock := newTestLock(t)

	ok, err := lock.TryAcquire()
	if err != nil || !ok {
		t.Fatalf("First TryAcquire: ok=%v err=%v", ok, err)
	}

	other := New(lock.Path(), 5*time.Millisecond)
	ok, err = other.TryAcquire()
	if err != nil {
		t.Fatalf("Second TryAcquire errored: %v", err)
	}
	if ok {
		t.Fatal("Second TryAcquire succeeded while lock was held")
	}

	if err := lock.Release(); err != nil {
		t.Fatalf("Release failed: %v", err)
	}
	if ok, _ := other.TryAcquire(); !ok {
		t.Fatal("TryAcquire failed after release")
	}
}

func TestHeldTracksMarkerFile(t *testing.T) {
	lock := newTestLock(t)

	if held, _ := lock.Held(); held {
		t.Fatal("New lock reported held")
	}
	lock.TryAcquire()
	if held, _ := lock.Held(); !held {
		t.Fatal("Acquired lock reported free")
	}
	if _, err := os.Stat(lock.Path()); err != nil {
		t.Fatalf("Marker file missing: %v", err)
	}
	lock.Release()
	if held, _ := lock.Held(); held {
		t.Fatal("Released lock reported held")
	}
}

func TestAcquireWaitsForRelease(t *testing.T) {
	lock := newTestLock(t)
	lock.TryAcquire()

	done := make(chan error, 1)
	go func() {
		contender := New(lock.Path(), time.Millisecond)
		done <- contender.Acquire(context.Background())
	}()

	select {
	case err := <-done:
		t.Fatalf("Acquire returned while lock held: %v", err)
	case <-time.After(20 * time.Millisecond):
	}

	lock.Release()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Acquire after release failed: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Acquire did not win after release")
	}
}

func TestAcquireRespectsContext(t *testing.T) {
	lock := newTestLock(t)
	lock.TryAcquire()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	contender := New(lock.Path(), time.Millisecond)
	err := contender.Acquire(ctx)
	if err == nil {
		t.Fatal("Acquire succeeded although the lock never cleared")
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Expected deadline error, got %v", err)
	}
}

func TestReleaseIsIdempotent(t *testing.T) {
	lock := newTestLock(t)
	lock.TryAcquire()
	if err := lock.Release(); err != nil {
		t.Fatalf("Release failed: %v", err)
	}
	if err := lock.Release(); err != nil {
		t.Fatalf("Second release failed: %v", err)
	}
}

func TestReleaseRunsOnErrorPaths(t *testing.T) {
	lock := newTestLock(t)

	// The usual protected-section shape: acquire, defer release, fail.
	err := func() (err error) {
		if err := lock.Acquire(context.Background()); err != nil {
			return err
		}
		defer lock.Release()
		return errors.New("render failed")
	}()
	if err == nil {
		t.Fatal("Expected the section to fail")
	}
	if held, _ := lock.Held(); held {
		t.Fatal("Lock still held after failing section")
	}
}

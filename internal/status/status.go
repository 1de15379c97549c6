package status

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/ivlev/mapvideo/internal/fslock"
	"github.com/ivlev/mapvideo/internal/regions"
)

// VideoRecord is one produced video in the rolling history.
type VideoRecord struct {
	Filename string `json:"filename"`
	Created  int64  `json:"created"`
}

// Videos holds the per-region video history.
type Videos struct {
	Districts []VideoRecord `json:"districts"`
	States    []VideoRecord `json:"states"`
}

// Status is the shared ledger: per-region frame readiness and the
// rolling history of produced videos. One file spans both regions, so
// every mutation runs under the single status lock.
type Status struct {
	Districts bool   `json:"districts"`
	States    bool   `json:"states"`
	Videos    Videos `json:"videos"`
}

// Ready reports whether the region's frames match its current snapshot.
func (s *Status) Ready(r regions.Region) bool {
	if r == regions.Districts {
		return s.Districts
	}
	return s.States
}

func (s *Status) SetReady(r regions.Region, ready bool) {
	if r == regions.Districts {
		s.Districts = ready
	} else {
		s.States = ready
	}
}

func (s *Status) VideoList(r regions.Region) []VideoRecord {
	if r == regions.Districts {
		return s.Videos.Districts
	}
	return s.Videos.States
}

func (s *Status) SetVideoList(r regions.Region, list []VideoRecord) {
	if r == regions.Districts {
		s.Videos.Districts = list
	} else {
		s.Videos.States = list
	}
}

// Ledger owns the status file and serializes mutations through the
// status lock. Plain reads skip the lock and may be stale; Update
// re-reads under the lock before applying the mutation, so stale reads
// never leak into a write.
type Ledger struct {
	path    string
	lock    *fslock.Lock
	maxWait time.Duration
}

// NewLedger places status.json and status.lockfile inside dir.
func NewLedger(dir string, pollInterval, maxWait time.Duration) *Ledger {
	return &Ledger{
		path:    filepath.Join(dir, "status.json"),
		lock:    fslock.New(filepath.Join(dir, "status.lockfile"), pollInterval),
		maxWait: maxWait,
	}
}

func (l *Ledger) Path() string { return l.path }

// Read returns the current ledger without taking the lock. An absent
// file yields the initial zero state (both regions not ready, empty
// histories).
func (l *Ledger) Read() (Status, error) {
	data, err := os.ReadFile(l.path)
	if err != nil {
		if os.IsNotExist(err) {
			return Status{}, nil
		}
		return Status{}, err
	}
	var st Status
	if err := json.Unmarshal(data, &st); err != nil {
		return Status{}, fmt.Errorf("corrupt status file %s: %w", l.path, err)
	}
	return st, nil
}

// Update acquires the status lock, re-reads the ledger, applies fn and
// writes the result back. The lock is released on every exit path. The
// write creates the file on first use.
func (l *Ledger) Update(ctx context.Context, fn func(*Status) error) error {
	lockCtx, cancel := context.WithTimeout(ctx, l.maxWait)
	defer cancel()
	if err := l.lock.Acquire(lockCtx); err != nil {
		return err
	}
	defer l.lock.Release()

	st, err := l.Read()
	if err != nil {
		return err
	}
	if err := fn(&st); err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(l.path), 0755); err != nil {
		return err
	}
	data, err := json.Marshal(st)
	if err != nil {
		return err
	}
	return os.WriteFile(l.path, data, 0644)
}

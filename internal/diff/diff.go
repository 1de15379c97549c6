package diff

import "github.com/ivlev/mapvideo/internal/incidence"

// Kind classifies why a day's frame is stale.
type Kind int

const (
	// New marks a date absent from the previous snapshot.
	New Kind = iota
	// Changed marks a date whose region or aggregate colors differ.
	Changed
)

// Entry is one stale day.
type Entry struct {
	Date string
	Kind Kind
}

// Days compares the current snapshot against the previous generation
// and returns the dates whose frame must be (re)rendered, in
// chronological order. A nil previous snapshot marks every date New.
// Per-date comparison stops at the first differing key.
func Days(current, previous incidence.ColorsPerDay) []Entry {
	var out []Entry
	for _, date := range current.SortedDates() {
		old, ok := previous[date]
		if !ok {
			out = append(out, Entry{Date: date, Kind: New})
			continue
		}
		if len(old) != len(current[date]) {
			out = append(out, Entry{Date: date, Kind: Changed})
			continue
		}
		for key, entry := range current[date] {
			if old[key] != entry {
				out = append(out, Entry{Date: date, Kind: Changed})
				break
			}
		}
	}
	return out
}

// Counts tallies a diff set for logging.
func Counts(entries []Entry) (newFrames, changedFrames int) {
	for _, e := range entries {
		if e.Kind == New {
			newFrames++
		} else {
			changedFrames++
		}
	}
	return
}

package snapshot

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/ivlev/mapvideo/internal/incidence"
	"github.com/ivlev/mapvideo/internal/regions"
)

// Store persists per-region color snapshots as JSON files named
// {region}-colorSnapshot_{refDate}.json inside its directory. File
// names sort lexicographically by reference date, which the previous-
// generation lookup and the retention pass rely on.
type Store struct {
	dir string
}

func NewStore(dir string) *Store {
	return &Store{dir: dir}
}

func (s *Store) Path(region regions.Region, refDate string) string {
	return filepath.Join(s.dir, fmt.Sprintf("%s-colorSnapshot_%s.json", region, refDate))
}

// Load returns the snapshot for the exact reference date, or ok=false
// if none has been materialized yet.
func (s *Store) Load(region regions.Region, refDate string) (incidence.ColorsPerDay, bool, error) {
	data, err := os.ReadFile(s.Path(region, refDate))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, err
	}
	var colors incidence.ColorsPerDay
	if err := json.Unmarshal(data, &colors); err != nil {
		return nil, false, fmt.Errorf("corrupt snapshot for %s/%s: %w", region, refDate, err)
	}
	return colors, true, nil
}

func (s *Store) Save(region regions.Region, refDate string, colors incidence.ColorsPerDay) error {
	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return err
	}
	data, err := json.Marshal(colors)
	if err != nil {
		return err
	}
	return os.WriteFile(s.Path(region, refDate), data, 0644)
}

// Previous returns the second-most-recent snapshot for the region, the
// one the diff engine compares the current snapshot against.
func (s *Store) Previous(region regions.Region) (incidence.ColorsPerDay, bool, error) {
	files, err := s.files(region)
	if err != nil {
		return nil, false, err
	}
	if len(files) < 2 {
		return nil, false, nil
	}
	data, err := os.ReadFile(filepath.Join(s.dir, files[1]))
	if err != nil {
		return nil, false, err
	}
	var colors incidence.ColorsPerDay
	if err := json.Unmarshal(data, &colors); err != nil {
		return nil, false, fmt.Errorf("corrupt previous snapshot for %s: %w", region, err)
	}
	return colors, true, nil
}

// Prune deletes all but the keep most recent snapshot files.
func (s *Store) Prune(region regions.Region, keep int) error {
	files, err := s.files(region)
	if err != nil {
		return err
	}
	for i := keep; i < len(files); i++ {
		if err := os.Remove(filepath.Join(s.dir, files[i])); err != nil && !os.IsNotExist(err) {
			return err
		}
	}
	return nil
}

// files lists the region's snapshot file names, newest first.
func (s *Store) files(region regions.Region) ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	prefix := fmt.Sprintf("%s-colorSnapshot_", region)
	var names []string
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasPrefix(entry.Name(), prefix) {
			names = append(names, entry.Name())
		}
	}
	sort.Sort(sort.Reverse(sort.StringSlice(names)))
	return names, nil
}

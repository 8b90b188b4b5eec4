package changes

import (
	"slices"
	"sync"
)

// Store keeps the highest-numbered changes seen so far, newest first.
// Writers replace the backing slice wholesale, so readers always see a complete merge.
type Store struct {
	mu      sync.RWMutex
	entries []ChangeSummary
}

func NewStore() *Store {
	return &Store{}
}

// Merge inserts changes whose Number is not already present, then trims to the
// retention highest numbers. It reports whether the retained set changed.
func (s *Store) Merge(newChanges []ChangeSummary, retention int) bool {
	if retention < 0 {
		retention = 0
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	seen := make(map[int]struct{}, len(s.entries)+len(newChanges))
	merged := make([]ChangeSummary, 0, len(s.entries)+len(newChanges))
	for _, c := range s.entries {
		seen[c.Number] = struct{}{}
		merged = append(merged, c)
	}
	added := 0
	for _, c := range newChanges {
		if _, ok := seen[c.Number]; ok {
			continue
		}
		seen[c.Number] = struct{}{}
		merged = append(merged, c)
		added++
	}

	if added == 0 && len(merged) <= retention {
		return false
	}

	slices.SortFunc(merged, func(a, b ChangeSummary) int {
		return b.Number - a.Number
	})
	if len(merged) > retention {
		merged = merged[:retention]
	}

	if sameNumbers(s.entries, merged) {
		return false
	}
	s.entries = slices.Clip(merged)
	return true
}

// Snapshot returns an independent copy ordered by descending Number.
func (s *Store) Snapshot() []ChangeSummary {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.entries)
}

func (s *Store) Size() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

func (s *Store) HighestNumber() (int, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.entries) == 0 {
		return 0, false
	}
	return s.entries[0].Number, true
}

func (s *Store) LowestNumber() (int, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.entries) == 0 {
		return 0, false
	}
	return s.entries[len(s.entries)-1].Number, true
}

func (s *Store) Contains(number int) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, found := slices.BinarySearchFunc(s.entries, number, func(c ChangeSummary, n int) int {
		return n - c.Number
	})
	return found
}

func sameNumbers(a, b []ChangeSummary) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].Number != b[i].Number {
			return false
		}
	}
	return true
}

// Package dedupe remembers which records have already been notified.
package dedupe

import (
	"sync"

	"github.com/JakeFAU/bidwatch/internal/bid"
)

// Default retention marks: once the store holds HighWater records, Trim keeps
// only the LowWater most recent ones.
const (
	DefaultHighWater = 20
	DefaultLowWater  = 6
)

// Store is an insertion-ordered, bounded memory of notified records.
// Membership is a linear scan; the store never grows much past its high-water mark.
type Store struct {
	mu      sync.Mutex
	records []bid.Record
	high    int
	low     int
}

// NewStore creates a store with the given marks. Non-positive values fall back
// to the defaults and low is clamped to high.
func NewStore(high, low int) *Store {
	if high <= 0 {
		high = DefaultHighWater
	}
	if low <= 0 {
		low = DefaultLowWater
	}
	if low > high {
		low = high
	}
	return &Store{
		records: make([]bid.Record, 0, high),
		high:    high,
		low:     low,
	}
}

// IsNew reports whether no stored record has r's identity.
// It does not record r; use Admit for that.
func (s *Store) IsNew(r bid.Record) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.indexOf(r) < 0
}

// Admit appends r. Callers check IsNew first; Admit on a known record is a no-op.
func (s *Store) Admit(r bid.Record) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.indexOf(r) >= 0 {
		return
	}
	s.records = append(s.records, r)
}

// CheckAndAdmit atomically admits r if it is new and reports whether it was.
func (s *Store) CheckAndAdmit(r bid.Record) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.indexOf(r) >= 0 {
		return false
	}
	s.records = append(s.records, r)
	return true
}

// Trim drops all but the newest low-water entries once the store reaches the
// high-water mark. It returns the number of records removed.
func (s *Store) Trim() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.records) < s.high {
		return 0
	}
	removed := len(s.records) - s.low
	kept := make([]bid.Record, s.low, s.high)
	copy(kept, s.records[removed:])
	s.records = kept
	return removed
}

// Len returns the number of stored records.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}

// Records returns a copy of the stored records in insertion order.
func (s *Store) Records() []bid.Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]bid.Record, len(s.records))
	copy(out, s.records)
	return out
}

func (s *Store) indexOf(r bid.Record) int {
	id := r.Identity()
	for i := range s.records {
		if s.records[i].Identity() == id {
			return i
		}
	}
	return -1
}

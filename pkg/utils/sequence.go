package utils

import (
	"sync"
	"time"
)

// TimestampLayout is fixed width so that lexical order of the formatted
// strings matches chronological order. time.RFC3339Nano trims trailing zeros
// and cannot be used as a sort key.
const TimestampLayout = "2006-01-02T15:04:05.000000000Z"

func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}

// Sequencer hands out strictly increasing timestamps even when the wall
// clock stalls or steps backwards.
type Sequencer struct {
	now  func() time.Time
	last time.Time
	mu   sync.Mutex
}

func NewSequencer(now func() time.Time) *Sequencer {
	if now == nil {
		now = time.Now
	}
	return &Sequencer{now: now}
}

func (s *Sequencer) Next() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := s.now().UTC()
	if !t.After(s.last) {
		t = s.last.Add(time.Nanosecond)
	}
	s.last = t
	return t
}

// NextString is Next formatted with TimestampLayout.
func (s *Sequencer) NextString() string {
	return FormatTimestamp(s.Next())
}

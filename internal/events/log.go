package events

import (
	"sync"
	"time"
)

const defaultCap = 64

// Log is a bounded, TTL-pruned history of events, newest last. Safe for
// concurrent use: the engine records from refresh calls while the TUI
// snapshots from its render loop.
type Log struct {
	mu   sync.Mutex
	ttl  time.Duration
	max  int
	data []Event
}

// NewLog returns a Log keeping at most defaultCap events, dropping
// entries older than ttl on snapshot. A zero ttl disables pruning.
func NewLog(ttl time.Duration) *Log {
	return &Log{ttl: ttl, max: defaultCap}
}

// Record appends an event stamped with the current time.
func (l *Log) Record(kind, action, id string) {
	l.RecordAt(kind, action, id, time.Now())
}

// RecordAt appends an event with an explicit timestamp.
func (l *Log) RecordAt(kind, action, id string, ts time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.data = append(l.data, Event{Kind: kind, Action: action, ID: id, TS: ts})
	if len(l.data) > l.max {
		l.data = l.data[len(l.data)-l.max:]
	}
}

// Snapshot returns the retained events oldest first, pruning entries
// older than the ttl relative to now.
func (l *Log) Snapshot(now time.Time) []Event {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.ttl > 0 {
		kept := l.data[:0]
		for _, e := range l.data {
			if now.Sub(e.TS) <= l.ttl {
				kept = append(kept, e)
			}
		}
		l.data = kept
	}
	out := make([]Event, len(l.data))
	copy(out, l.data)
	return out
}

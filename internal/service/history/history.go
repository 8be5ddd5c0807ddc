package history

import (
	"sync"

	domain "github.com/oshokin/doorwatch/internal/domain/door"
)

// Ledger is a bounded log of transitions kept in chronological order.
// When full, the oldest entry is dropped before a new one is appended.
type Ledger struct {
	// entries holds at most capacity items, oldest first.
	entries []domain.HistoryEntry
	// capacity is fixed at construction.
	capacity int
	// mu protects entries.
	mu sync.RWMutex
}

// New creates an empty ledger holding up to capacity entries.
// A capacity below one is treated as one.
func New(capacity int) *Ledger {
	capacity = max(capacity, 1)

	return &Ledger{
		entries:  make([]domain.HistoryEntry, 0, capacity),
		capacity: capacity,
	}
}

// Append records entry, evicting the oldest one if the ledger is full.
func (l *Ledger) Append(entry domain.HistoryEntry) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if len(l.entries) >= l.capacity {
		// Shift in place so the backing array never grows past capacity.
		copy(l.entries, l.entries[1:])
		l.entries = l.entries[:len(l.entries)-1]
	}

	l.entries = append(l.entries, entry)
}

// Snapshot returns a copy of the entries, oldest first.
func (l *Ledger) Snapshot() []domain.HistoryEntry {
	l.mu.RLock()
	defer l.mu.RUnlock()

	result := make([]domain.HistoryEntry, len(l.entries))
	copy(result, l.entries)

	return result
}

// Len returns the number of stored entries.
func (l *Ledger) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()

	return len(l.entries)
}

// Capacity returns the maximum number of stored entries.
func (l *Ledger) Capacity() int {
	return l.capacity
}

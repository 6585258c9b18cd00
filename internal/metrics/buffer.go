package metrics

import (
	"fmt"
	"sync"

	"github.com/minhtran2412/loadscope/internal/logdata"
)

// Buffer is a bounded FIFO window over the most recent replayed records.
// When full, the oldest record is evicted first, bounding memory for an
// unbounded-duration replay. Appends are O(1); Snapshot copies out the
// contents oldest-first so readers never iterate concurrently with
// eviction.
//
// Thread-safe: one producer appends, the aggregator and dashboard read.
type Buffer struct {
	mu       sync.RWMutex
	records  []logdata.Record // ring storage, capacity fixed at creation
	head     int              // index of the oldest record
	count    int
	capacity int
}

// NewBuffer creates a buffer holding at most capacity records.
func NewBuffer(capacity int) (*Buffer, error) {
	if capacity <= 0 {
		return nil, fmt.Errorf("buffer capacity must be positive, got %d", capacity)
	}
	return &Buffer{
		records:  make([]logdata.Record, capacity),
		capacity: capacity,
	}, nil
}

// AddRecord appends one record, evicting the oldest when full.
func (b *Buffer) AddRecord(rec logdata.Record) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.addLocked(rec)
}

// AddBatch appends records in order, evicting as needed.
func (b *Buffer) AddBatch(records []logdata.Record) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, rec := range records {
		b.addLocked(rec)
	}
}

// Clear drops every buffered record.
func (b *Buffer) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.head = 0
	b.count = 0
}

// Len returns the number of buffered records.
func (b *Buffer) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.count
}

// Capacity returns the fixed maximum size.
func (b *Buffer) Capacity() int {
	return b.capacity
}

// Snapshot returns a copy of the buffered records, oldest first.
func (b *Buffer) Snapshot() []logdata.Record {
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := make([]logdata.Record, b.count)
	for i := 0; i < b.count; i++ {
		out[i] = b.records[(b.head+i)%b.capacity]
	}
	return out
}

func (b *Buffer) addLocked(rec logdata.Record) {
	if b.count == b.capacity {
		// Overwrite the oldest slot.
		b.records[b.head] = rec
		b.head = (b.head + 1) % b.capacity
		return
	}
	b.records[(b.head+b.count)%b.capacity] = rec
	b.count++
}

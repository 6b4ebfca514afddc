package metrics

import (
	"sync"

	"github.com/gerrymoeis/proker-tracker-web-sub000/internal/domain"
)

// DefaultBufferCapacity bounds the volatile buffer to the most recent entries.
const DefaultBufferCapacity = 1000

// BufferedMetric couples a metric with the sequence number it was buffered
// under, so a partially successful drain can remove exactly the entries that
// were confirmed persisted.
type BufferedMetric struct {
	Seq    uint64
	Metric domain.Metric
}

// Buffer is the process-wide volatile fallback store for metrics that could
// not be persisted. There is exactly one instance per process, constructed in
// main and injected everywhere it is needed.
type Buffer struct {
	mu      sync.Mutex
	cap     int
	nextSeq uint64
	entries []BufferedMetric
}

// NewBuffer constructs a Buffer with the given capacity.
func NewBuffer(capacity int) *Buffer {
	if capacity <= 0 {
		capacity = DefaultBufferCapacity
	}
	return &Buffer{cap: capacity}
}

// Append adds a metric at the tail, evicting oldest entries beyond capacity.
func (b *Buffer) Append(metric domain.Metric) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextSeq++
	b.entries = append(b.entries, BufferedMetric{Seq: b.nextSeq, Metric: metric})
	if over := len(b.entries) - b.cap; over > 0 {
		b.entries = append(b.entries[:0:0], b.entries[over:]...)
	}
}

// Snapshot returns a copy of the current entries without removing them.
// Removal happens only after persistence is confirmed, via Remove.
func (b *Buffer) Snapshot() []BufferedMetric {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]BufferedMetric(nil), b.entries...)
}

// Remove drops the entries whose sequence numbers were confirmed persisted.
// Entries appended after the snapshot are untouched.
func (b *Buffer) Remove(seqs []uint64) {
	if len(seqs) == 0 {
		return
	}
	confirmed := make(map[uint64]struct{}, len(seqs))
	for _, seq := range seqs {
		confirmed[seq] = struct{}{}
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	kept := b.entries[:0]
	for _, entry := range b.entries {
		if _, ok := confirmed[entry.Seq]; !ok {
			kept = append(kept, entry)
		}
	}
	b.entries = kept
}

// Len reports the number of buffered entries.
func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.entries)
}

package trial

// Buffer is an ordered, append-only record container for one channel.
// Insertion order is temporal order. The buffer itself does no locking:
// the Recorder is its sole owner and serializes all access.
type Buffer[T any] struct {
	records []T
}

func (b *Buffer[T]) Append(rec T) {
	b.records = append(b.records, rec)
}

func (b *Buffer[T]) Len() int {
	return len(b.records)
}

// Snapshot returns a copy of the records in insertion order. The copy is
// safe to read while new records accumulate in the live buffer.
func (b *Buffer[T]) Snapshot() []T {
	out := make([]T, len(b.records))
	copy(out, b.records)
	return out
}

// Clear drops all records. Valid on an already empty buffer.
func (b *Buffer[T]) Clear() {
	b.records = nil
}

// PrependAll puts older records in front of the current ones, preserving
// temporal order. Used to fold a failed commit's snapshot back together
// with whatever accumulated while the commit was in flight.
func (b *Buffer[T]) PrependAll(older []T) {
	if len(older) == 0 {
		return
	}
	merged := make([]T, 0, len(older)+len(b.records))
	merged = append(merged, older...)
	merged = append(merged, b.records...)
	b.records = merged
}

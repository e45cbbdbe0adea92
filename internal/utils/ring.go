package utils

// Ring is a fixed-capacity FIFO buffer. Once full, each Push evicts the
// oldest entry. Insertion is O(1); the backing array never grows.
type Ring[T any] struct {
	items []T
	head  int
	size  int
}

// NewRing creates a ring holding at most capacity items. Capacity values
// below 1 are raised to 1.
func NewRing[T any](capacity int) *Ring[T] {
	if capacity < 1 {
		capacity = 1
	}
	return &Ring[T]{items: make([]T, capacity)}
}

// Push appends item, evicting the oldest entry when full.
func (r *Ring[T]) Push(item T) {
	tail := (r.head + r.size) % len(r.items)
	r.items[tail] = item
	if r.size < len(r.items) {
		r.size++
		return
	}
	r.head = (r.head + 1) % len(r.items)
}

// Len returns the number of stored items.
func (r *Ring[T]) Len() int {
	return r.size
}

// Cap returns the fixed capacity.
func (r *Ring[T]) Cap() int {
	return len(r.items)
}

// At returns the item at logical index i, where 0 is the oldest entry.
func (r *Ring[T]) At(i int) T {
	return r.items[(r.head+i)%len(r.items)]
}

// Snapshot returns the items oldest-first.
func (r *Ring[T]) Snapshot() []T {
	out := make([]T, 0, r.size)
	for i := 0; i < r.size; i++ {
		out = append(out, r.At(i))
	}
	return out
}

// Recent returns up to limit items, most recent first.
func (r *Ring[T]) Recent(limit int) []T {
	if limit <= 0 || limit > r.size {
		limit = r.size
	}
	out := make([]T, 0, limit)
	for i := r.size - 1; i >= r.size-limit; i-- {
		out = append(out, r.At(i))
	}
	return out
}

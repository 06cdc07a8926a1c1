package session

// Ring is a fixed-size circular buffer. Once full, each Push overwrites the
// oldest element. It is not safe for concurrent use; callers hold a lock.
type Ring[T any] struct {
	buf  []T
	size int
	head int // write position
	tail int // read position
	full bool
}

// NewRing creates a ring holding at most size elements.
func NewRing[T any](size int) *Ring[T] {
	if size <= 0 {
		size = DefaultMaxTurns
	}
	return &Ring[T]{
		buf:  make([]T, size),
		size: size,
	}
}

// Push appends v, evicting the oldest element when the ring is full.
func (r *Ring[T]) Push(v T) {
	if r.full {
		r.tail = (r.tail + 1) % r.size
	}
	r.buf[r.head] = v
	r.head = (r.head + 1) % r.size
	if r.head == r.tail {
		r.full = true
	}
}

// Items returns the elements oldest first in a new slice.
func (r *Ring[T]) Items() []T {
	n := r.Len()
	out := make([]T, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, r.buf[(r.tail+i)%r.size])
	}
	return out
}

// Len returns the number of stored elements.
func (r *Ring[T]) Len() int {
	switch {
	case r.full:
		return r.size
	case r.head >= r.tail:
		return r.head - r.tail
	default:
		return (r.size - r.tail) + r.head
	}
}

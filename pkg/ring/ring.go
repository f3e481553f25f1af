// Package ring provides a fixed-capacity buffer that evicts its oldest
// element once full.
package ring

type Buffer[T any] struct {
	items []T
	head  int // index of the oldest element
	size  int
}

func New[T any](capacity int) *Buffer[T] {
	if capacity < 1 {
		capacity = 1
	}
	return &Buffer[T]{items: make([]T, capacity)}
}

func (b *Buffer[T]) Cap() int { return len(b.items) }

func (b *Buffer[T]) Len() int { return b.size }

// Push appends v. When the buffer is full the oldest element is dropped and
// returned with evicted=true.
func (b *Buffer[T]) Push(v T) (old T, evicted bool) {
	if b.size < len(b.items) {
		b.items[(b.head+b.size)%len(b.items)] = v
		b.size++
		return old, false
	}

	old = b.items[b.head]
	b.items[b.head] = v
	b.head = (b.head + 1) % len(b.items)
	return old, true
}

// Last returns up to n most recent elements, oldest first.
func (b *Buffer[T]) Last(n int) []T {
	if n > b.size {
		n = b.size
	}
	if n <= 0 {
		return []T{}
	}

	out := make([]T, n)
	start := b.size - n
	for i := 0; i < n; i++ {
		out[i] = b.items[(b.head+start+i)%len(b.items)]
	}
	return out
}

// Snapshot copies every element, oldest first.
func (b *Buffer[T]) Snapshot() []T {
	return b.Last(b.size)
}

func (b *Buffer[T]) Newest() (v T, ok bool) {
	if b.size == 0 {
		return v, false
	}
	return b.items[(b.head+b.size-1)%len(b.items)], true
}

func (b *Buffer[T]) Reset() {
	var zero T
	for i := range b.items {
		b.items[i] = zero
	}
	b.head = 0
	b.size = 0
}

// ABOUTME: Lock-free single-producer single-consumer byte ring buffer
// ABOUTME: Backs each mixer segment so the device callback never takes a lock
package ring

import "sync/atomic"

// Buffer is a fixed-capacity byte ring. Exactly one goroutine may call Push
// and exactly one (possibly different) goroutine may call Pop.
type Buffer struct {
	data []byte
	size uint64

	// Monotonic byte counters; positions are taken modulo size.
	written atomic.Uint64
	read    atomic.Uint64
}

// New creates a ring buffer with the given capacity in bytes
func New(capacity int) *Buffer {
	if capacity < 1 {
		capacity = 1
	}
	return &Buffer{
		data: make([]byte, capacity),
		size: uint64(capacity),
	}
}

// Push copies as much of p as fits and returns the number of bytes written
func (b *Buffer) Push(p []byte) int {
	w := b.written.Load()
	r := b.read.Load()
	free := b.size - (w - r)

	n := uint64(len(p))
	if n > free {
		n = free
	}
	if n == 0 {
		return 0
	}

	start := w % b.size
	first := copy(b.data[start:], p[:n])
	if uint64(first) < n {
		copy(b.data, p[first:n])
	}

	b.written.Store(w + n)
	return int(n)
}

// Pop copies up to len(p) buffered bytes into p and returns the count
func (b *Buffer) Pop(p []byte) int {
	r := b.read.Load()
	w := b.written.Load()
	avail := w - r

	n := uint64(len(p))
	if n > avail {
		n = avail
	}
	if n == 0 {
		return 0
	}

	start := r % b.size
	end := start + n
	if end <= b.size {
		copy(p, b.data[start:end])
	} else {
		first := copy(p, b.data[start:])
		copy(p[first:n], b.data[:end-b.size])
	}

	b.read.Store(r + n)
	return int(n)
}

// Len returns the number of buffered bytes
func (b *Buffer) Len() int {
	return int(b.written.Load() - b.read.Load())
}

// Free returns the number of bytes that can still be pushed
func (b *Buffer) Free() int {
	return int(b.size) - b.Len()
}

// Cap returns the capacity in bytes
func (b *Buffer) Cap() int {
	return int(b.size)
}

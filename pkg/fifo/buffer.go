package fifo

import "github.com/golang/glog"

// DefaultCapacity is the capacity of buffers used for outbound frames.
const DefaultCapacity = 256

// Buffer is a fixed capacity byte ring.
//
// Buffer is not safe for concurrent use. Callers sharing a Buffer between
// producers and a consumer must hold their own lock around every sequence
// which must stay atomic, e.g. Ensure followed by the pushes of one entry.
//
// Overflow is lossy: a push which does not fit flushes the whole buffer and
// the data is dropped.
type Buffer struct {
	data  []byte
	head  int
	tail  int
	count int
}

// New creates a Buffer with capacity bytes.
func New(capacity int) *Buffer {
	return &Buffer{data: make([]byte, capacity)}
}

// Cap returns the capacity.
func (b *Buffer) Cap() int {
	return len(b.data)
}

// Size returns the number of bytes stored.
func (b *Buffer) Size() int {
	return b.count
}

// Flush drops all content.
func (b *Buffer) Flush() {
	b.head, b.tail, b.count = 0, 0, 0
}

// Push appends one byte. When the buffer is full it is flushed and the byte
// is dropped.
func (b *Buffer) Push(v byte) bool {
	if b.count >= len(b.data) {
		glog.Warningf("fifo: buffer full, flushing %d bytes", b.count)
		b.Flush()
		return false
	}
	b.data[b.tail] = v
	b.tail = (b.tail + 1) % len(b.data)
	b.count++
	return true
}

// PushBytes appends p entirely or, when p does not fit, flushes the buffer
// and drops p.
func (b *Buffer) PushBytes(p []byte) bool {
	if b.count+len(p) > len(b.data) {
		glog.Warningf("fifo: %d bytes do not fit, flushing %d bytes", len(p), b.count)
		b.Flush()
		return false
	}
	for _, v := range p {
		b.data[b.tail] = v
		b.tail = (b.tail + 1) % len(b.data)
	}
	b.count += len(p)
	return true
}

// Pop removes and returns the oldest byte, 0 when empty.
func (b *Buffer) Pop() byte {
	if b.count == 0 {
		return 0
	}
	v := b.data[b.head]
	b.head = (b.head + 1) % len(b.data)
	b.count--
	return v
}

// PopBytes fills dst with the oldest bytes. If fewer than len(dst) bytes are
// stored the buffer is flushed and false is returned.
func (b *Buffer) PopBytes(dst []byte) bool {
	if b.count < len(dst) {
		glog.Warningf("fifo: underrun popping %d of %d bytes, flushing", len(dst), b.count)
		b.Flush()
		return false
	}
	for i := range dst {
		dst[i] = b.data[b.head]
		b.head = (b.head + 1) % len(b.data)
	}
	b.count -= len(dst)
	return true
}

// Peek returns the oldest byte without removing it, 0 when empty.
func (b *Buffer) Peek() byte {
	if b.count == 0 {
		return 0
	}
	return b.data[b.head]
}

// Available tells whether n more bytes fit.
func (b *Buffer) Available(n int) bool {
	return b.count+n <= len(b.data)
}

// Ensure evicts whole entries from the front until n bytes are free.
// It must only be used on buffers holding length-prefixed entries,
// i.e. each entry is one length byte followed by that many bytes.
// It returns false if n exceeds the capacity.
func (b *Buffer) Ensure(n int) bool {
	if n > len(b.data) {
		return false
	}
	for !b.Available(n) {
		l := int(b.Pop())
		if l > b.count {
			b.Flush()
			break
		}
		b.head = (b.head + l) % len(b.data)
		b.count -= l
	}
	return true
}

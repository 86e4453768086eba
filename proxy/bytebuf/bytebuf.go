// Copyright (c) 2025 the batproxy contributors
// released under the MIT license

// Package bytebuf provides the append-only byte accumulator backing
// tag-body assembly and rendered output.
package bytebuf

// Buffer is a growable byte accumulator. The zero value is empty and
// ready to use. Buffers only append and clear; there is no removal or
// random-access mutation.
type Buffer struct {
	data []byte
}

const initialCapacity = 64

// New returns an empty buffer with a small preallocated capacity.
func New() *Buffer {
	return &Buffer{data: make([]byte, 0, initialCapacity)}
}

// grow ensures room for n more bytes, at least doubling the capacity
// so repeated appends stay amortized O(1).
func (b *Buffer) grow(n int) {
	need := len(b.data) + n
	if need <= cap(b.data) {
		return
	}
	newCap := cap(b.data) * 2
	if newCap < initialCapacity {
		newCap = initialCapacity
	}
	for newCap < need {
		newCap *= 2
	}
	grown := make([]byte, len(b.data), newCap)
	copy(grown, b.data)
	b.data = grown
}

// Append copies p onto the end of the buffer.
func (b *Buffer) Append(p []byte) {
	b.grow(len(p))
	b.data = append(b.data, p...)
}

// AppendString copies s onto the end of the buffer.
func (b *Buffer) AppendString(s string) {
	b.grow(len(s))
	b.data = append(b.data, s...)
}

// AppendByte appends the single byte c.
func (b *Buffer) AppendByte(c byte) {
	b.grow(1)
	b.data = append(b.data, c)
}

// AppendBuffer copies the contents of o onto the end of the buffer.
func (b *Buffer) AppendBuffer(o *Buffer) {
	b.Append(o.data)
}

// Clear resets the length to zero, keeping the capacity for reuse.
func (b *Buffer) Clear() {
	b.data = b.data[:0]
}

// Len returns the number of bytes currently held.
func (b *Buffer) Len() int {
	return len(b.data)
}

// Cap returns the current capacity.
func (b *Buffer) Cap() int {
	return cap(b.data)
}

// Bytes returns the live contents; the slice is only valid until the
// next mutation.
func (b *Buffer) Bytes() []byte {
	return b.data
}

// String returns a copy of the contents.
func (b *Buffer) String() string {
	return string(b.data)
}

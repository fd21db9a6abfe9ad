package packet

import "fmt"

// Buffer is a chain of byte segments. Stages prepend and trim headers
// without copying the payload; Bytes flattens on demand.
type Buffer struct {
	segs [][]byte
	n    int
	flat []byte
}

// NewBuffer wraps data as a single segment. data is copied.
func NewBuffer(data []byte) *Buffer {
	b := &Buffer{}
	b.Append(data)
	return b
}

// Len is the total byte count.
func (b *Buffer) Len() int { return b.n }

// Segments is the number of segments in the chain.
func (b *Buffer) Segments() int { return len(b.segs) }

// Prepend adds a copy of data at the front.
func (b *Buffer) Prepend(data []byte) {
	if len(data) == 0 {
		return
	}
	seg := append([]byte(nil), data...)
	b.segs = append([][]byte{seg}, b.segs...)
	b.n += len(seg)
	b.flat = nil
}

// Append adds a copy of data at the end.
func (b *Buffer) Append(data []byte) {
	if len(data) == 0 {
		return
	}
	b.segs = append(b.segs, append([]byte(nil), data...))
	b.n += len(data)
	b.flat = nil
}

// TrimHead removes n bytes from the front.
func (b *Buffer) TrimHead(n int) error {
	if n < 0 || n > b.n {
		return fmt.Errorf("trim head %d of %d bytes", n, b.n)
	}
	b.n -= n
	for n > 0 {
		if len(b.segs[0]) <= n {
			n -= len(b.segs[0])
			b.segs = b.segs[1:]
			continue
		}
		b.segs[0] = b.segs[0][n:]
		n = 0
	}
	b.flat = nil
	return nil
}

// TrimTail removes n bytes from the end.
func (b *Buffer) TrimTail(n int) error {
	if n < 0 || n > b.n {
		return fmt.Errorf("trim tail %d of %d bytes", n, b.n)
	}
	b.n -= n
	for n > 0 {
		last := len(b.segs) - 1
		if len(b.segs[last]) <= n {
			n -= len(b.segs[last])
			b.segs = b.segs[:last]
			continue
		}
		b.segs[last] = b.segs[last][:len(b.segs[last])-n]
		n = 0
	}
	b.flat = nil
	return nil
}

// Bytes returns the contents as one contiguous slice. The slice is cached
// until the next mutation and must not be modified by the caller.
func (b *Buffer) Bytes() []byte {
	if b.flat != nil || b.n == 0 {
		return b.flat
	}
	if len(b.segs) == 1 {
		b.flat = b.segs[0]
		return b.flat
	}
	flat := make([]byte, 0, b.n)
	for _, s := range b.segs {
		flat = append(flat, s...)
	}
	b.segs = [][]byte{flat}
	b.flat = flat
	return flat
}

// Clone deep copies the chain into a single segment.
func (b *Buffer) Clone() *Buffer {
	return NewBuffer(b.Bytes())
}

// Package bitfield reads and writes bit ranges of packed bus words.
//
// Words are ordered least significant first: bit 0 is bit 0 of words[0],
// bit 64 is bit 0 of words[1]. A Field may straddle a word boundary.
package bitfield

import (
	"fmt"
	"sort"
)

// Field is the bit range [Lo, Lo+Width).
type Field struct {
	Name  string
	Lo    uint
	Width uint
}

// F describes bits hi..lo inclusive, so hi - lo + 1 bits total.
func F(name string, hi, lo uint) Field {
	if hi < lo {
		panic(fmt.Errorf("bitfield %s: hi %d < lo %d", name, hi, lo))
	}
	if hi-lo+1 > 64 {
		panic(fmt.Errorf("bitfield %s: more than 64 bits", name))
	}
	return Field{Name: name, Lo: lo, Width: hi - lo + 1}
}

// Bit describes the single bit i.
func Bit(name string, i uint) Field { return F(name, i, i) }

// Hi is the index of the most significant bit of the field.
func (f Field) Hi() uint { return f.Lo + f.Width - 1 }

// Max is the largest value the field can hold.
func (f Field) Max() uint64 { return uint64(1)<<f.Width - 1 }

// Fits reports whether v can be stored without truncation.
func (f Field) Fits(v uint64) bool { return v <= f.Max() }

// Get extracts the field from words.
func (f Field) Get(words []uint64) uint64 {
	var r uint64
	i, left, done := f.Lo, f.Width, uint(0)
	for left > 0 {
		wi, bi := i/64, i%64
		n := 64 - bi
		if n > left {
			n = left
		}
		mask := uint64(1)<<n - 1
		r |= ((words[wi] >> bi) & mask) << done
		done += n
		left -= n
		i += n
	}
	return r
}

// Set stores v into the field, discarding bits above Width.
func (f Field) Set(words []uint64, v uint64) {
	i, left, done := f.Lo, f.Width, uint(0)
	for left > 0 {
		wi, bi := i/64, i%64
		n := 64 - bi
		if n > left {
			n = left
		}
		mask := uint64(1)<<n - 1
		words[wi] = words[wi]&^(mask<<bi) | ((v>>done)&mask)<<bi
		done += n
		left -= n
		i += n
	}
}

// GetBool extracts a one bit field.
func (f Field) GetBool(words []uint64) bool { return f.Get(words) != 0 }

// SetBool stores a one bit field.
func (f Field) SetBool(words []uint64, v bool) {
	var x uint64
	if v {
		x = 1
	}
	f.Set(words, x)
}

// Words returns the number of 64 bit words needed for nBits.
func Words(nBits uint) int { return int((nBits + 63) / 64) }

// Layout is the set of fields packed into one bus word group.
type Layout struct {
	Name   string
	Bits   uint
	Fields []Field
}

// NewLayout validates that fields fit in bits and do not overlap.
func NewLayout(name string, bits uint, fields ...Field) (*Layout, error) {
	sorted := append([]Field(nil), fields...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Lo < sorted[j].Lo })
	for i, f := range sorted {
		if f.Width == 0 {
			return nil, fmt.Errorf("layout %s: field %s has zero width", name, f.Name)
		}
		if f.Hi() >= bits {
			return nil, fmt.Errorf("layout %s: field %s [%d:%d] exceeds %d bits", name, f.Name, f.Hi(), f.Lo, bits)
		}
		if i > 0 && sorted[i-1].Hi() >= f.Lo {
			return nil, fmt.Errorf("layout %s: field %s overlaps %s", name, f.Name, sorted[i-1].Name)
		}
	}
	return &Layout{Name: name, Bits: bits, Fields: fields}, nil
}

// MustLayout is NewLayout for package level layout tables.
func MustLayout(name string, bits uint, fields ...Field) *Layout {
	l, err := NewLayout(name, bits, fields...)
	if err != nil {
		panic(err)
	}
	return l
}

// Words is the word count of the layout.
func (l *Layout) Words() int { return Words(l.Bits) }

// Alloc returns a zeroed word slice sized for the layout.
func (l *Layout) Alloc() []uint64 { return make([]uint64, l.Words()) }

// Package source reads raw frames from capture files and text dumps.
package source

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"
)

// Frame is one raw packet read from a source.
type Frame struct {
	Data      []byte
	Timestamp time.Time
	// Index counts frames from 1 within the source.
	Index int
}

// Source yields frames until io.EOF.
type Source interface {
	Name() string
	Read() (Frame, error)
	Close() error
}

// Open picks a reader by file extension: .pcap, .pcapng and .cap are
// capture files, anything else is read as hex text.
func Open(path string) (Source, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".pcap", ".pcapng", ".cap":
		return OpenPcap(path)
	default:
		return OpenHex(path)
	}
}

// Slice serves frames from memory.
type Slice struct {
	name   string
	frames [][]byte
	next   int
}

// FromBytes returns a source over the given frames.
func FromBytes(name string, frames ...[]byte) *Slice {
	return &Slice{name: name, frames: frames}
}

func (s *Slice) Name() string { return s.name }

func (s *Slice) Read() (Frame, error) {
	if s.next >= len(s.frames) {
		return Frame{}, io.EOF
	}
	s.next++
	return Frame{Data: s.frames[s.next-1], Timestamp: time.Now(), Index: s.next}, nil
}

func (s *Slice) Close() error { return nil }

// ReadAll drains src.
func ReadAll(src Source) ([]Frame, error) {
	var out []Frame
	for {
		f, err := src.Read()
		if err == io.EOF {
			return out, nil
		}
		if err != nil {
			return out, fmt.Errorf("%s frame %d: %w", src.Name(), len(out)+1, err)
		}
		out = append(out, f)
	}
}

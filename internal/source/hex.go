package source

import (
	"bufio"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"strings"
	"time"
)

// Hex reads one frame per line of hex text. Blank lines and lines
// starting with # are skipped; spaces, colons and a 0x prefix are ignored.
type Hex struct {
	name  string
	c     io.Closer
	sc    *bufio.Scanner
	line  int
	count int
}

// OpenHex opens a hex dump file.
func OpenHex(path string) (*Hex, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open hex file %s: %w", path, err)
	}
	h := NewHex(path, f)
	h.c = f
	return h, nil
}

// NewHex reads hex frames from r.
func NewHex(name string, r io.Reader) *Hex {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)
	return &Hex{name: name, sc: sc}
}

func (h *Hex) Name() string { return h.name }

func (h *Hex) Read() (Frame, error) {
	for h.sc.Scan() {
		h.line++
		s := strings.TrimSpace(h.sc.Text())
		if s == "" || strings.HasPrefix(s, "#") {
			continue
		}
		data, err := DecodeHex(s)
		if err != nil {
			return Frame{}, fmt.Errorf("%s:%d: %w", h.name, h.line, err)
		}
		h.count++
		return Frame{Data: data, Timestamp: time.Now(), Index: h.count}, nil
	}
	if err := h.sc.Err(); err != nil {
		return Frame{}, err
	}
	return Frame{}, io.EOF
}

func (h *Hex) Close() error {
	if h.c != nil {
		return h.c.Close()
	}
	return nil
}

var hexStrip = strings.NewReplacer(" ", "", ":", "", "\t", "", "-", "")

// DecodeHex parses a hex string such as "00:11:22 33" or "0x0011".
func DecodeHex(s string) ([]byte, error) {
	s = strings.TrimPrefix(strings.TrimPrefix(strings.TrimSpace(s), "0x"), "0X")
	return hex.DecodeString(hexStrip.Replace(s))
}

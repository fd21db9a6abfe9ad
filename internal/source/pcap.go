package source

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"os"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"
)

// pcapngMagic is the section header block type.
const pcapngMagic = 0x0a0d0d0a

type packetReader interface {
	ReadPacketData() ([]byte, gopacket.CaptureInfo, error)
	LinkType() layers.LinkType
}

// Pcap reads a pcap or pcapng capture file. Both formats are handled in
// pure Go so no libpcap is needed.
type Pcap struct {
	path  string
	f     *os.File
	r     packetReader
	count int
}

// OpenPcap opens path, detecting the format from its first block.
func OpenPcap(path string) (*Pcap, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open pcap file %s: %w", path, err)
	}
	br := bufio.NewReader(f)
	magic, err := br.Peek(4)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to read pcap header %s: %w", path, err)
	}

	var r packetReader
	if binary.LittleEndian.Uint32(magic) == pcapngMagic {
		r, err = pcapgo.NewNgReader(br, pcapgo.DefaultNgReaderOptions)
	} else {
		r, err = pcapgo.NewReader(br)
	}
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to open pcap file %s: %w", path, err)
	}
	return &Pcap{path: path, f: f, r: r}, nil
}

func (p *Pcap) Name() string { return p.path }

// LinkType reports the capture's link layer.
func (p *Pcap) LinkType() layers.LinkType { return p.r.LinkType() }

func (p *Pcap) Read() (Frame, error) {
	data, ci, err := p.r.ReadPacketData()
	if err == io.EOF {
		return Frame{}, io.EOF
	}
	if err != nil {
		return Frame{}, fmt.Errorf("failed to read packet: %w", err)
	}
	p.count++
	return Frame{Data: data, Timestamp: ci.Timestamp, Index: p.count}, nil
}

func (p *Pcap) Close() error {
	return p.f.Close()
}

// WritePcap writes frames as an Ethernet pcap file.
func WritePcap(w io.Writer, frames []Frame) error {
	pw := pcapgo.NewWriter(w)
	if err := pw.WriteFileHeader(65536, layers.LinkTypeEthernet); err != nil {
		return err
	}
	for _, f := range frames {
		ci := gopacket.CaptureInfo{Timestamp: f.Timestamp, CaptureLength: len(f.Data), Length: len(f.Data)}
		if err := pw.WritePacket(ci, f.Data); err != nil {
			return err
		}
	}
	return nil
}

package parser

import (
	"encoding/binary"
	"net"
	"testing"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"firestige.xyz/parsim/internal/core"
)

func ipv4Header(t testing.TB, tos uint8) []byte {
	t.Helper()
	ip := &layers.IPv4{
		Version:  4,
		IHL:      5,
		TOS:      tos,
		Id:       0x1c46,
		TTL:      64,
		Protocol: layers.IPProtocolUDP,
		SrcIP:    net.IP{10, 0, 0, 1},
		DstIP:    net.IP{192, 168, 1, 200},
	}
	buf := gopacket.NewSerializeBuffer()
	opts := gopacket.SerializeOptions{FixLengths: true, ComputeChecksums: true}
	require.NoError(t, gopacket.SerializeLayers(buf, opts, ip, gopacket.Payload("hello")))
	return append([]byte(nil), buf.Bytes()[:20]...)
}

func TestChecksumIPv4(t *testing.T) {
	hdr := ipv4Header(t, 0)
	want := binary.BigEndian.Uint16(hdr[10:12])

	zeroed := append([]byte(nil), hdr...)
	zeroed[10], zeroed[11] = 0, 0

	row := &ChecksumCtrlRow{Mask: 1<<20 - 1, Start: true, End: true}
	sum, err := Accumulate(0xabcd, zeroed, row)
	require.NoError(t, err)
	assert.Equal(t, want, Finalize(sum, row))

	t.Run("verify", func(t *testing.T) {
		sum, err := Accumulate(0, hdr, row)
		require.NoError(t, err)
		assert.Equal(t, uint16(0), Finalize(sum, row))

		zr := *row
		zr.ZerosAsOnes = true
		assert.Equal(t, uint16(0xffff), Finalize(sum, &zr))
	})

	t.Run("two rows", func(t *testing.T) {
		first := &ChecksumCtrlRow{Mask: 1<<10 - 1, Start: true}
		last := &ChecksumCtrlRow{Mask: (1<<20 - 1) &^ (1<<12 - 1), End: true}
		sum, err := Accumulate(0x5555, hdr, first)
		require.NoError(t, err)
		sum, err = Accumulate(sum, hdr, last)
		require.NoError(t, err)
		assert.Equal(t, want, Finalize(sum, last))
	})
}

func TestChecksumLaneControls(t *testing.T) {
	buf := []byte{0x12, 0x34, 0x56, 0x78}
	tests := []struct {
		name string
		row  ChecksumCtrlRow
		want uint16
	}{
		{"halfword", ChecksumCtrlRow{Mask: 0b11}, 0x1234},
		{"swap", ChecksumCtrlRow{Mask: 0b11, Swap: 0b1}, 0x3412},
		{"shr", ChecksumCtrlRow{Mask: 0b11, Shr: true}, 0x0012},
		{"low byte only", ChecksumCtrlRow{Mask: 0b10}, 0x0034},
		{"high byte only", ChecksumCtrlRow{Mask: 0b0100}, 0x5600},
		{"swap second halfword", ChecksumCtrlRow{Mask: 0b1100, Swap: 0b10}, 0x7856},
		{"add", ChecksumCtrlRow{Add: 0x1234}, 0x1234},
		{"add swapped", ChecksumCtrlRow{Add: 0x1234, Swap: 1 << 16}, 0x3412},
		{"carry", ChecksumCtrlRow{Add: 0xffff, Mask: 0b11}, 0x1234},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sum, err := Accumulate(0, buf, &tt.row)
			require.NoError(t, err)
			assert.Equal(t, tt.want, sum)
		})
	}
}

func TestChecksumStartClears(t *testing.T) {
	sum, err := Accumulate(0x1111, []byte{0, 1}, &ChecksumCtrlRow{Mask: 0b11})
	require.NoError(t, err)
	assert.Equal(t, uint16(0x1112), sum)

	sum, err = Accumulate(0x1111, []byte{0, 1}, &ChecksumCtrlRow{Mask: 0b11, Start: true})
	require.NoError(t, err)
	assert.Equal(t, uint16(0x0001), sum)
}

func TestChecksumOutOfBounds(t *testing.T) {
	_, err := Accumulate(0, []byte{1, 2, 3}, &ChecksumCtrlRow{Mask: 0b1000})
	assert.ErrorIs(t, err, core.ErrOutOfBoundsRead)
}

func TestOnesAdd(t *testing.T) {
	assert.Equal(t, uint16(1), onesAdd(0xffff, 1))
	assert.Equal(t, uint16(2), onesAdd(0x8000, 0x8001))
	assert.Equal(t, uint16(0xffff), onesAdd(0xfffe, 1))
}

func TestZerosAsOnesNeverZero(t *testing.T) {
	row := &ChecksumCtrlRow{End: true, ZerosAsOnes: true}
	for s := 0; s <= 0xffff; s++ {
		if Finalize(uint16(s), row) == 0 {
			t.Fatalf("sum %#04x finalized to zero", s)
		}
	}
}

func TestChecksumWritePosition(t *testing.T) {
	phv := core.NewPHV()
	row := &ChecksumCtrlRow{Dst: 40}
	require.NoError(t, row.write(phv, 0xbeef))
	v, _ := phv.Get(40)
	assert.Equal(t, uint32(0xbeef), v)
	assert.Equal(t, uint8(16), phv.Width(40))

	row = &ChecksumCtrlRow{Dst: 41, ZerosAsOnesPos: 16}
	require.NoError(t, row.write(phv, 0xffff))
	v, _ = phv.Get(41)
	assert.Equal(t, uint32(0xffff0000), v)
	assert.Equal(t, uint8(32), phv.Width(41))
}

func TestChecksumWriteKeepsOtherHalf(t *testing.T) {
	phv := core.NewPHV()
	require.NoError(t, phv.Write(6, 32, 0xaabb0800))
	row := &ChecksumCtrlRow{Dst: 6, ZerosAsOnesPos: 16}
	require.NoError(t, row.write(phv, 0xffee))
	v, _ := phv.Get(6)
	assert.Equal(t, uint32(0xffee0800), v)
	assert.Equal(t, uint8(32), phv.Width(6))

	// The low slice of a 32-bit container keeps the container width.
	row = &ChecksumCtrlRow{Dst: 6}
	require.NoError(t, row.write(phv, 0x1234))
	v, _ = phv.Get(6)
	assert.Equal(t, uint32(0xffee1234), v)
	assert.Equal(t, uint8(32), phv.Width(6))

	// A narrower container is widened to hold the slice.
	require.NoError(t, phv.Write(7, 8, 0x5a))
	row = &ChecksumCtrlRow{Dst: 7, ZerosAsOnesPos: 16}
	require.NoError(t, row.write(phv, 0xbeef))
	v, _ = phv.Get(7)
	assert.Equal(t, uint32(0xbeef005a), v)
	assert.Equal(t, uint8(32), phv.Width(7))
}

func TestChecksumResultValid(t *testing.T) {
	tests := []struct {
		name string
		res  ChecksumResult
		want bool
	}{
		{"zero", ChecksumResult{Value: 0}, true},
		{"mismatch", ChecksumResult{Value: 0x1234}, false},
		{"all ones without flag", ChecksumResult{Value: 0xffff}, false},
		{"all ones with flag", ChecksumResult{Value: 0xffff, ZerosAsOnes: true}, true},
		{"mismatch with flag", ChecksumResult{Value: 0x00ff, ZerosAsOnes: true}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.res.Valid())
		})
	}

	// A correct header verified by a zeros-as-ones row still reads as valid.
	hdr := ipv4Header(t, 0)
	row := &ChecksumCtrlRow{Mask: 0xfffff, Start: true, End: true, ZerosAsOnes: true}
	sum, err := Accumulate(0, hdr, row)
	require.NoError(t, err)
	v := Finalize(sum, row)
	assert.Equal(t, uint16(0xffff), v)
	assert.True(t, ChecksumResult{Value: v, ZerosAsOnes: true}.Valid())
}

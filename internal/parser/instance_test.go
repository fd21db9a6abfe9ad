package parser

import (
	"encoding/binary"
	"io"
	"log/slog"
	"math/rand"
	"net"
	"sync"
	"testing"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"firestige.xyz/parsim/internal/core"
	"firestige.xyz/parsim/internal/packet"
)

// ethTables has one row matching EtherType 0x0800 in state 0 that copies
// the EtherType into container 5 and finishes.
func ethTables() *Tables {
	t := &Tables{DefaultOffsets: Offsets{Lookup16: 12}}
	t.Tcam[0] = TcamRow{
		Valid: true,
		Value: TcamWord{Lookup16: 0x0800},
		Mask:  TcamWord{Lookup16: 0xffff, State: 0xff},
	}
	t.Ea[0] = EaRow{Done: true, ShiftAmt: 14}
	t.Action[0].Extract16[0] = Lane{En: true, Src: 12, Dst: 5}
	return t
}

func ethHeader(etherType uint16) []byte {
	b := []byte{
		0x00, 0x11, 0x22, 0x33, 0x44, 0x55,
		0x66, 0x77, 0x88, 0x99, 0xaa, 0xbb,
		0, 0,
	}
	binary.BigEndian.PutUint16(b[12:], etherType)
	return b
}

func newInstance(t testing.TB, tbl *Tables, opts ...Option) *Instance {
	t.Helper()
	opts = append([]Option{WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))}, opts...)
	in := NewInstance("ingress0", core.Ingress, 0, opts...)
	require.NoError(t, in.Load(tbl))
	return in
}

func TestParseEthernet(t *testing.T) {
	in := newInstance(t, ethTables())
	pkt := packet.New(packet.ID(1), ethHeader(0x0800), nil)

	res := in.Parse(pkt)
	require.NoError(t, res.Err)
	assert.Equal(t, core.OutcomeSuccess, res.Outcome)
	assert.Equal(t, 1, res.Iterations)
	assert.Equal(t, 14, res.Cursor)

	view := pkt.Ingress()
	v, ok := view.PHV.Get(5)
	require.True(t, ok)
	assert.Equal(t, uint32(0x0800), v)
	assert.Equal(t, uint8(16), view.PHV.Width(5))
	assert.Equal(t, []uint16{5}, view.PHV.Written())
	assert.Equal(t, 14, view.ParsableHdrLen)
	assert.Equal(t, 14, view.OrigHdrLen)
	assert.Equal(t, core.OutcomeSuccess, view.Outcome)
	assert.NoError(t, view.ParseErr)
}

func TestParseNoMatchLeavesPHV(t *testing.T) {
	in := newInstance(t, ethTables())
	pkt := packet.New(packet.ID(2), ethHeader(0x86dd), nil)
	pkt.Ingress().PHV = core.NewPHV()
	require.NoError(t, pkt.Ingress().PHV.Write(7, 8, 0x11))
	before := pkt.Ingress().PHV.Clone()

	res := in.Parse(pkt)
	assert.Equal(t, core.OutcomeFailed, res.Outcome)
	assert.ErrorIs(t, res.Err, core.ErrNoMatch)
	assert.Equal(t, 1, res.Iterations)
	assert.Equal(t, 0, res.Cursor)
	assert.True(t, before.Equal(pkt.Ingress().PHV))
	assert.Equal(t, core.OutcomeFailed, pkt.Ingress().Outcome)
	assert.ErrorIs(t, pkt.Ingress().ParseErr, core.ErrNoMatch)
}

func TestParseWithoutConfig(t *testing.T) {
	in := NewInstance("egress1", core.Egress, 1)
	res := in.Parse(packet.New(packet.ID(3), ethHeader(0x0800), nil))
	assert.Equal(t, core.OutcomeFailed, res.Outcome)
	assert.ErrorIs(t, res.Err, core.ErrNoConfig)
}

func TestParseBudgetAborts(t *testing.T) {
	tbl := &Tables{MaxIterations: 10}
	tbl.Tcam[0] = TcamRow{Valid: true}
	in := newInstance(t, tbl)

	res := in.Parse(packet.New(packet.ID(4), ethHeader(0x0800), nil))
	assert.Equal(t, core.OutcomeAborted, res.Outcome)
	assert.ErrorIs(t, res.Err, core.ErrLoopBudgetExceeded)
	assert.Equal(t, 10, res.Iterations)

	tbl.MaxIterations = 0
	in = newInstance(t, tbl)
	res = in.Parse(packet.New(packet.ID(4), ethHeader(0x0800), nil))
	assert.Equal(t, DefaultMaxIterations, res.Iterations)
}

func TestParseOutOfBounds(t *testing.T) {
	t.Run("extract", func(t *testing.T) {
		tbl := ethTables()
		tbl.Action[0].Extract32[0] = Lane{En: true, Src: 12, Dst: 6}
		res := newInstance(t, tbl).Parse(packet.New(packet.ID(5), ethHeader(0x0800), nil))
		assert.Equal(t, core.OutcomeFailed, res.Outcome)
		assert.ErrorIs(t, res.Err, core.ErrOutOfBoundsRead)
	})

	t.Run("buf_req", func(t *testing.T) {
		tbl := ethTables()
		tbl.Ea[0] = EaRow{ShiftAmt: 14, BufReq: 20, NxtState: 1}
		res := newInstance(t, tbl).Parse(packet.New(packet.ID(5), ethHeader(0x0800), nil))
		assert.Equal(t, core.OutcomeFailed, res.Outcome)
		assert.ErrorIs(t, res.Err, core.ErrOutOfBoundsRead)
		assert.Equal(t, 14, res.Cursor)
	})

	t.Run("window after advance", func(t *testing.T) {
		tbl := ethTables()
		tbl.Ea[0] = EaRow{ShiftAmt: 14, NxtState: 1}
		res := newInstance(t, tbl).Parse(packet.New(packet.ID(5), ethHeader(0x0800), nil))
		assert.Equal(t, core.OutcomeFailed, res.Outcome)
		assert.ErrorIs(t, res.Err, core.ErrOutOfBoundsRead)
		assert.Equal(t, 2, res.Iterations)
	})
}

// ethIPv4Tables parses Ethernet then an option-less IPv4 header, pulling
// the addresses and protocol, verifying the header checksum and taking the
// priority from the IP precedence bits.
func ethIPv4Tables() *Tables {
	t := ethTables()
	t.Ea[0] = EaRow{ShiftAmt: 14, NxtState: 1, LdLookup16: true, LookupOffset16: 0}

	t.Tcam[1] = TcamRow{
		Valid: true,
		Value: TcamWord{Lookup16: 0x4500, State: 1},
		Mask:  TcamWord{Lookup16: 0xff00, State: 0xff},
	}
	t.Ea[1] = EaRow{Done: true, ShiftAmt: 20}
	a := &t.Action[1]
	a.Extract32[0] = Lane{En: true, Src: 12, Dst: 20}
	a.Extract32[1] = Lane{En: true, Src: 16, Dst: 21}
	a.Extract8[0] = Lane{En: true, Src: 9, Dst: 30}
	a.Checksum[0] = ChecksumRef{En: true, Addr: 0}
	a.PriUpdType = PriUpdWindow
	a.PriUpdSrc = 1
	a.PriUpdEnShr = 5
	a.PriUpdValMask = 7

	t.Checksum[0][0] = ChecksumCtrlRow{Mask: 1<<20 - 1, Start: true, End: true, Dst: 40}
	return t
}

func ethIPv4Packet(t testing.TB) []byte {
	t.Helper()
	eth := &layers.Ethernet{
		SrcMAC:       net.HardwareAddr{0x66, 0x77, 0x88, 0x99, 0xaa, 0xbb},
		DstMAC:       net.HardwareAddr{0x00, 0x11, 0x22, 0x33, 0x44, 0x55},
		EthernetType: layers.EthernetTypeIPv4,
	}
	ip := &layers.IPv4{
		Version: 4, IHL: 5, TOS: 0xb8, TTL: 64,
		Protocol: layers.IPProtocolUDP,
		SrcIP:    net.IP{10, 0, 0, 1},
		DstIP:    net.IP{192, 168, 1, 200},
	}
	udp := &layers.UDP{SrcPort: 5060, DstPort: 5060}
	require.NoError(t, udp.SetNetworkLayerForChecksum(ip))
	buf := gopacket.NewSerializeBuffer()
	opts := gopacket.SerializeOptions{FixLengths: true, ComputeChecksums: true}
	require.NoError(t, gopacket.SerializeLayers(buf, opts, eth, ip, udp, gopacket.Payload("INVITE")))
	return buf.Bytes()
}

func TestParseEthernetIPv4(t *testing.T) {
	in := newInstance(t, ethIPv4Tables(), WithTrace(true))
	pkt := packet.New(packet.ID(6), ethIPv4Packet(t), nil)

	res := in.Parse(pkt)
	require.NoError(t, res.Err)
	assert.Equal(t, core.OutcomeSuccess, res.Outcome)
	assert.Equal(t, 2, res.Iterations)
	assert.Equal(t, 34, res.Cursor)
	assert.Equal(t, uint8(1), res.FinalState)

	phv := pkt.Ingress().PHV
	assert.Equal(t, map[uint16]uint32{
		5:  0x0800,
		20: 0x0a000001,
		21: 0xc0a801c8,
		30: uint32(layers.IPProtocolUDP),
		40: 0,
	}, phv.Map())

	require.Len(t, res.Checksums, 1)
	assert.Equal(t, ChecksumResult{Unit: 0, Row: 0, Value: 0, Dst: 40}, res.Checksums[0])
	assert.Equal(t, uint8(5), pkt.Priority)

	require.Len(t, res.Trace, 2)
	assert.Equal(t, Step{Iteration: 1, State: 0, Row: 0, Cursor: 0, Key: res.Trace[0].Key}, res.Trace[0])
	assert.Equal(t, 1, res.Trace[1].Row)
	assert.Equal(t, 14, res.Trace[1].Cursor)
	assert.Equal(t, uint8(1), res.Trace[1].State)
}

func TestParseBadIPv4Checksum(t *testing.T) {
	in := newInstance(t, ethIPv4Tables())
	data := ethIPv4Packet(t)
	data[14+8]-- // TTL
	pkt := packet.New(packet.ID(7), data, nil)

	res := in.Parse(pkt)
	require.NoError(t, res.Err)
	require.Len(t, res.Checksums, 1)
	assert.NotZero(t, res.Checksums[0].Value)
}

func TestParseCounterLoop(t *testing.T) {
	tbl := &Tables{}
	// state 0: load 3 and move to 1
	tbl.Tcam[0] = TcamRow{Valid: true, Mask: TcamWord{State: 0xff}}
	tbl.Ea[0] = EaRow{CtrLoad: true, CtrAmtIdx: 3, NxtState: 1, ShiftAmt: 1}
	// state 1, counter zero: done
	tbl.Tcam[1] = TcamRow{Valid: true, Value: TcamWord{State: 1, CtrZero: true}, Mask: TcamWord{State: 0xff, CtrZero: true}}
	tbl.Ea[1] = EaRow{Done: true}
	// state 1: decrement and stay
	tbl.Tcam[2] = TcamRow{Valid: true, Value: TcamWord{State: 1}, Mask: TcamWord{State: 0xff}}
	tbl.Ea[2] = EaRow{CtrAmtIdx: 0xff, NxtState: 1, ShiftAmt: 1}
	in := newInstance(t, tbl, WithTrace(true))

	res := in.Parse(packet.New(packet.ID(8), make([]byte, 16), nil))
	require.NoError(t, res.Err)
	assert.Equal(t, 5, res.Iterations)
	assert.Equal(t, 4, res.Cursor)

	var rows []int
	var ctrs []int8
	for _, s := range res.Trace {
		rows = append(rows, s.Row)
		ctrs = append(ctrs, s.Counter)
	}
	assert.Equal(t, []int{0, 2, 2, 2, 1}, rows)
	assert.Equal(t, []int8{0, 3, 2, 1, 0}, ctrs)
}

func TestParseStateMerge(t *testing.T) {
	// A jump table: the low bits of the matched halfword pick the next state.
	for _, mode := range []MergeMode{MergeSelect, MergeOr} {
		t.Run(mode.String(), func(t *testing.T) {
			tbl := &Tables{Merge: mode}
			tbl.Tcam[0] = TcamRow{Valid: true, Mask: TcamWord{State: 0xff}}
			tbl.Ea[0] = EaRow{NxtState: 0x10, NxtStateMask: 0x03, ShiftAmt: 2}
			for s := 0x10; s < 0x14; s++ {
				tbl.Tcam[s] = TcamRow{Valid: true, Value: TcamWord{State: uint8(s)}, Mask: TcamWord{State: 0xff}}
				tbl.Ea[s] = EaRow{Done: true}
				tbl.Action[s].Extract8[0] = Lane{En: true, Src: 0, Dst: uint16(s)}
			}
			in := newInstance(t, tbl)
			res := in.Parse(packet.New(packet.ID(9), []byte{0xaa, 0x02, 0x77, 0x00}, nil))
			require.NoError(t, res.Err)
			assert.Equal(t, uint8(0x12), res.FinalState)
		})
	}
}

func TestParseTerminates(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for n := 0; n < 200; n++ {
		tbl := &Tables{MaxIterations: 50}
		for i := 0; i < 16; i++ {
			tbl.Tcam[i] = TcamRow{Valid: true, Value: TcamWord{State: uint8(rng.Intn(8))}, Mask: TcamWord{State: 0xff}}
			tbl.Ea[i] = EaRow{NxtState: uint8(rng.Intn(8)), ShiftAmt: uint8(rng.Intn(3)), Done: rng.Intn(4) == 0}
		}
		in := newInstance(t, tbl)
		data := make([]byte, 64)
		rng.Read(data)

		res := in.Parse(packet.New(packet.ID(n), data, nil))
		assert.LessOrEqual(t, res.Iterations, 50)
		assert.Contains(t, []core.Outcome{core.OutcomeSuccess, core.OutcomeFailed, core.OutcomeAborted}, res.Outcome)
		if res.Outcome == core.OutcomeAborted {
			assert.Equal(t, 50, res.Iterations)
		}
	}
}

func TestParseUsesActiveView(t *testing.T) {
	in := newInstance(t, ethTables())
	pkt := packet.New(packet.ID(10), ethHeader(0x0800), nil)
	pkt.SetEgress()

	res := in.Parse(pkt)
	require.NoError(t, res.Err)
	assert.Nil(t, pkt.Ingress().PHV)
	assert.Equal(t, core.OutcomeNone, pkt.Ingress().Outcome)
	assert.Equal(t, core.OutcomeSuccess, pkt.Egress().Outcome)
	v, _ := pkt.Egress().PHV.Get(5)
	assert.Equal(t, uint32(0x0800), v)
}

// versionTables holds a bank per version bit: version 0 writes container
// 1, version 1 writes container 2.
func versionTables() *Tables {
	t := &Tables{}
	t.Tcam[0] = TcamRow{Valid: true, Value: TcamWord{Ver0: true}, Mask: TcamWord{Ver0: true}}
	t.Ea[0] = EaRow{Done: true}
	t.Action[0].Extract8[0] = Lane{En: true, Dst: 1}
	t.Tcam[1] = TcamRow{Valid: true, Value: TcamWord{Ver1: true}, Mask: TcamWord{Ver1: true}}
	t.Ea[1] = EaRow{Done: true}
	t.Action[1].Extract8[0] = Lane{En: true, Dst: 2}
	return t
}

func TestVersionSwitch(t *testing.T) {
	in := newInstance(t, versionTables())
	parse := func() []uint16 {
		pkt := packet.New(packet.ID(11), []byte{1, 2, 3, 4}, nil)
		res := in.Parse(pkt)
		require.NoError(t, res.Err)
		return pkt.Ingress().PHV.Written()
	}

	assert.Equal(t, uint8(0), in.Version())
	assert.Equal(t, []uint16{1}, parse())

	require.NoError(t, in.SetVersion(1))
	assert.Equal(t, []uint16{2}, parse())

	// Load keeps the active version.
	require.NoError(t, in.Load(versionTables()))
	assert.Equal(t, uint8(1), in.Version())

	require.NoError(t, in.Swap(versionTables(), 0))
	assert.Equal(t, []uint16{1}, parse())

	assert.ErrorIs(t, in.SetVersion(2), core.ErrConfigInvalid)
	assert.ErrorIs(t, NewInstance("x", core.Ingress, 0).SetVersion(1), core.ErrNoConfig)
}

func TestLoadRejectsInvalidTables(t *testing.T) {
	in := newInstance(t, ethTables())
	bad := ethTables()
	bad.Ea[0].ShiftAmt = 60
	assert.ErrorIs(t, in.Load(bad), core.ErrConfigInvalid)

	// the previous bank stays active
	res := in.Parse(packet.New(packet.ID(12), ethHeader(0x0800), nil))
	assert.Equal(t, 14, res.Cursor)
}

func TestLoadCopiesTables(t *testing.T) {
	tbl := ethTables()
	in := newInstance(t, tbl)
	tbl.Tcam[0].Valid = false

	res := in.Parse(packet.New(packet.ID(13), ethHeader(0x0800), nil))
	assert.Equal(t, core.OutcomeSuccess, res.Outcome)
}

// Each parse sees one bank even while another goroutine swaps banks.
func TestParseDuringSwap(t *testing.T) {
	bank := func(first, second uint16) *Tables {
		t := &Tables{}
		t.Tcam[0] = TcamRow{Valid: true, Mask: TcamWord{State: 0xff}}
		t.Ea[0] = EaRow{NxtState: 1, ShiftAmt: 1}
		t.Action[0].Extract8[0] = Lane{En: true, Dst: first}
		t.Tcam[1] = TcamRow{Valid: true, Value: TcamWord{State: 1}, Mask: TcamWord{State: 0xff}}
		t.Ea[1] = EaRow{Done: true}
		t.Action[1].Extract8[0] = Lane{En: true, Dst: second}
		return t
	}
	a, b := bank(1, 2), bank(3, 4)
	in := newInstance(t, a)

	var wg sync.WaitGroup
	stop := make(chan struct{})
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; ; i++ {
			select {
			case <-stop:
				return
			default:
			}
			next := a
			if i%2 == 0 {
				next = b
			}
			_ = in.Load(next)
		}
	}()

	for i := 0; i < 2000; i++ {
		pkt := packet.New(packet.ID(i), []byte{9, 9, 9, 9}, nil)
		res := in.Parse(pkt)
		require.NoError(t, res.Err)
		got := pkt.Ingress().PHV.Written()
		if !assert.Contains(t, [][]uint16{{1, 2}, {3, 4}}, got) {
			break
		}
	}
	close(stop)
	wg.Wait()
}

func BenchmarkParse(b *testing.B) {
	in := newInstance(b, ethIPv4Tables())
	data := ethIPv4Packet(b)
	pkt := packet.New(packet.ID(1), data, nil)
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		pkt.Reset()
		in.Parse(pkt)
	}
}

func TestParseChecksumSharesContainerWithLane(t *testing.T) {
	tbl := ethIPv4Tables()
	// The checksum lands in the high half of the container the source
	// address lane just filled.
	tbl.Checksum[0][0] = ChecksumCtrlRow{Mask: 1<<20 - 1, Start: true, End: true, ZerosAsOnes: true, ZerosAsOnesPos: 16, Dst: 20}
	in := newInstance(t, tbl)
	pkt := packet.New(packet.ID(9), ethIPv4Packet(t), nil)

	res := in.Parse(pkt)
	require.NoError(t, res.Err)
	require.Len(t, res.Checksums, 1)
	assert.Equal(t, uint16(0xffff), res.Checksums[0].Value)
	assert.True(t, res.Checksums[0].ZerosAsOnes)
	assert.True(t, res.Checksums[0].Valid())

	v, ok := pkt.Ingress().PHV.Get(20)
	require.True(t, ok)
	assert.Equal(t, uint32(0xffff0001), v)
	assert.Equal(t, uint8(32), pkt.Ingress().PHV.Width(20))
}

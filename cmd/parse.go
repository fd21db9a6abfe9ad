package cmd

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/spf13/cobra"

	"firestige.xyz/parsim/internal/core"
	"firestige.xyz/parsim/internal/packet"
	"firestige.xyz/parsim/internal/parser"
	"firestige.xyz/parsim/internal/report"
	"firestige.xyz/parsim/internal/source"
)

var parseCmd = &cobra.Command{
	Use:   "parse [hex]",
	Short: "Parse one packet on one parser instance",
	Long: `Parse a single packet and print the outcome, checksums and written PHV
containers. The packet is given as a hex argument or, with --file, as the
first frame of a hex or pcap file.

Examples:
  parsim parse -p profile.yaml 001122334455...0800
  parsim parse -p profile.yaml --instance egress0 --trace 0011...
  parsim parse -p profile.yaml --file capture.pcap --decode`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := packetBytes(args, parseOpts.file)
		if err != nil {
			return err
		}
		return runParse(cmd.Context(), data, parseOpts, cmd.OutOrStdout())
	},
}

type parseOptions struct {
	instance string
	file     string
	format   string
	decode   bool
	trace    bool
	version  int
}

var parseOpts parseOptions

func init() {
	parseCmd.Flags().StringVarP(&parseOpts.instance, "instance", "i", "ingress0", "parser instance")
	parseCmd.Flags().StringVarP(&parseOpts.file, "file", "f", "", "read the packet from a hex or pcap file")
	parseCmd.Flags().StringVar(&parseOpts.format, "format", "text", "output format: text or json")
	parseCmd.Flags().BoolVar(&parseOpts.decode, "decode", false, "print a protocol dump of the packet first")
	parseCmd.Flags().BoolVar(&parseOpts.trace, "trace", false, "print every parser iteration")
	parseCmd.Flags().IntVar(&parseOpts.version, "version-bit", -1, "override the active configuration version (0 or 1)")
}

func packetBytes(args []string, file string) ([]byte, error) {
	switch {
	case file != "" && len(args) > 0:
		return nil, fmt.Errorf("give either a hex argument or --file, not both")
	case file != "":
		src, err := source.Open(file)
		if err != nil {
			return nil, err
		}
		defer src.Close()
		f, err := src.Read()
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", file, err)
		}
		return f.Data, nil
	case len(args) == 1:
		return source.DecodeHex(args[0])
	default:
		return nil, fmt.Errorf("no packet: pass hex bytes or --file")
	}
}

func runParse(ctx context.Context, data []byte, opts parseOptions, w io.Writer) error {
	p, err := loadProfile(globalCfg.Sim.Profile)
	if err != nil {
		return err
	}
	ins, err := buildInstances(p, []string{opts.instance}, parser.WithTrace(opts.trace || globalCfg.Sim.Trace))
	if err != nil {
		return err
	}
	in := ins[0]
	if opts.version >= 0 {
		if err := in.SetVersion(uint8(opts.version)); err != nil {
			return err
		}
	}

	if opts.decode {
		fmt.Fprintln(w, gopacket.NewPacket(data, layers.LayerTypeEthernet, gopacket.Default).Dump())
	}

	pkt := packet.New(packet.ID(0).WithBaseID(1), data, nil)
	if in.Gress() == core.Egress {
		pkt.SetEgress()
	}
	res := in.Parse(pkt)

	for _, st := range res.Trace {
		fmt.Fprintf(w, "iter=%d state=0x%02x row=%d cursor=%d ctr=%d key=0x%011x\n",
			st.Iteration, st.State, st.Row, st.Cursor, st.Counter, st.Key)
	}
	console, err := report.NewConsole(w, strings.ToLower(opts.format), true)
	if err != nil {
		return err
	}
	return console.Report(ctx, report.NewRecord(pkt, res, 0, time.Now()))
}

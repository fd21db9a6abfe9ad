package cmd

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"firestige.xyz/parsim/internal/parser"
)

var validateCmd = &cobra.Command{
	Use:   "validate [profile]",
	Short: "Validate a parser profile",
	Long: `Load a parser profile, check every row and print the row counts of each
instance. All invalid rows are reported at once.

Examples:
  parsim validate profile.yaml
  parsim validate -c parsim.yaml`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := globalCfg.Sim.Profile
		if len(args) == 1 {
			path = args[0]
		}
		return runValidate(path, cmd.OutOrStdout())
	},
}

func runValidate(path string, w io.Writer) error {
	p, err := loadProfile(path)
	if err != nil {
		return err
	}
	instances, err := p.Build()
	if err != nil {
		fmt.Fprintf(w, "INVALID: %s\n", path)
		return err
	}
	for _, in := range instances {
		t := in.Tables()
		fmt.Fprintf(w, "VALID: %s (%s pipe %d, version %d): %d tcam row(s), %d checksum row(s)\n",
			in.Name(), in.Gress(), in.Pipe(), in.Version(), len(t.ActiveRows()), checksumRows(t))
	}
	return nil
}

// checksumRows counts checksum rows that carry any configuration.
func checksumRows(t *parser.Tables) int {
	n := 0
	for u := range t.Checksum {
		for _, row := range t.Checksum[u] {
			if row != (parser.ChecksumCtrlRow{}) {
				n++
			}
		}
	}
	return n
}

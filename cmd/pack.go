package cmd

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"firestige.xyz/parsim/internal/parser"
)

var packCmd = &cobra.Command{
	Use:   "pack",
	Short: "Print the packed register words of a parser instance",
	Long: `Print the bus images of every active row of an instance: the TCAM
value/mask pair, the extract-and-advance word and the action words. Configured
checksum rows follow. Words are listed low word first, as a profile's
"words" field expects them.

Examples:
  parsim pack -p profile.yaml --instance ingress0`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := loadProfile(globalCfg.Sim.Profile)
		if err != nil {
			return err
		}
		ins, err := buildInstances(p, []string{packInstance})
		if err != nil {
			return err
		}
		return runPack(ins[0].Tables(), cmd.OutOrStdout())
	},
}

var packInstance string

func init() {
	packCmd.Flags().StringVarP(&packInstance, "instance", "i", "ingress0", "parser instance")
}

func runPack(t *parser.Tables, w io.Writer) error {
	for _, i := range t.ActiveRows() {
		tw := t.Tcam[i].Words()
		if _, err := fmt.Fprintf(w, "tcam[%d]: %s\n", i, hexWords(tw[:])); err != nil {
			return err
		}
		fmt.Fprintf(w, "ea[%d]: %s\n", i, hexWords(t.Ea[i].Pack()))
		fmt.Fprintf(w, "action[%d]: %s\n", i, hexWords(t.Action[i].Pack()))
	}
	for u := range t.Checksum {
		for r, row := range t.Checksum[u] {
			if row == (parser.ChecksumCtrlRow{}) {
				continue
			}
			fmt.Fprintf(w, "checksum[%d][%d]: %s\n", u, r, hexWords(row.Pack()))
		}
	}
	return nil
}

func hexWords(ws []uint64) string {
	parts := make([]string, len(ws))
	for i, x := range ws {
		parts[i] = fmt.Sprintf("%q", fmt.Sprintf("0x%x", x))
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

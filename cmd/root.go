// Package cmd implements CLI commands using cobra framework.
package cmd

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"firestige.xyz/parsim/internal/config"
	"firestige.xyz/parsim/internal/log"
	"firestige.xyz/parsim/internal/parser"
	"firestige.xyz/parsim/internal/profile"
)

var (
	// Global flags
	configFile  string
	profilePath string

	globalCfg *config.GlobalConfig
	logCloser io.Closer
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "parsim",
	Short: "parsim - behavioral model of a switch ASIC header parser",
	Long: `parsim models the programmable header parser of a switch ASIC.
A parser profile loads TCAM, extract-and-advance, action and checksum rows into one
parser instance per ingress and egress lane; packets are then walked through
the match/extract loop exactly as the hardware would, filling the packet
header vector (PHV) and computing checksums.

Commands:
  parse     parse a single packet given as hex
  run       feed a capture file through every lane concurrently
  validate  check a profile and print its row counts
  pack      dump the packed register words of an instance`,
	Version:           "0.1.0",
	SilenceUsage:      true,
	PersistentPreRunE: setup,
	PersistentPostRun: teardown,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "",
		"config file path (defaults apply when empty)")
	rootCmd.PersistentFlags().StringVarP(&profilePath, "profile", "p", "",
		"parser profile path, overrides sim.profile")

	rootCmd.AddCommand(parseCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(packCmd)
}

func setup(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configFile)
	if err != nil {
		return err
	}
	if profilePath != "" {
		cfg.Sim.Profile = profilePath
	}
	closer, err := log.Init(cfg.Log)
	if err != nil {
		return fmt.Errorf("failed to init logging: %w", err)
	}
	globalCfg = cfg
	logCloser = closer
	return nil
}

func teardown(cmd *cobra.Command, args []string) {
	if logCloser != nil {
		logCloser.Close()
	}
}

// loadProfile reads the configured profile.
func loadProfile(path string) (*profile.Profile, error) {
	if path == "" {
		return nil, fmt.Errorf("no parser profile: set sim.profile or pass --profile")
	}
	return profile.Load(path)
}

// buildInstances builds the named instances of p, or all of them when
// names is empty.
func buildInstances(p *profile.Profile, names []string, opts ...parser.Option) ([]*parser.Instance, error) {
	all, err := p.Build(opts...)
	if err != nil {
		return nil, err
	}
	if len(names) == 0 {
		return all, nil
	}
	byName := make(map[string]*parser.Instance, len(all))
	for _, in := range all {
		byName[in.Name()] = in
	}
	out := make([]*parser.Instance, 0, len(names))
	for _, n := range names {
		in, ok := byName[n]
		if !ok {
			return nil, fmt.Errorf("instance %q not in profile", n)
		}
		out = append(out, in)
	}
	slog.Debug("instances selected", "instances", names)
	return out, nil
}

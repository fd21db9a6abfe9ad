package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"firestige.xyz/parsim/internal/config"
	"firestige.xyz/parsim/internal/metrics"
	"firestige.xyz/parsim/internal/parser"
	"firestige.xyz/parsim/internal/report"
	"firestige.xyz/parsim/internal/sim"
	"firestige.xyz/parsim/internal/source"
)

var runCmd = &cobra.Command{
	Use:   "run <capture>",
	Short: "Feed a capture file through every parser lane",
	Long: `Run every configured parser lane concurrently over a pcap, pcapng or hex
file. Results go to the configured reporters (console, Kafka) and metrics
are served while the run lasts.

Signals:
  SIGINT, SIGTERM  stop feeding, drain the lanes and exit
  SIGHUP           reload the parser profile into the running lanes

Examples:
  parsim run -c parsim.yaml capture.pcap
  parsim run -p profile.yaml --handoff capture.pcapng`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Flags().Changed("handoff") {
			globalCfg.Sim.EgressHandoff = runHandoff
		}
		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		return runRun(ctx, globalCfg, args[0], cmd.OutOrStdout(), cmd.ErrOrStderr())
	},
}

var runHandoff bool

func init() {
	runCmd.Flags().BoolVar(&runHandoff, "handoff", false, "send ingress successes to the egress lane of the same pipe")
}

func runRun(ctx context.Context, cfg *config.GlobalConfig, capture string, stdout, stderr io.Writer) error {
	p, err := loadProfile(cfg.Sim.Profile)
	if err != nil {
		return err
	}
	instances, err := buildInstances(p, cfg.Sim.Instances, parser.WithTrace(cfg.Sim.Trace))
	if err != nil {
		return err
	}

	sinks, err := report.New(cfg.Report, stdout)
	if err != nil {
		return fmt.Errorf("failed to create reporters: %w", err)
	}
	defer func() {
		if err := sinks.Close(); err != nil {
			slog.Error("reporter close failed", "error", err)
		}
	}()

	s, err := sim.New(instances, sim.Config{
		QueueDepth:    cfg.Sim.QueueDepth,
		EgressHandoff: cfg.Sim.EgressHandoff,
		Sink:          sinks,
	})
	if err != nil {
		return err
	}

	if cfg.Metrics.Enabled {
		srv := metrics.NewServer(cfg.Metrics.Listen, cfg.Metrics.Path)
		if err := srv.Start(ctx); err != nil {
			return fmt.Errorf("failed to start metrics server: %w", err)
		}
		defer srv.Stop(context.Background())
	}

	src, err := source.Open(capture)
	if err != nil {
		return err
	}
	defer src.Close()

	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)
	done := make(chan struct{})
	defer close(done)
	go reloadLoop(s, cfg.Sim.Profile, hup, done)

	st, err := s.Run(ctx, src)
	if err != nil {
		return err
	}
	return json.NewEncoder(stderr).Encode(st)
}

// reloadLoop re-reads the profile on every signal until done is closed.
func reloadLoop(s *sim.Sim, path string, sig <-chan os.Signal, done <-chan struct{}) {
	for {
		select {
		case <-done:
			return
		case <-sig:
			slog.Info("received reload signal", "profile", path)
			p, err := loadProfile(path)
			if err == nil {
				err = s.Reload(p)
			}
			if err != nil {
				slog.Error("failed to reload profile", "error", err)
				continue
			}
			slog.Info("profile reloaded successfully")
		}
	}
}

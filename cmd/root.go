// Package cmd implements CLI commands using cobra framework.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"firestige.xyz/vdecapture/internal/capture"
	"firestige.xyz/vdecapture/internal/config"
	"firestige.xyz/vdecapture/internal/core"
	"firestige.xyz/vdecapture/internal/log"
	"firestige.xyz/vdecapture/internal/sink"
)

// app carries state shared by the root command and its subcommands.
type app struct {
	configFile string
	cfg        *config.Config
}

// NewRootCmd builds the vdecapture command tree.
func NewRootCmd() *cobra.Command {
	a := &app{}

	rootCmd := &cobra.Command{
		Use:   "vdecapture [flags] VNL OUTFILE",
		Short: "Capture virtual network traffic in pcap format",
		Long: `vdecapture captures the frames flowing over a virtual network link and
writes them to a pcap file.

VNL is the link locator, selected by scheme:
  unix:///PATH or PATH   bind a unix datagram socket, one datagram per frame
  udp://HOST:PORT        bind a UDP socket, one datagram per frame
  pcap:///PATH           replay frames from a capture file
  packet://IFACE         raw AF_PACKET socket on a network interface (Linux)
Driver options go in the query string, e.g. unix:///tmp/cap.sock?rcvbuf=4194304.

OUTFILE is the pathname of the output file, - means standard output.

Capture stops when the link closes, a limit is reached, or on SIGINT/SIGTERM.
SIGHUP closes and reopens OUTFILE so it can be rotated externally.`,
		Example: `  vdecapture unix:///run/vde/cap.sock /var/log/vde.pcap
  vdecapture -c 1000 -s 10485760 udp://0.0.0.0:5000 out.pcap
  vdecapture -a -t 3600 /tmp/cap.sock out.pcap
  vdecapture -q /tmp/cap.sock - | tcpdump -r -`,
		Version:           "0.1.0",
		Args:              cobra.ExactArgs(2),
		SilenceErrors:     true,
		PersistentPreRunE: a.setup,
		PersistentPostRun: func(*cobra.Command, []string) { _ = log.Close() },
		RunE:              a.runCapture,
	}

	flags := rootCmd.Flags()
	flags.Uint64P("count", "c", 0, "max number of captured packets")
	flags.Uint64P("size", "s", 0, "max size of the output file in bytes")
	flags.Uint64P("time", "t", 0, "max capture time in seconds")
	flags.BoolP("append", "a", false, "append data if the output file exists")
	flags.BoolP("quiet", "q", false, "do not print packet counter on stderr")

	pflags := rootCmd.PersistentFlags()
	pflags.StringVar(&a.configFile, "config", "", "config file path (YAML)")
	pflags.String("log-level", "", "log level: debug, info, warn or error")
	pflags.String("log-format-pattern", "", "log line pattern, e.g. \""+log.DefaultPattern+"\"")
	pflags.String("log-file", "", "also write logs to this file, rotated")

	rootCmd.AddCommand(newInspectCmd())
	return rootCmd
}

// Execute runs the command line. It is called by main.main().
func Execute() error {
	return NewRootCmd().Execute()
}

// setup loads the configuration and the logger. Arguments are valid by now,
// so later failures do not print usage.
func (a *app) setup(cmd *cobra.Command, _ []string) error {
	cmd.SilenceUsage = true

	cfg, err := config.Load(a.configFile, cmd.Flags())
	if err != nil {
		return err
	}
	if err := log.Init(cfg.Log); err != nil {
		return fmt.Errorf("%w: %v", core.ErrConfigInvalid, err)
	}
	a.cfg = cfg
	return nil
}

func (a *app) runCapture(cmd *cobra.Command, args []string) error {
	locator, outPath := args[0], args[1]
	cc := a.cfg.Capture

	signals := capture.NewSignals()
	stop := signals.Notify(cmd.Context())
	defer stop()

	c, err := capture.New(capture.Options{
		Locator: locator,
		Target: sink.Target{
			Path:   outPath,
			Append: cc.Append,
			Stdout: os.Stdout,
		},
		Limits: capture.Limits{
			MaxCount:    cc.Count,
			MaxBytes:    cc.Size,
			MaxDuration: cc.Duration(),
		},
		Quiet:        cc.Quiet,
		PollInterval: cc.PollInterval,
		Signals:      signals,
	})
	if err != nil {
		return err
	}

	res := c.Run(cmd.Context())
	log.GetLogger().Debugf("capture stopped: %s, %d packets, %d bytes, %d rotations",
		res.Reason, res.Packets, res.Bytes, res.Rotations)
	return nil
}

package cmd

import (
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"firestige.xyz/vdecapture/internal/pcapfile"
)

func newInspectCmd() *cobra.Command {
	var records bool

	inspectCmd := &cobra.Command{
		Use:   "inspect FILE",
		Short: "Summarize a capture file",
		Long: `Summarize a capture file as YAML: link type, snapshot length, packet and
byte totals, first and last timestamps, and whether the file starts with the
header vdecapture writes (and so can be appended to with -a).`,
		Example: `  vdecapture inspect out.pcap
  vdecapture inspect --records out.pcap`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sum, err := pcapfile.Inspect(args[0], records)
			if err != nil {
				return err
			}
			enc := yaml.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent(2)
			if err := enc.Encode(sum); err != nil {
				return err
			}
			return enc.Close()
		},
	}

	inspectCmd.Flags().BoolVar(&records, "records", false, "list every record")
	return inspectCmd
}

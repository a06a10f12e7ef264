package main

import (
	"encoding/json"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"inferd/pkg/types"
)

var runnersJSON bool

var runnersCmd = &cobra.Command{
	Use:   "runners",
	Short: "List the runners the configuration registers",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		log, err := newLogger(cfg.LogLevel, cfg.LogFormat)
		if err != nil {
			return err
		}
		eng, err := buildEngine(cfg, log)
		if err != nil {
			return err
		}
		infos := eng.mgr.ListRunners()
		if runnersJSON {
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(types.RunnersResponse{Runners: infos})
		}
		return printRunners(cmd, infos)
	},
}

func printRunners(cmd *cobra.Command, infos []types.RunnerInfo) error {
	out := cmd.OutOrStdout()
	if len(infos) == 0 {
		fmt.Fprintln(out, "no runners registered")
		return nil
	}
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tCAPABILITIES\tVENDOR\tPRIORITY\tENABLED\tSUPPORTED\tSELECTED FOR")
	for _, r := range infos {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%t\t%t\t%s\n",
			r.Name, strings.Join(r.Capabilities, ","), r.Vendor, r.Priority,
			r.Enabled, r.Supported, strings.Join(r.SelectedFor, ","))
	}
	return tw.Flush()
}

func init() {
	runnersCmd.Flags().BoolVar(&runnersJSON, "json", false, "print JSON instead of a table")
}

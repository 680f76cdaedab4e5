package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"logtap/internal/config"
)

func newCheckCommand(configFlag *string) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Validate the configuration file",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configFlag)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Config path: %s\n", *configFlag)
			fmt.Fprintln(out, "Configuration valid")

			rows := make([][]string, 0, len(cfg.Sinks))
			for _, s := range cfg.Sinks {
				target := s.Endpoint
				if target == "" {
					target = s.Path
				}
				rows = append(rows, []string{s.Name, s.Kind, s.MinimumLevel, s.Overflow, target})
			}
			fmt.Fprintln(out, renderTable(
				[]string{"Sink", "Kind", "Min Level", "Overflow", "Target"},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignLeft},
			))
			return nil
		},
	}
}

package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/zulandar/switchboard/internal/health"
	"github.com/zulandar/switchboard/internal/messaging"
)

func newHealthCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "health",
		Short: "Probe the message store and every configured platform",
		Long:  "Runs one health pass across the store and all configured platform adapters. Exits non-zero when anything is unhealthy.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHealth(cmd, configPath)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "switchboard.yaml", "path to Switchboard config file")
	return cmd
}

func runHealth(cmd *cobra.Command, configPath string) error {
	cfg, gdb, err := openStore(configPath)
	if err != nil {
		return err
	}

	registry, err := buildRegistry(cfg)
	if err != nil {
		return err
	}

	checker := health.NewAggregator(registry, messaging.NewClient(gdb), cfg.Health.ProbeTimeout())
	report := checker.Aggregate(cmd.Context())

	out := cmd.OutOrStdout()
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "COMPONENT\tSTATUS\tDETAIL")
	fmt.Fprintf(w, "store\t%s\t%s\n", report.A2A.Status, report.A2A.Detail)
	for _, name := range registry.Names() {
		h := report.Services[name]
		status := "healthy"
		if !h.Healthy {
			status = "unhealthy"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\n", name, status, h.Detail)
	}
	w.Flush()

	fmt.Fprintf(out, "\nOverall: %s\n", report.Status)
	if report.Status != health.StatusOK {
		return fmt.Errorf("switchboard is %s", report.Status)
	}
	return nil
}

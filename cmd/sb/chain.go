package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/zulandar/switchboard/internal/chain"
	"github.com/zulandar/switchboard/internal/config"
)

func newChainCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "chain",
		Short: "Run multi-step tool chains",
	}

	cmd.AddCommand(newChainRunCmd())
	return cmd
}

// chainFile is the on-disk shape for chain run: either a bare JSON array of
// steps or an object carrying steps plus an initial context.
type chainFile struct {
	Steps   []chain.Step   `json:"steps"`
	Context map[string]any `json:"context"`
}

func parseChainFile(data []byte) (*chainFile, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var steps []chain.Step
		if err := json.Unmarshal(trimmed, &steps); err != nil {
			return nil, err
		}
		return &chainFile{Steps: steps}, nil
	}

	var f chainFile
	if err := json.Unmarshal(trimmed, &f); err != nil {
		return nil, err
	}
	return &f, nil
}

func newChainRunCmd() *cobra.Command {
	var (
		configPath string
		stepsFile  string
		ctxPairs   []string
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Execute a chain of platform operations from a JSON file",
		Long: `Executes the steps in a JSON file against the configured platforms, in
order. Step params may reference earlier results with {{ctx.KEY}}; --context
entries seed those references before the first step runs.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runChainRun(cmd, configPath, stepsFile, ctxPairs)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "switchboard.yaml", "path to Switchboard config file")
	cmd.Flags().StringVarP(&stepsFile, "file", "f", "", "JSON file with chain steps")
	cmd.Flags().StringArrayVar(&ctxPairs, "context", nil, "initial context entry as key=value (repeatable)")
	cmd.MarkFlagRequired("file")
	return cmd
}

func runChainRun(cmd *cobra.Command, configPath, stepsFile string, ctxPairs []string) error {
	data, err := os.ReadFile(stepsFile)
	if err != nil {
		return fmt.Errorf("read steps file: %w", err)
	}
	file, err := parseChainFile(data)
	if err != nil {
		return fmt.Errorf("parse steps file %s: %w", stepsFile, err)
	}
	if len(file.Steps) == 0 {
		return fmt.Errorf("steps file %s has no steps", stepsFile)
	}

	pairs, err := parsePairs(ctxPairs)
	if err != nil {
		return err
	}
	initial := file.Context
	for k, v := range pairs {
		if initial == nil {
			initial = make(map[string]any, len(pairs))
		}
		initial[k] = v
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	registry, err := buildRegistry(cfg)
	if err != nil {
		return err
	}

	outcome := chain.NewExecutor(registry).Run(cmd.Context(), file.Steps, initial)

	out := cmd.OutOrStdout()
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "STEP\tSERVICE\tOPERATION\tSTATUS\tDETAIL")
	for i, sr := range outcome.Steps {
		status, detail := "ok", ""
		if !sr.Result.Success {
			status, detail = "failed", sr.Result.Error
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\n", i, sr.Step.Service, sr.Step.Operation, status, detail)
	}
	w.Flush()

	if outcome.Halted {
		return fmt.Errorf("chain halted at step %d", outcome.HaltedStep)
	}
	fmt.Fprintf(out, "\nChain completed: %d steps\n", len(outcome.Steps))
	return nil
}

package main

import (
	"encoding/json"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/zulandar/switchboard/internal/config"
	"github.com/zulandar/switchboard/internal/platform"
	"github.com/zulandar/switchboard/internal/platform/github"
	"github.com/zulandar/switchboard/internal/platform/railway"
	"github.com/zulandar/switchboard/internal/platform/supabase"
	"github.com/zulandar/switchboard/internal/platform/vercel"
)

func newToolCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tool",
		Short: "Invoke platform tools directly",
	}

	cmd.AddCommand(newToolInvokeCmd())
	cmd.AddCommand(newToolListCmd())
	return cmd
}

// buildRegistry registers an adapter for every platform the config carries
// credentials for. Platforms without credentials stay unregistered, so
// invoking them reports an unknown service instead of a half-configured
// client failing mid-call.
func buildRegistry(cfg *config.Config) (*platform.Registry, error) {
	registry := platform.NewRegistry()
	timeout := cfg.Platforms.RequestTimeout()

	if token := cfg.Platforms.GitHub.Token; token != "" {
		adapter, err := github.New(github.Opts{Token: token, Timeout: timeout})
		if err != nil {
			return nil, err
		}
		registry.Register(adapter)
	}
	if token := cfg.Platforms.Vercel.Token; token != "" {
		adapter, err := vercel.New(vercel.Opts{Token: token, TeamID: cfg.Platforms.Vercel.TeamID, Timeout: timeout})
		if err != nil {
			return nil, err
		}
		registry.Register(adapter)
	}
	if token := cfg.Platforms.Railway.Token; token != "" {
		adapter, err := railway.New(railway.Opts{Token: token, Timeout: timeout})
		if err != nil {
			return nil, err
		}
		registry.Register(adapter)
	}
	if sb := cfg.Platforms.Supabase; sb.URL != "" || sb.ServiceKey != "" {
		adapter, err := supabase.New(supabase.Opts{URL: sb.URL, Key: sb.ServiceKey, Timeout: timeout})
		if err != nil {
			return nil, err
		}
		registry.Register(adapter)
	}
	return registry, nil
}

// parsePairs turns repeated key=value flags into a string-valued map.
func parsePairs(pairs []string) (map[string]any, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	out := make(map[string]any, len(pairs))
	for _, p := range pairs {
		k, v, ok := strings.Cut(p, "=")
		if !ok || k == "" {
			return nil, fmt.Errorf("invalid key=value pair %q", p)
		}
		out[k] = v
	}
	return out, nil
}

func newToolInvokeCmd() *cobra.Command {
	var (
		configPath string
		paramPairs []string
	)

	cmd := &cobra.Command{
		Use:   "invoke <service> <operation>",
		Short: "Invoke one operation on a configured platform",
		Long:  "Calls a single operation on a platform adapter and prints the result as JSON. Exits non-zero when the operation fails.",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runToolInvoke(cmd, configPath, args[0], args[1], paramPairs)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "switchboard.yaml", "path to Switchboard config file")
	cmd.Flags().StringArrayVar(&paramPairs, "param", nil, "operation parameter as key=value (repeatable)")
	return cmd
}

func runToolInvoke(cmd *cobra.Command, configPath, service, operation string, paramPairs []string) error {
	params, err := parsePairs(paramPairs)
	if err != nil {
		return err
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	registry, err := buildRegistry(cfg)
	if err != nil {
		return err
	}

	adapter, ok := registry.Lookup(service)
	if !ok {
		names := registry.Names()
		if len(names) == 0 {
			return fmt.Errorf("unknown service %q (no platforms configured)", service)
		}
		return fmt.Errorf("unknown service %q (configured: %s)", service, strings.Join(names, ", "))
	}

	res := adapter.Invoke(cmd.Context(), operation, params)

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	if err := enc.Encode(res); err != nil {
		return err
	}
	if !res.Success {
		return fmt.Errorf("%s %s failed: %s", service, operation, res.Error)
	}
	return nil
}

func newToolListCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List configured platforms and their operations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runToolList(cmd, configPath)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "switchboard.yaml", "path to Switchboard config file")
	return cmd
}

func runToolList(cmd *cobra.Command, configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	registry, err := buildRegistry(cfg)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	adapters := registry.All()
	if len(adapters) == 0 {
		fmt.Fprintln(out, "No platforms configured. Add tokens under platforms: in your config.")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "SERVICE\tOPERATIONS")
	for _, a := range adapters {
		fmt.Fprintf(w, "%s\t%s\n", a.Name(), strings.Join(a.Operations(), ", "))
	}
	return w.Flush()
}

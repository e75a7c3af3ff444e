package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/zulandar/switchboard/internal/bus"
	"github.com/zulandar/switchboard/internal/chain"
	"github.com/zulandar/switchboard/internal/config"
	"github.com/zulandar/switchboard/internal/db"
	"github.com/zulandar/switchboard/internal/gateway"
	"github.com/zulandar/switchboard/internal/health"
	"github.com/zulandar/switchboard/internal/messaging"
	"github.com/zulandar/switchboard/internal/relay"
	discordrelay "github.com/zulandar/switchboard/internal/relay/discord"
	slackrelay "github.com/zulandar/switchboard/internal/relay/slack"
	"github.com/zulandar/switchboard/internal/retention"
)

func newServeCmd() *cobra.Command {
	var (
		configPath string
		port       int
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the switchboard daemon",
		Long:  "Starts the message store, push bus, platform registry, chat relay, retention sweeper, and HTTP gateway in one process.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, configPath, port)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "switchboard.yaml", "path to Switchboard config file")
	cmd.Flags().IntVarP(&port, "port", "p", 0, "gateway port (overrides config)")
	return cmd
}

func runServe(cmd *cobra.Command, configPath string, port int) error {
	out := cmd.OutOrStdout()

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if port > 0 {
		cfg.Gateway.Port = port
	}
	if cfg.Relay.Platform != "" && !cfg.Bus.Enabled {
		return fmt.Errorf("relay.platform is %q but bus.enabled is false; the relay reads from the bus", cfg.Relay.Platform)
	}

	gdb, err := db.Open(cfg.Database)
	if err != nil {
		return err
	}
	if err := db.AutoMigrate(gdb); err != nil {
		return err
	}
	msgs := messaging.NewClient(gdb)
	fmt.Fprintf(out, "Store ready (%s)\n", cfg.Database.Driver)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		fmt.Fprintf(out, "\nReceived %s, shutting down...\n", sig)
		cancel()
	}()

	var busClient *bus.Client
	if cfg.Bus.Enabled {
		busServer, err := bus.NewServer(cfg.Bus)
		if err != nil {
			return err
		}
		defer busServer.Close()

		busClient, err = bus.Connect(busServer.ClientURL())
		if err != nil {
			return err
		}
		defer busClient.Close()

		msgs.AttachBus(busClient)
		fmt.Fprintf(out, "Bus listening at %s\n", busServer.ClientURL())
	}

	registry, err := buildRegistry(cfg)
	if err != nil {
		return err
	}
	if names := registry.Names(); len(names) > 0 {
		fmt.Fprintf(out, "Platforms: %s\n", strings.Join(names, ", "))
	} else {
		fmt.Fprintln(out, "Platforms: none configured")
	}

	if cfg.Relay.Platform != "" {
		sender, err := buildSender(cfg)
		if err != nil {
			return err
		}
		forwarder := relay.NewForwarder(sender, cfg.Relay.HumanAgent)
		if err := forwarder.Start(ctx, busClient); err != nil {
			return err
		}
		defer forwarder.Stop()
		fmt.Fprintf(out, "Relay posting to %s channel %s\n", cfg.Relay.Platform, cfg.Relay.Channel)
	}

	if cfg.Retention.MaxAgeDays > 0 {
		sweeper, err := retention.NewSweeper(msgs, cfg.Retention.MaxAgeDays, cfg.Retention.Schedule)
		if err != nil {
			return err
		}
		go sweeper.Run(ctx)
	}

	return gateway.Start(ctx, gateway.StartOpts{
		Messages:  msgs,
		Executor:  chain.NewExecutor(registry),
		Registry:  registry,
		Checker:   health.NewAggregator(registry, msgs, cfg.Health.ProbeTimeout()),
		Port:      cfg.Gateway.Port,
		AuthToken: cfg.Gateway.AuthToken,
		Out:       out,
	})
}

// buildSender constructs the chat sender for the configured relay platform.
func buildSender(cfg *config.Config) (relay.Sender, error) {
	switch cfg.Relay.Platform {
	case "slack":
		return slackrelay.New(slackrelay.Opts{
			BotToken:  cfg.Relay.Slack.BotToken,
			ChannelID: cfg.Relay.Channel,
		})
	case "discord":
		return discordrelay.New(discordrelay.Opts{
			BotToken:  cfg.Relay.Discord.BotToken,
			ChannelID: cfg.Relay.Channel,
		})
	default:
		return nil, fmt.Errorf("unsupported relay platform %q", cfg.Relay.Platform)
	}
}

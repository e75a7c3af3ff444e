package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/zulandar/switchboard/internal/config"
)

func TestNewServeCmd(t *testing.T) {
	cmd := newServeCmd()
	if cmd.Use != "serve" {
		t.Errorf("Use = %q, want %q", cmd.Use, "serve")
	}

	cfgFlag := cmd.Flags().Lookup("config")
	if cfgFlag == nil {
		t.Fatal("expected --config flag")
	}
	if cfgFlag.DefValue != "switchboard.yaml" {
		t.Errorf("--config default = %q, want %q", cfgFlag.DefValue, "switchboard.yaml")
	}

	portFlag := cmd.Flags().Lookup("port")
	if portFlag == nil {
		t.Fatal("expected --port flag")
	}
	if portFlag.Shorthand != "p" {
		t.Errorf("--port shorthand = %q, want %q", portFlag.Shorthand, "p")
	}
	if portFlag.DefValue != "0" {
		t.Errorf("--port default = %q, want %q", portFlag.DefValue, "0")
	}
}

func TestServeCmd_MissingConfig(t *testing.T) {
	cmd := newRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs([]string{"serve", "--config", "/nonexistent/switchboard.yaml"})

	err := cmd.Execute()
	if err == nil {
		t.Fatal("expected error for missing config file")
	}
	if !strings.Contains(err.Error(), "load config") {
		t.Errorf("error = %q, want to contain %q", err.Error(), "load config")
	}
}

func TestServeCmd_RelayRequiresBus(t *testing.T) {
	clearEnvOverrides(t)
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "switchboard.yaml")
	content := "database:\n  driver: sqlite\n  path: " + filepath.Join(dir, "sb.db") + "\n" +
		"bus:\n  enabled: false\n" +
		"relay:\n  platform: slack\n  channel: C123\n  slack:\n    bot_token: xoxb-test\n"
	if err := os.WriteFile(cfgPath, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cmd := newRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs([]string{"serve", "--config", cfgPath})

	err := cmd.Execute()
	if err == nil {
		t.Fatal("expected error for relay without bus")
	}
	if !strings.Contains(err.Error(), "bus.enabled") {
		t.Errorf("error = %q, want to mention bus.enabled", err.Error())
	}
}

func TestBuildSender_Slack(t *testing.T) {
	cfg := &config.Config{}
	cfg.Relay.Platform = "slack"
	cfg.Relay.Channel = "C123"
	cfg.Relay.Slack.BotToken = "xoxb-test"

	sender, err := buildSender(cfg)
	if err != nil {
		t.Fatalf("buildSender: %v", err)
	}
	if sender == nil {
		t.Fatal("expected a sender")
	}
}

func TestBuildSender_Discord(t *testing.T) {
	cfg := &config.Config{}
	cfg.Relay.Platform = "discord"
	cfg.Relay.Channel = "123456789"
	cfg.Relay.Discord.BotToken = "discord-test"

	sender, err := buildSender(cfg)
	if err != nil {
		t.Fatalf("buildSender: %v", err)
	}
	if sender == nil {
		t.Fatal("expected a sender")
	}
}

func TestBuildSender_MissingToken(t *testing.T) {
	cfg := &config.Config{}
	cfg.Relay.Platform = "slack"
	cfg.Relay.Channel = "C123"

	if _, err := buildSender(cfg); err == nil {
		t.Fatal("expected error for missing bot token")
	}
}

func TestBuildSender_Unsupported(t *testing.T) {
	cfg := &config.Config{}
	cfg.Relay.Platform = "telegram"

	_, err := buildSender(cfg)
	if err == nil {
		t.Fatal("expected error for unsupported platform")
	}
	if !strings.Contains(err.Error(), "unsupported relay platform") {
		t.Errorf("error = %q, want to contain %q", err.Error(), "unsupported relay platform")
	}
}

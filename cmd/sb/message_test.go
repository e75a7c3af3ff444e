package main

import (
	"bytes"
	"strings"
	"testing"
)

// --- message command tests ---

func TestMessageCmd_Help(t *testing.T) {
	cmd := newRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs([]string{"message", "--help"})

	if err := cmd.Execute(); err != nil {
		t.Fatalf("message --help failed: %v", err)
	}

	out := buf.String()
	for _, sub := range []string{"send", "inbox", "thread", "ack", "unread", "cleanup"} {
		if !strings.Contains(out, sub) {
			t.Errorf("expected help to list %q subcommand, got: %s", sub, out)
		}
	}
}

func TestNewMessageCmd(t *testing.T) {
	cmd := newMessageCmd()
	if cmd.Use != "message" {
		t.Errorf("Use = %q, want %q", cmd.Use, "message")
	}
	if !cmd.HasSubCommands() {
		t.Error("message command should have subcommands")
	}
}

// --- message send tests ---

func TestMessageSendCmd_Help(t *testing.T) {
	cmd := newRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs([]string{"message", "send", "--help"})

	if err := cmd.Execute(); err != nil {
		t.Fatalf("message send --help failed: %v", err)
	}

	out := buf.String()
	for _, flag := range []string{"--from", "--to", "--type", "--payload", "--context", "--config"} {
		if !strings.Contains(out, flag) {
			t.Errorf("expected %s flag, got: %s", flag, out)
		}
	}
}

func TestNewMessageSendCmd(t *testing.T) {
	cmd := newMessageSendCmd()
	if cmd.Use != "send" {
		t.Errorf("Use = %q, want %q", cmd.Use, "send")
	}

	for _, name := range []string{"from", "to", "type", "payload", "context", "config"} {
		if cmd.Flags().Lookup(name) == nil {
			t.Errorf("expected --%s flag", name)
		}
	}

	cfgFlag := cmd.Flags().Lookup("config")
	if cfgFlag.DefValue != "switchboard.yaml" {
		t.Errorf("--config default = %q, want %q", cfgFlag.DefValue, "switchboard.yaml")
	}
	if cfgFlag.Shorthand != "c" {
		t.Errorf("--config shorthand = %q, want %q", cfgFlag.Shorthand, "c")
	}
}

func TestMessageSendCmd_MissingRequiredFlags(t *testing.T) {
	cmd := newRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs([]string{"message", "send"})

	err := cmd.Execute()
	if err == nil {
		t.Fatal("expected error for missing required flags")
	}
}

func TestMessageSendCmd_InvalidPayload(t *testing.T) {
	cmd := newRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs([]string{"message", "send",
		"--from", "atlas",
		"--to", "hermes",
		"--type", "TASK_DELEGATION",
		"--payload", `{"task_id":`,
	})

	err := cmd.Execute()
	if err == nil {
		t.Fatal("expected error for malformed payload")
	}
	if !strings.Contains(err.Error(), "invalid payload JSON") {
		t.Errorf("error = %q, want to contain %q", err.Error(), "invalid payload JSON")
	}
}

func TestMessageSendCmd_MissingConfig(t *testing.T) {
	cmd := newRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs([]string{"message", "send",
		"--from", "atlas",
		"--to", "hermes",
		"--type", "STATUS_REQUEST",
		"--config", "/nonexistent/switchboard.yaml",
	})

	err := cmd.Execute()
	if err == nil {
		t.Fatal("expected error for missing config file")
	}
	if !strings.Contains(err.Error(), "load config") {
		t.Errorf("error = %q, want to contain %q", err.Error(), "load config")
	}
}

// --- message inbox tests ---

func TestNewMessageInboxCmd(t *testing.T) {
	cmd := newMessageInboxCmd()
	if cmd.Use != "inbox" {
		t.Errorf("Use = %q, want %q", cmd.Use, "inbox")
	}

	for _, name := range []string{"agent", "type", "limit", "config"} {
		if cmd.Flags().Lookup(name) == nil {
			t.Errorf("expected --%s flag", name)
		}
	}

	limitFlag := cmd.Flags().Lookup("limit")
	if limitFlag.DefValue != "0" {
		t.Errorf("--limit default = %q, want %q", limitFlag.DefValue, "0")
	}
}

func TestMessageInboxCmd_MissingRequiredFlags(t *testing.T) {
	cmd := newRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs([]string{"message", "inbox"})

	err := cmd.Execute()
	if err == nil {
		t.Fatal("expected error for missing --agent flag")
	}
}

func TestMessageInboxCmd_MissingConfig(t *testing.T) {
	cmd := newRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs([]string{"message", "inbox",
		"--agent", "hermes",
		"--config", "/nonexistent/switchboard.yaml",
	})

	err := cmd.Execute()
	if err == nil {
		t.Fatal("expected error for missing config file")
	}
	if !strings.Contains(err.Error(), "load config") {
		t.Errorf("error = %q, want to contain %q", err.Error(), "load config")
	}
}

// --- message thread tests ---

func TestNewMessageThreadCmd(t *testing.T) {
	cmd := newMessageThreadCmd()
	if cmd.Use != "thread <context-id>" {
		t.Errorf("Use = %q, want %q", cmd.Use, "thread <context-id>")
	}

	cfgFlag := cmd.Flags().Lookup("config")
	if cfgFlag == nil {
		t.Fatal("expected --config flag")
	}
	if cfgFlag.DefValue != "switchboard.yaml" {
		t.Errorf("--config default = %q, want %q", cfgFlag.DefValue, "switchboard.yaml")
	}
}

func TestMessageThreadCmd_NoArgs(t *testing.T) {
	cmd := newRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs([]string{"message", "thread"})

	err := cmd.Execute()
	if err == nil {
		t.Fatal("expected error for missing args")
	}
}

func TestMessageThreadCmd_MissingConfig(t *testing.T) {
	cmd := newRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs([]string{"message", "thread", "deploy-7",
		"--config", "/nonexistent/switchboard.yaml",
	})

	err := cmd.Execute()
	if err == nil {
		t.Fatal("expected error for missing config file")
	}
	if !strings.Contains(err.Error(), "load config") {
		t.Errorf("error = %q, want to contain %q", err.Error(), "load config")
	}
}

// --- message ack tests ---

func TestNewMessageAckCmd(t *testing.T) {
	cmd := newMessageAckCmd()
	if cmd.Use != "ack <message-id>" {
		t.Errorf("Use = %q, want %q", cmd.Use, "ack <message-id>")
	}

	for _, name := range []string{"by", "config"} {
		if cmd.Flags().Lookup(name) == nil {
			t.Errorf("expected --%s flag", name)
		}
	}
}

func TestMessageAckCmd_NoArgs(t *testing.T) {
	cmd := newRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs([]string{"message", "ack", "--by", "hermes"})

	err := cmd.Execute()
	if err == nil {
		t.Fatal("expected error for missing args")
	}
}

func TestMessageAckCmd_InvalidID(t *testing.T) {
	cmd := newRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs([]string{"message", "ack", "seven", "--by", "hermes"})

	err := cmd.Execute()
	if err == nil {
		t.Fatal("expected error for non-numeric message ID")
	}
	if !strings.Contains(err.Error(), "invalid message ID") {
		t.Errorf("error = %q, want to contain %q", err.Error(), "invalid message ID")
	}
}

func TestMessageAckCmd_MissingConfig(t *testing.T) {
	cmd := newRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs([]string{"message", "ack", "42",
		"--by", "hermes",
		"--config", "/nonexistent/switchboard.yaml",
	})

	err := cmd.Execute()
	if err == nil {
		t.Fatal("expected error for missing config file")
	}
	if !strings.Contains(err.Error(), "load config") {
		t.Errorf("error = %q, want to contain %q", err.Error(), "load config")
	}
}

// --- message unread tests ---

func TestNewMessageUnreadCmd(t *testing.T) {
	cmd := newMessageUnreadCmd()
	if cmd.Use != "unread" {
		t.Errorf("Use = %q, want %q", cmd.Use, "unread")
	}
	if cmd.Flags().Lookup("agent") == nil {
		t.Error("expected --agent flag")
	}
}

func TestMessageUnreadCmd_MissingRequiredFlags(t *testing.T) {
	cmd := newRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs([]string{"message", "unread"})

	err := cmd.Execute()
	if err == nil {
		t.Fatal("expected error for missing --agent flag")
	}
}

// --- message cleanup tests ---

func TestNewMessageCleanupCmd(t *testing.T) {
	cmd := newMessageCleanupCmd()
	if cmd.Use != "cleanup" {
		t.Errorf("Use = %q, want %q", cmd.Use, "cleanup")
	}

	yesFlag := cmd.Flags().Lookup("yes")
	if yesFlag == nil {
		t.Fatal("expected --yes flag")
	}
	if yesFlag.Shorthand != "y" {
		t.Errorf("--yes shorthand = %q, want %q", yesFlag.Shorthand, "y")
	}
	if cmd.Flags().Lookup("days") == nil {
		t.Error("expected --days flag")
	}
}

func TestMessageCleanupCmd_Abort(t *testing.T) {
	cfgPath := writeTestConfig(t)

	cmd := newRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetIn(strings.NewReader("no\n"))
	cmd.SetArgs([]string{"message", "cleanup", "--config", cfgPath})

	if err := cmd.Execute(); err != nil {
		t.Fatalf("aborted cleanup should not error: %v", err)
	}

	out := buf.String()
	if !strings.Contains(out, "Aborted.") {
		t.Errorf("expected output to contain 'Aborted.', got: %s", out)
	}
	if strings.Contains(out, "Removed") {
		t.Errorf("aborted cleanup should not remove anything, got: %s", out)
	}
}

func TestMessageCleanupCmd_PromptShowsAge(t *testing.T) {
	cfgPath := writeTestConfig(t)

	cmd := newRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetIn(strings.NewReader("no\n"))
	cmd.SetArgs([]string{"message", "cleanup", "--days", "7", "--config", cfgPath})

	if err := cmd.Execute(); err != nil {
		t.Fatalf("aborted cleanup should not error: %v", err)
	}

	if !strings.Contains(buf.String(), "older than 7 days") {
		t.Errorf("expected prompt to mention the age threshold, got: %s", buf.String())
	}
}

func TestMessageCleanupCmd_NegativeDays(t *testing.T) {
	cfgPath := writeTestConfig(t)

	cmd := newRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs([]string{"message", "cleanup", "--days=-3", "--yes", "--config", cfgPath})

	err := cmd.Execute()
	if err == nil {
		t.Fatal("expected error for negative age")
	}
	if !strings.Contains(err.Error(), "retention") {
		t.Errorf("error = %q, want to mention retention", err.Error())
	}
}

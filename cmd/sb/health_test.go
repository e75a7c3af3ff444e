package main

import (
	"bytes"
	"strings"
	"testing"
)

func TestNewHealthCmd(t *testing.T) {
	cmd := newHealthCmd()
	if cmd.Use != "health" {
		t.Errorf("Use = %q, want %q", cmd.Use, "health")
	}

	cfgFlag := cmd.Flags().Lookup("config")
	if cfgFlag == nil {
		t.Fatal("expected --config flag")
	}
	if cfgFlag.DefValue != "switchboard.yaml" {
		t.Errorf("--config default = %q, want %q", cfgFlag.DefValue, "switchboard.yaml")
	}
	if cfgFlag.Shorthand != "c" {
		t.Errorf("--config shorthand = %q, want %q", cfgFlag.Shorthand, "c")
	}
}

func TestHealthCmd_MissingConfig(t *testing.T) {
	cmd := newRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs([]string{"health", "--config", "/nonexistent/switchboard.yaml"})

	err := cmd.Execute()
	if err == nil {
		t.Fatal("expected error for missing config file")
	}
	if !strings.Contains(err.Error(), "load config") {
		t.Errorf("error = %q, want to contain %q", err.Error(), "load config")
	}
}

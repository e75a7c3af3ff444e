package db

import (
	"strings"
	"testing"

	"github.com/zulandar/switchboard/internal/config"
)

func TestDSN(t *testing.T) {
	tests := []struct {
		name string
		cfg  config.DatabaseConfig
		want string
	}{
		{
			name: "default local",
			cfg:  config.DatabaseConfig{Host: "127.0.0.1", Port: 3306, Name: "switchboard", User: "root"},
			want: "root@tcp(127.0.0.1:3306)/switchboard?allowNativePasswords=true&parseTime=true",
		},
		{
			name: "with password",
			cfg:  config.DatabaseConfig{Host: "10.0.0.5", Port: 3307, Name: "sb", User: "sb", Password: "hunter2"},
			want: "sb:hunter2@tcp(10.0.0.5:3307)/sb?allowNativePasswords=true&parseTime=true",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DSN(tt.cfg)
			if got != tt.want {
				t.Errorf("DSN() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestDSN_ParseTimeFlag(t *testing.T) {
	dsn := DSN(config.DatabaseConfig{Host: "localhost", Port: 3306, Name: "test", User: "root"})
	if !strings.Contains(dsn, "parseTime=true") {
		t.Errorf("DSN missing parseTime=true: %s", dsn)
	}
}

func TestOpen_UnsupportedDriver(t *testing.T) {
	_, err := Open(config.DatabaseConfig{Driver: "postgres"})
	if err == nil {
		t.Fatal("expected error for unsupported driver")
	}
	if !strings.Contains(err.Error(), "db: unsupported driver") {
		t.Errorf("error = %q, want to contain %q", err.Error(), "db: unsupported driver")
	}
}

func TestOpen_MySQLError(t *testing.T) {
	// Port 1 is unlikely to have a MySQL server; expect connection error.
	_, err := Open(config.DatabaseConfig{
		Driver: "mysql", Host: "127.0.0.1", Port: 1, Name: "nonexistent", User: "root",
	})
	if err == nil {
		t.Fatal("expected error connecting to invalid port")
	}
	if !strings.Contains(err.Error(), "db: connect to") {
		t.Errorf("error = %q, want to contain %q", err.Error(), "db: connect to")
	}
}

func TestOpenAdmin_Error(t *testing.T) {
	_, err := OpenAdmin(config.DatabaseConfig{
		Driver: "mysql", Host: "127.0.0.1", Port: 1, Name: "sb", User: "root",
	})
	if err == nil {
		t.Fatal("expected error connecting to invalid port")
	}
	if !strings.Contains(err.Error(), "db: admin connect to") {
		t.Errorf("error = %q, want to contain %q", err.Error(), "db: admin connect to")
	}
}

func TestAllModels_Count(t *testing.T) {
	if got := len(AllModels()); got != 1 {
		t.Errorf("AllModels() returned %d models, want 1", got)
	}
}

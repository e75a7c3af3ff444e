//go:build integration

package db

import (
	"path/filepath"
	"testing"

	"github.com/zulandar/switchboard/internal/config"
	"github.com/zulandar/switchboard/internal/models"
	"gorm.io/gorm"
)

// openTestDB opens a fresh sqlite database in a temp directory.
func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	cfg := config.DatabaseConfig{
		Driver: "sqlite",
		Path:   filepath.Join(t.TempDir(), "switchboard.db"),
	}
	gdb, err := Open(cfg)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	return gdb
}

func TestIntegration_OpenSQLite(t *testing.T) {
	gdb := openTestDB(t)
	sqlDB, err := gdb.DB()
	if err != nil {
		t.Fatalf("get sql.DB: %v", err)
	}
	if err := sqlDB.Ping(); err != nil {
		t.Fatalf("ping: %v", err)
	}
}

func TestIntegration_OpenSQLite_CreatesDataDir(t *testing.T) {
	cfg := config.DatabaseConfig{
		Driver: "sqlite",
		Path:   filepath.Join(t.TempDir(), "nested", "dir", "sb.db"),
	}
	if _, err := Open(cfg); err != nil {
		t.Fatalf("Open with missing parent dir: %v", err)
	}
}

func TestIntegration_AutoMigrate(t *testing.T) {
	gdb := openTestDB(t)
	if err := AutoMigrate(gdb); err != nil {
		t.Fatalf("AutoMigrate: %v", err)
	}
	if !gdb.Migrator().HasTable(&models.Message{}) {
		t.Error("messages table not created")
	}

	// Spot-check key columns.
	for _, col := range []string{"id", "sender", "recipient", "type", "payload", "context_id", "status", "acknowledged_by", "acknowledged_at", "created_at"} {
		if !gdb.Migrator().HasColumn(&models.Message{}, col) {
			t.Errorf("messages table missing column %q", col)
		}
	}
}

func TestIntegration_AutoMigrate_Idempotent(t *testing.T) {
	gdb := openTestDB(t)
	if err := AutoMigrate(gdb); err != nil {
		t.Fatalf("AutoMigrate (1st): %v", err)
	}
	if err := AutoMigrate(gdb); err != nil {
		t.Fatalf("AutoMigrate (2nd): %v", err)
	}
}

func TestIntegration_Reset(t *testing.T) {
	gdb := openTestDB(t)
	if err := AutoMigrate(gdb); err != nil {
		t.Fatalf("AutoMigrate: %v", err)
	}

	msg := models.Message{Sender: "atlas", Recipient: "hermes", Type: models.TypeAnnouncement, Payload: "{}"}
	if err := gdb.Create(&msg).Error; err != nil {
		t.Fatalf("create message: %v", err)
	}

	if err := Reset(gdb); err != nil {
		t.Fatalf("Reset: %v", err)
	}

	var count int64
	if err := gdb.Model(&models.Message{}).Count(&count).Error; err != nil {
		t.Fatalf("count after reset: %v", err)
	}
	if count != 0 {
		t.Errorf("message count after reset = %d, want 0", count)
	}
}

func TestIntegration_AutoMigrate_Error(t *testing.T) {
	gdb := openTestDB(t)
	sqlDB, _ := gdb.DB()
	sqlDB.Close()

	if err := AutoMigrate(gdb); err == nil {
		t.Fatal("expected error from AutoMigrate with closed DB")
	}
}

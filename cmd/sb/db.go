package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/zulandar/switchboard/internal/config"
	"github.com/zulandar/switchboard/internal/db"
	"golang.org/x/term"
)

func newDBCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "db",
		Short: "Message store management commands",
	}

	cmd.AddCommand(newDBInitCmd())
	cmd.AddCommand(newDBResetCmd())
	return cmd
}

func newDBInitCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize the message store",
		Long:  "Creates the database when the driver needs one and migrates the message tables. Safe to re-run.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDBInit(cmd, configPath)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "switchboard.yaml", "path to Switchboard config file")
	return cmd
}

func runDBInit(cmd *cobra.Command, configPath string) error {
	out := cmd.OutOrStdout()

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	if cfg.Database.Driver == "mysql" {
		if err := ensurePassword(cmd, &cfg.Database); err != nil {
			return err
		}
		adminDB, err := db.OpenAdmin(cfg.Database)
		if err != nil {
			return err
		}
		if err := db.CreateDatabase(adminDB, cfg.Database.Name); err != nil {
			return err
		}
		fmt.Fprintf(out, "Database %s ready\n", cfg.Database.Name)
	}

	gdb, err := db.Open(cfg.Database)
	if err != nil {
		return err
	}
	if err := db.AutoMigrate(gdb); err != nil {
		return err
	}
	fmt.Fprintf(out, "Migrated %d tables (%s)\n", len(db.AllModels()), cfg.Database.Driver)

	fmt.Fprintln(out, "\nSwitchboard store initialized successfully.")
	return nil
}

func newDBResetCmd() *cobra.Command {
	var (
		configPath string
		yes        bool
		force      bool
	)

	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Drop and re-create the message tables",
		Long: `Destroys every stored message and re-runs migrations.

For MySQL the whole database is dropped and re-created; for SQLite the
tables are dropped in place.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDBReset(cmd, configPath, yes || force)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "switchboard.yaml", "path to Switchboard config file")
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "skip confirmation prompt")
	cmd.Flags().BoolVar(&force, "force", false, "skip confirmation prompt (alias for --yes)")
	return cmd
}

func runDBReset(cmd *cobra.Command, configPath string, skipConfirm bool) error {
	out := cmd.OutOrStdout()

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	target := cfg.Database.Path
	if cfg.Database.Driver == "mysql" {
		target = cfg.Database.Name
	}
	if !skipConfirm {
		if !confirmPrompt(cmd, fmt.Sprintf("permanently delete all messages in %q", target)) {
			fmt.Fprintln(out, "Aborted.")
			return nil
		}
	}

	if cfg.Database.Driver == "mysql" {
		if err := ensurePassword(cmd, &cfg.Database); err != nil {
			return err
		}
		adminDB, err := db.OpenAdmin(cfg.Database)
		if err != nil {
			return err
		}
		if err := db.DropDatabase(adminDB, cfg.Database.Name); err != nil {
			return err
		}
		fmt.Fprintf(out, "Dropped database %s\n", cfg.Database.Name)
		if err := db.CreateDatabase(adminDB, cfg.Database.Name); err != nil {
			return err
		}
		fmt.Fprintf(out, "Database %s re-created\n", cfg.Database.Name)

		gdb, err := db.Open(cfg.Database)
		if err != nil {
			return err
		}
		if err := db.AutoMigrate(gdb); err != nil {
			return err
		}
	} else {
		gdb, err := db.Open(cfg.Database)
		if err != nil {
			return err
		}
		if err := db.Reset(gdb); err != nil {
			return err
		}
		fmt.Fprintf(out, "Dropped message tables in %s\n", cfg.Database.Path)
	}

	fmt.Fprintf(out, "Migrated %d tables\n", len(db.AllModels()))
	fmt.Fprintln(out, "\nSwitchboard store reset successfully.")
	return nil
}

// ensurePassword prompts for the MySQL password when config and environment
// leave it empty. The prompt needs a terminal; non-interactive runs must set
// SWITCHBOARD_DB_PASSWORD instead.
func ensurePassword(cmd *cobra.Command, dbc *config.DatabaseConfig) error {
	if dbc.Password != "" {
		return nil
	}
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return fmt.Errorf("database password is empty and stdin is not a terminal; set SWITCHBOARD_DB_PASSWORD or database.password")
	}

	fmt.Fprintf(cmd.OutOrStdout(), "MySQL password for %s@%s: ", dbc.User, dbc.Host)
	pw, err := term.ReadPassword(fd)
	fmt.Fprintln(cmd.OutOrStdout())
	if err != nil {
		return fmt.Errorf("read password: %w", err)
	}
	dbc.Password = string(pw)
	return nil
}

// confirmPrompt asks the user to type "yes" before a destructive action.
func confirmPrompt(cmd *cobra.Command, action string) bool {
	out := cmd.OutOrStdout()

	fmt.Fprintf(out, "WARNING: This will %s.\n", action)
	fmt.Fprintln(out, "This action cannot be undone.")
	fmt.Fprintln(out)
	fmt.Fprint(out, "Type \"yes\" to confirm: ")

	scanner := bufio.NewScanner(cmd.InOrStdin())
	if scanner.Scan() {
		return strings.TrimSpace(scanner.Text()) == "yes"
	}
	return false
}

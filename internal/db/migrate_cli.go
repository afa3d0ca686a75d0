package db

import (
	"fmt"
	"io"
	"strconv"
)

// RunMigrateCommand handles the 'migrate' subcommand: up, down, status or
// force <version>.
func RunMigrateCommand(w io.Writer, args []string, dbPath string) error {
	if len(args) < 1 {
		PrintMigrateHelp(w)
		return fmt.Errorf("missing migrate action")
	}

	database, err := OpenDB(dbPath)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer database.Close()

	switch action := args[0]; action {
	case "up":
		if err := database.MigrateUp(); err != nil {
			return err
		}
	case "down":
		if err := database.MigrateDown(); err != nil {
			return err
		}
	case "status":
	case "force":
		if len(args) < 2 {
			return fmt.Errorf("usage: migrate force <version>")
		}
		v, err := strconv.Atoi(args[1])
		if err != nil {
			return fmt.Errorf("invalid version number %q: %w", args[1], err)
		}
		if err := database.MigrateForce(v); err != nil {
			return err
		}
	case "help":
		PrintMigrateHelp(w)
		return nil
	default:
		PrintMigrateHelp(w)
		return fmt.Errorf("unknown migrate action: %s", action)
	}

	version, dirty, err := database.MigrateVersion()
	if err != nil {
		return fmt.Errorf("failed to get migration status: %w", err)
	}
	fmt.Fprintf(w, "Current version: %d (dirty: %v)\n", version, dirty)
	if dirty {
		fmt.Fprintln(w, "A migration failed mid-execution. Inspect the database, then run: migrate force <version>")
	}
	return nil
}

// PrintMigrateHelp prints usage for the migrate subcommand.
func PrintMigrateHelp(w io.Writer) {
	fmt.Fprint(w, `Usage: bandits migrate <action>

Actions:
  up                 apply all pending migrations
  down               roll back the most recent migration
  status             show the current schema version
  force <version>    record <version> without running migrations (recovery only)
`)
}

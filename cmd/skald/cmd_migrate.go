package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/alecthomas/kong"

	"github.com/skald-dev/skald/src/config"
	"github.com/skald-dev/skald/src/storage"
)

// MigrateCmd manages the conversation database schema. Opening the database
// applies pending migrations, so Up is just an explicit open.
type MigrateCmd struct {
	Up     MigrateUpCmd     `cmd:"" default:"1" help:"Apply pending migrations"`
	Status MigrateStatusCmd `cmd:"" help:"Show which migrations have been applied"`
}

type MigrateUpCmd struct {
	Database string `help:"Database path (defaults to config)"`
}

func (c *MigrateUpCmd) Run(kctx *kong.Context, cli *CLI) error {
	path, err := databasePath(cli, c.Database)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create storage directory: %w", err)
	}

	db, err := storage.Open(path)
	if err != nil {
		return err
	}
	defer db.Close()

	fmt.Printf("database: %s\n", path)
	return printMigrations(db)
}

type MigrateStatusCmd struct {
	Database string `help:"Database path (defaults to config)"`
}

func (c *MigrateStatusCmd) Run(kctx *kong.Context, cli *CLI) error {
	path, err := databasePath(cli, c.Database)
	if err != nil {
		return err
	}
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("database %s does not exist, run skald migrate first", path)
	}

	db, err := storage.OpenRaw(path)
	if err != nil {
		return err
	}
	defer db.Close()

	fmt.Printf("database: %s\n", path)
	return printMigrations(db)
}

func databasePath(cli *CLI, override string) (string, error) {
	if override != "" {
		return override, nil
	}
	cfg, err := loadConfig(cli)
	if err != nil {
		return "", err
	}
	if cfg.Storage.DatabasePath != "" {
		return cfg.Storage.DatabasePath, nil
	}
	return config.GetDefaultStoragePaths().DatabasePath, nil
}

func printMigrations(db *storage.DB) error {
	records, err := db.MigrationStatus()
	if err != nil {
		return err
	}
	for _, rec := range records {
		state := "pending"
		if rec.Applied {
			state = "applied"
		}
		fmt.Printf("  %3d  %-32s %s\n", rec.Version, rec.Name, state)
	}
	return nil
}

package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/urfave/cli/v3"

	"github.com/sunny-dsa/shiftcheck/internal/config"
)

const starterConfig = `// shiftcheck configuration. Comments and trailing commas are allowed.
{
  "default_timezone": "UTC",
  "server": {
    "host": "127.0.0.1",
    "port": 8080,
  },
  "auth": {
    "jwt_secret": "${{ .Env.SHIFTCHECK_JWT_SECRET }}",
    "token_ttl": "12h",
  },
  "geofence": {
    "near_multiplier": 1.5,
  },
  "checkin": {
    "ttl": "8h",
  },
  // Marks overdue tasks for the audit trail. Remove to disable.
  "sweep": {
    "schedule": "*/5 * * * *",
  },
  "log": {
    "level": "info",
    "format": "text",
  },
}
`

// NewInitCommand returns the init subcommand.
func NewInitCommand() *cli.Command {
	return &cli.Command{
		Name:  "init",
		Usage: "Create the data directory, starter config and database",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "seed",
				Usage: "YAML seed file to import after initializing",
			},
		},
		Action: runInit,
	}
}

func runInit(ctx context.Context, cmd *cli.Command) error {
	out := stdout(cmd)
	dataDir := config.DataPath()

	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return fmt.Errorf("failed to create %s directory: %w", dataDir, err)
	}
	fmt.Fprintf(out, "✓ Created %s/ directory\n", dataDir)

	gitignorePath := filepath.Join(dataDir, ".gitignore")
	if err := os.WriteFile(gitignorePath, []byte("shiftcheck.db*\nshiftcheck.log\n.env\n"), 0644); err != nil {
		return fmt.Errorf("failed to create .gitignore: %w", err)
	}
	fmt.Fprintf(out, "✓ Created %s\n", gitignorePath)

	configPath := config.ConfigPath()
	if _, err := os.Stat(configPath); errors.Is(err, fs.ErrNotExist) {
		if err := os.WriteFile(configPath, []byte(starterConfig), 0644); err != nil {
			return fmt.Errorf("failed to write config: %w", err)
		}
		fmt.Fprintf(out, "✓ Created %s\n", configPath)
	}

	a, err := openApp(ctx, cmd)
	if err != nil {
		return err
	}
	defer a.Close()
	fmt.Fprintf(out, "✓ Initialized database at %s\n", a.cfg.DBPath)

	if path := cmd.String("seed"); path != "" {
		return importSeed(ctx, cmd, a, path)
	}
	return nil
}

// NewSeedCommand returns the seed subcommand.
func NewSeedCommand() *cli.Command {
	return &cli.Command{
		Name:      "seed",
		Usage:     "Import stores, actors and templates from a YAML file",
		ArgsUsage: "<file.yaml>",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			if cmd.Args().Len() < 1 {
				return fmt.Errorf("usage: shiftcheck seed <file.yaml>")
			}
			a, err := openApp(ctx, cmd)
			if err != nil {
				return err
			}
			defer a.Close()
			return importSeed(ctx, cmd, a, cmd.Args().First())
		},
	}
}

func importSeed(ctx context.Context, cmd *cli.Command, a *app, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open seed file: %w", err)
	}
	defer f.Close()

	res, err := a.db.ImportSeed(ctx, f)
	if err != nil {
		return err
	}
	fmt.Fprintf(stdout(cmd), "✓ Imported %d stores, %d actors, %d templates from %s\n",
		res.Stores, res.Actors, res.Templates, path)
	return nil
}

// NewExportCommand returns the export subcommand.
func NewExportCommand() *cli.Command {
	return &cli.Command{
		Name:      "export",
		Usage:     "Write the JSONL audit snapshot (\"-\" for stdout)",
		ArgsUsage: "[path]",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			a, err := openApp(ctx, cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			path := cmd.Args().First()
			if path == "" {
				path = a.cfg.SnapshotPath
			}
			switch path {
			case "":
				return fmt.Errorf("no snapshot path: pass one or set snapshot_path in the config")
			case "-":
				return a.db.WriteSnapshot(ctx, stdout(cmd))
			}

			if err := a.db.ExportSnapshot(ctx, path); err != nil {
				return err
			}
			fmt.Fprintf(stdout(cmd), "✓ Exported snapshot to %s\n", path)
			return nil
		},
	}
}

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/mattn/go-isatty"
	"github.com/urfave/cli/v3"

	"github.com/sunny-dsa/shiftcheck/internal/config"
	"github.com/sunny-dsa/shiftcheck/internal/db"
	"github.com/sunny-dsa/shiftcheck/internal/events"
	"github.com/sunny-dsa/shiftcheck/internal/tasks"
	"github.com/sunny-dsa/shiftcheck/internal/ui"
)

// NewRootCommand returns the top-level CLI command.
func NewRootCommand() *cli.Command {
	return &cli.Command{
		Name:  "shiftcheck",
		Usage: "Recurring store task checklists with photo and location proof",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to config file (.jsonc or .yaml)",
				Value:   config.ConfigPath(),
			},
			&cli.StringFlag{
				Name:  "db-path",
				Usage: "Path to database file (overrides config)",
			},
			&cli.BoolFlag{
				Name:  "debug",
				Usage: "Enable debug logging",
			},
		},
		Action: runMenu,
		Commands: []*cli.Command{
			NewInitCommand(),
			NewSeedCommand(),
			NewServeCommand(),
			NewMCPCommand(),
			NewEnsureCommand(),
			NewListTasksCommand(),
			NewBoardCommand(),
			NewStatusCommand(),
			NewTokenCommand(),
			NewExportCommand(),
		},
	}
}

// menuCommands are offered by the start menu; the others need arguments.
var menuCommands = []string{"init", "serve", "board", "status", "list-tasks"}

// runMenu lets an interactive user pick a subcommand when none was given.
func runMenu(ctx context.Context, cmd *cli.Command) error {
	if cmd.Args().Present() {
		return fmt.Errorf("unknown command %q", cmd.Args().First())
	}
	if !isatty.IsTerminal(os.Stdin.Fd()) || !isatty.IsTerminal(os.Stdout.Fd()) {
		return cli.ShowAppHelp(cmd)
	}

	items := make([]ui.MenuItem, 0, len(menuCommands))
	for _, name := range menuCommands {
		if sub := cmd.Command(name); sub != nil {
			items = append(items, ui.MenuItem{Name: sub.Name, Usage: sub.Usage})
		}
	}
	selected, err := ui.RunMenu(items)
	if err != nil {
		return fmt.Errorf("run menu: %w", err)
	}
	if selected == "" {
		return nil
	}

	args := []string{cmd.Name}
	for _, name := range []string{"config", "db-path"} {
		if cmd.IsSet(name) {
			args = append(args, "--"+name, cmd.String(name))
		}
	}
	if cmd.Bool("debug") {
		args = append(args, "--debug")
	}

	root := NewRootCommand()
	root.Writer = cmd.Writer
	root.ErrWriter = cmd.ErrWriter
	return root.Run(ctx, append(args, selected))
}

// loadConfig resolves the config for cmd. A missing default config file
// yields the defaults; a missing explicit one is an error.
func loadConfig(cmd *cli.Command) (*config.Config, error) {
	path := cmd.String("config")
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) && !cmd.IsSet("config") {
		path = ""
	}

	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}

	if cmd.IsSet("db-path") {
		cfg.DBPath = cmd.String("db-path")
	}
	if cmd.Bool("debug") {
		cfg.Log.Level = "debug"
	}
	return cfg, nil
}

// app bundles the services every command works against.
type app struct {
	cfg    *config.Config
	db     *db.DB
	bus    *events.Bus
	logger *slog.Logger
	opts   tasks.Options
	inst   *tasks.Instantiator
	mgr    *tasks.Manager
}

func openApp(ctx context.Context, cmd *cli.Command) (*app, error) {
	return openAppWith(ctx, cmd, stderr(cmd))
}

// openAppWith is openApp with logs sent to logs.
func openAppWith(ctx context.Context, cmd *cli.Command, logs io.Writer) (*app, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}

	logger := cfg.Log.NewLogger(logs)
	slog.SetDefault(logger)

	if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	database, err := db.Open(cfg.DBPath)
	if err != nil {
		return nil, err
	}
	if err := database.Init(ctx); err != nil {
		database.Close()
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	bus := events.NewBus(cfg.Events.BufferSize)
	opts := tasks.Options{
		Events:          bus,
		Logger:          logger,
		DefaultLocation: cfg.Location(),
		NearMultiplier:  cfg.Geofence.NearMultiplier,
		CheckinTTL:      cfg.Checkin.TTL.Duration(),
	}

	return &app{
		cfg:    cfg,
		db:     database,
		bus:    bus,
		logger: logger,
		opts:   opts,
		inst:   tasks.NewInstantiator(database, opts),
		mgr:    tasks.NewManager(database, opts),
	}, nil
}

func (a *app) Close() {
	a.bus.Close()
	a.db.Close()
}

func stdout(cmd *cli.Command) io.Writer {
	if w := cmd.Root().Writer; w != nil {
		return w
	}
	return os.Stdout
}

func stderr(cmd *cli.Command) io.Writer {
	if w := cmd.Root().ErrWriter; w != nil {
		return w
	}
	return os.Stderr
}

package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/urfave/cli/v3"

	"github.com/sunny-dsa/shiftcheck/internal/config"
	"github.com/sunny-dsa/shiftcheck/internal/db"
	"github.com/sunny-dsa/shiftcheck/internal/tasks"
	"github.com/sunny-dsa/shiftcheck/internal/ui"
	"github.com/sunny-dsa/shiftcheck/pkg/models"
)

// NewBoardCommand returns the board subcommand.
func NewBoardCommand() *cli.Command {
	return &cli.Command{
		Name:  "board",
		Usage: "Live task board in the terminal",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "store",
				Usage: "Limit to one store",
			},
			&cli.DurationFlag{
				Name:  "interval",
				Usage: "Refresh interval",
				Value: ui.DefaultRefreshInterval,
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			logFile, err := openLogFile()
			if err != nil {
				return err
			}
			defer logFile.Close()

			a, err := openAppWith(ctx, cmd, logFile)
			if err != nil {
				return err
			}
			defer a.Close()

			storeID := cmd.String("store")
			return ui.RunBoard(ctx, ui.BoardOptions{
				Title:    boardTitle(storeID),
				Load:     boardLoader(a.mgr, storeID),
				Interval: cmd.Duration("interval"),
			})
		},
	}
}

func boardTitle(storeID string) string {
	if storeID == "" {
		return "all stores"
	}
	return storeID
}

func boardLoader(mgr *tasks.Manager, storeID string) func(context.Context) ([]*models.TaskInstance, error) {
	return func(ctx context.Context) ([]*models.TaskInstance, error) {
		return mgr.List(ctx, db.InstanceFilter{StoreID: storeID, Limit: 500})
	}
}

// openLogFile keeps logs off the screen while a full-screen view runs.
func openLogFile() (*os.File, error) {
	dir := config.DataPath()
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create %s directory: %w", dir, err)
	}
	f, err := os.OpenFile(filepath.Join(dir, "shiftcheck.log"), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}
	return f, nil
}

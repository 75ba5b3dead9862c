package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/sunny-dsa/shiftcheck/internal/mcp"
	"github.com/sunny-dsa/shiftcheck/internal/server"
	"github.com/sunny-dsa/shiftcheck/internal/tasks"
	"github.com/sunny-dsa/shiftcheck/internal/ui"
)

// NewServeCommand returns the serve subcommand.
func NewServeCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Start the HTTP API and the overdue sweep",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "host",
				Usage: "Host to listen on",
			},
			&cli.IntFlag{
				Name:  "port",
				Usage: "Port to listen on",
			},
			&cli.StringFlag{
				Name:  "sweep",
				Usage: "Cron schedule for the overdue sweep (empty disables)",
			},
			&cli.BoolFlag{
				Name:  "board",
				Usage: "Show the live task board while serving (logs go to the data directory)",
			},
		},
		Action: runServe,
	}
}

func runServe(ctx context.Context, cmd *cli.Command) error {
	logs := stderr(cmd)
	if cmd.Bool("board") {
		logFile, err := openLogFile()
		if err != nil {
			return err
		}
		defer logFile.Close()
		logs = logFile
	}

	a, err := openAppWith(ctx, cmd, logs)
	if err != nil {
		return err
	}
	defer a.Close()

	cfg := a.cfg
	if cmd.IsSet("host") {
		cfg.Server.Host = cmd.String("host")
	}
	if cmd.IsSet("port") {
		cfg.Server.Port = cmd.Int("port")
	}
	if cmd.IsSet("sweep") {
		cfg.Sweep.Schedule = cmd.String("sweep")
	}

	if cfg.SnapshotPath != "" {
		a.db.EnableAutoSnapshot(cfg.SnapshotPath)
		a.logger.Info("auto snapshot enabled", "path", cfg.SnapshotPath)
	}

	auth, err := server.NewAuthenticator(cfg.Auth.JWTSecret, cfg.Auth.Issuer, cfg.Auth.TokenTTL.Duration())
	if err != nil {
		return fmt.Errorf("init auth: %w", err)
	}

	if cfg.Sweep.Schedule != "" {
		sweeper := tasks.NewSweeper(a.db, a.opts)
		if err := sweeper.Start(cfg.Sweep.Schedule); err != nil {
			return err
		}
		defer sweeper.Stop()
		a.logger.Info("overdue sweep scheduled", "schedule", cfg.Sweep.Schedule)
	}

	srv := server.NewServer(server.Options{
		Instantiator: a.inst,
		Manager:      a.mgr,
		Events:       a.bus,
		Auth:         auth,
		Logger:       a.logger,
	})

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start(cfg.Server.Addr())
	}()

	if cmd.Bool("board") {
		feed, unsubscribe := a.bus.SubscribeChan(64)
		defer unsubscribe()

		boardErr := ui.RunBoard(ctx, ui.BoardOptions{
			Title:  boardTitle(""),
			Load:   boardLoader(a.mgr, ""),
			Events: feed,
			URL:    "http://" + cfg.Server.Addr(),
		})
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return boardErr
	}

	select {
	case <-ctx.Done():
		a.logger.Info("shutting down...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

// NewMCPCommand returns the mcp subcommand.
func NewMCPCommand() *cli.Command {
	return &cli.Command{
		Name:  "mcp",
		Usage: "Serve the task tools over MCP on stdio",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			a, err := openApp(ctx, cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			if a.cfg.SnapshotPath != "" {
				a.db.EnableAutoSnapshot(a.cfg.SnapshotPath)
			}
			return mcp.Serve(mcp.NewServer(a.inst, a.mgr))
		},
	}
}

// NewTokenCommand returns the token subcommand.
func NewTokenCommand() *cli.Command {
	return &cli.Command{
		Name:      "token",
		Usage:     "Mint an API bearer token for an actor",
		ArgsUsage: "<actor-id>",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			actorID := cmd.Args().First()
			if actorID == "" {
				return fmt.Errorf("usage: shiftcheck token <actor-id>")
			}

			a, err := openApp(ctx, cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			actor, err := a.db.GetActor(ctx, actorID)
			if err != nil {
				return err
			}
			if actor == nil {
				return fmt.Errorf("actor %q not found", actorID)
			}
			if !actor.Active {
				return fmt.Errorf("actor %q is inactive", actorID)
			}

			auth, err := server.NewAuthenticator(a.cfg.Auth.JWTSecret, a.cfg.Auth.Issuer, a.cfg.Auth.TokenTTL.Duration())
			if err != nil {
				return err
			}
			token, err := auth.IssueToken(actorID)
			if err != nil {
				return err
			}
			fmt.Fprintln(stdout(cmd), token)
			return nil
		},
	}
}

package main

import (
	"context"
	"fmt"
	"sort"
	"text/tabwriter"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/sunny-dsa/shiftcheck/internal/db"
	"github.com/sunny-dsa/shiftcheck/pkg/models"
)

// NewEnsureCommand returns the ensure subcommand.
func NewEnsureCommand() *cli.Command {
	return &cli.Command{
		Name:  "ensure",
		Usage: "Instantiate the current period's tasks for a store",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "store",
				Usage:    "Store ID",
				Required: true,
			},
			&cli.StringFlag{
				Name:  "template",
				Usage: "Only this template (default: every applicable template)",
			},
			&cli.StringFlag{
				Name:  "at",
				Usage: "Reference time in RFC3339 (default: now)",
			},
		},
		Action: runEnsure,
	}
}

func runEnsure(ctx context.Context, cmd *cli.Command) error {
	at := time.Now()
	if v := cmd.String("at"); v != "" {
		parsed, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return fmt.Errorf("invalid --at: %w", err)
		}
		at = parsed
	}

	a, err := openApp(ctx, cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	out := stdout(cmd)
	storeID := cmd.String("store")

	if templateID := cmd.String("template"); templateID != "" {
		inst, created, err := a.inst.EnsureInstance(ctx, templateID, storeID, at)
		if err != nil {
			return err
		}
		verb := "Found"
		if created {
			verb = "Created"
		}
		fmt.Fprintf(out, "✓ %s %s (%s, %s)\n", verb, inst.ID, inst.Title, inst.PeriodKey)
		return nil
	}

	list, err := a.inst.EnsureAllForStore(ctx, storeID, at)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "✓ %d tasks for %s\n", len(list), storeID)
	return printTasks(cmd, list)
}

// NewListTasksCommand returns the list-tasks subcommand.
func NewListTasksCommand() *cli.Command {
	return &cli.Command{
		Name:  "list-tasks",
		Usage: "List task instances",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "store", Usage: "Filter by store ID"},
			&cli.StringFlag{Name: "status", Usage: "Filter by status (pending, available, claimed, in_progress, completed, cancelled, overdue)"},
			&cli.StringFlag{Name: "template", Usage: "Filter by template ID"},
			&cli.StringFlag{Name: "period", Usage: "Filter by period key"},
			&cli.StringFlag{Name: "claimed-by", Usage: "Filter by holder"},
			&cli.IntFlag{Name: "limit", Usage: "Maximum number of tasks"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			a, err := openApp(ctx, cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			list, err := a.mgr.List(ctx, db.InstanceFilter{
				StoreID:    cmd.String("store"),
				Status:     models.TaskStatus(cmd.String("status")),
				TemplateID: cmd.String("template"),
				PeriodKey:  cmd.String("period"),
				ClaimedBy:  cmd.String("claimed-by"),
				Limit:      cmd.Int("limit"),
			})
			if err != nil {
				return err
			}
			return printTasks(cmd, list)
		},
	}
}

func printTasks(cmd *cli.Command, list []*models.TaskInstance) error {
	out := stdout(cmd)
	if len(list) == 0 {
		fmt.Fprintln(out, "No tasks found.")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tTITLE\tSTORE\tPERIOD\tSTATUS\tPHOTOS\tHOLDER")
	for _, t := range list {
		holder := "-"
		if t.ClaimedBy != nil {
			holder = *t.ClaimedBy
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%d/%d\t%s\n",
			t.ID,
			t.Title,
			t.StoreID,
			t.PeriodKey,
			t.Status,
			t.UploadedPhotos,
			t.RequiredPhotos,
			holder,
		)
	}
	return w.Flush()
}

// NewStatusCommand returns the status subcommand.
func NewStatusCommand() *cli.Command {
	return &cli.Command{
		Name:  "status",
		Usage: "Show task counts by status",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "store", Usage: "Limit to one store"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			a, err := openApp(ctx, cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			list, err := a.mgr.List(ctx, db.InstanceFilter{StoreID: cmd.String("store")})
			if err != nil {
				return err
			}

			counts := make(map[models.TaskStatus]int)
			for _, t := range list {
				counts[t.Status]++
			}
			statuses := make([]string, 0, len(counts))
			for s := range counts {
				statuses = append(statuses, string(s))
			}
			sort.Strings(statuses)

			out := stdout(cmd)
			fmt.Fprintf(out, "Database: %s\n", a.cfg.DBPath)
			fmt.Fprintf(out, "Tasks: %d\n", len(list))
			for _, s := range statuses {
				fmt.Fprintf(out, "  %-12s %d\n", s, counts[models.TaskStatus(s)])
			}
			return nil
		},
	}
}

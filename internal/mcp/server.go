package mcp

import (
	"context"
	"errors"
	"fmt"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/sunny-dsa/shiftcheck/internal/db"
	"github.com/sunny-dsa/shiftcheck/internal/tasks"
	"github.com/sunny-dsa/shiftcheck/pkg/models"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// NewServer exposes the task services as MCP tools. Every mutating tool
// names the acting actor explicitly.
func NewServer(inst *tasks.Instantiator, mgr *tasks.Manager) *server.MCPServer {
	s := server.NewMCPServer("Shiftcheck", "0.1.0")

	s.AddTool(mcp.NewTool("ensure_tasks",
		mcp.WithDescription("Make sure the current period's task exists for every recurring template of a store, or for one template."),
		mcp.WithString("store_id", mcp.Description("Store ID"), mcp.Required()),
		mcp.WithString("template_id", mcp.Description("Only ensure this template")),
		mcp.WithString("at", mcp.Description("RFC 3339 instant to resolve the period for (defaults to now)")),
	), ensureTasksHandler(inst))

	s.AddTool(mcp.NewTool("list_tasks",
		mcp.WithDescription("List task instances of a store with optional filters."),
		mcp.WithString("store_id", mcp.Description("Store ID"), mcp.Required()),
		mcp.WithString("status", mcp.Description("Filter by status (pending|available|claimed|in_progress|completed|cancelled|overdue)")),
		mcp.WithString("template_id", mcp.Description("Filter by template")),
		mcp.WithString("period", mcp.Description("Filter by period key, e.g. 2026-10-14")),
		mcp.WithString("claimed_by", mcp.Description("Filter by holder")),
		mcp.WithNumber("limit", mcp.Description("Maximum number of tasks")),
	), listTasksHandler(mgr))

	s.AddTool(mcp.NewTool("get_task",
		mcp.WithDescription("Get a single task instance."),
		mcp.WithString("task_id", mcp.Description("Task ID"), mcp.Required()),
	), getTaskHandler(mgr))

	s.AddTool(mcp.NewTool("claim_task",
		mcp.WithDescription("Claim an open task for an actor who is on premises."),
		mcp.WithString("task_id", mcp.Description("Task ID"), mcp.Required()),
		mcp.WithString("actor_id", mcp.Description("Acting actor"), mcp.Required()),
		mcp.WithNumber("lat", mcp.Description("Reported latitude")),
		mcp.WithNumber("lng", mcp.Description("Reported longitude")),
	), claimTaskHandler(mgr))

	s.AddTool(mcp.NewTool("start_task",
		mcp.WithDescription("Mark a claimed task as in progress."),
		mcp.WithString("task_id", mcp.Description("Task ID"), mcp.Required()),
		mcp.WithString("actor_id", mcp.Description("Acting actor"), mcp.Required()),
	), startTaskHandler(mgr))

	s.AddTool(mcp.NewTool("upload_photo",
		mcp.WithDescription("Attach photo evidence to an open task."),
		mcp.WithString("task_id", mcp.Description("Task ID"), mcp.Required()),
		mcp.WithString("actor_id", mcp.Description("Acting actor"), mcp.Required()),
		mcp.WithString("content_ref", mcp.Description("Reference to the stored image"), mcp.Required()),
		mcp.WithString("item_ref", mcp.Description("Checklist item the photo belongs to")),
		mcp.WithNumber("lat", mcp.Description("Reported latitude")),
		mcp.WithNumber("lng", mcp.Description("Reported longitude")),
	), uploadPhotoHandler(mgr))

	s.AddTool(mcp.NewTool("complete_task",
		mcp.WithDescription("Complete a held task once enough photos are attached."),
		mcp.WithString("task_id", mcp.Description("Task ID"), mcp.Required()),
		mcp.WithString("actor_id", mcp.Description("Acting actor"), mcp.Required()),
		mcp.WithNumber("lat", mcp.Description("Reported latitude")),
		mcp.WithNumber("lng", mcp.Description("Reported longitude")),
		mcp.WithBoolean("force", mcp.Description("Skip every completion check (admin only)")),
		mcp.WithBoolean("override_photos", mcp.Description("Skip the photo requirement (manager or admin)")),
		mcp.WithString("notes", mcp.Description("Completion notes")),
	), completeTaskHandler(mgr))

	s.AddTool(mcp.NewTool("transfer_task",
		mcp.WithDescription("Hand a held task to another actor."),
		mcp.WithString("task_id", mcp.Description("Task ID"), mcp.Required()),
		mcp.WithString("actor_id", mcp.Description("Acting actor"), mcp.Required()),
		mcp.WithString("to", mcp.Description("New holder"), mcp.Required()),
		mcp.WithString("from", mcp.Description("Current holder (defaults to actor_id)")),
		mcp.WithString("reason", mcp.Description("Why the task changes hands")),
	), transferTaskHandler(mgr))

	s.AddTool(mcp.NewTool("cancel_task",
		mcp.WithDescription("Cancel a task that is not completed (admin only)."),
		mcp.WithString("task_id", mcp.Description("Task ID"), mcp.Required()),
		mcp.WithString("actor_id", mcp.Description("Acting actor"), mcp.Required()),
		mcp.WithString("reason", mcp.Description("Cancellation reason")),
	), cancelTaskHandler(mgr))

	return s
}

// Serve starts the MCP server on stdio.
func Serve(s *server.MCPServer) error {
	return server.ServeStdio(s)
}

func ensureTasksHandler(inst *tasks.Instantiator) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		storeID := mcp.ParseString(request, "store_id", "")
		templateID := mcp.ParseString(request, "template_id", "")

		var at time.Time
		if raw := mcp.ParseString(request, "at", ""); raw != "" {
			parsed, err := time.Parse(time.RFC3339, raw)
			if err != nil {
				return mcp.NewToolResultError(fmt.Sprintf("Invalid 'at' time %q: expected RFC 3339", raw)), nil
			}
			at = parsed
		}

		if templateID != "" {
			task, created, err := inst.EnsureInstance(ctx, templateID, storeID, at)
			if err != nil {
				return toolError(err)
			}
			return jsonResult(map[string]any{"tasks": []*models.TaskInstance{task}, "created": created})
		}

		list, err := inst.EnsureAllForStore(ctx, storeID, at)
		if err != nil {
			return toolError(err)
		}
		return jsonResult(map[string]any{"tasks": list})
	}
}

func listTasksHandler(mgr *tasks.Manager) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		f := db.InstanceFilter{
			StoreID:    mcp.ParseString(request, "store_id", ""),
			Status:     models.TaskStatus(mcp.ParseString(request, "status", "")),
			TemplateID: mcp.ParseString(request, "template_id", ""),
			PeriodKey:  mcp.ParseString(request, "period", ""),
			ClaimedBy:  mcp.ParseString(request, "claimed_by", ""),
			Limit:      mcp.ParseInt(request, "limit", 0),
		}

		list, err := mgr.List(ctx, f)
		if err != nil {
			return toolError(err)
		}
		return jsonResult(map[string]any{"tasks": list})
	}
}

func getTaskHandler(mgr *tasks.Manager) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		task, err := mgr.Get(ctx, mcp.ParseString(request, "task_id", ""))
		if err != nil {
			return toolError(err)
		}
		return jsonResult(task)
	}
}

func claimTaskHandler(mgr *tasks.Manager) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		task, err := mgr.Claim(ctx,
			mcp.ParseString(request, "task_id", ""),
			mcp.ParseString(request, "actor_id", ""),
			parseCoordinate(request),
		)
		if err != nil {
			return toolError(err)
		}
		return jsonResult(task)
	}
}

func startTaskHandler(mgr *tasks.Manager) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		task, err := mgr.Start(ctx, mcp.ParseString(request, "task_id", ""), mcp.ParseString(request, "actor_id", ""))
		if err != nil {
			return toolError(err)
		}
		return jsonResult(task)
	}
}

func uploadPhotoHandler(mgr *tasks.Manager) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		req := tasks.UploadRequest{
			TaskID:     mcp.ParseString(request, "task_id", ""),
			ActorID:    mcp.ParseString(request, "actor_id", ""),
			ContentRef: mcp.ParseString(request, "content_ref", ""),
			Coordinate: parseCoordinate(request),
		}
		if item := mcp.ParseString(request, "item_ref", ""); item != "" {
			req.ItemRef = &item
		}

		photo, err := mgr.UploadPhoto(ctx, req)
		if err != nil {
			return toolError(err)
		}
		return jsonResult(photo)
	}
}

func completeTaskHandler(mgr *tasks.Manager) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		opts := tasks.CompleteOptions{
			ForceComplete:            mcp.ParseBoolean(request, "force", false),
			OverridePhotoRequirement: mcp.ParseBoolean(request, "override_photos", false),
		}
		if notes := mcp.ParseString(request, "notes", ""); notes != "" {
			opts.Notes = &notes
		}

		task, err := mgr.Complete(ctx,
			mcp.ParseString(request, "task_id", ""),
			mcp.ParseString(request, "actor_id", ""),
			parseCoordinate(request),
			opts,
		)
		if err != nil {
			return toolError(err)
		}
		return jsonResult(task)
	}
}

func transferTaskHandler(mgr *tasks.Manager) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		task, err := mgr.Transfer(ctx, tasks.TransferRequest{
			TaskID:   mcp.ParseString(request, "task_id", ""),
			CallerID: mcp.ParseString(request, "actor_id", ""),
			FromID:   mcp.ParseString(request, "from", ""),
			ToID:     mcp.ParseString(request, "to", ""),
			Reason:   mcp.ParseString(request, "reason", ""),
		})
		if err != nil {
			return toolError(err)
		}
		return jsonResult(task)
	}
}

func cancelTaskHandler(mgr *tasks.Manager) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		task, err := mgr.Cancel(ctx,
			mcp.ParseString(request, "task_id", ""),
			mcp.ParseString(request, "actor_id", ""),
			mcp.ParseString(request, "reason", ""),
		)
		if err != nil {
			return toolError(err)
		}
		return jsonResult(task)
	}
}

// parseCoordinate returns the reported location, or nil when the caller sent
// no latitude and longitude.
func parseCoordinate(request mcp.CallToolRequest) *models.Coordinate {
	args, _ := request.Params.Arguments.(map[string]any)
	_, hasLat := args["lat"]
	_, hasLng := args["lng"]
	if !hasLat || !hasLng {
		return nil
	}
	return &models.Coordinate{
		Latitude:  mcp.ParseFloat64(request, "lat", 0),
		Longitude: mcp.ParseFloat64(request, "lng", 0),
	}
}

// toolError renders guard failures with their kind so agents can react to
// them; anything else is reported verbatim.
func toolError(err error) (*mcp.CallToolResult, error) {
	var e *tasks.Error
	if errors.As(err, &e) {
		return mcp.NewToolResultError(fmt.Sprintf("%s: %s", e.Kind, e.Message)), nil
	}
	return mcp.NewToolResultError(err.Error()), nil
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

package components

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/sunny-dsa/shiftcheck/pkg/models"
)

var (
	detailTitleStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(lipgloss.Color("86"))

	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241")).
			Width(10)

	valueStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("252"))

	photoDoneStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	photoTodoStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))

	scrollbarTrackStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("236"))

	scrollbarHandleStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("241"))
)

var statusColors = map[models.TaskStatus]lipgloss.Color{
	models.TaskStatusPending:    "245",
	models.TaskStatusAvailable:  "39",
	models.TaskStatusClaimed:    "220",
	models.TaskStatusInProgress: "214",
	models.TaskStatusCompleted:  "42",
	models.TaskStatusCancelled:  "196",
	models.TaskStatusOverdue:    "201",
}

// StatusStyle colors a task status.
func StatusStyle(s models.TaskStatus) lipgloss.Style {
	color, ok := statusColors[s]
	if !ok {
		color = "252"
	}
	return lipgloss.NewStyle().Foreground(color)
}

// PhotoProgress renders uploaded against required photos, one cell per photo.
func PhotoProgress(uploaded, required int) string {
	if required <= 0 {
		return "none required"
	}
	done := uploaded
	if done > required {
		done = required
	}
	bar := photoDoneStyle.Render(strings.Repeat("■", done)) +
		photoTodoStyle.Render(strings.Repeat("□", required-done))
	return fmt.Sprintf("%s %d/%d", bar, uploaded, required)
}

// TaskDetail shows one task in a scrollable viewport.
type TaskDetail struct {
	viewport viewport.Model
	task     *models.TaskInstance
	ready    bool
	width    int
	height   int
}

func NewTaskDetail(width, height int) *TaskDetail {
	return &TaskDetail{
		viewport: viewport.New(width, height),
		width:    width,
		height:   height,
	}
}

func (d *TaskDetail) SetSize(width, height int) {
	d.width = width
	d.height = height
	vpWidth := width
	if width > 0 {
		vpWidth = width - 1
	}
	if !d.ready {
		d.viewport = viewport.New(vpWidth, height)
		d.ready = true
	} else {
		d.viewport.Width = vpWidth
		d.viewport.Height = height
	}
	d.updateContent()
}

// SetTask replaces the shown task. A nil task clears the view.
func (d *TaskDetail) SetTask(t *models.TaskInstance) {
	changed := d.task == nil || t == nil || d.task.ID != t.ID
	d.task = t
	d.updateContent()
	if changed {
		d.viewport.GotoTop()
	}
}

func (d *TaskDetail) Task() *models.TaskInstance {
	return d.task
}

func (d *TaskDetail) updateContent() {
	content := Render(d.task)
	if width := d.viewport.Width; width > 0 {
		content = lipgloss.NewStyle().Width(width).Render(content)
	}
	d.viewport.SetContent(content)
}

// Render formats t as labelled lines.
func Render(t *models.TaskInstance) string {
	if t == nil {
		return placeholderStyle.Render("No task selected")
	}

	var b strings.Builder
	b.WriteString(detailTitleStyle.Render(t.Title))
	b.WriteString("\n\n")

	row := func(label, value string) {
		b.WriteString(labelStyle.Render(label))
		b.WriteString(valueStyle.Render(value))
		b.WriteString("\n")
	}

	status := StatusStyle(t.Status).Render(string(t.Status))
	if t.ClaimedBy != nil && t.Status != models.TaskStatusCompleted {
		status += valueStyle.Render(" held by " + *t.ClaimedBy)
	}
	b.WriteString(labelStyle.Render("Status"))
	b.WriteString(status)
	b.WriteString("\n")

	row("Store", t.StoreID)
	row("Period", t.PeriodKey)
	row("Rule", string(t.AssignmentRule))
	if t.AssigneeID != nil {
		row("Assignee", *t.AssigneeID)
	}
	row("Priority", fmt.Sprintf("%d", t.Priority))
	b.WriteString(labelStyle.Render("Photos"))
	b.WriteString(PhotoProgress(t.UploadedPhotos, t.RequiredPhotos))
	b.WriteString("\n")
	if t.DueAt != nil {
		row("Due", t.DueAt.Format(time.RFC822))
	}
	if t.CompletedAt != nil {
		completed := t.CompletedAt.Format(time.RFC822)
		if t.CompletedBy != nil {
			completed += " by " + *t.CompletedBy
		}
		row("Completed", completed)
	}
	if t.DurationSeconds != nil {
		row("Duration", (time.Duration(*t.DurationSeconds) * time.Second).String())
	}

	if t.Description != "" {
		b.WriteString("\n")
		b.WriteString(valueStyle.Render(t.Description))
		b.WriteString("\n")
	}
	if t.Notes != "" {
		b.WriteString("\n")
		b.WriteString(labelStyle.Render("Notes"))
		b.WriteString("\n")
		b.WriteString(valueStyle.Render(t.Notes))
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

func (d *TaskDetail) Update(msg tea.Msg) tea.Cmd {
	var cmd tea.Cmd
	d.viewport, cmd = d.viewport.Update(msg)
	return cmd
}

func (d *TaskDetail) View() string {
	if !d.ready {
		return ""
	}

	if d.viewport.TotalLineCount() <= d.viewport.Height {
		return d.viewport.View()
	}

	h := d.viewport.Height
	handlePos := int(float64(h-1) * d.viewport.ScrollPercent())

	var sb strings.Builder
	for i := 0; i < h; i++ {
		if i == handlePos {
			sb.WriteString(scrollbarHandleStyle.Render("┃"))
		} else {
			sb.WriteString(scrollbarTrackStyle.Render("│"))
		}
		if i < h-1 {
			sb.WriteString("\n")
		}
	}

	return lipgloss.JoinHorizontal(lipgloss.Top, d.viewport.View(), sb.String())
}

func (d *TaskDetail) Height() int {
	return d.viewport.Height
}

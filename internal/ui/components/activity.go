package components

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
)

var (
	activityBoxStyle = lipgloss.NewStyle().
				Border(lipgloss.NormalBorder()).
				BorderForeground(lipgloss.Color("240")).
				Padding(0, 1)

	activityHeaderStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(lipgloss.Color("252")).
				Padding(0, 1)

	timeStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241"))

	placeholderStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("240")).
				Italic(true).
				Padding(0, 1)

	doneIconStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	cancelledIconStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	overdueIconStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	otherIconStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("39"))
)

// ActivityItem is one entry of the activity feed.
type ActivityItem struct {
	Time    time.Time
	Kind    string
	Summary string
}

// ActivityFeed renders the most recent task changes, oldest first.
type ActivityFeed struct {
	Items []ActivityItem
	Width int
	Title string
}

func NewActivityFeed(width int) *ActivityFeed {
	return &ActivityFeed{
		Items: make([]ActivityItem, 0),
		Width: width,
		Title: "Activity",
	}
}

// Add appends item, keeping at most limit entries when limit is positive.
func (f *ActivityFeed) Add(item ActivityItem, limit int) {
	f.Items = append(f.Items, item)
	if limit > 0 && len(f.Items) > limit {
		f.Items = f.Items[len(f.Items)-limit:]
	}
}

// Icon returns the marker shown for an event kind such as "task.completed".
func Icon(kind string) string {
	switch {
	case strings.HasSuffix(kind, "completed"):
		return doneIconStyle.Render("✓")
	case strings.HasSuffix(kind, "cancelled"):
		return cancelledIconStyle.Render("✗")
	case strings.HasSuffix(kind, "overdue"):
		return overdueIconStyle.Render("!")
	}
	return otherIconStyle.Render("•")
}

func (f *ActivityFeed) View() string {
	var content string
	if len(f.Items) == 0 {
		content = placeholderStyle.Render("No activity yet")
	} else {
		content = f.renderBox()
	}

	if f.Title == "" {
		return content
	}
	return activityHeaderStyle.Render(f.Title) + "\n" + content
}

func (f *ActivityFeed) renderBox() string {
	innerWidth := f.Width - 4
	if innerWidth < 0 {
		innerWidth = 0
	}
	// icon, space, HH:MM:SS, space
	textWidth := innerWidth - 11
	if textWidth < 1 {
		textWidth = 1
	}

	var lines []string
	for _, item := range f.Items {
		stamp := timeStyle.Render(item.Time.Local().Format("15:04:05"))
		wrapped := lipgloss.NewStyle().Width(textWidth).Render(item.Summary)
		for i, line := range strings.Split(wrapped, "\n") {
			if i == 0 {
				lines = append(lines, fmt.Sprintf("%s %s %s", Icon(item.Kind), stamp, line))
			} else {
				lines = append(lines, strings.Repeat(" ", 11)+line)
			}
		}
	}

	return activityBoxStyle.Width(f.Width).Render(strings.Join(lines, "\n"))
}

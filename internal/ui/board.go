package ui

import (
	"context"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/sunny-dsa/shiftcheck/internal/events"
	"github.com/sunny-dsa/shiftcheck/internal/ui/components"
	"github.com/sunny-dsa/shiftcheck/pkg/models"
)

var (
	orbStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("86")).
			Bold(true)

	headerTextStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("39")).
			Padding(0, 1)

	headerStyle = lipgloss.NewStyle().
			Padding(1, 2)

	rowStyle = lipgloss.NewStyle().PaddingLeft(1)

	selectedRowStyle = lipgloss.NewStyle().
				PaddingLeft(1).
				Background(lipgloss.Color("236")).
				Bold(true)

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196"))
)

// DefaultRefreshInterval is how often the board reloads without events.
const DefaultRefreshInterval = 10 * time.Second

// BoardOptions configures the task board.
type BoardOptions struct {
	Title string
	// Load returns the tasks to show, already passed through the overdue view.
	Load func(ctx context.Context) ([]*models.TaskInstance, error)
	// Events, when set, triggers a reload and an activity entry per event.
	Events   <-chan events.Event
	Interval time.Duration
	// URL is shown in the header when the HTTP API runs alongside.
	URL string
}

type tasksLoadedMsg struct {
	tasks []*models.TaskInstance
	at    time.Time
}

type loadErrorMsg struct{ err error }

type eventMsg events.Event

type tickMsg time.Time

// BoardModel is a live view of one store's (or every store's) tasks.
type BoardModel struct {
	ctx      context.Context
	opts     BoardOptions
	tasks    []*models.TaskInstance
	cursor   int
	feed     *components.ActivityFeed
	detail   *components.TaskDetail
	loadedAt time.Time
	err      error
	width    int
	height   int
	listW    int
	sideW    int
	ready    bool
	quitting bool
}

func NewBoardModel(ctx context.Context, opts BoardOptions) *BoardModel {
	if opts.Interval <= 0 {
		opts.Interval = DefaultRefreshInterval
	}
	return &BoardModel{
		ctx:    ctx,
		opts:   opts,
		feed:   components.NewActivityFeed(0),
		detail: components.NewTaskDetail(40, 10),
	}
}

func (m *BoardModel) Init() tea.Cmd {
	return tea.Batch(m.load(), m.tick(), m.waitEvent())
}

func (m *BoardModel) load() tea.Cmd {
	return func() tea.Msg {
		list, err := m.opts.Load(m.ctx)
		if err != nil {
			return loadErrorMsg{err}
		}
		return tasksLoadedMsg{tasks: list, at: time.Now()}
	}
}

func (m *BoardModel) tick() tea.Cmd {
	return tea.Tick(m.opts.Interval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m *BoardModel) waitEvent() tea.Cmd {
	if m.opts.Events == nil {
		return nil
	}
	return func() tea.Msg {
		e, ok := <-m.opts.Events
		if !ok {
			return nil
		}
		return eventMsg(e)
	}
}

func (m *BoardModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.quitting = true
			return m, tea.Quit
		case "j", "down":
			m.moveCursor(1)
		case "k", "up":
			m.moveCursor(-1)
		case "r":
			cmds = append(cmds, m.load())
		case "pgup", "pgdown":
			cmds = append(cmds, m.detail.Update(msg))
		}

	case tea.MouseMsg:
		cmds = append(cmds, m.detail.Update(msg))

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.ready = true
		m.recalculateLayout()

	case tasksLoadedMsg:
		m.setTasks(msg.tasks)
		m.loadedAt = msg.at
		m.err = nil

	case loadErrorMsg:
		m.err = msg.err

	case eventMsg:
		m.feed.Add(components.ActivityItem{
			Time:    msg.Timestamp,
			Kind:    string(msg.Type),
			Summary: describe(events.Event(msg)),
		}, 50)
		cmds = append(cmds, m.load(), m.waitEvent())

	case tickMsg:
		cmds = append(cmds, m.load(), m.tick())
	}

	return m, tea.Batch(cmds...)
}

// setTasks replaces the list and keeps the cursor on the same task when it
// is still present.
func (m *BoardModel) setTasks(list []*models.TaskInstance) {
	var selectedID string
	if sel := m.Selected(); sel != nil {
		selectedID = sel.ID
	}

	m.tasks = list
	m.cursor = 0
	for i, t := range list {
		if t.ID == selectedID {
			m.cursor = i
			break
		}
	}
	m.detail.SetTask(m.Selected())
}

func (m *BoardModel) moveCursor(delta int) {
	if len(m.tasks) == 0 {
		return
	}
	m.cursor += delta
	if m.cursor < 0 {
		m.cursor = len(m.tasks) - 1
	} else if m.cursor >= len(m.tasks) {
		m.cursor = 0
	}
	m.detail.SetTask(m.Selected())
}

// Selected returns the task under the cursor.
func (m *BoardModel) Selected() *models.TaskInstance {
	if m.cursor < 0 || m.cursor >= len(m.tasks) {
		return nil
	}
	return m.tasks[m.cursor]
}

func (m *BoardModel) recalculateLayout() {
	if !m.ready {
		return
	}
	m.sideW = m.width * 2 / 5
	if m.sideW < 30 {
		m.sideW = 30
	}
	m.listW = m.width - m.sideW
	if m.listW < 20 {
		m.listW = 20
	}

	available := m.height - lipgloss.Height(m.renderHeader()) - 1
	if available < 10 {
		available = 10
	}
	m.detail.SetSize(m.sideW-2, available/2)
	m.feed.Width = m.sideW - 2
}

// describe summarizes an event for the activity feed.
func describe(e events.Event) string {
	action := strings.TrimPrefix(string(e.Type), "task.")
	switch {
	case e.Type == events.EventTaskOverdue:
		return fmt.Sprintf("overdue sweep marked %v", e.Payload["count"])
	case e.ActorID != "":
		return fmt.Sprintf("%s %s %s", e.ActorID, action, shortID(e.TaskID))
	}
	return fmt.Sprintf("%s %s", shortID(e.TaskID), action)
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// counts returns how many tasks are open (not terminal) and overdue.
func (m *BoardModel) counts() (open, overdue int) {
	for _, t := range m.tasks {
		if t.Status == models.TaskStatusOverdue {
			overdue++
		}
		if !t.Status.Terminal() {
			open++
		}
	}
	return open, overdue
}

func (m *BoardModel) View() string {
	if m.quitting {
		return ""
	}
	if !m.ready {
		return "Loading board..."
	}

	header := m.renderHeader()
	help := m.renderHelp()
	available := m.height - lipgloss.Height(header) - lipgloss.Height(help)
	if available < 0 {
		available = 0
	}

	list := lipgloss.NewStyle().
		Width(m.listW-1).
		Height(available).
		Border(lipgloss.NormalBorder(), false, true, false, false).
		BorderForeground(lipgloss.Color("240")).
		Render(m.renderList(available))

	side := lipgloss.NewStyle().
		Width(m.sideW).
		Height(available).
		PaddingLeft(1).
		Render(m.detail.View() + "\n\n" + m.feed.View())

	return header + "\n" + lipgloss.JoinHorizontal(lipgloss.Top, list, side) + "\n" + help
}

func (m *BoardModel) renderList(height int) string {
	if len(m.tasks) == 0 {
		return helpStyle.Render(" No tasks")
	}

	// Keep the cursor row visible.
	start := 0
	if height > 0 && m.cursor >= height {
		start = m.cursor - height + 1
	}
	end := len(m.tasks)
	if height > 0 && end > start+height {
		end = start + height
	}

	titleW := m.listW - 32
	if titleW < 10 {
		titleW = 10
	}

	var rows []string
	for i := start; i < end; i++ {
		t := m.tasks[i]
		title := t.Title
		if r := []rune(title); len(r) > titleW {
			title = string(r[:titleW-1]) + "…"
		}
		line := fmt.Sprintf("%-*s %s %s",
			titleW, title,
			components.StatusStyle(t.Status).Render(fmt.Sprintf("%-12s", t.Status)),
			fmt.Sprintf("%d/%d", t.UploadedPhotos, t.RequiredPhotos),
		)
		if i == m.cursor {
			rows = append(rows, selectedRowStyle.Render("> "+line))
		} else {
			rows = append(rows, rowStyle.Render("  "+line))
		}
	}
	return strings.Join(rows, "\n")
}

func (m *BoardModel) renderHeader() string {
	open, overdue := m.counts()
	text := fmt.Sprintf("Shiftcheck | %s | Tasks: %d | Open: %d | Overdue: %d",
		m.opts.Title, len(m.tasks), open, overdue)
	if !m.loadedAt.IsZero() {
		text += " | Updated " + m.loadedAt.Format("15:04:05")
	}
	if m.opts.URL != "" {
		text += " | API: " + m.opts.URL
	}

	header := lipgloss.JoinHorizontal(lipgloss.Center, orbStyle.Render("⬤"), "  ", headerTextStyle.Render(text))
	return headerStyle.Width(m.width - 4).Render(header)
}

func (m *BoardModel) renderHelp() string {
	help := helpStyle.Render("Press 'q' to quit • 'j'/'k' to navigate • 'r' to refresh")
	if m.err != nil {
		help += "  " + errorStyle.Render("Error: "+m.err.Error())
	}
	return help
}

// RunBoard shows the board until the user quits or ctx is cancelled.
func RunBoard(ctx context.Context, opts BoardOptions) error {
	m := NewBoardModel(ctx, opts)
	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithMouseCellMotion(), tea.WithContext(ctx))
	_, err := p.Run()
	if err != nil && ctx.Err() != nil {
		return nil
	}
	return err
}

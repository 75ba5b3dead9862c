package ui

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

var (
	logoStyle         = lipgloss.NewStyle().Foreground(lipgloss.Color("86"))
	itemStyle         = lipgloss.NewStyle().PaddingLeft(2)
	selectedItemStyle = lipgloss.NewStyle().PaddingLeft(2).Foreground(lipgloss.Color("86")).Bold(true)
	usageStyle        = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

const logo = `
       __    _ ______       __              __
  ___ / /   (_) _/ /_ ____ / /  ___ ____ __/ /__
 (_-</ _ \ / / _/ __// __// _ \/ -_) __// '_/ _/
/___/_//_//_/_/ \__/ \__//_//_/\__/\__//_/\_\\__/
`

// MenuItem is one selectable command.
type MenuItem struct {
	Name  string
	Usage string
}

type MenuModel struct {
	choices  []MenuItem
	cursor   int
	selected string
	quitting bool
}

func NewMenuModel(choices []MenuItem) MenuModel {
	return MenuModel{choices: choices}
}

func (m MenuModel) Init() tea.Cmd {
	return nil
}

func (m MenuModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			m.quitting = true
			return m, tea.Quit

		case "up", "k":
			if m.cursor > 0 {
				m.cursor--
			}

		case "down", "j":
			if m.cursor < len(m.choices)-1 {
				m.cursor++
			}

		case "enter":
			if len(m.choices) > 0 {
				m.selected = m.choices[m.cursor].Name
			}
			return m, tea.Quit
		}
	}

	return m, nil
}

func (m MenuModel) View() string {
	if m.quitting {
		return ""
	}

	var s strings.Builder

	s.WriteString(logoStyle.Render(logo))
	s.WriteString("\n\n")

	for i, choice := range m.choices {
		line := fmt.Sprintf("%-12s %s", choice.Name, usageStyle.Render(choice.Usage))
		if m.cursor == i {
			s.WriteString(selectedItemStyle.Render("> " + line))
		} else {
			s.WriteString(itemStyle.Render("  " + line))
		}
		s.WriteString("\n")
	}

	s.WriteString("\n(use arrow keys or j/k to navigate, enter to select, q to quit)\n")

	return s.String()
}

func (m MenuModel) Selected() string {
	return m.selected
}

// RunMenu shows the menu and returns the chosen command name, or "" when
// the user quits.
func RunMenu(choices []MenuItem) (string, error) {
	p := tea.NewProgram(NewMenuModel(choices))
	finalModel, err := p.Run()
	if err != nil {
		return "", err
	}
	return finalModel.(MenuModel).Selected(), nil
}

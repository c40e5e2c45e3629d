package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("15")).
			Background(lipgloss.Color("62")).
			Padding(0, 1)

	headerStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("246"))
	selectedStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212"))
	dimStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	errStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	spinnerStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))

	statusStyles = map[string]lipgloss.Style{
		"draft":            lipgloss.NewStyle().Foreground(lipgloss.Color("244")),
		"todo":             lipgloss.NewStyle().Foreground(lipgloss.Color("39")),
		"in_progress":      lipgloss.NewStyle().Foreground(lipgloss.Color("214")),
		"waiting_for_user": lipgloss.NewStyle().Foreground(lipgloss.Color("135")),
		"done":             lipgloss.NewStyle().Foreground(lipgloss.Color("40")),
		"failed":           lipgloss.NewStyle().Foreground(lipgloss.Color("196")),
		"cancelled":        lipgloss.NewStyle().Foreground(lipgloss.Color("243")),
	}
)

// View renders the dashboard.
func (m Model) View() string {
	var b strings.Builder

	title := fmt.Sprintf("Helmsman — %s", m.cfg.CompanyID)
	if m.loading {
		title += " " + m.spin.View()
	}
	b.WriteString(titleStyle.Render(title))
	b.WriteString("\n\n")

	if m.err != nil {
		b.WriteString(errStyle.Render("error: " + m.err.Error()))
		b.WriteString("\n\n")
	}

	b.WriteString(m.renderTasks())
	b.WriteString("\n")
	b.WriteString(m.renderEvents())
	b.WriteString("\n")
	b.WriteString(dimStyle.Render("j/k move · c cancel · r refresh · q quit"))
	return b.String()
}

func (m Model) renderTasks() string {
	if len(m.tasks) == 0 {
		return dimStyle.Render("No tasks yet.") + "\n"
	}

	var b strings.Builder
	b.WriteString(headerStyle.Render(fmt.Sprintf("  %-18s %-16s %-10s %s", "ID", "STATUS", "AGENT", "TITLE")))
	b.WriteString("\n")

	for i, t := range m.tasks {
		status := t.Status
		if st, ok := statusStyles[t.Status]; ok {
			status = st.Render(t.Status)
		}
		line := fmt.Sprintf("%-18s %-16s %-10s %s", t.ID, status, truncate(t.AgentID, 10), truncate(t.Title, 60))
		if i == m.selected {
			b.WriteString(selectedStyle.Render("> " + line))
		} else {
			b.WriteString("  " + line)
		}
		b.WriteString("\n")
	}
	return b.String()
}

func (m Model) renderEvents() string {
	var b strings.Builder
	b.WriteString(headerStyle.Render("Events"))
	b.WriteString("\n")

	lines := m.events
	visible := m.height - len(m.tasks) - 8
	if visible < 3 {
		visible = 3
	}
	if len(lines) > visible {
		lines = lines[len(lines)-visible:]
	}
	if len(lines) == 0 {
		b.WriteString(dimStyle.Render("  waiting for events..."))
		b.WriteString("\n")
		return b.String()
	}
	for _, l := range lines {
		b.WriteString(dimStyle.Render("  " + l))
		b.WriteString("\n")
	}
	return b.String()
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	if n <= 1 {
		return s[:n]
	}
	return s[:n-1] + "…"
}

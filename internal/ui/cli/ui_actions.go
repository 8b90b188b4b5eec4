package cli

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
)

func handleKeyActions(msg tea.KeyMsg, m model) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c", "q":
		return m, tea.Quit
	case "r":
		m.svc.RequestRefresh()
		m.notice = "Refresh requested"
		return m, nil
	case "+", "=":
		return adjustRetention(m, retentionStep)
	case "-", "_":
		return adjustRetention(m, -retentionStep)
	}

	var cmd tea.Cmd
	m.table, cmd = m.table.Update(msg)
	return m, cmd
}

func adjustRetention(m model, delta int) (tea.Model, tea.Cmd) {
	current := m.svc.RetentionTarget()
	next := current + delta
	if next < 1 {
		next = 1
	}
	if next == current {
		return m, nil
	}
	m.svc.SetRetentionTarget(next)
	m.svc.RequestRefresh()
	m.retention = next
	m.notice = fmt.Sprintf("Retention %d -> %d", current, next)
	return m, nil
}

package cli

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"revwatch/internal/core/ports"
)

const (
	retentionStep = 10
	tickInterval  = time.Second
)

var (
	titleStyle = lipgloss.NewStyle().
			MarginLeft(2).
			Foreground(lipgloss.Color("#3B82F6")).
			Bold(true).
			Render

	docStyle = lipgloss.NewStyle().Margin(1, 2)

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#F87171")).
			Bold(true)

	successStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#10B981")).
			Bold(true)

	statusStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#64748B")).
			Italic(true)
)

type model struct {
	svc        ports.MonitorService
	author     string
	table      table.Model
	views      []ports.ChangeView
	status     string
	retention  int
	authorCode int
	context    string
	notice     string
	lastUpdate time.Time
}

// refreshMsg carries a fresh read of the monitor. It is built off the UI goroutine.
type refreshMsg struct {
	views      []ports.ChangeView
	status     string
	retention  int
	authorCode int
}

type contextMsg string

type tickMsg time.Time

func snapshot(svc ports.MonitorService, author string) refreshMsg {
	msg := refreshMsg{
		views:      svc.Views(),
		status:     svc.LastStatusMessage(),
		retention:  svc.RetentionTarget(),
		authorCode: -1,
	}
	if author != "" {
		msg.authorCode = svc.LastCodeChangeByAuthor(author)
	}
	return msg
}

func refreshCmd(svc ports.MonitorService, author string) tea.Cmd {
	return func() tea.Msg { return snapshot(svc, author) }
}

func tickCmd() tea.Cmd {
	return tea.Tick(tickInterval, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func columns(width int) []table.Column {
	cols := []table.Column{
		{Title: "Change", Width: 8},
		{Title: "Type", Width: 8},
		{Title: "Author", Width: 14},
		{Title: "Archive", Width: 28},
	}
	used := 0
	for _, c := range cols {
		used += c.Width + 2
	}
	desc := width - used
	if desc < 20 {
		desc = 20
	}
	return append(cols, table.Column{Title: "Description", Width: desc})
}

func rows(views []ports.ChangeView, authorCode int) []table.Row {
	out := make([]table.Row, 0, len(views))
	for _, v := range views {
		number := strconv.Itoa(v.Number)
		if v.Number == authorCode {
			number = "*" + number
		}
		typ := v.Type
		if typ == "" {
			typ = "?"
		}
		desc, _, _ := strings.Cut(v.Description, "\n")
		out = append(out, table.Row{number, typ, v.Author, v.Archive, desc})
	}
	return out
}

func initialModel(svc ports.MonitorService, author string) model {
	t := table.New(
		table.WithColumns(columns(100)),
		table.WithFocused(true),
		table.WithHeight(15),
	)
	styles := table.DefaultStyles()
	styles.Header = styles.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderBottom(true).
		Bold(true)
	styles.Selected = styles.Selected.
		Foreground(lipgloss.Color("#F8FAFC")).
		Background(lipgloss.Color("#3B82F6"))
	t.SetStyles(styles)

	return model{
		svc:        svc,
		author:     author,
		table:      t,
		authorCode: -1,
		lastUpdate: time.Now(),
	}
}

func (m model) Init() tea.Cmd {
	return tea.Batch(refreshCmd(m.svc, m.author), tickCmd())
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return handleKeyActions(msg, m)
	case tea.WindowSizeMsg:
		h, v := docStyle.GetFrameSize()
		height := msg.Height - v - 7
		if height < 5 {
			height = 5
		}
		m.table.SetColumns(columns(msg.Width - h))
		m.table.SetWidth(msg.Width - h)
		m.table.SetHeight(height)
		return m, nil
	case refreshMsg:
		m.views = msg.views
		m.status = msg.status
		m.retention = msg.retention
		m.authorCode = msg.authorCode
		m.lastUpdate = time.Now()
		m.table.SetRows(rows(m.views, m.authorCode))
		return m, nil
	case contextMsg:
		m.context = string(msg)
		m.notice = fmt.Sprintf("Switched to %s", m.context)
		return m, refreshCmd(m.svc, m.author)
	case tickMsg:
		return m, tea.Batch(refreshCmd(m.svc, m.author), tickCmd())
	}

	var cmd tea.Cmd
	m.table, cmd = m.table.Update(msg)
	return m, cmd
}

func (m model) View() string {
	status := m.status
	if status == "" {
		status = "Waiting for first update..."
	}
	var statusLine string
	if strings.HasPrefix(status, "Failed") || strings.Contains(status, "with errors") {
		statusLine = errorStyle.Render(status)
	} else {
		statusLine = successStyle.Render(status)
	}

	info := fmt.Sprintf("%d changes | retention %d | refreshed %s", len(m.views), m.retention, m.lastUpdate.Format("15:04:05"))
	if m.context != "" {
		info += " | " + m.context
	}
	if m.author != "" {
		if m.authorCode > 0 {
			info += fmt.Sprintf(" | last code change by %s: %d", m.author, m.authorCode)
		} else {
			info += fmt.Sprintf(" | no code change by %s", m.author)
		}
	}

	header := fmt.Sprintf("%s\n%s | %s\n", titleStyle("Revision Monitor"), statusLine, statusStyle.Render(info))
	body := m.table.View()
	if m.notice != "" {
		body += "\n" + statusStyle.Render(m.notice)
	}
	return docStyle.Render(header + "\n" + body + "\n\n" + renderHelp())
}

func renderHelp() string {
	return statusStyle.Render("Keys: ↑/↓ scroll | r refresh | +/- retention | q quit")
}

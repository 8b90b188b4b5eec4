package cli

import (
	tea "github.com/charmbracelet/bubbletea"

	coreapp "revwatch/internal/core/app"
)

func runUI(app *coreapp.App, author string) error {
	m := initialModel(app.Monitor, author)
	p := tea.NewProgram(m, tea.WithAltScreen())

	// Callbacks run on the poll worker and must not wait for the UI loop.
	notify := func() {
		msg := snapshot(app.Monitor, author)
		go p.Send(msg)
	}
	app.Monitor.OnChanged(notify)
	app.Monitor.OnMetadataChanged(notify)
	app.Monitor.OnContextChanged(func(name string) {
		go p.Send(contextMsg(name))
	})

	_, err := p.Run()
	return err
}

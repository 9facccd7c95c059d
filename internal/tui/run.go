package tui

import (
	tea "github.com/charmbracelet/bubbletea"

	"github.com/akimixu/mksearch/internal/events"
)

// Run shows the search feeding sink until the user quits. stop is called
// when the user presses s.
func Run(keywords string, sink *events.ChanSink, stop func() bool) error {
	m := initialModel(keywords, sink.C(), sink.Done(), stop)
	p := tea.NewProgram(m, tea.WithAltScreen())
	_, err := p.Run()
	return err
}

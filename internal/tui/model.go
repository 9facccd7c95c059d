// Package tui renders a live search in the terminal with bubbletea.
package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/akimixu/mksearch/internal/events"
)

var (
	cTitle = lipgloss.NewStyle().Bold(true)
	cDim   = lipgloss.NewStyle().Faint(true)

	box = lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		Padding(0, 1)

	headerBar = lipgloss.NewStyle().
			Border(lipgloss.NormalBorder(), false, false, true, false).
			Padding(0, 1)

	badgeOK = lipgloss.NewStyle().
		Foreground(lipgloss.Color("10")).
		Bold(true)

	badgeRun = lipgloss.NewStyle().
			Foreground(lipgloss.Color("12")).
			Bold(true)

	badgeWarn = lipgloss.NewStyle().
			Foreground(lipgloss.Color("11")).
			Bold(true)

	badgeErr = lipgloss.NewStyle().
			Foreground(lipgloss.Color("9")).
			Bold(true)
)

type status int

const (
	statusSearching status = iota
	statusStopping
	statusCompleted
	statusStopped
	statusFailed
)

func (s status) badge() string {
	switch s {
	case statusStopping:
		return badgeWarn.Render(" STOPPING ")
	case statusCompleted:
		return badgeOK.Render(" DONE ")
	case statusStopped:
		return badgeWarn.Render(" STOPPED ")
	case statusFailed:
		return badgeErr.Render(" ERROR ")
	default:
		return badgeRun.Render(" SEARCHING ")
	}
}

// closedMsg is delivered when the event source shuts down.
type closedMsg struct{}

type model struct {
	width  int
	height int

	started  time.Time
	finished time.Time

	prog progress.Model
	spin spinner.Model
	tab  table.Model

	keywords string
	updates  <-chan events.Event
	closed   <-chan struct{}
	stop     func() bool

	total     int
	processed int
	found     int

	status  status
	message string
}

func initialModel(keywords string, updates <-chan events.Event, closed <-chan struct{}, stop func() bool) model {
	p := progress.New(progress.WithDefaultGradient())
	p.Width = 40

	s := spinner.New()
	s.Spinner = spinner.Dot

	cols := []table.Column{
		{Title: "File", Width: 48},
		{Title: "Matches", Width: 8},
		{Title: "Keywords", Width: 30},
	}
	t := table.New(table.WithColumns(cols), table.WithFocused(true), table.WithHeight(12))
	st := table.DefaultStyles()
	st.Header = st.Header.Bold(true)
	st.Selected = st.Selected.Bold(true)
	t.SetStyles(st)

	return model{
		started:  time.Now(),
		prog:     p,
		spin:     s,
		tab:      t,
		keywords: keywords,
		updates:  updates,
		closed:   closed,
		stop:     stop,
	}
}

func (m model) Init() tea.Cmd {
	return tea.Batch(
		m.spin.Tick,
		waitEvent(m.updates, m.closed),
	)
}

func waitEvent(ch <-chan events.Event, closed <-chan struct{}) tea.Cmd {
	return func() tea.Msg {
		select {
		case ev := <-ch:
			return ev
		case <-closed:
			return closedMsg{}
		}
	}
}

// stopCmd requests the stop off the update loop, which must stay free to
// drain events.
func stopCmd(stop func() bool) tea.Cmd {
	return func() tea.Msg {
		stop()
		return nil
	}
}

func (m model) running() bool {
	return m.status == statusSearching || m.status == statusStopping
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(msg)
		return m, cmd

	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.prog.Width = clamp(m.width-12, 20, 90)
		cols := m.tab.Columns()
		cols[0].Width = clamp(m.width-50, 20, 100)
		m.tab.SetColumns(cols)
		m.tab.SetHeight(clamp(m.height-14, 5, 40))
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case "s":
			if m.status == statusSearching && m.stop != nil {
				m.status = statusStopping
				return m, stopCmd(m.stop)
			}
			return m, nil
		default:
			var cmd tea.Cmd
			m.tab, cmd = m.tab.Update(msg)
			return m, cmd
		}

	case closedMsg:
		if m.running() {
			m.status = statusStopped
			m.finished = time.Now()
		}
		return m, nil

	case events.Event:
		m = m.apply(msg)
		if msg.Type.Terminal() {
			return m, nil
		}
		return m, waitEvent(m.updates, m.closed)

	default:
		return m, nil
	}
}

func (m model) apply(ev events.Event) model {
	if ev.Message != "" {
		m.message = ev.Message
	}
	switch p := ev.Progress.(type) {
	case events.BatchProgress:
		m.total, m.processed, m.found = p.Total, p.Processed, p.Found
	case events.ResultProgress:
		m.total = p.TotalFiles
		m.processed = max(m.processed, p.Processed)
		m.found = max(m.found, p.Current)
	}

	switch ev.Type {
	case events.TypeResultItem:
		if r := ev.Data; r != nil {
			rows := append(m.tab.Rows(), table.Row{
				r.RelativePath,
				fmt.Sprintf("%d", r.TotalMatches),
				strings.Join(r.MatchedKeywords, ", "),
			})
			m.tab.SetRows(rows)
		}
	case events.TypeComplete:
		m.status = statusCompleted
		m.finished = time.Now()
	case events.TypeStopped:
		m.status = statusStopped
		m.finished = time.Now()
	case events.TypeError:
		m.status = statusFailed
		m.finished = time.Now()
	}
	return m
}

func (m model) percent() float64 {
	if m.total == 0 {
		return 0
	}
	return float64(m.processed) / float64(m.total)
}

func (m model) View() string {
	badge := m.status.badge()
	if m.running() {
		badge = m.spin.View() + " " + badge
	}
	header := headerBar.Width(max(0, m.width-2)).Render(
		cTitle.Render("mksearch") + " " + badge + "\n" +
			cDim.Render("keywords="+m.keywords))

	end := time.Now()
	if !m.finished.IsZero() {
		end = m.finished
	}
	elapsed := end.Sub(m.started).Truncate(100 * time.Millisecond)
	stats := fmt.Sprintf("Files %d/%d  Matches %d  Elapsed %s", m.processed, m.total, m.found, elapsed)

	results := box.Width(max(40, m.width-2)).Render(cTitle.Render("Results") + "\n" + m.tab.View())

	msg := cDim.Render(m.message)
	if m.status == statusFailed {
		msg = badgeErr.Render(m.message)
	}

	hint := "Keys: ↑/↓ scroll | q quit"
	if m.status == statusSearching {
		hint = "Keys: ↑/↓ scroll | s stop | q quit"
	}

	return joinLines(
		header,
		"",
		m.prog.ViewAs(m.percent()),
		cDim.Render(stats),
		msg,
		"",
		results,
		cDim.Render(hint),
	)
}

func joinLines(lines ...string) string { return strings.Join(lines, "\n") }

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

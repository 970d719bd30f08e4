// Package browse implements the interactive plugin browser. Plugins appear in
// the list as the async pipeline yields them.
package browse

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/mattjoyce/plugscan/internal/inspect"
	"github.com/mattjoyce/plugscan/internal/plugin"
)

// Model is the BubbleTea model for the plugin browser.
type Model struct {
	stream *Stream
	roots  []string

	width  int
	height int

	entries []inspect.Entry
	shadows inspect.Shadows
	loading bool
	started time.Time
	elapsed time.Duration

	spinner spinner.Model
	table   table.Model
	theme   Theme
	detail  bool
}

// New creates a browser fed by stream. roots is shown in the header.
func New(stream *Stream, roots []string) Model {
	theme := NewDefaultTheme()

	t := table.New(
		table.WithColumns([]table.Column{
			{Title: "Name", Width: 20},
			{Title: "Priority", Width: 8},
			{Title: "Pattern", Width: 16},
			{Title: "Source", Width: 48},
		}),
		table.WithFocused(true),
		table.WithHeight(12),
	)
	s := table.DefaultStyles()
	s.Header = s.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(lipgloss.Color("240")).
		BorderBottom(true).
		Bold(false)
	s.Selected = s.Selected.
		Foreground(lipgloss.Color("229")).
		Background(lipgloss.Color("57")).
		Bold(false)
	t.SetStyles(s)

	return Model{
		stream:  stream,
		roots:   roots,
		loading: true,
		started: time.Now(),
		spinner: spinner.New(spinner.WithSpinner(spinner.Dot), spinner.WithStyle(theme.Spinner)),
		table:   t,
		theme:   theme,
	}
}

// Entries returns the plugins received so far, in pipeline order.
func (m Model) Entries() []inspect.Entry {
	return m.entries
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(
		m.stream.Next(),
		m.spinner.Tick,
	)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.stream.Stop()
			return m, tea.Quit
		case "enter":
			m.detail = len(m.entries) > 0 && !m.detail
			return m, nil
		case "esc":
			m.detail = false
			return m, nil
		}
		m.table, cmd = m.table.Update(msg)
		return m, cmd

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.table.SetWidth(max(m.width-6, 20))
		m.table.SetHeight(max(m.height/2, 5))

	case spinner.TickMsg:
		if !m.loading {
			return m, nil
		}
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case pluginMsg:
		m.entries = append(m.entries, m.shadows.Entry(plugin.LoadedPlugin(msg)))
		m.table.SetRows(m.rows())
		return m, m.stream.Next()

	case doneMsg:
		m.loading = false
		m.elapsed = time.Since(m.started)
	}

	return m, nil
}

func (m Model) rows() []table.Row {
	rows := make([]table.Row, 0, len(m.entries))
	for _, e := range m.entries {
		name := e.Name
		if e.ShadowedBy != "" {
			name += " *"
		}
		pattern := "-"
		if e.HasPattern {
			pattern = e.Regex
		}
		rows = append(rows, table.Row{name, e.Priority, pattern, e.Source})
	}
	return rows
}

func (m Model) selected() (inspect.Entry, bool) {
	i := m.table.Cursor()
	if i < 0 || i >= len(m.entries) {
		return inspect.Entry{}, false
	}
	return m.entries[i], true
}

func (m Model) View() string {
	var status string
	if m.loading {
		status = fmt.Sprintf("%s loading… %d plugin(s)", m.spinner.View(), len(m.entries))
	} else {
		status = m.theme.Highlight.Render(fmt.Sprintf("%d plugin(s) in %s", len(m.entries), m.elapsed.Round(time.Millisecond)))
	}

	header := lipgloss.JoinVertical(lipgloss.Left,
		m.theme.Title.Render("plugscan")+" "+status,
		m.theme.Dim.Render("roots: "+strings.Join(m.roots, ", ")),
	)

	parts := []string{header, m.theme.Border.Render(m.table.View())}

	if m.detail {
		if e, ok := m.selected(); ok {
			detail := strings.TrimRight(inspect.RenderDetail(e), "\n")
			parts = append(parts, m.theme.Border.Render(detail))
		}
	}

	if !m.loading && len(m.entries) == 0 {
		parts = append(parts, m.theme.Warn.Render(" no plugins found"))
	}

	help := " [q] Quit • [↑/↓] Navigate • [enter] Details • [esc] Close • * same name as an earlier plugin"
	parts = append(parts, m.theme.Help.Render(help))

	return lipgloss.NewStyle().Margin(1, 2).Render(
		lipgloss.JoinVertical(lipgloss.Left, parts...),
	)
}

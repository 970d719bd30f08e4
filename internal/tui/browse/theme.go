package browse

import "github.com/charmbracelet/lipgloss"

// Theme keeps the browser's colors in one place.
type Theme struct {
	Border    lipgloss.Style
	Title     lipgloss.Style
	Dim       lipgloss.Style
	Highlight lipgloss.Style
	Warn      lipgloss.Style
	Spinner   lipgloss.Style
	Help      lipgloss.Style
}

func NewDefaultTheme() Theme {
	purple := lipgloss.Color("#874BFD")

	return Theme{
		Border: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(purple),
		Title: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Padding(0, 1),
		Dim:       lipgloss.NewStyle().Foreground(lipgloss.Color("#888888")),
		Highlight: lipgloss.NewStyle().Foreground(lipgloss.Color("#E5C07B")),
		Warn:      lipgloss.NewStyle().Foreground(lipgloss.Color("#FFFF00")),
		Spinner:   lipgloss.NewStyle().Foreground(lipgloss.Color("#61AFEF")),
		Help:      lipgloss.NewStyle().Foreground(lipgloss.Color("241")),
	}
}

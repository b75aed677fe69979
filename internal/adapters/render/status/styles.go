package status

import "github.com/charmbracelet/lipgloss"

type styles struct {
	title    lipgloss.Style
	header   lipgloss.Style
	account  lipgloss.Style
	detail   lipgloss.Style
	good     lipgloss.Style
	warning  lipgloss.Style
	bad      lipgloss.Style
	section  lipgloss.Style
	empty    lipgloss.Style
	quotaKey lipgloss.Style
}

func newStyles() styles {
	return styles{
		title:    lipgloss.NewStyle().Bold(true),
		header:   lipgloss.NewStyle().Foreground(lipgloss.Color("241")),
		account:  lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39")),
		detail:   lipgloss.NewStyle().Foreground(lipgloss.Color("252")),
		good:     lipgloss.NewStyle().Foreground(lipgloss.Color("114")),
		warning:  lipgloss.NewStyle().Foreground(lipgloss.Color("214")),
		bad:      lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("203")),
		section:  lipgloss.NewStyle().MarginTop(1),
		empty:    lipgloss.NewStyle().Faint(true),
		quotaKey: lipgloss.NewStyle().Foreground(lipgloss.Color("250")),
	}
}

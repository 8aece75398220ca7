package session

import "github.com/charmbracelet/lipgloss"

type styles struct {
	title     lipgloss.Style
	header    lipgloss.Style
	anonymous lipgloss.Style
	signedIn  lipgloss.Style
	detail    lipgloss.Style
	warning   lipgloss.Style
	section   lipgloss.Style
	empty     lipgloss.Style
	itemTitle lipgloss.Style
	itemMeta  lipgloss.Style
	ok        lipgloss.Style
	failed    lipgloss.Style
	pending   lipgloss.Style
}

func newStyles() styles {
	return styles{
		title:     lipgloss.NewStyle().Bold(true),
		header:    lipgloss.NewStyle().Foreground(lipgloss.Color("241")),
		anonymous: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("214")),
		signedIn:  lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39")),
		detail:    lipgloss.NewStyle().Foreground(lipgloss.Color("252")),
		warning:   lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("203")),
		section:   lipgloss.NewStyle().MarginTop(1),
		empty:     lipgloss.NewStyle().Faint(true),
		itemTitle: lipgloss.NewStyle().Foreground(lipgloss.Color("159")),
		itemMeta:  lipgloss.NewStyle().Foreground(lipgloss.Color("245")),
		ok:        lipgloss.NewStyle().Foreground(lipgloss.Color("114")),
		failed:    lipgloss.NewStyle().Foreground(lipgloss.Color("203")),
		pending:   lipgloss.NewStyle().Foreground(lipgloss.Color("244")),
	}
}

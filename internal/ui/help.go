package ui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// renderHelp renders the key binding overlay.
func (m Model) renderHelp() string {
	styles := m.theme.Styles()

	var cols []string
	for _, group := range m.keys.FullHelp() {
		var lines []string
		for _, b := range group {
			h := b.Help()
			lines = append(lines, styles.AccentText.Render(padRight("<"+h.Key+">", 10))+styles.MutedText.Render(h.Desc))
		}
		cols = append(cols, lipgloss.NewStyle().PaddingRight(4).Render(strings.Join(lines, "\n")))
	}

	body := lipgloss.JoinVertical(lipgloss.Left,
		styles.Logo.Render("feedsync")+"  "+styles.MutedText.Render("key bindings"),
		"",
		lipgloss.JoinHorizontal(lipgloss.Top, cols...),
		"",
		styles.FaintText.Render("Press any key to close"),
	)
	box := styles.FocusedPanel.Padding(1, 2).Render(body)
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, box)
}

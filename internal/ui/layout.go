package ui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// layoutCompactWidth is the width below which the header drops its stats.
const layoutCompactWidth = 100

// layout sizes the viewports from the window size. Chrome is two header
// lines, panel borders, the composer and the log pane title.
func (m *Model) layout() {
	bodyHeight := m.height - 2
	if m.showLogs {
		bodyHeight -= logPaneLines + 3
	}
	if bodyHeight < 4 {
		bodyHeight = 4
	}

	threadWidth := m.width - listWidth - 4
	if threadWidth < 10 {
		threadWidth = 10
	}
	m.threadViewport.Width = threadWidth
	m.threadViewport.Height = bodyHeight - 3
	m.composer.Width = threadWidth - 3

	m.logViewport.Width = m.width - 2
	m.logViewport.Height = logPaneLines
}

// renderMain renders the full UI.
func (m Model) renderMain() string {
	var b strings.Builder

	b.WriteString(m.renderHeader())
	b.WriteString("\n")
	b.WriteString(m.renderCommandBar())
	b.WriteString("\n")

	body := lipgloss.JoinHorizontal(lipgloss.Top, m.renderList(), m.renderThread())
	b.WriteString(body)

	if m.showLogs {
		b.WriteString("\n")
		b.WriteString(m.renderLogs())
	}
	return b.String()
}

package ui

import (
	"errors"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/five82/feedsync/internal/query"
	"github.com/five82/feedsync/internal/social"
)

// renderThread renders the open conversation and the composer below it.
func (m Model) renderThread() string {
	styles := m.theme.Styles()

	composer := m.composer.View()
	if m.focus != focusComposer {
		composer = styles.FaintText.Render(truncate("> "+m.composer.Value(), m.threadViewport.Width))
	}
	content := lipgloss.JoinVertical(lipgloss.Left,
		m.threadViewport.View(),
		styles.FaintText.Render(strings.Repeat("─", m.threadViewport.Width)),
		composer,
	)

	panel := styles.Panel
	if m.focus == focusComposer {
		panel = styles.FocusedPanel
	}
	return panel.Width(m.threadViewport.Width).Render(content)
}

// updateThreadViewport re-renders the thread. When toBottom is set the view
// follows the newest message.
func (m *Model) updateThreadViewport(toBottom bool) {
	if !m.ready {
		return
	}
	m.threadViewport.SetContent(m.threadContent())
	if toBottom {
		m.threadViewport.GotoBottom()
	}
}

func (m Model) threadContent() string {
	styles := m.theme.Styles()
	v := m.threadView
	width := m.threadViewport.Width

	if m.openID == "" {
		return styles.MutedText.Render("Select a conversation and press enter")
	}
	if !v.HasValue || v.Value == nil {
		switch {
		case v.Status == query.Error && errors.Is(v.Err, social.ErrNotFound):
			return styles.DangerText.Render("Conversation not found")
		case v.Status == query.Error:
			return styles.DangerText.Render("Could not load conversation: " + v.Err.Error())
		default:
			return styles.MutedText.Render("Loading messages...")
		}
	}

	conv := v.Value
	if len(conv.Messages) == 0 {
		return styles.MutedText.Render("No messages yet. Say hello!")
	}

	var b strings.Builder
	for i, msg := range conv.Messages {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString(m.renderMessage(msg, width, styles))
	}
	return b.String()
}

func (m Model) renderMessage(msg social.Message, width int, styles Styles) string {
	stamp := styles.FaintText.Render(msg.Time().Local().Format("15:04"))

	senderStyle := styles.InfoText
	if msg.Sender == m.identity {
		senderStyle = styles.AccentText
	}
	head := stamp + " " + senderStyle.Render(msg.Sender)
	if msg.Pending {
		head += " " + styles.StatusStyle("pending").Render("sending")
	}

	bodyStyle := styles.Text
	if msg.Pending {
		bodyStyle = styles.MutedText
	}
	body := bodyStyle.Width(width - 2).Render(msg.Content)
	return head + "\n" + lipgloss.NewStyle().PaddingLeft(2).Render(body)
}

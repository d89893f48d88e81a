package ui

import (
	"strings"

	"github.com/five82/feedsync/internal/query"
	"github.com/five82/feedsync/internal/social"
)

// renderList renders the conversation list panel.
func (m Model) renderList() string {
	styles := m.theme.Styles()
	inner := listWidth - 2
	height := m.threadViewport.Height + 1

	var lines []string
	v := m.convView
	switch {
	case !v.HasValue && v.Status == query.Error:
		lines = append(lines, styles.DangerText.Render(truncate("Error: "+v.Err.Error(), inner)))
	case !v.HasValue:
		lines = append(lines, styles.MutedText.Render("Loading conversations..."))
	case len(v.Value) == 0:
		lines = append(lines, styles.MutedText.Render("No conversations yet"))
	}

	for i, c := range v.Value {
		lines = append(lines, m.renderListItem(c, i == m.selected, inner, styles)...)
	}
	if len(lines) > height {
		lines = scrollWindow(lines, m.selected*2, height)
	}

	panel := styles.Panel
	if m.focus == focusList {
		panel = styles.FocusedPanel
	}
	return panel.Width(inner).Height(height).Render(strings.Join(lines, "\n"))
}

func (m Model) renderListItem(c social.Conversation, selected bool, width int, styles Styles) []string {
	marker := "  "
	if c.ID == m.openID {
		marker = "▸ "
	}
	title := marker + truncate(m.conversationTitle(c), width-2)
	preview := "  "
	if last, ok := c.LastMessage(); ok {
		preview += truncate(last.Content, width-2)
	} else {
		preview += "no messages"
	}

	if selected {
		sel := styles.Selected.Width(width)
		return []string{sel.Render(title), sel.Render(preview)}
	}
	titleStyle := styles.Text
	if c.ID == m.openID {
		titleStyle = styles.AccentText
	}
	return []string{titleStyle.Render(title), styles.FaintText.Render(preview)}
}

// conversationTitle names a conversation by its other participants.
func (m Model) conversationTitle(c social.Conversation) string {
	var others []string
	for _, p := range c.Participants {
		if p != m.identity {
			others = append(others, p)
		}
	}
	if len(others) == 0 {
		return c.Title()
	}
	return strings.Join(others, ", ")
}

// scrollWindow returns height lines around focus.
func scrollWindow(lines []string, focus, height int) []string {
	start := focus - height/2
	if start < 0 {
		start = 0
	}
	if start+height > len(lines) {
		start = len(lines) - height
	}
	return lines[start : start+height]
}

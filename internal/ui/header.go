package ui

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"

	"github.com/five82/feedsync/internal/query"
)

// renderHeader renders the status bar: connection, thread freshness and
// outstanding sends.
func (m Model) renderHeader() string {
	styles := m.theme.Styles().WithBackground(m.theme.Surface)
	bg := NewBgStyle(m.theme.Surface)

	parts := []string{bg.Render("feedsync", styles.Logo)}

	if !m.gate.Ready() {
		parts = append(parts, bg.Render("● connecting", styles.WarningText.Bold(true)))
		return styles.Header.Width(m.width).Render(bg.Join(parts, "  "))
	}
	parts = append(parts, bg.Render("● online", styles.SuccessText))

	if n := len(m.convView.Value); m.convView.HasValue {
		parts = append(parts,
			bg.Render("Conversations:", styles.MutedText)+bg.Spaces(1)+
				bg.Render(fmt.Sprintf("%d", n), styles.Text))
	}

	if m.openID != "" {
		parts = append(parts, m.renderThreadState(styles, bg))
	}

	if m.sending > 0 {
		parts = append(parts, styles.StatusStyle("pending").Render(fmt.Sprintf("sending %d", m.sending)))
	}

	if !m.showsCompact() {
		stats := m.queries.Client().Stats()
		parts = append(parts, bg.Render(
			fmt.Sprintf("fetches %d  deduped %d  dropped %d", stats.Fetches, stats.Deduped, stats.Discarded),
			styles.FaintText))
	}

	return lipgloss.NewStyle().
		Background(lipgloss.Color(m.theme.Surface)).
		Foreground(lipgloss.Color(m.theme.Text)).
		Width(m.width).
		Render(bg.Join(parts, "  "))
}

// renderThreadState shows how current the open thread is.
func (m Model) renderThreadState(styles Styles, bg BgStyle) string {
	v := m.threadView
	switch {
	case v.Offline:
		return styles.StatusStyle("offline").Render("offline")
	case v.Status == query.Error && !v.HasValue:
		return styles.StatusStyle("error").Render("error")
	case v.Fetching:
		return styles.StatusStyle("loading").Render("syncing")
	case v.Status == query.Error:
		return styles.StatusStyle("error").Render("stale")
	case !v.UpdatedAt.IsZero():
		age := humanizeDuration(m.now().Sub(v.UpdatedAt))
		return bg.Render("updated", styles.MutedText) + bg.Spaces(1) + bg.Render(age, styles.Text)
	default:
		return styles.StatusStyle("idle").Render("idle")
	}
}

// renderCommandBar renders the key hints line.
func (m Model) renderCommandBar() string {
	styles := m.theme.Styles().WithBackground(m.theme.Surface)
	bg := NewBgStyle(m.theme.Surface)

	var parts []string
	for _, b := range m.keys.ShortHelp() {
		h := b.Help()
		parts = append(parts, bg.Render("<"+h.Key+">", styles.AccentText)+bg.Spaces(1)+bg.Render(h.Desc, styles.MutedText))
	}
	if m.notice != "" {
		style := styles.InfoText
		if m.failed {
			style = styles.DangerText
		}
		parts = append(parts, bg.Render(m.notice, style))
	}
	return styles.Footer.Width(m.width).Render(bg.Join(parts, "  "))
}

func (m Model) showsCompact() bool {
	return m.width < layoutCompactWidth
}

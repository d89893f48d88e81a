package ui

import (
	"log/slog"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/five82/feedsync/internal/logtail"
)

const logTailLines = 200

type logState struct {
	lines []logtail.Line
	err   error
}

type logsMsg struct {
	lines []logtail.Line
	err   error
}

// refreshLogs reads the tail of the log file when the pane is visible.
func (m Model) refreshLogs() tea.Cmd {
	if !m.showLogs || m.logFile == "" {
		return nil
	}
	path := m.logFile
	return func() tea.Msg {
		raw, err := logtail.Read(path, logTailLines)
		if err != nil {
			return logsMsg{err: err}
		}
		return logsMsg{lines: logtail.Filter(raw, slog.LevelInfo)}
	}
}

func (m *Model) handleLogs(msg logsMsg) {
	m.logs = logState(msg)
	m.updateLogViewport()
}

func (m *Model) updateLogViewport() {
	if !m.ready {
		return
	}
	m.logViewport.SetContent(m.logContent())
	m.logViewport.GotoBottom()
}

func (m Model) logContent() string {
	styles := m.theme.Styles()
	if m.logs.err != nil {
		return styles.DangerText.Render("Log unavailable: " + m.logs.err.Error())
	}
	if len(m.logs.lines) == 0 {
		return styles.MutedText.Render("No log output yet")
	}

	out := make([]string, 0, len(m.logs.lines))
	for _, l := range m.logs.lines {
		out = append(out, m.formatLogLine(l, styles))
	}
	return strings.Join(out, "\n")
}

func (m Model) formatLogLine(l logtail.Line, styles Styles) string {
	var b strings.Builder
	if ts := shortTime(l.Time); ts != "" {
		b.WriteString(styles.FaintText.Render(ts))
		b.WriteString(" ")
	}
	b.WriteString(levelStyle(l.Level, styles).Render(padRight(l.Level.String(), 5)))
	b.WriteString(" ")
	b.WriteString(styles.Text.Render(l.Message))
	for _, a := range l.Attrs {
		b.WriteString(" ")
		b.WriteString(styles.FaintText.Render(a.Key + "="))
		b.WriteString(styles.MutedText.Render(a.Value))
	}
	return b.String()
}

func levelStyle(level slog.Level, styles Styles) lipgloss.Style {
	switch {
	case level >= slog.LevelError:
		return styles.DangerText
	case level >= slog.LevelWarn:
		return styles.WarningText
	case level >= slog.LevelInfo:
		return styles.SuccessText
	default:
		return styles.InfoText
	}
}

// shortTime keeps the clock part of an RFC 3339 timestamp.
func shortTime(ts string) string {
	if i := strings.IndexByte(ts, 'T'); i >= 0 && len(ts) >= i+9 {
		return ts[i+1 : i+9]
	}
	return ts
}

// renderLogs renders the log pane.
func (m Model) renderLogs() string {
	styles := m.theme.Styles()
	title := styles.MutedText.Render("log ") + styles.FaintText.Render(truncateMiddle(m.logFile, m.logViewport.Width-6))
	return styles.Panel.Width(m.logViewport.Width).Render(title + "\n" + m.logViewport.View())
}

package ui

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/five82/feedsync/internal/prefs"
	"github.com/five82/feedsync/internal/query"
	"github.com/five82/feedsync/internal/social"
)

// Options configures the UI.
type Options struct {
	Queries  *social.Queries
	Gate     query.Gate
	Identity string
	LogFile  string
	Theme    string
	Prefs    prefs.Prefs
	// PrefsPath is where theme and last conversation are saved; empty uses
	// the default location.
	PrefsPath string
	// Now is used for relative timestamps.
	Now func() time.Time
}

type focus int

const (
	focusList focus = iota
	focusComposer
)

const (
	listWidth    = 32
	logPaneLines = 8
	tickInterval = time.Second
	composerMax  = 2000
)

// Model is the root application state for Bubble Tea.
type Model struct {
	// Configuration
	ctx       context.Context
	queries   *social.Queries
	gate      query.Gate
	identity  string
	logFile   string
	prefs     prefs.Prefs
	prefsPath string
	keys      keyMap
	now       func() time.Time

	// UI state
	theme    Theme
	width    int
	height   int
	ready    bool
	focus    focus
	showHelp bool
	showLogs bool

	// Resources
	conversations *query.Resource[[]social.Conversation]
	thread        *query.Resource[*social.Conversation]
	convChanges   <-chan struct{}
	threadChanges <-chan struct{}

	// Data state
	convView   query.View[[]social.Conversation]
	threadView query.View[*social.Conversation]
	selected   int
	placed     bool
	openID     string

	threadViewport viewport.Model
	logViewport    viewport.Model
	composer       textinput.Model

	sending int
	notice  string
	failed  bool
	logs    logState
}

// New creates the model and binds its resources. The conversation list
// starts fetching immediately; the last opened conversation is reopened.
func New(ctx context.Context, opts Options) Model {
	if ctx == nil {
		ctx = context.Background()
	}
	gate := opts.Gate
	if gate == nil {
		gate = query.GateFunc(func() bool { return true })
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	themeName := opts.Theme
	if themeName == "" {
		themeName = opts.Prefs.Theme
	}

	composer := textinput.New()
	composer.Placeholder = "Write a message"
	composer.Prompt = "> "
	composer.CharLimit = composerMax

	m := Model{
		ctx:       ctx,
		queries:   opts.Queries,
		gate:      gate,
		identity:  opts.Identity,
		logFile:   opts.LogFile,
		prefs:     opts.Prefs,
		prefsPath: opts.PrefsPath,
		keys:      DefaultKeyMap(),
		now:       now,
		theme:     GetTheme(themeName),
		showLogs:  opts.Prefs.ShowLogs,
		composer:  composer,
	}

	m.conversations = opts.Queries.Conversations()
	m.convChanges = m.conversations.Changes()
	m.thread = opts.Queries.Conversation("")
	m.threadChanges = m.thread.Changes()
	if id := strings.TrimSpace(opts.Prefs.LastConversation); id != "" {
		m.openID = id
		m.thread.SetKey(social.ConversationKey(id))
	}
	m.convView = m.conversations.View()
	m.threadView = m.thread.View()
	return m
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		m.waitFor(m.convChanges, conversationsChangedMsg{}),
		m.waitFor(m.threadChanges, threadChangedMsg{}),
		tickCmd(tickInterval),
		m.refreshLogs(),
	)
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		if !m.ready {
			m.threadViewport = viewport.New(0, 0)
			m.logViewport = viewport.New(0, 0)
		}
		m.ready = true
		m.layout()
		m.updateThreadViewport(true)
		m.updateLogViewport()
		return m, nil

	case conversationsChangedMsg:
		m.convView = m.conversations.View()
		m.clampSelection()
		return m, m.waitFor(m.convChanges, conversationsChangedMsg{})

	case threadChangedMsg:
		m.threadView = m.thread.View()
		m.updateThreadViewport(true)
		return m, m.waitFor(m.threadChanges, threadChangedMsg{})

	case sentMsg:
		return m.handleSent(msg), nil

	case tickMsg:
		return m, tea.Batch(tickCmd(tickInterval), m.refreshLogs())

	case logsMsg:
		m.handleLogs(msg)
		return m, nil
	}

	return m, nil
}

// View implements tea.Model.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	if m.showHelp {
		return m.renderHelp()
	}
	return m.renderMain()
}

// Close releases the bound resources.
func (m Model) Close() {
	m.conversations.Close()
	m.thread.Close()
}

// handleKey processes keyboard input.
func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.String() == "ctrl+c" {
		return m, tea.Quit
	}
	if m.showHelp {
		m.showHelp = false
		return m, nil
	}
	if m.focus == focusComposer {
		return m.handleComposerKey(msg)
	}

	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.Help):
		m.showHelp = true
	case key.Matches(msg, m.keys.CycleTheme):
		m.theme = GetTheme(NextTheme(m.theme.Name))
		m.prefs.Theme = m.theme.Name
		m.savePrefs()
	case key.Matches(msg, m.keys.ToggleLogs):
		m.showLogs = !m.showLogs
		m.prefs.ShowLogs = m.showLogs
		m.savePrefs()
		m.layout()
		m.updateThreadViewport(false)
		return m, m.refreshLogs()
	case key.Matches(msg, m.keys.Refresh):
		m.conversations.Refetch()
		m.thread.Refetch()
	case key.Matches(msg, m.keys.Reload):
		m.queries.Client().Reset()
		m.convView = m.conversations.View()
		m.threadView = m.thread.View()
		m.notice, m.failed = "Cache cleared", false
	case key.Matches(msg, m.keys.Tab):
		return m, m.focusComposer()
	case key.Matches(msg, m.keys.Up):
		if m.selected > 0 {
			m.selected--
		}
	case key.Matches(msg, m.keys.Down):
		if m.selected < len(m.convView.Value)-1 {
			m.selected++
		}
	case key.Matches(msg, m.keys.Open):
		return m.openSelected()
	case key.Matches(msg, m.keys.PageUp), key.Matches(msg, m.keys.PageDown):
		var cmd tea.Cmd
		m.threadViewport, cmd = m.threadViewport.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m Model) handleComposerKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Escape), key.Matches(msg, m.keys.Tab):
		m.focus = focusList
		m.composer.Blur()
		return m, nil
	case key.Matches(msg, m.keys.Send):
		return m.send()
	case key.Matches(msg, m.keys.PageUp), key.Matches(msg, m.keys.PageDown):
		var cmd tea.Cmd
		m.threadViewport, cmd = m.threadViewport.Update(msg)
		return m, cmd
	}
	var cmd tea.Cmd
	m.composer, cmd = m.composer.Update(msg)
	return m, cmd
}

func (m *Model) focusComposer() tea.Cmd {
	m.focus = focusComposer
	return m.composer.Focus()
}

// openSelected switches the thread to the highlighted conversation. The
// previous thread's poll is torn down by the key switch.
func (m Model) openSelected() (tea.Model, tea.Cmd) {
	convs := m.convView.Value
	if m.selected < 0 || m.selected >= len(convs) {
		return m, nil
	}
	id := convs[m.selected].ID
	if id != m.openID {
		m.openID = id
		m.placed = true
		m.thread.SetKey(social.ConversationKey(id))
		m.threadView = m.thread.View()
		m.notice = ""
		m.prefs.LastConversation = id
		m.savePrefs()
		m.updateThreadViewport(true)
	}
	return m, m.focusComposer()
}

// send dispatches the composer text. The message shows up in the thread as
// pending before the backend answers; a failure rolls it back and puts the
// text back into the composer.
func (m Model) send() (tea.Model, tea.Cmd) {
	content := strings.TrimSpace(m.composer.Value())
	if content == "" {
		return m, nil
	}
	if m.openID == "" {
		m.notice, m.failed = "Open a conversation first", true
		return m, nil
	}
	m.composer.Reset()
	m.sending++
	m.notice, m.failed = "", false

	in := social.NewMessage{ConversationID: m.openID, SenderID: m.identity, Content: content}
	ctx, mutator := m.ctx, m.queries.SendMessage
	return m, func() tea.Msg {
		_, err := mutator.Run(ctx, in)
		return sentMsg{input: in, err: err}
	}
}

func (m Model) handleSent(msg sentMsg) Model {
	if m.sending > 0 {
		m.sending--
	}
	if msg.err == nil {
		return m
	}
	m.failed = true
	switch {
	case errors.Is(msg.err, query.ErrUnavailable):
		m.notice = "Not connected yet; message not sent"
	default:
		m.notice = "Send failed: " + msg.err.Error()
	}
	if m.composer.Value() == "" && msg.input.ConversationID == m.openID {
		m.composer.SetValue(msg.input.Content)
		m.composer.CursorEnd()
	}
	return m
}

// clampSelection keeps the highlight inside the list and, the first time the
// list arrives, moves it onto the reopened conversation.
func (m *Model) clampSelection() {
	if !m.placed && m.openID != "" {
		for i, c := range m.convView.Value {
			if c.ID == m.openID {
				m.selected = i
				m.placed = true
				break
			}
		}
	}
	if n := len(m.convView.Value); m.selected >= n {
		m.selected = n - 1
	}
	if m.selected < 0 {
		m.selected = 0
	}
}

func (m *Model) savePrefs() {
	_ = prefs.Save(m.prefsPath, m.prefs)
}

// Messages

type conversationsChangedMsg struct{}

type threadChangedMsg struct{}

type sentMsg struct {
	input social.NewMessage
	err   error
}

type tickMsg time.Time

// Commands

// waitFor blocks until the resource signals a change and then delivers msg.
// The model re-issues it after handling msg, so at most one wait is pending
// per resource.
func (m Model) waitFor(ch <-chan struct{}, msg tea.Msg) tea.Cmd {
	ctx := m.ctx
	return func() tea.Msg {
		select {
		case <-ch:
			return msg
		case <-ctx.Done():
			return nil
		}
	}
}

func tickCmd(d time.Duration) tea.Cmd {
	return tea.Tick(d, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// Run starts the Bubble Tea program and blocks until the user quits or ctx
// is cancelled.
func Run(ctx context.Context, opts Options) error {
	m := New(ctx, opts)
	defer m.Close()

	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := p.Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}

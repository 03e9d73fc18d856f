// Package watch renders a live view of the tmux mirror: the
// session/window/pane tree plus attached clients, refreshed on a timer.
//
// The engine and its store are single-threaded, so all refreshes run in
// one bubbletea command at a time and each command returns a fully
// materialized snapshot; Update never touches the store directly.
package watch

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/finfou/tmuxp/internal/events"
	"github.com/finfou/tmuxp/internal/server"
)

// view mode
type viewMode int

const (
	modeTree viewMode = iota
	modeNewSession
)

// itemKind distinguishes rows in the flattened tree.
type itemKind int

const (
	itemSession itemKind = iota
	itemWindow
	itemPane
)

// listItem is one visible row of the tree.
type listItem struct {
	kind      itemKind
	sessionID string // owning session (all kinds)
	label     string // rendered text without cursor/selection styling
}

// snapshot is one fully materialized mirror poll, built inside the
// refresh command so the Update loop never reads the store.
type snapshot struct {
	sessions []sessionRow
	clients  []clientRow
	activity []string
}

type sessionRow struct {
	id       string
	name     string
	attached bool
	windows  []windowRow
}

type windowRow struct {
	id     string
	index  string
	name   string
	active bool
	panes  []paneRow
}

type paneRow struct {
	id      string
	command string
	active  bool
	dead    bool
}

type clientRow struct {
	tty  string
	size string
}

// messages
type refreshMsg struct {
	snap snapshot
	err  error
}

type actionMsg struct {
	text string
	err  error
}

type tickMsg struct{}

// TUI runs the interactive mirror view.
type TUI struct {
	Server          *server.Server
	Events          *events.Log   // optional change-event history
	RefreshInterval time.Duration // 0 disables auto-refresh
	Theme           Theme
}

// model implements tea.Model
type model struct {
	srv             *server.Server
	log             *events.Log
	ctx             context.Context
	styles          styles
	refreshInterval time.Duration

	snap     snapshot
	items    []listItem
	cursor   int
	expanded map[string]bool // session id -> expanded
	mode     viewMode

	// new-session prompt state
	nameInput textinput.Model

	// dimensions
	width  int
	height int

	// status
	refreshing   bool
	message      string
	refreshCount int
}

func (t *TUI) Run(ctx context.Context) error {
	ti := textinput.New()
	ti.Placeholder = "new session name"
	ti.CharLimit = 128
	ti.Width = 40

	m := &model{
		srv:             t.Server,
		log:             t.Events,
		ctx:             ctx,
		styles:          newStyles(t.Theme),
		refreshInterval: t.RefreshInterval,
		expanded:        make(map[string]bool),
		nameInput:       ti,
	}
	p := tea.NewProgram(m, tea.WithAltScreen())
	_, err := p.Run()
	return err
}

func (m *model) Init() tea.Cmd {
	m.refreshing = true
	return m.doRefresh()
}

// scheduleTick returns a tea.Cmd that sends a tickMsg after the refresh
// interval. Returns nil if auto-refresh is disabled (interval <= 0).
func (m *model) scheduleTick() tea.Cmd {
	if m.refreshInterval <= 0 {
		return nil
	}
	return tea.Tick(m.refreshInterval, func(time.Time) tea.Msg {
		return tickMsg{}
	})
}

// doRefresh polls all four collections and materializes the snapshot in
// the command goroutine. At most one refresh is in flight, guarded by
// m.refreshing.
func (m *model) doRefresh() tea.Cmd {
	srv := m.srv
	log := m.log
	ctx := m.ctx
	return func() tea.Msg {
		if err := srv.Refresh(ctx); err != nil {
			return refreshMsg{err: err}
		}
		snap := buildSnapshot(srv)
		snap.activity = recentActivity(log, 5)
		return refreshMsg{snap: snap}
	}
}

// recentActivity renders the newest n events, newest first.
func recentActivity(log *events.Log, n int) []string {
	if log == nil {
		return nil
	}
	evts := log.Snapshot(time.Now())
	var lines []string
	for i := len(evts) - 1; i >= 0 && len(lines) < n; i-- {
		lines = append(lines, evts[i].String())
	}
	return lines
}

// buildSnapshot flattens the store into display rows via the derived
// parent/child joins.
func buildSnapshot(srv *server.Server) snapshot {
	var snap snapshot
	store := srv.Store()
	for _, rec := range store.Sessions() {
		sess := server.Session{Record: rec}
		row := sessionRow{
			id:       rec["session_id"],
			name:     rec["session_name"],
			attached: sess.Attached(),
		}
		for _, wrec := range store.Windows() {
			if wrec["session_id"] != row.id {
				continue
			}
			wrow := windowRow{
				id:     wrec["window_id"],
				index:  wrec["window_index"],
				name:   wrec["window_name"],
				active: wrec["window_active"] == "1",
			}
			for _, prec := range store.Panes() {
				if prec["window_id"] != wrow.id {
					continue
				}
				wrow.panes = append(wrow.panes, paneRow{
					id:      prec["pane_id"],
					command: prec["pane_current_command"],
					active:  prec["pane_active"] == "1",
					dead:    prec["pane_dead"] == "1",
				})
			}
			row.windows = append(row.windows, wrow)
		}
		snap.sessions = append(snap.sessions, row)
	}
	for _, crec := range store.Clients() {
		size := ""
		if w, h := crec["client_width"], crec["client_height"]; w != "" && h != "" {
			size = w + "x" + h
		}
		snap.clients = append(snap.clients, clientRow{tty: crec["client_tty"], size: size})
	}
	return snap
}

// rebuildItems builds the flat visible rows from the snapshot and the
// expand state.
func (m *model) rebuildItems() {
	m.items = nil
	for _, s := range m.snap.sessions {
		label := s.name
		if s.attached {
			label += " (attached)"
		}
		m.items = append(m.items, listItem{kind: itemSession, sessionID: s.id, label: label})
		if !m.expanded[s.id] {
			continue
		}
		for _, w := range s.windows {
			wl := fmt.Sprintf("  %s: %s", w.index, w.name)
			if w.active {
				wl += " *"
			}
			m.items = append(m.items, listItem{kind: itemWindow, sessionID: s.id, label: wl})
			for _, p := range w.panes {
				pl := fmt.Sprintf("    %s %s", p.id, p.command)
				if p.active {
					pl += " *"
				}
				if p.dead {
					pl += " [dead]"
				}
				m.items = append(m.items, listItem{kind: itemPane, sessionID: s.id, label: pl})
			}
		}
	}
}

// selectedSession returns the session id owning the cursor row.
func (m *model) selectedSession() string {
	if m.cursor < 0 || m.cursor >= len(m.items) {
		return ""
	}
	return m.items[m.cursor].sessionID
}

// selectedSessionName resolves the cursor row's session name.
func (m *model) selectedSessionName() string {
	id := m.selectedSession()
	for _, s := range m.snap.sessions {
		if s.id == id {
			return s.name
		}
	}
	return ""
}

func (m *model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case refreshMsg:
		m.refreshing = false
		if msg.err != nil {
			m.message = fmt.Sprintf("Refresh error: %v", msg.err)
		} else {
			m.snap = msg.snap
			m.refreshCount++
			// Auto-expand single-session servers
			if len(m.snap.sessions) == 1 {
				m.expanded[m.snap.sessions[0].id] = true
			}
			m.rebuildItems()
			if m.cursor >= len(m.items) {
				m.cursor = 0
			}
		}
		if cmd := m.scheduleTick(); cmd != nil {
			return m, cmd
		}
		return m, nil

	case actionMsg:
		if msg.err != nil {
			m.message = fmt.Sprintf("Error: %v", msg.err)
		} else {
			m.message = msg.text
		}
		m.refreshing = true
		return m, m.doRefresh()

	case tickMsg:
		// Skip if already refreshing or typing
		if m.refreshing || m.mode == modeNewSession {
			return m, m.scheduleTick()
		}
		m.refreshing = true
		return m, m.doRefresh()
	}

	return m, nil
}

func (m *model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.mode == modeNewSession {
		return m.handleNewSessionKey(msg)
	}

	switch msg.String() {
	case "q", "ctrl+c":
		return m, tea.Quit

	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}

	case "down", "j":
		if m.cursor < len(m.items)-1 {
			m.cursor++
		}

	case "enter", " ":
		if id := m.selectedSession(); id != "" {
			m.expanded[id] = !m.expanded[id]
			m.rebuildItems()
		}

	case "n":
		m.mode = modeNewSession
		m.nameInput.SetValue("")
		m.nameInput.Focus()
		return m, textinput.Blink

	case "K":
		name := m.selectedSessionName()
		if name == "" {
			return m, nil
		}
		srv := m.srv
		ctx := m.ctx
		return m, func() tea.Msg {
			if err := srv.KillSession(ctx, name); err != nil {
				return actionMsg{err: err}
			}
			return actionMsg{text: fmt.Sprintf("Killed session %s", name)}
		}

	case "r":
		m.refreshing = true
		m.message = ""
		return m, m.doRefresh()
	}

	return m, nil
}

func (m *model) handleNewSessionKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc", "escape":
		m.mode = modeTree
		m.nameInput.Blur()
		return m, nil

	case "enter":
		name := strings.TrimSpace(m.nameInput.Value())
		m.mode = modeTree
		m.nameInput.Blur()
		if name == "" {
			return m, nil
		}
		srv := m.srv
		ctx := m.ctx
		return m, func() tea.Msg {
			if _, err := srv.NewSession(ctx, name, server.NewSessionOptions{}); err != nil {
				return actionMsg{err: err}
			}
			return actionMsg{text: fmt.Sprintf("Created session %s", name)}
		}
	}

	var cmd tea.Cmd
	m.nameInput, cmd = m.nameInput.Update(msg)
	return m, cmd
}

func (m *model) View() string {
	var b strings.Builder

	title := m.styles.title.Render("tmuxp watch")
	status := ""
	if m.refreshing {
		status = m.styles.dim.Render(" refreshing…")
	}
	b.WriteString(title + status + "\n")

	if len(m.items) == 0 {
		b.WriteString(m.styles.dim.Render("  (no sessions)") + "\n")
	}
	for i, item := range m.items {
		line := item.label
		var st = m.styles.pane
		switch item.kind {
		case itemSession:
			st = m.styles.session
			if strings.HasSuffix(line, "(attached)") {
				st = m.styles.attached
			}
		case itemWindow:
			st = m.styles.window
		}
		if i == m.cursor {
			b.WriteString(m.styles.selected.Render("> "+line) + "\n")
			continue
		}
		b.WriteString("  " + st.Render(line) + "\n")
	}

	if len(m.snap.clients) > 0 {
		b.WriteString("\n" + m.styles.header.Render("clients") + "\n")
		for _, c := range m.snap.clients {
			line := "  " + c.tty
			if c.size != "" {
				line += " " + c.size
			}
			b.WriteString(m.styles.dim.Render(line) + "\n")
		}
	}

	if len(m.snap.activity) > 0 {
		b.WriteString("\n" + m.styles.header.Render("activity") + "\n")
		for _, line := range m.snap.activity {
			b.WriteString(m.styles.dim.Render("  "+line) + "\n")
		}
	}

	if m.mode == modeNewSession {
		b.WriteString("\n" + m.styles.hintDesc.Render("New session: ") + m.nameInput.View() + "\n")
	}

	if m.message != "" {
		style := m.styles.status
		if strings.HasPrefix(m.message, "Error") || strings.HasPrefix(m.message, "Refresh error") {
			style = m.styles.err
		}
		b.WriteString("\n" + style.Render(m.message) + "\n")
	}

	hints := []string{"j/k move", "enter expand", "n new", "K kill", "r refresh", "q quit"}
	b.WriteString("\n" + m.styles.hintDesc.Render(strings.Join(hints, "  ")) + "\n")

	return b.String()
}

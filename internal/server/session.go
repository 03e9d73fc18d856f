package server

import (
	"context"

	"github.com/finfou/tmuxp/internal/parser"
	"github.com/finfou/tmuxp/internal/state"
)

// Session wraps a session record bound to its server. The record is a
// snapshot: it is not updated by later refreshes, but derived views
// (Windows) always read the server's current mirror.
type Session struct {
	server *Server
	Record parser.Record
}

// ID returns the session_id identity field.
func (s *Session) ID() string { return s.Record["session_id"] }

// Name returns the session name.
func (s *Session) Name() string { return s.Record["session_name"] }

// Attached reports whether a client is attached to this session.
func (s *Session) Attached() bool { return s.Record["session_attached"] == "1" }

// Windows returns this session's windows from the current mirror,
// joined on session_id. Recomputed on every call.
func (s *Session) Windows() []Window {
	recs := state.Children(s.server.store.Windows(), "session_id", s.ID())
	out := make([]Window, len(recs))
	for i, rec := range recs {
		out[i] = Window{server: s.server, Record: rec}
	}
	return out
}

// Window wraps a window record bound to its server.
type Window struct {
	server *Server
	Record parser.Record
}

// ID returns the window_id identity field.
func (w Window) ID() string { return w.Record["window_id"] }

// Name returns the window name.
func (w Window) Name() string { return w.Record["window_name"] }

// Index returns the window index within its session.
func (w Window) Index() string { return w.Record["window_index"] }

// SessionID returns the parent session's identity value.
func (w Window) SessionID() string { return w.Record["session_id"] }

// Panes returns this window's panes from the current mirror, joined on
// window_id. Recomputed on every call.
func (w Window) Panes() []Pane {
	recs := state.Children(w.server.store.Panes(), "window_id", w.ID())
	out := make([]Pane, len(recs))
	for i, rec := range recs {
		out[i] = Pane{Record: rec}
	}
	return out
}

// Pane wraps a pane record.
type Pane struct {
	Record parser.Record
}

// ID returns the pane_id identity field.
func (p Pane) ID() string { return p.Record["pane_id"] }

// WindowID returns the parent window's identity value.
func (p Pane) WindowID() string { return p.Record["window_id"] }

// CurrentCommand returns the command running in the pane.
func (p Pane) CurrentCommand() string { return p.Record["pane_current_command"] }

// Active reports whether this is the active pane of its window.
func (p Pane) Active() bool { return p.Record["pane_active"] == "1" }

// Client wraps a long-lived client record. The record is patched in
// place by RefreshClients, so a held Client observes attribute changes.
type Client struct {
	Record parser.Record
}

// TTY returns the client_tty identity field.
func (c Client) TTY() string { return c.Record["client_tty"] }

// Sessions refreshes the session snapshot and returns wrappers over it.
func (s *Server) Sessions(ctx context.Context) ([]*Session, error) {
	if err := s.RefreshSessions(ctx); err != nil {
		return nil, err
	}
	recs := s.store.Sessions()
	out := make([]*Session, len(recs))
	for i, rec := range recs {
		out[i] = &Session{server: s, Record: rec}
	}
	return out, nil
}

// Windows refreshes the window snapshot and returns wrappers over it,
// across all sessions.
func (s *Server) Windows(ctx context.Context) ([]Window, error) {
	if err := s.RefreshWindows(ctx); err != nil {
		return nil, err
	}
	recs := s.store.Windows()
	out := make([]Window, len(recs))
	for i, rec := range recs {
		out[i] = Window{server: s, Record: rec}
	}
	return out, nil
}

// Panes refreshes the pane snapshot and returns wrappers over it,
// across all sessions.
func (s *Server) Panes(ctx context.Context) ([]Pane, error) {
	if err := s.RefreshPanes(ctx); err != nil {
		return nil, err
	}
	recs := s.store.Panes()
	out := make([]Pane, len(recs))
	for i, rec := range recs {
		out[i] = Pane{Record: rec}
	}
	return out, nil
}

// AttachedSessions refreshes and returns the sessions with a client
// attached, or nil when there are none.
func (s *Server) AttachedSessions(ctx context.Context) ([]*Session, error) {
	sessions, err := s.Sessions(ctx)
	if err != nil {
		return nil, err
	}
	var attached []*Session
	for _, sess := range sessions {
		if sess.Attached() {
			attached = append(attached, sess)
		}
	}
	return attached, nil
}

// Clients refreshes the client collection and returns wrappers sharing
// the long-lived records.
func (s *Server) Clients(ctx context.Context) ([]Client, error) {
	if err := s.RefreshClients(ctx); err != nil {
		return nil, err
	}
	recs := s.store.Clients()
	out := make([]Client, len(recs))
	for i, rec := range recs {
		out[i] = Client{Record: rec}
	}
	return out, nil
}

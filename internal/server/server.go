// Package server implements the reconciliation engine: it polls a tmux
// server through the gateway, parses the tabular output, and reconciles
// the parsed records into the in-memory mirror.
//
// Sessions, windows, and panes are refreshed by full replacement; the
// client collection is refreshed by diff-patch keyed on client_tty.
// Every operation is synchronous and one-shot: there is no retry, no
// internal locking, and no guarantee against concurrent mutation of the
// tmux server by other actors. Callers must treat every snapshot as
// best-effort and re-query before acting on potentially stale data.
package server

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/finfou/tmuxp/internal/events"
	"github.com/finfou/tmuxp/internal/format"
	"github.com/finfou/tmuxp/internal/gateway"
	telem "github.com/finfou/tmuxp/internal/otel"
	"github.com/finfou/tmuxp/internal/parser"
	"github.com/finfou/tmuxp/internal/state"
)

// Sentinel errors for session lifecycle operations.
var (
	ErrSessionExists   = errors.New("session already exists")
	ErrSessionNotFound = errors.New("session not found")
	ErrNoServer        = errors.New("no tmux server running")
)

// nestedMarkerEnv is the environment variable tmux sets inside a
// session. Some tmux versions refuse new-session while it is set, so
// session creation clears it for the duration of the call.
const nestedMarkerEnv = "TMUX"

// Server mirrors one running tmux server.
type Server struct {
	gw      *gateway.Gateway
	store   *state.Store
	metrics *telem.Metrics
	events  *events.Log
}

// New returns a Server polling through the given gateway.
func New(gw *gateway.Gateway) *Server {
	return &Server{gw: gw, store: state.NewStore()}
}

// SetMetrics attaches telemetry instruments. A nil Metrics disables
// instrumentation.
func (s *Server) SetMetrics(m *telem.Metrics) { s.metrics = m }

// SetEvents attaches a change-event log. A nil Log disables recording.
func (s *Server) SetEvents(l *events.Log) { s.events = l }

// record appends a change event when a log is attached.
func (s *Server) record(kind, action, id string) {
	if s.events == nil {
		return
	}
	s.events.Record(kind, action, id)
}

// Store exposes the underlying mirror collections.
func (s *Server) Store() *state.Store { return s.store }

// execute runs one tmux subcommand and records its outcome.
func (s *Server) execute(ctx context.Context, args ...string) (gateway.Result, error) {
	sub := ""
	if len(args) > 0 {
		sub = args[0]
	}
	start := time.Now()
	res, err := s.gw.Execute(ctx, args...)
	failed := err != nil || res.ExitCode != 0 || res.Stderr != ""
	s.metrics.RecordCommand(ctx, sub, float64(time.Since(start).Milliseconds()), failed)
	return res, err
}

// wrapError maps known tmux stderr markers onto the sentinel errors so
// callers can match with errors.Is. The ExecError stays in the chain
// for callers that want the raw stderr text.
func wrapError(args []string, res gateway.Result) error {
	execErr := &gateway.ExecError{Args: args, ExitCode: res.ExitCode, Stderr: res.Stderr}
	switch {
	case strings.Contains(res.Stderr, "session not found"):
		return fmt.Errorf("%w: %w", ErrSessionNotFound, execErr)
	case strings.Contains(res.Stderr, "no server running"),
		strings.Contains(res.Stderr, "failed to connect to server"),
		strings.Contains(res.Stderr, "error connecting to"):
		return fmt.Errorf("%w: %w", ErrNoServer, execErr)
	}
	return execErr
}

// list runs a list subcommand, treating non-empty stderr as a failure
// regardless of exit code, and parses stdout against fields. Malformed
// rows are skipped and counted, never fatal for the whole refresh.
func (s *Server) list(ctx context.Context, fields []string, args ...string) ([]parser.Record, int, error) {
	res, err := s.execute(ctx, args...)
	if err != nil {
		return nil, 0, err
	}
	if res.Stderr != "" {
		return nil, 0, wrapError(args, res)
	}
	records, malformed := parser.Parse(res.Stdout, fields)
	return records, len(malformed), nil
}

// RefreshSessions replaces the session snapshot with a fresh
// list-sessions poll.
func (s *Server) RefreshSessions(ctx context.Context) error {
	fields := format.SessionFields
	records, malformed, err := s.list(ctx, fields,
		"list-sessions", "-F", format.Arg(fields))
	if err != nil {
		return fmt.Errorf("refresh sessions: %w", err)
	}
	s.store.ReplaceSessions(records)
	s.metrics.RecordRefresh(ctx, "session", malformed)
	return nil
}

// RefreshWindows replaces the window snapshot with a fresh poll across
// all sessions. Each row carries its parent session's name and id.
func (s *Server) RefreshWindows(ctx context.Context) error {
	fields := format.Prefix([]string{"session_name", "session_id"}, format.WindowFields)
	records, malformed, err := s.list(ctx, fields,
		"list-windows", "-a", "-F", format.Arg(fields))
	if err != nil {
		return fmt.Errorf("refresh windows: %w", err)
	}
	s.store.ReplaceWindows(records)
	s.metrics.RecordRefresh(ctx, "window", malformed)
	return nil
}

// RefreshPanes replaces the pane snapshot with a fresh poll across all
// sessions. Each row carries its full ancestry.
func (s *Server) RefreshPanes(ctx context.Context) error {
	fields := format.Prefix([]string{"session_name", "session_id", "window_index", "window_id"}, format.PaneFields)
	records, malformed, err := s.list(ctx, fields,
		"list-panes", "-a", "-F", format.Arg(fields))
	if err != nil {
		return fmt.Errorf("refresh panes: %w", err)
	}
	s.store.ReplacePanes(records)
	s.metrics.RecordRefresh(ctx, "pane", malformed)
	return nil
}

// RefreshClients reconciles the client collection by diff-patch: new
// ttys are appended, vanished ttys removed, and surviving records are
// patched in place so external references stay valid.
func (s *Server) RefreshClients(ctx context.Context) error {
	fields := format.ClientFields
	records, malformed, err := s.list(ctx, fields,
		"list-clients", "-F", format.Arg(fields))
	if err != nil {
		return fmt.Errorf("refresh clients: %w", err)
	}
	diff := s.store.SyncClients(records)
	s.metrics.RecordRefresh(ctx, "client", malformed)
	s.metrics.RecordClientDiff(ctx, len(diff.Created), len(diff.Deleted), len(diff.Patched))
	for _, tty := range diff.Created {
		s.record(events.KindClient, events.ActionCreated, tty)
	}
	for _, tty := range diff.Deleted {
		s.record(events.KindClient, events.ActionDeleted, tty)
	}
	for _, tty := range diff.Patched {
		s.record(events.KindClient, events.ActionPatched, tty)
	}
	return nil
}

// Refresh polls all four entity kinds in order.
func (s *Server) Refresh(ctx context.Context) error {
	if err := s.RefreshSessions(ctx); err != nil {
		return err
	}
	if err := s.RefreshWindows(ctx); err != nil {
		return err
	}
	if err := s.RefreshPanes(ctx); err != nil {
		return err
	}
	return s.RefreshClients(ctx)
}

// Exists probes server liveness with two no-op list subcommands. Any
// failure, including connection refusal, reports false; the probe never
// returns an error.
func (s *Server) Exists(ctx context.Context) bool {
	for _, sub := range []string{"list-clients", "list-sessions"} {
		res, err := s.execute(ctx, sub)
		if err != nil || res.ExitCode != 0 || res.Stderr != "" {
			return false
		}
	}
	return true
}

// HasClients reports whether the client row count exceeds one. The
// threshold of one is inherited from the original implementation and
// kept for caller compatibility; see DESIGN.md.
func (s *Server) HasClients(ctx context.Context) bool {
	res, err := s.execute(ctx, "list-clients")
	if err != nil || res.ExitCode != 0 || res.Stderr != "" {
		return false
	}
	return len(res.Stdout) > 1
}

// HasSession probes for a named session. tmux reports the outcome of
// has-session as human-readable text, so this matches the known failure
// markers rather than the exit code. Any execution failure reports
// false; the probe never returns an error.
func (s *Server) HasSession(ctx context.Context, name string) bool {
	res, err := s.execute(ctx, "has-session", "-t", name)
	if err != nil {
		return false
	}
	text := strings.Join(res.Stdout, "\n") + "\n" + res.Stderr
	if strings.Contains(text, "failed to connect to server") {
		return false
	}
	if strings.Contains(text, "session not found") {
		return false
	}
	return true
}

// KillSession kills a named session and refreshes the session snapshot
// so the mirror stays consistent.
func (s *Server) KillSession(ctx context.Context, name string) error {
	res, err := s.execute(ctx, "kill-session", "-t", name)
	if err != nil {
		return err
	}
	if res.Stderr != "" {
		return wrapError([]string{"kill-session"}, res)
	}
	s.record(events.KindSession, events.ActionDeleted, name)
	return s.RefreshSessions(ctx)
}

// KillServer kills the whole tmux server.
func (s *Server) KillServer(ctx context.Context) error {
	res, err := s.execute(ctx, "kill-server")
	if err != nil {
		return err
	}
	if res.Stderr != "" {
		return wrapError([]string{"kill-server"}, res)
	}
	return nil
}

// SwitchClient switches the attached client to a named session.
func (s *Server) SwitchClient(ctx context.Context, name string) error {
	res, err := s.execute(ctx, "switch-client", "-t", name)
	if err != nil {
		return err
	}
	if res.Stderr != "" {
		return wrapError([]string{"switch-client"}, res)
	}
	return nil
}

// AttachSession attaches to a named session, or to the most recently
// used session when name is empty.
func (s *Server) AttachSession(ctx context.Context, name string) error {
	args := []string{"attach-session"}
	if name != "" {
		args = append(args, "-t", name)
	}
	res, err := s.execute(ctx, args...)
	if err != nil {
		return err
	}
	if res.Stderr != "" {
		return wrapError(args, res)
	}
	return nil
}

// NewSessionOptions control session creation.
type NewSessionOptions struct {
	// KillExisting kills a same-named session instead of failing.
	KillExisting bool
	// Attach creates the session in the foreground instead of detached.
	Attach bool
}

// NewSession creates a named session and returns its wrapper. The -P -F
// flags make new-session print the created session's formatted record
// directly, avoiding a second list round-trip.
//
// When a session of that name exists the call fails with
// ErrSessionExists unless opts.KillExisting is set, in which case the
// existing session is killed first.
func (s *Server) NewSession(ctx context.Context, name string, opts NewSessionOptions) (*Session, error) {
	if s.HasSession(ctx, name) {
		if !opts.KillExisting {
			return nil, fmt.Errorf("session %q: %w", name, ErrSessionExists)
		}
		if err := s.KillSession(ctx, name); err != nil {
			return nil, fmt.Errorf("kill existing session %q: %w", name, err)
		}
	}

	restore := clearNestedMarker()
	defer restore()

	args := []string{"new-session", "-s", name, "-P", "-F", format.Arg(format.SessionFields)}
	if !opts.Attach {
		args = append(args, "-d")
	}
	res, err := s.execute(ctx, args...)
	if err != nil {
		return nil, err
	}
	if res.Stderr != "" {
		return nil, wrapError(args, res)
	}
	if len(res.Stdout) == 0 {
		return nil, fmt.Errorf("new-session: no session record in output")
	}
	rec, ok := parser.ParseOne(res.Stdout[0], format.SessionFields)
	if !ok {
		return nil, fmt.Errorf("new-session: malformed session record %q", res.Stdout[0])
	}

	sess := &Session{server: s, Record: rec}
	s.record(events.KindSession, events.ActionCreated, name)
	if err := s.RefreshSessions(ctx); err != nil {
		return nil, err
	}
	return sess, nil
}

// clearNestedMarker unsets the ambient in-session marker and returns a
// function restoring the previous state. The restore runs on every exit
// path of the caller, success or failure.
func clearNestedMarker() func() {
	prev, ok := os.LookupEnv(nestedMarkerEnv)
	if !ok {
		return func() {}
	}
	os.Unsetenv(nestedMarkerEnv)
	return func() { os.Setenv(nestedMarkerEnv, prev) }
}

package server

import (
	"context"
	"errors"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/finfou/tmuxp/internal/events"
	"github.com/finfou/tmuxp/internal/format"
	"github.com/finfou/tmuxp/internal/gateway"
)

// response is one canned invocation outcome.
type response struct {
	stdout string
	stderr string
	exit   int
	err    error
}

// scriptedRunner replays responses per subcommand and records every
// invocation. Subcommands with no queued response succeed with empty
// output.
type scriptedRunner struct {
	responses map[string][]response
	calls     [][]string
	onRun     func(args []string)
}

func newScriptedRunner() *scriptedRunner {
	return &scriptedRunner{responses: make(map[string][]response)}
}

func (r *scriptedRunner) queue(sub string, resp response) {
	r.responses[sub] = append(r.responses[sub], resp)
}

func (r *scriptedRunner) Run(_ context.Context, _ string, args ...string) ([]byte, []byte, int, error) {
	r.calls = append(r.calls, args)
	if r.onRun != nil {
		r.onRun(args)
	}
	sub := ""
	if len(args) > 0 {
		sub = args[0]
	}
	queue := r.responses[sub]
	if len(queue) == 0 {
		return nil, nil, 0, nil
	}
	resp := queue[0]
	r.responses[sub] = queue[1:]
	return []byte(resp.stdout), []byte(resp.stderr), resp.exit, resp.err
}

// subcommands returns the first token of every recorded invocation.
func (r *scriptedRunner) subcommands() []string {
	var subs []string
	for _, call := range r.calls {
		if len(call) > 0 {
			subs = append(subs, call[0])
		}
	}
	return subs
}

func newTestServer(runner *scriptedRunner) *Server {
	return New(gateway.NewWithRunner("", "", "", runner))
}

// row renders one list output line: field values in declared order,
// joined by the format separator.
func row(fields []string, values map[string]string) string {
	tokens := make([]string, len(fields))
	for i, f := range fields {
		tokens[i] = values[f]
	}
	return strings.Join(tokens, format.Separator)
}

func TestRefreshSessionsReplacesSnapshot(t *testing.T) {
	runner := newScriptedRunner()
	runner.queue("list-sessions", response{stdout: strings.Join([]string{
		row(format.SessionFields, map[string]string{"session_name": "one", "session_id": "$1"}),
		row(format.SessionFields, map[string]string{"session_name": "two", "session_id": "$2"}),
	}, "\n") + "\n"})
	runner.queue("list-sessions", response{stdout: row(format.SessionFields,
		map[string]string{"session_name": "three", "session_id": "$3"}) + "\n"})

	srv := newTestServer(runner)
	ctx := context.Background()

	if err := srv.RefreshSessions(ctx); err != nil {
		t.Fatalf("first refresh: %v", err)
	}
	if got := srv.Store().Sessions(); len(got) != 2 {
		t.Fatalf("after first refresh: %d sessions", len(got))
	}

	if err := srv.RefreshSessions(ctx); err != nil {
		t.Fatalf("second refresh: %v", err)
	}
	got := srv.Store().Sessions()
	if len(got) != 1 || got[0]["session_id"] != "$3" {
		t.Errorf("after second refresh: %v, want only $3", got)
	}
}

func TestRefreshSessionsStderrFails(t *testing.T) {
	runner := newScriptedRunner()
	runner.queue("list-sessions", response{stderr: "no server running on /tmp/tmux-1000/default\n"})

	srv := newTestServer(runner)
	err := srv.RefreshSessions(context.Background())
	if err == nil {
		t.Fatal("expected error on non-empty stderr")
	}
	var execErr *gateway.ExecError
	if !errors.As(err, &execErr) {
		t.Fatalf("error %T, want *gateway.ExecError", err)
	}
}

func TestRefreshWindowsCarriesParentFields(t *testing.T) {
	fields := format.Prefix([]string{"session_name", "session_id"}, format.WindowFields)
	runner := newScriptedRunner()
	runner.queue("list-windows", response{stdout: row(fields, map[string]string{
		"session_name": "main",
		"session_id":   "$1",
		"window_id":    "@1",
		"window_name":  "editor",
	}) + "\n"})

	srv := newTestServer(runner)
	if err := srv.RefreshWindows(context.Background()); err != nil {
		t.Fatalf("refresh windows: %v", err)
	}
	got := srv.Store().Windows()
	if len(got) != 1 {
		t.Fatalf("windows = %d", len(got))
	}
	if got[0]["session_id"] != "$1" || got[0]["window_id"] != "@1" {
		t.Errorf("window record missing ancestry: %v", got[0])
	}

	// The -a flag polls every session in one invocation.
	call := runner.calls[0]
	if call[0] != "list-windows" || call[1] != "-a" {
		t.Errorf("invocation = %v", call)
	}
}

func TestRefreshSkipsMalformedRows(t *testing.T) {
	good := row(format.SessionFields, map[string]string{"session_name": "ok", "session_id": "$1"})
	bad := good + format.Separator + "surplus"
	runner := newScriptedRunner()
	runner.queue("list-sessions", response{stdout: bad + "\n" + good + "\n"})

	srv := newTestServer(runner)
	if err := srv.RefreshSessions(context.Background()); err != nil {
		t.Fatalf("refresh: %v", err)
	}
	got := srv.Store().Sessions()
	if len(got) != 1 || got[0]["session_id"] != "$1" {
		t.Errorf("sessions = %v, want only the well-formed row", got)
	}
}

func TestExists(t *testing.T) {
	tests := []struct {
		name    string
		clients response
		want    bool
	}{
		{"healthy server", response{}, true},
		{"connection refused", response{stderr: "error connecting to /tmp/tmux-1000/default\n", exit: 1}, false},
		{"nonzero exit", response{exit: 1}, false},
		{"runner failure", response{err: errors.New("no binary")}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runner := newScriptedRunner()
			runner.queue("list-clients", tt.clients)
			srv := newTestServer(runner)
			if got := srv.Exists(context.Background()); got != tt.want {
				t.Errorf("Exists() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestExistsProbesBothSubcommands(t *testing.T) {
	runner := newScriptedRunner()
	srv := newTestServer(runner)
	if !srv.Exists(context.Background()) {
		t.Fatal("Exists() = false on a healthy server")
	}
	subs := runner.subcommands()
	if len(subs) != 2 || subs[0] != "list-clients" || subs[1] != "list-sessions" {
		t.Errorf("probed %v", subs)
	}
}

func TestHasClients(t *testing.T) {
	tests := []struct {
		name   string
		stdout string
		want   bool
	}{
		{"no clients", "", false},
		{"one row", "/dev/ttys1\n", false},
		{"two rows", "/dev/ttys1\n/dev/ttys2\n", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runner := newScriptedRunner()
			runner.queue("list-clients", response{stdout: tt.stdout})
			srv := newTestServer(runner)
			if got := srv.HasClients(context.Background()); got != tt.want {
				t.Errorf("HasClients() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestHasSession(t *testing.T) {
	tests := []struct {
		name string
		resp response
		want bool
	}{
		{"present", response{}, true},
		{"not found", response{stderr: "session not found: x\n", exit: 1}, false},
		{"no server", response{stderr: "failed to connect to server\n", exit: 1}, false},
		{"marker on stdout", response{stdout: "session not found: x\n"}, false},
		{"runner failure", response{err: errors.New("no binary")}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runner := newScriptedRunner()
			runner.queue("has-session", tt.resp)
			srv := newTestServer(runner)
			if got := srv.HasSession(context.Background(), "x"); got != tt.want {
				t.Errorf("HasSession() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestKillSessionRefreshes(t *testing.T) {
	runner := newScriptedRunner()
	runner.queue("list-sessions", response{stdout: row(format.SessionFields,
		map[string]string{"session_name": "survivor", "session_id": "$2"}) + "\n"})

	srv := newTestServer(runner)
	if err := srv.KillSession(context.Background(), "doomed"); err != nil {
		t.Fatalf("KillSession: %v", err)
	}

	subs := runner.subcommands()
	if len(subs) != 2 || subs[0] != "kill-session" || subs[1] != "list-sessions" {
		t.Fatalf("invocations = %v", subs)
	}
	got := srv.Store().Sessions()
	if len(got) != 1 || got[0]["session_name"] != "survivor" {
		t.Errorf("sessions after kill = %v", got)
	}
}

func TestKillSessionFailure(t *testing.T) {
	runner := newScriptedRunner()
	runner.queue("kill-session", response{stderr: "session not found: doomed\n", exit: 1})

	srv := newTestServer(runner)
	err := srv.KillSession(context.Background(), "doomed")
	if !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("err = %v, want ErrSessionNotFound", err)
	}
	var execErr *gateway.ExecError
	if !errors.As(err, &execErr) || !strings.Contains(execErr.Stderr, "doomed") {
		t.Errorf("stderr text lost from chain: %v", err)
	}
	if subs := runner.subcommands(); len(subs) != 1 {
		t.Errorf("failed kill must not refresh, got %v", subs)
	}
}

func TestStderrMarkersMapToSentinels(t *testing.T) {
	tests := []struct {
		name   string
		stderr string
		want   error
	}{
		{"session not found", "session not found: x\n", ErrSessionNotFound},
		{"no server running", "no server running on /tmp/tmux-1000/default\n", ErrNoServer},
		{"connect failure", "failed to connect to server\n", ErrNoServer},
		{"socket missing", "error connecting to /tmp/tmux-1000/default (No such file or directory)\n", ErrNoServer},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runner := newScriptedRunner()
			runner.queue("switch-client", response{stderr: tt.stderr, exit: 1})
			srv := newTestServer(runner)

			err := srv.SwitchClient(context.Background(), "x")
			if !errors.Is(err, tt.want) {
				t.Errorf("err = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestRefreshNoServerSentinel(t *testing.T) {
	runner := newScriptedRunner()
	runner.queue("list-sessions", response{stderr: "no server running on /tmp/tmux-1000/default\n", exit: 1})

	srv := newTestServer(runner)
	err := srv.RefreshSessions(context.Background())
	if !errors.Is(err, ErrNoServer) {
		t.Fatalf("err = %v, want ErrNoServer", err)
	}
}

func TestAttachSessionNotFoundSentinel(t *testing.T) {
	runner := newScriptedRunner()
	runner.queue("attach-session", response{stderr: "session not found: gone\n", exit: 1})

	srv := newTestServer(runner)
	err := srv.AttachSession(context.Background(), "gone")
	if !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("err = %v, want ErrSessionNotFound", err)
	}
}

func TestNewSession(t *testing.T) {
	created := row(format.SessionFields, map[string]string{
		"session_name": "work",
		"session_id":   "$5",
	})
	runner := newScriptedRunner()
	runner.queue("has-session", response{stderr: "session not found: work\n", exit: 1})
	runner.queue("new-session", response{stdout: created + "\n"})
	runner.queue("list-sessions", response{stdout: created + "\n"})

	srv := newTestServer(runner)
	sess, err := srv.NewSession(context.Background(), "work", NewSessionOptions{})
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}
	if sess.Name() != "work" || sess.ID() != "$5" {
		t.Errorf("session = %q/%q", sess.Name(), sess.ID())
	}
	if len(srv.Store().Sessions()) != 1 {
		t.Errorf("store not refreshed after create")
	}

	// Detached by default, record printed by -P -F.
	for _, call := range runner.calls {
		if call[0] != "new-session" {
			continue
		}
		joined := strings.Join(call, " ")
		if !strings.Contains(joined, "-d") {
			t.Errorf("new-session not detached: %v", call)
		}
		if !strings.Contains(joined, "-P") || !strings.Contains(joined, "-F") {
			t.Errorf("new-session missing -P -F: %v", call)
		}
	}
}

func TestNewSessionExists(t *testing.T) {
	runner := newScriptedRunner()
	// has-session succeeds: the session exists.
	srv := newTestServer(runner)

	_, err := srv.NewSession(context.Background(), "work", NewSessionOptions{})
	if !errors.Is(err, ErrSessionExists) {
		t.Fatalf("err = %v, want ErrSessionExists", err)
	}
	for _, sub := range runner.subcommands() {
		if sub == "new-session" {
			t.Error("new-session issued despite existing session")
		}
	}
}

func TestNewSessionKillExisting(t *testing.T) {
	created := row(format.SessionFields, map[string]string{
		"session_name": "work",
		"session_id":   "$6",
	})
	runner := newScriptedRunner()
	runner.queue("new-session", response{stdout: created + "\n"})

	srv := newTestServer(runner)
	sess, err := srv.NewSession(context.Background(), "work", NewSessionOptions{KillExisting: true})
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}
	if sess.ID() != "$6" {
		t.Errorf("session id = %q", sess.ID())
	}

	subs := runner.subcommands()
	killIdx, newIdx := -1, -1
	for i, sub := range subs {
		switch sub {
		case "kill-session":
			killIdx = i
		case "new-session":
			newIdx = i
		}
	}
	if killIdx == -1 || newIdx == -1 || killIdx > newIdx {
		t.Errorf("invocations = %v, want kill-session before new-session", subs)
	}
}

func TestNewSessionClearsNestedMarker(t *testing.T) {
	t.Setenv("TMUX", "/tmp/tmux-1000/default,1234,0")

	runner := newScriptedRunner()
	runner.queue("has-session", response{stderr: "session not found: work\n", exit: 1})
	runner.queue("new-session", response{stdout: row(format.SessionFields,
		map[string]string{"session_name": "work", "session_id": "$7"}) + "\n"})
	runner.onRun = func(args []string) {
		if args[0] == "new-session" {
			if v := os.Getenv("TMUX"); v != "" {
				t.Errorf("TMUX set during new-session: %q", v)
			}
		}
	}

	srv := newTestServer(runner)
	if _, err := srv.NewSession(context.Background(), "work", NewSessionOptions{}); err != nil {
		t.Fatalf("NewSession: %v", err)
	}
	if v := os.Getenv("TMUX"); v != "/tmp/tmux-1000/default,1234,0" {
		t.Errorf("TMUX not restored: %q", v)
	}
}

func TestNewSessionAttach(t *testing.T) {
	runner := newScriptedRunner()
	runner.queue("has-session", response{stderr: "session not found: fg\n", exit: 1})
	runner.queue("new-session", response{stdout: row(format.SessionFields,
		map[string]string{"session_name": "fg", "session_id": "$8"}) + "\n"})

	srv := newTestServer(runner)
	if _, err := srv.NewSession(context.Background(), "fg", NewSessionOptions{Attach: true}); err != nil {
		t.Fatalf("NewSession: %v", err)
	}
	for _, call := range runner.calls {
		if call[0] != "new-session" {
			continue
		}
		for _, arg := range call {
			if arg == "-d" {
				t.Errorf("attach requested but -d passed: %v", call)
			}
		}
	}
}

func TestAttachSessionTargets(t *testing.T) {
	runner := newScriptedRunner()
	srv := newTestServer(runner)
	ctx := context.Background()

	if err := srv.AttachSession(ctx, "main"); err != nil {
		t.Fatalf("AttachSession: %v", err)
	}
	if err := srv.AttachSession(ctx, ""); err != nil {
		t.Fatalf("AttachSession (no target): %v", err)
	}

	if got := runner.calls[0]; len(got) != 3 || got[1] != "-t" || got[2] != "main" {
		t.Errorf("targeted attach = %v", got)
	}
	if got := runner.calls[1]; len(got) != 1 {
		t.Errorf("untargeted attach = %v", got)
	}
}

func TestWindowsAndPanesAccessors(t *testing.T) {
	windowFields := format.Prefix([]string{"session_name", "session_id"}, format.WindowFields)
	paneFields := format.Prefix([]string{"session_name", "session_id", "window_index", "window_id"}, format.PaneFields)

	runner := newScriptedRunner()
	runner.queue("list-windows", response{stdout: row(windowFields, map[string]string{
		"session_id": "$1", "window_id": "@1", "window_name": "editor",
	}) + "\n"})
	runner.queue("list-panes", response{stdout: row(paneFields, map[string]string{
		"window_id": "@1", "pane_id": "%1", "pane_current_command": "vim",
	}) + "\n"})

	srv := newTestServer(runner)
	ctx := context.Background()

	windows, err := srv.Windows(ctx)
	if err != nil {
		t.Fatalf("Windows: %v", err)
	}
	if len(windows) != 1 || windows[0].ID() != "@1" || windows[0].Name() != "editor" {
		t.Errorf("windows = %v", windows)
	}

	panes, err := srv.Panes(ctx)
	if err != nil {
		t.Fatalf("Panes: %v", err)
	}
	if len(panes) != 1 || panes[0].ID() != "%1" || panes[0].CurrentCommand() != "vim" {
		t.Errorf("panes = %v", panes)
	}

	// The accessors refresh: the store snapshots match what they returned.
	if len(srv.Store().Windows()) != 1 || len(srv.Store().Panes()) != 1 {
		t.Error("accessors did not refresh the store")
	}

	// Wrappers from the accessor navigate to their panes.
	if got := windows[0].Panes(); len(got) != 1 || got[0].ID() != "%1" {
		t.Errorf("windows[0].Panes() = %v", got)
	}
}

func TestSessionWindowsPanesJoin(t *testing.T) {
	windowFields := format.Prefix([]string{"session_name", "session_id"}, format.WindowFields)
	paneFields := format.Prefix([]string{"session_name", "session_id", "window_index", "window_id"}, format.PaneFields)

	runner := newScriptedRunner()
	runner.queue("list-sessions", response{stdout: row(format.SessionFields,
		map[string]string{"session_name": "main", "session_id": "$1"}) + "\n"})
	runner.queue("list-windows", response{stdout: strings.Join([]string{
		row(windowFields, map[string]string{"session_id": "$1", "window_id": "@1", "window_name": "editor"}),
		row(windowFields, map[string]string{"session_id": "$1", "window_id": "@2", "window_name": "logs"}),
	}, "\n") + "\n"})
	runner.queue("list-panes", response{stdout: strings.Join([]string{
		row(paneFields, map[string]string{"window_id": "@1", "pane_id": "%1", "pane_active": "1"}),
		row(paneFields, map[string]string{"window_id": "@2", "pane_id": "%2"}),
	}, "\n") + "\n"})

	srv := newTestServer(runner)
	ctx := context.Background()
	sessions, err := srv.Sessions(ctx)
	if err != nil {
		t.Fatalf("Sessions: %v", err)
	}
	if err := srv.RefreshWindows(ctx); err != nil {
		t.Fatalf("RefreshWindows: %v", err)
	}
	if err := srv.RefreshPanes(ctx); err != nil {
		t.Fatalf("RefreshPanes: %v", err)
	}

	if len(sessions) != 1 {
		t.Fatalf("sessions = %d", len(sessions))
	}
	windows := sessions[0].Windows()
	if len(windows) != 2 {
		t.Fatalf("windows = %d", len(windows))
	}
	panes := windows[0].Panes()
	if len(panes) != 1 || panes[0].ID() != "%1" || !panes[0].Active() {
		t.Errorf("panes of @1 = %v", panes)
	}
}

func TestChangeEventsRecorded(t *testing.T) {
	runner := newScriptedRunner()
	runner.queue("list-clients", response{stdout: row(format.ClientFields,
		map[string]string{"client_tty": "/dev/ttys1"}) + "\n"})
	runner.queue("list-clients", response{stdout: ""})

	srv := newTestServer(runner)
	log := events.NewLog(0)
	srv.SetEvents(log)
	ctx := context.Background()

	if err := srv.RefreshClients(ctx); err != nil {
		t.Fatalf("first refresh: %v", err)
	}
	if err := srv.RefreshClients(ctx); err != nil {
		t.Fatalf("second refresh: %v", err)
	}
	if err := srv.KillSession(ctx, "work"); err != nil {
		t.Fatalf("KillSession: %v", err)
	}

	got := log.Snapshot(time.Now())
	if len(got) != 3 {
		t.Fatalf("events = %v", got)
	}
	if got[0].Kind != events.KindClient || got[0].Action != events.ActionCreated || got[0].ID != "/dev/ttys1" {
		t.Errorf("first event = %v", got[0])
	}
	if got[1].Action != events.ActionDeleted {
		t.Errorf("second event = %v", got[1])
	}
	if got[2].Kind != events.KindSession || got[2].ID != "work" {
		t.Errorf("third event = %v", got[2])
	}
}

func TestClientsShareStoreRecords(t *testing.T) {
	runner := newScriptedRunner()
	runner.queue("list-clients", response{stdout: row(format.ClientFields,
		map[string]string{"client_tty": "/dev/ttys1", "client_width": "80"}) + "\n"})
	runner.queue("list-clients", response{stdout: row(format.ClientFields,
		map[string]string{"client_tty": "/dev/ttys1", "client_width": "100"}) + "\n"})

	srv := newTestServer(runner)
	ctx := context.Background()
	clients, err := srv.Clients(ctx)
	if err != nil {
		t.Fatalf("Clients: %v", err)
	}
	held := clients[0]

	if err := srv.RefreshClients(ctx); err != nil {
		t.Fatalf("RefreshClients: %v", err)
	}
	// The held wrapper observes the in-place patch.
	if got := held.Record["client_width"]; got != "100" {
		t.Errorf("held client width = %q, want 100", got)
	}
}

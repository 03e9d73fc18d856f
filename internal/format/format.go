// Package format declares the tmux format variables requested for each
// entity kind and builds the -F argument passed to list subcommands.
//
// Field order is significant: list output is split positionally, so the
// order here defines which token maps to which field name.
package format

import "strings"

// Separator delimits fields in tmux -F output. ASCII Unit Separator
// cannot appear in session names, titles, or paths, unlike tabs.
const Separator = "\x1f"

// SessionFields are the format variables requested per session row.
// session_id is the identity field.
var SessionFields = []string{
	"session_name",
	"session_windows",
	"session_width",
	"session_height",
	"session_id",
	"session_created",
	"session_attached",
	"session_group",
	"session_grouped",
}

// WindowFields are the format variables requested per window row.
// window_id is the identity field; the engine prefixes session fields
// so each window row carries its parent's identity.
var WindowFields = []string{
	"window_id",
	"window_name",
	"window_width",
	"window_height",
	"window_index",
	"window_flags",
	"window_active",
	"window_panes",
	"window_layout",
}

// PaneFields are the format variables requested per pane row.
// pane_id is the identity field; the engine prefixes session and window
// fields so each pane row carries its ancestry.
var PaneFields = []string{
	"pane_id",
	"pane_index",
	"pane_width",
	"pane_height",
	"pane_title",
	"pane_active",
	"pane_dead",
	"pane_in_mode",
	"pane_synchronized",
	"pane_tty",
	"pane_pid",
	"pane_start_command",
	"pane_start_path",
	"pane_current_path",
	"pane_current_command",
	"history_size",
	"history_limit",
	"history_bytes",
}

// ClientFields are the format variables requested per client row.
// client_tty is the durable identity field.
var ClientFields = []string{
	"client_tty",
	"client_termname",
	"client_width",
	"client_height",
	"client_created",
	"client_activity",
	"client_cwd",
	"client_prefix",
	"client_utf8",
	"client_readonly",
}

// Arg builds the -F argument for a list subcommand: one #{field}
// template token per field, joined by Separator.
func Arg(fields []string) string {
	tokens := make([]string, len(fields))
	for i, f := range fields {
		tokens[i] = "#{" + f + "}"
	}
	return strings.Join(tokens, Separator)
}

// Prefix returns a new field list with extra fields prepended, used to
// carry parent identity fields on window and pane rows.
func Prefix(extra []string, fields []string) []string {
	out := make([]string, 0, len(extra)+len(fields))
	out = append(out, extra...)
	out = append(out, fields...)
	return out
}

package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/finfou/tmuxp/internal/parser"
	"github.com/finfou/tmuxp/internal/server"
)

var lsCmd = &cobra.Command{
	Use:   "ls [sessions|windows|panes|clients]",
	Short: "List entities of the tmux server",
	Long: `Refresh one entity kind from the tmux server and print the mirror's
records, one per line. Defaults to sessions.

With --json the raw attribute records are printed instead.`,
	Args:      cobra.MaximumNArgs(1),
	ValidArgs: []string{"sessions", "windows", "panes", "clients"},
	RunE: func(cmd *cobra.Command, args []string) error {
		kind := "sessions"
		if len(args) == 1 {
			kind = args[0]
		}

		srv, _, err := getServer()
		if err != nil {
			return err
		}
		ctx := cmd.Context()

		var records []parser.Record
		switch kind {
		case "sessions":
			sessions, err := srv.Sessions(ctx)
			if err != nil {
				return err
			}
			for _, s := range sessions {
				records = append(records, s.Record)
			}
		case "windows":
			windows, err := srv.Windows(ctx)
			if err != nil {
				return err
			}
			for _, w := range windows {
				records = append(records, w.Record)
			}
		case "panes":
			panes, err := srv.Panes(ctx)
			if err != nil {
				return err
			}
			for _, p := range panes {
				records = append(records, p.Record)
			}
		case "clients":
			clients, err := srv.Clients(ctx)
			if err != nil {
				return err
			}
			for _, c := range clients {
				records = append(records, c.Record)
			}
		default:
			return fmt.Errorf("unknown entity kind %q", kind)
		}

		if flagJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(records)
		}

		for _, rec := range records {
			fmt.Println(summarize(kind, rec))
		}
		return nil
	},
}

// summarize renders one record as a short text line per entity kind.
func summarize(kind string, rec parser.Record) string {
	switch kind {
	case "sessions":
		line := fmt.Sprintf("%s %s: %s windows", rec["session_id"], rec["session_name"], rec["session_windows"])
		if (&server.Session{Record: rec}).Attached() {
			line += " (attached)"
		}
		return line
	case "windows":
		return fmt.Sprintf("%s %s:%s %s", rec["window_id"], rec["session_name"], rec["window_index"], rec["window_name"])
	case "panes":
		return fmt.Sprintf("%s %s:%s.%s %s", rec["pane_id"], rec["session_name"], rec["window_index"], rec["pane_index"], rec["pane_current_command"])
	case "clients":
		parts := []string{rec["client_tty"]}
		if rec["client_width"] != "" && rec["client_height"] != "" {
			parts = append(parts, rec["client_width"]+"x"+rec["client_height"])
		}
		if rec["client_termname"] != "" {
			parts = append(parts, rec["client_termname"])
		}
		return strings.Join(parts, " ")
	}
	return ""
}

func init() {
	rootCmd.AddCommand(lsCmd)
}

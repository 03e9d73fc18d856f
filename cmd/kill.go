package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var flagKillServer bool

var killCmd = &cobra.Command{
	Use:   "kill [session-name]",
	Short: "Kill a session, or the whole server with --server",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		srv, _, err := getServer()
		if err != nil {
			return err
		}

		if flagKillServer {
			if len(args) != 0 {
				return fmt.Errorf("--server takes no session name")
			}
			return srv.KillServer(cmd.Context())
		}

		if len(args) != 1 {
			return fmt.Errorf("session name required (or --server)")
		}
		return srv.KillSession(cmd.Context(), args[0])
	},
}

func init() {
	killCmd.Flags().BoolVar(&flagKillServer, "server", false, "kill the entire tmux server")
	rootCmd.AddCommand(killCmd)
}

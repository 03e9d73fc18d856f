package cmd

import (
	"github.com/spf13/cobra"
)

var attachCmd = &cobra.Command{
	Use:   "attach [session-name]",
	Short: "Attach to a session",
	Long: `Attach the current terminal to a tmux session. Without a name tmux
picks the most recently used session.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		srv, _, err := getServer()
		if err != nil {
			return err
		}
		name := ""
		if len(args) == 1 {
			name = args[0]
		}
		return srv.AttachSession(cmd.Context(), name)
	},
}

var switchCmd = &cobra.Command{
	Use:   "switch <session-name>",
	Short: "Switch the attached client to another session",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		srv, _, err := getServer()
		if err != nil {
			return err
		}
		return srv.SwitchClient(cmd.Context(), args[0])
	},
}

func init() {
	rootCmd.AddCommand(attachCmd)
	rootCmd.AddCommand(switchCmd)
}

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/finfou/tmuxp/internal/server"
)

var (
	flagKillExisting bool
	flagAttachNew    bool
)

var newCmd = &cobra.Command{
	Use:   "new <session-name>",
	Short: "Create a new session",
	Long: `Create a new tmux session, detached by default.

If a session of that name already exists the command fails, unless
--kill-existing replaces it.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name := args[0]

		srv, _, err := getServer()
		if err != nil {
			return err
		}

		sess, err := srv.NewSession(cmd.Context(), name, server.NewSessionOptions{
			KillExisting: flagKillExisting,
			Attach:       flagAttachNew,
		})
		if err != nil {
			return err
		}

		fmt.Printf("%s %s\n", sess.ID(), sess.Name())
		return nil
	},
}

func init() {
	newCmd.Flags().BoolVar(&flagKillExisting, "kill-existing", false, "kill a same-named session instead of failing")
	newCmd.Flags().BoolVar(&flagAttachNew, "attach", false, "attach to the new session instead of creating it detached")
	rootCmd.AddCommand(newCmd)
}

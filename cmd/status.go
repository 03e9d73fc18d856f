package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Report server liveness and entity counts",
	RunE: func(cmd *cobra.Command, args []string) error {
		srv, _, err := getServer()
		if err != nil {
			return err
		}
		ctx := cmd.Context()

		alive := srv.Exists(ctx)
		out := struct {
			Alive      bool `json:"alive"`
			HasClients bool `json:"has_clients"`
			Sessions   int  `json:"sessions"`
			Windows    int  `json:"windows"`
			Panes      int  `json:"panes"`
			Clients    int  `json:"clients"`
		}{Alive: alive}

		if alive {
			out.HasClients = srv.HasClients(ctx)
			if err := srv.Refresh(ctx); err != nil {
				return err
			}
			store := srv.Store()
			out.Sessions = len(store.Sessions())
			out.Windows = len(store.Windows())
			out.Panes = len(store.Panes())
			out.Clients = len(store.Clients())
		}

		if flagJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(out)
		}

		if !alive {
			fmt.Println("server: not running")
			return nil
		}
		fmt.Printf("server: running\nsessions: %d\nwindows: %d\npanes: %d\nclients: %d\n",
			out.Sessions, out.Windows, out.Panes, out.Clients)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

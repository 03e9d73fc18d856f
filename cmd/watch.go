package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/finfou/tmuxp/internal/events"
	telem "github.com/finfou/tmuxp/internal/otel"
	"github.com/finfou/tmuxp/internal/watch"
)

var flagTheme string

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Interactive TUI mirroring the tmux server live",
	Long: `Launch an interactive terminal UI that periodically refreshes the
mirror and shows the session/window/pane tree and attached clients.

Configuration is loaded from .tmuxp.yaml or environment variables; the
refresh interval comes from the "refresh" config key.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithCancel(cmd.Context())
		defer cancel() // cancels an in-flight refresh when the TUI exits

		srv, cfg, err := getServer()
		if err != nil {
			return err
		}

		if cfg.ConfigFile != "" {
			fmt.Fprintf(os.Stderr, "config: loaded %s\n", cfg.ConfigFile)
		}

		// Wire build version into OTEL service metadata
		telem.Version = Version

		// Initialize OTEL (no-op if no endpoint configured)
		tel, err := telem.Init(ctx, telem.OTELConfig{
			Endpoint: cfg.OTELEndpoint,
			Headers:  cfg.OTELHeaders,
		})
		if err != nil {
			fmt.Fprintf(os.Stderr, "warning: otel init failed: %v\n", err)
		}
		if tel != nil {
			defer tel.Shutdown(ctx)
			srv.SetMetrics(tel.Metrics)
		}

		log := events.NewLog(5 * time.Minute)
		srv.SetEvents(log)

		t := &watch.TUI{
			Server:          srv,
			Events:          log,
			RefreshInterval: cfg.RefreshDuration,
			Theme:           watch.ThemeByName(flagTheme),
		}
		return t.Run(ctx)
	},
}

func init() {
	watchCmd.Flags().StringVar(&flagTheme, "theme", "dark", "Color theme: dark, light")
	rootCmd.AddCommand(watchCmd)
}

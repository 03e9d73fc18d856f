package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/finfou/tmuxp/internal/config"
	"github.com/finfou/tmuxp/internal/gateway"
	"github.com/finfou/tmuxp/internal/server"
)

// Version is injected at build time via -ldflags.
var Version = "dev"

var (
	// Global flags.
	flagSocketName string
	flagSocketPath string
	flagTmuxConfig string
	flagJSON       bool
)

var rootCmd = &cobra.Command{
	Use:   "tmuxp",
	Short: "Mirror and manage a running tmux server",
	Long: `tmuxp maintains an in-memory relational mirror of a running tmux
server — its sessions, windows, panes and attached clients — by invoking
tmux and reconciling its list output.

Connection flags (-L, -S, and the tmux config file) select which server
to mirror; all are optional and default to the user's default server.`,
	Version: Version,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&flagSocketName, "socket-name", "L", envOrDefault("TMUXP_SOCKET_NAME", ""), "tmux socket name (-L flag)")
	rootCmd.PersistentFlags().StringVarP(&flagSocketPath, "socket-path", "S", envOrDefault("TMUXP_SOCKET_PATH", ""), "tmux socket path (-S flag)")
	rootCmd.PersistentFlags().StringVarP(&flagTmuxConfig, "tmux-config", "f", envOrDefault("TMUXP_TMUX_CONFIG", ""), "tmux config file (-f flag)")
	rootCmd.PersistentFlags().BoolVar(&flagJSON, "json", false, "emit JSON instead of text")
}

// loadConfig merges the config file with command-line flags; flags win.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if flagSocketName != "" {
		cfg.SocketName = flagSocketName
	}
	if flagSocketPath != "" {
		cfg.SocketPath = flagSocketPath
	}
	if flagTmuxConfig != "" {
		cfg.TmuxConfig = flagTmuxConfig
	}
	return cfg, nil
}

// getServer builds the mirror engine from config and flags.
func getServer() (*server.Server, *config.Config, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}
	gw := gateway.New(cfg.TmuxConfig, cfg.SocketPath, cfg.SocketName)
	return server.New(gw), cfg, nil
}

func envOrDefault(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

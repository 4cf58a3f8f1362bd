// Command kongaddon drives the chat and layout add-on against a live game
// portal page, and exposes its pieces offline for inspection.
package main

import (
	"fmt"
	"os"
	"path/filepath"

	"kongaddon/internal/config"
	"kongaddon/internal/logging"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	// Global flags
	verbose    bool
	configPath string
	workspace  string

	cfg    *config.Config
	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "kongaddon",
	Short: "Chat links, display modes and page controls for a game portal",
	Long: `kongaddon attaches to a game portal page in Chrome and adds:
  - links for [[wiki]] titles, /games/... paths and /accounts/... names in chat
  - game-only, chat-only and side-by-side display modes
  - lock screen, text size, brightness, ping volume and other controls

The offline commands (rewrite, classify, prefs, route, config) need no browser.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		zc := zap.NewProductionConfig()
		if verbose {
			zc.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = zc.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}

		ws, err := resolveWorkspace()
		if err != nil {
			return err
		}
		path := configPath
		if !filepath.IsAbs(path) {
			path = filepath.Join(ws, path)
		}
		cfg, err = config.Load(path)
		if err != nil {
			return err
		}
		// config show reports problems itself; config init replaces them.
		if !isConfigCommand(cmd) {
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("%s: %w", path, err)
			}
		}
		if verbose {
			cfg.Logging.Level = "debug"
		}
		if err := logging.Initialize(ws, cfg.Logging.Options()); err != nil {
			logger.Warn("category logging disabled", zap.Error(err))
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logging.CloseAll()
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func resolveWorkspace() (string, error) {
	if workspace != "" {
		return workspace, nil
	}
	cwd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("resolve workspace: %w", err)
	}
	return cwd, nil
}

// inWorkspace resolves a relative path against the workspace.
func inWorkspace(p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	ws, err := resolveWorkspace()
	if err != nil {
		return p
	}
	return filepath.Join(ws, p)
}

// configFile is the absolute path of the active config file.
func configFile() string {
	return inWorkspace(configPath)
}

func isConfigCommand(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c == configCmd {
			return true
		}
	}
	return false
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", config.DefaultPath, "Config file")
	rootCmd.PersistentFlags().StringVarP(&workspace, "workspace", "w", "", "Workspace directory (default: current)")

	attachCmd.Flags().BoolVar(&attachExisting, "existing", false, "Attach to an open tab whose URL contains the argument")

	prefsCmd.PersistentFlags().StringVar(&prefsContext, "context", "", "Hosted game for per-context keys")
	prefsCmd.PersistentFlags().BoolVar(&prefsGlobal, "global", false, "Use the global key instead of the per-context one")
	prefsCmd.AddCommand(prefsGetCmd, prefsSetCmd, prefsListCmd)

	configCmd.AddCommand(configInitCmd, configShowCmd)

	rootCmd.AddCommand(attachCmd, rewriteCmd, classifyCmd, prefsCmd, routeCmd, configCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

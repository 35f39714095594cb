package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/zapvault/zapvault/internal/config"
)

var (
	cfgFile  string
	homeDir  string
	verbose  bool
	useLocal bool // force local database even when remote is configured
	cfg      *config.Config
	logger   *slog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "zapvault",
	Short: "WhatsApp backup viewer",
	Long: `zapvault is a read-only viewer for WhatsApp chat backups exported to
SQLite. It lists conversations, pages through message history newest-first,
searches within a conversation, and resolves attachment references against a
local media folder.

Point it at your export with ~/.zapvault/config.toml:

  [data]
  backup_db = "/backups/whatsapp_chats.db"
  media_dir = "/backups/anexos"`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		level := slog.LevelInfo
		if verbose {
			level = slog.LevelDebug
		}
		logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: level,
		}))

		var err error
		cfg, err = config.Load(cfgFile, homeDir)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		if err := cfg.EnsureHomeDir(); err != nil {
			return fmt.Errorf("create home dir: %w", err)
		}
		logger.Debug("config loaded", "path", cfg.ConfigFilePath(), "backup", cfg.Data.BackupDB)
		return nil
	},
}

// Execute runs the root command with a background context.
// Prefer ExecuteContext for signal-aware execution.
func Execute() error {
	return ExecuteContext(context.Background())
}

// ExecuteContext runs the root command with the given context,
// enabling graceful shutdown when the context is cancelled.
func ExecuteContext(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ~/.zapvault/config.toml)")
	rootCmd.PersistentFlags().StringVar(&homeDir, "home", "", "home directory (overrides ZAPVAULT_HOME)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().BoolVar(&useLocal, "local", false, "force local backup file (override remote config)")
}

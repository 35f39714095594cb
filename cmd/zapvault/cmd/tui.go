package cmd

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/zapvault/zapvault/internal/attach"
	"github.com/zapvault/zapvault/internal/tui"
)

var tuiCmd = &cobra.Command{
	Use:   "tui",
	Short: "Browse the backup interactively",
	Long: `Open the interactive terminal viewer: pick a conversation, scroll its
history (older pages load as you scroll up), and search with /.`,
	RunE: runTUI,
}

func init() {
	rootCmd.AddCommand(tuiCmd)
}

func runTUI(cmd *cobra.Command, args []string) error {
	engine, err := OpenEngine()
	if err != nil {
		return err
	}
	defer engine.Close()

	// Attachment resolution is local-only; remote mode shows references
	// without resolving files.
	var resolver *attach.Resolver
	if !IsRemoteMode() {
		resolver = attach.NewResolver()
		if err := resolver.LoadDir(cfg.Data.MediaDir); err != nil {
			logger.Debug("media folder unavailable", "dir", cfg.Data.MediaDir, "error", err)
			resolver = nil
		}
	}

	model := tui.New(engine, resolver, cfg.Viewer.BatchSize)
	p := tea.NewProgram(model, tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("run viewer: %w", err)
	}
	return nil
}

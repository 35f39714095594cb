package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/zapvault/zapvault/internal/api"
	"github.com/zapvault/zapvault/internal/attach"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	Long: `Start the HTTP API server exposing conversations, messages, search and
attachments from the local backup over REST. Remote zapvault instances can
point [remote].url at this server.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	if err := MustBeLocal("serve"); err != nil {
		return err
	}

	engine, err := openLocalEngine()
	if err != nil {
		return err
	}
	defer engine.Close()

	resolver := attach.NewResolver()
	if err := resolver.LoadDir(cfg.Data.MediaDir); err != nil {
		// The viewer still works without media; attachments resolve to
		// "not in media folder".
		logger.Warn("media folder unavailable", "dir", cfg.Data.MediaDir, "error", err)
	} else {
		logger.Info("media folder indexed", "dir", cfg.Data.MediaDir, "files", resolver.Count())
	}

	server := api.NewServer(cfg, engine, resolver, logger)

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case <-cmd.Context().Done():
		logger.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	}
}

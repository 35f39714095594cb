package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show backup statistics",
	RunE:  runStats,
}

func init() {
	rootCmd.AddCommand(statsCmd)
}

func runStats(cmd *cobra.Command, args []string) error {
	engine, err := OpenEngine()
	if err != nil {
		return err
	}
	defer engine.Close()

	stats, err := engine.GetStats(cmd.Context())
	if err != nil {
		return fmt.Errorf("get stats: %w", err)
	}

	fmt.Println("Backup Statistics")
	fmt.Println("=================")
	fmt.Printf("Conversations:   %d\n", stats.ConversationCount)
	fmt.Printf("Messages:        %d\n", stats.MessageCount)
	fmt.Printf("Attachments:     %d\n", stats.AttachmentCount)
	fmt.Printf("Missing media:   %d\n", stats.MissingMediaCount)
	if stats.DatabaseSize > 0 {
		fmt.Printf("Database size:   %.1f MB\n", float64(stats.DatabaseSize)/(1<<20))
	}
	return nil
}

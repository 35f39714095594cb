package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var chatsCmd = &cobra.Command{
	Use:   "chats",
	Short: "List conversations in the backup",
	Long: `List every conversation in the backup with its message count and the
timestamps of its first and last message, most recent activity first.`,
	RunE: runChats,
}

func init() {
	rootCmd.AddCommand(chatsCmd)
}

func runChats(cmd *cobra.Command, args []string) error {
	engine, err := OpenEngine()
	if err != nil {
		return err
	}
	defer engine.Close()

	chats, err := engine.ListConversations(cmd.Context())
	if err != nil {
		return fmt.Errorf("list conversations: %w", err)
	}

	if len(chats) == 0 {
		fmt.Println("No conversations found.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "CONTACT\tMESSAGES\tFIRST\tLAST")
	for _, c := range chats {
		fmt.Fprintf(w, "%s\t%d\t%s\t%s\n", c.Contact, c.MessageCount, c.FirstSentAt, c.LastSentAt)
	}
	return w.Flush()
}

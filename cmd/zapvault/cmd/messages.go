package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/zapvault/zapvault/internal/query"
)

var (
	messagesLimit  int
	messagesOffset int
)

var messagesCmd = &cobra.Command{
	Use:   "messages <contact>",
	Short: "Print a page of a conversation's history",
	Long: `Print one window of a conversation in chronological order. Without
--offset the newest page is shown, like opening the conversation in the
viewer.`,
	Args: cobra.ExactArgs(1),
	RunE: runMessages,
}

func init() {
	messagesCmd.Flags().IntVarP(&messagesLimit, "limit", "n", 50, "messages per page")
	messagesCmd.Flags().IntVar(&messagesOffset, "offset", -1, "start index (default: last page)")
	rootCmd.AddCommand(messagesCmd)
}

func runMessages(cmd *cobra.Command, args []string) error {
	engine, err := OpenEngine()
	if err != nil {
		return err
	}
	defer engine.Close()

	conv, err := findConversation(cmd.Context(), engine, args[0])
	if err != nil {
		return err
	}

	total, err := engine.CountMessages(cmd.Context(), conv.Contact, conv.SourceFile)
	if err != nil {
		return fmt.Errorf("count messages: %w", err)
	}

	limit := messagesLimit
	if limit < 1 {
		limit = 50
	}
	offset := messagesOffset
	if offset < 0 {
		offset = int(total) - limit
		if offset < 0 {
			offset = 0
		}
	}

	msgs, err := engine.GetMessages(cmd.Context(), conv.Contact, conv.SourceFile, limit, offset)
	if err != nil {
		return fmt.Errorf("get messages: %w", err)
	}

	fmt.Printf("%s — messages %d–%d of %d\n\n", conv.Contact,
		offset+1, offset+len(msgs), total)
	for _, m := range msgs {
		printMessage(conv, m)
	}
	return nil
}

func printMessage(conv query.Conversation, m query.Message) {
	sender := conv.Contact
	if m.GroupSender != "" {
		sender = m.GroupSender
	}

	switch query.Classify(m) {
	case query.VariantSent:
		sender = "me"
	case query.VariantNotification:
		fmt.Printf("  [%s] — %s —\n", m.SentAt, m.Text)
		return
	case query.VariantMissingMedia:
		fmt.Printf("  [%s] %s: [media unavailable: %s]\n", m.SentAt, sender, m.Attachment.Kind)
		return
	}

	line := fmt.Sprintf("  [%s] %s:", m.SentAt, sender)
	if m.Attachment.HasFile() {
		line += fmt.Sprintf(" [%s: %s]", m.Attachment.Kind, m.Attachment.FileRef)
	}
	if m.Text != "" {
		line += " " + m.Text
	}
	fmt.Println(line)
}

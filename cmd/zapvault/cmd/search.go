package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/zapvault/zapvault/internal/query"
)

var searchLimit int

var searchCmd = &cobra.Command{
	Use:   "search <contact> <term>",
	Short: "Search messages within a conversation",
	Long: `Search a conversation's full history for a substring. Matching is
case-insensitive and diacritic-sensitive, and scans the entire conversation,
not just recently loaded pages.`,
	Args: cobra.ExactArgs(2),
	RunE: runSearch,
}

func init() {
	searchCmd.Flags().IntVarP(&searchLimit, "limit", "n", 50, "maximum matches to print")
	rootCmd.AddCommand(searchCmd)
}

func runSearch(cmd *cobra.Command, args []string) error {
	contact, term := args[0], args[1]
	ctx := cmd.Context()

	engine, err := OpenEngine()
	if err != nil {
		return err
	}
	defer engine.Close()

	conv, err := findConversation(ctx, engine, contact)
	if err != nil {
		return err
	}

	ids, err := engine.SearchMessages(ctx, conv.Contact, conv.SourceFile, term)
	if err != nil {
		return fmt.Errorf("search: %w", err)
	}

	if len(ids) == 0 {
		fmt.Printf("No matches for %q in %s.\n", term, conv.Contact)
		return nil
	}

	shown := ids
	if len(shown) > searchLimit {
		shown = shown[:searchLimit]
	}

	fmt.Printf("%d matches for %q in %s:\n\n", len(ids), term, conv.Contact)
	for _, id := range shown {
		msg, err := fetchMessage(ctx, engine, conv, id)
		if err != nil {
			return fmt.Errorf("fetch match %d: %w", id, err)
		}
		printMessage(conv, msg)
	}
	if len(ids) > searchLimit {
		fmt.Printf("... and %d more (use --limit to see them)\n", len(ids)-searchLimit)
	}
	return nil
}

// fetchMessage loads one message by id: the search endpoint returns ids only,
// so the record is looked up via its conversation index.
func fetchMessage(ctx context.Context, engine query.Engine, conv query.Conversation, id int64) (query.Message, error) {
	idx, ok, err := engine.GetMessageIndex(ctx, conv.Contact, conv.SourceFile, id)
	if err != nil {
		return query.Message{}, err
	}
	if !ok {
		return query.Message{}, fmt.Errorf("message %d is not in the conversation", id)
	}

	msgs, err := engine.GetMessages(ctx, conv.Contact, conv.SourceFile, 1, int(idx))
	if err != nil {
		return query.Message{}, err
	}
	if len(msgs) != 1 || msgs[0].ID != id {
		return query.Message{}, fmt.Errorf("message %d not found at index %d", id, idx)
	}
	return msgs[0], nil
}

// findConversation matches a contact name against the backup, first exactly,
// then case-insensitively as a unique prefix.
func findConversation(ctx context.Context, engine query.Engine, contact string) (query.Conversation, error) {
	chats, err := engine.ListConversations(ctx)
	if err != nil {
		return query.Conversation{}, fmt.Errorf("list conversations: %w", err)
	}

	for _, c := range chats {
		if c.Contact == contact {
			return c, nil
		}
	}

	var candidates []query.Conversation
	lower := strings.ToLower(contact)
	for _, c := range chats {
		if strings.HasPrefix(strings.ToLower(c.Contact), lower) {
			candidates = append(candidates, c)
		}
	}
	switch len(candidates) {
	case 1:
		return candidates[0], nil
	case 0:
		return query.Conversation{}, fmt.Errorf("no conversation with contact %q", contact)
	default:
		names := make([]string, len(candidates))
		for i, c := range candidates {
			names[i] = c.Contact
		}
		return query.Conversation{}, fmt.Errorf("contact %q is ambiguous: %s", contact, strings.Join(names, ", "))
	}
}

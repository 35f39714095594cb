package query

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/zapvault/zapvault/internal/testutil"
)

func openFixture(t *testing.T, rows ...testutil.Row) *SQLiteEngine {
	t.Helper()
	engine, err := Open(testutil.NewBackupDB(t, rows...))
	testutil.MustNoErr(t, err, "open fixture backup")
	t.Cleanup(func() { engine.Close() })
	return engine
}

func TestOpenMissingFile(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "nope.db"))
	if !errors.Is(err, ErrStoreUnavailable) {
		t.Errorf("got %v, want ErrStoreUnavailable", err)
	}
}

func TestOpenNotABackup(t *testing.T) {
	// A valid SQLite file without a messages table is not a backup.
	path := testutil.WriteFile(t, t.TempDir(), "empty.db", nil)
	_, err := Open(path)
	if !errors.Is(err, ErrStoreUnavailable) {
		t.Errorf("got %v, want ErrStoreUnavailable", err)
	}
}

func TestListConversations(t *testing.T) {
	engine := openFixture(t,
		testutil.Row{Contact: "Ana", SentAt: "2024-01-01 10:00:00", Type: "received", Text: "oi", SourceFile: "a.db"},
		testutil.Row{Contact: "Ana", SentAt: "2024-03-01 10:00:00", Type: "sent", Text: "tudo bem", SourceFile: "a.db"},
		testutil.Row{Contact: "Bia", SentAt: "2024-02-01 10:00:00", Type: "received", Text: "olá", SourceFile: "a.db"},
		// Same contact in a different export file is a separate conversation.
		testutil.Row{Contact: "Ana", SentAt: "2024-04-01 10:00:00", Type: "received", Text: "outra", SourceFile: "b.db"},
		// Rows without a contact never become a conversation.
		testutil.Row{Contact: "", SentAt: "2024-05-01 10:00:00", Type: "notification", Text: "system", SourceFile: "a.db"},
	)

	convs, err := engine.ListConversations(context.Background())
	testutil.MustNoErr(t, err, "ListConversations")

	if len(convs) != 3 {
		t.Fatalf("got %d conversations, want 3", len(convs))
	}

	// Newest activity first.
	var contacts []string
	for _, c := range convs {
		contacts = append(contacts, c.Contact+"/"+c.SourceFile)
	}
	testutil.AssertStrings(t, contacts, "Ana/b.db", "Ana/a.db", "Bia/a.db")

	ana := convs[1]
	if ana.MessageCount != 2 {
		t.Errorf("Ana message count = %d, want 2", ana.MessageCount)
	}
	if ana.FirstSentAt != "2024-01-01 10:00:00" || ana.LastSentAt != "2024-03-01 10:00:00" {
		t.Errorf("Ana span = [%s, %s]", ana.FirstSentAt, ana.LastSentAt)
	}
	if ana.ID == "" {
		t.Error("conversation id is empty")
	}
}

func TestGetMessagesWindow(t *testing.T) {
	engine := openFixture(t, testutil.ChatRows("Ana", "a.db", 10)...)
	ctx := context.Background()

	total, err := engine.CountMessages(ctx, "Ana", "a.db")
	testutil.MustNoErr(t, err, "CountMessages")
	if total != 10 {
		t.Fatalf("total = %d, want 10", total)
	}

	msgs, err := engine.GetMessages(ctx, "Ana", "a.db", 3, 5)
	testutil.MustNoErr(t, err, "GetMessages")

	var texts []string
	for _, m := range msgs {
		texts = append(texts, m.Text)
	}
	testutil.AssertStrings(t, texts, "msg 6", "msg 7", "msg 8")

	// Ascending ids, no gaps.
	for i := 1; i < len(msgs); i++ {
		if msgs[i].ID != msgs[i-1].ID+1 {
			t.Errorf("ids not consecutive: %d then %d", msgs[i-1].ID, msgs[i].ID)
		}
	}
}

func TestGetMessagesUnknownConversation(t *testing.T) {
	engine := openFixture(t, testutil.ChatRows("Ana", "a.db", 3)...)

	msgs, err := engine.GetMessages(context.Background(), "Nobody", "a.db", 10, 0)
	testutil.MustNoErr(t, err, "GetMessages")
	if len(msgs) != 0 {
		t.Errorf("got %d messages for unknown conversation, want 0", len(msgs))
	}
}

func TestScanAttachmentFields(t *testing.T) {
	engine := openFixture(t,
		testutil.Row{Contact: "Ana", SentAt: "2024-01-01 10:00:00", Type: "received",
			Text: "plain text", SourceFile: "a.db"},
		testutil.Row{Contact: "Ana", SentAt: "2024-01-01 10:01:00", Type: "received",
			AttKind: "Foto", AttSize: 2048,
			AttFileRef: "72a52c56-5494-40a4-9d26-35acf057c8a2", SourceFile: "a.db"},
		// Kind label with no file reference: media missing from the backup.
		testutil.Row{Contact: "Ana", SentAt: "2024-01-01 10:02:00", Type: "received",
			AttKind: "Vídeo", SourceFile: "a.db"},
	)

	msgs, err := engine.GetMessages(context.Background(), "Ana", "a.db", 10, 0)
	testutil.MustNoErr(t, err, "GetMessages")
	if len(msgs) != 3 {
		t.Fatalf("got %d messages, want 3", len(msgs))
	}

	if msgs[0].Attachment != nil {
		t.Errorf("plain text message has attachment: %+v", msgs[0].Attachment)
	}

	want := &AttachmentRef{Kind: "Foto", Size: 2048, FileRef: "72a52c56-5494-40a4-9d26-35acf057c8a2"}
	if diff := cmp.Diff(want, msgs[1].Attachment); diff != "" {
		t.Errorf("attachment mismatch (-want +got):\n%s", diff)
	}

	if got := Classify(msgs[2]); got != VariantMissingMedia {
		t.Errorf("Classify(kind without file) = %v, want missing media", got)
	}
	if !msgs[1].Attachment.HasFile() || msgs[2].Attachment.HasFile() {
		t.Error("HasFile disagrees with file reference presence")
	}
}

func TestSearchMessages(t *testing.T) {
	engine := openFixture(t,
		testutil.Row{Contact: "Ana", SentAt: "t1", Type: "received", Text: "oi Maria", SourceFile: "a.db"},
		testutil.Row{Contact: "Ana", SentAt: "t2", Type: "sent", Text: "tudo bem?", SourceFile: "a.db"},
		testutil.Row{Contact: "Ana", SentAt: "t3", Type: "received", Text: "OI de novo", SourceFile: "a.db"},
		testutil.Row{Contact: "Bia", SentAt: "t4", Type: "received", Text: "oi tambem", SourceFile: "a.db"},
		testutil.Row{Contact: "Ana", SentAt: "t5", Type: "received", Text: "50% de desconto", SourceFile: "a.db"},
	)
	ctx := context.Background()

	// Case-insensitive for ASCII, scoped to the conversation, ascending ids.
	ids, err := engine.SearchMessages(ctx, "Ana", "a.db", "oi")
	testutil.MustNoErr(t, err, "SearchMessages")
	testutil.AssertEqualSlices(t, ids, int64(1), int64(3))

	// LIKE wildcards in the term are literal.
	ids, err = engine.SearchMessages(ctx, "Ana", "a.db", "50%")
	testutil.MustNoErr(t, err, "SearchMessages with %")
	testutil.AssertEqualSlices(t, ids, int64(5))

	ids, err = engine.SearchMessages(ctx, "Ana", "a.db", "%_%")
	testutil.MustNoErr(t, err, "SearchMessages with only wildcards")
	if len(ids) != 0 {
		t.Errorf("wildcard-only term matched %d messages, want 0", len(ids))
	}
}

func TestGetMessageIndex(t *testing.T) {
	engine := openFixture(t, append(
		testutil.ChatRows("Ana", "a.db", 3),
		testutil.ChatRows("Bia", "a.db", 2)...,
	)...)
	ctx := context.Background()

	// Bia's rows have ids 4 and 5; their conversation indexes are 0 and 1.
	idx, ok, err := engine.GetMessageIndex(ctx, "Bia", "a.db", 5)
	testutil.MustNoErr(t, err, "GetMessageIndex")
	if !ok || idx != 1 {
		t.Errorf("got (%d, %v), want (1, true)", idx, ok)
	}

	// An id from another conversation is not found, not misindexed.
	_, ok, err = engine.GetMessageIndex(ctx, "Bia", "a.db", 2)
	testutil.MustNoErr(t, err, "GetMessageIndex foreign id")
	if ok {
		t.Error("found an id belonging to a different conversation")
	}

	_, ok, err = engine.GetMessageIndex(ctx, "Bia", "a.db", 999)
	testutil.MustNoErr(t, err, "GetMessageIndex unknown id")
	if ok {
		t.Error("found a nonexistent id")
	}
}

func TestGetStats(t *testing.T) {
	engine := openFixture(t,
		testutil.Row{Contact: "Ana", SentAt: "t1", Type: "received", Text: "oi", SourceFile: "a.db"},
		testutil.Row{Contact: "Ana", SentAt: "t2", Type: "received", AttKind: "Foto",
			AttFileRef: "photo.jpg", SourceFile: "a.db"},
		testutil.Row{Contact: "Bia", SentAt: "t3", Type: "received", AttKind: "Áudio", SourceFile: "a.db"},
	)

	stats, err := engine.GetStats(context.Background())
	testutil.MustNoErr(t, err, "GetStats")

	if stats.MessageCount != 3 {
		t.Errorf("MessageCount = %d, want 3", stats.MessageCount)
	}
	if stats.ConversationCount != 2 {
		t.Errorf("ConversationCount = %d, want 2", stats.ConversationCount)
	}
	if stats.AttachmentCount != 1 {
		t.Errorf("AttachmentCount = %d, want 1", stats.AttachmentCount)
	}
	if stats.MissingMediaCount != 1 {
		t.Errorf("MissingMediaCount = %d, want 1", stats.MissingMediaCount)
	}
	if stats.DatabaseSize == 0 {
		t.Error("DatabaseSize = 0 for an on-disk backup")
	}
}

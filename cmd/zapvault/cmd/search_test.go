package cmd

import (
	"context"
	"strings"
	"testing"

	"github.com/zapvault/zapvault/internal/query"
	"github.com/zapvault/zapvault/internal/query/querytest"
	"github.com/zapvault/zapvault/internal/testutil"
)

func fixtureEngine() *querytest.MockEngine {
	return querytest.New(
		query.Message{ID: 1, Contact: "Ana Clara", SentAt: "2024-01-01 10:00:00",
			Type: "received", Text: "oi Maria", SourceFile: "a.db"},
		query.Message{ID: 2, Contact: "Ana Clara", SentAt: "2024-01-01 10:01:00",
			Type: "sent", Text: "tudo bem?", SourceFile: "a.db"},
		query.Message{ID: 3, Contact: "Ana Clara", SentAt: "2024-01-01 10:02:00",
			Type: "received", GroupSender: "Bia", Text: "OI de novo", SourceFile: "a.db"},
		query.Message{ID: 4, Contact: "Bruno", SentAt: "2024-01-02 09:00:00",
			Type: "received", Text: "olá", SourceFile: "a.db"},
	)
}

// Search results come back as bare ids; the command must recover the full
// message records to print them.
func TestFetchMessage(t *testing.T) {
	engine := fixtureEngine()
	ctx := context.Background()

	conv, err := findConversation(ctx, engine, "Ana Clara")
	testutil.MustNoErr(t, err, "findConversation")

	ids, err := engine.SearchMessages(ctx, conv.Contact, conv.SourceFile, "oi")
	testutil.MustNoErr(t, err, "SearchMessages")
	testutil.AssertEqualSlices(t, ids, int64(1), int64(3))

	for i, id := range ids {
		msg, err := fetchMessage(ctx, engine, conv, id)
		testutil.MustNoErr(t, err, "fetchMessage")
		if msg.ID != id {
			t.Errorf("match %d: got id %d, want %d", i, msg.ID, id)
		}
		if msg.Text == "" || msg.SentAt == "" {
			t.Errorf("match %d came back without its record: %+v", i, msg)
		}
	}

	// The group sender survives the lookup so it can be printed.
	msg, err := fetchMessage(ctx, engine, conv, 3)
	testutil.MustNoErr(t, err, "fetchMessage group message")
	if msg.GroupSender != "Bia" {
		t.Errorf("GroupSender = %q, want Bia", msg.GroupSender)
	}

	if _, err := fetchMessage(ctx, engine, conv, 999); err == nil {
		t.Error("fetchMessage found a nonexistent id")
	}
	// An id from another conversation is not reachable through this one.
	if _, err := fetchMessage(ctx, engine, conv, 4); err == nil {
		t.Error("fetchMessage crossed conversations")
	}
}

func TestFindConversation(t *testing.T) {
	engine := fixtureEngine()
	ctx := context.Background()

	conv, err := findConversation(ctx, engine, "Ana Clara")
	testutil.MustNoErr(t, err, "exact match")
	if conv.Contact != "Ana Clara" {
		t.Errorf("contact = %q", conv.Contact)
	}

	conv, err = findConversation(ctx, engine, "bru")
	testutil.MustNoErr(t, err, "unique prefix")
	if conv.Contact != "Bruno" {
		t.Errorf("prefix match = %q, want Bruno", conv.Contact)
	}

	if _, err := findConversation(ctx, engine, "Carla"); err == nil {
		t.Error("matched a contact that does not exist")
	}

	// Shared prefix across two contacts must be reported, not guessed.
	engine = querytest.New(
		query.Message{ID: 1, Contact: "Ana Clara", SentAt: "t", Type: "received", Text: "a", SourceFile: "a.db"},
		query.Message{ID: 2, Contact: "Ana Paula", SentAt: "t", Type: "received", Text: "b", SourceFile: "a.db"},
	)
	_, err = findConversation(ctx, engine, "ana")
	if err == nil || !strings.Contains(err.Error(), "ambiguous") {
		t.Errorf("ambiguous prefix: got %v", err)
	}
}

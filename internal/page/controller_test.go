package page

import (
	"context"
	"errors"
	"strconv"
	"testing"

	"github.com/zapvault/zapvault/internal/query"
	"github.com/zapvault/zapvault/internal/query/querytest"
	"github.com/zapvault/zapvault/internal/testutil"
)

// fixtureMessages builds n messages with ids 1..n for one conversation.
func fixtureMessages(n int) []query.Message {
	msgs := make([]query.Message, n)
	for i := range msgs {
		msgs[i] = query.Message{
			ID:         int64(i + 1),
			Contact:    "Ana",
			SourceFile: "backup.db",
			Text:       "msg " + strconv.Itoa(i+1),
		}
	}
	return msgs
}

func TestStartLoadsNewestBatch(t *testing.T) {
	engine := querytest.New(fixtureMessages(1000)...)
	ctrl := New(engine, "Ana", "backup.db", 400)

	testutil.MustNoErr(t, ctrl.Start(context.Background()), "Start")

	window := ctrl.Window()
	if len(window) != 400 {
		t.Fatalf("window length = %d, want 400", len(window))
	}
	// The window must end with the conversation's true last message.
	if window[0].ID != 601 || window[len(window)-1].ID != 1000 {
		t.Errorf("window covers ids [%d, %d], want [601, 1000]",
			window[0].ID, window[len(window)-1].ID)
	}
	if !ctrl.HasOlder() {
		t.Error("HasOlder = false with 600 older messages present")
	}
}

func TestStartSmallConversation(t *testing.T) {
	engine := querytest.New(fixtureMessages(5)...)
	ctrl := New(engine, "Ana", "backup.db", 400)

	testutil.MustNoErr(t, ctrl.Start(context.Background()), "Start")

	if got := len(ctrl.Window()); got != 5 {
		t.Errorf("window length = %d, want 5", got)
	}
	if ctrl.HasOlder() {
		t.Error("HasOlder = true for a fully loaded conversation")
	}
}

func TestStartEmptyConversation(t *testing.T) {
	engine := querytest.New()
	ctrl := New(engine, "Ana", "backup.db", 400)

	testutil.MustNoErr(t, ctrl.Start(context.Background()), "Start")

	if got := len(ctrl.Window()); got != 0 {
		t.Errorf("window length = %d, want 0", got)
	}
	if ctrl.HasOlder() {
		t.Error("HasOlder = true for an empty conversation")
	}
}

// TestLoadOlderWalksToStart drives a 1000-message conversation through its
// full pagination sequence and asserts the exact requests issued: 400, then
// 400, then the 200-message remainder, then nothing.
func TestLoadOlderWalksToStart(t *testing.T) {
	ctx := context.Background()
	engine := querytest.New(fixtureMessages(1000)...)
	ctrl := New(engine, "Ana", "backup.db", 400)

	testutil.MustNoErr(t, ctrl.Start(ctx), "Start")

	n, err := ctrl.LoadOlder(ctx)
	testutil.MustNoErr(t, err, "first LoadOlder")
	if n != 400 {
		t.Errorf("first LoadOlder prepended %d, want 400", n)
	}

	n, err = ctrl.LoadOlder(ctx)
	testutil.MustNoErr(t, err, "second LoadOlder")
	if n != 200 {
		t.Errorf("second LoadOlder prepended %d, want 200", n)
	}
	if ctrl.HasOlder() {
		t.Error("HasOlder = true after loading everything")
	}

	// At the start, further triggers are no-ops and hit the store zero times.
	n, err = ctrl.LoadOlder(ctx)
	testutil.MustNoErr(t, err, "LoadOlder at start")
	if n != 0 {
		t.Errorf("LoadOlder at start prepended %d, want 0", n)
	}

	testutil.AssertStrings(t, engine.Calls,
		"GetMessages(400,600)",
		"GetMessages(400,200)",
		"GetMessages(200,0)",
	)

	// The final window is the whole conversation, in order, no gaps.
	window := ctrl.Window()
	if len(window) != 1000 {
		t.Fatalf("window length = %d, want 1000", len(window))
	}
	for i, msg := range window {
		if msg.ID != int64(i+1) {
			t.Fatalf("window[%d].ID = %d, want %d", i, msg.ID, i+1)
		}
	}
}

func TestLoadOlderKeepsWindowOnError(t *testing.T) {
	ctx := context.Background()
	engine := querytest.New(fixtureMessages(1000)...)
	ctrl := New(engine, "Ana", "backup.db", 400)
	testutil.MustNoErr(t, ctrl.Start(ctx), "Start")

	engine.Err = errors.New("store gone")
	if _, err := ctrl.LoadOlder(ctx); err == nil {
		t.Fatal("LoadOlder: expected error, got nil")
	}

	// Window and offset untouched; the trigger can fire again later.
	if got := len(ctrl.Window()); got != 400 {
		t.Errorf("window length after failure = %d, want 400", got)
	}
	if ctrl.Offset() != 600 {
		t.Errorf("offset after failure = %d, want 600", ctrl.Offset())
	}

	engine.Err = nil
	n, err := ctrl.LoadOlder(ctx)
	testutil.MustNoErr(t, err, "retry LoadOlder")
	if n != 400 {
		t.Errorf("retry prepended %d, want 400", n)
	}
}

func TestLoadOlderDiscardedAfterReset(t *testing.T) {
	ctx := context.Background()
	engine := querytest.New(fixtureMessages(1000)...)
	ctrl := New(engine, "Ana", "backup.db", 400)
	testutil.MustNoErr(t, ctrl.Start(ctx), "Start")

	// Reset after Start: the controller is invalidated, so the load that
	// would otherwise succeed applies nothing.
	ctrl.Reset()

	n, err := ctrl.LoadOlder(ctx)
	testutil.MustNoErr(t, err, "LoadOlder after Reset")
	if n != 0 {
		t.Errorf("LoadOlder after Reset prepended %d, want 0", n)
	}
	if got := len(ctrl.Window()); got != 0 {
		t.Errorf("window length after Reset = %d, want 0", got)
	}
}

// resetDuringCount resets the controller while Start's count query is in
// flight, as a conversation switch would.
type resetDuringCount struct {
	*querytest.MockEngine
	ctrl *Controller
}

func (e *resetDuringCount) CountMessages(ctx context.Context, contact, sourceFile string) (int64, error) {
	e.ctrl.Reset()
	return e.MockEngine.CountMessages(ctx, contact, sourceFile)
}

func TestStartDiscardedAfterReset(t *testing.T) {
	engine := &resetDuringCount{MockEngine: querytest.New(fixtureMessages(100)...)}
	ctrl := New(engine, "Ana", "backup.db", 400)
	engine.ctrl = ctrl

	testutil.MustNoErr(t, ctrl.Start(context.Background()), "Start")

	// The reset won: nothing was applied.
	if got := len(ctrl.Window()); got != 0 {
		t.Errorf("window length = %d, want 0", got)
	}
	if ctrl.Total() != 0 || ctrl.HasOlder() {
		t.Errorf("total = %d, HasOlder = %v after reset", ctrl.Total(), ctrl.HasOlder())
	}
}

func TestEnsureVisibleFetchesGapInBatches(t *testing.T) {
	ctx := context.Background()
	engine := querytest.New(fixtureMessages(1000)...)
	ctrl := New(engine, "Ana", "backup.db", 400)
	testutil.MustNoErr(t, ctrl.Start(ctx), "Start")
	engine.Calls = nil

	// Message 50 sits at index 49, three batches before the window. The gap
	// is fetched batch by batch, never as one oversized request.
	n, err := ctrl.EnsureVisible(ctx, 50)
	testutil.MustNoErr(t, err, "EnsureVisible")
	if n != 600 {
		t.Errorf("EnsureVisible prepended %d, want 600", n)
	}
	testutil.AssertStrings(t, engine.Calls,
		"GetMessages(400,0)",
		"GetMessages(200,400)",
	)

	window := ctrl.Window()
	if window[0].ID != 1 {
		t.Errorf("window starts at id %d, want 1", window[0].ID)
	}
}

// pageCappedEngine mimics a server that silently caps the page size of any
// single messages request.
type pageCappedEngine struct {
	*querytest.MockEngine
	cap int
}

func (e *pageCappedEngine) GetMessages(ctx context.Context, contact, sourceFile string, limit, offset int) ([]query.Message, error) {
	if limit > e.cap {
		limit = e.cap
	}
	return e.MockEngine.GetMessages(ctx, contact, sourceFile, limit, offset)
}

// TestEnsureVisibleThroughPageCappedStore jumps over a 1600-message gap
// against a store that refuses pages larger than 1000. Batch-sized chunks
// stay under the cap, so the window must come back complete: every id
// present, offset zero, nothing older left.
func TestEnsureVisibleThroughPageCappedStore(t *testing.T) {
	ctx := context.Background()
	engine := &pageCappedEngine{
		MockEngine: querytest.New(fixtureMessages(2000)...),
		cap:        1000,
	}
	ctrl := New(engine, "Ana", "backup.db", 400)
	testutil.MustNoErr(t, ctrl.Start(ctx), "Start")

	n, err := ctrl.EnsureVisible(ctx, 1)
	testutil.MustNoErr(t, err, "EnsureVisible")
	if n != 1600 {
		t.Fatalf("EnsureVisible prepended %d, want 1600", n)
	}

	window := ctrl.Window()
	if len(window) != 2000 {
		t.Fatalf("window length = %d, want 2000", len(window))
	}
	for i, msg := range window {
		if msg.ID != int64(i+1) {
			t.Fatalf("gap in window: window[%d].ID = %d, want %d", i, msg.ID, i+1)
		}
	}
	if ctrl.Offset() != 0 || ctrl.HasOlder() {
		t.Errorf("offset = %d, HasOlder = %v after full coverage", ctrl.Offset(), ctrl.HasOlder())
	}
}

// TestEnsureVisibleShortChunkLeavesWindowIntact drives the grow against a
// store that returns short pages even below the batch size. The controller
// must refuse to prepend a window with a hole in it.
func TestEnsureVisibleShortChunkLeavesWindowIntact(t *testing.T) {
	ctx := context.Background()
	engine := &pageCappedEngine{
		MockEngine: querytest.New(fixtureMessages(1000)...),
		cap:        400,
	}
	ctrl := New(engine, "Ana", "backup.db", 400)
	testutil.MustNoErr(t, ctrl.Start(ctx), "Start")

	// Below the batch size: every chunk of the grow comes back short.
	engine.cap = 100

	if _, err := ctrl.EnsureVisible(ctx, 1); err == nil {
		t.Fatal("EnsureVisible accepted an incomplete chunk")
	}
	if got := len(ctrl.Window()); got != 400 {
		t.Errorf("window length after failure = %d, want 400", got)
	}
	if ctrl.Offset() != 600 {
		t.Errorf("offset after failure = %d, want 600", ctrl.Offset())
	}
}

func TestEnsureVisibleNoopWhenAlreadyLoaded(t *testing.T) {
	ctx := context.Background()
	engine := querytest.New(fixtureMessages(1000)...)
	ctrl := New(engine, "Ana", "backup.db", 400)
	testutil.MustNoErr(t, ctrl.Start(ctx), "Start")
	engine.Calls = nil

	n, err := ctrl.EnsureVisible(ctx, 700) // inside [601, 1000]
	testutil.MustNoErr(t, err, "EnsureVisible")
	if n != 0 {
		t.Errorf("prepended %d, want 0", n)
	}
	if len(engine.Calls) != 0 {
		t.Errorf("EnsureVisible hit the store: %v", engine.Calls)
	}
}

func TestEnsureVisibleUnknownID(t *testing.T) {
	ctx := context.Background()
	engine := querytest.New(fixtureMessages(1000)...)
	ctrl := New(engine, "Ana", "backup.db", 400)
	testutil.MustNoErr(t, ctrl.Start(ctx), "Start")

	n, err := ctrl.EnsureVisible(ctx, 424242)
	testutil.MustNoErr(t, err, "EnsureVisible")
	if n != 0 {
		t.Errorf("prepended %d for unknown id, want 0", n)
	}
}

func TestBatchDefaulting(t *testing.T) {
	engine := querytest.New(fixtureMessages(10)...)
	ctrl := New(engine, "Ana", "backup.db", 0)
	if ctrl.batch != DefaultBatch {
		t.Errorf("batch = %d, want DefaultBatch %d", ctrl.batch, DefaultBatch)
	}
}

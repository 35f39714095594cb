// Package page manages the sliding message window of an open conversation:
// the newest batch first, growing backward as the user scrolls up.
package page

import (
	"context"
	"fmt"
	"sync"

	"github.com/zapvault/zapvault/internal/query"
)

// DefaultBatch is the window growth step when the config does not override it.
const DefaultBatch = 400

// Controller owns the loaded window of one conversation. The window always
// covers [offset, total) in ascending id order; loading older messages moves
// offset toward zero and prepends, never reorders.
//
// At most one older-load is in flight; triggers while one is pending are
// dropped. Reset invalidates the controller so a fetch that resolves after a
// conversation switch discards its result instead of applying it.
type Controller struct {
	engine     query.Engine
	contact    string
	sourceFile string
	batch      int

	mu      sync.Mutex
	total   int64
	offset  int
	window  []query.Message
	started bool
	busy    bool
	gen     int
}

// New creates a controller for one conversation. batch <= 0 falls back to
// DefaultBatch.
func New(engine query.Engine, contact, sourceFile string, batch int) *Controller {
	if batch <= 0 {
		batch = DefaultBatch
	}
	return &Controller{
		engine:     engine,
		contact:    contact,
		sourceFile: sourceFile,
		batch:      batch,
	}
}

// Start loads the initial window: the last min(total, batch) messages, so
// the window always ends with the conversation's true last message. Like the
// other fetches, a result resolving after a Reset is discarded.
func (c *Controller) Start(ctx context.Context) error {
	c.mu.Lock()
	gen := c.gen
	c.mu.Unlock()

	total, err := c.engine.CountMessages(ctx, c.contact, c.sourceFile)
	if err != nil {
		return err
	}

	limit := c.batch
	if total < int64(limit) {
		limit = int(total)
	}
	offset := int(total) - limit

	var window []query.Message
	if limit > 0 {
		window, err = c.engine.GetMessages(ctx, c.contact, c.sourceFile, limit, offset)
		if err != nil {
			return err
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.gen != gen {
		return nil
	}
	c.total = total
	c.offset = offset
	c.window = window
	c.started = true
	return nil
}

// LoadOlder grows the window backward by one batch and returns how many
// messages were prepended, so the view can shift its scroll anchor by the
// added height. Returns (0, nil) when there is nothing older, when a load is
// already in flight, or when the controller was reset mid-fetch. A failed
// fetch leaves the window intact; the caller's trigger may simply fire again.
func (c *Controller) LoadOlder(ctx context.Context) (int, error) {
	c.mu.Lock()
	if !c.started || c.busy || c.offset == 0 {
		c.mu.Unlock()
		return 0, nil
	}
	c.busy = true
	gen := c.gen
	offset := c.offset
	c.mu.Unlock()

	newOffset := offset - c.batch
	if newOffset < 0 {
		newOffset = 0
	}
	limit := offset - newOffset

	older, err := c.engine.GetMessages(ctx, c.contact, c.sourceFile, limit, newOffset)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.busy = false
	if c.gen != gen {
		// Conversation switched while the fetch was in flight.
		return 0, nil
	}
	if err != nil {
		return 0, err
	}

	c.window = append(older, c.window...)
	c.offset = newOffset
	return len(older), nil
}

// EnsureVisible extends the window backward until it covers the message with
// the given id, fetching the gap in batch-sized requests. Used when a search
// hit lies before the loaded window. Returns the number of prepended messages.
func (c *Controller) EnsureVisible(ctx context.Context, id int64) (int, error) {
	c.mu.Lock()
	if !c.started || c.busy {
		c.mu.Unlock()
		return 0, nil
	}
	if len(c.window) > 0 && id >= c.window[0].ID {
		c.mu.Unlock()
		return 0, nil
	}
	c.busy = true
	gen := c.gen
	offset := c.offset
	c.mu.Unlock()

	prepended, err := c.fetchThrough(ctx, id, gen, offset)
	c.mu.Lock()
	c.busy = false
	c.mu.Unlock()
	return prepended, err
}

// fetchThrough computes the batch-aligned offset that covers the target index
// and prepends everything between it and the current offset. The gap is
// fetched in batch-sized chunks: a remote engine's server caps the page size
// of a single request, and one oversized fetch would come back short and be
// prepended as if complete, leaving a hole in the window. A chunk that still
// comes back short aborts the grow with the window untouched.
func (c *Controller) fetchThrough(ctx context.Context, id int64, gen, offset int) (int, error) {
	idx, ok, err := c.engine.GetMessageIndex(ctx, c.contact, c.sourceFile, id)
	if err != nil {
		return 0, err
	}
	if !ok || int(idx) >= offset {
		return 0, nil
	}

	newOffset := offset
	for newOffset > int(idx) {
		newOffset -= c.batch
	}
	if newOffset < 0 {
		newOffset = 0
	}

	older := make([]query.Message, 0, offset-newOffset)
	for off := newOffset; off < offset; off += c.batch {
		limit := c.batch
		if off+limit > offset {
			limit = offset - off
		}
		chunk, err := c.engine.GetMessages(ctx, c.contact, c.sourceFile, limit, off)
		if err != nil {
			return 0, err
		}
		if len(chunk) != limit {
			return 0, fmt.Errorf("incomplete window: store returned %d of %d messages at offset %d", len(chunk), limit, off)
		}
		older = append(older, chunk...)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.gen != gen {
		return 0, nil
	}
	c.window = append(older, c.window...)
	c.offset = newOffset
	return len(older), nil
}

// Reset unconditionally clears the window and invalidates any in-flight
// fetch. Call it on conversation switch before starting the next controller.
func (c *Controller) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gen++
	c.window = nil
	c.offset = 0
	c.total = 0
	c.started = false
}

// Window returns the loaded messages in ascending id order.
func (c *Controller) Window() []query.Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.window
}

// HasOlder reports whether messages older than the window exist. It is true
// exactly when the window's offset is greater than zero.
func (c *Controller) HasOlder() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.started && c.offset > 0
}

// Offset returns the index within the conversation of the first loaded
// message.
func (c *Controller) Offset() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.offset
}

// Total returns the conversation's message count as of Start.
func (c *Controller) Total() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.total
}

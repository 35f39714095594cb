// Package search finds messages by substring within one conversation and
// tracks next/prev navigation through the matches.
//
// The scan always runs over the entire conversation via the query engine,
// never over the loaded window alone: a window-only scan would silently miss
// older matches, and mixing the two strategies per call is a correctness bug.
package search

import (
	"context"
	"strings"

	"golang.org/x/text/cases"

	"github.com/zapvault/zapvault/internal/query"
)

var folder = cases.Fold()

// Matches reports whether text contains term under Unicode case folding.
// Views use it to highlight hits so the highlight agrees with the store scan.
func Matches(text, term string) bool {
	if term == "" {
		return false
	}
	return strings.Contains(folder.String(text), folder.String(term))
}

// Navigator walks an ascending sequence of matching message ids with a
// current-match cursor. Next clamps at the last match and Prev at the first;
// there is no wraparound.
type Navigator struct {
	ids []int64
	pos int
}

// Find scans the whole conversation for term and returns a navigator over
// the matches, positioned at the first one.
func Find(ctx context.Context, engine query.Engine, contact, sourceFile, term string) (*Navigator, error) {
	ids, err := engine.SearchMessages(ctx, contact, sourceFile, term)
	if err != nil {
		return nil, err
	}
	return NewNavigator(ids), nil
}

// NewNavigator wraps an ascending id sequence.
func NewNavigator(ids []int64) *Navigator {
	return &Navigator{ids: ids}
}

// Len returns the number of matches.
func (n *Navigator) Len() int {
	return len(n.ids)
}

// IDs returns the matching ids in ascending order.
func (n *Navigator) IDs() []int64 {
	return n.ids
}

// Pos returns the 0-based cursor position.
func (n *Navigator) Pos() int {
	return n.pos
}

// Current returns the id under the cursor, or false when there are no
// matches.
func (n *Navigator) Current() (int64, bool) {
	if len(n.ids) == 0 {
		return 0, false
	}
	return n.ids[n.pos], true
}

// Next advances the cursor, clamping at the last match.
func (n *Navigator) Next() (int64, bool) {
	if len(n.ids) == 0 {
		return 0, false
	}
	if n.pos < len(n.ids)-1 {
		n.pos++
	}
	return n.ids[n.pos], true
}

// Prev moves the cursor back, clamping at the first match.
func (n *Navigator) Prev() (int64, bool) {
	if len(n.ids) == 0 {
		return 0, false
	}
	if n.pos > 0 {
		n.pos--
	}
	return n.ids[n.pos], true
}

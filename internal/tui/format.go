package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"
	"github.com/mattn/go-runewidth"

	"github.com/zapvault/zapvault/internal/query"
	"github.com/zapvault/zapvault/internal/search"
)

// truncate shortens s to the given display width, honoring wide runes.
func truncate(s string, width int) string {
	if width <= 0 || runewidth.StringWidth(s) <= width {
		return s
	}
	return runewidth.Truncate(s, width-1, "…")
}

// formatSize renders a byte count for humans.
func formatSize(n int64) string {
	switch {
	case n >= 1<<20:
		return fmt.Sprintf("%.1f MB", float64(n)/(1<<20))
	case n >= 1<<10:
		return fmt.Sprintf("%.1f KB", float64(n)/(1<<10))
	case n > 0:
		return fmt.Sprintf("%d B", n)
	default:
		return ""
	}
}

// renderMessage renders one message into viewport lines, dispatching on its
// render variant.
func (m *Model) renderMessage(msg query.Message) []string {
	variant := query.Classify(msg)

	width := m.width
	if width <= 0 {
		width = 80
	}
	bubbleWidth := width * 2 / 3
	if bubbleWidth < 20 {
		bubbleWidth = width
	}

	var body strings.Builder
	if msg.GroupSender != "" && variant == query.VariantReceived {
		body.WriteString(senderStyle.Render(msg.GroupSender))
		body.WriteString("\n")
	}
	if att := m.attachmentLine(msg, variant); att != "" {
		body.WriteString(att)
		if msg.Text != "" {
			body.WriteString("\n")
		}
	}
	if msg.Text != "" {
		body.WriteString(m.maybeHighlight(msg))
	}
	if body.Len() == 0 {
		body.WriteString(dimStyle.Render("(empty message)"))
	}

	meta := msg.SentAt
	if msg.Status != "" {
		meta += " · " + msg.Status
	}

	switch variant {
	case query.VariantNotification:
		line := notifStyle.Render(truncate(msg.Text, width))
		return []string{placeLine(width, lipgloss.Center, line), ""}

	case query.VariantSent:
		bubble := sentStyle.Width(bubbleWidth).Render(body.String()) +
			"\n" + dimStyle.Render(meta)
		return append(alignLines(bubble, width, lipgloss.Right), "")

	default:
		bubble := receivedStyle.Width(bubbleWidth).Render(body.String()) +
			"\n" + dimStyle.Render(meta)
		return append(strings.Split(bubble, "\n"), "")
	}
}

// attachmentLine renders the attachment descriptor: the stored kind label
// verbatim, plus the resolved file when the media folder has it.
func (m *Model) attachmentLine(msg query.Message, variant query.RenderVariant) string {
	att := msg.Attachment
	if att == nil || (att.Kind == "" && att.FileRef == "") {
		return ""
	}

	if variant == query.VariantMissingMedia {
		return missingStyle.Render(fmt.Sprintf("[media unavailable: %s]", att.Kind))
	}

	label := att.Kind
	if label == "" {
		label = "attachment"
	}
	if m.resolver != nil {
		if res, ok := m.resolver.Resolve(att.FileRef); ok {
			out := fmt.Sprintf("[%s: %s", label, res.Name)
			if size := formatSize(att.Size); size != "" {
				out += " (" + size + ")"
			}
			return dimStyle.Render(out + "]")
		}
	}
	return missingStyle.Render(fmt.Sprintf("[%s: %s — not in media folder]", label, att.FileRef))
}

// maybeHighlight styles the message text when it is a search hit.
func (m *Model) maybeHighlight(msg query.Message) string {
	if msg.ID == m.highlighted {
		return matchStyle.Render(msg.Text)
	}
	if m.lastSearchTerm != "" && search.Matches(msg.Text, m.lastSearchTerm) {
		return matchStyle.Render(msg.Text)
	}
	return msg.Text
}

// alignLines right-places each rendered line individually so multi-line
// bubbles keep their alignment inside the viewport.
func alignLines(block string, width int, pos lipgloss.Position) []string {
	lines := strings.Split(block, "\n")
	for i, line := range lines {
		lines[i] = placeLine(width, pos, line)
	}
	return lines
}

// placeLine pads a styled line into the full terminal width. ANSI-aware
// width measurement keeps styled content from being over-padded.
func placeLine(width int, pos lipgloss.Position, line string) string {
	pad := width - ansi.StringWidth(line)
	if pad <= 0 {
		return line
	}
	switch pos {
	case lipgloss.Right:
		return strings.Repeat(" ", pad) + line
	case lipgloss.Center:
		left := pad / 2
		return strings.Repeat(" ", left) + line
	default:
		return line
	}
}

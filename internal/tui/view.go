package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("42"))
	dimStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	errStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))

	cursorStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212"))
	sentStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("114"))
	receivedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("252"))
	notifStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("245")).Italic(true)
	missingStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("208")).Italic(true)
	matchStyle    = lipgloss.NewStyle().Background(lipgloss.Color("227")).Foreground(lipgloss.Color("0"))
	senderStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("110"))
)

// threadViewportHeight leaves room for the header, status bar and help line.
func threadViewportHeight(total int) int {
	h := total - 4
	if h < 1 {
		h = 1
	}
	return h
}

// View renders the active screen.
func (m Model) View() string {
	if m.quitting {
		return ""
	}
	if m.err != nil {
		return errStyle.Render("error: "+m.err.Error()) + "\n" +
			dimStyle.Render("press ctrl+c to quit") + "\n"
	}

	switch m.level {
	case levelThread:
		return m.threadView()
	default:
		return m.chatListView()
	}
}

// chatListView renders the conversation list, newest activity first.
func (m Model) chatListView() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("zapvault — conversations"))
	b.WriteString("\n\n")

	if len(m.chats) == 0 {
		b.WriteString(dimStyle.Render("no conversations found"))
		b.WriteString("\n")
		return b.String()
	}

	visible := m.height - 5
	if visible < 1 {
		visible = len(m.chats)
	}
	start := 0
	if m.cursor >= visible {
		start = m.cursor - visible + 1
	}

	for i := start; i < len(m.chats) && i < start+visible; i++ {
		c := m.chats[i]
		line := fmt.Sprintf("%s  %s",
			truncate(c.Contact, 40),
			dimStyle.Render(fmt.Sprintf("%d messages · %s", c.MessageCount, c.LastSentAt)))
		if i == m.cursor {
			line = cursorStyle.Render("> ") + line
		} else {
			line = "  " + line
		}
		b.WriteString(line)
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(dimStyle.Render("↑/↓ move · enter open · r reload · q quit"))
	b.WriteString("\n")
	return b.String()
}

// threadView renders the open conversation.
func (m Model) threadView() string {
	var b strings.Builder

	header := fmt.Sprintf("%s  %s", m.conv.Contact,
		dimStyle.Render(fmt.Sprintf("(%d messages · %s)", m.conv.MessageCount, m.conv.SourceFile)))
	b.WriteString(titleStyle.Render(truncate(header, m.width)))
	b.WriteString("\n")

	if !m.threadReady {
		b.WriteString(dimStyle.Render("loading..."))
		b.WriteString("\n")
		return b.String()
	}

	b.WriteString(m.viewport.View())
	b.WriteString("\n")

	b.WriteString(m.statusLine())
	b.WriteString("\n")
	b.WriteString(dimStyle.Render("↑/↓ scroll · / search · n/N next/prev match · esc back"))
	b.WriteString("\n")
	return b.String()
}

// statusLine shows the search bar or the current status.
func (m Model) statusLine() string {
	if m.searching {
		return "/" + m.searchInput.View()
	}
	if m.nav != nil && m.nav.Len() > 0 {
		return dimStyle.Render(fmt.Sprintf("match %d of %d for %q",
			m.nav.Pos()+1, m.nav.Len(), m.lastSearchTerm))
	}
	if m.status != "" {
		return dimStyle.Render(m.status)
	}
	if m.ctrl != nil && m.ctrl.HasOlder() {
		return dimStyle.Render("scroll up for older messages")
	}
	return ""
}

// refreshThreadContent re-renders the window into the viewport. When older
// messages were prepended, the viewport offset is shifted by the exact
// number of added lines so the previously visible content does not jump.
func (m *Model) refreshThreadContent(prepended bool, count int) {
	window := m.ctrl.Window()
	m.lineIndex = make(map[int64]int, len(window))

	var lines []string
	for _, msg := range window {
		m.lineIndex[msg.ID] = len(lines)
		lines = append(lines, m.renderMessage(msg)...)
	}

	m.viewport.SetContent(strings.Join(lines, "\n"))
	if prepended && count > 0 {
		delta := len(lines) - m.threadLines
		if delta > 0 {
			m.viewport.SetYOffset(m.viewport.YOffset + delta)
		}
	}
	m.threadLines = len(lines)
}

// centerOn scrolls the viewport so the message's first line sits in the
// middle of the screen. The id must already be in the rendered window.
func (m *Model) centerOn(id int64) {
	line, ok := m.lineIndex[id]
	if !ok {
		return
	}
	m.viewport.SetYOffset(line - m.viewport.Height/2)
}

package tui

import (
	tea "github.com/charmbracelet/bubbletea"

	"github.com/zapvault/zapvault/internal/query"
)

// handleChatListKeys handles keys on the conversation list.
func (m Model) handleChatListKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q":
		m.quitting = true
		return m, tea.Quit

	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}
		return m, nil

	case "down", "j":
		if m.cursor < len(m.chats)-1 {
			m.cursor++
		}
		return m, nil

	case "g":
		m.cursor = 0
		return m, nil

	case "G":
		if len(m.chats) > 0 {
			m.cursor = len(m.chats) - 1
		}
		return m, nil

	case "r":
		return m, m.loadChats()

	case "enter":
		if chat, ok := m.selectedChat(); ok {
			return m.openThread(chat)
		}
		return m, nil
	}

	return m, nil
}

// handleThreadKeys handles keys on the message thread.
func (m Model) handleThreadKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "esc":
		return m.closeThread()

	case "/":
		m.searching = true
		m.searchInput.Focus()
		return m, nil

	case "n":
		if m.nav != nil {
			if id, ok := m.nav.Next(); ok {
				return m.jumpToMatch(id)
			}
		}
		return m, nil

	case "N":
		if m.nav != nil {
			if id, ok := m.nav.Prev(); ok {
				return m.jumpToMatch(id)
			}
		}
		return m, nil

	case "G":
		m.viewport.GotoBottom()
		return m, nil
	}

	// Everything else (arrows, pgup/pgdn, mouse wheel) scrolls the viewport.
	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)

	if older := m.maybeLoadOlder(); older != nil {
		return m, tea.Batch(cmd, older)
	}
	return m, cmd
}

// maybeLoadOlder fires one older-batch fetch when the scroll position is
// near the top. The controller additionally drops overlapping triggers, so
// at most one fetch is in flight per conversation.
func (m *Model) maybeLoadOlder() tea.Cmd {
	if !m.threadReady || m.loadingOlder || m.ctrl == nil || !m.ctrl.HasOlder() {
		return nil
	}
	if m.viewport.YOffset >= loadOlderThreshold {
		return nil
	}
	m.loadingOlder = true
	return m.loadOlder()
}

// handleSearchKeys handles keys while the search input is focused.
func (m Model) handleSearchKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "enter":
		term := m.searchInput.Value()
		m.searching = false
		m.searchInput.Blur()
		if term == "" {
			return m, nil
		}
		m.lastSearchTerm = term
		return m, m.runSearch(term)

	case "esc":
		m.searching = false
		m.searchInput.Blur()
		m.searchInput.Reset()
		m.lastSearchTerm = ""
		m.nav = nil
		m.highlighted = 0
		m.refreshThreadContent(false, 0)
		return m, nil
	}

	var cmd tea.Cmd
	m.searchInput, cmd = m.searchInput.Update(msg)
	return m, cmd
}

// selectedChat returns the conversation under the cursor.
func (m Model) selectedChat() (query.Conversation, bool) {
	if m.cursor < len(m.chats) {
		return m.chats[m.cursor], true
	}
	return query.Conversation{}, false
}

// Package tui implements the interactive terminal viewer: a conversation
// list and a message thread with backward pagination and in-conversation
// search.
package tui

import (
	"context"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/zapvault/zapvault/internal/attach"
	"github.com/zapvault/zapvault/internal/page"
	"github.com/zapvault/zapvault/internal/query"
	"github.com/zapvault/zapvault/internal/search"
)

// level identifies which screen is active.
type level int

const (
	levelChats level = iota
	levelThread
)

// loadOlderThreshold is how close to the top of the viewport (in lines) the
// scroll position must be before the next older batch is requested.
const loadOlderThreshold = 10

// queryTimeout bounds every store round-trip issued by the TUI.
const queryTimeout = 30 * time.Second

// Model is the bubbletea model for the viewer.
type Model struct {
	engine   query.Engine
	resolver *attach.Resolver
	batch    int

	width  int
	height int
	level  level

	// Conversation list state.
	chats  []query.Conversation
	cursor int

	// Thread state. threadRequestID guards async results: a fetch started
	// for one conversation must not apply after the user switched away.
	conv            query.Conversation
	ctrl            *page.Controller
	threadRequestID int
	loadingOlder    bool
	viewport        viewport.Model
	threadReady     bool

	// Rendered thread content bookkeeping for scroll anchoring and match
	// centering: first rendered line of each message id, and the previous
	// total line count.
	lineIndex   map[int64]int
	threadLines int

	// Search state.
	searchInput    textinput.Model
	searching      bool
	lastSearchTerm string
	nav            *search.Navigator
	highlighted    int64

	status   string
	err      error
	quitting bool
}

// New creates the TUI model.
func New(engine query.Engine, resolver *attach.Resolver, batch int) Model {
	input := textinput.New()
	input.Placeholder = "search conversation"
	input.CharLimit = 200

	return Model{
		engine:      engine,
		resolver:    resolver,
		batch:       batch,
		searchInput: input,
	}
}

// Messages for async results.

type chatsLoadedMsg struct {
	chats []query.Conversation
	err   error
}

type threadLoadedMsg struct {
	requestID int
	err       error
}

type olderLoadedMsg struct {
	requestID int
	prepended int
	err       error
}

type searchDoneMsg struct {
	requestID int
	nav       *search.Navigator
	err       error
}

type ensureVisibleMsg struct {
	requestID int
	id        int64
	prepended int
	err       error
}

// Init loads the conversation list.
func (m Model) Init() tea.Cmd {
	return m.loadChats()
}

func (m Model) loadChats() tea.Cmd {
	engine := m.engine
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), queryTimeout)
		defer cancel()
		chats, err := engine.ListConversations(ctx)
		return chatsLoadedMsg{chats: chats, err: err}
	}
}

func (m Model) loadThread() tea.Cmd {
	ctrl := m.ctrl
	id := m.threadRequestID
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), queryTimeout)
		defer cancel()
		return threadLoadedMsg{requestID: id, err: ctrl.Start(ctx)}
	}
}

func (m Model) loadOlder() tea.Cmd {
	ctrl := m.ctrl
	id := m.threadRequestID
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), queryTimeout)
		defer cancel()
		n, err := ctrl.LoadOlder(ctx)
		return olderLoadedMsg{requestID: id, prepended: n, err: err}
	}
}

func (m Model) runSearch(term string) tea.Cmd {
	engine := m.engine
	conv := m.conv
	id := m.threadRequestID
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), queryTimeout)
		defer cancel()
		nav, err := search.Find(ctx, engine, conv.Contact, conv.SourceFile, term)
		return searchDoneMsg{requestID: id, nav: nav, err: err}
	}
}

func (m Model) ensureVisible(msgID int64) tea.Cmd {
	ctrl := m.ctrl
	id := m.threadRequestID
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), queryTimeout)
		defer cancel()
		n, err := ctrl.EnsureVisible(ctx, msgID)
		return ensureVisibleMsg{requestID: id, id: msgID, prepended: n, err: err}
	}
}

// Update handles messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.viewport.Width = msg.Width
		m.viewport.Height = threadViewportHeight(msg.Height)
		if m.level == levelThread && m.threadReady {
			m.refreshThreadContent(false, 0)
		}
		return m, nil

	case tea.KeyMsg:
		return m.handleKeys(msg)

	case chatsLoadedMsg:
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.chats = msg.chats
		return m, nil

	case threadLoadedMsg:
		if msg.requestID != m.threadRequestID {
			return m, nil // stale: conversation switched mid-fetch
		}
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.threadReady = true
		m.refreshThreadContent(false, 0)
		m.viewport.GotoBottom()
		return m, nil

	case olderLoadedMsg:
		m.loadingOlder = false
		if msg.requestID != m.threadRequestID {
			return m, nil
		}
		if msg.err != nil {
			// Window is untouched on failure; scrolling up fires the
			// trigger again.
			m.status = "failed to load older messages"
			return m, nil
		}
		if msg.prepended > 0 {
			m.refreshThreadContent(true, msg.prepended)
		}
		return m, nil

	case searchDoneMsg:
		if msg.requestID != m.threadRequestID {
			return m, nil
		}
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.nav = msg.nav
		if id, ok := msg.nav.Current(); ok {
			return m.jumpToMatch(id)
		}
		m.status = "no matches"
		return m, nil

	case ensureVisibleMsg:
		if msg.requestID != m.threadRequestID {
			return m, nil
		}
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		if msg.prepended > 0 {
			m.refreshThreadContent(true, msg.prepended)
		}
		m.centerOn(msg.id)
		return m, nil
	}

	return m, nil
}

// handleKeys dispatches keys per level.
func (m Model) handleKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.String() == "ctrl+c" {
		m.quitting = true
		return m, tea.Quit
	}

	if m.searching {
		return m.handleSearchKeys(msg)
	}

	switch m.level {
	case levelChats:
		return m.handleChatListKeys(msg)
	default:
		return m.handleThreadKeys(msg)
	}
}

// openThread switches to a conversation: previous thread state is discarded
// unconditionally and any in-flight fetch for it is invalidated.
func (m Model) openThread(conv query.Conversation) (tea.Model, tea.Cmd) {
	if m.ctrl != nil {
		m.ctrl.Reset()
	}
	m.threadRequestID++
	m.conv = conv
	m.ctrl = page.New(m.engine, conv.Contact, conv.SourceFile, m.batch)
	m.level = levelThread
	m.threadReady = false
	m.loadingOlder = false
	m.nav = nil
	m.highlighted = 0
	m.status = ""
	m.err = nil
	m.viewport = viewport.New(m.width, threadViewportHeight(m.height))
	return m, m.loadThread()
}

// closeThread returns to the conversation list.
func (m Model) closeThread() (tea.Model, tea.Cmd) {
	if m.ctrl != nil {
		m.ctrl.Reset()
	}
	m.threadRequestID++
	m.level = levelChats
	m.threadReady = false
	m.nav = nil
	m.highlighted = 0
	m.searching = false
	m.searchInput.Reset()
	m.status = ""
	return m, nil
}

// jumpToMatch highlights a match and brings it into view, growing the
// window first when the match is older than anything loaded.
func (m Model) jumpToMatch(id int64) (tea.Model, tea.Cmd) {
	m.highlighted = id
	window := m.ctrl.Window()
	if len(window) > 0 && id < window[0].ID {
		return m, m.ensureVisible(id)
	}
	m.refreshThreadContent(false, 0)
	m.centerOn(id)
	return m, nil
}

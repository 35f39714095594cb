// Package querytest provides an in-memory query.Engine for tests.
package querytest

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/zapvault/zapvault/internal/convid"
	"github.com/zapvault/zapvault/internal/query"
)

// MockEngine implements query.Engine over an in-memory message slice. It
// records every GetMessages call so pagination tests can assert the exact
// (limit, offset) sequence.
type MockEngine struct {
	mu       sync.Mutex
	messages []query.Message

	// Calls collects "GetMessages(limit,offset)" entries in order.
	Calls []string

	// Err, when set, is returned by every query method.
	Err error

	// Closed reports whether Close was called.
	Closed bool
}

// New creates a mock engine over the given messages. Messages must be in
// ascending id order, as the real store returns them.
func New(messages ...query.Message) *MockEngine {
	return &MockEngine{messages: messages}
}

func (m *MockEngine) conversation(contact, sourceFile string) []query.Message {
	var msgs []query.Message
	for _, msg := range m.messages {
		if msg.Contact == contact && msg.SourceFile == sourceFile {
			msgs = append(msgs, msg)
		}
	}
	return msgs
}

// ListConversations groups the fixture messages like the SQLite engine does.
func (m *MockEngine) ListConversations(ctx context.Context) ([]query.Conversation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}

	type key struct{ contact, sourceFile string }
	index := map[key]int{}
	var convs []query.Conversation
	for _, msg := range m.messages {
		if msg.Contact == "" {
			continue
		}
		k := key{msg.Contact, msg.SourceFile}
		i, ok := index[k]
		if !ok {
			i = len(convs)
			index[k] = i
			convs = append(convs, query.Conversation{
				ID:          convid.Encode(msg.Contact, msg.SourceFile),
				Contact:     msg.Contact,
				SourceFile:  msg.SourceFile,
				FirstSentAt: msg.SentAt,
			})
		}
		convs[i].MessageCount++
		convs[i].LastSentAt = msg.SentAt
	}
	return convs, nil
}

func (m *MockEngine) CountMessages(ctx context.Context, contact, sourceFile string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return 0, m.Err
	}
	return int64(len(m.conversation(contact, sourceFile))), nil
}

func (m *MockEngine) GetMessages(ctx context.Context, contact, sourceFile string, limit, offset int) ([]query.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls = append(m.Calls, fmt.Sprintf("GetMessages(%d,%d)", limit, offset))
	if m.Err != nil {
		return nil, m.Err
	}

	msgs := m.conversation(contact, sourceFile)
	if offset >= len(msgs) {
		return nil, nil
	}
	end := offset + limit
	if end > len(msgs) {
		end = len(msgs)
	}
	return msgs[offset:end], nil
}

// SearchMessages mirrors SQLite LIKE semantics: ASCII-case-insensitive
// substring match.
func (m *MockEngine) SearchMessages(ctx context.Context, contact, sourceFile, term string) ([]int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}

	var ids []int64
	lower := strings.ToLower(term)
	for _, msg := range m.conversation(contact, sourceFile) {
		if strings.Contains(strings.ToLower(msg.Text), lower) {
			ids = append(ids, msg.ID)
		}
	}
	return ids, nil
}

func (m *MockEngine) GetMessageIndex(ctx context.Context, contact, sourceFile string, id int64) (int64, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return 0, false, m.Err
	}

	found := false
	var count int64
	for _, msg := range m.conversation(contact, sourceFile) {
		if msg.ID <= id {
			count++
		}
		if msg.ID == id {
			found = true
		}
	}
	if !found {
		return 0, false, nil
	}
	return count - 1, true, nil
}

func (m *MockEngine) GetStats(ctx context.Context) (*query.Stats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}

	convs := map[string]bool{}
	stats := &query.Stats{MessageCount: int64(len(m.messages))}
	for _, msg := range m.messages {
		if msg.Contact != "" {
			convs[msg.Contact+"\x00"+msg.SourceFile] = true
		}
		if msg.Attachment.HasFile() {
			stats.AttachmentCount++
		} else if msg.Attachment != nil && msg.Attachment.Kind != "" {
			stats.MissingMediaCount++
		}
	}
	stats.ConversationCount = int64(len(convs))
	return stats, nil
}

func (m *MockEngine) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Closed = true
	return nil
}

package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/zapvault/zapvault/internal/convid"
	"github.com/zapvault/zapvault/internal/query"
)

// maxPageSize caps one messages request. Clients paging a larger span must
// chunk; the pagination controller does.
const maxPageSize = 1000

// ChatSummary represents a conversation in list responses.
type ChatSummary struct {
	ID           string `json:"id"`
	Contact      string `json:"nome_contato"`
	SourceFile   string `json:"source_file"`
	MessageCount int64  `json:"message_count"`
	FirstTS      string `json:"first_ts"`
	LastTS       string `json:"last_ts"`
}

// MessageJSON is a message row on the wire. Keys match the backup's column
// names verbatim; only the derived render variant is added.
type MessageJSON struct {
	ID          int64  `json:"id"`
	Contact     string `json:"nome_contato"`
	SentAt      string `json:"data_hora_envio"`
	Type        string `json:"tipo_mensagem"`
	GroupSender string `json:"nome_remetente_grupo,omitempty"`
	Status      string `json:"status_mensagem,omitempty"`
	Text        string `json:"texto_mensagem,omitempty"`
	AttKind     string `json:"anexo_tipo,omitempty"`
	AttSize     int64  `json:"anexo_tamanho,omitempty"`
	AttFileRef  string `json:"anexo_id_arquivo,omitempty"`
	SourceFile  string `json:"source_file"`
	Variant     string `json:"variant"`
}

// MessagesResponse is a page of a conversation.
type MessagesResponse struct {
	Total    int64         `json:"total"`
	HasMore  bool          `json:"has_more"`
	Messages []MessageJSON `json:"messages"`
}

// SearchResponse lists matching message ids in ascending order.
type SearchResponse struct {
	Query   string  `json:"query"`
	Matches []int64 `json:"matches"`
}

// StatsResponse summarizes the backup.
type StatsResponse struct {
	TotalConversations int64 `json:"total_conversations"`
	TotalMessages      int64 `json:"total_messages"`
	TotalAttachments   int64 `json:"total_attachments"`
	MissingMedia       int64 `json:"missing_media"`
	DatabaseSize       int64 `json:"database_size_bytes"`
	IndexedMedia       int   `json:"indexed_media_files"`
}

// ErrorResponse represents an API error.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// writeError writes an error response.
func writeError(w http.ResponseWriter, status int, err string, message string) {
	writeJSON(w, status, ErrorResponse{Error: err, Message: message})
}

// writeEngineError maps engine failures onto HTTP statuses. A broken backup
// is 503 so clients can tell "server up, backup gone" from a crash.
func (s *Server) writeEngineError(w http.ResponseWriter, op string, err error) {
	s.logger.Error(op, "error", err)
	if errors.Is(err, query.ErrStoreUnavailable) {
		writeError(w, http.StatusServiceUnavailable, "store_unavailable", "Backup database is not available")
		return
	}
	writeError(w, http.StatusInternalServerError, "internal_error", "Query failed")
}

// chatParams decodes the {id} path segment. A malformed identifier is
// reported as conversation-not-found, never as a server error.
func (s *Server) chatParams(w http.ResponseWriter, r *http.Request) (contact, sourceFile string, ok bool) {
	contact, sourceFile, err := convid.Decode(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusNotFound, "not_found", "Conversation not found")
		return "", "", false
	}
	return contact, sourceFile, true
}

func toMessageJSON(m query.Message) MessageJSON {
	j := MessageJSON{
		ID:          m.ID,
		Contact:     m.Contact,
		SentAt:      m.SentAt,
		Type:        m.Type,
		GroupSender: m.GroupSender,
		Status:      m.Status,
		Text:        m.Text,
		SourceFile:  m.SourceFile,
		Variant:     query.Classify(m).String(),
	}
	if m.Attachment != nil {
		j.AttKind = m.Attachment.Kind
		j.AttSize = m.Attachment.Size
		j.AttFileRef = m.Attachment.FileRef
	}
	return j
}

// handleListChats returns the conversation list, newest activity first.
func (s *Server) handleListChats(w http.ResponseWriter, r *http.Request) {
	convs, err := s.engine.ListConversations(r.Context())
	if err != nil {
		s.writeEngineError(w, "failed to list conversations", err)
		return
	}

	chats := make([]ChatSummary, len(convs))
	for i, c := range convs {
		chats[i] = ChatSummary{
			ID:           c.ID,
			Contact:      c.Contact,
			SourceFile:   c.SourceFile,
			MessageCount: c.MessageCount,
			FirstTS:      c.FirstSentAt,
			LastTS:       c.LastSentAt,
		}
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"chats": chats})
}

// handleMessages returns one ascending-id window of a conversation plus a
// has-more flag for older messages.
func (s *Server) handleMessages(w http.ResponseWriter, r *http.Request) {
	contact, sourceFile, ok := s.chatParams(w, r)
	if !ok {
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit < 1 {
		limit = s.cfg.Viewer.BatchSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
	if offset < 0 {
		offset = 0
	}

	total, err := s.engine.CountMessages(r.Context(), contact, sourceFile)
	if err != nil {
		s.writeEngineError(w, "failed to count messages", err)
		return
	}

	messages, err := s.engine.GetMessages(r.Context(), contact, sourceFile, limit, offset)
	if err != nil {
		s.writeEngineError(w, "failed to get messages", err)
		return
	}

	out := make([]MessageJSON, len(messages))
	for i, m := range messages {
		out[i] = toMessageJSON(m)
	}

	writeJSON(w, http.StatusOK, MessagesResponse{
		Total:    total,
		HasMore:  int64(offset+limit) < total,
		Messages: out,
	})
}

// handleSearch returns ascending ids of messages containing q.
func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	contact, sourceFile, ok := s.chatParams(w, r)
	if !ok {
		return
	}

	term := r.URL.Query().Get("q")
	if term == "" {
		writeError(w, http.StatusBadRequest, "missing_query", "Query parameter 'q' is required")
		return
	}

	ids, err := s.engine.SearchMessages(r.Context(), contact, sourceFile, term)
	if err != nil {
		s.writeEngineError(w, "failed to search messages", err)
		return
	}
	if ids == nil {
		ids = []int64{}
	}

	writeJSON(w, http.StatusOK, SearchResponse{Query: term, Matches: ids})
}

// handleMessageIndex returns the 0-based position of a message within its
// conversation, used by viewers to grow their window onto a search hit.
func (s *Server) handleMessageIndex(w http.ResponseWriter, r *http.Request) {
	contact, sourceFile, ok := s.chatParams(w, r)
	if !ok {
		return
	}

	id, err := strconv.ParseInt(chi.URLParam(r, "messageID"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_id", "Message ID must be a number")
		return
	}

	idx, found, err := s.engine.GetMessageIndex(r.Context(), contact, sourceFile, id)
	if err != nil {
		s.writeEngineError(w, "failed to index message", err)
		return
	}
	if !found {
		writeError(w, http.StatusNotFound, "not_found", "Message not found in conversation")
		return
	}

	writeJSON(w, http.StatusOK, map[string]int64{"index": idx})
}

// handleStats returns backup totals.
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.engine.GetStats(r.Context())
	if err != nil {
		s.writeEngineError(w, "failed to get stats", err)
		return
	}

	writeJSON(w, http.StatusOK, StatsResponse{
		TotalConversations: stats.ConversationCount,
		TotalMessages:      stats.MessageCount,
		TotalAttachments:   stats.AttachmentCount,
		MissingMedia:       stats.MissingMediaCount,
		DatabaseSize:       stats.DatabaseSize,
		IndexedMedia:       s.resolver.Count(),
	})
}

// handleAttachment streams a media file for a stored reference: exact or
// index-based resolution first, then a fuzzy scan of indexed names. Neither
// matching → 404. A transfer the client abandons mid-download is logged and
// otherwise swallowed; it must never surface as a 500.
func (s *Server) handleAttachment(w http.ResponseWriter, r *http.Request) {
	ref := chi.URLParam(r, "ref")

	var path, name string
	if res, ok := s.resolver.Resolve(ref); ok {
		path, name = res.Path, res.Name
	} else if p, ok := s.resolver.FuzzyFind(ref); ok {
		path, name = p, ref
	} else {
		writeError(w, http.StatusNotFound, "not_found", "Attachment not found")
		return
	}

	f, err := os.Open(path)
	if err != nil {
		s.logger.Error("failed to open attachment", "ref", ref, "path", path, "error", err)
		writeError(w, http.StatusNotFound, "not_found", "Attachment not found")
		return
	}
	defer f.Close()

	fi, err := f.Stat()
	if err != nil {
		s.logger.Error("failed to stat attachment", "ref", ref, "error", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "Failed to read attachment")
		return
	}

	// ServeContent handles range requests and discards write errors, so a
	// client hanging up mid-stream cannot flip the response to an error.
	http.ServeContent(w, r, name, fi.ModTime(), f)

	if r.Context().Err() != nil {
		s.logger.Debug("attachment transfer aborted by client", "ref", ref)
	}
}

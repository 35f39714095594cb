// Package remote provides a query.Engine that talks to a zapvault server
// over HTTP, so a viewer can browse a backup hosted elsewhere.
package remote

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/zapvault/zapvault/internal/convid"
	"github.com/zapvault/zapvault/internal/query"
)

// Config holds configuration for creating a remote engine.
type Config struct {
	URL           string
	APIKey        string
	AllowInsecure bool
	Timeout       time.Duration
}

// Engine implements query.Engine against a zapvault server.
type Engine struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// New creates a new remote engine. HTTPS is enforced unless AllowInsecure is
// set, since the backup may hold private conversations.
func New(cfg Config) (*Engine, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("remote URL is required")
	}

	parsedURL, err := url.Parse(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid URL: %w", err)
	}

	if parsedURL.Scheme == "http" && !cfg.AllowInsecure {
		return nil, fmt.Errorf("HTTPS required for remote connections\n\n" +
			"Options:\n" +
			"  1. Use HTTPS: [remote] url = \"https://nas:8471\"\n" +
			"  2. For trusted networks: add 'allow_insecure = true' to [remote] in config.toml")
	}
	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return nil, fmt.Errorf("URL scheme must be http or https, got: %s", parsedURL.Scheme)
	}
	if parsedURL.Host == "" {
		return nil, fmt.Errorf("remote URL must include a host (e.g., http://nas:8471)")
	}

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	return &Engine{
		baseURL: strings.TrimSuffix(cfg.URL, "/"),
		apiKey:  cfg.APIKey,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}, nil
}

// Close is a no-op for the HTTP client.
func (e *Engine) Close() error {
	return nil
}

// doRequest performs an authenticated GET request.
func (e *Engine) doRequest(ctx context.Context, path string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, e.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	if e.apiKey != "" {
		req.Header.Set("X-API-Key", e.apiKey)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	return resp, nil
}

// apiError represents an error response from the API.
type apiError struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// handleErrorResponse reads an error response and returns an appropriate
// error. The server's store_unavailable maps back onto ErrStoreUnavailable
// so callers keep one failure taxonomy across engines.
func handleErrorResponse(resp *http.Response) error {
	body, _ := io.ReadAll(resp.Body)

	var apiErr apiError
	if err := json.Unmarshal(body, &apiErr); err == nil && apiErr.Error != "" {
		if apiErr.Error == "store_unavailable" {
			return fmt.Errorf("remote: %s: %w", apiErr.Message, query.ErrStoreUnavailable)
		}
		return fmt.Errorf("API error (%d): %s", resp.StatusCode, apiErr.Message)
	}
	return fmt.Errorf("API error (%d): %s", resp.StatusCode, string(body))
}

// chatPath builds the conversation-scoped path for a (contact, source file)
// pair using the same opaque identifier the server hands out.
func chatPath(contact, sourceFile, suffix string) string {
	return "/api/v1/chats/" + convid.Encode(contact, sourceFile) + suffix
}

// chatResponse matches the API conversation summary format.
type chatResponse struct {
	ID           string `json:"id"`
	Contact      string `json:"nome_contato"`
	SourceFile   string `json:"source_file"`
	MessageCount int64  `json:"message_count"`
	FirstTS      string `json:"first_ts"`
	LastTS       string `json:"last_ts"`
}

// ListConversations fetches the conversation list.
func (e *Engine) ListConversations(ctx context.Context) ([]query.Conversation, error) {
	resp, err := e.doRequest(ctx, "/api/v1/chats")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, handleErrorResponse(resp)
	}

	var lr struct {
		Chats []chatResponse `json:"chats"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&lr); err != nil {
		return nil, fmt.Errorf("decode chats response: %w", err)
	}

	convs := make([]query.Conversation, len(lr.Chats))
	for i, c := range lr.Chats {
		convs[i] = query.Conversation{
			ID:           c.ID,
			Contact:      c.Contact,
			SourceFile:   c.SourceFile,
			MessageCount: c.MessageCount,
			FirstSentAt:  c.FirstTS,
			LastSentAt:   c.LastTS,
		}
	}
	return convs, nil
}

// messageResponse matches the API message format (backup column names).
type messageResponse struct {
	ID          int64  `json:"id"`
	Contact     string `json:"nome_contato"`
	SentAt      string `json:"data_hora_envio"`
	Type        string `json:"tipo_mensagem"`
	GroupSender string `json:"nome_remetente_grupo"`
	Status      string `json:"status_mensagem"`
	Text        string `json:"texto_mensagem"`
	AttKind     string `json:"anexo_tipo"`
	AttSize     int64  `json:"anexo_tamanho"`
	AttFileRef  string `json:"anexo_id_arquivo"`
	SourceFile  string `json:"source_file"`
}

// messagesResponse matches the API messages page format.
type messagesResponse struct {
	Total    int64             `json:"total"`
	HasMore  bool              `json:"has_more"`
	Messages []messageResponse `json:"messages"`
}

func toMessage(m messageResponse) query.Message {
	msg := query.Message{
		ID:          m.ID,
		Contact:     m.Contact,
		SentAt:      m.SentAt,
		Type:        m.Type,
		GroupSender: m.GroupSender,
		Status:      m.Status,
		Text:        m.Text,
		SourceFile:  m.SourceFile,
	}
	if m.AttKind != "" || m.AttSize != 0 || m.AttFileRef != "" {
		msg.Attachment = &query.AttachmentRef{
			Kind:    m.AttKind,
			Size:    m.AttSize,
			FileRef: m.AttFileRef,
		}
	}
	return msg
}

// getMessagesPage fetches one window of a conversation.
func (e *Engine) getMessagesPage(ctx context.Context, contact, sourceFile string, limit, offset int) (*messagesResponse, error) {
	path := chatPath(contact, sourceFile,
		fmt.Sprintf("/messages?limit=%d&offset=%d", limit, offset))
	resp, err := e.doRequest(ctx, path)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, handleErrorResponse(resp)
	}

	var mr messagesResponse
	if err := json.NewDecoder(resp.Body).Decode(&mr); err != nil {
		return nil, fmt.Errorf("decode messages response: %w", err)
	}
	return &mr, nil
}

// CountMessages returns the conversation's total message count.
func (e *Engine) CountMessages(ctx context.Context, contact, sourceFile string) (int64, error) {
	// The messages endpoint reports the total with every page; a minimal
	// page doubles as a count query.
	mr, err := e.getMessagesPage(ctx, contact, sourceFile, 1, 0)
	if err != nil {
		return 0, err
	}
	return mr.Total, nil
}

// GetMessages fetches the window [offset, offset+limit) in ascending id order.
func (e *Engine) GetMessages(ctx context.Context, contact, sourceFile string, limit, offset int) ([]query.Message, error) {
	mr, err := e.getMessagesPage(ctx, contact, sourceFile, limit, offset)
	if err != nil {
		return nil, err
	}

	messages := make([]query.Message, len(mr.Messages))
	for i, m := range mr.Messages {
		messages[i] = toMessage(m)
	}
	return messages, nil
}

// SearchMessages searches the whole conversation on the server.
func (e *Engine) SearchMessages(ctx context.Context, contact, sourceFile, term string) ([]int64, error) {
	path := chatPath(contact, sourceFile, "/search?q="+url.QueryEscape(term))
	resp, err := e.doRequest(ctx, path)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, handleErrorResponse(resp)
	}

	var sr struct {
		Matches []int64 `json:"matches"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&sr); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}
	return sr.Matches, nil
}

// GetMessageIndex returns the 0-based position of a message id, or false
// when the server reports it outside the conversation.
func (e *Engine) GetMessageIndex(ctx context.Context, contact, sourceFile string, id int64) (int64, bool, error) {
	path := chatPath(contact, sourceFile, fmt.Sprintf("/index/%d", id))
	resp, err := e.doRequest(ctx, path)
	if err != nil {
		return 0, false, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return 0, false, nil
	}
	if resp.StatusCode != http.StatusOK {
		return 0, false, handleErrorResponse(resp)
	}

	var ir struct {
		Index int64 `json:"index"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&ir); err != nil {
		return 0, false, fmt.Errorf("decode index response: %w", err)
	}
	return ir.Index, true, nil
}

// GetStats fetches backup totals from the remote server.
func (e *Engine) GetStats(ctx context.Context) (*query.Stats, error) {
	resp, err := e.doRequest(ctx, "/api/v1/stats")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, handleErrorResponse(resp)
	}

	var sr struct {
		TotalConversations int64 `json:"total_conversations"`
		TotalMessages      int64 `json:"total_messages"`
		TotalAttachments   int64 `json:"total_attachments"`
		MissingMedia       int64 `json:"missing_media"`
		DatabaseSize       int64 `json:"database_size_bytes"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&sr); err != nil {
		return nil, fmt.Errorf("decode stats response: %w", err)
	}

	return &query.Stats{
		ConversationCount: sr.TotalConversations,
		MessageCount:      sr.TotalMessages,
		AttachmentCount:   sr.TotalAttachments,
		MissingMediaCount: sr.MissingMedia,
		DatabaseSize:      sr.DatabaseSize,
	}, nil
}

// AttachmentURL returns the server URL that streams the given attachment
// reference.
func (e *Engine) AttachmentURL(ref string) string {
	return e.baseURL + "/api/v1/attachments/" + url.PathEscape(ref)
}

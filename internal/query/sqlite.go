package query

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"strings"

	_ "github.com/mattn/go-sqlite3"

	"github.com/zapvault/zapvault/internal/convid"
)

// SQLiteEngine implements Engine with direct queries against a local backup
// export. The engine owns its connection: construct with Open, release with
// Close. There is no process-wide shared handle.
type SQLiteEngine struct {
	db     *sql.DB
	dbPath string
}

// messageColumns lists the messages table columns in scan order.
// Column names come verbatim from the export script and must not be renamed.
const messageColumns = `
	id,
	nome_contato,
	data_hora_envio,
	tipo_mensagem,
	nome_remetente_grupo,
	status_mensagem,
	texto_mensagem,
	anexo_tipo,
	anexo_tamanho,
	anexo_id_arquivo,
	source_file`

// Open opens the backup database at path in read-only mode and verifies it
// actually contains a messages table. Any failure here, or any later query
// failure, wraps ErrStoreUnavailable: the backup is broken for the whole
// session and callers must not retry.
func Open(path string) (*SQLiteEngine, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, storeErr("stat backup", err)
	}

	dsn := fmt.Sprintf("file:%s?mode=ro&_busy_timeout=5000", path)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, storeErr("open backup", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, storeErr("ping backup", err)
	}

	var count int
	err = db.QueryRow(`
		SELECT COUNT(*) FROM sqlite_master
		WHERE type = 'table' AND name = 'messages'
	`).Scan(&count)
	if err != nil {
		db.Close()
		return nil, storeErr("inspect backup", err)
	}
	if count == 0 {
		db.Close()
		return nil, storeErr("inspect backup", errors.New("no messages table"))
	}

	return &SQLiteEngine{db: db, dbPath: path}, nil
}

// Close closes the database connection.
func (e *SQLiteEngine) Close() error {
	return e.db.Close()
}

// storeErr wraps err so that errors.Is(err, ErrStoreUnavailable) holds while
// the driver error stays visible in logs.
func storeErr(op string, err error) error {
	return fmt.Errorf("%s: %w", op, errors.Join(ErrStoreUnavailable, err))
}

// ListConversations groups messages by (contact, source file), newest
// conversation first. Rows with an empty or NULL contact name are excluded,
// matching the export server's listing behavior.
func (e *SQLiteEngine) ListConversations(ctx context.Context) ([]Conversation, error) {
	rows, err := e.db.QueryContext(ctx, `
		SELECT
			nome_contato,
			source_file,
			COUNT(*),
			MIN(data_hora_envio),
			MAX(data_hora_envio)
		FROM messages
		WHERE nome_contato IS NOT NULL AND nome_contato <> ''
		GROUP BY nome_contato, source_file
		ORDER BY MAX(data_hora_envio) DESC
	`)
	if err != nil {
		return nil, storeErr("list conversations", err)
	}
	defer rows.Close()

	var convs []Conversation
	for rows.Next() {
		var c Conversation
		var sourceFile, first, last sql.NullString
		if err := rows.Scan(&c.Contact, &sourceFile, &c.MessageCount, &first, &last); err != nil {
			return nil, storeErr("scan conversation", err)
		}
		c.SourceFile = sourceFile.String
		c.FirstSentAt = first.String
		c.LastSentAt = last.String
		c.ID = convid.Encode(c.Contact, c.SourceFile)
		convs = append(convs, c)
	}
	return convs, rows.Err()
}

// CountMessages returns the total message count for one conversation.
func (e *SQLiteEngine) CountMessages(ctx context.Context, contact, sourceFile string) (int64, error) {
	var count int64
	err := e.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM messages
		WHERE nome_contato = ? AND source_file = ?
	`, contact, sourceFile).Scan(&count)
	if err != nil {
		return 0, storeErr("count messages", err)
	}
	return count, nil
}

// GetMessages returns the window [offset, offset+limit) of a conversation in
// ascending id order. The store assigns ids monotonically, so id order is
// chronological order.
func (e *SQLiteEngine) GetMessages(ctx context.Context, contact, sourceFile string, limit, offset int) ([]Message, error) {
	rows, err := e.db.QueryContext(ctx, `
		SELECT `+messageColumns+`
		FROM messages
		WHERE nome_contato = ? AND source_file = ?
		ORDER BY id ASC
		LIMIT ? OFFSET ?
	`, contact, sourceFile, limit, offset)
	if err != nil {
		return nil, storeErr("get messages", err)
	}
	defer rows.Close()

	var messages []Message
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, storeErr("scan message", err)
		}
		messages = append(messages, m)
	}
	return messages, rows.Err()
}

// scanMessage scans one messages row, folding the three nullable attachment
// columns into an AttachmentRef when any of them is present.
func scanMessage(rows *sql.Rows) (Message, error) {
	var m Message
	var groupSender, status, text sql.NullString
	var attKind, attRef, sourceFile sql.NullString
	var attSize sql.NullInt64

	err := rows.Scan(
		&m.ID, &m.Contact, &m.SentAt, &m.Type,
		&groupSender, &status, &text,
		&attKind, &attSize, &attRef, &sourceFile,
	)
	if err != nil {
		return Message{}, err
	}

	m.GroupSender = groupSender.String
	m.Status = status.String
	m.Text = text.String
	m.SourceFile = sourceFile.String

	if attKind.Valid || attSize.Valid || attRef.Valid {
		m.Attachment = &AttachmentRef{
			Kind:    attKind.String,
			Size:    attSize.Int64,
			FileRef: attRef.String,
		}
	}
	return m, nil
}

// SearchMessages scans the entire conversation, not just any loaded window,
// and returns matching ids ascending. LIKE wildcards in the term are escaped
// so a literal "%" searches for "%".
func (e *SQLiteEngine) SearchMessages(ctx context.Context, contact, sourceFile, term string) ([]int64, error) {
	rows, err := e.db.QueryContext(ctx, `
		SELECT id FROM messages
		WHERE nome_contato = ?
		  AND source_file = ?
		  AND texto_mensagem LIKE ? ESCAPE '\'
		ORDER BY id ASC
	`, contact, sourceFile, "%"+escapeLike(term)+"%")
	if err != nil {
		return nil, storeErr("search messages", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, storeErr("scan search result", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// escapeLike escapes LIKE wildcards and the escape character itself.
func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

// GetMessageIndex returns the 0-based position of id within the
// conversation's ascending-id order (count of messages with id <= target,
// minus one). Returns false when the id does not belong to the conversation.
func (e *SQLiteEngine) GetMessageIndex(ctx context.Context, contact, sourceFile string, id int64) (int64, bool, error) {
	var exists int
	err := e.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM messages
		WHERE nome_contato = ? AND source_file = ? AND id = ?
	`, contact, sourceFile, id).Scan(&exists)
	if err != nil {
		return 0, false, storeErr("check message", err)
	}
	if exists == 0 {
		return 0, false, nil
	}

	var count int64
	err = e.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM messages
		WHERE nome_contato = ? AND source_file = ? AND id <= ?
	`, contact, sourceFile, id).Scan(&count)
	if err != nil {
		return 0, false, storeErr("index message", err)
	}
	return count - 1, true, nil
}

// GetStats returns totals for the whole backup. DatabaseSize is the on-disk
// size of the SQLite file.
func (e *SQLiteEngine) GetStats(ctx context.Context) (*Stats, error) {
	stats := &Stats{}
	err := e.db.QueryRowContext(ctx, `
		SELECT
			COUNT(*),
			COUNT(CASE WHEN anexo_id_arquivo IS NOT NULL AND anexo_id_arquivo <> '' THEN 1 END),
			COUNT(CASE WHEN anexo_tipo IS NOT NULL AND anexo_tipo <> ''
			      AND (anexo_id_arquivo IS NULL OR anexo_id_arquivo = '') THEN 1 END)
		FROM messages
	`).Scan(&stats.MessageCount, &stats.AttachmentCount, &stats.MissingMediaCount)
	if err != nil {
		return nil, storeErr("stats", err)
	}

	err = e.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM (
			SELECT 1 FROM messages
			WHERE nome_contato IS NOT NULL AND nome_contato <> ''
			GROUP BY nome_contato, source_file
		)
	`).Scan(&stats.ConversationCount)
	if err != nil {
		return nil, storeErr("stats", err)
	}

	if fi, err := os.Stat(e.dbPath); err == nil {
		stats.DatabaseSize = fi.Size()
	}
	return stats, nil
}

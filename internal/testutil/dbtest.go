package testutil

import (
	"database/sql"
	"path/filepath"
	"strconv"
	"testing"

	_ "github.com/mattn/go-sqlite3"
)

// Row is one messages row for a backup fixture. Empty optional fields are
// inserted as NULL, matching how the export script leaves them.
type Row struct {
	Contact     string
	SentAt      string
	Type        string
	GroupSender string
	Status      string
	Text        string
	AttKind     string
	AttSize     int64
	AttFileRef  string
	SourceFile  string
}

// backupSchema mirrors the table the export script produces.
const backupSchema = `
CREATE TABLE messages (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	nome_contato TEXT,
	data_hora_envio TEXT,
	tipo_mensagem TEXT,
	nome_remetente_grupo TEXT,
	status_mensagem TEXT,
	texto_mensagem TEXT,
	anexo_tipo TEXT,
	anexo_tamanho INTEGER,
	anexo_id_arquivo TEXT,
	source_file TEXT
)`

// NewBackupDB writes a backup database fixture into a temp dir and returns
// its path. Rows get ascending ids in insertion order, like the real export.
func NewBackupDB(t testing.TB, rows ...Row) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "backup.db")
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		t.Fatalf("open fixture db: %v", err)
	}
	defer db.Close()

	if _, err := db.Exec(backupSchema); err != nil {
		t.Fatalf("create fixture schema: %v", err)
	}

	stmt, err := db.Prepare(`
		INSERT INTO messages (
			nome_contato, data_hora_envio, tipo_mensagem,
			nome_remetente_grupo, status_mensagem, texto_mensagem,
			anexo_tipo, anexo_tamanho, anexo_id_arquivo, source_file
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		t.Fatalf("prepare fixture insert: %v", err)
	}
	defer stmt.Close()

	for _, r := range rows {
		_, err := stmt.Exec(
			nullable(r.Contact), r.SentAt, r.Type,
			nullable(r.GroupSender), nullable(r.Status), nullable(r.Text),
			nullable(r.AttKind), nullableInt(r.AttSize), nullable(r.AttFileRef),
			r.SourceFile,
		)
		if err != nil {
			t.Fatalf("insert fixture row: %v", err)
		}
	}
	return path
}

func nullable(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

func nullableInt(n int64) interface{} {
	if n == 0 {
		return nil
	}
	return n
}

// ChatRows builds n text rows for one conversation, with Text set to
// "msg <i>" starting at 1. Handy for pagination fixtures.
func ChatRows(contact, sourceFile string, n int) []Row {
	rows := make([]Row, n)
	for i := range rows {
		rows[i] = Row{
			Contact:    contact,
			SentAt:     "2024-01-01 10:00:00",
			Type:       "received",
			Text:       "msg " + strconv.Itoa(i+1),
			SourceFile: sourceFile,
		}
	}
	return rows
}

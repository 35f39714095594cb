// Package query provides the read-only query layer over a WhatsApp backup
// database. It is designed with a backend-agnostic interface so the same
// viewer code can run against a local SQLite export or a remote zapvault
// server.
package query

// Message is one row of the backup's messages table. All fields are surfaced
// verbatim from the store; nothing is renamed or inferred.
type Message struct {
	ID          int64  // id: monotonic, defines canonical order
	Contact     string // nome_contato
	SentAt      string // data_hora_envio (sortable timestamp string)
	Type        string // tipo_mensagem: sent/received/notification
	GroupSender string // nome_remetente_grupo, empty outside groups
	Status      string // status_mensagem: delivered/read or empty
	Text        string // texto_mensagem, empty for pure media messages
	SourceFile  string // source_file grouping label

	// Attachment is nil when the message carries no attachment metadata.
	Attachment *AttachmentRef
}

// AttachmentRef is the attachment descriptor stored on a message.
// Kind is the store's own label and must be shown verbatim; the rendered
// media kind is inferred separately by the attachment resolver.
type AttachmentRef struct {
	Kind    string // anexo_tipo: free-text category from the export
	Size    int64  // anexo_tamanho in bytes, 0 when unknown
	FileRef string // anexo_id_arquivo: bare UUID, UUID+ext, or full filename
}

// HasFile reports whether the descriptor points at a file at all.
// A kind label with no file reference means the media is missing from the
// backup and must render as a distinct placeholder.
func (a *AttachmentRef) HasFile() bool {
	return a != nil && a.FileRef != ""
}

// Conversation is a derived grouping of messages by (contact, source file).
// It is computed fresh on every listing query and never persisted.
type Conversation struct {
	ID           string // opaque identifier from convid.Encode
	Contact      string
	SourceFile   string
	MessageCount int64
	FirstSentAt  string
	LastSentAt   string
}

// Stats summarizes the whole backup.
type Stats struct {
	ConversationCount int64
	MessageCount      int64
	AttachmentCount   int64 // messages with a file reference
	MissingMediaCount int64 // attachment kind present but no file reference
	DatabaseSize      int64 // bytes on disk, 0 for remote engines
}

// RenderVariant classifies a message into the closed set of render shapes.
// Classification happens once, up front, so views dispatch on a tag instead
// of re-comparing type strings at every call site.
type RenderVariant int

const (
	VariantReceived RenderVariant = iota
	VariantSent
	VariantNotification
	VariantMissingMedia
)

// String returns the variant name for logs and API responses.
func (v RenderVariant) String() string {
	switch v {
	case VariantSent:
		return "sent"
	case VariantNotification:
		return "notification"
	case VariantMissingMedia:
		return "missing_media"
	default:
		return "received"
	}
}

// Classify maps a message onto its render variant. A message whose
// attachment has a kind label but no file reference renders as missing
// media regardless of direction.
func Classify(m Message) RenderVariant {
	if m.Attachment != nil && m.Attachment.Kind != "" && m.Attachment.FileRef == "" {
		return VariantMissingMedia
	}
	switch m.Type {
	case "sent", "enviada":
		return VariantSent
	case "notification", "notificacao", "notificação":
		return VariantNotification
	default:
		return VariantReceived
	}
}

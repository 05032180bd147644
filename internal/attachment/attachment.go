package attachment

import (
	"errors"
	"time"
)

// Attachment is the metadata row linking a stored blob to its ticket. At
// most one of ReplyID and InternalNoteID is set; neither means the file
// hangs off the ticket itself.
type Attachment struct {
	ID             int64     `json:"id" gorm:"primaryKey"`
	TicketID       int64     `json:"ticket_id" gorm:"column:ticket_id;not null"`
	ReplyID        *int64    `json:"reply_id,omitempty" gorm:"column:reply_id"`
	InternalNoteID *int64    `json:"internal_note_id,omitempty" gorm:"column:internal_note_id"`
	FileName       string    `json:"file_name" gorm:"column:file_name;not null"`
	StorageKey     string    `json:"-" gorm:"column:storage_key;not null"`
	ContentType    string    `json:"content_type" gorm:"column:content_type"`
	SizeBytes      int64     `json:"size_bytes" gorm:"column:size_bytes"`
	UploadedBy     int64     `json:"uploaded_by" gorm:"column:uploaded_by;not null"`
	CreatedAt      time.Time `json:"created_at" gorm:"column:created_at;default:now()"`
}

// TableName returns the table name for GORM
func (Attachment) TableName() string {
	return "ticket_attachments"
}

// AttachmentView is an attachment plus its time-limited download link.
type AttachmentView struct {
	*Attachment
	URL string `json:"url"`
}

// Parent kinds
const (
	ParentTicket = "ticket"
	ParentReply  = "reply"
	ParentNote   = "note"
)

// ParentRef names what an attachment hangs off. It is built only through
// the constructors below, so a reference carrying both a reply and a note
// cannot be expressed.
type ParentRef struct {
	kind string
	id   int64
}

// TicketLevel returns a parent reference for a ticket-level attachment
func TicketLevel() ParentRef {
	return ParentRef{kind: ParentTicket}
}

// ReplyParent returns a parent reference pointing at a reply
func ReplyParent(replyID int64) ParentRef {
	return ParentRef{kind: ParentReply, id: replyID}
}

// NoteParent returns a parent reference pointing at an internal note
func NoteParent(noteID int64) ParentRef {
	return ParentRef{kind: ParentNote, id: noteID}
}

func (p ParentRef) Kind() string { return p.kind }

// ReplyID returns the reply id when the parent is a reply, else nil
func (p ParentRef) ReplyID() *int64 {
	if p.kind == ParentReply {
		id := p.id
		return &id
	}
	return nil
}

// NoteID returns the note id when the parent is an internal note, else nil
func (p ParentRef) NoteID() *int64 {
	if p.kind == ParentNote {
		id := p.id
		return &id
	}
	return nil
}

// Upload limits
const (
	MaxUploadBytes = 5 << 20
	MaxDimension   = 2048
	JPEGQuality    = 88
)

// AllowedContentTypes is the upload allow-list. Anything else is rejected
// before any bytes are processed.
var AllowedContentTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/gif":  true,
	"image/webp": true,
}

// Domain errors
var (
	ErrUnsupportedType = errors.New("unsupported file type, allowed: jpeg, png, gif, webp")
	ErrFileTooLarge    = errors.New("file exceeds the 5 MiB limit")
)

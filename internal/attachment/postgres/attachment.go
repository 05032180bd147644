package postgres

import (
	"database/sql"
	"errors"

	"github.com/derheim/helpdesk/internal"
	"github.com/derheim/helpdesk/internal/attachment"
	"gorm.io/gorm"
)

// AttachmentRepository implements the attachment.Repository interface using GORM
type AttachmentRepository struct {
	db *gorm.DB
}

// NewAttachmentRepository creates a new attachment repository
func NewAttachmentRepository(db *gorm.DB) attachment.Repository {
	return &AttachmentRepository{db: db}
}

// Create saves an attachment metadata row
func (r *AttachmentRepository) Create(a *attachment.Attachment) error {
	return r.db.Create(a).Error
}

// ListByTicket retrieves a ticket's attachments oldest first
func (r *AttachmentRepository) ListByTicket(ticketID int64) ([]*attachment.Attachment, error) {
	var attachments []*attachment.Attachment
	err := r.db.Where("ticket_id = ?", ticketID).
		Order("created_at ASC").
		Find(&attachments).Error
	return attachments, err
}

// GetTicketOwner returns the creator of a ticket for access checks
func (r *AttachmentRepository) GetTicketOwner(ticketID int64) (int64, error) {
	var ownerID int64
	query := `SELECT created_by FROM tickets WHERE id = ?`

	row := r.db.Raw(query, ticketID).Row()
	if err := row.Scan(&ownerID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, internal.ErrTicketNotFound
		}
		return 0, err
	}
	return ownerID, nil
}

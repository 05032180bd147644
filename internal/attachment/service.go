package attachment

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/derheim/helpdesk/internal"
	"github.com/derheim/helpdesk/internal/auth"
	"github.com/google/uuid"
)

// BlobStore is the object store surface the service needs
type BlobStore interface {
	Upload(ctx context.Context, key string, data []byte, contentType string) error
	Remove(ctx context.Context, key string) error
	SignedURL(ctx context.Context, key string) (string, error)
}

// Repository interface defines the data access methods for attachments
type Repository interface {
	Create(a *Attachment) error
	ListByTicket(ticketID int64) ([]*Attachment, error)
	GetTicketOwner(ticketID int64) (int64, error)
}

// Service handles the attachment upload pipeline and listings
type Service struct {
	repo   Repository
	store  BlobStore
	logger *slog.Logger
}

// NewService creates a new attachment service
func NewService(repo Repository, store BlobStore, logger *slog.Logger) *Service {
	return &Service{
		repo:   repo,
		store:  store,
		logger: logger,
	}
}

// Upload validates, normalizes, and stores an image for a ticket. The blob
// is written first; if the metadata insert then fails, the blob is removed
// so storage never holds orphans.
func (s *Service) Upload(ctx context.Context, actor *auth.SessionUser, ticketID int64, parent ParentRef, fileName, contentType string, data []byte) (*Attachment, error) {
	ownerID, err := s.repo.GetTicketOwner(ticketID)
	if err != nil {
		s.logger.Error("ticket not found for upload", "error", err, "ticket_id", ticketID)
		return nil, internal.ErrTicketNotFound
	}

	if !actor.IsStaff() && ownerID != actor.ID {
		s.logger.Warn("upload denied: not ticket owner", "ticket_id", ticketID, "user_id", actor.ID)
		return nil, internal.ErrUnauthorizedAccess
	}

	if parent.Kind() == ParentNote && !actor.IsStaff() {
		s.logger.Warn("upload denied: note attachments are staff only", "ticket_id", ticketID, "user_id", actor.ID)
		return nil, internal.ErrUnauthorizedAccess
	}

	if !AllowedContentTypes[contentType] {
		s.logger.Warn("upload rejected: unsupported content type", "content_type", contentType, "ticket_id", ticketID)
		return nil, internal.NewValidationError(ErrUnsupportedType.Error(), internal.ErrCodeBadAttachment)
	}

	if int64(len(data)) > MaxUploadBytes {
		s.logger.Warn("upload rejected: file too large", "size", len(data), "ticket_id", ticketID)
		return nil, internal.NewValidationError(ErrFileTooLarge.Error(), internal.ErrCodeBadAttachment)
	}

	normalized, err := Normalize(data, contentType)
	if err != nil {
		s.logger.Error("image normalization failed", "error", err, "ticket_id", ticketID)
		return nil, internal.NewValidationError("file is not a valid image", internal.ErrCodeBadAttachment)
	}

	key := fmt.Sprintf("%d/%s.%s", ticketID, uuid.New().String(), normalized.Ext)

	if err := s.store.Upload(ctx, key, normalized.Data, normalized.ContentType); err != nil {
		s.logger.Error("blob upload failed", "error", err, "key", key)
		return nil, internal.NewExternalError("failed to store attachment", err)
	}

	a := &Attachment{
		TicketID:       ticketID,
		ReplyID:        parent.ReplyID(),
		InternalNoteID: parent.NoteID(),
		FileName:       fileName,
		StorageKey:     key,
		ContentType:    normalized.ContentType,
		SizeBytes:      int64(len(normalized.Data)),
		UploadedBy:     actor.ID,
		CreatedAt:      time.Now(),
	}

	if err := s.repo.Create(a); err != nil {
		s.logger.Error("attachment insert failed, removing blob", "error", err, "key", key)
		if rmErr := s.store.Remove(ctx, key); rmErr != nil {
			s.logger.Error("blob compensation failed", "error", rmErr, "key", key)
		}
		return nil, internal.NewExternalError("failed to save attachment", err)
	}

	s.logger.Info("attachment uploaded",
		"attachment_id", a.ID,
		"ticket_id", ticketID,
		"parent", parent.Kind(),
		"size", a.SizeBytes,
		"user_id", actor.ID)

	return a, nil
}

// List returns a ticket's attachments with signed download links. Employees
// may only list tickets they own, and never see note attachments.
func (s *Service) List(ctx context.Context, actor *auth.SessionUser, ticketID int64) ([]*AttachmentView, error) {
	ownerID, err := s.repo.GetTicketOwner(ticketID)
	if err != nil {
		s.logger.Error("ticket not found for attachment listing", "error", err, "ticket_id", ticketID)
		return nil, internal.ErrTicketNotFound
	}

	if !actor.IsStaff() && ownerID != actor.ID {
		s.logger.Warn("attachment listing denied: not ticket owner", "ticket_id", ticketID, "user_id", actor.ID)
		return nil, internal.ErrUnauthorizedAccess
	}

	attachments, err := s.repo.ListByTicket(ticketID)
	if err != nil {
		s.logger.Error("failed to list attachments", "error", err, "ticket_id", ticketID)
		return nil, err
	}

	views := make([]*AttachmentView, 0, len(attachments))
	for _, a := range attachments {
		if a.InternalNoteID != nil && !actor.IsStaff() {
			continue
		}

		url, err := s.store.SignedURL(ctx, a.StorageKey)
		if err != nil {
			s.logger.Error("failed to sign attachment url", "error", err, "attachment_id", a.ID)
			continue
		}
		views = append(views, &AttachmentView{Attachment: a, URL: url})
	}

	return views, nil
}

package ticket

import (
	"context"
	"log/slog"
	"time"

	"github.com/derheim/helpdesk/internal"
	"github.com/derheim/helpdesk/internal/auth"
	"github.com/derheim/helpdesk/internal/core/events"
)

// Repository interface defines the data access methods for tickets
type Repository interface {
	Create(t *Ticket) error
	GetByID(id int64) (*Ticket, error)
	GetByIDWithRelations(id int64) (*TicketWithRelations, error)
	ListByCreator(creatorID int64, f ListFilters) ([]*TicketWithRelations, int64, error)
	ListAll(f ListFilters) ([]*TicketWithRelations, int64, error)
	ListByAssignee(assigneeID int64, f ListFilters) ([]*TicketWithRelations, int64, error)
	CountsByCreator(creatorID int64) (*StatusCounts, error)
	GetStats(from, to time.Time) (*Stats, error)
	UpdateStatus(id int64, status string, resolvedAt *time.Time) error
	UpdatePriority(id int64, priority string) error
	UpdateAssignee(id int64, assigneeID *int64) error

	CreateReply(r *Reply) error
	ListReplies(ticketID int64) ([]*Reply, error)
	CreateNote(n *InternalNote) error
	ListNotes(ticketID int64) ([]*InternalNote, error)
	UpsertView(userID, ticketID int64, viewedAt time.Time) error

	GetUserInfo(id int64) (*UserRef, string, error)

	EmployeeReplyCandidates(ownerID int64) ([]ReplyCandidate, error)
	StaffUnviewedTickets(staffID int64, limit int) ([]TicketHead, error)
	StaffOwnerReplyCandidates(staffID int64) ([]ReplyCandidate, error)
}

// EventPublisher decouples the service from the event bus wiring
type EventPublisher interface {
	Publish(ctx context.Context, event events.Event) error
}

// Service handles ticket business logic
type Service struct {
	repo     Repository
	eventBus EventPublisher
	logger   *slog.Logger
}

// NewService creates a new ticket service
func NewService(repo Repository, eventBus EventPublisher, logger *slog.Logger) *Service {
	return &Service{
		repo:     repo,
		eventBus: eventBus,
		logger:   logger,
	}
}

// CreateTicket files a new ticket for the caller. The creation email is
// published on the event bus and can never fail the request.
func (s *Service) CreateTicket(ctx context.Context, actor *auth.SessionUser, dto CreateTicketDTO) (*Ticket, error) {
	if err := dto.Validate(); err != nil {
		s.logger.Error("ticket validation failed", "error", err, "user_id", actor.ID)
		return nil, internal.NewValidationError(err.Error(), internal.ErrCodeValidationFailed)
	}

	now := time.Now()
	t := &Ticket{
		Title:       dto.Title,
		Description: dto.Description,
		Status:      StatusOpen,
		Priority:    dto.Priority,
		Source:      dto.Source,
		CreatedBy:   actor.ID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.repo.Create(t); err != nil {
		s.logger.Error("failed to create ticket", "error", err, "user_id", actor.ID)
		return nil, err
	}

	s.eventBus.Publish(ctx, events.NewTicketCreatedEvent(t.ID, t.Title, actor.FullName, actor.Email))

	s.logger.Info("ticket created",
		"ticket_id", t.ID,
		"user_id", actor.ID,
		"priority", t.Priority,
		"source", t.Source)

	return t, nil
}

// GetMyTicket returns a single ticket only when the caller owns it.
func (s *Service) GetMyTicket(actor *auth.SessionUser, id int64) (*TicketDetail, error) {
	t, err := s.repo.GetByIDWithRelations(id)
	if err != nil {
		s.logger.Error("failed to get ticket", "error", err, "ticket_id", id)
		return nil, internal.ErrTicketNotFound
	}

	if t.CreatedBy != actor.ID {
		s.logger.Warn("unauthorized access to ticket", "ticket_id", id, "user_id", actor.ID)
		return nil, internal.ErrUnauthorizedAccess
	}

	return s.buildDetail(t, false)
}

// ListMyTickets returns the caller's own tickets
func (s *Service) ListMyTickets(actor *auth.SessionUser, f ListFilters) (*TicketList, error) {
	if err := f.Validate(); err != nil {
		return nil, internal.NewValidationError(err.Error(), internal.ErrCodeValidationFailed)
	}

	tickets, total, err := s.repo.ListByCreator(actor.ID, f)
	if err != nil {
		s.logger.Error("failed to list tickets", "error", err, "user_id", actor.ID)
		return nil, err
	}

	return &TicketList{Tickets: tickets, Total: total}, nil
}

// MyTicketCounts returns status totals over the caller's own tickets
func (s *Service) MyTicketCounts(actor *auth.SessionUser) (*StatusCounts, error) {
	counts, err := s.repo.CountsByCreator(actor.ID)
	if err != nil {
		s.logger.Error("failed to count tickets", "error", err, "user_id", actor.ID)
		return nil, err
	}
	return counts, nil
}

// ListAllTickets returns every ticket with joined creator and assignee.
// Staff only.
func (s *Service) ListAllTickets(actor *auth.SessionUser, f ListFilters) (*TicketList, error) {
	if !actor.IsStaff() {
		s.logger.Warn("list all tickets denied: staff role required", "user_id", actor.ID, "role", actor.Role)
		return nil, internal.ErrUnauthorizedAccess
	}

	if err := f.Validate(); err != nil {
		return nil, internal.NewValidationError(err.Error(), internal.ErrCodeValidationFailed)
	}

	tickets, total, err := s.repo.ListAll(f)
	if err != nil {
		s.logger.Error("failed to list all tickets", "error", err)
		return nil, err
	}

	return &TicketList{Tickets: tickets, Total: total}, nil
}

// ListAssignedToMe returns tickets assigned to the caller. Staff only.
func (s *Service) ListAssignedToMe(actor *auth.SessionUser, f ListFilters) (*TicketList, error) {
	if !actor.IsStaff() {
		s.logger.Warn("list assigned tickets denied: staff role required", "user_id", actor.ID, "role", actor.Role)
		return nil, internal.ErrUnauthorizedAccess
	}

	if err := f.Validate(); err != nil {
		return nil, internal.NewValidationError(err.Error(), internal.ErrCodeValidationFailed)
	}

	tickets, total, err := s.repo.ListByAssignee(actor.ID, f)
	if err != nil {
		s.logger.Error("failed to list assigned tickets", "error", err, "user_id", actor.ID)
		return nil, err
	}

	return &TicketList{Tickets: tickets, Total: total}, nil
}

// TicketStats returns aggregate totals for the staff dashboard
func (s *Service) TicketStats(actor *auth.SessionUser, from, to time.Time) (*Stats, error) {
	if !actor.IsStaff() {
		s.logger.Warn("ticket stats denied: staff role required", "user_id", actor.ID, "role", actor.Role)
		return nil, internal.ErrUnauthorizedAccess
	}

	stats, err := s.repo.GetStats(from, to)
	if err != nil {
		s.logger.Error("failed to get ticket stats", "error", err)
		return nil, err
	}
	return stats, nil
}

// GetTicketByID returns a ticket detail. Staff see any ticket including
// internal notes; employees see only their own tickets, never notes.
func (s *Service) GetTicketByID(actor *auth.SessionUser, id int64) (*TicketDetail, error) {
	t, err := s.repo.GetByIDWithRelations(id)
	if err != nil {
		s.logger.Error("failed to get ticket", "error", err, "ticket_id", id)
		return nil, internal.ErrTicketNotFound
	}

	if !actor.IsStaff() && t.CreatedBy != actor.ID {
		s.logger.Warn("unauthorized access to ticket", "ticket_id", id, "user_id", actor.ID)
		return nil, internal.ErrUnauthorizedAccess
	}

	return s.buildDetail(t, actor.IsStaff())
}

func (s *Service) buildDetail(t *TicketWithRelations, includeNotes bool) (*TicketDetail, error) {
	replies, err := s.repo.ListReplies(t.ID)
	if err != nil {
		s.logger.Error("failed to list replies", "error", err, "ticket_id", t.ID)
		return nil, err
	}

	detail := &TicketDetail{
		TicketWithRelations: t,
		Replies:             replies,
	}

	if includeNotes {
		notes, err := s.repo.ListNotes(t.ID)
		if err != nil {
			s.logger.Error("failed to list internal notes", "error", err, "ticket_id", t.ID)
			return nil, err
		}
		detail.InternalNotes = notes
	}

	return detail, nil
}

// UpdateStatus changes a ticket's status. Staff only. Moving into resolved
// or closed stamps resolved_at; moving back clears it.
func (s *Service) UpdateStatus(actor *auth.SessionUser, id int64, dto UpdateStatusDTO) error {
	if !actor.IsStaff() {
		s.logger.Warn("update status denied: staff role required", "ticket_id", id, "user_id", actor.ID)
		return internal.ErrUnauthorizedAccess
	}

	if err := dto.Validate(); err != nil {
		return internal.NewValidationError(err.Error(), internal.ErrCodeInvalidStatus)
	}

	if _, err := s.repo.GetByID(id); err != nil {
		s.logger.Error("ticket not found for status update", "error", err, "ticket_id", id)
		return internal.ErrTicketNotFound
	}

	var resolvedAt *time.Time
	if dto.Status == StatusResolved || dto.Status == StatusClosed {
		now := time.Now()
		resolvedAt = &now
	}

	if err := s.repo.UpdateStatus(id, dto.Status, resolvedAt); err != nil {
		s.logger.Error("failed to update ticket status", "error", err, "ticket_id", id)
		return err
	}

	s.logger.Info("ticket status updated", "ticket_id", id, "status", dto.Status, "user_id", actor.ID)
	return nil
}

// UpdatePriority changes a ticket's priority. Staff only.
func (s *Service) UpdatePriority(actor *auth.SessionUser, id int64, dto UpdatePriorityDTO) error {
	if !actor.IsStaff() {
		s.logger.Warn("update priority denied: staff role required", "ticket_id", id, "user_id", actor.ID)
		return internal.ErrUnauthorizedAccess
	}

	if err := dto.Validate(); err != nil {
		return internal.NewValidationError(err.Error(), internal.ErrCodeInvalidPriority)
	}

	if _, err := s.repo.GetByID(id); err != nil {
		s.logger.Error("ticket not found for priority update", "error", err, "ticket_id", id)
		return internal.ErrTicketNotFound
	}

	if err := s.repo.UpdatePriority(id, dto.Priority); err != nil {
		s.logger.Error("failed to update ticket priority", "error", err, "ticket_id", id)
		return err
	}

	s.logger.Info("ticket priority updated", "ticket_id", id, "priority", dto.Priority, "user_id", actor.ID)
	return nil
}

// Assign sets or clears a ticket's assignee. Staff only. Setting a new
// assignee publishes exactly one assignment email event; clearing sends
// nothing.
func (s *Service) Assign(ctx context.Context, actor *auth.SessionUser, id int64, dto AssignTicketDTO) error {
	if !actor.IsStaff() {
		s.logger.Warn("assign ticket denied: staff role required", "ticket_id", id, "user_id", actor.ID)
		return internal.ErrUnauthorizedAccess
	}

	t, err := s.repo.GetByID(id)
	if err != nil {
		s.logger.Error("ticket not found for assignment", "error", err, "ticket_id", id)
		return internal.ErrTicketNotFound
	}

	var assignee *UserRef
	if dto.AssignedTo != nil {
		ref, role, err := s.repo.GetUserInfo(*dto.AssignedTo)
		if err != nil {
			s.logger.Error("assignee not found", "error", err, "assignee_id", *dto.AssignedTo)
			return internal.ErrUserNotFound
		}
		if role != auth.RoleAgent && role != auth.RoleAdmin {
			s.logger.Warn("assignment rejected: assignee is not staff", "assignee_id", *dto.AssignedTo, "role", role)
			return internal.NewValidationError(ErrAssigneeNotStaff.Error(), internal.ErrCodeInvalidRole)
		}
		assignee = ref
	}

	if err := s.repo.UpdateAssignee(id, dto.AssignedTo); err != nil {
		s.logger.Error("failed to assign ticket", "error", err, "ticket_id", id)
		return err
	}

	if assignee != nil {
		s.eventBus.Publish(ctx, events.NewTicketAssignedEvent(id, t.Title, assignee.ID, assignee.Email))
		s.logger.Info("ticket assigned", "ticket_id", id, "assignee_id", assignee.ID, "user_id", actor.ID)
	} else {
		s.logger.Info("ticket unassigned", "ticket_id", id, "user_id", actor.ID)
	}

	return nil
}

// AddReply posts a reply to a ticket. The ticket owner and all staff may
// reply; the body must be non-empty.
func (s *Service) AddReply(actor *auth.SessionUser, ticketID int64, dto AddReplyDTO) (*Reply, error) {
	if err := dto.Validate(); err != nil {
		return nil, internal.NewValidationError(err.Error(), internal.ErrCodeEmptyBody)
	}

	t, err := s.repo.GetByID(ticketID)
	if err != nil {
		s.logger.Error("ticket not found for reply", "error", err, "ticket_id", ticketID)
		return nil, internal.ErrTicketNotFound
	}

	if !actor.IsStaff() && t.CreatedBy != actor.ID {
		s.logger.Warn("reply denied: not ticket owner", "ticket_id", ticketID, "user_id", actor.ID)
		return nil, internal.ErrUnauthorizedAccess
	}

	reply := &Reply{
		TicketID:  ticketID,
		AuthorID:  actor.ID,
		Body:      dto.Body,
		CreatedAt: time.Now(),
	}

	if err := s.repo.CreateReply(reply); err != nil {
		s.logger.Error("failed to create reply", "error", err, "ticket_id", ticketID)
		return nil, err
	}

	s.logger.Info("reply added", "ticket_id", ticketID, "reply_id", reply.ID, "user_id", actor.ID)
	return reply, nil
}

// AddInternalNote posts a staff-only annotation
func (s *Service) AddInternalNote(actor *auth.SessionUser, ticketID int64, dto AddNoteDTO) (*InternalNote, error) {
	if !actor.IsStaff() {
		s.logger.Warn("add note denied: staff role required", "ticket_id", ticketID, "user_id", actor.ID)
		return nil, internal.ErrUnauthorizedAccess
	}

	if err := dto.Validate(); err != nil {
		return nil, internal.NewValidationError(err.Error(), internal.ErrCodeEmptyBody)
	}

	if _, err := s.repo.GetByID(ticketID); err != nil {
		s.logger.Error("ticket not found for note", "error", err, "ticket_id", ticketID)
		return nil, internal.ErrTicketNotFound
	}

	note := &InternalNote{
		TicketID:  ticketID,
		AuthorID:  actor.ID,
		Body:      dto.Body,
		CreatedAt: time.Now(),
	}

	if err := s.repo.CreateNote(note); err != nil {
		s.logger.Error("failed to create internal note", "error", err, "ticket_id", ticketID)
		return nil, err
	}

	s.logger.Info("internal note added", "ticket_id", ticketID, "note_id", note.ID, "user_id", actor.ID)
	return note, nil
}

// ListInternalNotes returns a ticket's notes. Staff only.
func (s *Service) ListInternalNotes(actor *auth.SessionUser, ticketID int64) ([]*InternalNote, error) {
	if !actor.IsStaff() {
		s.logger.Warn("list notes denied: staff role required", "ticket_id", ticketID, "user_id", actor.ID)
		return nil, internal.ErrUnauthorizedAccess
	}

	notes, err := s.repo.ListNotes(ticketID)
	if err != nil {
		s.logger.Error("failed to list internal notes", "error", err, "ticket_id", ticketID)
		return nil, err
	}
	return notes, nil
}

// RecordView stamps the caller's last-viewed time for a ticket. It is the
// only writer of the view table. Any failure, including a caller who may not
// see the ticket, is a silent no-op.
func (s *Service) RecordView(actor *auth.SessionUser, ticketID int64) {
	t, err := s.repo.GetByID(ticketID)
	if err != nil {
		s.logger.Debug("record view skipped: ticket not found", "ticket_id", ticketID, "user_id", actor.ID)
		return
	}

	if !actor.IsStaff() && t.CreatedBy != actor.ID {
		s.logger.Debug("record view skipped: not ticket owner", "ticket_id", ticketID, "user_id", actor.ID)
		return
	}

	if err := s.repo.UpsertView(actor.ID, ticketID, time.Now()); err != nil {
		s.logger.Error("failed to record ticket view", "error", err, "ticket_id", ticketID, "user_id", actor.ID)
	}
}

package ticket

import (
	"errors"
	"strings"
	"time"

	"github.com/derheim/helpdesk/internal/core/common/validation"
)

// CreateTicketDTO represents the request payload for filing a ticket
type CreateTicketDTO struct {
	Title       string `json:"title" validate:"required,max=200"`
	Description string `json:"description"`
	Priority    string `json:"priority" validate:"omitempty,oneof=low medium high urgent"`
	Source      string `json:"source,omitempty"`
}

// Validate validates the CreateTicketDTO. Priority defaults to medium and
// source to the portal tag when omitted.
func (dto *CreateTicketDTO) Validate() error {
	if appErr := validation.ValidateTicketTitle(dto.Title); appErr != nil {
		return appErr
	}
	if dto.Priority == "" {
		dto.Priority = PriorityMedium
	}
	if appErr := validation.ValidateTicketPriority(dto.Priority); appErr != nil {
		return appErr
	}
	if dto.Source == "" {
		dto.Source = DefaultSource
	}
	return nil
}

// UpdateStatusDTO represents the request for changing a ticket's status
type UpdateStatusDTO struct {
	Status string `json:"status" validate:"required,oneof=open in_progress resolved closed"`
}

// Validate validates the UpdateStatusDTO
func (dto UpdateStatusDTO) Validate() error {
	if appErr := validation.ValidateTicketStatus(dto.Status); appErr != nil {
		return appErr
	}
	return nil
}

// UpdatePriorityDTO represents the request for changing a ticket's priority
type UpdatePriorityDTO struct {
	Priority string `json:"priority" validate:"required,oneof=low medium high urgent"`
}

// Validate validates the UpdatePriorityDTO
func (dto UpdatePriorityDTO) Validate() error {
	if appErr := validation.ValidateTicketPriority(dto.Priority); appErr != nil {
		return appErr
	}
	return nil
}

// AssignTicketDTO represents the request for assigning a ticket. A nil
// assigned_to clears the assignment.
type AssignTicketDTO struct {
	AssignedTo *int64 `json:"assigned_to"`
}

// AddReplyDTO represents the request for posting a reply
type AddReplyDTO struct {
	Body string `json:"body" validate:"required"`
}

// Validate validates the AddReplyDTO
func (dto AddReplyDTO) Validate() error {
	if strings.TrimSpace(dto.Body) == "" {
		return ErrEmptyReplyBody
	}
	return nil
}

// AddNoteDTO represents the request for posting an internal note
type AddNoteDTO struct {
	Body string `json:"body" validate:"required"`
}

// Validate validates the AddNoteDTO
func (dto AddNoteDTO) Validate() error {
	if strings.TrimSpace(dto.Body) == "" {
		return errors.New("note body cannot be empty")
	}
	return nil
}

// ListFilters narrows ticket listings. Zero values mean "no filter".
type ListFilters struct {
	Status   string
	Priority string
	DateFrom time.Time
	DateTo   time.Time
	Limit    int
	Offset   int
}

// Validate checks the optional filter values
func (f ListFilters) Validate() error {
	if f.Status != "" && !IsValidStatus(f.Status) {
		return errors.New("status filter must be one of open, in_progress, resolved, closed")
	}
	if f.Priority != "" && !IsValidPriority(f.Priority) {
		return errors.New("priority filter must be one of low, medium, high, urgent")
	}
	if !f.DateFrom.IsZero() && !f.DateTo.IsZero() && f.DateTo.Before(f.DateFrom) {
		return errors.New("date_to cannot be before date_from")
	}
	return nil
}

// TicketList is a page of tickets plus the unpaginated total.
type TicketList struct {
	Tickets []*TicketWithRelations `json:"tickets"`
	Total   int64                  `json:"total"`
}

// TicketDetail is the single-ticket payload. InternalNotes stays nil for
// employee callers.
type TicketDetail struct {
	*TicketWithRelations
	Replies       []*Reply        `json:"replies"`
	InternalNotes []*InternalNote `json:"internal_notes,omitempty"`
}

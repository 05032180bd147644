package events

import (
	"time"

	"github.com/google/uuid"
)

const (
	EventTypeTicketCreated  = "ticket.created"
	EventTypeTicketAssigned = "ticket.assigned"
)

type TicketCreatedEvent struct {
	BaseEvent
	TicketID       int64  `json:"ticket_id"`
	TicketTitle    string `json:"ticket_title"`
	CreatorName    string `json:"creator_name"`
	RecipientEmail string `json:"recipient_email"`
}

func NewTicketCreatedEvent(ticketID int64, title, creatorName, recipientEmail string) *TicketCreatedEvent {
	return &TicketCreatedEvent{
		BaseEvent: BaseEvent{
			ID:        uuid.New().String(),
			Type:      EventTypeTicketCreated,
			Timestamp: time.Now(),
			Data: map[string]interface{}{
				"ticket_id":       ticketID,
				"ticket_title":    title,
				"creator_name":    creatorName,
				"recipient_email": recipientEmail,
			},
		},
		TicketID:       ticketID,
		TicketTitle:    title,
		CreatorName:    creatorName,
		RecipientEmail: recipientEmail,
	}
}

type TicketAssignedEvent struct {
	BaseEvent
	TicketID       int64  `json:"ticket_id"`
	TicketTitle    string `json:"ticket_title"`
	AssigneeID     int64  `json:"assignee_id"`
	RecipientEmail string `json:"recipient_email"`
}

func NewTicketAssignedEvent(ticketID int64, title string, assigneeID int64, recipientEmail string) *TicketAssignedEvent {
	return &TicketAssignedEvent{
		BaseEvent: BaseEvent{
			ID:        uuid.New().String(),
			Type:      EventTypeTicketAssigned,
			Timestamp: time.Now(),
			Data: map[string]interface{}{
				"ticket_id":       ticketID,
				"ticket_title":    title,
				"assignee_id":     assigneeID,
				"recipient_email": recipientEmail,
			},
		},
		TicketID:       ticketID,
		TicketTitle:    title,
		AssigneeID:     assigneeID,
		RecipientEmail: recipientEmail,
	}
}

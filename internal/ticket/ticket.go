package ticket

import (
	"errors"
	"time"
)

// Ticket is the main support ticket entity
type Ticket struct {
	ID          int64      `json:"id" gorm:"primaryKey"`
	Title       string     `json:"title" gorm:"not null"`
	Description string     `json:"description"`
	Status      string     `json:"status" gorm:"default:open"`
	Priority    string     `json:"priority" gorm:"default:medium"`
	Source      string     `json:"source" gorm:"default:portal"`
	CreatedBy   int64      `json:"created_by" gorm:"column:created_by;not null"`
	AssignedTo  *int64     `json:"assigned_to,omitempty" gorm:"column:assigned_to"`
	CreatedAt   time.Time  `json:"created_at" gorm:"column:created_at;default:now()"`
	UpdatedAt   time.Time  `json:"updated_at" gorm:"column:updated_at;default:now()"`
	ResolvedAt  *time.Time `json:"resolved_at,omitempty" gorm:"column:resolved_at"`
}

// TableName returns the table name for GORM
func (Ticket) TableName() string {
	return "tickets"
}

// UserRef is the trimmed projection joined onto ticket listings. A relation
// is always a single optional value, never a list.
type UserRef struct {
	ID       int64  `json:"id"`
	FullName string `json:"full_name"`
	Email    string `json:"email"`
}

// TicketWithRelations carries a ticket plus its joined creator and assignee.
type TicketWithRelations struct {
	Ticket
	Creator  *UserRef `json:"creator,omitempty"`
	Assignee *UserRef `json:"assignee,omitempty"`
}

// Reply is a conversation message on a ticket, visible to the ticket owner
// and all staff.
type Reply struct {
	ID        int64     `json:"id" gorm:"primaryKey"`
	TicketID  int64     `json:"ticket_id" gorm:"column:ticket_id;not null"`
	AuthorID  int64     `json:"author_id" gorm:"column:author_id;not null"`
	Body      string    `json:"body" gorm:"not null"`
	CreatedAt time.Time `json:"created_at" gorm:"column:created_at;default:now()"`

	Author *UserRef `json:"author,omitempty" gorm:"-"`
}

func (Reply) TableName() string {
	return "ticket_replies"
}

// InternalNote is a staff-only annotation. It never appears in any payload
// returned to an employee.
type InternalNote struct {
	ID        int64     `json:"id" gorm:"primaryKey"`
	TicketID  int64     `json:"ticket_id" gorm:"column:ticket_id;not null"`
	AuthorID  int64     `json:"author_id" gorm:"column:author_id;not null"`
	Body      string    `json:"body" gorm:"not null"`
	CreatedAt time.Time `json:"created_at" gorm:"column:created_at;default:now()"`

	Author *UserRef `json:"author,omitempty" gorm:"-"`
}

func (InternalNote) TableName() string {
	return "ticket_internal_notes"
}

// UserTicketView records the last time a user opened a ticket. One row per
// (user, ticket) pair, only ever written through an upsert.
type UserTicketView struct {
	UserID       int64     `json:"user_id" gorm:"column:user_id;primaryKey"`
	TicketID     int64     `json:"ticket_id" gorm:"column:ticket_id;primaryKey"`
	LastViewedAt time.Time `json:"last_viewed_at" gorm:"column:last_viewed_at;not null"`
}

func (UserTicketView) TableName() string {
	return "user_ticket_views"
}

// Notification is a derived row, recomputed from current state on every
// request and never stored.
type Notification struct {
	TicketID    int64     `json:"ticket_id"`
	TicketTitle string    `json:"ticket_title"`
	Reason      string    `json:"reason"`
	OccurredAt  time.Time `json:"occurred_at"`
}

// Notification reasons
const (
	NotificationNewTicket = "new_ticket"
	NotificationNewReply  = "new_reply"
)

// StatusCounts aggregates ticket totals for dashboards.
type StatusCounts struct {
	Total      int64 `json:"total"`
	Open       int64 `json:"open"`
	InProgress int64 `json:"in_progress"`
	Resolved   int64 `json:"resolved"`
	Closed     int64 `json:"closed"`
}

// PriorityCounts aggregates ticket totals by priority.
type PriorityCounts struct {
	Low    int64 `json:"low"`
	Medium int64 `json:"medium"`
	High   int64 `json:"high"`
	Urgent int64 `json:"urgent"`
}

// Stats is the staff dashboard aggregate.
type Stats struct {
	Status     StatusCounts   `json:"status"`
	Priority   PriorityCounts `json:"priority"`
	Unassigned int64          `json:"unassigned"`
}

// Ticket status constants
const (
	StatusOpen       = "open"
	StatusInProgress = "in_progress"
	StatusResolved   = "resolved"
	StatusClosed     = "closed"
)

// Ticket priority constants
const (
	PriorityLow    = "low"
	PriorityMedium = "medium"
	PriorityHigh   = "high"
	PriorityUrgent = "urgent"
)

// DefaultSource tags tickets filed through the web portal.
const DefaultSource = "portal"

// Staff notification derivation bounds.
const (
	NotificationCap         = 8
	UnviewedCandidateWindow = 20
)

func IsValidStatus(status string) bool {
	switch status {
	case StatusOpen, StatusInProgress, StatusResolved, StatusClosed:
		return true
	}
	return false
}

func IsValidPriority(priority string) bool {
	switch priority {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent:
		return true
	}
	return false
}

// Domain errors
var (
	ErrTicketNotFound     = errors.New("ticket not found")
	ErrUnauthorizedAccess = errors.New("unauthorized access to ticket")
	ErrInvalidStatus      = errors.New("invalid ticket status")
	ErrInvalidPriority    = errors.New("invalid ticket priority")
	ErrEmptyReplyBody     = errors.New("reply body cannot be empty")
	ErrAssigneeNotStaff   = errors.New("assignee must be an agent or admin")
)

package ticket

import (
	"time"

	"github.com/derheim/helpdesk/internal/auth"
)

// ReplyCandidate is a repository row pairing a ticket's latest relevant
// reply with the viewer's last-viewed time. A nil LastViewedAt means the
// viewer has never opened the ticket.
type ReplyCandidate struct {
	TicketID      int64
	TicketTitle   string
	LatestReplyAt time.Time
	LastViewedAt  *time.Time
}

// TicketHead is the slim ticket projection used for the staff new-ticket
// notification branch.
type TicketHead struct {
	TicketID    int64
	TicketTitle string
	CreatedAt   time.Time
}

// unread applies the one comparison both derivations share. A ticket is
// unread when the view timestamp is strictly earlier than the latest reply,
// so a view at the exact reply instant counts as read. A missing view row
// always reads as unread.
func unread(lastViewedAt *time.Time, latestReplyAt time.Time) bool {
	return lastViewedAt == nil || lastViewedAt.Before(latestReplyAt)
}

// Notifications derives the caller's notification list from current rows.
// Nothing is stored; every call recomputes, so viewing a ticket clears its
// entry on the next request.
func (s *Service) Notifications(actor *auth.SessionUser) ([]Notification, error) {
	if actor.IsStaff() {
		return s.staffNotifications(actor)
	}
	return s.employeeNotifications(actor)
}

// employeeNotifications lists owned tickets where someone else replied
// after the owner's last view.
func (s *Service) employeeNotifications(actor *auth.SessionUser) ([]Notification, error) {
	candidates, err := s.repo.EmployeeReplyCandidates(actor.ID)
	if err != nil {
		s.logger.Error("failed to load reply candidates", "error", err, "user_id", actor.ID)
		return nil, err
	}

	notifications := make([]Notification, 0, len(candidates))
	for _, c := range candidates {
		if !unread(c.LastViewedAt, c.LatestReplyAt) {
			continue
		}
		notifications = append(notifications, Notification{
			TicketID:    c.TicketID,
			TicketTitle: c.TicketTitle,
			Reason:      NotificationNewReply,
			OccurredAt:  c.LatestReplyAt,
		})
		if len(notifications) == NotificationCap {
			break
		}
	}

	return notifications, nil
}

// staffNotifications merges two branches: recent open/in_progress tickets
// the viewer has never opened, then tickets whose owner replied since the
// viewer's last view. De-duplicated by ticket id, first occurrence wins.
func (s *Service) staffNotifications(actor *auth.SessionUser) ([]Notification, error) {
	heads, err := s.repo.StaffUnviewedTickets(actor.ID, UnviewedCandidateWindow)
	if err != nil {
		s.logger.Error("failed to load unviewed tickets", "error", err, "user_id", actor.ID)
		return nil, err
	}

	candidates, err := s.repo.StaffOwnerReplyCandidates(actor.ID)
	if err != nil {
		s.logger.Error("failed to load owner reply candidates", "error", err, "user_id", actor.ID)
		return nil, err
	}

	notifications := make([]Notification, 0, NotificationCap)
	seen := make(map[int64]bool)

	for _, h := range heads {
		if seen[h.TicketID] {
			continue
		}
		seen[h.TicketID] = true
		notifications = append(notifications, Notification{
			TicketID:    h.TicketID,
			TicketTitle: h.TicketTitle,
			Reason:      NotificationNewTicket,
			OccurredAt:  h.CreatedAt,
		})
		if len(notifications) == NotificationCap {
			return notifications, nil
		}
	}

	for _, c := range candidates {
		if seen[c.TicketID] || !unread(c.LastViewedAt, c.LatestReplyAt) {
			continue
		}
		seen[c.TicketID] = true
		notifications = append(notifications, Notification{
			TicketID:    c.TicketID,
			TicketTitle: c.TicketTitle,
			Reason:      NotificationNewReply,
			OccurredAt:  c.LatestReplyAt,
		})
		if len(notifications) == NotificationCap {
			break
		}
	}

	return notifications, nil
}

package email

import (
	"context"
	"log/slog"

	"github.com/derheim/helpdesk/internal/core/events"
)

// Notifier subscribes the mailer to ticket events. Handlers run off the
// request path; a send failure is logged and goes no further.
type Notifier struct {
	mailer Mailer
	logger *slog.Logger
}

func NewNotifier(mailer Mailer, logger *slog.Logger) *Notifier {
	return &Notifier{mailer: mailer, logger: logger}
}

// Register wires the notifier onto the event bus
func (n *Notifier) Register(bus *events.EventBus) {
	bus.Subscribe(events.EventTypeTicketCreated, n.handleTicketCreated)
	bus.Subscribe(events.EventTypeTicketAssigned, n.handleTicketAssigned)
}

func (n *Notifier) handleTicketCreated(ctx context.Context, event events.Event) error {
	e, ok := event.(*events.TicketCreatedEvent)
	if !ok {
		n.logger.Error("unexpected event payload", "event_type", event.EventType())
		return nil
	}
	return n.mailer.SendTicketCreated(ctx, e.RecipientEmail, e.CreatorName, e.TicketTitle, e.TicketID)
}

func (n *Notifier) handleTicketAssigned(ctx context.Context, event events.Event) error {
	e, ok := event.(*events.TicketAssignedEvent)
	if !ok {
		n.logger.Error("unexpected event payload", "event_type", event.EventType())
		return nil
	}
	return n.mailer.SendTicketAssigned(ctx, e.RecipientEmail, e.TicketTitle, e.TicketID)
}

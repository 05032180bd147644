package email

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
)

// Mailer sends transactional notifications. Implementations must never be
// load-bearing for a request; callers fire and forget.
type Mailer interface {
	SendTicketCreated(ctx context.Context, toEmail, creatorName, ticketTitle string, ticketID int64) error
	SendTicketAssigned(ctx context.Context, toEmail, ticketTitle string, ticketID int64) error
}

// SendGridMailer sends notifications through the SendGrid API.
type SendGridMailer struct {
	client      *sendgrid.Client
	fromName    string
	fromAddress string
	logger      *slog.Logger
}

// NewMailer returns a SendGrid-backed mailer, or a logging no-op when no API
// key is configured so local development works without credentials.
func NewMailer(apiKey, fromName, fromAddress string, logger *slog.Logger) Mailer {
	if apiKey == "" {
		logger.Warn("no sendgrid api key configured, email notifications disabled")
		return &noopMailer{logger: logger}
	}
	return &SendGridMailer{
		client:      sendgrid.NewSendClient(apiKey),
		fromName:    fromName,
		fromAddress: fromAddress,
		logger:      logger,
	}
}

func (m *SendGridMailer) send(toEmail, subject, plain, html string) error {
	from := mail.NewEmail(m.fromName, m.fromAddress)
	to := mail.NewEmail("", toEmail)
	message := mail.NewSingleEmail(from, subject, to, plain, html)

	resp, err := m.client.Send(message)
	if err != nil {
		return err
	}
	if resp.StatusCode >= 400 {
		return fmt.Errorf("sendgrid returned status %d: %s", resp.StatusCode, resp.Body)
	}
	return nil
}

// SendTicketCreated confirms to the creator that their ticket was filed
func (m *SendGridMailer) SendTicketCreated(ctx context.Context, toEmail, creatorName, ticketTitle string, ticketID int64) error {
	subject := fmt.Sprintf("Ticket #%d received: %s", ticketID, ticketTitle)
	plain := fmt.Sprintf("Hi %s,\n\nYour support ticket %q has been received. Our team will get back to you shortly.\n\nTicket number: #%d",
		creatorName, ticketTitle, ticketID)
	html := fmt.Sprintf("<p>Hi %s,</p><p>Your support ticket <strong>%s</strong> has been received. Our team will get back to you shortly.</p><p>Ticket number: #%d</p>",
		creatorName, ticketTitle, ticketID)

	if err := m.send(toEmail, subject, plain, html); err != nil {
		return err
	}
	m.logger.Info("ticket created email sent", "ticket_id", ticketID, "to", toEmail)
	return nil
}

// SendTicketAssigned notifies a staff member that a ticket landed on their queue
func (m *SendGridMailer) SendTicketAssigned(ctx context.Context, toEmail, ticketTitle string, ticketID int64) error {
	subject := fmt.Sprintf("Ticket #%d assigned to you: %s", ticketID, ticketTitle)
	plain := fmt.Sprintf("Ticket %q (#%d) has been assigned to you.", ticketTitle, ticketID)
	html := fmt.Sprintf("<p>Ticket <strong>%s</strong> (#%d) has been assigned to you.</p>", ticketTitle, ticketID)

	if err := m.send(toEmail, subject, plain, html); err != nil {
		return err
	}
	m.logger.Info("ticket assigned email sent", "ticket_id", ticketID, "to", toEmail)
	return nil
}

type noopMailer struct {
	logger *slog.Logger
}

func (m *noopMailer) SendTicketCreated(ctx context.Context, toEmail, creatorName, ticketTitle string, ticketID int64) error {
	m.logger.Info("email skipped (mailer disabled)", "kind", "ticket_created", "ticket_id", ticketID, "to", toEmail)
	return nil
}

func (m *noopMailer) SendTicketAssigned(ctx context.Context, toEmail, ticketTitle string, ticketID int64) error {
	m.logger.Info("email skipped (mailer disabled)", "kind", "ticket_assigned", "ticket_id", ticketID, "to", toEmail)
	return nil
}

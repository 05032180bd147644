package events_test

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/derheim/helpdesk/internal/core/events"
)

func TestEvents(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Events Module Suite")
}

func testEvent(eventType string) events.Event {
	return events.BaseEvent{
		ID:        "evt-1",
		Type:      eventType,
		Timestamp: time.Now(),
		Data:      map[string]interface{}{"ticket_id": int64(7)},
	}
}

var _ = Describe("EventBus", func() {
	var bus *events.EventBus

	BeforeEach(func() {
		logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
		bus = events.NewEventBus(logger)
	})

	Describe("Publish", func() {
		It("should fan the event out to every subscriber without blocking", func() {
			received := make(chan string, 2)
			bus.Subscribe("ticket.created", func(ctx context.Context, e events.Event) error {
				received <- "first"
				return nil
			})
			bus.Subscribe("ticket.created", func(ctx context.Context, e events.Event) error {
				received <- "second"
				return nil
			})

			err := bus.Publish(context.Background(), testEvent("ticket.created"))

			Expect(err).ToNot(HaveOccurred())
			Eventually(received).Should(Receive())
			Eventually(received).Should(Receive())
		})

		It("should be a no-op when nothing is subscribed", func() {
			err := bus.Publish(context.Background(), testEvent("ticket.created"))

			Expect(err).ToNot(HaveOccurred())
		})

		It("should swallow handler failures", func() {
			done := make(chan struct{})
			bus.Subscribe("ticket.created", func(ctx context.Context, e events.Event) error {
				close(done)
				return errors.New("mailer down")
			})

			err := bus.Publish(context.Background(), testEvent("ticket.created"))

			Expect(err).ToNot(HaveOccurred())
			Eventually(done).Should(BeClosed())
		})
	})

	Describe("PublishSync", func() {
		It("should run handlers in subscription order before returning", func() {
			var order []string
			bus.Subscribe("ticket.assigned", func(ctx context.Context, e events.Event) error {
				order = append(order, "first")
				return nil
			})
			bus.Subscribe("ticket.assigned", func(ctx context.Context, e events.Event) error {
				order = append(order, "second")
				return nil
			})

			err := bus.PublishSync(context.Background(), testEvent("ticket.assigned"))

			Expect(err).ToNot(HaveOccurred())
			Expect(order).To(Equal([]string{"first", "second"}))
		})

		It("should stop at the first failing handler and surface the error", func() {
			var order []string
			bus.Subscribe("ticket.assigned", func(ctx context.Context, e events.Event) error {
				order = append(order, "first")
				return errors.New("mailer down")
			})
			bus.Subscribe("ticket.assigned", func(ctx context.Context, e events.Event) error {
				order = append(order, "second")
				return nil
			})

			err := bus.PublishSync(context.Background(), testEvent("ticket.assigned"))

			Expect(err).To(HaveOccurred())
			Expect(err.Error()).To(ContainSubstring("ticket.assigned"))
			Expect(order).To(Equal([]string{"first"}))
		})

		It("should be a no-op when nothing is subscribed", func() {
			err := bus.PublishSync(context.Background(), testEvent("ticket.assigned"))

			Expect(err).ToNot(HaveOccurred())
		})
	})
})

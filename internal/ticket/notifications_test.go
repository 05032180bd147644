package ticket_test

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/derheim/helpdesk/internal/auth"
	"github.com/derheim/helpdesk/internal/ticket"
)

var _ = Describe("Notifications", func() {
	var (
		service  *ticket.Service
		mockRepo *mockTicketRepository
		bus      *mockEventBus
		logger   *slog.Logger

		employee *auth.SessionUser
		agent    *auth.SessionUser
		base     time.Time
	)

	BeforeEach(func() {
		mockRepo = newMockTicketRepository()
		bus = &mockEventBus{}
		logger = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
		service = ticket.NewService(mockRepo, bus, logger)

		employee = &auth.SessionUser{ID: 1, Email: "dana@example.com", FullName: "Dana Employee", Role: auth.RoleEmployee}
		agent = &auth.SessionUser{ID: 2, Email: "alex@example.com", FullName: "Alex Agent", Role: auth.RoleAgent}
		base = time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	})

	Describe("for employees", func() {
		It("should flag a ticket the owner has never viewed", func() {
			mockRepo.employeeCandidates = []ticket.ReplyCandidate{
				{TicketID: 10, TicketTitle: "Monitor flicker", LatestReplyAt: base, LastViewedAt: nil},
			}

			notifications, err := service.Notifications(employee)

			Expect(err).ToNot(HaveOccurred())
			Expect(notifications).To(HaveLen(1))
			Expect(notifications[0].TicketID).To(Equal(int64(10)))
			Expect(notifications[0].Reason).To(Equal(ticket.NotificationNewReply))
			Expect(notifications[0].OccurredAt).To(BeTemporally("==", base))
		})

		It("should clear a ticket viewed after the latest reply", func() {
			viewed := base.Add(time.Minute)
			mockRepo.employeeCandidates = []ticket.ReplyCandidate{
				{TicketID: 10, TicketTitle: "Monitor flicker", LatestReplyAt: base, LastViewedAt: &viewed},
			}

			notifications, err := service.Notifications(employee)

			Expect(err).ToNot(HaveOccurred())
			Expect(notifications).To(BeEmpty())
		})

		It("should treat a view at the exact reply instant as read", func() {
			viewed := base
			mockRepo.employeeCandidates = []ticket.ReplyCandidate{
				{TicketID: 10, TicketTitle: "Monitor flicker", LatestReplyAt: base, LastViewedAt: &viewed},
			}

			notifications, err := service.Notifications(employee)

			Expect(err).ToNot(HaveOccurred())
			Expect(notifications).To(BeEmpty())
		})

		It("should resurface a ticket when a reply lands after the last view", func() {
			viewed := base.Add(-time.Hour)
			mockRepo.employeeCandidates = []ticket.ReplyCandidate{
				{TicketID: 10, TicketTitle: "Monitor flicker", LatestReplyAt: base, LastViewedAt: &viewed},
			}

			notifications, err := service.Notifications(employee)

			Expect(err).ToNot(HaveOccurred())
			Expect(notifications).To(HaveLen(1))
		})

		It("should cap the list at eight entries", func() {
			for i := 0; i < 12; i++ {
				mockRepo.employeeCandidates = append(mockRepo.employeeCandidates, ticket.ReplyCandidate{
					TicketID:      int64(100 + i),
					TicketTitle:   fmt.Sprintf("Ticket %d", i),
					LatestReplyAt: base.Add(-time.Duration(i) * time.Minute),
				})
			}

			notifications, err := service.Notifications(employee)

			Expect(err).ToNot(HaveOccurred())
			Expect(notifications).To(HaveLen(ticket.NotificationCap))
			Expect(notifications[0].TicketID).To(Equal(int64(100)))
		})
	})

	Describe("for staff", func() {
		It("should list never-viewed open tickets before reply candidates", func() {
			mockRepo.staffHeads = []ticket.TicketHead{
				{TicketID: 20, TicketTitle: "New VPN issue", CreatedAt: base},
			}
			mockRepo.staffCandidates = []ticket.ReplyCandidate{
				{TicketID: 21, TicketTitle: "Owner replied", LatestReplyAt: base.Add(time.Hour)},
			}

			notifications, err := service.Notifications(agent)

			Expect(err).ToNot(HaveOccurred())
			Expect(notifications).To(HaveLen(2))
			Expect(notifications[0].TicketID).To(Equal(int64(20)))
			Expect(notifications[0].Reason).To(Equal(ticket.NotificationNewTicket))
			Expect(notifications[1].TicketID).To(Equal(int64(21)))
			Expect(notifications[1].Reason).To(Equal(ticket.NotificationNewReply))
		})

		It("should de-duplicate a ticket present in both branches", func() {
			mockRepo.staffHeads = []ticket.TicketHead{
				{TicketID: 20, TicketTitle: "New VPN issue", CreatedAt: base},
			}
			mockRepo.staffCandidates = []ticket.ReplyCandidate{
				{TicketID: 20, TicketTitle: "New VPN issue", LatestReplyAt: base.Add(time.Hour)},
			}

			notifications, err := service.Notifications(agent)

			Expect(err).ToNot(HaveOccurred())
			Expect(notifications).To(HaveLen(1))
			Expect(notifications[0].Reason).To(Equal(ticket.NotificationNewTicket))
		})

		It("should drop reply candidates the viewer has already seen", func() {
			viewed := base.Add(2 * time.Hour)
			mockRepo.staffCandidates = []ticket.ReplyCandidate{
				{TicketID: 21, TicketTitle: "Owner replied", LatestReplyAt: base.Add(time.Hour), LastViewedAt: &viewed},
			}

			notifications, err := service.Notifications(agent)

			Expect(err).ToNot(HaveOccurred())
			Expect(notifications).To(BeEmpty())
		})

		It("should cap the merged list at eight entries", func() {
			for i := 0; i < 6; i++ {
				mockRepo.staffHeads = append(mockRepo.staffHeads, ticket.TicketHead{
					TicketID:    int64(200 + i),
					TicketTitle: fmt.Sprintf("New ticket %d", i),
					CreatedAt:   base.Add(-time.Duration(i) * time.Minute),
				})
			}
			for i := 0; i < 6; i++ {
				mockRepo.staffCandidates = append(mockRepo.staffCandidates, ticket.ReplyCandidate{
					TicketID:      int64(300 + i),
					TicketTitle:   fmt.Sprintf("Reply ticket %d", i),
					LatestReplyAt: base.Add(-time.Duration(i) * time.Minute),
				})
			}

			notifications, err := service.Notifications(agent)

			Expect(err).ToNot(HaveOccurred())
			Expect(notifications).To(HaveLen(ticket.NotificationCap))
			Expect(notifications[5].Reason).To(Equal(ticket.NotificationNewTicket))
			Expect(notifications[6].Reason).To(Equal(ticket.NotificationNewReply))
		})
	})
})

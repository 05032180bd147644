package postgres

import (
	"testing"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/derheim/helpdesk/internal"
	"github.com/derheim/helpdesk/internal/ticket"
)

func TestTicketRepository(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "TicketRepository Suite")
}

type SQLiteUser struct {
	ID           int64  `gorm:"primaryKey"`
	Email        string `gorm:"not null;unique"`
	FullName     string `gorm:"column:full_name;not null"`
	Role         string `gorm:"not null"`
	PasswordHash string `gorm:"column:password_hash"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (SQLiteUser) TableName() string { return "users" }

type SQLiteTicket struct {
	ID          int64  `gorm:"primaryKey"`
	Title       string `gorm:"not null"`
	Description string
	Status      string `gorm:"default:'open'"`
	Priority    string `gorm:"default:'medium'"`
	Source      string `gorm:"default:'portal'"`
	CreatedBy   int64  `gorm:"column:created_by;not null"`
	AssignedTo  *int64 `gorm:"column:assigned_to"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
	ResolvedAt  *time.Time `gorm:"column:resolved_at"`
}

func (SQLiteTicket) TableName() string { return "tickets" }

type SQLiteReply struct {
	ID        int64  `gorm:"primaryKey"`
	TicketID  int64  `gorm:"column:ticket_id;not null"`
	AuthorID  int64  `gorm:"column:author_id;not null"`
	Body      string `gorm:"not null"`
	CreatedAt time.Time
}

func (SQLiteReply) TableName() string { return "ticket_replies" }

type SQLiteNote struct {
	ID        int64  `gorm:"primaryKey"`
	TicketID  int64  `gorm:"column:ticket_id;not null"`
	AuthorID  int64  `gorm:"column:author_id;not null"`
	Body      string `gorm:"not null"`
	CreatedAt time.Time
}

func (SQLiteNote) TableName() string { return "ticket_internal_notes" }

type SQLiteView struct {
	UserID       int64     `gorm:"column:user_id;primaryKey"`
	TicketID     int64     `gorm:"column:ticket_id;primaryKey"`
	LastViewedAt time.Time `gorm:"column:last_viewed_at;not null"`
}

func (SQLiteView) TableName() string { return "user_ticket_views" }

var _ = Describe("TicketRepository", func() {
	var (
		db   *gorm.DB
		repo ticket.Repository
	)

	seedUser := func(id int64, name, email, role string) {
		err := db.Create(&SQLiteUser{ID: id, Email: email, FullName: name, Role: role}).Error
		Expect(err).NotTo(HaveOccurred())
	}

	seedTicket := func(t *ticket.Ticket) {
		Expect(repo.Create(t)).To(Succeed())
	}

	BeforeEach(func() {
		var err error

		db, err = gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
		Expect(err).NotTo(HaveOccurred())

		err = db.AutoMigrate(&SQLiteUser{}, &SQLiteTicket{}, &SQLiteReply{}, &SQLiteNote{}, &SQLiteView{})
		Expect(err).NotTo(HaveOccurred())

		repo = NewTicketRepository(db)

		seedUser(1, "Dana Employee", "dana@example.com", "employee")
		seedUser(2, "Alex Agent", "alex@example.com", "agent")
	})

	AfterEach(func() {
		sqlDB, err := db.DB()
		Expect(err).NotTo(HaveOccurred())
		err = sqlDB.Close()
		Expect(err).NotTo(HaveOccurred())
	})

	Describe("Create and GetByID", func() {
		It("should round-trip a ticket", func() {
			t := &ticket.Ticket{
				Title:       "Laptop will not boot",
				Description: "Black screen",
				Status:      ticket.StatusOpen,
				Priority:    ticket.PriorityHigh,
				Source:      ticket.DefaultSource,
				CreatedBy:   1,
				CreatedAt:   time.Now(),
				UpdatedAt:   time.Now(),
			}

			seedTicket(t)
			Expect(t.ID).To(BeNumerically(">", 0))

			retrieved, err := repo.GetByID(t.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(retrieved.Title).To(Equal(t.Title))
			Expect(retrieved.Priority).To(Equal(ticket.PriorityHigh))
			Expect(retrieved.CreatedBy).To(Equal(int64(1)))
		})

		It("should return the not-found sentinel for a missing id", func() {
			retrieved, err := repo.GetByID(99999)

			Expect(err).To(MatchError(internal.ErrTicketNotFound))
			Expect(retrieved).To(BeNil())
		})
	})

	Describe("GetByIDWithRelations", func() {
		It("should join the creator and assignee projections", func() {
			assignee := int64(2)
			t := &ticket.Ticket{Title: "VPN down", Status: ticket.StatusOpen, Priority: ticket.PriorityMedium, CreatedBy: 1, AssignedTo: &assignee, CreatedAt: time.Now(), UpdatedAt: time.Now()}
			seedTicket(t)

			row, err := repo.GetByIDWithRelations(t.ID)

			Expect(err).NotTo(HaveOccurred())
			Expect(row.Creator).NotTo(BeNil())
			Expect(row.Creator.FullName).To(Equal("Dana Employee"))
			Expect(row.Assignee).NotTo(BeNil())
			Expect(row.Assignee.Email).To(Equal("alex@example.com"))
		})

		It("should leave the assignee nil on an unassigned ticket", func() {
			t := &ticket.Ticket{Title: "Printer jam", Status: ticket.StatusOpen, Priority: ticket.PriorityLow, CreatedBy: 1, CreatedAt: time.Now(), UpdatedAt: time.Now()}
			seedTicket(t)

			row, err := repo.GetByIDWithRelations(t.ID)

			Expect(err).NotTo(HaveOccurred())
			Expect(row.Creator).NotTo(BeNil())
			Expect(row.Assignee).To(BeNil())
		})
	})

	Describe("ListByCreator", func() {
		BeforeEach(func() {
			seedTicket(&ticket.Ticket{Title: "A", Status: ticket.StatusOpen, Priority: ticket.PriorityMedium, CreatedBy: 1, CreatedAt: time.Now().Add(-2 * time.Hour), UpdatedAt: time.Now()})
			seedTicket(&ticket.Ticket{Title: "B", Status: ticket.StatusResolved, Priority: ticket.PriorityMedium, CreatedBy: 1, CreatedAt: time.Now().Add(-time.Hour), UpdatedAt: time.Now()})
			seedTicket(&ticket.Ticket{Title: "C", Status: ticket.StatusOpen, Priority: ticket.PriorityMedium, CreatedBy: 2, CreatedAt: time.Now(), UpdatedAt: time.Now()})
		})

		It("should return only the creator's tickets, newest first", func() {
			rows, total, err := repo.ListByCreator(1, ticket.ListFilters{})

			Expect(err).NotTo(HaveOccurred())
			Expect(total).To(Equal(int64(2)))
			Expect(rows).To(HaveLen(2))
			Expect(rows[0].Title).To(Equal("B"))
			Expect(rows[1].Title).To(Equal("A"))
		})

		It("should apply the status filter to both rows and total", func() {
			rows, total, err := repo.ListByCreator(1, ticket.ListFilters{Status: ticket.StatusOpen})

			Expect(err).NotTo(HaveOccurred())
			Expect(total).To(Equal(int64(1)))
			Expect(rows).To(HaveLen(1))
			Expect(rows[0].Title).To(Equal("A"))
		})

		It("should paginate without losing the unfiltered total", func() {
			rows, total, err := repo.ListByCreator(1, ticket.ListFilters{Limit: 1})

			Expect(err).NotTo(HaveOccurred())
			Expect(total).To(Equal(int64(2)))
			Expect(rows).To(HaveLen(1))
		})
	})

	Describe("CountsByCreator", func() {
		It("should aggregate totals by status", func() {
			seedTicket(&ticket.Ticket{Title: "A", Status: ticket.StatusOpen, Priority: ticket.PriorityMedium, CreatedBy: 1, CreatedAt: time.Now(), UpdatedAt: time.Now()})
			seedTicket(&ticket.Ticket{Title: "B", Status: ticket.StatusOpen, Priority: ticket.PriorityMedium, CreatedBy: 1, CreatedAt: time.Now(), UpdatedAt: time.Now()})
			seedTicket(&ticket.Ticket{Title: "C", Status: ticket.StatusClosed, Priority: ticket.PriorityMedium, CreatedBy: 1, CreatedAt: time.Now(), UpdatedAt: time.Now()})
			seedTicket(&ticket.Ticket{Title: "D", Status: ticket.StatusOpen, Priority: ticket.PriorityMedium, CreatedBy: 2, CreatedAt: time.Now(), UpdatedAt: time.Now()})

			counts, err := repo.CountsByCreator(1)

			Expect(err).NotTo(HaveOccurred())
			Expect(counts.Total).To(Equal(int64(3)))
			Expect(counts.Open).To(Equal(int64(2)))
			Expect(counts.Closed).To(Equal(int64(1)))
			Expect(counts.Resolved).To(BeZero())
		})
	})

	Describe("GetStats", func() {
		It("should aggregate status, priority, and unassigned totals", func() {
			assignee := int64(2)
			seedTicket(&ticket.Ticket{Title: "A", Status: ticket.StatusOpen, Priority: ticket.PriorityUrgent, CreatedBy: 1, AssignedTo: &assignee, CreatedAt: time.Now(), UpdatedAt: time.Now()})
			seedTicket(&ticket.Ticket{Title: "B", Status: ticket.StatusInProgress, Priority: ticket.PriorityLow, CreatedBy: 1, CreatedAt: time.Now(), UpdatedAt: time.Now()})

			stats, err := repo.GetStats(time.Time{}, time.Time{})

			Expect(err).NotTo(HaveOccurred())
			Expect(stats.Status.Total).To(Equal(int64(2)))
			Expect(stats.Status.Open).To(Equal(int64(1)))
			Expect(stats.Status.InProgress).To(Equal(int64(1)))
			Expect(stats.Priority.Urgent).To(Equal(int64(1)))
			Expect(stats.Priority.Low).To(Equal(int64(1)))
			Expect(stats.Unassigned).To(Equal(int64(1)))
		})

		It("should respect the date range", func() {
			seedTicket(&ticket.Ticket{Title: "Old", Status: ticket.StatusOpen, Priority: ticket.PriorityLow, CreatedBy: 1, CreatedAt: time.Now().Add(-48 * time.Hour), UpdatedAt: time.Now()})
			seedTicket(&ticket.Ticket{Title: "New", Status: ticket.StatusOpen, Priority: ticket.PriorityLow, CreatedBy: 1, CreatedAt: time.Now(), UpdatedAt: time.Now()})

			stats, err := repo.GetStats(time.Now().Add(-time.Hour), time.Time{})

			Expect(err).NotTo(HaveOccurred())
			Expect(stats.Status.Total).To(Equal(int64(1)))
		})
	})

	Describe("UpdateStatus", func() {
		var t *ticket.Ticket

		BeforeEach(func() {
			t = &ticket.Ticket{Title: "Badge reader", Status: ticket.StatusOpen, Priority: ticket.PriorityMedium, CreatedBy: 1, CreatedAt: time.Now(), UpdatedAt: time.Now()}
			seedTicket(t)
		})

		It("should stamp resolved_at when resolving", func() {
			now := time.Now()

			err := repo.UpdateStatus(t.ID, ticket.StatusResolved, &now)
			Expect(err).NotTo(HaveOccurred())

			retrieved, err := repo.GetByID(t.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(retrieved.Status).To(Equal(ticket.StatusResolved))
			Expect(retrieved.ResolvedAt).NotTo(BeNil())
		})

		It("should clear resolved_at when reopening", func() {
			now := time.Now()
			Expect(repo.UpdateStatus(t.ID, ticket.StatusResolved, &now)).To(Succeed())

			err := repo.UpdateStatus(t.ID, ticket.StatusOpen, nil)
			Expect(err).NotTo(HaveOccurred())

			retrieved, err := repo.GetByID(t.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(retrieved.Status).To(Equal(ticket.StatusOpen))
			Expect(retrieved.ResolvedAt).To(BeNil())
		})
	})

	Describe("CreateReply", func() {
		var t *ticket.Ticket

		BeforeEach(func() {
			t = &ticket.Ticket{Title: "Phone silent", Status: ticket.StatusOpen, Priority: ticket.PriorityMedium, CreatedBy: 1, CreatedAt: time.Now().Add(-time.Hour), UpdatedAt: time.Now().Add(-time.Hour)}
			seedTicket(t)
		})

		It("should bump the ticket's updated_at alongside the insert", func() {
			before, err := repo.GetByID(t.ID)
			Expect(err).NotTo(HaveOccurred())

			reply := &ticket.Reply{TicketID: t.ID, AuthorID: 2, Body: "On it", CreatedAt: time.Now()}
			Expect(repo.CreateReply(reply)).To(Succeed())
			Expect(reply.ID).To(BeNumerically(">", 0))

			after, err := repo.GetByID(t.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(after.UpdatedAt).To(BeTemporally(">", before.UpdatedAt))
		})

		It("should list replies oldest first with authors joined", func() {
			first := &ticket.Reply{TicketID: t.ID, AuthorID: 1, Body: "Still broken", CreatedAt: time.Now().Add(-time.Minute)}
			second := &ticket.Reply{TicketID: t.ID, AuthorID: 2, Body: "Checking", CreatedAt: time.Now()}
			Expect(repo.CreateReply(first)).To(Succeed())
			Expect(repo.CreateReply(second)).To(Succeed())

			replies, err := repo.ListReplies(t.ID)

			Expect(err).NotTo(HaveOccurred())
			Expect(replies).To(HaveLen(2))
			Expect(replies[0].Body).To(Equal("Still broken"))
			Expect(replies[0].Author).NotTo(BeNil())
			Expect(replies[0].Author.FullName).To(Equal("Dana Employee"))
			Expect(replies[1].Author.FullName).To(Equal("Alex Agent"))
		})
	})

	Describe("UpsertView", func() {
		var t *ticket.Ticket

		BeforeEach(func() {
			t = &ticket.Ticket{Title: "Headset static", Status: ticket.StatusOpen, Priority: ticket.PriorityMedium, CreatedBy: 1, CreatedAt: time.Now(), UpdatedAt: time.Now()}
			seedTicket(t)
		})

		It("should keep a single row per user and ticket", func() {
			firstViewed := time.Now().Add(-time.Hour)
			secondViewed := time.Now()

			Expect(repo.UpsertView(1, t.ID, firstViewed)).To(Succeed())
			Expect(repo.UpsertView(1, t.ID, secondViewed)).To(Succeed())

			var views []SQLiteView
			Expect(db.Find(&views).Error).NotTo(HaveOccurred())
			Expect(views).To(HaveLen(1))
			Expect(views[0].LastViewedAt).To(BeTemporally("~", secondViewed, time.Second))
		})

		It("should keep rows for different viewers separate", func() {
			Expect(repo.UpsertView(1, t.ID, time.Now())).To(Succeed())
			Expect(repo.UpsertView(2, t.ID, time.Now())).To(Succeed())

			var views []SQLiteView
			Expect(db.Find(&views).Error).NotTo(HaveOccurred())
			Expect(views).To(HaveLen(2))
		})
	})

	Describe("StaffUnviewedTickets", func() {
		BeforeEach(func() {
			seedTicket(&ticket.Ticket{Title: "Open old", Status: ticket.StatusOpen, Priority: ticket.PriorityMedium, CreatedBy: 1, CreatedAt: time.Now().Add(-3 * time.Hour), UpdatedAt: time.Now()})
			seedTicket(&ticket.Ticket{Title: "In progress", Status: ticket.StatusInProgress, Priority: ticket.PriorityMedium, CreatedBy: 1, CreatedAt: time.Now().Add(-2 * time.Hour), UpdatedAt: time.Now()})
			seedTicket(&ticket.Ticket{Title: "Resolved", Status: ticket.StatusResolved, Priority: ticket.PriorityMedium, CreatedBy: 1, CreatedAt: time.Now().Add(-time.Hour), UpdatedAt: time.Now()})
		})

		It("should return open and in-progress tickets the viewer never opened, newest first", func() {
			heads, err := repo.StaffUnviewedTickets(2, 20)

			Expect(err).NotTo(HaveOccurred())
			Expect(heads).To(HaveLen(2))
			Expect(heads[0].TicketTitle).To(Equal("In progress"))
			Expect(heads[1].TicketTitle).To(Equal("Open old"))
		})

		It("should exclude tickets the viewer has opened", func() {
			heads, err := repo.StaffUnviewedTickets(2, 20)
			Expect(err).NotTo(HaveOccurred())
			Expect(repo.UpsertView(2, heads[0].TicketID, time.Now())).To(Succeed())

			heads, err = repo.StaffUnviewedTickets(2, 20)

			Expect(err).NotTo(HaveOccurred())
			Expect(heads).To(HaveLen(1))
			Expect(heads[0].TicketTitle).To(Equal("Open old"))
		})

		It("should honor the candidate window", func() {
			heads, err := repo.StaffUnviewedTickets(2, 1)

			Expect(err).NotTo(HaveOccurred())
			Expect(heads).To(HaveLen(1))
			Expect(heads[0].TicketTitle).To(Equal("In progress"))
		})

		It("should apply the window before the view filter", func() {
			heads, err := repo.StaffUnviewedTickets(2, 1)
			Expect(err).NotTo(HaveOccurred())
			Expect(repo.UpsertView(2, heads[0].TicketID, time.Now())).To(Succeed())

			heads, err = repo.StaffUnviewedTickets(2, 1)

			Expect(err).NotTo(HaveOccurred())
			Expect(heads).To(BeEmpty())
		})
	})

	Describe("GetUserInfo", func() {
		It("should return the projection and role", func() {
			ref, role, err := repo.GetUserInfo(2)

			Expect(err).NotTo(HaveOccurred())
			Expect(ref.FullName).To(Equal("Alex Agent"))
			Expect(role).To(Equal("agent"))
		})

		It("should return the not-found sentinel for a missing user", func() {
			ref, _, err := repo.GetUserInfo(99999)

			Expect(err).To(MatchError(internal.ErrUserNotFound))
			Expect(ref).To(BeNil())
		})
	})
})

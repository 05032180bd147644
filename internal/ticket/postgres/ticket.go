package postgres

import (
	"database/sql"
	"errors"
	"time"

	"github.com/derheim/helpdesk/internal"
	"github.com/derheim/helpdesk/internal/ticket"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// TicketRepository implements the ticket.Repository interface using GORM
type TicketRepository struct {
	db *gorm.DB
}

// NewTicketRepository creates a new ticket repository
func NewTicketRepository(db *gorm.DB) ticket.Repository {
	return &TicketRepository{db: db}
}

// Create saves a new ticket to the database
func (r *TicketRepository) Create(t *ticket.Ticket) error {
	return r.db.Create(t).Error
}

// GetByID retrieves a ticket by its ID
func (r *TicketRepository) GetByID(id int64) (*ticket.Ticket, error) {
	var t ticket.Ticket
	err := r.db.Where("id = ?", id).First(&t).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, internal.ErrTicketNotFound
		}
		return nil, err
	}
	return &t, nil
}

// GetByIDWithRelations retrieves a ticket with its creator and assignee joined
func (r *TicketRepository) GetByIDWithRelations(id int64) (*ticket.TicketWithRelations, error) {
	t, err := r.GetByID(id)
	if err != nil {
		return nil, err
	}

	rows := []*ticket.TicketWithRelations{{Ticket: *t}}
	if err := r.attachUserRefs(rows); err != nil {
		return nil, err
	}
	return rows[0], nil
}

func applyFilters(db *gorm.DB, f ticket.ListFilters) *gorm.DB {
	if f.Status != "" {
		db = db.Where("status = ?", f.Status)
	}
	if f.Priority != "" {
		db = db.Where("priority = ?", f.Priority)
	}
	if !f.DateFrom.IsZero() {
		db = db.Where("created_at >= ?", f.DateFrom)
	}
	if !f.DateTo.IsZero() {
		db = db.Where("created_at <= ?", f.DateTo)
	}
	return db
}

func (r *TicketRepository) list(scope func(*gorm.DB) *gorm.DB, f ticket.ListFilters) ([]*ticket.TicketWithRelations, int64, error) {
	var total int64
	if err := applyFilters(scope(r.db.Model(&ticket.Ticket{})), f).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var tickets []*ticket.Ticket
	q := applyFilters(scope(r.db.Model(&ticket.Ticket{})), f).Order("created_at DESC")
	if f.Limit > 0 {
		q = q.Limit(f.Limit).Offset(f.Offset)
	}
	if err := q.Find(&tickets).Error; err != nil {
		return nil, 0, err
	}

	rows := make([]*ticket.TicketWithRelations, len(tickets))
	for i, t := range tickets {
		rows[i] = &ticket.TicketWithRelations{Ticket: *t}
	}
	if err := r.attachUserRefs(rows); err != nil {
		return nil, 0, err
	}
	return rows, total, nil
}

// attachUserRefs stitches creator and assignee projections onto ticket rows
// with a single IN query over the users table.
func (r *TicketRepository) attachUserRefs(rows []*ticket.TicketWithRelations) error {
	if len(rows) == 0 {
		return nil
	}

	idSet := make(map[int64]bool)
	for _, row := range rows {
		idSet[row.CreatedBy] = true
		if row.AssignedTo != nil {
			idSet[*row.AssignedTo] = true
		}
	}
	ids := make([]int64, 0, len(idSet))
	for id := range idSet {
		ids = append(ids, id)
	}

	var refs []ticket.UserRef
	err := r.db.Table("users").
		Select("id, full_name, email").
		Where("id IN ?", ids).
		Scan(&refs).Error
	if err != nil {
		return err
	}

	byID := make(map[int64]*ticket.UserRef, len(refs))
	for i := range refs {
		byID[refs[i].ID] = &refs[i]
	}

	for _, row := range rows {
		row.Creator = byID[row.CreatedBy]
		if row.AssignedTo != nil {
			row.Assignee = byID[*row.AssignedTo]
		}
	}
	return nil
}

// ListByCreator retrieves an employee's own tickets, newest first
func (r *TicketRepository) ListByCreator(creatorID int64, f ticket.ListFilters) ([]*ticket.TicketWithRelations, int64, error) {
	return r.list(func(db *gorm.DB) *gorm.DB {
		return db.Where("created_by = ?", creatorID)
	}, f)
}

// ListAll retrieves all tickets, newest first
func (r *TicketRepository) ListAll(f ticket.ListFilters) ([]*ticket.TicketWithRelations, int64, error) {
	return r.list(func(db *gorm.DB) *gorm.DB { return db }, f)
}

// ListByAssignee retrieves tickets assigned to a staff member
func (r *TicketRepository) ListByAssignee(assigneeID int64, f ticket.ListFilters) ([]*ticket.TicketWithRelations, int64, error) {
	return r.list(func(db *gorm.DB) *gorm.DB {
		return db.Where("assigned_to = ?", assigneeID)
	}, f)
}

// CountsByCreator aggregates an employee's ticket totals by status
func (r *TicketRepository) CountsByCreator(creatorID int64) (*ticket.StatusCounts, error) {
	var counts ticket.StatusCounts
	query := `
		SELECT COUNT(*) AS total,
		       COALESCE(SUM(CASE WHEN status = 'open' THEN 1 ELSE 0 END), 0) AS open,
		       COALESCE(SUM(CASE WHEN status = 'in_progress' THEN 1 ELSE 0 END), 0) AS in_progress,
		       COALESCE(SUM(CASE WHEN status = 'resolved' THEN 1 ELSE 0 END), 0) AS resolved,
		       COALESCE(SUM(CASE WHEN status = 'closed' THEN 1 ELSE 0 END), 0) AS closed
		FROM tickets
		WHERE created_by = ?`
	if err := r.db.Raw(query, creatorID).Scan(&counts).Error; err != nil {
		return nil, err
	}
	return &counts, nil
}

type statsRow struct {
	Total      int64
	Open       int64
	InProgress int64
	Resolved   int64
	Closed     int64
	Low        int64
	Medium     int64
	High       int64
	Urgent     int64
	Unassigned int64
}

// GetStats aggregates totals by status and priority over an optional date range
func (r *TicketRepository) GetStats(from, to time.Time) (*ticket.Stats, error) {
	query := `
		SELECT COUNT(*) AS total,
		       COALESCE(SUM(CASE WHEN status = 'open' THEN 1 ELSE 0 END), 0) AS open,
		       COALESCE(SUM(CASE WHEN status = 'in_progress' THEN 1 ELSE 0 END), 0) AS in_progress,
		       COALESCE(SUM(CASE WHEN status = 'resolved' THEN 1 ELSE 0 END), 0) AS resolved,
		       COALESCE(SUM(CASE WHEN status = 'closed' THEN 1 ELSE 0 END), 0) AS closed,
		       COALESCE(SUM(CASE WHEN priority = 'low' THEN 1 ELSE 0 END), 0) AS low,
		       COALESCE(SUM(CASE WHEN priority = 'medium' THEN 1 ELSE 0 END), 0) AS medium,
		       COALESCE(SUM(CASE WHEN priority = 'high' THEN 1 ELSE 0 END), 0) AS high,
		       COALESCE(SUM(CASE WHEN priority = 'urgent' THEN 1 ELSE 0 END), 0) AS urgent,
		       COALESCE(SUM(CASE WHEN assigned_to IS NULL THEN 1 ELSE 0 END), 0) AS unassigned
		FROM tickets
		WHERE 1 = 1`

	args := []interface{}{}
	if !from.IsZero() {
		query += " AND created_at >= ?"
		args = append(args, from)
	}
	if !to.IsZero() {
		query += " AND created_at <= ?"
		args = append(args, to)
	}

	var row statsRow
	if err := r.db.Raw(query, args...).Scan(&row).Error; err != nil {
		return nil, err
	}

	return &ticket.Stats{
		Status: ticket.StatusCounts{
			Total:      row.Total,
			Open:       row.Open,
			InProgress: row.InProgress,
			Resolved:   row.Resolved,
			Closed:     row.Closed,
		},
		Priority: ticket.PriorityCounts{
			Low:    row.Low,
			Medium: row.Medium,
			High:   row.High,
			Urgent: row.Urgent,
		},
		Unassigned: row.Unassigned,
	}, nil
}

// UpdateStatus updates the status and resolved_at fields of a ticket
func (r *TicketRepository) UpdateStatus(id int64, status string, resolvedAt *time.Time) error {
	updates := map[string]interface{}{
		"status":     status,
		"updated_at": time.Now(),
	}
	if resolvedAt != nil {
		updates["resolved_at"] = *resolvedAt
	} else {
		updates["resolved_at"] = nil
	}

	return r.db.Model(&ticket.Ticket{}).
		Where("id = ?", id).
		Updates(updates).Error
}

// UpdatePriority updates only the priority of a ticket
func (r *TicketRepository) UpdatePriority(id int64, priority string) error {
	return r.db.Model(&ticket.Ticket{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"priority":   priority,
			"updated_at": time.Now(),
		}).Error
}

// UpdateAssignee sets or clears the assignee of a ticket
func (r *TicketRepository) UpdateAssignee(id int64, assigneeID *int64) error {
	return r.db.Model(&ticket.Ticket{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"assigned_to": assigneeID,
			"updated_at":  time.Now(),
		}).Error
}

// CreateReply saves a reply and bumps the ticket's updated_at in the same
// transaction.
func (r *TicketRepository) CreateReply(reply *ticket.Reply) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(reply).Error; err != nil {
			return err
		}
		return tx.Model(&ticket.Ticket{}).
			Where("id = ?", reply.TicketID).
			Update("updated_at", time.Now()).Error
	})
}

// ListReplies retrieves a ticket's replies oldest first, with authors joined
func (r *TicketRepository) ListReplies(ticketID int64) ([]*ticket.Reply, error) {
	var replies []*ticket.Reply
	err := r.db.Where("ticket_id = ?", ticketID).
		Order("created_at ASC").
		Find(&replies).Error
	if err != nil {
		return nil, err
	}

	if err := r.attachAuthors(collectReplyAuthors(replies), func(byID map[int64]*ticket.UserRef) {
		for _, reply := range replies {
			reply.Author = byID[reply.AuthorID]
		}
	}); err != nil {
		return nil, err
	}
	return replies, nil
}

// CreateNote saves an internal note
func (r *TicketRepository) CreateNote(note *ticket.InternalNote) error {
	return r.db.Create(note).Error
}

// ListNotes retrieves a ticket's internal notes oldest first, with authors joined
func (r *TicketRepository) ListNotes(ticketID int64) ([]*ticket.InternalNote, error) {
	var notes []*ticket.InternalNote
	err := r.db.Where("ticket_id = ?", ticketID).
		Order("created_at ASC").
		Find(&notes).Error
	if err != nil {
		return nil, err
	}

	authorIDs := make([]int64, 0, len(notes))
	seen := make(map[int64]bool)
	for _, n := range notes {
		if !seen[n.AuthorID] {
			seen[n.AuthorID] = true
			authorIDs = append(authorIDs, n.AuthorID)
		}
	}

	if err := r.attachAuthors(authorIDs, func(byID map[int64]*ticket.UserRef) {
		for _, n := range notes {
			n.Author = byID[n.AuthorID]
		}
	}); err != nil {
		return nil, err
	}
	return notes, nil
}

func collectReplyAuthors(replies []*ticket.Reply) []int64 {
	ids := make([]int64, 0, len(replies))
	seen := make(map[int64]bool)
	for _, reply := range replies {
		if !seen[reply.AuthorID] {
			seen[reply.AuthorID] = true
			ids = append(ids, reply.AuthorID)
		}
	}
	return ids
}

func (r *TicketRepository) attachAuthors(authorIDs []int64, assign func(map[int64]*ticket.UserRef)) error {
	if len(authorIDs) == 0 {
		return nil
	}

	var refs []ticket.UserRef
	err := r.db.Table("users").
		Select("id, full_name, email").
		Where("id IN ?", authorIDs).
		Scan(&refs).Error
	if err != nil {
		return err
	}

	byID := make(map[int64]*ticket.UserRef, len(refs))
	for i := range refs {
		byID[refs[i].ID] = &refs[i]
	}
	assign(byID)
	return nil
}

// UpsertView writes the (user, ticket) view timestamp, inserting or
// overwriting the single row for the pair.
func (r *TicketRepository) UpsertView(userID, ticketID int64, viewedAt time.Time) error {
	view := ticket.UserTicketView{
		UserID:       userID,
		TicketID:     ticketID,
		LastViewedAt: viewedAt,
	}
	return r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "ticket_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"last_viewed_at"}),
	}).Create(&view).Error
}

// GetUserInfo loads the trimmed user projection plus role for assignment checks
func (r *TicketRepository) GetUserInfo(id int64) (*ticket.UserRef, string, error) {
	var ref ticket.UserRef
	var role string
	query := `SELECT id, full_name, email, role FROM users WHERE id = ?`

	row := r.db.Raw(query, id).Row()
	if err := row.Scan(&ref.ID, &ref.FullName, &ref.Email, &role); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, "", internal.ErrUserNotFound
		}
		return nil, "", err
	}
	return &ref, role, nil
}

// EmployeeReplyCandidates returns, per owned ticket, the latest reply
// authored by someone other than the owner alongside the owner's view time.
func (r *TicketRepository) EmployeeReplyCandidates(ownerID int64) ([]ticket.ReplyCandidate, error) {
	var candidates []ticket.ReplyCandidate
	query := `
		SELECT t.id AS ticket_id,
		       t.title AS ticket_title,
		       MAX(r.created_at) AS latest_reply_at,
		       v.last_viewed_at AS last_viewed_at
		FROM tickets t
		JOIN ticket_replies r ON r.ticket_id = t.id AND r.author_id <> t.created_by
		LEFT JOIN user_ticket_views v ON v.ticket_id = t.id AND v.user_id = ?
		WHERE t.created_by = ?
		GROUP BY t.id, t.title, v.last_viewed_at
		ORDER BY latest_reply_at DESC`

	if err := r.db.Raw(query, ownerID, ownerID).Scan(&candidates).Error; err != nil {
		return nil, err
	}
	return candidates, nil
}

// StaffUnviewedTickets returns the tickets the viewer has never opened out
// of the newest open or in-progress ones. The window applies before the
// view filter, so a ticket older than the newest `limit` never surfaces
// even when unviewed.
func (r *TicketRepository) StaffUnviewedTickets(staffID int64, limit int) ([]ticket.TicketHead, error) {
	var heads []ticket.TicketHead
	query := `
		SELECT h.id AS ticket_id,
		       h.title AS ticket_title,
		       h.created_at AS created_at
		FROM (
			SELECT id, title, created_at
			FROM tickets
			WHERE status IN ('open', 'in_progress')
			ORDER BY created_at DESC
			LIMIT ?
		) h
		LEFT JOIN user_ticket_views v ON v.ticket_id = h.id AND v.user_id = ?
		WHERE v.user_id IS NULL
		ORDER BY h.created_at DESC`

	if err := r.db.Raw(query, limit, staffID).Scan(&heads).Error; err != nil {
		return nil, err
	}
	return heads, nil
}

// StaffOwnerReplyCandidates returns, per ticket, the latest reply authored
// by the ticket's creator alongside the viewer's view time.
func (r *TicketRepository) StaffOwnerReplyCandidates(staffID int64) ([]ticket.ReplyCandidate, error) {
	var candidates []ticket.ReplyCandidate
	query := `
		SELECT t.id AS ticket_id,
		       t.title AS ticket_title,
		       MAX(r.created_at) AS latest_reply_at,
		       v.last_viewed_at AS last_viewed_at
		FROM tickets t
		JOIN ticket_replies r ON r.ticket_id = t.id AND r.author_id = t.created_by
		LEFT JOIN user_ticket_views v ON v.ticket_id = t.id AND v.user_id = ?
		GROUP BY t.id, t.title, v.last_viewed_at
		ORDER BY latest_reply_at DESC`

	if err := r.db.Raw(query, staffID).Scan(&candidates).Error; err != nil {
		return nil, err
	}
	return candidates, nil
}

package ticket

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/derheim/helpdesk/internal"
	"github.com/derheim/helpdesk/internal/auth"
	"github.com/derheim/helpdesk/internal/transport"
	"github.com/derheim/helpdesk/pkg/logger"
	"github.com/go-chi/chi"
)

type ServiceAPI interface {
	CreateTicket(ctx context.Context, actor *auth.SessionUser, dto CreateTicketDTO) (*Ticket, error)
	GetMyTicket(actor *auth.SessionUser, id int64) (*TicketDetail, error)
	ListMyTickets(actor *auth.SessionUser, f ListFilters) (*TicketList, error)
	MyTicketCounts(actor *auth.SessionUser) (*StatusCounts, error)
	ListAllTickets(actor *auth.SessionUser, f ListFilters) (*TicketList, error)
	ListAssignedToMe(actor *auth.SessionUser, f ListFilters) (*TicketList, error)
	TicketStats(actor *auth.SessionUser, from, to time.Time) (*Stats, error)
	GetTicketByID(actor *auth.SessionUser, id int64) (*TicketDetail, error)
	UpdateStatus(actor *auth.SessionUser, id int64, dto UpdateStatusDTO) error
	UpdatePriority(actor *auth.SessionUser, id int64, dto UpdatePriorityDTO) error
	Assign(ctx context.Context, actor *auth.SessionUser, id int64, dto AssignTicketDTO) error
	AddReply(actor *auth.SessionUser, ticketID int64, dto AddReplyDTO) (*Reply, error)
	AddInternalNote(actor *auth.SessionUser, ticketID int64, dto AddNoteDTO) (*InternalNote, error)
	ListInternalNotes(actor *auth.SessionUser, ticketID int64) ([]*InternalNote, error)
	RecordView(actor *auth.SessionUser, ticketID int64)
	Notifications(actor *auth.SessionUser) ([]Notification, error)
}

type Handler struct {
	*transport.BaseHandler
	Service ServiceAPI
}

func NewHandler(service ServiceAPI) *Handler {
	lg := logger.LoggerWrapper()
	if lg == nil {
		lg = slog.Default()
	}
	return &Handler{
		BaseHandler: transport.NewBaseHandler(lg),
		Service:     service,
	}
}

const dateLayout = "2006-01-02"

// parseFilters pulls the optional listing filters off the query string.
// Bad values are ignored rather than rejected, matching the permissive read
// policy for listings.
func parseFilters(r *http.Request) ListFilters {
	q := r.URL.Query()
	f := ListFilters{
		Status:   q.Get("status"),
		Priority: q.Get("priority"),
		Limit:    20,
	}

	if v := q.Get("date_from"); v != "" {
		if t, err := time.Parse(dateLayout, v); err == nil {
			f.DateFrom = t
		}
	}
	if v := q.Get("date_to"); v != "" {
		if t, err := time.Parse(dateLayout, v); err == nil {
			// inclusive end of day
			f.DateTo = t.Add(24*time.Hour - time.Nanosecond)
		}
	}
	if v := q.Get("date"); v != "" {
		if t, err := time.Parse(dateLayout, v); err == nil {
			f.DateFrom = t
			f.DateTo = t.Add(24*time.Hour - time.Nanosecond)
		}
	}
	if v := q.Get("limit"); v != "" {
		if l, err := strconv.Atoi(v); err == nil && l > 0 && l <= 100 {
			f.Limit = l
		}
	}
	if v := q.Get("offset"); v != "" {
		if o, err := strconv.Atoi(v); err == nil && o >= 0 {
			f.Offset = o
		}
	}

	return f
}

func (h *Handler) ticketID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	idStr := chi.URLParam(r, "id")
	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil {
		h.Logger.Error("invalid ticket ID", "id", idStr)
		h.WriteError(w, http.StatusBadRequest, "invalid ticket ID")
		return 0, false
	}
	return id, true
}

func (h *Handler) sessionUser(w http.ResponseWriter, r *http.Request) (*auth.SessionUser, bool) {
	user, ok := auth.UserFromContext(r.Context())
	if !ok || user == nil {
		h.Logger.Error("user not found in context")
		h.WriteError(w, http.StatusUnauthorized, "unauthorized")
		return nil, false
	}
	return user, true
}

func (h *Handler) CreateTicket(w http.ResponseWriter, r *http.Request) {
	user, ok := h.sessionUser(w, r)
	if !ok {
		return
	}

	var dto CreateTicketDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		h.Logger.Error("CreateTicket: invalid request body", "error", err)
		h.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	t, err := h.Service.CreateTicket(r.Context(), user, dto)
	if err != nil {
		h.Logger.Error("CreateTicket: service error", "error", err, "user_id", user.ID)
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusCreated, t)
}

func (h *Handler) ListMyTickets(w http.ResponseWriter, r *http.Request) {
	user, ok := h.sessionUser(w, r)
	if !ok {
		return
	}

	list, err := h.Service.ListMyTickets(user, parseFilters(r))
	if err != nil {
		h.Logger.Error("ListMyTickets: service error", "error", err, "user_id", user.ID)
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, list)
}

func (h *Handler) GetMyTicket(w http.ResponseWriter, r *http.Request) {
	user, ok := h.sessionUser(w, r)
	if !ok {
		return
	}

	id, ok := h.ticketID(w, r)
	if !ok {
		return
	}

	detail, err := h.Service.GetMyTicket(user, id)
	if err != nil {
		// Reads that fail authorization render as an empty payload, not an
		// error, so the UI can show its no-access state.
		if errors.Is(err, internal.ErrUnauthorizedAccess) || errors.Is(err, internal.ErrTicketNotFound) {
			h.WriteJSON(w, http.StatusOK, map[string]interface{}{"ticket": nil})
			return
		}
		h.Logger.Error("GetMyTicket: service error", "error", err, "ticket_id", id, "user_id", user.ID)
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, map[string]interface{}{"ticket": detail})
}

func (h *Handler) MyTicketCounts(w http.ResponseWriter, r *http.Request) {
	user, ok := h.sessionUser(w, r)
	if !ok {
		return
	}

	counts, err := h.Service.MyTicketCounts(user)
	if err != nil {
		h.Logger.Error("MyTicketCounts: service error", "error", err, "user_id", user.ID)
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, counts)
}

func (h *Handler) ListAllTickets(w http.ResponseWriter, r *http.Request) {
	user, ok := h.sessionUser(w, r)
	if !ok {
		return
	}

	list, err := h.Service.ListAllTickets(user, parseFilters(r))
	if err != nil {
		if errors.Is(err, internal.ErrUnauthorizedAccess) {
			h.WriteJSON(w, http.StatusOK, &TicketList{Tickets: []*TicketWithRelations{}})
			return
		}
		h.Logger.Error("ListAllTickets: service error", "error", err, "user_id", user.ID)
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, list)
}

func (h *Handler) ListAssignedToMe(w http.ResponseWriter, r *http.Request) {
	user, ok := h.sessionUser(w, r)
	if !ok {
		return
	}

	list, err := h.Service.ListAssignedToMe(user, parseFilters(r))
	if err != nil {
		if errors.Is(err, internal.ErrUnauthorizedAccess) {
			h.WriteJSON(w, http.StatusOK, &TicketList{Tickets: []*TicketWithRelations{}})
			return
		}
		h.Logger.Error("ListAssignedToMe: service error", "error", err, "user_id", user.ID)
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, list)
}

func (h *Handler) TicketStats(w http.ResponseWriter, r *http.Request) {
	user, ok := h.sessionUser(w, r)
	if !ok {
		return
	}

	f := parseFilters(r)
	stats, err := h.Service.TicketStats(user, f.DateFrom, f.DateTo)
	if err != nil {
		h.Logger.Error("TicketStats: service error", "error", err, "user_id", user.ID)
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, stats)
}

func (h *Handler) GetTicket(w http.ResponseWriter, r *http.Request) {
	user, ok := h.sessionUser(w, r)
	if !ok {
		return
	}

	id, ok := h.ticketID(w, r)
	if !ok {
		return
	}

	detail, err := h.Service.GetTicketByID(user, id)
	if err != nil {
		if errors.Is(err, internal.ErrUnauthorizedAccess) || errors.Is(err, internal.ErrTicketNotFound) {
			h.WriteJSON(w, http.StatusOK, map[string]interface{}{"ticket": nil})
			return
		}
		h.Logger.Error("GetTicket: service error", "error", err, "ticket_id", id, "user_id", user.ID)
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, map[string]interface{}{"ticket": detail})
}

func (h *Handler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	user, ok := h.sessionUser(w, r)
	if !ok {
		return
	}

	id, ok := h.ticketID(w, r)
	if !ok {
		return
	}

	var dto UpdateStatusDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		h.Logger.Error("UpdateStatus: invalid request body", "error", err)
		h.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.Service.UpdateStatus(user, id, dto); err != nil {
		h.Logger.Error("UpdateStatus: service error", "error", err, "ticket_id", id, "user_id", user.ID)
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, map[string]string{"status": dto.Status})
}

func (h *Handler) UpdatePriority(w http.ResponseWriter, r *http.Request) {
	user, ok := h.sessionUser(w, r)
	if !ok {
		return
	}

	id, ok := h.ticketID(w, r)
	if !ok {
		return
	}

	var dto UpdatePriorityDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		h.Logger.Error("UpdatePriority: invalid request body", "error", err)
		h.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.Service.UpdatePriority(user, id, dto); err != nil {
		h.Logger.Error("UpdatePriority: service error", "error", err, "ticket_id", id, "user_id", user.ID)
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, map[string]string{"priority": dto.Priority})
}

func (h *Handler) AssignTicket(w http.ResponseWriter, r *http.Request) {
	user, ok := h.sessionUser(w, r)
	if !ok {
		return
	}

	id, ok := h.ticketID(w, r)
	if !ok {
		return
	}

	var dto AssignTicketDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		h.Logger.Error("AssignTicket: invalid request body", "error", err)
		h.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.Service.Assign(r.Context(), user, id, dto); err != nil {
		h.Logger.Error("AssignTicket: service error", "error", err, "ticket_id", id, "user_id", user.ID)
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, map[string]string{"status": "assigned"})
}

func (h *Handler) AddReply(w http.ResponseWriter, r *http.Request) {
	user, ok := h.sessionUser(w, r)
	if !ok {
		return
	}

	id, ok := h.ticketID(w, r)
	if !ok {
		return
	}

	var dto AddReplyDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		h.Logger.Error("AddReply: invalid request body", "error", err)
		h.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	reply, err := h.Service.AddReply(user, id, dto)
	if err != nil {
		h.Logger.Error("AddReply: service error", "error", err, "ticket_id", id, "user_id", user.ID)
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusCreated, reply)
}

func (h *Handler) AddInternalNote(w http.ResponseWriter, r *http.Request) {
	user, ok := h.sessionUser(w, r)
	if !ok {
		return
	}

	id, ok := h.ticketID(w, r)
	if !ok {
		return
	}

	var dto AddNoteDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		h.Logger.Error("AddInternalNote: invalid request body", "error", err)
		h.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	note, err := h.Service.AddInternalNote(user, id, dto)
	if err != nil {
		h.Logger.Error("AddInternalNote: service error", "error", err, "ticket_id", id, "user_id", user.ID)
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusCreated, note)
}

func (h *Handler) ListInternalNotes(w http.ResponseWriter, r *http.Request) {
	user, ok := h.sessionUser(w, r)
	if !ok {
		return
	}

	id, ok := h.ticketID(w, r)
	if !ok {
		return
	}

	notes, err := h.Service.ListInternalNotes(user, id)
	if err != nil {
		if errors.Is(err, internal.ErrUnauthorizedAccess) {
			h.WriteJSON(w, http.StatusOK, map[string]interface{}{"notes": []*InternalNote{}})
			return
		}
		h.Logger.Error("ListInternalNotes: service error", "error", err, "ticket_id", id, "user_id", user.ID)
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, map[string]interface{}{"notes": notes})
}

func (h *Handler) RecordView(w http.ResponseWriter, r *http.Request) {
	user, ok := h.sessionUser(w, r)
	if !ok {
		return
	}

	id, ok := h.ticketID(w, r)
	if !ok {
		return
	}

	h.Service.RecordView(user, id)
	h.WriteJSON(w, http.StatusOK, map[string]string{"status": "recorded"})
}

func (h *Handler) Notifications(w http.ResponseWriter, r *http.Request) {
	user, ok := h.sessionUser(w, r)
	if !ok {
		return
	}

	notifications, err := h.Service.Notifications(user)
	if err != nil {
		h.Logger.Error("Notifications: service error", "error", err, "user_id", user.ID)
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, map[string]interface{}{"notifications": notifications})
}

package attachment

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/derheim/helpdesk/internal"
	"github.com/derheim/helpdesk/internal/auth"
	"github.com/derheim/helpdesk/internal/transport"
	"github.com/derheim/helpdesk/pkg/logger"
	"github.com/go-chi/chi"
)

type ServiceAPI interface {
	Upload(ctx context.Context, actor *auth.SessionUser, ticketID int64, parent ParentRef, fileName, contentType string, data []byte) (*Attachment, error)
	List(ctx context.Context, actor *auth.SessionUser, ticketID int64) ([]*AttachmentView, error)
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

// maxUploadForm bounds multipart parsing slightly above the attachment
// limit so oversize files reach the service and fail with the proper error.
const maxUploadForm = MaxUploadBytes + 1<<20

// parseParent builds the parent reference from the form fields. Setting
// both reply_id and internal_note_id is rejected here, before the union is
// ever constructed.
func parseParent(r *http.Request) (ParentRef, error) {
	replyStr := r.FormValue("reply_id")
	noteStr := r.FormValue("internal_note_id")

	if replyStr != "" && noteStr != "" {
		return ParentRef{}, errors.New("attachment cannot belong to both a reply and a note")
	}

	if replyStr != "" {
		id, err := strconv.ParseInt(replyStr, 10, 64)
		if err != nil {
			return ParentRef{}, errors.New("invalid reply_id")
		}
		return ReplyParent(id), nil
	}

	if noteStr != "" {
		id, err := strconv.ParseInt(noteStr, 10, 64)
		if err != nil {
			return ParentRef{}, errors.New("invalid internal_note_id")
		}
		return NoteParent(id), nil
	}

	return TicketLevel(), nil
}

func (h *Handler) Upload(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.UserFromContext(r.Context())
	if !ok || user == nil {
		h.Logger.Error("Upload: user not found in context")
		h.WriteError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	ticketIDStr := chi.URLParam(r, "id")
	ticketID, err := strconv.ParseInt(ticketIDStr, 10, 64)
	if err != nil {
		h.Logger.Error("Upload: invalid ticket ID", "id", ticketIDStr)
		h.WriteError(w, http.StatusBadRequest, "invalid ticket ID")
		return
	}

	if err := r.ParseMultipartForm(maxUploadForm); err != nil {
		h.Logger.Error("Upload: failed to parse multipart form", "error", err)
		h.WriteError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}

	parent, err := parseParent(r)
	if err != nil {
		h.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		h.Logger.Error("Upload: missing file field", "error", err)
		h.WriteError(w, http.StatusBadRequest, "file is required")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, maxUploadForm))
	if err != nil {
		h.Logger.Error("Upload: failed to read file", "error", err)
		h.WriteError(w, http.StatusBadRequest, "failed to read file")
		return
	}

	contentType := header.Header.Get("Content-Type")

	a, err := h.Service.Upload(r.Context(), user, ticketID, parent, header.Filename, contentType, data)
	if err != nil {
		h.Logger.Error("Upload: service error", "error", err, "ticket_id", ticketID, "user_id", user.ID)
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusCreated, a)
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.UserFromContext(r.Context())
	if !ok || user == nil {
		h.Logger.Error("List: user not found in context")
		h.WriteError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	ticketIDStr := chi.URLParam(r, "id")
	ticketID, err := strconv.ParseInt(ticketIDStr, 10, 64)
	if err != nil {
		h.Logger.Error("List: invalid ticket ID", "id", ticketIDStr)
		h.WriteError(w, http.StatusBadRequest, "invalid ticket ID")
		return
	}

	views, err := h.Service.List(r.Context(), user, ticketID)
	if err != nil {
		if errors.Is(err, internal.ErrUnauthorizedAccess) || errors.Is(err, internal.ErrTicketNotFound) {
			h.WriteJSON(w, http.StatusOK, map[string]interface{}{"attachments": []*AttachmentView{}})
			return
		}
		h.Logger.Error("List: service error", "error", err, "ticket_id", ticketID, "user_id", user.ID)
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, map[string]interface{}{"attachments": views})
}

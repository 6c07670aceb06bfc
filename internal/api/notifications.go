package api

import (
	"net/http"
	"strconv"

	"veripass/internal/common/errors"
	"veripass/internal/models"
	"veripass/internal/notification"
)

type notificationView struct {
	*models.Notification
	TimeAgo string `json:"time_ago"`
}

type roleRequest struct {
	Role string `json:"role"`
}

func queryInt(r *http.Request, name string, def int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, errors.NewValidationError("Invalid query parameter.", errors.FieldError{Field: name, Message: "Enter a whole number."})
	}
	return n, nil
}

func (h *Handler) handleListNotifications(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit", notification.DefaultPageSize)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	page, err := queryInt(r, "page", 1)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	unreadOnly, _ := strconv.ParseBool(r.URL.Query().Get("unread_only"))

	actor, _ := actorFrom(r.Context())
	list, err := h.deps.Inbox.GetUserNotifications(r.Context(), actor.UserID, notification.ListOptions{
		UnreadOnly: unreadOnly,
		Limit:      limit,
		Page:       page,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	unread, err := h.deps.Inbox.UnreadCount(r.Context(), actor.UserID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	now := h.now()
	views := make([]notificationView, 0, len(list))
	for _, n := range list {
		views = append(views, notificationView{n, notification.TimeAgo(n.CreatedAt, now)})
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"notifications": views,
		"unread_count":  unread,
		"page":          page,
	})
}

func (h *Handler) handleUnreadCount(w http.ResponseWriter, r *http.Request) {
	actor, _ := actorFrom(r.Context())
	n, err := h.deps.Inbox.UnreadCount(r.Context(), actor.UserID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"unread_count": n})
}

func (h *Handler) handleMarkRead(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	actor, _ := actorFrom(r.Context())
	if err := h.deps.Inbox.MarkNotificationRead(r.Context(), actor.UserID, id); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleMarkAllRead(w http.ResponseWriter, r *http.Request) {
	actor, _ := actorFrom(r.Context())
	n, err := h.deps.Inbox.MarkAllNotificationsRead(r.Context(), actor.UserID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"updated": n})
}

func (h *Handler) handleBroadcast(w http.ResponseWriter, r *http.Request) {
	var in notification.AnnouncementInput
	if err := decode(r, &in); err != nil {
		h.writeError(w, r, err)
		return
	}
	actor, _ := actorFrom(r.Context())
	res, err := h.deps.Broadcaster.Broadcast(r.Context(), actor, in)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

func (h *Handler) handleChangeRole(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	var req roleRequest
	if err := decode(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	actor, _ := actorFrom(r.Context())
	if err := h.deps.Accounts.ChangeRole(r.Context(), actor, id, req.Role); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleProcessQueue(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit", 0)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	res, err := h.deps.Queue.ProcessEmailQueue(r.Context(), limit)
	if err != nil {
		h.writeError(w, r, errors.NewQueryExecutionFailedError("process email queue", err))
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *Handler) handleRedispatch(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	actor, _ := actorFrom(r.Context())
	res, err := h.deps.Workflow.Redispatch(r.Context(), id, actor)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

package api

import (
	"net/http"

	"github.com/USSTM/asset-backend/internal/middleware"
	"github.com/oapi-codegen/runtime"
)

type NotificationListResponse struct {
	Data        []NotificationResponse `json:"data"`
	Meta        PaginationMeta         `json:"meta"`
	UnreadCount int64                  `json:"unreadCount"`
}

func (s *Server) ListNotifications(w http.ResponseWriter, r *http.Request) {
	user := currentUser(r)

	limit, offset, err := bindPagination(r)
	if err != nil {
		writeError(w, ValidationErr("Invalid pagination parameters", []ErrorDetail{{Message: err.Error()}}))
		return
	}
	var unreadOnly *bool
	if err := runtime.BindQueryParameter("form", true, false, "unreadOnly", r.URL.Query(), &unreadOnly); err != nil {
		writeError(w, ValidationErr("Invalid filter", []ErrorDetail{{Field: "unreadOnly", Message: err.Error()}}))
		return
	}
	onlyUnread := unreadOnly != nil && *unreadOnly

	notifications, err := s.notifier.GetUserNotifications(r.Context(), user.ID, onlyUnread, limit, offset)
	if err != nil {
		s.fail(w, r, "Notification", err)
		return
	}

	unread, err := s.notifier.GetUnreadCount(r.Context(), user.ID)
	if err != nil {
		s.fail(w, r, "Notification", err)
		return
	}

	total := unread
	if !onlyUnread {
		total, err = s.notifier.GetTotalCount(r.Context(), user.ID)
		if err != nil {
			s.fail(w, r, "Notification", err)
			return
		}
	}

	data := make([]NotificationResponse, 0, len(notifications))
	for _, n := range notifications {
		data = append(data, toNotificationResponse(n))
	}
	writeJSON(w, http.StatusOK, NotificationListResponse{
		Data:        data,
		Meta:        buildPaginationMeta(total, limit, offset),
		UnreadCount: unread,
	})
}

func (s *Server) MarkNotificationRead(w http.ResponseWriter, r *http.Request) {
	user := currentUser(r)
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	if err := s.notifier.MarkAsRead(r.Context(), user.ID, id); err != nil {
		s.fail(w, r, "Notification", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) MarkAllNotificationsRead(w http.ResponseWriter, r *http.Request) {
	user := currentUser(r)

	updated, err := s.notifier.MarkAllAsRead(r.Context(), user.ID)
	if err != nil {
		s.fail(w, r, "Notification", err)
		return
	}

	middleware.GetLoggerFromContext(r.Context()).Debug("Notifications marked read", "count", updated)
	writeJSON(w, http.StatusOK, map[string]int64{"updated": updated})
}

package handler

import (
	"net/http"

	"proconnect/internal/app/service"
	"proconnect/internal/common"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

type NotificationHandler struct {
	notificationService *service.NotificationService
	log                 *zap.Logger
}

func NewNotificationHandler(ns *service.NotificationService, log *zap.Logger) *NotificationHandler {
	return &NotificationHandler{notificationService: ns, log: log}
}

func (h *NotificationHandler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.list)
	r.Get("/unread-count", h.unreadCount)
	r.Patch("/read-all", h.markAllRead)
	r.Patch("/{notificationID}/read", h.markRead)
}

func (h *NotificationHandler) list(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	page, pageSize := pagination(r)
	items, err := h.notificationService.List(r.Context(), user.ID, pageSize, (page-1)*pageSize)
	if err != nil {
		common.RespondWithServiceError(w, r, h.log, err)
		return
	}
	common.RespondWithJSON(w, http.StatusOK, items)
}

func (h *NotificationHandler) unreadCount(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	n, err := h.notificationService.UnreadCount(r.Context(), user.ID)
	if err != nil {
		common.RespondWithServiceError(w, r, h.log, err)
		return
	}
	common.RespondWithJSON(w, http.StatusOK, map[string]int{"unread": n})
}

func (h *NotificationHandler) markRead(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	if err := h.notificationService.MarkRead(r.Context(), chi.URLParam(r, "notificationID"), user.ID); err != nil {
		common.RespondWithServiceError(w, r, h.log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *NotificationHandler) markAllRead(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	n, err := h.notificationService.MarkAllRead(r.Context(), user.ID)
	if err != nil {
		common.RespondWithServiceError(w, r, h.log, err)
		return
	}
	common.RespondWithJSON(w, http.StatusOK, map[string]int64{"updated": n})
}

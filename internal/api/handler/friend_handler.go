package handler

import (
	"context"
	"net/http"

	"proconnect/internal/app/service"
	"proconnect/internal/common"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

type FriendHandler struct {
	friendService *service.FriendService
	log           *zap.Logger
}

func NewFriendHandler(fs *service.FriendService, log *zap.Logger) *FriendHandler {
	return &FriendHandler{friendService: fs, log: log}
}

func (h *FriendHandler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.list)
	r.Delete("/{userID}", h.remove)
	r.Get("/requests", h.incoming)
	r.Post("/requests/{id}", h.send)
	r.Post("/requests/{id}/accept", h.accept)
	r.Post("/requests/{id}/reject", h.reject)
	r.Delete("/requests/{id}", h.cancel)
}

func (h *FriendHandler) list(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	friends, err := h.friendService.ListFriends(r.Context(), user.ID)
	if err != nil {
		common.RespondWithServiceError(w, r, h.log, err)
		return
	}
	common.RespondWithJSON(w, http.StatusOK, friends)
}

func (h *FriendHandler) remove(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	if err := h.friendService.Remove(r.Context(), user.ID, chi.URLParam(r, "userID")); err != nil {
		common.RespondWithServiceError(w, r, h.log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *FriendHandler) incoming(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	reqs, err := h.friendService.ListIncoming(r.Context(), user.ID)
	if err != nil {
		common.RespondWithServiceError(w, r, h.log, err)
		return
	}
	common.RespondWithJSON(w, http.StatusOK, reqs)
}

// send targets a user id; the other /requests/{id} routes take a request id.
func (h *FriendHandler) send(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	fr, err := h.friendService.SendRequest(r.Context(), user.ID, chi.URLParam(r, "id"))
	if err != nil {
		common.RespondWithServiceError(w, r, h.log, err)
		return
	}
	common.RespondWithJSON(w, http.StatusCreated, fr)
}

func (h *FriendHandler) accept(w http.ResponseWriter, r *http.Request) {
	h.respond(w, r, h.friendService.Accept)
}

func (h *FriendHandler) reject(w http.ResponseWriter, r *http.Request) {
	h.respond(w, r, h.friendService.Reject)
}

func (h *FriendHandler) cancel(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	if err := h.friendService.Cancel(r.Context(), chi.URLParam(r, "id"), user.ID); err != nil {
		common.RespondWithServiceError(w, r, h.log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *FriendHandler) respond(w http.ResponseWriter, r *http.Request, action func(ctx context.Context, requestID, userID string) error) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	if err := action(r.Context(), chi.URLParam(r, "id"), user.ID); err != nil {
		common.RespondWithServiceError(w, r, h.log, err)
		return
	}
	common.RespondWithJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

package handler

import (
	"net/http"
	"strconv"

	"proconnect/internal/api/middleware"
	"proconnect/internal/app/service"
	"proconnect/internal/common"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

type ContestHandler struct {
	contestService *service.ContestService
	log            *zap.Logger
}

func NewContestHandler(cs *service.ContestService, log *zap.Logger) *ContestHandler {
	return &ContestHandler{contestService: cs, log: log}
}

func (h *ContestHandler) RegisterRoutes(r chi.Router) {
	r.Get("/window", h.window)
	r.Get("/status", h.status)
	r.Get("/history", h.history)
	r.Get("/leaderboard", h.leaderboard)
	r.Post("/register/{projectID}", h.register)
	r.Get("/check-registration/{projectID}", h.checkRegistration)
	r.Get("/certificate-eligibility/{projectID}", h.certificateEligibility)

	r.Group(func(admin chi.Router) {
		admin.Use(middleware.AdminOnly)
		admin.Get("/contestants", h.listContestants)
		admin.Delete("/contestants/{contestantID}", h.removeContestant)
		admin.Post("/ai-pick", h.aiPick)
		admin.Post("/approve", h.approve)
		admin.Post("/send-reminders", h.sendReminders)
		admin.Put("/phase", h.setPhase)
		admin.Delete("/phase", h.clearPhase)
	})
}

func (h *ContestHandler) window(w http.ResponseWriter, r *http.Request) {
	win, err := h.contestService.CurrentWindow(r.Context())
	if err != nil {
		common.RespondWithServiceError(w, r, h.log, err)
		return
	}
	common.RespondWithJSON(w, http.StatusOK, win)
}

func (h *ContestHandler) status(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	st, err := h.contestService.Status(r.Context(), user.ID)
	if err != nil {
		common.RespondWithServiceError(w, r, h.log, err)
		return
	}
	common.RespondWithJSON(w, http.StatusOK, st)
}

func (h *ContestHandler) history(w http.ResponseWriter, r *http.Request) {
	page, pageSize := pagination(r)
	winners, err := h.contestService.History(r.Context(), pageSize, (page-1)*pageSize)
	if err != nil {
		common.RespondWithServiceError(w, r, h.log, err)
		return
	}
	common.RespondWithJSON(w, http.StatusOK, winners)
}

func (h *ContestHandler) leaderboard(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit <= 0 || limit > maxPageSize {
		limit = defaultPageSize
	}
	entries, err := h.contestService.Leaderboard(r.Context(), limit)
	if err != nil {
		common.RespondWithServiceError(w, r, h.log, err)
		return
	}
	common.RespondWithJSON(w, http.StatusOK, entries)
}

func (h *ContestHandler) register(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	c, err := h.contestService.Register(r.Context(), user.ID, chi.URLParam(r, "projectID"))
	if err != nil {
		common.RespondWithServiceError(w, r, h.log, err)
		return
	}
	common.RespondWithJSON(w, http.StatusCreated, c)
}

func (h *ContestHandler) checkRegistration(w http.ResponseWriter, r *http.Request) {
	res, err := h.contestService.CheckRegistration(r.Context(), chi.URLParam(r, "projectID"))
	if err != nil {
		common.RespondWithServiceError(w, r, h.log, err)
		return
	}
	common.RespondWithJSON(w, http.StatusOK, res)
}

func (h *ContestHandler) certificateEligibility(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	res, err := h.contestService.CertificateEligibility(r.Context(), user.ID, chi.URLParam(r, "projectID"))
	if err != nil {
		common.RespondWithServiceError(w, r, h.log, err)
		return
	}
	common.RespondWithJSON(w, http.StatusOK, res)
}

func (h *ContestHandler) listContestants(w http.ResponseWriter, r *http.Request) {
	contestants, err := h.contestService.ListContestants(r.Context())
	if err != nil {
		common.RespondWithServiceError(w, r, h.log, err)
		return
	}
	common.RespondWithJSON(w, http.StatusOK, contestants)
}

func (h *ContestHandler) removeContestant(w http.ResponseWriter, r *http.Request) {
	if err := h.contestService.RemoveContestant(r.Context(), chi.URLParam(r, "contestantID")); err != nil {
		common.RespondWithServiceError(w, r, h.log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *ContestHandler) aiPick(w http.ResponseWriter, r *http.Request) {
	res, err := h.contestService.AiPick(r.Context())
	if err != nil {
		common.RespondWithServiceError(w, r, h.log, err)
		return
	}
	common.RespondWithJSON(w, http.StatusOK, res)
}

func (h *ContestHandler) approve(w http.ResponseWriter, r *http.Request) {
	admin, ok := currentUser(w, r)
	if !ok {
		return
	}
	var req service.ApproveRequest
	if err := common.DecodeJSON(r, &req); err != nil {
		common.RespondWithServiceError(w, r, h.log, err)
		return
	}
	potw, err := h.contestService.Approve(r.Context(), admin.ID, req)
	if err != nil {
		common.RespondWithServiceError(w, r, h.log, err)
		return
	}
	common.RespondWithJSON(w, http.StatusOK, potw)
}

func (h *ContestHandler) sendReminders(w http.ResponseWriter, r *http.Request) {
	admin, ok := currentUser(w, r)
	if !ok {
		return
	}
	var req service.SendRemindersRequest
	if r.ContentLength != 0 {
		if err := common.DecodeJSON(r, &req); err != nil {
			common.RespondWithServiceError(w, r, h.log, err)
			return
		}
	}
	jobID, err := h.contestService.SendReminders(r.Context(), admin.ID, req)
	if err != nil {
		common.RespondWithServiceError(w, r, h.log, err)
		return
	}
	common.RespondWithJSON(w, http.StatusAccepted, map[string]string{"job_id": jobID, "status": "queued"})
}

func (h *ContestHandler) setPhase(w http.ResponseWriter, r *http.Request) {
	var req service.SetPhaseRequest
	if err := common.DecodeJSON(r, &req); err != nil {
		common.RespondWithServiceError(w, r, h.log, err)
		return
	}
	win, err := h.contestService.SetPhase(r.Context(), req)
	if err != nil {
		common.RespondWithServiceError(w, r, h.log, err)
		return
	}
	common.RespondWithJSON(w, http.StatusOK, win)
}

func (h *ContestHandler) clearPhase(w http.ResponseWriter, r *http.Request) {
	win, err := h.contestService.ClearPhase(r.Context())
	if err != nil {
		common.RespondWithServiceError(w, r, h.log, err)
		return
	}
	common.RespondWithJSON(w, http.StatusOK, win)
}

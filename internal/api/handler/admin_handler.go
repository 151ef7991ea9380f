package handler

import (
	"net/http"

	"proconnect/internal/api/middleware"
	"proconnect/internal/app/service"
	"proconnect/internal/common"
	"proconnect/internal/domain/model"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

type AdminHandler struct {
	adminService *service.AdminService
	log          *zap.Logger
}

func NewAdminHandler(as *service.AdminService, log *zap.Logger) *AdminHandler {
	return &AdminHandler{adminService: as, log: log}
}

func (h *AdminHandler) RegisterRoutes(r chi.Router) {
	r.Use(middleware.AdminOnly)
	r.Get("/users", h.listUsers)
	r.Patch("/users/{userID}/suspend", h.suspend)
	r.Patch("/users/{userID}/unsuspend", h.unsuspend)
	r.Get("/reports", h.listReports)
	r.Patch("/reports/{reportID}", h.resolveReport)
}

func (h *AdminHandler) listUsers(w http.ResponseWriter, r *http.Request) {
	page, pageSize := pagination(r)
	res, err := h.adminService.ListUsers(r.Context(), page, pageSize)
	if err != nil {
		common.RespondWithServiceError(w, r, h.log, err)
		return
	}
	common.RespondWithJSON(w, http.StatusOK, res)
}

func (h *AdminHandler) suspend(w http.ResponseWriter, r *http.Request) {
	h.setSuspended(w, r, true)
}

func (h *AdminHandler) unsuspend(w http.ResponseWriter, r *http.Request) {
	h.setSuspended(w, r, false)
}

func (h *AdminHandler) setSuspended(w http.ResponseWriter, r *http.Request, suspended bool) {
	admin, ok := currentUser(w, r)
	if !ok {
		return
	}
	if err := h.adminService.SetSuspended(r.Context(), admin.ID, chi.URLParam(r, "userID"), suspended); err != nil {
		common.RespondWithServiceError(w, r, h.log, err)
		return
	}
	common.RespondWithJSON(w, http.StatusOK, map[string]bool{"is_suspended": suspended})
}

func (h *AdminHandler) listReports(w http.ResponseWriter, r *http.Request) {
	page, pageSize := pagination(r)
	status := model.ReportStatus(r.URL.Query().Get("status"))
	reports, err := h.adminService.ListReports(r.Context(), status, page, pageSize)
	if err != nil {
		common.RespondWithServiceError(w, r, h.log, err)
		return
	}
	common.RespondWithJSON(w, http.StatusOK, reports)
}

func (h *AdminHandler) resolveReport(w http.ResponseWriter, r *http.Request) {
	admin, ok := currentUser(w, r)
	if !ok {
		return
	}
	var req service.ResolveReportRequest
	if err := common.DecodeJSON(r, &req); err != nil {
		common.RespondWithServiceError(w, r, h.log, err)
		return
	}
	rep, err := h.adminService.ResolveReport(r.Context(), admin.ID, chi.URLParam(r, "reportID"), req)
	if err != nil {
		common.RespondWithServiceError(w, r, h.log, err)
		return
	}
	common.RespondWithJSON(w, http.StatusOK, rep)
}

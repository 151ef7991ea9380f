package handler

import (
	"net/http"

	"proconnect/internal/app/service"
	"proconnect/internal/common"
	"proconnect/internal/domain/model"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

type ProjectHandler struct {
	projectService *service.ProjectService
	log            *zap.Logger
}

func NewProjectHandler(ps *service.ProjectService, log *zap.Logger) *ProjectHandler {
	return &ProjectHandler{projectService: ps, log: log}
}

func (h *ProjectHandler) RegisterRoutes(r chi.Router) {
	r.Post("/", h.create)
	r.Get("/", h.feed)
	r.Route("/{projectID}", func(r chi.Router) {
		r.Get("/", h.get)
		r.Patch("/", h.update)
		r.Delete("/", h.delete)
		r.Put("/challenges", h.updateChallenges)
		r.Post("/like", h.toggleLike)
		r.Get("/comments", h.listComments)
		r.Post("/comments", h.addComment)
		r.Post("/comments/{commentID}/replies", h.reply)
		r.Post("/report", h.report)
	})
}

func (h *ProjectHandler) create(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	var req service.CreateProjectRequest
	if err := common.DecodeJSON(r, &req); err != nil {
		common.RespondWithServiceError(w, r, h.log, err)
		return
	}
	p, err := h.projectService.Create(r.Context(), user.ID, req)
	if err != nil {
		common.RespondWithServiceError(w, r, h.log, err)
		return
	}
	common.RespondWithJSON(w, http.StatusCreated, p)
}

func (h *ProjectHandler) feed(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	page, pageSize := pagination(r)
	res, err := h.projectService.Feed(r.Context(), user.ID, page, pageSize)
	if err != nil {
		common.RespondWithServiceError(w, r, h.log, err)
		return
	}
	common.RespondWithJSON(w, http.StatusOK, res)
}

func (h *ProjectHandler) get(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	p, err := h.projectService.Get(r.Context(), chi.URLParam(r, "projectID"), user.ID)
	if err != nil {
		common.RespondWithServiceError(w, r, h.log, err)
		return
	}
	common.RespondWithJSON(w, http.StatusOK, p)
}

func (h *ProjectHandler) update(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	var req service.UpdateProjectRequest
	if err := common.DecodeJSON(r, &req); err != nil {
		common.RespondWithServiceError(w, r, h.log, err)
		return
	}
	p, err := h.projectService.Update(r.Context(), chi.URLParam(r, "projectID"), user.ID, req)
	if err != nil {
		common.RespondWithServiceError(w, r, h.log, err)
		return
	}
	common.RespondWithJSON(w, http.StatusOK, p)
}

func (h *ProjectHandler) delete(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	if err := h.projectService.Delete(r.Context(), chi.URLParam(r, "projectID"), user); err != nil {
		common.RespondWithServiceError(w, r, h.log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *ProjectHandler) updateChallenges(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	var ch model.Challenges
	if err := common.DecodeJSON(r, &ch); err != nil {
		common.RespondWithServiceError(w, r, h.log, err)
		return
	}
	p, err := h.projectService.UpdateChallenges(r.Context(), chi.URLParam(r, "projectID"), user.ID, ch)
	if err != nil {
		common.RespondWithServiceError(w, r, h.log, err)
		return
	}
	common.RespondWithJSON(w, http.StatusOK, p)
}

func (h *ProjectHandler) toggleLike(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	res, err := h.projectService.ToggleLike(r.Context(), chi.URLParam(r, "projectID"), user.ID)
	if err != nil {
		common.RespondWithServiceError(w, r, h.log, err)
		return
	}
	common.RespondWithJSON(w, http.StatusOK, res)
}

func (h *ProjectHandler) listComments(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	comments, err := h.projectService.ListComments(r.Context(), chi.URLParam(r, "projectID"), user.ID)
	if err != nil {
		common.RespondWithServiceError(w, r, h.log, err)
		return
	}
	common.RespondWithJSON(w, http.StatusOK, comments)
}

func (h *ProjectHandler) addComment(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	var req service.CommentRequest
	if err := common.DecodeJSON(r, &req); err != nil {
		common.RespondWithServiceError(w, r, h.log, err)
		return
	}
	c, err := h.projectService.AddComment(r.Context(), chi.URLParam(r, "projectID"), user.ID, req)
	if err != nil {
		common.RespondWithServiceError(w, r, h.log, err)
		return
	}
	common.RespondWithJSON(w, http.StatusCreated, c)
}

func (h *ProjectHandler) reply(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	var req service.CommentRequest
	if err := common.DecodeJSON(r, &req); err != nil {
		common.RespondWithServiceError(w, r, h.log, err)
		return
	}
	c, err := h.projectService.Reply(r.Context(), chi.URLParam(r, "projectID"), chi.URLParam(r, "commentID"), user.ID, req)
	if err != nil {
		common.RespondWithServiceError(w, r, h.log, err)
		return
	}
	common.RespondWithJSON(w, http.StatusCreated, c)
}

func (h *ProjectHandler) report(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	var req service.ReportRequest
	if err := common.DecodeJSON(r, &req); err != nil {
		common.RespondWithServiceError(w, r, h.log, err)
		return
	}
	rep, err := h.projectService.Report(r.Context(), chi.URLParam(r, "projectID"), user.ID, req)
	if err != nil {
		common.RespondWithServiceError(w, r, h.log, err)
		return
	}
	common.RespondWithJSON(w, http.StatusCreated, rep)
}

package handler

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"proconnect/internal/app/service"
	"proconnect/internal/common"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

type CertificateHandler struct {
	certificateService *service.CertificateService
	log                *zap.Logger
}

func NewCertificateHandler(cs *service.CertificateService, log *zap.Logger) *CertificateHandler {
	return &CertificateHandler{certificateService: cs, log: log}
}

func (h *CertificateHandler) RegisterRoutes(r chi.Router) {
	r.Post("/generate", h.generate)
	r.Post("/generate-contest", h.generateContest)
	r.Get("/my-certificates", h.listMine)
	r.Get("/check/{projectID}", h.check)
	r.Get("/{certificateID}/download", h.download)
}

func (h *CertificateHandler) generate(w http.ResponseWriter, r *http.Request) {
	h.issue(w, r, h.certificateService.GenerateCompletion)
}

func (h *CertificateHandler) generateContest(w http.ResponseWriter, r *http.Request) {
	h.issue(w, r, h.certificateService.GenerateContest)
}

type issueFunc func(ctx context.Context, userID string, req service.GenerateCertificateRequest) (*service.GeneratedCertificate, error)

func (h *CertificateHandler) issue(w http.ResponseWriter, r *http.Request, fn issueFunc) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	var req service.GenerateCertificateRequest
	if err := common.DecodeJSON(r, &req); err != nil {
		common.RespondWithServiceError(w, r, h.log, err)
		return
	}
	res, err := fn(r.Context(), user.ID, req)
	if err != nil {
		common.RespondWithServiceError(w, r, h.log, err)
		return
	}
	status := http.StatusOK
	if res.Created {
		status = http.StatusCreated
	}
	common.RespondWithJSON(w, status, res)
}

func (h *CertificateHandler) listMine(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	certs, err := h.certificateService.ListMine(r.Context(), user.ID)
	if err != nil {
		common.RespondWithServiceError(w, r, h.log, err)
		return
	}
	common.RespondWithJSON(w, http.StatusOK, certs)
}

func (h *CertificateHandler) check(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	res, err := h.certificateService.Check(r.Context(), user.ID, chi.URLParam(r, "projectID"))
	if err != nil {
		common.RespondWithServiceError(w, r, h.log, err)
		return
	}
	common.RespondWithJSON(w, http.StatusOK, res)
}

func (h *CertificateHandler) download(w http.ResponseWriter, r *http.Request) {
	h.stream(w, r, chi.URLParam(r, "certificateID"), "attachment")
}

// ServeFile answers the stored file URL (/uploads/certificates/{file}) with
// the same access rules as the download endpoint.
func (h *CertificateHandler) ServeFile(w http.ResponseWriter, r *http.Request) {
	file := chi.URLParam(r, "file")
	if !strings.HasSuffix(file, ".pdf") {
		common.RespondWithServiceError(w, r, h.log, common.NewCodedError(common.ErrNotFound, "certificate_not_found", "certificate not found"))
		return
	}
	h.stream(w, r, strings.TrimSuffix(file, ".pdf"), "inline")
}

func (h *CertificateHandler) stream(w http.ResponseWriter, r *http.Request, certificateID, disposition string) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	cert, f, err := h.certificateService.Open(r.Context(), user, certificateID)
	if err != nil {
		common.RespondWithServiceError(w, r, h.log, err)
		return
	}
	defer f.Close()

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`%s; filename="%s.pdf"`, disposition, cert.CertificateID))
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, f); err != nil {
		h.log.Warn("certificate download interrupted", zap.String("certificate_id", cert.CertificateID), zap.Error(err))
	}
}

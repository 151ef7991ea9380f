package service

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"math/big"
	"strings"

	"proconnect/internal/common"
	"proconnect/internal/domain/contest"
	"proconnect/internal/domain/model"
	"proconnect/internal/domain/repository"
	"proconnect/internal/platform/pdf"
	"proconnect/internal/platform/storage"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	certificateDir     = "certificates"
	certificateIDChars = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
)

type CertificateService struct {
	certRepo    repository.CertificateRepository
	projectRepo repository.ProjectRepository
	contestRepo repository.ContestRepository
	userRepo    repository.UserRepository
	files       FileStore
	clock       contest.Clock
	appName     string
	log         *zap.Logger
}

func NewCertificateService(
	certRepo repository.CertificateRepository,
	projectRepo repository.ProjectRepository,
	contestRepo repository.ContestRepository,
	userRepo repository.UserRepository,
	files FileStore,
	clock contest.Clock,
	appName string,
	log *zap.Logger,
) *CertificateService {
	return &CertificateService{
		certRepo:    certRepo,
		projectRepo: projectRepo,
		contestRepo: contestRepo,
		userRepo:    userRepo,
		files:       files,
		clock:       clock,
		appName:     appName,
		log:         log,
	}
}

type GenerateCertificateRequest struct {
	ProjectID string `json:"project_id" validate:"required,uuid"`
}

type GeneratedCertificate struct {
	Certificate *model.Certificate `json:"certificate"`
	Created     bool               `json:"created"`
}

type CertificateCheck struct {
	HasCertificate bool                `json:"has_certificate"`
	Certificates   []model.Certificate `json:"certificates"`
}

// GenerateCompletion issues the completion certificate of a project, once.
func (s *CertificateService) GenerateCompletion(ctx context.Context, userID string, req GenerateCertificateRequest) (*GeneratedCertificate, error) {
	if err := common.Validate(req); err != nil {
		return nil, err
	}
	p, owner, err := s.ownedProject(ctx, userID, req.ProjectID)
	if err != nil {
		return nil, err
	}
	now := s.clock.Now()
	suffix, err := randomCode(6)
	if err != nil {
		return nil, err
	}
	certID := fmt.Sprintf("PC-%d-%s", now.Unix(), suffix)
	return s.issue(ctx, owner, p, model.CertificateCompletion, certID, nil, nil, pdf.ThemeCompletion)
}

// GenerateContest issues the winner or participant certificate the project earned.
func (s *CertificateService) GenerateContest(ctx context.Context, userID string, req GenerateCertificateRequest) (*GeneratedCertificate, error) {
	if err := common.Validate(req); err != nil {
		return nil, err
	}
	p, owner, err := s.ownedProject(ctx, userID, req.ProjectID)
	if err != nil {
		return nil, err
	}
	c, err := s.contestRepo.LatestAwarded(ctx, p.ID)
	if errors.Is(err, common.ErrNotFound) {
		return nil, common.NewCodedError(common.ErrForbidden, "not_eligible", "project is not eligible for a contest certificate")
	}
	if err != nil {
		return nil, err
	}

	theme := pdf.ThemeParticipant
	if c.CertificateType == model.CertificateWinner {
		theme = pdf.ThemeWinner
	}
	suffix, err := randomCode(6)
	if err != nil {
		return nil, err
	}
	certID := fmt.Sprintf("NIAT-POTW-%s-W%d-%d-%s", strings.ToUpper(string(c.CertificateType)), c.WeekNumber, c.Year, suffix)
	week, year := c.WeekNumber, c.Year
	return s.issue(ctx, owner, p, c.CertificateType, certID, &week, &year, theme)
}

func (s *CertificateService) ownedProject(ctx context.Context, userID, projectID string) (*model.Project, *model.User, error) {
	p, err := s.projectRepo.FindByID(ctx, projectID, userID)
	if err != nil {
		return nil, nil, err
	}
	if p.OwnerID != userID {
		return nil, nil, common.NewCodedError(common.ErrForbidden, "not_owner", "only the project owner can generate certificates")
	}
	owner, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return nil, nil, err
	}
	return p, owner, nil
}

func (s *CertificateService) issue(
	ctx context.Context,
	owner *model.User,
	p *model.Project,
	certType model.CertificateType,
	certID string,
	week, year *int,
	theme pdf.Theme,
) (*GeneratedCertificate, error) {
	existing, err := s.certRepo.FindByUserProjectType(ctx, owner.ID, p.ID, certType)
	if err == nil {
		return &GeneratedCertificate{Certificate: existing}, nil
	}
	if !errors.Is(err, common.ErrNotFound) {
		return nil, err
	}

	now := s.clock.Now()
	data := pdf.CertificateData{
		CertificateID: certID,
		RecipientName: displayName(owner),
		ProjectTitle:  p.Title,
		IssuedAt:      now,
		AppName:       s.appName,
	}
	if week != nil && year != nil {
		data.WeekNumber, data.Year = *week, *year
	}
	body, err := pdf.RenderCertificate(theme, data)
	if err != nil {
		return nil, common.Errorf("failed to render certificate: %w", err)
	}
	rel := certificateDir + "/" + certID + ".pdf"
	if err := s.files.Save(rel, body); err != nil {
		return nil, common.Errorf("failed to store certificate: %w", err)
	}

	projectID := p.ID
	cert := &model.Certificate{
		ID:              uuid.NewString(),
		CertificateID:   certID,
		UserID:          owner.ID,
		ProjectID:       &projectID,
		CertificateType: certType,
		WeekNumber:      week,
		Year:            year,
		ProjectTitle:    p.Title,
		RecipientName:   data.RecipientName,
		FileURL:         "/uploads/" + rel,
		IssuedAt:        now,
	}
	if err := s.certRepo.Create(ctx, cert); err != nil {
		if rerr := s.files.Remove(rel); rerr != nil {
			s.log.Warn("failed to remove orphaned certificate file", zap.String("path", rel), zap.Error(rerr))
		}
		if !errors.Is(err, common.ErrConflict) && !common.IsUniqueViolation(err) {
			return nil, err
		}
		// Lost a race with a concurrent request; the stored row wins.
		existing, ferr := s.certRepo.FindByUserProjectType(ctx, owner.ID, p.ID, certType)
		if ferr != nil {
			return nil, common.Errorf("failed to re-read certificate: %w", ferr)
		}
		return &GeneratedCertificate{Certificate: existing}, nil
	}

	s.log.Info("certificate issued",
		zap.String("certificate_id", certID), zap.String("user_id", owner.ID), zap.String("type", string(certType)))
	return &GeneratedCertificate{Certificate: cert, Created: true}, nil
}

func (s *CertificateService) ListMine(ctx context.Context, userID string) ([]model.Certificate, error) {
	return s.certRepo.ListByUser(ctx, userID)
}

func (s *CertificateService) Check(ctx context.Context, userID, projectID string) (*CertificateCheck, error) {
	certs, err := s.certRepo.ListByUserProject(ctx, userID, projectID)
	if err != nil {
		return nil, err
	}
	return &CertificateCheck{HasCertificate: len(certs) > 0, Certificates: certs}, nil
}

// Open returns the stored PDF of certificateID. Only its owner or an admin may read it.
func (s *CertificateService) Open(ctx context.Context, requester *model.User, certificateID string) (*model.Certificate, io.ReadCloser, error) {
	cert, err := s.certRepo.FindByCertificateID(ctx, certificateID)
	if errors.Is(err, common.ErrNotFound) {
		return nil, nil, common.NewCodedError(common.ErrNotFound, "certificate_not_found", "certificate not found")
	}
	if err != nil {
		return nil, nil, err
	}
	if cert.UserID != requester.ID && !requester.IsAdmin() {
		return nil, nil, common.NewCodedError(common.ErrForbidden, "not_owner", "you cannot download this certificate")
	}
	f, err := s.files.Open(certificateDir + "/" + cert.CertificateID + ".pdf")
	if errors.Is(err, storage.ErrFileMissing) {
		s.log.Warn("certificate file missing", zap.String("certificate_id", cert.CertificateID))
		return nil, nil, common.NewCodedError(common.ErrNotFound, "certificate_file_missing", "certificate file is missing")
	}
	if err != nil {
		return nil, nil, common.Errorf("failed to open certificate: %w", err)
	}
	return cert, f, nil
}

func randomCode(n int) (string, error) {
	var b strings.Builder
	n36 := big.NewInt(int64(len(certificateIDChars)))
	for i := 0; i < n; i++ {
		idx, err := rand.Int(rand.Reader, n36)
		if err != nil {
			return "", common.Errorf("failed to generate certificate id: %w", err)
		}
		b.WriteByte(certificateIDChars[idx.Int64()])
	}
	return b.String(), nil
}

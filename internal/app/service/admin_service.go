package service

import (
	"context"
	"fmt"

	"proconnect/internal/common"
	"proconnect/internal/domain/model"
	"proconnect/internal/domain/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type AdminService struct {
	userRepo   repository.UserRepository
	reportRepo repository.ReportRepository
	notifRepo  repository.NotificationRepository
	log        *zap.Logger
}

func NewAdminService(
	userRepo repository.UserRepository,
	reportRepo repository.ReportRepository,
	notifRepo repository.NotificationRepository,
	log *zap.Logger,
) *AdminService {
	return &AdminService{userRepo: userRepo, reportRepo: reportRepo, notifRepo: notifRepo, log: log}
}

type UserPage struct {
	Users    []model.User `json:"users"`
	Total    int          `json:"total"`
	Page     int          `json:"page"`
	PageSize int          `json:"page_size"`
}

type ResolveReportRequest struct {
	Status model.ReportStatus `json:"status" validate:"required,oneof=resolved dismissed"`
}

func (s *AdminService) ListUsers(ctx context.Context, page, pageSize int) (*UserPage, error) {
	users, total, err := s.userRepo.List(ctx, pageSize, (page-1)*pageSize)
	if err != nil {
		return nil, err
	}
	return &UserPage{Users: users, Total: total, Page: page, PageSize: pageSize}, nil
}

func (s *AdminService) SetSuspended(ctx context.Context, adminID, userID string, suspended bool) error {
	if adminID == userID {
		return common.NewCodedError(common.ErrBadRequest, "self_suspend", "admins cannot suspend themselves")
	}
	target, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return err
	}
	if target.IsAdmin() {
		return common.NewCodedError(common.ErrForbidden, "target_is_admin", "the administrator cannot be suspended")
	}
	if err := s.userRepo.SetSuspended(ctx, userID, suspended); err != nil {
		return common.Errorf("failed to update suspension: %w", err)
	}
	s.log.Info("user suspension changed", zap.String("user_id", userID), zap.Bool("suspended", suspended), zap.String("by", adminID))
	return nil
}

func (s *AdminService) ListReports(ctx context.Context, status model.ReportStatus, page, pageSize int) ([]model.Report, error) {
	return s.reportRepo.List(ctx, status, pageSize, (page-1)*pageSize)
}

// ResolveReport closes a report and tells the reporter.
func (s *AdminService) ResolveReport(ctx context.Context, adminID, reportID string, req ResolveReportRequest) (*model.Report, error) {
	if err := common.Validate(req); err != nil {
		return nil, err
	}
	rep, err := s.reportRepo.FindByID(ctx, reportID)
	if err != nil {
		return nil, err
	}
	if rep.Status != model.ReportOpen {
		return nil, common.NewCodedError(common.ErrConflict, "report_closed", "report is already closed")
	}
	if err := s.reportRepo.UpdateStatus(ctx, reportID, req.Status, adminID); err != nil {
		return nil, common.Errorf("failed to update report: %w", err)
	}
	rep.Status = req.Status
	rep.ResolvedBy = &adminID

	n := &model.Notification{
		ID:             uuid.NewString(),
		UserID:         rep.ReporterID,
		Type:           model.NotificationReportResolved,
		Message:        fmt.Sprintf("Your report was %s by the moderators", req.Status),
		RelatedProject: &rep.ProjectID,
	}
	if err := s.notifRepo.Create(ctx, nil, n); err != nil {
		s.log.Warn("failed to notify reporter", zap.String("report_id", reportID), zap.Error(err))
	}
	return rep, nil
}

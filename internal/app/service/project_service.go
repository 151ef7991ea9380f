package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"proconnect/internal/common"
	"proconnect/internal/domain/model"
	"proconnect/internal/domain/repository"

	"github.com/google/uuid"
	"github.com/gosimple/slug"
	"go.uber.org/zap"
)

type ProjectService struct {
	projectRepo repository.ProjectRepository
	friendRepo  repository.FriendRepository
	notifRepo   repository.NotificationRepository
	reportRepo  repository.ReportRepository
	log         *zap.Logger
}

func NewProjectService(
	projectRepo repository.ProjectRepository,
	friendRepo repository.FriendRepository,
	notifRepo repository.NotificationRepository,
	reportRepo repository.ReportRepository,
	log *zap.Logger,
) *ProjectService {
	return &ProjectService{
		projectRepo: projectRepo,
		friendRepo:  friendRepo,
		notifRepo:   notifRepo,
		reportRepo:  reportRepo,
		log:         log,
	}
}

type CreateProjectRequest struct {
	Title       string                  `json:"title" validate:"required,notblank,max=200"`
	Description string                  `json:"description" validate:"max=5000"`
	TechStack   []string                `json:"tech_stack" validate:"max=30,dive,notblank,max=40"`
	GithubURL   *string                 `json:"github_url,omitempty" validate:"omitempty,url"`
	LiveURL     *string                 `json:"live_url,omitempty" validate:"omitempty,url"`
	ImageURL    *string                 `json:"image_url,omitempty" validate:"omitempty,url"`
	Visibility  model.ProjectVisibility `json:"visibility" validate:"omitempty,oneof=public friends"`
	Challenges  *model.Challenges       `json:"challenges,omitempty"`
}

type UpdateProjectRequest struct {
	Title       *string                  `json:"title,omitempty" validate:"omitempty,notblank,max=200"`
	Description *string                  `json:"description,omitempty" validate:"omitempty,max=5000"`
	TechStack   *[]string                `json:"tech_stack,omitempty" validate:"omitempty,max=30,dive,notblank,max=40"`
	GithubURL   *string                  `json:"github_url,omitempty" validate:"omitempty,url"`
	LiveURL     *string                  `json:"live_url,omitempty" validate:"omitempty,url"`
	ImageURL    *string                  `json:"image_url,omitempty" validate:"omitempty,url"`
	Visibility  *model.ProjectVisibility `json:"visibility,omitempty" validate:"omitempty,oneof=public friends"`
}

type CommentRequest struct {
	Text string `json:"text" validate:"required,notblank,max=2000"`
}

type ReportRequest struct {
	Reason string `json:"reason" validate:"required,notblank,max=1000"`
}

type LikeResult struct {
	Liked      bool `json:"liked"`
	LikesCount int  `json:"likes_count"`
}

type ProjectPage struct {
	Projects []model.Project `json:"projects"`
	Total    int             `json:"total"`
	Page     int             `json:"page"`
	PageSize int             `json:"page_size"`
}

func (s *ProjectService) Create(ctx context.Context, ownerID string, req CreateProjectRequest) (*model.Project, error) {
	if err := common.Validate(req); err != nil {
		return nil, err
	}
	p := &model.Project{
		ID:          uuid.NewString(),
		OwnerID:     ownerID,
		Title:       strings.TrimSpace(req.Title),
		Slug:        slug.Make(req.Title),
		Description: req.Description,
		TechStack:   req.TechStack,
		GithubURL:   req.GithubURL,
		LiveURL:     req.LiveURL,
		ImageURL:    req.ImageURL,
		Visibility:  req.Visibility,
	}
	if p.Visibility == "" {
		p.Visibility = model.VisibilityPublic
	}
	if p.TechStack == nil {
		p.TechStack = []string{}
	}
	if req.Challenges != nil {
		p.Challenges = *req.Challenges
	}
	if err := s.projectRepo.Create(ctx, p); err != nil {
		return nil, common.Errorf("failed to create project: %w", err)
	}
	return s.projectRepo.FindByID(ctx, p.ID, ownerID)
}

// Get returns the project if viewerID may see it.
func (s *ProjectService) Get(ctx context.Context, projectID, viewerID string) (*model.Project, error) {
	p, err := s.projectRepo.FindByID(ctx, projectID, viewerID)
	if err != nil {
		return nil, err
	}
	if err := s.checkVisible(ctx, p, viewerID); err != nil {
		return nil, err
	}
	return p, nil
}

func (s *ProjectService) checkVisible(ctx context.Context, p *model.Project, viewerID string) error {
	if p.Visibility == model.VisibilityPublic || p.OwnerID == viewerID {
		return nil
	}
	friends, err := s.friendRepo.AreFriends(ctx, viewerID, p.OwnerID)
	if err != nil {
		return fmt.Errorf("failed to check friendship: %w", err)
	}
	if !friends {
		return common.NewCodedError(common.ErrForbidden, "project_not_visible", "this project is only visible to the owner's friends")
	}
	return nil
}

func (s *ProjectService) Feed(ctx context.Context, viewerID string, page, pageSize int) (*ProjectPage, error) {
	projects, total, err := s.projectRepo.ListFeed(ctx, viewerID, pageSize, (page-1)*pageSize)
	if err != nil {
		return nil, err
	}
	return &ProjectPage{Projects: projects, Total: total, Page: page, PageSize: pageSize}, nil
}

func (s *ProjectService) ListByOwner(ctx context.Context, ownerID, viewerID string) ([]model.Project, error) {
	return s.projectRepo.ListByOwner(ctx, ownerID, viewerID)
}

// owned loads a project and checks that userID owns it.
func (s *ProjectService) owned(ctx context.Context, projectID, userID string) (*model.Project, error) {
	p, err := s.projectRepo.FindByID(ctx, projectID, userID)
	if err != nil {
		return nil, err
	}
	if p.OwnerID != userID {
		return nil, common.NewCodedError(common.ErrForbidden, "not_owner", "only the project owner can do this")
	}
	return p, nil
}

func (s *ProjectService) Update(ctx context.Context, projectID, userID string, req UpdateProjectRequest) (*model.Project, error) {
	if err := common.Validate(req); err != nil {
		return nil, err
	}
	p, err := s.owned(ctx, projectID, userID)
	if err != nil {
		return nil, err
	}
	if req.Title != nil {
		p.Title = strings.TrimSpace(*req.Title)
		p.Slug = slug.Make(p.Title)
	}
	if req.Description != nil {
		p.Description = *req.Description
	}
	if req.TechStack != nil {
		p.TechStack = *req.TechStack
	}
	if req.GithubURL != nil {
		p.GithubURL = req.GithubURL
	}
	if req.LiveURL != nil {
		p.LiveURL = req.LiveURL
	}
	if req.ImageURL != nil {
		p.ImageURL = req.ImageURL
	}
	if req.Visibility != nil {
		p.Visibility = *req.Visibility
	}
	if err := s.projectRepo.Update(ctx, p); err != nil {
		return nil, common.Errorf("failed to update project: %w", err)
	}
	return p, nil
}

func (s *ProjectService) UpdateChallenges(ctx context.Context, projectID, userID string, ch model.Challenges) (*model.Project, error) {
	p, err := s.owned(ctx, projectID, userID)
	if err != nil {
		return nil, err
	}
	if err := s.projectRepo.UpdateChallenges(ctx, projectID, ch); err != nil {
		return nil, common.Errorf("failed to update challenges: %w", err)
	}
	p.Challenges = ch
	return p, nil
}

// Delete removes a project. Admins may delete any project.
func (s *ProjectService) Delete(ctx context.Context, projectID string, user *model.User) error {
	p, err := s.projectRepo.FindByID(ctx, projectID, user.ID)
	if err != nil {
		return err
	}
	if p.OwnerID != user.ID && !user.IsAdmin() {
		return common.NewCodedError(common.ErrForbidden, "not_owner", "only the project owner can do this")
	}
	if err := s.projectRepo.Delete(ctx, projectID); err != nil {
		return common.Errorf("failed to delete project: %w", err)
	}
	s.log.Info("project deleted", zap.String("project_id", projectID), zap.String("by", user.ID))
	return nil
}

func (s *ProjectService) ToggleLike(ctx context.Context, projectID, userID string) (*LikeResult, error) {
	p, err := s.Get(ctx, projectID, userID)
	if err != nil {
		return nil, err
	}
	liked, count, err := s.projectRepo.ToggleLike(ctx, projectID, userID)
	if err != nil {
		return nil, common.Errorf("failed to toggle like: %w", err)
	}
	if liked && p.OwnerID != userID {
		s.notify(ctx, &model.Notification{
			UserID:         p.OwnerID,
			Type:           model.NotificationLike,
			Message:        fmt.Sprintf("Someone liked your project %q", p.Title),
			RelatedProject: &p.ID,
			RelatedUser:    &userID,
		})
	}
	return &LikeResult{Liked: liked, LikesCount: count}, nil
}

func (s *ProjectService) AddComment(ctx context.Context, projectID, userID string, req CommentRequest) (*model.Comment, error) {
	return s.comment(ctx, projectID, userID, nil, req)
}

// Reply answers a comment. Replies to replies attach to the top-level comment.
func (s *ProjectService) Reply(ctx context.Context, projectID, commentID, userID string, req CommentRequest) (*model.Comment, error) {
	parent, err := s.projectRepo.FindComment(ctx, commentID)
	if err != nil {
		return nil, err
	}
	if parent.ProjectID != projectID {
		return nil, common.ErrNotFound
	}
	parentID := parent.ID
	if parent.ParentID != nil {
		parentID = *parent.ParentID
	}
	return s.comment(ctx, projectID, userID, &parentID, req)
}

func (s *ProjectService) comment(ctx context.Context, projectID, userID string, parentID *string, req CommentRequest) (*model.Comment, error) {
	if err := common.Validate(req); err != nil {
		return nil, err
	}
	p, err := s.Get(ctx, projectID, userID)
	if err != nil {
		return nil, err
	}
	c := &model.Comment{
		ID:        uuid.NewString(),
		ProjectID: projectID,
		UserID:    userID,
		ParentID:  parentID,
		Text:      strings.TrimSpace(req.Text),
	}
	if err := s.projectRepo.CreateComment(ctx, c); err != nil {
		return nil, common.Errorf("failed to add comment: %w", err)
	}
	if p.OwnerID != userID {
		s.notify(ctx, &model.Notification{
			UserID:         p.OwnerID,
			Type:           model.NotificationComment,
			Message:        fmt.Sprintf("New comment on your project %q", p.Title),
			RelatedProject: &p.ID,
			RelatedUser:    &userID,
		})
	}
	return c, nil
}

// ListComments returns top-level comments with their replies nested.
func (s *ProjectService) ListComments(ctx context.Context, projectID, viewerID string) ([]model.Comment, error) {
	if _, err := s.Get(ctx, projectID, viewerID); err != nil {
		return nil, err
	}
	flat, err := s.projectRepo.ListComments(ctx, projectID)
	if err != nil {
		return nil, err
	}
	return nestComments(flat), nil
}

func nestComments(flat []model.Comment) []model.Comment {
	index := make(map[string]int)
	top := []model.Comment{}
	for _, c := range flat {
		if c.ParentID == nil {
			index[c.ID] = len(top)
			top = append(top, c)
		}
	}
	for _, c := range flat {
		if c.ParentID == nil {
			continue
		}
		if i, ok := index[*c.ParentID]; ok {
			top[i].Replies = append(top[i].Replies, c)
		}
	}
	return top
}

func (s *ProjectService) Report(ctx context.Context, projectID, userID string, req ReportRequest) (*model.Report, error) {
	if err := common.Validate(req); err != nil {
		return nil, err
	}
	p, err := s.Get(ctx, projectID, userID)
	if err != nil {
		return nil, err
	}
	if p.OwnerID == userID {
		return nil, common.NewCodedError(common.ErrBadRequest, "own_project", "you cannot report your own project")
	}
	rep := &model.Report{
		ID:         uuid.NewString(),
		ReporterID: userID,
		ProjectID:  projectID,
		Reason:     strings.TrimSpace(req.Reason),
		Status:     model.ReportOpen,
	}
	if err := s.reportRepo.Create(ctx, rep); err != nil {
		return nil, common.Errorf("failed to create report: %w", err)
	}
	return rep, nil
}

// notify writes a best-effort notification; failures are logged only.
func (s *ProjectService) notify(ctx context.Context, n *model.Notification) {
	n.ID = uuid.NewString()
	if err := s.notifRepo.Create(ctx, nil, n); err != nil && !errors.Is(err, context.Canceled) {
		s.log.Warn("failed to create notification", zap.String("type", string(n.Type)), zap.Error(err))
	}
}

package service

import (
	"context"
	"fmt"
	"strings"

	"proconnect/internal/common"
	"proconnect/internal/domain/model"
	"proconnect/internal/domain/repository"
)

type UserService struct {
	userRepo   repository.UserRepository
	friendRepo repository.FriendRepository
}

func NewUserService(userRepo repository.UserRepository, friendRepo repository.FriendRepository) *UserService {
	return &UserService{userRepo: userRepo, friendRepo: friendRepo}
}

type UpdateProfileRequest struct {
	FullName  *string   `json:"full_name,omitempty" validate:"omitempty,notblank,max=120"`
	Bio       *string   `json:"bio,omitempty" validate:"omitempty,max=1000"`
	College   *string   `json:"college,omitempty" validate:"omitempty,max=200"`
	Skills    *[]string `json:"skills,omitempty" validate:"omitempty,max=30,dive,notblank,max=40"`
	AvatarURL *string   `json:"avatar_url,omitempty" validate:"omitempty,url"`
}

// Profile is a user as seen by another user.
type Profile struct {
	*model.User
	IsFriend bool `json:"is_friend"`
}

func (s *UserService) Me(ctx context.Context, userID string) (*model.User, error) {
	return s.userRepo.FindByID(ctx, userID)
}

func (s *UserService) UpdateMe(ctx context.Context, userID string, req UpdateProfileRequest) (*model.User, error) {
	if err := common.Validate(req); err != nil {
		return nil, err
	}
	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if req.FullName != nil {
		user.FullName = strings.TrimSpace(*req.FullName)
	}
	if req.Bio != nil {
		user.Bio = *req.Bio
	}
	if req.College != nil {
		user.College = *req.College
	}
	if req.Skills != nil {
		user.Skills = *req.Skills
	}
	if req.AvatarURL != nil {
		user.AvatarURL = req.AvatarURL
	}
	if err := s.userRepo.UpdateProfile(ctx, user); err != nil {
		return nil, common.Errorf("failed to update profile: %w", err)
	}
	return user, nil
}

func (s *UserService) GetProfile(ctx context.Context, viewerID, userID string) (*Profile, error) {
	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user.IsSuspended && viewerID != userID {
		return nil, common.ErrNotFound
	}
	p := &Profile{User: user}
	if viewerID != userID {
		user.Email = ""
		p.IsFriend, err = s.friendRepo.AreFriends(ctx, viewerID, userID)
		if err != nil {
			return nil, fmt.Errorf("failed to check friendship: %w", err)
		}
	}
	return p, nil
}

func (s *UserService) Search(ctx context.Context, term string) ([]model.UserSummary, error) {
	term = strings.TrimSpace(term)
	if len(term) < 2 {
		return nil, common.NewCodedError(common.ErrBadRequest, "query_too_short", "search query must have at least 2 characters")
	}
	users, err := s.userRepo.Search(ctx, term, 20)
	if err != nil {
		return nil, err
	}
	out := make([]model.UserSummary, 0, len(users))
	for i := range users {
		out = append(out, users[i].Summary())
	}
	return out, nil
}

package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"proconnect/internal/common"
	"proconnect/internal/domain/model"
	"proconnect/internal/domain/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type FriendService struct {
	friendRepo repository.FriendRepository
	userRepo   repository.UserRepository
	notifRepo  repository.NotificationRepository
	tx         repository.TxRunner
	log        *zap.Logger
}

func NewFriendService(
	friendRepo repository.FriendRepository,
	userRepo repository.UserRepository,
	notifRepo repository.NotificationRepository,
	tx repository.TxRunner,
	log *zap.Logger,
) *FriendService {
	return &FriendService{friendRepo: friendRepo, userRepo: userRepo, notifRepo: notifRepo, tx: tx, log: log}
}

func (s *FriendService) SendRequest(ctx context.Context, senderID, receiverID string) (*model.FriendRequest, error) {
	if senderID == receiverID {
		return nil, common.NewCodedError(common.ErrBadRequest, "self_request", "you cannot befriend yourself")
	}
	receiver, err := s.userRepo.FindByID(ctx, receiverID)
	if err != nil {
		return nil, err
	}
	if receiver.IsSuspended {
		return nil, common.ErrNotFound
	}
	friends, err := s.friendRepo.AreFriends(ctx, senderID, receiverID)
	if err != nil {
		return nil, fmt.Errorf("failed to check friendship: %w", err)
	}
	if friends {
		return nil, common.NewCodedError(common.ErrConflict, "already_friends", "you are already friends")
	}

	fr := &model.FriendRequest{
		ID:         uuid.NewString(),
		SenderID:   senderID,
		ReceiverID: receiverID,
		Status:     model.FriendRequestPending,
	}
	if err := s.friendRepo.CreateRequest(ctx, fr); err != nil {
		return nil, err
	}

	n := &model.Notification{
		ID:          uuid.NewString(),
		UserID:      receiverID,
		Type:        model.NotificationFriendRequest,
		Message:     "You have a new friend request",
		RelatedUser: &senderID,
	}
	if err := s.notifRepo.Create(ctx, nil, n); err != nil {
		s.log.Warn("failed to notify friend request", zap.Error(err))
	}
	return fr, nil
}

func (s *FriendService) ListIncoming(ctx context.Context, userID string) ([]model.FriendRequest, error) {
	return s.friendRepo.ListIncoming(ctx, userID)
}

// received loads a request addressed to userID.
func (s *FriendService) received(ctx context.Context, requestID, userID string) (*model.FriendRequest, error) {
	fr, err := s.friendRepo.FindRequest(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if fr.ReceiverID != userID {
		return nil, common.NewCodedError(common.ErrForbidden, "not_receiver", "only the receiver can answer this request")
	}
	return fr, nil
}

// Accept marks the request accepted and stores both friendship rows in one transaction.
func (s *FriendService) Accept(ctx context.Context, requestID, userID string) error {
	fr, err := s.received(ctx, requestID, userID)
	if err != nil {
		return err
	}
	err = s.tx.WithinTx(ctx, func(tx *sql.Tx) error {
		if err := s.friendRepo.UpdateRequestStatus(ctx, tx, fr.ID, model.FriendRequestAccepted); err != nil {
			return err
		}
		if err := s.friendRepo.AddFriendship(ctx, tx, fr.SenderID, fr.ReceiverID); err != nil {
			return err
		}
		return s.notifRepo.Create(ctx, tx, &model.Notification{
			ID:          uuid.NewString(),
			UserID:      fr.SenderID,
			Type:        model.NotificationFriendAccept,
			Message:     "Your friend request was accepted",
			RelatedUser: &userID,
		})
	})
	var coded *common.CodedError
	if err != nil && !errors.As(err, &coded) {
		return common.Errorf("failed to accept friend request: %w", err)
	}
	return err
}

func (s *FriendService) Reject(ctx context.Context, requestID, userID string) error {
	fr, err := s.received(ctx, requestID, userID)
	if err != nil {
		return err
	}
	return s.friendRepo.UpdateRequestStatus(ctx, nil, fr.ID, model.FriendRequestRejected)
}

// Cancel withdraws a pending request the caller sent.
func (s *FriendService) Cancel(ctx context.Context, requestID, userID string) error {
	fr, err := s.friendRepo.FindRequest(ctx, requestID)
	if err != nil {
		return err
	}
	if fr.SenderID != userID {
		return common.NewCodedError(common.ErrForbidden, "not_sender", "only the sender can cancel this request")
	}
	if fr.Status != model.FriendRequestPending {
		return common.NewCodedError(common.ErrConflict, "not_pending", "friend request is not pending")
	}
	return s.friendRepo.DeleteRequest(ctx, requestID)
}

func (s *FriendService) ListFriends(ctx context.Context, userID string) ([]model.UserSummary, error) {
	return s.friendRepo.ListFriends(ctx, userID)
}

func (s *FriendService) Remove(ctx context.Context, userID, friendID string) error {
	return s.friendRepo.RemoveFriendship(ctx, userID, friendID)
}

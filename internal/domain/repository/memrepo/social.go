package memrepo

import (
	"context"
	"database/sql"
	"fmt"
	"sort"

	"proconnect/internal/common"
	"proconnect/internal/domain/model"

	"github.com/google/uuid"
)

type notificationRepo struct{ s *Store }

func (r *notificationRepo) Create(_ context.Context, _ *sql.Tx, n *model.Notification) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	n.CreatedAt = r.s.tick()
	cp := *n
	r.s.notifications = append(r.s.notifications, &cp)
	return nil
}

func (r *notificationRepo) Broadcast(_ context.Context, _ *sql.Tx, n *model.Notification, excludeUserID string) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	ids := make([]string, 0, len(r.s.users))
	for id, u := range r.s.users {
		if !u.IsSuspended && id != excludeUserID {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	for _, id := range ids {
		cp := *n
		cp.ID = uuid.NewString()
		cp.UserID = id
		cp.CreatedAt = r.s.tick()
		r.s.notifications = append(r.s.notifications, &cp)
	}
	return int64(len(ids)), nil
}

func (r *notificationRepo) ListByUser(_ context.Context, userID string, limit, offset int) ([]model.Notification, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := []model.Notification{}
	for i := len(r.s.notifications) - 1; i >= 0; i-- {
		if n := r.s.notifications[i]; n.UserID == userID {
			out = append(out, *n)
		}
	}
	return page(out, limit, offset), nil
}

func (r *notificationRepo) CountUnread(_ context.Context, userID string) (int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	count := 0
	for _, n := range r.s.notifications {
		if n.UserID == userID && !n.IsRead {
			count++
		}
	}
	return count, nil
}

func (r *notificationRepo) MarkRead(_ context.Context, id, userID string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, n := range r.s.notifications {
		if n.ID == id && n.UserID == userID {
			n.IsRead = true
			return nil
		}
	}
	return common.ErrNotFound
}

func (r *notificationRepo) MarkAllRead(_ context.Context, userID string) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var count int64
	for _, n := range r.s.notifications {
		if n.UserID == userID && !n.IsRead {
			n.IsRead = true
			count++
		}
	}
	return count, nil
}

type friendRepo struct{ s *Store }

func (r *friendRepo) CreateRequest(_ context.Context, fr *model.FriendRequest) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, existing := range r.s.requests {
		samePair := (existing.SenderID == fr.SenderID && existing.ReceiverID == fr.ReceiverID) ||
			(existing.SenderID == fr.ReceiverID && existing.ReceiverID == fr.SenderID)
		if samePair && existing.Status == model.FriendRequestPending {
			return fmt.Errorf("a pending request already exists: %w", common.ErrConflict)
		}
	}
	fr.CreatedAt = r.s.tick()
	fr.UpdatedAt = fr.CreatedAt
	cp := *fr
	r.s.requests[fr.ID] = &cp
	return nil
}

func (r *friendRepo) FindRequest(_ context.Context, id string) (*model.FriendRequest, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	fr, ok := r.s.requests[id]
	if !ok {
		return nil, common.ErrNotFound
	}
	cp := *fr
	cp.Sender = summary(r.s.users[fr.SenderID])
	return &cp, nil
}

func (r *friendRepo) ListIncoming(_ context.Context, userID string) ([]model.FriendRequest, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := []model.FriendRequest{}
	for _, fr := range r.s.requests {
		if fr.ReceiverID == userID && fr.Status == model.FriendRequestPending {
			cp := *fr
			cp.Sender = summary(r.s.users[fr.SenderID])
			out = append(out, cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r *friendRepo) UpdateRequestStatus(_ context.Context, _ *sql.Tx, id string, status model.FriendRequestStatus) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	fr, ok := r.s.requests[id]
	if !ok || fr.Status != model.FriendRequestPending {
		return fmt.Errorf("friend request is not pending: %w", common.ErrConflict)
	}
	fr.Status = status
	fr.UpdatedAt = r.s.tick()
	return nil
}

func (r *friendRepo) DeleteRequest(_ context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.requests[id]; !ok {
		return common.ErrNotFound
	}
	delete(r.s.requests, id)
	return nil
}

func (r *friendRepo) AddFriendship(_ context.Context, _ *sql.Tx, userID, friendID string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.friendships[pair{userID, friendID}] = true
	r.s.friendships[pair{friendID, userID}] = true
	return nil
}

func (r *friendRepo) RemoveFriendship(_ context.Context, userID, friendID string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if !r.s.friendships[pair{userID, friendID}] {
		return common.ErrNotFound
	}
	delete(r.s.friendships, pair{userID, friendID})
	delete(r.s.friendships, pair{friendID, userID})
	return nil
}

func (r *friendRepo) AreFriends(_ context.Context, userID, otherID string) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.s.friendships[pair{userID, otherID}], nil
}

func (r *friendRepo) ListFriends(_ context.Context, userID string) ([]model.UserSummary, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := []model.UserSummary{}
	for p := range r.s.friendships {
		if p.a == userID {
			if u, ok := r.s.users[p.b]; ok {
				out = append(out, u.Summary())
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Username < out[j].Username })
	return out, nil
}

type reportRepo struct{ s *Store }

func (r *reportRepo) Create(_ context.Context, rep *model.Report) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	rep.CreatedAt = r.s.tick()
	rep.UpdatedAt = rep.CreatedAt
	cp := *rep
	r.s.reports[rep.ID] = &cp
	return nil
}

func (r *reportRepo) FindByID(_ context.Context, id string) (*model.Report, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	rep, ok := r.s.reports[id]
	if !ok {
		return nil, common.ErrNotFound
	}
	cp := *rep
	return &cp, nil
}

func (r *reportRepo) List(_ context.Context, status model.ReportStatus, limit, offset int) ([]model.Report, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := []model.Report{}
	for _, rep := range r.s.reports {
		if status == "" || rep.Status == status {
			out = append(out, *rep)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return page(out, limit, offset), nil
}

func (r *reportRepo) UpdateStatus(_ context.Context, id string, status model.ReportStatus, resolvedBy string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	rep, ok := r.s.reports[id]
	if !ok {
		return common.ErrNotFound
	}
	rep.Status = status
	rep.ResolvedBy = &resolvedBy
	rep.UpdatedAt = r.s.tick()
	return nil
}

package memrepo

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"

	"proconnect/internal/common"
	"proconnect/internal/domain/model"
)

type userRepo struct{ s *Store }

func (r *userRepo) Create(_ context.Context, user *model.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, u := range r.s.users {
		if u.Username == user.Username || strings.EqualFold(u.Email, user.Email) ||
			(user.Role == model.RoleAdmin && u.Role == model.RoleAdmin) {
			return fmt.Errorf("user with given username or email already exists: %w", common.ErrConflict)
		}
	}
	user.CreatedAt = r.s.tick()
	user.UpdatedAt = user.CreatedAt
	if user.Skills == nil {
		user.Skills = []string{}
	}
	cp := *user
	r.s.users[user.ID] = &cp
	return nil
}

func (r *userRepo) find(match func(*model.User) bool) (*model.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, u := range r.s.users {
		if match(u) {
			cp := *u
			return &cp, nil
		}
	}
	return nil, common.ErrNotFound
}

func (r *userRepo) FindByEmail(_ context.Context, email string) (*model.User, error) {
	return r.find(func(u *model.User) bool { return strings.EqualFold(u.Email, email) })
}

func (r *userRepo) FindByUsername(_ context.Context, username string) (*model.User, error) {
	return r.find(func(u *model.User) bool { return u.Username == username })
}

func (r *userRepo) FindByID(_ context.Context, id string) (*model.User, error) {
	return r.find(func(u *model.User) bool { return u.ID == id })
}

func (r *userRepo) UpdateProfile(_ context.Context, user *model.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u, ok := r.s.users[user.ID]
	if !ok {
		return common.ErrNotFound
	}
	u.FullName, u.Bio, u.College, u.Skills, u.AvatarURL = user.FullName, user.Bio, user.College, user.Skills, user.AvatarURL
	u.UpdatedAt = r.s.tick()
	user.UpdatedAt = u.UpdatedAt
	return nil
}

// sorted returns copies of users matching keep, oldest first.
func (r *userRepo) sorted(keep func(*model.User) bool) []model.User {
	out := []model.User{}
	for _, u := range r.s.users {
		if keep(u) {
			out = append(out, *u)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

func page[T any](items []T, limit, offset int) []T {
	if offset >= len(items) {
		return []T{}
	}
	end := offset + limit
	if limit <= 0 || end > len(items) {
		end = len(items)
	}
	return items[offset:end]
}

func (r *userRepo) Search(_ context.Context, term string, limit int) ([]model.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	term = strings.ToLower(term)
	users := r.sorted(func(u *model.User) bool {
		return !u.IsSuspended && (strings.Contains(strings.ToLower(u.Username), term) || strings.Contains(strings.ToLower(u.FullName), term))
	})
	sort.Slice(users, func(i, j int) bool { return users[i].Username < users[j].Username })
	return page(users, limit, 0), nil
}

func (r *userRepo) List(_ context.Context, limit, offset int) ([]model.User, int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	users := r.sorted(func(*model.User) bool { return true })
	// newest first
	for i, j := 0, len(users)-1; i < j; i, j = i+1, j-1 {
		users[i], users[j] = users[j], users[i]
	}
	return page(users, limit, offset), len(users), nil
}

func (r *userRepo) ListActive(_ context.Context, limit, offset int) ([]model.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return page(r.sorted(func(u *model.User) bool { return !u.IsSuspended }), limit, offset), nil
}

func (r *userRepo) SetSuspended(_ context.Context, id string, suspended bool) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u, ok := r.s.users[id]
	if !ok {
		return common.ErrNotFound
	}
	u.IsSuspended = suspended
	return nil
}

func (r *userRepo) AdjustPowWins(_ context.Context, _ *sql.Tx, id string, delta int) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u, ok := r.s.users[id]
	if !ok {
		return common.ErrNotFound
	}
	u.PowWins += delta
	if u.PowWins < 0 {
		u.PowWins = 0
	}
	return nil
}

func (r *userRepo) Leaderboard(_ context.Context, limit int) ([]model.LeaderboardEntry, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	users := r.sorted(func(u *model.User) bool { return u.PowWins > 0 && !u.IsSuspended })
	sort.SliceStable(users, func(i, j int) bool {
		if users[i].PowWins != users[j].PowWins {
			return users[i].PowWins > users[j].PowWins
		}
		return users[i].Username < users[j].Username
	})
	entries := []model.LeaderboardEntry{}
	for i, u := range page(users, limit, 0) {
		rank := i + 1
		if i > 0 && entries[i-1].PowWins == u.PowWins {
			rank = entries[i-1].Rank
		}
		entries = append(entries, model.LeaderboardEntry{Rank: rank, UserID: u.ID, Username: u.Username, FullName: u.FullName, PowWins: u.PowWins})
	}
	return entries, nil
}

package memrepo

import (
	"context"
	"database/sql"
	"fmt"
	"sort"

	"proconnect/internal/common"
	"proconnect/internal/domain/model"
)

type contestRepo struct{ s *Store }

func (r *contestRepo) CreateContestant(_ context.Context, c *model.Contestant) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, existing := range r.s.contestants {
		if existing.ProjectID == c.ProjectID && existing.WeekNumber == c.WeekNumber && existing.Year == c.Year {
			return common.NewCodedError(common.ErrConflict, "already_registered", "project is already registered for this week")
		}
	}
	if _, ok := r.s.projects[c.ProjectID]; !ok {
		return fmt.Errorf("memrepo.CreateContestant: unknown project %s", c.ProjectID)
	}
	c.UpdatedAt = r.s.tick()
	cp := *c
	cp.Project = nil
	r.s.contestants[c.ID] = &cp
	return nil
}

func (r *contestRepo) FindContestantByID(_ context.Context, id string) (*model.Contestant, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.contestants[id]
	if !ok {
		return nil, common.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (r *contestRepo) FindContestantForWeek(_ context.Context, _ *sql.Tx, projectID string, week, year int) (*model.Contestant, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, c := range r.s.contestants {
		if c.ProjectID == projectID && c.WeekNumber == week && c.Year == year {
			cp := *c
			return &cp, nil
		}
	}
	return nil, common.ErrNotFound
}

func (r *contestRepo) ListContestants(_ context.Context, week, year int, statuses ...model.ContestantStatus) ([]model.Contestant, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := []model.Contestant{}
	for _, c := range r.s.contestants {
		if c.WeekNumber != week || c.Year != year {
			continue
		}
		if len(statuses) > 0 && !containsStatus(statuses, c.Status) {
			continue
		}
		cp := *c
		if p, ok := r.s.projects[c.ProjectID]; ok {
			v := r.s.view(p, "")
			cp.Project = &v
		}
		out = append(out, cp)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].RegisteredAt.Equal(out[j].RegisteredAt) {
			return out[i].RegisteredAt.Before(out[j].RegisteredAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func containsStatus(list []model.ContestantStatus, s model.ContestantStatus) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func (r *contestRepo) UpdateContestant(_ context.Context, _ *sql.Tx, id string, status model.ContestantStatus, certType model.CertificateType) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.contestants[id]
	if !ok {
		return common.ErrNotFound
	}
	c.Status, c.CertificateType = status, certType
	c.UpdatedAt = r.s.tick()
	return nil
}

func (r *contestRepo) MarkParticipants(_ context.Context, _ *sql.Tx, week, year int, exceptID string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, c := range r.s.contestants {
		if c.WeekNumber == week && c.Year == year && c.ID != exceptID && c.Status != model.ContestantRemoved {
			c.Status, c.CertificateType = model.ContestantParticipant, model.CertificateParticipant
			c.UpdatedAt = r.s.tick()
		}
	}
	return nil
}

func (r *contestRepo) LatestAwarded(_ context.Context, projectID string) (*model.Contestant, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var best *model.Contestant
	for _, c := range r.s.contestants {
		if c.ProjectID != projectID || c.CertificateType == model.CertificateNone {
			continue
		}
		if best == nil || c.Year > best.Year || (c.Year == best.Year && c.WeekNumber > best.WeekNumber) ||
			(c.Year == best.Year && c.WeekNumber == best.WeekNumber && c.UpdatedAt.After(best.UpdatedAt)) {
			best = c
		}
	}
	if best == nil {
		return nil, common.ErrNotFound
	}
	cp := *best
	return &cp, nil
}

func (r *contestRepo) FindActiveWinner(_ context.Context, _ *sql.Tx) (*model.ProjectOfTheWeek, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, w := range r.s.winners {
		if w.IsActive {
			cp := *w
			return &cp, nil
		}
	}
	return nil, common.ErrNotFound
}

func (r *contestRepo) DeactivateWinners(_ context.Context, _ *sql.Tx) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, w := range r.s.winners {
		w.IsActive = false
	}
	return nil
}

func (r *contestRepo) CreateWinner(_ context.Context, _ *sql.Tx, p *model.ProjectOfTheWeek) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if p.IsActive {
		for _, w := range r.s.winners {
			if w.IsActive {
				return fmt.Errorf("another winner is already active: %w", common.ErrConflict)
			}
		}
	}
	cp := *p
	r.s.winners = append(r.s.winners, &cp)
	return nil
}

func (r *contestRepo) ListWinners(_ context.Context, limit, offset int) ([]model.ProjectOfTheWeek, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := make([]model.ProjectOfTheWeek, 0, len(r.s.winners))
	for i := len(r.s.winners) - 1; i >= 0; i-- {
		out = append(out, *r.s.winners[i])
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].SelectedAt.After(out[j].SelectedAt) })
	return page(out, limit, offset), nil
}

func (r *contestRepo) GetWeek(_ context.Context, year, week int) (*model.ContestWeek, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	w, ok := r.s.weeks[weekKey{year, week}]
	if !ok {
		return nil, common.ErrNotFound
	}
	cp := *w
	return &cp, nil
}

func (r *contestRepo) EnsureWeek(ctx context.Context, w *model.ContestWeek) (*model.ContestWeek, error) {
	r.s.mu.Lock()
	k := weekKey{w.Year, w.WeekNumber}
	if _, ok := r.s.weeks[k]; !ok {
		cp := *w
		cp.UpdatedAt = r.s.tick()
		r.s.weeks[k] = &cp
	}
	r.s.mu.Unlock()
	return r.GetWeek(ctx, w.Year, w.WeekNumber)
}

func (r *contestRepo) SaveWeek(_ context.Context, w *model.ContestWeek) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	w.UpdatedAt = r.s.tick()
	cp := *w
	r.s.weeks[weekKey{w.Year, w.WeekNumber}] = &cp
	return nil
}

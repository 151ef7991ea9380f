package memrepo

import (
	"context"
	"sort"

	"proconnect/internal/common"
	"proconnect/internal/domain/model"
)

type projectRepo struct{ s *Store }

// view copies p with read-time fields filled in. Caller holds the lock.
func (s *Store) view(p *model.Project, viewerID string) model.Project {
	cp := *p
	cp.TechStack = append([]string{}, p.TechStack...)
	cp.LikesCount = len(s.likes[p.ID])
	cp.LikedByMe = s.likes[p.ID][viewerID]
	cp.CommentsCount = 0
	for _, c := range s.comments {
		if c.ProjectID == p.ID {
			cp.CommentsCount++
		}
	}
	cp.Owner = summary(s.users[p.OwnerID])
	return cp
}

func (s *Store) visible(p *model.Project, viewerID string) bool {
	return p.Visibility == model.VisibilityPublic || p.OwnerID == viewerID || s.friendships[pair{viewerID, p.OwnerID}]
}

func (r *projectRepo) Create(_ context.Context, p *model.Project) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p.CreatedAt = r.s.tick()
	p.UpdatedAt = p.CreatedAt
	cp := *p
	cp.TechStack = append([]string{}, p.TechStack...)
	r.s.projects[p.ID] = &cp
	return nil
}

func (r *projectRepo) Update(_ context.Context, p *model.Project) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	cur, ok := r.s.projects[p.ID]
	if !ok {
		return common.ErrNotFound
	}
	cur.Title, cur.Slug, cur.Description = p.Title, p.Slug, p.Description
	cur.TechStack = append([]string{}, p.TechStack...)
	cur.GithubURL, cur.LiveURL, cur.ImageURL, cur.Visibility = p.GithubURL, p.LiveURL, p.ImageURL, p.Visibility
	cur.UpdatedAt = r.s.tick()
	p.UpdatedAt = cur.UpdatedAt
	return nil
}

func (r *projectRepo) UpdateChallenges(_ context.Context, id string, ch model.Challenges) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	cur, ok := r.s.projects[id]
	if !ok {
		return common.ErrNotFound
	}
	cur.Challenges = ch
	cur.UpdatedAt = r.s.tick()
	return nil
}

func (r *projectRepo) Delete(_ context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.projects[id]; !ok {
		return common.ErrNotFound
	}
	delete(r.s.projects, id)
	delete(r.s.likes, id)

	comments := r.s.comments[:0]
	for _, c := range r.s.comments {
		if c.ProjectID != id {
			comments = append(comments, c)
		}
	}
	r.s.comments = comments
	for cid, c := range r.s.contestants {
		if c.ProjectID == id {
			delete(r.s.contestants, cid)
		}
	}
	for rid, rep := range r.s.reports {
		if rep.ProjectID == id {
			delete(r.s.reports, rid)
		}
	}
	for _, w := range r.s.winners {
		if w.ProjectID != nil && *w.ProjectID == id {
			w.ProjectID = nil
		}
	}
	for _, c := range r.s.certificates {
		if c.ProjectID != nil && *c.ProjectID == id {
			c.ProjectID = nil
		}
	}
	for _, n := range r.s.notifications {
		if n.RelatedProject != nil && *n.RelatedProject == id {
			n.RelatedProject = nil
		}
	}
	return nil
}

func (r *projectRepo) FindByID(_ context.Context, id, viewerID string) (*model.Project, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.s.projects[id]
	if !ok {
		return nil, common.ErrNotFound
	}
	v := r.s.view(p, viewerID)
	return &v, nil
}

func (r *projectRepo) list(viewerID string, keep func(*model.Project) bool) []model.Project {
	out := []model.Project{}
	for _, p := range r.s.projects {
		if keep(p) && r.s.visible(p, viewerID) {
			out = append(out, r.s.view(p, viewerID))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

func (r *projectRepo) ListFeed(_ context.Context, viewerID string, limit, offset int) ([]model.Project, int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	all := r.list(viewerID, func(*model.Project) bool { return true })
	return page(all, limit, offset), len(all), nil
}

func (r *projectRepo) ListByOwner(_ context.Context, ownerID, viewerID string) ([]model.Project, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.list(viewerID, func(p *model.Project) bool { return p.OwnerID == ownerID }), nil
}

func (r *projectRepo) ToggleLike(_ context.Context, projectID, userID string) (bool, int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.projects[projectID]; !ok {
		return false, 0, common.ErrNotFound
	}
	if r.s.likes[projectID] == nil {
		r.s.likes[projectID] = map[string]bool{}
	}
	liked := !r.s.likes[projectID][userID]
	if liked {
		r.s.likes[projectID][userID] = true
	} else {
		delete(r.s.likes[projectID], userID)
	}
	return liked, len(r.s.likes[projectID]), nil
}

func (r *projectRepo) Engagement(_ context.Context, projectIDs []string) (map[string]model.ProjectEngagement, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := make(map[string]model.ProjectEngagement, len(projectIDs))
	for _, id := range projectIDs {
		p, ok := r.s.projects[id]
		if !ok {
			continue
		}
		v := r.s.view(p, "")
		out[id] = model.ProjectEngagement{ProjectID: id, LikesCount: v.LikesCount, CommentsCount: v.CommentsCount}
	}
	return out, nil
}

func (r *projectRepo) CreateComment(_ context.Context, c *model.Comment) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.projects[c.ProjectID]; !ok {
		return common.ErrNotFound
	}
	c.CreatedAt = r.s.tick()
	cp := *c
	r.s.comments = append(r.s.comments, &cp)
	return nil
}

func (r *projectRepo) FindComment(_ context.Context, id string) (*model.Comment, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, c := range r.s.comments {
		if c.ID == id {
			cp := *c
			cp.Author = summary(r.s.users[c.UserID])
			return &cp, nil
		}
	}
	return nil, common.ErrNotFound
}

func (r *projectRepo) ListComments(_ context.Context, projectID string) ([]model.Comment, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := []model.Comment{}
	for _, c := range r.s.comments {
		if c.ProjectID == projectID {
			cp := *c
			cp.Author = summary(r.s.users[c.UserID])
			out = append(out, cp)
		}
	}
	return out, nil
}

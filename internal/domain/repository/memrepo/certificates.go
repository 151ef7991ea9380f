package memrepo

import (
	"context"
	"fmt"
	"sort"

	"proconnect/internal/common"
	"proconnect/internal/domain/model"
)

type certificateRepo struct{ s *Store }

func sameProject(a *string, b string) bool {
	return a != nil && *a == b
}

func (r *certificateRepo) Create(_ context.Context, c *model.Certificate) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, existing := range r.s.certificates {
		if existing.CertificateID == c.CertificateID ||
			(c.ProjectID != nil && existing.UserID == c.UserID && sameProject(existing.ProjectID, *c.ProjectID) &&
				existing.CertificateType == c.CertificateType) {
			return fmt.Errorf("certificate already issued: %w", common.ErrConflict)
		}
	}
	cp := *c
	r.s.certificates = append(r.s.certificates, &cp)
	return nil
}

func (r *certificateRepo) FindByUserProjectType(_ context.Context, userID, projectID string, certType model.CertificateType) (*model.Certificate, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, c := range r.s.certificates {
		if c.UserID == userID && sameProject(c.ProjectID, projectID) && c.CertificateType == certType {
			cp := *c
			return &cp, nil
		}
	}
	return nil, common.ErrNotFound
}

func (r *certificateRepo) FindByCertificateID(_ context.Context, certificateID string) (*model.Certificate, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, c := range r.s.certificates {
		if c.CertificateID == certificateID {
			cp := *c
			return &cp, nil
		}
	}
	return nil, common.ErrNotFound
}

func (r *certificateRepo) list(keep func(*model.Certificate) bool) []model.Certificate {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := []model.Certificate{}
	for _, c := range r.s.certificates {
		if keep(c) {
			out = append(out, *c)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].IssuedAt.After(out[j].IssuedAt) })
	return out
}

func (r *certificateRepo) ListByUser(_ context.Context, userID string) ([]model.Certificate, error) {
	return r.list(func(c *model.Certificate) bool { return c.UserID == userID }), nil
}

func (r *certificateRepo) ListByUserProject(_ context.Context, userID, projectID string) ([]model.Certificate, error) {
	return r.list(func(c *model.Certificate) bool { return c.UserID == userID && sameProject(c.ProjectID, projectID) }), nil
}

package service

import (
	"context"
	"errors"
	"io"
	"regexp"
	"testing"

	"proconnect/internal/common"
	"proconnect/internal/domain/model"
	"proconnect/internal/domain/repository"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var (
	completionIDPattern = regexp.MustCompile(`^PC-\d+-[A-Z0-9]{6}$`)
	winnerIDPattern     = regexp.MustCompile(`^NIAT-POTW-WINNER-W23-2025-[A-Z0-9]{6}$`)
)

func TestGenerateCompletion_Idempotent(t *testing.T) {
	env := newContestEnv(t, monday)
	ctx := context.Background()
	owner := env.addUser(t, "owner", model.RoleUser)
	p := env.addProject(t, owner, "Tracker", nil, "")

	first, err := env.certs.GenerateCompletion(ctx, owner.ID, GenerateCertificateRequest{ProjectID: p.ID})
	require.NoError(t, err)
	assert.True(t, first.Created)
	assert.Regexp(t, completionIDPattern, first.Certificate.CertificateID)
	assert.Equal(t, "/uploads/certificates/"+first.Certificate.CertificateID+".pdf", first.Certificate.FileURL)
	assert.Equal(t, model.CertificateCompletion, first.Certificate.CertificateType)

	second, err := env.certs.GenerateCompletion(ctx, owner.ID, GenerateCertificateRequest{ProjectID: p.ID})
	require.NoError(t, err)
	assert.False(t, second.Created)
	assert.Equal(t, first.Certificate.CertificateID, second.Certificate.CertificateID)

	mine, err := env.certs.ListMine(ctx, owner.ID)
	require.NoError(t, err)
	assert.Len(t, mine, 1)
	assert.Len(t, env.files.files, 1)
}

func TestGenerateCompletion_NotOwner(t *testing.T) {
	env := newContestEnv(t, monday)
	owner := env.addUser(t, "owner", model.RoleUser)
	other := env.addUser(t, "other", model.RoleUser)
	p := env.addProject(t, owner, "Tracker", nil, "")

	_, err := env.certs.GenerateCompletion(context.Background(), other.ID, GenerateCertificateRequest{ProjectID: p.ID})
	assert.ErrorIs(t, err, common.ErrForbidden)
}

func TestGenerateContest_Idempotent(t *testing.T) {
	env := newContestEnv(t, saturday)
	ctx := context.Background()
	admin := env.addUser(t, "admin", model.RoleAdmin)
	a := env.addUser(t, "alice", model.RoleUser)
	ps := setupWeek(t, env, a)
	_, err := env.contest.Approve(ctx, admin.ID, ApproveRequest{ProjectID: ps[0].ID})
	require.NoError(t, err)

	first, err := env.certs.GenerateContest(ctx, a.ID, GenerateCertificateRequest{ProjectID: ps[0].ID})
	require.NoError(t, err)
	assert.True(t, first.Created)
	assert.Regexp(t, winnerIDPattern, first.Certificate.CertificateID)
	require.NotNil(t, first.Certificate.WeekNumber)
	assert.Equal(t, 23, *first.Certificate.WeekNumber)

	second, err := env.certs.GenerateContest(ctx, a.ID, GenerateCertificateRequest{ProjectID: ps[0].ID})
	require.NoError(t, err)
	assert.False(t, second.Created)
	assert.Equal(t, first.Certificate.CertificateID, second.Certificate.CertificateID)

	certs, err := env.store.Certificates().ListByUserProject(ctx, a.ID, ps[0].ID)
	require.NoError(t, err)
	assert.Len(t, certs, 1)
}

func TestGenerateContest_NotEligible(t *testing.T) {
	env := newContestEnv(t, saturday)
	a := env.addUser(t, "alice", model.RoleUser)
	ps := setupWeek(t, env, a)

	_, err := env.certs.GenerateContest(context.Background(), a.ID, GenerateCertificateRequest{ProjectID: ps[0].ID})
	assert.ErrorIs(t, err, common.ErrForbidden)
	assert.Equal(t, "not_eligible", common.ErrorCode(err))
}

func TestCertificateOpen(t *testing.T) {
	env := newContestEnv(t, monday)
	ctx := context.Background()
	admin := env.addUser(t, "admin", model.RoleAdmin)
	owner := env.addUser(t, "owner", model.RoleUser)
	stranger := env.addUser(t, "stranger", model.RoleUser)
	p := env.addProject(t, owner, "Tracker", nil, "")
	res, err := env.certs.GenerateCompletion(ctx, owner.ID, GenerateCertificateRequest{ProjectID: p.ID})
	require.NoError(t, err)
	certID := res.Certificate.CertificateID

	for _, u := range []*model.User{owner, admin} {
		_, f, err := env.certs.Open(ctx, u, certID)
		require.NoError(t, err, u.Username)
		body, err := io.ReadAll(f)
		require.NoError(t, err)
		f.Close()
		assert.Equal(t, "%PDF", string(body[:4]))
	}

	_, _, err = env.certs.Open(ctx, stranger, certID)
	assert.ErrorIs(t, err, common.ErrForbidden)

	_, _, err = env.certs.Open(ctx, owner, "PC-0-NOPE00")
	assert.Equal(t, "certificate_not_found", common.ErrorCode(err))

	delete(env.files.files, "certificates/"+certID+".pdf")
	_, _, err = env.certs.Open(ctx, owner, certID)
	assert.ErrorIs(t, err, common.ErrNotFound)
	assert.Equal(t, "certificate_file_missing", common.ErrorCode(err))
}

func TestCertificateCheck(t *testing.T) {
	env := newContestEnv(t, monday)
	ctx := context.Background()
	owner := env.addUser(t, "owner", model.RoleUser)
	p := env.addProject(t, owner, "Tracker", nil, "")

	res, err := env.certs.Check(ctx, owner.ID, p.ID)
	require.NoError(t, err)
	assert.False(t, res.HasCertificate)

	_, err = env.certs.GenerateCompletion(ctx, owner.ID, GenerateCertificateRequest{ProjectID: p.ID})
	require.NoError(t, err)
	res, err = env.certs.Check(ctx, owner.ID, p.ID)
	require.NoError(t, err)
	assert.True(t, res.HasCertificate)
}

// racingCertRepo runs before ahead of every insert and can fail it outright.
type racingCertRepo struct {
	repository.CertificateRepository
	before func(ctx context.Context)
	err    error
}

func (r *racingCertRepo) Create(ctx context.Context, c *model.Certificate) error {
	if r.before != nil {
		r.before(ctx)
	}
	if r.err != nil {
		return r.err
	}
	return r.CertificateRepository.Create(ctx, c)
}

func TestGenerateCompletion_FailedInsertLeavesNoFile(t *testing.T) {
	env := newContestEnv(t, monday)
	ctx := context.Background()
	owner := env.addUser(t, "owner", model.RoleUser)
	p := env.addProject(t, owner, "Tracker", nil, "")

	stored := &model.Certificate{
		ID:              uuid.NewString(),
		CertificateID:   "PC-1-FIRST1",
		UserID:          owner.ID,
		ProjectID:       &p.ID,
		CertificateType: model.CertificateCompletion,
		FileURL:         "/uploads/certificates/PC-1-FIRST1.pdf",
		IssuedAt:        monday,
	}
	// Runs in order: the race case leaves stored behind.
	tests := []struct {
		name    string
		repo    *racingCertRepo
		wantErr bool
	}{
		{
			name:    "insert error",
			repo:    &racingCertRepo{CertificateRepository: env.store.Certificates(), err: errors.New("connection reset")},
			wantErr: true,
		},
		{
			name: "lost race returns the stored row",
			repo: &racingCertRepo{
				CertificateRepository: env.store.Certificates(),
				before: func(ctx context.Context) {
					_ = env.store.Certificates().Create(ctx, stored)
				},
			},
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			certs := NewCertificateService(tc.repo, env.store.Projects(), env.store.Contest(), env.store.Users(),
				env.files, env.clock, "ProConnect", zap.NewNop())
			res, err := certs.GenerateCompletion(ctx, owner.ID, GenerateCertificateRequest{ProjectID: p.ID})
			if tc.wantErr {
				assert.Error(t, err)
			} else {
				require.NoError(t, err)
				assert.False(t, res.Created)
				assert.Equal(t, stored.CertificateID, res.Certificate.CertificateID)
			}
			assert.Empty(t, env.files.files)
		})
	}
}

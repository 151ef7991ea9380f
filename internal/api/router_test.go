package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"proconnect/internal/api/middleware"
	"proconnect/internal/app/service"
	"proconnect/internal/common"
	"proconnect/internal/common/security"
	"proconnect/internal/domain/contest"
	"proconnect/internal/domain/model"
	"proconnect/internal/domain/repository/memrepo"
	"proconnect/internal/platform/mailer"
	"proconnect/internal/platform/queue"
	"proconnect/internal/platform/storage"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type nopLocker struct{}

func (nopLocker) Acquire(context.Context, string, time.Duration) (func(), bool, error) {
	return func() {}, true, nil
}

type nopCache struct{}

func (nopCache) Get(context.Context, string) ([]byte, bool, error)        { return nil, false, nil }
func (nopCache) Set(context.Context, string, []byte, time.Duration) error { return nil }
func (nopCache) Delete(context.Context, ...string) error                  { return nil }

type sliceQueue struct{ jobs []queue.ReminderJob }

func (q *sliceQueue) Push(_ context.Context, job queue.ReminderJob) error {
	q.jobs = append(q.jobs, job)
	return nil
}

type testServer struct {
	t      *testing.T
	store  *memrepo.Store
	clock  *contest.FixedClock
	queue  *sliceQueue
	router http.Handler
}

// 2025-06-07 is a Saturday.
var saturday = time.Date(2025, 6, 7, 10, 0, 0, 0, time.UTC)

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	return newTestServerWith(t, Options{})
}

func newTestServerWith(t *testing.T, opts Options) *testServer {
	t.Helper()
	security.InitJWTWithSecret([]byte("router-test-secret"), time.Hour)
	log := zap.NewNop()
	store := memrepo.New()
	clock := &contest.FixedClock{T: saturday}
	q := &sliceQueue{}

	contestSvc := service.NewContestService(service.ContestDeps{
		Contests:      store.Contest(),
		Projects:      store.Projects(),
		Users:         store.Users(),
		Friends:       store.Friends(),
		Notifications: store.Notifications(),
		Tx:            store.Tx(),
		Locker:        nopLocker{},
		Cache:         nopCache{},
		Reminders:     q,
		Mailer:        mailer.NewConsoleMailer(log),
		Clock:         clock,
		Log:           log,
	})
	certSvc := service.NewCertificateService(store.Certificates(), store.Projects(), store.Contest(), store.Users(),
		storage.NewDisk(t.TempDir()), clock, "ProConnect", log)
	svc := Services{
		Auth:          service.NewAuthService(store.Users(), "", log),
		Users:         service.NewUserService(store.Users(), store.Friends()),
		Projects:      service.NewProjectService(store.Projects(), store.Friends(), store.Notifications(), store.Reports(), log),
		Friends:       service.NewFriendService(store.Friends(), store.Users(), store.Notifications(), store.Tx(), log),
		Notifications: service.NewNotificationService(store.Notifications()),
		Admin:         service.NewAdminService(store.Users(), store.Reports(), store.Notifications(), log),
		Contest:       contestSvc,
		Certificates:  certSvc,
	}
	r := NewRouter(svc, middleware.NewAuth(store.Users(), log), opts, log)
	return &testServer{t: t, store: store, clock: clock, queue: q, router: r}
}

func (s *testServer) user(username, role string) (*model.User, string) {
	s.t.Helper()
	u := &model.User{
		ID:             uuid.NewString(),
		Username:       username,
		Email:          username + "@example.com",
		HashedPassword: "x",
		FullName:       username,
		Role:           role,
	}
	require.NoError(s.t, s.store.Users().Create(context.Background(), u))
	token, err := security.GenerateToken(u.ID, u.Role)
	require.NoError(s.t, err)
	return u, token
}

func (s *testServer) do(method, path, token string, body any) *httptest.ResponseRecorder {
	s.t.Helper()
	var rdr io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(s.t, err)
		rdr = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, rdr)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestHealth(t *testing.T) {
	s := newTestServer(t)
	rec := s.do(http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OK", rec.Body.String())
}

func TestSignupLoginFlow(t *testing.T) {
	s := newTestServer(t)
	rec := s.do(http.MethodPost, "/api/v1/auth/signup", "", map[string]string{
		"username": "gopher", "email": "gopher@example.com", "password": "password1", "full_name": "Go Pher",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	signup := decode[service.AuthResponse](t, rec)

	rec = s.do(http.MethodGet, "/api/v1/users/me", signup.Token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	me := decode[model.User](t, rec)
	assert.Equal(t, "gopher", me.Username)

	rec = s.do(http.MethodPost, "/api/v1/auth/login", "", map[string]string{"login_field": "gopher", "password": "nope-nope"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "invalid_credentials", decode[common.ErrorResponse](t, rec).Code)
}

func TestValidationErrorHasFields(t *testing.T) {
	s := newTestServer(t)
	rec := s.do(http.MethodPost, "/api/v1/auth/signup", "", map[string]string{"username": "x"})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	body := decode[common.ErrorResponse](t, rec)
	assert.Equal(t, "validation_failed", body.Code)
	assert.Contains(t, body.Fields, "email")
}

func TestAuthRequired(t *testing.T) {
	s := newTestServer(t)
	rec := s.do(http.MethodGet, "/api/v1/contest/window", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = s.do(http.MethodGet, "/api/v1/contest/window", "garbage", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestSuspendedUserIsRejected(t *testing.T) {
	s := newTestServer(t)
	u, token := s.user("banned", model.RoleUser)
	require.NoError(t, s.store.Users().SetSuspended(context.Background(), u.ID, true))

	rec := s.do(http.MethodGet, "/api/v1/users/me", token, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "account_suspended", decode[common.ErrorResponse](t, rec).Code)
}

func TestAdminRoutesCheckStoredRole(t *testing.T) {
	s := newTestServer(t)
	u, _ := s.user("sneaky", model.RoleUser)
	// A token claiming admin does not help when the stored role is user.
	forged, err := security.GenerateToken(u.ID, model.RoleAdmin)
	require.NoError(t, err)

	rec := s.do(http.MethodGet, "/api/v1/contest/contestants", forged, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	rec = s.do(http.MethodGet, "/api/v1/admin/users", forged, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	_, adminToken := s.user("admin", model.RoleAdmin)
	rec = s.do(http.MethodGet, "/api/v1/admin/users", adminToken, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestContestFlowOverHTTP(t *testing.T) {
	s := newTestServer(t)
	owner, ownerToken := s.user("owner", model.RoleUser)
	_, adminToken := s.user("admin", model.RoleAdmin)

	rec := s.do(http.MethodPost, "/api/v1/projects", ownerToken, map[string]any{
		"title": "Weekly Tracker", "description": "A tracker", "tech_stack": []string{"go", "redis"},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	p := decode[model.Project](t, rec)
	assert.Equal(t, "weekly-tracker", p.Slug)

	rec = s.do(http.MethodPost, "/api/v1/contest/register/"+p.ID, ownerToken, nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	rec = s.do(http.MethodPost, "/api/v1/contest/register/"+p.ID, ownerToken, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = s.do(http.MethodPost, "/api/v1/contest/ai-pick", adminToken, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "window_closed", decode[common.ErrorResponse](t, rec).Code)

	s.clock.Set(saturday.AddDate(0, 0, 1))
	rec = s.do(http.MethodPost, "/api/v1/contest/register/"+p.ID, ownerToken, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = s.do(http.MethodPost, "/api/v1/contest/ai-pick", adminToken, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	pick := decode[contest.Result](t, rec)
	assert.Equal(t, p.ID, pick.Candidate.ProjectID)

	rec = s.do(http.MethodPost, "/api/v1/contest/approve", adminToken, map[string]any{
		"project_id": p.ID, "reason": pick.Reason, "score": pick.Score,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = s.do(http.MethodGet, "/api/v1/contest/status", ownerToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	status := decode[service.ContestStatus](t, rec)
	assert.True(t, status.HasWinner)
	assert.True(t, status.IsMine)

	rec = s.do(http.MethodPost, "/api/v1/certificates/generate-contest", ownerToken, map[string]string{"project_id": p.ID})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	cert := decode[service.GeneratedCertificate](t, rec)
	rec = s.do(http.MethodPost, "/api/v1/certificates/generate-contest", ownerToken, map[string]string{"project_id": p.ID})
	require.Equal(t, http.StatusOK, rec.Code)
	again := decode[service.GeneratedCertificate](t, rec)
	assert.Equal(t, cert.Certificate.CertificateID, again.Certificate.CertificateID)

	rec = s.do(http.MethodGet, "/api/v1/certificates/"+cert.Certificate.CertificateID+"/download", ownerToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/pdf", rec.Header().Get("Content-Type"))
	assert.True(t, bytes.HasPrefix(rec.Body.Bytes(), []byte("%PDF")))

	_, strangerToken := s.user("stranger", model.RoleUser)
	rec = s.do(http.MethodGet, "/api/v1/certificates/"+cert.Certificate.CertificateID+"/download", strangerToken, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	rec = s.do(http.MethodGet, "/api/v1/certificates/NOPE/download", ownerToken, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "certificate_not_found", decode[common.ErrorResponse](t, rec).Code)

	// The stored file URL follows the same access rules as the download.
	fileURL := cert.Certificate.FileURL
	require.Equal(t, "/uploads/certificates/"+cert.Certificate.CertificateID+".pdf", fileURL)
	rec = s.do(http.MethodGet, fileURL, "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	rec = s.do(http.MethodGet, fileURL, strangerToken, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	rec = s.do(http.MethodGet, fileURL, ownerToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, bytes.HasPrefix(rec.Body.Bytes(), []byte("%PDF")))
	rec = s.do(http.MethodGet, "/uploads/certificates/"+cert.Certificate.CertificateID+".txt", ownerToken, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = s.do(http.MethodGet, "/api/v1/notifications/unread-count", ownerToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, decode[map[string]int](t, rec)["unread"])

	rec = s.do(http.MethodGet, "/api/v1/contest/leaderboard", ownerToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	board := decode[[]model.LeaderboardEntry](t, rec)
	require.Len(t, board, 1)
	assert.Equal(t, owner.ID, board[0].UserID)
}

func TestSendRemindersIsAccepted(t *testing.T) {
	s := newTestServer(t)
	_, adminToken := s.user("admin", model.RoleAdmin)

	rec := s.do(http.MethodPost, "/api/v1/contest/send-reminders", adminToken, nil)
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
	body := decode[map[string]string](t, rec)
	require.Len(t, s.queue.jobs, 1)
	assert.Equal(t, s.queue.jobs[0].JobID, body["job_id"])
}

func TestPhaseOverrideOverHTTP(t *testing.T) {
	s := newTestServer(t)
	_, adminToken := s.user("admin", model.RoleAdmin)

	rec := s.do(http.MethodPut, "/api/v1/contest/phase", adminToken, map[string]string{"phase": "evaluation"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	w := decode[contest.Window](t, rec)
	assert.True(t, w.IsEvaluationOpen)
	assert.True(t, w.Manual)

	rec = s.do(http.MethodDelete, "/api/v1/contest/phase", adminToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	w = decode[contest.Window](t, rec)
	assert.True(t, w.IsRegistrationOpen)
	assert.False(t, w.Manual)
}

func TestCORSCredentialsNeedExplicitOrigin(t *testing.T) {
	preflight := func(s *testServer) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodOptions, "/api/v1/contest/window", nil)
		req.Header.Set("Origin", "http://app.test")
		req.Header.Set("Access-Control-Request-Method", http.MethodGet)
		rec := httptest.NewRecorder()
		s.router.ServeHTTP(rec, req)
		return rec
	}

	rec := preflight(newTestServer(t))
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Credentials"))

	rec = preflight(newTestServerWith(t, Options{ClientOrigin: "http://app.test"}))
	assert.Equal(t, "true", rec.Header().Get("Access-Control-Allow-Credentials"))
	assert.Equal(t, "http://app.test", rec.Header().Get("Access-Control-Allow-Origin"))
}

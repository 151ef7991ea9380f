package service

import (
	"bytes"
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"proconnect/internal/domain/contest"
	"proconnect/internal/domain/model"
	"proconnect/internal/domain/repository/memrepo"
	"proconnect/internal/platform/mailer"
	"proconnect/internal/platform/queue"
	"proconnect/internal/platform/storage"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeLocker struct {
	mu    sync.Mutex
	held  map[string]bool
	calls int
}

func newFakeLocker() *fakeLocker { return &fakeLocker{held: map[string]bool{}} }

func (l *fakeLocker) Acquire(_ context.Context, key string, _ time.Duration) (func(), bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls++
	if l.held[key] {
		return nil, false, nil
	}
	l.held[key] = true
	return func() {
		l.mu.Lock()
		defer l.mu.Unlock()
		delete(l.held, key)
	}, true, nil
}

type memCache struct {
	mu   sync.Mutex
	data map[string][]byte
}

func newMemCache() *memCache { return &memCache{data: map[string][]byte{}} }

func (c *memCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.data[key]
	return v, ok, nil
}

func (c *memCache) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = value
	return nil
}

func (c *memCache) Delete(_ context.Context, keys ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, k := range keys {
		delete(c.data, k)
	}
	return nil
}

type fakeQueue struct {
	jobs []queue.ReminderJob
}

func (q *fakeQueue) Push(_ context.Context, job queue.ReminderJob) error {
	q.jobs = append(q.jobs, job)
	return nil
}

type fakeMailer struct {
	mu      sync.Mutex
	batches [][]mailer.Message
}

func (m *fakeMailer) Send(_ context.Context, msgs []mailer.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.batches = append(m.batches, msgs)
	return nil
}

func (m *fakeMailer) sent() []mailer.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []mailer.Message
	for _, b := range m.batches {
		out = append(out, b...)
	}
	return out
}

type memFiles struct {
	mu    sync.Mutex
	files map[string][]byte
}

func newMemFiles() *memFiles { return &memFiles{files: map[string][]byte{}} }

func (f *memFiles) Save(rel string, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.files[rel] = data
	return nil
}

func (f *memFiles) Remove(rel string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.files, rel)
	return nil
}

func (f *memFiles) Open(rel string) (io.ReadCloser, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.files[rel]
	if !ok {
		return nil, storage.ErrFileMissing
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

// Reference dates: 2025-06-07 is a Saturday, 2025-06-08 a Sunday.
var (
	saturday = time.Date(2025, 6, 7, 10, 0, 0, 0, time.UTC)
	sunday   = time.Date(2025, 6, 8, 12, 0, 0, 0, time.UTC)
	monday   = time.Date(2025, 6, 9, 9, 0, 0, 0, time.UTC)
)

type contestEnv struct {
	store    *memrepo.Store
	clock    *contest.FixedClock
	locker   *fakeLocker
	cache    *memCache
	queue    *fakeQueue
	mailer   *fakeMailer
	files    *memFiles
	contest  *ContestService
	certs    *CertificateService
	projects *ProjectService
}

func newContestEnv(t *testing.T, now time.Time) *contestEnv {
	t.Helper()
	env := &contestEnv{
		store:  memrepo.New(),
		clock:  &contest.FixedClock{T: now},
		locker: newFakeLocker(),
		cache:  newMemCache(),
		queue:  &fakeQueue{},
		mailer: &fakeMailer{},
		files:  newMemFiles(),
	}
	log := zap.NewNop()
	env.contest = NewContestService(ContestDeps{
		Contests:      env.store.Contest(),
		Projects:      env.store.Projects(),
		Users:         env.store.Users(),
		Friends:       env.store.Friends(),
		Notifications: env.store.Notifications(),
		Tx:            env.store.Tx(),
		Locker:        env.locker,
		Cache:         env.cache,
		Reminders:     env.queue,
		Mailer:        env.mailer,
		Clock:         env.clock,
		Log:           log,
	})
	env.certs = NewCertificateService(env.store.Certificates(), env.store.Projects(), env.store.Contest(),
		env.store.Users(), env.files, env.clock, "ProConnect", log)
	env.projects = NewProjectService(env.store.Projects(), env.store.Friends(), env.store.Notifications(),
		env.store.Reports(), log)
	return env
}

func (e *contestEnv) addUser(t *testing.T, username, role string) *model.User {
	t.Helper()
	u := &model.User{
		ID:             uuid.NewString(),
		Username:       username,
		Email:          username + "@example.com",
		HashedPassword: "x",
		FullName:       username + " Tester",
		Role:           role,
	}
	require.NoError(t, e.store.Users().Create(context.Background(), u))
	return u
}

func (e *contestEnv) addProject(t *testing.T, owner *model.User, title string, tech []string, desc string) *model.Project {
	t.Helper()
	p, err := e.projects.Create(context.Background(), owner.ID, CreateProjectRequest{
		Title:       title,
		Description: desc,
		TechStack:   tech,
	})
	require.NoError(t, err)
	return p
}

func (e *contestEnv) user(t *testing.T, id string) *model.User {
	t.Helper()
	u, err := e.store.Users().FindByID(context.Background(), id)
	require.NoError(t, err)
	return u
}

func (e *contestEnv) notifications(t *testing.T, userID string) []model.Notification {
	t.Helper()
	n, err := e.store.Notifications().ListByUser(context.Background(), userID, 100, 0)
	require.NoError(t, err)
	return n
}

package service

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"proconnect/internal/common"
	"proconnect/internal/domain/model"
	"proconnect/internal/platform/queue"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func countType(ns []model.Notification, typ model.NotificationType) int {
	n := 0
	for _, x := range ns {
		if x.Type == typ {
			n++
		}
	}
	return n
}

func TestRegister_OutsideRegistrationPhase(t *testing.T) {
	for name, at := range map[string]time.Time{"sunday": sunday, "monday": monday} {
		t.Run(name, func(t *testing.T) {
			env := newContestEnv(t, at)
			owner := env.addUser(t, "owner", model.RoleUser)
			p := env.addProject(t, owner, "Tracker", []string{"go"}, "short")

			_, err := env.contest.Register(context.Background(), owner.ID, p.ID)
			require.Error(t, err)
			assert.ErrorIs(t, err, common.ErrForbidden)
			assert.Equal(t, "window_closed", common.ErrorCode(err))
		})
	}
}

func TestRegister_WindowCheckedBeforeProject(t *testing.T) {
	env := newContestEnv(t, monday)
	owner := env.addUser(t, "owner", model.RoleUser)

	_, err := env.contest.Register(context.Background(), owner.ID, "does-not-exist")
	assert.Equal(t, "window_closed", common.ErrorCode(err))
}

func TestRegister_TwiceIsConflict(t *testing.T) {
	env := newContestEnv(t, saturday)
	owner := env.addUser(t, "owner", model.RoleUser)
	p := env.addProject(t, owner, "Tracker", []string{"go"}, "short")

	c, err := env.contest.Register(context.Background(), owner.ID, p.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ContestantActive, c.Status)
	assert.Equal(t, 23, c.WeekNumber)
	assert.Equal(t, 2025, c.Year)

	_, err = env.contest.Register(context.Background(), owner.ID, p.ID)
	assert.ErrorIs(t, err, common.ErrConflict)
	assert.Equal(t, "already_registered", common.ErrorCode(err))
}

func TestRegister_NotOwner(t *testing.T) {
	env := newContestEnv(t, saturday)
	owner := env.addUser(t, "owner", model.RoleUser)
	other := env.addUser(t, "other", model.RoleUser)
	p := env.addProject(t, owner, "Tracker", nil, "")

	_, err := env.contest.Register(context.Background(), other.ID, p.ID)
	assert.ErrorIs(t, err, common.ErrForbidden)
	assert.Equal(t, "not_owner", common.ErrorCode(err))
}

func TestCheckRegistration(t *testing.T) {
	env := newContestEnv(t, saturday)
	owner := env.addUser(t, "owner", model.RoleUser)
	p := env.addProject(t, owner, "Tracker", nil, "")
	ctx := context.Background()

	res, err := env.contest.CheckRegistration(ctx, p.ID)
	require.NoError(t, err)
	assert.False(t, res.IsRegistered)
	assert.True(t, res.Window.IsRegistrationOpen)

	_, err = env.contest.Register(ctx, owner.ID, p.ID)
	require.NoError(t, err)
	res, err = env.contest.CheckRegistration(ctx, p.ID)
	require.NoError(t, err)
	assert.True(t, res.IsRegistered)
	require.NotNil(t, res.Contestant)
}

func TestAiPick_OnlyDuringEvaluation(t *testing.T) {
	env := newContestEnv(t, saturday)
	_, err := env.contest.AiPick(context.Background())
	assert.Equal(t, "window_closed", common.ErrorCode(err))

	env.clock.Set(sunday)
	_, err = env.contest.AiPick(context.Background())
	assert.ErrorIs(t, err, common.ErrNotFound)
	assert.Equal(t, "no_contestants", common.ErrorCode(err))
}

func TestAiPick_IgnoresRemovedContestants(t *testing.T) {
	env := newContestEnv(t, saturday)
	ctx := context.Background()
	a := env.addUser(t, "alice", model.RoleUser)
	b := env.addUser(t, "bob", model.RoleUser)
	pa := env.addProject(t, a, "Alpha", []string{"go", "sql", "redis", "docker"}, strings.Repeat("a", 300))
	pb := env.addProject(t, b, "Beta", nil, "")

	ca, err := env.contest.Register(ctx, a.ID, pa.ID)
	require.NoError(t, err)
	_, err = env.contest.Register(ctx, b.ID, pb.ID)
	require.NoError(t, err)
	require.NoError(t, env.contest.RemoveContestant(ctx, ca.ID))

	env.clock.Set(sunday)
	res, err := env.contest.AiPick(ctx)
	require.NoError(t, err)
	assert.Equal(t, pb.ID, res.Candidate.ProjectID)
}

// setupWeek registers one project per owner on Saturday and moves to Sunday.
func setupWeek(t *testing.T, env *contestEnv, owners ...*model.User) []*model.Project {
	t.Helper()
	var projects []*model.Project
	for i, o := range owners {
		p := env.addProject(t, o, fmt.Sprintf("Project %d", i), []string{"go"}, "desc")
		_, err := env.contest.Register(context.Background(), o.ID, p.ID)
		require.NoError(t, err)
		projects = append(projects, p)
	}
	env.clock.Set(sunday)
	return projects
}

func TestApprove_SingleActiveWinner(t *testing.T) {
	env := newContestEnv(t, saturday)
	ctx := context.Background()
	admin := env.addUser(t, "admin", model.RoleAdmin)
	a := env.addUser(t, "alice", model.RoleUser)
	b := env.addUser(t, "bob", model.RoleUser)
	ps := setupWeek(t, env, a, b)

	first, err := env.contest.Approve(ctx, admin.ID, ApproveRequest{ProjectID: ps[0].ID, Score: 10})
	require.NoError(t, err)
	assert.True(t, first.IsActive)
	assert.Equal(t, defaultApprovalReason, first.Reason)

	second, err := env.contest.Approve(ctx, admin.ID, ApproveRequest{ProjectID: ps[1].ID, Reason: "better", Score: 12})
	require.NoError(t, err)

	history, err := env.contest.History(ctx, 10, 0)
	require.NoError(t, err)
	require.Len(t, history, 2)
	active := 0
	for _, h := range history {
		if h.IsActive {
			active++
			assert.Equal(t, second.ID, h.ID)
		} else {
			assert.Equal(t, first.ID, h.ID)
		}
	}
	assert.Equal(t, 1, active)

	// Replacing this week's winner moves the win to the new owner.
	assert.Equal(t, 0, env.user(t, a.ID).PowWins)
	assert.Equal(t, 1, env.user(t, b.ID).PowWins)

	contestants, err := env.store.Contest().ListContestants(ctx, 23, 2025)
	require.NoError(t, err)
	for _, c := range contestants {
		if c.ProjectID == ps[1].ID {
			assert.Equal(t, model.ContestantWinner, c.Status)
		} else {
			assert.Equal(t, model.ContestantParticipant, c.Status)
			assert.Equal(t, model.CertificateParticipant, c.CertificateType)
		}
	}
}

func TestApprove_SameProjectTwiceIsConflict(t *testing.T) {
	env := newContestEnv(t, saturday)
	ctx := context.Background()
	admin := env.addUser(t, "admin", model.RoleAdmin)
	a := env.addUser(t, "alice", model.RoleUser)
	ps := setupWeek(t, env, a)

	_, err := env.contest.Approve(ctx, admin.ID, ApproveRequest{ProjectID: ps[0].ID})
	require.NoError(t, err)
	_, err = env.contest.Approve(ctx, admin.ID, ApproveRequest{ProjectID: ps[0].ID})
	assert.ErrorIs(t, err, common.ErrConflict)
	assert.Equal(t, "already_winner", common.ErrorCode(err))
	assert.Equal(t, "project is already this week's winner", err.Error())

	assert.Equal(t, 1, env.user(t, a.ID).PowWins)
	assert.Equal(t, 1, countType(env.notifications(t, a.ID), model.NotificationPotwWinner))
}

func TestApprove_RequiresContestant(t *testing.T) {
	env := newContestEnv(t, sunday)
	admin := env.addUser(t, "admin", model.RoleAdmin)
	a := env.addUser(t, "alice", model.RoleUser)
	p := env.addProject(t, a, "Loner", nil, "")

	_, err := env.contest.Approve(context.Background(), admin.ID, ApproveRequest{ProjectID: p.ID})
	assert.ErrorIs(t, err, common.ErrNotFound)
	assert.Equal(t, "not_a_contestant", common.ErrorCode(err))
}

func TestApprove_LockHeld(t *testing.T) {
	env := newContestEnv(t, saturday)
	admin := env.addUser(t, "admin", model.RoleAdmin)
	a := env.addUser(t, "alice", model.RoleUser)
	ps := setupWeek(t, env, a)

	release, ok, err := env.locker.Acquire(context.Background(), "contest:approval_lock", 0)
	require.NoError(t, err)
	require.True(t, ok)
	defer release()

	_, err = env.contest.Approve(context.Background(), admin.ID, ApproveRequest{ProjectID: ps[0].ID})
	assert.ErrorIs(t, err, common.ErrConflict)
	assert.Equal(t, "approval_in_progress", common.ErrorCode(err))
}

func TestApprove_InvalidatesStatusCache(t *testing.T) {
	env := newContestEnv(t, saturday)
	ctx := context.Background()
	admin := env.addUser(t, "admin", model.RoleAdmin)
	a := env.addUser(t, "alice", model.RoleUser)
	ps := setupWeek(t, env, a)

	st, err := env.contest.Status(ctx, a.ID)
	require.NoError(t, err)
	assert.False(t, st.HasWinner)
	_, hit, _ := env.cache.Get(ctx, statusCacheKey)
	require.True(t, hit)

	_, err = env.contest.Approve(ctx, admin.ID, ApproveRequest{ProjectID: ps[0].ID})
	require.NoError(t, err)
	_, hit, _ = env.cache.Get(ctx, statusCacheKey)
	assert.False(t, hit)

	st, err = env.contest.Status(ctx, a.ID)
	require.NoError(t, err)
	assert.True(t, st.HasWinner)
	assert.True(t, st.IsMine)
	require.NotNil(t, st.Project)
	assert.Equal(t, ps[0].ID, st.Project.ID)

	other, err := env.contest.Status(ctx, admin.ID)
	require.NoError(t, err)
	assert.False(t, other.IsMine)
}

func TestStatus_ExpiredWinnerIsHidden(t *testing.T) {
	env := newContestEnv(t, saturday)
	ctx := context.Background()
	admin := env.addUser(t, "admin", model.RoleAdmin)
	a := env.addUser(t, "alice", model.RoleUser)
	ps := setupWeek(t, env, a)
	potw, err := env.contest.Approve(ctx, admin.ID, ApproveRequest{ProjectID: ps[0].ID})
	require.NoError(t, err)

	env.clock.Set(potw.ExpiresAt)
	st, err := env.contest.Status(ctx, a.ID)
	require.NoError(t, err)
	assert.False(t, st.HasWinner)
	assert.Nil(t, st.Winner)
}

func TestContest_EndToEnd(t *testing.T) {
	env := newContestEnv(t, saturday)
	ctx := context.Background()
	admin := env.addUser(t, "admin", model.RoleAdmin)
	owner := env.addUser(t, "owner", model.RoleUser)
	rival := env.addUser(t, "rival", model.RoleUser)

	p1 := env.addProject(t, owner, "P1", []string{"go", "postgres", "redis"}, strings.Repeat("x", 300))
	p2 := env.addProject(t, rival, "P2", []string{"go"}, "tiny")

	var fans []*model.User
	for i := 0; i < 10; i++ {
		fans = append(fans, env.addUser(t, fmt.Sprintf("fan%d", i), model.RoleUser))
	}
	for _, f := range fans {
		_, err := env.projects.ToggleLike(ctx, p1.ID, f.ID)
		require.NoError(t, err)
	}
	for i := 0; i < 4; i++ {
		_, err := env.projects.AddComment(ctx, p1.ID, fans[i].ID, CommentRequest{Text: "nice"})
		require.NoError(t, err)
	}

	_, err := env.contest.Register(ctx, owner.ID, p1.ID)
	require.NoError(t, err)
	_, err = env.contest.Register(ctx, rival.ID, p2.ID)
	require.NoError(t, err)

	env.clock.Set(sunday)
	pick, err := env.contest.AiPick(ctx)
	require.NoError(t, err)
	assert.Equal(t, p1.ID, pick.Candidate.ProjectID)
	assert.Equal(t, 30.0, pick.Breakdown.Likes)
	assert.Equal(t, 20.0, pick.Breakdown.Comments)
	assert.Equal(t, 6.0, pick.Breakdown.TechStack)
	assert.Equal(t, 10.0, pick.Breakdown.Description)
	assert.Equal(t, 6.0, pick.Breakdown.Recency)
	assert.Equal(t, 72.0, pick.Score)

	_, err = env.contest.Approve(ctx, admin.ID, ApproveRequest{ProjectID: p1.ID, Reason: pick.Reason, Score: pick.Score})
	require.NoError(t, err)

	c, err := env.store.Contest().FindContestantForWeek(ctx, nil, p1.ID, 23, 2025)
	require.NoError(t, err)
	assert.Equal(t, model.ContestantWinner, c.Status)
	assert.Equal(t, model.CertificateWinner, c.CertificateType)
	assert.Equal(t, 1, env.user(t, owner.ID).PowWins)

	assert.Equal(t, 1, countType(env.notifications(t, owner.ID), model.NotificationPotwWinner))
	assert.Equal(t, 0, countType(env.notifications(t, owner.ID), model.NotificationPotwAnnouncement))
	for _, u := range append([]*model.User{admin, rival}, fans...) {
		assert.Equal(t, 1, countType(env.notifications(t, u.ID), model.NotificationPotwAnnouncement), u.Username)
		assert.Equal(t, 0, countType(env.notifications(t, u.ID), model.NotificationPotwWinner), u.Username)
	}

	sent := env.mailer.sent()
	require.Len(t, sent, 1)
	assert.Equal(t, owner.Email, sent[0].ToAddress)

	board, err := env.contest.Leaderboard(ctx, 10)
	require.NoError(t, err)
	require.Len(t, board, 1)
	assert.Equal(t, owner.ID, board[0].UserID)
}

func TestSendReminders_QueuesAndProcesses(t *testing.T) {
	env := newContestEnv(t, monday)
	ctx := context.Background()
	admin := env.addUser(t, "admin", model.RoleAdmin)
	for i := 0; i < reminderEmailBatch+5; i++ {
		env.addUser(t, fmt.Sprintf("user%03d", i), model.RoleUser)
	}
	suspended := env.addUser(t, "banned", model.RoleUser)
	require.NoError(t, env.store.Users().SetSuspended(ctx, suspended.ID, true))

	jobID, err := env.contest.SendReminders(ctx, admin.ID, SendRemindersRequest{})
	require.NoError(t, err)
	require.Len(t, env.queue.jobs, 1)
	job := env.queue.jobs[0]
	assert.Equal(t, jobID, job.JobID)
	assert.Equal(t, defaultReminderText, job.Message)

	n, err := env.contest.ProcessReminder(ctx, job)
	require.NoError(t, err)
	assert.EqualValues(t, reminderEmailBatch+6, n)

	require.Len(t, env.mailer.batches, 2)
	assert.Len(t, env.mailer.batches[0], reminderEmailBatch)
	assert.Len(t, env.mailer.batches[1], 6)
	assert.Equal(t, 0, countType(env.notifications(t, suspended.ID), model.NotificationContestReminder))
	assert.Equal(t, 1, countType(env.notifications(t, admin.ID), model.NotificationContestReminder))
}

func TestProcessReminder_CustomMessage(t *testing.T) {
	env := newContestEnv(t, monday)
	u := env.addUser(t, "solo", model.RoleUser)

	_, err := env.contest.ProcessReminder(context.Background(), queue.ReminderJob{JobID: "j1", Message: "Saturday!"})
	require.NoError(t, err)
	ns := env.notifications(t, u.ID)
	require.Len(t, ns, 1)
	assert.Equal(t, "Saturday!", ns[0].Message)
}

func TestPhaseOverride(t *testing.T) {
	env := newContestEnv(t, monday)
	ctx := context.Background()

	w, err := env.contest.CurrentWindow(ctx)
	require.NoError(t, err)
	assert.Equal(t, model.PhaseDisplay, w.Phase)
	assert.False(t, w.Manual)

	w, err = env.contest.SetPhase(ctx, SetPhaseRequest{Phase: model.PhaseRegistration})
	require.NoError(t, err)
	assert.True(t, w.IsRegistrationOpen)
	assert.True(t, w.Manual)

	// The worker leaves a manual override alone.
	changed, err := env.contest.SyncPhase(ctx)
	require.NoError(t, err)
	assert.False(t, changed)

	owner := env.addUser(t, "owner", model.RoleUser)
	p := env.addProject(t, owner, "Midweek", nil, "")
	_, err = env.contest.Register(ctx, owner.ID, p.ID)
	require.NoError(t, err)

	w, err = env.contest.ClearPhase(ctx)
	require.NoError(t, err)
	assert.Equal(t, model.PhaseDisplay, w.Phase)
	assert.False(t, w.Manual)

	_, err = env.contest.SetPhase(ctx, SetPhaseRequest{Phase: "lunch"})
	assert.ErrorIs(t, err, common.ErrValidation)
}

func TestSyncPhase_FollowsCalendar(t *testing.T) {
	env := newContestEnv(t, saturday)
	ctx := context.Background()

	changed, err := env.contest.SyncPhase(ctx)
	require.NoError(t, err)
	assert.False(t, changed)

	// Same ISO week, next day.
	env.clock.Set(sunday)
	changed, err = env.contest.SyncPhase(ctx)
	require.NoError(t, err)
	assert.True(t, changed)

	w, err := env.contest.CurrentWindow(ctx)
	require.NoError(t, err)
	assert.True(t, w.IsEvaluationOpen)
}

func TestCertificateEligibility(t *testing.T) {
	env := newContestEnv(t, saturday)
	ctx := context.Background()
	admin := env.addUser(t, "admin", model.RoleAdmin)
	a := env.addUser(t, "alice", model.RoleUser)
	b := env.addUser(t, "bob", model.RoleUser)
	ps := setupWeek(t, env, a, b)

	res, err := env.contest.CertificateEligibility(ctx, a.ID, ps[0].ID)
	require.NoError(t, err)
	assert.False(t, res.Eligible)
	assert.Equal(t, "no_contest_result", res.Reason)

	_, err = env.contest.Approve(ctx, admin.ID, ApproveRequest{ProjectID: ps[0].ID})
	require.NoError(t, err)

	res, err = env.contest.CertificateEligibility(ctx, a.ID, ps[0].ID)
	require.NoError(t, err)
	assert.True(t, res.Eligible)
	assert.Equal(t, model.CertificateWinner, res.CertificateType)

	res, err = env.contest.CertificateEligibility(ctx, b.ID, ps[1].ID)
	require.NoError(t, err)
	assert.Equal(t, model.CertificateParticipant, res.CertificateType)

	res, err = env.contest.CertificateEligibility(ctx, b.ID, ps[0].ID)
	require.NoError(t, err)
	assert.False(t, res.Eligible)
	assert.Equal(t, "not_owner", res.Reason)
}

func TestCurrentWindow_AdvancesWithoutScheduler(t *testing.T) {
	env := newContestEnv(t, saturday)
	ctx := context.Background()

	w, err := env.contest.CurrentWindow(ctx)
	require.NoError(t, err)
	assert.True(t, w.IsRegistrationOpen)

	env.clock.Set(sunday)
	w, err = env.contest.CurrentWindow(ctx)
	require.NoError(t, err)
	assert.Equal(t, model.PhaseEvaluation, w.Phase)

	// Already moved by the read, so the scheduler has nothing left to do.
	changed, err := env.contest.SyncPhase(ctx)
	require.NoError(t, err)
	assert.False(t, changed)
}

func TestCurrentWindow_KeepsManualOverrideNextDay(t *testing.T) {
	env := newContestEnv(t, saturday)
	ctx := context.Background()

	_, err := env.contest.SetPhase(ctx, SetPhaseRequest{Phase: model.PhaseDisplay})
	require.NoError(t, err)

	env.clock.Set(sunday)
	w, err := env.contest.CurrentWindow(ctx)
	require.NoError(t, err)
	assert.Equal(t, model.PhaseDisplay, w.Phase)
	assert.True(t, w.Manual)
}

func TestApprove_OnlyDuringEvaluation(t *testing.T) {
	env := newContestEnv(t, saturday)
	ctx := context.Background()
	admin := env.addUser(t, "admin", model.RoleAdmin)
	a := env.addUser(t, "alice", model.RoleUser)
	p := env.addProject(t, a, "Early", nil, "")
	_, err := env.contest.Register(ctx, a.ID, p.ID)
	require.NoError(t, err)

	for name, at := range map[string]time.Time{"saturday": saturday, "monday": monday} {
		t.Run(name, func(t *testing.T) {
			env.clock.Set(at)
			_, err := env.contest.Approve(ctx, admin.ID, ApproveRequest{ProjectID: p.ID})
			assert.ErrorIs(t, err, common.ErrForbidden)
			assert.Equal(t, "window_closed", common.ErrorCode(err))
		})
	}
	assert.Equal(t, 0, env.user(t, a.ID).PowWins)
}

func TestApprove_RemovedContestantIsRejected(t *testing.T) {
	env := newContestEnv(t, saturday)
	ctx := context.Background()
	admin := env.addUser(t, "admin", model.RoleAdmin)
	a := env.addUser(t, "alice", model.RoleUser)
	p := env.addProject(t, a, "Withdrawn", nil, "")
	c, err := env.contest.Register(ctx, a.ID, p.ID)
	require.NoError(t, err)
	require.NoError(t, env.contest.RemoveContestant(ctx, c.ID))

	env.clock.Set(sunday)
	_, err = env.contest.Approve(ctx, admin.ID, ApproveRequest{ProjectID: p.ID})
	assert.ErrorIs(t, err, common.ErrNotFound)
	assert.Equal(t, "not_a_contestant", common.ErrorCode(err))
	assert.Equal(t, 0, env.user(t, a.ID).PowWins)
}

func TestRemoveContestant_WinnerIsConflict(t *testing.T) {
	env := newContestEnv(t, saturday)
	ctx := context.Background()
	admin := env.addUser(t, "admin", model.RoleAdmin)
	a := env.addUser(t, "alice", model.RoleUser)
	ps := setupWeek(t, env, a)
	_, err := env.contest.Approve(ctx, admin.ID, ApproveRequest{ProjectID: ps[0].ID})
	require.NoError(t, err)

	c, err := env.store.Contest().FindContestantForWeek(ctx, nil, ps[0].ID, 23, 2025)
	require.NoError(t, err)
	err = env.contest.RemoveContestant(ctx, c.ID)
	assert.ErrorIs(t, err, common.ErrConflict)
	assert.Equal(t, "contestant_is_winner", common.ErrorCode(err))
}

func TestStatus_FriendsOnlyProjectHiddenFromStrangers(t *testing.T) {
	env := newContestEnv(t, saturday)
	ctx := context.Background()
	admin := env.addUser(t, "admin", model.RoleAdmin)
	owner := env.addUser(t, "owner", model.RoleUser)
	friend := env.addUser(t, "friend", model.RoleUser)
	stranger := env.addUser(t, "stranger", model.RoleUser)
	require.NoError(t, env.store.Friends().AddFriendship(ctx, nil, owner.ID, friend.ID))

	p, err := env.projects.Create(ctx, owner.ID, CreateProjectRequest{
		Title:       "Secret",
		Description: "private notes",
		Visibility:  model.VisibilityFriends,
	})
	require.NoError(t, err)
	_, err = env.contest.Register(ctx, owner.ID, p.ID)
	require.NoError(t, err)
	env.clock.Set(sunday)
	_, err = env.contest.Approve(ctx, admin.ID, ApproveRequest{ProjectID: p.ID})
	require.NoError(t, err)

	st, err := env.contest.Status(ctx, stranger.ID)
	require.NoError(t, err)
	assert.True(t, st.HasWinner)
	assert.Nil(t, st.Project)
	require.NotNil(t, st.Winner)
	assert.Equal(t, "Secret", st.Winner.ProjectTitle)
	assert.Equal(t, "owner Tester", st.Winner.OwnerName)

	// The cached banner still serves the project to those allowed to see it.
	for _, viewer := range []*model.User{friend, owner} {
		st, err := env.contest.Status(ctx, viewer.ID)
		require.NoError(t, err)
		require.NotNil(t, st.Project, viewer.Username)
		assert.Equal(t, "private notes", st.Project.Description)
	}
}

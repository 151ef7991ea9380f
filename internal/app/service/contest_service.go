package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"proconnect/internal/common"
	"proconnect/internal/domain/contest"
	"proconnect/internal/domain/model"
	"proconnect/internal/domain/repository"
	"proconnect/internal/platform/mailer"
	"proconnect/internal/platform/queue"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	statusCacheKey        = "contest:status"
	reminderEmailBatch    = 100
	defaultReminderText   = "Project of the Week registration opens on Saturday. Register your best project!"
	defaultApprovalReason = "Selected by the moderators"
)

type ContestOptions struct {
	ApprovalLockKey string
	ApprovalLockTTL time.Duration
	StatusCacheTTL  time.Duration
}

// ContestDeps groups the collaborators of ContestService.
type ContestDeps struct {
	Contests      repository.ContestRepository
	Projects      repository.ProjectRepository
	Users         repository.UserRepository
	Friends       repository.FriendRepository
	Notifications repository.NotificationRepository
	Tx            repository.TxRunner
	Locker        Locker
	Cache         queue.ByteStore
	Reminders     ReminderEnqueuer
	Mailer        mailer.Mailer
	Clock         contest.Clock
	Log           *zap.Logger
	Options       ContestOptions
}

type ContestService struct {
	contestRepo repository.ContestRepository
	projectRepo repository.ProjectRepository
	userRepo    repository.UserRepository
	friendRepo  repository.FriendRepository
	notifRepo   repository.NotificationRepository
	tx          repository.TxRunner
	locker      Locker
	cache       queue.ByteStore
	reminders   ReminderEnqueuer
	mailer      mailer.Mailer
	clock       contest.Clock
	log         *zap.Logger
	opts        ContestOptions
}

func NewContestService(d ContestDeps) *ContestService {
	if d.Options.ApprovalLockKey == "" {
		d.Options.ApprovalLockKey = "contest:approval_lock"
	}
	if d.Options.ApprovalLockTTL <= 0 {
		d.Options.ApprovalLockTTL = 30 * time.Second
	}
	if d.Options.StatusCacheTTL <= 0 {
		d.Options.StatusCacheTTL = time.Minute
	}
	return &ContestService{
		contestRepo: d.Contests,
		projectRepo: d.Projects,
		userRepo:    d.Users,
		friendRepo:  d.Friends,
		notifRepo:   d.Notifications,
		tx:          d.Tx,
		locker:      d.Locker,
		cache:       d.Cache,
		reminders:   d.Reminders,
		mailer:      d.Mailer,
		clock:       d.Clock,
		log:         d.Log,
		opts:        d.Options,
	}
}

type RegistrationStatus struct {
	IsRegistered bool              `json:"is_registered"`
	Contestant   *model.Contestant `json:"contestant,omitempty"`
	Window       contest.Window    `json:"window"`
}

type ApproveRequest struct {
	ProjectID string  `json:"project_id" validate:"required,uuid"`
	Reason    string  `json:"reason" validate:"max=1000"`
	Score     float64 `json:"score" validate:"gte=0"`
}

type SetPhaseRequest struct {
	Phase model.ContestPhase `json:"phase" validate:"required,oneof=registration evaluation display"`
}

type SendRemindersRequest struct {
	Message string `json:"message" validate:"max=500"`
}

// ContestStatus is the winner banner shown to every user.
type ContestStatus struct {
	HasWinner bool                    `json:"has_winner"`
	Winner    *model.ProjectOfTheWeek `json:"winner,omitempty"`
	Project   *model.Project          `json:"project,omitempty"`
	Owner     *model.UserSummary      `json:"owner,omitempty"`
	IsMine    bool                    `json:"is_mine"`
}

type CertificateEligibility struct {
	Eligible        bool                  `json:"eligible"`
	CertificateType model.CertificateType `json:"certificate_type,omitempty"`
	WeekNumber      int                   `json:"week_number,omitempty"`
	Year            int                   `json:"year,omitempty"`
	Reason          string                `json:"reason,omitempty"`
}

// CurrentWindow returns the persisted phase of the current week, creating
// the row from the calendar when it does not exist yet.
func (s *ContestService) CurrentWindow(ctx context.Context) (*contest.Window, error) {
	now := s.clock.Now()
	week, err := s.currentWeek(ctx, now)
	if err != nil {
		return nil, err
	}
	w := contest.NewWindow(now, week.Phase, week.Manual)

	active, err := s.contestRepo.FindActiveWinner(ctx, nil)
	if err != nil && !errors.Is(err, common.ErrNotFound) {
		return nil, err
	}
	if active != nil {
		w.CurrentWinnerExpires = &active.ExpiresAt
	}
	return &w, nil
}

func (s *ContestService) currentWeek(ctx context.Context, now time.Time) (*model.ContestWeek, error) {
	week, _, err := s.syncWeek(ctx, now)
	return week, err
}

// syncWeek loads the week containing now and moves it to the calendar phase
// unless an admin override is set. changed reports whether the stored phase moved.
func (s *ContestService) syncWeek(ctx context.Context, now time.Time) (week *model.ContestWeek, changed bool, err error) {
	wk := contest.WeekOf(now)
	want := contest.PhaseAt(now)
	week, err = s.contestRepo.EnsureWeek(ctx, &model.ContestWeek{
		Year:       wk.Year,
		WeekNumber: wk.Number,
		Phase:      want,
	})
	if err != nil {
		return nil, false, common.Errorf("failed to load contest week: %w", err)
	}
	if week.Manual || week.Phase == want {
		return week, false, nil
	}
	week.Phase = want
	if err := s.contestRepo.SaveWeek(ctx, week); err != nil {
		return nil, false, common.Errorf("failed to sync contest phase: %w", err)
	}
	s.log.Info("contest phase advanced", zap.String("phase", string(want)),
		zap.Int("week", week.WeekNumber), zap.Int("year", week.Year))
	return week, true, nil
}

func (s *ContestService) requirePhase(ctx context.Context, phase model.ContestPhase) (*contest.Window, error) {
	w, err := s.CurrentWindow(ctx)
	if err != nil {
		return nil, err
	}
	if w.Phase != phase {
		return nil, common.NewCodedError(common.ErrForbidden, "window_closed",
			fmt.Sprintf("contest %s is closed (current phase: %s)", phase, w.Phase))
	}
	return w, nil
}

// Register enters projectID into the current week's contest.
func (s *ContestService) Register(ctx context.Context, userID, projectID string) (*model.Contestant, error) {
	w, err := s.requirePhase(ctx, model.PhaseRegistration)
	if err != nil {
		return nil, err
	}
	p, err := s.projectRepo.FindByID(ctx, projectID, userID)
	if err != nil {
		return nil, err
	}
	if p.OwnerID != userID {
		return nil, common.NewCodedError(common.ErrForbidden, "not_owner", "only the project owner can register it")
	}

	c := &model.Contestant{
		ID:              uuid.NewString(),
		ProjectID:       projectID,
		UserID:          userID,
		WeekNumber:      w.WeekNumber,
		Year:            w.Year,
		Status:          model.ContestantActive,
		CertificateType: model.CertificateNone,
		RegisteredAt:    s.clock.Now(),
	}
	if err := s.contestRepo.CreateContestant(ctx, c); err != nil {
		return nil, err
	}
	s.log.Info("project registered for contest",
		zap.String("project_id", projectID), zap.Int("week", w.WeekNumber), zap.Int("year", w.Year))
	return c, nil
}

func (s *ContestService) CheckRegistration(ctx context.Context, projectID string) (*RegistrationStatus, error) {
	w, err := s.CurrentWindow(ctx)
	if err != nil {
		return nil, err
	}
	res := &RegistrationStatus{Window: *w}
	c, err := s.contestRepo.FindContestantForWeek(ctx, nil, projectID, w.WeekNumber, w.Year)
	switch {
	case errors.Is(err, common.ErrNotFound):
	case err != nil:
		return nil, err
	default:
		res.Contestant = c
		res.IsRegistered = c.Status != model.ContestantRemoved
	}
	return res, nil
}

// ListContestants returns the active contestants of the current week.
func (s *ContestService) ListContestants(ctx context.Context) ([]model.Contestant, error) {
	w, err := s.CurrentWindow(ctx)
	if err != nil {
		return nil, err
	}
	return s.contestRepo.ListContestants(ctx, w.WeekNumber, w.Year, model.ContestantActive)
}

func (s *ContestService) RemoveContestant(ctx context.Context, contestantID string) error {
	c, err := s.contestRepo.FindContestantByID(ctx, contestantID)
	if err != nil {
		return err
	}
	if c.Status == model.ContestantWinner {
		return common.NewCodedError(common.ErrConflict, "contestant_is_winner", "the approved winner cannot be removed")
	}
	if c.Status == model.ContestantRemoved {
		return nil
	}
	return s.contestRepo.UpdateContestant(ctx, nil, c.ID, model.ContestantRemoved, model.CertificateNone)
}

// AiPick scores the week's active contestants. Nothing is persisted.
func (s *ContestService) AiPick(ctx context.Context) (*contest.Result, error) {
	w, err := s.requirePhase(ctx, model.PhaseEvaluation)
	if err != nil {
		return nil, err
	}
	contestants, err := s.contestRepo.ListContestants(ctx, w.WeekNumber, w.Year, model.ContestantActive)
	if err != nil {
		return nil, err
	}
	candidates := make([]contest.Candidate, 0, len(contestants))
	for _, c := range contestants {
		if c.Project == nil {
			continue
		}
		candidates = append(candidates, contest.Candidate{
			ContestantID: c.ID,
			ProjectID:    c.ProjectID,
			Title:        c.Project.Title,
			OwnerID:      c.Project.OwnerID,
			Likes:        c.Project.LikesCount,
			Comments:     c.Project.CommentsCount,
			TechStack:    c.Project.TechStack,
			Description:  c.Project.Description,
			RegisteredAt: c.RegisteredAt,
		})
	}
	return contest.Pick(candidates, s.clock.Now())
}

// Approve records projectID as this week's winner and fans out the news.
func (s *ContestService) Approve(ctx context.Context, adminID string, req ApproveRequest) (*model.ProjectOfTheWeek, error) {
	if err := common.Validate(req); err != nil {
		return nil, err
	}
	w, err := s.requirePhase(ctx, model.PhaseEvaluation)
	if err != nil {
		return nil, err
	}

	release, ok, err := s.locker.Acquire(ctx, s.opts.ApprovalLockKey, s.opts.ApprovalLockTTL)
	if err != nil {
		return nil, common.Errorf("failed to acquire approval lock: %w", err)
	}
	if !ok {
		return nil, common.NewCodedError(common.ErrConflict, "approval_in_progress", "another approval is in progress")
	}
	defer release()

	p, err := s.projectRepo.FindByID(ctx, req.ProjectID, "")
	if err != nil {
		return nil, err
	}
	owner, err := s.userRepo.FindByID(ctx, p.OwnerID)
	if err != nil {
		return nil, common.Errorf("failed to load project owner: %w", err)
	}

	now := s.clock.Now()
	reason := req.Reason
	if reason == "" {
		reason = defaultApprovalReason
	}
	potw := &model.ProjectOfTheWeek{
		ID:           uuid.NewString(),
		ProjectID:    &p.ID,
		OwnerID:      owner.ID,
		ProjectTitle: p.Title,
		OwnerName:    displayName(owner),
		WeekNumber:   w.WeekNumber,
		Year:         w.Year,
		Reason:       reason,
		Score:        req.Score,
		SelectedAt:   now,
		ExpiresAt:    contest.NextSundayMidnight(now),
		IsActive:     true,
		ApprovedBy:   adminID,
	}

	err = s.tx.WithinTx(ctx, func(tx *sql.Tx) error {
		c, err := s.contestRepo.FindContestantForWeek(ctx, tx, p.ID, w.WeekNumber, w.Year)
		if err != nil || c.Status == model.ContestantRemoved {
			if err == nil || errors.Is(err, common.ErrNotFound) {
				return common.NewCodedError(common.ErrNotFound, "not_a_contestant", "project is not a contestant this week")
			}
			return err
		}

		var previousOwner string
		active, err := s.contestRepo.FindActiveWinner(ctx, tx)
		switch {
		case errors.Is(err, common.ErrNotFound):
		case err != nil:
			return err
		case active.WeekNumber == w.WeekNumber && active.Year == w.Year:
			if active.ProjectID != nil && *active.ProjectID == p.ID {
				return common.NewCodedError(common.ErrConflict, "already_winner", "project is already this week's winner")
			}
			previousOwner = active.OwnerID
		}

		if err := s.contestRepo.DeactivateWinners(ctx, tx); err != nil {
			return err
		}
		if err := s.contestRepo.CreateWinner(ctx, tx, potw); err != nil {
			return err
		}
		if err := s.contestRepo.UpdateContestant(ctx, tx, c.ID, model.ContestantWinner, model.CertificateWinner); err != nil {
			return err
		}
		if err := s.contestRepo.MarkParticipants(ctx, tx, w.WeekNumber, w.Year, c.ID); err != nil {
			return err
		}
		if err := s.userRepo.AdjustPowWins(ctx, tx, owner.ID, 1); err != nil {
			return err
		}
		if previousOwner != "" {
			if err := s.userRepo.AdjustPowWins(ctx, tx, previousOwner, -1); err != nil {
				return err
			}
		}

		meta, _ := json.Marshal(map[string]any{"week_number": w.WeekNumber, "year": w.Year, "score": req.Score})
		if err := s.notifRepo.Create(ctx, tx, &model.Notification{
			ID:             uuid.NewString(),
			UserID:         owner.ID,
			Type:           model.NotificationPotwWinner,
			Message:        fmt.Sprintf("Congratulations! %q is Project of the Week", p.Title),
			RelatedProject: &p.ID,
			Metadata:       meta,
		}); err != nil {
			return err
		}
		_, err = s.notifRepo.Broadcast(ctx, tx, &model.Notification{
			Type:           model.NotificationPotwAnnouncement,
			Message:        fmt.Sprintf("%q by %s is this week's Project of the Week", p.Title, potw.OwnerName),
			RelatedProject: &p.ID,
			RelatedUser:    &owner.ID,
			Metadata:       meta,
		}, owner.ID)
		return err
	})
	var coded *common.CodedError
	if errors.As(err, &coded) {
		return nil, err
	}
	if err != nil {
		return nil, common.Errorf("failed to approve winner: %w", err)
	}

	s.log.Info("project of the week approved",
		zap.String("project_id", p.ID), zap.String("owner_id", owner.ID), zap.String("approved_by", adminID),
		zap.Int("week", w.WeekNumber), zap.Int("year", w.Year))

	if err := s.cache.Delete(ctx, statusCacheKey); err != nil {
		s.log.Warn("failed to invalidate contest status cache", zap.Error(err))
	}
	s.emailWinner(ctx, owner, p)
	return potw, nil
}

func (s *ContestService) emailWinner(ctx context.Context, owner *model.User, p *model.Project) {
	msg := mailer.Message{
		ToName:      displayName(owner),
		ToAddress:   owner.Email,
		Subject:     "Your project is Project of the Week!",
		TextContent: fmt.Sprintf("Congratulations %s, %q was selected as Project of the Week. You can now download your winner certificate.", displayName(owner), p.Title),
	}
	if err := s.mailer.Send(ctx, []mailer.Message{msg}); err != nil {
		s.log.Warn("failed to email winner", zap.String("user_id", owner.ID), zap.Error(err))
	}
}

// Status returns the active winner banner, cached for all users.
func (s *ContestService) Status(ctx context.Context, userID string) (*ContestStatus, error) {
	status, hit, err := queue.GetJSON[ContestStatus](ctx, s.cache, statusCacheKey)
	if err != nil {
		s.log.Warn("contest status cache read failed", zap.Error(err))
	}
	if !hit {
		status, err = s.loadStatus(ctx)
		if err != nil {
			return nil, err
		}
		if err := queue.SetJSON(ctx, s.cache, statusCacheKey, status, s.opts.StatusCacheTTL); err != nil {
			s.log.Warn("contest status cache write failed", zap.Error(err))
		}
	}

	if status.Winner != nil && !s.clock.Now().Before(status.Winner.ExpiresAt) {
		return &ContestStatus{}, nil
	}
	status.IsMine = status.Winner != nil && status.Winner.OwnerID == userID

	// Friends-only projects fall back to the winner snapshot for strangers.
	if p := status.Project; p != nil && !status.IsMine && p.Visibility != model.VisibilityPublic {
		friends, err := s.friendRepo.AreFriends(ctx, userID, p.OwnerID)
		if err != nil {
			return nil, common.Errorf("failed to check friendship: %w", err)
		}
		if !friends {
			status.Project = nil
		}
	}
	return status, nil
}

func (s *ContestService) loadStatus(ctx context.Context) (*ContestStatus, error) {
	active, err := s.contestRepo.FindActiveWinner(ctx, nil)
	if errors.Is(err, common.ErrNotFound) {
		return &ContestStatus{}, nil
	}
	if err != nil {
		return nil, err
	}
	status := &ContestStatus{HasWinner: true, Winner: active}
	if active.ProjectID != nil {
		p, err := s.projectRepo.FindByID(ctx, *active.ProjectID, "")
		if err != nil && !errors.Is(err, common.ErrNotFound) {
			return nil, err
		}
		if p != nil {
			status.Project = p
			status.Owner = p.Owner
		}
	}
	if status.Owner == nil {
		if owner, err := s.userRepo.FindByID(ctx, active.OwnerID); err == nil {
			status.Owner = summaryOf(owner)
		}
	}
	return status, nil
}

// SendReminders queues a reminder fan-out and returns the job id.
func (s *ContestService) SendReminders(ctx context.Context, adminID string, req SendRemindersRequest) (string, error) {
	if err := common.Validate(req); err != nil {
		return "", err
	}
	job := queue.ReminderJob{
		JobID:       uuid.NewString(),
		Message:     req.Message,
		RequestedBy: adminID,
		EnqueuedAt:  s.clock.Now(),
	}
	if job.Message == "" {
		job.Message = defaultReminderText
	}
	if err := s.reminders.Push(ctx, job); err != nil {
		return "", common.Errorf("failed to queue reminders: %w", err)
	}
	s.log.Info("contest reminder queued", zap.String("job_id", job.JobID), zap.String("by", adminID))
	return job.JobID, nil
}

// ProcessReminder notifies every active user and emails them in batches.
func (s *ContestService) ProcessReminder(ctx context.Context, job queue.ReminderJob) (int64, error) {
	meta, _ := json.Marshal(map[string]string{"job_id": job.JobID})
	count, err := s.notifRepo.Broadcast(ctx, nil, &model.Notification{
		Type:     model.NotificationContestReminder,
		Message:  job.Message,
		Metadata: meta,
	}, "")
	if err != nil {
		return 0, common.Errorf("failed to insert reminders: %w", err)
	}

	for offset := 0; ; offset += reminderEmailBatch {
		users, err := s.userRepo.ListActive(ctx, reminderEmailBatch, offset)
		if err != nil {
			return count, common.Errorf("failed to list users for reminders: %w", err)
		}
		if len(users) == 0 {
			break
		}
		msgs := make([]mailer.Message, 0, len(users))
		for i := range users {
			msgs = append(msgs, mailer.Message{
				ToName:      displayName(&users[i]),
				ToAddress:   users[i].Email,
				Subject:     "Project of the Week reminder",
				TextContent: job.Message,
			})
		}
		if err := s.mailer.Send(ctx, msgs); err != nil {
			s.log.Warn("reminder email batch failed", zap.String("job_id", job.JobID), zap.Int("offset", offset), zap.Error(err))
		}
		if len(users) < reminderEmailBatch {
			break
		}
	}
	return count, nil
}

// CertificateEligibility reports whether userID may generate a contest certificate for projectID.
func (s *ContestService) CertificateEligibility(ctx context.Context, userID, projectID string) (*CertificateEligibility, error) {
	p, err := s.projectRepo.FindByID(ctx, projectID, userID)
	if err != nil {
		return nil, err
	}
	if p.OwnerID != userID {
		return &CertificateEligibility{Reason: "not_owner"}, nil
	}
	c, err := s.contestRepo.LatestAwarded(ctx, projectID)
	if errors.Is(err, common.ErrNotFound) {
		return &CertificateEligibility{Reason: "no_contest_result"}, nil
	}
	if err != nil {
		return nil, err
	}
	return &CertificateEligibility{
		Eligible:        true,
		CertificateType: c.CertificateType,
		WeekNumber:      c.WeekNumber,
		Year:            c.Year,
	}, nil
}

// SetPhase overrides the calendar phase of the current week.
func (s *ContestService) SetPhase(ctx context.Context, req SetPhaseRequest) (*contest.Window, error) {
	if err := common.Validate(req); err != nil {
		return nil, err
	}
	return s.savePhase(ctx, req.Phase, true)
}

// ClearPhase drops the override and returns to the calendar phase.
func (s *ContestService) ClearPhase(ctx context.Context) (*contest.Window, error) {
	return s.savePhase(ctx, contest.PhaseAt(s.clock.Now()), false)
}

func (s *ContestService) savePhase(ctx context.Context, phase model.ContestPhase, manual bool) (*contest.Window, error) {
	wk := contest.WeekOf(s.clock.Now())
	week := &model.ContestWeek{Year: wk.Year, WeekNumber: wk.Number, Phase: phase, Manual: manual}
	if err := s.contestRepo.SaveWeek(ctx, week); err != nil {
		return nil, common.Errorf("failed to save contest phase: %w", err)
	}
	s.log.Info("contest phase set", zap.String("phase", string(phase)), zap.Bool("manual", manual))
	return s.CurrentWindow(ctx)
}

// SyncPhase moves the current week to its calendar phase unless an admin
// override is set. It reports whether the stored phase changed.
func (s *ContestService) SyncPhase(ctx context.Context) (bool, error) {
	_, changed, err := s.syncWeek(ctx, s.clock.Now())
	return changed, err
}

func (s *ContestService) History(ctx context.Context, limit, offset int) ([]model.ProjectOfTheWeek, error) {
	return s.contestRepo.ListWinners(ctx, limit, offset)
}

func (s *ContestService) Leaderboard(ctx context.Context, limit int) ([]model.LeaderboardEntry, error) {
	return s.userRepo.Leaderboard(ctx, limit)
}

func displayName(u *model.User) string {
	if u.FullName != "" {
		return u.FullName
	}
	return u.Username
}

func summaryOf(u *model.User) *model.UserSummary {
	sum := u.Summary()
	return &sum
}

package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"proconnect/internal/common"
	"proconnect/internal/domain/model"
)

type ContestRepository interface {
	CreateContestant(ctx context.Context, c *model.Contestant) error
	FindContestantByID(ctx context.Context, id string) (*model.Contestant, error)
	FindContestantForWeek(ctx context.Context, tx *sql.Tx, projectID string, week, year int) (*model.Contestant, error)
	// ListContestants returns the week's contestants with their project and owner.
	ListContestants(ctx context.Context, week, year int, statuses ...model.ContestantStatus) ([]model.Contestant, error)
	UpdateContestant(ctx context.Context, tx *sql.Tx, id string, status model.ContestantStatus, certType model.CertificateType) error
	// MarkParticipants flags every non-removed contestant of the week except exceptID.
	MarkParticipants(ctx context.Context, tx *sql.Tx, week, year int, exceptID string) error
	// LatestAwarded returns the newest contestant row of a project that earned a certificate.
	LatestAwarded(ctx context.Context, projectID string) (*model.Contestant, error)

	FindActiveWinner(ctx context.Context, tx *sql.Tx) (*model.ProjectOfTheWeek, error)
	DeactivateWinners(ctx context.Context, tx *sql.Tx) error
	CreateWinner(ctx context.Context, tx *sql.Tx, p *model.ProjectOfTheWeek) error
	ListWinners(ctx context.Context, limit, offset int) ([]model.ProjectOfTheWeek, error)

	GetWeek(ctx context.Context, year, week int) (*model.ContestWeek, error)
	// EnsureWeek inserts w unless the week exists and returns the stored row.
	EnsureWeek(ctx context.Context, w *model.ContestWeek) (*model.ContestWeek, error)
	SaveWeek(ctx context.Context, w *model.ContestWeek) error
}

type pgContestRepository struct {
	db *sql.DB
}

func NewPgContestRepository(db *sql.DB) ContestRepository {
	return &pgContestRepository{db: db}
}

const contestantColumns = `c.id, c.project_id, c.user_id, c.week_number, c.year, c.status, c.certificate_type, c.registered_at, c.updated_at`

func scanContestant(row rowScanner) (*model.Contestant, error) {
	c := &model.Contestant{}
	err := row.Scan(&c.ID, &c.ProjectID, &c.UserID, &c.WeekNumber, &c.Year, &c.Status, &c.CertificateType, &c.RegisteredAt, &c.UpdatedAt)
	return c, err
}

func (r *pgContestRepository) CreateContestant(ctx context.Context, c *model.Contestant) error {
	query := `INSERT INTO contestants (id, project_id, user_id, week_number, year, status, certificate_type, registered_at)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	          RETURNING updated_at`
	err := r.db.QueryRowContext(ctx, query,
		c.ID, c.ProjectID, c.UserID, c.WeekNumber, c.Year, c.Status, c.CertificateType, c.RegisteredAt,
	).Scan(&c.UpdatedAt)
	if err != nil {
		if common.IsUniqueViolation(err) {
			return common.NewCodedError(common.ErrConflict, "already_registered", "project is already registered for this week")
		}
		return fmt.Errorf("pgContestRepository.CreateContestant: %w", err)
	}
	return nil
}

func (r *pgContestRepository) FindContestantByID(ctx context.Context, id string) (*model.Contestant, error) {
	c, err := scanContestant(r.db.QueryRowContext(ctx, `SELECT `+contestantColumns+` FROM contestants c WHERE c.id = $1`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("pgContestRepository.FindContestantByID: %w", err)
	}
	return c, nil
}

func (r *pgContestRepository) FindContestantForWeek(ctx context.Context, tx *sql.Tx, projectID string, week, year int) (*model.Contestant, error) {
	query := `SELECT ` + contestantColumns + ` FROM contestants c WHERE c.project_id = $1 AND c.week_number = $2 AND c.year = $3`
	c, err := scanContestant(pick(r.db, tx).QueryRowContext(ctx, query, projectID, week, year))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("pgContestRepository.FindContestantForWeek: %w", err)
	}
	return c, nil
}

func (r *pgContestRepository) ListContestants(ctx context.Context, week, year int, statuses ...model.ContestantStatus) ([]model.Contestant, error) {
	query := `SELECT ` + contestantColumns + `,
	                 p.id, p.owner_id, p.title, p.slug, p.description, p.tech_stack, p.visibility, p.created_at, p.updated_at,
	                 (SELECT COUNT(*) FROM project_likes l WHERE l.project_id = p.id),
	                 (SELECT COUNT(*) FROM comments cm WHERE cm.project_id = p.id),
	                 u.id, u.username, u.full_name, u.avatar_url, u.pow_wins
	          FROM contestants c
	          JOIN projects p ON p.id = c.project_id
	          JOIN users u ON u.id = p.owner_id
	          WHERE c.week_number = $1 AND c.year = $2`
	args := []any{week, year}
	if len(statuses) > 0 {
		names := make([]string, len(statuses))
		for i, s := range statuses {
			names[i] = string(s)
		}
		query += ` AND c.status = ANY($3)`
		args = append(args, names)
	}
	query += ` ORDER BY c.registered_at, c.id`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("pgContestRepository.ListContestants query: %w", err)
	}
	defer rows.Close()

	contestants := []model.Contestant{}
	for rows.Next() {
		var c model.Contestant
		p := &model.Project{Owner: &model.UserSummary{}}
		var techStack []byte
		err := rows.Scan(
			&c.ID, &c.ProjectID, &c.UserID, &c.WeekNumber, &c.Year, &c.Status, &c.CertificateType, &c.RegisteredAt, &c.UpdatedAt,
			&p.ID, &p.OwnerID, &p.Title, &p.Slug, &p.Description, &techStack, &p.Visibility, &p.CreatedAt, &p.UpdatedAt,
			&p.LikesCount, &p.CommentsCount,
			&p.Owner.ID, &p.Owner.Username, &p.Owner.FullName, &p.Owner.AvatarURL, &p.Owner.PowWins,
		)
		if err != nil {
			return nil, fmt.Errorf("pgContestRepository.ListContestants scan: %w", err)
		}
		if err := json.Unmarshal(techStack, &p.TechStack); err != nil {
			return nil, fmt.Errorf("pgContestRepository.ListContestants decode tech_stack: %w", err)
		}
		c.Project = p
		contestants = append(contestants, c)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("pgContestRepository.ListContestants rows.Err: %w", err)
	}
	return contestants, nil
}

func (r *pgContestRepository) UpdateContestant(ctx context.Context, tx *sql.Tx, id string, status model.ContestantStatus, certType model.CertificateType) error {
	query := `UPDATE contestants SET status = $1, certificate_type = $2, updated_at = NOW() WHERE id = $3`
	res, err := pick(r.db, tx).ExecContext(ctx, query, status, certType, id)
	if err != nil {
		return fmt.Errorf("pgContestRepository.UpdateContestant: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return common.ErrNotFound
	}
	return nil
}

func (r *pgContestRepository) MarkParticipants(ctx context.Context, tx *sql.Tx, week, year int, exceptID string) error {
	query := `UPDATE contestants
	          SET status = 'participant', certificate_type = 'participant', updated_at = NOW()
	          WHERE week_number = $1 AND year = $2 AND id <> $3 AND status <> 'removed'`
	if _, err := pick(r.db, tx).ExecContext(ctx, query, week, year, exceptID); err != nil {
		return fmt.Errorf("pgContestRepository.MarkParticipants: %w", err)
	}
	return nil
}

func (r *pgContestRepository) LatestAwarded(ctx context.Context, projectID string) (*model.Contestant, error) {
	query := `SELECT ` + contestantColumns + ` FROM contestants c
	          WHERE c.project_id = $1 AND c.certificate_type <> 'none'
	          ORDER BY c.year DESC, c.week_number DESC, c.updated_at DESC
	          LIMIT 1`
	c, err := scanContestant(r.db.QueryRowContext(ctx, query, projectID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("pgContestRepository.LatestAwarded: %w", err)
	}
	return c, nil
}

const winnerColumns = `id, project_id, owner_id, project_title, owner_name, week_number, year, reason, score,
	selected_at, expires_at, is_active, approved_by`

func scanWinner(row rowScanner) (*model.ProjectOfTheWeek, error) {
	p := &model.ProjectOfTheWeek{}
	err := row.Scan(&p.ID, &p.ProjectID, &p.OwnerID, &p.ProjectTitle, &p.OwnerName, &p.WeekNumber, &p.Year, &p.Reason, &p.Score,
		&p.SelectedAt, &p.ExpiresAt, &p.IsActive, &p.ApprovedBy)
	return p, err
}

func (r *pgContestRepository) FindActiveWinner(ctx context.Context, tx *sql.Tx) (*model.ProjectOfTheWeek, error) {
	query := `SELECT ` + winnerColumns + ` FROM projects_of_the_week WHERE is_active`
	if tx != nil {
		query += ` FOR UPDATE`
	}
	p, err := scanWinner(pick(r.db, tx).QueryRowContext(ctx, query))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("pgContestRepository.FindActiveWinner: %w", err)
	}
	return p, nil
}

func (r *pgContestRepository) DeactivateWinners(ctx context.Context, tx *sql.Tx) error {
	if _, err := pick(r.db, tx).ExecContext(ctx, `UPDATE projects_of_the_week SET is_active = FALSE WHERE is_active`); err != nil {
		return fmt.Errorf("pgContestRepository.DeactivateWinners: %w", err)
	}
	return nil
}

func (r *pgContestRepository) CreateWinner(ctx context.Context, tx *sql.Tx, p *model.ProjectOfTheWeek) error {
	query := `INSERT INTO projects_of_the_week
	          (id, project_id, owner_id, project_title, owner_name, week_number, year, reason, score, selected_at, expires_at, is_active, approved_by)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`
	_, err := pick(r.db, tx).ExecContext(ctx, query,
		p.ID, p.ProjectID, p.OwnerID, p.ProjectTitle, p.OwnerName, p.WeekNumber, p.Year, p.Reason, p.Score,
		p.SelectedAt, p.ExpiresAt, p.IsActive, p.ApprovedBy,
	)
	if err != nil {
		if common.IsUniqueViolation(err) {
			return fmt.Errorf("another winner is already active: %w", common.ErrConflict)
		}
		return fmt.Errorf("pgContestRepository.CreateWinner: %w", err)
	}
	return nil
}

func (r *pgContestRepository) ListWinners(ctx context.Context, limit, offset int) ([]model.ProjectOfTheWeek, error) {
	query := `SELECT ` + winnerColumns + ` FROM projects_of_the_week ORDER BY selected_at DESC LIMIT $1 OFFSET $2`
	rows, err := r.db.QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("pgContestRepository.ListWinners query: %w", err)
	}
	defer rows.Close()

	winners := []model.ProjectOfTheWeek{}
	for rows.Next() {
		p, err := scanWinner(rows)
		if err != nil {
			return nil, fmt.Errorf("pgContestRepository.ListWinners scan: %w", err)
		}
		winners = append(winners, *p)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("pgContestRepository.ListWinners rows.Err: %w", err)
	}
	return winners, nil
}

func (r *pgContestRepository) GetWeek(ctx context.Context, year, week int) (*model.ContestWeek, error) {
	w := &model.ContestWeek{}
	err := r.db.QueryRowContext(ctx,
		`SELECT year, week_number, phase, manual, updated_at FROM contest_weeks WHERE year = $1 AND week_number = $2`, year, week,
	).Scan(&w.Year, &w.WeekNumber, &w.Phase, &w.Manual, &w.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("pgContestRepository.GetWeek: %w", err)
	}
	return w, nil
}

func (r *pgContestRepository) EnsureWeek(ctx context.Context, w *model.ContestWeek) (*model.ContestWeek, error) {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO contest_weeks (year, week_number, phase, manual) VALUES ($1, $2, $3, $4) ON CONFLICT DO NOTHING`,
		w.Year, w.WeekNumber, w.Phase, w.Manual)
	if err != nil {
		return nil, fmt.Errorf("pgContestRepository.EnsureWeek: %w", err)
	}
	return r.GetWeek(ctx, w.Year, w.WeekNumber)
}

func (r *pgContestRepository) SaveWeek(ctx context.Context, w *model.ContestWeek) error {
	query := `INSERT INTO contest_weeks (year, week_number, phase, manual) VALUES ($1, $2, $3, $4)
	          ON CONFLICT (year, week_number) DO UPDATE SET phase = EXCLUDED.phase, manual = EXCLUDED.manual, updated_at = NOW()
	          RETURNING updated_at`
	if err := r.db.QueryRowContext(ctx, query, w.Year, w.WeekNumber, w.Phase, w.Manual).Scan(&w.UpdatedAt); err != nil {
		return fmt.Errorf("pgContestRepository.SaveWeek: %w", err)
	}
	return nil
}

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

type UserRepository interface {
	Create(ctx context.Context, user *model.User) error
	FindByEmail(ctx context.Context, email string) (*model.User, error)
	FindByUsername(ctx context.Context, username string) (*model.User, error)
	FindByID(ctx context.Context, id string) (*model.User, error)
	UpdateProfile(ctx context.Context, user *model.User) error
	Search(ctx context.Context, term string, limit int) ([]model.User, error)
	List(ctx context.Context, limit, offset int) ([]model.User, int, error)
	ListActive(ctx context.Context, limit, offset int) ([]model.User, error)
	SetSuspended(ctx context.Context, id string, suspended bool) error
	AdjustPowWins(ctx context.Context, tx *sql.Tx, id string, delta int) error
	Leaderboard(ctx context.Context, limit int) ([]model.LeaderboardEntry, error)
}

type pgUserRepository struct {
	db *sql.DB
}

func NewPgUserRepository(db *sql.DB) UserRepository {
	return &pgUserRepository{db: db}
}

const userColumns = `id, username, email, hashed_password, full_name, bio, college, skills,
	avatar_url, role, is_suspended, pow_wins, created_at, updated_at`

func scanUser(row rowScanner) (*model.User, error) {
	user := &model.User{}
	var skills []byte
	err := row.Scan(
		&user.ID, &user.Username, &user.Email, &user.HashedPassword, &user.FullName, &user.Bio, &user.College, &skills,
		&user.AvatarURL, &user.Role, &user.IsSuspended, &user.PowWins, &user.CreatedAt, &user.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if len(skills) > 0 {
		if err := json.Unmarshal(skills, &user.Skills); err != nil {
			return nil, fmt.Errorf("decode skills: %w", err)
		}
	}
	if user.Skills == nil {
		user.Skills = []string{}
	}
	return user, nil
}

func encodeStrings(v []string) string {
	if v == nil {
		v = []string{}
	}
	b, _ := json.Marshal(v)
	return string(b)
}

func (r *pgUserRepository) Create(ctx context.Context, user *model.User) error {
	query := `INSERT INTO users (id, username, email, hashed_password, full_name, bio, college, skills, avatar_url, role)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	          RETURNING created_at, updated_at`
	err := r.db.QueryRowContext(ctx, query,
		user.ID, user.Username, user.Email, user.HashedPassword, user.FullName, user.Bio, user.College,
		encodeStrings(user.Skills), user.AvatarURL, user.Role,
	).Scan(&user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		if common.IsUniqueViolation(err) { // username, email or the single admin slot
			return fmt.Errorf("user with given username or email already exists: %w", common.ErrConflict)
		}
		return fmt.Errorf("pgUserRepository.Create: %w", err)
	}
	return nil
}

func (r *pgUserRepository) findOne(ctx context.Context, method, where string, arg any) (*model.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE ` + where
	user, err := scanUser(r.db.QueryRowContext(ctx, query, arg))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("pgUserRepository.%s: %w", method, err)
	}
	return user, nil
}

func (r *pgUserRepository) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	return r.findOne(ctx, "FindByEmail", "LOWER(email) = LOWER($1)", email)
}

func (r *pgUserRepository) FindByUsername(ctx context.Context, username string) (*model.User, error) {
	return r.findOne(ctx, "FindByUsername", "username = $1", username)
}

func (r *pgUserRepository) FindByID(ctx context.Context, id string) (*model.User, error) {
	return r.findOne(ctx, "FindByID", "id = $1", id)
}

func (r *pgUserRepository) UpdateProfile(ctx context.Context, user *model.User) error {
	query := `UPDATE users SET full_name = $1, bio = $2, college = $3, skills = $4, avatar_url = $5, updated_at = NOW()
	          WHERE id = $6 RETURNING updated_at`
	err := r.db.QueryRowContext(ctx, query,
		user.FullName, user.Bio, user.College, encodeStrings(user.Skills), user.AvatarURL, user.ID,
	).Scan(&user.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return common.ErrNotFound
		}
		return fmt.Errorf("pgUserRepository.UpdateProfile: %w", err)
	}
	return nil
}

func (r *pgUserRepository) queryUsers(ctx context.Context, method, query string, args ...any) ([]model.User, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("pgUserRepository.%s query: %w", method, err)
	}
	defer rows.Close()

	users := []model.User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("pgUserRepository.%s scan: %w", method, err)
		}
		users = append(users, *u)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("pgUserRepository.%s rows.Err: %w", method, err)
	}
	return users, nil
}

func (r *pgUserRepository) Search(ctx context.Context, term string, limit int) ([]model.User, error) {
	query := `SELECT ` + userColumns + ` FROM users
	          WHERE NOT is_suspended AND (username ILIKE $1 OR full_name ILIKE $1)
	          ORDER BY username LIMIT $2`
	return r.queryUsers(ctx, "Search", query, "%"+term+"%", limit)
}

func (r *pgUserRepository) List(ctx context.Context, limit, offset int) ([]model.User, int, error) {
	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("pgUserRepository.List count: %w", err)
	}
	query := `SELECT ` + userColumns + ` FROM users ORDER BY created_at DESC LIMIT $1 OFFSET $2`
	users, err := r.queryUsers(ctx, "List", query, limit, offset)
	return users, total, err
}

func (r *pgUserRepository) ListActive(ctx context.Context, limit, offset int) ([]model.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE NOT is_suspended ORDER BY created_at, id LIMIT $1 OFFSET $2`
	return r.queryUsers(ctx, "ListActive", query, limit, offset)
}

func (r *pgUserRepository) SetSuspended(ctx context.Context, id string, suspended bool) error {
	res, err := r.db.ExecContext(ctx, `UPDATE users SET is_suspended = $1, updated_at = NOW() WHERE id = $2`, suspended, id)
	if err != nil {
		return fmt.Errorf("pgUserRepository.SetSuspended: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return common.ErrNotFound
	}
	return nil
}

// AdjustPowWins adds delta to the win counter, never going below zero.
func (r *pgUserRepository) AdjustPowWins(ctx context.Context, tx *sql.Tx, id string, delta int) error {
	query := `UPDATE users SET pow_wins = GREATEST(pow_wins + $1, 0), updated_at = NOW() WHERE id = $2`
	res, err := pick(r.db, tx).ExecContext(ctx, query, delta, id)
	if err != nil {
		return fmt.Errorf("pgUserRepository.AdjustPowWins: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return common.ErrNotFound
	}
	return nil
}

func (r *pgUserRepository) Leaderboard(ctx context.Context, limit int) ([]model.LeaderboardEntry, error) {
	query := `SELECT id, username, full_name, pow_wins,
	                 RANK() OVER (ORDER BY pow_wins DESC) AS rank
	          FROM users
	          WHERE pow_wins > 0 AND NOT is_suspended
	          ORDER BY pow_wins DESC, username
	          LIMIT $1`
	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("pgUserRepository.Leaderboard query: %w", err)
	}
	defer rows.Close()

	entries := []model.LeaderboardEntry{}
	for rows.Next() {
		var e model.LeaderboardEntry
		if err := rows.Scan(&e.UserID, &e.Username, &e.FullName, &e.PowWins, &e.Rank); err != nil {
			return nil, fmt.Errorf("pgUserRepository.Leaderboard scan: %w", err)
		}
		entries = append(entries, e)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("pgUserRepository.Leaderboard rows.Err: %w", err)
	}
	return entries, nil
}

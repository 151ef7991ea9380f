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

type ProjectRepository interface {
	Create(ctx context.Context, p *model.Project) error
	Update(ctx context.Context, p *model.Project) error
	UpdateChallenges(ctx context.Context, id string, ch model.Challenges) error
	Delete(ctx context.Context, id string) error
	FindByID(ctx context.Context, id, viewerID string) (*model.Project, error)
	// ListFeed returns projects visible to viewerID, newest first.
	ListFeed(ctx context.Context, viewerID string, limit, offset int) ([]model.Project, int, error)
	ListByOwner(ctx context.Context, ownerID, viewerID string) ([]model.Project, error)

	ToggleLike(ctx context.Context, projectID, userID string) (liked bool, likes int, err error)
	Engagement(ctx context.Context, projectIDs []string) (map[string]model.ProjectEngagement, error)

	CreateComment(ctx context.Context, c *model.Comment) error
	FindComment(ctx context.Context, id string) (*model.Comment, error)
	// ListComments returns every comment and reply of a project, oldest first.
	ListComments(ctx context.Context, projectID string) ([]model.Comment, error)
}

type pgProjectRepository struct {
	db *sql.DB
}

func NewPgProjectRepository(db *sql.DB) ProjectRepository {
	return &pgProjectRepository{db: db}
}

// nullableID turns an empty id into NULL so uuid comparisons stay valid.
func nullableID(id string) any {
	if id == "" {
		return nil
	}
	return id
}

const projectSelect = `
	SELECT p.id, p.owner_id, p.title, p.slug, p.description, p.tech_stack, p.github_url, p.live_url,
	       p.image_url, p.visibility, p.challenges, p.created_at, p.updated_at,
	       (SELECT COUNT(*) FROM project_likes l WHERE l.project_id = p.id) AS likes_count,
	       (SELECT COUNT(*) FROM comments c WHERE c.project_id = p.id) AS comments_count,
	       EXISTS (SELECT 1 FROM project_likes l WHERE l.project_id = p.id AND l.user_id = $1) AS liked_by_me,
	       u.id, u.username, u.full_name, u.avatar_url, u.pow_wins
	FROM projects p
	JOIN users u ON u.id = p.owner_id`

// visibleTo assumes the viewer id is bound to $1.
const visibleTo = `(p.visibility = 'public' OR p.owner_id = $1 OR EXISTS (
	SELECT 1 FROM friendships f WHERE f.user_id = $1 AND f.friend_id = p.owner_id))`

func scanProject(row rowScanner) (*model.Project, error) {
	p := &model.Project{Owner: &model.UserSummary{}}
	var techStack, challenges []byte
	err := row.Scan(
		&p.ID, &p.OwnerID, &p.Title, &p.Slug, &p.Description, &techStack, &p.GithubURL, &p.LiveURL,
		&p.ImageURL, &p.Visibility, &challenges, &p.CreatedAt, &p.UpdatedAt,
		&p.LikesCount, &p.CommentsCount, &p.LikedByMe,
		&p.Owner.ID, &p.Owner.Username, &p.Owner.FullName, &p.Owner.AvatarURL, &p.Owner.PowWins,
	)
	if err != nil {
		return nil, err
	}
	if len(techStack) > 0 {
		if err := json.Unmarshal(techStack, &p.TechStack); err != nil {
			return nil, fmt.Errorf("decode tech_stack: %w", err)
		}
	}
	if p.TechStack == nil {
		p.TechStack = []string{}
	}
	if len(challenges) > 0 {
		if err := json.Unmarshal(challenges, &p.Challenges); err != nil {
			return nil, fmt.Errorf("decode challenges: %w", err)
		}
	}
	return p, nil
}

func encodeChallenges(ch model.Challenges) string {
	b, _ := json.Marshal(ch)
	return string(b)
}

func (r *pgProjectRepository) Create(ctx context.Context, p *model.Project) error {
	query := `INSERT INTO projects (id, owner_id, title, slug, description, tech_stack, github_url, live_url, image_url, visibility, challenges)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	          RETURNING created_at, updated_at`
	err := r.db.QueryRowContext(ctx, query,
		p.ID, p.OwnerID, p.Title, p.Slug, p.Description, encodeStrings(p.TechStack),
		p.GithubURL, p.LiveURL, p.ImageURL, p.Visibility, encodeChallenges(p.Challenges),
	).Scan(&p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("pgProjectRepository.Create: %w", err)
	}
	return nil
}

func (r *pgProjectRepository) Update(ctx context.Context, p *model.Project) error {
	query := `UPDATE projects
	          SET title = $1, slug = $2, description = $3, tech_stack = $4, github_url = $5,
	              live_url = $6, image_url = $7, visibility = $8, updated_at = NOW()
	          WHERE id = $9
	          RETURNING updated_at`
	err := r.db.QueryRowContext(ctx, query,
		p.Title, p.Slug, p.Description, encodeStrings(p.TechStack), p.GithubURL,
		p.LiveURL, p.ImageURL, p.Visibility, p.ID,
	).Scan(&p.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return common.ErrNotFound
		}
		return fmt.Errorf("pgProjectRepository.Update: %w", err)
	}
	return nil
}

func (r *pgProjectRepository) UpdateChallenges(ctx context.Context, id string, ch model.Challenges) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE projects SET challenges = $1, updated_at = NOW() WHERE id = $2`, encodeChallenges(ch), id)
	if err != nil {
		return fmt.Errorf("pgProjectRepository.UpdateChallenges: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return common.ErrNotFound
	}
	return nil
}

// Delete removes the project. Likes, comments, reports and contestant rows
// cascade; certificates and winner history keep their snapshots.
func (r *pgProjectRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM projects WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("pgProjectRepository.Delete: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return common.ErrNotFound
	}
	return nil
}

func (r *pgProjectRepository) FindByID(ctx context.Context, id, viewerID string) (*model.Project, error) {
	query := projectSelect + ` WHERE p.id = $2`
	p, err := scanProject(r.db.QueryRowContext(ctx, query, nullableID(viewerID), id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("pgProjectRepository.FindByID: %w", err)
	}
	return p, nil
}

func (r *pgProjectRepository) queryProjects(ctx context.Context, method, query string, args ...any) ([]model.Project, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("pgProjectRepository.%s query: %w", method, err)
	}
	defer rows.Close()

	projects := []model.Project{}
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, fmt.Errorf("pgProjectRepository.%s scan: %w", method, err)
		}
		projects = append(projects, *p)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("pgProjectRepository.%s rows.Err: %w", method, err)
	}
	return projects, nil
}

func (r *pgProjectRepository) ListFeed(ctx context.Context, viewerID string, limit, offset int) ([]model.Project, int, error) {
	var total int
	countQuery := `SELECT COUNT(*) FROM projects p WHERE ` + visibleTo
	if err := r.db.QueryRowContext(ctx, countQuery, nullableID(viewerID)).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("pgProjectRepository.ListFeed count: %w", err)
	}
	query := projectSelect + ` WHERE ` + visibleTo + ` ORDER BY p.created_at DESC LIMIT $2 OFFSET $3`
	projects, err := r.queryProjects(ctx, "ListFeed", query, nullableID(viewerID), limit, offset)
	return projects, total, err
}

func (r *pgProjectRepository) ListByOwner(ctx context.Context, ownerID, viewerID string) ([]model.Project, error) {
	query := projectSelect + ` WHERE p.owner_id = $2 AND ` + visibleTo + ` ORDER BY p.created_at DESC`
	return r.queryProjects(ctx, "ListByOwner", query, nullableID(viewerID), ownerID)
}

func (r *pgProjectRepository) ToggleLike(ctx context.Context, projectID, userID string) (bool, int, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM project_likes WHERE project_id = $1 AND user_id = $2`, projectID, userID)
	if err != nil {
		return false, 0, fmt.Errorf("pgProjectRepository.ToggleLike delete: %w", err)
	}
	liked := false
	if n, _ := res.RowsAffected(); n == 0 {
		_, err = r.db.ExecContext(ctx,
			`INSERT INTO project_likes (project_id, user_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`, projectID, userID)
		if err != nil {
			return false, 0, fmt.Errorf("pgProjectRepository.ToggleLike insert: %w", err)
		}
		liked = true
	}

	var likes int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM project_likes WHERE project_id = $1`, projectID).Scan(&likes); err != nil {
		return false, 0, fmt.Errorf("pgProjectRepository.ToggleLike count: %w", err)
	}
	return liked, likes, nil
}

func (r *pgProjectRepository) Engagement(ctx context.Context, projectIDs []string) (map[string]model.ProjectEngagement, error) {
	out := make(map[string]model.ProjectEngagement, len(projectIDs))
	if len(projectIDs) == 0 {
		return out, nil
	}
	query := `SELECT p.id,
	                 (SELECT COUNT(*) FROM project_likes l WHERE l.project_id = p.id),
	                 (SELECT COUNT(*) FROM comments c WHERE c.project_id = p.id)
	          FROM projects p WHERE p.id = ANY($1)`
	rows, err := r.db.QueryContext(ctx, query, projectIDs)
	if err != nil {
		return nil, fmt.Errorf("pgProjectRepository.Engagement query: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var e model.ProjectEngagement
		if err := rows.Scan(&e.ProjectID, &e.LikesCount, &e.CommentsCount); err != nil {
			return nil, fmt.Errorf("pgProjectRepository.Engagement scan: %w", err)
		}
		out[e.ProjectID] = e
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("pgProjectRepository.Engagement rows.Err: %w", err)
	}
	return out, nil
}

func (r *pgProjectRepository) CreateComment(ctx context.Context, c *model.Comment) error {
	query := `INSERT INTO comments (id, project_id, user_id, parent_id, text) VALUES ($1, $2, $3, $4, $5) RETURNING created_at`
	if err := r.db.QueryRowContext(ctx, query, c.ID, c.ProjectID, c.UserID, c.ParentID, c.Text).Scan(&c.CreatedAt); err != nil {
		return fmt.Errorf("pgProjectRepository.CreateComment: %w", err)
	}
	return nil
}

const commentSelect = `
	SELECT c.id, c.project_id, c.user_id, c.parent_id, c.text, c.created_at,
	       u.id, u.username, u.full_name, u.avatar_url, u.pow_wins
	FROM comments c
	JOIN users u ON u.id = c.user_id`

func scanComment(row rowScanner) (*model.Comment, error) {
	c := &model.Comment{Author: &model.UserSummary{}}
	err := row.Scan(&c.ID, &c.ProjectID, &c.UserID, &c.ParentID, &c.Text, &c.CreatedAt,
		&c.Author.ID, &c.Author.Username, &c.Author.FullName, &c.Author.AvatarURL, &c.Author.PowWins)
	return c, err
}

func (r *pgProjectRepository) FindComment(ctx context.Context, id string) (*model.Comment, error) {
	c, err := scanComment(r.db.QueryRowContext(ctx, commentSelect+` WHERE c.id = $1`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("pgProjectRepository.FindComment: %w", err)
	}
	return c, nil
}

func (r *pgProjectRepository) ListComments(ctx context.Context, projectID string) ([]model.Comment, error) {
	rows, err := r.db.QueryContext(ctx, commentSelect+` WHERE c.project_id = $1 ORDER BY c.created_at, c.id`, projectID)
	if err != nil {
		return nil, fmt.Errorf("pgProjectRepository.ListComments query: %w", err)
	}
	defer rows.Close()

	comments := []model.Comment{}
	for rows.Next() {
		c, err := scanComment(rows)
		if err != nil {
			return nil, fmt.Errorf("pgProjectRepository.ListComments scan: %w", err)
		}
		comments = append(comments, *c)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("pgProjectRepository.ListComments rows.Err: %w", err)
	}
	return comments, nil
}

package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"proconnect/internal/common"
	"proconnect/internal/domain/model"
)

type CertificateRepository interface {
	// Create returns common.ErrConflict when the (user, project, type) row already exists.
	Create(ctx context.Context, c *model.Certificate) error
	FindByUserProjectType(ctx context.Context, userID, projectID string, certType model.CertificateType) (*model.Certificate, error)
	FindByCertificateID(ctx context.Context, certificateID string) (*model.Certificate, error)
	ListByUser(ctx context.Context, userID string) ([]model.Certificate, error)
	ListByUserProject(ctx context.Context, userID, projectID string) ([]model.Certificate, error)
}

type pgCertificateRepository struct {
	db *sql.DB
}

func NewPgCertificateRepository(db *sql.DB) CertificateRepository {
	return &pgCertificateRepository{db: db}
}

const certificateColumns = `id, certificate_id, user_id, project_id, certificate_type, week_number, year,
	project_title, recipient_name, file_url, issued_at`

func scanCertificate(row rowScanner) (*model.Certificate, error) {
	c := &model.Certificate{}
	err := row.Scan(&c.ID, &c.CertificateID, &c.UserID, &c.ProjectID, &c.CertificateType, &c.WeekNumber, &c.Year,
		&c.ProjectTitle, &c.RecipientName, &c.FileURL, &c.IssuedAt)
	return c, err
}

func (r *pgCertificateRepository) Create(ctx context.Context, c *model.Certificate) error {
	query := `INSERT INTO certificates
	          (id, certificate_id, user_id, project_id, certificate_type, week_number, year, project_title, recipient_name, file_url, issued_at)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`
	_, err := r.db.ExecContext(ctx, query,
		c.ID, c.CertificateID, c.UserID, c.ProjectID, c.CertificateType, c.WeekNumber, c.Year,
		c.ProjectTitle, c.RecipientName, c.FileURL, c.IssuedAt,
	)
	if err != nil {
		if common.IsUniqueViolation(err) {
			return fmt.Errorf("certificate already issued: %w", common.ErrConflict)
		}
		return fmt.Errorf("pgCertificateRepository.Create: %w", err)
	}
	return nil
}

func (r *pgCertificateRepository) findOne(ctx context.Context, method, where string, args ...any) (*model.Certificate, error) {
	c, err := scanCertificate(r.db.QueryRowContext(ctx, `SELECT `+certificateColumns+` FROM certificates WHERE `+where, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("pgCertificateRepository.%s: %w", method, err)
	}
	return c, nil
}

func (r *pgCertificateRepository) FindByUserProjectType(ctx context.Context, userID, projectID string, certType model.CertificateType) (*model.Certificate, error) {
	return r.findOne(ctx, "FindByUserProjectType", "user_id = $1 AND project_id = $2 AND certificate_type = $3", userID, projectID, certType)
}

func (r *pgCertificateRepository) FindByCertificateID(ctx context.Context, certificateID string) (*model.Certificate, error) {
	return r.findOne(ctx, "FindByCertificateID", "certificate_id = $1", certificateID)
}

func (r *pgCertificateRepository) list(ctx context.Context, method, where string, args ...any) ([]model.Certificate, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+certificateColumns+` FROM certificates WHERE `+where+` ORDER BY issued_at DESC`, args...)
	if err != nil {
		return nil, fmt.Errorf("pgCertificateRepository.%s query: %w", method, err)
	}
	defer rows.Close()

	certs := []model.Certificate{}
	for rows.Next() {
		c, err := scanCertificate(rows)
		if err != nil {
			return nil, fmt.Errorf("pgCertificateRepository.%s scan: %w", method, err)
		}
		certs = append(certs, *c)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("pgCertificateRepository.%s rows.Err: %w", method, err)
	}
	return certs, nil
}

func (r *pgCertificateRepository) ListByUser(ctx context.Context, userID string) ([]model.Certificate, error) {
	return r.list(ctx, "ListByUser", "user_id = $1", userID)
}

func (r *pgCertificateRepository) ListByUserProject(ctx context.Context, userID, projectID string) ([]model.Certificate, error) {
	return r.list(ctx, "ListByUserProject", "user_id = $1 AND project_id = $2", userID, projectID)
}

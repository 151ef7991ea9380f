package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"proconnect/internal/common"
	"proconnect/internal/domain/model"
)

type ReportRepository interface {
	Create(ctx context.Context, r *model.Report) error
	FindByID(ctx context.Context, id string) (*model.Report, error)
	List(ctx context.Context, status model.ReportStatus, limit, offset int) ([]model.Report, error)
	UpdateStatus(ctx context.Context, id string, status model.ReportStatus, resolvedBy string) error
}

type pgReportRepository struct {
	db *sql.DB
}

func NewPgReportRepository(db *sql.DB) ReportRepository {
	return &pgReportRepository{db: db}
}

const reportColumns = `id, reporter_id, project_id, reason, status, resolved_by, created_at, updated_at`

func scanReport(row rowScanner) (*model.Report, error) {
	rep := &model.Report{}
	err := row.Scan(&rep.ID, &rep.ReporterID, &rep.ProjectID, &rep.Reason, &rep.Status, &rep.ResolvedBy, &rep.CreatedAt, &rep.UpdatedAt)
	return rep, err
}

func (r *pgReportRepository) Create(ctx context.Context, rep *model.Report) error {
	query := `INSERT INTO reports (id, reporter_id, project_id, reason, status) VALUES ($1, $2, $3, $4, $5)
	          RETURNING created_at, updated_at`
	if err := r.db.QueryRowContext(ctx, query, rep.ID, rep.ReporterID, rep.ProjectID, rep.Reason, rep.Status).Scan(&rep.CreatedAt, &rep.UpdatedAt); err != nil {
		return fmt.Errorf("pgReportRepository.Create: %w", err)
	}
	return nil
}

func (r *pgReportRepository) FindByID(ctx context.Context, id string) (*model.Report, error) {
	rep, err := scanReport(r.db.QueryRowContext(ctx, `SELECT `+reportColumns+` FROM reports WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("pgReportRepository.FindByID: %w", err)
	}
	return rep, nil
}

func (r *pgReportRepository) List(ctx context.Context, status model.ReportStatus, limit, offset int) ([]model.Report, error) {
	query := `SELECT ` + reportColumns + ` FROM reports`
	args := []any{}
	if status != "" {
		query += ` WHERE status = $1`
		args = append(args, status)
	}
	query += fmt.Sprintf(` ORDER BY created_at DESC LIMIT $%d OFFSET $%d`, len(args)+1, len(args)+2)
	args = append(args, limit, offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("pgReportRepository.List query: %w", err)
	}
	defer rows.Close()

	reports := []model.Report{}
	for rows.Next() {
		rep, err := scanReport(rows)
		if err != nil {
			return nil, fmt.Errorf("pgReportRepository.List scan: %w", err)
		}
		reports = append(reports, *rep)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("pgReportRepository.List rows.Err: %w", err)
	}
	return reports, nil
}

func (r *pgReportRepository) UpdateStatus(ctx context.Context, id string, status model.ReportStatus, resolvedBy string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE reports SET status = $1, resolved_by = $2, updated_at = NOW() WHERE id = $3`, status, resolvedBy, id)
	if err != nil {
		return fmt.Errorf("pgReportRepository.UpdateStatus: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return common.ErrNotFound
	}
	return nil
}

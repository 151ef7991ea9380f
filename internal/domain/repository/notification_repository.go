package repository

import (
	"context"
	"database/sql"
	"fmt"

	"proconnect/internal/common"
	"proconnect/internal/domain/model"
)

type NotificationRepository interface {
	Create(ctx context.Context, tx *sql.Tx, n *model.Notification) error
	// Broadcast copies n to every non-suspended user except excludeUserID.
	Broadcast(ctx context.Context, tx *sql.Tx, n *model.Notification, excludeUserID string) (int64, error)
	ListByUser(ctx context.Context, userID string, limit, offset int) ([]model.Notification, error)
	CountUnread(ctx context.Context, userID string) (int, error)
	MarkRead(ctx context.Context, id, userID string) error
	MarkAllRead(ctx context.Context, userID string) (int64, error)
}

type pgNotificationRepository struct {
	db *sql.DB
}

func NewPgNotificationRepository(db *sql.DB) NotificationRepository {
	return &pgNotificationRepository{db: db}
}

func metadataArg(n *model.Notification) string {
	if len(n.Metadata) == 0 {
		return "{}"
	}
	return string(n.Metadata)
}

func (r *pgNotificationRepository) Create(ctx context.Context, tx *sql.Tx, n *model.Notification) error {
	query := `INSERT INTO notifications (id, user_id, type, message, related_project, related_user, metadata)
	          VALUES ($1, $2, $3, $4, $5, $6, $7)
	          RETURNING created_at`
	err := pick(r.db, tx).QueryRowContext(ctx, query,
		n.ID, n.UserID, n.Type, n.Message, n.RelatedProject, n.RelatedUser, metadataArg(n),
	).Scan(&n.CreatedAt)
	if err != nil {
		return fmt.Errorf("pgNotificationRepository.Create: %w", err)
	}
	return nil
}

func (r *pgNotificationRepository) Broadcast(ctx context.Context, tx *sql.Tx, n *model.Notification, excludeUserID string) (int64, error) {
	query := `INSERT INTO notifications (id, user_id, type, message, related_project, related_user, metadata)
	          SELECT gen_random_uuid(), u.id, $1, $2, $3, $4, $5
	          FROM users u
	          WHERE NOT u.is_suspended AND ($6::uuid IS NULL OR u.id <> $6::uuid)`
	res, err := pick(r.db, tx).ExecContext(ctx, query,
		n.Type, n.Message, n.RelatedProject, n.RelatedUser, metadataArg(n), nullableID(excludeUserID),
	)
	if err != nil {
		return 0, fmt.Errorf("pgNotificationRepository.Broadcast: %w", err)
	}
	return res.RowsAffected()
}

func (r *pgNotificationRepository) ListByUser(ctx context.Context, userID string, limit, offset int) ([]model.Notification, error) {
	query := `SELECT id, user_id, type, message, is_read, related_project, related_user, metadata, created_at
	          FROM notifications WHERE user_id = $1
	          ORDER BY created_at DESC LIMIT $2 OFFSET $3`
	rows, err := r.db.QueryContext(ctx, query, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("pgNotificationRepository.ListByUser query: %w", err)
	}
	defer rows.Close()

	notifications := []model.Notification{}
	for rows.Next() {
		var n model.Notification
		var metadata []byte
		if err := rows.Scan(&n.ID, &n.UserID, &n.Type, &n.Message, &n.IsRead, &n.RelatedProject, &n.RelatedUser, &metadata, &n.CreatedAt); err != nil {
			return nil, fmt.Errorf("pgNotificationRepository.ListByUser scan: %w", err)
		}
		n.Metadata = metadata
		notifications = append(notifications, n)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("pgNotificationRepository.ListByUser rows.Err: %w", err)
	}
	return notifications, nil
}

func (r *pgNotificationRepository) CountUnread(ctx context.Context, userID string) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM notifications WHERE user_id = $1 AND NOT is_read`, userID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("pgNotificationRepository.CountUnread: %w", err)
	}
	return count, nil
}

func (r *pgNotificationRepository) MarkRead(ctx context.Context, id, userID string) error {
	res, err := r.db.ExecContext(ctx, `UPDATE notifications SET is_read = TRUE WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return fmt.Errorf("pgNotificationRepository.MarkRead: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return common.ErrNotFound
	}
	return nil
}

func (r *pgNotificationRepository) MarkAllRead(ctx context.Context, userID string) (int64, error) {
	res, err := r.db.ExecContext(ctx, `UPDATE notifications SET is_read = TRUE WHERE user_id = $1 AND NOT is_read`, userID)
	if err != nil {
		return 0, fmt.Errorf("pgNotificationRepository.MarkAllRead: %w", err)
	}
	return res.RowsAffected()
}

package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"proconnect/internal/common"
	"proconnect/internal/domain/model"
)

type FriendRepository interface {
	CreateRequest(ctx context.Context, fr *model.FriendRequest) error
	FindRequest(ctx context.Context, id string) (*model.FriendRequest, error)
	ListIncoming(ctx context.Context, userID string) ([]model.FriendRequest, error)
	UpdateRequestStatus(ctx context.Context, tx *sql.Tx, id string, status model.FriendRequestStatus) error
	DeleteRequest(ctx context.Context, id string) error

	// AddFriendship stores both directions of the pair.
	AddFriendship(ctx context.Context, tx *sql.Tx, userID, friendID string) error
	RemoveFriendship(ctx context.Context, userID, friendID string) error
	AreFriends(ctx context.Context, userID, otherID string) (bool, error)
	ListFriends(ctx context.Context, userID string) ([]model.UserSummary, error)
}

type pgFriendRepository struct {
	db *sql.DB
}

func NewPgFriendRepository(db *sql.DB) FriendRepository {
	return &pgFriendRepository{db: db}
}

func (r *pgFriendRepository) CreateRequest(ctx context.Context, fr *model.FriendRequest) error {
	query := `INSERT INTO friend_requests (id, sender_id, receiver_id, status) VALUES ($1, $2, $3, $4)
	          RETURNING created_at, updated_at`
	err := r.db.QueryRowContext(ctx, query, fr.ID, fr.SenderID, fr.ReceiverID, fr.Status).Scan(&fr.CreatedAt, &fr.UpdatedAt)
	if err != nil {
		if common.IsUniqueViolation(err) {
			return fmt.Errorf("a pending request already exists: %w", common.ErrConflict)
		}
		return fmt.Errorf("pgFriendRepository.CreateRequest: %w", err)
	}
	return nil
}

const friendRequestSelect = `
	SELECT fr.id, fr.sender_id, fr.receiver_id, fr.status, fr.created_at, fr.updated_at,
	       u.id, u.username, u.full_name, u.avatar_url, u.pow_wins
	FROM friend_requests fr
	JOIN users u ON u.id = fr.sender_id`

func scanFriendRequest(row rowScanner) (*model.FriendRequest, error) {
	fr := &model.FriendRequest{Sender: &model.UserSummary{}}
	err := row.Scan(&fr.ID, &fr.SenderID, &fr.ReceiverID, &fr.Status, &fr.CreatedAt, &fr.UpdatedAt,
		&fr.Sender.ID, &fr.Sender.Username, &fr.Sender.FullName, &fr.Sender.AvatarURL, &fr.Sender.PowWins)
	return fr, err
}

func (r *pgFriendRepository) FindRequest(ctx context.Context, id string) (*model.FriendRequest, error) {
	fr, err := scanFriendRequest(r.db.QueryRowContext(ctx, friendRequestSelect+` WHERE fr.id = $1`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("pgFriendRepository.FindRequest: %w", err)
	}
	return fr, nil
}

func (r *pgFriendRepository) ListIncoming(ctx context.Context, userID string) ([]model.FriendRequest, error) {
	rows, err := r.db.QueryContext(ctx, friendRequestSelect+` WHERE fr.receiver_id = $1 AND fr.status = 'pending' ORDER BY fr.created_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("pgFriendRepository.ListIncoming query: %w", err)
	}
	defer rows.Close()

	requests := []model.FriendRequest{}
	for rows.Next() {
		fr, err := scanFriendRequest(rows)
		if err != nil {
			return nil, fmt.Errorf("pgFriendRepository.ListIncoming scan: %w", err)
		}
		requests = append(requests, *fr)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("pgFriendRepository.ListIncoming rows.Err: %w", err)
	}
	return requests, nil
}

func (r *pgFriendRepository) UpdateRequestStatus(ctx context.Context, tx *sql.Tx, id string, status model.FriendRequestStatus) error {
	res, err := pick(r.db, tx).ExecContext(ctx,
		`UPDATE friend_requests SET status = $1, updated_at = NOW() WHERE id = $2 AND status = 'pending'`, status, id)
	if err != nil {
		return fmt.Errorf("pgFriendRepository.UpdateRequestStatus: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("friend request is not pending: %w", common.ErrConflict)
	}
	return nil
}

func (r *pgFriendRepository) DeleteRequest(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM friend_requests WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("pgFriendRepository.DeleteRequest: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return common.ErrNotFound
	}
	return nil
}

func (r *pgFriendRepository) AddFriendship(ctx context.Context, tx *sql.Tx, userID, friendID string) error {
	query := `INSERT INTO friendships (user_id, friend_id) VALUES ($1, $2), ($2, $1) ON CONFLICT DO NOTHING`
	if _, err := pick(r.db, tx).ExecContext(ctx, query, userID, friendID); err != nil {
		return fmt.Errorf("pgFriendRepository.AddFriendship: %w", err)
	}
	return nil
}

func (r *pgFriendRepository) RemoveFriendship(ctx context.Context, userID, friendID string) error {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM friendships WHERE (user_id = $1 AND friend_id = $2) OR (user_id = $2 AND friend_id = $1)`, userID, friendID)
	if err != nil {
		return fmt.Errorf("pgFriendRepository.RemoveFriendship: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return common.ErrNotFound
	}
	return nil
}

func (r *pgFriendRepository) AreFriends(ctx context.Context, userID, otherID string) (bool, error) {
	var ok bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM friendships WHERE user_id = $1 AND friend_id = $2)`, userID, otherID).Scan(&ok)
	if err != nil {
		return false, fmt.Errorf("pgFriendRepository.AreFriends: %w", err)
	}
	return ok, nil
}

func (r *pgFriendRepository) ListFriends(ctx context.Context, userID string) ([]model.UserSummary, error) {
	query := `SELECT u.id, u.username, u.full_name, u.avatar_url, u.pow_wins
	          FROM friendships f JOIN users u ON u.id = f.friend_id
	          WHERE f.user_id = $1 ORDER BY u.username`
	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("pgFriendRepository.ListFriends query: %w", err)
	}
	defer rows.Close()

	friends := []model.UserSummary{}
	for rows.Next() {
		var s model.UserSummary
		if err := rows.Scan(&s.ID, &s.Username, &s.FullName, &s.AvatarURL, &s.PowWins); err != nil {
			return nil, fmt.Errorf("pgFriendRepository.ListFriends scan: %w", err)
		}
		friends = append(friends, s)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("pgFriendRepository.ListFriends rows.Err: %w", err)
	}
	return friends, nil
}

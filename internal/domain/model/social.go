package model

import (
	"encoding/json"
	"time"
)

type NotificationType string

const (
	NotificationFriendRequest    NotificationType = "friend_request"
	NotificationFriendAccept     NotificationType = "friend_accept"
	NotificationLike             NotificationType = "like"
	NotificationComment          NotificationType = "comment"
	NotificationPotwWinner       NotificationType = "potw_winner"
	NotificationPotwAnnouncement NotificationType = "potw_announcement"
	NotificationContestReminder  NotificationType = "contest_reminder"
	NotificationReportResolved   NotificationType = "report_resolved"
)

type Notification struct {
	ID             string           `json:"id"`
	UserID         string           `json:"user_id"`
	Type           NotificationType `json:"type"`
	Message        string           `json:"message"`
	IsRead         bool             `json:"is_read"`
	RelatedProject *string          `json:"related_project,omitempty"`
	RelatedUser    *string          `json:"related_user,omitempty"`
	Metadata       json.RawMessage  `json:"metadata,omitempty"`
	CreatedAt      time.Time        `json:"created_at"`
}

type FriendRequestStatus string

const (
	FriendRequestPending  FriendRequestStatus = "pending"
	FriendRequestAccepted FriendRequestStatus = "accepted"
	FriendRequestRejected FriendRequestStatus = "rejected"
)

type FriendRequest struct {
	ID         string              `json:"id"`
	SenderID   string              `json:"sender_id"`
	ReceiverID string              `json:"receiver_id"`
	Status     FriendRequestStatus `json:"status"`
	CreatedAt  time.Time           `json:"created_at"`
	UpdatedAt  time.Time           `json:"updated_at"`
	Sender     *UserSummary        `json:"sender,omitempty"`
}

type ReportStatus string

const (
	ReportOpen      ReportStatus = "open"
	ReportResolved  ReportStatus = "resolved"
	ReportDismissed ReportStatus = "dismissed"
)

type Report struct {
	ID         string       `json:"id"`
	ReporterID string       `json:"reporter_id"`
	ProjectID  string       `json:"project_id"`
	Reason     string       `json:"reason"`
	Status     ReportStatus `json:"status"`
	ResolvedBy *string      `json:"resolved_by,omitempty"`
	CreatedAt  time.Time    `json:"created_at"`
	UpdatedAt  time.Time    `json:"updated_at"`
}

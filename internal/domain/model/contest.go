package model

import (
	"time"
)

type ContestantStatus string
type CertificateType string
type ContestPhase string

const (
	ContestantActive      ContestantStatus = "active"
	ContestantRemoved     ContestantStatus = "removed"
	ContestantWinner      ContestantStatus = "winner"
	ContestantParticipant ContestantStatus = "participant"

	CertificateNone        CertificateType = "none"
	CertificateWinner      CertificateType = "winner"
	CertificateParticipant CertificateType = "participant"
	CertificateCompletion  CertificateType = "completion"

	PhaseRegistration ContestPhase = "registration"
	PhaseEvaluation   ContestPhase = "evaluation"
	PhaseDisplay      ContestPhase = "display"
)

func (p ContestPhase) Valid() bool {
	switch p {
	case PhaseRegistration, PhaseEvaluation, PhaseDisplay:
		return true
	}
	return false
}

type Contestant struct {
	ID              string           `json:"id"`
	ProjectID       string           `json:"project_id"`
	UserID          string           `json:"user_id"`
	WeekNumber      int              `json:"week_number"`
	Year            int              `json:"year"`
	Status          ContestantStatus `json:"status"`
	CertificateType CertificateType  `json:"certificate_type"`
	RegisteredAt    time.Time        `json:"registered_at"`
	UpdatedAt       time.Time        `json:"updated_at"`

	Project *Project `json:"project,omitempty"` // For admin listings
}

type ProjectOfTheWeek struct {
	ID           string    `json:"id"`
	ProjectID    *string   `json:"project_id,omitempty"` // Null once the project is deleted
	OwnerID      string    `json:"owner_id"`
	ProjectTitle string    `json:"project_title"`
	OwnerName    string    `json:"owner_name"`
	WeekNumber   int       `json:"week_number"`
	Year         int       `json:"year"`
	Reason       string    `json:"reason"`
	Score        float64   `json:"score"`
	SelectedAt   time.Time `json:"selected_at"`
	ExpiresAt    time.Time `json:"expires_at"`
	IsActive     bool      `json:"is_active"`
	ApprovedBy   string    `json:"approved_by"`
}

// ContestWeek is the persisted phase of one ISO week.
type ContestWeek struct {
	Year       int          `json:"year"`
	WeekNumber int          `json:"week_number"`
	Phase      ContestPhase `json:"phase"`
	Manual     bool         `json:"manual"`
	UpdatedAt  time.Time    `json:"updated_at"`
}

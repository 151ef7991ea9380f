package model

import "time"

type Certificate struct {
	ID              string          `json:"id"`
	CertificateID   string          `json:"certificate_id"` // Public, human readable
	UserID          string          `json:"user_id"`
	ProjectID       *string         `json:"project_id,omitempty"`
	CertificateType CertificateType `json:"certificate_type"`
	WeekNumber      *int            `json:"week_number,omitempty"`
	Year            *int            `json:"year,omitempty"`
	ProjectTitle    string          `json:"project_title"`
	RecipientName   string          `json:"recipient_name"`
	FileURL         string          `json:"file_url"`
	IssuedAt        time.Time       `json:"issued_at"`
}

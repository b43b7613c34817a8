package models

import "time"

type InvitationStatus string

const (
	InvitationPending  InvitationStatus = "pending"
	InvitationAccepted InvitationStatus = "accepted"
	InvitationExpired  InvitationStatus = "expired"
)

// Invitation is a pending signup grant bound to a one-time code and expiry.
type Invitation struct {
	ID             string           `json:"id"`
	OrganizationID string           `json:"organization_id"`
	InvitationCode string           `json:"invitation_code"`
	StudentName    string           `json:"student_name"`
	StudentEmail   string           `json:"student_email"`
	Status         InvitationStatus `json:"status"`
	CreatedBy      string           `json:"created_by"`
	ExpiresAt      time.Time        `json:"expires_at"`
	AcceptedAt     *time.Time       `json:"accepted_at"`
	CreatedAt      time.Time        `json:"created_at"`
	UpdatedAt      time.Time        `json:"updated_at"`
}

// Expired reports whether the invitation's deadline has passed.
func (i *Invitation) Expired(now time.Time) bool {
	return now.After(i.ExpiresAt)
}

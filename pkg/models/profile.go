package models

import "time"

type UserRole string

const (
	RoleAdmin   UserRole = "admin"
	RoleStudent UserRole = "student"
)

// Profile represents a user account with an assigned role.
// Password is stored as-is by the local emulation layer; it is never
// serialized back to API consumers.
type Profile struct {
	ID             string    `json:"id"`
	Email          string    `json:"email"`
	Password       string    `json:"-"`
	FullName       string    `json:"full_name"`
	Role           UserRole  `json:"role"`
	OrganizationID *string   `json:"organization_id"`
	AvatarURL      *string   `json:"avatar_url"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// IsAdmin reports whether the profile carries the admin role.
func (p *Profile) IsAdmin() bool {
	return p.Role == RoleAdmin
}

package models

import "time"

// Achievement is a badge earned by a profile. Declared for schema parity
// with the hosted backend; the local layer stores but does not award them.
type Achievement struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	BadgeType string    `json:"badge_type"`
	BadgeName string    `json:"badge_name"`
	EarnedAt  time.Time `json:"earned_at"`
	CreatedAt time.Time `json:"created_at"`
}

package models

import "time"

// StudySession is one logged interval of study time for a profile.
type StudySession struct {
	ID            string    `json:"id"`
	UserID        string    `json:"user_id"`
	Subject       string    `json:"subject"`
	DurationHours float64   `json:"duration_hours"`
	Notes         *string   `json:"notes"`
	SessionDate   time.Time `json:"session_date"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

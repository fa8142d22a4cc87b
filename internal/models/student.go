package models

import "time"

// Student represents a learner submitting certificates for activity hours.
// TotalApprovedHours is derived state, incremented atomically on approval.
type Student struct {
	ID                 string    `db:"id" json:"id"`
	EnrollmentNumber   string    `db:"enrollment_number" json:"enrollment_number"`
	Name               string    `db:"name" json:"name"`
	Email              string    `db:"email" json:"email"`
	TotalApprovedHours int       `db:"total_approved_hours" json:"total_approved_hours"`
	CreatedAt          time.Time `db:"created_at" json:"created_at"`
	UpdatedAt          time.Time `db:"updated_at" json:"updated_at"`
}

package models

import "time"

// ExtractedMetadata holds the structured fields the extraction model produced
// for one submission. NumericHours is nil when the reported hours string
// could not be parsed; that is stored, not treated as a failure.
type ExtractedMetadata struct {
	ID               string    `db:"id" json:"id"`
	SubmissionID     string    `db:"submission_id" json:"submission_id"`
	ParticipantName  *string   `db:"participant_name" json:"participant_name,omitempty"`
	EventName        *string   `db:"event_name" json:"event_name,omitempty"`
	Location         *string   `db:"location" json:"location,omitempty"`
	EventDate        *string   `db:"event_date" json:"event_date,omitempty"`
	OriginalHours    *string   `db:"original_hours" json:"original_hours,omitempty"`
	NumericHours     *int      `db:"numeric_hours" json:"numeric_hours,omitempty"`
	ExtractionMethod string    `db:"extraction_method" json:"extraction_method"`
	Confidence       *float64  `db:"confidence" json:"confidence,omitempty"`
	ProcessingTimeMs int       `db:"processing_time_ms" json:"processing_time_ms"`
	ExtractedAt      time.Time `db:"extracted_at" json:"extracted_at"`
}

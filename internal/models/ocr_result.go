package models

import "time"

// OcrResult stores the raw extracted text for one submission. Append-only
// audit artifact: one row per submission, never mutated after creation.
type OcrResult struct {
	ID               string    `db:"id" json:"id"`
	SubmissionID     string    `db:"submission_id" json:"submission_id"`
	RawText          string    `db:"raw_text" json:"raw_text"`
	Confidence       float64   `db:"confidence" json:"confidence"`
	ProcessingTimeMs int       `db:"processing_time_ms" json:"processing_time_ms"`
	ExtractedAt      time.Time `db:"extracted_at" json:"extracted_at"`
}

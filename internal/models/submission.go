package models

import "time"

// Submission is one uploaded certificate tracked through the async pipeline.
// The (student_id, checksum) pair is unique; the insert is the arbiter for
// duplicate detection.
type Submission struct {
	ID                    string           `db:"id" json:"id"`
	StudentID             string           `db:"student_id" json:"student_id"`
	OriginalFilename      string           `db:"original_filename" json:"original_filename"`
	StorageKey            string           `db:"storage_key" json:"storage_key"`
	Checksum              string           `db:"checksum" json:"checksum"`
	FileSize              int64            `db:"file_size" json:"file_size"`
	MimeType              string           `db:"mime_type" json:"mime_type"`
	Status                SubmissionStatus `db:"status" json:"status"`
	ErrorCode             *string          `db:"error_code" json:"error_code,omitempty"`
	ErrorMessage          *string          `db:"error_message" json:"error_message,omitempty"`
	SubmittedAt           time.Time        `db:"submitted_at" json:"submitted_at"`
	ProcessingStartedAt   *time.Time       `db:"processing_started_at" json:"processing_started_at,omitempty"`
	ProcessingCompletedAt *time.Time       `db:"processing_completed_at" json:"processing_completed_at,omitempty"`
	ReviewedAt            *time.Time       `db:"reviewed_at" json:"reviewed_at,omitempty"`
}

// SubmissionFilter encapsulates search parameters for listing submissions.
type SubmissionFilter struct {
	Status     SubmissionStatus
	Enrollment string
	Page       int
	PageSize   int
}

// SubmissionDetail joins the owning student onto a submission row for
// coordinator-facing listings.
type SubmissionDetail struct {
	Submission
	StudentName      string `db:"student_name" json:"student_name"`
	EnrollmentNumber string `db:"enrollment_number" json:"enrollment_number"`
}

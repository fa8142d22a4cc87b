package models

import "time"

// ReviewStatus tracks the coordinator decision on an extracted activity.
type ReviewStatus string

const (
	ReviewPending        ReviewStatus = "pending_review"
	ReviewApproved       ReviewStatus = "approved"
	ReviewRejected       ReviewStatus = "rejected"
	ReviewManualOverride ReviewStatus = "manual_override"
)

// Terminal reports whether a coordinator decision has been recorded.
func (r ReviewStatus) Terminal() bool {
	return r == ReviewApproved || r == ReviewRejected || r == ReviewManualOverride
}

// ExtractedActivity is the categorization result for one submission: the
// proposed category, the engine-computed hours, and the coordinator decision.
// Created by the categorization stage, mutated exactly once by the review
// workflow.
type ExtractedActivity struct {
	ID              string  `db:"id" json:"id"`
	SubmissionID    string  `db:"submission_id" json:"submission_id"`
	StudentID       string  `db:"student_id" json:"student_id"`
	ParticipantName *string `db:"participant_name" json:"participant_name,omitempty"`
	EventName       *string `db:"event_name" json:"event_name,omitempty"`
	Location        *string `db:"location" json:"location,omitempty"`
	EventDate       *string `db:"event_date" json:"event_date,omitempty"`
	OriginalHours   *string `db:"original_hours" json:"original_hours,omitempty"`
	NumericHours    *int    `db:"numeric_hours" json:"numeric_hours,omitempty"`

	CategoryID      string `db:"category_id" json:"category_id"`
	CalculatedHours int    `db:"calculated_hours" json:"calculated_hours"`
	Reasoning       string `db:"reasoning" json:"reasoning"`

	ReviewStatus        ReviewStatus `db:"review_status" json:"review_status"`
	CoordinatorID       *string      `db:"coordinator_id" json:"coordinator_id,omitempty"`
	CoordinatorComments *string      `db:"coordinator_comments" json:"coordinator_comments,omitempty"`
	ReviewedAt          *time.Time   `db:"reviewed_at" json:"reviewed_at,omitempty"`

	OverrideCategoryID *string `db:"override_category_id" json:"override_category_id,omitempty"`
	OverrideHours      *int    `db:"override_hours" json:"override_hours,omitempty"`
	OverrideReasoning  *string `db:"override_reasoning" json:"override_reasoning,omitempty"`

	FinalCategoryID *string `db:"final_category_id" json:"final_category_id,omitempty"`
	FinalHours      *int    `db:"final_hours" json:"final_hours,omitempty"`

	ProcessedAt time.Time `db:"processed_at" json:"processed_at"`
}

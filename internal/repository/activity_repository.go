package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/certhours/cert-hours-api/internal/models"
)

// ActivityRepository persists categorization results and review decisions.
type ActivityRepository struct {
	db *sqlx.DB
}

// NewActivityRepository constructs an ActivityRepository.
func NewActivityRepository(db *sqlx.DB) *ActivityRepository {
	return &ActivityRepository{db: db}
}

// Create inserts the extracted activity in pending_review. Duplicate
// submission_id surfaces as ErrDuplicate (redelivery guard).
func (r *ActivityRepository) Create(ctx context.Context, activity *models.ExtractedActivity) error {
	if activity.ID == "" {
		activity.ID = uuid.NewString()
	}
	if activity.ReviewStatus == "" {
		activity.ReviewStatus = models.ReviewPending
	}
	if activity.ProcessedAt.IsZero() {
		activity.ProcessedAt = time.Now().UTC()
	}
	const query = `INSERT INTO extracted_activities (id, submission_id, student_id, participant_name, event_name, location,
        event_date, original_hours, numeric_hours, category_id, calculated_hours, reasoning, review_status, processed_at)
        VALUES (:id, :submission_id, :student_id, :participant_name, :event_name, :location,
        :event_date, :original_hours, :numeric_hours, :category_id, :calculated_hours, :reasoning, :review_status, :processed_at)`
	if _, err := r.db.NamedExecContext(ctx, query, activity); err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("create extracted activity: %w", err)
	}
	return nil
}

// FindBySubmission fetches the activity for a submission.
func (r *ActivityRepository) FindBySubmission(ctx context.Context, submissionID string) (*models.ExtractedActivity, error) {
	const query = `SELECT id, submission_id, student_id, participant_name, event_name, location, event_date,
        original_hours, numeric_hours, category_id, calculated_hours, reasoning, review_status,
        coordinator_id, coordinator_comments, reviewed_at, override_category_id, override_hours, override_reasoning,
        final_category_id, final_hours, processed_at
        FROM extracted_activities WHERE submission_id = $1`
	var activity models.ExtractedActivity
	if err := r.db.GetContext(ctx, &activity, query, submissionID); err != nil {
		return nil, err
	}
	return &activity, nil
}

// ReviewDecision captures the persisted outcome of a coordinator action.
type ReviewDecision struct {
	Status             models.ReviewStatus
	CoordinatorID      string
	Comments           *string
	OverrideCategoryID *string
	OverrideHours      *int
	OverrideReasoning  *string
	FinalCategoryID    *string
	FinalHours         int
}

// ApplyDecision records a coordinator decision. The WHERE clause only
// matches pending_review rows; zero rows affected surfaces as
// ErrAlreadyReviewed, making every decision terminal and idempotent-guarded.
func (r *ActivityRepository) ApplyDecision(ctx context.Context, activityID string, d ReviewDecision) error {
	const query = `UPDATE extracted_activities SET review_status = $2, coordinator_id = $3, coordinator_comments = $4,
        override_category_id = $5, override_hours = $6, override_reasoning = $7,
        final_category_id = $8, final_hours = $9, reviewed_at = NOW()
        WHERE id = $1 AND review_status = 'pending_review'`
	res, err := r.db.ExecContext(ctx, query, activityID, d.Status, d.CoordinatorID, d.Comments,
		d.OverrideCategoryID, d.OverrideHours, d.OverrideReasoning, d.FinalCategoryID, d.FinalHours)
	if err != nil {
		return fmt.Errorf("apply review decision: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("apply review decision: %w", err)
	}
	if affected == 0 {
		return ErrAlreadyReviewed
	}
	return nil
}

// ApprovedHoursInCategory sums the hours a student already has credited in a
// category, counting approvals and manual overrides.
func (r *ActivityRepository) ApprovedHoursInCategory(ctx context.Context, studentID, categoryID string) (int, error) {
	const query = `SELECT COALESCE(SUM(final_hours), 0) FROM extracted_activities
        WHERE student_id = $1 AND final_category_id = $2 AND review_status IN ('approved', 'manual_override')`
	var total int
	if err := r.db.GetContext(ctx, &total, query, studentID, categoryID); err != nil {
		return 0, fmt.Errorf("sum approved hours: %w", err)
	}
	return total, nil
}

// ListApprovedByStudent returns the credited activities for a student,
// oldest first, for the hours statement export.
func (r *ActivityRepository) ListApprovedByStudent(ctx context.Context, studentID string) ([]models.ExtractedActivity, error) {
	const query = `SELECT id, submission_id, student_id, participant_name, event_name, location, event_date,
        original_hours, numeric_hours, category_id, calculated_hours, reasoning, review_status,
        coordinator_id, coordinator_comments, reviewed_at, override_category_id, override_hours, override_reasoning,
        final_category_id, final_hours, processed_at
        FROM extracted_activities
        WHERE student_id = $1 AND review_status IN ('approved', 'manual_override')
        ORDER BY reviewed_at ASC`
	var activities []models.ExtractedActivity
	if err := r.db.SelectContext(ctx, &activities, query, studentID); err != nil {
		return nil, fmt.Errorf("list approved activities: %w", err)
	}
	return activities, nil
}

package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/certhours/cert-hours-api/internal/models"
)

// SubmissionRepository manages persistence for certificate submissions and is
// the single place where status transitions touch the database.
type SubmissionRepository struct {
	db *sqlx.DB
}

// NewSubmissionRepository constructs a SubmissionRepository.
func NewSubmissionRepository(db *sqlx.DB) *SubmissionRepository {
	return &SubmissionRepository{db: db}
}

const submissionColumns = `id, student_id, original_filename, storage_key, checksum, file_size, mime_type,
        status, error_code, error_message, submitted_at, processing_started_at, processing_completed_at, reviewed_at`

// Create inserts a new submission. The partial unique index on
// (student_id, checksum) WHERE status <> 'failed' is the dedup arbiter: a
// violation surfaces as ErrDuplicate, never as a system error, so concurrent
// submissions of the same file race safely. Failed rows are excluded so a
// student can submit the same file again after a processing failure.
func (r *SubmissionRepository) Create(ctx context.Context, sub *models.Submission) error {
	if sub.ID == "" {
		sub.ID = uuid.NewString()
	}
	if sub.Status == "" {
		sub.Status = models.StatusUploaded
	}
	if sub.SubmittedAt.IsZero() {
		sub.SubmittedAt = time.Now().UTC()
	}
	const query = `INSERT INTO submissions (id, student_id, original_filename, storage_key, checksum, file_size, mime_type, status, submitted_at)
        VALUES (:id, :student_id, :original_filename, :storage_key, :checksum, :file_size, :mime_type, :status, :submitted_at)`
	if _, err := r.db.NamedExecContext(ctx, query, sub); err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("create submission: %w", err)
	}
	return nil
}

// FindByID fetches a submission by ID.
func (r *SubmissionRepository) FindByID(ctx context.Context, id string) (*models.Submission, error) {
	query := fmt.Sprintf("SELECT %s FROM submissions WHERE id = $1", submissionColumns)
	var sub models.Submission
	if err := r.db.GetContext(ctx, &sub, query, id); err != nil {
		return nil, err
	}
	return &sub, nil
}

// FindByChecksum returns the live submission for (student, checksum), if any.
// Failed rows are invisible here, matching the partial unique index.
func (r *SubmissionRepository) FindByChecksum(ctx context.Context, studentID, checksum string) (*models.Submission, error) {
	query := fmt.Sprintf("SELECT %s FROM submissions WHERE student_id = $1 AND checksum = $2 AND status <> 'failed'", submissionColumns)
	var sub models.Submission
	if err := r.db.GetContext(ctx, &sub, query, studentID, checksum); err != nil {
		return nil, err
	}
	return &sub, nil
}

// ListByStudent returns a student's submissions, newest first.
func (r *SubmissionRepository) ListByStudent(ctx context.Context, studentID string, status models.SubmissionStatus, limit int) ([]models.Submission, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	query := fmt.Sprintf("SELECT %s FROM submissions WHERE student_id = $1", submissionColumns)
	args := []interface{}{studentID}
	if status != "" {
		query += fmt.Sprintf(" AND status = $%d", len(args)+1)
		args = append(args, status)
	}
	query += fmt.Sprintf(" ORDER BY submitted_at DESC LIMIT %d", limit)

	var subs []models.Submission
	if err := r.db.SelectContext(ctx, &subs, query, args...); err != nil {
		return nil, fmt.Errorf("list submissions: %w", err)
	}
	return subs, nil
}

// List returns submissions joined with the owning student, filtered by
// status and optional enrollment substring, for coordinator listings.
func (r *SubmissionRepository) List(ctx context.Context, filter models.SubmissionFilter) ([]models.SubmissionDetail, int, error) {
	base := "FROM submissions sub JOIN students st ON st.id = sub.student_id"
	conditions := []string{"1=1"}
	args := []interface{}{}

	if filter.Status != "" {
		conditions = append(conditions, fmt.Sprintf("sub.status = $%d", len(args)+1))
		args = append(args, filter.Status)
	}
	if filter.Enrollment != "" {
		conditions = append(conditions, fmt.Sprintf("st.enrollment_number ILIKE $%d", len(args)+1))
		args = append(args, "%"+filter.Enrollment+"%")
	}
	base = fmt.Sprintf("%s WHERE %s", base, strings.Join(conditions, " AND "))

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	query := fmt.Sprintf(`SELECT sub.id, sub.student_id, sub.original_filename, sub.storage_key, sub.checksum, sub.file_size, sub.mime_type,
        sub.status, sub.error_code, sub.error_message, sub.submitted_at, sub.processing_started_at, sub.processing_completed_at, sub.reviewed_at,
        st.name AS student_name, st.enrollment_number
        %s ORDER BY sub.submitted_at DESC LIMIT %d OFFSET %d`, base, size, offset)

	var details []models.SubmissionDetail
	if err := r.db.SelectContext(ctx, &details, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list submission details: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count submissions: %w", err)
	}
	return details, total, nil
}

// Transition performs the guarded one-step state change: the row is updated
// only when it still holds the expected predecessor status. Zero rows
// affected means another worker already advanced (or failed) the submission;
// that surfaces as ErrStaleTransition and callers treat it as a no-op skip.
// This single UPDATE is the serialization point that makes event redelivery
// race-free.
func (r *SubmissionRepository) Transition(ctx context.Context, id string, from, to models.SubmissionStatus) error {
	if !models.CanTransition(from, to) {
		return fmt.Errorf("transition %s -> %s not permitted", from, to)
	}
	const query = `UPDATE submissions SET status = $1,
        processing_started_at = CASE WHEN $1 = 'ocr_processing' THEN COALESCE(processing_started_at, NOW()) ELSE processing_started_at END,
        processing_completed_at = CASE WHEN $1 = 'pending_review' THEN COALESCE(processing_completed_at, NOW()) ELSE processing_completed_at END
        WHERE id = $2 AND status = $3`
	res, err := r.db.ExecContext(ctx, query, to, id, from)
	if err != nil {
		return fmt.Errorf("transition submission: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("transition submission: %w", err)
	}
	if affected == 0 {
		return ErrStaleTransition
	}
	return nil
}

// MarkFailed drives a submission into the terminal failed state from any
// non-terminal state, recording the structured error. Acting on an already
// terminal submission is a no-op reported as ErrStaleTransition.
func (r *SubmissionRepository) MarkFailed(ctx context.Context, id, code, message string) error {
	const query = `UPDATE submissions SET status = 'failed', error_code = $2, error_message = $3,
        processing_completed_at = COALESCE(processing_completed_at, NOW())
        WHERE id = $1 AND status NOT IN ('approved', 'rejected', 'failed')`
	res, err := r.db.ExecContext(ctx, query, id, code, message)
	if err != nil {
		return fmt.Errorf("mark submission failed: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("mark submission failed: %w", err)
	}
	if affected == 0 {
		return ErrStaleTransition
	}
	return nil
}

// MarkReviewed records the coordinator outcome. Only pending_review rows
// qualify, which makes a second decision surface as ErrStaleTransition.
func (r *SubmissionRepository) MarkReviewed(ctx context.Context, id string, outcome models.SubmissionStatus) error {
	if outcome != models.StatusApproved && outcome != models.StatusRejected {
		return fmt.Errorf("invalid review outcome %s", outcome)
	}
	const query = `UPDATE submissions SET status = $2, reviewed_at = NOW()
        WHERE id = $1 AND status = 'pending_review'`
	res, err := r.db.ExecContext(ctx, query, id, outcome)
	if err != nil {
		return fmt.Errorf("mark submission reviewed: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("mark submission reviewed: %w", err)
	}
	if affected == 0 {
		return ErrStaleTransition
	}
	return nil
}

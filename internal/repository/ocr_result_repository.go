package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/certhours/cert-hours-api/internal/models"
)

// OcrResultRepository persists OCR output, one row per submission.
type OcrResultRepository struct {
	db *sqlx.DB
}

// NewOcrResultRepository constructs an OcrResultRepository.
func NewOcrResultRepository(db *sqlx.DB) *OcrResultRepository {
	return &OcrResultRepository{db: db}
}

// Create inserts the OCR result. The unique submission_id index means a
// redelivered OCR event can never produce a second row: the violation
// surfaces as ErrDuplicate and the stage treats it as already done.
func (r *OcrResultRepository) Create(ctx context.Context, result *models.OcrResult) error {
	if result.ID == "" {
		result.ID = uuid.NewString()
	}
	if result.ExtractedAt.IsZero() {
		result.ExtractedAt = time.Now().UTC()
	}
	const query = `INSERT INTO ocr_results (id, submission_id, raw_text, confidence, processing_time_ms, extracted_at)
        VALUES (:id, :submission_id, :raw_text, :confidence, :processing_time_ms, :extracted_at)`
	if _, err := r.db.NamedExecContext(ctx, query, result); err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("create ocr result: %w", err)
	}
	return nil
}

// FindBySubmission fetches the OCR result for a submission.
func (r *OcrResultRepository) FindBySubmission(ctx context.Context, submissionID string) (*models.OcrResult, error) {
	const query = `SELECT id, submission_id, raw_text, confidence, processing_time_ms, extracted_at
        FROM ocr_results WHERE submission_id = $1`
	var result models.OcrResult
	if err := r.db.GetContext(ctx, &result, query, submissionID); err != nil {
		return nil, err
	}
	return &result, nil
}

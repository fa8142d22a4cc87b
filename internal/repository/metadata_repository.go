package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/certhours/cert-hours-api/internal/models"
)

// MetadataRepository persists extracted certificate metadata, one row per
// submission.
type MetadataRepository struct {
	db *sqlx.DB
}

// NewMetadataRepository constructs a MetadataRepository.
func NewMetadataRepository(db *sqlx.DB) *MetadataRepository {
	return &MetadataRepository{db: db}
}

// Create inserts the metadata record. Duplicate submission_id surfaces as
// ErrDuplicate so event redelivery cannot create a second row.
func (r *MetadataRepository) Create(ctx context.Context, meta *models.ExtractedMetadata) error {
	if meta.ID == "" {
		meta.ID = uuid.NewString()
	}
	if meta.ExtractionMethod == "" {
		meta.ExtractionMethod = "llm"
	}
	if meta.ExtractedAt.IsZero() {
		meta.ExtractedAt = time.Now().UTC()
	}
	const query = `INSERT INTO extracted_metadata (id, submission_id, participant_name, event_name, location, event_date,
        original_hours, numeric_hours, extraction_method, confidence, processing_time_ms, extracted_at)
        VALUES (:id, :submission_id, :participant_name, :event_name, :location, :event_date,
        :original_hours, :numeric_hours, :extraction_method, :confidence, :processing_time_ms, :extracted_at)`
	if _, err := r.db.NamedExecContext(ctx, query, meta); err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("create extracted metadata: %w", err)
	}
	return nil
}

// FindBySubmission fetches the metadata for a submission.
func (r *MetadataRepository) FindBySubmission(ctx context.Context, submissionID string) (*models.ExtractedMetadata, error) {
	const query = `SELECT id, submission_id, participant_name, event_name, location, event_date,
        original_hours, numeric_hours, extraction_method, confidence, processing_time_ms, extracted_at
        FROM extracted_metadata WHERE submission_id = $1`
	var meta models.ExtractedMetadata
	if err := r.db.GetContext(ctx, &meta, query, submissionID); err != nil {
		return nil, err
	}
	return &meta, nil
}

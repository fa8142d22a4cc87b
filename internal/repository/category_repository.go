package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/certhours/cert-hours-api/internal/models"
)

// CategoryRepository reads the seeded activity category rules. Categories are
// reference data: written once at seed time, read once at startup.
type CategoryRepository struct {
	db *sqlx.DB
}

// NewCategoryRepository constructs a CategoryRepository.
func NewCategoryRepository(db *sqlx.DB) *CategoryRepository {
	return &CategoryRepository{db: db}
}

// ListAll returns every seeded category in name order.
func (r *CategoryRepository) ListAll(ctx context.Context) ([]models.ActivityCategory, error) {
	const query = `SELECT id, name, description, calculation_type, input_unit, input_quantity, output_hours, max_total_hours, created_at, updated_at
        FROM activity_categories ORDER BY name ASC`
	var categories []models.ActivityCategory
	if err := r.db.SelectContext(ctx, &categories, query); err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	return categories, nil
}

// Count returns the number of seeded categories.
func (r *CategoryRepository) Count(ctx context.Context) (int, error) {
	var count int
	if err := r.db.GetContext(ctx, &count, "SELECT COUNT(*) FROM activity_categories"); err != nil {
		return 0, fmt.Errorf("count categories: %w", err)
	}
	return count, nil
}

// Seed inserts the given categories. Intended for first boot against an
// empty table; duplicate names surface as ErrDuplicate.
func (r *CategoryRepository) Seed(ctx context.Context, categories []models.ActivityCategory) error {
	const query = `INSERT INTO activity_categories (id, name, description, calculation_type, input_unit, input_quantity, output_hours, max_total_hours, created_at, updated_at)
        VALUES (:id, :name, :description, :calculation_type, :input_unit, :input_quantity, :output_hours, :max_total_hours, :created_at, :updated_at)`
	now := time.Now().UTC()
	for i := range categories {
		if categories[i].ID == "" {
			categories[i].ID = uuid.NewString()
		}
		categories[i].CreatedAt = now
		categories[i].UpdatedAt = now
		if _, err := r.db.NamedExecContext(ctx, query, &categories[i]); err != nil {
			if isUniqueViolation(err) {
				return ErrDuplicate
			}
			return fmt.Errorf("seed category %s: %w", categories[i].Name, err)
		}
	}
	return nil
}

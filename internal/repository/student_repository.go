package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/certhours/cert-hours-api/internal/models"
)

// StudentRepository manages persistence for student records.
type StudentRepository struct {
	db *sqlx.DB
}

// NewStudentRepository constructs a StudentRepository.
func NewStudentRepository(db *sqlx.DB) *StudentRepository {
	return &StudentRepository{db: db}
}

// Create inserts a new student. A duplicate enrollment number surfaces as
// ErrDuplicate.
func (r *StudentRepository) Create(ctx context.Context, student *models.Student) error {
	if student.ID == "" {
		student.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if student.CreatedAt.IsZero() {
		student.CreatedAt = now
	}
	student.UpdatedAt = now
	const query = `INSERT INTO students (id, enrollment_number, name, email, total_approved_hours, created_at, updated_at)
        VALUES (:id, :enrollment_number, :name, :email, :total_approved_hours, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, student); err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("create student: %w", err)
	}
	return nil
}

// FindByID fetches a student by ID.
func (r *StudentRepository) FindByID(ctx context.Context, id string) (*models.Student, error) {
	const query = `SELECT id, enrollment_number, name, email, total_approved_hours, created_at, updated_at
        FROM students WHERE id = $1`
	var student models.Student
	if err := r.db.GetContext(ctx, &student, query, id); err != nil {
		return nil, err
	}
	return &student, nil
}

// FindByEnrollment fetches a student by enrollment number.
func (r *StudentRepository) FindByEnrollment(ctx context.Context, enrollment string) (*models.Student, error) {
	const query = `SELECT id, enrollment_number, name, email, total_approved_hours, created_at, updated_at
        FROM students WHERE enrollment_number = $1`
	var student models.Student
	if err := r.db.GetContext(ctx, &student, query, enrollment); err != nil {
		return nil, err
	}
	return &student, nil
}

// Update modifies the mutable student profile fields.
func (r *StudentRepository) Update(ctx context.Context, student *models.Student) error {
	student.UpdatedAt = time.Now().UTC()
	const query = `UPDATE students SET name = :name, email = :email, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, student); err != nil {
		return fmt.Errorf("update student: %w", err)
	}
	return nil
}

// AddApprovedHours atomically increments the derived running total. Safe
// under concurrent approvals for the same student.
func (r *StudentRepository) AddApprovedHours(ctx context.Context, id string, hours int) error {
	const query = `UPDATE students SET total_approved_hours = total_approved_hours + $2, updated_at = $3 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, hours, time.Now().UTC()); err != nil {
		return fmt.Errorf("add approved hours: %w", err)
	}
	return nil
}

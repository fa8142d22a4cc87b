package repository

import (
	"context"
	"regexp"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/require"

	"github.com/certhours/cert-hours-api/internal/models"
)

func TestActivityRepositoryCreateDuplicateSubmission(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewActivityRepository(db)
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO extracted_activities")).
		WillReturnResult(sqlmock.NewResult(1, 1))

	event := "Semana Acadêmica"
	activity := &models.ExtractedActivity{
		SubmissionID:    "sub-1",
		StudentID:       "student-1",
		EventName:       &event,
		CategoryID:      "cat-1",
		CalculatedHours: 10,
		Reasoning:       "matched lecture attendance",
	}
	require.NoError(t, repo.Create(context.Background(), activity))
	require.Equal(t, models.ReviewPending, activity.ReviewStatus)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO extracted_activities")).
		WillReturnError(&pq.Error{Code: "23505", Constraint: "extracted_activities_submission_id_key"})

	err := repo.Create(context.Background(), &models.ExtractedActivity{SubmissionID: "sub-1", StudentID: "student-1"})
	require.ErrorIs(t, err, ErrDuplicate)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestActivityRepositoryApplyDecision(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewActivityRepository(db)
	catID := "cat-1"
	mock.ExpectExec(regexp.QuoteMeta("UPDATE extracted_activities SET review_status = $2")).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.ApplyDecision(context.Background(), "act-1", ReviewDecision{
		Status:          models.ReviewApproved,
		CoordinatorID:   "coord-1",
		FinalCategoryID: &catID,
		FinalHours:      10,
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestActivityRepositoryApplyDecisionAlreadyReviewed(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewActivityRepository(db)
	mock.ExpectExec(regexp.QuoteMeta("UPDATE extracted_activities SET review_status = $2")).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.ApplyDecision(context.Background(), "act-1", ReviewDecision{
		Status:        models.ReviewRejected,
		CoordinatorID: "coord-1",
	})
	require.ErrorIs(t, err, ErrAlreadyReviewed)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestActivityRepositoryApprovedHoursInCategory(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewActivityRepository(db)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COALESCE(SUM(final_hours), 0)")).
		WithArgs("student-1", "cat-1").
		WillReturnRows(sqlmock.NewRows([]string{"coalesce"}).AddRow(25))

	total, err := repo.ApprovedHoursInCategory(context.Background(), "student-1", "cat-1")
	require.NoError(t, err)
	require.Equal(t, 25, total)
	require.NoError(t, mock.ExpectationsWereMet())
}

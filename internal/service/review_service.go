package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/certhours/cert-hours-api/internal/models"
	"github.com/certhours/cert-hours-api/internal/repository"
	"github.com/certhours/cert-hours-api/internal/rules"
	appErrors "github.com/certhours/cert-hours-api/pkg/errors"
)

type activityRepository interface {
	FindBySubmission(ctx context.Context, submissionID string) (*models.ExtractedActivity, error)
	ApplyDecision(ctx context.Context, activityID string, d repository.ReviewDecision) error
	ApprovedHoursInCategory(ctx context.Context, studentID, categoryID string) (int, error)
}

type submissionReviewer interface {
	FindByID(ctx context.Context, id string) (*models.Submission, error)
	List(ctx context.Context, filter models.SubmissionFilter) ([]models.SubmissionDetail, int, error)
	MarkReviewed(ctx context.Context, id string, outcome models.SubmissionStatus) error
}

type hoursAccumulator interface {
	AddApprovedHours(ctx context.Context, id string, hours int) error
}

type ocrReader interface {
	FindBySubmission(ctx context.Context, submissionID string) (*models.OcrResult, error)
}

type metadataReader interface {
	FindBySubmission(ctx context.Context, submissionID string) (*models.ExtractedMetadata, error)
}

// ApproveRequest describes a coordinator approval. Hours, when set, replaces
// the engine-computed award but must stay within the category cap.
type ApproveRequest struct {
	CoordinatorID string  `json:"coordinator_id" validate:"required"`
	Comments      *string `json:"comments,omitempty"`
	Hours         *int    `json:"hours,omitempty"`
}

// RejectRequest describes a coordinator rejection. The reason is mandatory.
type RejectRequest struct {
	CoordinatorID string `json:"coordinator_id" validate:"required"`
	Reason        string `json:"reason" validate:"required"`
}

// OverrideRequest describes a manual override: a different category and/or
// hours, always with a rationale.
type OverrideRequest struct {
	CoordinatorID string  `json:"coordinator_id" validate:"required"`
	CategoryID    *string `json:"category_id,omitempty"`
	Hours         *int    `json:"hours,omitempty"`
	Rationale     string  `json:"rationale" validate:"required"`
}

// ReviewDetailView bundles everything a coordinator sees for one submission.
type ReviewDetailView struct {
	Submission models.Submission         `json:"submission"`
	Activity   *models.ExtractedActivity `json:"activity,omitempty"`
	Metadata   *models.ExtractedMetadata `json:"metadata,omitempty"`
	RawText    string                    `json:"raw_text,omitempty"`
	Category   *models.ActivityCategory  `json:"category,omitempty"`
}

// ReviewService executes coordinator decisions. Every decision is terminal:
// the activity row's guarded update arbitrates concurrent decisions, so the
// student's total is incremented exactly once per approval.
type ReviewService struct {
	activities  activityRepository
	submissions submissionReviewer
	students    hoursAccumulator
	ocrResults  ocrReader
	metadata    metadataReader
	table       *rules.Table
	validator   *validator.Validate
	logger      *zap.Logger
}

// NewReviewService constructs ReviewService.
func NewReviewService(
	activities activityRepository,
	submissions submissionReviewer,
	students hoursAccumulator,
	ocrResults ocrReader,
	metadata metadataReader,
	table *rules.Table,
	validate *validator.Validate,
	logger *zap.Logger,
) *ReviewService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReviewService{
		activities:  activities,
		submissions: submissions,
		students:    students,
		ocrResults:  ocrResults,
		metadata:    metadata,
		table:       table,
		validator:   validate,
		logger:      logger,
	}
}

// Pending lists submissions waiting for a coordinator decision.
func (s *ReviewService) Pending(ctx context.Context, filter models.SubmissionFilter) ([]models.SubmissionDetail, *models.Pagination, error) {
	if filter.Status == "" {
		filter.Status = models.StatusPendingReview
	}
	details, total, err := s.submissions.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list submissions")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 20
	}
	return details, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// Details returns the full review context for one submission.
func (s *ReviewService) Details(ctx context.Context, submissionID string) (*ReviewDetailView, error) {
	sub, err := s.submissions.FindByID(ctx, submissionID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "submission not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load submission")
	}

	view := &ReviewDetailView{Submission: *sub}
	if activity, err := s.activities.FindBySubmission(ctx, submissionID); err == nil {
		view.Activity = activity
		if cat, ok := s.table.ByID(activity.CategoryID); ok {
			view.Category = &cat
		}
	} else if !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load activity")
	}
	if meta, err := s.metadata.FindBySubmission(ctx, submissionID); err == nil {
		view.Metadata = meta
	} else if !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load metadata")
	}
	if ocr, err := s.ocrResults.FindBySubmission(ctx, submissionID); err == nil {
		view.RawText = ocr.RawText
	} else if !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load ocr result")
	}
	return view, nil
}

// Approve credits the activity's hours to the student. An optional hours
// value replaces the computed award but is re-checked against the category's
// remaining headroom.
func (s *ReviewService) Approve(ctx context.Context, submissionID string, req ApproveRequest) (*models.ExtractedActivity, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid approval payload")
	}
	activity, err := s.pendingActivity(ctx, submissionID)
	if err != nil {
		return nil, err
	}

	cat, ok := s.table.ByID(activity.CategoryID)
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrCategoryNotFound, fmt.Sprintf("category %s is not in the rule table", activity.CategoryID))
	}

	finalHours := activity.CalculatedHours
	if req.Hours != nil {
		if *req.Hours < 0 {
			return nil, appErrors.Clone(appErrors.ErrValidation, "hours must not be negative")
		}
		remaining, err := s.headroom(ctx, activity.StudentID, cat)
		if err != nil {
			return nil, err
		}
		if *req.Hours > remaining {
			return nil, appErrors.Clone(appErrors.ErrValidation,
				fmt.Sprintf("hours exceed the category cap: %d remaining in %s", remaining, cat.Name))
		}
		finalHours = *req.Hours
	}

	decision := repository.ReviewDecision{
		Status:          models.ReviewApproved,
		CoordinatorID:   req.CoordinatorID,
		Comments:        req.Comments,
		FinalCategoryID: &activity.CategoryID,
		FinalHours:      finalHours,
	}
	if err := s.applyDecision(ctx, activity, decision, models.StatusApproved); err != nil {
		return nil, err
	}
	if finalHours > 0 {
		if err := s.students.AddApprovedHours(ctx, activity.StudentID, finalHours); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to credit hours")
		}
	}

	s.logger.Info("submission approved",
		zap.String("submission_id", submissionID),
		zap.String("coordinator_id", req.CoordinatorID),
		zap.Int("hours", finalHours))
	activity.ReviewStatus = models.ReviewApproved
	activity.FinalCategoryID = &activity.CategoryID
	activity.FinalHours = &finalHours
	return activity, nil
}

// Reject records a rejection with its mandatory reason. No hours are
// credited.
func (s *ReviewService) Reject(ctx context.Context, submissionID string, req RejectRequest) (*models.ExtractedActivity, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid rejection payload")
	}
	activity, err := s.pendingActivity(ctx, submissionID)
	if err != nil {
		return nil, err
	}

	zero := 0
	decision := repository.ReviewDecision{
		Status:        models.ReviewRejected,
		CoordinatorID: req.CoordinatorID,
		Comments:      &req.Reason,
		FinalHours:    zero,
	}
	if err := s.applyDecision(ctx, activity, decision, models.StatusRejected); err != nil {
		return nil, err
	}

	s.logger.Info("submission rejected",
		zap.String("submission_id", submissionID),
		zap.String("coordinator_id", req.CoordinatorID))
	activity.ReviewStatus = models.ReviewRejected
	activity.FinalHours = &zero
	return activity, nil
}

// Override replaces the proposed category and/or hours. The cap check runs
// against the override category, not the one the model proposed.
func (s *ReviewService) Override(ctx context.Context, submissionID string, req OverrideRequest) (*models.ExtractedActivity, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid override payload")
	}
	if req.CategoryID == nil && req.Hours == nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "override requires a category, hours or both")
	}
	activity, err := s.pendingActivity(ctx, submissionID)
	if err != nil {
		return nil, err
	}

	targetCategoryID := activity.CategoryID
	if req.CategoryID != nil {
		targetCategoryID = *req.CategoryID
	}
	cat, ok := s.table.ByID(targetCategoryID)
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrCategoryNotFound, fmt.Sprintf("category %s is not in the rule table", targetCategoryID))
	}

	remaining, err := s.headroom(ctx, activity.StudentID, cat)
	if err != nil {
		return nil, err
	}

	var finalHours int
	if req.Hours != nil {
		if *req.Hours < 0 {
			return nil, appErrors.Clone(appErrors.ErrValidation, "hours must not be negative")
		}
		if *req.Hours > remaining {
			return nil, appErrors.Clone(appErrors.ErrValidation,
				fmt.Sprintf("hours exceed the category cap: %d remaining in %s", remaining, cat.Name))
		}
		finalHours = *req.Hours
	} else {
		approved := cat.MaxTotalHours - remaining
		finalHours = rules.Award(cat, rules.QuantityFor(cat, activity.NumericHours), approved)
	}

	decision := repository.ReviewDecision{
		Status:             models.ReviewManualOverride,
		CoordinatorID:      req.CoordinatorID,
		OverrideCategoryID: req.CategoryID,
		OverrideHours:      req.Hours,
		OverrideReasoning:  &req.Rationale,
		FinalCategoryID:    &cat.ID,
		FinalHours:         finalHours,
	}
	if err := s.applyDecision(ctx, activity, decision, models.StatusApproved); err != nil {
		return nil, err
	}
	if finalHours > 0 {
		if err := s.students.AddApprovedHours(ctx, activity.StudentID, finalHours); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to credit hours")
		}
	}

	s.logger.Info("submission overridden",
		zap.String("submission_id", submissionID),
		zap.String("coordinator_id", req.CoordinatorID),
		zap.String("category_id", cat.ID),
		zap.Int("hours", finalHours))
	activity.ReviewStatus = models.ReviewManualOverride
	activity.FinalCategoryID = &cat.ID
	activity.FinalHours = &finalHours
	return activity, nil
}

func (s *ReviewService) pendingActivity(ctx context.Context, submissionID string) (*models.ExtractedActivity, error) {
	activity, err := s.activities.FindBySubmission(ctx, submissionID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "nothing to review for this submission")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load activity")
	}
	if activity.ReviewStatus.Terminal() {
		return nil, appErrors.Clone(appErrors.ErrAlreadyReviewed, "")
	}
	return activity, nil
}

// applyDecision persists the decision and moves the submission. The activity
// update's WHERE clause is the arbiter: a concurrent decision loses with
// AlreadyReviewed before any hours are credited.
func (s *ReviewService) applyDecision(ctx context.Context, activity *models.ExtractedActivity, decision repository.ReviewDecision, outcome models.SubmissionStatus) error {
	if err := s.activities.ApplyDecision(ctx, activity.ID, decision); err != nil {
		if errors.Is(err, repository.ErrAlreadyReviewed) {
			return appErrors.Clone(appErrors.ErrAlreadyReviewed, "")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record decision")
	}
	if err := s.submissions.MarkReviewed(ctx, activity.SubmissionID, outcome); err != nil {
		if !errors.Is(err, repository.ErrStaleTransition) {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update submission")
		}
		s.logger.Warn("submission already out of pending_review", zap.String("submission_id", activity.SubmissionID))
	}
	return nil
}

func (s *ReviewService) headroom(ctx context.Context, studentID string, cat models.ActivityCategory) (int, error) {
	approved, err := s.activities.ApprovedHoursInCategory(ctx, studentID, cat.ID)
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sum approved hours")
	}
	remaining := cat.MaxTotalHours - approved
	if remaining < 0 {
		remaining = 0
	}
	return remaining, nil
}

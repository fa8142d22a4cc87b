package pipeline

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/certhours/cert-hours-api/internal/models"
	"github.com/certhours/cert-hours-api/internal/provider"
	"github.com/certhours/cert-hours-api/internal/repository"
	"github.com/certhours/cert-hours-api/internal/rules"
	appErrors "github.com/certhours/cert-hours-api/pkg/errors"
	"github.com/certhours/cert-hours-api/pkg/events"
)

// CategorizationStage consumes certificate.metadata: it classifies the
// activity against the rule table, computes the capped hours award and parks
// the submission in pending_review for the coordinator.
type CategorizationStage struct {
	submissions SubmissionStore
	results     OcrResultStore
	metadata    MetadataStore
	activities  ActivityStore
	categorizer Categorizer
	table       *rules.Table
	bus         Publisher
	metrics     Metrics
	logger      *zap.Logger
}

// NewCategorizationStage wires the categorization stage dependencies.
func NewCategorizationStage(
	submissions SubmissionStore,
	results OcrResultStore,
	metadata MetadataStore,
	activities ActivityStore,
	categorizer Categorizer,
	table *rules.Table,
	bus Publisher,
	metrics Metrics,
	logger *zap.Logger,
) *CategorizationStage {
	return &CategorizationStage{
		submissions: submissions,
		results:     results,
		metadata:    metadata,
		activities:  activities,
		categorizer: categorizer,
		table:       table,
		bus:         bus,
		metrics:     orNopMetrics(metrics),
		logger:      logger,
	}
}

// Handle processes one metadata-extracted event.
func (s *CategorizationStage) Handle(ctx context.Context, msg events.Message) error {
	var event MetadataEvent
	if err := events.DecodePayload(msg.Values, &event); err != nil {
		s.logger.Warn("dropping malformed metadata event", zap.String("message_id", msg.ID), zap.Error(err))
		return nil
	}
	log := s.logger.With(zap.String("submission_id", event.SubmissionID), zap.String("stage", "categorization"))

	sub, err := s.submissions.FindByID(ctx, event.SubmissionID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			log.Warn("metadata event for unknown submission, dropping")
			return nil
		}
		return fmt.Errorf("load submission: %w", err)
	}

	if err := s.submissions.Transition(ctx, sub.ID, models.StatusMetadataExtracted, models.StatusCategorizing); err != nil {
		if errors.Is(err, repository.ErrStaleTransition) {
			return s.resume(ctx, sub.ID, log)
		}
		return fmt.Errorf("start categorization: %w", err)
	}
	return s.process(ctx, sub, log)
}

// process runs the stage work for a submission already in categorizing.
func (s *CategorizationStage) process(ctx context.Context, sub *models.Submission, log *zap.Logger) error {
	ocrResult, err := s.results.FindBySubmission(ctx, sub.ID)
	if err != nil {
		return fmt.Errorf("load ocr result: %w", err)
	}
	meta, err := s.metadata.FindBySubmission(ctx, sub.ID)
	if err != nil {
		return fmt.Errorf("load metadata: %w", err)
	}

	fields := provider.CertificateFields{
		ParticipantName: meta.ParticipantName,
		EventName:       meta.EventName,
		Location:        meta.Location,
		EventDate:       meta.EventDate,
		Hours:           meta.OriginalHours,
	}

	started := time.Now()
	proposal, err := s.categorizer.Categorize(ctx, ocrResult.RawText, fields, Catalog(s.table))
	s.metrics.ObserveProvider("llm_categorize", time.Since(started))
	if err != nil {
		log.Error("categorization failed", zap.Error(err))
		return s.fail(ctx, sub.ID, appErrors.ErrProvider.Code, err.Error())
	}

	cat, ok := s.table.Resolve(proposal.Category)
	if !ok {
		log.Warn("model proposed unknown category", zap.String("category", proposal.Category))
		return s.fail(ctx, sub.ID, appErrors.ErrCategoryNotFound.Code,
			fmt.Sprintf("no category matches %q", proposal.Category))
	}

	approved, err := s.activities.ApprovedHoursInCategory(ctx, sub.StudentID, cat.ID)
	if err != nil {
		return fmt.Errorf("sum approved hours: %w", err)
	}
	hours := rules.Award(cat, rules.QuantityFor(cat, meta.NumericHours), approved)

	activity := &models.ExtractedActivity{
		SubmissionID:    sub.ID,
		StudentID:       sub.StudentID,
		ParticipantName: meta.ParticipantName,
		EventName:       meta.EventName,
		Location:        meta.Location,
		EventDate:       meta.EventDate,
		OriginalHours:   meta.OriginalHours,
		NumericHours:    meta.NumericHours,
		CategoryID:      cat.ID,
		CalculatedHours: hours,
		Reasoning:       proposal.Reasoning,
		ReviewStatus:    models.ReviewPending,
	}
	if err := s.activities.Create(ctx, activity); err != nil && !errors.Is(err, repository.ErrDuplicate) {
		return fmt.Errorf("store extracted activity: %w", err)
	}

	if err := s.submissions.Transition(ctx, sub.ID, models.StatusCategorizing, models.StatusCategorized); err != nil {
		if !errors.Is(err, repository.ErrStaleTransition) {
			return fmt.Errorf("complete categorization: %w", err)
		}
	}
	if err := s.submissions.Transition(ctx, sub.ID, models.StatusCategorized, models.StatusPendingReview); err != nil {
		if !errors.Is(err, repository.ErrStaleTransition) {
			return fmt.Errorf("park for review: %w", err)
		}
	}

	s.metrics.ObserveStage("categorization", OutcomeOK)
	log.Info("submission categorized",
		zap.String("category", cat.Name),
		zap.Int("calculated_hours", hours))
	return nil
}

// resume handles redelivery after a stale guard. Still categorizing means a
// worker died mid-stage and the work restarts; categorized means only the
// final park-for-review transition was lost and is retried.
func (s *CategorizationStage) resume(ctx context.Context, submissionID string, log *zap.Logger) error {
	sub, err := s.submissions.FindByID(ctx, submissionID)
	if err != nil {
		return fmt.Errorf("load submission for resume: %w", err)
	}
	switch sub.Status {
	case models.StatusCategorizing:
		log.Info("resuming interrupted categorization")
		return s.process(ctx, sub, log)
	case models.StatusCategorized:
		if err := s.submissions.Transition(ctx, sub.ID, models.StatusCategorized, models.StatusPendingReview); err != nil {
			if !errors.Is(err, repository.ErrStaleTransition) {
				return fmt.Errorf("park for review: %w", err)
			}
		}
		return nil
	default:
		s.metrics.ObserveStage("categorization", OutcomeSkipped)
		log.Debug("redelivered metadata event, submission already past categorization", zap.String("status", string(sub.Status)))
		return nil
	}
}

func (s *CategorizationStage) fail(ctx context.Context, submissionID, code, message string) error {
	s.metrics.ObserveStage("categorization", OutcomeFailed)
	if err := s.submissions.MarkFailed(ctx, submissionID, code, message); err != nil {
		if errors.Is(err, repository.ErrStaleTransition) {
			return nil
		}
		return fmt.Errorf("mark submission failed: %w", err)
	}
	return nil
}

// Catalog renders the rule table for the categorization prompt.
func Catalog(table *rules.Table) string {
	var b strings.Builder
	for _, cat := range table.All() {
		fmt.Fprintf(&b, "- %s: %s (%s, máximo %d horas)\n",
			cat.Name, cat.Description, describeFormula(cat), cat.MaxTotalHours)
	}
	return b.String()
}

func describeFormula(cat models.ActivityCategory) string {
	switch cat.CalculationType {
	case models.CalcFixedPerSemester:
		return fmt.Sprintf("%d horas por semestre", cat.OutputHours)
	case models.CalcFixedPerActivity:
		return fmt.Sprintf("%d horas por atividade", cat.OutputHours)
	case models.CalcRatioHours:
		return fmt.Sprintf("%d horas a cada %d horas de evento", cat.OutputHours, cat.InputQuantity)
	case models.CalcRatioDays:
		return fmt.Sprintf("%d horas a cada %d dias", cat.OutputHours, cat.InputQuantity)
	case models.CalcRatioPages:
		return fmt.Sprintf("%d horas a cada %d páginas", cat.OutputHours, cat.InputQuantity)
	default:
		return string(cat.CalculationType)
	}
}

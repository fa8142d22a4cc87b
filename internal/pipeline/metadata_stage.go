package pipeline

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/certhours/cert-hours-api/internal/models"
	"github.com/certhours/cert-hours-api/internal/repository"
	appErrors "github.com/certhours/cert-hours-api/pkg/errors"
	"github.com/certhours/cert-hours-api/pkg/events"
)

// MetadataStage consumes certificate.ocr: it asks the language model for the
// structured certificate fields and stores whatever it could read.
type MetadataStage struct {
	submissions SubmissionStore
	results     OcrResultStore
	metadata    MetadataStore
	extractor   FieldExtractor
	bus         Publisher
	metrics     Metrics
	logger      *zap.Logger
}

// NewMetadataStage wires the metadata stage dependencies.
func NewMetadataStage(
	submissions SubmissionStore,
	results OcrResultStore,
	metadata MetadataStore,
	extractor FieldExtractor,
	bus Publisher,
	metrics Metrics,
	logger *zap.Logger,
) *MetadataStage {
	return &MetadataStage{
		submissions: submissions,
		results:     results,
		metadata:    metadata,
		extractor:   extractor,
		bus:         bus,
		metrics:     orNopMetrics(metrics),
		logger:      logger,
	}
}

// Handle processes one OCR-completed event.
func (s *MetadataStage) Handle(ctx context.Context, msg events.Message) error {
	var event OCREvent
	if err := events.DecodePayload(msg.Values, &event); err != nil {
		s.logger.Warn("dropping malformed ocr event", zap.String("message_id", msg.ID), zap.Error(err))
		return nil
	}
	log := s.logger.With(zap.String("submission_id", event.SubmissionID), zap.String("stage", "metadata"))

	sub, err := s.submissions.FindByID(ctx, event.SubmissionID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			log.Warn("ocr event for unknown submission, dropping")
			return nil
		}
		return fmt.Errorf("load submission: %w", err)
	}

	if err := s.submissions.Transition(ctx, sub.ID, models.StatusOcrCompleted, models.StatusMetadataExtracting); err != nil {
		if errors.Is(err, repository.ErrStaleTransition) {
			return s.resume(ctx, sub.ID, log)
		}
		return fmt.Errorf("start metadata extraction: %w", err)
	}
	return s.process(ctx, sub, log)
}

// process runs the stage work for a submission already in metadata_extracting.
func (s *MetadataStage) process(ctx context.Context, sub *models.Submission, log *zap.Logger) error {
	ocrResult, err := s.results.FindBySubmission(ctx, sub.ID)
	if err != nil {
		return fmt.Errorf("load ocr result: %w", err)
	}

	started := time.Now()
	fields, err := s.extractor.ExtractFields(ctx, ocrResult.RawText)
	elapsed := time.Since(started)
	s.metrics.ObserveProvider("llm_extract", elapsed)
	if err != nil {
		log.Error("field extraction failed", zap.Error(err))
		return s.fail(ctx, sub.ID, appErrors.ErrProvider.Code, err.Error())
	}

	record := &models.ExtractedMetadata{
		SubmissionID:     sub.ID,
		ParticipantName:  fields.ParticipantName,
		EventName:        fields.EventName,
		Location:         fields.Location,
		EventDate:        fields.EventDate,
		OriginalHours:    fields.Hours,
		NumericHours:     parseNumericHours(fields.Hours),
		ExtractionMethod: "llm",
		ProcessingTimeMs: int(elapsed.Milliseconds()),
	}
	if err := s.metadata.Create(ctx, record); err != nil {
		if !errors.Is(err, repository.ErrDuplicate) {
			return fmt.Errorf("store metadata: %w", err)
		}
		existing, findErr := s.metadata.FindBySubmission(ctx, sub.ID)
		if findErr != nil {
			return fmt.Errorf("load existing metadata: %w", findErr)
		}
		record = existing
	}

	if err := s.submissions.Transition(ctx, sub.ID, models.StatusMetadataExtracting, models.StatusMetadataExtracted); err != nil {
		if errors.Is(err, repository.ErrStaleTransition) {
			return s.resume(ctx, sub.ID, log)
		}
		return fmt.Errorf("complete metadata extraction: %w", err)
	}

	if err := s.bus.Publish(ctx, TopicMetadata, MetadataEvent{SubmissionID: sub.ID, MetadataID: record.ID}); err != nil {
		return fmt.Errorf("publish metadata event: %w", err)
	}
	s.metrics.ObserveStage("metadata", OutcomeOK)
	log.Info("metadata extracted",
		zap.Bool("has_event_name", record.EventName != nil),
		zap.Bool("has_numeric_hours", record.NumericHours != nil))
	return nil
}

// resume handles redelivery after a stale guard. Still extracting means a
// worker died mid-stage and the work restarts; already extracted means the
// downstream event may have been lost before the ack and is published again.
func (s *MetadataStage) resume(ctx context.Context, submissionID string, log *zap.Logger) error {
	sub, err := s.submissions.FindByID(ctx, submissionID)
	if err != nil {
		return fmt.Errorf("load submission for resume: %w", err)
	}
	switch sub.Status {
	case models.StatusMetadataExtracting:
		log.Info("resuming interrupted metadata extraction")
		return s.process(ctx, sub, log)
	case models.StatusMetadataExtracted:
		record, err := s.metadata.FindBySubmission(ctx, submissionID)
		if err != nil {
			return fmt.Errorf("load metadata for resume: %w", err)
		}
		if err := s.bus.Publish(ctx, TopicMetadata, MetadataEvent{SubmissionID: submissionID, MetadataID: record.ID}); err != nil {
			return fmt.Errorf("republish metadata event: %w", err)
		}
		return nil
	default:
		s.metrics.ObserveStage("metadata", OutcomeSkipped)
		log.Debug("redelivered ocr event, submission already past metadata", zap.String("status", string(sub.Status)))
		return nil
	}
}

func (s *MetadataStage) fail(ctx context.Context, submissionID, code, message string) error {
	s.metrics.ObserveStage("metadata", OutcomeFailed)
	if err := s.submissions.MarkFailed(ctx, submissionID, code, message); err != nil {
		if errors.Is(err, repository.ErrStaleTransition) {
			return nil
		}
		return fmt.Errorf("mark submission failed: %w", err)
	}
	return nil
}

// parseNumericHours pulls the first integer out of a free-form workload
// string such as "40 horas" or "Carga horária: 20h". Unparseable input
// yields nil, which is stored as-is rather than failing the stage.
func parseNumericHours(raw *string) *int {
	if raw == nil {
		return nil
	}
	var digits strings.Builder
	for _, r := range *raw {
		if r >= '0' && r <= '9' {
			digits.WriteRune(r)
			continue
		}
		if digits.Len() > 0 {
			break
		}
	}
	if digits.Len() == 0 {
		return nil
	}
	value, err := strconv.Atoi(digits.String())
	if err != nil {
		return nil
	}
	return &value
}

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
	"github.com/certhours/cert-hours-api/internal/repository"
	appErrors "github.com/certhours/cert-hours-api/pkg/errors"
	"github.com/certhours/cert-hours-api/pkg/events"
)

// OCRStage consumes certificate.ingest: it runs text recognition over the
// stored file and hands the result to the metadata stage.
type OCRStage struct {
	submissions SubmissionStore
	results     OcrResultStore
	files       FileStore
	recognizer  TextRecognizer
	bus         Publisher
	metrics     Metrics
	logger      *zap.Logger
}

// NewOCRStage wires the OCR stage dependencies.
func NewOCRStage(
	submissions SubmissionStore,
	results OcrResultStore,
	files FileStore,
	recognizer TextRecognizer,
	bus Publisher,
	metrics Metrics,
	logger *zap.Logger,
) *OCRStage {
	return &OCRStage{
		submissions: submissions,
		results:     results,
		files:       files,
		recognizer:  recognizer,
		bus:         bus,
		metrics:     orNopMetrics(metrics),
		logger:      logger,
	}
}

// Handle processes one ingest event. Redelivered events for submissions that
// already moved on are acknowledged without side effects.
func (s *OCRStage) Handle(ctx context.Context, msg events.Message) error {
	var event IngestEvent
	if err := events.DecodePayload(msg.Values, &event); err != nil {
		s.logger.Warn("dropping malformed ingest event", zap.String("message_id", msg.ID), zap.Error(err))
		return nil
	}
	log := s.logger.With(zap.String("submission_id", event.SubmissionID), zap.String("stage", "ocr"))

	sub, err := s.submissions.FindByID(ctx, event.SubmissionID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			log.Warn("ingest event for unknown submission, dropping")
			return nil
		}
		return fmt.Errorf("load submission: %w", err)
	}

	if err := s.submissions.Transition(ctx, sub.ID, models.StatusQueued, models.StatusOcrProcessing); err != nil {
		if errors.Is(err, repository.ErrStaleTransition) {
			return s.resume(ctx, sub.ID, log)
		}
		return fmt.Errorf("start ocr: %w", err)
	}
	return s.process(ctx, sub, log)
}

// process runs the stage work for a submission already in ocr_processing.
func (s *OCRStage) process(ctx context.Context, sub *models.Submission, log *zap.Logger) error {
	content, err := s.files.Get(sub.StorageKey)
	if err != nil {
		log.Error("stored file unreadable", zap.Error(err))
		return s.fail(ctx, sub.ID, appErrors.ErrOCRFailure.Code, fmt.Sprintf("read stored file: %v", err))
	}

	started := time.Now()
	result, err := s.recognizer.Recognize(ctx, sub.OriginalFilename, content)
	s.metrics.ObserveProvider("ocr", time.Since(started))
	if err != nil {
		log.Error("text recognition failed", zap.Error(err))
		return s.fail(ctx, sub.ID, appErrors.ErrOCRFailure.Code, err.Error())
	}
	if strings.TrimSpace(result.Text) == "" {
		log.Warn("text recognition produced no text")
		return s.fail(ctx, sub.ID, appErrors.ErrOCRFailure.Code, "no text could be extracted from the document")
	}

	record := &models.OcrResult{
		SubmissionID:     sub.ID,
		RawText:          result.Text,
		Confidence:       result.Confidence,
		ProcessingTimeMs: result.ProcessingTimeMs,
	}
	if err := s.results.Create(ctx, record); err != nil {
		if !errors.Is(err, repository.ErrDuplicate) {
			return fmt.Errorf("store ocr result: %w", err)
		}
		existing, findErr := s.results.FindBySubmission(ctx, sub.ID)
		if findErr != nil {
			return fmt.Errorf("load existing ocr result: %w", findErr)
		}
		record = existing
	}

	if err := s.submissions.Transition(ctx, sub.ID, models.StatusOcrProcessing, models.StatusOcrCompleted); err != nil {
		if errors.Is(err, repository.ErrStaleTransition) {
			return s.resume(ctx, sub.ID, log)
		}
		return fmt.Errorf("complete ocr: %w", err)
	}

	if err := s.bus.Publish(ctx, TopicOCR, OCREvent{SubmissionID: sub.ID, OCRResultID: record.ID}); err != nil {
		return fmt.Errorf("publish ocr event: %w", err)
	}
	s.metrics.ObserveStage("ocr", OutcomeOK)
	log.Info("ocr completed", zap.Int("chars", len(record.RawText)))
	return nil
}

// resume handles redelivery after a stale guard. A submission still in
// ocr_processing means a worker died mid-stage, so the reclaimed delivery
// picks the work back up. At ocr_completed the downstream event may have been
// lost before the ack, so it is published again; the metadata stage's own
// guard makes that safe. Anything else already moved on.
func (s *OCRStage) resume(ctx context.Context, submissionID string, log *zap.Logger) error {
	sub, err := s.submissions.FindByID(ctx, submissionID)
	if err != nil {
		return fmt.Errorf("load submission for resume: %w", err)
	}
	switch sub.Status {
	case models.StatusOcrProcessing:
		log.Info("resuming interrupted ocr")
		return s.process(ctx, sub, log)
	case models.StatusOcrCompleted:
		result, err := s.results.FindBySubmission(ctx, submissionID)
		if err != nil {
			return fmt.Errorf("load ocr result for resume: %w", err)
		}
		if err := s.bus.Publish(ctx, TopicOCR, OCREvent{SubmissionID: submissionID, OCRResultID: result.ID}); err != nil {
			return fmt.Errorf("republish ocr event: %w", err)
		}
		return nil
	default:
		s.metrics.ObserveStage("ocr", OutcomeSkipped)
		log.Debug("redelivered ingest event, submission already past ocr", zap.String("status", string(sub.Status)))
		return nil
	}
}

func (s *OCRStage) fail(ctx context.Context, submissionID, code, message string) error {
	s.metrics.ObserveStage("ocr", OutcomeFailed)
	if err := s.submissions.MarkFailed(ctx, submissionID, code, message); err != nil {
		if errors.Is(err, repository.ErrStaleTransition) {
			return nil
		}
		return fmt.Errorf("mark submission failed: %w", err)
	}
	return nil
}

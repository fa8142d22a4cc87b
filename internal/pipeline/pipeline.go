package pipeline

import (
	"context"
	"time"

	"github.com/certhours/cert-hours-api/internal/models"
	"github.com/certhours/cert-hours-api/internal/provider"
)

// Stage outcome labels for metrics.
const (
	OutcomeOK      = "ok"
	OutcomeSkipped = "skipped"
	OutcomeFailed  = "failed"
)

// SubmissionStore is the slice of the submission repository the stages need.
type SubmissionStore interface {
	FindByID(ctx context.Context, id string) (*models.Submission, error)
	Transition(ctx context.Context, id string, from, to models.SubmissionStatus) error
	MarkFailed(ctx context.Context, id, code, message string) error
}

// OcrResultStore persists and reads OCR artifacts.
type OcrResultStore interface {
	Create(ctx context.Context, result *models.OcrResult) error
	FindBySubmission(ctx context.Context, submissionID string) (*models.OcrResult, error)
}

// MetadataStore persists and reads extracted metadata.
type MetadataStore interface {
	Create(ctx context.Context, meta *models.ExtractedMetadata) error
	FindBySubmission(ctx context.Context, submissionID string) (*models.ExtractedMetadata, error)
}

// ActivityStore persists categorization results.
type ActivityStore interface {
	Create(ctx context.Context, activity *models.ExtractedActivity) error
	ApprovedHoursInCategory(ctx context.Context, studentID, categoryID string) (int, error)
}

// FileStore reads stored certificate files.
type FileStore interface {
	Get(key string) ([]byte, error)
}

// TextRecognizer is the OCR provider surface the OCR stage consumes.
type TextRecognizer interface {
	Recognize(ctx context.Context, filename string, content []byte) (*provider.OCRResult, error)
}

// FieldExtractor is the LLM surface the metadata stage consumes.
type FieldExtractor interface {
	ExtractFields(ctx context.Context, text string) (*provider.CertificateFields, error)
}

// Categorizer is the LLM surface the categorization stage consumes.
type Categorizer interface {
	Categorize(ctx context.Context, rawText string, fields provider.CertificateFields, catalog string) (*provider.Categorization, error)
}

// Publisher forwards events to the next stage's topic.
type Publisher interface {
	Publish(ctx context.Context, topic string, payload interface{}) error
}

// Metrics receives stage and provider observations. internal/service's
// MetricsService satisfies it.
type Metrics interface {
	ObserveStage(stage, outcome string)
	ObserveProvider(name string, duration time.Duration)
}

type nopMetrics struct{}

func (nopMetrics) ObserveStage(string, string)           {}
func (nopMetrics) ObserveProvider(string, time.Duration) {}

func orNopMetrics(m Metrics) Metrics {
	if m == nil {
		return nopMetrics{}
	}
	return m
}

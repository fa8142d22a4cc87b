package pipeline

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/certhours/cert-hours-api/internal/models"
	"github.com/certhours/cert-hours-api/internal/provider"
	"github.com/certhours/cert-hours-api/internal/repository"
	"github.com/certhours/cert-hours-api/pkg/events"
)

func eventMessage(t *testing.T, payload interface{}) events.Message {
	t.Helper()
	data, err := json.Marshal(payload)
	require.NoError(t, err)
	return events.Message{ID: "1-0", Values: map[string]interface{}{"payload": string(data)}}
}

type stubSubmissions struct {
	subs        map[string]*models.Submission
	transitions []string
	failedCode  string
	failedMsg   string
}

func (s *stubSubmissions) FindByID(ctx context.Context, id string) (*models.Submission, error) {
	if sub, ok := s.subs[id]; ok {
		copied := *sub
		return &copied, nil
	}
	return nil, sql.ErrNoRows
}

// Transition mimics the guarded UPDATE: it only succeeds when the stored
// status matches the expected predecessor.
func (s *stubSubmissions) Transition(ctx context.Context, id string, from, to models.SubmissionStatus) error {
	sub, ok := s.subs[id]
	if !ok || sub.Status != from {
		return repository.ErrStaleTransition
	}
	sub.Status = to
	s.transitions = append(s.transitions, fmt.Sprintf("%s->%s", from, to))
	return nil
}

func (s *stubSubmissions) MarkFailed(ctx context.Context, id, code, message string) error {
	sub, ok := s.subs[id]
	if !ok || sub.Status.Terminal() {
		return repository.ErrStaleTransition
	}
	sub.Status = models.StatusFailed
	s.failedCode = code
	s.failedMsg = message
	return nil
}

type stubOcrResults struct {
	bySubmission map[string]*models.OcrResult
	duplicate    bool
}

func (s *stubOcrResults) Create(ctx context.Context, result *models.OcrResult) error {
	if _, exists := s.bySubmission[result.SubmissionID]; exists {
		s.duplicate = true
		return repository.ErrDuplicate
	}
	if result.ID == "" {
		result.ID = "ocr-" + result.SubmissionID
	}
	if s.bySubmission == nil {
		s.bySubmission = make(map[string]*models.OcrResult)
	}
	s.bySubmission[result.SubmissionID] = result
	return nil
}

func (s *stubOcrResults) FindBySubmission(ctx context.Context, submissionID string) (*models.OcrResult, error) {
	if result, ok := s.bySubmission[submissionID]; ok {
		return result, nil
	}
	return nil, sql.ErrNoRows
}

type stubMetadata struct {
	bySubmission map[string]*models.ExtractedMetadata
}

func (s *stubMetadata) Create(ctx context.Context, meta *models.ExtractedMetadata) error {
	if _, exists := s.bySubmission[meta.SubmissionID]; exists {
		return repository.ErrDuplicate
	}
	if meta.ID == "" {
		meta.ID = "meta-" + meta.SubmissionID
	}
	if s.bySubmission == nil {
		s.bySubmission = make(map[string]*models.ExtractedMetadata)
	}
	s.bySubmission[meta.SubmissionID] = meta
	return nil
}

func (s *stubMetadata) FindBySubmission(ctx context.Context, submissionID string) (*models.ExtractedMetadata, error) {
	if meta, ok := s.bySubmission[submissionID]; ok {
		return meta, nil
	}
	return nil, sql.ErrNoRows
}

type stubActivities struct {
	bySubmission map[string]*models.ExtractedActivity
	approved     map[string]int
}

func (s *stubActivities) Create(ctx context.Context, activity *models.ExtractedActivity) error {
	if _, exists := s.bySubmission[activity.SubmissionID]; exists {
		return repository.ErrDuplicate
	}
	if activity.ID == "" {
		activity.ID = "act-" + activity.SubmissionID
	}
	if s.bySubmission == nil {
		s.bySubmission = make(map[string]*models.ExtractedActivity)
	}
	s.bySubmission[activity.SubmissionID] = activity
	return nil
}

func (s *stubActivities) ApprovedHoursInCategory(ctx context.Context, studentID, categoryID string) (int, error) {
	return s.approved[studentID+"/"+categoryID], nil
}

type stubFiles struct {
	blobs map[string][]byte
}

func (s *stubFiles) Get(key string) ([]byte, error) {
	if blob, ok := s.blobs[key]; ok {
		return blob, nil
	}
	return nil, fmt.Errorf("no blob for %s", key)
}

type stubRecognizer struct {
	result *provider.OCRResult
	err    error
	calls  int
}

func (s *stubRecognizer) Recognize(ctx context.Context, filename string, content []byte) (*provider.OCRResult, error) {
	s.calls++
	return s.result, s.err
}

type stubExtractor struct {
	fields *provider.CertificateFields
	err    error
}

func (s *stubExtractor) ExtractFields(ctx context.Context, text string) (*provider.CertificateFields, error) {
	return s.fields, s.err
}

type stubCategorizer struct {
	result *provider.Categorization
	err    error
	calls  int
}

func (s *stubCategorizer) Categorize(ctx context.Context, rawText string, fields provider.CertificateFields, catalog string) (*provider.Categorization, error) {
	s.calls++
	return s.result, s.err
}

type published struct {
	topic   string
	payload interface{}
}

type stubBus struct {
	events []published
	err    error
}

func (s *stubBus) Publish(ctx context.Context, topic string, payload interface{}) error {
	if s.err != nil {
		return s.err
	}
	s.events = append(s.events, published{topic: topic, payload: payload})
	return nil
}

func strPtr(s string) *string { return &s }
func intPtr(i int) *int       { return &i }

package pipeline

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/certhours/cert-hours-api/internal/models"
	"github.com/certhours/cert-hours-api/internal/provider"
)

func newOCRFixture() (*OCRStage, *stubSubmissions, *stubOcrResults, *stubBus, *stubRecognizer) {
	submissions := &stubSubmissions{subs: map[string]*models.Submission{
		"sub-1": {ID: "sub-1", StudentID: "student-1", StorageKey: "student-1/cert.pdf",
			OriginalFilename: "cert.pdf", Status: models.StatusQueued},
	}}
	results := &stubOcrResults{}
	files := &stubFiles{blobs: map[string][]byte{"student-1/cert.pdf": []byte("%PDF-1.4")}}
	recognizer := &stubRecognizer{result: &provider.OCRResult{Text: "CERTIFICAMOS QUE", Confidence: 0.9}}
	bus := &stubBus{}
	stage := NewOCRStage(submissions, results, files, recognizer, bus, nil, zap.NewNop())
	return stage, submissions, results, bus, recognizer
}

func TestOCRStageHappyPath(t *testing.T) {
	stage, submissions, results, bus, _ := newOCRFixture()

	err := stage.Handle(context.Background(), eventMessage(t, IngestEvent{SubmissionID: "sub-1"}))
	require.NoError(t, err)

	assert.Equal(t, models.StatusOcrCompleted, submissions.subs["sub-1"].Status)
	require.Contains(t, results.bySubmission, "sub-1")
	assert.Equal(t, "CERTIFICAMOS QUE", results.bySubmission["sub-1"].RawText)

	require.Len(t, bus.events, 1)
	assert.Equal(t, TopicOCR, bus.events[0].topic)
	assert.Equal(t, "sub-1", bus.events[0].payload.(OCREvent).SubmissionID)
}

func TestOCRStageRedeliveryIsNoOp(t *testing.T) {
	stage, submissions, _, bus, recognizer := newOCRFixture()
	submissions.subs["sub-1"].Status = models.StatusPendingReview

	err := stage.Handle(context.Background(), eventMessage(t, IngestEvent{SubmissionID: "sub-1"}))
	require.NoError(t, err)

	assert.Equal(t, models.StatusPendingReview, submissions.subs["sub-1"].Status)
	assert.Zero(t, recognizer.calls)
	assert.Empty(t, bus.events)
}

func TestOCRStageRedeliveryRepublishesWhenStuck(t *testing.T) {
	stage, submissions, results, bus, recognizer := newOCRFixture()
	submissions.subs["sub-1"].Status = models.StatusOcrCompleted
	require.NoError(t, results.Create(context.Background(), &models.OcrResult{SubmissionID: "sub-1", RawText: "texto"}))

	err := stage.Handle(context.Background(), eventMessage(t, IngestEvent{SubmissionID: "sub-1"}))
	require.NoError(t, err)

	assert.Zero(t, recognizer.calls)
	require.Len(t, bus.events, 1)
	assert.Equal(t, TopicOCR, bus.events[0].topic)
}

func TestOCRStageResumesAfterWorkerCrash(t *testing.T) {
	stage, submissions, results, bus, recognizer := newOCRFixture()
	// A worker died after claiming the submission but before finishing.
	submissions.subs["sub-1"].Status = models.StatusOcrProcessing

	err := stage.Handle(context.Background(), eventMessage(t, IngestEvent{SubmissionID: "sub-1"}))
	require.NoError(t, err)

	assert.Equal(t, 1, recognizer.calls)
	assert.Equal(t, models.StatusOcrCompleted, submissions.subs["sub-1"].Status)
	require.Contains(t, results.bySubmission, "sub-1")
	require.Len(t, bus.events, 1)
	assert.Equal(t, TopicOCR, bus.events[0].topic)
}

func TestOCRStageEmptyTextFailsTerminally(t *testing.T) {
	stage, submissions, _, bus, recognizer := newOCRFixture()
	recognizer.result = &provider.OCRResult{Text: "   ", Confidence: 0}

	err := stage.Handle(context.Background(), eventMessage(t, IngestEvent{SubmissionID: "sub-1"}))
	require.NoError(t, err)

	assert.Equal(t, models.StatusFailed, submissions.subs["sub-1"].Status)
	assert.Equal(t, "OCR_FAILURE", submissions.failedCode)
	assert.Empty(t, bus.events)
}

func TestOCRStageProviderErrorFailsTerminally(t *testing.T) {
	stage, submissions, _, _, recognizer := newOCRFixture()
	recognizer.result = nil
	recognizer.err = errors.New("engine unavailable")

	err := stage.Handle(context.Background(), eventMessage(t, IngestEvent{SubmissionID: "sub-1"}))
	require.NoError(t, err)

	assert.Equal(t, models.StatusFailed, submissions.subs["sub-1"].Status)
	assert.Equal(t, "OCR_FAILURE", submissions.failedCode)
}

func TestOCRStageUnknownSubmissionDropped(t *testing.T) {
	stage, _, _, bus, _ := newOCRFixture()

	err := stage.Handle(context.Background(), eventMessage(t, IngestEvent{SubmissionID: "ghost"}))
	require.NoError(t, err)
	assert.Empty(t, bus.events)
}

func TestOCRStagePublishFailureLeavesPending(t *testing.T) {
	stage, _, _, bus, _ := newOCRFixture()
	bus.err = errors.New("stream down")

	err := stage.Handle(context.Background(), eventMessage(t, IngestEvent{SubmissionID: "sub-1"}))
	require.Error(t, err)
}

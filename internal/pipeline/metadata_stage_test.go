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

func newMetadataFixture() (*MetadataStage, *stubSubmissions, *stubMetadata, *stubBus, *stubExtractor) {
	submissions := &stubSubmissions{subs: map[string]*models.Submission{
		"sub-1": {ID: "sub-1", StudentID: "student-1", Status: models.StatusOcrCompleted},
	}}
	results := &stubOcrResults{bySubmission: map[string]*models.OcrResult{
		"sub-1": {ID: "ocr-1", SubmissionID: "sub-1", RawText: "CERTIFICAMOS QUE MARIA SILVA participou"},
	}}
	metadata := &stubMetadata{}
	extractor := &stubExtractor{fields: &provider.CertificateFields{
		ParticipantName: strPtr("Maria Silva"),
		EventName:       strPtr("Semana Acadêmica"),
		Hours:           strPtr("20 horas"),
	}}
	bus := &stubBus{}
	stage := NewMetadataStage(submissions, results, metadata, extractor, bus, nil, zap.NewNop())
	return stage, submissions, metadata, bus, extractor
}

func TestMetadataStageHappyPath(t *testing.T) {
	stage, submissions, metadata, bus, _ := newMetadataFixture()

	err := stage.Handle(context.Background(), eventMessage(t, OCREvent{SubmissionID: "sub-1", OCRResultID: "ocr-1"}))
	require.NoError(t, err)

	assert.Equal(t, models.StatusMetadataExtracted, submissions.subs["sub-1"].Status)

	record := metadata.bySubmission["sub-1"]
	require.NotNil(t, record)
	assert.Equal(t, "Maria Silva", *record.ParticipantName)
	require.NotNil(t, record.NumericHours)
	assert.Equal(t, 20, *record.NumericHours)

	require.Len(t, bus.events, 1)
	assert.Equal(t, TopicMetadata, bus.events[0].topic)
}

func TestMetadataStageUnparseableHoursStoredAsNull(t *testing.T) {
	stage, _, metadata, _, extractor := newMetadataFixture()
	extractor.fields.Hours = strPtr("carga horária integral")

	err := stage.Handle(context.Background(), eventMessage(t, OCREvent{SubmissionID: "sub-1"}))
	require.NoError(t, err)

	record := metadata.bySubmission["sub-1"]
	require.NotNil(t, record)
	assert.Nil(t, record.NumericHours)
	assert.Equal(t, "carga horária integral", *record.OriginalHours)
}

func TestMetadataStageProviderErrorFailsTerminally(t *testing.T) {
	stage, submissions, _, bus, extractor := newMetadataFixture()
	extractor.fields = nil
	extractor.err = errors.New("model server unreachable")

	err := stage.Handle(context.Background(), eventMessage(t, OCREvent{SubmissionID: "sub-1"}))
	require.NoError(t, err)

	assert.Equal(t, models.StatusFailed, submissions.subs["sub-1"].Status)
	assert.Equal(t, "PROVIDER_ERROR", submissions.failedCode)
	assert.Empty(t, bus.events)
}

func TestMetadataStageResumesAfterWorkerCrash(t *testing.T) {
	stage, submissions, metadata, bus, _ := newMetadataFixture()
	submissions.subs["sub-1"].Status = models.StatusMetadataExtracting

	err := stage.Handle(context.Background(), eventMessage(t, OCREvent{SubmissionID: "sub-1", OCRResultID: "ocr-1"}))
	require.NoError(t, err)

	assert.Equal(t, models.StatusMetadataExtracted, submissions.subs["sub-1"].Status)
	require.NotNil(t, metadata.bySubmission["sub-1"])
	require.Len(t, bus.events, 1)
	assert.Equal(t, TopicMetadata, bus.events[0].topic)
}

func TestMetadataStageRedeliveryIsNoOp(t *testing.T) {
	stage, submissions, _, bus, _ := newMetadataFixture()
	submissions.subs["sub-1"].Status = models.StatusPendingReview

	err := stage.Handle(context.Background(), eventMessage(t, OCREvent{SubmissionID: "sub-1"}))
	require.NoError(t, err)
	assert.Empty(t, bus.events)
	assert.Equal(t, models.StatusPendingReview, submissions.subs["sub-1"].Status)
}

func TestParseNumericHours(t *testing.T) {
	cases := []struct {
		name string
		in   *string
		want *int
	}{
		{"plain number", strPtr("40"), intPtr(40)},
		{"with unit", strPtr("20 horas"), intPtr(20)},
		{"with prefix", strPtr("Carga horária: 8h"), intPtr(8)},
		{"no digits", strPtr("integral"), nil},
		{"nil", nil, nil},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := parseNumericHours(tc.in)
			if tc.want == nil {
				assert.Nil(t, got)
				return
			}
			require.NotNil(t, got)
			assert.Equal(t, *tc.want, *got)
		})
	}
}

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
	"github.com/certhours/cert-hours-api/internal/rules"
)

func lectureCategory() models.ActivityCategory {
	return models.ActivityCategory{
		ID:              "cat-lectures",
		Name:            "Participação em Palestras",
		Description:     "Palestras, seminários e workshops",
		CalculationType: models.CalcRatioHours,
		InputQuantity:   2,
		OutputHours:     1,
		MaxTotalHours:   30,
	}
}

func newCategorizationFixture(table *rules.Table) (*CategorizationStage, *stubSubmissions, *stubActivities, *stubCategorizer) {
	submissions := &stubSubmissions{subs: map[string]*models.Submission{
		"sub-1": {ID: "sub-1", StudentID: "student-1", Status: models.StatusMetadataExtracted},
	}}
	results := &stubOcrResults{bySubmission: map[string]*models.OcrResult{
		"sub-1": {ID: "ocr-1", SubmissionID: "sub-1", RawText: "CERTIFICAMOS QUE"},
	}}
	metadata := &stubMetadata{bySubmission: map[string]*models.ExtractedMetadata{
		"sub-1": {ID: "meta-1", SubmissionID: "sub-1",
			EventName: strPtr("Semana Acadêmica"), OriginalHours: strPtr("20 horas"), NumericHours: intPtr(20)},
	}}
	activities := &stubActivities{}
	categorizer := &stubCategorizer{result: &provider.Categorization{
		Category:  "participação em palestras",
		Reasoning: "Certificado de palestra.",
	}}
	bus := &stubBus{}
	stage := NewCategorizationStage(submissions, results, metadata, activities, categorizer, table, bus, nil, zap.NewNop())
	return stage, submissions, activities, categorizer
}

func TestCategorizationStageHappyPath(t *testing.T) {
	table := rules.NewTable("v1", []models.ActivityCategory{lectureCategory()})
	stage, submissions, activities, _ := newCategorizationFixture(table)

	err := stage.Handle(context.Background(), eventMessage(t, MetadataEvent{SubmissionID: "sub-1", MetadataID: "meta-1"}))
	require.NoError(t, err)

	assert.Equal(t, models.StatusPendingReview, submissions.subs["sub-1"].Status)

	activity := activities.bySubmission["sub-1"]
	require.NotNil(t, activity)
	assert.Equal(t, "cat-lectures", activity.CategoryID)
	// floor(20/2) * 1 = 10, within the 30 hour cap
	assert.Equal(t, 10, activity.CalculatedHours)
	assert.Equal(t, models.ReviewPending, activity.ReviewStatus)
}

func TestCategorizationStageAppliesCap(t *testing.T) {
	table := rules.NewTable("v1", []models.ActivityCategory{lectureCategory()})
	stage, _, activities, _ := newCategorizationFixture(table)
	activities.approved = map[string]int{"student-1/cat-lectures": 27}

	err := stage.Handle(context.Background(), eventMessage(t, MetadataEvent{SubmissionID: "sub-1"}))
	require.NoError(t, err)

	// computed 10 but only 3 hours of headroom remain under the cap
	assert.Equal(t, 3, activities.bySubmission["sub-1"].CalculatedHours)
}

func TestCategorizationStageUnknownCategoryFails(t *testing.T) {
	table := rules.NewTable("v1", []models.ActivityCategory{lectureCategory()})
	stage, submissions, activities, categorizer := newCategorizationFixture(table)
	categorizer.result = &provider.Categorization{Category: "Categoria Inventada"}

	err := stage.Handle(context.Background(), eventMessage(t, MetadataEvent{SubmissionID: "sub-1"}))
	require.NoError(t, err)

	assert.Equal(t, models.StatusFailed, submissions.subs["sub-1"].Status)
	assert.Equal(t, "CATEGORY_NOT_FOUND", submissions.failedCode)
	assert.Empty(t, activities.bySubmission)
}

func TestCategorizationStageProviderErrorFails(t *testing.T) {
	table := rules.NewTable("v1", []models.ActivityCategory{lectureCategory()})
	stage, submissions, _, categorizer := newCategorizationFixture(table)
	categorizer.result = nil
	categorizer.err = errors.New("model server unreachable")

	err := stage.Handle(context.Background(), eventMessage(t, MetadataEvent{SubmissionID: "sub-1"}))
	require.NoError(t, err)

	assert.Equal(t, models.StatusFailed, submissions.subs["sub-1"].Status)
	assert.Equal(t, "PROVIDER_ERROR", submissions.failedCode)
}

func TestCategorizationStageResumesAfterWorkerCrash(t *testing.T) {
	table := rules.NewTable("v1", []models.ActivityCategory{lectureCategory()})
	stage, submissions, activities, _ := newCategorizationFixture(table)
	submissions.subs["sub-1"].Status = models.StatusCategorizing

	err := stage.Handle(context.Background(), eventMessage(t, MetadataEvent{SubmissionID: "sub-1", MetadataID: "meta-1"}))
	require.NoError(t, err)

	assert.Equal(t, models.StatusPendingReview, submissions.subs["sub-1"].Status)
	require.NotNil(t, activities.bySubmission["sub-1"])
}

func TestCategorizationStageFinishesInterruptedHandoff(t *testing.T) {
	table := rules.NewTable("v1", []models.ActivityCategory{lectureCategory()})
	stage, submissions, activities, categorizer := newCategorizationFixture(table)
	// The activity was stored but the worker died before the final transition.
	submissions.subs["sub-1"].Status = models.StatusCategorized
	activities.bySubmission = map[string]*models.ExtractedActivity{
		"sub-1": {ID: "act-1", SubmissionID: "sub-1", StudentID: "student-1", CategoryID: "cat-lectures", CalculatedHours: 10},
	}

	err := stage.Handle(context.Background(), eventMessage(t, MetadataEvent{SubmissionID: "sub-1"}))
	require.NoError(t, err)

	assert.Equal(t, models.StatusPendingReview, submissions.subs["sub-1"].Status)
	assert.Zero(t, categorizer.calls)
}

func TestCategorizationStageRedeliveryIsNoOp(t *testing.T) {
	table := rules.NewTable("v1", []models.ActivityCategory{lectureCategory()})
	stage, submissions, activities, _ := newCategorizationFixture(table)
	submissions.subs["sub-1"].Status = models.StatusPendingReview

	err := stage.Handle(context.Background(), eventMessage(t, MetadataEvent{SubmissionID: "sub-1"}))
	require.NoError(t, err)
	assert.Empty(t, activities.bySubmission)
}

func TestCatalogRendering(t *testing.T) {
	table := rules.NewTable("v1", []models.ActivityCategory{lectureCategory()})
	catalog := Catalog(table)
	assert.Contains(t, catalog, "Participação em Palestras")
	assert.Contains(t, catalog, "máximo 30 horas")
	assert.Contains(t, catalog, "1 horas a cada 2 horas de evento")
}

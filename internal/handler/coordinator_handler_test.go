package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/certhours/cert-hours-api/internal/models"
	"github.com/certhours/cert-hours-api/internal/service"
	appErrors "github.com/certhours/cert-hours-api/pkg/errors"
)

type reviewServiceMock struct {
	pendingResp  []models.SubmissionDetail
	pendingPage  *models.Pagination
	pendingErr   error
	detailsResp  *service.ReviewDetailView
	detailsErr   error
	decisionResp *models.ExtractedActivity
	decisionErr  error
}

func (m *reviewServiceMock) Pending(ctx context.Context, filter models.SubmissionFilter) ([]models.SubmissionDetail, *models.Pagination, error) {
	return m.pendingResp, m.pendingPage, m.pendingErr
}

func (m *reviewServiceMock) Details(ctx context.Context, submissionID string) (*service.ReviewDetailView, error) {
	return m.detailsResp, m.detailsErr
}

func (m *reviewServiceMock) Approve(ctx context.Context, submissionID string, req service.ApproveRequest) (*models.ExtractedActivity, error) {
	return m.decisionResp, m.decisionErr
}

func (m *reviewServiceMock) Reject(ctx context.Context, submissionID string, req service.RejectRequest) (*models.ExtractedActivity, error) {
	return m.decisionResp, m.decisionErr
}

func (m *reviewServiceMock) Override(ctx context.Context, submissionID string, req service.OverrideRequest) (*models.ExtractedActivity, error) {
	return m.decisionResp, m.decisionErr
}

type reviewRecorderMock struct {
	outcomes []string
}

func (m *reviewRecorderMock) ObserveReview(outcome string) {
	m.outcomes = append(m.outcomes, outcome)
}

func TestCoordinatorHandlerPending(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &reviewServiceMock{
		pendingResp: []models.SubmissionDetail{{Submission: models.Submission{ID: "sub-1"}}},
		pendingPage: &models.Pagination{Page: 1, PageSize: 20, TotalCount: 1},
	}
	handler := NewCoordinatorHandler(mockSvc, nil)

	c, w := newGinContext(http.MethodGet, "/coordinator/pending?page=1", nil, "")
	handler.Pending(c)
	require.Equal(t, http.StatusOK, w.Code)

	var envelope struct {
		Pagination *models.Pagination `json:"pagination"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	require.NotNil(t, envelope.Pagination)
	require.Equal(t, 1, envelope.Pagination.TotalCount)
}

func TestCoordinatorHandlerApprove(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &reviewServiceMock{
		decisionResp: &models.ExtractedActivity{ID: "act-1", SubmissionID: "sub-1"},
	}
	recorder := &reviewRecorderMock{}
	handler := NewCoordinatorHandler(mockSvc, recorder)

	payload, _ := json.Marshal(service.ApproveRequest{CoordinatorID: "coord-1"})
	c, w := newGinContext(http.MethodPost, "/coordinator/submissions/sub-1/approve", payload, "application/json")
	c.Params = gin.Params{{Key: "id", Value: "sub-1"}}

	handler.Approve(c)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, []string{"approved"}, recorder.outcomes)
}

func TestCoordinatorHandlerApproveAlreadyReviewed(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &reviewServiceMock{decisionErr: appErrors.ErrAlreadyReviewed}
	recorder := &reviewRecorderMock{}
	handler := NewCoordinatorHandler(mockSvc, recorder)

	payload, _ := json.Marshal(service.ApproveRequest{CoordinatorID: "coord-1"})
	c, w := newGinContext(http.MethodPost, "/coordinator/submissions/sub-1/approve", payload, "application/json")
	c.Params = gin.Params{{Key: "id", Value: "sub-1"}}

	handler.Approve(c)
	require.Equal(t, http.StatusConflict, w.Code)
	require.Empty(t, recorder.outcomes)
}

func TestCoordinatorHandlerRejectInvalidPayload(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewCoordinatorHandler(&reviewServiceMock{}, nil)

	c, w := newGinContext(http.MethodPost, "/coordinator/submissions/sub-1/reject", []byte("{"), "application/json")
	c.Params = gin.Params{{Key: "id", Value: "sub-1"}}

	handler.Reject(c)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCoordinatorHandlerOverride(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &reviewServiceMock{
		decisionResp: &models.ExtractedActivity{ID: "act-1", SubmissionID: "sub-1"},
	}
	recorder := &reviewRecorderMock{}
	handler := NewCoordinatorHandler(mockSvc, recorder)

	category := "cat-monitoring"
	payload, _ := json.Marshal(service.OverrideRequest{
		CoordinatorID: "coord-1",
		CategoryID:    &category,
		Rationale:     "certificate describes monitoring, not a lecture",
	})
	c, w := newGinContext(http.MethodPost, "/coordinator/submissions/sub-1/override", payload, "application/json")
	c.Params = gin.Params{{Key: "id", Value: "sub-1"}}

	handler.Override(c)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, []string{"overridden"}, recorder.outcomes)
}

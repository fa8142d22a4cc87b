package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/certhours/cert-hours-api/internal/models"
	"github.com/certhours/cert-hours-api/internal/service"
	appErrors "github.com/certhours/cert-hours-api/pkg/errors"
	"github.com/certhours/cert-hours-api/pkg/response"
)

type reviewer interface {
	Pending(ctx context.Context, filter models.SubmissionFilter) ([]models.SubmissionDetail, *models.Pagination, error)
	Details(ctx context.Context, submissionID string) (*service.ReviewDetailView, error)
	Approve(ctx context.Context, submissionID string, req service.ApproveRequest) (*models.ExtractedActivity, error)
	Reject(ctx context.Context, submissionID string, req service.RejectRequest) (*models.ExtractedActivity, error)
	Override(ctx context.Context, submissionID string, req service.OverrideRequest) (*models.ExtractedActivity, error)
}

type reviewRecorder interface {
	ObserveReview(outcome string)
}

// CoordinatorHandler exposes the human review queue.
type CoordinatorHandler struct {
	reviews reviewer
	metrics reviewRecorder
}

// NewCoordinatorHandler constructs the handler. metrics may be nil.
func NewCoordinatorHandler(reviews reviewer, metrics reviewRecorder) *CoordinatorHandler {
	return &CoordinatorHandler{reviews: reviews, metrics: metrics}
}

// Pending godoc
// @Summary Submissions awaiting review
// @Tags Coordinator
// @Produce json
// @Param page query int false "Page" default(1)
// @Param pageSize query int false "Page size" default(20)
// @Param enrollment query string false "Filter by enrollment number"
// @Success 200 {object} response.Envelope
// @Router /coordinator/pending [get]
func (h *CoordinatorHandler) Pending(c *gin.Context) {
	page, err := strconv.Atoi(c.DefaultQuery("page", "1"))
	if err != nil || page < 1 {
		page = 1
	}
	pageSize, err := strconv.Atoi(c.DefaultQuery("pageSize", "20"))
	if err != nil || pageSize < 1 {
		pageSize = 20
	}
	filter := models.SubmissionFilter{
		Enrollment: c.Query("enrollment"),
		Page:       page,
		PageSize:   pageSize,
	}
	items, pagination, err := h.reviews.Pending(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, pagination)
}

// Details godoc
// @Summary Full extraction detail for one submission
// @Tags Coordinator
// @Produce json
// @Param id path string true "Submission ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /coordinator/submissions/{id} [get]
func (h *CoordinatorHandler) Details(c *gin.Context) {
	view, err := h.reviews.Details(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, view, nil)
}

// Approve godoc
// @Summary Approve a pending submission
// @Tags Coordinator
// @Accept json
// @Produce json
// @Param id path string true "Submission ID"
// @Param payload body service.ApproveRequest true "Decision"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope "Already reviewed"
// @Router /coordinator/submissions/{id}/approve [post]
func (h *CoordinatorHandler) Approve(c *gin.Context) {
	var req service.ApproveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid approval payload"))
		return
	}
	activity, err := h.reviews.Approve(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	h.observe("approved")
	response.JSON(c, http.StatusOK, activity, nil)
}

// Reject godoc
// @Summary Reject a pending submission
// @Tags Coordinator
// @Accept json
// @Produce json
// @Param id path string true "Submission ID"
// @Param payload body service.RejectRequest true "Decision with reason"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope "Already reviewed"
// @Router /coordinator/submissions/{id}/reject [post]
func (h *CoordinatorHandler) Reject(c *gin.Context) {
	var req service.RejectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid rejection payload"))
		return
	}
	activity, err := h.reviews.Reject(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	h.observe("rejected")
	response.JSON(c, http.StatusOK, activity, nil)
}

// Override godoc
// @Summary Approve with a corrected category or hours
// @Tags Coordinator
// @Accept json
// @Produce json
// @Param id path string true "Submission ID"
// @Param payload body service.OverrideRequest true "Correction with rationale"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope "Already reviewed"
// @Router /coordinator/submissions/{id}/override [post]
func (h *CoordinatorHandler) Override(c *gin.Context) {
	var req service.OverrideRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid override payload"))
		return
	}
	activity, err := h.reviews.Override(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	h.observe("overridden")
	response.JSON(c, http.StatusOK, activity, nil)
}

func (h *CoordinatorHandler) observe(outcome string) {
	if h.metrics != nil {
		h.metrics.ObserveReview(outcome)
	}
}

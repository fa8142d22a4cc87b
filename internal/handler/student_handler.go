package handler

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/certhours/cert-hours-api/internal/models"
	"github.com/certhours/cert-hours-api/internal/service"
	appErrors "github.com/certhours/cert-hours-api/pkg/errors"
	"github.com/certhours/cert-hours-api/pkg/response"
)

type studentDirectory interface {
	Register(ctx context.Context, req service.RegisterStudentRequest) (*models.Student, error)
	GetByEnrollment(ctx context.Context, enrollment string) (*models.Student, error)
	UpdateProfile(ctx context.Context, enrollment string, req service.UpdateStudentRequest) (*models.Student, error)
}

type submissionLister interface {
	ListForStudent(ctx context.Context, enrollment string, status models.SubmissionStatus, limit int) ([]models.Submission, error)
}

type statementRenderer interface {
	RenderCSV(ctx context.Context, enrollment string) ([]byte, string, error)
	RenderPDF(ctx context.Context, enrollment string) ([]byte, string, error)
}

// StudentHandler manages the student registry endpoints.
type StudentHandler struct {
	students    studentDirectory
	submissions submissionLister
	statements  statementRenderer
}

// NewStudentHandler constructs the handler.
func NewStudentHandler(students studentDirectory, submissions submissionLister, statements statementRenderer) *StudentHandler {
	return &StudentHandler{students: students, submissions: submissions, statements: statements}
}

// Register godoc
// @Summary Register a student
// @Tags Students
// @Accept json
// @Produce json
// @Param payload body service.RegisterStudentRequest true "Student data"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope "Enrollment already registered"
// @Router /students [post]
func (h *StudentHandler) Register(c *gin.Context) {
	var req service.RegisterStudentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid student payload"))
		return
	}
	student, err := h.students.Register(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, student)
}

// Get godoc
// @Summary Student profile and approved-hours total
// @Tags Students
// @Produce json
// @Param enrollment path string true "Enrollment number"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /students/{enrollment} [get]
func (h *StudentHandler) Get(c *gin.Context) {
	student, err := h.students.GetByEnrollment(c.Request.Context(), c.Param("enrollment"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, student, nil)
}

// Update godoc
// @Summary Update a student's profile
// @Tags Students
// @Accept json
// @Produce json
// @Param enrollment path string true "Enrollment number"
// @Param payload body service.UpdateStudentRequest true "New profile data"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /students/{enrollment} [put]
func (h *StudentHandler) Update(c *gin.Context) {
	var req service.UpdateStudentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid student payload"))
		return
	}
	student, err := h.students.UpdateProfile(c.Request.Context(), c.Param("enrollment"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, student, nil)
}

// Submissions godoc
// @Summary List a student's submissions
// @Tags Students
// @Produce json
// @Param enrollment path string true "Enrollment number"
// @Param status query string false "Status filter"
// @Param limit query int false "Maximum rows" default(50)
// @Success 200 {object} response.Envelope
// @Router /students/{enrollment}/submissions [get]
func (h *StudentHandler) Submissions(c *gin.Context) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "50"))
	if err != nil || limit < 1 {
		limit = 50
	}
	status := models.SubmissionStatus(c.Query("status"))
	subs, err := h.submissions.ListForStudent(c.Request.Context(), c.Param("enrollment"), status, limit)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, subs, nil)
}

// StatementCSV godoc
// @Summary Approved-hours statement as CSV
// @Tags Students
// @Produce text/csv
// @Param enrollment path string true "Enrollment number"
// @Success 200 {file} binary
// @Failure 404 {object} response.Envelope
// @Router /students/{enrollment}/statement.csv [get]
func (h *StudentHandler) StatementCSV(c *gin.Context) {
	data, filename, err := h.statements.RenderCSV(c.Request.Context(), c.Param("enrollment"))
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK, "text/csv; charset=utf-8", data)
}

// StatementPDF godoc
// @Summary Approved-hours statement as PDF
// @Tags Students
// @Produce application/pdf
// @Param enrollment path string true "Enrollment number"
// @Success 200 {file} binary
// @Failure 404 {object} response.Envelope
// @Router /students/{enrollment}/statement.pdf [get]
func (h *StudentHandler) StatementPDF(c *gin.Context) {
	data, filename, err := h.statements.RenderPDF(c.Request.Context(), c.Param("enrollment"))
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK, "application/pdf", data)
}

package handler

import (
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"path"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/certhours/cert-hours-api/internal/models"
	"github.com/certhours/cert-hours-api/internal/service"
	appErrors "github.com/certhours/cert-hours-api/pkg/errors"
	"github.com/certhours/cert-hours-api/pkg/response"
)

type certificateIntake interface {
	Submit(ctx context.Context, req service.SubmitRequest) (*models.Submission, error)
	Status(ctx context.Context, id string) (*service.SubmissionStatusView, error)
}

type downloadTokenParser interface {
	Parse(token string) (submissionID, storageKey string, expiresAt time.Time, err error)
}

type fileReader interface {
	Get(key string) ([]byte, error)
}

// CertificateHandler manages certificate intake and retrieval endpoints.
type CertificateHandler struct {
	submissions certificateIntake
	signer      downloadTokenParser
	files       fileReader
}

// NewCertificateHandler constructs the handler.
func NewCertificateHandler(submissions certificateIntake, signer downloadTokenParser, files fileReader) *CertificateHandler {
	return &CertificateHandler{submissions: submissions, signer: signer, files: files}
}

// Upload godoc
// @Summary Submit a certificate for processing
// @Tags Certificates
// @Accept multipart/form-data
// @Produce json
// @Param enrollment_number formData string true "Student enrollment number"
// @Param file formData file true "Certificate file (PDF or image)"
// @Success 202 {object} response.Envelope
// @Failure 409 {object} response.Envelope "Duplicate submission"
// @Router /certificates [post]
func (h *CertificateHandler) Upload(c *gin.Context) {
	enrollment := c.PostForm("enrollment_number")
	if enrollment == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "enrollment_number is required"))
		return
	}
	fileHeader, err := c.FormFile("file")
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "file is required"))
		return
	}
	src, err := fileHeader.Open()
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to open file"))
		return
	}
	defer src.Close()

	content, err := io.ReadAll(src)
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to buffer file"))
		return
	}
	mimeType := fileHeader.Header.Get("Content-Type")
	if mimeType == "" {
		mimeType = mime.TypeByExtension(path.Ext(fileHeader.Filename))
	}

	sub, err := h.submissions.Submit(c.Request.Context(), service.SubmitRequest{
		EnrollmentNumber: enrollment,
		Filename:         fileHeader.Filename,
		MimeType:         mimeType,
		Content:          content,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Accepted(c, sub)
}

// Status godoc
// @Summary Submission processing status
// @Tags Certificates
// @Produce json
// @Param id path string true "Submission ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /certificates/{id} [get]
func (h *CertificateHandler) Status(c *gin.Context) {
	view, err := h.submissions.Status(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, view, nil)
}

// Download godoc
// @Summary Download the original certificate file
// @Tags Certificates
// @Produce application/octet-stream
// @Param token path string true "Signed download token"
// @Success 200 {file} binary
// @Failure 404 {object} response.Envelope
// @Router /files/{token} [get]
func (h *CertificateHandler) Download(c *gin.Context) {
	if h.signer == nil || h.files == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrInternal, "file downloads not configured"))
		return
	}
	_, storageKey, _, err := h.signer.Parse(c.Param("token"))
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrNotFound, "invalid or expired download link"))
		return
	}
	data, err := h.files.Get(storageKey)
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrNotFound, "file not found"))
		return
	}
	contentType := mime.TypeByExtension(path.Ext(storageKey))
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", path.Base(storageKey)))
	c.Data(http.StatusOK, contentType, data)
}

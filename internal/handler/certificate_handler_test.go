package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/certhours/cert-hours-api/internal/models"
	"github.com/certhours/cert-hours-api/internal/service"
	appErrors "github.com/certhours/cert-hours-api/pkg/errors"
)

type submissionServiceMock struct {
	submitReq  service.SubmitRequest
	submitResp *models.Submission
	submitErr  error
	statusResp *service.SubmissionStatusView
	statusErr  error
}

func (m *submissionServiceMock) Submit(ctx context.Context, req service.SubmitRequest) (*models.Submission, error) {
	m.submitReq = req
	return m.submitResp, m.submitErr
}

func (m *submissionServiceMock) Status(ctx context.Context, id string) (*service.SubmissionStatusView, error) {
	return m.statusResp, m.statusErr
}

type signerMock struct {
	storageKey string
	err        error
}

func (m *signerMock) Parse(token string) (string, string, time.Time, error) {
	if m.err != nil {
		return "", "", time.Time{}, m.err
	}
	return "sub-1", m.storageKey, time.Now().Add(time.Hour), nil
}

type fileStoreMock struct {
	data map[string][]byte
}

func (m *fileStoreMock) Get(key string) ([]byte, error) {
	data, ok := m.data[key]
	if !ok {
		return nil, appErrors.ErrNotFound
	}
	return data, nil
}

func newGinContext(method, path string, body []byte, contentType string) (*gin.Context, *httptest.ResponseRecorder) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(method, path, bytes.NewReader(body))
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	c.Request = req
	return c, w
}

func multipartUpload(t *testing.T, enrollment, filename string, content []byte) ([]byte, string) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	require.NoError(t, w.WriteField("enrollment_number", enrollment))
	part, err := w.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, w.Close())
	return buf.Bytes(), w.FormDataContentType()
}

func TestCertificateHandlerUpload(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &submissionServiceMock{
		submitResp: &models.Submission{ID: "sub-1", Status: models.StatusQueued},
	}
	handler := NewCertificateHandler(mockSvc, nil, nil)

	body, contentType := multipartUpload(t, "2021100500", "certificado.pdf", []byte("%PDF-1.4"))
	c, w := newGinContext(http.MethodPost, "/certificates", body, contentType)

	handler.Upload(c)
	require.Equal(t, http.StatusAccepted, w.Code)
	require.Equal(t, "2021100500", mockSvc.submitReq.EnrollmentNumber)
	require.Equal(t, "certificado.pdf", mockSvc.submitReq.Filename)
	require.Equal(t, []byte("%PDF-1.4"), mockSvc.submitReq.Content)
}

func TestCertificateHandlerUploadMissingFile(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewCertificateHandler(&submissionServiceMock{}, nil, nil)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.WriteField("enrollment_number", "2021100500"))
	require.NoError(t, mw.Close())
	c, w := newGinContext(http.MethodPost, "/certificates", buf.Bytes(), mw.FormDataContentType())

	handler.Upload(c)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCertificateHandlerUploadDuplicate(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &submissionServiceMock{
		submitErr: appErrors.Clone(appErrors.ErrDuplicateSubmission, "this file was already submitted as sub-0"),
	}
	handler := NewCertificateHandler(mockSvc, nil, nil)

	body, contentType := multipartUpload(t, "2021100500", "certificado.pdf", []byte("%PDF-1.4"))
	c, w := newGinContext(http.MethodPost, "/certificates", body, contentType)

	handler.Upload(c)
	require.Equal(t, http.StatusConflict, w.Code)

	var envelope struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	require.Equal(t, "DUPLICATE_SUBMISSION", envelope.Error.Code)
}

func TestCertificateHandlerStatus(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &submissionServiceMock{
		statusResp: &service.SubmissionStatusView{
			Submission: models.Submission{ID: "sub-1", Status: models.StatusPendingReview},
		},
	}
	handler := NewCertificateHandler(mockSvc, nil, nil)

	c, w := newGinContext(http.MethodGet, "/certificates/sub-1", nil, "")
	c.Params = gin.Params{{Key: "id", Value: "sub-1"}}

	handler.Status(c)
	require.Equal(t, http.StatusOK, w.Code)
}

func TestCertificateHandlerDownload(t *testing.T) {
	gin.SetMode(gin.TestMode)
	files := &fileStoreMock{data: map[string][]byte{"stu-1/cert.pdf": []byte("%PDF-1.4")}}
	handler := NewCertificateHandler(&submissionServiceMock{}, &signerMock{storageKey: "stu-1/cert.pdf"}, files)

	c, w := newGinContext(http.MethodGet, "/files/token", nil, "")
	c.Params = gin.Params{{Key: "token", Value: "token"}}

	handler.Download(c)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "application/pdf", w.Header().Get("Content-Type"))
	require.Contains(t, w.Header().Get("Content-Disposition"), "cert.pdf")
	require.Equal(t, []byte("%PDF-1.4"), w.Body.Bytes())
}

func TestCertificateHandlerDownloadBadToken(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewCertificateHandler(&submissionServiceMock{}, &signerMock{err: appErrors.ErrNotFound}, &fileStoreMock{})

	c, w := newGinContext(http.MethodGet, "/files/bad", nil, "")
	c.Params = gin.Params{{Key: "token", Value: "bad"}}

	handler.Download(c)
	require.Equal(t, http.StatusNotFound, w.Code)
}

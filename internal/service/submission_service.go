package service

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"path"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/certhours/cert-hours-api/internal/models"
	"github.com/certhours/cert-hours-api/internal/pipeline"
	"github.com/certhours/cert-hours-api/internal/repository"
	"github.com/certhours/cert-hours-api/pkg/config"
	appErrors "github.com/certhours/cert-hours-api/pkg/errors"
)

type submissionRepository interface {
	Create(ctx context.Context, sub *models.Submission) error
	FindByID(ctx context.Context, id string) (*models.Submission, error)
	FindByChecksum(ctx context.Context, studentID, checksum string) (*models.Submission, error)
	ListByStudent(ctx context.Context, studentID string, status models.SubmissionStatus, limit int) ([]models.Submission, error)
	Transition(ctx context.Context, id string, from, to models.SubmissionStatus) error
}

type studentReader interface {
	FindByID(ctx context.Context, id string) (*models.Student, error)
	FindByEnrollment(ctx context.Context, enrollment string) (*models.Student, error)
}

type activityReader interface {
	FindBySubmission(ctx context.Context, submissionID string) (*models.ExtractedActivity, error)
}

type blobStore interface {
	Put(key string, data []byte) (string, error)
	Delete(key string) error
}

type eventPublisher interface {
	Publish(ctx context.Context, topic string, payload interface{}) error
}

type urlSigner interface {
	Generate(submissionID, storageKey string) (string, time.Time, error)
}

// SubmitRequest is the intake payload assembled by the upload handler.
type SubmitRequest struct {
	EnrollmentNumber string `validate:"required"`
	Filename         string `validate:"required"`
	MimeType         string `validate:"required"`
	Content          []byte `validate:"required"`
}

// SubmissionStatusView is the student-facing status of one submission.
type SubmissionStatusView struct {
	Submission  models.Submission         `json:"submission"`
	Activity    *models.ExtractedActivity `json:"activity,omitempty"`
	DownloadURL string                    `json:"download_url,omitempty"`
	ExpiresAt   *time.Time                `json:"download_url_expires_at,omitempty"`
}

// SubmissionService handles certificate intake: dedup, blob storage and the
// hand-off into the async pipeline.
type SubmissionService struct {
	repo      submissionRepository
	students  studentReader
	activity  activityReader
	blobs     blobStore
	bus       eventPublisher
	signer    urlSigner
	storage   config.StorageConfig
	validator *validator.Validate
	logger    *zap.Logger
}

// NewSubmissionService constructs SubmissionService.
func NewSubmissionService(
	repo submissionRepository,
	students studentReader,
	activity activityReader,
	blobs blobStore,
	bus eventPublisher,
	signer urlSigner,
	storage config.StorageConfig,
	validate *validator.Validate,
	logger *zap.Logger,
) *SubmissionService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SubmissionService{
		repo:      repo,
		students:  students,
		activity:  activity,
		blobs:     blobs,
		bus:       bus,
		signer:    signer,
		storage:   storage,
		validator: validate,
		logger:    logger,
	}
}

// Submit runs the intake sequence: validate, checksum, store blob, insert the
// row (the unique index arbitrates duplicates), queue and announce. The same
// bytes submitted again by the same student surface as DuplicateSubmission
// with the original submission's id; the same bytes from another student, or
// after a failed submission, are a fresh submission.
func (s *SubmissionService) Submit(ctx context.Context, req SubmitRequest) (*models.Submission, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid submission payload")
	}
	if s.storage.MaxFileSizeBytes > 0 && int64(len(req.Content)) > s.storage.MaxFileSizeBytes {
		return nil, appErrors.Clone(appErrors.ErrValidation,
			fmt.Sprintf("file exceeds the %d byte limit", s.storage.MaxFileSizeBytes))
	}
	if !s.mimeAllowed(req.MimeType) {
		return nil, appErrors.Clone(appErrors.ErrValidation,
			fmt.Sprintf("unsupported file type %s", req.MimeType))
	}

	student, err := s.students.FindByEnrollment(ctx, req.EnrollmentNumber)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}

	sum := sha256.Sum256(req.Content)
	checksum := hex.EncodeToString(sum[:])

	// The blob goes down first; if the insert below loses, the orphaned
	// file is removed again.
	storageKey := path.Join(student.ID, uuid.NewString()+path.Ext(req.Filename))
	if _, err := s.blobs.Put(storageKey, req.Content); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store file")
	}

	sub := &models.Submission{
		StudentID:        student.ID,
		OriginalFilename: req.Filename,
		StorageKey:       storageKey,
		Checksum:         checksum,
		FileSize:         int64(len(req.Content)),
		MimeType:         req.MimeType,
	}
	if err := s.repo.Create(ctx, sub); err != nil {
		if delErr := s.blobs.Delete(storageKey); delErr != nil {
			s.logger.Warn("failed to remove orphaned file",
				zap.String("storage_key", storageKey), zap.Error(delErr))
		}
		if errors.Is(err, repository.ErrDuplicate) {
			// The arbiter ignores failed rows, so a conflict always means a
			// live submission of the same bytes exists.
			existing, findErr := s.repo.FindByChecksum(ctx, student.ID, checksum)
			if findErr != nil {
				return nil, appErrors.Clone(appErrors.ErrDuplicateSubmission, "")
			}
			return nil, appErrors.Clone(appErrors.ErrDuplicateSubmission,
				fmt.Sprintf("this file was already submitted as %s", existing.ID))
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create submission")
	}

	if err := s.repo.Transition(ctx, sub.ID, models.StatusUploaded, models.StatusQueued); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to queue submission")
	}
	sub.Status = models.StatusQueued

	if err := s.bus.Publish(ctx, pipeline.TopicIngest, pipeline.IngestEvent{SubmissionID: sub.ID}); err != nil {
		// The row stays queued; redelivery tooling can replay it. The
		// student still gets their submission id.
		s.logger.Error("failed to announce submission", zap.String("submission_id", sub.ID), zap.Error(err))
	}

	s.logger.Info("submission accepted",
		zap.String("submission_id", sub.ID),
		zap.String("student_id", student.ID),
		zap.Int64("size", sub.FileSize))
	return sub, nil
}

// Status returns the pipeline status for one submission, with the extracted
// activity once it exists and a signed download link for the original file.
func (s *SubmissionService) Status(ctx context.Context, id string) (*SubmissionStatusView, error) {
	sub, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "submission not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load submission")
	}

	view := &SubmissionStatusView{Submission: *sub}
	if activity, err := s.activity.FindBySubmission(ctx, id); err == nil {
		view.Activity = activity
	} else if !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load activity")
	}

	if s.signer != nil {
		if url, expires, err := s.signer.Generate(sub.ID, sub.StorageKey); err == nil {
			view.DownloadURL = url
			view.ExpiresAt = &expires
		}
	}
	return view, nil
}

// ListForStudent returns a student's submissions.
func (s *SubmissionService) ListForStudent(ctx context.Context, enrollment string, status models.SubmissionStatus, limit int) ([]models.Submission, error) {
	if status != "" && !status.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown status %s", status))
	}
	student, err := s.students.FindByEnrollment(ctx, enrollment)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	subs, err := s.repo.ListByStudent(ctx, student.ID, status, limit)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list submissions")
	}
	return subs, nil
}

func (s *SubmissionService) mimeAllowed(mime string) bool {
	if len(s.storage.AllowedMIMEs) == 0 {
		return true
	}
	for _, allowed := range s.storage.AllowedMIMEs {
		if allowed == mime {
			return true
		}
	}
	return false
}

package models

// SubmissionStatus is the closed lifecycle enumeration for a certificate
// submission. Every stage transition is validated against CanTransition; a
// status outside this set never reaches the database.
type SubmissionStatus string

const (
	StatusUploaded           SubmissionStatus = "uploaded"
	StatusQueued             SubmissionStatus = "queued"
	StatusOcrProcessing      SubmissionStatus = "ocr_processing"
	StatusOcrCompleted       SubmissionStatus = "ocr_completed"
	StatusMetadataExtracting SubmissionStatus = "metadata_extracting"
	StatusMetadataExtracted  SubmissionStatus = "metadata_extracted"
	StatusCategorizing       SubmissionStatus = "categorizing"
	StatusCategorized        SubmissionStatus = "categorized"
	StatusPendingReview      SubmissionStatus = "pending_review"
	StatusApproved           SubmissionStatus = "approved"
	StatusRejected           SubmissionStatus = "rejected"
	StatusFailed             SubmissionStatus = "failed"
)

// AllStatuses lists every valid lifecycle value in pipeline order.
var AllStatuses = []SubmissionStatus{
	StatusUploaded,
	StatusQueued,
	StatusOcrProcessing,
	StatusOcrCompleted,
	StatusMetadataExtracting,
	StatusMetadataExtracted,
	StatusCategorizing,
	StatusCategorized,
	StatusPendingReview,
	StatusApproved,
	StatusRejected,
	StatusFailed,
}

// Valid reports whether s is a known lifecycle value.
func (s SubmissionStatus) Valid() bool {
	switch s {
	case StatusUploaded, StatusQueued, StatusOcrProcessing, StatusOcrCompleted,
		StatusMetadataExtracting, StatusMetadataExtracted, StatusCategorizing,
		StatusCategorized, StatusPendingReview, StatusApproved, StatusRejected,
		StatusFailed:
		return true
	}
	return false
}

// Terminal reports whether no further automatic transition can occur.
func (s SubmissionStatus) Terminal() bool {
	switch s {
	case StatusApproved, StatusRejected, StatusFailed:
		return true
	}
	return false
}

// Next returns the single forward successor in the pipeline chain, or false
// when the successor is not unique (pending_review) or does not exist.
func (s SubmissionStatus) Next() (SubmissionStatus, bool) {
	switch s {
	case StatusUploaded:
		return StatusQueued, true
	case StatusQueued:
		return StatusOcrProcessing, true
	case StatusOcrProcessing:
		return StatusOcrCompleted, true
	case StatusOcrCompleted:
		return StatusMetadataExtracting, true
	case StatusMetadataExtracting:
		return StatusMetadataExtracted, true
	case StatusMetadataExtracted:
		return StatusCategorizing, true
	case StatusCategorizing:
		return StatusCategorized, true
	case StatusCategorized:
		return StatusPendingReview, true
	case StatusPendingReview, StatusApproved, StatusRejected, StatusFailed:
		return "", false
	}
	return "", false
}

// CanTransition reports whether the state machine permits from → to.
// Failure is reachable from every non-terminal state; review outcomes only
// from pending_review; everything else advances by exactly one step.
func CanTransition(from, to SubmissionStatus) bool {
	if !from.Valid() || !to.Valid() {
		return false
	}
	if from.Terminal() {
		return false
	}
	if to == StatusFailed {
		return true
	}
	switch to {
	case StatusApproved, StatusRejected:
		return from == StatusPendingReview
	}
	next, ok := from.Next()
	return ok && next == to
}

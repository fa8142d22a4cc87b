package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStatusChainAdvancesOneStep(t *testing.T) {
	chain := []SubmissionStatus{
		StatusUploaded, StatusQueued, StatusOcrProcessing, StatusOcrCompleted,
		StatusMetadataExtracting, StatusMetadataExtracted, StatusCategorizing,
		StatusCategorized, StatusPendingReview,
	}

	for i := 0; i < len(chain)-1; i++ {
		assert.True(t, CanTransition(chain[i], chain[i+1]), "%s -> %s", chain[i], chain[i+1])
	}

	// Skipping a step is never allowed.
	assert.False(t, CanTransition(StatusUploaded, StatusOcrProcessing))
	assert.False(t, CanTransition(StatusQueued, StatusOcrCompleted))
	// Moving backwards is never allowed.
	assert.False(t, CanTransition(StatusOcrCompleted, StatusQueued))
}

func TestFailedReachableFromEveryNonTerminalState(t *testing.T) {
	for _, s := range AllStatuses {
		if s.Terminal() {
			assert.False(t, CanTransition(s, StatusFailed), "terminal %s must stay terminal", s)
			continue
		}
		assert.True(t, CanTransition(s, StatusFailed), "%s -> failed", s)
	}
}

func TestReviewOutcomesOnlyFromPendingReview(t *testing.T) {
	assert.True(t, CanTransition(StatusPendingReview, StatusApproved))
	assert.True(t, CanTransition(StatusPendingReview, StatusRejected))

	for _, s := range AllStatuses {
		if s == StatusPendingReview {
			continue
		}
		assert.False(t, CanTransition(s, StatusApproved), "%s -> approved", s)
		assert.False(t, CanTransition(s, StatusRejected), "%s -> rejected", s)
	}
}

func TestTerminalStatesHaveNoTransitions(t *testing.T) {
	for _, from := range []SubmissionStatus{StatusApproved, StatusRejected, StatusFailed} {
		for _, to := range AllStatuses {
			assert.False(t, CanTransition(from, to), "%s -> %s", from, to)
		}
	}
}

func TestUnknownStatusIsRejected(t *testing.T) {
	assert.False(t, SubmissionStatus("processing").Valid())
	assert.False(t, CanTransition("processing", StatusQueued))
	assert.False(t, CanTransition(StatusQueued, "done"))
}

package app

import (
	"context"

	"assessment-service/internal/domain"
)

// AttemptCounter reports how many submissions a user already has for an assessment.
type AttemptCounter interface {
	CountAttempts(ctx context.Context, userID int64, assessmentID string) (int, error)
}

// AttemptTracker previews the next attempt number. The stores repeat the same check
// inside their atomic insert, so this read is advisory.
type AttemptTracker struct {
	counter AttemptCounter
}

func NewAttemptTracker(counter AttemptCounter) *AttemptTracker {
	return &AttemptTracker{counter: counter}
}

// NextAttempt returns the attempt number the user's next submission would get.
func (t *AttemptTracker) NextAttempt(ctx context.Context, userID int64, assessment domain.Assessment) (int, error) {
	count, err := t.counter.CountAttempts(ctx, userID, assessment.ID)
	if err != nil {
		return 0, err
	}
	return NextAttemptNumber(count, assessment.MaxAttempts)
}

// NextAttemptNumber applies the attempt budget to an existing count. maxAttempts <= 0
// means unlimited.
func NextAttemptNumber(count, maxAttempts int) (int, error) {
	if maxAttempts > 0 && count >= maxAttempts {
		return 0, domain.ErrAttemptsExhausted
	}
	return count + 1, nil
}

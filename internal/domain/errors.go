package domain

import "errors"

var (
	// ErrAssessmentNotFound indicates the assessment content could not be loaded.
	ErrAssessmentNotFound = errors.New("assessment not found")
	// ErrQuestionNotFound indicates a submitted question ID is not part of the assessment.
	ErrQuestionNotFound = errors.New("question not found")
	// ErrSubmissionNotFound is returned when a submission id does not exist.
	ErrSubmissionNotFound = errors.New("submission not found")
	// ErrSubmissionGraded is returned when an automatic write targets a manually graded submission.
	ErrSubmissionGraded = errors.New("submission already graded")

	// ErrForbidden is returned when the caller does not own the resource it acts on.
	ErrForbidden = errors.New("forbidden")

	// ErrDeadlinePassed rejects a submission on an assessment whose late policy is reject.
	ErrDeadlinePassed = errors.New("assessment deadline has passed")
	// ErrAssessmentNotActive rejects a submission while the assessment is not accepting answers.
	ErrAssessmentNotActive = errors.New("assessment is not active")
	// ErrInvalidSubmission covers malformed payloads.
	ErrInvalidSubmission = errors.New("invalid submission")

	// ErrAttemptsExhausted is returned once a user has used every allowed attempt.
	ErrAttemptsExhausted = errors.New("maximum attempts reached")
)

// IsNotFound reports whether err refers to a missing assessment, question or submission.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrAssessmentNotFound) ||
		errors.Is(err, ErrQuestionNotFound) ||
		errors.Is(err, ErrSubmissionNotFound)
}

// IsForbidden reports whether err is an ownership failure.
func IsForbidden(err error) bool {
	return errors.Is(err, ErrForbidden)
}

// IsBadRequest reports whether err is a caller-correctable validation failure.
func IsBadRequest(err error) bool {
	return errors.Is(err, ErrDeadlinePassed) ||
		errors.Is(err, ErrAssessmentNotActive) ||
		errors.Is(err, ErrInvalidSubmission)
}

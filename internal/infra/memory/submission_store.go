package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"assessment-service/internal/app"
	"assessment-service/internal/domain"
)

// SubmissionStore is an in-memory implementation of app.SubmissionStore. A single mutex
// covers the count, insert and stats recompute, which makes Create atomic.
type SubmissionStore struct {
	mu          sync.RWMutex
	submissions map[string]domain.Submission
	stats       map[string]domain.AssessmentStats
	now         func() time.Time
}

func NewSubmissionStore() *SubmissionStore {
	return &SubmissionStore{
		submissions: make(map[string]domain.Submission),
		stats:       make(map[string]domain.AssessmentStats),
		now:         time.Now,
	}
}

func (s *SubmissionStore) Create(_ context.Context, sub *domain.Submission, maxAttempts int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next, err := app.NextAttemptNumber(s.countLocked(sub.UserID, sub.AssessmentID), maxAttempts)
	if err != nil {
		return err
	}
	sub.AttemptNumber = next
	s.submissions[sub.ID] = cloneSubmission(*sub)
	s.recomputeLocked(sub.AssessmentID)
	return nil
}

func (s *SubmissionStore) Replace(_ context.Context, sub *domain.Submission) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.submissions[sub.ID]
	if !ok {
		return domain.ErrSubmissionNotFound
	}
	if current.Status == domain.SubmissionGraded {
		return domain.ErrSubmissionGraded
	}
	s.submissions[sub.ID] = cloneSubmission(*sub)
	s.recomputeLocked(sub.AssessmentID)
	return nil
}

func (s *SubmissionStore) Get(_ context.Context, submissionID string) (domain.Submission, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sub, ok := s.submissions[submissionID]
	if !ok {
		return domain.Submission{}, domain.ErrSubmissionNotFound
	}
	return cloneSubmission(sub), nil
}

func (s *SubmissionStore) Latest(_ context.Context, userID int64, assessmentID string) (domain.Submission, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var latest *domain.Submission
	for _, sub := range s.submissions {
		if sub.UserID != userID || sub.AssessmentID != assessmentID {
			continue
		}
		if latest == nil || sub.AttemptNumber > latest.AttemptNumber {
			sub := sub
			latest = &sub
		}
	}
	if latest == nil {
		return domain.Submission{}, domain.ErrSubmissionNotFound
	}
	return cloneSubmission(*latest), nil
}

func (s *SubmissionStore) CountAttempts(_ context.Context, userID int64, assessmentID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.countLocked(userID, assessmentID), nil
}

func (s *SubmissionStore) ListByAssessment(_ context.Context, assessmentID string, page domain.Page) ([]domain.Submission, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	all := make([]domain.Submission, 0)
	for _, sub := range s.submissions {
		if sub.AssessmentID == assessmentID {
			all = append(all, sub)
		}
	}
	sort.Slice(all, func(i, j int) bool {
		if !all[i].SubmittedAt.Equal(all[j].SubmittedAt) {
			return all[i].SubmittedAt.After(all[j].SubmittedAt)
		}
		return all[i].ID < all[j].ID
	})

	total := len(all)
	start := page.Offset()
	if start > total {
		start = total
	}
	end := start + page.Size
	if page.Size <= 0 || end > total {
		end = total
	}
	out := make([]domain.Submission, 0, end-start)
	for _, sub := range all[start:end] {
		sub.Answers = nil
		out = append(out, sub)
	}
	return out, total, nil
}

func (s *SubmissionStore) ListByUser(_ context.Context, userID int64, assessmentID string) ([]domain.Submission, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Submission, 0)
	for _, sub := range s.submissions {
		if sub.UserID == userID && sub.AssessmentID == assessmentID {
			out = append(out, cloneSubmission(sub))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].AttemptNumber < out[j].AttemptNumber })
	return out, nil
}

func (s *SubmissionStore) Grade(_ context.Context, submissionID string, score float64, feedback string, at time.Time) (domain.Submission, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sub, ok := s.submissions[submissionID]
	if !ok {
		return domain.Submission{}, domain.ErrSubmissionNotFound
	}
	gradedAt := at
	sub.Status = domain.SubmissionGraded
	sub.Score = score
	if sub.Band != nil {
		// a manual grade on a band-scored submission is itself a band
		band := score
		sub.Band = &band
	}
	sub.Feedback = feedback
	sub.GradedAt = &gradedAt
	s.submissions[submissionID] = sub
	s.recomputeLocked(sub.AssessmentID)
	return cloneSubmission(sub), nil
}

func (s *SubmissionStore) Stats(_ context.Context, assessmentID string) (domain.AssessmentStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if stats, ok := s.stats[assessmentID]; ok {
		return stats, nil
	}
	return domain.AssessmentStats{AssessmentID: assessmentID}, nil
}

func (s *SubmissionStore) countLocked(userID int64, assessmentID string) int {
	count := 0
	for _, sub := range s.submissions {
		if sub.UserID == userID && sub.AssessmentID == assessmentID {
			count++
		}
	}
	return count
}

// recomputeLocked rebuilds the stats from every stored submission of the assessment.
func (s *SubmissionStore) recomputeLocked(assessmentID string) {
	stats := domain.AssessmentStats{AssessmentID: assessmentID, UpdatedAt: s.now()}
	var scoreSum, pctSum float64
	for _, sub := range s.submissions {
		if sub.AssessmentID != assessmentID {
			continue
		}
		stats.SubmissionCount++
		scoreSum += sub.Score
		pctSum += sub.Percentage
	}
	if stats.SubmissionCount > 0 {
		stats.AverageScore = scoreSum / float64(stats.SubmissionCount)
		stats.AveragePercentage = pctSum / float64(stats.SubmissionCount)
	}
	s.stats[assessmentID] = stats
}

func cloneSubmission(sub domain.Submission) domain.Submission {
	if sub.Answers != nil {
		answers := make([]domain.Answer, len(sub.Answers))
		for i, a := range sub.Answers {
			if a.SubResults != nil {
				a.SubResults = append([]bool(nil), a.SubResults...)
			}
			answers[i] = a
		}
		sub.Answers = answers
	}
	if sub.Band != nil {
		band := *sub.Band
		sub.Band = &band
	}
	if sub.GradedAt != nil {
		at := *sub.GradedAt
		sub.GradedAt = &at
	}
	return sub
}

package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"assessment-service/internal/domain"
	"assessment-service/internal/grading"
	"assessment-service/internal/metrics"
	"assessment-service/internal/tracing"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// AssessmentRepository loads assessment definitions (from cache/backing store).
type AssessmentRepository interface {
	GetAssessment(ctx context.Context, assessmentID string) (domain.Assessment, error)
}

// SubmissionStore persists submissions together with their answers and keeps the
// assessment stats in step with every write.
type SubmissionStore interface {
	AttemptCounter

	// Create assigns the next attempt number and inserts sub atomically. It returns
	// domain.ErrAttemptsExhausted when maxAttempts (> 0) submissions already exist.
	Create(ctx context.Context, sub *domain.Submission, maxAttempts int) error
	// Replace overwrites an existing submission's answers and score in place. It returns
	// domain.ErrSubmissionGraded and leaves the row untouched once it has been graded.
	Replace(ctx context.Context, sub *domain.Submission) error
	Get(ctx context.Context, submissionID string) (domain.Submission, error)
	Latest(ctx context.Context, userID int64, assessmentID string) (domain.Submission, error)
	ListByAssessment(ctx context.Context, assessmentID string, page domain.Page) ([]domain.Submission, int, error)
	ListByUser(ctx context.Context, userID int64, assessmentID string) ([]domain.Submission, error)
	Grade(ctx context.Context, submissionID string, score float64, feedback string, at time.Time) (domain.Submission, error)
	Stats(ctx context.Context, assessmentID string) (domain.AssessmentStats, error)
}

// AnswerInput is one raw answer from the submission payload.
type AnswerInput struct {
	QuestionID string `json:"questionId" validate:"required"`
	UserAnswer string `json:"userAnswer"`
}

// SubmitRequest is the learner's payload.
type SubmitRequest struct {
	Answers   []AnswerInput `json:"answers" validate:"dive"`
	TimeSpent int           `json:"timeSpent,omitempty" validate:"gte=0"`
}

// GradeRequest is the assessment owner's manual grade.
type GradeRequest struct {
	Score    float64 `json:"score" validate:"gte=0"`
	Feedback string  `json:"feedback"`
}

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// SubmissionService contains the submission and scoring use cases.
type SubmissionService struct {
	assessments AssessmentRepository
	store       SubmissionStore
	feeds       FeedRepository
	attempts    *AttemptTracker
	log         *zap.Logger
	now         func() time.Time
}

// Option customizes a SubmissionService.
type Option func(*SubmissionService)

// WithLogger sets the service logger.
func WithLogger(log *zap.Logger) Option {
	return func(s *SubmissionService) { s.log = log }
}

// WithClock is test-only for deterministic timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *SubmissionService) { s.now = now }
}

func NewSubmissionService(assessments AssessmentRepository, store SubmissionStore, feeds FeedRepository, opts ...Option) *SubmissionService {
	s := &SubmissionService{
		assessments: assessments,
		store:       store,
		feeds:       feeds,
		attempts:    NewAttemptTracker(store),
		log:         zap.NewNop(),
		now:         time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Submit scores a learner's answers and records the result as a new attempt, or in place
// of the latest one when the assessment allows resubmission within its time limit.
func (s *SubmissionService) Submit(ctx context.Context, userID int64, assessmentID string, req SubmitRequest) (domain.Submission, error) {
	ctx, span := tracing.Tracer.Start(ctx, "SubmissionService.Submit")
	defer span.End()
	span.SetAttributes(attribute.String("assessment.id", assessmentID), attribute.Int64("user.id", userID))

	started := time.Now()
	assessment, err := s.assessments.GetAssessment(ctx, assessmentID)
	if err != nil {
		return domain.Submission{}, err
	}
	kind := string(assessment.Kind)
	policy := assessment.EffectivePolicy()
	now := s.now()

	status, err := admit(assessment, policy, now)
	if err != nil {
		metrics.RejectedSubmissions.WithLabelValues(kind, rejectReason(err)).Inc()
		return domain.Submission{}, err
	}

	questions := assessment.OrderedQuestions()
	answers, err := indexAnswers(questions, req.Answers)
	if err != nil {
		return domain.Submission{}, err
	}

	summary := grading.Aggregate(questions, answers)
	sub := domain.Submission{
		ID:           uuid.New().String(),
		AssessmentID: assessment.ID,
		UserID:       userID,
		Status:       status,
		CorrectCount: summary.CorrectCount,
		TotalCount:   summary.TotalCount,
		Percentage:   summary.Percentage,
		TimeSpent:    req.TimeSpent,
		SubmittedAt:  now,
		Answers:      answersFrom(summary),
	}
	applyScore(&sub, summary, policy, assessment.SkillLabel)

	replaced, err := s.replaceLatest(ctx, assessment, policy, &sub, now)
	if err != nil {
		return domain.Submission{}, err
	}
	if !replaced {
		if _, err := s.attempts.NextAttempt(ctx, userID, assessment); err != nil {
			if errors.Is(err, domain.ErrAttemptsExhausted) {
				metrics.RejectedSubmissions.WithLabelValues(kind, rejectReason(err)).Inc()
			}
			return domain.Submission{}, err
		}
		if err := s.store.Create(ctx, &sub, assessment.MaxAttempts); err != nil {
			if errors.Is(err, domain.ErrAttemptsExhausted) {
				metrics.RejectedSubmissions.WithLabelValues(kind, rejectReason(err)).Inc()
			}
			return domain.Submission{}, err
		}
	}

	metrics.SubmissionsTotal.WithLabelValues(kind, string(sub.Status)).Inc()
	metrics.ScoringDuration.Observe(time.Since(started).Seconds())
	s.log.Info("submission recorded",
		zap.String("submissionId", sub.ID),
		zap.String("assessmentId", sub.AssessmentID),
		zap.Int64("userId", userID),
		zap.Int("attempt", sub.AttemptNumber),
		zap.String("status", string(sub.Status)),
		zap.Float64("score", sub.Score),
		zap.Bool("replaced", replaced),
	)
	s.publish(ctx, assessment.ID)
	return sub, nil
}

// replaceLatest applies the upsert policy: an ungraded latest submission still inside its
// time limit is overwritten, keeping its id, attempt number and start time.
func (s *SubmissionService) replaceLatest(ctx context.Context, a domain.Assessment, policy domain.Policy, sub *domain.Submission, now time.Time) (bool, error) {
	if policy.Resubmit != domain.ResubmitUpsert || a.TimeLimit <= 0 {
		return false, nil
	}
	latest, err := s.store.Latest(ctx, sub.UserID, a.ID)
	if errors.Is(err, domain.ErrSubmissionNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if latest.Status == domain.SubmissionGraded || !now.Before(latest.SubmittedAt.Add(a.TimeLimitDuration())) {
		return false, nil
	}

	fresh := *sub
	sub.ID = latest.ID
	sub.AttemptNumber = latest.AttemptNumber
	sub.SubmittedAt = latest.SubmittedAt
	if err := s.store.Replace(ctx, sub); err != nil {
		if errors.Is(err, domain.ErrSubmissionGraded) {
			// graded after Latest was read; record a new attempt instead
			*sub = fresh
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// Get returns a submission with per-answer correctness to its owner or to the
// assessment owner.
func (s *SubmissionService) Get(ctx context.Context, callerID int64, submissionID string) (domain.Submission, error) {
	sub, err := s.store.Get(ctx, submissionID)
	if err != nil {
		return domain.Submission{}, err
	}
	if sub.UserID == callerID {
		return sub, nil
	}
	assessment, err := s.assessments.GetAssessment(ctx, sub.AssessmentID)
	if err != nil {
		return domain.Submission{}, err
	}
	if assessment.OwnerID != callerID {
		return domain.Submission{}, domain.ErrForbidden
	}
	return sub, nil
}

// ListByAssessment is the owner's paginated view of all submissions, newest first.
func (s *SubmissionService) ListByAssessment(ctx context.Context, callerID int64, assessmentID string, page domain.Page) (domain.SubmissionPage, error) {
	if _, err := s.ownedAssessment(ctx, callerID, assessmentID); err != nil {
		return domain.SubmissionPage{}, err
	}
	page = normalizePage(page)
	items, total, err := s.store.ListByAssessment(ctx, assessmentID, page)
	if err != nil {
		return domain.SubmissionPage{}, err
	}
	return domain.SubmissionPage{Items: items, Total: total, Page: page.Number, Size: page.Size}, nil
}

// History lists the caller's own attempts in attempt order.
func (s *SubmissionService) History(ctx context.Context, userID int64, assessmentID string) ([]domain.Submission, error) {
	if _, err := s.assessments.GetAssessment(ctx, assessmentID); err != nil {
		return nil, err
	}
	return s.store.ListByUser(ctx, userID, assessmentID)
}

// NextAttempt previews the caller's next attempt number.
func (s *SubmissionService) NextAttempt(ctx context.Context, userID int64, assessmentID string) (int, int, error) {
	assessment, err := s.assessments.GetAssessment(ctx, assessmentID)
	if err != nil {
		return 0, 0, err
	}
	next, err := s.attempts.NextAttempt(ctx, userID, assessment)
	return next, assessment.MaxAttempts, err
}

// Grade applies a manual score and feedback. Re-applying the same grade is a no-op.
func (s *SubmissionService) Grade(ctx context.Context, callerID int64, submissionID string, req GradeRequest) (domain.Submission, error) {
	ctx, span := tracing.Tracer.Start(ctx, "SubmissionService.Grade")
	defer span.End()

	if req.Score < 0 {
		return domain.Submission{}, fmt.Errorf("%w: score must not be negative", domain.ErrInvalidSubmission)
	}
	sub, err := s.store.Get(ctx, submissionID)
	if err != nil {
		return domain.Submission{}, err
	}
	if _, err := s.ownedAssessment(ctx, callerID, sub.AssessmentID); err != nil {
		return domain.Submission{}, err
	}
	if sub.Status == domain.SubmissionGraded && sub.Score == req.Score && sub.Feedback == req.Feedback {
		return sub, nil
	}

	graded, err := s.store.Grade(ctx, submissionID, req.Score, req.Feedback, s.now())
	if err != nil {
		return domain.Submission{}, err
	}
	metrics.GradesTotal.Inc()
	s.log.Info("submission graded",
		zap.String("submissionId", submissionID),
		zap.Int64("graderId", callerID),
		zap.Float64("score", req.Score),
	)
	s.publish(ctx, sub.AssessmentID)
	return graded, nil
}

// Stats returns the denormalized submission stats for an assessment.
func (s *SubmissionService) Stats(ctx context.Context, assessmentID string) (domain.AssessmentStats, error) {
	if _, err := s.assessments.GetAssessment(ctx, assessmentID); err != nil {
		return domain.AssessmentStats{}, err
	}
	return s.store.Stats(ctx, assessmentID)
}

// Subscribe returns a channel of stats updates for an assessment the caller owns.
// The caller must invoke the returned cancel function to avoid leaks.
func (s *SubmissionService) Subscribe(ctx context.Context, callerID int64, assessmentID string) (<-chan domain.AssessmentStats, func(), error) {
	if _, err := s.ownedAssessment(ctx, callerID, assessmentID); err != nil {
		return nil, nil, err
	}
	stats, err := s.store.Stats(ctx, assessmentID)
	if err != nil {
		return nil, nil, err
	}
	feed := s.feeds.GetOrCreate(assessmentID)
	ch, cancel := feed.subscribe(&stats)
	return ch, func() {
		cancel()
		s.feeds.DeleteIfEmpty(assessmentID)
	}, nil
}

func (s *SubmissionService) publish(ctx context.Context, assessmentID string) {
	feed, ok := s.feeds.Get(assessmentID)
	if !ok {
		return
	}
	stats, err := s.store.Stats(ctx, assessmentID)
	if err != nil {
		s.log.Warn("stats refresh failed", zap.String("assessmentId", assessmentID), zap.Error(err))
		return
	}
	feed.publish(stats)
}

func (s *SubmissionService) ownedAssessment(ctx context.Context, callerID int64, assessmentID string) (domain.Assessment, error) {
	assessment, err := s.assessments.GetAssessment(ctx, assessmentID)
	if err != nil {
		return domain.Assessment{}, err
	}
	if assessment.OwnerID != callerID {
		return domain.Assessment{}, domain.ErrForbidden
	}
	return assessment, nil
}

// admit applies the activity and deadline rules and returns the initial status.
func admit(a domain.Assessment, policy domain.Policy, now time.Time) (domain.SubmissionStatus, error) {
	if policy.RequireActive && a.Status != domain.StatusActive {
		return "", domain.ErrAssessmentNotActive
	}
	if !a.Overdue(now) {
		return domain.SubmissionSubmitted, nil
	}
	if policy.OnLate == domain.LateReject {
		return "", domain.ErrDeadlinePassed
	}
	return domain.SubmissionLate, nil
}

func indexAnswers(questions []domain.Question, inputs []AnswerInput) (map[string]string, error) {
	known := make(map[string]struct{}, len(questions))
	for _, q := range questions {
		known[q.ID] = struct{}{}
	}
	out := make(map[string]string, len(inputs))
	for _, in := range inputs {
		if _, ok := known[in.QuestionID]; !ok {
			return nil, fmt.Errorf("%w: %s", domain.ErrQuestionNotFound, in.QuestionID)
		}
		if _, dup := out[in.QuestionID]; dup {
			return nil, fmt.Errorf("%w: question %s answered twice", domain.ErrInvalidSubmission, in.QuestionID)
		}
		out[in.QuestionID] = in.UserAnswer
	}
	return out, nil
}

func answersFrom(summary grading.Summary) []domain.Answer {
	out := make([]domain.Answer, 0, len(summary.Outcomes))
	for _, o := range summary.Outcomes {
		out = append(out, domain.Answer{
			QuestionID:   o.Question.ID,
			UserAnswer:   o.UserAnswer,
			IsCorrect:    o.Match.Correct,
			SubResults:   o.Match.SubResults,
			PointsEarned: o.PointsEarned,
			NeedsManual:  o.Match.NeedsManual,
		})
	}
	return out
}

func applyScore(sub *domain.Submission, summary grading.Summary, policy domain.Policy, skill string) {
	switch policy.Scoring {
	case domain.ScoreBand:
		band := grading.ToBand(summary.Percentage)
		sub.Band = &band
		sub.Score = band
		sub.MaxScore = grading.MaxBand
		sub.Feedback = grading.Feedback(band, skill)
	default:
		sub.Score = summary.RawScore
		sub.MaxScore = summary.TotalPoints
	}
}

func normalizePage(p domain.Page) domain.Page {
	if p.Number < 1 {
		p.Number = 1
	}
	if p.Size <= 0 {
		p.Size = defaultPageSize
	}
	if p.Size > maxPageSize {
		p.Size = maxPageSize
	}
	return p
}

func rejectReason(err error) string {
	switch {
	case errors.Is(err, domain.ErrDeadlinePassed):
		return "deadline"
	case errors.Is(err, domain.ErrAssessmentNotActive):
		return "inactive"
	case errors.Is(err, domain.ErrAttemptsExhausted):
		return "attempts"
	default:
		return "other"
	}
}

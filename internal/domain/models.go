package domain

import (
	"sort"
	"time"
)

// Kind distinguishes the assessment families the engine scores.
type Kind string

const (
	KindQuiz        Kind = "quiz"
	KindReadingTest Kind = "reading_test"
)

// AssessmentStatus is the lifecycle state of an assessment. Reading tests only use
// ACTIVE and INACTIVE.
type AssessmentStatus string

const (
	StatusDraft    AssessmentStatus = "DRAFT"
	StatusActive   AssessmentStatus = "ACTIVE"
	StatusInactive AssessmentStatus = "INACTIVE"
	StatusOverdue  AssessmentStatus = "OVERDUE"
)

// QuestionType drives how an answer is compared against its keys.
type QuestionType string

const (
	QuestionSingleChoice           QuestionType = "single_choice"
	QuestionTrueFalse              QuestionType = "true_false"
	QuestionFillBlank              QuestionType = "fill_blank"
	QuestionEssay                  QuestionType = "essay"
	QuestionMultipleChoice         QuestionType = "multiple_choice"
	QuestionIdentifyingInformation QuestionType = "identifying_information"
	QuestionMatching               QuestionType = "matching"
	QuestionCompletion             QuestionType = "completion"
	QuestionShortAnswer            QuestionType = "short_answer"
)

// Discrete reports whether answers of this type are option identifiers compared verbatim.
func (t QuestionType) Discrete() bool {
	switch t {
	case QuestionSingleChoice, QuestionTrueFalse, QuestionMultipleChoice, QuestionMatching:
		return true
	}
	return false
}

// SubQuestion is one gap of a composite question. It is scored against the
// accepted answer at the same index.
type SubQuestion struct {
	Prompt string `json:"prompt"`
}

// Question is a single scorable item.
type Question struct {
	ID             string        `json:"id"`
	Order          int           `json:"order"`
	Type           QuestionType  `json:"type"`
	Prompt         string        `json:"prompt"`
	CorrectAnswers []string      `json:"correctAnswers"`
	Points         int           `json:"points"` // defaults to 1 if zero
	SubQuestions   []SubQuestion `json:"subQuestions,omitempty"`
}

// Weight returns the points a fully correct answer earns.
func (q Question) Weight() int {
	if q.Points == 0 {
		return 1
	}
	return q.Points
}

// Composite reports whether the question is scored per sub-question.
func (q Question) Composite() bool {
	return len(q.SubQuestions) > 0
}

// Section groups reading-test questions under a passage.
type Section struct {
	ID        string     `json:"id"`
	Title     string     `json:"title"`
	Order     int        `json:"order"`
	Questions []Question `json:"questions"`
}

// Assessment is a gradable unit: a quiz or a reading test.
type Assessment struct {
	ID          string           `json:"id"`
	Kind        Kind             `json:"kind"`
	Title       string           `json:"title"`
	OwnerID     int64            `json:"ownerId"`
	TimeLimit   int              `json:"timeLimit"` // minutes, 0 for none
	Deadline    *time.Time       `json:"deadline,omitempty"`
	Status      AssessmentStatus `json:"status"`
	MaxAttempts int              `json:"maxAttempts"` // <= 0 means unlimited
	SkillLabel  string           `json:"skillLabel,omitempty"`
	Policy      *Policy          `json:"policy,omitempty"`
	Questions   []Question       `json:"questions,omitempty"`
	Sections    []Section        `json:"sections,omitempty"`
}

// EffectivePolicy returns the explicit policy or the default for the assessment kind.
func (a Assessment) EffectivePolicy() Policy {
	if a.Policy != nil {
		return *a.Policy
	}
	return DefaultPolicy(a.Kind)
}

// OrderedQuestions flattens sections and direct questions into scoring order.
func (a Assessment) OrderedQuestions() []Question {
	sections := make([]Section, len(a.Sections))
	copy(sections, a.Sections)
	sort.SliceStable(sections, func(i, j int) bool { return sections[i].Order < sections[j].Order })

	out := make([]Question, 0, len(a.Questions))
	for _, s := range sections {
		qs := make([]Question, len(s.Questions))
		copy(qs, s.Questions)
		sort.SliceStable(qs, func(i, j int) bool { return qs[i].Order < qs[j].Order })
		out = append(out, qs...)
	}
	direct := make([]Question, len(a.Questions))
	copy(direct, a.Questions)
	sort.SliceStable(direct, func(i, j int) bool { return direct[i].Order < direct[j].Order })
	return append(out, direct...)
}

// TimeLimitDuration converts the time limit to a duration.
func (a Assessment) TimeLimitDuration() time.Duration {
	return time.Duration(a.TimeLimit) * time.Minute
}

// Overdue reports whether now is past the deadline.
func (a Assessment) Overdue(now time.Time) bool {
	return a.Deadline != nil && now.After(*a.Deadline)
}

// SubmissionStatus classifies a submission.
type SubmissionStatus string

const (
	SubmissionSubmitted SubmissionStatus = "SUBMITTED"
	SubmissionLate      SubmissionStatus = "LATE"
	SubmissionGraded    SubmissionStatus = "GRADED"
)

// Answer is the stored outcome for one question of a submission.
type Answer struct {
	QuestionID   string  `json:"questionId"`
	UserAnswer   string  `json:"userAnswer"`
	IsCorrect    bool    `json:"isCorrect"`
	SubResults   []bool  `json:"subResults,omitempty"`
	PointsEarned float64 `json:"pointsEarned"`
	NeedsManual  bool    `json:"needsManual,omitempty"`
}

// Submission is one numbered attempt by a user against an assessment.
type Submission struct {
	ID            string           `json:"id"`
	AssessmentID  string           `json:"assessmentId"`
	UserID        int64            `json:"userId"`
	AttemptNumber int              `json:"attemptNumber"`
	Status        SubmissionStatus `json:"status"`
	Score         float64          `json:"score"`
	MaxScore      float64          `json:"maxScore"`
	CorrectCount  int              `json:"correctCount"`
	TotalCount    int              `json:"totalCount"`
	Percentage    float64          `json:"percentage"`
	Band          *float64         `json:"band,omitempty"`
	Feedback      string           `json:"feedback,omitempty"`
	TimeSpent     int              `json:"timeSpent,omitempty"` // seconds
	SubmittedAt   time.Time        `json:"submittedAt"`
	GradedAt      *time.Time       `json:"gradedAt,omitempty"`
	Answers       []Answer         `json:"answers,omitempty"`
}

// AssessmentStats is the denormalized aggregate kept alongside an assessment.
type AssessmentStats struct {
	AssessmentID      string    `json:"assessmentId"`
	SubmissionCount   int       `json:"submissionCount"`
	AverageScore      float64   `json:"averageScore"`
	AveragePercentage float64   `json:"averagePercentage"`
	UpdatedAt         time.Time `json:"updatedAt"`
}

// Page selects a window of a listing. Number is 1-based.
type Page struct {
	Number int
	Size   int
}

// Offset returns the number of rows to skip.
func (p Page) Offset() int {
	if p.Number <= 1 {
		return 0
	}
	return (p.Number - 1) * p.Size
}

// SubmissionPage is one page of the owner listing.
type SubmissionPage struct {
	Items []Submission `json:"items"`
	Total int          `json:"total"`
	Page  int          `json:"page"`
	Size  int          `json:"size"`
}

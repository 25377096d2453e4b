package postgres

import (
	"time"

	"assessment-service/internal/domain"
	"github.com/uptrace/bun"
)

type submissionRow struct {
	bun.BaseModel `bun:"table:submissions,alias:s"`

	ID            string     `bun:"id,pk"`
	AssessmentID  string     `bun:"assessment_id,notnull"`
	UserID        int64      `bun:"user_id,notnull"`
	AttemptNumber int        `bun:"attempt_number,notnull"`
	Status        string     `bun:"status,notnull"`
	Score         float64    `bun:"score,notnull"`
	MaxScore      float64    `bun:"max_score,notnull"`
	CorrectCount  int        `bun:"correct_count,notnull"`
	TotalCount    int        `bun:"total_count,notnull"`
	Percentage    float64    `bun:"percentage,notnull"`
	Band          *float64   `bun:"band"`
	Feedback      string     `bun:"feedback,notnull"`
	TimeSpent     int        `bun:"time_spent,notnull"`
	SubmittedAt   time.Time  `bun:"submitted_at,notnull"`
	GradedAt      *time.Time `bun:"graded_at"`

	Answers []answerRow `bun:"rel:has-many,join:id=submission_id"`
}

type answerRow struct {
	bun.BaseModel `bun:"table:submission_answers,alias:sa"`

	SubmissionID string  `bun:"submission_id,pk"`
	QuestionID   string  `bun:"question_id,pk"`
	Position     int     `bun:"position,notnull"`
	UserAnswer   string  `bun:"user_answer,notnull"`
	IsCorrect    bool    `bun:"is_correct,notnull"`
	SubResults   []bool  `bun:"sub_results,type:jsonb"`
	PointsEarned float64 `bun:"points_earned,notnull"`
	NeedsManual  bool    `bun:"needs_manual,notnull"`
}

type statsRow struct {
	bun.BaseModel `bun:"table:assessments,alias:a"`

	ID                string     `bun:"id,pk"`
	SubmissionCount   int        `bun:"submission_count"`
	AverageScore      float64    `bun:"average_score"`
	AveragePercentage float64    `bun:"average_percentage"`
	StatsUpdatedAt    *time.Time `bun:"stats_updated_at"`
}

func toRow(sub domain.Submission) *submissionRow {
	row := &submissionRow{
		ID:            sub.ID,
		AssessmentID:  sub.AssessmentID,
		UserID:        sub.UserID,
		AttemptNumber: sub.AttemptNumber,
		Status:        string(sub.Status),
		Score:         sub.Score,
		MaxScore:      sub.MaxScore,
		CorrectCount:  sub.CorrectCount,
		TotalCount:    sub.TotalCount,
		Percentage:    sub.Percentage,
		Band:          sub.Band,
		Feedback:      sub.Feedback,
		TimeSpent:     sub.TimeSpent,
		SubmittedAt:   sub.SubmittedAt,
		GradedAt:      sub.GradedAt,
	}
	row.Answers = make([]answerRow, 0, len(sub.Answers))
	for i, a := range sub.Answers {
		row.Answers = append(row.Answers, answerRow{
			SubmissionID: sub.ID,
			QuestionID:   a.QuestionID,
			Position:     i,
			UserAnswer:   a.UserAnswer,
			IsCorrect:    a.IsCorrect,
			SubResults:   a.SubResults,
			PointsEarned: a.PointsEarned,
			NeedsManual:  a.NeedsManual,
		})
	}
	return row
}

func (r submissionRow) toDomain() domain.Submission {
	sub := domain.Submission{
		ID:            r.ID,
		AssessmentID:  r.AssessmentID,
		UserID:        r.UserID,
		AttemptNumber: r.AttemptNumber,
		Status:        domain.SubmissionStatus(r.Status),
		Score:         r.Score,
		MaxScore:      r.MaxScore,
		CorrectCount:  r.CorrectCount,
		TotalCount:    r.TotalCount,
		Percentage:    r.Percentage,
		Band:          r.Band,
		Feedback:      r.Feedback,
		TimeSpent:     r.TimeSpent,
		SubmittedAt:   r.SubmittedAt,
		GradedAt:      r.GradedAt,
	}
	if len(r.Answers) > 0 {
		sub.Answers = make([]domain.Answer, 0, len(r.Answers))
		for _, a := range r.Answers {
			sub.Answers = append(sub.Answers, domain.Answer{
				QuestionID:   a.QuestionID,
				UserAnswer:   a.UserAnswer,
				IsCorrect:    a.IsCorrect,
				SubResults:   a.SubResults,
				PointsEarned: a.PointsEarned,
				NeedsManual:  a.NeedsManual,
			})
		}
	}
	return sub
}

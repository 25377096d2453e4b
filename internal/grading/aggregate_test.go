package grading

import (
	"math"
	"testing"

	"assessment-service/internal/domain"
)

func TestAggregateCountsSubQuestionUnits(t *testing.T) {
	questions := []domain.Question{
		compositeQuestion(),
		{ID: "q2", Type: domain.QuestionMultipleChoice, CorrectAnswers: []string{"B"}, Points: 2},
	}
	answers := map[string]string{
		"rq1": `{"0":"TRUE","1":"TRUE","2":"NOT GIVEN"}`,
		"q2":  "B",
	}

	sum := Aggregate(questions, answers)
	if sum.TotalCount != 4 {
		t.Fatalf("expected 4 units, got %d", sum.TotalCount)
	}
	if sum.CorrectCount != 3 {
		t.Fatalf("expected 3 correct units, got %d", sum.CorrectCount)
	}
	if math.Abs(sum.Percentage-75) > 1e-9 {
		t.Fatalf("expected 75%%, got %v", sum.Percentage)
	}
	// Composite question is only partially correct, so it earns no points.
	if sum.RawScore != 2 || sum.TotalPoints != 3 {
		t.Fatalf("expected 2/3 points, got %v/%v", sum.RawScore, sum.TotalPoints)
	}
	if len(sum.Outcomes) != 2 || sum.Outcomes[0].PointsEarned != 0 || sum.Outcomes[1].PointsEarned != 2 {
		t.Fatalf("unexpected outcomes %+v", sum.Outcomes)
	}
}

func TestAggregateMissingAnswerIsEmpty(t *testing.T) {
	questions := []domain.Question{
		{ID: "q1", Type: domain.QuestionFillBlank, CorrectAnswers: []string{"Paris"}, Points: 5},
		{ID: "q2", Type: domain.QuestionCompletion},
	}
	sum := Aggregate(questions, map[string]string{})
	if sum.CorrectCount != 1 || sum.TotalCount != 2 {
		t.Fatalf("expected only the placeholder question to pass, got %d/%d", sum.CorrectCount, sum.TotalCount)
	}
	if sum.RawScore != 1 || sum.TotalPoints != 6 {
		t.Fatalf("expected 1/6 points, got %v/%v", sum.RawScore, sum.TotalPoints)
	}
}

func TestAggregateEmptyAssessmentReportsZero(t *testing.T) {
	sum := Aggregate(nil, nil)
	if sum.TotalCount != 0 || sum.Percentage != 0 {
		t.Fatalf("expected zero percentage, got %+v", sum)
	}
}

func TestAggregateEssayCountsAsUnscored(t *testing.T) {
	questions := []domain.Question{
		{ID: "q1", Type: domain.QuestionFillBlank, CorrectAnswers: []string{"Paris"}},
		{ID: "q2", Type: domain.QuestionEssay, Points: 10},
	}
	sum := Aggregate(questions, map[string]string{"q1": "paris ", "q2": "A long essay."})
	if sum.CorrectCount != 1 || sum.TotalCount != 2 {
		t.Fatalf("expected 1/2, got %d/%d", sum.CorrectCount, sum.TotalCount)
	}
	if !sum.Outcomes[1].Match.NeedsManual {
		t.Fatalf("expected essay to be flagged for manual grading")
	}
	if sum.RawScore != 1 || sum.TotalPoints != 11 {
		t.Fatalf("expected 1/11 points, got %v/%v", sum.RawScore, sum.TotalPoints)
	}
}

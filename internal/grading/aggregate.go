package grading

import "assessment-service/internal/domain"

// Outcome is the scored result of one question.
type Outcome struct {
	Question     domain.Question
	UserAnswer   string
	Match        MatchResult
	PointsEarned float64
}

// Summary totals a submission.
type Summary struct {
	CorrectCount int
	TotalCount   int
	RawScore     float64
	TotalPoints  float64
	Percentage   float64
	Outcomes     []Outcome
}

// Aggregate matches every question against answers (keyed by question id) and totals the
// result. Questions without an answer are matched against the empty string.
//
// Points are all-or-nothing per question; partial credit only shows up in CorrectCount
// and therefore in Percentage.
func Aggregate(questions []domain.Question, answers map[string]string) Summary {
	sum := Summary{Outcomes: make([]Outcome, 0, len(questions))}
	for _, q := range questions {
		raw := answers[q.ID]
		m := Match(q, raw)

		out := Outcome{Question: q, UserAnswer: raw, Match: m}
		weight := float64(q.Weight())
		if m.Correct {
			out.PointsEarned = weight
		}

		sum.TotalCount += m.TotalUnits
		sum.TotalPoints += weight
		sum.RawScore += out.PointsEarned
		sum.CorrectCount += m.CorrectUnits
		sum.Outcomes = append(sum.Outcomes, out)
	}
	sum.Percentage = Percentage(sum.CorrectCount, sum.TotalCount)
	return sum
}

// Percentage returns correct/total*100, or 0 when there is nothing to score.
func Percentage(correct, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(correct) / float64(total) * 100
}

package grading

import (
	"strings"

	"assessment-service/internal/domain"
)

// MatchResult is the outcome of comparing one answer against a question's keys.
type MatchResult struct {
	Correct      bool
	SubResults   []bool
	CorrectUnits int
	TotalUnits   int
	NeedsManual  bool
}

// Match decides whether raw answers q. Composite questions are scored per sub-question;
// essays are never auto-graded.
func Match(q domain.Question, raw string) MatchResult {
	if q.Type == domain.QuestionEssay {
		return MatchResult{TotalUnits: 1, NeedsManual: true}
	}
	if q.Composite() {
		return matchComposite(q, raw)
	}

	correct := matchSimple(q, raw)
	res := MatchResult{Correct: correct, TotalUnits: 1}
	if correct {
		res.CorrectUnits = 1
	}
	return res
}

func matchSimple(q domain.Question, raw string) bool {
	switch len(q.CorrectAnswers) {
	case 0:
		// An empty key is a placeholder that only an empty answer satisfies.
		return strings.TrimSpace(raw) == ""
	case 1:
		return equalAnswer(q.Type, raw, q.CorrectAnswers[0])
	default:
		return matchSet(q, raw)
	}
}

func matchSet(q domain.Question, raw string) bool {
	fold := !q.Type.Discrete()
	given := splitSet(raw, fold)
	accepted := make(map[string]struct{}, len(q.CorrectAnswers))
	for _, a := range q.CorrectAnswers {
		a = strings.TrimSpace(a)
		if fold {
			a = strings.ToLower(a)
		}
		accepted[a] = struct{}{}
	}
	if len(given) != len(accepted) {
		return false
	}
	for v := range accepted {
		if _, ok := given[v]; !ok {
			return false
		}
	}
	return true
}

func matchComposite(q domain.Question, raw string) MatchResult {
	parsed := ParseUserAnswer(raw)
	res := MatchResult{
		SubResults: make([]bool, len(q.SubQuestions)),
		TotalUnits: len(q.SubQuestions),
	}
	for i := range q.SubQuestions {
		given, ok := parsed.Part(i)
		if !ok || i >= len(q.CorrectAnswers) {
			continue
		}
		if equalFold(given, q.CorrectAnswers[i]) {
			res.SubResults[i] = true
			res.CorrectUnits++
		}
	}
	res.Correct = res.CorrectUnits == res.TotalUnits
	return res
}

func equalAnswer(t domain.QuestionType, given, accepted string) bool {
	if t.Discrete() {
		return given == accepted
	}
	return equalFold(given, accepted)
}

func equalFold(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}

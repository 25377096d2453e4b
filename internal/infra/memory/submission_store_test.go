package memory

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"assessment-service/internal/domain"
)

func newSubmission(id string, userID int64, score, pct float64, at time.Time) *domain.Submission {
	return &domain.Submission{
		ID:           id,
		AssessmentID: "quiz-1",
		UserID:       userID,
		Status:       domain.SubmissionSubmitted,
		Score:        score,
		Percentage:   pct,
		SubmittedAt:  at,
		Answers:      []domain.Answer{{QuestionID: "q1", UserAnswer: "x", SubResults: []bool{true}}},
	}
}

func TestSubmissionStoreCreateNumbersAttempts(t *testing.T) {
	ctx := context.Background()
	store := NewSubmissionStore()
	at := time.Now()

	for i := 1; i <= 2; i++ {
		sub := newSubmission(fmt.Sprintf("s%d", i), 1, 1, 50, at)
		if err := store.Create(ctx, sub, 2); err != nil {
			t.Fatalf("create %d: %v", i, err)
		}
		if sub.AttemptNumber != i {
			t.Fatalf("expected attempt %d, got %d", i, sub.AttemptNumber)
		}
	}
	if err := store.Create(ctx, newSubmission("s3", 1, 1, 50, at), 2); !errors.Is(err, domain.ErrAttemptsExhausted) {
		t.Fatalf("expected exhausted, got %v", err)
	}
	// other users keep their own budget
	if err := store.Create(ctx, newSubmission("s4", 2, 1, 50, at), 2); err != nil {
		t.Fatalf("create for second user: %v", err)
	}

	latest, err := store.Latest(ctx, 1, "quiz-1")
	if err != nil || latest.ID != "s2" {
		t.Fatalf("expected latest s2, got %+v %v", latest, err)
	}
}

func TestSubmissionStoreStatsFollowWrites(t *testing.T) {
	ctx := context.Background()
	store := NewSubmissionStore()
	at := time.Now()

	_ = store.Create(ctx, newSubmission("a", 1, 2, 40, at), 0)
	_ = store.Create(ctx, newSubmission("b", 2, 4, 80, at), 0)

	stats, _ := store.Stats(ctx, "quiz-1")
	if stats.SubmissionCount != 2 || stats.AverageScore != 3 || stats.AveragePercentage != 60 {
		t.Fatalf("unexpected stats: %+v", stats)
	}

	if _, err := store.Grade(ctx, "a", 6, "ok", at); err != nil {
		t.Fatalf("grade: %v", err)
	}
	stats, _ = store.Stats(ctx, "quiz-1")
	if stats.AverageScore != 5 {
		t.Fatalf("expected average 5 after grade, got %v", stats.AverageScore)
	}

	replacement := newSubmission("b", 2, 0, 0, at)
	replacement.AttemptNumber = 1
	if err := store.Replace(ctx, replacement); err != nil {
		t.Fatalf("replace: %v", err)
	}
	stats, _ = store.Stats(ctx, "quiz-1")
	if stats.SubmissionCount != 2 || stats.AverageScore != 3 {
		t.Fatalf("unexpected stats after replace: %+v", stats)
	}

	if err := store.Replace(ctx, newSubmission("zzz", 2, 0, 0, at)); !errors.Is(err, domain.ErrSubmissionNotFound) {
		t.Fatalf("expected not found on replace, got %v", err)
	}

	empty, _ := store.Stats(ctx, "other")
	if empty.SubmissionCount != 0 || empty.AssessmentID != "other" {
		t.Fatalf("expected zero stats, got %+v", empty)
	}
}

func TestSubmissionStoreReturnsCopies(t *testing.T) {
	ctx := context.Background()
	store := NewSubmissionStore()
	_ = store.Create(ctx, newSubmission("a", 1, 1, 100, time.Now()), 0)

	got, _ := store.Get(ctx, "a")
	got.Answers[0].SubResults[0] = false
	got.Answers[0].UserAnswer = "mutated"

	again, _ := store.Get(ctx, "a")
	if !again.Answers[0].SubResults[0] || again.Answers[0].UserAnswer != "x" {
		t.Fatalf("stored submission was mutated through a returned copy")
	}
}

func TestSubmissionStoreListByAssessment(t *testing.T) {
	ctx := context.Background()
	store := NewSubmissionStore()
	base := time.Date(2024, 11, 22, 9, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		_ = store.Create(ctx, newSubmission(fmt.Sprintf("s%d", i), int64(i), 1, 50, base.Add(time.Duration(i)*time.Minute)), 0)
	}

	items, total, err := store.ListByAssessment(ctx, "quiz-1", domain.Page{Number: 1, Size: 2})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if total != 3 || len(items) != 2 || items[0].ID != "s2" || items[1].ID != "s1" {
		t.Fatalf("unexpected page: total=%d items=%+v", total, items)
	}
	if items[0].Answers != nil {
		t.Fatalf("listing should not carry answers")
	}

	items, _, _ = store.ListByAssessment(ctx, "quiz-1", domain.Page{Number: 5, Size: 2})
	if len(items) != 0 {
		t.Fatalf("expected empty page past the end, got %d", len(items))
	}
}

func TestSubmissionStoreReplaceLeavesGradedAlone(t *testing.T) {
	ctx := context.Background()
	store := NewSubmissionStore()
	at := time.Now()

	sub := newSubmission("a", 1, 4, 40, at)
	band := 4.0
	sub.Band = &band
	if err := store.Create(ctx, sub, 0); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := store.Grade(ctx, "a", 7, "good", at); err != nil {
		t.Fatalf("grade: %v", err)
	}

	replacement := newSubmission("a", 1, 1, 10, at)
	replacement.AttemptNumber = 1
	if err := store.Replace(ctx, replacement); !errors.Is(err, domain.ErrSubmissionGraded) {
		t.Fatalf("expected graded error, got %v", err)
	}

	got, _ := store.Get(ctx, "a")
	if got.Status != domain.SubmissionGraded || got.Score != 7 || got.Feedback != "good" {
		t.Fatalf("graded submission changed: %+v", got)
	}
	if got.Band == nil || *got.Band != 7 {
		t.Fatalf("expected band 7 after grade, got %v", got.Band)
	}
	stats, _ := store.Stats(ctx, "quiz-1")
	if stats.AverageScore != 7 {
		t.Fatalf("expected stats to keep the grade, got %v", stats.AverageScore)
	}
}

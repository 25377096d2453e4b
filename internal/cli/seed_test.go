package cli

import (
	"context"
	"testing"
	"time"

	"assessment-service/internal/domain"
	"assessment-service/internal/infra/memory"
	infraredis "assessment-service/internal/infra/redis"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

type recordingSaver struct {
	saved []string
}

func (r *recordingSaver) SaveAssessment(_ context.Context, a domain.Assessment) error {
	r.saved = append(r.saved, a.ID)
	return nil
}

func TestSeedAssessmentsDropsCachedCopies(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	ctx := context.Background()
	cache := infraredis.NewAssessmentRepository(client, memory.NewStaticAssessmentLoader(sampleAssessments()), time.Minute)
	if _, err := cache.GetAssessment(ctx, "quiz-1"); err != nil {
		t.Fatalf("warm cache: %v", err)
	}
	if !mr.Exists("assessment:quiz-1") {
		t.Fatalf("expected cached assessment")
	}

	saver := &recordingSaver{}
	if err := seedAssessments(ctx, saver, cache, zap.NewNop()); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if len(saver.saved) != len(sampleAssessments()) {
		t.Fatalf("expected every sample saved, got %v", saver.saved)
	}
	if mr.Exists("assessment:quiz-1") {
		t.Fatalf("expected cached copy to be dropped after seeding")
	}
}

func TestSeedAssessmentsWithoutCache(t *testing.T) {
	saver := &recordingSaver{}
	if err := seedAssessments(context.Background(), saver, nil, zap.NewNop()); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if len(saver.saved) != 2 {
		t.Fatalf("expected two samples saved, got %v", saver.saved)
	}
}

package cli

import (
	"context"
	"fmt"
	"time"

	"assessment-service/internal/config"
	"assessment-service/internal/domain"
	pgstore "assessment-service/internal/infra/postgres"
	infraredis "assessment-service/internal/infra/redis"
	"assessment-service/internal/logger"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// NewSeedCmd loads the demo assessments into Postgres.
func NewSeedCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Insert the demo assessments into Postgres",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSeed(cmd.Context(), *configPath)
		},
	}
}

func runSeed(ctx context.Context, configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if cfg.Postgres.URL == "" {
		return fmt.Errorf("postgres url not configured")
	}
	log, err := logger.New(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	if err := runMigrationsWithConfig(ctx, cfg, log); err != nil {
		return err
	}
	pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
	if err != nil {
		return err
	}
	defer pool.Close()

	loader := pgstore.NewAssessmentLoader(pool)
	var cache assessmentInvalidator
	if cfg.Redis.Addr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer client.Close()
		cache = infraredis.NewAssessmentRepository(client, loader, time.Minute)
	}
	return seedAssessments(ctx, loader, cache, log)
}

type assessmentSaver interface {
	SaveAssessment(ctx context.Context, a domain.Assessment) error
}

type assessmentInvalidator interface {
	Invalidate(ctx context.Context, assessmentID string) error
}

// seedAssessments upserts the demo content and drops any cached copy so running
// servers pick up the new definition.
func seedAssessments(ctx context.Context, store assessmentSaver, cache assessmentInvalidator, log *zap.Logger) error {
	for _, a := range sampleAssessments() {
		if err := store.SaveAssessment(ctx, a); err != nil {
			return err
		}
		if cache != nil {
			if err := cache.Invalidate(ctx, a.ID); err != nil {
				log.Warn("cache invalidation failed", zap.String("id", a.ID), zap.Error(err))
			}
		}
		log.Info("seeded assessment", zap.String("id", a.ID), zap.String("kind", string(a.Kind)))
	}
	return nil
}

// sampleAssessments is the demo content served when no database is configured.
func sampleAssessments() map[string]domain.Assessment {
	deadline := time.Now().AddDate(0, 1, 0).UTC().Truncate(time.Hour)
	return map[string]domain.Assessment{
		"quiz-1": {
			ID:          "quiz-1",
			Kind:        domain.KindQuiz,
			Title:       "General knowledge",
			OwnerID:     1,
			Status:      domain.StatusActive,
			TimeLimit:   15,
			Deadline:    &deadline,
			MaxAttempts: 3,
			Questions: []domain.Question{
				{ID: "q1", Order: 1, Type: domain.QuestionSingleChoice, Prompt: "What is 2 + 2?", CorrectAnswers: []string{"B"}, Points: 1},
				{ID: "q2", Order: 2, Type: domain.QuestionTrueFalse, Prompt: "The sun is a star.", CorrectAnswers: []string{"true"}, Points: 1},
				{ID: "q3", Order: 3, Type: domain.QuestionFillBlank, Prompt: "The capital of France is ___.", CorrectAnswers: []string{"Paris"}, Points: 2},
				{ID: "q4", Order: 4, Type: domain.QuestionEssay, Prompt: "Describe your favourite city.", Points: 5},
			},
		},
		"reading-1": {
			ID:         "reading-1",
			Kind:       domain.KindReadingTest,
			Title:      "Urban rivers",
			OwnerID:    1,
			Status:     domain.StatusActive,
			TimeLimit:  60,
			SkillLabel: "reading",
			Sections: []domain.Section{
				{
					ID:    "passage-1",
					Title: "The river and the town",
					Order: 1,
					Questions: []domain.Question{
						{
							ID:             "r1",
							Order:          1,
							Type:           domain.QuestionCompletion,
							Prompt:         "Complete the notes.",
							CorrectAnswers: []string{"river", "bridge", "market"},
							SubQuestions:   []domain.SubQuestion{{Prompt: "The town grew along the ___."}, {Prompt: "A stone ___ joined both banks."}, {Prompt: "Trade moved to the ___."}},
						},
						{ID: "r2", Order: 2, Type: domain.QuestionIdentifyingInformation, Prompt: "The bridge was built in wood.", CorrectAnswers: []string{"FALSE"}},
						{ID: "r3", Order: 3, Type: domain.QuestionMultipleChoice, Prompt: "Choose TWO reasons the town grew.", CorrectAnswers: []string{"A", "D"}},
					},
				},
			},
		},
	}
}

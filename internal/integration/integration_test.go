package integration

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"assessment-service/internal/app"
	"assessment-service/internal/domain"
	pgstore "assessment-service/internal/infra/postgres"
	pgmigrations "assessment-service/internal/infra/postgres/migrations"
	infraredis "assessment-service/internal/infra/redis"
	"github.com/jackc/pgx/v4/pgxpool"
	goredis "github.com/redis/go-redis/v9"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/migrate"
	"golang.org/x/sync/errgroup"
)

type stack struct {
	service *app.SubmissionService
	store   *pgstore.SubmissionStore
}

func TestSubmitEndToEnd(t *testing.T) {
	ctx := context.Background()
	requireDocker(t)

	s := newStack(t, ctx, sampleQuiz(), sampleReadingTest())

	sub, err := s.service.Submit(ctx, 7, "quiz-1", app.SubmitRequest{
		Answers: []app.AnswerInput{
			{QuestionID: "q1", UserAnswer: "Paris"},
			{QuestionID: "q2", UserAnswer: "A,C"},
		},
	})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if sub.Score != 3 || sub.MaxScore != 3 || sub.AttemptNumber != 1 {
		t.Fatalf("expected full marks on attempt 1, got %+v", sub)
	}

	stored, err := s.service.Get(ctx, 7, sub.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(stored.Answers) != 2 || stored.Answers[0].QuestionID != "q1" || !stored.Answers[1].IsCorrect {
		t.Fatalf("answers not persisted in order: %+v", stored.Answers)
	}

	reading, err := s.service.Submit(ctx, 7, "reading-1", app.SubmitRequest{
		Answers: []app.AnswerInput{{QuestionID: "r1", UserAnswer: `{"0":"river","1":"castle"}`}},
	})
	if err != nil {
		t.Fatalf("submit reading: %v", err)
	}
	if reading.Band == nil || *reading.Band != 6.0 {
		t.Fatalf("expected band 6.0 for 50%%, got %+v", reading.Band)
	}
	readBack, err := s.service.Get(ctx, 7, reading.ID)
	if err != nil {
		t.Fatalf("get reading: %v", err)
	}
	if got := readBack.Answers[0].SubResults; len(got) != 2 || !got[0] || got[1] {
		t.Fatalf("sub results not persisted: %v", got)
	}

	graded, err := s.service.Grade(ctx, 100, sub.ID, app.GradeRequest{Score: 2, Feedback: "check q2"})
	if err != nil {
		t.Fatalf("grade: %v", err)
	}
	if graded.Status != domain.SubmissionGraded || graded.GradedAt == nil {
		t.Fatalf("expected graded submission, got %+v", graded)
	}

	stats, err := s.service.Stats(ctx, "quiz-1")
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.SubmissionCount != 1 || stats.AverageScore != 2 {
		t.Fatalf("unexpected stats: %+v", stats)
	}

	page, err := s.service.ListByAssessment(ctx, 100, "quiz-1", domain.Page{Number: 1, Size: 10})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if page.Total != 1 || len(page.Items) != 1 || page.Items[0].ID != sub.ID {
		t.Fatalf("unexpected page: %+v", page)
	}
}

func TestConcurrentSubmitsSingleAttempt(t *testing.T) {
	ctx := context.Background()
	requireDocker(t)

	quiz := sampleQuiz()
	quiz.MaxAttempts = 1
	s := newStack(t, ctx, quiz)

	var accepted, exhausted int32
	var g errgroup.Group
	for i := 0; i < 8; i++ {
		g.Go(func() error {
			_, err := s.service.Submit(ctx, 42, quiz.ID, app.SubmitRequest{})
			switch {
			case err == nil:
				atomic.AddInt32(&accepted, 1)
			case errors.Is(err, domain.ErrAttemptsExhausted):
				atomic.AddInt32(&exhausted, 1)
			default:
				return err
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		t.Fatalf("concurrent submit: %v", err)
	}
	if accepted != 1 || exhausted != 7 {
		t.Fatalf("expected one accepted attempt, got accepted=%d exhausted=%d", accepted, exhausted)
	}
	count, err := s.store.CountAttempts(ctx, 42, quiz.ID)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected exactly one stored row, got %d", count)
	}
}

func TestConcurrentSubmitsAcrossUsers(t *testing.T) {
	ctx := context.Background()
	requireDocker(t)

	quiz := sampleQuiz()
	quiz.MaxAttempts = 1
	s := newStack(t, ctx, quiz)

	const learners = 24
	var g errgroup.Group
	for i := 0; i < learners; i++ {
		userID := int64(1000 + i)
		g.Go(func() error {
			_, err := s.service.Submit(ctx, userID, quiz.ID, app.SubmitRequest{
				Answers: []app.AnswerInput{{QuestionID: "q1", UserAnswer: "Paris"}},
			})
			return err
		})
	}
	if err := g.Wait(); err != nil {
		t.Fatalf("every learner should be accepted: %v", err)
	}

	stats, err := s.service.Stats(ctx, quiz.ID)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.SubmissionCount != learners {
		t.Fatalf("expected %d submissions in stats, got %d", learners, stats.SubmissionCount)
	}
}

func TestReplaceLeavesGradedSubmission(t *testing.T) {
	ctx := context.Background()
	requireDocker(t)

	s := newStack(t, ctx, sampleReadingTest())
	band := 5.0
	sub := &domain.Submission{
		ID:           "sub-graded",
		AssessmentID: "reading-1",
		UserID:       7,
		Status:       domain.SubmissionSubmitted,
		Score:        band,
		MaxScore:     9,
		Band:         &band,
		SubmittedAt:  time.Now().UTC().Truncate(time.Millisecond),
	}
	if err := s.store.Create(ctx, sub, 0); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := s.store.Grade(ctx, sub.ID, 8.5, "well done", time.Now()); err != nil {
		t.Fatalf("grade: %v", err)
	}

	replacement := *sub
	replacement.Score = 4
	replacement.Feedback = "auto"
	if err := s.store.Replace(ctx, &replacement); !errors.Is(err, domain.ErrSubmissionGraded) {
		t.Fatalf("expected graded error, got %v", err)
	}

	got, err := s.store.Get(ctx, sub.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != domain.SubmissionGraded || got.Score != 8.5 || got.Feedback != "well done" {
		t.Fatalf("graded submission changed: %+v", got)
	}
	if got.Band == nil || *got.Band != 8.5 {
		t.Fatalf("expected band to follow the grade, got %v", got.Band)
	}

	missing := replacement
	missing.ID = "sub-missing"
	if err := s.store.Replace(ctx, &missing); !errors.Is(err, domain.ErrSubmissionNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func newStack(t *testing.T, ctx context.Context, assessments ...domain.Assessment) stack {
	t.Helper()
	pgURL, pgCleanup := startPostgres(t, ctx)
	t.Cleanup(pgCleanup)
	redisURL, redisCleanup := startRedis(t, ctx)
	t.Cleanup(redisCleanup)

	db := migrateDB(t, ctx, pgURL)
	t.Cleanup(func() { _ = db.Close() })

	pool, err := pgxpool.Connect(ctx, pgURL)
	if err != nil {
		t.Fatalf("connect pg: %v", err)
	}
	t.Cleanup(pool.Close)

	loader := pgstore.NewAssessmentLoader(pool)
	for _, a := range assessments {
		if err := loader.SaveAssessment(ctx, a); err != nil {
			t.Fatalf("seed assessment: %v", err)
		}
	}

	redisClient, err := redisClientFromURL(redisURL)
	if err != nil {
		t.Fatalf("redis client: %v", err)
	}
	t.Cleanup(func() { _ = redisClient.Close() })

	repo := infraredis.NewAssessmentRepository(redisClient, loader, 5*time.Minute)
	feeds := infraredis.NewFeedStore(redisClient, 5*time.Minute)
	store := pgstore.NewSubmissionStore(db)
	return stack{
		service: app.NewSubmissionService(repo, store, feeds),
		store:   store,
	}
}

func startPostgres(t *testing.T, ctx context.Context) (string, func()) {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "postgres:15-alpine",
		Env:          map[string]string{"POSTGRES_USER": "assess", "POSTGRES_PASSWORD": "assesspass", "POSTGRES_DB": "assessdb"},
		ExposedPorts: []string{"5432/tcp"},
		WaitingFor:   wait.ForListeningPort("5432/tcp").WithStartupTimeout(60 * time.Second),
	}
	container, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		if strings.Contains(err.Error(), "Cannot connect to the Docker daemon") {
			t.Skipf("docker not available: %v", err)
		}
		t.Fatalf("start postgres: %v", err)
	}
	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("host: %v", err)
	}
	port, err := container.MappedPort(ctx, "5432/tcp")
	if err != nil {
		t.Fatalf("port: %v", err)
	}
	dsn := fmt.Sprintf("postgres://assess:assesspass@%s:%s/assessdb?sslmode=disable", host, port.Port())
	return dsn, func() {
		_ = container.Terminate(ctx)
	}
}

func startRedis(t *testing.T, ctx context.Context) (string, func()) {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForListeningPort("6379/tcp").WithStartupTimeout(30 * time.Second),
	}
	container, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		if strings.Contains(err.Error(), "Cannot connect to the Docker daemon") {
			t.Skipf("docker not available: %v", err)
		}
		t.Fatalf("start redis: %v", err)
	}
	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("redis host: %v", err)
	}
	port, err := container.MappedPort(ctx, "6379/tcp")
	if err != nil {
		t.Fatalf("redis port: %v", err)
	}
	url := fmt.Sprintf("redis://%s:%s", host, port.Port())
	return url, func() {
		_ = container.Terminate(ctx)
	}
}

func migrateDB(t *testing.T, ctx context.Context, dsn string) *bun.DB {
	t.Helper()
	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
	db := bun.NewDB(sqldb, pgdialect.New())

	migrator := migrate.NewMigrator(db, pgmigrations.Migrations)
	if err := migrator.Init(ctx); err != nil {
		t.Fatalf("migrator init: %v", err)
	}
	if _, err := migrator.Migrate(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func sampleQuiz() domain.Assessment {
	return domain.Assessment{
		ID:          "quiz-1",
		Kind:        domain.KindQuiz,
		Title:       "Geography",
		OwnerID:     100,
		Status:      domain.StatusActive,
		MaxAttempts: 3,
		Questions: []domain.Question{
			{ID: "q1", Order: 1, Type: domain.QuestionFillBlank, Prompt: "Capital of France?", CorrectAnswers: []string{"Paris"}, Points: 2},
			{ID: "q2", Order: 2, Type: domain.QuestionMultipleChoice, Prompt: "Pick the primes", CorrectAnswers: []string{"A", "C"}},
		},
	}
}

func sampleReadingTest() domain.Assessment {
	return domain.Assessment{
		ID:        "reading-1",
		Kind:      domain.KindReadingTest,
		Title:     "The Old Town",
		OwnerID:   100,
		Status:    domain.StatusActive,
		TimeLimit: 60,
		Sections: []domain.Section{
			{
				ID:    "s1",
				Order: 1,
				Questions: []domain.Question{
					{
						ID:             "r1",
						Type:           domain.QuestionCompletion,
						CorrectAnswers: []string{"river", "bridge"},
						SubQuestions:   []domain.SubQuestion{{Prompt: "The town sits on a ___"}, {Prompt: "It is known for its ___"}},
					},
				},
			},
		},
	}
}

func redisClientFromURL(url string) (*goredis.Client, error) {
	opts, err := goredis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	return goredis.NewClient(&goredis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	}), nil
}

func requireDocker(t *testing.T) {
	t.Helper()
	if _, err := tc.NewDockerProvider(); err != nil {
		t.Skipf("docker not available: %v", err)
	}
}

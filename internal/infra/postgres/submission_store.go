package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"assessment-service/internal/app"
	"assessment-service/internal/domain"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/driver/pgdriver"
)

const (
	maxTxRetries = 8
	retryBackoff = 20 * time.Millisecond
)

// SubmissionStore persists submissions with bun. Every write locks the assessment row
// first, so writers to one assessment queue instead of aborting, and then refreshes the
// denormalized stats in the same transaction. The UNIQUE (assessment_id, user_id,
// attempt_number) constraint backs attempt numbering.
type SubmissionStore struct {
	db  *bun.DB
	now func() time.Time
}

func NewSubmissionStore(db *bun.DB) *SubmissionStore {
	return &SubmissionStore{db: db, now: time.Now}
}

func (s *SubmissionStore) Create(ctx context.Context, sub *domain.Submission, maxAttempts int) error {
	var next int
	err := s.inTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		if err := lockAssessment(ctx, tx, sub.AssessmentID); err != nil {
			return err
		}
		count, err := tx.NewSelect().
			Model((*submissionRow)(nil)).
			Where("assessment_id = ?", sub.AssessmentID).
			Where("user_id = ?", sub.UserID).
			Count(ctx)
		if err != nil {
			return fmt.Errorf("count attempts: %w", err)
		}
		next, err = app.NextAttemptNumber(count, maxAttempts)
		if err != nil {
			return err
		}

		row := toRow(*sub)
		row.AttemptNumber = next
		if _, err := tx.NewInsert().Model(row).Exec(ctx); err != nil {
			return fmt.Errorf("insert submission: %w", err)
		}
		if err := insertAnswers(ctx, tx, row.Answers); err != nil {
			return err
		}
		return s.recomputeStats(ctx, tx, sub.AssessmentID)
	})
	if err != nil {
		return err
	}
	sub.AttemptNumber = next
	return nil
}

func (s *SubmissionStore) Replace(ctx context.Context, sub *domain.Submission) error {
	return s.inTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		if err := lockAssessment(ctx, tx, sub.AssessmentID); err != nil {
			return err
		}
		row := toRow(*sub)
		res, err := tx.NewUpdate().
			Model(row).
			Column("status", "score", "max_score", "correct_count", "total_count",
				"percentage", "band", "feedback", "time_spent").
			WherePK().
			Where("status <> ?", string(domain.SubmissionGraded)).
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("update submission: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			exists, err := tx.NewSelect().
				Model((*submissionRow)(nil)).
				Where("id = ?", sub.ID).
				Exists(ctx)
			if err != nil {
				return fmt.Errorf("find submission: %w", err)
			}
			if exists {
				return domain.ErrSubmissionGraded
			}
			return domain.ErrSubmissionNotFound
		}
		if _, err := tx.NewDelete().
			Model((*answerRow)(nil)).
			Where("submission_id = ?", sub.ID).
			Exec(ctx); err != nil {
			return fmt.Errorf("delete answers: %w", err)
		}
		if err := insertAnswers(ctx, tx, row.Answers); err != nil {
			return err
		}
		return s.recomputeStats(ctx, tx, sub.AssessmentID)
	})
}

func (s *SubmissionStore) Get(ctx context.Context, submissionID string) (domain.Submission, error) {
	var row submissionRow
	err := s.db.NewSelect().
		Model(&row).
		Relation("Answers", orderAnswers).
		Where("s.id = ?", submissionID).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Submission{}, domain.ErrSubmissionNotFound
	}
	if err != nil {
		return domain.Submission{}, fmt.Errorf("get submission: %w", err)
	}
	return row.toDomain(), nil
}

func (s *SubmissionStore) Latest(ctx context.Context, userID int64, assessmentID string) (domain.Submission, error) {
	var row submissionRow
	err := s.db.NewSelect().
		Model(&row).
		Relation("Answers", orderAnswers).
		Where("s.assessment_id = ?", assessmentID).
		Where("s.user_id = ?", userID).
		Order("s.attempt_number DESC").
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Submission{}, domain.ErrSubmissionNotFound
	}
	if err != nil {
		return domain.Submission{}, fmt.Errorf("latest submission: %w", err)
	}
	return row.toDomain(), nil
}

func (s *SubmissionStore) CountAttempts(ctx context.Context, userID int64, assessmentID string) (int, error) {
	count, err := s.db.NewSelect().
		Model((*submissionRow)(nil)).
		Where("assessment_id = ?", assessmentID).
		Where("user_id = ?", userID).
		Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("count attempts: %w", err)
	}
	return count, nil
}

func (s *SubmissionStore) ListByAssessment(ctx context.Context, assessmentID string, page domain.Page) ([]domain.Submission, int, error) {
	var rows []submissionRow
	total, err := s.db.NewSelect().
		Model(&rows).
		Where("s.assessment_id = ?", assessmentID).
		Order("s.submitted_at DESC", "s.id ASC").
		Limit(page.Size).
		Offset(page.Offset()).
		ScanAndCount(ctx)
	if err != nil {
		return nil, 0, fmt.Errorf("list submissions: %w", err)
	}
	out := make([]domain.Submission, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toDomain())
	}
	return out, total, nil
}

func (s *SubmissionStore) ListByUser(ctx context.Context, userID int64, assessmentID string) ([]domain.Submission, error) {
	var rows []submissionRow
	err := s.db.NewSelect().
		Model(&rows).
		Relation("Answers", orderAnswers).
		Where("s.assessment_id = ?", assessmentID).
		Where("s.user_id = ?", userID).
		Order("s.attempt_number ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("list user submissions: %w", err)
	}
	out := make([]domain.Submission, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toDomain())
	}
	return out, nil
}

func (s *SubmissionStore) Grade(ctx context.Context, submissionID string, score float64, feedback string, at time.Time) (domain.Submission, error) {
	err := s.inTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		var assessmentID string
		err := tx.NewSelect().
			Model((*submissionRow)(nil)).
			Column("assessment_id").
			Where("id = ?", submissionID).
			Scan(ctx, &assessmentID)
		if errors.Is(err, sql.ErrNoRows) {
			return domain.ErrSubmissionNotFound
		}
		if err != nil {
			return fmt.Errorf("find submission: %w", err)
		}
		if err := lockAssessment(ctx, tx, assessmentID); err != nil {
			return err
		}
		if _, err := tx.NewUpdate().
			Model((*submissionRow)(nil)).
			Set("status = ?", string(domain.SubmissionGraded)).
			Set("score = ?", score).
			Set("band = CASE WHEN band IS NULL THEN NULL ELSE ? END", score).
			Set("feedback = ?", feedback).
			Set("graded_at = ?", at).
			Where("id = ?", submissionID).
			Exec(ctx); err != nil {
			return fmt.Errorf("grade submission: %w", err)
		}
		return s.recomputeStats(ctx, tx, assessmentID)
	})
	if err != nil {
		return domain.Submission{}, err
	}
	return s.Get(ctx, submissionID)
}

func (s *SubmissionStore) Stats(ctx context.Context, assessmentID string) (domain.AssessmentStats, error) {
	var row statsRow
	err := s.db.NewSelect().
		Model(&row).
		Where("a.id = ?", assessmentID).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.AssessmentStats{AssessmentID: assessmentID}, nil
	}
	if err != nil {
		return domain.AssessmentStats{}, fmt.Errorf("load stats: %w", err)
	}
	stats := domain.AssessmentStats{
		AssessmentID:      assessmentID,
		SubmissionCount:   row.SubmissionCount,
		AverageScore:      row.AverageScore,
		AveragePercentage: row.AveragePercentage,
	}
	if row.StatsUpdatedAt != nil {
		stats.UpdatedAt = *row.StatsUpdatedAt
	}
	return stats, nil
}

// recomputeStats rewrites the assessment's stats columns from the submissions table.
func (s *SubmissionStore) recomputeStats(ctx context.Context, tx bun.Tx, assessmentID string) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE assessments AS a
		SET submission_count = agg.cnt,
		    average_score = agg.avg_score,
		    average_percentage = agg.avg_pct,
		    stats_updated_at = ?
		FROM (
			SELECT count(*) AS cnt,
			       coalesce(avg(score), 0) AS avg_score,
			       coalesce(avg(percentage), 0) AS avg_pct
			FROM submissions
			WHERE assessment_id = ?
		) AS agg
		WHERE a.id = ?`,
		s.now(), assessmentID, assessmentID)
	if err != nil {
		return fmt.Errorf("recompute stats: %w", err)
	}
	return nil
}

// lockAssessment takes the assessment row lock that serializes every write touching
// the assessment's submissions and stats.
func lockAssessment(ctx context.Context, tx bun.Tx, assessmentID string) error {
	var id string
	err := tx.NewSelect().
		Model((*statsRow)(nil)).
		ColumnExpr("a.id").
		Where("a.id = ?", assessmentID).
		For("UPDATE").
		Scan(ctx, &id)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.ErrAssessmentNotFound
	}
	if err != nil {
		return fmt.Errorf("lock assessment: %w", err)
	}
	return nil
}

// inTx runs fn in a READ COMMITTED transaction. Unique violations, deadlocks and
// serialization failures are retried with jittered backoff.
func (s *SubmissionStore) inTx(ctx context.Context, fn func(ctx context.Context, tx bun.Tx) error) error {
	var err error
	for i := 0; i < maxTxRetries; i++ {
		err = s.db.RunInTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted}, fn)
		if !retryable(err) {
			return err
		}
		wait := retryBackoff*time.Duration(i+1) + time.Duration(rand.Int63n(int64(retryBackoff)))
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
	return err
}

func retryable(err error) bool {
	var pgErr pgdriver.Error
	if !errors.As(err, &pgErr) {
		return false
	}
	switch pgErr.Field('C') {
	case "40001", "40P01", "23505":
		return true
	}
	return false
}

func insertAnswers(ctx context.Context, tx bun.Tx, answers []answerRow) error {
	if len(answers) == 0 {
		return nil
	}
	if _, err := tx.NewInsert().Model(&answers).Exec(ctx); err != nil {
		return fmt.Errorf("insert answers: %w", err)
	}
	return nil
}

func orderAnswers(q *bun.SelectQuery) *bun.SelectQuery {
	return q.Order("sa.position ASC")
}

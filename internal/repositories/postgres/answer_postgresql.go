package postgres

import (
	"context"
	"fmt"

	"github.com/SAP-F-2025/challenge-service/internal/cache"
	"github.com/SAP-F-2025/challenge-service/internal/models"
	"github.com/SAP-F-2025/challenge-service/internal/repositories"
	"gorm.io/gorm"
)

type AnswerPostgreSQL struct {
	db    *gorm.DB
	cache *cacheScope
}

func NewAnswerPostgreSQL(db *gorm.DB, cacheManager *cache.CacheManager) repositories.AnswerRepository {
	return newAnswerPostgreSQL(db, newLiveScope(cacheManager))
}

func newAnswerPostgreSQL(db *gorm.DB, scope *cacheScope) *AnswerPostgreSQL {
	return &AnswerPostgreSQL{
		db:    db,
		cache: scope,
	}
}

// Create appends a student answer. The unique index on
// (question_id, student_id, attempt_number) rejects a concurrent duplicate.
func (a *AnswerPostgreSQL) Create(ctx context.Context, tx *gorm.DB, answer *models.StudentAnswer) error {
	db := a.getDB(tx)
	if err := db.WithContext(ctx).Omit("Question", "Student").Create(answer).Error; err != nil {
		return fmt.Errorf("failed to create answer: %w", err)
	}

	student := answer.Student
	a.cache.invalidate(ctx, func(ctx context.Context, cm *cache.CacheManager) {
		if student != nil {
			cache.InvalidateSchoolStats(ctx, cm, student.SchoolID)
			return
		}
		cache.SafeInvalidatePattern(ctx, cm.Stats, "school:*")
	})
	return nil
}

func (a *AnswerPostgreSQL) CountByQuestionAndStudent(ctx context.Context, tx *gorm.DB, questionID, studentID uint) (int64, error) {
	db := a.getDB(tx)
	var count int64
	if err := db.WithContext(ctx).
		Model(&models.StudentAnswer{}).
		Where("question_id = ? AND student_id = ?", questionID, studentID).
		Count(&count).Error; err != nil {
		return 0, fmt.Errorf("failed to count answers: %w", err)
	}
	return count, nil
}

// GetByQuestionAndStudent returns the attempts of a student in attempt order
func (a *AnswerPostgreSQL) GetByQuestionAndStudent(ctx context.Context, tx *gorm.DB, questionID, studentID uint) ([]*models.StudentAnswer, error) {
	db := a.getDB(tx)
	var answers []*models.StudentAnswer
	if err := db.WithContext(ctx).
		Where("question_id = ? AND student_id = ?", questionID, studentID).
		Order("attempt_number ASC").
		Find(&answers).Error; err != nil {
		return nil, fmt.Errorf("failed to get answers: %w", err)
	}
	return answers, nil
}

// ===== STATISTICS =====

const schoolAggregatesQuery = `
SELECT
	q.id AS question_id,
	q.text AS question_text,
	q.type AS question_type,
	q.stage AS stage,
	q.challenge_id AS challenge_id,
	COUNT(sa.id) AS total_attempts,
	COUNT(sa.id) FILTER (WHERE sa.is_correct) AS correct_answers,
	COALESCE(AVG(sa.time_spent), 0) AS avg_time_spent
FROM student_answers sa
JOIN students s ON s.id = sa.student_id
JOIN questions q ON q.id = sa.question_id
WHERE s.school_id = @school AND q.lifecycle = @active %s
GROUP BY q.id, q.text, q.type, q.stage, q.challenge_id
ORDER BY total_attempts DESC, q.id ASC`

// GetSchoolAggregates counts answers per active question for the students of
// one school. Questions without answers from the school are absent.
func (a *AnswerPostgreSQL) GetSchoolAggregates(ctx context.Context, tx *gorm.DB, schoolID uint, questionID *uint) ([]repositories.SchoolQuestionAggregate, error) {
	db := a.getDB(tx)
	var rows []repositories.SchoolQuestionAggregate

	err := a.cache.reads.Stats.CacheOrExecute(ctx, cache.SchoolStatsKey(schoolID, questionID), &rows, cache.StatsCacheConfig.TTL, func() (interface{}, error) {
		args := map[string]interface{}{
			"school": schoolID,
			"active": models.LifecycleActive,
		}
		questionFilter := ""
		if questionID != nil {
			questionFilter = "AND q.id = @question"
			args["question"] = *questionID
		}

		var result []repositories.SchoolQuestionAggregate
		if err := db.WithContext(ctx).Raw(fmt.Sprintf(schoolAggregatesQuery, questionFilter), args).Scan(&result).Error; err != nil {
			return nil, fmt.Errorf("failed to aggregate school answers: %w", err)
		}
		return result, nil
	})
	if err != nil {
		return nil, err
	}

	return rows, nil
}

func (a *AnswerPostgreSQL) getDB(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return a.db
}

package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/SAP-F-2025/challenge-service/internal/cache"
	"github.com/SAP-F-2025/challenge-service/internal/models"
	"github.com/SAP-F-2025/challenge-service/internal/repositories"
	"gorm.io/gorm"
)

type QuestionPostgreSQL struct {
	db      *gorm.DB
	helpers *SharedHelpers
	cache   *cacheScope
}

func NewQuestionPostgreSQL(db *gorm.DB, cacheManager *cache.CacheManager) repositories.QuestionRepository {
	return newQuestionPostgreSQL(db, newLiveScope(cacheManager))
}

func newQuestionPostgreSQL(db *gorm.DB, scope *cacheScope) *QuestionPostgreSQL {
	return &QuestionPostgreSQL{
		db:      db,
		helpers: NewSharedHelpers(db),
		cache:   scope,
	}
}

// ===== BASIC CRUD OPERATIONS =====

// Create inserts a question. Sub-questions attached to question.SubQuestions
// are not saved here; use CreateBatch.
func (q *QuestionPostgreSQL) Create(ctx context.Context, tx *gorm.DB, question *models.Question) error {
	db := q.getDB(tx)
	if err := db.WithContext(ctx).Omit("SubQuestions", "Media").Create(question).Error; err != nil {
		return fmt.Errorf("failed to create question: %w", err)
	}
	return nil
}

// CreateBatch creates multiple questions in a batch
func (q *QuestionPostgreSQL) CreateBatch(ctx context.Context, tx *gorm.DB, questions []*models.Question) error {
	if len(questions) == 0 {
		return nil
	}

	db := q.getDB(tx)
	if err := db.WithContext(ctx).Omit("SubQuestions", "Media").CreateInBatches(questions, 100).Error; err != nil {
		return fmt.Errorf("failed to create questions batch: %w", err)
	}
	return nil
}

// GetByID retrieves a question by ID with caching
func (q *QuestionPostgreSQL) GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.Question, error) {
	db := q.getDB(tx)
	var question models.Question

	err := q.cache.reads.Question.CacheOrExecute(ctx, cache.QuestionKey(id), &question, cache.QuestionCacheConfig.TTL, func() (interface{}, error) {
		var dbQuestion models.Question
		if err := db.WithContext(ctx).First(&dbQuestion, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, fmt.Errorf("question %d: %w", id, repositories.ErrNotFound)
			}
			return nil, fmt.Errorf("failed to get question: %w", err)
		}
		return &dbQuestion, nil
	})
	if err != nil {
		return nil, err
	}

	return &question, nil
}

// GetByIDWithDetails retrieves a question with its non-deleted sub-questions
// and media, both in position order
func (q *QuestionPostgreSQL) GetByIDWithDetails(ctx context.Context, tx *gorm.DB, id uint) (*models.Question, error) {
	db := q.getDB(tx)
	var question models.Question
	if err := db.WithContext(ctx).
		Preload("SubQuestions", func(db *gorm.DB) *gorm.DB {
			return db.Where("lifecycle <> ?", models.LifecycleDeleted).Order("position ASC")
		}).
		Preload("Media", func(db *gorm.DB) *gorm.DB {
			return db.Order("position ASC")
		}).
		First(&question, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("question %d: %w", id, repositories.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get question with details: %w", err)
	}
	return &question, nil
}

// ===== QUERY OPERATIONS =====

// List returns active root questions matching the filters and the total count
func (q *QuestionPostgreSQL) List(ctx context.Context, tx *gorm.DB, filters repositories.QuestionFilters) ([]*models.Question, int64, error) {
	db := q.getDB(tx)
	query := q.helpers.ScopeActiveRoots(db.WithContext(ctx).Model(&models.Question{}))
	query = q.helpers.ApplyQuestionFilters(query, filters)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count questions: %w", err)
	}

	var questions []*models.Question
	query = q.helpers.ApplyPaginationAndSort(query, filters.SortBy, filters.SortOrder, filters.Limit, filters.Offset)
	if err := query.Find(&questions).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to list questions: %w", err)
	}

	return questions, total, nil
}

// GetByChallenge returns the active root questions of a challenge ordered by
// stage then position, optionally restricted to one stage
func (q *QuestionPostgreSQL) GetByChallenge(ctx context.Context, tx *gorm.DB, challengeID uint, stage *models.Stage) ([]*models.Question, error) {
	db := q.getDB(tx)
	query := q.helpers.ScopeActiveRoots(db.WithContext(ctx).Model(&models.Question{})).
		Where("challenge_id = ?", challengeID)
	if stage != nil {
		query = query.Where("stage = ?", *stage)
	}

	var questions []*models.Question
	if err := query.
		Preload("SubQuestions", func(db *gorm.DB) *gorm.DB {
			return db.Where("lifecycle = ?", models.LifecycleActive).Order("position ASC")
		}).
		Order("stage ASC").Order("position ASC").
		Find(&questions).Error; err != nil {
		return nil, fmt.Errorf("failed to get questions by challenge: %w", err)
	}
	return questions, nil
}

// GetSubQuestions returns the non-deleted sub-questions of a parent in position order
func (q *QuestionPostgreSQL) GetSubQuestions(ctx context.Context, tx *gorm.DB, parentID uint) ([]*models.Question, error) {
	db := q.getDB(tx)
	var questions []*models.Question
	if err := db.WithContext(ctx).
		Where("parent_question_id = ? AND lifecycle <> ?", parentID, models.LifecycleDeleted).
		Order("position ASC").
		Find(&questions).Error; err != nil {
		return nil, fmt.Errorf("failed to get sub-questions: %w", err)
	}
	return questions, nil
}

// ===== POSITION SEQUENCING =====

// NextPosition returns 1 + the highest non-deleted position in the scope. Root
// questions are scoped by (challenge, stage); sub-questions by their parent.
func (q *QuestionPostgreSQL) NextPosition(ctx context.Context, tx *gorm.DB, challengeID uint, stage models.Stage, parentID *uint) (int, error) {
	db := q.getDB(tx)
	query := db.WithContext(ctx).Model(&models.Question{}).
		Select("COALESCE(MAX(position), 0)").
		Where("lifecycle <> ?", models.LifecycleDeleted)

	if parentID != nil {
		query = query.Where("parent_question_id = ?", *parentID)
	} else {
		query = query.Where("challenge_id = ? AND stage = ? AND parent_question_id IS NULL", challengeID, stage)
	}

	var maxPosition int
	if err := query.Scan(&maxPosition).Error; err != nil {
		return 0, fmt.Errorf("failed to compute next position: %w", err)
	}
	return maxPosition + 1, nil
}

// ===== COMPOSITE SCORING =====

// SumSubQuestionPoints sums the points of the active sub-questions of a parent
func (q *QuestionPostgreSQL) SumSubQuestionPoints(ctx context.Context, tx *gorm.DB, parentID uint) (int, error) {
	db := q.getDB(tx)
	var total int
	if err := db.WithContext(ctx).Model(&models.Question{}).
		Select("COALESCE(SUM(points), 0)").
		Where("parent_question_id = ? AND lifecycle = ?", parentID, models.LifecycleActive).
		Scan(&total).Error; err != nil {
		return 0, fmt.Errorf("failed to sum sub-question points: %w", err)
	}
	return total, nil
}

func (q *QuestionPostgreSQL) UpdatePoints(ctx context.Context, tx *gorm.DB, id uint, points int) error {
	db := q.getDB(tx)
	result := db.WithContext(ctx).Model(&models.Question{}).Where("id = ?", id).Update("points", points)
	if result.Error != nil {
		return fmt.Errorf("failed to update question points: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("question %d: %w", id, repositories.ErrNotFound)
	}

	q.cache.invalidate(ctx, func(ctx context.Context, cm *cache.CacheManager) {
		cache.InvalidateQuestionCache(ctx, cm, id, nil)
	})
	return nil
}

// ===== LIFECYCLE =====

// UpdateLifecycle changes the lifecycle of a question. Deleting a parent also
// deletes its sub-questions; activation changes stay on the question itself.
// Deleted rows are never touched again.
func (q *QuestionPostgreSQL) UpdateLifecycle(ctx context.Context, tx *gorm.DB, id uint, lifecycle models.Lifecycle) error {
	db := q.getDB(tx)

	var question models.Question
	if err := db.WithContext(ctx).Select("id, parent_question_id").First(&question, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("question %d: %w", id, repositories.ErrNotFound)
		}
		return fmt.Errorf("failed to get question before lifecycle change: %w", err)
	}

	var cascaded []uint
	if lifecycle == models.LifecycleDeleted {
		if err := db.WithContext(ctx).Model(&models.Question{}).
			Where("parent_question_id = ? AND lifecycle <> ?", id, models.LifecycleDeleted).
			Pluck("id", &cascaded).Error; err != nil {
			return fmt.Errorf("failed to get sub-questions before lifecycle change: %w", err)
		}
	}

	ids := append([]uint{id}, cascaded...)
	if err := db.WithContext(ctx).Model(&models.Question{}).
		Where("id IN ? AND lifecycle <> ?", ids, models.LifecycleDeleted).
		Update("lifecycle", lifecycle).Error; err != nil {
		return fmt.Errorf("failed to update question lifecycle: %w", err)
	}

	q.cache.invalidate(ctx, func(ctx context.Context, cm *cache.CacheManager) {
		cache.InvalidateQuestionCache(ctx, cm, id, question.ParentQuestionID)
		for _, subID := range cascaded {
			cache.SafeDelete(ctx, cm.Question, cache.QuestionKey(subID))
		}
	})
	return nil
}

// ===== MEDIA =====

func (q *QuestionPostgreSQL) AttachMedia(ctx context.Context, tx *gorm.DB, questionID uint, media []models.QuestionMedia) error {
	if len(media) == 0 {
		return nil
	}

	db := q.getDB(tx)
	for i := range media {
		media[i].QuestionID = questionID
	}
	if err := db.WithContext(ctx).Create(&media).Error; err != nil {
		return fmt.Errorf("failed to attach media: %w", err)
	}

	q.cache.invalidate(ctx, func(ctx context.Context, cm *cache.CacheManager) {
		cache.SafeDelete(ctx, cm.Question, cache.QuestionKey(questionID))
	})
	return nil
}

// Helper methods

func (q *QuestionPostgreSQL) getDB(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return q.db
}

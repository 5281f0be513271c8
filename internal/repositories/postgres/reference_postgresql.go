package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/SAP-F-2025/challenge-service/internal/cache"
	"github.com/SAP-F-2025/challenge-service/internal/models"
	"github.com/SAP-F-2025/challenge-service/internal/repositories"
	"gorm.io/gorm"
)

// Challenges, schools and students are owned by the platform's admin
// service. These repositories only read them.

type ChallengePostgreSQL struct {
	db    *gorm.DB
	cache *cacheScope
}

func newChallengePostgreSQL(db *gorm.DB, scope *cacheScope) *ChallengePostgreSQL {
	return &ChallengePostgreSQL{db: db, cache: scope}
}

// Exists reports whether a non-deleted challenge exists. Only positive
// answers are cached.
func (c *ChallengePostgreSQL) Exists(ctx context.Context, tx *gorm.DB, id uint) (bool, error) {
	key := cache.ChallengeExistsKey(id)
	var cached bool
	if err := c.cache.reads.Exists.Get(ctx, key, &cached); err == nil && cached {
		return true, nil
	}

	db := getDB(c.db, tx)
	var count int64
	if err := db.WithContext(ctx).Model(&models.Challenge{}).
		Where("id = ? AND lifecycle <> ?", id, models.LifecycleDeleted).
		Count(&count).Error; err != nil {
		return false, fmt.Errorf("failed to check challenge existence: %w", err)
	}

	if count > 0 {
		if err := c.cache.reads.Exists.Set(ctx, key, true, cache.ExistsCacheConfig.TTL); err != nil {
			slog.WarnContext(ctx, "Cache set error", "error", err, "key", key)
		}
	}
	return count > 0, nil
}

type SchoolPostgreSQL struct {
	db *gorm.DB
}

func NewSchoolPostgreSQL(db *gorm.DB) repositories.SchoolRepository {
	return &SchoolPostgreSQL{db: db}
}

func (s *SchoolPostgreSQL) GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.School, error) {
	db := getDB(s.db, tx)
	var school models.School
	if err := db.WithContext(ctx).
		Where("lifecycle <> ?", models.LifecycleDeleted).
		First(&school, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("school %d: %w", id, repositories.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get school: %w", err)
	}
	return &school, nil
}

func (s *SchoolPostgreSQL) Exists(ctx context.Context, tx *gorm.DB, id uint) (bool, error) {
	db := getDB(s.db, tx)
	var count int64
	if err := db.WithContext(ctx).Model(&models.School{}).
		Where("id = ? AND lifecycle <> ?", id, models.LifecycleDeleted).
		Count(&count).Error; err != nil {
		return false, fmt.Errorf("failed to check school existence: %w", err)
	}
	return count > 0, nil
}

type StudentPostgreSQL struct {
	db *gorm.DB
}

func NewStudentPostgreSQL(db *gorm.DB) repositories.StudentRepository {
	return &StudentPostgreSQL{db: db}
}

// GetByUserID resolves the active student profile of an identity-provider user
func (s *StudentPostgreSQL) GetByUserID(ctx context.Context, tx *gorm.DB, userID string) (*models.Student, error) {
	db := getDB(s.db, tx)
	var student models.Student
	if err := db.WithContext(ctx).
		Where("user_id = ? AND lifecycle = ?", userID, models.LifecycleActive).
		First(&student).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("student for user %s: %w", userID, repositories.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get student: %w", err)
	}
	return &student, nil
}

func getDB(db, tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return db
}

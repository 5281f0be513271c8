package repositories

import (
	"context"

	"github.com/SAP-F-2025/challenge-service/internal/models"
	"gorm.io/gorm"
)

type ChallengeRepository interface {
	Exists(ctx context.Context, tx *gorm.DB, id uint) (bool, error)
}

type SchoolRepository interface {
	GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.School, error)
	Exists(ctx context.Context, tx *gorm.DB, id uint) (bool, error)
}

type StudentRepository interface {
	GetByUserID(ctx context.Context, tx *gorm.DB, userID string) (*models.Student, error)
}

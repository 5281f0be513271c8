package repositories

import (
	"context"

	"github.com/SAP-F-2025/challenge-service/internal/models"
	"gorm.io/gorm"
)

type QuestionFilters struct {
	ChallengeID *uint                `json:"challenge_id"`
	Stage       *models.Stage        `json:"stage"`
	Type        *models.QuestionType `json:"type"`
	Search      string               `json:"search"`
	Limit       int                  `json:"limit"`
	Offset      int                  `json:"offset"`
	SortBy      string               `json:"sort_by"`    // "position", "created_at", "points"
	SortOrder   string               `json:"sort_order"` // "asc", "desc"
}

// QuestionRepository persists questions. Listing methods return root-level,
// active questions only.
type QuestionRepository interface {
	// Basic operations
	Create(ctx context.Context, tx *gorm.DB, question *models.Question) error
	CreateBatch(ctx context.Context, tx *gorm.DB, questions []*models.Question) error
	GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.Question, error)
	GetByIDWithDetails(ctx context.Context, tx *gorm.DB, id uint) (*models.Question, error) // Include sub-questions and media

	// Query operations
	List(ctx context.Context, tx *gorm.DB, filters QuestionFilters) ([]*models.Question, int64, error)
	GetByChallenge(ctx context.Context, tx *gorm.DB, challengeID uint, stage *models.Stage) ([]*models.Question, error)
	GetSubQuestions(ctx context.Context, tx *gorm.DB, parentID uint) ([]*models.Question, error)

	// Position sequencing
	NextPosition(ctx context.Context, tx *gorm.DB, challengeID uint, stage models.Stage, parentID *uint) (int, error)

	// Composite scoring
	SumSubQuestionPoints(ctx context.Context, tx *gorm.DB, parentID uint) (int, error)
	UpdatePoints(ctx context.Context, tx *gorm.DB, id uint, points int) error

	// Lifecycle
	UpdateLifecycle(ctx context.Context, tx *gorm.DB, id uint, lifecycle models.Lifecycle) error

	// Media
	AttachMedia(ctx context.Context, tx *gorm.DB, questionID uint, media []models.QuestionMedia) error
}

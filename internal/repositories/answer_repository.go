package repositories

import (
	"context"

	"github.com/SAP-F-2025/challenge-service/internal/models"
	"gorm.io/gorm"
)

// SchoolQuestionAggregate is the raw per-question aggregate over one school's
// answers, before rounding
type SchoolQuestionAggregate struct {
	QuestionID     uint
	QuestionText   string
	QuestionType   models.QuestionType
	Stage          models.Stage
	ChallengeID    uint
	TotalAttempts  int64
	CorrectAnswers int64
	AvgTimeSpent   float64
}

// AnswerRepository stores StudentAnswer rows. There is no update or delete.
type AnswerRepository interface {
	Create(ctx context.Context, tx *gorm.DB, answer *models.StudentAnswer) error
	CountByQuestionAndStudent(ctx context.Context, tx *gorm.DB, questionID, studentID uint) (int64, error)
	GetByQuestionAndStudent(ctx context.Context, tx *gorm.DB, questionID, studentID uint) ([]*models.StudentAnswer, error)

	// Statistics
	GetSchoolAggregates(ctx context.Context, tx *gorm.DB, schoolID uint, questionID *uint) ([]SchoolQuestionAggregate, error)
}

package services

import (
	"context"
	"encoding/json"
	"io"

	"github.com/SAP-F-2025/challenge-service/internal/models"
)

// ===== COLLABORATORS =====

// MediaStore uploads files and returns a reference usable in content and answers
type MediaStore interface {
	Upload(ctx context.Context, file models.MediaFile) (*models.StoredMedia, error)
}

// Adjudicator grades IA questions. Implementations must respect ctx.
type Adjudicator interface {
	Adjudicate(ctx context.Context, req *models.AdjudicationRequest) (*models.AdjudicationVerdict, error)
}

// ===== SERVICE INTERFACES =====

type QuestionService interface {
	// Creation
	Create(ctx context.Context, req *models.QuestionCreateRequest, creatorID string) (*models.Question, error)
	AddSubQuestion(ctx context.Context, parentID uint, raw json.RawMessage, creatorID string) (*models.Question, error)

	// Queries
	GetByID(ctx context.Context, id uint) (*models.Question, error)
	GetByChallenge(ctx context.Context, challengeID uint, stage *models.Stage) ([]*models.Question, error)
	List(ctx context.Context, params *models.ListQuestionsParams) (*models.PaginatedResponse, error)

	// Lifecycle
	UpdateLifecycle(ctx context.Context, id uint, lifecycle models.Lifecycle, userID string) error

	// Composite scoring
	RecalculateParentPoints(ctx context.Context, parentID uint) (int, error)
}

type AnswerService interface {
	Submit(ctx context.Context, questionID uint, userID string, req *models.SubmitAnswerRequest) (*models.AnswerResult, error)
	History(ctx context.Context, questionID uint, userID string) ([]*models.StudentAnswer, error)
}

type StatsService interface {
	GetSchoolStats(ctx context.Context, schoolID uint, questionID *uint) ([]models.QuestionSchoolStats, error)
	ExportSchoolStats(ctx context.Context, schoolID uint, questionID *uint, w io.Writer) error
}

// ===== SERVICE MANAGER =====

type ServiceManager interface {
	Initialize(ctx context.Context) error

	Question() QuestionService
	Answer() AnswerService
	Stats() StatsService
	Registry() *ContentRegistry

	HealthCheck(ctx context.Context) error
	Shutdown(ctx context.Context) error
}

package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/SAP-F-2025/challenge-service/internal/events"
	"github.com/SAP-F-2025/challenge-service/internal/metrics"
	"github.com/SAP-F-2025/challenge-service/internal/models"
	"github.com/SAP-F-2025/challenge-service/internal/repositories"
	"github.com/SAP-F-2025/challenge-service/internal/validator"
	"gorm.io/datatypes"
)

const defaultPageSize = 20

type questionService struct {
	repo      repositories.Repository
	logger    *slog.Logger
	validator *validator.Validator
	registry  *ContentRegistry
	media     MediaStore
	publisher events.EventPublisher
	metrics   *metrics.Metrics
}

func NewQuestionService(
	repo repositories.Repository,
	logger *slog.Logger,
	validator *validator.Validator,
	registry *ContentRegistry,
	media MediaStore,
	publisher events.EventPublisher,
	metrics *metrics.Metrics,
) QuestionService {
	return &questionService{
		repo:      repo,
		logger:    logger,
		validator: validator,
		registry:  registry,
		media:     media,
		publisher: publisher,
		metrics:   metrics,
	}
}

// ===== CREATION =====

func (s *questionService) Create(ctx context.Context, req *models.QuestionCreateRequest, creatorID string) (*models.Question, error) {
	s.logger.Info("Creating question", "creator_id", creatorID, "type", req.Type, "challenge_id", req.ChallengeID)

	if errs := s.validator.GetBusinessValidator().ValidateQuestionCreate(req); len(errs) > 0 {
		return nil, NewStructuralValidationError(req.Type, errs)
	}

	exists, err := s.repo.Challenge().Exists(ctx, nil, req.ChallengeID)
	if err != nil {
		return nil, fmt.Errorf("failed to check challenge: %w", err)
	}
	if !exists {
		return nil, ErrChallengeNotFound
	}

	content, err := s.registry.Validate(req)
	if err != nil {
		s.logger.Debug("Question content rejected", "type", req.Type, "error", err)
		return nil, err
	}
	spec, _ := s.registry.Spec(req.Type)

	drafts := subQuestionDrafts(content)

	var question *models.Question
	err = s.repo.WithSerializableTransaction(ctx, func(txRepo repositories.Repository) error {
		// Rebuilt on every attempt: a rolled back insert leaves its ID behind
		q, err := buildQuestion(req, spec, content)
		if err != nil {
			return err
		}

		position, err := txRepo.Question().NextPosition(ctx, nil, q.ChallengeID, q.Stage, nil)
		if err != nil {
			return fmt.Errorf("failed to allocate position: %w", err)
		}
		q.Position = position

		if spec.Composite {
			q.Points = 0
			for _, d := range drafts {
				q.Points += d.Points
			}
		}

		if err := txRepo.Question().Create(ctx, nil, q); err != nil {
			return err
		}

		if len(drafts) > 0 {
			subs := make([]*models.Question, len(drafts))
			for i, d := range drafts {
				sub, err := buildSubQuestion(q, d, i+1)
				if err != nil {
					return err
				}
				subs[i] = sub
			}
			if err := txRepo.Question().CreateBatch(ctx, nil, subs); err != nil {
				return fmt.Errorf("failed to create sub-questions: %w", err)
			}
			q.SubQuestions = make([]models.Question, len(subs))
			for i, sub := range subs {
				q.SubQuestions[i] = *sub
			}
		}

		question = q
		return nil
	})
	if err != nil {
		s.logger.Error("Failed to create question", "type", req.Type, "challenge_id", req.ChallengeID, "error", err)
		return nil, fmt.Errorf("failed to create question: %w", err)
	}

	if err := s.attachMedia(ctx, question, req.Media); err != nil {
		return question, err
	}

	s.metrics.ObserveQuestionCreated(string(question.Type))
	s.publish(ctx, events.NewEvent(events.QuestionCreated, map[string]interface{}{
		"question_id":  question.ID,
		"challenge_id": question.ChallengeID,
		"stage":        question.Stage,
		"type":         question.Type,
		"position":     question.Position,
		"points":       question.Points,
		"created_by":   creatorID,
	}))

	s.logger.Info("Question created",
		"question_id", question.ID,
		"type", question.Type,
		"stage", question.Stage,
		"position", question.Position,
		"sub_questions", len(question.SubQuestions))

	return question, nil
}

// attachMedia uploads the files of a committed question. The question row is
// kept when an upload fails; the caller gets its ID in the error.
func (s *questionService) attachMedia(ctx context.Context, question *models.Question, files []models.MediaFile) error {
	if len(files) == 0 {
		return nil
	}
	if s.media == nil {
		return fmt.Errorf("%w: question %d was created but no media store is configured", ErrMediaUploadFailed, question.ID)
	}

	media := make([]models.QuestionMedia, 0, len(files))
	for i, f := range files {
		stored, err := s.media.Upload(ctx, f)
		if err != nil {
			s.logger.Error("Failed to upload question media", "question_id", question.ID, "file", f.FileName, "error", err)
			return fmt.Errorf("%w: question %d was created without its media: %v", ErrMediaUploadFailed, question.ID, err)
		}
		media = append(media, models.QuestionMedia{
			QuestionID: question.ID,
			MediaID:    stored.ID,
			URL:        stored.URL,
			Context:    f.Context,
			Position:   i + 1,
		})
	}

	if err := s.repo.Question().AttachMedia(ctx, nil, question.ID, media); err != nil {
		return fmt.Errorf("%w: question %d: %v", ErrMediaUploadFailed, question.ID, err)
	}
	question.Media = media
	return nil
}

func (s *questionService) AddSubQuestion(ctx context.Context, parentID uint, raw json.RawMessage, creatorID string) (*models.Question, error) {
	s.logger.Info("Adding sub-question", "parent_id", parentID, "creator_id", creatorID)

	parent, err := s.repo.Question().GetByID(ctx, nil, parentID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrParentQuestionNotFound
		}
		return nil, fmt.Errorf("failed to get parent question: %w", err)
	}
	if parent.Lifecycle == models.LifecycleDeleted {
		return nil, ErrParentQuestionNotFound
	}
	if parent.IsSubQuestion() {
		return nil, ErrNestingTooDeep
	}

	draft, err := s.registry.ValidateSubQuestion(parent.Type, raw)
	if err != nil {
		return nil, err
	}

	var sub *models.Question
	var total int
	err = s.repo.WithSerializableTransaction(ctx, func(txRepo repositories.Repository) error {
		position, err := txRepo.Question().NextPosition(ctx, nil, parent.ChallengeID, parent.Stage, &parent.ID)
		if err != nil {
			return fmt.Errorf("failed to allocate position: %w", err)
		}

		q, err := buildSubQuestion(parent, *draft, position)
		if err != nil {
			return err
		}
		if err := txRepo.Question().Create(ctx, nil, q); err != nil {
			return err
		}

		total, err = s.recalculate(ctx, txRepo, parent.ID)
		if err != nil {
			return err
		}

		sub = q
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to add sub-question: %w", err)
	}

	s.publish(ctx, events.NewEvent(events.QuestionCreated, map[string]interface{}{
		"question_id":        sub.ID,
		"parent_question_id": parent.ID,
		"challenge_id":       sub.ChallengeID,
		"type":               sub.Type,
		"position":           sub.Position,
		"points":             sub.Points,
		"created_by":         creatorID,
	}))
	s.publishPoints(ctx, parent.ID, parent.Points, total)

	return sub, nil
}

// ===== QUERIES =====

func (s *questionService) GetByID(ctx context.Context, id uint) (*models.Question, error) {
	question, err := s.repo.Question().GetByIDWithDetails(ctx, nil, id)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrQuestionNotFound
		}
		return nil, fmt.Errorf("failed to get question: %w", err)
	}
	if question.Lifecycle == models.LifecycleDeleted {
		return nil, ErrQuestionNotFound
	}
	return question, nil
}

func (s *questionService) GetByChallenge(ctx context.Context, challengeID uint, stage *models.Stage) ([]*models.Question, error) {
	if stage != nil && !stage.IsValid() {
		return nil, newBadRequest("unknown stage '%s'", *stage)
	}

	exists, err := s.repo.Challenge().Exists(ctx, nil, challengeID)
	if err != nil {
		return nil, fmt.Errorf("failed to check challenge: %w", err)
	}
	if !exists {
		return nil, ErrChallengeNotFound
	}

	questions, err := s.repo.Question().GetByChallenge(ctx, nil, challengeID, stage)
	if err != nil {
		return nil, fmt.Errorf("failed to list challenge questions: %w", err)
	}
	return questions, nil
}

func (s *questionService) List(ctx context.Context, params *models.ListQuestionsParams) (*models.PaginatedResponse, error) {
	if params.Size == 0 {
		params.Size = defaultPageSize
	}
	if err := s.validator.Validate(params); err != nil {
		return nil, err
	}

	filters := repositories.QuestionFilters{
		ChallengeID: params.ChallengeID,
		Search:      params.Search,
		Limit:       params.Size,
		Offset:      params.Page * params.Size,
		SortBy:      params.SortBy,
		SortOrder:   params.SortDir,
	}
	if params.Stage != "" {
		stage := params.Stage
		filters.Stage = &stage
	}
	if params.Type != "" {
		questionType := params.Type
		filters.Type = &questionType
	}

	questions, total, err := s.repo.Question().List(ctx, nil, filters)
	if err != nil {
		return nil, fmt.Errorf("failed to list questions: %w", err)
	}

	return models.NewPaginatedResponse(questions, total, params.Page, params.Size, len(questions)), nil
}

// ===== LIFECYCLE =====

func (s *questionService) UpdateLifecycle(ctx context.Context, id uint, lifecycle models.Lifecycle, userID string) error {
	if !lifecycle.IsValid() {
		return newBadRequest("lifecycle must be one of active, inactive, deleted (got '%s')", lifecycle)
	}

	s.logger.Info("Updating question lifecycle", "question_id", id, "lifecycle", lifecycle, "user_id", userID)

	var previous models.Lifecycle
	var parentID *uint
	var oldPoints, newPoints int
	err := s.repo.WithTransaction(ctx, func(txRepo repositories.Repository) error {
		question, err := txRepo.Question().GetByID(ctx, nil, id)
		if err != nil {
			if repositories.IsNotFoundError(err) {
				return ErrQuestionNotFound
			}
			return err
		}
		if question.Lifecycle == models.LifecycleDeleted {
			if lifecycle == models.LifecycleDeleted {
				return ErrQuestionNotFound
			}
			return newBadRequest("question %d is deleted and cannot be restored", id)
		}
		previous = question.Lifecycle
		if previous == lifecycle {
			return nil
		}

		if err := txRepo.Question().UpdateLifecycle(ctx, nil, id, lifecycle); err != nil {
			return err
		}

		if question.IsSubQuestion() {
			parent, err := txRepo.Question().GetByID(ctx, nil, *question.ParentQuestionID)
			if err != nil {
				return fmt.Errorf("failed to get parent question: %w", err)
			}
			parentID = question.ParentQuestionID
			oldPoints = parent.Points
			newPoints, err = s.recalculate(ctx, txRepo, parent.ID)
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrQuestionNotFound) || errors.Is(err, ErrBadRequest) {
			return err
		}
		return fmt.Errorf("failed to update question lifecycle: %w", err)
	}
	if previous == lifecycle {
		return nil
	}

	s.publish(ctx, events.NewEvent(events.QuestionLifecycleChanged, map[string]interface{}{
		"question_id": id,
		"from":        previous,
		"to":          lifecycle,
		"changed_by":  userID,
	}))
	if parentID != nil {
		s.publishPoints(ctx, *parentID, oldPoints, newPoints)
	}
	return nil
}

// ===== COMPOSITE SCORING =====

func (s *questionService) RecalculateParentPoints(ctx context.Context, parentID uint) (int, error) {
	var oldPoints, total int
	err := s.repo.WithTransaction(ctx, func(txRepo repositories.Repository) error {
		parent, err := txRepo.Question().GetByID(ctx, nil, parentID)
		if err != nil {
			if repositories.IsNotFoundError(err) {
				return ErrQuestionNotFound
			}
			return err
		}
		if parent.Lifecycle == models.LifecycleDeleted {
			return ErrQuestionNotFound
		}
		if parent.IsSubQuestion() {
			return newBadRequest("question %d is a sub-question", parentID)
		}
		if spec, ok := s.registry.Spec(parent.Type); !ok || !spec.Composite {
			return ErrNotComposite
		}

		oldPoints = parent.Points
		total, err = s.recalculate(ctx, txRepo, parent.ID)
		return err
	})
	if err != nil {
		return 0, err
	}

	s.publishPoints(ctx, parentID, oldPoints, total)
	return total, nil
}

// recalculate stores the sum of the active sub-question points on the parent
func (s *questionService) recalculate(ctx context.Context, txRepo repositories.Repository, parentID uint) (int, error) {
	total, err := txRepo.Question().SumSubQuestionPoints(ctx, nil, parentID)
	if err != nil {
		return 0, fmt.Errorf("failed to sum sub-question points: %w", err)
	}
	if err := txRepo.Question().UpdatePoints(ctx, nil, parentID, total); err != nil {
		return 0, fmt.Errorf("failed to update parent points: %w", err)
	}
	return total, nil
}

// ===== HELPERS =====

func (s *questionService) publish(ctx context.Context, event *events.Event) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.logger.Warn("Failed to publish event", "event_type", event.Type, "event_id", event.ID, "error", err)
	}
}

func (s *questionService) publishPoints(ctx context.Context, parentID uint, from, to int) {
	if from == to {
		return
	}
	s.publish(ctx, events.NewEvent(events.QuestionPointsRecalculated, map[string]interface{}{
		"question_id": parentID,
		"from":        from,
		"to":          to,
	}))
}

func buildQuestion(req *models.QuestionCreateRequest, spec TypeSpec, content models.QuestionContent) (*models.Question, error) {
	contentValue, optionsValue, answerValue := content.Columns()

	contentJSON, err := toJSON(contentValue)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal content: %w", err)
	}
	optionsJSON, err := toJSON(optionsValue)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal options: %w", err)
	}
	answerJSON, err := toJSON(answerValue)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal answer: %w", err)
	}

	method := spec.Method
	if req.ValidationMethod != "" {
		method = req.ValidationMethod
	}

	maxAttempts := req.MaxAttempts
	if maxAttempts == 0 {
		maxAttempts = 1
	}

	configs := append([]models.Configuration(nil), req.Configurations...)
	if wordbox, ok := content.(models.WordboxContent); ok {
		configs = withConfig(configs, models.ConfigGridWidth, strconv.Itoa(len(wordbox.Grid[0])))
		configs = withConfig(configs, models.ConfigGridHeight, strconv.Itoa(len(wordbox.Grid)))
	}

	return &models.Question{
		ChallengeID:      req.ChallengeID,
		Stage:            spec.Stage,
		Phase:            req.Phase,
		Type:             req.Type,
		Points:           req.Points,
		TimeLimit:        req.TimeLimit,
		MaxAttempts:      maxAttempts,
		Text:             req.Text,
		Instructions:     req.Instructions,
		ValidationMethod: method,
		Content:          contentJSON,
		Options:          optionsJSON,
		Answer:           answerJSON,
		Configurations:   configs,
		Lifecycle:        models.LifecycleActive,
	}, nil
}

// buildSubQuestion derives a sub-question row from its parent. Sub-questions
// are graded through the parent, so they carry no time limit or attempts.
func buildSubQuestion(parent *models.Question, draft SubQuestionDraft, position int) (*models.Question, error) {
	optionsJSON, err := toJSON(draft.Options)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal sub-question options: %w", err)
	}
	answerJSON, err := toJSON(draft.Answer)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal sub-question answer: %w", err)
	}

	parentID := parent.ID
	return &models.Question{
		ChallengeID:      parent.ChallengeID,
		Stage:            parent.Stage,
		Phase:            parent.Phase,
		Position:         position,
		Type:             parent.Type,
		Points:           draft.Points,
		Text:             draft.Text,
		ValidationMethod: models.ValidationAuto,
		Options:          optionsJSON,
		Answer:           answerJSON,
		ParentQuestionID: &parentID,
		Lifecycle:        models.LifecycleActive,
	}, nil
}

func toJSON(v interface{}) (datatypes.JSON, error) {
	if v == nil {
		return nil, nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	if string(raw) == "null" {
		return nil, nil
	}
	return datatypes.JSON(raw), nil
}

func withConfig(configs []models.Configuration, key, value string) []models.Configuration {
	for _, c := range configs {
		if c.Key == key {
			return configs
		}
	}
	return append(configs, models.Configuration{Key: key, Value: value})
}
